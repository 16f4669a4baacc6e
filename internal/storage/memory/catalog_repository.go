package memory

import (
	"sync"
	"time"

	"github.com/vladislavdragonenkov/pharmacy/internal/domain"
)

// CatalogRepository — потокобезопасное in-memory хранилище каталога.
// Используется в тестах и при запуске без postgres.
type CatalogRepository struct {
	mu    sync.RWMutex
	items map[string]domain.CatalogItem
}

var _ domain.CatalogRepository = (*CatalogRepository)(nil)

// NewCatalogRepository создаёт пустое хранилище каталога.
func NewCatalogRepository() *CatalogRepository {
	return &CatalogRepository{
		items: make(map[string]domain.CatalogItem),
	}
}

// Get возвращает копию товара или ErrCatalogItemNotFound.
func (r *CatalogRepository) Get(id string) (domain.CatalogItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	item, ok := r.items[id]
	if !ok {
		return domain.CatalogItem{}, domain.ErrCatalogItemNotFound
	}
	return item, nil
}

// DecrementStock атомарно списывает qty, только если остатка хватает.
func (r *CatalogRepository) DecrementStock(id string, qty int32) (domain.CatalogItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	item, ok := r.items[id]
	if !ok {
		return domain.CatalogItem{}, domain.ErrCatalogItemNotFound
	}
	if item.Stock < qty {
		return domain.CatalogItem{}, domain.ErrInsufficientStock
	}

	item.Stock -= qty
	item.UpdatedAt = time.Now().UTC()
	r.items[id] = item
	return item, nil
}

// RestoreStock возвращает qty на склад.
func (r *CatalogRepository) RestoreStock(id string, qty int32) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	item, ok := r.items[id]
	if !ok {
		return domain.ErrCatalogItemNotFound
	}

	item.Stock += qty
	item.UpdatedAt = time.Now().UTC()
	r.items[id] = item
	return nil
}

// Upsert сохраняет товар целиком.
func (r *CatalogRepository) Upsert(item domain.CatalogItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	item.UpdatedAt = time.Now().UTC()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = item.UpdatedAt
	}
	r.items[item.ID] = item
	return nil
}
