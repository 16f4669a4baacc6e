package postgres

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/vladislavdragonenkov/pharmacy/internal/domain"
)

// CatalogRepository — хранилище каталога на PostgreSQL.
// Списание стока выполняется условным UPDATE и атомарно на уровне БД.
type CatalogRepository struct {
	store *Store
}

var _ domain.CatalogRepository = (*CatalogRepository)(nil)

// NewCatalogRepository создаёт репозиторий каталога.
func NewCatalogRepository(store *Store) *CatalogRepository {
	return &CatalogRepository{store: store}
}

const catalogColumns = `
	id, name, price_minor, discount_price_minor, tax_rate_percent,
	stock, low_stock_threshold, prescription_required, is_active,
	COALESCE(expiry_date, 'epoch'::timestamptz), created_at, updated_at`

func scanCatalogItem(row interface{ Scan(dest ...any) error }) (domain.CatalogItem, error) {
	var item domain.CatalogItem
	err := row.Scan(
		&item.ID, &item.Name, &item.PriceMinor, &item.DiscountPriceMinor, &item.TaxRatePercent,
		&item.Stock, &item.LowStockThreshold, &item.PrescriptionRequired, &item.IsActive,
		&item.ExpiryDate, &item.CreatedAt, &item.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.CatalogItem{}, domain.ErrCatalogItemNotFound
	}
	if err != nil {
		return domain.CatalogItem{}, fmt.Errorf("scan catalog item: %w", err)
	}
	return item, nil
}

// Get возвращает товар или ErrCatalogItemNotFound.
func (r *CatalogRepository) Get(id string) (domain.CatalogItem, error) {
	ctx, cancel := opContext()
	defer cancel()

	row := r.store.db.QueryRowContext(ctx,
		`SELECT `+catalogColumns+` FROM catalog_items WHERE id = $1`, id)
	return scanCatalogItem(row)
}

// DecrementStock атомарно списывает qty, только если остатка хватает.
// Условие stock >= qty в самом UPDATE исключает гонку между чтением
// и списанием.
func (r *CatalogRepository) DecrementStock(id string, qty int32) (domain.CatalogItem, error) {
	ctx, cancel := opContext()
	defer cancel()

	row := r.store.db.QueryRowContext(ctx, `
		UPDATE catalog_items
		SET stock = stock - $2, updated_at = NOW()
		WHERE id = $1 AND stock >= $2
		RETURNING `+catalogColumns, id, qty)

	item, err := scanCatalogItem(row)
	if errors.Is(err, domain.ErrCatalogItemNotFound) {
		// либо товара нет, либо остатка не хватило
		if _, getErr := r.Get(id); getErr != nil {
			return domain.CatalogItem{}, getErr
		}
		return domain.CatalogItem{}, domain.ErrInsufficientStock
	}
	return item, err
}

// RestoreStock атомарно возвращает qty на склад.
func (r *CatalogRepository) RestoreStock(id string, qty int32) error {
	ctx, cancel := opContext()
	defer cancel()

	result, err := r.store.db.ExecContext(ctx, `
		UPDATE catalog_items
		SET stock = stock + $2, updated_at = NOW()
		WHERE id = $1
	`, id, qty)
	if err != nil {
		return fmt.Errorf("restore stock: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("restore stock rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrCatalogItemNotFound
	}
	return nil
}

// Upsert сохраняет товар целиком; используется сидированием.
func (r *CatalogRepository) Upsert(item domain.CatalogItem) error {
	ctx, cancel := opContext()
	defer cancel()

	_, err := r.store.db.ExecContext(ctx, `
		INSERT INTO catalog_items (
			id, name, price_minor, discount_price_minor, tax_rate_percent,
			stock, low_stock_threshold, prescription_required, is_active,
			expiry_date, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NULLIF($10, 'epoch'::timestamptz), NOW(), NOW())
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			price_minor = EXCLUDED.price_minor,
			discount_price_minor = EXCLUDED.discount_price_minor,
			tax_rate_percent = EXCLUDED.tax_rate_percent,
			stock = EXCLUDED.stock,
			low_stock_threshold = EXCLUDED.low_stock_threshold,
			prescription_required = EXCLUDED.prescription_required,
			is_active = EXCLUDED.is_active,
			expiry_date = EXCLUDED.expiry_date,
			updated_at = NOW()
	`, item.ID, item.Name, item.PriceMinor, item.DiscountPriceMinor, item.TaxRatePercent,
		item.Stock, item.LowStockThreshold, item.PrescriptionRequired, item.IsActive,
		item.ExpiryDate)
	if err != nil {
		return fmt.Errorf("upsert catalog item: %w", err)
	}
	return nil
}
