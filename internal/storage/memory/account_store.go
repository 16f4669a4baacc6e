package memory

import (
	"sync"

	"github.com/vladislavdragonenkov/pharmacy/internal/domain"
)

// AccountStore — in-memory read-only хранилище пользователей.
// Наполняется сидированием; сервис заказов пользователей не мутирует.
type AccountStore struct {
	mu    sync.RWMutex
	users map[string]domain.User
}

var _ domain.AccountStore = (*AccountStore)(nil)

// NewAccountStore создаёт хранилище с переданными пользователями.
func NewAccountStore(users ...domain.User) *AccountStore {
	store := &AccountStore{users: make(map[string]domain.User, len(users))}
	for _, u := range users {
		store.users[u.ID] = u
	}
	return store
}

// GetUser возвращает пользователя или ErrUserNotFound.
func (s *AccountStore) GetUser(id string) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	return user, nil
}

// Add регистрирует пользователя.
func (s *AccountStore) Add(user domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.ID] = user
}
