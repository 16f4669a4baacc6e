package memory

import (
	"sync"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/pharmacy/internal/domain"
)

type storedDocument struct {
	data        []byte
	contentType string
}

// DocumentStore — in-memory blob-хранилище документов (рецептов).
type DocumentStore struct {
	mu   sync.RWMutex
	docs map[string]storedDocument
}

var _ domain.DocumentStore = (*DocumentStore)(nil)

// NewDocumentStore создаёт пустое хранилище документов.
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{
		docs: make(map[string]storedDocument),
	}
}

// Store сохраняет документ и возвращает ссылку на него.
func (s *DocumentStore) Store(data []byte, contentType string) (domain.DocumentRef, error) {
	if len(data) == 0 {
		return domain.DocumentRef{}, domain.ErrDocumentRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ref := uuid.NewString()
	stored := storedDocument{
		data:        make([]byte, len(data)),
		contentType: contentType,
	}
	copy(stored.data, data)
	s.docs[ref] = stored

	return domain.DocumentRef{
		URL: "/v1/documents/" + ref,
		Ref: ref,
	}, nil
}

// Get возвращает содержимое документа по ссылке.
func (s *DocumentStore) Get(ref string) ([]byte, string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs[ref]
	if !ok {
		return nil, "", false
	}
	out := make([]byte, len(doc.data))
	copy(out, doc.data)
	return out, doc.contentType, true
}
