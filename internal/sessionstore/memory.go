package sessionstore

import (
	"context"
	"sync"

	"closet-go/internal/closet"
	"closet-go/internal/model"
)

// MemoryStorage keeps the session in process memory. Nothing survives a
// restart. Safe for concurrent use.
type MemoryStorage struct {
	mu   sync.Mutex
	sess *model.Session
}

var _ closet.SessionStorage = (*MemoryStorage)(nil)

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

func (m *MemoryStorage) Load(ctx context.Context) (*model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sess == nil {
		return nil, nil
	}
	s := *m.sess
	return &s, nil
}

func (m *MemoryStorage) Save(ctx context.Context, s *model.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.sess = &cp
	return nil
}

func (m *MemoryStorage) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sess = nil
	return nil
}
