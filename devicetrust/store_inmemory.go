package devicetrust

import (
	"context"
	"sync"
)

var _ Store = (*InMemoryStore)(nil)

// InMemoryStore keeps the token for the lifetime of the process. Suitable
// for tests and for embeddings that provide no durable storage.
type InMemoryStore struct {
	lock  sync.RWMutex
	token string
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Token(_ context.Context) (string, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.token, nil
}

func (s *InMemoryStore) Save(_ context.Context, token string) error {
	if token == "" {
		return nil
	}
	s.lock.Lock()
	defer s.lock.Unlock()
	s.token = token
	return nil
}
