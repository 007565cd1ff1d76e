// Package memory backs checkout replay with a process-local map, for
// development and tests.
package memory

import (
	"context"
	"sync"

	"github.com/freshmart/storefront/internal/orders/ports"
)

type Store struct {
	mu        sync.RWMutex
	responses map[string]ports.StoredResponse
}

func NewStore() *Store {
	return &Store{responses: make(map[string]ports.StoredResponse)}
}

// Get returns a copy of the response stored for key, or nil when unused.
func (s *Store) Get(_ context.Context, key string) (*ports.StoredResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	resp, ok := s.responses[key]
	if !ok {
		return nil, nil
	}
	return &resp, nil
}

// Save stores the response for key. The first writer wins.
func (s *Store) Save(_ context.Context, key string, response ports.StoredResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.responses[key]; !exists {
		s.responses[key] = response
	}
	return nil
}
