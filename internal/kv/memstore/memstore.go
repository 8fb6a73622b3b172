// Package memstore is an in-memory kv.Store, the default backing store
// for local development and for any deployment that doesn't wire Redis.
package memstore

import (
	"context"
	"sync"

	"github.com/devon-ng/gatewaycore/internal/kv"
)

// Store is a mutex-guarded map satisfying kv.Store.
type Store struct {
	mu   sync.RWMutex
	data map[string]string
}

// New creates an empty Store.
func New() *Store {
	return &Store{data: make(map[string]string)}
}

func (s *Store) Get(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.data[key]
	if !ok {
		return "", kv.ErrNotFound
	}
	return v, nil
}

func (s *Store) Put(_ context.Context, key string, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[key] = value
	return nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, key)
	return nil
}

func (s *Store) Exists(_ context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.data[key]
	return ok, nil
}
