package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/hanko-field/storefront/internal/repositories"
)

var errClosed = errors.New("memory kv store: closed")

// KVStore provides an in-memory key-value store useful for testing and local development.
type KVStore struct {
	mu     sync.RWMutex
	values map[string]string
	closed bool
}

// NewKVStore constructs an empty memory-backed store.
func NewKVStore() *KVStore {
	return &KVStore{values: make(map[string]string)}
}

// Get implements repositories.KeyValueStore.
func (s *KVStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return "", false, repositories.NewUnavailableError("memory.get", errClosed)
	}
	value, ok := s.values[key]
	return value, ok, nil
}

// Set implements repositories.KeyValueStore.
func (s *KVStore) Set(_ context.Context, key string, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return repositories.NewUnavailableError("memory.set", errClosed)
	}
	s.values[key] = value
	return nil
}

// Delete implements repositories.KeyValueStore.
func (s *KVStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return repositories.NewUnavailableError("memory.delete", errClosed)
	}
	delete(s.values, key)
	return nil
}

// Close marks the store unusable. Subsequent calls report an unavailable error.
func (s *KVStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

var _ repositories.KeyValueStore = (*KVStore)(nil)
