package store

import (
	"errors"
	"sync"
)

// MemStore is a concurrency-safe, in-memory Handler. It stands in for the
// real ADP store in the binary and in tests, and additionally supports an
// injectable one-shot failure so tests can exercise ErrProjectionFailed and
// the "next heartbeat heals the store" recovery property.
type MemStore struct {
	mu        sync.RWMutex
	resources map[string]Resource
	failNext  error
}

// NewMemStore creates an empty store.
func NewMemStore() *MemStore {
	return &MemStore{resources: make(map[string]Resource)}
}

// Handle applies each update in order. On the first update after FailNext
// has been called, the injected error is returned and no updates in the
// batch are applied — callers in this codebase always hand Handle a single
// update, so "batch" here is never more than one element in practice.
func (s *MemStore) Handle(updates []Update) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failNext != nil {
		err := s.failNext
		s.failNext = nil
		return err
	}

	for _, u := range updates {
		switch u.Kind {
		case UpdateUpsert:
			s.resources[u.Name] = u.Resource
		case UpdateRemove:
			delete(s.resources, u.Name)
		default:
			return errors.New("store: unknown update kind")
		}
	}
	return nil
}

// FailNext arranges for the next call to Handle to return err instead of
// applying its updates. Used by tests to simulate a transient config-store
// outage.
func (s *MemStore) FailNext(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext = err
}

// Get returns the resource currently stored under name, if any.
func (s *MemStore) Get(name string) (Resource, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.resources[name]
	return r, ok
}

// Snapshot returns a point-in-time copy of all resources, keyed by name.
func (s *MemStore) Snapshot() map[string]Resource {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]Resource, len(s.resources))
	for k, v := range s.resources {
		out[k] = v
	}
	return out
}
