package artifact

import (
	"bytes"
	"slices"
	"sync"

	"github.com/chazu/voxgraph/compiler/hash"
)

// MemoryStore is a process-local Store.
type MemoryStore struct {
	mu        sync.RWMutex
	artifacts map[hash.Sum]*Artifact
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{artifacts: make(map[hash.Sum]*Artifact)}
}

// Put implements Store.
func (s *MemoryStore) Put(a *Artifact) error {
	if err := validate(a); err != nil {
		return err
	}
	s.mu.Lock()
	s.artifacts[a.Hash] = a
	s.mu.Unlock()
	return nil
}

// Get implements Store.
func (s *MemoryStore) Get(h hash.Sum) (*Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.artifacts[h]
	if !ok {
		return nil, ErrNotFound
	}
	return a, nil
}

// Has implements Store.
func (s *MemoryStore) Has(h hash.Sum) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.artifacts[h]
	return ok, nil
}

// Hashes implements Store.
func (s *MemoryStore) Hashes() ([]hash.Sum, error) {
	s.mu.RLock()
	hashes := make([]hash.Sum, 0, len(s.artifacts))
	for h := range s.artifacts {
		hashes = append(hashes, h)
	}
	s.mu.RUnlock()
	slices.SortFunc(hashes, func(a, b hash.Sum) int { return bytes.Compare(a[:], b[:]) })
	return hashes, nil
}

// Len returns the number of stored artifacts.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.artifacts)
}
