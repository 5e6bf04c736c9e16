package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/tendant/page-modules/pkg/pagemodules"
)

// Store is an in-memory implementation of the pagemodules.SnapshotStore interface
type Store struct {
	mu        sync.RWMutex
	snapshots map[string][]byte
}

// New creates a new in-memory snapshot store
func New() *Store {
	return &Store{snapshots: make(map[string][]byte)}
}

// Put stores the snapshot, replacing any previous one
func (s *Store) Put(ctx context.Context, key string, reader io.Reader) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[key] = data
	return nil
}

// Get returns the snapshot stored under key
func (s *Store) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, exists := s.snapshots[key]
	if !exists {
		return nil, fmt.Errorf("snapshot %s: %w", key, pagemodules.ErrNotFound)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// Delete removes the snapshot stored under key
func (s *Store) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.snapshots[key]; !exists {
		return fmt.Errorf("snapshot %s: %w", key, pagemodules.ErrNotFound)
	}
	delete(s.snapshots, key)
	return nil
}

// Keys lists the stored keys in lexical order
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.snapshots))
	for k := range s.snapshots {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
