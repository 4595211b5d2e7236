// Package paramstore persists small named values such as the current sheet
// id and the integration's OAuth tokens.
package paramstore

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"sync"
)

// ErrNotFound is returned by Get when the key was never stored.
var ErrNotFound = errors.New("parameter not found")

// Well-known parameter names, joined under a deployment prefix.
const (
	SheetIDName = "smartsheetSheetId"
	TokensName  = "webexTokens"
)

// Store defines the interface for reading and writing parameters
type Store interface {
	// Get returns the stored value or an error wrapping ErrNotFound.
	Get(ctx context.Context, key string) (string, error)

	// Put creates or overwrites a value. secret marks values that must be
	// encrypted at rest where the backend supports it.
	Put(ctx context.Context, key, value string, secret bool) error
}

// Key joins a parameter name under prefix, e.g. Key("/daedalus", TokensName).
func Key(prefix, name string) string {
	if prefix == "" {
		return "/" + name
	}
	return path.Join("/", strings.Trim(prefix, "/"), name)
}

// MemoryStore implements Store with in-memory storage
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryStore creates a new store that keeps values in memory
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

// Get returns a value from memory
func (s *MemoryStore) Get(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	if !ok {
		return "", fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	return v, nil
}

// Put stores a value in memory
func (s *MemoryStore) Put(_ context.Context, key, value string, _ bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}
