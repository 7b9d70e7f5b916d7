// Package storage provides the key-value blob stores behind the configuration
// and history documents.
package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrNotFound is returned by Get when no blob exists for the key.
var ErrNotFound = errors.New("blob not found")

// BlobStore persists opaque documents by key.
type BlobStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Options selects and configures a backend.
type Options struct {
	Backend     string
	Dir         string
	RedisURL    string
	RedisPrefix string
	DatabaseURL string
}

// Open builds the backend named by opts.Backend.
func Open(ctx context.Context, opts Options) (BlobStore, error) {
	switch opts.Backend {
	case "", "file":
		return NewFileStore(opts.Dir)
	case "memory":
		return NewMemoryStore(), nil
	case "redis":
		return NewRedisStore(ctx, opts.RedisURL, opts.RedisPrefix)
	case "postgres":
		return NewPostgresStore(ctx, opts.DatabaseURL)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", opts.Backend)
	}
}

// MemoryStore keeps blobs in process memory. Used by tests and dry runs.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string][]byte)}
}

func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.blobs[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

func (m *MemoryStore) Put(_ context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[key] = append([]byte(nil), data...)
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blobs, key)
	return nil
}

func (m *MemoryStore) Close() error { return nil }
