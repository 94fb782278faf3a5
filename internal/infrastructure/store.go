package infrastructure

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"persona_relay/internal/interfaces"
)

// OpenStore picks a KV backend from the URL scheme and verifies it is reachable.
func OpenStore(ctx context.Context, rawURL string) (interfaces.KVStore, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid store url: %w", err)
	}

	switch strings.ToLower(u.Scheme) {
	case "redis", "rediss":
		return NewRedisStore(ctx, rawURL)
	case "postgres", "postgresql":
		return NewPostgresStore(ctx, rawURL)
	case "sqlite":
		// sqlite:///var/lib/relay.db and sqlite://relay.db are both accepted
		return NewSQLiteStore(ctx, u.Host+u.Path)
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported store scheme %q", u.Scheme)
	}
}

// MemoryStore keeps values in process. Data is lost on restart.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]string)}
}

func (m *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *MemoryStore) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}

func (m *MemoryStore) Ping(context.Context) error { return nil }

func (m *MemoryStore) Close() error { return nil }
