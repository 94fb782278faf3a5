package infrastructure

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

// These run only against real servers, e.g.
// RELAY_TEST_REDIS_URL=redis://localhost:6379/15 RELAY_TEST_POSTGRES_URL=postgres://... go test ./...

func TestRedisStore_Integration(t *testing.T) {
	url := os.Getenv("RELAY_TEST_REDIS_URL")
	if url == "" {
		t.Skip("RELAY_TEST_REDIS_URL not set")
	}
	store, err := OpenStore(context.Background(), url)
	require.NoError(t, err)
	defer store.Close()

	exerciseStore(t, store)
}

func TestPostgresStore_Integration(t *testing.T) {
	url := os.Getenv("RELAY_TEST_POSTGRES_URL")
	if url == "" {
		t.Skip("RELAY_TEST_POSTGRES_URL not set")
	}
	store, err := OpenStore(context.Background(), url)
	require.NoError(t, err)
	defer store.Close()

	_, err = store.(*PostgresStore).Pool.Exec(context.Background(), "DELETE FROM relay_kv WHERE key LIKE 'user:%'")
	require.NoError(t, err)
	exerciseStore(t, store)
}
