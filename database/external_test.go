package database

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestMongoStore(t *testing.T) {
	uri := os.Getenv("TEST_MONGO_URI")
	if uri == "" {
		t.Skip("TEST_MONGO_URI not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	name := "concert_tickets_test_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	store, err := OpenMongo(ctx, uri, name)
	require.NoError(t, err)
	defer func() {
		_ = store.client.Database(name).Drop(context.Background())
		_ = store.Close()
	}()

	testStore(t, store)
}

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, err := OpenPostgres(ctx, dsn)
	require.NoError(t, err)
	defer store.Close()

	testStore(t, store)
}
