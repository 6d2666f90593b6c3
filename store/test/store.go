package test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/needscoop/needscoop/internal/profile"
	"github.com/needscoop/needscoop/store"
	"github.com/needscoop/needscoop/store/db"
)

// NewTestingStore creates a store backed by a throwaway SQLite database.
func NewTestingStore(ctx context.Context, t *testing.T) *store.Store {
	testProfile := getTestingProfile(t)
	dbDriver, err := db.NewDBDriver(testProfile)
	if err != nil {
		t.Fatalf("failed to create db driver: %v", err)
	}
	if err := dbDriver.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate db: %v", err)
	}

	ts := store.New(dbDriver, testProfile)
	t.Cleanup(func() {
		_ = ts.Close()
	})
	return ts
}

func getTestingProfile(t *testing.T) *profile.Profile {
	dir := t.TempDir()
	return &profile.Profile{
		Mode:              "dev",
		Data:              dir,
		Driver:            "sqlite",
		DSN:               filepath.Join(dir, "needscoop_test.db"),
		EmbeddingProvider: "hash",
	}
}
