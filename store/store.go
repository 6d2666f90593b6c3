package store

import (
	"context"
	"time"

	"github.com/needscoop/needscoop/internal/profile"
	"github.com/needscoop/needscoop/store/cache"
)

const statsCacheKey = "post_counts_by_signal_type"

// Store provides database access to all raw objects.
type Store struct {
	profile *profile.Profile
	driver  Driver

	// Cache for derived stats the API surface polls.
	statsCache *cache.Cache
}

// New creates a new instance of Store.
func New(driver Driver, profile *profile.Profile) *Store {
	return &Store{
		driver:  driver,
		profile: profile,
		statsCache: cache.New(cache.Config{
			DefaultTTL:      time.Minute,
			CleanupInterval: 5 * time.Minute,
			MaxItems:        16,
		}),
	}
}

func (s *Store) GetDriver() Driver {
	return s.driver
}

// Migrate brings the backing database schema up to date.
func (s *Store) Migrate(ctx context.Context) error {
	return s.driver.Migrate(ctx)
}

func (s *Store) Close() error {
	s.statsCache.Close()
	return s.driver.Close()
}
