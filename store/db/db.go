package db

import (
	"github.com/pkg/errors"

	"github.com/needscoop/needscoop/internal/profile"
	"github.com/needscoop/needscoop/store"
	"github.com/needscoop/needscoop/store/db/postgres"
	"github.com/needscoop/needscoop/store/db/sqlite"
)

// NewDBDriver creates new db driver based on profile.
//
// SQLite is the default and needs no external services; vector search over
// it is computed in process. PostgreSQL with the pgvector extension is the
// production driver and pushes vector search into the database.
func NewDBDriver(profile *profile.Profile) (store.Driver, error) {
	var driver store.Driver
	var err error

	switch profile.Driver {
	case "sqlite":
		driver, err = sqlite.NewDB(profile)
	case "postgres":
		driver, err = postgres.NewDB(profile)
	default:
		return nil, errors.Errorf("unknown db driver %q: only 'sqlite' and 'postgres' are supported", profile.Driver)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to create db driver")
	}
	return driver, nil
}
