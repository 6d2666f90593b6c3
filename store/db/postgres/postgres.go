package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	// Import the PostgreSQL driver.
	_ "github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/needscoop/needscoop/internal/profile"
	"github.com/needscoop/needscoop/plugin/ai"
	"github.com/needscoop/needscoop/store"
)

//go:embed schema.sql
var schema string

type DB struct {
	db      *sql.DB
	profile *profile.Profile
}

// NewDB opens a PostgreSQL connection for the given profile. PostgreSQL is
// the production driver: vector search runs inside the database through the
// pgvector extension instead of in process.
func NewDB(profile *profile.Profile) (store.Driver, error) {
	if profile == nil {
		return nil, errors.New("profile is nil")
	}

	db, err := sql.Open("postgres", profile.DSN)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open database: %s", profile.DSN)
	}

	// The pipeline is a handful of long-running workers, not a request
	// flood; a small pool keeps the database quiet.
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(2 * time.Hour)
	db.SetConnMaxIdleTime(15 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, errors.Wrap(err, "failed to ping database")
	}

	var driver store.Driver = &DB{
		db:      db,
		profile: profile,
	}
	return driver, nil
}

func (d *DB) GetDB() *sql.DB {
	return d.db
}

func (d *DB) Close() error {
	return d.db.Close()
}

func (d *DB) IsInitialized(ctx context.Context) (bool, error) {
	var exists bool
	err := d.db.QueryRowContext(ctx, "SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_catalog = current_database() AND table_name = 'post' AND table_type = 'BASE TABLE')").Scan(&exists)
	if err != nil {
		return false, errors.Wrap(err, "failed to check if database is initialized")
	}
	return exists, nil
}

// Migrate applies the schema. pgvector columns are fixed-width, so the
// embedding column dimension is resolved from the configured provider.
func (d *DB) Migrate(ctx context.Context) error {
	dimensions := ai.NewEmbeddingConfigFromProfile(d.profile).Dimensions
	if dimensions <= 0 {
		return errors.Errorf("invalid embedding dimensions: %d", dimensions)
	}
	stmt := fmt.Sprintf(schema, dimensions)
	if _, err := d.db.ExecContext(ctx, stmt); err != nil {
		return errors.Wrap(err, "failed to apply schema")
	}
	return nil
}
