package store

import (
	"context"
	"database/sql"
)

// Driver is an interface for store driver.
// It contains all methods that store database driver should implement.
type Driver interface {
	GetDB() *sql.DB
	Close() error

	IsInitialized(ctx context.Context) (bool, error)
	Migrate(ctx context.Context) error

	// Post model related methods.
	CreatePost(ctx context.Context, create *Post) (*Post, error)
	UpsertPost(ctx context.Context, upsert *Post) (*Post, error)
	ListPosts(ctx context.Context, find *FindPost) ([]*Post, error)
	UpdateClusterIDs(ctx context.Context, assignments []ClusterAssignment) error
	CountPosts(ctx context.Context, find *FindPost) (int64, error)
	CountPostsBySignalType(ctx context.Context) (map[string]int64, error)

	// PostEmbedding model related methods.
	UpsertPostEmbedding(ctx context.Context, embedding *PostEmbedding) (*PostEmbedding, error)
	ListPostEmbeddings(ctx context.Context, find *FindPostEmbedding) ([]*PostEmbedding, error)
	FindPostsWithoutEmbedding(ctx context.Context, find *FindPostsWithoutEmbedding) ([]*Post, error)
	VectorSearch(ctx context.Context, opts *VectorSearchOptions) ([]*PostWithScore, error)
}
