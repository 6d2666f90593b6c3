package store

import (
	"context"

	"github.com/pkg/errors"
)

// Post sources.
const (
	SourceBluesky = "bluesky"
	SourceReddit  = "reddit"
)

// NoCluster marks a post that no clustering run has assigned yet, or that
// the last run labeled as noise.
const NoCluster int32 = -1

// Post represents one collected social post together with its signal
// classification and cluster assignment.
type Post struct {
	ID int32

	// Collection fields.
	Source      string
	SourceUID   string // id within the source, e.g. AT URI or reddit fullname
	AuthorID    string
	Text        string
	Language    string
	URI         string
	Metadata    string // raw source payload, JSON
	CreatedTs   int64
	CollectedTs int64

	// Engagement counters at collection time.
	Likes   int32
	Reposts int32
	Replies int32

	// Analysis fields.
	SignalType    string
	SignalMatches int32
	ClusterID     int32
}

// FindPost is the find condition for posts.
type FindPost struct {
	ID         *int32
	Source     *string
	SourceUID  *string
	SignalType *string
	ClusterID  *int32

	CreatedTsAfter *int64

	Limit  *int
	Offset *int
}

// ClusterAssignment binds one post to the cluster id of the latest run.
type ClusterAssignment struct {
	PostID    int32
	ClusterID int32
}

// CreatePost inserts a post.
func (s *Store) CreatePost(ctx context.Context, create *Post) (*Post, error) {
	return s.driver.CreatePost(ctx, create)
}

// UpsertPost inserts a post, or refreshes the engagement counters and text
// of the existing row with the same source identity. Collectors see the
// same post repeatedly; identity is (source, source_uid).
func (s *Store) UpsertPost(ctx context.Context, upsert *Post) (*Post, error) {
	post, err := s.driver.UpsertPost(ctx, upsert)
	if err != nil {
		return nil, err
	}
	s.statsCache.Delete(ctx, statsCacheKey)
	return post, nil
}

// ListPosts lists posts matching find, newest first.
func (s *Store) ListPosts(ctx context.Context, find *FindPost) ([]*Post, error) {
	return s.driver.ListPosts(ctx, find)
}

// GetPost gets one post matching find.
func (s *Store) GetPost(ctx context.Context, find *FindPost) (*Post, error) {
	limit := 1
	find.Limit = &limit
	list, err := s.driver.ListPosts(ctx, find)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

// UpdateClusterIDs applies the given cluster assignments atomically.
func (s *Store) UpdateClusterIDs(ctx context.Context, assignments []ClusterAssignment) error {
	if len(assignments) == 0 {
		return nil
	}
	if err := s.driver.UpdateClusterIDs(ctx, assignments); err != nil {
		return errors.Wrap(err, "failed to update cluster assignments")
	}
	s.statsCache.Delete(ctx, statsCacheKey)
	return nil
}

// CountPosts counts posts matching find.
func (s *Store) CountPosts(ctx context.Context, find *FindPost) (int64, error) {
	return s.driver.CountPosts(ctx, find)
}

// CountPostsBySignalType returns post counts keyed by signal type. Results
// are cached briefly since the stats surface polls this.
func (s *Store) CountPostsBySignalType(ctx context.Context) (map[string]int64, error) {
	if cached, ok := s.statsCache.Get(ctx, statsCacheKey); ok {
		if counts, ok := cached.(map[string]int64); ok {
			return counts, nil
		}
	}
	counts, err := s.driver.CountPostsBySignalType(ctx)
	if err != nil {
		return nil, err
	}
	s.statsCache.Set(ctx, statsCacheKey, counts)
	return counts, nil
}
