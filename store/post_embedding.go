package store

import "context"

// PostEmbedding represents the vector embedding of a post's text under one
// model. A post has at most one embedding per model.
type PostEmbedding struct {
	ID        int32
	PostID    int32
	Model     string
	Embedding []float32
	CreatedTs int64
	UpdatedTs int64
}

// FindPostEmbedding is the find condition for post embeddings.
type FindPostEmbedding struct {
	PostID *int32
	Model  *string
}

// PostWithScore is a vector search result with its similarity score.
type PostWithScore struct {
	Post  *Post
	Score float32 // cosine similarity, higher is more similar
}

// VectorSearchOptions are the options for vector similarity search.
type VectorSearchOptions struct {
	Vector []float32
	Model  string
	Limit  int // default 10
}

// FindPostsWithoutEmbedding selects posts missing an embedding for a model.
type FindPostsWithoutEmbedding struct {
	Model string
	Limit int // default 100
}

// UpsertPostEmbedding inserts or replaces a post's embedding for a model.
func (s *Store) UpsertPostEmbedding(ctx context.Context, embedding *PostEmbedding) (*PostEmbedding, error) {
	return s.driver.UpsertPostEmbedding(ctx, embedding)
}

// GetPostEmbedding gets the embedding of one post under one model.
func (s *Store) GetPostEmbedding(ctx context.Context, postID int32, model string) (*PostEmbedding, error) {
	list, err := s.driver.ListPostEmbeddings(ctx, &FindPostEmbedding{
		PostID: &postID,
		Model:  &model,
	})
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

// ListPostEmbeddings lists embeddings matching find, ordered by post id so
// downstream matrix construction is stable.
func (s *Store) ListPostEmbeddings(ctx context.Context, find *FindPostEmbedding) ([]*PostEmbedding, error) {
	return s.driver.ListPostEmbeddings(ctx, find)
}

// FindPostsWithoutEmbedding lists posts that still need an embedding.
func (s *Store) FindPostsWithoutEmbedding(ctx context.Context, find *FindPostsWithoutEmbedding) ([]*Post, error) {
	return s.driver.FindPostsWithoutEmbedding(ctx, find)
}

// VectorSearch returns the posts most similar to the query vector.
func (s *Store) VectorSearch(ctx context.Context, opts *VectorSearchOptions) ([]*PostWithScore, error) {
	return s.driver.VectorSearch(ctx, opts)
}
