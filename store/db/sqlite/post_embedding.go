package sqlite

import (
	"context"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/needscoop/needscoop/plugin/ai"
	"github.com/needscoop/needscoop/store"
)

// UpsertPostEmbedding inserts or updates a post embedding.
func (d *DB) UpsertPostEmbedding(ctx context.Context, embedding *store.PostEmbedding) (*store.PostEmbedding, error) {
	stmt := `
		INSERT INTO post_embedding (post_id, model, embedding, created_ts, updated_ts)
		VALUES (` + placeholders(5) + `)
		ON CONFLICT (post_id, model)
		DO UPDATE SET
			embedding = EXCLUDED.embedding,
			updated_ts = EXCLUDED.updated_ts
		RETURNING id, created_ts, updated_ts
	`
	err := d.db.QueryRowContext(ctx, stmt,
		embedding.PostID,
		embedding.Model,
		vectorToBlob(embedding.Embedding),
		embedding.CreatedTs,
		embedding.UpdatedTs,
	).Scan(&embedding.ID, &embedding.CreatedTs, &embedding.UpdatedTs)
	if err != nil {
		return nil, errors.Wrap(err, "failed to upsert post embedding")
	}
	return embedding, nil
}

// ListPostEmbeddings lists post embeddings ordered by post id.
func (d *DB) ListPostEmbeddings(ctx context.Context, find *store.FindPostEmbedding) ([]*store.PostEmbedding, error) {
	where, args := []string{"1 = 1"}, []any{}
	if find.PostID != nil {
		where, args = append(where, "post_id = "+placeholder(len(args)+1)), append(args, *find.PostID)
	}
	if find.Model != nil {
		where, args = append(where, "model = "+placeholder(len(args)+1)), append(args, *find.Model)
	}

	query := `
		SELECT id, post_id, model, embedding, created_ts, updated_ts
		FROM post_embedding
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY post_id ASC
	`
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list post embeddings")
	}
	defer rows.Close()

	list := []*store.PostEmbedding{}
	for rows.Next() {
		var embedding store.PostEmbedding
		var blob []byte
		err := rows.Scan(
			&embedding.ID,
			&embedding.PostID,
			&embedding.Model,
			&blob,
			&embedding.CreatedTs,
			&embedding.UpdatedTs,
		)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan post embedding")
		}
		if embedding.Embedding, err = vectorFromBlob(blob); err != nil {
			return nil, err
		}
		list = append(list, &embedding)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}

// FindPostsWithoutEmbedding finds posts that don't have embeddings for the
// specified model.
func (d *DB) FindPostsWithoutEmbedding(ctx context.Context, find *store.FindPostsWithoutEmbedding) ([]*store.Post, error) {
	limit := find.Limit
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT ` + prefixedPostFields("p") + `
		FROM post p
		LEFT JOIN post_embedding e ON p.id = e.post_id AND e.model = ?
		WHERE e.id IS NULL
			AND LENGTH(p.text) > 0
		ORDER BY p.created_ts DESC, p.id DESC
		LIMIT ?
	`
	rows, err := d.db.QueryContext(ctx, query, find.Model, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to find posts without embedding")
	}
	defer rows.Close()

	list := []*store.Post{}
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, post)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}

// VectorSearch performs vector similarity search. SQLite has no vector
// index, so similarity is computed in process over all embeddings of the
// model. Fine for the corpus sizes the SQLite driver is meant for.
func (d *DB) VectorSearch(ctx context.Context, opts *store.VectorSearchOptions) ([]*store.PostWithScore, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 10
	}

	query := `
		SELECT ` + prefixedPostFields("p") + `, e.embedding
		FROM post p
		INNER JOIN post_embedding e ON p.id = e.post_id
		WHERE e.model = ?
		ORDER BY p.id ASC
	`
	rows, err := d.db.QueryContext(ctx, query, opts.Model)
	if err != nil {
		return nil, errors.Wrap(err, "failed to vector search")
	}
	defer rows.Close()

	results := []*store.PostWithScore{}
	for rows.Next() {
		var post store.Post
		var blob []byte
		err := rows.Scan(
			&post.ID,
			&post.Source,
			&post.SourceUID,
			&post.AuthorID,
			&post.Text,
			&post.Language,
			&post.URI,
			&post.Metadata,
			&post.CreatedTs,
			&post.CollectedTs,
			&post.Likes,
			&post.Reposts,
			&post.Replies,
			&post.SignalType,
			&post.SignalMatches,
			&post.ClusterID,
			&blob,
		)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan vector search result")
		}
		vector, err := vectorFromBlob(blob)
		if err != nil {
			return nil, err
		}
		results = append(results, &store.PostWithScore{
			Post:  &post,
			Score: float32(ai.CosineSimilarity(opts.Vector, vector)),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func prefixedPostFields(alias string) string {
	fields := strings.Split(postFields, ", ")
	for i, f := range fields {
		fields[i] = alias + "." + f
	}
	return strings.Join(fields, ", ")
}
