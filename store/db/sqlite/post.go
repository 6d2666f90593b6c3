package sqlite

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"github.com/needscoop/needscoop/store"
)

const postFields = "id, source, source_uid, author_id, text, language, uri, metadata, created_ts, collected_ts, likes, reposts, replies, signal_type, signal_matches, cluster_id"

// CreatePost inserts a post.
func (d *DB) CreatePost(ctx context.Context, create *store.Post) (*store.Post, error) {
	args := []any{
		create.Source,
		create.SourceUID,
		create.AuthorID,
		create.Text,
		create.Language,
		create.URI,
		create.Metadata,
		create.CreatedTs,
		create.CollectedTs,
		create.Likes,
		create.Reposts,
		create.Replies,
		create.SignalType,
		create.SignalMatches,
		store.NoCluster,
	}
	stmt := `
		INSERT INTO post (source, source_uid, author_id, text, language, uri, metadata, created_ts, collected_ts, likes, reposts, replies, signal_type, signal_matches, cluster_id)
		VALUES (` + placeholders(len(args)) + `)
		RETURNING id, cluster_id
	`
	if err := d.db.QueryRowContext(ctx, stmt, args...).Scan(&create.ID, &create.ClusterID); err != nil {
		return nil, errors.Wrap(err, "failed to create post")
	}
	return create, nil
}

// UpsertPost inserts a post or refreshes the mutable fields of the existing
// row with the same (source, source_uid). The cluster assignment and first
// collection time are preserved across upserts.
func (d *DB) UpsertPost(ctx context.Context, upsert *store.Post) (*store.Post, error) {
	args := []any{
		upsert.Source,
		upsert.SourceUID,
		upsert.AuthorID,
		upsert.Text,
		upsert.Language,
		upsert.URI,
		upsert.Metadata,
		upsert.CreatedTs,
		upsert.CollectedTs,
		upsert.Likes,
		upsert.Reposts,
		upsert.Replies,
		upsert.SignalType,
		upsert.SignalMatches,
		store.NoCluster,
	}
	stmt := `
		INSERT INTO post (source, source_uid, author_id, text, language, uri, metadata, created_ts, collected_ts, likes, reposts, replies, signal_type, signal_matches, cluster_id)
		VALUES (` + placeholders(len(args)) + `)
		ON CONFLICT (source, source_uid)
		DO UPDATE SET
			text = EXCLUDED.text,
			metadata = EXCLUDED.metadata,
			likes = EXCLUDED.likes,
			reposts = EXCLUDED.reposts,
			replies = EXCLUDED.replies,
			signal_type = EXCLUDED.signal_type,
			signal_matches = EXCLUDED.signal_matches
		RETURNING id, collected_ts, cluster_id
	`
	if err := d.db.QueryRowContext(ctx, stmt, args...).Scan(&upsert.ID, &upsert.CollectedTs, &upsert.ClusterID); err != nil {
		return nil, errors.Wrap(err, "failed to upsert post")
	}
	return upsert, nil
}

func buildPostWhere(find *store.FindPost) ([]string, []any) {
	where, args := []string{"1 = 1"}, []any{}
	if find.ID != nil {
		where, args = append(where, "id = "+placeholder(len(args)+1)), append(args, *find.ID)
	}
	if find.Source != nil {
		where, args = append(where, "source = "+placeholder(len(args)+1)), append(args, *find.Source)
	}
	if find.SourceUID != nil {
		where, args = append(where, "source_uid = "+placeholder(len(args)+1)), append(args, *find.SourceUID)
	}
	if find.SignalType != nil {
		where, args = append(where, "signal_type = "+placeholder(len(args)+1)), append(args, *find.SignalType)
	}
	if find.ClusterID != nil {
		where, args = append(where, "cluster_id = "+placeholder(len(args)+1)), append(args, *find.ClusterID)
	}
	if find.CreatedTsAfter != nil {
		where, args = append(where, "created_ts > "+placeholder(len(args)+1)), append(args, *find.CreatedTsAfter)
	}
	return where, args
}

// ListPosts lists posts matching find, newest first.
func (d *DB) ListPosts(ctx context.Context, find *store.FindPost) ([]*store.Post, error) {
	where, args := buildPostWhere(find)

	query := "SELECT " + postFields + " FROM post WHERE " + strings.Join(where, " AND ") + " ORDER BY created_ts DESC, id DESC"
	if find.Limit != nil {
		query += " LIMIT " + placeholder(len(args)+1)
		args = append(args, *find.Limit)
		if find.Offset != nil {
			query += " OFFSET " + placeholder(len(args)+1)
			args = append(args, *find.Offset)
		}
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list posts")
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

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPost(row rowScanner) (*store.Post, error) {
	var post store.Post
	err := row.Scan(
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
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to scan post")
	}
	return &post, nil
}

// UpdateClusterIDs applies cluster assignments in one transaction so a
// failed run never leaves the corpus half-relabeled.
func (d *DB) UpdateClusterIDs(ctx context.Context, assignments []store.ClusterAssignment) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	stmt := "UPDATE post SET cluster_id = ? WHERE id = ?"
	for _, a := range assignments {
		if _, err := tx.ExecContext(ctx, stmt, a.ClusterID, a.PostID); err != nil {
			return errors.Wrapf(err, "failed to update cluster id for post %d", a.PostID)
		}
	}
	return tx.Commit()
}

// CountPosts counts posts matching find.
func (d *DB) CountPosts(ctx context.Context, find *store.FindPost) (int64, error) {
	where, args := buildPostWhere(find)
	query := "SELECT COUNT(*) FROM post WHERE " + strings.Join(where, " AND ")

	var count int64
	if err := d.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, errors.Wrap(err, "failed to count posts")
	}
	return count, nil
}

// CountPostsBySignalType returns per-signal-type post counts.
func (d *DB) CountPostsBySignalType(ctx context.Context) (map[string]int64, error) {
	rows, err := d.db.QueryContext(ctx, "SELECT signal_type, COUNT(*) FROM post WHERE signal_type <> '' GROUP BY signal_type")
	if err != nil {
		return nil, errors.Wrap(err, "failed to count posts by signal type")
	}
	defer rows.Close()

	counts := map[string]int64{}
	for rows.Next() {
		var signalType string
		var count int64
		if err := rows.Scan(&signalType, &count); err != nil {
			return nil, errors.Wrap(err, "failed to scan signal type count")
		}
		counts[signalType] = count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return counts, nil
}
