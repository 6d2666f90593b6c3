package test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/needscoop/needscoop/store"
)

func newTestPost(source, uid, signalType string, createdTs int64) *store.Post {
	return &store.Post{
		Source:        source,
		SourceUID:     uid,
		AuthorID:      "author-" + uid,
		Text:          "looking for someone to fix my sink",
		Language:      "en",
		URI:           "https://example.com/" + uid,
		Metadata:      "{}",
		CreatedTs:     createdTs,
		CollectedTs:   createdTs + 5,
		Likes:         1,
		SignalType:    signalType,
		SignalMatches: 1,
	}
}

func TestPostStore(t *testing.T) {
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)

	created, err := ts.CreatePost(ctx, newTestPost(store.SourceBluesky, "at://post/1", "seeking_recommendation", 100))
	require.NoError(t, err)
	require.NotZero(t, created.ID)
	require.Equal(t, store.NoCluster, created.ClusterID)

	// Get by id round-trips every field.
	found, err := ts.GetPost(ctx, &store.FindPost{ID: &created.ID})
	require.NoError(t, err)
	require.NotNil(t, found)
	require.Equal(t, created.ID, found.ID)
	require.Equal(t, store.SourceBluesky, found.Source)
	require.Equal(t, "at://post/1", found.SourceUID)
	require.Equal(t, "author-at://post/1", found.AuthorID)
	require.Equal(t, "looking for someone to fix my sink", found.Text)
	require.Equal(t, "en", found.Language)
	require.Equal(t, int64(100), found.CreatedTs)
	require.Equal(t, int64(105), found.CollectedTs)
	require.Equal(t, int32(1), found.Likes)
	require.Equal(t, "seeking_recommendation", found.SignalType)
	require.Equal(t, int32(1), found.SignalMatches)

	missingID := int32(9999)
	missing, err := ts.GetPost(ctx, &store.FindPost{ID: &missingID})
	require.NoError(t, err)
	require.Nil(t, missing)
}

func TestUpsertPost(t *testing.T) {
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)

	first, err := ts.UpsertPost(ctx, newTestPost(store.SourceReddit, "t3_abc", "pain_point", 100))
	require.NoError(t, err)
	require.NotZero(t, first.ID)
	require.Equal(t, int64(105), first.CollectedTs)
	require.Equal(t, store.NoCluster, first.ClusterID)

	err = ts.UpdateClusterIDs(ctx, []store.ClusterAssignment{{PostID: first.ID, ClusterID: 3}})
	require.NoError(t, err)

	// Seeing the same post again refreshes engagement but keeps the
	// cluster assignment and the first collection time.
	update := newTestPost(store.SourceReddit, "t3_abc", "pain_point", 100)
	update.Text = "looking for someone to fix my sink, still broken"
	update.Likes = 42
	update.Replies = 7
	update.CollectedTs = 900

	second, err := ts.UpsertPost(ctx, update)
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, int32(3), second.ClusterID)
	require.Equal(t, int64(105), second.CollectedTs)

	found, err := ts.GetPost(ctx, &store.FindPost{ID: &first.ID})
	require.NoError(t, err)
	require.Equal(t, "looking for someone to fix my sink, still broken", found.Text)
	require.Equal(t, int32(42), found.Likes)
	require.Equal(t, int32(7), found.Replies)
	require.Equal(t, int32(3), found.ClusterID)

	count, err := ts.CountPosts(ctx, &store.FindPost{})
	require.NoError(t, err)
	require.Equal(t, int64(1), count)
}

func TestListPosts(t *testing.T) {
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)

	_, err := ts.CreatePost(ctx, newTestPost(store.SourceBluesky, "at://post/1", "seeking_recommendation", 100))
	require.NoError(t, err)
	_, err = ts.CreatePost(ctx, newTestPost(store.SourceReddit, "t3_a", "pain_point", 200))
	require.NoError(t, err)
	_, err = ts.CreatePost(ctx, newTestPost(store.SourceBluesky, "at://post/2", "pain_point", 300))
	require.NoError(t, err)

	// Newest first.
	all, err := ts.ListPosts(ctx, &store.FindPost{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, "at://post/2", all[0].SourceUID)
	require.Equal(t, "t3_a", all[1].SourceUID)
	require.Equal(t, "at://post/1", all[2].SourceUID)

	source := store.SourceBluesky
	bluesky, err := ts.ListPosts(ctx, &store.FindPost{Source: &source})
	require.NoError(t, err)
	require.Len(t, bluesky, 2)

	signalType := "pain_point"
	painPoints, err := ts.ListPosts(ctx, &store.FindPost{SignalType: &signalType})
	require.NoError(t, err)
	require.Len(t, painPoints, 2)

	after := int64(150)
	recent, err := ts.ListPosts(ctx, &store.FindPost{CreatedTsAfter: &after})
	require.NoError(t, err)
	require.Len(t, recent, 2)

	limit, offset := 1, 1
	page, err := ts.ListPosts(ctx, &store.FindPost{Limit: &limit, Offset: &offset})
	require.NoError(t, err)
	require.Len(t, page, 1)
	require.Equal(t, "t3_a", page[0].SourceUID)
}

func TestUpdateClusterIDs(t *testing.T) {
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)

	posts := make([]*store.Post, 0, 3)
	for i, uid := range []string{"at://post/1", "at://post/2", "at://post/3"} {
		post, err := ts.CreatePost(ctx, newTestPost(store.SourceBluesky, uid, "pain_point", int64(100+i)))
		require.NoError(t, err)
		posts = append(posts, post)
	}

	// No assignments is a no-op.
	require.NoError(t, ts.UpdateClusterIDs(ctx, nil))

	err := ts.UpdateClusterIDs(ctx, []store.ClusterAssignment{
		{PostID: posts[0].ID, ClusterID: 0},
		{PostID: posts[1].ID, ClusterID: 0},
		{PostID: posts[2].ID, ClusterID: store.NoCluster},
	})
	require.NoError(t, err)

	clusterID := int32(0)
	clustered, err := ts.ListPosts(ctx, &store.FindPost{ClusterID: &clusterID})
	require.NoError(t, err)
	require.Len(t, clustered, 2)

	noise := store.NoCluster
	unclustered, err := ts.ListPosts(ctx, &store.FindPost{ClusterID: &noise})
	require.NoError(t, err)
	require.Len(t, unclustered, 1)
	require.Equal(t, posts[2].ID, unclustered[0].ID)
}

func TestCountPostsBySignalType(t *testing.T) {
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)

	_, err := ts.UpsertPost(ctx, newTestPost(store.SourceBluesky, "at://post/1", "pain_point", 100))
	require.NoError(t, err)
	_, err = ts.UpsertPost(ctx, newTestPost(store.SourceBluesky, "at://post/2", "pain_point", 200))
	require.NoError(t, err)
	_, err = ts.UpsertPost(ctx, newTestPost(store.SourceReddit, "t3_a", "seeking_recommendation", 300))
	require.NoError(t, err)

	counts, err := ts.CountPostsBySignalType(ctx)
	require.NoError(t, err)
	require.Equal(t, map[string]int64{
		"pain_point":             2,
		"seeking_recommendation": 1,
	}, counts)

	// A new post invalidates the cached counts.
	_, err = ts.UpsertPost(ctx, newTestPost(store.SourceReddit, "t3_b", "seeking_recommendation", 400))
	require.NoError(t, err)

	counts, err = ts.CountPostsBySignalType(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(2), counts["seeking_recommendation"])
}
