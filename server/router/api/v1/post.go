package v1

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/needscoop/needscoop/store"
)

// Post is the API shape of one collected post. The raw source payload is
// kept out of responses.
type Post struct {
	ID            int32  `json:"id"`
	Source        string `json:"source"`
	SourceUID     string `json:"source_uid"`
	AuthorID      string `json:"author_id"`
	Text          string `json:"text"`
	Language      string `json:"language,omitempty"`
	URI           string `json:"uri"`
	CreatedTs     int64  `json:"created_ts"`
	CollectedTs   int64  `json:"collected_ts"`
	Likes         int32  `json:"likes"`
	Reposts       int32  `json:"reposts"`
	Replies       int32  `json:"replies"`
	SignalType    string `json:"signal_type"`
	SignalMatches int32  `json:"signal_matches"`
	ClusterID     int32  `json:"cluster_id"`
}

func convertPost(post *store.Post) *Post {
	return &Post{
		ID:            post.ID,
		Source:        post.Source,
		SourceUID:     post.SourceUID,
		AuthorID:      post.AuthorID,
		Text:          post.Text,
		Language:      post.Language,
		URI:           post.URI,
		CreatedTs:     post.CreatedTs,
		CollectedTs:   post.CollectedTs,
		Likes:         post.Likes,
		Reposts:       post.Reposts,
		Replies:       post.Replies,
		SignalType:    post.SignalType,
		SignalMatches: post.SignalMatches,
		ClusterID:     post.ClusterID,
	}
}

func convertPosts(posts []*store.Post) []*Post {
	converted := make([]*Post, len(posts))
	for i, post := range posts {
		converted[i] = convertPost(post)
	}
	return converted
}

// ListPosts serves one page of posts, newest first. The optional filter
// expression narrows the fetched page.
func (s *APIV1Service) ListPosts(c echo.Context) error {
	ctx := c.Request().Context()

	find := &store.FindPost{}
	if source := c.QueryParam("source"); source != "" {
		find.Source = &source
	}
	if signalType := c.QueryParam("signal_type"); signalType != "" {
		find.SignalType = &signalType
	}
	if raw := c.QueryParam("cluster_id"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 32)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid cluster_id").SetInternal(err)
		}
		clusterID := int32(parsed)
		find.ClusterID = &clusterID
	}

	limit, err := parseLimit(c.QueryParam("limit"), 50, 500)
	if err != nil {
		return err
	}
	find.Limit = &limit
	if raw := c.QueryParam("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid offset")
		}
		find.Offset = &offset
	}

	posts, err := s.Store.ListPosts(ctx, find)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list posts").SetInternal(err)
	}

	if expression := c.QueryParam("filter"); expression != "" {
		predicate, err := s.filter.Compile(expression)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		posts, err = predicate.Select(posts)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "failed to apply filter").SetInternal(err)
		}
	}

	return c.JSON(http.StatusOK, convertPosts(posts))
}

// SearchResult pairs a post with its similarity to the query.
type SearchResult struct {
	Post  *Post   `json:"post"`
	Score float32 `json:"score"`
}

// SearchPosts embeds the query text and serves the most similar posts.
func (s *APIV1Service) SearchPosts(c echo.Context) error {
	ctx := c.Request().Context()

	query := c.QueryParam("q")
	if query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "missing query parameter q")
	}
	limit, err := parseLimit(c.QueryParam("limit"), 10, 50)
	if err != nil {
		return err
	}

	vector, err := s.pipeline.Generate(ctx, query)
	if err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "embedding service unavailable").SetInternal(err)
	}

	results, err := s.Store.VectorSearch(ctx, &store.VectorSearchOptions{
		Vector: vector,
		Model:  s.model,
		Limit:  limit,
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "search failed").SetInternal(err)
	}

	converted := make([]*SearchResult, len(results))
	for i, result := range results {
		converted[i] = &SearchResult{
			Post:  convertPost(result.Post),
			Score: result.Score,
		}
	}
	return c.JSON(http.StatusOK, converted)
}

func parseLimit(raw string, def, max int) (int, error) {
	if raw == "" {
		return def, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid limit")
	}
	if limit > max {
		limit = max
	}
	return limit, nil
}
