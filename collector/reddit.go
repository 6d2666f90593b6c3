package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"

	"github.com/needscoop/needscoop/analysis/signal"
	"github.com/needscoop/needscoop/internal/profile"
	"github.com/needscoop/needscoop/internal/textutil"
	"github.com/needscoop/needscoop/store"
)

// DefaultSubreddits focus on founders and freelancers airing problems.
var DefaultSubreddits = []string{
	"Entrepreneur",
	"smallbusiness",
	"startups",
	"SaaS",
	"indiehackers",
	"microsaas",
	"SideProject",
	"freelance",
}

const (
	redditPublicBaseURL = "https://www.reddit.com"
	redditOAuthBaseURL  = "https://oauth.reddit.com"
	redditTokenURL      = "https://www.reddit.com/api/v1/access_token"
)

// RedditCollector fetches subreddit listings over the JSON API. With OAuth
// credentials it talks to the authenticated endpoint; without them it falls
// back to the public listings, which reddit serves with tighter limits.
type RedditCollector struct {
	baseURL    string
	userAgent  string
	match      signal.MatchFunc
	httpClient *http.Client
	oauth      *clientcredentials.Config
	limiter    *rate.Limiter
}

// NewRedditCollector creates a collector configured from the profile. A nil
// matcher collects every post.
func NewRedditCollector(p *profile.Profile, match signal.MatchFunc) *RedditCollector {
	c := &RedditCollector{
		baseURL:    redditPublicBaseURL,
		userAgent:  p.RedditUserAgent,
		match:      match,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		// Reddit allows one request per second for unauthenticated
		// clients; staying at that pace keeps the OAuth path polite too.
		limiter: rate.NewLimiter(rate.Every(time.Second), 1),
	}
	if p.HasRedditAuth() {
		c.baseURL = redditOAuthBaseURL
		c.oauth = &clientcredentials.Config{
			ClientID:     p.RedditClientID,
			ClientSecret: p.RedditClientSecret,
			TokenURL:     redditTokenURL,
		}
	}
	return c
}

func (c *RedditCollector) Source() string {
	return store.SourceReddit
}

type redditListing struct {
	Data struct {
		Children []redditChild `json:"children"`
	} `json:"data"`
}

type redditChild struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

type redditPost struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Title         string  `json:"title"`
	SelfText      string  `json:"selftext"`
	Author        string  `json:"author"`
	CreatedUTC    float64 `json:"created_utc"`
	Score         int32   `json:"score"`
	NumComments   int32   `json:"num_comments"`
	NumCrossposts int32   `json:"num_crossposts"`
	Permalink     string  `json:"permalink"`
	Stickied      bool    `json:"stickied"`
}

// Collect fetches one listing page per subreddit and handles the posts that
// pass the score gate and carry a signal.
func (c *RedditCollector) Collect(ctx context.Context, opts Options, handle HandleFunc) error {
	ctx, cancel := withDuration(ctx, opts.Duration)
	defer cancel()

	subreddits := opts.Subreddits
	if len(subreddits) == 0 {
		subreddits = DefaultSubreddits
	}
	sort := opts.Sort
	switch sort {
	case "hot", "new", "top", "rising":
	default:
		sort = "hot"
	}
	perPage := 100
	if opts.Limit > 0 && opts.Limit < perPage {
		perPage = opts.Limit
	}

	httpClient := c.client(ctx)
	collected := 0
	for _, subreddit := range subreddits {
		if ctx.Err() != nil {
			slog.Info("reddit collection stopped", "collected", collected)
			return nil
		}

		listing, err := c.fetchListing(ctx, httpClient, subreddit, sort, perPage)
		if err != nil {
			if ctx.Err() != nil {
				slog.Info("reddit collection stopped", "collected", collected)
				return nil
			}
			slog.Error("failed to fetch subreddit", "subreddit", subreddit, "error", err)
			continue
		}

		for _, child := range listing.Data.Children {
			post := c.parseChild(child, opts.MinScore)
			if post == nil {
				continue
			}
			if err := handle(ctx, post); err != nil {
				return err
			}

			collected++
			if opts.Limit > 0 && collected >= opts.Limit {
				slog.Info("reddit collection stopped", "collected", collected)
				return nil
			}
		}
	}

	slog.Info("reddit collection complete", "collected", collected)
	return nil
}

// client returns the HTTP client for this run. With OAuth configured the
// token transport wraps the base client.
func (c *RedditCollector) client(ctx context.Context) *http.Client {
	if c.oauth == nil {
		return c.httpClient
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	return c.oauth.Client(ctx)
}

func (c *RedditCollector) fetchListing(ctx context.Context, httpClient *http.Client, subreddit, sort string, limit int) (*redditListing, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/r/%s/%s.json?limit=%d&raw_json=1", c.baseURL, subreddit, sort, limit)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build listing request")
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fetch r/%s", subreddit)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, errors.Errorf("r/%s returned status %d: %s", subreddit, resp.StatusCode, body)
	}

	var listing redditListing
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		return nil, errors.Wrapf(err, "failed to decode r/%s listing", subreddit)
	}
	return &listing, nil
}

// parseChild turns one listing child into a post, or nil when the child is
// not a submission, fails the gates, or carries no signal.
func (c *RedditCollector) parseChild(child redditChild, minScore int) *store.Post {
	if child.Kind != "t3" {
		return nil
	}

	var data redditPost
	if err := json.Unmarshal(child.Data, &data); err != nil {
		slog.Debug("skipping malformed listing child", "error", err)
		return nil
	}
	if data.Stickied {
		return nil
	}
	if data.Score < int32(minScore) {
		return nil
	}

	text := data.Title
	if data.SelfText != "" && data.SelfText != "[removed]" && data.SelfText != "[deleted]" {
		text = data.Title + "\n\n" + textutil.StripMarkdown(data.SelfText)
	}
	if text == "" {
		return nil
	}

	var signalType string
	var matches []string
	if c.match != nil {
		signalType, matches = c.match(text)
		if signalType == "" {
			return nil
		}
	}

	sourceUID := data.Name
	if sourceUID == "" {
		sourceUID = "t3_" + data.ID
	}
	author := data.Author
	if author == "" {
		author = "[deleted]"
	}

	return &store.Post{
		Source:        store.SourceReddit,
		SourceUID:     sourceUID,
		AuthorID:      author,
		Text:          text,
		Language:      "en",
		URI:           "https://reddit.com" + data.Permalink,
		Metadata:      string(child.Data),
		CreatedTs:     int64(data.CreatedUTC),
		CollectedTs:   time.Now().Unix(),
		Likes:         data.Score,
		Reposts:       data.NumCrossposts,
		Replies:       data.NumComments,
		SignalType:    signalType,
		SignalMatches: int32(len(matches)),
	}
}
