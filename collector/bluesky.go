package collector

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/needscoop/needscoop/analysis/signal"
	"github.com/needscoop/needscoop/store"
)

const postCollection = "app.bsky.feed.post"

// BlueskyCollector streams post create events from a jetstream endpoint.
// Jetstream re-serves the AT Protocol firehose as JSON over websocket, so
// no CAR decoding happens on our side.
type BlueskyCollector struct {
	endpoint string
	match    signal.MatchFunc
}

// NewBlueskyCollector creates a collector against the given jetstream
// endpoint. A nil matcher collects every post.
func NewBlueskyCollector(endpoint string, match signal.MatchFunc) *BlueskyCollector {
	return &BlueskyCollector{
		endpoint: endpoint,
		match:    match,
	}
}

func (c *BlueskyCollector) Source() string {
	return store.SourceBluesky
}

type jetstreamEvent struct {
	DID    string           `json:"did"`
	TimeUS int64            `json:"time_us"`
	Kind   string           `json:"kind"`
	Commit *jetstreamCommit `json:"commit"`
}

type jetstreamCommit struct {
	Operation  string          `json:"operation"`
	Collection string          `json:"collection"`
	RKey       string          `json:"rkey"`
	CID        string          `json:"cid"`
	Record     json.RawMessage `json:"record"`
}

type blueskyPostRecord struct {
	Text      string   `json:"text"`
	CreatedAt string   `json:"createdAt"`
	Langs     []string `json:"langs"`
}

// Collect dials the jetstream endpoint and handles post create events until
// a stop condition is hit.
func (c *BlueskyCollector) Collect(ctx context.Context, opts Options, handle HandleFunc) error {
	ctx, cancel := withDuration(ctx, opts.Duration)
	defer cancel()

	subscribeURL, err := c.subscribeURL()
	if err != nil {
		return err
	}

	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = 30 * time.Second
	conn, resp, err := dialer.DialContext(ctx, subscribeURL, nil)
	if err != nil {
		if resp != nil {
			return errors.Wrapf(err, "failed to connect to jetstream (status %d)", resp.StatusCode)
		}
		return errors.Wrap(err, "failed to connect to jetstream")
	}
	defer conn.Close()

	conn.SetReadLimit(1 << 20)

	// A blocked read does not notice context cancellation; closing the
	// connection unblocks it.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	slog.Info("bluesky collection started", "endpoint", subscribeURL)
	collected := 0
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				slog.Info("bluesky collection stopped", "collected", collected)
				return nil
			}
			return errors.Wrap(err, "failed to read jetstream event")
		}

		post := c.parseEvent(data)
		if post == nil {
			continue
		}
		if err := handle(ctx, post); err != nil {
			return err
		}

		collected++
		if opts.Limit > 0 && collected >= opts.Limit {
			slog.Info("bluesky collection stopped", "collected", collected)
			return nil
		}
	}
}

func (c *BlueskyCollector) subscribeURL() (string, error) {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return "", errors.Wrapf(err, "invalid jetstream endpoint %q", c.endpoint)
	}
	query := u.Query()
	query.Set("wantedCollections", postCollection)
	u.RawQuery = query.Encode()
	return u.String(), nil
}

// parseEvent turns one jetstream event into a post, or nil when the event
// is not a post create or the text carries no signal.
func (c *BlueskyCollector) parseEvent(data []byte) *store.Post {
	var event jetstreamEvent
	if err := json.Unmarshal(data, &event); err != nil {
		slog.Debug("skipping malformed jetstream event", "error", err)
		return nil
	}
	if event.Kind != "commit" || event.Commit == nil {
		return nil
	}
	commit := event.Commit
	if commit.Operation != "create" || commit.Collection != postCollection {
		return nil
	}

	var record blueskyPostRecord
	if err := json.Unmarshal(commit.Record, &record); err != nil {
		slog.Debug("skipping malformed post record", "error", err)
		return nil
	}
	if record.Text == "" || commit.CID == "" {
		return nil
	}

	var signalType string
	var matches []string
	if c.match != nil {
		signalType, matches = c.match(record.Text)
		if signalType == "" {
			return nil
		}
	}

	createdTs := time.Now().Unix()
	if t, err := time.Parse(time.RFC3339, record.CreatedAt); err == nil {
		createdTs = t.Unix()
	}

	language := ""
	if len(record.Langs) > 0 {
		language = record.Langs[0]
	}

	return &store.Post{
		Source:        store.SourceBluesky,
		SourceUID:     commit.CID,
		AuthorID:      event.DID,
		Text:          record.Text,
		Language:      language,
		URI:           "at://" + event.DID + "/" + postCollection + "/" + commit.RKey,
		Metadata:      string(commit.Record),
		CreatedTs:     createdTs,
		CollectedTs:   time.Now().Unix(),
		SignalType:    signalType,
		SignalMatches: int32(len(matches)),
	}
}
