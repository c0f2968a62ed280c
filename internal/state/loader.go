package state

import (
	"context"
	"errors"
	"time"

	"classcal/internal/ics"
	appLog "classcal/internal/log"
	"classcal/internal/metrics"
)

var (
	// ErrNoFeedURL is returned by LoadURL when no feed URL is set.
	ErrNoFeedURL = errors.New("no feed URL configured")
	// ErrStaleLoad is returned when a newer load finished first and this
	// result was discarded.
	ErrStaleLoad = errors.New("load superseded by a newer one")
)

// FeedFetcher fetches a raw feed body; *ics.Fetcher implements it.
type FeedFetcher interface {
	FetchOne(ctx context.Context, src ics.Source) (ics.FetchResult, error)
}

// Loader runs feed loads against a Store.
type Loader struct {
	fetcher FeedFetcher
	store   *Store
	parser  ics.Parser
	now     func() time.Time
}

// NewLoader returns a Loader that parses floating times in loc.
func NewLoader(f FeedFetcher, store *Store, loc *time.Location) *Loader {
	return &Loader{
		fetcher: f,
		store:   store,
		parser:  ics.Parser{Location: loc},
		now:     time.Now,
	}
}

// LoadURL fetches and parses the feed at url and commits it. On a transport
// or HTTP failure the store is reset to empty and the error is returned.
// A load cancelled through ctx returns ctx's error and changes nothing.
func (l *Loader) LoadURL(ctx context.Context, url string) (*Snapshot, error) {
	if url == "" {
		return nil, ErrNoFeedURL
	}
	start := time.Now()
	ticket := l.store.BeginLoad()

	res, err := l.fetcher.FetchOne(ctx, ics.Source{ID: "feed", URL: url})
	if err != nil && cancelled(ctx, err) {
		// Abandoned by the caller (client gone, shutdown): the feed did not
		// fail, so the loaded events and the selection stay as they are.
		appLog.Info("feed load cancelled", "url", ics.RedactURL(url), "err", err)
		metrics.ObserveFeedLoad("url", "cancelled", start)
		return nil, err
	}
	if err != nil {
		appLog.Error("feed load failed", err, "url", ics.RedactURL(url))
		if l.store.Fail(ticket, err) {
			metrics.SetFeedEvents(0)
			metrics.ObserveFeedLoad("url", "error", start)
		} else {
			metrics.ObserveFeedLoad("url", "stale", start)
		}
		return nil, err
	}

	return l.commit(ticket, "url", ics.RedactURL(url), res.Body, start)
}

// LoadBytes parses an uploaded calendar file and commits it. name is only
// used to describe the source.
func (l *Loader) LoadBytes(name string, body []byte) (*Snapshot, error) {
	start := time.Now()
	ticket := l.store.BeginLoad()
	return l.commit(ticket, "import", "file:"+name, body, start)
}

func (l *Loader) commit(ticket Ticket, origin, source string, body []byte, start time.Time) (*Snapshot, error) {
	events, stats := l.parser.ParseWithStats(string(body))
	metrics.AddDroppedBlocks(stats.Dropped)

	if !l.store.Commit(ticket, events, source, l.now()) {
		appLog.Info("feed load discarded", "origin", origin, "source", source)
		metrics.ObserveFeedLoad(origin, "stale", start)
		return nil, ErrStaleLoad
	}

	snap := l.store.Snapshot()
	metrics.SetFeedEvents(len(snap.Events))
	metrics.ObserveFeedLoad(origin, "ok", start)
	appLog.Info("feed loaded",
		"origin", origin,
		"source", source,
		"blocks", stats.Blocks,
		"events", stats.Events,
		"dropped", stats.Dropped,
		"courses", len(snap.Courses),
	)
	return snap, nil
}

func cancelled(ctx context.Context, err error) bool {
	if ctx.Err() == nil {
		return false
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
