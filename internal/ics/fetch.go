package ics

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	appLog "classcal/internal/log"
)

var (
	// ErrEmptyURL is returned when a source has no URL configured.
	ErrEmptyURL = errors.New("feed URL is empty")
	// ErrEmptyFeed is returned when the server answered with an empty body.
	ErrEmptyFeed = errors.New("feed response is empty")
)

// StatusError reports a non-2xx HTTP response from the feed server.
type StatusError struct {
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return "feed fetch failed: " + e.Status
}

// Source represents the ICS subscription being loaded.
type Source struct {
	// ID is an internal identifier used for logging and metrics labels.
	ID string
	// URL is the ICS endpoint.
	URL string
}

// FetchResult contains the outcome of fetching a single ICS source.
type FetchResult struct {
	Source    Source
	Body      []byte // ICS payload (either freshly fetched or from cache)
	FromCache bool   // true if we reused cached body due to 304
}

// cacheEntry holds HTTP cache metadata for a single ICS URL.
type cacheEntry struct {
	URL          string    `json:"url"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Fetcher fetches ICS feeds with conditional requests (ETag /
// Last-Modified). The disk cache only answers 304 responses; transport
// failures are never papered over with stale data.
type Fetcher struct {
	client   *http.Client
	cacheDir string
}

// NewFetcher creates a new ICS Fetcher.
//
// cacheDir is the base directory where per-URL cache subdirectories and
// metadata are stored. An empty cacheDir disables conditional requests.
func NewFetcher(cacheDir string) *Fetcher {
	return &Fetcher{
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
		cacheDir: cacheDir,
	}
}

// WithClient replaces the HTTP client; used by tests and custom transports.
func (f *Fetcher) WithClient(c *http.Client) *Fetcher {
	f.client = c
	return f
}

// FetchOne fetches a single ICS source. Network errors, non-2xx statuses
// and empty bodies are returned as errors; a 304 is served from the cache.
func (f *Fetcher) FetchOne(ctx context.Context, src Source) (FetchResult, error) {
	if src.URL == "" {
		return FetchResult{}, ErrEmptyURL
	}

	var (
		cache      feedCache
		meta       cacheEntry
		cachedBody []byte
	)
	if f.cacheDir != "" {
		cache = f.cacheFor(src.URL)
		meta, cachedBody = cache.load()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return FetchResult{}, fmt.Errorf("build feed request: %w", err)
	}
	req.Header.Set("Accept", "text/calendar, text/plain;q=0.9, */*;q=0.1")

	// Conditional headers only make sense when there is a body to fall back on.
	if len(cachedBody) > 0 {
		if meta.ETag != "" {
			req.Header.Set("If-None-Match", meta.ETag)
		}
		if meta.LastModified != "" {
			req.Header.Set("If-Modified-Since", meta.LastModified)
		}
	}

	appLog.Info("ics fetch start", "id", src.ID, "url", RedactURL(src.URL))

	resp, err := f.client.Do(req)
	if err != nil {
		return FetchResult{}, fmt.Errorf("fetch feed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotModified:
		if len(cachedBody) == 0 {
			return FetchResult{}, errors.New("received 304 Not Modified but no cached body available")
		}
		appLog.Info("ics fetch not modified; using cache", "id", src.ID, "url", RedactURL(src.URL))
		return FetchResult{Source: src, Body: cachedBody, FromCache: true}, nil

	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		body, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return FetchResult{}, fmt.Errorf("read feed body: %w", readErr)
		}
		if len(body) == 0 {
			return FetchResult{}, ErrEmptyFeed
		}

		if f.cacheDir != "" {
			entry := cacheEntry{
				URL:          src.URL,
				ETag:         resp.Header.Get("ETag"),
				LastModified: resp.Header.Get("Last-Modified"),
				UpdatedAt:    time.Now().UTC(),
			}
			if err := cache.store(entry, body); err != nil {
				// The fresh body is still good; only revalidation is lost.
				appLog.Error("ics cache save failed", err, "id", src.ID, "url", RedactURL(src.URL))
			}
		}

		appLog.Info("ics fetch success", "id", src.ID, "url", RedactURL(src.URL), "status", resp.StatusCode, "bytes", len(body))
		return FetchResult{Source: src, Body: body}, nil

	default:
		return FetchResult{}, &StatusError{Code: resp.StatusCode, Status: resp.Status}
	}
}

// feedCache is the on-disk entry for one URL: the last body plus the
// validators needed to revalidate it.
type feedCache struct {
	dir string
}

func (f *Fetcher) cacheFor(url string) feedCache {
	sum := sha256.Sum256([]byte(url))
	return feedCache{dir: filepath.Join(f.cacheDir, hex.EncodeToString(sum[:8]))}
}

// load returns the cached validators and body. Any read or decode problem
// yields an empty entry, which simply disables the conditional request.
func (c feedCache) load() (cacheEntry, []byte) {
	body, err := os.ReadFile(filepath.Join(c.dir, "body.ics"))
	if err != nil || len(body) == 0 {
		return cacheEntry{}, nil
	}
	var meta cacheEntry
	if raw, err := os.ReadFile(filepath.Join(c.dir, "meta.json")); err == nil {
		_ = json.Unmarshal(raw, &meta)
	}
	return meta, body
}

// store replaces body and meta, each atomically. The body goes first so
// the validators never describe a body that is not on disk.
func (c feedCache) store(meta cacheEntry, body []byte) error {
	if err := os.MkdirAll(c.dir, 0o700); err != nil {
		return fmt.Errorf("create feed cache dir: %w", err)
	}
	if err := writeFileAtomic(filepath.Join(c.dir, "body.ics"), body); err != nil {
		return err
	}
	data, err := json.MarshalIndent(&meta, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal feed cache meta: %w", err)
	}
	return writeFileAtomic(filepath.Join(c.dir, "meta.json"), data)
}

// writeFileAtomic writes data to path through a temp file and a rename,
// with 0600 permissions.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".cache-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp cache file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// RedactURL hides the path and query of a feed URL for logging; private
// calendar links usually carry a token there.
//
//	https://example.com/path/to/private.ics?token=abcd
//	-> https://example.com/...(redacted)
func RedactURL(u string) string {
	const redactedSuffix = "/...(redacted)"

	i := -1
	for idx := 0; idx+2 < len(u); idx++ {
		if u[idx:idx+3] == "://" {
			i = idx + 3
			break
		}
	}
	if i == -1 {
		return "ics://...(redacted)"
	}

	j := i
	for j < len(u) && u[j] != '/' && u[j] != '?' {
		j++
	}
	return u[:j] + redactedSuffix
}
