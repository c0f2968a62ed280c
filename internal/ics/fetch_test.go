package ics

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleFeed = "BEGIN:VCALENDAR\r\nBEGIN:VEVENT\r\nDTSTART:20240115T080000\r\nEND:VEVENT\r\nEND:VCALENDAR\r\n"

func TestFetchOne(t *testing.T) {
	ctx := context.Background()

	t.Run("empty url", func(t *testing.T) {
		_, err := NewFetcher("").FetchOne(ctx, Source{ID: "x"})
		assert.ErrorIs(t, err, ErrEmptyURL)
	})

	t.Run("ok body", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/calendar")
			_, _ = w.Write([]byte(sampleFeed))
		}))
		defer srv.Close()

		res, err := NewFetcher("").FetchOne(ctx, Source{ID: "feed", URL: srv.URL + "/cal.ics"})
		require.NoError(t, err)
		assert.Equal(t, sampleFeed, string(res.Body))
		assert.False(t, res.FromCache)
	})

	t.Run("non-2xx is a status error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "nope", http.StatusForbidden)
		}))
		defer srv.Close()

		_, err := NewFetcher("").FetchOne(ctx, Source{ID: "feed", URL: srv.URL})
		var statusErr *StatusError
		require.True(t, errors.As(err, &statusErr))
		assert.Equal(t, http.StatusForbidden, statusErr.Code)
	})

	t.Run("empty body", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		_, err := NewFetcher("").FetchOne(ctx, Source{ID: "feed", URL: srv.URL})
		assert.ErrorIs(t, err, ErrEmptyFeed)
	})

	t.Run("network error", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		_, err := NewFetcher("").FetchOne(ctx, Source{ID: "feed", URL: url})
		assert.Error(t, err)
	})

	t.Run("not modified is served from cache", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			if r.Header.Get("If-None-Match") == `"v1"` {
				w.WriteHeader(http.StatusNotModified)
				return
			}
			w.Header().Set("ETag", `"v1"`)
			_, _ = w.Write([]byte(sampleFeed))
		}))
		defer srv.Close()

		f := NewFetcher(t.TempDir())
		src := Source{ID: "feed", URL: srv.URL}

		first, err := f.FetchOne(ctx, src)
		require.NoError(t, err)
		assert.False(t, first.FromCache)

		second, err := f.FetchOne(ctx, src)
		require.NoError(t, err)
		assert.True(t, second.FromCache)
		assert.Equal(t, sampleFeed, string(second.Body))
		assert.Equal(t, int32(2), calls.Load())
	})

	t.Run("server error after cached success is still an error", func(t *testing.T) {
		var fail atomic.Bool
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if fail.Load() {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			_, _ = w.Write([]byte(sampleFeed))
		}))
		defer srv.Close()

		f := NewFetcher(t.TempDir())
		src := Source{ID: "feed", URL: srv.URL}
		_, err := f.FetchOne(ctx, src)
		require.NoError(t, err)

		fail.Store(true)
		_, err = f.FetchOne(ctx, src)
		var statusErr *StatusError
		assert.True(t, errors.As(err, &statusErr))
	})
}

func TestFeedCacheFiles(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("ETag", `"v7"`)
		w.Header().Set("Last-Modified", "Mon, 15 Jan 2024 08:00:00 GMT")
		_, _ = w.Write([]byte(sampleFeed))
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir())
	_, err := f.FetchOne(context.Background(), Source{ID: "feed", URL: srv.URL})
	require.NoError(t, err)

	dir := f.cacheFor(srv.URL).dir
	for _, name := range []string{"body.ics", "meta.json"} {
		info, err := os.Stat(filepath.Join(dir, name))
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm(), name)
	}

	raw, err := os.ReadFile(filepath.Join(dir, "meta.json"))
	require.NoError(t, err)
	var meta cacheEntry
	require.NoError(t, json.Unmarshal(raw, &meta))
	assert.Equal(t, `"v7"`, meta.ETag)
	assert.Equal(t, "Mon, 15 Jan 2024 08:00:00 GMT", meta.LastModified)
	assert.False(t, meta.UpdatedAt.IsZero())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2, "no temp files left behind")

	t.Run("unreadable meta only drops validators", func(t *testing.T) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "meta.json"), []byte("{broken"), 0o600))
		meta, body := f.cacheFor(srv.URL).load()
		assert.Empty(t, meta.ETag)
		assert.Equal(t, sampleFeed, string(body))
	})
}

func TestRedactURL(t *testing.T) {
	assert.Equal(t, "https://example.com/...(redacted)", RedactURL("https://example.com/path/private.ics?token=abc"))
	assert.Equal(t, "https://example.com/...(redacted)", RedactURL("https://example.com?token=abc"))
	assert.Equal(t, "ics://...(redacted)", RedactURL("not a url"))
}
