package registryclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Masterminds/semver/v3"

	"github.com/dertin/cargo-cooldown/internal/cooldown"
	"github.com/dertin/cargo-cooldown/internal/registrycache"
)

func TestFetchParsesVersions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"versions":[
			{"num":"1.2.0","yanked":false,"created_at":"2026-07-30T00:00:00Z"},
			{"num":"1.1.0","yanked":true,"created_at":"2026-07-20T00:00:00Z"}
		]}`))
	}))
	defer srv.Close()

	cache, err := registrycache.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	client := New(srv.URL, cache, time.Hour, 2, false)

	now := time.Now()
	vi, err := client.Fetch(context.Background(), "serde", now)
	if err != nil {
		t.Fatal(err)
	}
	if len(vi.Versions) != 2 {
		t.Fatalf("want 2 versions, got %d", len(vi.Versions))
	}

	if cached, ok := cache.Get("serde"); !ok || len(cached.Versions) != 2 {
		t.Error("fetch should populate the cache")
	}
}

func TestFetchSkipsNetworkOnFreshCache(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Write([]byte(`{"versions":[]}`))
	}))
	defer srv.Close()

	cache, err := registrycache.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	client := New(srv.URL, cache, time.Hour, 2, false)

	now := time.Now()
	if _, err := client.Fetch(context.Background(), "serde", now); err != nil {
		t.Fatal(err)
	}
	if _, err := client.Fetch(context.Background(), "serde", now); err != nil {
		t.Fatal(err)
	}
	if atomic.LoadInt32(&hits) != 1 {
		t.Errorf("want exactly one network hit, got %d", hits)
	}
}

func TestFetchRetriesOn5xxThenSucceeds(t *testing.T) {
	var attempt int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempt, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"versions":[]}`))
	}))
	defer srv.Close()

	cache, err := registrycache.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	client := New(srv.URL, cache, time.Hour, 2, false)

	if _, err := client.Fetch(context.Background(), "serde", time.Now()); err != nil {
		t.Fatalf("expected eventual success after retry, got %v", err)
	}
	if atomic.LoadInt32(&attempt) != 2 {
		t.Errorf("want 2 attempts, got %d", attempt)
	}
}

func TestFetchNonRetryable4xxFailsFast(t *testing.T) {
	var attempt int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempt, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	cache, err := registrycache.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	client := New(srv.URL, cache, time.Hour, 5, false)

	if _, err := client.Fetch(context.Background(), "serde", time.Now()); err == nil {
		t.Fatal("want error on 404")
	}
	if atomic.LoadInt32(&attempt) != 1 {
		t.Errorf("404 must not be retried, got %d attempts", attempt)
	}
}

func TestFetchOfflineFallsBackToStaleCache(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	cache, err := registrycache.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	v, _ := semver.NewVersion("1.0.0")
	stale := time.Now().Add(-48 * time.Hour)
	if err := cache.Put(cooldown.VersionIndex{
		Name:      "serde",
		WrittenAt: stale,
		Versions:  []cooldown.VersionRecord{{Version: v, PublicationTime: stale}},
	}); err != nil {
		t.Fatal(err)
	}

	client := New(srv.URL, cache, time.Hour, 0, true)
	vi, err := client.Fetch(context.Background(), "serde", time.Now())
	if err != nil {
		t.Fatalf("want offline fallback to succeed, got %v", err)
	}
	if len(vi.Versions) != 1 {
		t.Fatalf("want the stale cached version, got %v", vi)
	}
}

func TestFetchOfflineWithNoCacheFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	cache, err := registrycache.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	client := New(srv.URL, cache, time.Hour, 0, true)
	if _, err := client.Fetch(context.Background(), "serde", time.Now()); err == nil {
		t.Fatal("want error when offline and cache is empty")
	}
}

func TestNewClampsRetries(t *testing.T) {
	c := New("http://example.com", nil, time.Hour, 99, false)
	if c.Retries != 8 {
		t.Errorf("want retries clamped to 8, got %d", c.Retries)
	}
	c2 := New("http://example.com", nil, time.Hour, -5, false)
	if c2.Retries != 0 {
		t.Errorf("want retries clamped to 0, got %d", c2.Retries)
	}
}
