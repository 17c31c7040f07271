// Package registryclient implements §4.2: fetching a package's version
// index from the registry HTTP API, with bounded retry, jitNews
// backoff, offline fallback, and request coalescing.
//
// Grounded on the teacher's internal/packagemanager/httpregistry.go
// (singleflight-coalesced fetches, doWithRetry backoff loop) adapted to
// the crates.io-style contract of SPEC_FULL.md §6, and on manager.go's
// ioConcurrency()-bounded fan-out pattern for the initial batch fetch
// described in §5.
package registryclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/dertin/cargo-cooldown/internal/cderrors"
	"github.com/dertin/cargo-cooldown/internal/cooldown"
	"github.com/dertin/cargo-cooldown/internal/registrycache"
)

// Client fetches version indexes from a crates.io-style registry API.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Cache      *registrycache.Cache
	TTL        time.Duration
	Retries    int
	OfflineOK  bool

	sf singleflight.Group
}

// New builds a Client. retries is clamped to [0,8] per §6.
func New(baseURL string, cache *registrycache.Cache, ttl time.Duration, retries int, offlineOK bool) *Client {
	if retries < 0 {
		retries = 0
	}
	if retries > 8 {
		retries = 8
	}
	return &Client{
		BaseURL:    strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
		Cache:      cache,
		TTL:        ttl,
		Retries:    retries,
		OfflineOK:  offlineOK,
	}
}

// crateResponse mirrors the registry HTTP contract of §6.
type crateResponse struct {
	Versions []struct {
		Num       string `json:"num"`
		Yanked    bool   `json:"yanked"`
		CreatedAt string `json:"created_at"`
	} `json:"versions"`
}

// Fetch returns the version index for name, using the cache when fresh
// and coalescing concurrent callers for the same name (§4.2 Caching
// interaction).
func (c *Client) Fetch(ctx context.Context, name string, now time.Time) (cooldown.VersionIndex, error) {
	if c.Cache != nil && c.Cache.IsFresh(name, c.TTL, now) {
		vi, _ := c.Cache.Get(name)
		return vi, nil
	}

	res, err, _ := c.sf.Do(name, func() (interface{}, error) {
		return c.fetchWithRetry(ctx, name, now)
	})
	if err != nil {
		if c.OfflineOK {
			if vi, ok := c.Cache.Get(name); ok {
				return vi, nil
			}
		}
		return cooldown.VersionIndex{}, err
	}
	return res.(cooldown.VersionIndex), nil
}

func (c *Client) fetchWithRetry(ctx context.Context, name string, now time.Time) (cooldown.VersionIndex, error) {
	var lastErr error
	attempts := 0
	for attempt := 0; attempt <= c.Retries; attempt++ {
		if attempt > 0 {
			if err := sleepBackoff(ctx, attempt); err != nil {
				return cooldown.VersionIndex{}, cderrors.Cancelled("registry fetch backoff")
			}
		}

		attempts++
		vi, retryable, err := c.fetchOnce(ctx, name, now)
		if err == nil {
			if c.Cache != nil {
				_ = c.Cache.Put(vi)
			}
			return vi, nil
		}
		lastErr = err
		if !retryable {
			break
		}
	}
	return cooldown.VersionIndex{}, cderrors.NetworkError(
		fmt.Sprintf("fetch failed after %d attempt(s): %v", attempts, lastErr),
		map[string]string{"name": name},
	)
}

func (c *Client) fetchOnce(ctx context.Context, name string, now time.Time) (cooldown.VersionIndex, bool, error) {
	url := fmt.Sprintf("%s/crates/%s", c.BaseURL, name)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return cooldown.VersionIndex{}, false, err
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return cooldown.VersionIndex{}, false, cderrors.Cancelled("registry fetch")
		}
		return cooldown.VersionIndex{}, true, err // connection failure: retryable
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return cooldown.VersionIndex{}, true, fmt.Errorf("429 rate limited")
	case resp.StatusCode >= 500:
		return cooldown.VersionIndex{}, true, fmt.Errorf("server error %d", resp.StatusCode)
	case resp.StatusCode >= 400:
		return cooldown.VersionIndex{}, false, fmt.Errorf("non-retryable status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return cooldown.VersionIndex{}, true, err
	}

	var cr crateResponse
	if err := json.Unmarshal(body, &cr); err != nil {
		return cooldown.VersionIndex{}, false, fmt.Errorf("unparsable registry response: %w", err)
	}

	vi := cooldown.VersionIndex{Name: name, WrittenAt: now}
	for _, v := range cr.Versions {
		ver, err := parseVersion(v.Num)
		if err != nil {
			continue
		}
		created, err := time.Parse(time.RFC3339, v.CreatedAt)
		if err != nil {
			continue
		}
		vi.Versions = append(vi.Versions, cooldown.VersionRecord{
			Version:         ver,
			PublicationTime: created,
			Yanked:          v.Yanked,
		})
	}
	return vi, false, nil
}

// sleepBackoff waits an exponential-with-jitter delay before the given
// retry attempt (1-indexed), honoring context cancellation (§4.2 Retry
// policy: "the first retry waits a small fixed base").
func sleepBackoff(ctx context.Context, attempt int) error {
	base := 200 * time.Millisecond
	delay := base * time.Duration(1<<uint(attempt-1))
	if delay > 10*time.Second {
		delay = 10 * time.Second
	}
	jitter := time.Duration(rand.Int63n(int64(delay) / 2))
	select {
	case <-time.After(delay + jitter):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WarmUp fetches every name in names concurrently, bounded by a small
// fixed fan-out, merging results into the cache before the caller
// classifies the graph (§5). Sized the way the teacher's
// ioConcurrency() sizes manager.go's fan-out: an env override, else
// GOMAXPROCS*4, clamped to a sane band.
func (c *Client) WarmUp(ctx context.Context, names []string, now time.Time) error {
	sem := make(chan struct{}, fanout())
	g, gctx := errgroup.WithContext(ctx)
	for _, name := range names {
		name := name
		g.Go(func() error {
			select {
			case sem <- struct{}{}:
			case <-gctx.Done():
				return gctx.Err()
			}
			defer func() { <-sem }()
			_, err := c.Fetch(gctx, name, now)
			return err
		})
	}
	return g.Wait()
}

func fanout() int {
	if raw := os.Getenv("CARGO_COOLDOWN_MAX_CONCURRENCY"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			if n > 64 {
				n = 64
			}
			return n
		}
	}
	n := runtime.GOMAXPROCS(0) * 4
	if n < 4 {
		n = 4
	}
	if n > 32 {
		n = 32
	}
	return n
}
