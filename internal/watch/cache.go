package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kojimamizuki0512-dot/kaikatsu-darts-tg-koyeb/internal/metrics"
	"github.com/kojimamizuki0512-dot/kaikatsu-darts-tg-koyeb/internal/vocab"
	"golang.org/x/sync/singleflight"
)

// Fetcher loads the watched page and returns its visible text.
type Fetcher interface {
	Fetch(ctx context.Context) (string, error)
}

// refreshKey is the singleflight key. There is only one watched page,
// so every refresh shares it.
const refreshKey = "page"

// CacheConfig holds the knobs for a Cache.
type CacheConfig struct {
	Fetcher      Fetcher
	Vocab        *vocab.Holder
	Label        string
	TTL          time.Duration
	FetchTimeout time.Duration
	RetryBackoff time.Duration
}

// Cache serves the most recent observation of the watched page. Reads
// inside the TTL come from memory without touching the network. Expired
// or forced reads trigger a refresh, and concurrent refreshes collapse
// into a single fetch whose result every waiter shares. A failed
// refresh never overwrites the last good entry.
type Cache struct {
	fetcher Fetcher
	vocab   *vocab.Holder
	label   string
	ttl     time.Duration
	timeout time.Duration
	backoff time.Duration

	group singleflight.Group

	mu    sync.RWMutex
	entry *cacheEntry
}

type cacheEntry struct {
	result     Result
	observedAt time.Time
}

// NewCache creates a cache around fetcher.
func NewCache(cfg CacheConfig) *Cache {
	return &Cache{
		fetcher: cfg.Fetcher,
		vocab:   cfg.Vocab,
		label:   cfg.Label,
		ttl:     cfg.TTL,
		timeout: cfg.FetchTimeout,
		backoff: cfg.RetryBackoff,
	}
}

// Get returns the current observation. With force false a fresh cached
// entry is returned immediately; otherwise Get joins or starts the one
// refresh in flight. Cancelling ctx abandons the wait but not the
// refresh itself, so the remaining waiters still receive its result.
func (c *Cache) Get(ctx context.Context, force bool) Result {
	if !force {
		if res, ok := c.fresh(); ok {
			metrics.CacheRead("hit")
			return res
		}
	}

	requestedAt := time.Now()
	ch := c.group.DoChan(refreshKey, func() (any, error) {
		return c.refresh(context.WithoutCancel(ctx), requestedAt, force), nil
	})

	select {
	case <-ctx.Done():
		return errorResult(fmt.Errorf("wait for page refresh: %w", ctx.Err()))
	case v := <-ch:
		res := v.Val.(Result)
		if v.Shared {
			metrics.CacheRead("shared")
		} else {
			metrics.CacheRead("refresh")
		}
		return res
	}
}

// Last returns the cached entry regardless of freshness.
func (c *Cache) Last() (Result, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.entry == nil {
		return Result{}, false
	}
	return c.entry.result, true
}

func (c *Cache) fresh() (Result, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.entry == nil || time.Since(c.entry.observedAt) >= c.ttl {
		return Result{}, false
	}
	return c.entry.result, true
}

// refresh runs inside the single flight. It re-checks the entry first:
// another flight may have stored a result after this caller asked, and
// a non-forced caller may find the entry fresh again. Both cases return
// the stored result without another fetch.
func (c *Cache) refresh(ctx context.Context, requestedAt time.Time, force bool) Result {
	c.mu.RLock()
	ent := c.entry
	c.mu.RUnlock()
	if ent != nil {
		if ent.observedAt.After(requestedAt) {
			return ent.result
		}
		if !force && time.Since(ent.observedAt) < c.ttl {
			return ent.result
		}
	}

	start := time.Now()
	raw, err := c.fetchWithRetry(ctx)
	if err != nil {
		outcome := "error"
		if errors.Is(err, context.DeadlineExceeded) {
			outcome = "timeout"
		}
		metrics.ObserveFetch(outcome, time.Since(start))
		slog.Warn("page fetch failed, keeping cached entry", "error", err)
		return errorResult(err)
	}

	res := Extract(Normalize(raw), c.label, c.vocab.Current())
	metrics.ObserveFetch(res.Kind.String(), time.Since(start))

	c.mu.Lock()
	c.entry = &cacheEntry{result: res, observedAt: res.ObservedAt}
	c.mu.Unlock()
	return res
}

// fetchWithRetry makes one attempt and, on failure, exactly one more
// after a short backoff. Each attempt gets its own timeout, so the
// whole refresh is bounded by two timeouts plus the backoff.
func (c *Cache) fetchWithRetry(ctx context.Context) (string, error) {
	raw, err := c.fetchOnce(ctx)
	if err == nil {
		return raw, nil
	}
	slog.Debug("page fetch failed, retrying once", "error", err, "backoff", c.backoff)
	time.Sleep(c.backoff)

	raw, retryErr := c.fetchOnce(ctx)
	if retryErr != nil {
		return "", fmt.Errorf("fetch after retry: %w", retryErr)
	}
	return raw, nil
}

func (c *Cache) fetchOnce(ctx context.Context) (string, error) {
	fctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.fetcher.Fetch(fctx)
}
