// Package sources contains one adapter per upstream content source.
// Each adapter converts its upstream's payload into the canonical
// article shape, applying source-specific quality gates. Upstream
// schemas are treated as untrusted: required fields are checked and
// malformed entries discarded before an article is constructed.
package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"driftfeed/internal/cache"
	"driftfeed/internal/model"
)

// Adapter is the contract every source implements. Fetch returns up to
// count articles that passed the adapter's own quality gates. query is
// advisory; adapters without a search dimension ignore it. Errors mean
// the source contributed nothing this round; the aggregator degrades
// them, never the caller.
type Adapter interface {
	Name() string
	Kind() model.SourceKind
	Fetch(ctx context.Context, count int, query string) ([]model.Article, error)
}

// Client is the HTTP client shared by the network adapters: bounded
// timeout, request pacing, and a stable User-Agent.
type Client struct {
	http      *http.Client
	limiter   *rate.Limiter
	userAgent string
}

// NewClient creates a Client. Every request waits on the limiter so a
// burst of adapter fan-outs does not hammer one upstream host.
func NewClient(timeout time.Duration, userAgent string) *Client {
	return &Client{
		http:      &http.Client{Timeout: timeout},
		limiter:   rate.NewLimiter(rate.Every(50*time.Millisecond), 8),
		userAgent: userAgent,
	}
}

// GetJSON fetches url and decodes the response body into out.
func (c *Client) GetJSON(ctx context.Context, url string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", url, err)
	}
	return nil
}

// Cached wraps an adapter with the session's TTL cache, keyed by
// (source, query, count). Failed fetches are never cached.
type Cached struct {
	inner Adapter
	cache *cache.TTL
	ttl   time.Duration
}

// WithCache wraps adapter so repeat requests within ttl are served from
// c without touching the upstream.
func WithCache(adapter Adapter, c *cache.TTL, ttl time.Duration) *Cached {
	return &Cached{inner: adapter, cache: c, ttl: ttl}
}

func (c *Cached) Name() string           { return c.inner.Name() }
func (c *Cached) Kind() model.SourceKind { return c.inner.Kind() }

func (c *Cached) Fetch(ctx context.Context, count int, query string) ([]model.Article, error) {
	key := cache.Key(c.inner.Name(), query, count)
	if hit, ok := c.cache.Get(key); ok {
		return hit, nil
	}
	articles, err := c.inner.Fetch(ctx, count, query)
	if err != nil {
		return nil, err
	}
	c.cache.Set(key, articles, c.ttl)
	return articles, nil
}

// overFetch inflates a requested count to compensate for post-filter
// attrition, clamped to max.
func overFetch(count int, multiplier float64, max int) int {
	n := int(float64(count) * multiplier)
	if n < count {
		n = count
	}
	if max > 0 && n > max {
		n = max
	}
	return n
}

// stripHTML removes tags and collapses whitespace. Good enough for
// extracts and feed descriptions; this is not a sanitizer.
func stripHTML(text string) string {
	var b strings.Builder
	inTag := false
	for _, r := range text {
		switch {
		case r == '<':
			inTag = true
			b.WriteRune(' ')
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}

	s := b.String()
	s = strings.ReplaceAll(s, "&nbsp;", " ")
	s = strings.ReplaceAll(s, "&amp;", "&")
	s = strings.ReplaceAll(s, "&lt;", "<")
	s = strings.ReplaceAll(s, "&gt;", ">")
	s = strings.ReplaceAll(s, "&quot;", `"`)
	s = strings.ReplaceAll(s, "&#39;", "'")

	return strings.Join(strings.Fields(s), " ")
}

// truncate shortens a string to maxLen runes, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}
