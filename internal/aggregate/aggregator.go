// Package aggregate fans one batch request out across the source
// adapters and folds the results into a single quality-filtered,
// deduplicated, source-balanced list.
package aggregate

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"driftfeed/internal/logging"
	"driftfeed/internal/model"
	"driftfeed/internal/quality"
	"driftfeed/internal/sources"
)

// ErrAllSourcesFailed is returned when every adapter in a batch failed.
// A partial failure is not an error; the batch proceeds with whatever
// succeeded.
var ErrAllSourcesFailed = errors.New("all sources failed")

// maxConcurrentFetches limits parallel adapter calls.
const maxConcurrentFetches = 5

// Options tunes one Aggregator.
type Options struct {
	// OverFetchMultiplier inflates each source's requested count so the
	// requested total survives filtering and dedup.
	OverFetchMultiplier float64
	// MinScore is the quality-filter threshold.
	MinScore int
	// AdapterTimeout bounds each adapter call.
	AdapterTimeout time.Duration
	// Rand drives the balancing draw and the final shuffle. Nil uses a
	// time-seeded source.
	Rand *rand.Rand
}

// Aggregator merges per-source fetches into balanced batches.
type Aggregator struct {
	registry *sources.Registry
	scorer   *quality.Scorer
	opts     Options

	mu  sync.Mutex // guards rng: rand.Rand is not goroutine-safe
	rng *rand.Rand
}

// New creates an Aggregator over the given registry.
func New(registry *sources.Registry, scorer *quality.Scorer, opts Options) *Aggregator {
	if opts.OverFetchMultiplier < 1 {
		opts.OverFetchMultiplier = 2
	}
	if opts.AdapterTimeout <= 0 {
		opts.AdapterTimeout = 8 * time.Second
	}
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Aggregator{
		registry: registry,
		scorer:   scorer,
		opts:     opts,
		rng:      rng,
	}
}

// contribution is one adapter's outcome within a batch.
type contribution struct {
	kind     model.SourceKind
	articles []model.Article
	err      error
}

// FetchBatch requests counts[kind] articles from each source, merges,
// filters, dedupes, rebalances toward the requested proportions, and
// shuffles. It resolves with the successful subset when some adapters
// fail, and returns ErrAllSourcesFailed only when none succeeded.
func (a *Aggregator) FetchBatch(ctx context.Context, counts map[model.SourceKind]int, query string) ([]model.Article, error) {
	total := 0
	var kinds []model.SourceKind
	for kind, n := range counts {
		if n > 0 {
			if _, ok := a.registry.For(kind); ok {
				kinds = append(kinds, kind)
				total += n
			}
		}
	}
	if total == 0 {
		return nil, nil
	}

	contribs := make([]contribution, len(kinds))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentFetches)
	for i, kind := range kinds {
		adapter, _ := a.registry.For(kind)
		requested := counts[kind]
		g.Go(func() error {
			fetchCtx, cancel := context.WithTimeout(gctx, a.opts.AdapterTimeout)
			defer cancel()

			inflated := int(float64(requested) * a.opts.OverFetchMultiplier)
			articles, err := adapter.Fetch(fetchCtx, inflated, query)
			if err != nil {
				logging.Warn("source fetch failed", "source", adapter.Name(), "error", err)
			}
			contribs[i] = contribution{kind: kind, articles: articles, err: err}
			return nil // errors degrade per source, never fail the group
		})
	}
	_ = g.Wait()

	failed := 0
	var merged []model.Article
	for _, c := range contribs {
		if c.err != nil {
			failed++
			continue
		}
		for _, art := range c.articles {
			if art.Valid() {
				merged = append(merged, art)
			}
		}
	}
	if failed == len(kinds) {
		return nil, ErrAllSourcesFailed
	}

	filtered := a.scorer.FilterByQuality(merged, a.opts.MinScore)
	deduped := dedupe(filtered)
	balanced := a.balance(deduped, counts, total)
	a.shuffle(balanced)
	return balanced, nil
}

// dedupe keeps the first occurrence of each id.
func dedupe(articles []model.Article) []model.Article {
	seen := make(map[int64]bool, len(articles))
	out := articles[:0:0]
	for _, art := range articles {
		if seen[art.ID] {
			continue
		}
		seen[art.ID] = true
		out = append(out, art)
	}
	return out
}

// balance draws up to counts[kind] articles at random from each
// source's pool, then fills any shortfall from whatever remains,
// regardless of source.
func (a *Aggregator) balance(articles []model.Article, counts map[model.SourceKind]int, total int) []model.Article {
	pools := make(map[model.SourceKind][]model.Article)
	for _, art := range articles {
		pools[art.Kind] = append(pools[art.Kind], art)
	}

	taken := make(map[int64]bool)
	var out []model.Article
	for kind, want := range counts {
		pool := pools[kind]
		a.shuffle(pool)
		for _, art := range pool {
			if want <= 0 {
				break
			}
			out = append(out, art)
			taken[art.ID] = true
			want--
		}
	}

	if len(out) < total {
		var rest []model.Article
		for _, art := range articles {
			if !taken[art.ID] {
				rest = append(rest, art)
			}
		}
		a.shuffle(rest)
		for _, art := range rest {
			if len(out) >= total {
				break
			}
			out = append(out, art)
		}
	}
	if len(out) > total {
		out = out[:total]
	}
	return out
}

func (a *Aggregator) shuffle(articles []model.Article) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.rng.Shuffle(len(articles), func(i, j int) {
		articles[i], articles[j] = articles[j], articles[i]
	})
}
