package aggregate

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync/atomic"
	"testing"
	"time"

	"driftfeed/internal/model"
	"driftfeed/internal/quality"
	"driftfeed/internal/sources"
)

// fakeAdapter serves canned articles or a canned error.
type fakeAdapter struct {
	name     string
	kind     model.SourceKind
	articles []model.Article
	err      error
	calls    atomic.Int32
	delay    time.Duration
}

func (f *fakeAdapter) Name() string           { return f.name }
func (f *fakeAdapter) Kind() model.SourceKind { return f.kind }

func (f *fakeAdapter) Fetch(ctx context.Context, count int, _ string) ([]model.Article, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(f.delay):
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	if count > len(f.articles) {
		count = len(f.articles)
	}
	out := make([]model.Article, count)
	copy(out, f.articles[:count])
	return out, nil
}

func makeArticles(kind model.SourceKind, prefix string, n int) []model.Article {
	out := make([]model.Article, n)
	for i := 0; i < n; i++ {
		out[i] = model.Article{
			ID:       model.MakeID(kind, fmt.Sprintf("%s-%d", prefix, i)),
			Title:    fmt.Sprintf("%s %d", prefix, i),
			BodyText: "A reasonable amount of body text so the article scores above the filter threshold easily.",
			Kind:     kind,
		}
	}
	return out
}

func newAggregator(opts Options, adapters ...sources.Adapter) *Aggregator {
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(1))
	}
	return New(sources.NewRegistry(adapters...), quality.NewScorer(quality.DefaultWeights()), opts)
}

func TestFetchBatchAllZeroCounts(t *testing.T) {
	enc := &fakeAdapter{name: "enc", kind: model.KindEncyclopedia, articles: makeArticles(model.KindEncyclopedia, "e", 10)}
	agg := newAggregator(Options{MinScore: 10}, enc)

	got, err := agg.FetchBatch(context.Background(), map[model.SourceKind]int{model.KindEncyclopedia: 0}, "")
	if err != nil || got != nil {
		t.Fatalf("zero counts: got %v, %v", got, err)
	}
	if enc.calls.Load() != 0 {
		t.Error("zero counts must make no adapter calls")
	}
}

func TestFetchBatchPartialFailure(t *testing.T) {
	good := &fakeAdapter{name: "good", kind: model.KindEncyclopedia, articles: makeArticles(model.KindEncyclopedia, "e", 20)}
	bad := &fakeAdapter{name: "bad", kind: model.KindSocialAggregator, err: errors.New("network down")}
	agg := newAggregator(Options{MinScore: 10}, good, bad)

	got, err := agg.FetchBatch(context.Background(), map[model.SourceKind]int{
		model.KindEncyclopedia:     5,
		model.KindSocialAggregator: 5,
	}, "")
	if err != nil {
		t.Fatalf("partial failure must not fail the batch: %v", err)
	}
	if len(got) == 0 {
		t.Fatal("successful source's articles missing")
	}
	for _, a := range got {
		if a.Kind != model.KindEncyclopedia {
			t.Errorf("unexpected article from failed source: %+v", a)
		}
	}
}

func TestFetchBatchTotalFailure(t *testing.T) {
	a1 := &fakeAdapter{name: "a1", kind: model.KindEncyclopedia, err: errors.New("down")}
	a2 := &fakeAdapter{name: "a2", kind: model.KindSocialAggregator, err: errors.New("down")}
	agg := newAggregator(Options{MinScore: 10}, a1, a2)

	got, err := agg.FetchBatch(context.Background(), map[model.SourceKind]int{
		model.KindEncyclopedia:     5,
		model.KindSocialAggregator: 5,
	}, "")
	if !errors.Is(err, ErrAllSourcesFailed) {
		t.Fatalf("want ErrAllSourcesFailed, got %v", err)
	}
	if len(got) != 0 {
		t.Errorf("total failure should carry no articles, got %d", len(got))
	}
}

func TestFetchBatchDedupesAcrossSources(t *testing.T) {
	dup := makeArticles(model.KindEncyclopedia, "e", 10)
	a1 := &fakeAdapter{name: "a1", kind: model.KindEncyclopedia, articles: dup}
	a2 := &fakeAdapter{name: "a2", kind: model.KindTrending, articles: append(makeArticles(model.KindTrending, "t", 5), dup[0])}
	agg := newAggregator(Options{MinScore: 10}, a1, a2)

	got, err := agg.FetchBatch(context.Background(), map[model.SourceKind]int{
		model.KindEncyclopedia: 10,
		model.KindTrending:     6,
	}, "")
	if err != nil {
		t.Fatal(err)
	}
	seen := make(map[int64]bool)
	for _, a := range got {
		if seen[a.ID] {
			t.Errorf("duplicate id %d in batch", a.ID)
		}
		seen[a.ID] = true
	}
}

func TestFetchBatchBalancesProportions(t *testing.T) {
	enc := &fakeAdapter{name: "enc", kind: model.KindEncyclopedia, articles: makeArticles(model.KindEncyclopedia, "e", 40)}
	soc := &fakeAdapter{name: "soc", kind: model.KindSocialAggregator, articles: makeArticles(model.KindSocialAggregator, "s", 40)}
	agg := newAggregator(Options{MinScore: 0, OverFetchMultiplier: 2}, enc, soc)

	got, err := agg.FetchBatch(context.Background(), map[model.SourceKind]int{
		model.KindEncyclopedia:     10,
		model.KindSocialAggregator: 5,
	}, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) > 15 {
		t.Fatalf("batch of %d exceeds requested total 15", len(got))
	}

	byKind := make(map[model.SourceKind]int)
	for _, a := range got {
		byKind[a.Kind]++
	}
	if byKind[model.KindEncyclopedia] != 10 || byKind[model.KindSocialAggregator] != 5 {
		t.Errorf("balance off: %v, want 10:5", byKind)
	}
}

func TestFetchBatchFillsShortfallFromOtherSources(t *testing.T) {
	// Social can only deliver 2 of its requested 5; encyclopedia has
	// plenty to fill the gap.
	enc := &fakeAdapter{name: "enc", kind: model.KindEncyclopedia, articles: makeArticles(model.KindEncyclopedia, "e", 40)}
	soc := &fakeAdapter{name: "soc", kind: model.KindSocialAggregator, articles: makeArticles(model.KindSocialAggregator, "s", 2)}
	agg := newAggregator(Options{MinScore: 0}, enc, soc)

	got, err := agg.FetchBatch(context.Background(), map[model.SourceKind]int{
		model.KindEncyclopedia:     10,
		model.KindSocialAggregator: 5,
	}, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 15 {
		t.Errorf("shortfall not filled: got %d, want 15", len(got))
	}
}

func TestFetchBatchAppliesOverFetchMultiplier(t *testing.T) {
	var sawCount atomic.Int32
	probe := &probeAdapter{kind: model.KindEncyclopedia, sawCount: &sawCount}
	agg := newAggregator(Options{MinScore: 0, OverFetchMultiplier: 3}, probe)

	_, _ = agg.FetchBatch(context.Background(), map[model.SourceKind]int{model.KindEncyclopedia: 10}, "")
	if got := sawCount.Load(); got != 30 {
		t.Errorf("adapter asked for %d, want 30 (10 x 3)", got)
	}
}

// probeAdapter records the count it was asked for.
type probeAdapter struct {
	kind     model.SourceKind
	sawCount *atomic.Int32
}

func (p *probeAdapter) Name() string           { return "probe" }
func (p *probeAdapter) Kind() model.SourceKind { return p.kind }

func (p *probeAdapter) Fetch(_ context.Context, count int, _ string) ([]model.Article, error) {
	p.sawCount.Store(int32(count))
	return makeArticles(p.kind, "p", count), nil
}

func TestFetchBatchDropsInvalidArticles(t *testing.T) {
	articles := makeArticles(model.KindEncyclopedia, "e", 5)
	articles = append(articles, model.Article{ID: 999, Title: "  ", Kind: model.KindEncyclopedia})
	adapter := &fakeAdapter{name: "a", kind: model.KindEncyclopedia, articles: articles}
	agg := newAggregator(Options{MinScore: 0}, adapter)

	got, err := agg.FetchBatch(context.Background(), map[model.SourceKind]int{model.KindEncyclopedia: 6}, "")
	if err != nil {
		t.Fatal(err)
	}
	for _, a := range got {
		if a.ID == 999 {
			t.Error("blank-titled article reached the batch")
		}
	}
}

func TestFetchBatchSlowSourceDoesNotBlockForever(t *testing.T) {
	slow := &fakeAdapter{name: "slow", kind: model.KindEncyclopedia, delay: 5 * time.Second, articles: makeArticles(model.KindEncyclopedia, "e", 5)}
	fast := &fakeAdapter{name: "fast", kind: model.KindTrending, articles: makeArticles(model.KindTrending, "t", 5)}
	agg := newAggregator(Options{MinScore: 0, AdapterTimeout: 50 * time.Millisecond}, slow, fast)

	start := time.Now()
	got, err := agg.FetchBatch(context.Background(), map[model.SourceKind]int{
		model.KindEncyclopedia: 3,
		model.KindTrending:     3,
	}, "")
	if err != nil {
		t.Fatal(err)
	}
	if time.Since(start) > 2*time.Second {
		t.Error("batch waited on the slow source past its timeout")
	}
	for _, a := range got {
		if a.Kind == model.KindEncyclopedia {
			t.Error("timed-out source should contribute nothing")
		}
	}
}
