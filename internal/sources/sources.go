package sources

import (
	"context"
	"time"

	"driftfeed/internal/cache"
	"driftfeed/internal/model"
)

// encyclopedia routes between the random and search adapters: a blank
// query means a random drift, a topic means a search.
type encyclopedia struct {
	random Adapter
	search Adapter
}

func (e *encyclopedia) Name() string           { return "encyclopedia" }
func (e *encyclopedia) Kind() model.SourceKind { return model.KindEncyclopedia }

func (e *encyclopedia) Fetch(ctx context.Context, count int, query string) ([]model.Article, error) {
	if query == "" {
		return e.random.Fetch(ctx, count, query)
	}
	return e.search.Fetch(ctx, count, query)
}

// Registry holds one adapter per source kind.
type Registry struct {
	adapters map[model.SourceKind]Adapter
	order    []model.SourceKind
}

// NewRegistry builds a registry from adapters. A later adapter for the
// same kind replaces the earlier one.
func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[model.SourceKind]Adapter)}
	for _, a := range adapters {
		if _, seen := r.adapters[a.Kind()]; !seen {
			r.order = append(r.order, a.Kind())
		}
		r.adapters[a.Kind()] = a
	}
	return r
}

// For returns the adapter registered for kind.
func (r *Registry) For(kind model.SourceKind) (Adapter, bool) {
	a, ok := r.adapters[kind]
	return a, ok
}

// Kinds returns the registered kinds in registration order.
func (r *Registry) Kinds() []model.SourceKind {
	out := make([]model.SourceKind, len(r.order))
	copy(out, r.order)
	return out
}

// Defaults wires the full adapter set behind the given cache. ttlFor
// maps an adapter name to its response TTL; the trending mock is left
// uncached since it is already local and deterministic.
func Defaults(client *Client, c *cache.TTL, ttlFor func(name string) time.Duration) *Registry {
	wrap := func(a Adapter) Adapter {
		return WithCache(a, c, ttlFor(a.Name()))
	}
	return NewRegistry(
		&encyclopedia{
			random: wrap(NewRandomSummaries(client)),
			search: wrap(NewSearchSummaries(client)),
		},
		wrap(NewTopStories(client)),
		wrap(NewOnThisDay(client)),
		NewTrendingMock(),
		wrap(NewSubredditTop(client, "")),
		wrap(NewPortalFeed(client, "")),
	)
}
