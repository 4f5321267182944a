package sources

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"driftfeed/internal/imaging"
	"driftfeed/internal/model"
)

// summaryPayload is the encyclopedia REST summary shape. Only the
// fields we consume are declared.
type summaryPayload struct {
	PageID      int64  `json:"pageid"`
	Title       string `json:"title"`
	Extract     string `json:"extract"`
	ExtractHTML string `json:"extract_html"`
	Description string `json:"description"`
	Thumbnail   *struct {
		Source string `json:"source"`
		Width  int    `json:"width"`
		Height int    `json:"height"`
	} `json:"thumbnail"`
	ContentURLs struct {
		Desktop struct {
			Page string `json:"page"`
		} `json:"desktop"`
	} `json:"content_urls"`
}

func (p *summaryPayload) toArticle(now time.Time) model.Article {
	a := model.Article{
		ID:          model.MakeID(model.KindEncyclopedia, fmt.Sprintf("%d", p.PageID)),
		Title:       p.Title,
		BodyText:    p.Extract,
		BodyHTML:    p.ExtractHTML,
		Kind:        model.KindEncyclopedia,
		ExternalURL: p.ContentURLs.Desktop.Page,
		Description: p.Description,
		FetchedAt:   now,
	}
	if p.Thumbnail != nil && p.Thumbnail.Source != "" {
		t := imaging.Upscale(model.Thumbnail{
			URL:    p.Thumbnail.Source,
			Width:  p.Thumbnail.Width,
			Height: p.Thumbnail.Height,
		})
		// Keep the reported dimensions for quality gating even when
		// the URL was rewritten.
		t.Width = p.Thumbnail.Width
		t.Height = p.Thumbnail.Height
		a.Thumbnail = &t
	}
	return a
}

// RandomSummaries pulls random encyclopedia article summaries. The
// upstream returns one summary per call, so a fetch fans out bounded
// concurrent calls and gates each result.
type RandomSummaries struct {
	client  *Client
	baseURL string

	// Quality gates. An article passes with extract length >=
	// MinExtract AND a thumbnail at least MinThumbWidth wide. When the
	// attempt budget runs out short of count, the thumbnail requirement
	// is relaxed rather than retrying forever.
	MinExtract    int
	MinThumbWidth int

	// AttemptsPerItem bounds total upstream calls at count*AttemptsPerItem.
	AttemptsPerItem int
}

// NewRandomSummaries creates the encyclopedia-random adapter.
func NewRandomSummaries(client *Client) *RandomSummaries {
	return &RandomSummaries{
		client:          client,
		baseURL:         "https://en.wikipedia.org/api/rest_v1",
		MinExtract:      100,
		MinThumbWidth:   300,
		AttemptsPerItem: 3,
	}
}

func (r *RandomSummaries) Name() string           { return "encyclopedia-random" }
func (r *RandomSummaries) Kind() model.SourceKind { return model.KindEncyclopedia }

func (r *RandomSummaries) passes(a model.Article, relaxed bool) bool {
	if utf8.RuneCountInString(a.BodyText) < r.MinExtract {
		return false
	}
	if relaxed {
		return true
	}
	return a.Thumbnail != nil && a.Thumbnail.Width >= r.MinThumbWidth
}

// Fetch gathers up to count random summaries. The query is ignored:
// randomness is the point of this source.
func (r *RandomSummaries) Fetch(ctx context.Context, count int, _ string) ([]model.Article, error) {
	if count <= 0 {
		return nil, nil
	}

	budget := count * r.AttemptsPerItem
	now := time.Now()

	var (
		mu      sync.Mutex
		strict  []model.Article
		relaxed []model.Article
		lastErr error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i := 0; i < budget; i++ {
		g.Go(func() error {
			mu.Lock()
			done := len(strict) >= count
			mu.Unlock()
			if done || gctx.Err() != nil {
				return nil
			}

			var p summaryPayload
			if err := r.client.GetJSON(gctx, r.baseURL+"/page/random/summary", &p); err != nil {
				mu.Lock()
				lastErr = err
				mu.Unlock()
				return nil
			}
			a := p.toArticle(now)
			if !a.Valid() {
				return nil
			}

			mu.Lock()
			defer mu.Unlock()
			switch {
			case r.passes(a, false):
				strict = append(strict, a)
			case r.passes(a, true):
				relaxed = append(relaxed, a)
			}
			return nil
		})
	}
	_ = g.Wait()

	out := strict
	// Relaxed-criteria fallback: top up from text-only articles
	// instead of burning more attempts.
	for _, a := range relaxed {
		if len(out) >= count {
			break
		}
		out = append(out, a)
	}
	if len(out) > count {
		out = out[:count]
	}
	if len(out) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return out, nil
}

// SearchSummaries queries the encyclopedia search generator for
// articles matching a topic.
type SearchSummaries struct {
	client  *Client
	baseURL string

	MinExtract int
}

// NewSearchSummaries creates the encyclopedia-search adapter.
func NewSearchSummaries(client *Client) *SearchSummaries {
	return &SearchSummaries{
		client:     client,
		baseURL:    "https://en.wikipedia.org/w/api.php",
		MinExtract: 100,
	}
}

func (s *SearchSummaries) Name() string           { return "encyclopedia-search" }
func (s *SearchSummaries) Kind() model.SourceKind { return model.KindEncyclopedia }

// searchPayload is the action-API generator=search response shape.
type searchPayload struct {
	Query struct {
		Pages map[string]struct {
			PageID    int64  `json:"pageid"`
			Title     string `json:"title"`
			Extract   string `json:"extract"`
			Thumbnail *struct {
				Source string `json:"source"`
				Width  int    `json:"width"`
				Height int    `json:"height"`
			} `json:"thumbnail"`
			CanonicalURL string `json:"canonicalurl"`
		} `json:"pages"`
	} `json:"query"`
}

func (s *SearchSummaries) Fetch(ctx context.Context, count int, query string) ([]model.Article, error) {
	if count <= 0 {
		return nil, nil
	}
	if query == "" {
		// No topic, nothing to search for.
		return nil, nil
	}

	raw := overFetch(count, 2, 50)
	params := url.Values{
		"action":      {"query"},
		"format":      {"json"},
		"generator":   {"search"},
		"gsrsearch":   {query},
		"gsrlimit":    {fmt.Sprintf("%d", raw)},
		"prop":        {"extracts|pageimages|info"},
		"exintro":     {"1"},
		"explaintext": {"1"},
		"exlimit":     {"max"},
		"piprop":      {"thumbnail"},
		"pithumbsize": {"400"},
		"inprop":      {"url"},
		"origin":      {"*"},
	}

	var p searchPayload
	if err := s.client.GetJSON(ctx, s.baseURL+"?"+params.Encode(), &p); err != nil {
		return nil, err
	}

	now := time.Now()
	var out []model.Article
	for _, page := range p.Query.Pages {
		if page.Title == "" || utf8.RuneCountInString(page.Extract) < s.MinExtract {
			continue
		}
		a := model.Article{
			ID:          model.MakeID(model.KindEncyclopedia, fmt.Sprintf("%d", page.PageID)),
			Title:       page.Title,
			BodyText:    page.Extract,
			Kind:        model.KindEncyclopedia,
			ExternalURL: page.CanonicalURL,
			FetchedAt:   now,
		}
		if page.Thumbnail != nil && page.Thumbnail.Source != "" {
			t := imaging.Upscale(model.Thumbnail{
				URL:    page.Thumbnail.Source,
				Width:  page.Thumbnail.Width,
				Height: page.Thumbnail.Height,
			})
			t.Width = page.Thumbnail.Width
			t.Height = page.Thumbnail.Height
			a.Thumbnail = &t
		}
		if !a.Valid() {
			continue
		}
		out = append(out, a)
		if len(out) >= count {
			break
		}
	}
	return out, nil
}
