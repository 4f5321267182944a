package sources

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"driftfeed/internal/model"
)

// TopStories pulls the link-aggregator front page: an id-list endpoint
// followed by one item fetch per id, bounded-concurrent. Stories have
// no thumbnails; the body falls back to a points/comments attribution
// so the articles stay surfaceable.
type TopStories struct {
	client  *Client
	baseURL string

	// MinPoints gates out low-engagement stories.
	MinPoints int
}

// NewTopStories creates the link-aggregator-top adapter.
func NewTopStories(client *Client) *TopStories {
	return &TopStories{
		client:    client,
		baseURL:   "https://hacker-news.firebaseio.com/v0",
		MinPoints: 10,
	}
}

func (t *TopStories) Name() string           { return "link-aggregator-top" }
func (t *TopStories) Kind() model.SourceKind { return model.KindLinkAggregator }

// storyPayload is the per-item shape. Text is HTML for self posts.
type storyPayload struct {
	ID          int64  `json:"id"`
	Type        string `json:"type"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	Text        string `json:"text"`
	Score       int    `json:"score"`
	By          string `json:"by"`
	Descendants int    `json:"descendants"`
}

func (t *TopStories) Fetch(ctx context.Context, count int, _ string) ([]model.Article, error) {
	if count <= 0 {
		return nil, nil
	}

	var ids []int64
	if err := t.client.GetJSON(ctx, t.baseURL+"/topstories.json", &ids); err != nil {
		return nil, err
	}

	raw := overFetch(count, 2, 60)
	if raw > len(ids) {
		raw = len(ids)
	}

	now := time.Now()
	results := make([]*model.Article, raw)
	var mu sync.Mutex
	var lastErr error

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i := 0; i < raw; i++ {
		g.Go(func() error {
			var p storyPayload
			itemURL := fmt.Sprintf("%s/item/%d.json", t.baseURL, ids[i])
			if err := t.client.GetJSON(gctx, itemURL, &p); err != nil {
				mu.Lock()
				lastErr = err
				mu.Unlock()
				return nil
			}
			a := t.toArticle(p, now)
			if a == nil {
				return nil
			}
			results[i] = a
			return nil
		})
	}
	_ = g.Wait()

	// Preserve front-page order, dropping gaps from failed or gated
	// items.
	var out []model.Article
	for _, a := range results {
		if a == nil {
			continue
		}
		out = append(out, *a)
		if len(out) >= count {
			break
		}
	}
	if len(out) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return out, nil
}

func (t *TopStories) toArticle(p storyPayload, now time.Time) *model.Article {
	if p.Type != "story" || p.Title == "" {
		return nil
	}
	if p.Score < t.MinPoints {
		return nil
	}

	commentsURL := fmt.Sprintf("https://news.ycombinator.com/item?id=%d", p.ID)
	external := p.URL
	if external == "" {
		external = commentsURL
	}

	body := stripHTML(p.Text)
	if body == "" {
		body = fmt.Sprintf("%s (%s)", p.Title, hostOf(external))
	}

	return &model.Article{
		ID:          model.MakeID(model.KindLinkAggregator, fmt.Sprintf("%d", p.ID)),
		Title:       p.Title,
		BodyText:    body,
		Kind:        model.KindLinkAggregator,
		ExternalURL: external,
		Description: fmt.Sprintf("%d points by %s · %d comments", p.Score, p.By, p.Descendants),
		FetchedAt:   now,
	}
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	return u.Host
}
