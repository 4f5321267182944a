package sources

import (
	"context"
	"time"

	"github.com/mmcdole/gofeed"

	"driftfeed/internal/model"
)

// PortalFeed pulls a current-events news feed (RSS/Atom). Entries are
// time-sensitive, so this adapter gets the shortest cache TTL. Like
// historical events, portal entries may legitimately lack images.
type PortalFeed struct {
	parser  *gofeed.Parser
	feedURL string
}

// NewPortalFeed creates the current-events-portal adapter.
func NewPortalFeed(client *Client, feedURL string) *PortalFeed {
	if feedURL == "" {
		feedURL = "https://en.wikinews.org/w/index.php?title=Special:NewsFeed&feed=rss&categories=Published&count=30"
	}
	parser := gofeed.NewParser()
	parser.Client = client.http
	parser.UserAgent = client.userAgent
	return &PortalFeed{parser: parser, feedURL: feedURL}
}

func (p *PortalFeed) Name() string           { return "current-events-portal" }
func (p *PortalFeed) Kind() model.SourceKind { return model.KindCurrentEvent }

func (p *PortalFeed) Fetch(ctx context.Context, count int, _ string) ([]model.Article, error) {
	if count <= 0 {
		return nil, nil
	}

	feed, err := p.parser.ParseURLWithContext(p.feedURL, ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	var out []model.Article
	for _, item := range feed.Items {
		if item.Title == "" {
			continue
		}
		upstream := item.GUID
		if upstream == "" {
			upstream = item.Link
		}
		if upstream == "" {
			continue
		}

		body := stripHTML(item.Description)
		if body == "" {
			body = stripHTML(item.Content)
		}

		a := model.Article{
			ID:          model.MakeID(model.KindCurrentEvent, upstream),
			Title:       item.Title,
			BodyText:    truncate(body, 500),
			Kind:        model.KindCurrentEvent,
			ExternalURL: item.Link,
			Description: "Current events",
			FetchedAt:   now,
		}
		if item.Image != nil && item.Image.URL != "" {
			a.Thumbnail = &model.Thumbnail{URL: item.Image.URL}
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
