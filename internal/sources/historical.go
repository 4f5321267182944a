package sources

import (
	"context"
	"fmt"
	"time"

	"driftfeed/internal/imaging"
	"driftfeed/internal/model"
)

// OnThisDay pulls historical events for today's date. These articles
// carry a year and are exempt from the thumbnail requirement: many
// events have no associated image by design.
type OnThisDay struct {
	client  *Client
	baseURL string

	// now is injectable so tests can pin the date.
	now func() time.Time
}

// NewOnThisDay creates the historical-events adapter.
func NewOnThisDay(client *Client) *OnThisDay {
	return &OnThisDay{
		client:  client,
		baseURL: "https://en.wikipedia.org/api/rest_v1",
		now:     time.Now,
	}
}

func (o *OnThisDay) Name() string           { return "historical-events" }
func (o *OnThisDay) Kind() model.SourceKind { return model.KindHistoricalEvent }

// onThisDayPayload is the events shape: each event has free text, a
// year, and the encyclopedia pages it references.
type onThisDayPayload struct {
	Events []struct {
		Text  string `json:"text"`
		Year  int    `json:"year"`
		Pages []struct {
			PageID    int64  `json:"pageid"`
			Title     string `json:"title"`
			Extract   string `json:"extract"`
			Thumbnail *struct {
				Source string `json:"source"`
				Width  int    `json:"width"`
				Height int    `json:"height"`
			} `json:"thumbnail"`
			ContentURLs struct {
				Desktop struct {
					Page string `json:"page"`
				} `json:"desktop"`
			} `json:"content_urls"`
		} `json:"pages"`
	} `json:"events"`
}

func (o *OnThisDay) Fetch(ctx context.Context, count int, _ string) ([]model.Article, error) {
	if count <= 0 {
		return nil, nil
	}

	day := o.now()
	endpoint := fmt.Sprintf("%s/feed/onthisday/events/%02d/%02d", o.baseURL, day.Month(), day.Day())

	var p onThisDayPayload
	if err := o.client.GetJSON(ctx, endpoint, &p); err != nil {
		return nil, err
	}

	now := time.Now()
	var out []model.Article
	for _, ev := range p.Events {
		if ev.Text == "" || ev.Year == 0 {
			continue
		}

		a := model.Article{
			Title:       truncate(ev.Text, 120),
			BodyText:    ev.Text,
			Kind:        model.KindHistoricalEvent,
			Description: fmt.Sprintf("On this day · %d", ev.Year),
			Year:        ev.Year,
			FetchedAt:   now,
		}

		// Prefer the first referenced page for identity, link, and
		// image; fall back to hashing the event text.
		if len(ev.Pages) > 0 {
			page := ev.Pages[0]
			a.ID = model.MakeID(model.KindHistoricalEvent, fmt.Sprintf("%d:%d", ev.Year, page.PageID))
			a.Title = page.Title
			a.ExternalURL = page.ContentURLs.Desktop.Page
			if page.Extract != "" {
				a.BodyText = ev.Text + " " + page.Extract
			}
			if page.Thumbnail != nil && page.Thumbnail.Source != "" {
				th := imaging.Upscale(model.Thumbnail{
					URL:    page.Thumbnail.Source,
					Width:  page.Thumbnail.Width,
					Height: page.Thumbnail.Height,
				})
				th.Width = page.Thumbnail.Width
				th.Height = page.Thumbnail.Height
				a.Thumbnail = &th
			}
		} else {
			a.ID = model.MakeID(model.KindHistoricalEvent, fmt.Sprintf("%d:%s", ev.Year, ev.Text))
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
