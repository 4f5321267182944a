package sources

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"driftfeed/internal/imaging"
	"driftfeed/internal/model"
)

// SubredditTop pulls the top listing of a social-aggregator community.
// Listing entries with a preview image below MinThumbWidth are dropped
// at this boundary; the aggregator never sees them.
type SubredditTop struct {
	client  *Client
	baseURL string

	// Subreddit is the community to read, without the r/ prefix.
	Subreddit string

	MinThumbWidth int
	MinExtract    int
}

// NewSubredditTop creates the social-aggregator-top adapter.
func NewSubredditTop(client *Client, subreddit string) *SubredditTop {
	if subreddit == "" {
		subreddit = "todayilearned"
	}
	return &SubredditTop{
		client:        client,
		baseURL:       "https://www.reddit.com",
		Subreddit:     subreddit,
		MinThumbWidth: 300,
		MinExtract:    0,
	}
}

func (s *SubredditTop) Name() string           { return "social-aggregator-top" }
func (s *SubredditTop) Kind() model.SourceKind { return model.KindSocialAggregator }

// listingPayload is the t3 listing shape.
type listingPayload struct {
	Data struct {
		Children []struct {
			Data struct {
				ID        string `json:"id"`
				Title     string `json:"title"`
				SelfText  string `json:"selftext"`
				Permalink string `json:"permalink"`
				URL       string `json:"url"`
				Score     int    `json:"score"`
				Subreddit string `json:"subreddit_name_prefixed"`
				Stickied  bool   `json:"stickied"`
				Over18    bool   `json:"over_18"`
				Preview   *struct {
					Images []struct {
						Source struct {
							URL    string `json:"url"`
							Width  int    `json:"width"`
							Height int    `json:"height"`
						} `json:"source"`
					} `json:"images"`
				} `json:"preview"`
			} `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

func (s *SubredditTop) Fetch(ctx context.Context, count int, _ string) ([]model.Article, error) {
	if count <= 0 {
		return nil, nil
	}

	raw := overFetch(count, 2, 100)
	endpoint := fmt.Sprintf("%s/r/%s/top.json?t=day&limit=%d&raw_json=1", s.baseURL, s.Subreddit, raw)

	var p listingPayload
	if err := s.client.GetJSON(ctx, endpoint, &p); err != nil {
		return nil, err
	}

	now := time.Now()
	var out []model.Article
	for _, child := range p.Data.Children {
		post := child.Data
		if post.ID == "" || strings.TrimSpace(post.Title) == "" {
			continue
		}
		if post.Stickied || post.Over18 {
			continue
		}

		a := model.Article{
			ID:          model.MakeID(model.KindSocialAggregator, post.ID),
			Title:       post.Title,
			BodyText:    stripHTML(post.SelfText),
			Kind:        model.KindSocialAggregator,
			ExternalURL: s.baseURL + post.Permalink,
			Description: post.Subreddit,
			FetchedAt:   now,
		}
		if utf8.RuneCountInString(a.BodyText) < s.MinExtract {
			continue
		}

		if post.Preview != nil && len(post.Preview.Images) > 0 {
			src := post.Preview.Images[0].Source
			if src.URL != "" {
				// Width gate applies to posts that do carry an image.
				if src.Width < s.MinThumbWidth {
					continue
				}
				th := imaging.Upscale(model.Thumbnail{
					URL:    src.URL,
					Width:  src.Width,
					Height: src.Height,
				})
				th.Width = src.Width
				th.Height = src.Height
				a.Thumbnail = &th
			}
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
