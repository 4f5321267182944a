// Package quality estimates article content richness and filters
// batches that fall below a minimum score.
package quality

import (
	"sort"
	"unicode/utf8"

	"driftfeed/internal/model"
)

// Weights holds the tunable scoring parameters. All values are
// illustrative defaults meant to be overridden from configuration, not
// authoritative constants.
type Weights struct {
	// BodyPerChars awards one point per this many body characters.
	BodyPerChars int `json:"body_per_chars"`
	// BodyMax caps the points earned from body length.
	BodyMax int `json:"body_max"`
	// ImagePresence is awarded for any usable thumbnail.
	ImagePresence int `json:"image_presence"`
	// ImageHighRes / ImageMidRes are resolution-tier bonuses keyed on
	// the reported width.
	ImageHighRes      int `json:"image_high_res"`
	ImageHighResWidth int `json:"image_high_res_width"`
	ImageMidRes       int `json:"image_mid_res"`
	ImageMidResWidth  int `json:"image_mid_res_width"`
	// DescriptionBonus is awarded for a non-empty short description.
	DescriptionBonus int `json:"description_bonus"`
	// HistoricalYearBonus is awarded to historical events carrying a year.
	HistoricalYearBonus int `json:"historical_year_bonus"`
	// ShortSocialPenalty is subtracted from social-aggregator articles
	// whose extract is shorter than ShortSocialChars.
	ShortSocialPenalty int `json:"short_social_penalty"`
	ShortSocialChars   int `json:"short_social_chars"`
}

// DefaultWeights returns the default scoring policy.
func DefaultWeights() Weights {
	return Weights{
		BodyPerChars:        20,
		BodyMax:             40,
		ImagePresence:       20,
		ImageHighRes:        15,
		ImageHighResWidth:   800,
		ImageMidRes:         8,
		ImageMidResWidth:    300,
		DescriptionBonus:    5,
		HistoricalYearBonus: 10,
		ShortSocialPenalty:  15,
		ShortSocialChars:    80,
	}
}

// Scorer computes bounded quality scores for articles.
type Scorer struct {
	w Weights
}

// NewScorer creates a Scorer with the given weights.
func NewScorer(w Weights) *Scorer {
	return &Scorer{w: w}
}

// Score returns an additive quality estimate clamped to [0, 100].
func (s *Scorer) Score(a model.Article) int {
	score := 0

	if s.w.BodyPerChars > 0 {
		pts := utf8.RuneCountInString(a.BodyText) / s.w.BodyPerChars
		if pts > s.w.BodyMax {
			pts = s.w.BodyMax
		}
		score += pts
	}

	if a.HasImage() {
		score += s.w.ImagePresence
		switch {
		case a.Thumbnail.Width >= s.w.ImageHighResWidth:
			score += s.w.ImageHighRes
		case a.Thumbnail.Width >= s.w.ImageMidResWidth:
			score += s.w.ImageMidRes
		}
	}

	if a.Description != "" {
		score += s.w.DescriptionBonus
	}

	switch a.Kind {
	case model.KindHistoricalEvent:
		if a.Year != 0 {
			score += s.w.HistoricalYearBonus
		}
	case model.KindSocialAggregator:
		if utf8.RuneCountInString(a.BodyText) < s.w.ShortSocialChars {
			score -= s.w.ShortSocialPenalty
		}
	}

	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// filterFloor is the smallest result FilterByQuality returns for a
// non-empty input (or the whole input when it is shorter).
const filterFloor = 5

// FilterByQuality keeps articles scoring at least minScore. When strict
// filtering would drop the batch below 30% of its input, it falls back
// to the top 40% by score so a round of marginal content is thinned
// rather than wiped out. Non-empty input always yields at least
// filterFloor articles (or all of them when fewer exist).
func (s *Scorer) FilterByQuality(articles []model.Article, minScore int) []model.Article {
	if len(articles) == 0 {
		return nil
	}

	kept := make([]model.Article, 0, len(articles))
	for _, a := range articles {
		if s.Score(a) >= minScore {
			kept = append(kept, a)
		}
	}

	if len(kept)*10 >= len(articles)*3 && len(kept) >= min(filterFloor, len(articles)) {
		return kept
	}

	// Over-filtered: rank everything and take the better slice.
	ranked := make([]model.Article, len(articles))
	copy(ranked, articles)
	sort.SliceStable(ranked, func(i, j int) bool {
		return s.Score(ranked[i]) > s.Score(ranked[j])
	})

	n := len(ranked) * 4 / 10
	if n < filterFloor {
		n = filterFloor
	}
	if n > len(ranked) {
		n = len(ranked)
	}
	return ranked[:n]
}
