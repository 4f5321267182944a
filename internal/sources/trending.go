package sources

import (
	"context"
	"strings"
	"time"

	"driftfeed/internal/model"
)

// TrendingMock serves a deterministic offline set of trending-topic
// articles. It never fails, which also makes it the batch's safety net
// when the network is down.
type TrendingMock struct{}

// NewTrendingMock creates the trending-mock adapter.
func NewTrendingMock() *TrendingMock {
	return &TrendingMock{}
}

func (t *TrendingMock) Name() string           { return "trending-mock" }
func (t *TrendingMock) Kind() model.SourceKind { return model.KindTrending }

// trendingTopics is the fixed offline data set. IDs derive from the
// slug so repeated fetches dedupe to the same articles.
var trendingTopics = []struct {
	slug, title, body string
}{
	{"aurora-borealis", "Aurora Borealis", "Charged particles from the solar wind collide with atoms in the upper atmosphere, producing shifting curtains of green and violet light around the magnetic poles. Displays intensify during geomagnetic storms."},
	{"deep-sea-vents", "Hydrothermal Vents", "Communities of tube worms, blind shrimp, and chemosynthetic bacteria thrive around superheated mineral-rich water erupting from the ocean floor, entirely independent of sunlight."},
	{"voyager-probes", "Voyager Program", "Two probes launched in 1977 continue to return data from interstellar space. Each carries a golden record with sounds and images chosen to describe life on Earth."},
	{"trans-siberian", "Trans-Siberian Railway", "The longest railway line in the world spans 9,289 kilometres between Moscow and Vladivostok, crossing eight time zones over roughly a week of continuous travel."},
	{"octopus-cognition", "Octopus Intelligence", "Octopuses solve mazes, open jars from the inside, and recognize individual humans. Two-thirds of their neurons sit in their arms rather than their central brain."},
	{"library-alexandria", "Library of Alexandria", "The ancient world's most famous library may have held hundreds of thousands of scrolls. Its decline was gradual, spanning centuries of fires, funding cuts, and neglect."},
	{"monarch-migration", "Monarch Butterfly Migration", "Successive generations of monarchs relay 4,800 kilometres between Canada and central Mexico, navigating to overwintering groves none of them has ever seen."},
	{"antikythera", "Antikythera Mechanism", "A corroded bronze device recovered from a Roman-era shipwreck turned out to be a geared analog computer predicting eclipses and planetary positions, built around 100 BC."},
	{"great-green-wall", "Great Green Wall", "An African-led initiative aims to grow an 8,000-kilometre mosaic of restored land across the Sahel, pushing back desertification while creating millions of jobs."},
	{"oumuamua", "Interstellar Visitors", "The first object observed passing through the solar system from interstellar space accelerated in a way gravity alone could not explain, and left before a probe could reach it."},
	{"bioluminescent-bays", "Bioluminescent Bays", "A handful of sheltered bays concentrate dinoflagellates densely enough that every paddle stroke and fish ignites blue-green light. Darkness and mangroves keep the populations stable."},
	{"rosetta-stone", "Rosetta Stone", "A decree issued at Memphis in 196 BC, carved in three scripts, gave scholars the key to Egyptian hieroglyphs after fourteen centuries of silence."},
}

// Fetch returns up to count trending articles. A query narrows results
// to topics whose title or body mentions it.
func (t *TrendingMock) Fetch(_ context.Context, count int, query string) ([]model.Article, error) {
	if count <= 0 {
		return nil, nil
	}

	now := time.Now()
	q := strings.ToLower(strings.TrimSpace(query))

	var out []model.Article
	for _, topic := range trendingTopics {
		if q != "" &&
			!strings.Contains(strings.ToLower(topic.title), q) &&
			!strings.Contains(strings.ToLower(topic.body), q) {
			continue
		}
		out = append(out, model.Article{
			ID:          model.MakeID(model.KindTrending, topic.slug),
			Title:       topic.title,
			BodyText:    topic.body,
			Kind:        model.KindTrending,
			Description: "Trending",
			FetchedAt:   now,
		})
		if len(out) >= count {
			break
		}
	}
	return out, nil
}
