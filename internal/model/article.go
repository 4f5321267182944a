// Package model defines the canonical article shape shared by every
// source adapter and consumed by the feed session.
//
// The shape is source-agnostic: downstream code never branches on Kind
// for data integrity, only for display.
package model

import (
	"hash/fnv"
	"strings"
	"time"
)

// SourceKind identifies which class of upstream a record came from.
type SourceKind string

const (
	KindEncyclopedia     SourceKind = "encyclopedia"
	KindLinkAggregator   SourceKind = "link-aggregator"
	KindHistoricalEvent  SourceKind = "historical-event"
	KindTrending         SourceKind = "trending"
	KindSocialAggregator SourceKind = "social-aggregator"
	KindCurrentEvent     SourceKind = "current-event"
)

// Kinds lists every supported source kind.
func Kinds() []SourceKind {
	return []SourceKind{
		KindEncyclopedia,
		KindLinkAggregator,
		KindHistoricalEvent,
		KindTrending,
		KindSocialAggregator,
		KindCurrentEvent,
	}
}

// Thumbnail describes a preview image. Width and Height are zero when
// the upstream did not report dimensions.
type Thumbnail struct {
	URL    string `json:"url"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

// Article is the canonical record produced by every adapter.
type Article struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	BodyText    string     `json:"body_text,omitempty"`
	BodyHTML    string     `json:"body_html,omitempty"`
	Thumbnail   *Thumbnail `json:"thumbnail,omitempty"`
	Kind        SourceKind `json:"kind"`
	ExternalURL string     `json:"external_url,omitempty"`
	Description string     `json:"description,omitempty"`
	Year        int        `json:"year,omitempty"`
	FetchedAt   time.Time  `json:"fetched_at"`
}

// HasImage reports whether the article carries a usable thumbnail.
func (a *Article) HasImage() bool {
	return a.Thumbnail != nil && a.Thumbnail.URL != ""
}

// imageExempt kinds may surface without a thumbnail or body by design.
func imageExempt(k SourceKind) bool {
	return k == KindHistoricalEvent || k == KindCurrentEvent
}

// Valid reports whether the article may be surfaced to the feed.
// A blank title is always invalid. Articles with neither body text nor
// a thumbnail are invalid unless their kind is exempt.
func (a *Article) Valid() bool {
	if strings.TrimSpace(a.Title) == "" {
		return false
	}
	if imageExempt(a.Kind) {
		return true
	}
	return a.BodyText != "" || a.HasImage()
}

// MakeID derives a stable article ID from an upstream identifier. The
// kind is mixed into the hash so IDs from different sources occupy
// disjoint namespaces even when upstream identifiers collide.
func MakeID(kind SourceKind, upstream string) int64 {
	h := fnv.New64a()
	h.Write([]byte(kind))
	h.Write([]byte{0})
	h.Write([]byte(upstream))
	// Mask the sign bit so IDs are non-negative and survive JSON
	// round-trips through consumers that treat them as unsigned.
	return int64(h.Sum64() & 0x7fffffffffffffff)
}
