// Package config holds the persistent application configuration. One
// policy set lives here: every threshold, multiplier, and TTL the
// pipeline uses is a field, not a constant duplicated at call sites.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"driftfeed/internal/model"
	"driftfeed/internal/quality"
)

// Config is the persistent application configuration.
type Config struct {
	// Quality is the scoring policy.
	Quality quality.Weights `json:"quality"`
	// MinScore is the quality-filter threshold.
	MinScore int `json:"min_score"`

	// OverFetchMultiplier inflates per-source requested counts so the
	// requested total survives filtering and dedup.
	OverFetchMultiplier float64 `json:"overfetch_multiplier"`

	// Proportions is the requested per-source mix of one batch.
	Proportions map[model.SourceKind]int `json:"proportions"`

	// BatchSize is the default count for loads.
	BatchSize int `json:"batch_size"`

	// AdapterTimeout bounds every upstream call.
	AdapterTimeout time.Duration `json:"adapter_timeout"`

	// SourceTTLs maps an adapter name to its response-cache TTL.
	SourceTTLs map[string]time.Duration `json:"source_ttls"`
	// DefaultTTL applies to adapters not listed in SourceTTLs.
	DefaultTTL time.Duration `json:"default_ttl"`

	// NearEndThreshold is how close to the tail the read position may
	// get before a background load starts.
	NearEndThreshold int `json:"near_end_threshold"`
	// PollInterval is the position-independent background load timer.
	PollInterval time.Duration `json:"poll_interval"`
	// RefreshStaleness is how old a persisted snapshot may be before
	// session start fetches fresh instead of hydrating.
	RefreshStaleness time.Duration `json:"refresh_staleness"`
	// MinHydrateCount is the smallest persisted snapshot worth
	// hydrating from.
	MinHydrateCount int `json:"min_hydrate_count"`

	// Topics are alternate queries rotated through when a background
	// load comes back all-duplicates.
	Topics []string `json:"topics"`

	// UserAgent identifies us to upstreams.
	UserAgent string `json:"user_agent"`
}

// Default returns the default policy set.
func Default() *Config {
	return &Config{
		Quality:             quality.DefaultWeights(),
		MinScore:            35,
		OverFetchMultiplier: 2.0,
		Proportions: map[model.SourceKind]int{
			model.KindEncyclopedia:     8,
			model.KindLinkAggregator:   4,
			model.KindHistoricalEvent:  2,
			model.KindTrending:         2,
			model.KindSocialAggregator: 2,
			model.KindCurrentEvent:     2,
		},
		BatchSize:      20,
		AdapterTimeout: 8 * time.Second,
		SourceTTLs: map[string]time.Duration{
			"current-events-portal": 5 * time.Minute,
			"link-aggregator-top":   10 * time.Minute,
			"social-aggregator-top": 10 * time.Minute,
			"historical-events":     6 * time.Hour,
			"encyclopedia-search":   1 * time.Hour,
		},
		DefaultTTL:       30 * time.Minute,
		NearEndThreshold: 5,
		PollInterval:     15 * time.Second,
		RefreshStaleness: 1 * time.Hour,
		MinHydrateCount:  10,
		Topics: []string{
			"science", "history", "technology", "music",
			"space", "mathematics", "art", "geography",
		},
		UserAgent: "driftfeed/1.0 (+https://github.com/driftfeed)",
	}
}

// Path returns the config file location under the given data dir.
func Path(dataDir string) string {
	return filepath.Join(dataDir, "config.json")
}

// Load reads config from path, or returns defaults when the file does
// not exist or cannot be parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}

	cfg := Default()
	if err := json.Unmarshal(data, cfg); err != nil {
		return Default(), nil
	}
	return cfg, nil
}

// Save writes the config to path, creating parent directories.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// TTLFor returns the response-cache TTL for an adapter name.
func (c *Config) TTLFor(source string) time.Duration {
	if ttl, ok := c.SourceTTLs[source]; ok {
		return ttl
	}
	return c.DefaultTTL
}
