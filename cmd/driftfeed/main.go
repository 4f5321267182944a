// Driftfeed is a terminal reader for an infinitely scrolling feed
// aggregated from encyclopedia articles, link-aggregator front pages,
// on-this-day history, subreddit tops, and current-events portals.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"

	"driftfeed/internal/aggregate"
	"driftfeed/internal/cache"
	"driftfeed/internal/config"
	"driftfeed/internal/logging"
	"driftfeed/internal/quality"
	"driftfeed/internal/session"
	"driftfeed/internal/sources"
	"driftfeed/internal/store"
	"driftfeed/internal/ui"
)

func main() {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		fatal("Failed to get home directory: %v", err)
	}
	dataDir := filepath.Join(homeDir, ".driftfeed")
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		fatal("Failed to create data directory: %v", err)
	}

	if err := logging.Init(dataDir); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to initialize logging: %v\n", err)
	}
	defer logging.Close()
	logging.Info("driftfeed starting")

	cfg, err := config.Load(config.Path(dataDir))
	if err != nil {
		logging.Warn("config load failed, using defaults", "error", err)
		cfg = config.Default()
	}

	st, err := store.Open(filepath.Join(dataDir, "driftfeed.db"))
	if err != nil {
		fatal("Failed to open store: %v", err)
	}
	defer st.Close()
	logging.Info("store opened", "path", filepath.Join(dataDir, "driftfeed.db"))

	ttlCache := cache.New(st)
	client := sources.NewClient(cfg.AdapterTimeout, cfg.UserAgent)
	registry := sources.Defaults(client, ttlCache, cfg.TTLFor)
	logging.Info("sources registered", "kinds", len(registry.Kinds()))

	agg := aggregate.New(registry, quality.NewScorer(cfg.Quality), aggregate.Options{
		OverFetchMultiplier: cfg.OverFetchMultiplier,
		MinScore:            cfg.MinScore,
		AdapterTimeout:      cfg.AdapterTimeout,
	})

	mgr := session.New(agg, st, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := mgr.Start(ctx); err != nil {
		// The viewer renders the error state with a retry hint, so
		// this is not fatal here.
		logging.Error("initial load failed", "error", err)
	}
	mgr.StartBackground(ctx)

	p := tea.NewProgram(ui.New(mgr), tea.WithAltScreen())
	mgr.SetNotify(func() {
		p.Send(ui.FeedChangedMsg{})
	})

	if _, err := p.Run(); err != nil {
		logging.Error("application error", "error", err)
		fatal("Error: %v", err)
	}

	cancel()
	mgr.Wait()
	logging.Info("driftfeed exiting")
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
