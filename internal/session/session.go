// Package session owns the feed shown to the viewer: the growing
// article list, the seen-id set, the bookmark set, and the background
// load policy. It is the only component that mutates feed state or the
// durable store.
package session

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"driftfeed/internal/config"
	"driftfeed/internal/logging"
	"driftfeed/internal/model"
	"driftfeed/internal/store"
)

// State is the session lifecycle state.
type State int

const (
	Uninitialized State = iota
	Loading
	Ready
	BackgroundLoading
	// ErrorState is reachable only when the very first load has no
	// cache to fall back on and every source failed.
	ErrorState
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case BackgroundLoading:
		return "background-loading"
	case ErrorState:
		return "error"
	default:
		return "unknown"
	}
}

// Batcher produces one merged, balanced batch. Satisfied by
// aggregate.Aggregator; an interface here so tests inject fakes.
type Batcher interface {
	FetchBatch(ctx context.Context, counts map[model.SourceKind]int, query string) ([]model.Article, error)
}

// KV is the durable key-value capability the session persists to.
// Satisfied by store.Store. Loss of the store is non-fatal everywhere.
type KV interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Remove(key string) error
	UpdatedAt(key string) (time.Time, error)
}

// Manager is the feed session manager.
type Manager struct {
	batcher Batcher
	kv      KV // may be nil: in-memory only
	cfg     *config.Config

	mu         sync.Mutex
	state      State
	items      []model.Article
	seen       map[int64]struct{}
	bookmarks  map[int64]struct{}
	loading    bool // single-flight guard for background loads
	generation uint64
	topicIdx   int
	query      string
	lastErr    error

	// notify is invoked (without the lock held) after every visible
	// state change so the viewer can repaint.
	notify func()
	// onUnbookmark is the explicit observer replacing implicit
	// cross-component events for unbookmark actions.
	onUnbookmark func(id int64)

	ctx context.Context // background operation context, set by Start
	wg  sync.WaitGroup
}

// New creates a Manager. kv may be nil for an in-memory session.
func New(batcher Batcher, kv KV, cfg *config.Config) *Manager {
	return &Manager{
		batcher:   batcher,
		kv:        kv,
		cfg:       cfg,
		state:     Uninitialized,
		seen:      make(map[int64]struct{}),
		bookmarks: make(map[int64]struct{}),
		ctx:       context.Background(),
	}
}

// SetNotify registers the repaint callback.
func (m *Manager) SetNotify(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notify = fn
}

// SetOnUnbookmark registers the unbookmark observer.
func (m *Manager) SetOnUnbookmark(fn func(id int64)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onUnbookmark = fn
}

// SetTopic changes the query used by subsequent loads. An empty topic
// returns the feed to random drift.
func (m *Manager) SetTopic(topic string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.query = topic
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// LastErr returns the error behind ErrorState, if any.
func (m *Manager) LastErr() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// Items returns a copy of the feed. Between refreshes the sequence is
// append-only: earlier entries never move or disappear.
func (m *Manager) Items() []model.Article {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Article, len(m.items))
	copy(out, m.items)
	return out
}

// Start brings the session up: hydrate from the durable cache when it
// is fresh and large enough, otherwise fetch an initial batch. The
// returned error is non-nil only in the no-cache, no-network case that
// leaves the session in ErrorState.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	m.ctx = ctx
	m.state = Loading
	m.mu.Unlock()
	m.notifyChanged()

	snapshot, fresh := m.loadSnapshot()
	m.loadBookmarks()

	if len(snapshot) >= m.cfg.MinHydrateCount && fresh {
		m.mu.Lock()
		m.items = snapshot
		m.seen = idSet(snapshot)
		m.mu.Unlock()
		m.loadSeen()
		m.mu.Lock()
		m.state = Ready
		m.mu.Unlock()
		m.notifyChanged()
		logging.Info("session hydrated from cache", "items", len(snapshot))
		return nil
	}

	batch, err := m.batcher.FetchBatch(ctx, m.scaledCounts(m.cfg.BatchSize), m.currentQuery())
	if err != nil {
		if len(snapshot) > 0 {
			// Stale cache beats an empty error screen.
			m.mu.Lock()
			m.items = snapshot
			m.seen = idSet(snapshot)
			m.state = Ready
			m.mu.Unlock()
			m.notifyChanged()
			logging.Warn("initial fetch failed, serving stale cache", "items", len(snapshot), "error", err)
			return nil
		}
		m.mu.Lock()
		m.state = ErrorState
		m.lastErr = err
		m.mu.Unlock()
		m.notifyChanged()
		return err
	}

	m.mu.Lock()
	m.items = batch
	m.seen = idSet(batch)
	m.state = Ready
	m.mu.Unlock()
	m.notifyChanged()
	m.persist()
	return nil
}

// StartBackground launches the periodic load-more poller. Cancel the
// context to stop it, then Wait.
func (m *Manager) StartBackground(ctx context.Context) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(m.cfg.PollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := m.LoadMore(ctx, m.cfg.BatchSize); err != nil {
					logging.Warn("periodic load failed", "error", err)
				}
			}
		}
	}()
}

// Wait blocks until all background goroutines exit.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// NotifyPosition reports the viewer's read position. Approaching the
// tail starts a background load; concurrent triggers collapse into the
// in-flight one.
func (m *Manager) NotifyPosition(pos int) {
	m.mu.Lock()
	nearEnd := m.state == Ready && len(m.items)-pos <= m.cfg.NearEndThreshold
	ctx := m.ctx
	m.mu.Unlock()

	if !nearEnd {
		return
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		if err := m.LoadMore(ctx, m.cfg.BatchSize); err != nil {
			logging.Warn("near-end load failed", "error", err)
		}
	}()
}

// LoadMore appends up to count new articles. It is single-flight: a
// call that finds another load in flight returns immediately and lets
// that load finish. Background-load failures are swallowed here by
// callers; the returned error exists for explicit invocations.
func (m *Manager) LoadMore(ctx context.Context, count int) error {
	m.mu.Lock()
	if m.loading || m.state == Loading || m.state == Uninitialized || m.state == ErrorState {
		m.mu.Unlock()
		return nil
	}
	m.loading = true
	if m.state == Ready {
		m.state = BackgroundLoading
	}
	gen := m.generation
	query := m.query
	m.mu.Unlock()
	m.notifyChanged()

	defer func() {
		m.mu.Lock()
		m.loading = false
		if m.state == BackgroundLoading {
			m.state = Ready
		}
		m.mu.Unlock()
		m.notifyChanged()
	}()

	added, err := m.fetchAndAppend(ctx, count, query, gen)
	if err != nil {
		return err
	}
	if added == 0 {
		// Everything was already seen: retry once with an alternate
		// topic, then give up quietly for this cycle.
		alt := m.nextTopic()
		if _, err := m.fetchAndAppend(ctx, count, alt, gen); err != nil {
			return err
		}
	}
	return nil
}

// fetchAndAppend runs one batch and appends the unseen part, unless a
// refresh superseded gen in the meantime.
func (m *Manager) fetchAndAppend(ctx context.Context, count int, query string, gen uint64) (int, error) {
	batch, err := m.batcher.FetchBatch(ctx, m.scaledCounts(count), query)
	if err != nil {
		return 0, err
	}

	m.mu.Lock()
	if gen != m.generation {
		// A refresh replaced the feed while this load was in flight.
		// Appending now would corrupt the new state; drop the result.
		m.mu.Unlock()
		return 0, nil
	}
	added := 0
	for _, a := range batch {
		if _, dup := m.seen[a.ID]; dup {
			continue
		}
		m.seen[a.ID] = struct{}{}
		m.items = append(m.items, a)
		added++
	}
	m.mu.Unlock()

	if added > 0 {
		m.notifyChanged()
		m.persist()
	}
	return added, nil
}

// Refresh replaces the feed wholesale and resets the seen set to
// exactly the new ids. Unlike background loads, a total failure here is
// user-visible.
func (m *Manager) Refresh(ctx context.Context) error {
	m.mu.Lock()
	m.generation++
	gen := m.generation
	m.state = Loading
	query := m.query
	m.mu.Unlock()
	m.notifyChanged()

	batch, err := m.batcher.FetchBatch(ctx, m.scaledCounts(m.cfg.BatchSize), query)

	m.mu.Lock()
	if gen != m.generation {
		m.mu.Unlock()
		return nil
	}
	if err != nil {
		if len(m.items) > 0 {
			// Keep showing what we have; surface the error to the caller.
			m.state = Ready
		} else {
			m.state = ErrorState
			m.lastErr = err
		}
		m.mu.Unlock()
		m.notifyChanged()
		return err
	}
	m.items = batch
	m.seen = idSet(batch)
	m.state = Ready
	m.lastErr = nil
	m.mu.Unlock()
	m.notifyChanged()
	m.persist()
	return nil
}

// Bookmark marks an article id as saved and persists the set.
func (m *Manager) Bookmark(id int64) {
	m.mu.Lock()
	m.bookmarks[id] = struct{}{}
	m.mu.Unlock()
	m.persistBookmarks()
	m.notifyChanged()
}

// Unbookmark removes a saved id, persists, and fires the observer.
func (m *Manager) Unbookmark(id int64) {
	m.mu.Lock()
	delete(m.bookmarks, id)
	fn := m.onUnbookmark
	m.mu.Unlock()
	m.persistBookmarks()
	if fn != nil {
		fn(id)
	}
	m.notifyChanged()
}

// IsBookmarked reports whether id is saved.
func (m *Manager) IsBookmarked(id int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.bookmarks[id]
	return ok
}

// Bookmarks returns the saved subset of the current feed, in feed order.
func (m *Manager) Bookmarks() []model.Article {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Article
	for _, a := range m.items {
		if _, ok := m.bookmarks[a.ID]; ok {
			out = append(out, a)
		}
	}
	return out
}

// currentQuery returns the active topic.
func (m *Manager) currentQuery() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.query
}

// nextTopic rotates through the configured alternate topics.
func (m *Manager) nextTopic() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.cfg.Topics) == 0 {
		return ""
	}
	topic := m.cfg.Topics[m.topicIdx%len(m.cfg.Topics)]
	m.topicIdx++
	return topic
}

// scaledCounts distributes total across the configured proportions
// using largest remainders, so the sum equals total.
func (m *Manager) scaledCounts(total int) map[model.SourceKind]int {
	props := m.cfg.Proportions
	propTotal := 0
	for _, p := range props {
		propTotal += p
	}
	if propTotal == 0 || total <= 0 {
		return map[model.SourceKind]int{}
	}

	counts := make(map[model.SourceKind]int, len(props))
	type frac struct {
		kind model.SourceKind
		rem  int
	}
	var fracs []frac
	assigned := 0
	for kind, p := range props {
		exact := total * p
		counts[kind] = exact / propTotal
		assigned += counts[kind]
		fracs = append(fracs, frac{kind, exact % propTotal})
	}
	// Hand out the remainder to the largest fractional parts. Order of
	// ties follows the sort, which is stable enough for feed purposes.
	for assigned < total {
		best := -1
		for i, f := range fracs {
			if best < 0 || f.rem > fracs[best].rem {
				best = i
			}
		}
		if best < 0 {
			break
		}
		counts[fracs[best].kind]++
		fracs[best].rem = -1
		assigned++
	}
	return counts
}

func (m *Manager) notifyChanged() {
	m.mu.Lock()
	fn := m.notify
	m.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func idSet(articles []model.Article) map[int64]struct{} {
	set := make(map[int64]struct{}, len(articles))
	for _, a := range articles {
		set[a.ID] = struct{}{}
	}
	return set
}

// loadSnapshot reads the persisted feed and reports whether it is
// fresh enough to hydrate from.
func (m *Manager) loadSnapshot() ([]model.Article, bool) {
	if m.kv == nil {
		return nil, false
	}
	raw, ok, err := m.kv.Get(store.KeyFeedSnapshot)
	if err != nil || !ok {
		if err != nil {
			logging.Warn("snapshot read failed", "error", err)
		}
		return nil, false
	}
	var items []model.Article
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		logging.Warn("snapshot corrupt, discarding", "error", err)
		_ = m.kv.Remove(store.KeyFeedSnapshot)
		return nil, false
	}
	at, err := m.kv.UpdatedAt(store.KeyFeedSnapshot)
	if err != nil {
		return items, false
	}
	return items, time.Since(at) < m.cfg.RefreshStaleness
}

// persist writes the feed snapshot. Storage loss is logged and
// otherwise ignored; the session continues in-memory.
func (m *Manager) persist() {
	if m.kv == nil {
		return
	}
	m.mu.Lock()
	items := make([]model.Article, len(m.items))
	copy(items, m.items)
	m.mu.Unlock()

	raw, err := json.Marshal(items)
	if err != nil {
		return
	}
	if err := m.kv.Set(store.KeyFeedSnapshot, string(raw)); err != nil {
		logging.Warn("snapshot write failed", "error", err)
	}

	m.mu.Lock()
	ids := make([]int64, 0, len(m.seen))
	for id := range m.seen {
		ids = append(ids, id)
	}
	m.mu.Unlock()
	if raw, err := json.Marshal(ids); err == nil {
		if err := m.kv.Set(store.KeySeenIDs, string(raw)); err != nil {
			logging.Warn("seen-set write failed", "error", err)
		}
	}
}

// loadSeen merges the persisted seen-id set into the live one, so ids
// shown in a previous run stay suppressed even if the snapshot was
// trimmed since.
func (m *Manager) loadSeen() {
	if m.kv == nil {
		return
	}
	raw, ok, err := m.kv.Get(store.KeySeenIDs)
	if err != nil || !ok {
		return
	}
	var ids []int64
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return
	}
	m.mu.Lock()
	for _, id := range ids {
		m.seen[id] = struct{}{}
	}
	m.mu.Unlock()
}

func (m *Manager) loadBookmarks() {
	if m.kv == nil {
		return
	}
	raw, ok, err := m.kv.Get(store.KeyBookmarks)
	if err != nil || !ok {
		return
	}
	var ids []int64
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return
	}
	m.mu.Lock()
	for _, id := range ids {
		m.bookmarks[id] = struct{}{}
	}
	m.mu.Unlock()
}

func (m *Manager) persistBookmarks() {
	if m.kv == nil {
		return
	}
	m.mu.Lock()
	ids := make([]int64, 0, len(m.bookmarks))
	for id := range m.bookmarks {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	raw, err := json.Marshal(ids)
	if err != nil {
		return
	}
	if err := m.kv.Set(store.KeyBookmarks, string(raw)); err != nil {
		logging.Warn("bookmark write failed", "error", err)
	}
}
