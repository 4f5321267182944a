package ui

import (
	"context"
	"fmt"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-runewidth"

	"driftfeed/internal/model"
	"driftfeed/internal/session"
)

type fakeFeed struct {
	items     []model.Article
	state     session.State
	lastErr   error
	positions []int
	refreshes int
	topic     string
	bookmarks map[int64]bool
}

func newFakeFeed(n int) *fakeFeed {
	f := &fakeFeed{state: session.Ready, bookmarks: make(map[int64]bool)}
	for i := 1; i <= n; i++ {
		f.items = append(f.items, model.Article{
			ID:       int64(i),
			Title:    fmt.Sprintf("Card %d", i),
			BodyText: "Some body text for the card viewer to wrap.",
			Kind:     model.KindTrending,
		})
	}
	return f
}

func (f *fakeFeed) Items() []model.Article        { return f.items }
func (f *fakeFeed) State() session.State          { return f.state }
func (f *fakeFeed) LastErr() error                { return f.lastErr }
func (f *fakeFeed) NotifyPosition(pos int)        { f.positions = append(f.positions, pos) }
func (f *fakeFeed) Refresh(context.Context) error { f.refreshes++; return nil }
func (f *fakeFeed) SetTopic(topic string)         { f.topic = topic }
func (f *fakeFeed) Bookmark(id int64)             { f.bookmarks[id] = true }
func (f *fakeFeed) Unbookmark(id int64)           { delete(f.bookmarks, id) }
func (f *fakeFeed) IsBookmarked(id int64) bool    { return f.bookmarks[id] }

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	default:
		return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
	}
}

func sized(m Model) Model {
	next, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	return next.(Model)
}

func TestNavigationReportsPosition(t *testing.T) {
	feed := newFakeFeed(10)
	m := sized(New(feed))

	for i := 0; i < 3; i++ {
		next, _ := m.Update(key("j"))
		m = next.(Model)
	}
	if m.cursor != 3 {
		t.Fatalf("expected cursor 3 after three advances, got %d", m.cursor)
	}
	if len(feed.positions) != 3 || feed.positions[2] != 3 {
		t.Fatalf("expected position reports [1 2 3], got %v", feed.positions)
	}

	next, _ := m.Update(key("k"))
	m = next.(Model)
	if m.cursor != 2 {
		t.Fatalf("expected cursor 2 after back, got %d", m.cursor)
	}
}

func TestCursorStopsAtEnds(t *testing.T) {
	feed := newFakeFeed(2)
	m := sized(New(feed))

	next, _ := m.Update(key("k"))
	m = next.(Model)
	if m.cursor != 0 {
		t.Fatalf("cursor must not go below zero, got %d", m.cursor)
	}

	for i := 0; i < 5; i++ {
		next, _ = m.Update(key("j"))
		m = next.(Model)
	}
	if m.cursor != 1 {
		t.Fatalf("cursor must stop at the last card, got %d", m.cursor)
	}
}

func TestBookmarkToggle(t *testing.T) {
	feed := newFakeFeed(3)
	m := sized(New(feed))

	next, _ := m.Update(key("b"))
	m = next.(Model)
	if !feed.bookmarks[1] {
		t.Fatal("expected first card to be bookmarked")
	}
	next, _ = m.Update(key("b"))
	m = next.(Model)
	if feed.bookmarks[1] {
		t.Fatal("expected second press to unbookmark")
	}
	_ = m
}

func TestTopicSearchRefreshes(t *testing.T) {
	feed := newFakeFeed(3)
	m := sized(New(feed))

	next, _ := m.Update(key("/"))
	m = next.(Model)
	if !m.searching {
		t.Fatal("expected search mode after /")
	}
	for _, r := range "volcano" {
		next, _ = m.Update(key(string(r)))
		m = next.(Model)
	}
	next, cmd := m.Update(key("enter"))
	m = next.(Model)
	if m.searching {
		t.Fatal("expected search mode to close on enter")
	}
	if feed.topic != "volcano" {
		t.Fatalf("expected topic volcano, got %q", feed.topic)
	}
	if cmd == nil {
		t.Fatal("expected a refresh command")
	}
	if msg := cmd(); msg == nil {
		t.Fatal("refresh command produced no message")
	}
	if feed.refreshes != 1 {
		t.Fatalf("expected one refresh, got %d", feed.refreshes)
	}
}

func TestViewShowsCardAndPosition(t *testing.T) {
	feed := newFakeFeed(5)
	m := sized(New(feed))

	out := m.View()
	if !strings.Contains(out, "Card 1") {
		t.Fatalf("expected first card title in view, got:\n%s", out)
	}
	if !strings.Contains(out, "1/5") {
		t.Fatalf("expected position indicator 1/5, got:\n%s", out)
	}
}

func TestViewErrorState(t *testing.T) {
	feed := newFakeFeed(0)
	feed.state = session.ErrorState
	m := sized(New(feed))

	out := m.View()
	if !strings.Contains(out, "could not load") {
		t.Fatalf("expected error message, got:\n%s", out)
	}
	if !strings.Contains(out, "retry") {
		t.Fatalf("expected retry hint, got:\n%s", out)
	}
}

func TestWrapTextCapsLines(t *testing.T) {
	text := strings.Repeat("word ", 200)
	lines := wrapText(text, 20, 4)
	if len(lines) != 4 {
		t.Fatalf("expected 4 lines, got %d", len(lines))
	}
	if !strings.HasSuffix(lines[3], "…") {
		t.Fatalf("expected ellipsis on final line, got %q", lines[3])
	}
	for _, l := range lines {
		if runewidth.StringWidth(l) > 20 {
			t.Fatalf("line exceeds width: %q", l)
		}
	}
}
