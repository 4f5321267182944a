// Package ui is the terminal card viewer: one article per screen,
// j/k paging, topic search, bookmarks. All feed mutation goes through
// the session manager; the viewer only reads and signals position.
package ui

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"driftfeed/internal/model"
	"driftfeed/internal/session"
)

// Feed is the slice of the session manager the viewer needs.
type Feed interface {
	Items() []model.Article
	State() session.State
	LastErr() error
	NotifyPosition(pos int)
	Refresh(ctx context.Context) error
	SetTopic(topic string)
	Bookmark(id int64)
	Unbookmark(id int64)
	IsBookmarked(id int64) bool
}

// FeedChangedMsg is sent (via Program.Send) whenever the session
// mutates, so the viewer repaints without polling.
type FeedChangedMsg struct{}

type refreshDoneMsg struct{ err error }

// Model is the root Bubble Tea model.
type Model struct {
	feed   Feed
	styles Styles

	cursor    int
	width     int
	height    int
	searching bool
	statusErr error

	spin   spinner.Model
	search textinput.Model
}

// New creates the viewer over the given feed.
func New(feed Feed) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(colorAccent)

	ti := textinput.New()
	ti.Placeholder = "topic (empty for random drift)"
	ti.CharLimit = 64

	return Model{
		feed:   feed,
		styles: DefaultStyles(),
		spin:   sp,
		search: ti,
	}
}

// Init starts the spinner.
func (m Model) Init() tea.Cmd {
	return m.spin.Tick
}

// Update handles keys, resizes, and session change signals.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case FeedChangedMsg:
		m.clampCursor()
		return m, nil

	case refreshDoneMsg:
		m.statusErr = msg.err
		m.cursor = 0
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if m.searching {
			return m.updateSearch(msg)
		}
		return m.updateBrowse(msg)
	}

	return m, nil
}

func (m Model) updateBrowse(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit

	case "down", "j", " ":
		items := m.feed.Items()
		if m.cursor < len(items)-1 {
			m.cursor++
		}
		m.feed.NotifyPosition(m.cursor)

	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}

	case "g":
		m.cursor = 0

	case "b":
		if a, ok := m.current(); ok {
			if m.feed.IsBookmarked(a.ID) {
				m.feed.Unbookmark(a.ID)
			} else {
				m.feed.Bookmark(a.ID)
			}
		}

	case "r":
		m.statusErr = nil
		return m, refreshCmd(m.feed)

	case "/":
		m.searching = true
		m.search.SetValue("")
		m.search.Focus()
		return m, textinput.Blink
	}

	return m, nil
}

func (m Model) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.searching = false
		m.search.Blur()
		return m, nil
	case "enter":
		m.searching = false
		m.search.Blur()
		m.feed.SetTopic(m.search.Value())
		m.statusErr = nil
		return m, refreshCmd(m.feed)
	}
	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	return m, cmd
}

func refreshCmd(feed Feed) tea.Cmd {
	return func() tea.Msg {
		return refreshDoneMsg{err: feed.Refresh(context.Background())}
	}
}

// View renders the current card plus chrome.
func (m Model) View() string {
	if m.width == 0 {
		return "Initialising..."
	}

	switch m.feed.State() {
	case session.Loading, session.Uninitialized:
		return fmt.Sprintf("\n  %s loading feed...\n", m.spin.View())
	case session.ErrorState:
		msg := "every source failed"
		if err := m.feed.LastErr(); err != nil {
			msg = err.Error()
		}
		return fmt.Sprintf("\n  %s\n\n  %s\n",
			m.styles.ErrorText.Render("could not load the feed: "+msg),
			m.styles.HelpBar.Render("r retry · q quit"))
	}

	items := m.feed.Items()
	if len(items) == 0 {
		return fmt.Sprintf("\n  %s nothing to show yet\n", m.spin.View())
	}

	m.clampCursor()
	a := items[m.cursor]
	card := renderCard(a, m.feed.IsBookmarked(a.ID), m.width, m.styles)

	pos := m.styles.Position.Render(fmt.Sprintf("%d/%d", m.cursor+1, len(items)))
	if m.feed.State() == session.BackgroundLoading {
		pos += "  " + m.spin.View() + m.styles.Meta.Render(" loading more")
	}
	if m.statusErr != nil {
		pos += "  " + m.styles.ErrorText.Render("refresh failed, showing previous feed")
	}

	help := m.styles.HelpBar.Render("j/k next/prev · b bookmark · / topic · r refresh · q quit")

	var search string
	if m.searching {
		search = "\n" + m.styles.SearchBar.Render(m.search.View())
	}

	return lipgloss.JoinVertical(lipgloss.Left, card, pos, help) + search
}

func (m *Model) clampCursor() {
	n := len(m.feed.Items())
	if n == 0 {
		m.cursor = 0
		return
	}
	if m.cursor >= n {
		m.cursor = n - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m Model) current() (model.Article, bool) {
	items := m.feed.Items()
	if m.cursor < 0 || m.cursor >= len(items) {
		return model.Article{}, false
	}
	return items[m.cursor], true
}
