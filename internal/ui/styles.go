package ui

import "github.com/charmbracelet/lipgloss"

// Palette for the card viewer.
var (
	colorAccent = lipgloss.Color("86")
	colorWhite  = lipgloss.Color("255")
	colorDim    = lipgloss.Color("242")
	colorAmber  = lipgloss.Color("214")
	colorRed    = lipgloss.Color("203")
)

// Styles holds all Lip Gloss style definitions for the viewer.
// Kept as a struct so tests and themes can inject their own.
type Styles struct {
	CardBorder lipgloss.Style
	Title      lipgloss.Style
	SourceTag  lipgloss.Style
	Meta       lipgloss.Style
	Body       lipgloss.Style
	Bookmark   lipgloss.Style
	HelpBar    lipgloss.Style
	Position   lipgloss.Style
	ErrorText  lipgloss.Style
	SearchBar  lipgloss.Style
}

// DefaultStyles returns the default look.
func DefaultStyles() Styles {
	s := Styles{}

	s.CardBorder = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("63")).
		Padding(1, 2)

	s.Title = lipgloss.NewStyle().Bold(true).Foreground(colorWhite)
	s.SourceTag = lipgloss.NewStyle().Foreground(colorAccent)
	s.Meta = lipgloss.NewStyle().Foreground(colorDim)
	s.Body = lipgloss.NewStyle().Foreground(lipgloss.Color("251"))
	s.Bookmark = lipgloss.NewStyle().Foreground(colorAmber)
	s.HelpBar = lipgloss.NewStyle().Foreground(colorDim).MarginTop(1)
	s.Position = lipgloss.NewStyle().Foreground(colorDim)
	s.ErrorText = lipgloss.NewStyle().Foreground(colorRed)
	s.SearchBar = lipgloss.NewStyle().
		Border(lipgloss.NormalBorder()).
		BorderForeground(colorAccent).
		Padding(0, 1)

	return s
}
