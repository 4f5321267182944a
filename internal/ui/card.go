package ui

import (
	"fmt"
	"strings"

	"github.com/mattn/go-runewidth"

	"driftfeed/internal/model"
)

const maxBodyLines = 10

// renderCard draws a single article as a bordered card.
func renderCard(a model.Article, bookmarked bool, width int, styles Styles) string {
	inner := width - 6 // border plus padding
	if inner < 20 {
		inner = 20
	}

	var b strings.Builder

	title := runewidth.Truncate(a.Title, inner, "…")
	if bookmarked {
		title = styles.Bookmark.Render("★ ") + styles.Title.Render(title)
	} else {
		title = styles.Title.Render(title)
	}
	b.WriteString(title)
	b.WriteString("\n")

	meta := string(a.Kind)
	if a.Description != "" {
		meta = fmt.Sprintf("%s · %s", meta, a.Description)
	}
	b.WriteString(styles.SourceTag.Render(runewidth.Truncate(meta, inner, "…")))
	b.WriteString("\n\n")

	if a.BodyText != "" {
		for _, line := range wrapText(a.BodyText, inner, maxBodyLines) {
			b.WriteString(styles.Body.Render(line))
			b.WriteString("\n")
		}
	}

	if a.HasImage() {
		b.WriteString("\n")
		b.WriteString(styles.Meta.Render(runewidth.Truncate("▣ "+a.Thumbnail.URL, inner, "…")))
		b.WriteString("\n")
	}
	if a.ExternalURL != "" {
		b.WriteString(styles.Meta.Render(runewidth.Truncate("→ "+a.ExternalURL, inner, "…")))
	}

	return styles.CardBorder.Width(width - 2).Render(strings.TrimRight(b.String(), "\n"))
}

// wrapText greedily wraps text to the given display width, capped at
// maxLines with an ellipsis on the last line when truncated.
func wrapText(text string, width, maxLines int) []string {
	if width < 1 {
		width = 1
	}
	words := strings.Fields(text)
	var lines []string
	var cur strings.Builder
	curWidth := 0
	truncated := false

	flush := func() {
		if cur.Len() > 0 {
			lines = append(lines, cur.String())
			cur.Reset()
			curWidth = 0
		}
	}

	for _, w := range words {
		ww := runewidth.StringWidth(w)
		if curWidth > 0 && curWidth+1+ww > width {
			flush()
			if len(lines) >= maxLines {
				truncated = true
				break
			}
		}
		if curWidth > 0 {
			cur.WriteString(" ")
			curWidth++
		}
		if ww > width {
			w = runewidth.Truncate(w, width, "…")
			ww = runewidth.StringWidth(w)
		}
		cur.WriteString(w)
		curWidth += ww
	}
	if !truncated {
		flush()
	} else if n := len(lines); n > 0 {
		lines[n-1] = runewidth.Truncate(lines[n-1], width-1, "") + "…"
	}
	return lines
}
