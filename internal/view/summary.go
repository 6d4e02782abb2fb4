// Package view renders a live document as a terminal summary.
package view

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/abelbrown/crisiswatch/internal/feeds"
	"github.com/abelbrown/crisiswatch/internal/live"
)

const barWidth = 20

// Render returns a plain-terminal summary of doc: news, markets with their
// chart outcome, and stage outcomes. width bounds title length.
func Render(doc live.Document, s Styles, width int) string {
	if width <= 0 {
		width = 100
	}
	now, err := time.Parse(time.RFC3339, doc.Timestamp)
	if err != nil {
		now = time.Now()
	}
	titleWidth := max(20, width-30)

	var b strings.Builder
	b.WriteString(s.Header.Render("CRISISWATCH  " + doc.LastUpdated))
	b.WriteString("\n")

	b.WriteString(s.Section.Render(fmt.Sprintf("NEWS (%d, %d from feeds)", len(doc.News), doc.Meta.RSSCount)))
	b.WriteString("\n")
	if len(doc.News) == 0 {
		b.WriteString(s.Muted.Render("  no items"))
		b.WriteString("\n")
	}
	for _, item := range doc.News {
		title := s.Title.Render(feeds.Truncate(item.Title, titleWidth))
		if item.Type == feeds.TypeOSINT {
			title = s.OSINT.Render("X ") + title
		}
		fmt.Fprintf(&b, "%s %s %s\n",
			s.Age.Render(formatAge(now.Sub(item.Time))),
			s.SourceBadge.Render(feeds.Truncate(item.Source, 17)),
			title)
	}

	b.WriteString(s.Section.Render(fmt.Sprintf("MARKETS (%d of %d, %s)", len(doc.Markets), doc.Meta.MarketsFetched, doc.Meta.MarketsLLM.Result)))
	b.WriteString("\n")
	if len(doc.Markets) == 0 {
		b.WriteString(s.Muted.Render("  no markets"))
		b.WriteString("\n")
	}
	for _, m := range doc.Markets {
		o, ok := m.ChartOutcome()
		prob := 0.0
		if ok {
			prob = o.Probability
		}
		fmt.Fprintf(&b, "  %s %5.1f%%  %s  %s\n",
			bar(prob, s),
			prob,
			s.Title.Render(feeds.Truncate(m.Question, titleWidth)),
			s.Volume.Render(m.VolumeFormatted))
	}

	b.WriteString(s.Section.Render("STAGES"))
	b.WriteString("\n")
	for _, st := range doc.Meta.Stages {
		line := fmt.Sprintf("  %-15s %s", st.Name, statusStyle(st.Status, s).Render(st.Status))
		if st.Reason != "" {
			line += " " + s.Muted.Render(st.Reason)
		}
		if st.Error != "" {
			line += " " + s.StatusError.Render(feeds.Truncate(st.Error, 60))
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "%s\n", s.Muted.Render(fmt.Sprintf("  x: %s  history: %d points (%d synthesized)",
		doc.Meta.XDebug.Status, doc.Meta.HistoryPoints, doc.Meta.HistorySynth)))

	return b.String()
}

func statusStyle(status string, s Styles) lipgloss.Style {
	switch status {
	case "ok":
		return s.StatusOK
	case "degraded", "empty":
		return s.StatusWarn
	case "error":
		return s.StatusError
	default:
		return s.Muted
	}
}

func bar(prob float64, s Styles) string {
	filled := int(prob / 100 * barWidth)
	filled = min(max(filled, 0), barWidth)
	return s.BarFill.Render(strings.Repeat("█", filled)) + s.BarEmpty.Render(strings.Repeat("░", barWidth-filled))
}

// formatAge returns a compact relative age.
func formatAge(d time.Duration) string {
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
