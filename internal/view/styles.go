package view

import "github.com/charmbracelet/lipgloss"

// Colors used in the summary.
var (
	colorPrimary   = lipgloss.Color("62")  // Purple
	colorSecondary = lipgloss.Color("241") // Gray
	colorMuted     = lipgloss.Color("240") // Darker gray
	colorHighlight = lipgloss.Color("212") // Pink
	colorSuccess   = lipgloss.Color("78")  // Green
	colorWarn      = lipgloss.Color("214") // Amber
	colorError     = lipgloss.Color("196") // Red
)

// Styles holds the Lip Gloss styles used by Render.
type Styles struct {
	Header      lipgloss.Style
	Section     lipgloss.Style
	SourceBadge lipgloss.Style
	Title       lipgloss.Style
	OSINT       lipgloss.Style
	Age         lipgloss.Style
	BarFill     lipgloss.Style
	BarEmpty    lipgloss.Style
	Volume      lipgloss.Style
	StatusOK    lipgloss.Style
	StatusWarn  lipgloss.Style
	StatusError lipgloss.Style
	Muted       lipgloss.Style
}

// DefaultStyles returns the default look.
func DefaultStyles() Styles {
	return Styles{
		Header: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("255")).
			Background(colorPrimary).
			Padding(0, 1),
		Section: lipgloss.NewStyle().
			Bold(true).
			Foreground(colorHighlight).
			MarginTop(1),
		SourceBadge: lipgloss.NewStyle().
			Foreground(colorPrimary).
			Width(18),
		Title:       lipgloss.NewStyle().Foreground(lipgloss.Color("255")),
		OSINT:       lipgloss.NewStyle().Foreground(colorHighlight).Bold(true),
		Age:         lipgloss.NewStyle().Foreground(colorMuted).Width(9).Align(lipgloss.Right),
		BarFill:     lipgloss.NewStyle().Foreground(colorSuccess),
		BarEmpty:    lipgloss.NewStyle().Foreground(colorMuted),
		Volume:      lipgloss.NewStyle().Foreground(colorSecondary),
		StatusOK:    lipgloss.NewStyle().Foreground(colorSuccess),
		StatusWarn:  lipgloss.NewStyle().Foreground(colorWarn),
		StatusError: lipgloss.NewStyle().Foreground(colorError).Bold(true),
		Muted:       lipgloss.NewStyle().Foreground(colorMuted),
	}
}
