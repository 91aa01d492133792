package styles

import "github.com/charmbracelet/lipgloss"

var (
	TITLE = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#7d56f4"))

	INFO = lipgloss.NewStyle().
		Italic(true).
		Foreground(lipgloss.Color("#888888"))

	SUCCESS = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#28a745"))

	ERROR = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#ee4b2b"))

	WARN = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#f0ad4e"))

	// chat

	OWN = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#1f6aa5"))

	PEER = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#2b7a0b"))

	MUTED = lipgloss.NewStyle().
		Foreground(lipgloss.Color("8"))

	// file browser

	SELECTED = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	DIR      = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
)

// Swatch renders a block in the given hex colour.
func Swatch(hex string) string {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(hex)).Render("██")
}
