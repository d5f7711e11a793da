// Package theme provides the visual theme for the TUI and CLI output.
package theme

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Theme holds all the styles used in the TUI.
type Theme struct {
	// Text styles
	Base  lipgloss.Style
	Muted lipgloss.Style
	Faint lipgloss.Style
	Title lipgloss.Style

	// Accent colors
	Primary lipgloss.Style
	Success lipgloss.Style
	Warn    lipgloss.Style
	Danger  lipgloss.Style

	// Conversation roles
	User      lipgloss.Style
	Assistant lipgloss.Style
	Tool      lipgloss.Style

	// Layout chrome
	App       lipgloss.Style
	Prompt    lipgloss.Style
	StatusBar lipgloss.Style
}

var (
	primaryColor = lipgloss.AdaptiveColor{Light: "#EA580C", Dark: "#FB923C"} // Orange
	borderColor  = lipgloss.AdaptiveColor{Light: "#D0D7DE", Dark: "#3B4261"}
)

// New creates the default theme (orange accent).
func New() Theme {
	success := lipgloss.AdaptiveColor{Light: "#0F7B0F", Dark: "#9ECE6A"}
	warn := lipgloss.AdaptiveColor{Light: "#B45309", Dark: "#FBBF24"}
	danger := lipgloss.AdaptiveColor{Light: "#B00020", Dark: "#F7768E"}
	muted := lipgloss.AdaptiveColor{Light: "#6B7280", Dark: "#A9B1D6"}
	faint := lipgloss.AdaptiveColor{Light: "#9CA3AF", Dark: "#565F89"}
	blue := lipgloss.AdaptiveColor{Light: "#1D4ED8", Dark: "#7AA2F7"}

	return Theme{
		Base:  lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#111827", Dark: "#C0CAF5"}),
		Muted: lipgloss.NewStyle().Foreground(muted),
		Faint: lipgloss.NewStyle().Foreground(faint),
		Title: lipgloss.NewStyle().Bold(true),

		Primary: lipgloss.NewStyle().Foreground(primaryColor),
		Success: lipgloss.NewStyle().Foreground(success),
		Warn:    lipgloss.NewStyle().Foreground(warn),
		Danger:  lipgloss.NewStyle().Foreground(danger),

		User:      lipgloss.NewStyle().Bold(true).Foreground(blue),
		Assistant: lipgloss.NewStyle().Bold(true).Foreground(primaryColor),
		Tool:      lipgloss.NewStyle().Foreground(muted),

		App:    lipgloss.NewStyle().Padding(0, 1),
		Prompt: lipgloss.NewStyle().Foreground(primaryColor).Bold(true),
		StatusBar: lipgloss.NewStyle().
			Padding(0, 1).
			Foreground(muted),
	}
}

// CallIcon returns the marker for a tool call that is running, succeeded or
// failed.
func (t Theme) CallIcon(done, success bool) string {
	switch {
	case !done:
		return t.Warn.Render("◐")
	case success:
		return t.Success.Render("✓")
	default:
		return t.Danger.Render("✖")
	}
}

// StatusPill renders the session state as a pill with a background color.
func (t Theme) StatusPill(state string) string {
	pill := lipgloss.NewStyle().Padding(0, 1).Bold(true)
	switch state {
	case "ready":
		return pill.Background(lipgloss.Color("#14532D")).
			Foreground(lipgloss.Color("#DCFCE7")).Render("● READY")
	case "thinking":
		return pill.Background(lipgloss.Color("#713F12")).
			Foreground(lipgloss.Color("#FEF3C7")).Render("◐ ...")
	case "error":
		return pill.Background(lipgloss.Color("#7F1D1D")).
			Foreground(lipgloss.Color("#FEE2E2")).Render("✖ ERR")
	default:
		return pill.Background(lipgloss.Color("#374151")).
			Foreground(lipgloss.Color("#E5E7EB")).Render("○ " + strings.ToUpper(state))
	}
}

// StatusPillAnimated renders the thinking pill with a spinner frame.
func (t Theme) StatusPillAnimated(state string, spinnerFrame string) string {
	if state != "thinking" {
		return t.StatusPill(state)
	}
	return lipgloss.NewStyle().Padding(0, 1).Bold(true).
		Background(lipgloss.Color("#713F12")).
		Foreground(lipgloss.Color("#FEF3C7")).
		Render(spinnerFrame + " THINKING")
}

// RenderPane renders content in a pane with btop-style header (title embedded in border).
// Example output:
//
//	╭─┤ Conversation ├─────────────────────────╮
//	│ content here                             │
//	╰──────────────────────────────────────────╯
func (t Theme) RenderPane(title, content string, width int, focused bool) string {
	if width < 10 {
		width = 10
	}

	color := borderColor
	if focused {
		color = primaryColor
	}

	borderStyle := lipgloss.NewStyle().Foreground(color)
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(color)

	// 2 for borders, 2 for padding
	contentWidth := width - 4
	if contentWidth < 1 {
		contentWidth = 1
	}

	// "╭─┤ " + title + " ├" + rest + "╮" == width
	titleText := titleStyle.Render(title)
	restWidth := width - lipgloss.Width(titleText) - 7
	if restWidth < 0 {
		restWidth = 0
	}
	header := borderStyle.Render("╭─┤ ") + titleText + borderStyle.Render(" ├"+strings.Repeat("─", restWidth)+"╮")

	var body strings.Builder
	for _, line := range strings.Split(content, "\n") {
		padding := contentWidth - lipgloss.Width(line)
		if padding < 0 {
			padding = 0
		}
		body.WriteString(borderStyle.Render("│ "))
		body.WriteString(line)
		body.WriteString(strings.Repeat(" ", padding))
		body.WriteString(borderStyle.Render(" │"))
		body.WriteString("\n")
	}

	footerWidth := width - 2
	if footerWidth < 0 {
		footerWidth = 0
	}
	footer := borderStyle.Render("╰" + strings.Repeat("─", footerWidth) + "╯")

	return header + "\n" + body.String() + footer
}
