package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/thedeathtitan/mcpbridge/internal/tui/theme"
)

// ToastLevel represents the severity of a toast notification.
type ToastLevel int

const (
	ToastInfo ToastLevel = iota
	ToastSuccess
	ToastWarn
	ToastError
)

// toastClearMsg is sent when a toast should be cleared.
type toastClearMsg struct {
	id int
}

// Toast is a transient notice shown in the status bar.
type Toast struct {
	theme   theme.Theme
	message string
	level   ToastLevel
	visible bool
	id      int // identifies which toast a clear message belongs to
}

// NewToast creates a hidden toast.
func NewToast(th theme.Theme) Toast {
	return Toast{theme: th}
}

// Show displays message and returns a command that hides it again.
func (t *Toast) Show(message string, level ToastLevel) tea.Cmd {
	t.id++
	t.message = message
	t.level = level
	t.visible = true

	duration := 3 * time.Second
	if level == ToastWarn || level == ToastError {
		duration = 5 * time.Second
	}

	id := t.id
	return tea.Tick(duration, func(time.Time) tea.Msg {
		return toastClearMsg{id: id}
	})
}

// Visible reports whether the toast is showing.
func (t Toast) Visible() bool {
	return t.visible
}

// Update hides the toast when its timer fires. Older timers are ignored.
func (t Toast) Update(msg tea.Msg) Toast {
	if msg, ok := msg.(toastClearMsg); ok && msg.id == t.id {
		t.visible = false
	}
	return t
}

// View renders the toast, or "" when hidden.
func (t Toast) View() string {
	if !t.visible || t.message == "" {
		return ""
	}
	switch t.level {
	case ToastSuccess:
		return t.theme.Success.Render("✓ " + t.message)
	case ToastWarn:
		return t.theme.Warn.Render("⚠ " + t.message)
	case ToastError:
		return t.theme.Danger.Render("✖ " + t.message)
	default:
		return t.theme.Muted.Render("ℹ " + t.message)
	}
}
