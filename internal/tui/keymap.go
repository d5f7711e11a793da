package tui

import (
	"github.com/charmbracelet/bubbles/key"
)

// KeyBindings holds the chat keybindings.
type KeyBindings struct {
	Send       key.Binding
	Cancel     key.Binding
	Quit       key.Binding
	ToggleTool key.Binding
	ScrollUp   key.Binding
	ScrollDown key.Binding
	Clear      key.Binding
}

// NewKeyBindings creates the default keybindings.
func NewKeyBindings() KeyBindings {
	return KeyBindings{
		Send: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "send"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "cancel turn"),
		),
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c", "ctrl+d"),
			key.WithHelp("ctrl+c", "quit"),
		),
		ToggleTool: key.NewBinding(
			key.WithKeys("ctrl+t"),
			key.WithHelp("ctrl+t", "tools"),
		),
		ScrollUp: key.NewBinding(
			key.WithKeys("pgup"),
			key.WithHelp("pgup", "scroll up"),
		),
		ScrollDown: key.NewBinding(
			key.WithKeys("pgdown"),
			key.WithHelp("pgdn", "scroll down"),
		),
		Clear: key.NewBinding(
			key.WithKeys("ctrl+l"),
			key.WithHelp("ctrl+l", "clear"),
		),
	}
}

// ShortHelp returns keybindings for the status bar.
func (k KeyBindings) ShortHelp() []key.Binding {
	return []key.Binding{k.Send, k.Cancel, k.ToggleTool, k.ScrollUp, k.Quit}
}

// FullHelp returns all keybindings grouped by column.
func (k KeyBindings) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Send, k.Cancel, k.Clear},
		{k.ScrollUp, k.ScrollDown, k.ToggleTool, k.Quit},
	}
}
