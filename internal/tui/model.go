// Package tui implements the interactive chat front-end. It renders Bridge
// events and never talks to the MCP server directly.
package tui

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/thedeathtitan/mcpbridge/internal/events"
	"github.com/thedeathtitan/mcpbridge/internal/tui/theme"
)

// RunFunc sends one user prompt through the model/tool loop and returns the
// model's final text.
type RunFunc func(ctx context.Context, prompt string) (string, error)

// Subscriber delivers events. *events.Bus implements it.
type Subscriber interface {
	Subscribe(h events.Handler) func()
}

// Options configures the chat model.
type Options struct {
	ServerName     string
	ModelName      string
	ConversationID string
	Tools          []events.McpTool
	Run            RunFunc
	Events         Subscriber
}

type entryKind int

const (
	entryUser entryKind = iota
	entryAssistant
	entryTool
	entryError
	entryInfo
)

// entry is one line group in the conversation pane.
type entry struct {
	kind    entryKind
	text    string
	tool    string
	done    bool
	success bool
	elapsed time.Duration
}

// replyMsg carries the outcome of a RunFunc call.
type replyMsg struct {
	text string
	err  error
}

// Model is the root Bubble Tea model.
type Model struct {
	opts  Options
	theme theme.Theme
	keys  KeyBindings

	width  int
	height int

	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	help     help.Model
	toast    Toast

	entries   []entry
	tools     []events.McpTool
	showTools bool
	busy      bool
	lastErr   bool
	cancel    context.CancelFunc

	eventCh     chan events.Event
	unsubscribe func()
}

// NewModel creates the chat model and subscribes to opts.Events.
func NewModel(opts Options) Model {
	th := theme.New()

	in := textinput.New()
	in.Placeholder = "Ask something. The model may call MCP tools to answer."
	in.Prompt = th.Prompt.Render("› ")
	in.CharLimit = 4000
	in.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = th.Warn

	keys := NewKeyBindings()

	// Only the page keys scroll; everything else goes to the input.
	vp := viewport.New(0, 0)
	vp.KeyMap = viewport.KeyMap{PageUp: keys.ScrollUp, PageDown: keys.ScrollDown}

	m := Model{
		opts:     opts,
		theme:    th,
		keys:     keys,
		input:    in,
		viewport: vp,
		spinner:  sp,
		help:     help.New(),
		toast:    NewToast(th),
		tools:    opts.Tools,
		eventCh:  make(chan events.Event, 100),
	}

	if opts.Events != nil {
		ch := m.eventCh
		m.unsubscribe = opts.Events.Subscribe(func(e events.Event) {
			select {
			case ch <- e:
			default:
				// Channel full, drop event
			}
		})
	}

	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.waitForEvent())
}

// waitForEvent returns a command that waits for the next event.
func (m Model) waitForEvent() tea.Cmd {
	ch := m.eventCh
	return func() tea.Msg {
		return <-ch
	}
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateLayout()
		return m, nil

	case tea.KeyMsg:
		if handled, cmd := m.handleKey(msg); handled {
			return m, cmd
		}

	case replyMsg:
		m.busy = false
		m.cancel = nil
		if msg.err != nil {
			m.lastErr = true
			m.append(entry{kind: entryError, text: msg.err.Error()})
		} else {
			m.lastErr = false
			m.append(entry{kind: entryAssistant, text: msg.text})
		}
		return m, nil

	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		m.refresh()
		return m, cmd

	case toastClearMsg:
		m.toast = m.toast.Update(msg)
		return m, nil

	case events.Event:
		cmd := m.handleEvent(msg)
		return m, tea.Batch(cmd, m.waitForEvent())
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	if _, isKey := msg.(tea.KeyMsg); !isKey {
		m.viewport, cmd = m.viewport.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m *Model) handleKey(msg tea.KeyMsg) (bool, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.shutdown()
		return true, tea.Quit

	case key.Matches(msg, m.keys.Cancel):
		if m.busy && m.cancel != nil {
			m.cancel()
			m.append(entry{kind: entryInfo, text: "canceling turn..."})
		}
		return true, nil

	case key.Matches(msg, m.keys.ToggleTool):
		m.showTools = !m.showTools
		m.updateLayout()
		return true, nil

	case key.Matches(msg, m.keys.Clear):
		if m.busy {
			return true, nil
		}
		m.entries = nil
		m.refresh()
		return true, m.toast.Show("conversation cleared", ToastInfo)

	case key.Matches(msg, m.keys.ScrollUp, m.keys.ScrollDown):
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return true, cmd

	case key.Matches(msg, m.keys.Send):
		return true, m.submit()
	}
	return false, nil
}

// submit sends the current input as a prompt. Input is ignored while a turn
// is in flight.
func (m *Model) submit() tea.Cmd {
	prompt := strings.TrimSpace(m.input.Value())
	if prompt == "" || m.busy {
		return nil
	}
	m.input.Reset()
	m.append(entry{kind: entryUser, text: prompt})

	if m.opts.Run == nil {
		m.append(entry{kind: entryError, text: "no model configured"})
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.busy = true

	run := m.opts.Run
	return tea.Batch(
		func() tea.Msg {
			defer cancel()
			text, err := run(ctx, prompt)
			return replyMsg{text: text, err: err}
		},
		m.spinner.Tick,
	)
}

func (m *Model) handleEvent(e events.Event) tea.Cmd {
	if m.opts.ConversationID != "" && e.ConversationID() != "" && e.ConversationID() != m.opts.ConversationID {
		return nil
	}

	switch evt := e.(type) {
	case events.ToolCallStartedEvent:
		m.append(entry{kind: entryTool, tool: evt.Name, text: formatArgs(evt.Arguments)})

	case events.ToolCallFinishedEvent:
		idx := m.pendingTool(evt.Name)
		if idx < 0 {
			m.entries = append(m.entries, entry{kind: entryTool, tool: evt.Name})
			idx = len(m.entries) - 1
		}
		m.entries[idx].done = true
		m.entries[idx].success = evt.Success
		m.entries[idx].elapsed = evt.Duration
		if !evt.Success && evt.Err != nil {
			m.entries[idx].text = evt.Err.Error()
		}
		m.refresh()

	case events.ToolsUpdatedEvent:
		m.tools = evt.Tools
		m.refresh()
		return m.toast.Show(fmt.Sprintf("tool list updated: %d tools", len(evt.Tools)), ToastSuccess)

	case events.ErrorEvent:
		// The reply carries the same error; only show extra context.
		if evt.Message != "" && m.busy {
			m.append(entry{kind: entryInfo, text: evt.Message})
		}
	}
	return nil
}

// pendingTool finds the most recent unfinished call to name. Calls run one
// at a time so the latest match is the one that finished.
func (m *Model) pendingTool(name string) int {
	for i := len(m.entries) - 1; i >= 0; i-- {
		e := m.entries[i]
		if e.kind == entryTool && e.tool == name && !e.done {
			return i
		}
	}
	return -1
}

func (m *Model) append(e entry) {
	m.entries = append(m.entries, e)
	m.refresh()
}

func (m *Model) shutdown() {
	if m.cancel != nil {
		m.cancel()
	}
	if m.unsubscribe != nil {
		m.unsubscribe()
		m.unsubscribe = nil
	}
}

func (m *Model) updateLayout() {
	// header 1, input 1, status 1, pane borders 2
	paneHeight := m.height - 5
	if paneHeight < 3 {
		paneHeight = 3
	}
	m.viewport.Width = m.conversationWidth() - 4
	if m.viewport.Width < 10 {
		m.viewport.Width = 10
	}
	m.viewport.Height = paneHeight
	m.input.Width = m.width - 6
	m.help.Width = m.width
	m.refresh()
}

func (m Model) conversationWidth() int {
	if m.showTools {
		return m.width - m.toolsWidth()
	}
	return m.width
}

func (m Model) toolsWidth() int {
	w := m.width / 3
	if w < 24 {
		w = 24
	}
	return w
}

// refresh re-renders the conversation into the viewport and follows the tail.
func (m *Model) refresh() {
	m.viewport.SetContent(m.renderEntries())
	m.viewport.GotoBottom()
}

func (m Model) renderEntries() string {
	if len(m.entries) == 0 {
		return m.theme.Faint.Render("No messages yet.")
	}

	wrap := lipgloss.NewStyle().Width(max(m.viewport.Width, 10))
	var b strings.Builder
	for i, e := range m.entries {
		if i > 0 && e.kind != entryTool {
			b.WriteString("\n")
		}
		switch e.kind {
		case entryUser:
			b.WriteString(m.theme.User.Render("you") + "\n")
			b.WriteString(wrap.Render(e.text))
		case entryAssistant:
			b.WriteString(m.theme.Assistant.Render(m.assistantName()) + "\n")
			b.WriteString(wrap.Render(e.text))
		case entryTool:
			b.WriteString(m.renderTool(e))
		case entryError:
			b.WriteString(m.theme.Danger.Render("error: ") + wrap.Render(e.text))
		case entryInfo:
			b.WriteString(m.theme.Faint.Render(e.text))
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m Model) renderTool(e entry) string {
	icon := m.theme.CallIcon(e.done, e.success)
	if !e.done && m.busy {
		icon = m.spinner.View()
	}
	line := fmt.Sprintf("%s %s", icon, m.theme.Tool.Render(e.tool))
	if e.done {
		line += m.theme.Faint.Render(fmt.Sprintf(" (%s)", e.elapsed.Round(time.Millisecond)))
	}
	if e.text != "" {
		style := m.theme.Faint
		if e.done && !e.success {
			style = m.theme.Danger
		}
		line += " " + style.Render(truncate(e.text, max(m.viewport.Width-len(e.tool)-12, 10)))
	}
	return line
}

func (m Model) assistantName() string {
	if m.opts.ModelName != "" {
		return m.opts.ModelName
	}
	return "model"
}

// View implements tea.Model.
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	pane := m.theme.RenderPane("Conversation", m.viewport.View(), m.conversationWidth(), true)
	if m.showTools {
		pane = lipgloss.JoinHorizontal(lipgloss.Top, pane, m.renderToolsPane())
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(),
		pane,
		m.input.View(),
		m.renderStatusBar(),
	)
}

func (m Model) renderHeader() string {
	title := m.theme.Title.Render("mcpbridge")
	parts := []string{title}
	if m.opts.ServerName != "" {
		parts = append(parts, m.theme.Muted.Render(m.opts.ServerName))
	}
	parts = append(parts, m.theme.Faint.Render(fmt.Sprintf("%d tools", len(m.tools))))
	return m.theme.App.Render(strings.Join(parts, m.theme.Faint.Render(" · ")))
}

func (m Model) renderToolsPane() string {
	var b strings.Builder
	if len(m.tools) == 0 {
		b.WriteString(m.theme.Faint.Render("No tools"))
	}
	inner := m.toolsWidth() - 4
	for i, t := range m.tools {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(m.theme.Primary.Render(truncate(t.Name, inner)))
		if t.Description != "" {
			b.WriteString("\n" + m.theme.Faint.Render(truncate(t.Description, inner)))
		}
	}

	lines := strings.Split(b.String(), "\n")
	if h := m.viewport.Height; len(lines) > h {
		lines = lines[:h]
	}
	for len(lines) < m.viewport.Height {
		lines = append(lines, "")
	}
	return m.theme.RenderPane("Tools", strings.Join(lines, "\n"), m.toolsWidth(), false)
}

func (m Model) renderStatusBar() string {
	state := "ready"
	switch {
	case m.busy:
		state = "thinking"
	case m.lastErr:
		state = "error"
	}
	pill := m.theme.StatusPillAnimated(state, m.spinner.View())
	if m.toast.Visible() {
		return pill + m.theme.StatusBar.Render(m.toast.View())
	}
	return pill + m.theme.StatusBar.Render(m.help.View(m.keys))
}

// formatArgs renders tool arguments compactly for the conversation pane.
func formatArgs(args map[string]any) string {
	if len(args) == 0 {
		return ""
	}
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Sprintf("%v", args)
	}
	return string(data)
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	r := []rune(s)
	if n <= 1 || len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
