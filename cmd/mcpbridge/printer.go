package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/thedeathtitan/mcpbridge/internal/events"
	"github.com/thedeathtitan/mcpbridge/internal/tui/theme"
)

// eventPrinter writes tool-call progress for one conversation, one line per
// event. It is used by one-shot chat, where stdout is reserved for the answer.
type eventPrinter struct {
	mu             sync.Mutex
	w              io.Writer
	th             theme.Theme
	conversationID string
}

func newEventPrinter(w io.Writer, conversationID string) *eventPrinter {
	return &eventPrinter{w: w, th: theme.New(), conversationID: conversationID}
}

// Handle implements events.Handler.
func (p *eventPrinter) Handle(e events.Event) {
	if e.ConversationID() != p.conversationID {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	switch ev := e.(type) {
	case events.ToolCallStartedEvent:
		fmt.Fprintf(p.w, "%s %s %s\n", p.th.CallIcon(false, false), ev.Name, p.th.Faint.Render(compactJSON(ev.Arguments)))
	case events.ToolCallFinishedEvent:
		line := fmt.Sprintf("%s %s (%s)", p.th.CallIcon(true, ev.Success), ev.Name, ev.Duration.Round(time.Millisecond))
		if !ev.Success && ev.Err != nil {
			line += " " + p.th.Danger.Render(ev.Err.Error())
		}
		fmt.Fprintln(p.w, line)
	case events.ErrorEvent:
		fmt.Fprintln(p.w, p.th.Danger.Render(ev.Message))
	}
}

func compactJSON(v map[string]any) string {
	if len(v) == 0 {
		return "{}"
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
