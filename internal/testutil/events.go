// Package testutil provides common test utilities.
package testutil

import (
	"sync"
	"time"

	"github.com/thedeathtitan/mcpbridge/internal/events"
)

// EventCollector is a thread-safe event collector for test assertions.
// Subscribe it to an event bus, or use it directly as a publisher, and then
// query collected events.
type EventCollector struct {
	mu     sync.Mutex
	events []events.Event
	cond   *sync.Cond
}

// NewEventCollector creates a new EventCollector.
func NewEventCollector() *EventCollector {
	ec := &EventCollector{
		events: make([]events.Event, 0),
	}
	ec.cond = sync.NewCond(&ec.mu)
	return ec
}

// Handler returns a function suitable for bus.Subscribe().
func (c *EventCollector) Handler(e events.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.events = append(c.events, e)

	// Signal any waiters
	c.cond.Broadcast()
}

// Publish records e synchronously.
func (c *EventCollector) Publish(e events.Event) {
	c.Handler(e)
}

// Events returns all collected events.
func (c *EventCollector) Events() []events.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	result := make([]events.Event, len(c.events))
	copy(result, c.events)
	return result
}

// Types returns the type of every collected event, in order.
func (c *EventCollector) Types() []events.EventType {
	c.mu.Lock()
	defer c.mu.Unlock()
	result := make([]events.EventType, len(c.events))
	for i, e := range c.events {
		result[i] = e.Type()
	}
	return result
}

// ToolCalls returns the finished tool call events, in order.
func (c *EventCollector) ToolCalls() []events.ToolCallFinishedEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	var result []events.ToolCallFinishedEvent
	for _, e := range c.events {
		if f, ok := e.(events.ToolCallFinishedEvent); ok {
			result = append(result, f)
		}
	}
	return result
}

// WaitForType blocks until an event of the given type is observed or timeout
// expires. Returns true if the event was observed, false on timeout.
func (c *EventCollector) WaitForType(typ events.EventType, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)

	c.mu.Lock()
	defer c.mu.Unlock()

	for {
		for _, e := range c.events {
			if e.Type() == typ {
				return true
			}
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return false
		}

		// Wait with timeout using a goroutine
		done := make(chan struct{})
		go func() {
			time.Sleep(remaining)
			c.cond.Broadcast()
			close(done)
		}()

		c.cond.Wait()

		select {
		case <-done:
			for _, e := range c.events {
				if e.Type() == typ {
					return true
				}
			}
			return false
		default:
		}
	}
}

// Clear resets the collector's state.
func (c *EventCollector) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = make([]events.Event, 0)
}
