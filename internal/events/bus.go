package events

import (
	"sync"

	"github.com/thedeathtitan/mcpbridge/internal/logging"
)

// DefaultBufferSize is the number of events a Bus holds before dropping.
const DefaultBufferSize = 100

// Handler is a function that handles events.
type Handler func(Event)

// Bus is a goroutine-safe event bus for dispatching events.
type Bus struct {
	mu       sync.RWMutex
	handlers []Handler
	ch       chan Event
	done     chan struct{}
	stopped  chan struct{}
	once     sync.Once
	logger   *logging.Logger
}

// NewBus creates a new event bus. A nil logger discards drop warnings.
func NewBus(logger *logging.Logger) *Bus {
	if logger == nil {
		logger = logging.Nop()
	}
	b := newBus(DefaultBufferSize, logger)
	go b.run()
	return b
}

func newBus(size int, logger *logging.Logger) *Bus {
	return &Bus{
		handlers: make([]Handler, 0),
		ch:       make(chan Event, size), // Buffer to prevent blocking publishers
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
		logger:   logger,
	}
}

// run processes events from the channel.
func (b *Bus) run() {
	defer close(b.stopped)
	for {
		select {
		case event := <-b.ch:
			b.dispatch(event)
		case <-b.done:
			b.drain()
			return
		}
	}
}

// drain dispatches whatever was buffered before Close.
func (b *Bus) drain() {
	for {
		select {
		case event := <-b.ch:
			b.dispatch(event)
		default:
			return
		}
	}
}

// dispatch sends an event to all registered handlers.
func (b *Bus) dispatch(event Event) {
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers))
	copy(handlers, b.handlers)
	b.mu.RUnlock()

	for _, h := range handlers {
		if h != nil {
			h(event)
		}
	}
}

// Subscribe registers a handler to receive events.
// Returns an unsubscribe function.
func (b *Bus) Subscribe(h Handler) func() {
	b.mu.Lock()
	b.handlers = append(b.handlers, h)
	idx := len(b.handlers) - 1
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		// Mark as nil rather than removing to preserve indices
		if idx < len(b.handlers) {
			b.handlers[idx] = nil
		}
	}
}

// Publish sends an event to all subscribers.
// This is non-blocking due to the buffered channel.
func (b *Bus) Publish(event Event) {
	select {
	case b.ch <- event:
	default:
		b.logger.Warn("event bus full, dropping event",
			"type", event.Type().String(),
			"conversation", event.ConversationID(),
		)
	}
}

// Close shuts down the event bus after dispatching buffered events.
// Safe to call more than once.
func (b *Bus) Close() {
	b.once.Do(func() {
		close(b.done)
	})
	<-b.stopped
}
