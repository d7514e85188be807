// Package eventbus fans sampling events out to consumers off the event loop.
// The loop publishes after each sampling turn; subscribers run on the bus's
// own goroutine so slow consumers (the journal) never delay a turn.
package eventbus

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/matthewbaird/probenode/internal/probe"
)

// Event describes one sampling turn. It carries plain values only, never
// references into the page.
type Event struct {
	ID        string
	NodeID    string
	At        time.Time
	Readings  []probe.Reading
	Published bool   // the update reached the session
	Err       string // why the tick was skipped, if it was
}

// NewEvent stamps a new event for nodeID.
func NewEvent(nodeID string, readings []probe.Reading) Event {
	return Event{
		ID:       uuid.New().String(),
		NodeID:   nodeID,
		At:       time.Now(),
		Readings: readings,
	}
}

// Handler processes an event. Handlers are called from the bus goroutine
// only, one event at a time.
type Handler interface {
	HandleEvent(ctx context.Context, evt Event) error
}

// HandlerFunc adapts a plain function to the Handler interface.
type HandlerFunc func(ctx context.Context, evt Event) error

func (f HandlerFunc) HandleEvent(ctx context.Context, evt Event) error {
	return f(ctx, evt)
}

// Bus is a simple in-process event bus. Events are published to a buffered
// channel and dispatched to all subscribers in a single consumer goroutine.
type Bus struct {
	mu          sync.RWMutex
	subscribers []namedHandler
	events      chan Event
	done        chan struct{}
	started     bool
	closed      bool
}

type namedHandler struct {
	name    string
	handler Handler
}

// New creates a new Bus with the given channel buffer size.
func New(bufSize int) *Bus {
	if bufSize < 1 {
		bufSize = 64
	}
	return &Bus{
		events: make(chan Event, bufSize),
		done:   make(chan struct{}),
	}
}

// Subscribe registers a named handler. Must be called before Start.
func (b *Bus) Subscribe(name string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers = append(b.subscribers, namedHandler{name: name, handler: h})
}

// Publish sends an event to the bus without blocking. If the buffer is full
// or the bus is stopped the event is dropped and a warning is logged.
func (b *Bus) Publish(_ context.Context, evt Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		log.Printf("eventbus: stopped, dropping event %s", evt.ID)
		return
	}
	select {
	case b.events <- evt:
	default:
		log.Printf("eventbus: buffer full, dropping event %s", evt.ID)
	}
}

// Start begins the consumer goroutine. It processes events until the
// context is cancelled or Stop is called, draining what is buffered.
func (b *Bus) Start(ctx context.Context) {
	b.mu.Lock()
	b.started = true
	b.mu.Unlock()
	go func() {
		defer close(b.done)
		for {
			select {
			case evt, ok := <-b.events:
				if !ok {
					return
				}
				b.dispatch(ctx, evt)
			case <-ctx.Done():
				for {
					select {
					case evt, ok := <-b.events:
						if !ok {
							return
						}
						b.dispatch(context.Background(), evt)
					default:
						return
					}
				}
			}
		}
	}()
}

// Stop closes the bus and waits for the consumer goroutine to finish.
func (b *Bus) Stop() {
	b.mu.Lock()
	if !b.closed {
		b.closed = true
		close(b.events)
	}
	started := b.started
	b.mu.Unlock()
	if started {
		<-b.done
	}
}

func (b *Bus) dispatch(ctx context.Context, evt Event) {
	b.mu.RLock()
	subs := b.subscribers
	b.mu.RUnlock()

	for _, s := range subs {
		if err := s.handler.HandleEvent(ctx, evt); err != nil {
			log.Printf("eventbus: %s handler error for %s: %v", s.name, evt.ID, err)
		}
	}
}
