// Package node runs the probe node: one goroutine that owns the UI page and
// alternates between sampling turns and inbound-message turns.
//
// Exactly one handler runs per wake of the loop and each handler finishes
// before the next wait begins. The page is only ever touched from the loop
// goroutine, and every turn mutates and flushes the page with no suspension
// point in between, so the page needs no lock.
package node

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/matthewbaird/probenode/internal/eventbus"
	"github.com/matthewbaird/probenode/internal/probe"
	"github.com/matthewbaird/probenode/internal/session"
	"github.com/matthewbaird/probenode/internal/ui"
	"github.com/matthewbaird/probenode/internal/wire"
)

// Element ids of the live readouts.
const (
	TempID  = "temp"
	WaterID = "water"
)

// Config holds node settings.
type Config struct {
	NodeID     uuid.UUID
	PageName   string
	Interval   time.Duration
	WaterLevel bool // also sample and display the water level channel
}

// Sampler performs one probe transaction. *probe.Reader implements it.
type Sampler interface {
	Sample(ctx context.Context, ch probe.Channel) (probe.Reading, error)
}

// Publisher receives an event after each sampling turn.
type Publisher interface {
	Publish(ctx context.Context, evt eventbus.Event)
}

// MessageHandler handles one inbound message inside a turn. It may mutate
// the page; pending changes are flushed to the host when it returns.
type MessageHandler func(ctx context.Context, page *ui.PageManager, msg wire.Message) error

// Option customizes a Node.
type Option func(*Node)

// WithPublisher attaches an event publisher.
func WithPublisher(p Publisher) Option {
	return func(n *Node) { n.bus = p }
}

// WithMessageHandler replaces the default, no-op inbound handler.
func WithMessageHandler(h MessageHandler) Option {
	return func(n *Node) { n.onMessage = h }
}

// WithTicks replaces the sampling ticker with ticks.
func WithTicks(ticks <-chan time.Time) Option {
	return func(n *Node) {
		n.newTicker = func(time.Duration) (<-chan time.Time, func()) { return ticks, func() {} }
	}
}

type readout struct {
	channel   probe.Channel
	label     string
	elementID string
}

// Node is the node context threaded through every turn.
type Node struct {
	cfg       Config
	page      *ui.PageManager
	session   session.Session
	sampler   Sampler
	bus       Publisher
	onMessage MessageHandler
	readouts  []readout
	newTicker func(time.Duration) (<-chan time.Time, func())
	started   bool
}

// New creates a node bound to cfg.NodeID. It sends nothing until Start.
func New(cfg Config, sess session.Session, sampler Sampler, opts ...Option) *Node {
	if cfg.PageName == "" {
		cfg.PageName = "Probe"
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Second
	}
	n := &Node{
		cfg:     cfg,
		page:    ui.NewPageManager(cfg.NodeID, cfg.PageName),
		session: sess,
		sampler: sampler,
		readouts: []readout{
			{channel: probe.Temperature, label: "Temp is: ", elementID: TempID},
		},
		newTicker: func(d time.Duration) (<-chan time.Time, func()) {
			t := time.NewTicker(d)
			return t.C, t.Stop
		},
	}
	if cfg.WaterLevel {
		n.readouts = append(n.readouts, readout{channel: probe.WaterLevel, label: "Water level: ", elementID: WaterID})
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Page exposes the page manager. It must only be used from the goroutine
// running the loop, or while the loop is not running.
func (n *Node) Page() *ui.PageManager {
	return n.page
}

// Run sends the initial page and then runs the loop until the inbound
// stream ends (nil), ctx is done, or a fatal error occurs.
func (n *Node) Run(ctx context.Context) error {
	if err := n.Start(ctx); err != nil {
		return err
	}
	return n.Loop(ctx)
}

// Start builds the page scaffold and transmits it in full. The changes
// recorded while building are discarded, since the host gets the whole page.
func (n *Node) Start(ctx context.Context) error {
	if n.started {
		return errors.New("node: already started")
	}
	root, err := n.page.ElementAt(ui.Root())
	if err != nil {
		return fmt.Errorf("node: page has no root: %w", err)
	}
	root.SetKind(ui.KindRows)
	for _, r := range n.readouts {
		value := ui.FromString("-")
		value.SetID(r.elementID)
		if err := root.AppendChild(ui.FromString(r.label)); err != nil {
			return fmt.Errorf("node: building page: %w", err)
		}
		if err := root.AppendChild(value); err != nil {
			return fmt.Errorf("node: building page: %w", err)
		}
	}
	n.page.GetChanges()

	msg, err := wire.NewSetPage(n.page.Snapshot())
	if err != nil {
		return err
	}
	if err := n.session.Send(ctx, msg); err != nil {
		return fmt.Errorf("node: sending page: %w", err)
	}
	n.started = true
	log.Printf("node: %s sent page %q", n.cfg.NodeID, n.cfg.PageName)
	return nil
}

// Loop runs one sampling turn immediately, then waits on the inbound stream
// and the sampling ticker and dispatches one handler per wake. Ticks fire at
// a fixed cadence from loop start; a turn that overruns the interval drops
// the ticks it missed.
func (n *Node) Loop(ctx context.Context) error {
	if !n.started {
		return errors.New("node: loop before start")
	}
	ticks, stop := n.newTicker(n.cfg.Interval)
	defer stop()
	inbound := n.session.Inbound()

	if err := n.handleTick(ctx); err != nil {
		return err
	}

	for {
		select {
		case msg, ok := <-inbound:
			if !ok {
				log.Printf("node: host session ended")
				return nil
			}
			if err := n.handleMessage(ctx, msg); err != nil {
				return err
			}
		case <-ticks:
			if err := n.handleTick(ctx); err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// handleTick samples every readout channel, writes the new text into the
// page and sends exactly the flushed changes. A failed transaction skips the
// tick without touching the page.
func (n *Node) handleTick(ctx context.Context) error {
	readings := make([]probe.Reading, 0, len(n.readouts))
	for _, r := range n.readouts {
		reading, err := n.sampler.Sample(ctx, r.channel)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Printf("node: skipping tick: %v", err)
			n.publish(ctx, eventbus.Event{ID: uuid.New().String(), NodeID: n.cfg.NodeID.String(), At: time.Now(), Err: err.Error()})
			return nil
		}
		readings = append(readings, reading)
	}

	// No suspension from here until the flush.
	handles := make([]*ui.Handle, len(n.readouts))
	for i, r := range n.readouts {
		h, err := n.page.ElementByID(r.elementID)
		if err != nil {
			return fmt.Errorf("node: locating readout: %w", err)
		}
		handles[i] = h
	}
	for i, h := range handles {
		h.SetText(readings[i].Text())
	}
	changes := n.page.GetChanges()

	evt := eventbus.NewEvent(n.cfg.NodeID.String(), readings)
	err := n.sendChanges(ctx, changes)
	evt.Published = err == nil
	n.publish(ctx, evt)
	return err
}

// handleMessage dispatches one inbound message. Every known type is
// currently a no-op unless a MessageHandler was configured; unknown types
// are logged and ignored.
func (n *Node) handleMessage(ctx context.Context, msg wire.Message) error {
	switch msg.Type {
	case wire.TypeUI, wire.TypePeripheral, wire.TypeDataset, wire.TypeEvent:
	default:
		log.Printf("node: ignoring unknown message type %q", msg.Type)
		return nil
	}
	if n.onMessage == nil {
		return nil
	}
	if err := n.onMessage(ctx, n.page, msg); err != nil {
		var pde *wire.ProtocolDecodeError
		if errors.As(err, &pde) {
			log.Printf("node: ignoring %s message %s: %v", msg.Type, msg.ID, err)
			return nil
		}
		return fmt.Errorf("node: handling %s message: %w", msg.Type, err)
	}
	if n.page.Pending() == 0 {
		return nil
	}
	return n.sendChanges(ctx, n.page.GetChanges())
}

func (n *Node) sendChanges(ctx context.Context, changes []ui.ElementUpdate) error {
	msg, err := wire.NewUpdateElements(changes)
	if err != nil {
		return err
	}
	if err := n.session.Send(ctx, msg); err != nil {
		return fmt.Errorf("node: sending update: %w", err)
	}
	return nil
}

func (n *Node) publish(ctx context.Context, evt eventbus.Event) {
	if n.bus != nil {
		n.bus.Publish(ctx, evt)
	}
}
