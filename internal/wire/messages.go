// Package wire defines the node ↔ host session protocol.
package wire

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/matthewbaird/probenode/internal/ui"
)

// Top-level message types.
const (
	TypeUI         = "ui"
	TypePeripheral = "peripheral"
	TypeDataset    = "dataset"
	TypeEvent      = "event"
)

// UI operations.
const (
	OpSetPage        = "set_page"
	OpUpdateElements = "update_elements"
)

// Message is the envelope for every message in either direction.
type Message struct {
	Type string          `json:"type"`         // "ui", "peripheral", "dataset", "event"
	ID   string          `json:"id,omitempty"` // Sender-assigned message ID
	Data json.RawMessage `json:"data,omitempty"`
}

// ProtocolDecodeError reports a payload that does not match its type.
type ProtocolDecodeError struct {
	Type string
	Err  error
}

func (e *ProtocolDecodeError) Error() string {
	return fmt.Sprintf("wire: decoding %s payload: %v", e.Type, e.Err)
}

func (e *ProtocolDecodeError) Unwrap() error { return e.Err }

// ── UI ──────────────────────────────────────────────────────────────────────

// UIMessage is the payload of "ui" messages.
type UIMessage struct {
	Op      string             `json:"op"` // "set_page", "update_elements"
	Page    *ui.Page           `json:"page,omitempty"`
	Updates []ui.ElementUpdate `json:"updates,omitempty"`
}

// NewSetPage wraps a full page snapshot.
func NewSetPage(page ui.Page) (Message, error) {
	return newMessage(TypeUI, UIMessage{Op: OpSetPage, Page: &page})
}

// NewUpdateElements wraps one flushed batch of element updates.
func NewUpdateElements(updates []ui.ElementUpdate) (Message, error) {
	return newMessage(TypeUI, UIMessage{Op: OpUpdateElements, Updates: updates})
}

// UI decodes the payload of a "ui" message.
func (m Message) UI() (UIMessage, error) {
	var out UIMessage
	if err := m.decode(TypeUI, &out); err != nil {
		return UIMessage{}, err
	}
	switch out.Op {
	case OpSetPage:
		if out.Page == nil || out.Page.Root == nil {
			return UIMessage{}, &ProtocolDecodeError{Type: TypeUI, Err: fmt.Errorf("set_page without page")}
		}
	case OpUpdateElements:
	default:
		return UIMessage{}, &ProtocolDecodeError{Type: TypeUI, Err: fmt.Errorf("unknown op %q", out.Op)}
	}
	return out, nil
}

// ── Peripheral, dataset, event ──────────────────────────────────────────────

// PeripheralMessage is the payload of "peripheral" messages.
type PeripheralMessage struct {
	Op   string          `json:"op"`
	Name string          `json:"name,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

// DatasetMessage is the payload of "dataset" messages.
type DatasetMessage struct {
	Op   string          `json:"op"`
	Path []string        `json:"path,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

// EventMessage is the payload of "event" messages.
type EventMessage struct {
	Name string          `json:"name"`
	Data json.RawMessage `json:"data,omitempty"`
}

// NewPeripheral wraps a peripheral payload.
func NewPeripheral(p PeripheralMessage) (Message, error) { return newMessage(TypePeripheral, p) }

// NewDataset wraps a dataset payload.
func NewDataset(d DatasetMessage) (Message, error) { return newMessage(TypeDataset, d) }

// NewEvent wraps an event payload.
func NewEvent(e EventMessage) (Message, error) { return newMessage(TypeEvent, e) }

// Peripheral decodes the payload of a "peripheral" message.
func (m Message) Peripheral() (PeripheralMessage, error) {
	var out PeripheralMessage
	err := m.decode(TypePeripheral, &out)
	return out, err
}

// Dataset decodes the payload of a "dataset" message.
func (m Message) Dataset() (DatasetMessage, error) {
	var out DatasetMessage
	err := m.decode(TypeDataset, &out)
	return out, err
}

// Event decodes the payload of an "event" message.
func (m Message) Event() (EventMessage, error) {
	var out EventMessage
	err := m.decode(TypeEvent, &out)
	return out, err
}

func newID() string { return uuid.New().String() }

func newMessage(typ string, payload any) (Message, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Message{}, fmt.Errorf("encoding %s payload: %w", typ, err)
	}
	return Message{Type: typ, ID: newID(), Data: data}, nil
}

func (m Message) decode(want string, v any) error {
	if m.Type != want {
		return &ProtocolDecodeError{Type: want, Err: fmt.Errorf("message has type %q", m.Type)}
	}
	if len(m.Data) == 0 {
		return &ProtocolDecodeError{Type: want, Err: fmt.Errorf("empty data")}
	}
	if err := json.Unmarshal(m.Data, v); err != nil {
		return &ProtocolDecodeError{Type: want, Err: err}
	}
	return nil
}
