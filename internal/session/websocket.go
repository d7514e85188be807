// Package session carries wire messages between a node and its host.
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/matthewbaird/probenode/internal/wire"
)

// NodeIDHeader carries the connecting node's identity on the upgrade request.
const NodeIDHeader = "X-Node-ID"

// inboundBuffer is how many received messages may wait for the event loop.
const inboundBuffer = 16

// Session is the node's view of its host relation.
type Session interface {
	// Inbound delivers received messages. It is closed once the session is
	// permanently gone.
	Inbound() <-chan wire.Message
	// Send blocks until msg is accepted for transmission.
	Send(ctx context.Context, msg wire.Message) error
}

// WebSocket is a Session over one websocket connection.
type WebSocket struct {
	conn    *websocket.Conn
	inbound chan wire.Message
	cancel  context.CancelFunc

	mu  sync.Mutex
	err error
}

// Dial connects to the host at url and identifies as nodeID.
func Dial(ctx context.Context, url, nodeID string) (*WebSocket, error) {
	header := http.Header{}
	header.Set(NodeIDHeader, nodeID)
	conn, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{HTTPHeader: header})
	if err != nil {
		return nil, fmt.Errorf("dialing host %s: %w", url, err)
	}
	return NewWebSocket(conn), nil
}

// NewWebSocket wraps an established connection and starts its reader.
func NewWebSocket(conn *websocket.Conn) *WebSocket {
	ctx, cancel := context.WithCancel(context.Background())
	s := &WebSocket{
		conn:    conn,
		inbound: make(chan wire.Message, inboundBuffer),
		cancel:  cancel,
	}
	go s.readLoop(ctx)
	return s
}

func (s *WebSocket) readLoop(ctx context.Context) {
	defer close(s.inbound)
	for {
		var msg wire.Message
		if err := wsjson.Read(ctx, s.conn, &msg); err != nil {
			if status := websocket.CloseStatus(err); status != -1 {
				log.Printf("session: connection closed: %v", status)
			} else if !errors.Is(err, context.Canceled) {
				log.Printf("session: read error: %v", err)
			}
			s.setErr(err)
			return
		}
		select {
		case s.inbound <- msg:
		case <-ctx.Done():
			s.setErr(ctx.Err())
			return
		}
	}
}

// Inbound implements Session.
func (s *WebSocket) Inbound() <-chan wire.Message {
	return s.inbound
}

// Recv waits for the next message. ok is false once the session is closed
// or ctx is done.
func (s *WebSocket) Recv(ctx context.Context) (msg wire.Message, ok bool) {
	select {
	case msg, ok = <-s.inbound:
		return msg, ok
	case <-ctx.Done():
		return wire.Message{}, false
	}
}

// Send implements Session.
func (s *WebSocket) Send(ctx context.Context, msg wire.Message) error {
	if err := wsjson.Write(ctx, s.conn, msg); err != nil {
		return fmt.Errorf("writing %s message: %w", msg.Type, err)
	}
	return nil
}

// Err returns why the inbound stream ended, or nil while it is open.
func (s *WebSocket) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *WebSocket) setErr(err error) {
	s.mu.Lock()
	if s.err == nil {
		s.err = err
	}
	s.mu.Unlock()
}

// Close closes the connection with a normal closure status.
func (s *WebSocket) Close() error {
	defer s.cancel()
	return s.conn.Close(websocket.StatusNormalClosure, "")
}
