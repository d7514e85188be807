package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/matthewbaird/probenode/internal/ui"
	"github.com/matthewbaird/probenode/internal/wire"
)

// Peer holds host-side state for one connected node: the mirror of its page.
type Peer struct {
	ID           string    `json:"id"`
	NodeID       string    `json:"node_id"`
	CreatedAt    time.Time `json:"created_at"`
	LastActiveAt time.Time `json:"last_active_at"`

	mu        sync.Mutex
	mirror    *ui.Mirror
	updates   int
	connected bool
}

// NewPeer creates host-side state for the node identified by nodeID.
func NewPeer(nodeID string) *Peer {
	now := time.Now()
	return &Peer{
		ID:           uuid.New().String(),
		NodeID:       nodeID,
		CreatedAt:    now,
		LastActiveAt: now,
		mirror:       ui.NewMirror(),
	}
}

// Touch updates the last activity timestamp.
func (p *Peer) Touch() {
	p.mu.Lock()
	p.LastActiveAt = time.Now()
	p.mu.Unlock()
}

// Apply folds a ui message into the mirror. Other message types are
// ignored.
func (p *Peer) Apply(msg wire.Message) error {
	if msg.Type != wire.TypeUI {
		p.Touch()
		return nil
	}
	um, err := msg.UI()
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.LastActiveAt = time.Now()
	switch um.Op {
	case wire.OpSetPage:
		p.mirror.SetPage(*um.Page)
	case wire.OpUpdateElements:
		if err := p.mirror.Apply(um.Updates); err != nil {
			return fmt.Errorf("peer %s: %w", p.NodeID, err)
		}
		p.updates++
	}
	return nil
}

// PageView is a point-in-time copy of a peer's mirrored page.
type PageView struct {
	Peer     string  `json:"peer"`
	NodeID   string  `json:"node_id"`
	Page     ui.Page `json:"page"`
	Rendered string  `json:"rendered"`
	Updates  int     `json:"updates"`
}

// View returns a copy of the mirrored page. ok is false until the node has
// sent its first full page.
func (p *Peer) View() (PageView, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.mirror.HasPage() {
		return PageView{}, false
	}
	return PageView{
		Peer:     p.ID,
		NodeID:   p.NodeID,
		Page:     p.mirror.Page(),
		Rendered: p.mirror.Render(),
		Updates:  p.updates,
	}, true
}

// PeerInfo summarizes a peer for listings.
type PeerInfo struct {
	ID           string    `json:"id"`
	NodeID       string    `json:"node_id"`
	CreatedAt    time.Time `json:"created_at"`
	LastActiveAt time.Time `json:"last_active_at"`
	HasPage      bool      `json:"has_page"`
	Updates      int       `json:"updates"`
}

// Info returns a summary of the peer.
func (p *Peer) Info() PeerInfo {
	p.mu.Lock()
	defer p.mu.Unlock()
	return PeerInfo{
		ID:           p.ID,
		NodeID:       p.NodeID,
		CreatedAt:    p.CreatedAt,
		LastActiveAt: p.LastActiveAt,
		HasPage:      p.mirror.HasPage(),
		Updates:      p.updates,
	}
}

// SetConnected marks whether the peer's session is open. A connected peer
// is never idle, however slowly its node samples.
func (p *Peer) SetConnected(connected bool) {
	p.mu.Lock()
	p.connected = connected
	p.LastActiveAt = time.Now()
	p.mu.Unlock()
}

// IsIdle returns true if the peer is disconnected and has been idle longer
// than the timeout.
func (p *Peer) IsIdle(timeout time.Duration) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.connected && time.Since(p.LastActiveAt) > timeout
}

// Manager tracks connected peers.
type Manager struct {
	mu          sync.RWMutex
	peers       map[string]*Peer
	idleTimeout time.Duration
}

// NewManager creates a peer manager that forgets peers idle for longer than
// idleTimeout.
func NewManager(idleTimeout time.Duration) *Manager {
	return &Manager{
		peers:       make(map[string]*Peer),
		idleTimeout: idleTimeout,
	}
}

// Create registers a new peer and returns it.
func (m *Manager) Create(nodeID string) *Peer {
	p := NewPeer(nodeID)
	m.mu.Lock()
	m.peers[p.ID] = p
	m.mu.Unlock()
	return p
}

// Connect registers a new peer whose session is open.
func (m *Manager) Connect(nodeID string) *Peer {
	p := NewPeer(nodeID)
	p.connected = true
	m.mu.Lock()
	m.peers[p.ID] = p
	m.mu.Unlock()
	return p
}

// Get retrieves a peer by ID. Returns nil if not found or idle.
func (m *Manager) Get(id string) *Peer {
	m.mu.RLock()
	p, ok := m.peers[id]
	m.mu.RUnlock()
	if !ok {
		return nil
	}
	if p.IsIdle(m.idleTimeout) {
		m.Remove(id)
		return nil
	}
	return p
}

// List returns all live peers.
func (m *Manager) List() []*Peer {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Peer, 0, len(m.peers))
	for _, p := range m.peers {
		if !p.IsIdle(m.idleTimeout) {
			out = append(out, p)
		}
	}
	return out
}

// Remove deletes a peer.
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	delete(m.peers, id)
	m.mu.Unlock()
}

// Cleanup removes all idle peers. Called periodically.
func (m *Manager) Cleanup() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, p := range m.peers {
		if p.IsIdle(m.idleTimeout) {
			delete(m.peers, id)
		}
	}
}
