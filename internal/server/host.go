package server

import (
	"log"
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/go-chi/chi/v5"

	"github.com/matthewbaird/probenode/internal/session"
	"github.com/matthewbaird/probenode/internal/wire"
)

// HostHandler accepts node sessions and keeps a mirror of each node's page.
type HostHandler struct {
	peers *session.Manager
}

// NewHostHandler creates a host handler tracking peers in m.
func NewHostHandler(m *session.Manager) *HostHandler {
	return &HostHandler{peers: m}
}

// ServeWS upgrades to WebSocket and folds every received message into the
// peer's mirror until the node disconnects.
func (h *HostHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	nodeID := r.Header.Get(session.NodeIDHeader)
	if nodeID == "" {
		writeError(w, http.StatusBadRequest, "MISSING_NODE_ID", session.NodeIDHeader+" header required")
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		log.Printf("host: websocket accept: %v", err)
		return
	}
	defer conn.CloseNow()

	peer := h.peers.Connect(nodeID)
	defer h.peers.Remove(peer.ID)
	defer peer.SetConnected(false)
	log.Printf("host: node %s connected as peer %s", nodeID, peer.ID)

	ctx := r.Context()
	for {
		var msg wire.Message
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			if websocket.CloseStatus(err) != -1 {
				log.Printf("host: node %s closed: %v", nodeID, websocket.CloseStatus(err))
			} else {
				log.Printf("host: node %s read: %v", nodeID, err)
			}
			return
		}
		if err := peer.Apply(msg); err != nil {
			// A bad update invalidates the mirror; the node must reconnect
			// and resend its page.
			log.Printf("host: node %s: %v", nodeID, err)
			conn.Close(websocket.StatusUnsupportedData, "mirror out of sync")
			return
		}
		if view, ok := peer.View(); ok && msg.Type == wire.TypeUI {
			log.Printf("host: node %s page %q (%d updates):\n%s", nodeID, view.Page.Name, view.Updates, view.Rendered)
		}
	}
}

// ListPeers handles GET /v1/peers.
func (h *HostHandler) ListPeers(w http.ResponseWriter, r *http.Request) {
	peers := h.peers.List()
	out := make([]session.PeerInfo, 0, len(peers))
	for _, p := range peers {
		out = append(out, p.Info())
	}
	writeJSON(w, http.StatusOK, out)
}

// GetPeerPage handles GET /v1/peers/{id}/page.
func (h *HostHandler) GetPeerPage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	peer := h.peers.Get(id)
	if peer == nil {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "no peer "+id)
		return
	}
	view, ok := peer.View()
	if !ok {
		writeError(w, http.StatusConflict, "NO_PAGE", "peer has not sent a page")
		return
	}
	writeJSON(w, http.StatusOK, view)
}
