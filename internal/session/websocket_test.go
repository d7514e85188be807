package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthewbaird/probenode/internal/wire"
)

// echoHost answers every message with itself, then closes after n messages.
func echoHost(t *testing.T, n int, gotNode chan<- string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotNode <- r.Header.Get(NodeIDHeader)
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.CloseNow()
		for i := 0; i < n; i++ {
			var msg wire.Message
			if err := wsjson.Read(r.Context(), conn, &msg); err != nil {
				return
			}
			if err := wsjson.Write(r.Context(), conn, msg); err != nil {
				return
			}
		}
		conn.Close(websocket.StatusGoingAway, "done")
	}))
}

func TestWebSocket_RoundTrip(t *testing.T) {
	gotNode := make(chan string, 1)
	srv := echoHost(t, 1, gotNode)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ws, err := Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), "node-7")
	require.NoError(t, err)
	defer ws.Close()
	assert.Equal(t, "node-7", <-gotNode)

	out, err := wire.NewEvent(wire.EventMessage{Name: "hello"})
	require.NoError(t, err)
	require.NoError(t, ws.Send(ctx, out))

	in, ok := ws.Recv(ctx)
	require.True(t, ok)
	assert.Equal(t, out.ID, in.ID)
	ev, err := in.Event()
	require.NoError(t, err)
	assert.Equal(t, "hello", ev.Name)

	// The host closes after one message; the inbound stream ends.
	_, ok = ws.Recv(ctx)
	assert.False(t, ok)
	assert.Equal(t, websocket.StatusGoingAway, websocket.CloseStatus(ws.Err()))
}

func TestWebSocket_RecvHonorsContext(t *testing.T) {
	gotNode := make(chan string, 1)
	srv := echoHost(t, 1, gotNode)
	defer srv.Close()

	ws, err := Dial(context.Background(), "ws"+strings.TrimPrefix(srv.URL, "http"), "node-7")
	require.NoError(t, err)
	defer ws.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, ok := ws.Recv(ctx)
	assert.False(t, ok)
	assert.NoError(t, ws.Err(), "stream still open")
}

func TestDial_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := Dial(ctx, url, "node-7")
	assert.Error(t, err)
}
