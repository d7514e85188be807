package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthewbaird/probenode/internal/journal"
	"github.com/matthewbaird/probenode/internal/node"
	"github.com/matthewbaird/probenode/internal/probe"
	"github.com/matthewbaird/probenode/internal/session"
	"github.com/matthewbaird/probenode/internal/ui"
	"github.com/matthewbaird/probenode/internal/wire"
)

// constBus always reads the same raw value.
type constBus struct{ raw []byte }

func (b constBus) Write(byte, []byte) error { return nil }

func (b constBus) Read(_ byte, p []byte) error {
	copy(p, b.raw)
	return nil
}

func getJSON(t *testing.T, url string, v any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if v != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
	}
	return resp.StatusCode
}

// listPeers is safe to call from a polling goroutine.
func listPeers(url string) []session.PeerInfo {
	resp, err := http.Get(url + "/v1/peers")
	if err != nil {
		return nil
	}
	defer resp.Body.Close()
	var out []session.PeerInfo
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil
	}
	return out
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func TestHealthz(t *testing.T) {
	srv := httptest.NewServer(NewRouter(Config{}))
	defer srv.Close()

	var body map[string]string
	assert.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/healthz", &body))
	assert.Equal(t, "ok", body["status"])

	resp, err := http.Get(srv.URL + "/v1/readings")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode, "journal routes need a store")
}

func TestListReadings(t *testing.T) {
	store := journal.NewMemoryStore()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.WriteReadings(context.Background(), []probe.Reading{
		{Channel: "temperature", Raw: 100, Value: 0.001525878, Unit: "C", At: base},
		{Channel: "water_level", Raw: 512, Value: 512, At: base},
		{Channel: "temperature", Raw: 200, Value: 0.003051756, Unit: "C", At: base.Add(time.Minute)},
	}))
	srv := httptest.NewServer(NewRouter(Config{Journal: store}))
	defer srv.Close()

	var all readingsResponse
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/v1/readings", &all))
	assert.Equal(t, 3, all.Total)

	var temps readingsResponse
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/v1/readings?channel=temperature&limit=1", &temps))
	assert.Equal(t, 2, temps.Total)
	require.Len(t, temps.Readings, 1)
	assert.Equal(t, int64(200), temps.Readings[0].Raw, "newest first")

	var since readingsResponse
	q := "/v1/readings?since=" + base.Add(30*time.Second).Format(time.RFC3339)
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+q, &since))
	assert.Equal(t, 1, since.Total)

	var errBody map[string]string
	assert.Equal(t, http.StatusBadRequest, getJSON(t, srv.URL+"/v1/readings?limit=-1", &errBody))
	assert.Equal(t, "INVALID_LIMIT", errBody["code"])
	assert.Equal(t, http.StatusBadRequest, getJSON(t, srv.URL+"/v1/readings?until=yesterday", &errBody))
	assert.Equal(t, "INVALID_TIME", errBody["code"])
}

func TestServeWS_RequiresNodeID(t *testing.T) {
	srv := httptest.NewServer(NewRouter(Config{Peers: session.NewManager(time.Minute)}))
	defer srv.Close()

	_, resp, err := websocket.Dial(context.Background(), wsURL(srv), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetPeerPage_Errors(t *testing.T) {
	peers := session.NewManager(time.Minute)
	peer := peers.Create("node-1")
	srv := httptest.NewServer(NewRouter(Config{Peers: peers}))
	defer srv.Close()

	assert.Equal(t, http.StatusNotFound, getJSON(t, srv.URL+"/v1/peers/nope/page", nil))
	assert.Equal(t, http.StatusConflict, getJSON(t, srv.URL+"/v1/peers/"+peer.ID+"/page", nil))
}

func TestServeWS_BadUpdateClosesSession(t *testing.T) {
	peers := session.NewManager(time.Minute)
	srv := httptest.NewServer(NewRouter(Config{Peers: peers}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ws, err := session.Dial(ctx, wsURL(srv), "node-1")
	require.NoError(t, err)
	defer ws.Close()

	// Updates before any page cannot be applied.
	msg, err := wire.NewUpdateElements([]ui.ElementUpdate{{ID: "temp", Element: ui.FromString("1C")}})
	require.NoError(t, err)
	require.NoError(t, ws.Send(ctx, msg))

	_, ok := ws.Recv(ctx)
	assert.False(t, ok)
	assert.Equal(t, websocket.StatusUnsupportedData, websocket.CloseStatus(ws.Err()))
}

// TestNodeToHost runs a node against a real host over a websocket and checks
// that the host's mirror converges on the node's page.
func TestNodeToHost(t *testing.T) {
	peers := session.NewManager(time.Minute)
	srv := httptest.NewServer(NewRouter(Config{Peers: peers}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	nodeID := uuid.New()
	ws, err := session.Dial(ctx, wsURL(srv), nodeID.String())
	require.NoError(t, err)

	ticks := make(chan time.Time)
	n := node.New(node.Config{NodeID: nodeID}, ws, probe.NewReader(constBus{raw: []byte{0, 0, 0, 100}}), node.WithTicks(ticks))
	done := make(chan error, 1)
	go func() { done <- n.Run(ctx) }()

	var info []session.PeerInfo
	require.Eventually(t, func() bool {
		info = listPeers(srv.URL)
		return len(info) == 1 && info[0].Updates == 1
	}, 5*time.Second, 20*time.Millisecond)
	assert.Equal(t, nodeID.String(), info[0].NodeID)
	assert.True(t, info[0].HasPage)

	var view session.PageView
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/v1/peers/"+info[0].ID+"/page", &view))
	assert.Equal(t, "Temp is: \n0.001525878C", view.Rendered)
	assert.Equal(t, nodeID, view.Page.Owner)

	require.NoError(t, ws.Close())
	select {
	case err := <-done:
		assert.NoError(t, err, "a closed session ends the loop cleanly")
	case <-ctx.Done():
		t.Fatal("node did not stop")
	}
	require.Eventually(t, func() bool { return len(peers.List()) == 0 }, 5*time.Second, 20*time.Millisecond)
}

func TestServeWS_IgnoresNonUIMessages(t *testing.T) {
	peers := session.NewManager(time.Minute)
	srv := httptest.NewServer(NewRouter(Config{Peers: peers}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	header := http.Header{}
	header.Set(session.NodeIDHeader, "node-2")
	conn, _, err := websocket.Dial(ctx, wsURL(srv), &websocket.DialOptions{HTTPHeader: header})
	require.NoError(t, err)
	defer conn.CloseNow()

	ev, err := wire.NewEvent(wire.EventMessage{Name: "boot"})
	require.NoError(t, err)
	require.NoError(t, wsjson.Write(ctx, conn, ev))

	require.Eventually(t, func() bool {
		list := peers.List()
		return len(list) == 1 && !list[0].Info().HasPage
	}, 5*time.Second, 20*time.Millisecond)
	conn.Close(websocket.StatusNormalClosure, "")
}

func TestReadingsSummary(t *testing.T) {
	store := journal.NewMemoryStore()
	now := time.Now().UTC()
	require.NoError(t, store.WriteReadings(context.Background(), []probe.Reading{
		{Channel: "temperature", Value: 20, Unit: "C", At: now.Add(-2 * time.Hour)},
		{Channel: "temperature", Value: 24, Unit: "C", At: now.Add(-time.Hour)},
		{Channel: "temperature", Value: 90, Unit: "C", At: now.Add(-48 * time.Hour)},
	}))
	srv := httptest.NewServer(NewRouter(Config{Journal: store}))
	defer srv.Close()

	var summary journal.Summary
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/v1/readings/summary", &summary))
	temp, ok := summary.Channels["temperature"]
	require.True(t, ok)
	assert.Equal(t, 2, temp.Count, "default window is the last day")
	assert.Equal(t, 22.0, temp.Mean)

	assert.Equal(t, http.StatusBadRequest, getJSON(t, srv.URL+"/v1/readings/summary?since=soon", nil))
}

func TestReadingsSummary_CoversWholeWindow(t *testing.T) {
	store := journal.NewMemoryStore()
	start := time.Now().Add(-23 * time.Hour)
	const n = 8280
	batch := make([]probe.Reading, n)
	for i := range batch {
		batch[i] = probe.Reading{Channel: "temperature", Value: float64(i), Unit: "C", At: start.Add(time.Duration(i) * 10 * time.Second)}
	}
	require.NoError(t, store.WriteReadings(context.Background(), batch))
	srv := httptest.NewServer(NewRouter(Config{Journal: store}))
	defer srv.Close()

	var summary journal.Summary
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/v1/readings/summary", &summary))
	temp := summary.Channels["temperature"]
	assert.Equal(t, n, temp.Count, "not capped by the query limit")
	assert.Equal(t, 0.0, temp.Min)
	assert.Equal(t, float64(n-1), temp.Max)
	assert.Equal(t, journal.TrendRising, temp.Trend)
}

func TestServeWS_QuietPeerStaysListed(t *testing.T) {
	peers := session.NewManager(10 * time.Millisecond)
	srv := httptest.NewServer(NewRouter(Config{Peers: peers}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ws, err := session.Dial(ctx, wsURL(srv), "slow-node")
	require.NoError(t, err)
	defer ws.Close()

	require.Eventually(t, func() bool { return len(listPeers(srv.URL)) == 1 }, 5*time.Second, 5*time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	peers.Cleanup()
	assert.Len(t, listPeers(srv.URL), 1, "an open session outlives the idle timeout")
}
