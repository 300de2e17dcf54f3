package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ink-blade/internal/api"
	"ink-blade/internal/game"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

func startHubServer(t *testing.T, engine *MockEngine, mutate ...func(*api.ServerConfig)) (*api.Server, string) {
	t.Helper()
	cfg := api.DefaultServerConfig()
	cfg.RateLimit = *testRateLimit
	for _, m := range mutate {
		m(&cfg)
	}
	srv := api.NewServer(engine, cfg)
	go srv.Hub().Run()

	ts := httptest.NewServer(srv.Router())
	t.Cleanup(func() {
		srv.Shutdown(context.Background())
		ts.Close()
	})
	return srv, "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
}

func dial(t *testing.T, srv *api.Server, url string, want int) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.Eventually(t, func() bool { return srv.Hub().ClientCount() == want }, time.Second, 5*time.Millisecond)
	return conn
}

func encodeMsgpack(t *testing.T, v interface{}) []byte {
	t.Helper()
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	require.NoError(t, enc.Encode(v))
	return buf.Bytes()
}

func TestWebSocketInputMessage(t *testing.T) {
	engine := NewMockEngine()
	srv, url := startHubServer(t, engine)
	conn := dial(t, srv, url, 1)

	msg := `{"type":"input","moveX":-1,"moveY":0.5,"guard":true,"heavy":true}`
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(msg)))

	require.Eventually(t, func() bool { return len(engine.Inputs()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, game.Intent{MoveX: -1, MoveY: 0.5, GuardHeld: true, HeavyStrike: true}, engine.Inputs()[0])
	assert.Equal(t, []string{"127.0.0.1"}, engine.InputSources())
}

func TestWebSocketControlMessages(t *testing.T) {
	engine := NewMockEngine()
	srv, url := startHubServer(t, engine)
	conn := dial(t, srv, url, 1)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"start"}`)))
	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, encodeMsgpack(t, map[string]string{"type": "reset"})))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`not json`)))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"teleport"}`)))

	require.Eventually(t, func() bool {
		starts, resets := engine.Counts()
		return starts == 1 && resets == 1
	}, time.Second, 5*time.Millisecond)
	assert.Empty(t, engine.Inputs())
}

func TestWebSocketBinaryInput(t *testing.T) {
	engine := NewMockEngine()
	srv, url := startHubServer(t, engine)
	conn := dial(t, srv, url+"?format=msgpack", 1)

	msg := api.ClientMessage{Type: api.MessageInput, Intent: game.Intent{MoveX: 1, Special: true}}
	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, encodeMsgpack(t, msg)))

	require.Eventually(t, func() bool { return len(engine.Inputs()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, game.Intent{MoveX: 1, Special: true}, engine.Inputs()[0])
}

func TestWebSocketBroadcastEncodings(t *testing.T) {
	engine := NewMockEngine()
	srv, url := startHubServer(t, engine)
	textConn := dial(t, srv, url, 1)
	binConn := dial(t, srv, url+"?format=msgpack", 2)

	snap := engine.GetSnapshot()
	snap.Score = 777
	srv.Hub().Broadcast(api.EventGameState, snap)

	textConn.SetReadDeadline(time.Now().Add(2 * time.Second))
	msgType, data, err := textConn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.TextMessage, msgType)

	var textMsg struct {
		Event string        `json:"event"`
		Data  game.Snapshot `json:"data"`
	}
	require.NoError(t, json.Unmarshal(data, &textMsg))
	assert.Equal(t, api.EventGameState, textMsg.Event)
	assert.Equal(t, 777, textMsg.Data.Score)

	binConn.SetReadDeadline(time.Now().Add(2 * time.Second))
	msgType, data, err = binConn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.BinaryMessage, msgType)

	var binMsg map[string]interface{}
	require.NoError(t, msgpack.Unmarshal(data, &binMsg))
	assert.Equal(t, api.EventGameState, binMsg["event"])
	body, ok := binMsg["data"].(map[string]interface{})
	require.True(t, ok)
	assert.EqualValues(t, 777, body["score"])
	assert.Equal(t, "ready", body["mode"])
}

func TestWebSocketBroadcastLoop(t *testing.T) {
	engine := NewMockEngine()
	srv, url := startHubServer(t, engine)
	conn := dial(t, srv, url, 1)

	srv.Hub().StartBroadcastLoop(10 * time.Millisecond)

	seen := map[string]bool{}
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for !(seen[api.EventGameMode] && seen[api.EventGameState]) {
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		var msg api.ServerMessage
		require.NoError(t, json.Unmarshal(data, &msg))
		seen[msg.Event] = true
	}
}

func TestWebSocketDisconnectReleasesSlot(t *testing.T) {
	engine := NewMockEngine()
	srv, url := startHubServer(t, engine)
	conn := dial(t, srv, url, 1)

	conn.Close()
	require.Eventually(t, func() bool { return srv.Hub().ClientCount() == 0 }, time.Second, 5*time.Millisecond)
}

func TestWebSocketOriginCheck(t *testing.T) {
	tests := []struct {
		name   string
		origin string
		want   int
	}{
		{"no origin", "", http.StatusSwitchingProtocols},
		{"loopback port", "http://localhost:5173", http.StatusSwitchingProtocols},
		{"configured", "https://play.example", http.StatusSwitchingProtocols},
		{"foreign", "https://evil.example", http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, url := startHubServer(t, NewMockEngine(), func(cfg *api.ServerConfig) {
				cfg.CORSOrigins = []string{"https://play.example"}
			})

			header := http.Header{}
			if tt.origin != "" {
				header.Set("Origin", tt.origin)
			}
			conn, resp, err := websocket.DefaultDialer.Dial(url, header)
			if conn != nil {
				t.Cleanup(func() { conn.Close() })
			}
			require.NotNil(t, resp)
			assert.Equal(t, tt.want, resp.StatusCode)
			if tt.want != http.StatusSwitchingProtocols {
				assert.Error(t, err)
				assert.Zero(t, srv.Hub().ClientCount())
			}
		})
	}
}

func TestWebSocketSocketsPerIP(t *testing.T) {
	engine := NewMockEngine()
	srv, url := startHubServer(t, engine, func(cfg *api.ServerConfig) {
		cfg.RateLimit.SocketsPerIP = 1
	})
	first := dial(t, srv, url, 1)

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)

	first.Close()
	require.Eventually(t, func() bool { return srv.Hub().ClientCount() == 0 }, time.Second, 5*time.Millisecond)
	dial(t, srv, url, 1)
}

func TestWebSocketFrameBudget(t *testing.T) {
	engine := NewMockEngine()
	srv, url := startHubServer(t, engine, func(cfg *api.ServerConfig) {
		cfg.RateLimit.FramesPerSecond = 0.001
		cfg.RateLimit.FrameBurst = 2
	})
	conn := dial(t, srv, url, 1)

	for i := 0; i < 5; i++ {
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"input","dash":true}`)))
	}
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"start"}`)))

	require.Eventually(t, func() bool { return len(engine.Inputs()) == 2 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Len(t, engine.Inputs(), 2, "frames past the burst are dropped")
	starts, _ := engine.Counts()
	assert.Zero(t, starts)
}
