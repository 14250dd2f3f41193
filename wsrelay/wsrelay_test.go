package wsrelay

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
)

// This exercises Hub end-to-end exactly as a live chat-response relay
// would use it: a real HTTP server accepting websocket upgrades, a real
// client dialing in, and a broadcast delivered over the wire.
func TestHub_BroadcastReachesConnectedClient(t *testing.T) {
	hub := NewHub()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, hub.Accept(w, r))
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	deadline := time.Now().Add(time.Second)
	for hub.ClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	require.Equal(t, 1, hub.ClientCount())

	require.NoError(t, hub.Broadcast(ctx, Event{Kind: "message", ID: "call", Role: "assistant", Content: "pong"}))

	_, data, err := conn.Read(ctx)
	require.NoError(t, err)

	var got Event
	require.NoError(t, json.Unmarshal(data, &got))
	require.Equal(t, Event{Kind: "message", ID: "call", Role: "assistant", Content: "pong"}, got)
}
