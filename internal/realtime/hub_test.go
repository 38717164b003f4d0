package realtime_test

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ricirt/feedhub/internal/presence"
	"github.com/ricirt/feedhub/internal/realtime"
)

func dial(t *testing.T, srv *httptest.Server, userID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?userId=" + userID
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

func TestHub_ConnectSendDisconnect(t *testing.T) {
	reg := presence.NewRegistry(zap.NewNop(), nil)
	hub := realtime.NewHub(reg, 8, zap.NewNop())
	srv := httptest.NewServer(hub)
	defer srv.Close()

	ws := dial(t, srv, "u1")

	var connID string
	require.Eventually(t, func() bool {
		var ok bool
		connID, ok = reg.Lookup("u1")
		return ok
	}, time.Second, 5*time.Millisecond)

	hub.Send(connID, "notification", map[string]string{"message": "bob followed you"})

	_ = ws.SetReadDeadline(time.Now().Add(time.Second))
	var frame struct {
		Event string            `json:"event"`
		Data  map[string]string `json:"data"`
	}
	require.NoError(t, ws.ReadJSON(&frame))
	assert.Equal(t, "notification", frame.Event)
	assert.Equal(t, "bob followed you", frame.Data["message"])

	require.NoError(t, ws.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	require.Eventually(t, func() bool {
		_, ok := reg.Lookup("u1")
		return !ok
	}, time.Second, 5*time.Millisecond)
}

func TestHub_OldSessionCloseKeepsNewSession(t *testing.T) {
	reg := presence.NewRegistry(zap.NewNop(), nil)
	hub := realtime.NewHub(reg, 8, zap.NewNop())
	srv := httptest.NewServer(hub)
	defer srv.Close()

	first := dial(t, srv, "u1")
	require.Eventually(t, func() bool { return reg.Count() == 1 }, time.Second, 5*time.Millisecond)
	firstID, _ := reg.Lookup("u1")

	dial(t, srv, "u1")
	require.Eventually(t, func() bool {
		id, _ := reg.Lookup("u1")
		return id != firstID
	}, time.Second, 5*time.Millisecond)
	secondID, _ := reg.Lookup("u1")

	_ = first.Close()
	// Give the hub time to observe the closed socket.
	time.Sleep(50 * time.Millisecond)

	got, ok := reg.Lookup("u1")
	require.True(t, ok)
	assert.Equal(t, secondID, got)
}

func TestHub_RequiresUserID(t *testing.T) {
	hub := realtime.NewHub(presence.NewRegistry(zap.NewNop(), nil), 8, zap.NewNop())
	srv := httptest.NewServer(hub)
	defer srv.Close()

	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 400, resp.StatusCode)
}

func TestHub_SendToUnknownConnectionIsDropped(t *testing.T) {
	hub := realtime.NewHub(presence.NewRegistry(zap.NewNop(), nil), 1, zap.NewNop())
	assert.NotPanics(t, func() { hub.Send("nope", "notification", nil) })
}
