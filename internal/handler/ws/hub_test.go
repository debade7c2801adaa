package ws

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"QuantLens/internal/domain/models"
)

func startServer(t *testing.T, hub *Hub) string {
	t.Helper()
	e := echo.New()
	NewHandler(hub).RegisterRoutes(e)
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/recommendations"
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) (string, json.RawMessage) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, b, err := conn.ReadMessage()
	require.NoError(t, err)
	var env struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(b, &env))
	return env.Type, env.Data
}

func TestHub_PublishScanReachesSubscribers(t *testing.T) {
	hub := NewHub(nil)
	url := startServer(t, hub)

	a := dial(t, url)
	b := dial(t, url)
	require.Eventually(t, func() bool { return hub.ClientCount() == 2 }, 2*time.Second, 10*time.Millisecond)

	for _, c := range []*websocket.Conn{a, b} {
		typ, _ := readEnvelope(t, c)
		assert.Equal(t, TypeConnection, typ)
	}

	err := hub.PublishScan(context.Background(), &models.ScanResult{ID: "scan-1", Strategy: "momentum"})
	require.NoError(t, err)

	for _, c := range []*websocket.Conn{a, b} {
		typ, data := readEnvelope(t, c)
		assert.Equal(t, TypeScan, typ)
		var got models.ScanResult
		require.NoError(t, json.Unmarshal(data, &got))
		assert.Equal(t, "scan-1", got.ID)
		assert.Equal(t, "momentum", got.Strategy)
	}
}

func TestHub_PublishNilIsNoop(t *testing.T) {
	hub := NewHub(nil)
	assert.NoError(t, hub.PublishScan(context.Background(), nil))
}

func TestHub_ClientDisconnectUnregisters(t *testing.T) {
	hub := NewHub(nil)
	url := startServer(t, hub)

	conn := dial(t, url)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return hub.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHub_CloseRejectsNewClients(t *testing.T) {
	hub := NewHub(nil)
	url := startServer(t, hub)

	conn := dial(t, url)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	hub.Close()
	assert.Equal(t, 0, hub.ClientCount())

	// The write pump sends a close frame once the send channel is closed.
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	late, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer late.Close()
	require.NoError(t, late.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = late.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway))
	assert.Equal(t, 0, hub.ClientCount())
}
