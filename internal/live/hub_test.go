package live

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	alertapp "iot-climate-monitor/internal/alerts/application"
	alerts "iot-climate-monitor/internal/alerts/domain"
	telemetryapp "iot-climate-monitor/internal/telemetry/application"
	telemetry "iot-climate-monitor/internal/telemetry/domain"
)

func startHub(t *testing.T) (*Hub, *httptest.Server, context.CancelFunc) {
	t.Helper()
	hub := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	server := httptest.NewServer(NewHandler(hub, nil))
	return hub, server, cancel
}

func dial(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg Message
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func TestHubBroadcastsReadingsAndAlerts(t *testing.T) {
	hub, server, cancel := startHub(t)
	defer server.Close()
	defer cancel()

	conn := dial(t, server)
	defer conn.Close()
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	hub.PublishReading(context.Background(), telemetryapp.ReadingEvent{
		Reading:    telemetry.Reading{ID: 1, DeviceID: 2, Temperature: 24.5, Humidity: 60},
		DeviceName: "Sensor A",
	})
	msg := readMessage(t, conn)
	assert.Equal(t, TypeReading, msg.Type)

	hub.Notify(context.Background(), alertapp.AlertEvent{Type: alertapp.EventActive, Alert: alerts.Alert{ID: 3}})
	msg = readMessage(t, conn)
	assert.Equal(t, TypeAlert, msg.Type)
	payload, ok := msg.Payload.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, alertapp.EventActive, payload["type"])
}

func TestHubDisconnectsClientsOnShutdown(t *testing.T) {
	hub, server, cancel := startHub(t)
	defer server.Close()

	conn := dial(t, server)
	defer conn.Close()
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-hub.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("hub did not stop")
	}
	assert.Equal(t, 0, hub.Clients())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)

	hub.PublishReading(context.Background(), telemetryapp.ReadingEvent{})
}

func TestCheckOriginHonoursAllowList(t *testing.T) {
	h := NewHandler(NewHub(nil), []string{"https://dash.example"})
	req := httptest.NewRequest("GET", "/api/live/ws", nil)
	req.Header.Set("Origin", "https://dash.example")
	assert.True(t, h.upgrader.CheckOrigin(req))
	req.Header.Set("Origin", "https://evil.example")
	assert.False(t, h.upgrader.CheckOrigin(req))

	open := NewHandler(NewHub(nil), []string{"*"})
	assert.True(t, open.upgrader.CheckOrigin(req))
}
