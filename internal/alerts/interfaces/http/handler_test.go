package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	alertapp "iot-climate-monitor/internal/alerts/application"
	alerts "iot-climate-monitor/internal/alerts/domain"
	masterdata "iot-climate-monitor/internal/masterdata/domain"
	"iot-climate-monitor/internal/storage/memory"
	telemetry "iot-climate-monitor/internal/telemetry/domain"
)

type envelope struct {
	Success    bool            `json:"success"`
	Message    string          `json:"message"`
	Data       json.RawMessage `json:"data"`
	Pagination *struct {
		Total      int `json:"total"`
		TotalPages int `json:"totalPages"`
	} `json:"pagination"`
}

func newRouter(t *testing.T) (*mux.Router, *alertapp.Service, int64, *SSEBroker) {
	t.Helper()
	store := memory.New()
	room := masterdata.Room{Name: "Lab-1", Location: "Floor 2"}
	require.NoError(t, store.Rooms().Create(context.Background(), &room))

	broker := NewSSEBroker()
	service, err := alertapp.NewService(store.Alerts(), alerts.Thresholds{TemperatureHigh: 30, HumidityHigh: 80},
		alertapp.WithNotifier(broker))
	require.NoError(t, err)
	handler, err := NewHandler(service, NewStreamHandler(broker), nil)
	require.NoError(t, err)

	r := mux.NewRouter()
	handler.Mount(r)
	return r, service, room.ID, broker
}

func do(r http.Handler, method, target, body string) (*httptest.ResponseRecorder, envelope) {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	var env envelope
	_ = json.Unmarshal(rec.Body.Bytes(), &env)
	return rec, env
}

func TestListFiltersByStatus(t *testing.T) {
	r, service, roomID, _ := newRouter(t)
	ctx := context.Background()
	first, err := service.Evaluate(ctx, telemetry.Reading{Temperature: 31, Humidity: 50}, &roomID)
	require.NoError(t, err)
	_, err = service.Evaluate(ctx, telemetry.Reading{Temperature: 25, Humidity: 85}, &roomID)
	require.NoError(t, err)
	_, err = service.Resolve(ctx, first.ID)
	require.NoError(t, err)

	rec, env := do(r, http.MethodGet, "/api/alerts?status=active", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, env.Pagination)
	assert.Equal(t, 1, env.Pagination.Total)

	var list []alerts.Alert
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Len(t, list, 1)
	assert.Equal(t, alerts.MetricHumidity, list[0].Metric)
	assert.Equal(t, "Lab-1", list[0].RoomName)

	rec, _ = do(r, http.MethodGet, "/api/alerts?status=WARNING", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestResolveThenResolveAgainIsNotFound(t *testing.T) {
	r, service, roomID, _ := newRouter(t)
	alert, err := service.Evaluate(context.Background(), telemetry.Reading{Temperature: 35, Humidity: 50}, &roomID)
	require.NoError(t, err)
	target := "/api/alerts/" + strconv.FormatInt(alert.ID, 10)

	rec, env := do(r, http.MethodPut, target, `{"alert_status":"RESOLVED"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var resolved alerts.Alert
	require.NoError(t, json.Unmarshal(env.Data, &resolved))
	assert.Equal(t, alerts.StatusResolved, resolved.Status)
	assert.NotNil(t, resolved.ResolvedAt)

	rec, env = do(r, http.MethodPut, target, `{"alert_status":"RESOLVED"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.False(t, env.Success)

	rec, _ = do(r, http.MethodPut, target, `{"alert_status":"ACTIVE"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteAndGetMissing(t *testing.T) {
	r, service, roomID, _ := newRouter(t)
	alert, err := service.Evaluate(context.Background(), telemetry.Reading{Temperature: 35, Humidity: 50}, &roomID)
	require.NoError(t, err)
	target := "/api/alerts/" + strconv.FormatInt(alert.ID, 10)

	rec, _ := do(r, http.MethodDelete, target, "")
	require.Equal(t, http.StatusOK, rec.Code)
	rec, _ = do(r, http.MethodGet, target, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec, _ = do(r, http.MethodDelete, target, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRecentDefaultsToFive(t *testing.T) {
	r, service, roomID, _ := newRouter(t)
	for i := 0; i < 7; i++ {
		_, err := service.Evaluate(context.Background(), telemetry.Reading{Temperature: 31 + float64(i), Humidity: 50}, &roomID)
		require.NoError(t, err)
	}
	rec, env := do(r, http.MethodGet, "/api/alerts/recent", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []alerts.Alert
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Len(t, list, 5)
}

func TestSSEBrokerDeliversEvents(t *testing.T) {
	broker := NewSSEBroker()
	ch := broker.Subscribe()
	assert.Equal(t, 1, broker.Clients())

	broker.Notify(context.Background(), alertapp.AlertEvent{Type: alertapp.EventActive, Alert: alerts.Alert{ID: 4}})
	select {
	case payload := <-ch:
		var event alertapp.AlertEvent
		require.NoError(t, json.Unmarshal(payload, &event))
		assert.Equal(t, alertapp.EventActive, event.Type)
		assert.Equal(t, int64(4), event.Alert.ID)
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}

	broker.Unsubscribe(ch)
	broker.Unsubscribe(ch)
	assert.Equal(t, 0, broker.Clients())
}

func TestStreamHandlerWritesReadyAndAlert(t *testing.T) {
	broker := NewSSEBroker()
	server := httptest.NewServer(NewStreamHandler(broker))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	buf := make([]byte, 256)
	n, err := resp.Body.Read(buf)
	require.NoError(t, err)
	assert.Contains(t, string(buf[:n]), "event: ready")

	require.Eventually(t, func() bool { return broker.Clients() == 1 }, time.Second, 10*time.Millisecond)
	broker.Notify(ctx, alertapp.AlertEvent{Type: alertapp.EventResolved, Alert: alerts.Alert{ID: 9}})

	var got strings.Builder
	for !strings.Contains(got.String(), `"type":"resolved"`) {
		n, err = resp.Body.Read(buf)
		require.NoError(t, err)
		got.Write(buf[:n])
	}
	assert.Contains(t, got.String(), "event: alert")
}
