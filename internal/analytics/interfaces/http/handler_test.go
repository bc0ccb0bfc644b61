package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	alertapp "iot-climate-monitor/internal/alerts/application"
	alerts "iot-climate-monitor/internal/alerts/domain"
	analyticsapp "iot-climate-monitor/internal/analytics/application"
	"iot-climate-monitor/internal/analytics/domain/statistic"
	masterdata "iot-climate-monitor/internal/masterdata/domain"
	"iot-climate-monitor/internal/storage/memory"
	telemetryapp "iot-climate-monitor/internal/telemetry/application"
	telemetry "iot-climate-monitor/internal/telemetry/domain"
)

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newRouter(t *testing.T) (*mux.Router, *memory.Store, masterdata.Device) {
	t.Helper()
	store := memory.New()
	ctx := context.Background()
	room := masterdata.Room{Name: "Lab-1"}
	require.NoError(t, store.Rooms().Create(ctx, &room))
	device := masterdata.Device{Code: "ESP32-001", Name: "Bench", RoomID: &room.ID}
	require.NoError(t, store.Devices().Create(ctx, &device))

	alertService, err := alertapp.NewService(store.Alerts(), alerts.Thresholds{TemperatureHigh: 30, HumidityHigh: 80})
	require.NoError(t, err)
	stats, err := analyticsapp.NewStatsService(store.Readings())
	require.NoError(t, err)
	query, err := telemetryapp.NewQueryService(store.Readings(), 5*time.Minute, nil)
	require.NoError(t, err)
	dashboard, err := analyticsapp.NewDashboardService(stats, query, alertService, store.Devices(), store.Rooms())
	require.NoError(t, err)
	handler, err := NewHandler(dashboard, stats, alertService, nil)
	require.NoError(t, err)

	r := mux.NewRouter()
	handler.Mount(r)
	return r, store, device
}

func get(r http.Handler, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestStatsEmptyWindowIsZero(t *testing.T) {
	r, _, _ := newRouter(t)
	rec := get(r, "/api/dashboard/stats?hours=24")
	require.Equal(t, http.StatusOK, rec.Code)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	var summary statistic.Summary
	require.NoError(t, json.Unmarshal(env.Data, &summary))
	assert.Equal(t, 0, summary.Count)
	assert.Equal(t, statistic.MetricSummary{}, summary.Temperature)
}

func TestStatsRejectsBadHours(t *testing.T) {
	r, _, _ := newRouter(t)
	for _, target := range []string{
		"/api/dashboard/stats?hours=abc",
		"/api/dashboard/stats?hours=0",
		"/api/dashboard/stats?hours=8761",
		"/api/dashboard/stats?device_id=x",
	} {
		assert.Equal(t, http.StatusBadRequest, get(r, target).Code, target)
	}
}

func TestOverviewAndLatest(t *testing.T) {
	r, store, device := newRouter(t)
	require.NoError(t, store.Readings().Insert(context.Background(), &telemetry.Reading{
		DeviceID: device.ID, Temperature: 25, Humidity: 50,
	}))

	rec := get(r, "/api/dashboard")
	require.Equal(t, http.StatusOK, rec.Code)
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	var overview analyticsapp.Overview
	require.NoError(t, json.Unmarshal(env.Data, &overview))
	assert.Equal(t, 1, overview.Summary.ActiveDevices)
	assert.Equal(t, 1, overview.Stats.Count)

	rec = get(r, "/api/dashboard/latest")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ONLINE"`)
}

func TestExports(t *testing.T) {
	r, store, device := newRouter(t)
	require.NoError(t, store.Readings().Insert(context.Background(), &telemetry.Reading{
		DeviceID: device.ID, Temperature: 25, Humidity: 50,
	}))

	rec := get(r, "/api/exports/readings.csv?hours=1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/csv"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment")
	assert.Contains(t, rec.Body.String(), "ESP32-001")

	rec = get(r, "/api/exports/readings.xlsx")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Body.String(), "PK"))

	rec = get(r, "/api/exports/alerts.pdf?status=active")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))

	assert.Equal(t, http.StatusBadRequest, get(r, "/api/exports/alerts.pdf?status=open").Code)
}
