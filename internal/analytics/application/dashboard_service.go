package application

import (
	"context"
	"errors"

	alerts "iot-climate-monitor/internal/alerts/domain"
	"iot-climate-monitor/internal/analytics/domain/statistic"
	telemetryapp "iot-climate-monitor/internal/telemetry/application"
	telemetry "iot-climate-monitor/internal/telemetry/domain"
)

// RecentAlertCount is the number of alerts on the dashboard.
const RecentAlertCount = 5

// LatestReader returns every device with its latest reading and liveness.
type LatestReader interface {
	Latest(ctx context.Context) ([]telemetryapp.DeviceStatus, error)
}

// AlertReader exposes the alert views the dashboard needs.
type AlertReader interface {
	Recent(ctx context.Context, limit int) ([]alerts.Alert, error)
	Counts(ctx context.Context) (map[alerts.Status]int, error)
}

// Counter counts master data rows.
type Counter interface {
	Count(ctx context.Context) (int, error)
}

// Overview is the dashboard payload.
type Overview struct {
	Latest       []telemetryapp.DeviceStatus `json:"latest"`
	Stats        statistic.Summary           `json:"stats"`
	RecentAlerts []alerts.Alert              `json:"recent_alerts"`
	AlertCounts  map[alerts.Status]int       `json:"alert_counts"`
	Summary      OverviewSummary             `json:"summary"`
}

// OverviewSummary holds the headline counters.
type OverviewSummary struct {
	TotalDevices  int `json:"total_devices"`
	ActiveDevices int `json:"active_devices"`
	TotalRooms    int `json:"total_rooms"`
	TotalAlerts   int `json:"total_alerts"`
}

// DashboardService assembles the dashboard overview.
type DashboardService struct {
	stats   *StatsService
	latest  LatestReader
	alerts  AlertReader
	devices Counter
	rooms   Counter
}

// NewDashboardService constructs a dashboard service.
func NewDashboardService(stats *StatsService, latest LatestReader, alertReader AlertReader, devices, rooms Counter) (*DashboardService, error) {
	if stats == nil || latest == nil || alertReader == nil || devices == nil || rooms == nil {
		return nil, errors.New("analytics: nil dashboard dependency")
	}
	return &DashboardService{
		stats:   stats,
		latest:  latest,
		alerts:  alertReader,
		devices: devices,
		rooms:   rooms,
	}, nil
}

// Latest returns the newest reading per device with liveness.
func (s *DashboardService) Latest(ctx context.Context) ([]telemetryapp.DeviceStatus, error) {
	return s.latest.Latest(ctx)
}

// Overview returns latest readings, 24h stats, recent alerts and counters.
// Liveness is computed on every call.
func (s *DashboardService) Overview(ctx context.Context) (Overview, error) {
	latest, err := s.latest.Latest(ctx)
	if err != nil {
		return Overview{}, err
	}
	stats, err := s.stats.Stats(ctx, StatsQuery{Hours: statistic.DefaultWindowHours})
	if err != nil {
		return Overview{}, err
	}
	recent, err := s.alerts.Recent(ctx, RecentAlertCount)
	if err != nil {
		return Overview{}, err
	}
	counts, err := s.alerts.Counts(ctx)
	if err != nil {
		return Overview{}, err
	}
	totalDevices, err := s.devices.Count(ctx)
	if err != nil {
		return Overview{}, err
	}
	totalRooms, err := s.rooms.Count(ctx)
	if err != nil {
		return Overview{}, err
	}

	active := 0
	for _, entry := range latest {
		if entry.Status == telemetry.StatusOnline {
			active++
		}
	}
	totalAlerts := 0
	for _, n := range counts {
		totalAlerts += n
	}
	return Overview{
		Latest:       latest,
		Stats:        stats,
		RecentAlerts: recent,
		AlertCounts:  counts,
		Summary: OverviewSummary{
			TotalDevices:  totalDevices,
			ActiveDevices: active,
			TotalRooms:    totalRooms,
			TotalAlerts:   totalAlerts,
		},
	}, nil
}
