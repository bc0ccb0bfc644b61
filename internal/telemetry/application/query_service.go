package application

import (
	"context"
	"errors"
	"time"

	"iot-climate-monitor/internal/apperr"
	telemetry "iot-climate-monitor/internal/telemetry/domain"
)

// DefaultRetentionDays is used when prune is called without a day count.
const DefaultRetentionDays = 30

// DeviceStatus is a device's latest reading with its derived liveness.
type DeviceStatus struct {
	telemetry.DeviceLatest
	Status telemetry.Status `json:"status"`
}

// QueryService answers reading queries and maintenance.
type QueryService struct {
	readings telemetry.ReadingRepository
	window   time.Duration
	clock    Clock
}

// NewQueryService constructs a query service.
func NewQueryService(readings telemetry.ReadingRepository, window time.Duration, clock Clock) (*QueryService, error) {
	if readings == nil {
		return nil, errors.New("telemetry: nil reading repository")
	}
	if window <= 0 {
		window = telemetry.DefaultLivenessWindow
	}
	if clock == nil {
		clock = systemClock{}
	}
	return &QueryService{readings: readings, window: window, clock: clock}, nil
}

// Latest returns every device with its newest reading and current status.
func (s *QueryService) Latest(ctx context.Context) ([]DeviceStatus, error) {
	latest, err := s.readings.LatestPerDevice(ctx)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	out := make([]DeviceStatus, 0, len(latest))
	for _, entry := range latest {
		var last *time.Time
		if entry.Reading != nil {
			last = &entry.Reading.RecordedAt
		}
		out = append(out, DeviceStatus{
			DeviceLatest: entry,
			Status:       telemetry.LivenessOf(last, now, s.window),
		})
	}
	return out, nil
}

// Logs lists readings newest first.
func (s *QueryService) Logs(ctx context.Context, filter telemetry.ReadingFilter) ([]telemetry.Reading, int, error) {
	if !filter.From.IsZero() && !filter.To.IsZero() && filter.To.Before(filter.From) {
		return nil, 0, apperr.Validation("end_date must not be before start_date")
	}
	return s.readings.List(ctx, filter)
}

// Prune deletes readings older than the given number of days.
func (s *QueryService) Prune(ctx context.Context, days int) (int64, error) {
	if days == 0 {
		days = DefaultRetentionDays
	}
	if days < 1 {
		return 0, apperr.Validation("days must be a positive integer")
	}
	cutoff := s.clock.Now().Add(-time.Duration(days) * 24 * time.Hour)
	return s.readings.DeleteOlderThan(ctx, cutoff)
}

// Window exposes the liveness window used for status.
func (s *QueryService) Window() time.Duration {
	return s.window
}
