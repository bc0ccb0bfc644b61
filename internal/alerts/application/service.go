package application

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	alerts "iot-climate-monitor/internal/alerts/domain"
	"iot-climate-monitor/internal/apperr"
	"iot-climate-monitor/internal/observability/metrics"
	telemetry "iot-climate-monitor/internal/telemetry/domain"
)

// Lifecycle event types.
const (
	EventActive   = "active"
	EventResolved = "resolved"
	EventDeleted  = "deleted"
)

// AlertNotifier publishes alert lifecycle events.
type AlertNotifier interface {
	Notify(ctx context.Context, event AlertEvent)
}

// AlertEvent represents a lifecycle update.
type AlertEvent struct {
	Type  string       `json:"type"`
	Alert alerts.Alert `json:"alert"`
}

// Clock provides time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now().UTC()
}

// Service evaluates readings against thresholds and manages alert state.
type Service struct {
	repo       alerts.Repository
	thresholds alerts.Thresholds
	dedupe     alerts.DedupePolicy
	notifier   AlertNotifier
	clock      Clock
	logger     *zap.Logger
}

// ServiceOption customizes the alert service.
type ServiceOption func(*Service)

// WithNotifier assigns a notifier.
func WithNotifier(notifier AlertNotifier) ServiceOption {
	return func(s *Service) {
		s.notifier = notifier
	}
}

// WithClock assigns a clock.
func WithClock(clock Clock) ServiceOption {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithDedupe sets the de-duplication policy.
func WithDedupe(policy alerts.DedupePolicy) ServiceOption {
	return func(s *Service) {
		if policy != "" {
			s.dedupe = policy
		}
	}
}

// WithLogger assigns a logger.
func WithLogger(logger *zap.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewService constructs an alert service.
func NewService(repo alerts.Repository, thresholds alerts.Thresholds, opts ...ServiceOption) (*Service, error) {
	if repo == nil {
		return nil, errors.New("alerts: nil repository")
	}
	service := &Service{
		repo:       repo,
		thresholds: thresholds,
		dedupe:     alerts.DedupeNone,
		clock:      systemClock{},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// Thresholds returns the configured watermarks.
func (s *Service) Thresholds() alerts.Thresholds {
	return s.thresholds
}

// Evaluate records an alert when the reading breaches a threshold.
// Readings from devices without a room never raise alerts.
func (s *Service) Evaluate(ctx context.Context, reading telemetry.Reading, roomID *int64) (*alerts.Alert, error) {
	if s == nil {
		return nil, errors.New("alerts: nil service")
	}
	if roomID == nil {
		return nil, nil
	}
	breach, ok := s.thresholds.Evaluate(reading.Temperature, reading.Humidity)
	if !ok {
		return nil, nil
	}

	if s.dedupe == alerts.DedupeActivePerRoom {
		active, err := s.repo.HasActive(ctx, *roomID)
		if err != nil {
			return nil, err
		}
		if active {
			metrics.IncAlertSuppressed()
			s.logger.Debug("alert suppressed", zap.Int64("room_id", *roomID), zap.String("metric", string(breach.Metric)))
			return nil, nil
		}
	}

	alert := &alerts.Alert{
		RoomID:    *roomID,
		Metric:    breach.Metric,
		Threshold: breach.Threshold,
		Value:     breach.Value,
		Status:    alerts.StatusActive,
		CreatedAt: s.clock.Now().UTC(),
	}
	if err := s.repo.Create(ctx, alert); err != nil {
		return nil, err
	}
	s.logger.Info("alert raised",
		zap.Int64("alert_id", alert.ID),
		zap.Int64("room_id", alert.RoomID),
		zap.String("metric", string(alert.Metric)),
		zap.Float64("value", alert.Value),
		zap.Float64("threshold", alert.Threshold),
	)
	s.notify(ctx, EventActive, *alert)
	return alert, nil
}

// Get returns an alert or a not-found error.
func (s *Service) Get(ctx context.Context, id int64) (*alerts.Alert, error) {
	alert, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if alert == nil {
		return nil, apperr.NotFound("alert not found")
	}
	return alert, nil
}

// Resolve moves an ACTIVE alert to RESOLVED. A missing or already
// resolved alert is reported as not found.
func (s *Service) Resolve(ctx context.Context, id int64) (*alerts.Alert, error) {
	if s == nil {
		return nil, errors.New("alerts: nil service")
	}
	alert, err := s.repo.Resolve(ctx, id, s.clock.Now().UTC())
	if err != nil {
		return nil, err
	}
	if alert == nil {
		return nil, apperr.NotFound("alert not found or already resolved")
	}
	s.notify(ctx, EventResolved, *alert)
	return alert, nil
}

// UpdateStatus applies a client status change. RESOLVED and the legacy NORMAL
// resolve the alert; no status reactivates one.
func (s *Service) UpdateStatus(ctx context.Context, id int64, status string) (*alerts.Alert, error) {
	switch strings.ToUpper(strings.TrimSpace(status)) {
	case string(alerts.StatusResolved), "NORMAL":
		return s.Resolve(ctx, id)
	case string(alerts.StatusActive), "WARNING":
		return nil, apperr.Validation("resolved alerts cannot be reactivated")
	case "":
		return nil, apperr.Validation("alert_status is required")
	default:
		return nil, apperr.Validationf("unknown alert_status %q", status)
	}
}

// List returns a filtered page of alerts and the total count.
func (s *Service) List(ctx context.Context, filter alerts.Filter) ([]alerts.Alert, int, error) {
	return s.repo.List(ctx, filter)
}

// Recent returns the newest alerts.
func (s *Service) Recent(ctx context.Context, limit int) ([]alerts.Alert, error) {
	if limit <= 0 {
		limit = 5
	}
	return s.repo.Recent(ctx, limit)
}

// Counts returns alert totals by status.
func (s *Service) Counts(ctx context.Context) (map[alerts.Status]int, error) {
	return s.repo.CountByStatus(ctx)
}

// Delete removes an alert.
func (s *Service) Delete(ctx context.Context, id int64) error {
	alert, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		return apperr.NotFound("alert not found")
	}
	s.notify(ctx, EventDeleted, *alert)
	return nil
}

func (s *Service) notify(ctx context.Context, eventType string, alert alerts.Alert) {
	if s == nil {
		return
	}
	metrics.IncAlertEvent(eventType)
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(ctx, AlertEvent{Type: eventType, Alert: alert})
}
