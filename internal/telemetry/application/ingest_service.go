package application

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	alerts "iot-climate-monitor/internal/alerts/domain"
	"iot-climate-monitor/internal/apperr"
	masterdata "iot-climate-monitor/internal/masterdata/domain"
	"iot-climate-monitor/internal/observability/metrics"
	telemetry "iot-climate-monitor/internal/telemetry/domain"
)

// Clock provides time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now().UTC()
}

// DeviceResolver finds the registered device for a code.
type DeviceResolver interface {
	Resolve(ctx context.Context, code string) (*masterdata.Device, error)
}

// AlertEvaluator checks a stored reading against thresholds.
type AlertEvaluator interface {
	Evaluate(ctx context.Context, reading telemetry.Reading, roomID *int64) (*alerts.Alert, error)
}

// ReadingPublisher receives readings after they are stored.
type ReadingPublisher interface {
	PublishReading(ctx context.Context, event ReadingEvent)
}

// ReadingEvent is the live view of a stored reading.
type ReadingEvent struct {
	Reading    telemetry.Reading `json:"reading"`
	DeviceName string            `json:"device_name"`
	RoomID     *int64            `json:"room_id"`
	RoomName   string            `json:"room_name"`
}

// IngestCommand is a decoded device sample.
type IngestCommand struct {
	DeviceCode  string
	Temperature *float64
	Humidity    *float64
	Light       *float64
	Transport   string
}

// IngestResult is the stored reading and the alert it raised, if any.
type IngestResult struct {
	Reading telemetry.Reading
	Device  masterdata.Device
	Alert   *alerts.Alert
}

// IngestService validates, stores and evaluates device readings.
type IngestService struct {
	devices   DeviceResolver
	readings  telemetry.ReadingRepository
	evaluator AlertEvaluator
	publisher ReadingPublisher
	clock     Clock
	logger    *zap.Logger
}

// IngestOption customizes the ingest service.
type IngestOption func(*IngestService)

// WithEvaluator assigns the alert evaluator.
func WithEvaluator(evaluator AlertEvaluator) IngestOption {
	return func(s *IngestService) {
		s.evaluator = evaluator
	}
}

// WithPublisher assigns the live reading publisher.
func WithPublisher(publisher ReadingPublisher) IngestOption {
	return func(s *IngestService) {
		s.publisher = publisher
	}
}

// WithClock assigns a clock.
func WithClock(clock Clock) IngestOption {
	return func(s *IngestService) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithLogger assigns a logger.
func WithLogger(logger *zap.Logger) IngestOption {
	return func(s *IngestService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewIngestService constructs an ingest service.
func NewIngestService(devices DeviceResolver, readings telemetry.ReadingRepository, opts ...IngestOption) (*IngestService, error) {
	if devices == nil {
		return nil, errors.New("telemetry: nil device resolver")
	}
	if readings == nil {
		return nil, errors.New("telemetry: nil reading repository")
	}
	service := &IngestService{
		devices:  devices,
		readings: readings,
		clock:    systemClock{},
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// Ingest stores one reading and runs alert evaluation for the device's room.
// A failed alert insert is logged and never fails the ingest.
func (s *IngestService) Ingest(ctx context.Context, cmd IngestCommand) (*IngestResult, error) {
	if s == nil {
		return nil, errors.New("telemetry: nil ingest service")
	}
	start := time.Now()
	result, err := s.ingest(ctx, cmd)
	outcome := metrics.ResultSuccess
	if err != nil {
		outcome = metrics.ResultError
		metrics.IncIngestError(apperr.KindOf(err).String())
	}
	metrics.ObserveIngest(cmd.Transport, outcome, time.Since(start))
	return result, err
}

func (s *IngestService) ingest(ctx context.Context, cmd IngestCommand) (*IngestResult, error) {
	if err := validateCommand(cmd); err != nil {
		return nil, err
	}
	device, err := s.devices.Resolve(ctx, cmd.DeviceCode)
	if err != nil {
		return nil, err
	}

	reading := telemetry.Reading{
		DeviceID:    device.ID,
		DeviceCode:  device.Code,
		Temperature: *cmd.Temperature,
		Humidity:    *cmd.Humidity,
		Light:       cmd.Light,
		RecordedAt:  s.clock.Now().UTC(),
	}
	if err := s.readings.Insert(ctx, &reading); err != nil {
		return nil, err
	}

	result := &IngestResult{Reading: reading, Device: *device}
	if s.evaluator != nil {
		alert, err := s.evaluator.Evaluate(ctx, reading, device.RoomID)
		if err != nil {
			metrics.IncAlertFailure()
			s.logger.Error("alert evaluation failed",
				zap.Int64("reading_id", reading.ID),
				zap.String("device_code", device.Code),
				zap.Error(err),
			)
		} else {
			result.Alert = alert
		}
	}

	if s.publisher != nil {
		s.publisher.PublishReading(ctx, ReadingEvent{
			Reading:    reading,
			DeviceName: device.Name,
			RoomID:     device.RoomID,
			RoomName:   device.RoomName,
		})
	}
	return result, nil
}

func validateCommand(cmd IngestCommand) error {
	if strings.TrimSpace(cmd.DeviceCode) == "" {
		return apperr.Validation("device_code is required")
	}
	if cmd.Temperature == nil {
		return apperr.Validation("temperature is required")
	}
	if cmd.Humidity == nil {
		return apperr.Validation("humidity is required")
	}
	fields := []struct {
		name  string
		value *float64
	}{
		{"temperature", cmd.Temperature},
		{"humidity", cmd.Humidity},
		{"light", cmd.Light},
	}
	for _, f := range fields {
		if f.value != nil && (math.IsNaN(*f.value) || math.IsInf(*f.value, 0)) {
			return apperr.Validationf("%s must be a finite number", f.name)
		}
	}
	return nil
}
