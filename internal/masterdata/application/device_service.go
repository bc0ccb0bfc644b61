package application

import (
	"context"
	"errors"
	"strings"
	"time"

	"iot-climate-monitor/internal/apperr"
	masterdata "iot-climate-monitor/internal/masterdata/domain"
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

// DeviceService manages devices and derives their liveness.
type DeviceService struct {
	devices masterdata.DeviceRepository
	rooms   masterdata.RoomRepository
	window  time.Duration
	clock   Clock
}

// DeviceOption customizes the device service.
type DeviceOption func(*DeviceService)

// WithClock assigns a clock.
func WithClock(clock Clock) DeviceOption {
	return func(s *DeviceService) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithLivenessWindow overrides the ONLINE window.
func WithLivenessWindow(window time.Duration) DeviceOption {
	return func(s *DeviceService) {
		if window > 0 {
			s.window = window
		}
	}
}

// NewDeviceService constructs a device service.
func NewDeviceService(devices masterdata.DeviceRepository, rooms masterdata.RoomRepository, opts ...DeviceOption) (*DeviceService, error) {
	if devices == nil {
		return nil, errors.New("masterdata: nil device repository")
	}
	if rooms == nil {
		return nil, errors.New("masterdata: nil room repository")
	}
	service := &DeviceService{
		devices: devices,
		rooms:   rooms,
		window:  telemetry.DefaultLivenessWindow,
		clock:   systemClock{},
	}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// List returns all devices with their current status.
func (s *DeviceService) List(ctx context.Context) ([]masterdata.Device, error) {
	devices, err := s.devices.List(ctx)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	for i := range devices {
		devices[i].Status = string(telemetry.LivenessOf(devices[i].LastReadingAt, now, s.window))
	}
	return devices, nil
}

// Get returns a device with its current status.
func (s *DeviceService) Get(ctx context.Context, id int64) (*masterdata.Device, error) {
	device, err := s.devices.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if device == nil {
		return nil, apperr.NotFound("device not found")
	}
	device.Status = string(telemetry.LivenessOf(device.LastReadingAt, s.clock.Now(), s.window))
	return device, nil
}

// Create validates and registers a device.
func (s *DeviceService) Create(ctx context.Context, device masterdata.Device) (*masterdata.Device, error) {
	device.Code = strings.TrimSpace(device.Code)
	device.Name = strings.TrimSpace(device.Name)
	device.IPAddress = strings.TrimSpace(device.IPAddress)
	if err := device.Validate(); err != nil {
		return nil, apperr.Validation(err.Error())
	}
	if err := s.checkRoom(ctx, device.RoomID); err != nil {
		return nil, err
	}
	existing, err := s.devices.GetByCode(ctx, device.Code)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperr.Conflict("device code already exists")
	}
	if err := s.devices.Create(ctx, &device); err != nil {
		return nil, err
	}
	device.Status = string(telemetry.StatusOffline)
	return &device, nil
}

// Update applies a partial update.
func (s *DeviceService) Update(ctx context.Context, id int64, patch masterdata.DevicePatch) (*masterdata.Device, error) {
	device, err := s.devices.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if device == nil {
		return nil, apperr.NotFound("device not found")
	}
	previousCode := device.Code
	patch.Apply(device)
	if err := device.Validate(); err != nil {
		return nil, apperr.Validation(err.Error())
	}
	if patch.RoomSet {
		if err := s.checkRoom(ctx, device.RoomID); err != nil {
			return nil, err
		}
	}
	if device.Code != previousCode {
		other, err := s.devices.GetByCode(ctx, device.Code)
		if err != nil {
			return nil, err
		}
		if other != nil && other.ID != device.ID {
			return nil, apperr.Conflict("device code already exists")
		}
	}
	if err := s.devices.Update(ctx, device); err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// Delete removes a device and its readings.
func (s *DeviceService) Delete(ctx context.Context, id int64) error {
	deleted, err := s.devices.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		return apperr.NotFound("device not found")
	}
	return nil
}

// Resolve looks up a device by code for ingest.
func (s *DeviceService) Resolve(ctx context.Context, code string) (*masterdata.Device, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, apperr.Validation("device_code is required")
	}
	device, err := s.devices.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if device == nil {
		return nil, apperr.NotFound("device not registered")
	}
	return device, nil
}

func (s *DeviceService) checkRoom(ctx context.Context, roomID *int64) error {
	if roomID == nil {
		return nil
	}
	room, err := s.rooms.Get(ctx, *roomID)
	if err != nil {
		return err
	}
	if room == nil {
		return apperr.Validation("room_id does not reference an existing room")
	}
	return nil
}
