package telemetry

import (
	"context"
	"time"
)

// Reading is an immutable sensor sample. RecordedAt is assigned by the server.
type Reading struct {
	ID          int64     `json:"id"`
	DeviceID    int64     `json:"device_id"`
	DeviceCode  string    `json:"device_code,omitempty"`
	Temperature float64   `json:"temperature"`
	Humidity    float64   `json:"humidity"`
	Light       *float64  `json:"light"`
	RecordedAt  time.Time `json:"recorded_at"`
}

// DeviceLatest pairs a device with its most recent reading, if any.
type DeviceLatest struct {
	DeviceID   int64    `json:"device_id"`
	DeviceCode string   `json:"device_code"`
	DeviceName string   `json:"device_name"`
	RoomID     *int64   `json:"room_id"`
	RoomName   string   `json:"room_name"`
	Location   string   `json:"location"`
	Reading    *Reading `json:"reading"`
}

// ReadingFilter narrows reading listings. Zero values mean "no constraint".
type ReadingFilter struct {
	DeviceID *int64
	From     time.Time
	To       time.Time
	Limit    int
	Offset   int
}

// ReadingRepository persists readings.
type ReadingRepository interface {
	Insert(ctx context.Context, reading *Reading) error
	List(ctx context.Context, filter ReadingFilter) ([]Reading, int, error)
	// LatestPerDevice returns one entry per device, including devices without readings.
	LatestPerDevice(ctx context.Context) ([]DeviceLatest, error)
	// Window returns readings with recorded_at >= since in ascending order.
	Window(ctx context.Context, deviceID *int64, since time.Time) ([]Reading, error)
	// Recent returns at most limit of the newest readings since the given time, newest first.
	Recent(ctx context.Context, deviceID *int64, since time.Time, limit int) ([]Reading, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
