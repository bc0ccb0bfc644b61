package alerts

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Status is the two-state alert lifecycle. RESOLVED is terminal.
type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusResolved Status = "RESOLVED"
)

// ParseStatus parses a status name case-insensitively.
func ParseStatus(value string) (Status, bool) {
	switch Status(strings.ToUpper(strings.TrimSpace(value))) {
	case StatusActive:
		return StatusActive, true
	case StatusResolved:
		return StatusResolved, true
	default:
		return "", false
	}
}

// Metric names the reading field that breached its threshold.
type Metric string

const (
	MetricTemperature Metric = "temperature"
	MetricHumidity    Metric = "humidity"
)

var (
	// ErrNotFound indicates a missing alert record.
	ErrNotFound = errors.New("alert: not found")
	// ErrAlreadyResolved indicates a resolve on a terminal alert.
	ErrAlreadyResolved = errors.New("alert: already resolved")
)

// Alert records that a reading in a room exceeded a threshold.
// It does not reference the device or the reading that caused it.
type Alert struct {
	ID         int64      `json:"id"`
	RoomID     int64      `json:"room_id"`
	RoomName   string     `json:"room_name,omitempty"`
	Location   string     `json:"location,omitempty"`
	Metric     Metric     `json:"metric"`
	Threshold  float64    `json:"threshold_value"`
	Value      float64    `json:"value"`
	Status     Status     `json:"alert_status"`
	CreatedAt  time.Time  `json:"created_at"`
	ResolvedAt *time.Time `json:"resolved_at"`
}

// Resolve transitions ACTIVE to RESOLVED.
func (a *Alert) Resolve(at time.Time) error {
	if a == nil {
		return ErrNotFound
	}
	if a.Status != StatusActive {
		return ErrAlreadyResolved
	}
	resolvedAt := at.UTC()
	a.Status = StatusResolved
	a.ResolvedAt = &resolvedAt
	return nil
}

// Filter narrows alert listings.
type Filter struct {
	RoomID *int64
	Status Status
	Limit  int
	Offset int
}

// Repository persists alerts.
type Repository interface {
	Create(ctx context.Context, alert *Alert) error
	Get(ctx context.Context, id int64) (*Alert, error)
	List(ctx context.Context, filter Filter) ([]Alert, int, error)
	Recent(ctx context.Context, limit int) ([]Alert, error)
	CountByStatus(ctx context.Context) (map[Status]int, error)
	// Resolve atomically moves an ACTIVE alert to RESOLVED.
	// It returns nil when the alert is missing or already resolved.
	Resolve(ctx context.Context, id int64, at time.Time) (*Alert, error)
	Delete(ctx context.Context, id int64) (bool, error)
	HasActive(ctx context.Context, roomID int64) (bool, error)
}
