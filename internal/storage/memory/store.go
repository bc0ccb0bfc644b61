// Package memory is an in-process store used in demo mode and in tests.
// It mirrors the foreign-key actions of the Postgres schema.
package memory

import (
	"sync"
	"time"

	alerts "iot-climate-monitor/internal/alerts/domain"
	masterdata "iot-climate-monitor/internal/masterdata/domain"
	telemetry "iot-climate-monitor/internal/telemetry/domain"
	users "iot-climate-monitor/internal/users/domain"
)

// Store holds every table behind one lock.
type Store struct {
	mu       sync.RWMutex
	rooms    map[int64]masterdata.Room
	devices  map[int64]masterdata.Device
	readings []telemetry.Reading
	alerts   map[int64]alerts.Alert
	users    map[int64]users.User

	roomSeq    int64
	deviceSeq  int64
	readingSeq int64
	alertSeq   int64
	userSeq    int64

	now func() time.Time
}

// Option configures the store.
type Option func(*Store)

// WithNow overrides the timestamp source for created_at/updated_at.
func WithNow(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// New constructs an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		rooms:   make(map[int64]masterdata.Room),
		devices: make(map[int64]masterdata.Device),
		alerts:  make(map[int64]alerts.Alert),
		users:   make(map[int64]users.User),
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Rooms returns the room repository view.
func (s *Store) Rooms() *RoomRepository { return &RoomRepository{s: s} }

// Devices returns the device repository view.
func (s *Store) Devices() *DeviceRepository { return &DeviceRepository{s: s} }

// Readings returns the reading repository view.
func (s *Store) Readings() *ReadingRepository { return &ReadingRepository{s: s} }

// Alerts returns the alert repository view.
func (s *Store) Alerts() *AlertRepository { return &AlertRepository{s: s} }

// Users returns the user repository view.
func (s *Store) Users() *UserRepository { return &UserRepository{s: s} }

func (s *Store) stamp(t time.Time) time.Time {
	if t.IsZero() {
		return s.now()
	}
	return t.UTC()
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return make([]T, 0)
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	out := make([]T, len(items))
	copy(out, items)
	return out
}

func cloneInt64(v *int64) *int64 {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}
