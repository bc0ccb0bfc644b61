package masterdata

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Device is a sensor board identified by a unique code.
type Device struct {
	ID        int64     `json:"id"`
	Code      string    `json:"device_code"`
	Name      string    `json:"device_name"`
	IPAddress string    `json:"ip_address"`
	RoomID    *int64    `json:"room_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Read-side fields, filled by list and get queries.
	RoomName      string     `json:"room_name,omitempty"`
	Location      string     `json:"location,omitempty"`
	LogCount      int64      `json:"log_count"`
	LastReadingAt *time.Time `json:"last_reading"`
	Status        string     `json:"status,omitempty"`
}

// Validate checks device invariants.
func (d Device) Validate() error {
	if strings.TrimSpace(d.Code) == "" {
		return errors.New("device_code is required")
	}
	if strings.TrimSpace(d.Name) == "" {
		return errors.New("device_name is required")
	}
	if d.RoomID != nil && *d.RoomID <= 0 {
		return errors.New("room_id must be positive")
	}
	return nil
}

// DevicePatch carries a partial device update.
// RoomSet distinguishes an explicit null room from an absent field.
type DevicePatch struct {
	Code      *string
	Name      *string
	IPAddress *string
	RoomSet   bool
	RoomID    *int64
}

// Apply merges the patch into d.
func (p DevicePatch) Apply(d *Device) {
	if p.Code != nil {
		d.Code = strings.TrimSpace(*p.Code)
	}
	if p.Name != nil {
		d.Name = strings.TrimSpace(*p.Name)
	}
	if p.IPAddress != nil {
		d.IPAddress = strings.TrimSpace(*p.IPAddress)
	}
	if p.RoomSet {
		d.RoomID = p.RoomID
	}
}

// DeviceRepository manages device persistence.
// Deleting a device removes its readings.
type DeviceRepository interface {
	List(ctx context.Context) ([]Device, error)
	Get(ctx context.Context, id int64) (*Device, error)
	GetByCode(ctx context.Context, code string) (*Device, error)
	Create(ctx context.Context, device *Device) error
	Update(ctx context.Context, device *Device) error
	Delete(ctx context.Context, id int64) (bool, error)
	Count(ctx context.Context) (int, error)
}
