package masterdata

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Room is a monitored space that devices are installed in.
type Room struct {
	ID          int64     `json:"id"`
	Name        string    `json:"room_name"`
	Location    string    `json:"location"`
	Description string    `json:"description"`
	DeviceCount int       `json:"device_count"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Validate checks room invariants.
func (r Room) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return errors.New("room_name is required")
	}
	return nil
}

// RoomPatch carries a partial room update. Nil fields are left unchanged.
type RoomPatch struct {
	Name        *string
	Location    *string
	Description *string
}

// Apply merges the patch into r.
func (p RoomPatch) Apply(r *Room) {
	if p.Name != nil {
		r.Name = strings.TrimSpace(*p.Name)
	}
	if p.Location != nil {
		r.Location = *p.Location
	}
	if p.Description != nil {
		r.Description = *p.Description
	}
}

// RoomRepository manages room persistence.
// Deleting a room unassigns its devices and removes its alerts.
type RoomRepository interface {
	List(ctx context.Context) ([]Room, error)
	Get(ctx context.Context, id int64) (*Room, error)
	Create(ctx context.Context, room *Room) error
	Update(ctx context.Context, room *Room) error
	Delete(ctx context.Context, id int64) (bool, error)
	Count(ctx context.Context) (int, error)
}
