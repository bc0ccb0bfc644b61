package application

import (
	"context"
	"errors"
	"strings"

	"iot-climate-monitor/internal/apperr"
	masterdata "iot-climate-monitor/internal/masterdata/domain"
)

// RoomService manages rooms.
type RoomService struct {
	rooms masterdata.RoomRepository
}

// NewRoomService constructs a room service.
func NewRoomService(rooms masterdata.RoomRepository) (*RoomService, error) {
	if rooms == nil {
		return nil, errors.New("masterdata: nil room repository")
	}
	return &RoomService{rooms: rooms}, nil
}

// List returns all rooms.
func (s *RoomService) List(ctx context.Context) ([]masterdata.Room, error) {
	return s.rooms.List(ctx)
}

// Get returns a room or a not-found error.
func (s *RoomService) Get(ctx context.Context, id int64) (*masterdata.Room, error) {
	room, err := s.rooms.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if room == nil {
		return nil, apperr.NotFound("room not found")
	}
	return room, nil
}

// Create validates and stores a room.
func (s *RoomService) Create(ctx context.Context, room masterdata.Room) (*masterdata.Room, error) {
	room.Name = strings.TrimSpace(room.Name)
	if err := room.Validate(); err != nil {
		return nil, apperr.Validation(err.Error())
	}
	if err := s.rooms.Create(ctx, &room); err != nil {
		return nil, err
	}
	return &room, nil
}

// Update applies a partial update.
func (s *RoomService) Update(ctx context.Context, id int64, patch masterdata.RoomPatch) (*masterdata.Room, error) {
	room, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	patch.Apply(room)
	if err := room.Validate(); err != nil {
		return nil, apperr.Validation(err.Error())
	}
	if err := s.rooms.Update(ctx, room); err != nil {
		return nil, err
	}
	return room, nil
}

// Delete removes a room.
func (s *RoomService) Delete(ctx context.Context, id int64) error {
	deleted, err := s.rooms.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		return apperr.NotFound("room not found")
	}
	return nil
}
