package memory

import (
	"context"
	"sort"

	"iot-climate-monitor/internal/apperr"
	masterdata "iot-climate-monitor/internal/masterdata/domain"
)

// RoomRepository implements masterdata.RoomRepository.
type RoomRepository struct {
	s *Store
}

var _ masterdata.RoomRepository = (*RoomRepository)(nil)

func (r *RoomRepository) List(_ context.Context) ([]masterdata.Room, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]masterdata.Room, 0, len(r.s.rooms))
	for _, room := range r.s.rooms {
		out = append(out, r.s.roomView(room))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *RoomRepository) Get(_ context.Context, id int64) (*masterdata.Room, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	room, ok := r.s.rooms[id]
	if !ok {
		return nil, nil
	}
	view := r.s.roomView(room)
	return &view, nil
}

func (r *RoomRepository) Create(_ context.Context, room *masterdata.Room) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.s.roomSeq++
	room.ID = r.s.roomSeq
	room.CreatedAt = r.s.stamp(room.CreatedAt)
	room.UpdatedAt = room.CreatedAt
	room.DeviceCount = 0
	r.s.rooms[room.ID] = *room
	return nil
}

func (r *RoomRepository) Update(_ context.Context, room *masterdata.Room) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	current, ok := r.s.rooms[room.ID]
	if !ok {
		return apperr.NotFound("room not found")
	}
	current.Name = room.Name
	current.Location = room.Location
	current.Description = room.Description
	current.UpdatedAt = r.s.now()
	r.s.rooms[room.ID] = current
	room.UpdatedAt = current.UpdatedAt
	return nil
}

// Delete unassigns the room's devices and removes its alerts.
func (r *RoomRepository) Delete(_ context.Context, id int64) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.rooms[id]; !ok {
		return false, nil
	}
	delete(r.s.rooms, id)
	for deviceID, device := range r.s.devices {
		if device.RoomID != nil && *device.RoomID == id {
			device.RoomID = nil
			r.s.devices[deviceID] = device
		}
	}
	for alertID, alert := range r.s.alerts {
		if alert.RoomID == id {
			delete(r.s.alerts, alertID)
		}
	}
	return true, nil
}

func (r *RoomRepository) Count(_ context.Context) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return len(r.s.rooms), nil
}

// DeviceRepository implements masterdata.DeviceRepository.
type DeviceRepository struct {
	s *Store
}

var _ masterdata.DeviceRepository = (*DeviceRepository)(nil)

func (r *DeviceRepository) List(_ context.Context) ([]masterdata.Device, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]masterdata.Device, 0, len(r.s.devices))
	for _, device := range r.s.devices {
		out = append(out, r.s.deviceView(device, true))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *DeviceRepository) Get(_ context.Context, id int64) (*masterdata.Device, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	device, ok := r.s.devices[id]
	if !ok {
		return nil, nil
	}
	view := r.s.deviceView(device, true)
	return &view, nil
}

func (r *DeviceRepository) GetByCode(_ context.Context, code string) (*masterdata.Device, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, device := range r.s.devices {
		if device.Code == code {
			view := r.s.deviceView(device, false)
			return &view, nil
		}
	}
	return nil, nil
}

func (r *DeviceRepository) Create(_ context.Context, device *masterdata.Device) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if err := r.s.checkDeviceWrite(0, device); err != nil {
		return err
	}
	r.s.deviceSeq++
	device.ID = r.s.deviceSeq
	device.CreatedAt = r.s.stamp(device.CreatedAt)
	device.UpdatedAt = device.CreatedAt
	r.s.devices[device.ID] = storedDevice(*device)
	return nil
}

func (r *DeviceRepository) Update(_ context.Context, device *masterdata.Device) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	current, ok := r.s.devices[device.ID]
	if !ok {
		return apperr.NotFound("device not found")
	}
	if err := r.s.checkDeviceWrite(device.ID, device); err != nil {
		return err
	}
	current.Code = device.Code
	current.Name = device.Name
	current.IPAddress = device.IPAddress
	current.RoomID = cloneInt64(device.RoomID)
	current.UpdatedAt = r.s.now()
	r.s.devices[device.ID] = current
	device.UpdatedAt = current.UpdatedAt
	return nil
}

// Delete removes the device and its readings.
func (r *DeviceRepository) Delete(_ context.Context, id int64) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.devices[id]; !ok {
		return false, nil
	}
	delete(r.s.devices, id)
	kept := r.s.readings[:0]
	for _, reading := range r.s.readings {
		if reading.DeviceID != id {
			kept = append(kept, reading)
		}
	}
	r.s.readings = kept
	return true, nil
}

func (r *DeviceRepository) Count(_ context.Context) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return len(r.s.devices), nil
}

// checkDeviceWrite enforces the unique code and room foreign key. Caller holds the lock.
func (s *Store) checkDeviceWrite(selfID int64, device *masterdata.Device) error {
	for id, other := range s.devices {
		if id != selfID && other.Code == device.Code {
			return apperr.Conflict("device code already exists")
		}
	}
	if device.RoomID != nil {
		if _, ok := s.rooms[*device.RoomID]; !ok {
			return apperr.Validation("room_id does not reference an existing room")
		}
	}
	return nil
}

func storedDevice(d masterdata.Device) masterdata.Device {
	return masterdata.Device{
		ID:        d.ID,
		Code:      d.Code,
		Name:      d.Name,
		IPAddress: d.IPAddress,
		RoomID:    cloneInt64(d.RoomID),
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

// roomView fills derived room fields. Caller holds the lock.
func (s *Store) roomView(room masterdata.Room) masterdata.Room {
	room.DeviceCount = 0
	for _, device := range s.devices {
		if device.RoomID != nil && *device.RoomID == room.ID {
			room.DeviceCount++
		}
	}
	return room
}

// deviceView fills derived device fields. Caller holds the lock.
func (s *Store) deviceView(device masterdata.Device, aggregates bool) masterdata.Device {
	view := storedDevice(device)
	if view.RoomID != nil {
		if room, ok := s.rooms[*view.RoomID]; ok {
			view.RoomName = room.Name
			view.Location = room.Location
		}
	}
	if !aggregates {
		return view
	}
	for _, reading := range s.readings {
		if reading.DeviceID != device.ID {
			continue
		}
		view.LogCount++
		if view.LastReadingAt == nil || reading.RecordedAt.After(*view.LastReadingAt) {
			at := reading.RecordedAt
			view.LastReadingAt = &at
		}
	}
	return view
}
