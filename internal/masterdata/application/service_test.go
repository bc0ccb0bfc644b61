package application

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"iot-climate-monitor/internal/apperr"
	masterdata "iot-climate-monitor/internal/masterdata/domain"
	"iot-climate-monitor/internal/storage/memory"
	telemetry "iot-climate-monitor/internal/telemetry/domain"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

func newServices(t *testing.T, now time.Time) (*memory.Store, *RoomService, *DeviceService) {
	t.Helper()
	store := memory.New(memory.WithNow(func() time.Time { return now }))
	rooms, err := NewRoomService(store.Rooms())
	require.NoError(t, err)
	devices, err := NewDeviceService(store.Devices(), store.Rooms(), WithClock(fixedClock{now: now}))
	require.NoError(t, err)
	return store, rooms, devices
}

func strPtr(v string) *string { return &v }

func TestRoomServiceValidation(t *testing.T) {
	_, rooms, _ := newServices(t, time.Now().UTC())
	_, err := rooms.Create(context.Background(), masterdata.Room{Name: "   "})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = rooms.Get(context.Background(), 5)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.ErrorIs(t, rooms.Delete(context.Background(), 5), apperr.ErrNotFound)
}

func TestRoomServicePartialUpdate(t *testing.T) {
	ctx := context.Background()
	_, rooms, _ := newServices(t, time.Now().UTC())
	room, err := rooms.Create(ctx, masterdata.Room{Name: "Lab-1", Location: "Floor 2"})
	require.NoError(t, err)

	updated, err := rooms.Update(ctx, room.ID, masterdata.RoomPatch{Description: strPtr("wet lab")})
	require.NoError(t, err)
	assert.Equal(t, "Lab-1", updated.Name)
	assert.Equal(t, "Floor 2", updated.Location)
	assert.Equal(t, "wet lab", updated.Description)

	_, err = rooms.Update(ctx, room.ID, masterdata.RoomPatch{Name: strPtr("")})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestDeviceServiceCreateRules(t *testing.T) {
	ctx := context.Background()
	_, rooms, devices := newServices(t, time.Now().UTC())
	room, err := rooms.Create(ctx, masterdata.Room{Name: "Lab-1"})
	require.NoError(t, err)

	created, err := devices.Create(ctx, masterdata.Device{Code: " ESP32-001 ", Name: "Board", RoomID: &room.ID})
	require.NoError(t, err)
	assert.Equal(t, "ESP32-001", created.Code)
	assert.Equal(t, string(telemetry.StatusOffline), created.Status)

	_, err = devices.Create(ctx, masterdata.Device{Code: "ESP32-001", Name: "Again"})
	assert.ErrorIs(t, err, apperr.ErrConflict)

	missing := int64(77)
	_, err = devices.Create(ctx, masterdata.Device{Code: "ESP32-002", Name: "B", RoomID: &missing})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = devices.Create(ctx, masterdata.Device{Code: "ESP32-003"})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestDeviceServiceStatusFollowsLastReading(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	store, _, devices := newServices(t, now)

	online, err := devices.Create(ctx, masterdata.Device{Code: "A", Name: "a"})
	require.NoError(t, err)
	stale, err := devices.Create(ctx, masterdata.Device{Code: "B", Name: "b"})
	require.NoError(t, err)

	require.NoError(t, store.Readings().Insert(ctx, &telemetry.Reading{DeviceID: online.ID, RecordedAt: now.Add(-4 * time.Minute)}))
	require.NoError(t, store.Readings().Insert(ctx, &telemetry.Reading{DeviceID: stale.ID, RecordedAt: now.Add(-5 * time.Minute)}))

	list, err := devices.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, string(telemetry.StatusOnline), list[0].Status)
	assert.Equal(t, string(telemetry.StatusOffline), list[1].Status)
}

func TestDeviceServiceUpdateUnassignsRoom(t *testing.T) {
	ctx := context.Background()
	_, rooms, devices := newServices(t, time.Now().UTC())
	room, err := rooms.Create(ctx, masterdata.Room{Name: "Lab-1"})
	require.NoError(t, err)
	device, err := devices.Create(ctx, masterdata.Device{Code: "A", Name: "a", RoomID: &room.ID})
	require.NoError(t, err)

	updated, err := devices.Update(ctx, device.ID, masterdata.DevicePatch{RoomSet: true})
	require.NoError(t, err)
	assert.Nil(t, updated.RoomID)

	_, err = devices.Create(ctx, masterdata.Device{Code: "B", Name: "b"})
	require.NoError(t, err)
	_, err = devices.Update(ctx, device.ID, masterdata.DevicePatch{Code: strPtr("B")})
	assert.ErrorIs(t, err, apperr.ErrConflict)
}

func TestDeviceServiceResolve(t *testing.T) {
	ctx := context.Background()
	_, _, devices := newServices(t, time.Now().UTC())
	_, err := devices.Resolve(ctx, "")
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = devices.Resolve(ctx, "ghost")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
