package memory

import (
	"context"
	"sort"
	"time"

	"iot-climate-monitor/internal/apperr"
	telemetry "iot-climate-monitor/internal/telemetry/domain"
)

// ReadingRepository implements telemetry.ReadingRepository.
type ReadingRepository struct {
	s *Store
}

var _ telemetry.ReadingRepository = (*ReadingRepository)(nil)

func (r *ReadingRepository) Insert(_ context.Context, reading *telemetry.Reading) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	device, ok := r.s.devices[reading.DeviceID]
	if !ok {
		return apperr.Validation("device_id does not reference an existing device")
	}
	r.s.readingSeq++
	reading.ID = r.s.readingSeq
	reading.DeviceCode = device.Code
	reading.RecordedAt = r.s.stamp(reading.RecordedAt)
	stored := *reading
	if reading.Light != nil {
		light := *reading.Light
		stored.Light = &light
	}
	r.s.readings = append(r.s.readings, stored)
	return nil
}

// List returns readings newest first and the total before pagination.
func (r *ReadingRepository) List(_ context.Context, filter telemetry.ReadingFilter) ([]telemetry.Reading, int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	matched := make([]telemetry.Reading, 0)
	for _, reading := range r.s.readings {
		if filter.DeviceID != nil && reading.DeviceID != *filter.DeviceID {
			continue
		}
		if !filter.From.IsZero() && reading.RecordedAt.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && reading.RecordedAt.After(filter.To) {
			continue
		}
		matched = append(matched, r.s.readingView(reading))
	}
	sortNewestFirst(matched)
	return paginate(matched, filter.Limit, filter.Offset), len(matched), nil
}

func (r *ReadingRepository) LatestPerDevice(_ context.Context) ([]telemetry.DeviceLatest, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	latest := make(map[int64]telemetry.Reading)
	for _, reading := range r.s.readings {
		current, ok := latest[reading.DeviceID]
		if !ok || !reading.RecordedAt.Before(current.RecordedAt) {
			latest[reading.DeviceID] = reading
		}
	}

	out := make([]telemetry.DeviceLatest, 0, len(r.s.devices))
	for _, device := range r.s.devices {
		view := r.s.deviceView(device, false)
		entry := telemetry.DeviceLatest{
			DeviceID:   view.ID,
			DeviceCode: view.Code,
			DeviceName: view.Name,
			RoomID:     view.RoomID,
			RoomName:   view.RoomName,
			Location:   view.Location,
		}
		if reading, ok := latest[device.ID]; ok {
			reading = r.s.readingView(reading)
			entry.Reading = &reading
		}
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DeviceID < out[j].DeviceID })
	return out, nil
}

func (r *ReadingRepository) Window(_ context.Context, deviceID *int64, since time.Time) ([]telemetry.Reading, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := r.s.since(deviceID, since)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].RecordedAt.Equal(out[j].RecordedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].RecordedAt.Before(out[j].RecordedAt)
	})
	return out, nil
}

func (r *ReadingRepository) Recent(_ context.Context, deviceID *int64, since time.Time, limit int) ([]telemetry.Reading, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := r.s.since(deviceID, since)
	sortNewestFirst(out)
	return paginate(out, limit, 0), nil
}

func (r *ReadingRepository) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var deleted int64
	kept := r.s.readings[:0]
	for _, reading := range r.s.readings {
		if reading.RecordedAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, reading)
	}
	r.s.readings = kept
	return deleted, nil
}

// since collects readings at or after since. Caller holds the lock.
func (s *Store) since(deviceID *int64, since time.Time) []telemetry.Reading {
	out := make([]telemetry.Reading, 0)
	for _, reading := range s.readings {
		if deviceID != nil && reading.DeviceID != *deviceID {
			continue
		}
		if reading.RecordedAt.Before(since) {
			continue
		}
		out = append(out, s.readingView(reading))
	}
	return out
}

func (s *Store) readingView(reading telemetry.Reading) telemetry.Reading {
	if device, ok := s.devices[reading.DeviceID]; ok {
		reading.DeviceCode = device.Code
	}
	if reading.Light != nil {
		light := *reading.Light
		reading.Light = &light
	}
	return reading
}

func sortNewestFirst(readings []telemetry.Reading) {
	sort.SliceStable(readings, func(i, j int) bool {
		if readings[i].RecordedAt.Equal(readings[j].RecordedAt) {
			return readings[i].ID > readings[j].ID
		}
		return readings[i].RecordedAt.After(readings[j].RecordedAt)
	})
}
