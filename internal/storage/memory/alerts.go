package memory

import (
	"context"
	"sort"
	"time"

	alerts "iot-climate-monitor/internal/alerts/domain"
	"iot-climate-monitor/internal/apperr"
)

// AlertRepository implements alerts.Repository.
type AlertRepository struct {
	s *Store
}

var _ alerts.Repository = (*AlertRepository)(nil)

func (r *AlertRepository) Create(_ context.Context, alert *alerts.Alert) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.rooms[alert.RoomID]; !ok {
		return apperr.Validation("room_id does not reference an existing room")
	}
	r.s.alertSeq++
	alert.ID = r.s.alertSeq
	alert.CreatedAt = r.s.stamp(alert.CreatedAt)
	if alert.Status == "" {
		alert.Status = alerts.StatusActive
	}
	stored := *alert
	stored.RoomName, stored.Location = "", ""
	r.s.alerts[alert.ID] = stored
	*alert = r.s.alertView(stored)
	return nil
}

func (r *AlertRepository) Get(_ context.Context, id int64) (*alerts.Alert, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	alert, ok := r.s.alerts[id]
	if !ok {
		return nil, nil
	}
	view := r.s.alertView(alert)
	return &view, nil
}

func (r *AlertRepository) List(_ context.Context, filter alerts.Filter) ([]alerts.Alert, int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	matched := make([]alerts.Alert, 0)
	for _, alert := range r.s.alerts {
		if filter.RoomID != nil && alert.RoomID != *filter.RoomID {
			continue
		}
		if filter.Status != "" && alert.Status != filter.Status {
			continue
		}
		matched = append(matched, r.s.alertView(alert))
	}
	sortAlertsNewestFirst(matched)
	return paginate(matched, filter.Limit, filter.Offset), len(matched), nil
}

func (r *AlertRepository) Recent(_ context.Context, limit int) ([]alerts.Alert, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]alerts.Alert, 0, len(r.s.alerts))
	for _, alert := range r.s.alerts {
		out = append(out, r.s.alertView(alert))
	}
	sortAlertsNewestFirst(out)
	return paginate(out, limit, 0), nil
}

func (r *AlertRepository) CountByStatus(_ context.Context) (map[alerts.Status]int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	counts := map[alerts.Status]int{
		alerts.StatusActive:   0,
		alerts.StatusResolved: 0,
	}
	for _, alert := range r.s.alerts {
		counts[alert.Status]++
	}
	return counts, nil
}

func (r *AlertRepository) Resolve(_ context.Context, id int64, at time.Time) (*alerts.Alert, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	alert, ok := r.s.alerts[id]
	if !ok {
		return nil, nil
	}
	if err := alert.Resolve(at); err != nil {
		return nil, nil
	}
	r.s.alerts[id] = alert
	view := r.s.alertView(alert)
	return &view, nil
}

func (r *AlertRepository) Delete(_ context.Context, id int64) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.alerts[id]; !ok {
		return false, nil
	}
	delete(r.s.alerts, id)
	return true, nil
}

func (r *AlertRepository) HasActive(_ context.Context, roomID int64) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, alert := range r.s.alerts {
		if alert.RoomID == roomID && alert.Status == alerts.StatusActive {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) alertView(alert alerts.Alert) alerts.Alert {
	if room, ok := s.rooms[alert.RoomID]; ok {
		alert.RoomName = room.Name
		alert.Location = room.Location
	}
	if alert.ResolvedAt != nil {
		at := *alert.ResolvedAt
		alert.ResolvedAt = &at
	}
	return alert
}

func sortAlertsNewestFirst(items []alerts.Alert) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].ID > items[j].ID
		}
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
}
