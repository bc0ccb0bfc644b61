package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	alerts "iot-climate-monitor/internal/alerts/domain"
	"iot-climate-monitor/internal/apperr"
	"iot-climate-monitor/internal/platform/postgres"
)

const defaultAlertsTable = "alerts"

// AlertRepository is a Postgres implementation for alerts.
type AlertRepository struct {
	db    postgres.DBTX
	table string
}

// NewAlertRepository constructs a repository.
func NewAlertRepository(db postgres.DBTX) *AlertRepository {
	return &AlertRepository{db: db, table: defaultAlertsTable}
}

// Create inserts an alert.
func (r *AlertRepository) Create(ctx context.Context, alert *alerts.Alert) error {
	if r == nil || r.db == nil {
		return errors.New("alert repo: nil db")
	}
	if alert == nil {
		return errors.New("alert repo: nil alert")
	}
	if alert.Status == "" {
		alert.Status = alerts.StatusActive
	}
	query := fmt.Sprintf(`
INSERT INTO %s (room_id, metric, threshold_value, value, alert_status, created_at)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id`, r.table)
	err := r.db.QueryRowContext(ctx, query,
		alert.RoomID,
		string(alert.Metric),
		alert.Threshold,
		alert.Value,
		string(alert.Status),
		alert.CreatedAt.UTC(),
	).Scan(&alert.ID)
	if postgres.IsForeignKeyViolation(err) {
		return apperr.Validation("room_id does not reference an existing room")
	}
	return err
}

// Get loads an alert by id.
func (r *AlertRepository) Get(ctx context.Context, id int64) (*alerts.Alert, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("alert repo: nil db")
	}
	alert, err := scanAlert(r.db.QueryRowContext(ctx, r.selectQuery()+" WHERE a.id = $1", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return alert, err
}

// List returns alerts newest first and the total before pagination.
func (r *AlertRepository) List(ctx context.Context, filter alerts.Filter) ([]alerts.Alert, int, error) {
	if r == nil || r.db == nil {
		return nil, 0, errors.New("alert repo: nil db")
	}
	var (
		clauses []string
		args    []any
	)
	if filter.RoomID != nil {
		args = append(args, *filter.RoomID)
		clauses = append(clauses, fmt.Sprintf("a.room_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		clauses = append(clauses, fmt.Sprintf("a.alert_status = $%d", len(args)))
	}
	where := ""
	if len(clauses) > 0 {
		where = " WHERE " + strings.Join(clauses, " AND ")
	}

	var total int
	if err := r.db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s a%s", r.table, where), args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := r.selectQuery() + where + " ORDER BY a.created_at DESC, a.id DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit, filter.Offset)
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}
	list, err := r.query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

// Recent returns the newest alerts.
func (r *AlertRepository) Recent(ctx context.Context, limit int) ([]alerts.Alert, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("alert repo: nil db")
	}
	if limit <= 0 {
		limit = 5
	}
	return r.query(ctx, r.selectQuery()+" ORDER BY a.created_at DESC, a.id DESC LIMIT $1", limit)
}

// CountByStatus returns totals for every status.
func (r *AlertRepository) CountByStatus(ctx context.Context) (map[alerts.Status]int, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("alert repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, fmt.Sprintf("SELECT alert_status, COUNT(*) FROM %s GROUP BY alert_status", r.table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := map[alerts.Status]int{
		alerts.StatusActive:   0,
		alerts.StatusResolved: 0,
	}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[alerts.Status(status)] = count
	}
	return counts, rows.Err()
}

// Resolve transitions an ACTIVE alert in a single statement.
// It returns nil when no ACTIVE alert has the id.
func (r *AlertRepository) Resolve(ctx context.Context, id int64, at time.Time) (*alerts.Alert, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("alert repo: nil db")
	}
	query := fmt.Sprintf(`
UPDATE %s
SET alert_status = $1, resolved_at = $2
WHERE id = $3 AND alert_status = $4`, r.table)
	res, err := r.db.ExecContext(ctx, query, string(alerts.StatusResolved), at.UTC(), id, string(alerts.StatusActive))
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, nil
	}
	return r.Get(ctx, id)
}

// Delete removes an alert.
func (r *AlertRepository) Delete(ctx context.Context, id int64) (bool, error) {
	if r == nil || r.db == nil {
		return false, errors.New("alert repo: nil db")
	}
	res, err := r.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = $1", r.table), id)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// HasActive reports whether the room has an ACTIVE alert.
func (r *AlertRepository) HasActive(ctx context.Context, roomID int64) (bool, error) {
	if r == nil || r.db == nil {
		return false, errors.New("alert repo: nil db")
	}
	var exists bool
	query := fmt.Sprintf("SELECT EXISTS (SELECT 1 FROM %s WHERE room_id = $1 AND alert_status = $2)", r.table)
	err := r.db.QueryRowContext(ctx, query, roomID, string(alerts.StatusActive)).Scan(&exists)
	return exists, err
}

func (r *AlertRepository) selectQuery() string {
	return fmt.Sprintf(`
SELECT a.id, a.room_id, COALESCE(r.room_name, ''), COALESCE(r.location, ''), a.metric,
	a.threshold_value, a.value, a.alert_status, a.created_at, a.resolved_at
FROM %s a
LEFT JOIN rooms r ON r.id = a.room_id`, r.table)
}

func (r *AlertRepository) query(ctx context.Context, query string, args ...any) ([]alerts.Alert, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]alerts.Alert, 0)
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *alert)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAlert(row scanner) (*alerts.Alert, error) {
	var (
		alert      alerts.Alert
		metric     string
		status     string
		resolvedAt sql.NullTime
	)
	if err := row.Scan(
		&alert.ID,
		&alert.RoomID,
		&alert.RoomName,
		&alert.Location,
		&metric,
		&alert.Threshold,
		&alert.Value,
		&status,
		&alert.CreatedAt,
		&resolvedAt,
	); err != nil {
		return nil, err
	}
	alert.Metric = alerts.Metric(metric)
	alert.Status = alerts.Status(status)
	alert.CreatedAt = alert.CreatedAt.UTC()
	if resolvedAt.Valid {
		at := resolvedAt.Time.UTC()
		alert.ResolvedAt = &at
	}
	return &alert, nil
}
