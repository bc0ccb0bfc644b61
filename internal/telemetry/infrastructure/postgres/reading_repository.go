package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"iot-climate-monitor/internal/apperr"
	"iot-climate-monitor/internal/platform/postgres"
	telemetry "iot-climate-monitor/internal/telemetry/domain"
)

const defaultReadingsTable = "sensor_logs"

// ReadingRepository is a Postgres implementation for sensor readings.
type ReadingRepository struct {
	db    postgres.DBTX
	table string
}

// NewReadingRepository constructs a repository.
func NewReadingRepository(db postgres.DBTX) *ReadingRepository {
	return &ReadingRepository{db: db, table: defaultReadingsTable}
}

// Insert stores a reading and assigns its id.
func (r *ReadingRepository) Insert(ctx context.Context, reading *telemetry.Reading) error {
	if r == nil || r.db == nil {
		return errors.New("reading repo: nil db")
	}
	if reading == nil {
		return errors.New("reading repo: nil reading")
	}
	query := fmt.Sprintf(`
INSERT INTO %s (device_id, temperature, humidity, light, recorded_at)
VALUES ($1, $2, $3, $4, $5)
RETURNING id`, r.table)
	err := r.db.QueryRowContext(ctx, query,
		reading.DeviceID,
		reading.Temperature,
		reading.Humidity,
		postgres.NullableFloat64(reading.Light),
		reading.RecordedAt.UTC(),
	).Scan(&reading.ID)
	if postgres.IsForeignKeyViolation(err) {
		return apperr.Validation("device_id does not reference an existing device")
	}
	return err
}

// List returns readings newest first and the total before pagination.
func (r *ReadingRepository) List(ctx context.Context, filter telemetry.ReadingFilter) ([]telemetry.Reading, int, error) {
	if r == nil || r.db == nil {
		return nil, 0, errors.New("reading repo: nil db")
	}
	var where conditions
	if filter.DeviceID != nil {
		where.add("s.device_id = $%d", *filter.DeviceID)
	}
	if !filter.From.IsZero() {
		where.add("s.recorded_at >= $%d", filter.From.UTC())
	}
	if !filter.To.IsZero() {
		where.add("s.recorded_at <= $%d", filter.To.UTC())
	}

	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM %s s%s", r.table, where.sql())
	if err := r.db.QueryRowContext(ctx, countQuery, where.args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := r.selectQuery() + where.sql() + " ORDER BY s.recorded_at DESC, s.id DESC"
	args := where.args
	if filter.Limit > 0 {
		args = append(args, filter.Limit, filter.Offset)
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}
	readings, err := r.query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return readings, total, nil
}

// LatestPerDevice returns every device with its newest reading.
func (r *ReadingRepository) LatestPerDevice(ctx context.Context) ([]telemetry.DeviceLatest, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("reading repo: nil db")
	}
	query := fmt.Sprintf(`
SELECT d.id, d.device_code, d.device_name, d.room_id, COALESCE(r.room_name, ''), COALESCE(r.location, ''),
	l.id, l.temperature, l.humidity, l.light, l.recorded_at
FROM devices d
LEFT JOIN rooms r ON r.id = d.room_id
LEFT JOIN LATERAL (
	SELECT s.id, s.temperature, s.humidity, s.light, s.recorded_at
	FROM %s s
	WHERE s.device_id = d.id
	ORDER BY s.recorded_at DESC, s.id DESC
	LIMIT 1
) l ON true
ORDER BY d.id ASC`, r.table)

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]telemetry.DeviceLatest, 0)
	for rows.Next() {
		var (
			entry       telemetry.DeviceLatest
			roomID      sql.NullInt64
			readingID   sql.NullInt64
			temperature sql.NullFloat64
			humidity    sql.NullFloat64
			light       sql.NullFloat64
			recordedAt  sql.NullTime
		)
		if err := rows.Scan(
			&entry.DeviceID,
			&entry.DeviceCode,
			&entry.DeviceName,
			&roomID,
			&entry.RoomName,
			&entry.Location,
			&readingID,
			&temperature,
			&humidity,
			&light,
			&recordedAt,
		); err != nil {
			return nil, err
		}
		if roomID.Valid {
			id := roomID.Int64
			entry.RoomID = &id
		}
		if readingID.Valid {
			entry.Reading = &telemetry.Reading{
				ID:          readingID.Int64,
				DeviceID:    entry.DeviceID,
				DeviceCode:  entry.DeviceCode,
				Temperature: temperature.Float64,
				Humidity:    humidity.Float64,
				Light:       floatPtr(light),
				RecordedAt:  recordedAt.Time.UTC(),
			}
		}
		result = append(result, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Window returns readings at or after since in ascending order.
func (r *ReadingRepository) Window(ctx context.Context, deviceID *int64, since time.Time) ([]telemetry.Reading, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("reading repo: nil db")
	}
	var where conditions
	where.add("s.recorded_at >= $%d", since.UTC())
	if deviceID != nil {
		where.add("s.device_id = $%d", *deviceID)
	}
	query := r.selectQuery() + where.sql() + " ORDER BY s.recorded_at ASC, s.id ASC"
	return r.query(ctx, query, where.args...)
}

// Recent returns the newest readings since the given time, newest first.
func (r *ReadingRepository) Recent(ctx context.Context, deviceID *int64, since time.Time, limit int) ([]telemetry.Reading, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("reading repo: nil db")
	}
	if limit <= 0 {
		limit = 50
	}
	var where conditions
	where.add("s.recorded_at >= $%d", since.UTC())
	if deviceID != nil {
		where.add("s.device_id = $%d", *deviceID)
	}
	args := append(where.args, limit)
	query := r.selectQuery() + where.sql() + fmt.Sprintf(" ORDER BY s.recorded_at DESC, s.id DESC LIMIT $%d", len(args))
	return r.query(ctx, query, args...)
}

// DeleteOlderThan removes readings recorded before cutoff.
func (r *ReadingRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	if r == nil || r.db == nil {
		return 0, errors.New("reading repo: nil db")
	}
	res, err := r.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE recorded_at < $1", r.table), cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *ReadingRepository) selectQuery() string {
	return fmt.Sprintf(`
SELECT s.id, s.device_id, d.device_code, s.temperature, s.humidity, s.light, s.recorded_at
FROM %s s
JOIN devices d ON d.id = s.device_id`, r.table)
}

func (r *ReadingRepository) query(ctx context.Context, query string, args ...any) ([]telemetry.Reading, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]telemetry.Reading, 0)
	for rows.Next() {
		var reading telemetry.Reading
		var light sql.NullFloat64
		if err := rows.Scan(
			&reading.ID,
			&reading.DeviceID,
			&reading.DeviceCode,
			&reading.Temperature,
			&reading.Humidity,
			&light,
			&reading.RecordedAt,
		); err != nil {
			return nil, err
		}
		reading.Light = floatPtr(light)
		reading.RecordedAt = reading.RecordedAt.UTC()
		result = append(result, reading)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// conditions accumulates AND-ed predicates with positional args.
type conditions struct {
	clauses []string
	args    []any
}

func (c *conditions) add(format string, arg any) {
	c.args = append(c.args, arg)
	c.clauses = append(c.clauses, fmt.Sprintf(format, len(c.args)))
}

func (c *conditions) sql() string {
	if len(c.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(c.clauses, " AND ")
}

func floatPtr(value sql.NullFloat64) *float64 {
	if !value.Valid {
		return nil
	}
	v := value.Float64
	return &v
}
