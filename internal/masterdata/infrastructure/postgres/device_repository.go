package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"iot-climate-monitor/internal/apperr"
	masterdata "iot-climate-monitor/internal/masterdata/domain"
	"iot-climate-monitor/internal/platform/postgres"
)

const defaultDevicesTable = "devices"

// DeviceRepository is a Postgres implementation for devices.
type DeviceRepository struct {
	db    postgres.DBTX
	table string
}

// NewDeviceRepository constructs a repository.
func NewDeviceRepository(db postgres.DBTX, opts ...DeviceOption) *DeviceRepository {
	repo := &DeviceRepository{db: db, table: defaultDevicesTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// DeviceOption configures the repository.
type DeviceOption func(*DeviceRepository)

// WithDeviceTable overrides the default table name.
func WithDeviceTable(table string) DeviceOption {
	return func(repo *DeviceRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

func (r *DeviceRepository) detailQuery(where string) string {
	return fmt.Sprintf(`
SELECT d.id, d.device_code, d.device_name, d.ip_address, d.room_id, d.created_at, d.updated_at,
	COALESCE(r.room_name, ''), COALESCE(r.location, ''),
	(SELECT COUNT(*) FROM sensor_logs s WHERE s.device_id = d.id),
	(SELECT MAX(s.recorded_at) FROM sensor_logs s WHERE s.device_id = d.id)
FROM %s d
LEFT JOIN rooms r ON r.id = d.room_id
%s
ORDER BY d.id ASC`, r.table, where)
}

// List returns all devices with room, log count and last reading time.
func (r *DeviceRepository) List(ctx context.Context) ([]masterdata.Device, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("device repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, r.detailQuery(""))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]masterdata.Device, 0)
	for rows.Next() {
		device, err := scanDeviceDetail(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *device)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Get loads a device by id.
func (r *DeviceRepository) Get(ctx context.Context, id int64) (*masterdata.Device, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("device repo: nil db")
	}
	device, err := scanDeviceDetail(r.db.QueryRowContext(ctx, r.detailQuery("WHERE d.id = $1"), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return device, err
}

// GetByCode loads a device by its unique code. Aggregates are not filled.
func (r *DeviceRepository) GetByCode(ctx context.Context, code string) (*masterdata.Device, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("device repo: nil db")
	}
	if code == "" {
		return nil, errors.New("device repo: empty code")
	}
	query := fmt.Sprintf(`
SELECT d.id, d.device_code, d.device_name, d.ip_address, d.room_id, d.created_at, d.updated_at,
	COALESCE(r.room_name, ''), COALESCE(r.location, '')
FROM %s d
LEFT JOIN rooms r ON r.id = d.room_id
WHERE d.device_code = $1
LIMIT 1`, r.table)

	var device masterdata.Device
	var roomID sql.NullInt64
	if err := r.db.QueryRowContext(ctx, query, code).Scan(
		&device.ID,
		&device.Code,
		&device.Name,
		&device.IPAddress,
		&roomID,
		&device.CreatedAt,
		&device.UpdatedAt,
		&device.RoomName,
		&device.Location,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if roomID.Valid {
		id := roomID.Int64
		device.RoomID = &id
	}
	device.CreatedAt = device.CreatedAt.UTC()
	device.UpdatedAt = device.UpdatedAt.UTC()
	return &device, nil
}

// Create inserts a device and assigns its id.
func (r *DeviceRepository) Create(ctx context.Context, device *masterdata.Device) error {
	if r == nil || r.db == nil {
		return errors.New("device repo: nil db")
	}
	if device == nil {
		return errors.New("device repo: nil device")
	}
	query := fmt.Sprintf(`
INSERT INTO %s (device_code, device_name, ip_address, room_id)
VALUES ($1, $2, $3, $4)
RETURNING id, created_at, updated_at`, r.table)
	err := r.db.QueryRowContext(ctx, query,
		device.Code,
		device.Name,
		device.IPAddress,
		postgres.NullableInt64(device.RoomID),
	).Scan(&device.ID, &device.CreatedAt, &device.UpdatedAt)
	if err != nil {
		return mapDeviceWriteError(err)
	}
	device.CreatedAt = device.CreatedAt.UTC()
	device.UpdatedAt = device.UpdatedAt.UTC()
	return nil
}

// Update overwrites the mutable device columns.
func (r *DeviceRepository) Update(ctx context.Context, device *masterdata.Device) error {
	if r == nil || r.db == nil {
		return errors.New("device repo: nil db")
	}
	if device == nil {
		return errors.New("device repo: nil device")
	}
	query := fmt.Sprintf(`
UPDATE %s
SET device_code = $1, device_name = $2, ip_address = $3, room_id = $4, updated_at = now()
WHERE id = $5
RETURNING updated_at`, r.table)
	err := r.db.QueryRowContext(ctx, query,
		device.Code,
		device.Name,
		device.IPAddress,
		postgres.NullableInt64(device.RoomID),
		device.ID,
	).Scan(&device.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.NotFound("device not found")
	}
	if err != nil {
		return mapDeviceWriteError(err)
	}
	device.UpdatedAt = device.UpdatedAt.UTC()
	return nil
}

// Delete removes a device and, by cascade, its readings.
func (r *DeviceRepository) Delete(ctx context.Context, id int64) (bool, error) {
	if r == nil || r.db == nil {
		return false, errors.New("device repo: nil db")
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

// Count returns the number of devices.
func (r *DeviceRepository) Count(ctx context.Context) (int, error) {
	if r == nil || r.db == nil {
		return 0, errors.New("device repo: nil db")
	}
	var count int
	err := r.db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", r.table)).Scan(&count)
	return count, err
}

func mapDeviceWriteError(err error) error {
	switch {
	case postgres.IsUniqueViolation(err):
		return apperr.Conflict("device code already exists")
	case postgres.IsForeignKeyViolation(err):
		return apperr.Validation("room_id does not reference an existing room")
	default:
		return err
	}
}

func scanDeviceDetail(row scanner) (*masterdata.Device, error) {
	var device masterdata.Device
	var roomID sql.NullInt64
	var lastReading sql.NullTime
	if err := row.Scan(
		&device.ID,
		&device.Code,
		&device.Name,
		&device.IPAddress,
		&roomID,
		&device.CreatedAt,
		&device.UpdatedAt,
		&device.RoomName,
		&device.Location,
		&device.LogCount,
		&lastReading,
	); err != nil {
		return nil, err
	}
	if roomID.Valid {
		id := roomID.Int64
		device.RoomID = &id
	}
	if lastReading.Valid {
		at := lastReading.Time.UTC()
		device.LastReadingAt = &at
	}
	device.CreatedAt = device.CreatedAt.UTC()
	device.UpdatedAt = device.UpdatedAt.UTC()
	return &device, nil
}
