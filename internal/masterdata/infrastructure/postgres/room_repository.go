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

const defaultRoomsTable = "rooms"

// RoomRepository is a Postgres implementation for rooms.
type RoomRepository struct {
	db    postgres.DBTX
	table string
}

// NewRoomRepository constructs a repository.
func NewRoomRepository(db postgres.DBTX) *RoomRepository {
	return &RoomRepository{db: db, table: defaultRoomsTable}
}

func (r *RoomRepository) selectQuery(where string) string {
	return fmt.Sprintf(`
SELECT r.id, r.room_name, r.location, r.description, r.created_at, r.updated_at, COUNT(d.id)
FROM %s r
LEFT JOIN devices d ON d.room_id = r.id
%s
GROUP BY r.id
ORDER BY r.id ASC`, r.table, where)
}

// List returns all rooms with their device counts.
func (r *RoomRepository) List(ctx context.Context) ([]masterdata.Room, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("room repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, r.selectQuery(""))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]masterdata.Room, 0)
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *room)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Get loads a room by id.
func (r *RoomRepository) Get(ctx context.Context, id int64) (*masterdata.Room, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("room repo: nil db")
	}
	room, err := scanRoom(r.db.QueryRowContext(ctx, r.selectQuery("WHERE r.id = $1"), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return room, err
}

// Create inserts a room and assigns its id.
func (r *RoomRepository) Create(ctx context.Context, room *masterdata.Room) error {
	if r == nil || r.db == nil {
		return errors.New("room repo: nil db")
	}
	if room == nil {
		return errors.New("room repo: nil room")
	}
	query := fmt.Sprintf(`
INSERT INTO %s (room_name, location, description)
VALUES ($1, $2, $3)
RETURNING id, created_at, updated_at`, r.table)
	if err := r.db.QueryRowContext(ctx, query, room.Name, room.Location, room.Description).
		Scan(&room.ID, &room.CreatedAt, &room.UpdatedAt); err != nil {
		return err
	}
	room.CreatedAt = room.CreatedAt.UTC()
	room.UpdatedAt = room.UpdatedAt.UTC()
	return nil
}

// Update overwrites the mutable room columns.
func (r *RoomRepository) Update(ctx context.Context, room *masterdata.Room) error {
	if r == nil || r.db == nil {
		return errors.New("room repo: nil db")
	}
	if room == nil {
		return errors.New("room repo: nil room")
	}
	query := fmt.Sprintf(`
UPDATE %s
SET room_name = $1, location = $2, description = $3, updated_at = now()
WHERE id = $4
RETURNING updated_at`, r.table)
	err := r.db.QueryRowContext(ctx, query, room.Name, room.Location, room.Description, room.ID).Scan(&room.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.NotFound("room not found")
	}
	if err != nil {
		return err
	}
	room.UpdatedAt = room.UpdatedAt.UTC()
	return nil
}

// Delete removes a room. Devices are unassigned and alerts removed by FK actions.
func (r *RoomRepository) Delete(ctx context.Context, id int64) (bool, error) {
	if r == nil || r.db == nil {
		return false, errors.New("room repo: nil db")
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

// Count returns the number of rooms.
func (r *RoomRepository) Count(ctx context.Context) (int, error) {
	if r == nil || r.db == nil {
		return 0, errors.New("room repo: nil db")
	}
	var count int
	err := r.db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", r.table)).Scan(&count)
	return count, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRoom(row scanner) (*masterdata.Room, error) {
	var room masterdata.Room
	if err := row.Scan(
		&room.ID,
		&room.Name,
		&room.Location,
		&room.Description,
		&room.CreatedAt,
		&room.UpdatedAt,
		&room.DeviceCount,
	); err != nil {
		return nil, err
	}
	room.CreatedAt = room.CreatedAt.UTC()
	room.UpdatedAt = room.UpdatedAt.UTC()
	return &room, nil
}
