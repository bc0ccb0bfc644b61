package postgres

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"iot-climate-monitor/internal/apperr"
	telemetry "iot-climate-monitor/internal/telemetry/domain"
)

var readingColumns = []string{"id", "device_id", "device_code", "temperature", "humidity", "light", "recorded_at"}

func TestReadingRepositoryInsert(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	at := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO sensor_logs")).
		WithArgs(int64(1), 29.0, 60.0, nil, at).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(11))
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO sensor_logs")).
		WillReturnError(&pgconn.PgError{Code: "23503"})

	repo := NewReadingRepository(db)
	reading := &telemetry.Reading{DeviceID: 1, Temperature: 29, Humidity: 60, RecordedAt: at}
	require.NoError(t, repo.Insert(context.Background(), reading))
	assert.Equal(t, int64(11), reading.ID)

	err = repo.Insert(context.Background(), &telemetry.Reading{DeviceID: 99, RecordedAt: at})
	assert.ErrorIs(t, err, apperr.ErrValidation)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReadingRepositoryListBuildsFilters(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	device := int64(3)
	from := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	at := from.Add(time.Hour)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM sensor_logs s WHERE s.device_id = $1 AND s.recorded_at >= $2")).
		WithArgs(device, from).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(25))
	mock.ExpectQuery(regexp.QuoteMeta("WHERE s.device_id = $1 AND s.recorded_at >= $2 ORDER BY s.recorded_at DESC, s.id DESC LIMIT $3 OFFSET $4")).
		WithArgs(device, from, 10, 10).
		WillReturnRows(sqlmock.NewRows(readingColumns).
			AddRow(5, 3, "ESP32-003", 22.5, 48.0, 120.0, at).
			AddRow(4, 3, "ESP32-003", 22.0, 47.0, nil, at))

	readings, total, err := NewReadingRepository(db).List(context.Background(), telemetry.ReadingFilter{
		DeviceID: &device,
		From:     from,
		Limit:    10,
		Offset:   10,
	})
	require.NoError(t, err)
	assert.Equal(t, 25, total)
	require.Len(t, readings, 2)
	require.NotNil(t, readings[0].Light)
	assert.Equal(t, 120.0, *readings[0].Light)
	assert.Nil(t, readings[1].Light)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReadingRepositoryLatestPerDevice(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	at := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("LEFT JOIN LATERAL")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "device_code", "device_name", "room_id", "room_name", "location", "rid", "temperature", "humidity", "light", "recorded_at"}).
			AddRow(1, "ESP32-001", "Board A", 2, "Lab-1", "Floor 2", 40, 25.5, 50.0, nil, at).
			AddRow(2, "ESP32-002", "Board B", nil, "", "", nil, nil, nil, nil, nil))

	latest, err := NewReadingRepository(db).LatestPerDevice(context.Background())
	require.NoError(t, err)
	require.Len(t, latest, 2)
	require.NotNil(t, latest[0].Reading)
	assert.Equal(t, int64(40), latest[0].Reading.ID)
	assert.Equal(t, at, latest[0].Reading.RecordedAt)
	assert.Nil(t, latest[1].Reading)
	assert.Nil(t, latest[1].RoomID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReadingRepositoryWindowAndRecent(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	since := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE s.recorded_at >= $1 ORDER BY s.recorded_at ASC")).
		WithArgs(since).
		WillReturnRows(sqlmock.NewRows(readingColumns))
	mock.ExpectQuery(regexp.QuoteMeta("WHERE s.recorded_at >= $1 AND s.device_id = $2 ORDER BY s.recorded_at DESC, s.id DESC LIMIT $3")).
		WithArgs(since, int64(7), 50).
		WillReturnRows(sqlmock.NewRows(readingColumns))

	repo := NewReadingRepository(db)
	window, err := repo.Window(context.Background(), nil, since)
	require.NoError(t, err)
	assert.Empty(t, window)

	device := int64(7)
	recent, err := repo.Recent(context.Background(), &device, since, 0)
	require.NoError(t, err)
	assert.Empty(t, recent)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReadingRepositoryDeleteOlderThan(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	cutoff := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM sensor_logs WHERE recorded_at < $1")).
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 42))

	deleted, err := NewReadingRepository(db).DeleteOlderThan(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(42), deleted)
	require.NoError(t, mock.ExpectationsWereMet())
}
