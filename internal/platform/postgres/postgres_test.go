package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrateExecutesSchema(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS users")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, Migrate(context.Background(), db))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConstraintViolationDetection(t *testing.T) {
	unique := fmt.Errorf("insert device: %w", &pgconn.PgError{Code: "23505"})
	fk := &pgconn.PgError{Code: "23503"}

	assert.True(t, IsUniqueViolation(unique))
	assert.False(t, IsUniqueViolation(fk))
	assert.True(t, IsForeignKeyViolation(fk))
	assert.False(t, IsUniqueViolation(errors.New("23505")))
}

func TestNullableHelpers(t *testing.T) {
	assert.False(t, NullableTime(time.Time{}).Valid)
	assert.True(t, NullableTime(time.Now()).Valid)
	assert.False(t, NullableInt64(nil).Valid)
	v := int64(4)
	assert.Equal(t, int64(4), NullableInt64(&v).Int64)
	assert.False(t, NullableFloat64(nil).Valid)
}
