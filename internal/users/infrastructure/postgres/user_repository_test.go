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
	"iot-climate-monitor/internal/auth"
	users "iot-climate-monitor/internal/users/domain"
)

var userColumns = []string{"id", "username", "password_hash", "role", "created_at"}

func TestUserRepositoryCreateConflict(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO users")).
		WithArgs("admin", "hash", "admin").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(1, time.Now()))
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO users")).
		WithArgs("admin", "hash", "admin").
		WillReturnError(&pgconn.PgError{Code: "23505"})

	repo := NewUserRepository(db)
	user := &users.User{Username: "admin", PasswordHash: "hash", Role: auth.RoleAdmin}
	require.NoError(t, repo.Create(context.Background(), user))
	assert.Equal(t, int64(1), user.ID)

	err = repo.Create(context.Background(), &users.User{Username: "admin", PasswordHash: "hash", Role: auth.RoleAdmin})
	assert.ErrorIs(t, err, apperr.ErrConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryLookups(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("WHERE username = $1")).
		WithArgs("budi").
		WillReturnRows(sqlmock.NewRows(userColumns).AddRow(2, "budi", "hash", "teknisi", time.Now()))
	mock.ExpectQuery(regexp.QuoteMeta("WHERE id = $1")).
		WithArgs(int64(9)).
		WillReturnRows(sqlmock.NewRows(userColumns))
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY id ASC")).
		WillReturnRows(sqlmock.NewRows(userColumns).
			AddRow(1, "root", "h1", "admin", time.Now()).
			AddRow(2, "budi", "h2", "technician", time.Now()))

	repo := NewUserRepository(db)
	user, err := repo.GetByUsername(context.Background(), "budi")
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, auth.RoleTechnician, user.Role)

	missing, err := repo.Get(context.Background(), 9)
	require.NoError(t, err)
	assert.Nil(t, missing)

	list, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, auth.RoleAdmin, list[0].Role)
	require.NoError(t, mock.ExpectationsWereMet())
}
