package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"iot-climate-monitor/internal/apperr"
	"iot-climate-monitor/internal/auth"
	"iot-climate-monitor/internal/platform/postgres"
	users "iot-climate-monitor/internal/users/domain"
)

const defaultUsersTable = "users"

// UserRepository is a Postgres implementation for users.
type UserRepository struct {
	db    postgres.DBTX
	table string
}

// NewUserRepository constructs a repository.
func NewUserRepository(db postgres.DBTX) *UserRepository {
	return &UserRepository{db: db, table: defaultUsersTable}
}

// Create inserts a user. A taken username is a conflict.
func (r *UserRepository) Create(ctx context.Context, user *users.User) error {
	if r == nil || r.db == nil {
		return errors.New("user repo: nil db")
	}
	if user == nil {
		return errors.New("user repo: nil user")
	}
	query := fmt.Sprintf(`
INSERT INTO %s (username, password_hash, role)
VALUES ($1, $2, $3)
RETURNING id, created_at`, r.table)
	err := r.db.QueryRowContext(ctx, query, user.Username, user.PasswordHash, string(user.Role)).
		Scan(&user.ID, &user.CreatedAt)
	if postgres.IsUniqueViolation(err) {
		return apperr.Conflict("username already exists")
	}
	if err != nil {
		return err
	}
	user.CreatedAt = user.CreatedAt.UTC()
	return nil
}

// Get loads a user by id.
func (r *UserRepository) Get(ctx context.Context, id int64) (*users.User, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("user repo: nil db")
	}
	return r.one(ctx, "id = $1", id)
}

// GetByUsername loads a user by username.
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*users.User, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("user repo: nil db")
	}
	return r.one(ctx, "username = $1", username)
}

// List returns users ordered by id.
func (r *UserRepository) List(ctx context.Context) ([]users.User, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("user repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, fmt.Sprintf("SELECT id, username, password_hash, role, created_at FROM %s ORDER BY id ASC", r.table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]users.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *UserRepository) one(ctx context.Context, where string, arg any) (*users.User, error) {
	query := fmt.Sprintf("SELECT id, username, password_hash, role, created_at FROM %s WHERE %s", r.table, where)
	user, err := scanUser(r.db.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return user, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner) (*users.User, error) {
	var user users.User
	var role string
	if err := row.Scan(&user.ID, &user.Username, &user.PasswordHash, &role, &user.CreatedAt); err != nil {
		return nil, err
	}
	parsed, ok := auth.NormalizeRole(role)
	if !ok {
		return nil, fmt.Errorf("user repo: unknown role %q for user %d", role, user.ID)
	}
	user.Role = parsed
	user.CreatedAt = user.CreatedAt.UTC()
	return &user, nil
}
