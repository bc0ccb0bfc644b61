package users

import (
	"context"
	"time"

	"iot-climate-monitor/internal/auth"
)

// User is an operator account.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Role         auth.Role `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

// Repository persists users.
type Repository interface {
	Create(ctx context.Context, user *User) error
	Get(ctx context.Context, id int64) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	List(ctx context.Context) ([]User, error)
}
