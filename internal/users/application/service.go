package application

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"iot-climate-monitor/internal/apperr"
	"iot-climate-monitor/internal/auth"
	users "iot-climate-monitor/internal/users/domain"
)

// Clock provides time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now().UTC()
}

// Session is the login result.
type Session struct {
	Token     string     `json:"token"`
	ExpiresAt time.Time  `json:"expires_at"`
	User      users.User `json:"user"`
}

// RegisterCommand creates a user. Role defaults to technician.
type RegisterCommand struct {
	Username string
	Password string
	Role     string
}

// Service authenticates and manages users.
type Service struct {
	repo   users.Repository
	secret []byte
	ttl    time.Duration
	clock  Clock
	logger *zap.Logger
}

// Option customizes the user service.
type Option func(*Service)

// WithClock assigns a clock.
func WithClock(clock Clock) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithLogger assigns a logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewService constructs a user service.
func NewService(repo users.Repository, secret []byte, ttl time.Duration, opts ...Option) (*Service, error) {
	if repo == nil {
		return nil, errors.New("users: nil repository")
	}
	if len(secret) == 0 {
		return nil, errors.New("users: empty jwt secret")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	service := &Service{
		repo:   repo,
		secret: secret,
		ttl:    ttl,
		clock:  systemClock{},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// Login checks credentials and issues a token. Unknown user and wrong
// password are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, username, password string) (*Session, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, apperr.Validation("username and password are required")
	}
	user, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperr.Unauthorized("invalid username or password")
	}
	if err := auth.CheckPassword(user.PasswordHash, password); err != nil {
		s.logger.Info("login rejected", zap.String("username", username))
		return nil, apperr.Unauthorized("invalid username or password")
	}
	token, expiresAt, err := auth.IssueJWT(s.secret, auth.Identity{
		UserID:   user.ID,
		Username: user.Username,
		Role:     user.Role,
	}, s.ttl, s.clock.Now())
	if err != nil {
		return nil, apperr.Internal(err, "could not issue token")
	}
	return &Session{Token: token, ExpiresAt: expiresAt, User: *user}, nil
}

// Register creates a user.
func (s *Service) Register(ctx context.Context, cmd RegisterCommand) (*users.User, error) {
	username := strings.TrimSpace(cmd.Username)
	if username == "" || cmd.Password == "" {
		return nil, apperr.Validation("username and password are required")
	}
	if len(cmd.Password) < auth.MinPasswordLength {
		return nil, apperr.Validationf("password must be at least %d characters", auth.MinPasswordLength)
	}
	role := auth.RoleTechnician
	if strings.TrimSpace(cmd.Role) != "" {
		parsed, ok := auth.NormalizeRole(cmd.Role)
		if !ok {
			return nil, apperr.Validation("role must be admin or technician")
		}
		role = parsed
	}
	hash, err := auth.HashPassword(cmd.Password)
	if err != nil {
		return nil, apperr.Internal(err, "could not hash password")
	}
	user := &users.User{
		Username:     username,
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    s.clock.Now(),
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}
	s.logger.Info("user registered", zap.Int64("user_id", user.ID), zap.String("role", string(user.Role)))
	return user, nil
}

// Profile returns the user for an authenticated identity.
func (s *Service) Profile(ctx context.Context, userID int64) (*users.User, error) {
	user, err := s.repo.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperr.NotFound("user not found")
	}
	return user, nil
}

// List returns all users.
func (s *Service) List(ctx context.Context) ([]users.User, error) {
	return s.repo.List(ctx)
}

// EnsureAdmin creates an admin account when username does not exist yet.
// It reports whether a user was created.
func (s *Service) EnsureAdmin(ctx context.Context, username, password string) (bool, error) {
	if strings.TrimSpace(username) == "" || password == "" {
		return false, nil
	}
	existing, err := s.repo.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return false, err
	}
	if existing != nil {
		return false, nil
	}
	if _, err := s.Register(ctx, RegisterCommand{Username: username, Password: password, Role: string(auth.RoleAdmin)}); err != nil {
		return false, err
	}
	return true, nil
}
