package memory

import (
	"context"
	"sort"

	"iot-climate-monitor/internal/apperr"
	users "iot-climate-monitor/internal/users/domain"
)

// UserRepository implements users.Repository.
type UserRepository struct {
	s *Store
}

var _ users.Repository = (*UserRepository)(nil)

func (r *UserRepository) Create(_ context.Context, user *users.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, existing := range r.s.users {
		if existing.Username == user.Username {
			return apperr.Conflict("username already exists")
		}
	}
	r.s.userSeq++
	user.ID = r.s.userSeq
	user.CreatedAt = r.s.stamp(user.CreatedAt)
	r.s.users[user.ID] = *user
	return nil
}

func (r *UserRepository) Get(_ context.Context, id int64) (*users.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	user, ok := r.s.users[id]
	if !ok {
		return nil, nil
	}
	return &user, nil
}

func (r *UserRepository) GetByUsername(_ context.Context, username string) (*users.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, user := range r.s.users {
		if user.Username == username {
			out := user
			return &out, nil
		}
	}
	return nil, nil
}

func (r *UserRepository) List(_ context.Context) ([]users.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]users.User, 0, len(r.s.users))
	for _, user := range r.s.users {
		out = append(out, user)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
