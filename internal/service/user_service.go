package service

import (
	"context"

	"meetup/internal/domain"
)

// UserService provides user-related operations.
type UserService struct {
	users domain.UserRepository
}

func NewUserService(users domain.UserRepository) *UserService {
	return &UserService{users: users}
}

func (s *UserService) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	return s.users.GetByID(ctx, id)
}

// ListCandidates returns active users other than the caller, the pool a new
// conversation can be started with.
func (s *UserService) ListCandidates(ctx context.Context, callerID int64) ([]*domain.User, error) {
	return s.users.ListActive(ctx, callerID)
}
