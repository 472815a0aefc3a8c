package services

import (
	"context"

	"go.uber.org/zap"

	"carpool-backend/application/ports"
	"carpool-backend/domain/carpool"
)

// UserService implements user account operations on top of the repository
// port.
type UserService struct {
	users  ports.UserRepository
	logger *zap.Logger
}

// NewUserService creates a new UserService.
func NewUserService(users ports.UserRepository, logger *zap.Logger) *UserService {
	return &UserService{
		users:  users,
		logger: logger,
	}
}

// Register creates a new user. Names are globally unique; a duplicate
// registration fails with a conflict.
func (s *UserService) Register(ctx context.Context, user carpool.User) error {
	if err := s.users.Create(ctx, user); err != nil {
		return err
	}
	s.logger.Info("user registered", zap.String("user", user.Name))
	return nil
}

// Get returns the user's profile.
func (s *UserService) Get(ctx context.Context, name string) (*carpool.User, error) {
	return s.users.GetByName(ctx, name)
}

// UpdateLocation overwrites the user's stored coordinates.
func (s *UserService) UpdateLocation(ctx context.Context, name string, loc carpool.Location) error {
	if err := s.users.UpdateLocation(ctx, name, loc); err != nil {
		return err
	}
	s.logger.Info("user location updated", zap.String("user", name))
	return nil
}

// Participations returns every carpool the user joined as a participant,
// regardless of status.
func (s *UserService) Participations(ctx context.Context, name string) ([]carpool.Membership, error) {
	return s.users.ParticipatedCarpools(ctx, name, nil, false)
}
