package core

import (
	"context"
	"errors"
	"fmt"

	"mystronium-backend-go/internal/db"
	"mystronium-backend-go/internal/models"
)

// userService implements the UserService interface.
type userService struct {
	userRepo db.UserRepository
}

// NewUserService creates a new UserService instance.
func NewUserService(userRepo db.UserRepository) UserService {
	return &userService{
		userRepo: userRepo,
	}
}

// GetSubscription returns the user's billing state.
func (s *userService) GetSubscription(ctx context.Context, userID string) (*models.User, error) {
	if s.userRepo == nil {
		return nil, errors.New("UserRepository not initialized in UserService")
	}
	if userID == "" {
		return nil, fmt.Errorf("%w: empty user ID", ErrInvalidRequest)
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, fmt.Errorf("%w: user with ID '%s'", ErrUserNotFound, userID)
		}
		return nil, fmt.Errorf("%w: failed to get user by ID '%s': %v", ErrPersistence, userID, err)
	}
	return user, nil
}
