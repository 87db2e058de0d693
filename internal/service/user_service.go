package service

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"docflow/api/internal/apperr"
	"docflow/api/internal/models"
	"docflow/api/internal/repository"
	"docflow/api/internal/security"
)

type UserService struct {
	users UserStore
	log   zerolog.Logger
}

func NewUserService(users UserStore, log zerolog.Logger) *UserService {
	return &UserService{users: users, log: log}
}

func (s *UserService) List(ctx context.Context) ([]models.User, error) {
	return s.users.List(ctx)
}

func (s *UserService) Get(ctx context.Context, id string) (models.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return models.User{}, apperr.NotFound("user not found")
		}
		return models.User{}, err
	}
	return user, nil
}

// UpdateRole changes the target user's role. An admin can never demote
// itself: the acting principal is compared against the target before any
// mutation is attempted.
func (s *UserService) UpdateRole(ctx context.Context, actor models.Principal, targetID string, role models.Role) (models.User, error) {
	if !role.Valid() {
		return models.User{}, apperr.Validation("role must be admin or user")
	}
	if actor.UserID == targetID && role != models.RoleAdmin {
		return models.User{}, apperr.Forbidden("cannot demote yourself from admin role")
	}

	if err := s.users.UpdateRole(ctx, targetID, role); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return models.User{}, apperr.NotFound("user not found")
		}
		return models.User{}, err
	}

	s.log.Info().
		Str("actor_id", actor.UserID).
		Str("user_id", targetID).
		Str("role", string(role)).
		Msg("user role updated")

	return s.Get(ctx, targetID)
}

// UpdatePassword is permitted to the account owner or any admin.
func (s *UserService) UpdatePassword(ctx context.Context, actor models.Principal, targetID, password string) error {
	if actor.UserID != targetID && !actor.IsAdmin() {
		return apperr.Forbidden("can only update your own password")
	}
	if password == "" {
		return apperr.Validation("password is required")
	}

	passwordHash, err := security.HashPassword(password)
	if err != nil {
		return err
	}

	if err := s.users.UpdatePassword(ctx, targetID, passwordHash); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return apperr.NotFound("user not found")
		}
		return err
	}
	return nil
}

// Delete removes a user account. Self-deletion is refused before any
// mutation so an admin cannot lock the system out of administration.
func (s *UserService) Delete(ctx context.Context, actor models.Principal, targetID string) error {
	if actor.UserID == targetID {
		return apperr.Forbidden("cannot delete your own account")
	}

	if err := s.users.Delete(ctx, targetID); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return apperr.NotFound("user not found")
		}
		return err
	}

	s.log.Info().
		Str("actor_id", actor.UserID).
		Str("user_id", targetID).
		Msg("user deleted")
	return nil
}
