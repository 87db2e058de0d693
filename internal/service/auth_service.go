package service

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"docflow/api/internal/apperr"
	"docflow/api/internal/config"
	"docflow/api/internal/ids"
	"docflow/api/internal/models"
	"docflow/api/internal/repository"
	"docflow/api/internal/security"
)

// UserStore is the recording-store surface the services need for users.
// *repository.UserRepository satisfies it.
type UserStore interface {
	Create(ctx context.Context, user models.User) error
	FindByEmail(ctx context.Context, email string) (models.User, error)
	GetByID(ctx context.Context, id string) (models.User, error)
	List(ctx context.Context) ([]models.User, error)
	UpdateRole(ctx context.Context, id string, role models.Role) error
	UpdatePassword(ctx context.Context, id string, passwordHash []byte) error
	Delete(ctx context.Context, id string) error
}

type AuthService struct {
	users UserStore
	cfg   *config.AppConfig
	log   zerolog.Logger
}

func NewAuthService(users UserStore, cfg *config.AppConfig, log zerolog.Logger) *AuthService {
	return &AuthService{
		users: users,
		cfg:   cfg,
		log:   log,
	}
}

type RegisterInput struct {
	Email    string
	Password string
}

func (s *AuthService) Register(ctx context.Context, input RegisterInput) (models.User, error) {
	input.Email = strings.TrimSpace(strings.ToLower(input.Email))
	if input.Email == "" || input.Password == "" {
		return models.User{}, apperr.Validation("email and password required")
	}

	passwordHash, err := security.HashPassword(input.Password)
	if err != nil {
		return models.User{}, err
	}

	user := models.User{
		ID:           ids.New(),
		Email:        input.Email,
		PasswordHash: passwordHash,
		Role:         models.RoleUser,
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			return models.User{}, apperr.Conflict("email already registered")
		}
		return models.User{}, err
	}

	s.log.Info().Str("user_id", user.ID).Msg("user registered")
	return user, nil
}

type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

type LoginResult struct {
	Tokens TokenPair
	User   models.User
}

func (s *AuthService) Login(ctx context.Context, email, password string) (LoginResult, error) {
	email = strings.TrimSpace(strings.ToLower(email))

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return LoginResult{}, apperr.Unauthenticated("invalid email or password")
		}
		return LoginResult{}, err
	}

	ok, err := security.VerifyPassword(password, user.PasswordHash)
	if err != nil || !ok {
		return LoginResult{}, apperr.Unauthenticated("invalid email or password")
	}

	tokens, err := s.issuePair(user)
	if err != nil {
		return LoginResult{}, err
	}
	return LoginResult{Tokens: tokens, User: user}, nil
}

// Refresh exchanges a valid refresh token for a fresh access/refresh pair.
// The role is always re-resolved from the user row: the refresh token does
// not carry one, so a role change between issuance and exchange takes
// effect here.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (LoginResult, error) {
	claims, err := security.ParseTokenOfKind(refreshToken, s.cfg.Security.JWTSecret, security.TokenKindRefresh)
	if err != nil {
		switch {
		case errors.Is(err, security.ErrTokenExpired):
			return LoginResult{}, apperr.Unauthenticated("refresh token expired")
		default:
			return LoginResult{}, apperr.Unauthenticated("invalid refresh token")
		}
	}

	user, err := s.users.GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return LoginResult{}, apperr.Unauthenticated("user not found")
		}
		return LoginResult{}, err
	}

	tokens, err := s.issuePair(user)
	if err != nil {
		return LoginResult{}, err
	}
	return LoginResult{Tokens: tokens, User: user}, nil
}

func (s *AuthService) issuePair(user models.User) (TokenPair, error) {
	access, err := security.IssueToken(
		s.cfg.Security.JWTSecret,
		user.ID,
		user.Role,
		security.TokenKindAccess,
		s.cfg.Security.JWTAccessTTL,
	)
	if err != nil {
		return TokenPair{}, err
	}

	refresh, err := security.IssueToken(
		s.cfg.Security.JWTSecret,
		user.ID,
		user.Role,
		security.TokenKindRefresh,
		s.cfg.Security.JWTRefreshTTL,
	)
	if err != nil {
		return TokenPair{}, err
	}

	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}
