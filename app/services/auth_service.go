package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shashiranjanraj/catalog/app/models"
	"github.com/shashiranjanraj/catalog/app/repositories"
	"github.com/shashiranjanraj/catalog/pkg/apperr"
	"github.com/shashiranjanraj/catalog/pkg/auth"
	"github.com/shashiranjanraj/catalog/pkg/bind"
	"github.com/shashiranjanraj/catalog/pkg/logger"
)

type RegisterInput struct {
	Name     string `json:"name" validate:"required,max=255"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Role     string `json:"role" validate:"omitempty,oneof=vendor shopper"`
}

type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Session is the result of a successful login.
type Session struct {
	Token     string            `json:"token"`
	ExpiresAt time.Time         `json:"expiresAt"`
	User      models.PublicUser `json:"user"`
}

// AuthService registers users and issues session tokens.
type AuthService struct {
	users  repositories.UserStore
	issuer *auth.TokenIssuer
}

func NewAuthService(users repositories.UserStore, issuer *auth.TokenIssuer) *AuthService {
	return &AuthService{users: users, issuer: issuer}
}

// Register creates an account. Admins cannot self-register.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (models.PublicUser, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := bind.Struct(in); err != nil {
		return models.PublicUser{}, err
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return models.PublicUser{}, apperr.Internal("Failed to register user", err)
	}

	role := in.Role
	if role == "" {
		role = models.RoleShopper
	}
	user := models.User{Name: in.Name, Email: in.Email, Password: hash, Role: role}
	if err := s.users.Create(ctx, &user); err != nil {
		if errors.Is(err, repositories.ErrAlreadyExists) {
			return models.PublicUser{}, apperr.Conflict("Email already registered")
		}
		return models.PublicUser{}, apperr.Internal("Failed to register user", err)
	}

	logger.WithCtx(ctx).Info("user registered", "user_id", user.ID, "role", role)
	return user.Public(), nil
}

// Login verifies credentials. An unknown email is NotFound, a wrong
// password Unauthorized.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (Session, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := bind.Struct(in); err != nil {
		return Session{}, err
	}

	user, err := s.users.FindByEmail(ctx, in.Email)
	if errors.Is(err, repositories.ErrNotFound) {
		return Session{}, apperr.NotFound("user does not exist")
	}
	if err != nil {
		return Session{}, apperr.Internal("Failed to log in", err)
	}

	if !auth.CheckPassword(user.Password, in.Password) {
		logger.WithCtx(ctx).Info("login rejected", "user_id", user.ID)
		return Session{}, apperr.Unauthorized("Incorrect email or password")
	}

	token, exp, err := s.issuer.Issue(user.ID, user.Role)
	if err != nil {
		return Session{}, apperr.Internal("Failed to issue token", err)
	}
	return Session{Token: token, ExpiresAt: exp, User: user.Public()}, nil
}

// Me returns the public profile of userID.
func (s *AuthService) Me(ctx context.Context, userID string) (models.PublicUser, error) {
	user, err := s.users.FindByID(ctx, userID)
	if errors.Is(err, repositories.ErrNotFound) {
		return models.PublicUser{}, apperr.NotFound("User not found")
	}
	if err != nil {
		return models.PublicUser{}, apperr.Internal("Failed to load user", err)
	}
	return user.Public(), nil
}
