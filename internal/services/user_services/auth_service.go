// File: internal/services/user_services/auth_service.go
package user_services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"github.com/iyunix/go-chatrelay/internal/auth"
	"github.com/iyunix/go-chatrelay/internal/domain"
	"github.com/iyunix/go-chatrelay/internal/repository/user"
)

type AuthService struct {
	userRepo     user.UserRepository
	jwtSecretKey string
	logger       Logger
}

func NewAuthService(userRepo user.UserRepository, jwtSecretKey string, logger Logger) *AuthService {
	return &AuthService{
		userRepo:     userRepo,
		jwtSecretKey: jwtSecretKey,
		logger:       logger,
	}
}

// RegisterInput is the sign-up form.
type RegisterInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (in RegisterInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Name, validation.Required, validation.RuneLength(2, 100)),
		validation.Field(&in.Email, validation.Required, validation.Length(3, 255), is.EmailFormat),
		validation.Field(&in.Password, validation.Required, validation.Length(8, 72)),
	)
}

// Register creates an account and returns it with a session token.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*domain.User, string, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := in.Validate(); err != nil {
		s.logger.Warn("registration validation failed", "email", mask(in.Email))
		return nil, "", newValidationError("register", err)
	}

	u := &domain.User{Name: in.Name, Email: in.Email}
	if err := u.HashPassword(in.Password); err != nil {
		return nil, "", newValidationError("register", validation.Errors{"password": err})
	}

	created, err := s.userRepo.Create(ctx, u)
	if err != nil {
		if errors.Is(err, user.ErrUserExists) {
			s.logger.Warn("registration failed - email already exists", "email", mask(in.Email))
			return nil, "", ErrEmailTaken
		}
		s.logger.Error("user creation failed", "error", err, "email", mask(in.Email))
		return nil, "", fmt.Errorf("failed to create user: %w", err)
	}

	token, err := auth.GenerateJWT(created.ID, []byte(s.jwtSecretKey))
	if err != nil {
		s.logger.Error("JWT token generation failed", "error", err, "user_id", created.ID)
		return nil, "", fmt.Errorf("failed to generate token: %w", err)
	}

	s.logger.Info("user registered successfully", "user_id", created.ID)
	return created, token, nil
}

// Login authenticates a user and returns a JWT token
func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.User, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		s.logger.Warn("login attempt with empty credentials",
			"has_email", email != "",
			"has_password", password != "")
		return nil, "", ErrInvalidCredentials
	}

	u, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, user.ErrUserNotFound) {
			s.logger.Error("login lookup failed", "error", err)
			return nil, "", err
		}
		s.logger.Warn("login failed - user not found", "email", mask(email))
		return nil, "", ErrInvalidCredentials
	}

	if err := u.ValidatePassword(password); err != nil {
		s.logger.Warn("login failed - invalid password", "user_id", u.ID)
		return nil, "", ErrInvalidCredentials
	}

	token, err := auth.GenerateJWT(u.ID, []byte(s.jwtSecretKey))
	if err != nil {
		s.logger.Error("JWT token generation failed", "error", err, "user_id", u.ID)
		return nil, "", fmt.Errorf("failed to generate token: %w", err)
	}

	s.logger.Info("login successful", "user_id", u.ID)
	return u, token, nil
}

// CurrentUser loads the authenticated user.
func (s *AuthService) CurrentUser(ctx context.Context, userID uint) (*domain.User, error) {
	return s.userRepo.FindByID(ctx, userID)
}

// ValidateJWTToken returns the user id carried by a session token.
func (s *AuthService) ValidateJWTToken(token string) (uint, error) {
	return auth.ValidateToken(token, []byte(s.jwtSecretKey))
}
