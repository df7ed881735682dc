// File: internal/repository/user/gorm_user_repository.go
package user

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/iyunix/go-chatrelay/internal/domain"
)

var ErrUserNotFound = errors.New("user not found")
var ErrUserExists = errors.New("user already exists")

type gormUserRepository struct {
	db *gorm.DB
}

func NewGormUserRepository(db *gorm.DB) UserRepository {
	return &gormUserRepository{db: db}
}

func (r *gormUserRepository) Create(ctx context.Context, user *domain.User) (*domain.User, error) {
	if user == nil {
		return nil, errors.New("user cannot be nil")
	}
	user.Email = normalizeEmail(user.Email)
	if err := user.IsValid(); err != nil {
		log.Printf("[UserRepository] Validation failed: %v", err)
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.User{}).Where("email = ?", user.Email).Count(&count).Error; err != nil {
		log.Printf("[UserRepository] Database error checking email uniqueness: %v", err)
		return nil, errors.New("database error creating user")
	}
	if count > 0 {
		return nil, ErrUserExists
	}

	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		log.Printf("[UserRepository] Database error during user creation: %v", err)
		return nil, errors.New("database error creating user")
	}

	log.Printf("[UserRepository] User created successfully with ID: %d", user.ID)
	return user, nil
}

func (r *gormUserRepository) FindByID(ctx context.Context, id uint) (*domain.User, error) {
	if id == 0 {
		return nil, ErrUserNotFound
	}
	var user domain.User
	err := r.db.WithContext(ctx).First(&user, id).Error
	return r.handleFindError(err, &user)
}

func (r *gormUserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	var user domain.User
	err := r.db.WithContext(ctx).Where("email = ?", normalizeEmail(email)).First(&user).Error
	return r.handleFindError(err, &user)
}

func (r *gormUserRepository) UpdatePreferredModel(ctx context.Context, id uint, model string) error {
	return r.update(ctx, id, map[string]interface{}{"preferred_model": model})
}

func (r *gormUserRepository) UpdateInstructions(ctx context.Context, id uint, instructions Instructions) error {
	commands := instructions.CustomCommands
	if commands == nil {
		commands = []domain.CustomCommand{}
	}
	return r.update(ctx, id, map[string]interface{}{
		"about_you":          instructions.AboutYou,
		"assistant_behavior": instructions.AssistantBehavior,
		"custom_commands":    datatypes.NewJSONSlice(commands),
	})
}

func (r *gormUserRepository) update(ctx context.Context, id uint, fields map[string]interface{}) error {
	if id == 0 {
		return ErrUserNotFound
	}
	result := r.db.WithContext(ctx).Model(&domain.User{}).Where("id = ?", id).Updates(fields)
	if result.Error != nil {
		log.Printf("[UserRepository] Database error updating user ID %d: %v", id, result.Error)
		return errors.New("database error updating user")
	}
	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *gormUserRepository) handleFindError(err error, user *domain.User) (*domain.User, error) {
	if err == nil {
		return user, nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	log.Printf("[UserRepository] Database query error: %v", err)
	return nil, errors.New("database query failed")
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
