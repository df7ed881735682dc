// File: internal/domain/user.go
package domain

import (
	"errors"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/datatypes"
)

// CustomCommand is a user-defined slash command injected into the system prompt.
type CustomCommand struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
}

// User is the account that owns conversations. It also carries the
// preference state consumed by the system prompt composer.
type User struct {
	ID       uint   `json:"id" gorm:"primarykey"`
	Name     string `json:"name" gorm:"size:100;not null"`
	Email    string `json:"email" gorm:"size:255;uniqueIndex;not null"`
	Password string `json:"-" gorm:"not null"`

	PreferredModel    string                             `json:"preferred_model" gorm:"size:255"`
	AboutYou          string                             `json:"about_you" gorm:"type:text"`
	AssistantBehavior string                             `json:"assistant_behavior" gorm:"type:text"`
	CustomCommands    datatypes.JSONSlice[CustomCommand] `json:"custom_commands"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HashPassword securely hashes the user's password.
func (u *User) HashPassword(password string) error {
	if len(password) < 8 {
		return errors.New("password must be at least 8 characters")
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.Password = string(hashed)
	return nil
}

// ValidatePassword compares a plain-text password with the stored hash.
func (u *User) ValidatePassword(password string) error {
	return bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password))
}

func (u *User) IsValid() error {
	if len(strings.TrimSpace(u.Name)) < 2 {
		return errors.New("name must be at least 2 characters")
	}
	if !strings.Contains(u.Email, "@") {
		return errors.New("email is invalid")
	}
	return nil
}

// Commands returns the custom commands as a plain slice.
func (u *User) Commands() []CustomCommand {
	if u == nil {
		return nil
	}
	return []CustomCommand(u.CustomCommands)
}
