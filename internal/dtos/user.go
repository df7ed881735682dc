// File: internal/dtos/user.go
package dtos

import (
	"time"

	"github.com/iyunix/go-chatrelay/internal/domain"
)

// UserResponseDTO defines what fields to expose in user API responses.
// The password hash and the custom instructions stay server side.
type UserResponseDTO struct {
	ID             uint   `json:"id"`
	Name           string `json:"name"`
	Email          string `json:"email"`
	PreferredModel string `json:"preferred_model,omitempty"`
	CommandCount   int    `json:"command_count"`
	CreatedAt      string `json:"created_at"`
	UpdatedAt      string `json:"updated_at"`
}

// UserLoginResponseDTO represents the login and registration response.
type UserLoginResponseDTO struct {
	User  UserResponseDTO `json:"user"`
	Token string          `json:"token"`
}

// FromDomain maps a domain.User to UserResponseDTO for public API responses.
func FromDomain(user domain.User) UserResponseDTO {
	return UserResponseDTO{
		ID:             user.ID,
		Name:           user.Name,
		Email:          user.Email,
		PreferredModel: user.PreferredModel,
		CommandCount:   len(user.Commands()),
		CreatedAt:      user.CreatedAt.Format(time.RFC3339),
		UpdatedAt:      user.UpdatedAt.Format(time.RFC3339),
	}
}

func NewLoginResponse(user domain.User, token string) UserLoginResponseDTO {
	return UserLoginResponseDTO{User: FromDomain(user), Token: token}
}
