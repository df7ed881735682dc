// File: internal/domain/conversation.go
package domain

import (
	"time"
	"unicode/utf8"
)

const (
	// DefaultConversationTitle is used for conversations created without a first message.
	DefaultConversationTitle = "New conversation"

	initialTitleLength = 50
	// MaxTitleLength bounds generated titles.
	MaxTitleLength = 100
)

// Conversation is a single chat thread owned by exactly one user.
type Conversation struct {
	ID             uint      `json:"id" gorm:"primarykey"`
	UserID         uint      `json:"user_id" gorm:"not null;index"`
	Title          string    `json:"title" gorm:"size:255"`
	Model          string    `json:"model" gorm:"size:255"`
	LastActivityAt time.Time `json:"last_activity_at" gorm:"index"`
	IsFavorite     bool      `json:"is_favorite" gorm:"not null;default:false"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`

	Messages []Message `json:"messages,omitempty" gorm:"constraint:OnDelete:CASCADE"`
}

// OwnedBy reports whether userID owns the conversation.
func (c *Conversation) OwnedBy(userID uint) bool {
	return c != nil && userID != 0 && c.UserID == userID
}

// InitialTitle derives a title from the first user message:
// the first 50 characters, with "..." appended when the message was longer.
func InitialTitle(message string) string {
	if utf8.RuneCountInString(message) <= initialTitleLength {
		return message
	}
	return Truncate(message, initialTitleLength) + "..."
}

// Truncate cuts s to at most n characters without splitting a rune.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
