// File: internal/domain/message.go
package domain

import "time"

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single immutable entry in a conversation.
type Message struct {
	ID             uint      `json:"id" gorm:"primarykey"`
	ConversationID uint      `json:"conversation_id" gorm:"not null;index"`
	Role           string    `json:"role" gorm:"size:16;not null"`
	Content        string    `json:"content" gorm:"type:text;not null"`
	Tokens         *int      `json:"tokens,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// ChatMessage is the role/content pair sent to the provider.
// System messages only ever exist in this form; they are never stored.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ToChatMessages projects stored messages to provider messages, preserving order.
func ToChatMessages(messages []Message) []ChatMessage {
	out := make([]ChatMessage, 0, len(messages))
	for _, m := range messages {
		out = append(out, ChatMessage{Role: m.Role, Content: m.Content})
	}
	return out
}
