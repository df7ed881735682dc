// File: internal/services/chat/prompt.go
package chat

import (
	"strings"
	"text/template"
	"time"

	"github.com/iyunix/go-chatrelay/internal/domain"
)

const guestName = "Guest"

const promptTimeLayout = "Monday, January 2, 2006 15:04 MST"

var systemPromptTemplate = template.Must(template.New("system").Parse(
	`You are a chat assistant. The current date and time is {{.Now}}.
You are currently being used by {{.UserName}}.
{{- if .AboutYou}}

About the user:
{{.AboutYou}}
{{- end}}
{{- if .AssistantBehavior}}

Desired assistant behavior:
{{.AssistantBehavior}}
{{- end}}
{{- if .Commands}}

Available custom commands:
{{- range .Commands}}
- {{.Command}}: {{.Description}}
{{- end}}
When the user sends one of these commands, carry out the action described for it.
{{- end}}
`))

type promptData struct {
	Now               string
	UserName          string
	AboutYou          string
	AssistantBehavior string
	Commands          []domain.CustomCommand
}

// RenderSystemPrompt is the system message text for user at now. A nil user renders the guest prompt.
func RenderSystemPrompt(now time.Time, user *domain.User) (string, error) {
	data := promptData{
		Now:      now.Format(promptTimeLayout),
		UserName: guestName,
	}
	if user != nil {
		if name := strings.TrimSpace(user.Name); name != "" {
			data.UserName = name
		}
		data.AboutYou = strings.TrimSpace(user.AboutYou)
		data.AssistantBehavior = strings.TrimSpace(user.AssistantBehavior)
		data.Commands = user.Commands()
	}

	var b strings.Builder
	if err := systemPromptTemplate.Execute(&b, data); err != nil {
		return "", err
	}
	return strings.TrimSpace(b.String()), nil
}

// PromptComposer renders the system message with its own clock and time zone.
type PromptComposer struct {
	location *time.Location
	now      func() time.Time
}

func NewPromptComposer(location *time.Location) *PromptComposer {
	if location == nil {
		location = time.Local
	}
	return &PromptComposer{location: location, now: time.Now}
}

// SystemMessage is recomputed on every call and never stored.
func (c *PromptComposer) SystemMessage(user *domain.User) (domain.ChatMessage, error) {
	content, err := RenderSystemPrompt(c.now().In(c.location), user)
	if err != nil {
		return domain.ChatMessage{}, err
	}
	return domain.ChatMessage{Role: domain.RoleSystem, Content: content}, nil
}
