// File: internal/services/user_services/instructions_service.go
package user_services

import (
	"context"
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/iyunix/go-chatrelay/internal/domain"
	"github.com/iyunix/go-chatrelay/internal/repository/user"
)

const (
	maxInstructionLength  = 2000
	maxCommandNameLength  = 50
	maxCommandTokenLength = 20
	maxDescriptionLength  = 200
)

var commandPattern = regexp.MustCompile(`^/[a-zA-Z0-9_-]+$`)

// CommandInput is one custom command as submitted by the settings form.
type CommandInput struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
}

func (c CommandInput) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Name, validation.Required, validation.RuneLength(1, maxCommandNameLength)),
		validation.Field(&c.Command, validation.Required, validation.RuneLength(2, maxCommandTokenLength),
			validation.Match(commandPattern).Error("must start with / followed by letters, digits, _ or -")),
		validation.Field(&c.Description, validation.Required, validation.RuneLength(1, maxDescriptionLength)),
	)
}

// InstructionsInput is the full custom-instructions form. It replaces the stored settings.
type InstructionsInput struct {
	AboutYou          string         `json:"about_you"`
	AssistantBehavior string         `json:"assistant_behavior"`
	CustomCommands    []CommandInput `json:"custom_commands"`
}

func (in InstructionsInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.AboutYou, validation.RuneLength(0, maxInstructionLength)),
		validation.Field(&in.AssistantBehavior, validation.RuneLength(0, maxInstructionLength)),
		validation.Field(&in.CustomCommands),
	)
}

// InstructionsService manages the user-editable parts of the system prompt.
type InstructionsService struct {
	userRepo user.UserRepository
	logger   Logger
}

func NewInstructionsService(userRepo user.UserRepository, logger Logger) *InstructionsService {
	return &InstructionsService{userRepo: userRepo, logger: logger}
}

func (s *InstructionsService) Get(ctx context.Context, userID uint) (InstructionsInput, error) {
	u, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return InstructionsInput{}, err
	}
	out := InstructionsInput{
		AboutYou:          u.AboutYou,
		AssistantBehavior: u.AssistantBehavior,
		CustomCommands:    []CommandInput{},
	}
	for _, c := range u.Commands() {
		out.CustomCommands = append(out.CustomCommands, CommandInput(c))
	}
	return out, nil
}

func (s *InstructionsService) Update(ctx context.Context, userID uint, in InstructionsInput) (InstructionsInput, error) {
	in.AboutYou = strings.TrimSpace(in.AboutYou)
	in.AssistantBehavior = strings.TrimSpace(in.AssistantBehavior)
	for i := range in.CustomCommands {
		c := &in.CustomCommands[i]
		c.Name = strings.TrimSpace(c.Name)
		c.Command = strings.TrimSpace(c.Command)
		c.Description = strings.TrimSpace(c.Description)
	}

	if err := in.Validate(); err != nil {
		s.logger.Warn("custom instructions rejected", "user_id", userID)
		return InstructionsInput{}, newValidationError("update_instructions", err)
	}

	commands := make([]domain.CustomCommand, 0, len(in.CustomCommands))
	for _, c := range in.CustomCommands {
		commands = append(commands, domain.CustomCommand(c))
	}
	if err := s.userRepo.UpdateInstructions(ctx, userID, user.Instructions{
		AboutYou:          in.AboutYou,
		AssistantBehavior: in.AssistantBehavior,
		CustomCommands:    commands,
	}); err != nil {
		return InstructionsInput{}, err
	}

	s.logger.Info("custom instructions updated", "user_id", userID, "commands", len(commands))
	if in.CustomCommands == nil {
		in.CustomCommands = []CommandInput{}
	}
	return in, nil
}
