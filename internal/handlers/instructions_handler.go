// File: internal/handlers/instructions_handler.go
package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/iyunix/go-chatrelay/internal/middleware"
	"github.com/iyunix/go-chatrelay/internal/services/user_services"
)

const instructionsPath = "/custom-instructions"

type InstructionsHandler struct {
	service *user_services.InstructionsService
	logger  Logger
}

func NewInstructionsHandler(service *user_services.InstructionsService, logger Logger) *InstructionsHandler {
	return &InstructionsHandler{service: service, logger: logger}
}

func (h *InstructionsHandler) Get(w http.ResponseWriter, r *http.Request) {
	in, err := h.service.Get(r.Context(), middleware.UserIDFromContext(r.Context()))
	if err != nil {
		fail(w, r, h.logger, err, "/")
		return
	}
	writeJSON(w, http.StatusOK, in)
}

// Update replaces the user's custom instructions. Browsers post custom_commands
// as a JSON-encoded form field.
func (h *InstructionsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var in user_services.InstructionsInput
	if isJSONBody(r) {
		if err := decodeBody(w, r, &in); err != nil {
			fail(w, r, h.logger, err, instructionsPath)
			return
		}
	} else {
		in.AboutYou = r.FormValue("about_you")
		in.AssistantBehavior = r.FormValue("assistant_behavior")
		if raw := r.FormValue("custom_commands"); raw != "" {
			if err := json.Unmarshal([]byte(raw), &in.CustomCommands); err != nil {
				fail(w, r, h.logger, fmt.Errorf("%w: custom_commands: %v", errBadBody, err), instructionsPath)
				return
			}
		}
	}

	saved, err := h.service.Update(r.Context(), middleware.UserIDFromContext(r.Context()), in)
	if err != nil {
		fail(w, r, h.logger, err, instructionsPath)
		return
	}
	respond(w, r, http.StatusOK, map[string]interface{}{"success": true, "instructions": saved}, instructionsPath)
}
