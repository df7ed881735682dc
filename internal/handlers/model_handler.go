// File: internal/handlers/model_handler.go
package handlers

import (
	"net/http"

	"github.com/iyunix/go-chatrelay/internal/middleware"
)

// ListModels returns the catalog and the model preselected for the caller.
func (h *ChatHandler) ListModels(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	models, selected, err := h.ChatService.AvailableModels(r.Context(), userID)
	if err != nil {
		fail(w, r, h.logger, err, "/")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"models":         models,
		"selected_model": selected,
	})
}

// Ask answers one message without storing anything. Guests are allowed.
func (h *ChatHandler) Ask(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	in, err := decodeTurnInput(w, r)
	if err != nil {
		writeError(w, "Invalid request body.", http.StatusBadRequest)
		return
	}

	reply, model, err := h.ChatService.Ask(r.Context(), userID, in)
	if err != nil {
		status, message, fields := errorResponse(err)
		if status >= http.StatusInternalServerError {
			h.logger.Error("ask failed", "user_id", userID, "error", err)
		}
		body := map[string]interface{}{"error": message}
		if len(fields) > 0 {
			body["fields"] = fields
		}
		writeJSON(w, status, body)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"reply": reply, "model": model})
}
