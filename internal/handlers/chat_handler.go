// File: internal/handlers/chat_handler.go
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/iyunix/go-chatrelay/internal/middleware"
	"github.com/iyunix/go-chatrelay/internal/services/chat"
)

const listPath = "/conversations"

type ChatHandler struct {
	ChatService *chat.Service
	logger      Logger
}

func NewChatHandler(cs *chat.Service, logger Logger) *ChatHandler {
	return &ChatHandler{ChatService: cs, logger: logger}
}

// ListConversations returns the user's conversations, favorites first.
// ?sidebar=true returns only the most recent few, ?limit=N caps the list.
func (h *ChatHandler) ListConversations(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())

	limit := 0
	if r.URL.Query().Get("sidebar") == "true" {
		limit = chat.SidebarSize
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, "limit must be a non-negative integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	convs, err := h.ChatService.ListConversations(r.Context(), userID, limit)
	if err != nil {
		fail(w, r, h.logger, err, "/")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"conversations": convs})
}

// CreateConversation starts a conversation with its first message.
func (h *ChatHandler) CreateConversation(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	in, err := decodeTurnInput(w, r)
	if err != nil {
		fail(w, r, h.logger, err, "/")
		return
	}

	result, err := h.ChatService.CreateConversation(r.Context(), userID, in)
	if err != nil {
		fail(w, r, h.logger, err, "/")
		return
	}
	respond(w, r, http.StatusCreated, result, conversationPath(result.Conversation.ID))
}

func (h *ChatHandler) CreateEmptyConversation(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	var req struct {
		Model string `json:"model"`
	}
	if isJSONBody(r) {
		if err := decodeBody(w, r, &req); err != nil {
			fail(w, r, h.logger, err, "/")
			return
		}
	} else {
		req.Model = r.FormValue("model")
	}

	conv, err := h.ChatService.CreateEmptyConversation(r.Context(), userID, req.Model)
	if err != nil {
		fail(w, r, h.logger, err, "/")
		return
	}
	respond(w, r, http.StatusCreated, map[string]interface{}{"success": true, "conversation": conv}, conversationPath(conv.ID))
}

// ShowConversation returns a conversation and its full message list.
func (h *ChatHandler) ShowConversation(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	id, err := pathID(r)
	if err != nil {
		fail(w, r, h.logger, err, listPath)
		return
	}

	conv, msgs, err := h.ChatService.GetConversation(r.Context(), userID, id)
	if err != nil {
		fail(w, r, h.logger, err, listPath)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"conversation": conv,
		"messages":     msgs,
	})
}

// SendMessage runs one non-streaming turn.
func (h *ChatHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	id, err := pathID(r)
	if err != nil {
		fail(w, r, h.logger, err, listPath)
		return
	}
	in, err := decodeTurnInput(w, r)
	if err != nil {
		fail(w, r, h.logger, err, conversationPath(id))
		return
	}

	result, err := h.ChatService.SendMessage(r.Context(), userID, id, in)
	if err != nil {
		fail(w, r, h.logger, err, conversationPath(id))
		return
	}
	respond(w, r, http.StatusOK, result, conversationPath(id))
}

// StreamMessage relays one turn as a raw text stream. Failures before the first
// byte get a normal error response; later failures just end the body.
func (h *ChatHandler) StreamMessage(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	id, err := pathID(r)
	if err != nil {
		fail(w, r, h.logger, err, listPath)
		return
	}
	in, err := decodeTurnInput(w, r)
	if err != nil {
		writeError(w, "Invalid request body.", http.StatusBadRequest)
		return
	}

	sw, err := newStreamWriter(w)
	if err != nil {
		h.logger.Error("streaming not supported", "error", err)
		writeError(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	stream, err := h.ChatService.OpenStream(r.Context(), userID, id, in)
	if err != nil {
		status, message, fields := errorResponse(err)
		if status >= http.StatusInternalServerError {
			h.logger.Error("stream could not start", "conversation_id", id, "status", status, "error", err)
		}
		body := map[string]interface{}{"error": message}
		if len(fields) > 0 {
			body["fields"] = fields
		}
		writeJSON(w, status, body)
		return
	}
	defer stream.Close()

	sw.Start()
	err = stream.Forward(sw.WriteFragment)
	switch {
	case err == nil:
		h.logger.Info("stream delivered", "conversation_id", id, "bytes", sw.written)
	case errors.Is(err, context.Canceled) || r.Context().Err() != nil:
		h.logger.Info("client left during stream", "conversation_id", id, "bytes", sw.written)
	case chat.IsProvider(err):
		h.logger.Warn("upstream stream ended early", "conversation_id", id, "bytes", sw.written, "error", err)
	default:
		h.logger.Warn("stream write failed", "conversation_id", id, "bytes", sw.written, "error", err)
	}
}

func (h *ChatHandler) UpdateModel(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	id, err := pathID(r)
	if err != nil {
		fail(w, r, h.logger, err, listPath)
		return
	}
	var req struct {
		Model string `json:"model"`
	}
	if isJSONBody(r) {
		if err := decodeBody(w, r, &req); err != nil {
			fail(w, r, h.logger, err, conversationPath(id))
			return
		}
	} else {
		req.Model = r.FormValue("model")
	}

	model, err := h.ChatService.UpdateModel(r.Context(), userID, id, req.Model)
	if err != nil {
		fail(w, r, h.logger, err, conversationPath(id))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "model": model})
}

// UpdateTitle regenerates the title from the given user message and the latest reply.
func (h *ChatHandler) UpdateTitle(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	id, err := pathID(r)
	if err != nil {
		fail(w, r, h.logger, err, listPath)
		return
	}
	var req struct {
		Message string `json:"message"`
	}
	if isJSONBody(r) {
		if err := decodeBody(w, r, &req); err != nil {
			fail(w, r, h.logger, err, conversationPath(id))
			return
		}
	} else {
		req.Message = r.FormValue("message")
	}

	conv, err := h.ChatService.RegenerateTitle(r.Context(), userID, id, req.Message)
	if err != nil {
		if chat.IsValidation(err) {
			var chatErr *chat.ChatError
			errors.As(err, &chatErr)
			writeJSON(w, http.StatusBadRequest, map[string]interface{}{"success": false, "message": chatErr.Message})
			return
		}
		fail(w, r, h.logger, err, conversationPath(id))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "conversation": conv})
}

func (h *ChatHandler) ToggleFavorite(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	id, err := pathID(r)
	if err != nil {
		fail(w, r, h.logger, err, listPath)
		return
	}

	favorite, err := h.ChatService.ToggleFavorite(r.Context(), userID, id)
	if err != nil {
		fail(w, r, h.logger, err, conversationPath(id))
		return
	}
	respond(w, r, http.StatusOK, map[string]interface{}{"success": true, "is_favorite": favorite},
		backURL(r, conversationPath(id)))
}

// DeleteConversation removes one conversation. Browsers coming from the list
// (from_page=list) go back to it, others start over at the home page.
func (h *ChatHandler) DeleteConversation(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	id, err := pathID(r)
	if err != nil {
		fail(w, r, h.logger, err, listPath)
		return
	}

	if err := h.ChatService.DeleteConversation(r.Context(), userID, id); err != nil {
		fail(w, r, h.logger, err, listPath)
		return
	}

	location := "/"
	if r.FormValue("from_page") == "list" {
		location = listPath
	}
	respond(w, r, http.StatusOK, map[string]interface{}{"success": true}, location)
}

// DeleteConversations removes every listed conversation or none of them.
func (h *ChatHandler) DeleteConversations(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	var req struct {
		ConversationIDs []uint `json:"conversation_ids"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"success": false, "message": "Invalid request body."})
		return
	}

	deleted, err := h.ChatService.DeleteConversations(r.Context(), userID, req.ConversationIDs)
	if err != nil {
		status, message, fields := errorResponse(err)
		if status >= http.StatusInternalServerError {
			h.logger.Error("bulk delete failed", "user_id", userID, "error", err)
		}
		body := map[string]interface{}{"success": false, "message": message}
		if len(fields) > 0 {
			body["fields"] = fields
		}
		writeJSON(w, status, body)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":       true,
		"message":       strconv.FormatInt(deleted, 10) + " conversation(s) deleted.",
		"deleted_count": deleted,
	})
}
