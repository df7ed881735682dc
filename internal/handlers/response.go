// File: internal/handlers/response.go
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/iyunix/go-chatrelay/internal/middleware"
	"github.com/iyunix/go-chatrelay/internal/services/chat"
	"github.com/iyunix/go-chatrelay/internal/services/user_services"
)

// Logger interface for HTTP handlers
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
	Debug(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
}

// FlashCookieName carries a one-shot error notice across a redirect.
const FlashCookieName = "flash_error"

const maxBodyBytes = 1 << 20

var errBadBody = errors.New("request body could not be parsed")

// writeJSON is a helper for sending JSON responses.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError is a helper for sending JSON error responses.
func writeError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}

// errorResponse maps service errors onto a status and a client-safe message.
func errorResponse(err error) (int, string, map[string]string) {
	var chatErr *chat.ChatError
	if errors.As(err, &chatErr) {
		switch chatErr.Type {
		case chat.ErrTypeValidation:
			return http.StatusBadRequest, chatErr.Message, chatErr.Fields
		case chat.ErrTypeUnauthorized:
			return http.StatusForbidden, "You do not have access to this conversation.", nil
		case chat.ErrTypeNotFound:
			return http.StatusNotFound, "Conversation not found.", nil
		case chat.ErrTypeProvider:
			return http.StatusBadGateway, "The assistant could not answer. Your message was saved, please try again.", nil
		case chat.ErrTypeBusy:
			return http.StatusConflict, "Another reply is still being generated for this conversation.", nil
		}
		return http.StatusInternalServerError, "Something went wrong. Please try again.", nil
	}

	var verr *user_services.ValidationError
	if errors.As(err, &verr) {
		return http.StatusBadRequest, "The submitted data is invalid.", verr.Fields
	}
	switch {
	case errors.Is(err, errBadBody):
		return http.StatusBadRequest, "Invalid request body.", nil
	case errors.Is(err, user_services.ErrInvalidCredentials):
		return http.StatusUnauthorized, "Invalid email or password.", nil
	case errors.Is(err, user_services.ErrEmailTaken):
		return http.StatusConflict, "An account with this email already exists.", nil
	}
	return http.StatusInternalServerError, "Something went wrong. Please try again.", nil
}

// fail answers API callers with a JSON error and browsers with a redirect carrying a flash notice.
func fail(w http.ResponseWriter, r *http.Request, logger Logger, err error, fallback string) {
	status, message, fields := errorResponse(err)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "path", r.URL.Path, "status", status, "error", err,
			"request_id", middleware.RequestIDFromContext(r.Context()))
	} else {
		logger.Debug("request rejected", "path", r.URL.Path, "status", status, "error", err)
	}

	if !middleware.WantsJSON(r) {
		setFlash(w, message)
		http.Redirect(w, r, backURL(r, fallback), http.StatusSeeOther)
		return
	}

	body := map[string]interface{}{"error": message}
	if len(fields) > 0 {
		body["fields"] = fields
	}
	writeJSON(w, status, body)
}

// respond writes data for API callers and redirects browsers to location.
func respond(w http.ResponseWriter, r *http.Request, status int, data interface{}, location string) {
	if middleware.WantsJSON(r) {
		writeJSON(w, status, data)
		return
	}
	http.Redirect(w, r, location, http.StatusSeeOther)
}

func setFlash(w http.ResponseWriter, message string) {
	http.SetCookie(w, &http.Cookie{
		Name:     FlashCookieName,
		Value:    url.QueryEscape(message),
		Path:     "/",
		MaxAge:   60,
		Expires:  time.Now().Add(time.Minute),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// backURL returns the local path of the Referer, or fallback. Foreign hosts are ignored.
func backURL(r *http.Request, fallback string) string {
	ref := r.Header.Get("Referer")
	if ref == "" {
		return fallback
	}
	u, err := url.Parse(ref)
	if err != nil || (u.Host != "" && u.Host != r.Host) || u.Path == "" {
		return fallback
	}
	if u.RawQuery != "" {
		return u.Path + "?" + u.RawQuery
	}
	return u.Path
}

func conversationPath(id uint) string {
	return fmt.Sprintf("/conversations/%d", id)
}

// pathID parses the {id} route variable.
func pathID(r *http.Request) (uint, error) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 32)
	if err != nil || id == 0 {
		return 0, chat.NewNotFoundError("route", 0)
	}
	return uint(id), nil
}

func isJSONBody(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mt == "application/json"
}

// decodeBody reads a JSON body into dst. Form and query callers use formValues instead.
func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", errBadBody, err)
	}
	return nil
}

// decodeTurnInput accepts a JSON body, a form body or query parameters.
func decodeTurnInput(w http.ResponseWriter, r *http.Request) (chat.TurnInput, error) {
	var in chat.TurnInput
	if isJSONBody(r) {
		err := decodeBody(w, r, &in)
		return in, err
	}
	in.Message = r.FormValue("message")
	in.Model = r.FormValue("model")
	return in, nil
}
