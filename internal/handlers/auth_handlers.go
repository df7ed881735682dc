// File: internal/handlers/auth_handlers.go
package handlers

import (
	"net/http"

	"github.com/iyunix/go-chatrelay/internal/auth"
	"github.com/iyunix/go-chatrelay/internal/dtos"
	"github.com/iyunix/go-chatrelay/internal/middleware"
	"github.com/iyunix/go-chatrelay/internal/services/user_services"
)

// AuthHandler holds the dependencies for authentication handlers.
type AuthHandler struct {
	AuthService  *user_services.AuthService
	secureCookie bool
	logger       Logger
}

// NewAuthHandler creates a new AuthHandler. secureCookie should be true behind HTTPS.
func NewAuthHandler(service *user_services.AuthService, secureCookie bool, logger Logger) *AuthHandler {
	return &AuthHandler{AuthService: service, secureCookie: secureCookie, logger: logger}
}

// Register creates an account and signs it in.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var in user_services.RegisterInput
	if isJSONBody(r) {
		if err := decodeBody(w, r, &in); err != nil {
			fail(w, r, h.logger, err, "/register")
			return
		}
	} else {
		in = user_services.RegisterInput{
			Name:     r.FormValue("name"),
			Email:    r.FormValue("email"),
			Password: r.FormValue("password"),
		}
	}

	u, token, err := h.AuthService.Register(r.Context(), in)
	if err != nil {
		fail(w, r, h.logger, err, "/register")
		return
	}

	middleware.SetAuthCookie(w, token, auth.TokenTTL, h.secureCookie)
	respond(w, r, http.StatusCreated, dtos.NewLoginResponse(*u, token), "/")
}

// Login handles user login and sets the session cookie.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if isJSONBody(r) {
		if err := decodeBody(w, r, &req); err != nil {
			fail(w, r, h.logger, err, "/login")
			return
		}
	} else {
		req.Email = r.FormValue("email")
		req.Password = r.FormValue("password")
	}

	u, token, err := h.AuthService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		fail(w, r, h.logger, err, "/login")
		return
	}

	middleware.SetAuthCookie(w, token, auth.TokenTTL, h.secureCookie)
	respond(w, r, http.StatusOK, dtos.NewLoginResponse(*u, token), "/")
}

// Logout clears the session cookie.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	middleware.ClearAuthCookie(w)
	respond(w, r, http.StatusOK, map[string]interface{}{"success": true}, "/login")
}

// Me returns the signed-in user.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	u, err := h.AuthService.CurrentUser(r.Context(), middleware.UserIDFromContext(r.Context()))
	if err != nil {
		writeError(w, "Authentication required", http.StatusUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, dtos.FromDomain(*u))
}
