// File: internal/middleware/auth.go
package middleware

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"
)

// TokenValidator resolves a session token to a user id.
type TokenValidator interface {
	ValidateJWTToken(token string) (uint, error)
}

// NewJWTMiddleware requires a valid token from the auth_token cookie or a Bearer header.
// API callers get a 401 JSON body, browsers are redirected to /login.
func NewJWTMiddleware(validator TokenValidator, logger Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, fromCookie := tokenFromRequest(r)
			if token == "" {
				logger.Debug("missing auth token", "path", r.URL.Path)
				rejectUnauthenticated(w, r)
				return
			}

			userID, err := validator.ValidateJWTToken(token)
			if err != nil {
				logger.Warn("invalid auth token", "path", r.URL.Path, "error", err)
				if fromCookie {
					ClearAuthCookie(w)
				}
				rejectUnauthenticated(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}

// NewOptionalAuthMiddleware attaches the user id when a valid token is present and
// lets guests through otherwise.
func NewOptionalAuthMiddleware(validator TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token, _ := tokenFromRequest(r); token != "" {
				if userID, err := validator.ValidateJWTToken(token); err == nil {
					r = r.WithContext(WithUserID(r.Context(), userID))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func tokenFromRequest(r *http.Request) (token string, fromCookie bool) {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer ")), false
	}
	if cookie, err := r.Cookie(AuthCookieName); err == nil && cookie.Value != "" {
		return cookie.Value, true
	}
	return "", false
}

func rejectUnauthenticated(w http.ResponseWriter, r *http.Request) {
	if WantsJSON(r) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"error": "Authentication required"})
		return
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// SetAuthCookie stores a session token for the browser.
func SetAuthCookie(w http.ResponseWriter, token string, ttl time.Duration, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     AuthCookieName,
		Value:    token,
		Path:     "/",
		Expires:  time.Now().Add(ttl),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearAuthCookie expires the session cookie.
func ClearAuthCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     AuthCookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
