// File: internal/handlers/routes.go
package handlers

import (
	"net/http"
	"slices"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/iyunix/go-chatrelay/internal/middleware"
	"github.com/iyunix/go-chatrelay/internal/ratelimit"
)

// RouterDeps are the collaborators of the HTTP surface.
type RouterDeps struct {
	Chat         *ChatHandler
	Auth         *AuthHandler
	Instructions *InstructionsHandler
	Logs         *LogHandler
	Tokens       middleware.TokenValidator
	TurnLimiter  *ratelimit.Limiter
	AuthLimiter  *ratelimit.Limiter
	CORSOrigins  []string
	Logger       Logger
}

// NewRouter registers every route and wraps the router with CORS.
func NewRouter(d RouterDeps) http.Handler {
	r := mux.NewRouter()
	r.Use(middleware.RecoverPanic(d.Logger))
	r.Use(middleware.RequestLogger(d.Logger))

	requireAuth := middleware.NewJWTMiddleware(d.Tokens, d.Logger)
	optionalAuth := middleware.NewOptionalAuthMiddleware(d.Tokens)
	limitTurns := middleware.RateLimitMiddleware(d.TurnLimiter, "turns", middleware.ByUser, d.Logger)
	limitAuth := middleware.RateLimitMiddleware(d.AuthLimiter, "auth", middleware.ByIP, d.Logger)

	// --- Public Routes ---
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}).Methods(http.MethodGet)
	r.Handle("/register", limitAuth(http.HandlerFunc(d.Auth.Register))).Methods(http.MethodPost)
	r.Handle("/login", limitAuth(http.HandlerFunc(d.Auth.Login))).Methods(http.MethodPost)
	r.HandleFunc("/logout", d.Auth.Logout).Methods(http.MethodPost)
	r.Handle("/api/log", optionalAuth(http.HandlerFunc(d.Logs.LogFrontendEvent))).Methods(http.MethodPost)

	// Guests may browse models and ask one-off questions.
	guest := r.NewRoute().Subrouter()
	guest.Use(optionalAuth)
	guest.HandleFunc("/", d.Chat.ListModels).Methods(http.MethodGet)
	guest.HandleFunc("/models", d.Chat.ListModels).Methods(http.MethodGet)
	guest.Handle("/ask", limitTurns(http.HandlerFunc(d.Chat.Ask))).Methods(http.MethodPost)

	// --- Protected Routes ---
	protected := r.NewRoute().Subrouter()
	protected.Use(requireAuth)
	protected.HandleFunc("/me", d.Auth.Me).Methods(http.MethodGet)
	protected.HandleFunc("/custom-instructions", d.Instructions.Get).Methods(http.MethodGet)
	protected.HandleFunc("/custom-instructions", d.Instructions.Update).Methods(http.MethodPut, http.MethodPost)

	protected.HandleFunc("/conversations", d.Chat.ListConversations).Methods(http.MethodGet)
	protected.Handle("/conversations", limitTurns(http.HandlerFunc(d.Chat.CreateConversation))).Methods(http.MethodPost)
	protected.HandleFunc("/conversations", d.Chat.DeleteConversations).Methods(http.MethodDelete)
	protected.HandleFunc("/conversations/empty", d.Chat.CreateEmptyConversation).Methods(http.MethodPost)

	conv := protected.PathPrefix("/conversations/{id:[0-9]+}").Subrouter()
	conv.HandleFunc("", d.Chat.ShowConversation).Methods(http.MethodGet)
	conv.HandleFunc("", d.Chat.DeleteConversation).Methods(http.MethodDelete)
	conv.HandleFunc("/delete", d.Chat.DeleteConversation).Methods(http.MethodPost)
	conv.HandleFunc("/export", d.Chat.ExportConversation).Methods(http.MethodGet)
	conv.Handle("/messages", limitTurns(http.HandlerFunc(d.Chat.SendMessage))).Methods(http.MethodPost)
	conv.Handle("/stream", limitTurns(http.HandlerFunc(d.Chat.StreamMessage))).Methods(http.MethodGet, http.MethodPost)
	conv.HandleFunc("/update-model", d.Chat.UpdateModel).Methods(http.MethodPost)
	conv.Handle("/update-title", limitTurns(http.HandlerFunc(d.Chat.UpdateTitle))).Methods(http.MethodPost)
	conv.HandleFunc("/toggle-favorite", d.Chat.ToggleFavorite).Methods(http.MethodPost)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, "Not found", http.StatusNotFound)
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
	})

	return cors.New(cors.Options{
		AllowedOrigins:   d.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "Retry-After"},
		AllowCredentials: !slices.Contains(d.CORSOrigins, "*"),
		MaxAge:           86400,
	}).Handler(r)
}
