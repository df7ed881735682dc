// File: cmd/server/main.go
package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/patrickmn/go-cache"
	"gorm.io/gorm/logger"

	"github.com/iyunix/go-chatrelay/internal/config"
	"github.com/iyunix/go-chatrelay/internal/database"
	"github.com/iyunix/go-chatrelay/internal/handlers"
	"github.com/iyunix/go-chatrelay/internal/ratelimit"
	"github.com/iyunix/go-chatrelay/internal/repository/conversation"
	"github.com/iyunix/go-chatrelay/internal/repository/message"
	"github.com/iyunix/go-chatrelay/internal/repository/user"
	"github.com/iyunix/go-chatrelay/internal/services"
	"github.com/iyunix/go-chatrelay/internal/services/ai"
	"github.com/iyunix/go-chatrelay/internal/services/chat"
	"github.com/iyunix/go-chatrelay/internal/services/user_services"
)

func main() {
	cfg := config.Load()

	appLogger := services.NewSlogLogger(os.Stdout, cfg.Environment, cfg.LogLevel)
	slog.SetDefault(appLogger)

	dbLogLevel := logger.Warn
	if cfg.IsProduction() {
		dbLogLevel = logger.Error
	}
	db, err := database.Open(cfg.DBDriver, cfg.DBDSN, dbLogLevel)
	if err != nil {
		log.Fatalf("DB Error: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("DB Migration Error: %v", err)
	}

	// --- Repositories ---
	userRepo := user.NewGormUserRepository(db)
	conversationRepo := conversation.NewConversationRepository(db)
	messageRepo := message.NewMessageRepository(db)

	// --- Provider & model catalog ---
	aiConfig := ai.DefaultConfig()
	aiConfig.APIKey = cfg.ProviderAPIKey
	aiConfig.BaseURL = cfg.ProviderBaseURL
	aiConfig.AppURL = cfg.ProviderAppURL
	aiConfig.AppTitle = cfg.ProviderAppTitle
	aiConfig.Timeout = cfg.ProviderTimeout
	if err := aiConfig.Validate(); err != nil {
		log.Fatalf("FATAL: invalid provider configuration: %v", err)
	}
	aiLogger := appLogger.With("service", "ai")
	provider := ai.NewOpenAIProvider(aiConfig)
	catalog := ai.NewCatalog(
		ai.NewHTTPModelLister(aiConfig),
		cache.New(cfg.ModelCacheTTL, 2*cfg.ModelCacheTTL),
		cfg.ModelCacheTTL,
		cfg.DefaultModel,
		aiLogger,
	)

	// --- Services ---
	chatConfig := chat.DefaultConfig()
	chatConfig.ProviderTimeout = cfg.ProviderTimeout
	chatConfig.StreamTimeout = cfg.StreamTimeout
	chatConfig.HistoryLimit = cfg.ChatHistoryLimit
	chatService, err := chat.NewService(
		chatConfig,
		conversationRepo,
		messageRepo,
		userRepo,
		provider,
		catalog,
		chat.NewPromptComposer(cfg.Location()),
		appLogger.With("service", "chat"),
	)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize Chat Service: %v", err)
	}
	tokenCounter := ai.NewTiktokenCounter(aiLogger)
	chatService.SetTokenCounter(tokenCounter)

	userLogger := appLogger.With("service", "user")
	authService := user_services.NewAuthService(userRepo, cfg.JWTSecretKey, userLogger)
	instructionsService := user_services.NewInstructionsService(userRepo, userLogger)

	// --- Rate limiters ---
	turnLimits := ratelimit.DefaultTurnConfig()
	turnLimits.RPS = cfg.RateLimitRPS
	turnLimits.Burst = cfg.RateLimitBurst
	turnLimiter := ratelimit.New(turnLimits)
	defer turnLimiter.Close()
	authLimiter := ratelimit.New(ratelimit.DefaultAuthConfig())
	defer authLimiter.Close()

	// --- Handlers & router ---
	httpLogger := appLogger.With("service", "http")
	router := handlers.NewRouter(handlers.RouterDeps{
		Chat:         handlers.NewChatHandler(chatService, httpLogger),
		Auth:         handlers.NewAuthHandler(authService, cfg.IsProduction(), httpLogger),
		Instructions: handlers.NewInstructionsHandler(instructionsService, httpLogger),
		Logs:         handlers.NewLogHandler(httpLogger),
		Tokens:       authService,
		TurnLimiter:  turnLimiter,
		AuthLimiter:  authLimiter,
		CORSOrigins:  cfg.CORSOrigins,
		Logger:       httpLogger,
	})

	// Warm the catalog and the token encoding so the first turn does not wait on downloads.
	go func() {
		if err := tokenCounter.Warm(); err == nil {
			aiLogger.Debug("token encoding loaded")
		}
	}()
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if _, err := catalog.Refresh(ctx); err != nil {
			aiLogger.Warn("initial model catalog refresh failed", "error", err)
		}
	}()

	// --- Server Configuration ---
	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// Streams can run for minutes; the stream timeout bounds them instead.
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	appLogger.Info("server starting",
		"addr", srv.Addr,
		"env", cfg.Environment,
		"db_driver", cfg.DBDriver,
		"default_model", cfg.DefaultModel,
		"provider", cfg.ProviderBaseURL,
	)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server startup failed: %v", err)
		}
	}()

	// --- Graceful Shutdown ---
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	appLogger.Info("shutting down server gracefully")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Error("server shutdown failed", "error", err)
		return
	}
	appLogger.Info("server stopped gracefully")
}
