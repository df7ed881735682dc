// File: cmd/diagnostic/llm_diagnostic.go
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/iyunix/go-chatrelay/internal/config"
	"github.com/iyunix/go-chatrelay/internal/domain"
	"github.com/iyunix/go-chatrelay/internal/services"
	"github.com/iyunix/go-chatrelay/internal/services/ai"
)

// Checks provider connectivity: model catalog, one completion and one short stream.
func main() {
	cfg := config.Load()
	if cfg.ProviderAPIKey == "" {
		log.Fatal("OPENROUTER_API_KEY not set in environment")
	}
	logger := services.NewSlogLogger(os.Stderr, cfg.Environment, "DEBUG")

	aiConfig := ai.DefaultConfig()
	aiConfig.APIKey = cfg.ProviderAPIKey
	aiConfig.BaseURL = cfg.ProviderBaseURL
	aiConfig.AppURL = cfg.ProviderAppURL
	aiConfig.AppTitle = cfg.ProviderAppTitle
	aiConfig.Timeout = 60 * time.Second

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	fmt.Printf("Provider: %s\n", aiConfig.BaseURL)

	catalog := ai.NewCatalog(ai.NewHTTPModelLister(aiConfig), cache.New(time.Minute, time.Minute), time.Minute, cfg.DefaultModel, logger)
	models, err := catalog.Refresh(ctx)
	if err != nil {
		log.Fatalf("Model catalog failed: %v", err)
	}
	fmt.Printf("Catalog: %d models\n", len(models))

	model, known := catalog.Resolve(ctx, cfg.DefaultModel)
	if !known {
		fmt.Printf("Warning: DEFAULT_MODEL %q is not in the catalog\n", cfg.DefaultModel)
	}

	provider := ai.NewOpenAIProvider(aiConfig)
	req := ai.CompletionRequest{
		Model: model,
		Messages: []domain.ChatMessage{
			{Role: domain.RoleSystem, Content: "You are a connectivity check. Answer in one short sentence."},
			{Role: domain.RoleUser, Content: "What is the answer to life, the universe and everything?"},
		},
		Temperature: aiConfig.Temperature,
	}

	start := time.Now()
	reply, err := provider.Complete(ctx, req)
	if err != nil {
		log.Fatalf("Chat completion failed: %v", err)
	}
	fmt.Printf("Completion (%s, %v): %s\n", model, time.Since(start).Round(time.Millisecond), strings.TrimSpace(reply))

	stream, err := provider.Stream(ctx, req)
	if err != nil {
		log.Fatalf("Stream open failed: %v", err)
	}
	defer stream.Close()

	fragments := 0
	var text strings.Builder
	for {
		fragment, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			log.Fatalf("Stream interrupted after %d fragments: %v", fragments, err)
		}
		fragments++
		text.WriteString(fragment)
	}
	fmt.Printf("Stream: %d fragments, %d bytes\n", fragments, text.Len())
}
