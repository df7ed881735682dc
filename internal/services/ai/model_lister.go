// File: internal/services/ai/model_lister.go
package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const modelListTimeout = 15 * time.Second

// HTTPModelLister reads GET {base}/models. The OpenRouter listing carries
// context length, completion limits and pricing, which the generic OpenAI
// model list type does not expose.
type HTTPModelLister struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewHTTPModelLister(config *Config) *HTTPModelLister {
	return &HTTPModelLister{
		baseURL: strings.TrimRight(config.BaseURL, "/"),
		apiKey:  config.APIKey,
		client: &http.Client{
			Timeout: modelListTimeout,
			Transport: &attributionTransport{
				base:     http.DefaultTransport,
				appURL:   config.AppURL,
				appTitle: config.AppTitle,
			},
		},
	}
}

type modelListResponse struct {
	Data []struct {
		ID            string `json:"id"`
		Name          string `json:"name"`
		ContextLength int    `json:"context_length"`
		TopProvider   struct {
			MaxCompletionTokens *int `json:"max_completion_tokens"`
		} `json:"top_provider"`
		Pricing struct {
			Prompt     string `json:"prompt"`
			Completion string `json:"completion"`
		} `json:"pricing"`
	} `json:"data"`
}

func (l *HTTPModelLister) ListModels(ctx context.Context) ([]Model, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.baseURL+"/models", nil)
	if err != nil {
		return nil, &AIError{Type: ErrTypeConfig, Operation: "list_models", Message: "invalid models URL", Cause: err}
	}
	if l.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+l.apiKey)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, &AIError{Type: ErrTypeNetwork, Operation: "list_models", Message: "models request failed", Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &AIError{
			Type:      ErrTypeProvider,
			Code:      resp.StatusCode,
			Operation: "list_models",
			Message:   fmt.Sprintf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))),
		}
	}

	var payload modelListResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, &AIError{Type: ErrTypeProvider, Operation: "list_models", Message: "malformed models payload", Cause: err}
	}

	models := make([]Model, 0, len(payload.Data))
	for _, d := range payload.Data {
		if d.ID == "" {
			continue
		}
		m := Model{
			ID:            d.ID,
			Name:          d.Name,
			ContextLength: d.ContextLength,
			Pricing:       Pricing{Prompt: d.Pricing.Prompt, Completion: d.Pricing.Completion},
		}
		if m.Name == "" {
			m.Name = d.ID
		}
		if d.TopProvider.MaxCompletionTokens != nil {
			m.MaxCompletionTokens = *d.TopProvider.MaxCompletionTokens
		}
		models = append(models, m)
	}
	return models, nil
}
