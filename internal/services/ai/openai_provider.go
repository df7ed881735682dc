// File: internal/services/ai/openai_provider.go
package ai

import (
	"context"
	"errors"
	"io"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIProvider talks to any OpenAI-compatible chat completion API.
type OpenAIProvider struct {
	config *Config
	client *openai.Client
}

func NewOpenAIProvider(config *Config) *OpenAIProvider {
	clientConfig := openai.DefaultConfig(config.APIKey)
	clientConfig.BaseURL = config.BaseURL
	clientConfig.HTTPClient = &http.Client{
		Transport: &attributionTransport{
			base:     http.DefaultTransport,
			appURL:   config.AppURL,
			appTitle: config.AppTitle,
		},
	}

	return &OpenAIProvider{
		config: config,
		client: openai.NewClientWithConfig(clientConfig),
	}
}

func (p *OpenAIProvider) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	resp, err := p.client.CreateChatCompletion(ctx, p.buildRequest(req))
	if err != nil {
		e := NewProviderError("completion", "failed to create completion", err)
		e.Model = req.Model
		return "", e
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", &AIError{
			Type:      ErrTypeProvider,
			Operation: "completion",
			Message:   "empty completion response",
			Model:     req.Model,
		}
	}

	return resp.Choices[0].Message.Content, nil
}

func (p *OpenAIProvider) Stream(ctx context.Context, req CompletionRequest) (ChatStream, error) {
	streamReq := p.buildRequest(req)
	streamReq.Stream = true

	stream, err := p.client.CreateChatCompletionStream(ctx, streamReq)
	if err != nil {
		e := NewProviderError("streaming", "failed to create stream", err)
		e.Model = req.Model
		return nil, e
	}
	return &openAIStream{stream: stream, model: req.Model}, nil
}

func (p *OpenAIProvider) buildRequest(req CompletionRequest) openai.ChatCompletionRequest {
	temperature := req.Temperature
	if temperature == 0 {
		temperature = p.config.Temperature
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	return openai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    messages,
		Temperature: temperature,
	}
}

type openAIStream struct {
	stream *openai.ChatCompletionStream
	model  string
}

func (s *openAIStream) Recv() (string, error) {
	response, err := s.stream.Recv()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return "", io.EOF
		}
		e := NewProviderError("streaming", "stream receive error", err)
		e.Model = s.model
		return "", e
	}
	if len(response.Choices) == 0 {
		return "", nil
	}
	return response.Choices[0].Delta.Content, nil
}

func (s *openAIStream) Close() error {
	return s.stream.Close()
}

// attributionTransport adds the HTTP-Referer and X-Title headers OpenRouter uses for app attribution.
type attributionTransport struct {
	base     http.RoundTripper
	appURL   string
	appTitle string
}

func (t *attributionTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.appURL == "" && t.appTitle == "" {
		return t.base.RoundTrip(req)
	}
	clone := req.Clone(req.Context())
	if t.appURL != "" {
		clone.Header.Set("HTTP-Referer", t.appURL)
	}
	if t.appTitle != "" {
		clone.Header.Set("X-Title", t.appTitle)
	}
	return t.base.RoundTrip(clone)
}
