// Package openaicompat implements the completion client against any
// OpenAI-compatible chat completions endpoint. Useful for self-hosted
// gateways and for providers that expose the standard wire format.
package openaicompat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/personabot/personabot/llm"
	"github.com/personabot/personabot/llm/providers"
	"github.com/personabot/personabot/types"
)

// Config holds the configuration for an OpenAI-compatible provider.
type Config struct {
	// ProviderName is the unique identifier reported in errors and logs.
	ProviderName string

	// APIKey is the bearer token for the API.
	APIKey string

	// BaseURL is the base URL for the API (e.g. "https://api.openai.com").
	BaseURL string

	// Model is the model sent with every request.
	Model string

	// Temperature is the sampling temperature, fixed at construction.
	Temperature float32

	// MaxTokens caps the generated completion length.
	MaxTokens int

	// Timeout is the HTTP client timeout. Defaults to 30s if zero.
	Timeout time.Duration

	// EndpointPath is the chat completions path. Defaults to
	// "/v1/chat/completions".
	EndpointPath string
}

// Provider is the OpenAI-compatible completion adapter.
type Provider struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger
}

// New creates an OpenAI-compatible provider with the given config.
func New(cfg Config, logger *zap.Logger) *Provider {
	if cfg.ProviderName == "" {
		cfg.ProviderName = "openai-compat"
	}
	if cfg.EndpointPath == "" {
		cfg.EndpointPath = "/v1/chat/completions"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provider{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger.With(zap.String("provider", cfg.ProviderName)),
	}
}

// Name returns the provider name.
func (p *Provider) Name() string { return p.cfg.ProviderName }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float32       `json:"temperature,omitempty"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index        int         `json:"index"`
		FinishReason string      `json:"finish_reason"`
		Message      chatMessage `json:"message"`
	} `json:"choices"`
}

// Generate sends the history to the chat completions endpoint and
// returns the first choice's content verbatim.
func (p *Provider) Generate(ctx context.Context, history []types.Turn, extraSystemLine string) (string, error) {
	if err := llm.ValidateHistory(history); err != nil {
		return "", err
	}

	messages := make([]chatMessage, 0, len(history)+1)
	for _, turn := range history {
		messages = append(messages, chatMessage{Role: string(turn.Role), Content: turn.Text})
	}
	if extraSystemLine != "" {
		messages = append(messages, chatMessage{Role: string(types.RoleSystem), Content: extraSystemLine})
	}

	body := chatRequest{
		Model:       p.cfg.Model,
		Messages:    messages,
		MaxTokens:   p.cfg.MaxTokens,
		Temperature: p.cfg.Temperature,
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := strings.TrimRight(p.cfg.BaseURL, "/") + p.cfg.EndpointPath
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return "", llm.UpstreamFailure(p.Name(), &llm.Error{
			Code: llm.ErrUpstreamError, Message: err.Error(),
			HTTPStatus: http.StatusBadGateway, Retryable: true, Provider: p.Name(),
		})
	}
	defer providers.SafeCloseBody(resp.Body)

	if resp.StatusCode >= 400 {
		msg := providers.ReadErrorMessage(resp.Body)
		return "", llm.UpstreamFailure(p.Name(), providers.MapHTTPError(resp.StatusCode, msg, p.Name()))
	}

	var result chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", llm.UpstreamFailure(p.Name(), &llm.Error{
			Code: llm.ErrUpstreamError, Message: err.Error(),
			HTTPStatus: http.StatusBadGateway, Retryable: true, Provider: p.Name(),
		})
	}

	if len(result.Choices) == 0 {
		return "", llm.UpstreamFailure(p.Name(), &llm.Error{
			Code: llm.ErrUpstreamError, Message: "response contains no choices",
			HTTPStatus: http.StatusBadGateway, Provider: p.Name(),
		})
	}

	p.logger.Debug("completion generated",
		zap.String("response_id", result.ID),
		zap.Int("history_len", len(messages)),
	)
	return result.Choices[0].Message.Content, nil
}
