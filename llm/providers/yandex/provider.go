// Package yandex implements the completion client against the
// YandexGPT foundation models API.
package yandex

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

const providerName = "yandexgpt"

// Config holds the configuration for the YandexGPT provider.
type Config struct {
	// APIKey is the service account API key.
	APIKey string

	// FolderID is the Yandex Cloud folder the model is billed to.
	FolderID string

	// BaseURL overrides the API endpoint. Defaults to the public
	// foundation models endpoint; tests point it at a local server.
	BaseURL string

	// Model is the model name inside the folder. Defaults to "yandexgpt".
	Model string

	// Temperature is the sampling temperature, fixed at construction.
	Temperature float32

	// MaxTokens caps the generated completion length.
	MaxTokens int

	// Timeout is the HTTP client timeout. Defaults to 30s if zero.
	Timeout time.Duration
}

// Provider is the YandexGPT completion adapter.
type Provider struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger
}

// New creates a YandexGPT provider with the given config.
func New(cfg Config, logger *zap.Logger) *Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://llm.api.cloud.yandex.net"
	}
	if cfg.Model == "" {
		cfg.Model = "yandexgpt"
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
		logger: logger.With(zap.String("provider", providerName)),
	}
}

// Name returns the provider name.
func (p *Provider) Name() string { return providerName }

type completionMessage struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

type completionOptions struct {
	Stream      bool    `json:"stream"`
	Temperature float32 `json:"temperature"`
	MaxTokens   string  `json:"maxTokens,omitempty"`
}

type completionRequest struct {
	ModelURI          string              `json:"modelUri"`
	CompletionOptions completionOptions   `json:"completionOptions"`
	Messages          []completionMessage `json:"messages"`
}

type completionResponse struct {
	Result struct {
		Alternatives []struct {
			Message completionMessage `json:"message"`
			Status  string            `json:"status"`
		} `json:"alternatives"`
		ModelVersion string `json:"modelVersion"`
	} `json:"result"`
}

// Generate sends the history to YandexGPT and returns the first
// alternative's text verbatim. No trimming or post-processing.
func (p *Provider) Generate(ctx context.Context, history []types.Turn, extraSystemLine string) (string, error) {
	if err := llm.ValidateHistory(history); err != nil {
		return "", err
	}

	messages := make([]completionMessage, 0, len(history)+1)
	for _, turn := range history {
		messages = append(messages, completionMessage{Role: string(turn.Role), Text: turn.Text})
	}
	if extraSystemLine != "" {
		messages = append(messages, completionMessage{Role: string(types.RoleSystem), Text: extraSystemLine})
	}

	body := completionRequest{
		ModelURI: fmt.Sprintf("gpt://%s/%s", p.cfg.FolderID, p.cfg.Model),
		CompletionOptions: completionOptions{
			Temperature: p.cfg.Temperature,
		},
		Messages: messages,
	}
	if p.cfg.MaxTokens > 0 {
		body.CompletionOptions.MaxTokens = fmt.Sprintf("%d", p.cfg.MaxTokens)
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := strings.TrimRight(p.cfg.BaseURL, "/") + "/foundationModels/v1/completion"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Api-Key "+p.cfg.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")
	if p.cfg.FolderID != "" {
		httpReq.Header.Set("x-folder-id", p.cfg.FolderID)
	}

	start := time.Now()
	resp, err := p.client.Do(httpReq)
	if err != nil {
		return "", llm.UpstreamFailure(providerName, &llm.Error{
			Code: llm.ErrUpstreamError, Message: err.Error(),
			HTTPStatus: http.StatusBadGateway, Retryable: true, Provider: providerName,
		})
	}
	defer providers.SafeCloseBody(resp.Body)

	if resp.StatusCode >= 400 {
		msg := providers.ReadErrorMessage(resp.Body)
		return "", llm.UpstreamFailure(providerName, providers.MapHTTPError(resp.StatusCode, msg, providerName))
	}

	var result completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", llm.UpstreamFailure(providerName, &llm.Error{
			Code: llm.ErrUpstreamError, Message: err.Error(),
			HTTPStatus: http.StatusBadGateway, Retryable: true, Provider: providerName,
		})
	}

	if len(result.Result.Alternatives) == 0 {
		return "", llm.UpstreamFailure(providerName, &llm.Error{
			Code: llm.ErrUpstreamError, Message: "response contains no alternatives",
			HTTPStatus: http.StatusBadGateway, Provider: providerName,
		})
	}

	p.logger.Debug("completion generated",
		zap.Int("history_len", len(messages)),
		zap.String("model_version", result.Result.ModelVersion),
		zap.Duration("latency", time.Since(start)),
	)
	return result.Result.Alternatives[0].Message.Text, nil
}
