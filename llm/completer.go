// Package llm defines the completion client contract and the transport
// level error type shared by all provider adapters.
package llm

import (
	"context"

	"github.com/personabot/personabot/types"
)

// Transport-level error codes, aligned with HTTP status, retryability
// and degradation policy.
type ErrorCode string

const (
	ErrInvalidRequest  ErrorCode = "LLM_INVALID_REQUEST"
	ErrUnauthorized    ErrorCode = "LLM_UNAUTHORIZED"
	ErrForbidden       ErrorCode = "LLM_FORBIDDEN"
	ErrRateLimited     ErrorCode = "LLM_RATE_LIMITED"
	ErrQuotaExceeded   ErrorCode = "LLM_QUOTA_EXCEEDED"
	ErrModelOverloaded ErrorCode = "LLM_MODEL_OVERLOADED"
	ErrUpstreamTimeout ErrorCode = "LLM_UPSTREAM_TIMEOUT"
	ErrUpstreamError   ErrorCode = "LLM_UPSTREAM_ERROR"
)

// Error carries provider transport detail. It is always wrapped in a
// types.ErrUpstreamFailure before it leaves the llm layer, so upstream
// text never reaches end users directly.
type Error struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	HTTPStatus int       `json:"http_status"`
	Retryable  bool      `json:"retryable"`
	Provider   string    `json:"provider,omitempty"`
}

func (e *Error) Error() string { return e.Message }

// Completer is the stateless bridge to a remote completion model.
// Configuration (endpoint, credentials, sampling temperature) is fixed
// at construction and not mutable per call.
type Completer interface {
	// Generate sends the ordered history to the model and returns the
	// first generated alternative's text verbatim. extraSystemLine, if
	// non-empty, is appended as a trailing system turn for this call
	// only and never persisted to the caller's transcript.
	Generate(ctx context.Context, history []types.Turn, extraSystemLine string) (string, error)

	// Name returns the provider's unique identifier.
	Name() string
}

// ValidateHistory checks the request history before any network call.
// An empty history or a turn missing its role or text fields fails
// with an INVALID_INPUT taxonomy error.
func ValidateHistory(history []types.Turn) error {
	if len(history) == 0 {
		return types.NewError(types.ErrInvalidInput, "message history must not be empty")
	}
	for i, turn := range history {
		if !turn.Valid() {
			return types.Errorf(types.ErrInvalidInput, "turn %d is missing role or text", i)
		}
	}
	return nil
}

// UpstreamFailure wraps a provider transport error into the taxonomy
// error reported at user-facing boundaries.
func UpstreamFailure(provider string, cause error) error {
	return types.Errorf(types.ErrUpstreamFailure, "completion request to %s failed", provider).WithCause(cause)
}
