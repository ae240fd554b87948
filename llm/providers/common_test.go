package providers

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/personabot/personabot/llm"
)

func TestMapHTTPError(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		msg           string
		wantCode      llm.ErrorCode
		wantRetryable bool
	}{
		{"unauthorized", http.StatusUnauthorized, "bad key", llm.ErrUnauthorized, false},
		{"forbidden", http.StatusForbidden, "no access", llm.ErrForbidden, false},
		{"rate limited", http.StatusTooManyRequests, "slow down", llm.ErrRateLimited, true},
		{"bad request", http.StatusBadRequest, "malformed", llm.ErrInvalidRequest, false},
		{"bad request with quota", http.StatusBadRequest, "monthly quota exceeded", llm.ErrQuotaExceeded, false},
		{"gateway timeout", http.StatusGatewayTimeout, "timed out", llm.ErrUpstreamTimeout, true},
		{"service unavailable", http.StatusServiceUnavailable, "down", llm.ErrUpstreamError, true},
		{"overloaded", 529, "overloaded", llm.ErrModelOverloaded, true},
		{"unmapped 5xx", http.StatusInternalServerError, "boom", llm.ErrUpstreamError, true},
		{"unmapped 4xx", http.StatusConflict, "conflict", llm.ErrUpstreamError, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := MapHTTPError(tt.status, tt.msg, "testprov")
			assert.Equal(t, tt.wantCode, err.Code)
			assert.Equal(t, tt.wantRetryable, err.Retryable)
			assert.Equal(t, tt.status, err.HTTPStatus)
			assert.Equal(t, "testprov", err.Provider)
			assert.Equal(t, tt.msg, err.Message)
		})
	}
}

func TestReadErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"openai envelope", `{"error":{"message":"rate limit exceeded","type":"rate_limit_error"}}`, "rate limit exceeded (type: rate_limit_error)"},
		{"openai envelope no type", `{"error":{"message":"bad model"}}`, "bad model"},
		{"yandex envelope", `{"message":"folder not found","code":5}`, "folder not found"},
		{"plain text", "Bad Gateway", "Bad Gateway"},
		{"empty body", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ReadErrorMessage(strings.NewReader(tt.body))
			assert.Equal(t, tt.want, got)
		})
	}
}
