package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/personabot/personabot/types"
)

type mockCompleter struct {
	name       string
	generateFn func(ctx context.Context, history []types.Turn, extraSystemLine string) (string, error)
}

func (m *mockCompleter) Name() string { return m.name }

func (m *mockCompleter) Generate(ctx context.Context, history []types.Turn, extraSystemLine string) (string, error) {
	return m.generateFn(ctx, history, extraSystemLine)
}

type recordedCall struct {
	provider string
	err      error
}

type mockRecorder struct {
	calls []recordedCall
}

func (m *mockRecorder) RecordCompletion(provider string, _ time.Duration, err error) {
	m.calls = append(m.calls, recordedCall{provider: provider, err: err})
}

func TestWithMetrics_RecordsOutcome(t *testing.T) {
	upstream := errors.New("boom")
	next := &mockCompleter{
		name: "mock",
		generateFn: func(_ context.Context, _ []types.Turn, _ string) (string, error) {
			return "", upstream
		},
	}
	recorder := &mockRecorder{}

	wrapped := WithMetrics(next, recorder)

	_, err := wrapped.Generate(context.Background(), []types.Turn{types.NewUserTurn("hi")}, "")
	assert.ErrorIs(t, err, upstream)

	require.Len(t, recorder.calls, 1)
	assert.Equal(t, "mock", recorder.calls[0].provider)
	assert.Equal(t, upstream, recorder.calls[0].err)
}

func TestWithMetrics_PassesThroughResult(t *testing.T) {
	next := &mockCompleter{
		name: "mock",
		generateFn: func(_ context.Context, history []types.Turn, extra string) (string, error) {
			assert.Len(t, history, 1)
			assert.Equal(t, "stay brief", extra)
			return "done", nil
		},
	}
	recorder := &mockRecorder{}

	text, err := WithMetrics(next, recorder).Generate(context.Background(), []types.Turn{types.NewUserTurn("hi")}, "stay brief")
	require.NoError(t, err)
	assert.Equal(t, "done", text)
	require.Len(t, recorder.calls, 1)
	assert.NoError(t, recorder.calls[0].err)
}

func TestWithMetrics_NilRecorderReturnsNext(t *testing.T) {
	next := &mockCompleter{name: "mock"}
	assert.Same(t, Completer(next), WithMetrics(next, nil))
}

func TestValidateHistory(t *testing.T) {
	tests := []struct {
		name    string
		history []types.Turn
		wantErr bool
	}{
		{"ok", []types.Turn{types.NewSystemTurn("s"), types.NewUserTurn("u")}, false},
		{"empty", nil, true},
		{"blank text", []types.Turn{{Role: types.RoleUser, Text: "   "}}, true},
		{"missing role", []types.Turn{{Text: "hi"}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateHistory(tt.history)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, types.ErrInvalidInput, types.GetErrorCode(err))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
