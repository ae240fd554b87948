package llm

import (
	"context"
	"time"

	"github.com/personabot/personabot/types"
)

// MetricsRecorder receives completion outcomes. Satisfied by
// internal/metrics.Collector.
type MetricsRecorder interface {
	RecordCompletion(provider string, duration time.Duration, err error)
}

type instrumentedCompleter struct {
	next    Completer
	metrics MetricsRecorder
}

// WithMetrics wraps a completer so every Generate call is recorded.
// Returns next unchanged when metrics is nil.
func WithMetrics(next Completer, metrics MetricsRecorder) Completer {
	if metrics == nil {
		return next
	}
	return &instrumentedCompleter{next: next, metrics: metrics}
}

func (c *instrumentedCompleter) Name() string { return c.next.Name() }

func (c *instrumentedCompleter) Generate(ctx context.Context, history []types.Turn, extraSystemLine string) (string, error) {
	start := time.Now()
	text, err := c.next.Generate(ctx, history, extraSystemLine)
	c.metrics.RecordCompletion(c.next.Name(), time.Since(start), err)
	return text, err
}
