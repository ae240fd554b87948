// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Collector aggregates the prometheus instruments for the bot.
type Collector struct {
	completionsTotal   *prometheus.CounterVec
	completionDuration *prometheus.HistogramVec

	updatesTotal      *prometheus.CounterVec
	conversationTurns prometheus.Counter
	sessionsActive    prometheus.Gauge

	logger *zap.Logger
}

// NewCollector creates a collector and registers its instruments on
// the given registerer. Pass prometheus.DefaultRegisterer in production
// and a fresh registry in tests.
func NewCollector(namespace string, reg prometheus.Registerer, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	c.completionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "completions_total",
			Help:      "Total number of completion requests",
		},
		[]string{"provider", "status"},
	)

	c.completionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "completion_duration_seconds",
			Help:      "Completion request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"provider"},
	)

	c.updatesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transport_updates_total",
			Help:      "Total number of inbound transport updates",
		},
		[]string{"kind"},
	)

	c.conversationTurns = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conversation_turns_total",
			Help:      "Total number of multi-agent conversation turns emitted",
		},
	)

	c.sessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of live dialogue sessions",
		},
	)

	reg.MustRegister(
		c.completionsTotal,
		c.completionDuration,
		c.updatesTotal,
		c.conversationTurns,
		c.sessionsActive,
	)
	return c
}

// RecordCompletion records one completion request outcome.
func (c *Collector) RecordCompletion(provider string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	c.completionsTotal.WithLabelValues(provider, status).Inc()
	c.completionDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

// RecordUpdate records one inbound transport update by kind.
func (c *Collector) RecordUpdate(kind string) {
	c.updatesTotal.WithLabelValues(kind).Inc()
}

// RecordConversationTurn records one emitted multi-agent turn.
func (c *Collector) RecordConversationTurn() {
	c.conversationTurns.Inc()
}

// SetActiveSessions sets the live session gauge.
func (c *Collector) SetActiveSessions(n int) {
	c.sessionsActive.Set(float64(n))
}
