// Package conversation drives scripted multi-party exchanges among
// independently profiled character agents. It bypasses the session
// registry entirely: the roster is ephemeral and shares no transcript
// with any single-user chat.
package conversation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/personabot/personabot/character"
	"github.com/personabot/personabot/llm"
	"github.com/personabot/personabot/types"
)

const (
	// MinRoster and MaxRoster bound the number of participants.
	MinRoster = 2
	MaxRoster = 4

	// DefaultRounds is the number of full passes when the caller
	// does not specify one.
	DefaultRounds = 2
)

// Event is one emitted conversation turn. A non-nil Err terminates
// the run and names the failing speaker; already-emitted turns stand.
type Event struct {
	Speaker string
	Text    string
	Err     error
}

// TurnRecorder receives emitted turn counts. Satisfied by
// internal/metrics.Collector.
type TurnRecorder interface {
	RecordConversationTurn()
}

// Config tunes an orchestrator.
type Config struct {
	// TurnDelay is the minimum delay between emitted events, a
	// scheduling affordance for the downstream delivery channel.
	TurnDelay time.Duration
}

// Orchestrator runs fixed-length exchanges among catalog characters.
type Orchestrator struct {
	catalog   *character.Catalog
	completer llm.Completer
	cfg       Config
	metrics   TurnRecorder
	logger    *zap.Logger
}

// New creates an orchestrator.
func New(catalog *character.Catalog, completer llm.Completer, cfg Config, metrics TurnRecorder, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		catalog:   catalog,
		completer: completer,
		cfg:       cfg,
		metrics:   metrics,
		logger:    logger.With(zap.String("component", "orchestrator")),
	}
}

// Run validates the roster, builds one independent agent per label and
// returns a finite event stream of rounds*len(labels) turns. The
// stream is lazy and not restartable; the channel closes when the run
// completes or aborts.
//
// Validation happens before any agent is constructed: a bad roster
// size, an unknown label or a catalog failure returns an error and no
// events.
func (o *Orchestrator) Run(ctx context.Context, labels []string, rounds int) (<-chan Event, error) {
	if rounds <= 0 {
		rounds = DefaultRounds
	}
	if len(labels) < MinRoster || len(labels) > MaxRoster {
		return nil, types.Errorf(types.ErrInvalidInput,
			"a conversation needs between %d and %d characters, got %d", MinRoster, MaxRoster, len(labels))
	}
	seen := make(map[string]struct{}, len(labels))
	for _, label := range labels {
		if _, dup := seen[label]; dup {
			return nil, types.Errorf(types.ErrInvalidInput, "character %q appears more than once", label)
		}
		seen[label] = struct{}{}
	}

	// Resolve every profile up front so an unknown label or a broken
	// catalog aborts before any agent exists. No partial roster.
	profiles := make([]character.Profile, 0, len(labels))
	for _, label := range labels {
		profile, err := o.catalog.Lookup(label)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, profile)
	}

	runID := uuid.New().String()
	logger := o.logger.With(zap.String("run_id", runID))

	agents := make([]*character.Agent, len(profiles))
	for i, profile := range profiles {
		// Each agent gets its own transcript; cross-agent awareness
		// exists only through the seed prompts.
		agents[i] = character.NewAgent(profile, "Narrator", o.completer, logger)
	}

	events := make(chan Event)
	go o.drive(ctx, logger, labels, agents, rounds, events)

	logger.Info("conversation started",
		zap.Strings("roster", labels),
		zap.Int("rounds", rounds),
	)
	return events, nil
}

func (o *Orchestrator) drive(ctx context.Context, logger *zap.Logger, labels []string, agents []*character.Agent, rounds int, events chan<- Event) {
	defer close(events)

	var limiter *rate.Limiter
	if o.cfg.TurnDelay > 0 {
		limiter = rate.NewLimiter(rate.Every(o.cfg.TurnDelay), 1)
	}

	turn := 0
	for round := 0; round < rounds; round++ {
		for i, label := range labels {
			if limiter != nil {
				if err := limiter.Wait(ctx); err != nil {
					return
				}
			}

			seed := o.seedPrompt(turn, i, labels)
			text, err := agents[i].Submit(ctx, seed)
			if err != nil {
				logger.Warn("conversation aborted",
					zap.String("speaker", label),
					zap.Int("turn", turn),
					zap.Error(err),
				)
				select {
				case events <- Event{Speaker: label, Err: err}:
				case <-ctx.Done():
				}
				return
			}

			if o.metrics != nil {
				o.metrics.RecordConversationTurn()
			}
			select {
			case events <- Event{Speaker: label, Text: text}:
			case <-ctx.Done():
				return
			}
			turn++
		}
	}
	logger.Info("conversation finished", zap.Int("turns", turn))
}

// seedPrompt builds the synthetic user prompt for the given absolute
// turn. The very first turn asks the speaker to introduce itself;
// every later turn names the immediately preceding speaker and asks
// for a response to them.
func (o *Orchestrator) seedPrompt(turn, index int, labels []string) string {
	if turn == 0 {
		return "You meet your companions for the first time. Introduce yourself to the others."
	}
	prev := labels[(index-1+len(labels))%len(labels)]
	return fmt.Sprintf("%s has just spoken to you. Respond to %s in your own voice.", prev, prev)
}
