// Package session maps chat identities to their live dialogue state:
// the selected character agent and the pending selection action.
package session

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/personabot/personabot/character"
	"github.com/personabot/personabot/llm"
	"github.com/personabot/personabot/types"
)

// PendingAction records what the next inbound selection event means.
type PendingAction string

const (
	// ActionNone means no selection is pending.
	ActionNone PendingAction = ""

	// ActionChooseCharacter means the chat was offered the character
	// keyboard and the next selection picks a character.
	ActionChooseCharacter PendingAction = "choose_character"
)

// Session is the live state for one chat identity. At most one
// session exists per chat id at any time.
type Session struct {
	ChatID    int64
	UserLabel string
	Agent     *character.Agent
	Pending   PendingAction
}

// ResolutionOutcome describes what a selection event did.
type ResolutionOutcome int

const (
	// ResolutionNoop means the selection matched no pending action
	// (stray button press after a reset, for example) and state was
	// left untouched. Deliberately not an error.
	ResolutionNoop ResolutionOutcome = iota

	// ResolutionSelected means a character was attached to the session.
	ResolutionSelected
)

// Resolution is the result of ResolveSelection.
type Resolution struct {
	Outcome  ResolutionOutcome
	Greeting string
}

// SessionGauge receives the live session count. Satisfied by
// internal/metrics.Collector.
type SessionGauge interface {
	SetActiveSessions(n int)
}

// Registry is the single-writer map from chat identity to session.
// All mutation happens from the transport dispatch goroutine; the
// mutex serialises any stray concurrent handler.
type Registry struct {
	mu       sync.Mutex
	sessions map[int64]*Session

	catalog   *character.Catalog
	completer llm.Completer
	gauge     SessionGauge
	logger    *zap.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(catalog *character.Catalog, completer llm.Completer, gauge SessionGauge, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		sessions:  make(map[int64]*Session),
		catalog:   catalog,
		completer: completer,
		gauge:     gauge,
		logger:    logger.With(zap.String("component", "registry")),
	}
}

// Begin discards any existing session for the chat and creates a
// fresh one with no active character and no pending action. This is
// an unconditional reset, not idempotent-preserving: a prior session's
// state never carries over.
func (r *Registry) Begin(chatID int64, userLabel string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, existed := r.sessions[chatID]; existed {
		r.logger.Info("resetting session", zap.Int64("chat_id", chatID))
	}
	r.sessions[chatID] = &Session{ChatID: chatID, UserLabel: userLabel}
	r.updateGaugeLocked()
}

// OfferSelection records the pending action for the chat's session,
// creating one if absent. The labels are the transport adapter's
// concern; the registry does not validate them against the catalog.
func (r *Registry) OfferSelection(chatID int64, labels []string, action PendingAction) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[chatID]
	if !ok {
		s = &Session{ChatID: chatID}
		r.sessions[chatID] = s
		r.updateGaugeLocked()
	}
	s.Pending = action
	r.logger.Debug("selection offered",
		zap.Int64("chat_id", chatID),
		zap.Int("options", len(labels)),
		zap.String("action", string(action)),
	)
}

// ResolveSelection consumes a selection event. When a character choice
// is pending, the chosen label is resolved against the catalog, a
// fresh agent is attached and the pending action cleared. A missing
// session or mismatched pending action yields a silent no-op, matching
// the transport's tolerance for stray button presses after a reset.
func (r *Registry) ResolveSelection(ctx context.Context, chatID int64, chosenLabel string) (Resolution, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[chatID]
	if !ok || s.Pending != ActionChooseCharacter {
		r.logger.Debug("stray selection ignored",
			zap.Int64("chat_id", chatID),
			zap.String("label", chosenLabel),
		)
		return Resolution{Outcome: ResolutionNoop}, nil
	}

	profile, err := r.catalog.Lookup(chosenLabel)
	if err != nil {
		// Session state stays untouched on failure.
		return Resolution{}, err
	}

	s.Agent = character.NewAgent(profile, s.UserLabel, r.completer, r.logger)
	s.Pending = ActionNone
	r.logger.Info("character selected",
		zap.Int64("chat_id", chatID),
		zap.String("character", profile.Name),
	)
	return Resolution{Outcome: ResolutionSelected, Greeting: profile.Greeting}, nil
}

// Route delegates a free-text message to the chat's active agent.
func (r *Registry) Route(ctx context.Context, chatID int64, userText string) (string, error) {
	r.mu.Lock()
	s, ok := r.sessions[chatID]
	r.mu.Unlock()

	if !ok || s.Agent == nil {
		return "", types.NewError(types.ErrNoActiveCharacter, "no character selected; restart selection with /start")
	}
	return s.Agent.Submit(ctx, userText)
}

// Agent returns the chat's active agent, or nil.
func (r *Registry) Agent(chatID int64) *character.Agent {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[chatID]; ok {
		return s.Agent
	}
	return nil
}

// ChatIDs returns a snapshot of all known chat identities, for
// broadcast delivery.
func (r *Registry) ChatIDs() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]int64, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	return ids
}

// Remove destroys the chat's session entirely.
func (r *Registry) Remove(chatID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, chatID)
	r.updateGaugeLocked()
}

func (r *Registry) updateGaugeLocked() {
	if r.gauge != nil {
		r.gauge.SetActiveSessions(len(r.sessions))
	}
}
