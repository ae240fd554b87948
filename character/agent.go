package character

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/personabot/personabot/llm"
	"github.com/personabot/personabot/types"
)

// systemLabel is the fixed display label for system turns.
const systemLabel = "System"

// fightDirective is the one-off behavioral instruction sent with a
// Challenge call. It is separate from the character's own start line
// and never persisted to the transcript.
const fightDirective = "Narrate the confrontation as an impartial referee. " +
	"Describe the exchange blow by blow and declare a winner. " +
	"Do not speak as the character; report the outcome from outside the scene."

// Agent owns one character's identity and transcript and turns user
// messages into model-backed replies.
//
// The transcript is append-only: once a real user/assistant pair is
// appended, prior turns are never reordered or removed. Submit holds a
// mutex so at most one call is in flight per agent; a second
// concurrent Submit could otherwise append its user turn before the
// first's assistant turn and corrupt role ordering.
type Agent struct {
	profile   Profile
	userLabel string
	completer llm.Completer

	mu         sync.Mutex
	transcript []types.Turn

	logger *zap.Logger
}

// NewAgent builds an agent with a fresh transcript: the profile's
// start line as the single leading system turn, the snippets in
// original order, then the greeting as a synthetic assistant turn.
// Deterministic; performs no I/O.
func NewAgent(profile Profile, userLabel string, completer llm.Completer, logger *zap.Logger) *Agent {
	if userLabel == "" {
		userLabel = "User"
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	transcript := make([]types.Turn, 0, len(profile.Snippets)+2)
	transcript = append(transcript, types.NewSystemTurn(profile.StartLine))
	transcript = append(transcript, profile.Snippets...)
	transcript = append(transcript, types.NewAssistantTurn(profile.Greeting))

	return &Agent{
		profile:    profile,
		userLabel:  userLabel,
		completer:  completer,
		transcript: transcript,
		logger:     logger.With(zap.String("component", "agent"), zap.String("character", profile.Name)),
	}
}

// Name returns the character's display name.
func (a *Agent) Name() string { return a.profile.Name }

// Greeting returns the character's opening line.
func (a *Agent) Greeting() string { return a.profile.Greeting }

// Submit appends the user's message, asks the model for a reply with
// the full transcript as context, appends the reply and returns it.
//
// On upstream failure the user turn stays appended (the attempt is not
// rolled back) and no assistant turn is added, so a retried Submit
// includes the earlier unanswered user turn in context.
func (a *Agent) Submit(ctx context.Context, userText string) (string, error) {
	if strings.TrimSpace(userText) == "" {
		return "", types.NewError(types.ErrInvalidInput, "message must not be empty")
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.transcript = append(a.transcript, types.NewUserTurn(userText))

	reply, err := a.completer.Generate(ctx, a.transcript, "")
	if err != nil {
		a.logger.Warn("completion failed, user turn retained",
			zap.Int("transcript_len", len(a.transcript)),
			zap.Error(err),
		)
		return "", err
	}

	a.transcript = append(a.transcript, types.NewAssistantTurn(reply))
	return reply, nil
}

// Challenge runs a confrontation scenario against the named opponent.
// The scenario is appended as a synthetic user turn, the model is
// called with a one-off referee directive, and the outcome is appended
// as a SYSTEM turn rather than an assistant turn: the narration is
// out-of-character and must not contaminate the character's own voice
// in later turns.
func (a *Agent) Challenge(ctx context.Context, opponentLabel, instructions string) (string, error) {
	if strings.TrimSpace(opponentLabel) == "" {
		return "", types.NewError(types.ErrInvalidInput, "opponent must not be empty")
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	scenario := fmt.Sprintf("A fight breaks out between you and %s. %s", opponentLabel, instructions)
	a.transcript = append(a.transcript, types.NewUserTurn(scenario))

	outcome, err := a.completer.Generate(ctx, a.transcript, fightDirective)
	if err != nil {
		return "", err
	}

	a.transcript = append(a.transcript, types.NewSystemTurn(outcome))
	return outcome, nil
}

// Transcript returns a copy of the current transcript.
func (a *Agent) Transcript() []types.Turn {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]types.Turn, len(a.transcript))
	copy(out, a.transcript)
	return out
}

// ExportTranscript serialises the transcript losslessly. Role, text
// and order are preserved exactly; used for save/restore, never for
// merging.
func (a *Agent) ExportTranscript() ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return json.Marshal(a.transcript)
}

// ImportTranscript replaces the transcript with a previously exported
// one, verbatim. Unrecognized roles are tolerated here and only here:
// this is the deserialization boundary.
func (a *Agent) ImportTranscript(data []byte) error {
	var turns []types.Turn
	if err := json.Unmarshal(data, &turns); err != nil {
		return types.NewError(types.ErrInvalidInput, "transcript data is malformed").WithCause(err)
	}
	for i, turn := range turns {
		if turn.Role == "" {
			return types.Errorf(types.ErrInvalidInput, "transcript turn %d is missing its role", i)
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.transcript = turns
	return nil
}

// Render maps each turn to a display line. User turns carry the
// session's user label, system turns the fixed "System" label,
// assistant turns the character's name. Unrecognized roles pass
// through with the raw role string as the label.
func (a *Agent) Render() []string {
	a.mu.Lock()
	defer a.mu.Unlock()

	lines := make([]string, 0, len(a.transcript))
	for _, turn := range a.transcript {
		var label string
		switch turn.Role {
		case types.RoleUser:
			label = a.userLabel
		case types.RoleSystem:
			label = systemLabel
		case types.RoleAssistant:
			label = a.profile.Name
		default:
			label = string(turn.Role)
		}
		lines = append(lines, fmt.Sprintf("%s: %s", label, turn.Text))
	}
	return lines
}
