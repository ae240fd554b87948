// Package character implements the character agents: persona profiles,
// per-agent transcripts and model-backed reply generation.
package character

import (
	"strings"

	"github.com/personabot/personabot/types"
)

// Profile is the static configuration defining a character's persona
// and seed dialogue. Profiles are read-only during a session.
type Profile struct {
	// Name is the character's display name, used to label assistant
	// turns when rendering a transcript.
	Name string `yaml:"name" json:"name"`

	// Description is shown when listing selectable characters.
	Description string `yaml:"description" json:"description"`

	// StartLine is the system turn giving the character its identity.
	// Always the first turn of a fresh transcript.
	StartLine string `yaml:"start_line" json:"start_line"`

	// Snippets are seed turns (alternating user/assistant) that bias
	// the character's style before any real user input.
	Snippets []types.Turn `yaml:"snippets" json:"snippets"`

	// Greeting is the character's opening line, appended as a
	// synthetic assistant turn.
	Greeting string `yaml:"greetings" json:"greetings"`
}

// Validate checks that the profile carries the fields a transcript
// needs.
func (p Profile) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return types.NewError(types.ErrInvalidInput, "character profile is missing a name")
	}
	if strings.TrimSpace(p.StartLine) == "" {
		return types.Errorf(types.ErrInvalidInput, "character %q is missing a start line", p.Name)
	}
	if strings.TrimSpace(p.Greeting) == "" {
		return types.Errorf(types.ErrInvalidInput, "character %q is missing a greeting", p.Name)
	}
	for i, snippet := range p.Snippets {
		if !snippet.Valid() {
			return types.Errorf(types.ErrInvalidInput, "character %q snippet %d is missing role or text", p.Name, i)
		}
	}
	return nil
}
