// Package types provides core types shared across the personabot packages.
// This package has ZERO dependencies on other personabot packages to avoid
// circular imports.
package types

import "strings"

// Role identifies the speaker of a dialogue turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Known reports whether the role is one of the closed set used in-memory.
// Unknown roles are tolerated only at the transcript import boundary.
func (r Role) Known() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}

// Turn is one role-tagged line of dialogue. Turns are immutable once
// appended to a transcript; their order is semantically meaningful,
// because the ordered sequence IS the prompt sent upstream.
type Turn struct {
	Role Role   `json:"role" yaml:"role"`
	Text string `json:"text" yaml:"text"`
}

// NewSystemTurn creates a system turn.
func NewSystemTurn(text string) Turn {
	return Turn{Role: RoleSystem, Text: text}
}

// NewUserTurn creates a user turn.
func NewUserTurn(text string) Turn {
	return Turn{Role: RoleUser, Text: text}
}

// NewAssistantTurn creates an assistant turn.
func NewAssistantTurn(text string) Turn {
	return Turn{Role: RoleAssistant, Text: text}
}

// Valid reports whether the turn carries both a role and non-empty text.
func (t Turn) Valid() bool {
	return t.Role != "" && strings.TrimSpace(t.Text) != ""
}
