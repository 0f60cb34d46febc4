// Package types defines the shared types used across all rafiq packages.
//
// These types are the lingua franca between providers, the safety pipeline and
// the HTTP surface. Each package defines its own domain types; only the
// conversation message lives here to avoid circular imports.
package types

import (
	"fmt"
	"strings"
)

// Role identifies who authored a [Message].
type Role string

const (
	// RoleSystem carries persona, policy, or corrective instructions.
	RoleSystem Role = "system"

	// RoleUser carries text typed or spoken by the person using the client.
	RoleUser Role = "user"

	// RoleAssistant carries earlier replies produced by the conversation model.
	RoleAssistant Role = "assistant"
)

// IsValid reports whether r is one of the three conversation roles.
func (r Role) IsValid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}

// Message is a single entry in a conversation turn sequence.
type Message struct {
	// Role is one of system, user, or assistant.
	Role Role `json:"role"`

	// Content is the text of the message.
	Content string `json:"content"`
}

// ValidateHistory checks that every message in history carries a known role.
// It returns an error naming the first offending index.
func ValidateHistory(history []Message) error {
	for i, m := range history {
		if !m.Role.IsValid() {
			return fmt.Errorf("history[%d]: unknown role %q", i, m.Role)
		}
	}
	return nil
}

// BaseLanguage reduces a BCP-47 tag to its primary subtag ("ar-OM" → "ar").
// Whisper-family models and several TTS APIs only accept ISO-639-1 codes.
func BaseLanguage(tag string) string {
	if i := strings.IndexAny(tag, "-_"); i >= 0 {
		tag = tag[:i]
	}
	return strings.ToLower(strings.TrimSpace(tag))
}
