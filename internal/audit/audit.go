// Package audit records safety events: crisis interventions, validator
// failures, failed regenerations, and turns that lost their audio.
//
// Events leave the process through [Recorder] implementations: [LogRecorder]
// writes structured log lines, postgres.Store keeps a reviewable history, and
// natspub.Publisher pushes live alerts to on-call tooling. [Multi] fans one
// event out to several of them.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/rafiqhealth/rafiq/internal/safety"
)

// Event is one recorded safety side effect.
type Event struct {
	ID     uuid.UUID     `json:"id"`
	TurnID string        `json:"turn_id"`
	Action safety.Action `json:"action"`
	Reason string        `json:"reason,omitempty"`

	// RiskLevel and Indicators are set for crisis interventions.
	RiskLevel  safety.CrisisRisk `json:"risk_level,omitempty"`
	Indicators []string          `json:"crisis_indicators"`

	// UserInput is the text that triggered the turn, kept for post-hoc review.
	UserInput string         `json:"user_input"`
	Outcome   safety.Outcome `json:"outcome"`
	Timestamp time.Time      `json:"timestamp"`
}

// NewEvent stamps an engine EventSpec with identity and time.
func NewEvent(turnID string, es safety.EventSpec, userInput string, outcome safety.Outcome, at time.Time) Event {
	indicators := es.Indicators
	if indicators == nil {
		indicators = []string{}
	}
	return Event{
		ID:         uuid.New(),
		TurnID:     turnID,
		Action:     es.Action,
		Reason:     es.Reason,
		RiskLevel:  es.RiskLevel,
		Indicators: indicators,
		UserInput:  userInput,
		Outcome:    outcome,
		Timestamp:  at.UTC(),
	}
}

// Recorder persists or forwards safety events.
//
// Implementations must be safe for concurrent use. Record should return
// promptly when ctx is cancelled.
type Recorder interface {
	Record(ctx context.Context, e Event) error
}

// Filter narrows a [Lister] query.
type Filter struct {
	// Action, when non-empty, restricts results to one action.
	Action safety.Action

	// Since, when non-zero, excludes older events.
	Since time.Time

	// Limit caps the result count. Values <= 0 mean [DefaultListLimit].
	Limit int
}

// DefaultListLimit and MaxListLimit bound [Filter.Limit].
const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

// EffectiveLimit clamps f.Limit into [1, MaxListLimit].
func (f Filter) EffectiveLimit() int {
	switch {
	case f.Limit <= 0:
		return DefaultListLimit
	case f.Limit > MaxListLimit:
		return MaxListLimit
	}
	return f.Limit
}

// Lister serves the review endpoint. Events come back newest first.
type Lister interface {
	List(ctx context.Context, f Filter) ([]Event, error)
}
