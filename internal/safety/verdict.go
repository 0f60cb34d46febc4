// Package safety implements the reply-safety core: the validator invoker that
// classifies a draft reply through a second model call, and the decision
// engine that maps the classification to the reply the user finally receives.
//
// Everything here is per-turn and stateless. [Validator] performs I/O through
// an injected llm.Provider; [Engine.Decide] is a pure function of its inputs.
package safety

import "strings"

// CrisisRisk is the validator's assessment of acute risk.
type CrisisRisk string

const (
	RiskLow    CrisisRisk = "LOW"
	RiskMedium CrisisRisk = "MEDIUM"
	RiskHigh   CrisisRisk = "HIGH"
)

// IsValid reports whether r is a known risk level.
func (r CrisisRisk) IsValid() bool {
	switch r {
	case RiskLow, RiskMedium, RiskHigh:
		return true
	}
	return false
}

// CulturalSensitivity grades the draft against Omani cultural norms.
type CulturalSensitivity string

const (
	CultureAppropriate     CulturalSensitivity = "APPROPRIATE"
	CultureNeedsAdjustment CulturalSensitivity = "NEEDS_ADJUSTMENT"
	CultureInappropriate   CulturalSensitivity = "INAPPROPRIATE"
)

// IsValid reports whether c is a known sensitivity grade.
func (c CulturalSensitivity) IsValid() bool {
	switch c {
	case CultureAppropriate, CultureNeedsAdjustment, CultureInappropriate:
		return true
	}
	return false
}

// RecommendedAction is what the validator suggests doing with the draft.
type RecommendedAction string

const (
	RecommendProceed            RecommendedAction = "PROCEED"
	RecommendModify             RecommendedAction = "MODIFY"
	RecommendEscalate           RecommendedAction = "ESCALATE"
	RecommendCrisisIntervention RecommendedAction = "CRISIS_INTERVENTION"
)

// IsValid reports whether a is a known action.
func (a RecommendedAction) IsValid() bool {
	switch a {
	case RecommendProceed, RecommendModify, RecommendEscalate, RecommendCrisisIntervention:
		return true
	}
	return false
}

// Verdict is the validator's structured classification of one draft reply.
// It is produced once per turn and consumed once by the decision engine.
type Verdict struct {
	CrisisRisk          CrisisRisk          `json:"crisis_risk"`
	CrisisIndicators    []string            `json:"crisis_indicators"`
	CulturalSensitivity CulturalSensitivity `json:"cultural_sensitivity"`

	// TherapeuticQuality is 1–10, or 0 when the validator omitted it.
	TherapeuticQuality int               `json:"therapeutic_quality,omitempty"`
	RecommendedAction  RecommendedAction `json:"recommended_action"`

	// ModificationsNeeded is nil when absent or null.
	ModificationsNeeded *string `json:"modifications_needed"`
	EmergencyTrigger    bool    `json:"emergency_trigger"`

	// Adjustments lists ancillary fields that were dropped or coerced while
	// parsing. Nil when the verdict was clean.
	Adjustments []string `json:"-"`
}

// Crisis reports whether v demands crisis handling. The emergency trigger and
// a HIGH risk level are each sufficient on their own.
func (v *Verdict) Crisis() bool {
	return v.EmergencyTrigger || v.CrisisRisk == RiskHigh
}

// Modifications returns the trimmed modification text, or "" when none.
func (v *Verdict) Modifications() string {
	if v.ModificationsNeeded == nil {
		return ""
	}
	return strings.TrimSpace(*v.ModificationsNeeded)
}
