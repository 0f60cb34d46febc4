package safety

import (
	"slices"

	"github.com/rafiqhealth/rafiq/pkg/types"
)

// Outcome names the branch the decision engine took.
type Outcome string

const (
	OutcomeProceed            Outcome = "PROCEED"
	OutcomeAppendSafetyNote   Outcome = "APPEND_SAFETY_NOTE"
	OutcomeRegenerate         Outcome = "REGENERATE"
	OutcomeCrisisIntervention Outcome = "CRISIS_INTERVENTION"
	OutcomeUnvalidated        Outcome = "APPEND_UNVALIDATED_NOTICE"
)

// Action labels a recorded safety event.
type Action string

const (
	ActionValidatorFailed    Action = "VALIDATOR_FAILED"
	ActionCrisisIntervention Action = "CRISIS_INTERVENTION"
	ActionRegenerationFailed Action = "REGENERATION_FAILED"
	ActionSynthesisFailed    Action = "SYNTHESIS_FAILED"
)

// IsValid reports whether a is a known event action.
func (a Action) IsValid() bool {
	switch a {
	case ActionValidatorFailed, ActionCrisisIntervention, ActionRegenerationFailed, ActionSynthesisFailed:
		return true
	}
	return false
}

// Assessment is the validator's result as the engine sees it: a verdict or a
// failure. When both are nil the engine treats it as a call failure.
type Assessment struct {
	Verdict *Verdict
	Failure *Failure
}

// EventSpec describes a side effect the caller must record. The engine reads
// no clock and knows no turn identity; the orchestrator stamps those.
type EventSpec struct {
	Action     Action
	Reason     string
	RiskLevel  CrisisRisk
	Indicators []string
}

// Decision is the engine's output for one turn.
type Decision struct {
	Outcome Outcome

	// Reply is the text to deliver. For OutcomeRegenerate it holds the draft
	// until [Engine.ResolveRegeneration] settles it.
	Reply string

	// SafetyNote is the bare appended note, "" when none.
	SafetyNote string

	// Modifications is the corrective instruction for OutcomeRegenerate.
	Modifications string

	CrisisLogged     bool
	CrisisIndicators []string

	// UsedFallback marks a degraded reply: unvalidated or failed regeneration.
	UsedFallback         bool
	ModificationsApplied bool

	Event *EventSpec
}

// Engine maps (draft, assessment) to a Decision using a fixed set of texts.
// It holds no mutable state.
type Engine struct {
	texts Texts
}

// NewEngine returns an Engine using t, with blank fields taken from
// DefaultTexts.
func NewEngine(t Texts) *Engine {
	return &Engine{texts: t.WithDefaults()}
}

// Texts returns the assets the engine renders with.
func (e *Engine) Texts() Texts { return e.texts }

// Decide applies the safety ladder. First match wins:
//
//  1. validator failure: draft plus the unvalidated notice
//  2. emergency trigger or HIGH risk: the crisis template, draft discarded
//  3. MEDIUM risk: draft plus the supportive note
//  4. MODIFY with modifications: regenerate
//  5. otherwise: draft unchanged
func (e *Engine) Decide(draft string, a Assessment) Decision {
	if a.Verdict == nil {
		reason := "validator returned no verdict"
		if a.Failure != nil {
			reason = a.Failure.Error()
		}
		return Decision{
			Outcome:      OutcomeUnvalidated,
			Reply:        appendSafetyNote(draft, e.texts.UnvalidatedNotice),
			SafetyNote:   e.texts.UnvalidatedNotice,
			UsedFallback: true,
			Event: &EventSpec{
				Action: ActionValidatorFailed,
				Reason: reason,
			},
		}
	}

	v := a.Verdict
	indicators := slices.Clone(v.CrisisIndicators)
	if indicators == nil {
		indicators = []string{}
	}

	switch {
	case v.Crisis():
		return Decision{
			Outcome:          OutcomeCrisisIntervention,
			Reply:            e.texts.CrisisTemplate,
			CrisisLogged:     true,
			CrisisIndicators: indicators,
			Event: &EventSpec{
				Action:     ActionCrisisIntervention,
				Reason:     crisisReason(v),
				RiskLevel:  v.CrisisRisk,
				Indicators: slices.Clone(indicators),
			},
		}
	case v.CrisisRisk == RiskMedium:
		return Decision{
			Outcome:          OutcomeAppendSafetyNote,
			Reply:            appendSafetyNote(draft, e.texts.MediumRiskNote),
			SafetyNote:       e.texts.MediumRiskNote,
			CrisisIndicators: indicators,
		}
	case v.RecommendedAction == RecommendModify && v.Modifications() != "":
		return Decision{
			Outcome:          OutcomeRegenerate,
			Reply:            draft,
			Modifications:    v.Modifications(),
			CrisisIndicators: indicators,
		}
	default:
		return Decision{
			Outcome:          OutcomeProceed,
			Reply:            draft,
			CrisisIndicators: indicators,
		}
	}
}

func crisisReason(v *Verdict) string {
	switch {
	case v.EmergencyTrigger && v.CrisisRisk == RiskHigh:
		return "emergency trigger set and crisis risk HIGH"
	case v.EmergencyTrigger:
		return "emergency trigger set"
	default:
		return "crisis risk HIGH"
	}
}

// ResolveRegeneration settles a REGENERATE decision once the rewrite call has
// returned. On success the rewrite replaces the draft; on failure the draft
// is kept with the regeneration-failed notice. Other outcomes pass through.
func (e *Engine) ResolveRegeneration(d Decision, regenerated string, err error) Decision {
	if d.Outcome != OutcomeRegenerate {
		return d
	}
	if err == nil && regenerated != "" {
		d.Reply = regenerated
		d.ModificationsApplied = true
		return d
	}

	reason := "regeneration returned empty text"
	if err != nil {
		reason = err.Error()
	}
	d.Reply = appendNote(d.Reply, e.texts.RegenerationFailedNotice)
	d.SafetyNote = e.texts.RegenerationFailedNotice
	d.UsedFallback = true
	d.Event = &EventSpec{Action: ActionRegenerationFailed, Reason: reason}
	return d
}

// RegenerationMessages builds the rewrite request: the original turn
// sequence, the draft as the assistant's answer, then the corrective system
// instruction. turns is not modified.
func (e *Engine) RegenerationMessages(turns []types.Message, draft, modifications string) []types.Message {
	out := make([]types.Message, 0, len(turns)+2)
	out = append(out, turns...)
	out = append(out,
		types.Message{Role: types.RoleAssistant, Content: draft},
		types.Message{Role: types.RoleSystem, Content: e.texts.ModifyInstructionPrefix + modifications},
	)
	return out
}

var defaultEngine = NewEngine(DefaultTexts())

// Decide runs the ladder with the default texts.
func Decide(draft string, a Assessment) Decision {
	return defaultEngine.Decide(draft, a)
}
