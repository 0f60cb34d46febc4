package safety

import (
	"errors"
	"strings"
)

// Texts holds the fixed strings the decision engine and regeneration
// controller emit verbatim. Every field is overridable from configuration.
type Texts struct {
	// CrisisTemplate replaces the draft entirely on crisis intervention.
	CrisisTemplate string `yaml:"crisis_template"`

	// MediumRiskNote is appended to the draft when risk is MEDIUM.
	MediumRiskNote string `yaml:"medium_risk_note"`

	// UnvalidatedNotice is appended when the validator produced no verdict.
	UnvalidatedNotice string `yaml:"unvalidated_notice"`

	// RegenerationFailedNotice is appended when a requested rewrite failed.
	RegenerationFailedNotice string `yaml:"regeneration_failed_notice"`

	// ModifyInstructionPrefix precedes the validator's modification text in
	// the corrective system instruction sent for regeneration.
	ModifyInstructionPrefix string `yaml:"modify_instruction_prefix"`
}

// DefaultCrisisTemplate is the shipped crisis script: Omani Arabic, with the
// national emergency number and Al Masarra Hospital's line.
const DefaultCrisisTemplate = `أنا قلقان عليك وايد. كلم حد مختص على طول.
الطوارئ: 999
مستشفى المسرة: 24699999
أو كلم أهلك حالاً
{وَمَن يَتَّقِ اللَّهَ يَجْعَل لَّهُ مَخْرَجًا}
إنت مو لوحدك. الله معاك.`

// DefaultTexts returns the shipped text assets.
func DefaultTexts() Texts {
	return Texts{
		CrisisTemplate:           DefaultCrisisTemplate,
		MediumRiskNote:           "If you are struggling, please consider reaching out to a trusted person or professional. You deserve support.",
		UnvalidatedNotice:        "Unable to validate response. If you are in crisis, please seek help immediately.",
		RegenerationFailedNotice: "Unable to apply suggested modifications. Please review response for safety.",
		ModifyInstructionPrefix:  "Modify your previous response as follows: ",
	}
}

// WithDefaults returns t with every empty field taken from DefaultTexts.
func (t Texts) WithDefaults() Texts {
	d := DefaultTexts()
	if t.CrisisTemplate == "" {
		t.CrisisTemplate = d.CrisisTemplate
	}
	if t.MediumRiskNote == "" {
		t.MediumRiskNote = d.MediumRiskNote
	}
	if t.UnvalidatedNotice == "" {
		t.UnvalidatedNotice = d.UnvalidatedNotice
	}
	if t.RegenerationFailedNotice == "" {
		t.RegenerationFailedNotice = d.RegenerationFailedNotice
	}
	if t.ModifyInstructionPrefix == "" {
		t.ModifyInstructionPrefix = d.ModifyInstructionPrefix
	}
	return t
}

// Validate reports blank assets. A whitespace-only crisis template would
// silently erase replies, so it is rejected outright.
func (t Texts) Validate() error {
	var errs []error
	check := func(name, v string) {
		if strings.TrimSpace(v) == "" {
			errs = append(errs, errors.New("safety: text "+name+" must not be blank"))
		}
	}
	check("crisis_template", t.CrisisTemplate)
	check("medium_risk_note", t.MediumRiskNote)
	check("unvalidated_notice", t.UnvalidatedNotice)
	check("regeneration_failed_notice", t.RegenerationFailedNotice)
	check("modify_instruction_prefix", t.ModifyInstructionPrefix)
	return errors.Join(errs...)
}

// appendSafetyNote renders the "[Safety Note: …]" suffix form.
func appendSafetyNote(draft, note string) string {
	return draft + "\n\n[Safety Note: " + note + "]"
}

// appendNote renders the "[Note: …]" suffix form.
func appendNote(draft, note string) string {
	return draft + "\n\n[Note: " + note + "]"
}
