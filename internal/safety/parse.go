package safety

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed verdict.schema.json
var verdictSchemaSrc string

// verdictSchema is compiled once at init; the source is a package constant,
// so a compile failure is a programming error.
var verdictSchema = jsonschema.MustCompileString("verdict.schema.json", verdictSchemaSrc)

// fenceRe matches a ```json or ``` marker at the start of the payload and a
// ``` marker at its very end. Backticks inside string values are kept.
var fenceRe = regexp.MustCompile("\\A```(?:json)?\\s*|\\s*```\\z")

// enumKeys are upper-cased before schema validation so that a validator
// answering "high" instead of "HIGH" still reaches crisis handling.
var enumKeys = []string{"crisis_risk", "cultural_sensitivity", "recommended_action"}

// ErrEmptyVerdict is returned by ParseVerdict for blank model output.
var ErrEmptyVerdict = errors.New("safety: empty validator output")

// StripFences removes markdown code-fence markers around a JSON payload and
// trims surrounding whitespace.
func StripFences(s string) string {
	return strings.TrimSpace(fenceRe.ReplaceAllString(strings.TrimSpace(s), ""))
}

// ParseVerdict decodes raw validator output into a Verdict. Fenced and bare
// JSON yield identical results.
//
// Only crisis_risk, emergency_trigger and recommended_action are strict.
// Malformed ancillary fields are dropped and listed in Verdict.Adjustments.
// When the verdict still fails validation but carries a crisis signal, a
// partial verdict holding that signal is returned instead of an error.
func ParseVerdict(raw string) (*Verdict, error) {
	cleaned := StripFences(raw)
	if cleaned == "" {
		return nil, ErrEmptyVerdict
	}

	var doc any
	if err := json.Unmarshal([]byte(cleaned), &doc); err != nil {
		return nil, fmt.Errorf("safety: decode verdict: %w", err)
	}
	obj, ok := doc.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("safety: decode verdict: expected JSON object, got %T", doc)
	}
	for _, k := range enumKeys {
		if s, ok := obj[k].(string); ok {
			obj[k] = normalizeEnum(s)
		}
	}
	adjustments := relaxAncillary(obj)

	if err := verdictSchema.Validate(obj); err != nil {
		if v, ok := crisisOnly(obj); ok {
			v.Adjustments = append(adjustments, "schema: "+err.Error())
			return v, nil
		}
		return nil, fmt.Errorf("safety: verdict schema: %w", err)
	}

	normalized, err := json.Marshal(obj)
	if err != nil {
		return nil, fmt.Errorf("safety: re-encode verdict: %w", err)
	}
	var v Verdict
	if err := json.Unmarshal(normalized, &v); err != nil {
		return nil, fmt.Errorf("safety: decode verdict: %w", err)
	}
	if v.CrisisIndicators == nil {
		v.CrisisIndicators = []string{}
	}
	if !v.RecommendedAction.IsValid() {
		adjustments = append(adjustments, fmt.Sprintf("recommended_action: unknown value %q", v.RecommendedAction))
	}
	v.Adjustments = adjustments
	return &v, nil
}

// normalizeEnum maps "needs adjustment" and "Needs-Adjustment" to
// "NEEDS_ADJUSTMENT".
func normalizeEnum(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(s)
}

// relaxAncillary drops or coerces fields the decision ladder never reads so
// that they cannot fail the schema. It returns one note per change.
func relaxAncillary(obj map[string]any) []string {
	var notes []string
	drop := func(key, why string) {
		notes = append(notes, fmt.Sprintf("%s: %s, dropped", key, why))
		delete(obj, key)
	}

	if raw, ok := obj["therapeutic_quality"]; ok {
		if n, ok := qualityScore(raw); ok {
			obj["therapeutic_quality"] = n
		} else {
			drop("therapeutic_quality", fmt.Sprintf("invalid value %v", raw))
		}
	}

	if raw, ok := obj["cultural_sensitivity"]; ok {
		s, _ := raw.(string)
		if !CulturalSensitivity(s).IsValid() {
			drop("cultural_sensitivity", fmt.Sprintf("invalid value %v", raw))
		}
	}

	if raw, ok := obj["crisis_indicators"]; ok && raw != nil {
		list, isList := raw.([]any)
		if !isList {
			drop("crisis_indicators", fmt.Sprintf("not a list: %v", raw))
		} else if kept := stringsOf(list); len(kept) != len(list) {
			notes = append(notes, "crisis_indicators: non-string entries dropped")
			items := make([]any, len(kept))
			for i, s := range kept {
				items[i] = s
			}
			obj["crisis_indicators"] = items
		}
	}

	// A MODIFY verdict needs its instruction intact; anywhere else the field
	// is informational.
	if raw, ok := obj["modifications_needed"]; ok && raw != nil {
		if _, isString := raw.(string); !isString && obj["recommended_action"] != string(RecommendModify) {
			drop("modifications_needed", fmt.Sprintf("invalid value %v", raw))
		}
	}
	return notes
}

// qualityScore accepts an integer 1..10 given as a JSON number or a numeric
// string.
func qualityScore(raw any) (float64, bool) {
	var f float64
	switch t := raw.(type) {
	case float64:
		f = t
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return 0, false
		}
		f = float64(n)
	default:
		return 0, false
	}
	if f != math.Trunc(f) || f < 1 || f > 10 {
		return 0, false
	}
	return f, true
}

// crisisOnly builds a partial verdict from a document that failed the schema
// but still signals a crisis. ok is false when there is no crisis signal.
func crisisOnly(obj map[string]any) (*Verdict, bool) {
	trigger, _ := obj["emergency_trigger"].(bool)
	risk, _ := obj["crisis_risk"].(string)
	if !trigger && CrisisRisk(risk) != RiskHigh {
		return nil, false
	}
	v := &Verdict{
		EmergencyTrigger: trigger,
		CrisisIndicators: []string{},
	}
	if CrisisRisk(risk).IsValid() {
		v.CrisisRisk = CrisisRisk(risk)
	}
	if list, ok := obj["crisis_indicators"].([]any); ok {
		v.CrisisIndicators = stringsOf(list)
	}
	return v, true
}

func stringsOf(list []any) []string {
	out := make([]string, 0, len(list))
	for _, item := range list {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
