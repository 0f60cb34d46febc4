package safety

import "fmt"

// FailureKind distinguishes why a validator call produced no verdict.
type FailureKind string

const (
	// FailureParse means the model answered but the answer was not a valid
	// verdict (malformed JSON, or a missing or invalid crisis_risk,
	// emergency_trigger or recommended_action with no crisis signal to keep).
	FailureParse FailureKind = "PARSE_ERROR"

	// FailureCall means the provider call itself failed (network, timeout,
	// auth, cancelled context).
	FailureCall FailureKind = "CALL_ERROR"
)

// Failure is the value returned in place of a verdict. It is an ordinary
// value the caller must branch on, never a panic.
type Failure struct {
	Kind FailureKind

	// Raw is the unparsed model output for FailureParse, kept for review.
	Raw string

	Err error
}

// Error implements error.
func (f *Failure) Error() string {
	if f.Err == nil {
		return fmt.Sprintf("safety: validator %s", f.Kind)
	}
	return fmt.Sprintf("safety: validator %s: %v", f.Kind, f.Err)
}

// Unwrap returns the underlying cause.
func (f *Failure) Unwrap() error { return f.Err }
