package pipeline

import "errors"

// Errors returned by [Pipeline.Run] and [Pipeline.Transcribe]. Causes are
// wrapped alongside, so both errors.Is(err, ErrModel) and errors.Is on the
// provider's own error hold.
var (
	// ErrInvalidRequest means the turn request itself was malformed.
	ErrInvalidRequest = errors.New("pipeline: invalid request")

	// ErrTranscription means the audio could not be turned into text.
	ErrTranscription = errors.New("pipeline: transcription failed")

	// ErrModel means the conversation model produced no draft.
	ErrModel = errors.New("pipeline: conversation model failed")

	// ErrNotConfigured means the turn needs a provider that was not wired.
	ErrNotConfigured = errors.New("pipeline: provider not configured")

	// ErrRegeneration and ErrSynthesis never escape Run; they label the
	// non-fatal branches in logs and audit events.
	ErrRegeneration = errors.New("pipeline: regeneration failed")
	ErrSynthesis    = errors.New("pipeline: synthesis failed")
)
