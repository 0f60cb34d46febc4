// Package tts defines the Provider interface for Text-to-Speech backends.
//
// A TTS provider wraps a speech synthesis service (OpenAI speech, Amazon
// Polly, or ElevenLabs) and presents one blocking call: synthesise a complete
// reply in a given voice and locale, return the encoded audio. Replies are
// short and are only spoken after the safety pipeline has produced the final
// text, so no incremental streaming is modelled here.
//
// Implementations must be safe for concurrent use.
package tts

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrEmptyText is returned when a Request carries no text to speak.
	ErrEmptyText = errors.New("tts: text is empty")

	// ErrEmptyVoice is returned when a Request carries no voice ID.
	ErrEmptyVoice = errors.New("tts: voice ID is empty")

	// ErrRejected marks provider-side client errors (unsupported voice,
	// text too long, invalid locale) that will not succeed on retry with the
	// same voice.
	ErrRejected = errors.New("tts: request rejected by provider")
)

// Voice selects a synthesis voice.
type Voice struct {
	// ID is the provider-specific voice identifier (e.g., "alloy", "Hala").
	ID string `yaml:"id" json:"id"`

	// Locale is the BCP-47 locale the text is written in (e.g., "ar-OM").
	// Providers that cannot select a locale ignore it.
	Locale string `yaml:"locale" json:"locale,omitempty"`
}

// IsZero reports whether v names no voice.
func (v Voice) IsZero() bool { return v.ID == "" && v.Locale == "" }

// String renders v as "id/locale" for logs.
func (v Voice) String() string {
	if v.Locale == "" {
		return v.ID
	}
	return v.ID + "/" + v.Locale
}

// Request is one synthesis call.
type Request struct {
	Text  string
	Voice Voice
}

// Validate reports whether r can be submitted to a provider.
func (r Request) Validate() error {
	if strings.TrimSpace(r.Text) == "" {
		return ErrEmptyText
	}
	if r.Voice.ID == "" {
		return ErrEmptyVoice
	}
	return nil
}

// Provider is the abstraction over any TTS backend.
type Provider interface {
	// Synthesize renders req.Text in req.Voice and returns the encoded audio.
	//
	// Returns an error if the voice is unavailable, if the provider call
	// fails, or if ctx is cancelled. A nil error guarantees non-empty audio.
	Synthesize(ctx context.Context, req Request) (*Audio, error)
}
