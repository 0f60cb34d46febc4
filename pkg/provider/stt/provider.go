// Package stt defines the Provider interface for Speech-to-Text backends.
//
// An STT provider wraps a batch transcription service (OpenAI Whisper, a local
// whisper.cpp server, or Deepgram's pre-recorded API) and exposes one blocking
// call: submit a complete utterance, receive its text. The voice client records
// a whole turn before uploading, so no streaming session is modelled here.
//
// Implementations must be safe for concurrent use.
package stt

import (
	"context"
	"errors"
)

// ErrEmptyAudio is returned by providers when a Request carries no audio bytes.
var ErrEmptyAudio = errors.New("stt: audio is empty")

// Request describes one utterance to transcribe.
type Request struct {
	// Audio is the encoded (or raw PCM) utterance.
	Audio []byte

	// MIMEType describes Audio, e.g. "audio/webm", "audio/wav". The values
	// "audio/L16" and "audio/pcm" denote raw 16-bit little-endian PCM described
	// by SampleRate and Channels. Empty means "audio/webm".
	MIMEType string

	// SampleRate is the sample rate in Hz. Only required for raw PCM input.
	SampleRate int

	// Channels is the channel count. Only required for raw PCM input; zero
	// means mono.
	Channels int

	// Language is the primary BCP-47 recognition hint (e.g., "ar-OM"). Empty
	// lets the provider auto-detect where supported.
	Language string

	// AlternateLanguages are secondary hints for code-switched speech (e.g.,
	// "en-US" alongside Arabic). Providers that accept only one hint ignore them.
	AlternateLanguages []string
}

// Validate reports whether r can be submitted to a provider.
func (r Request) Validate() error {
	if len(r.Audio) == 0 {
		return ErrEmptyAudio
	}
	return nil
}

// Provider is the abstraction over any STT backend.
type Provider interface {
	// Transcribe submits req and waits for the full transcript.
	//
	// Returns an error if the request fails, if the audio is empty, or if ctx
	// is cancelled before the result arrives. A successful call may return an
	// empty Transcript.Text when the audio contained no speech.
	Transcribe(ctx context.Context, req Request) (*Transcript, error)
}
