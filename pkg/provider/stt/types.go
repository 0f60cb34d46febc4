package stt

import (
	"strings"
	"time"
)

// Transcript is the result of a batch transcription.
type Transcript struct {
	// Text is the transcribed speech content.
	Text string

	// Language is the language the provider detected or used, when reported.
	Language string

	// Confidence is the overall confidence score (0.0–1.0). May be zero if the
	// provider does not report confidence.
	Confidence float64

	// Duration is the length of the submitted audio, when reported.
	Duration time.Duration
}

// Default MIME types.
const (
	MIMEWebM = "audio/webm"
	MIMEWAV  = "audio/wav"
	MIMEL16  = "audio/L16"
	MIMEPCM  = "audio/pcm"
)

// MIME returns req.MIMEType with parameters stripped, defaulting to MIMEWebM.
func (r Request) MIME() string {
	m := r.MIMEType
	if i := strings.IndexByte(m, ';'); i >= 0 {
		m = m[:i]
	}
	m = strings.TrimSpace(m)
	if m == "" {
		return MIMEWebM
	}
	return m
}

// IsRawPCM reports whether the request carries headerless 16-bit PCM.
func (r Request) IsRawPCM() bool {
	switch strings.ToLower(r.MIME()) {
	case strings.ToLower(MIMEL16), MIMEPCM:
		return true
	}
	return false
}

// FileName returns a file name with an extension matching the MIME type. Some
// backends sniff the container format from the upload's file name.
func (r Request) FileName() string {
	switch strings.ToLower(r.MIME()) {
	case "audio/wav", "audio/x-wav", "audio/wave":
		return "audio.wav"
	case "audio/mpeg", "audio/mp3":
		return "audio.mp3"
	case "audio/ogg":
		return "audio.ogg"
	case "audio/mp4", "audio/m4a", "audio/x-m4a":
		return "audio.m4a"
	case "audio/flac":
		return "audio.flac"
	case strings.ToLower(MIMEL16), MIMEPCM:
		return "audio.wav"
	default:
		return "audio.webm"
	}
}
