package resilience

import (
	"context"
	"errors"

	"github.com/rafiqhealth/rafiq/pkg/provider/stt"
)

// STTFallback implements [stt.Provider] over a [FallbackGroup] of
// transcription backends.
type STTFallback struct {
	group *FallbackGroup[stt.Provider]
}

var _ stt.Provider = (*STTFallback)(nil)

// NewSTTFallback creates an [STTFallback] with primary as the preferred backend.
func NewSTTFallback(primary stt.Provider, primaryName string, cfg FallbackConfig) *STTFallback {
	if cfg.CircuitBreaker.IsFailure == nil {
		cfg.CircuitBreaker.IsFailure = func(err error) bool {
			return DefaultIsFailure(err) && !errors.Is(err, stt.ErrEmptyAudio)
		}
	}
	return &STTFallback{group: NewFallbackGroup(primary, primaryName, cfg)}
}

// AddFallback registers another backend.
func (f *STTFallback) AddFallback(name string, provider stt.Provider) {
	f.group.AddFallback(name, provider)
}

// Transcribe sends req to the first healthy backend. An empty upload is
// rejected up front since no backend could accept it.
func (f *STTFallback) Transcribe(ctx context.Context, req stt.Request) (*stt.Transcript, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return ExecuteWithResult(ctx, f.group, func(p stt.Provider) (*stt.Transcript, error) {
		return p.Transcribe(ctx, req)
	})
}
