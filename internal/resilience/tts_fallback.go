package resilience

import (
	"context"
	"errors"

	"github.com/rafiqhealth/rafiq/pkg/provider/tts"
)

// TTSFallback implements [tts.Provider] over a [FallbackGroup] of synthesis
// backends. Every entry receives the same [tts.Request], so fallbacks must
// accept the configured voice IDs (for example the same engine in another
// region).
type TTSFallback struct {
	group *FallbackGroup[tts.Provider]
}

var _ tts.Provider = (*TTSFallback)(nil)

// NewTTSFallback creates a [TTSFallback] with primary as the preferred
// backend. Unless cfg sets its own classifier, [tts.ErrRejected] does not
// count against a backend's breaker: a voice the backend refuses says
// nothing about its health.
func NewTTSFallback(primary tts.Provider, primaryName string, cfg FallbackConfig) *TTSFallback {
	if cfg.CircuitBreaker.IsFailure == nil {
		cfg.CircuitBreaker.IsFailure = func(err error) bool {
			return DefaultIsFailure(err) && !errors.Is(err, tts.ErrRejected)
		}
	}
	return &TTSFallback{group: NewFallbackGroup(primary, primaryName, cfg)}
}

// AddFallback registers another backend.
func (f *TTSFallback) AddFallback(name string, provider tts.Provider) {
	f.group.AddFallback(name, provider)
}

// Synthesize sends req to the first healthy backend.
func (f *TTSFallback) Synthesize(ctx context.Context, req tts.Request) (*tts.Audio, error) {
	return ExecuteWithResult(ctx, f.group, func(p tts.Provider) (*tts.Audio, error) {
		return p.Synthesize(ctx, req)
	})
}
