package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/rafiqhealth/rafiq/internal/observe"
	"github.com/rafiqhealth/rafiq/pkg/provider/tts"
)

// Speaker synthesises a reply with a primary voice and, if that fails, one
// alternate voice.
type Speaker struct {
	provider tts.Provider
	primary  tts.Voice
	fallback tts.Voice
}

// NewSpeaker returns a Speaker. fallback may be the zero Voice, in which
// case only the primary is tried.
func NewSpeaker(p tts.Provider, primary, fallback tts.Voice) (*Speaker, error) {
	if p == nil {
		return nil, errors.New("pipeline: speaker provider must not be nil")
	}
	if primary.IsZero() {
		return nil, errors.New("pipeline: speaker primary voice must not be empty")
	}
	return &Speaker{provider: p, primary: primary, fallback: fallback}, nil
}

// Speak returns the audio and the voice that produced it. When every voice
// fails the error wraps [ErrSynthesis] and each attempt's cause.
func (s *Speaker) Speak(ctx context.Context, text string) (*tts.Audio, tts.Voice, error) {
	voices := []tts.Voice{s.primary}
	if !s.fallback.IsZero() && s.fallback != s.primary {
		voices = append(voices, s.fallback)
	}

	log := observe.Logger(ctx)
	var errs []error
	for i, v := range voices {
		audio, err := s.provider.Synthesize(ctx, tts.Request{Text: text, Voice: v})
		if err == nil && audio != nil && len(audio.Data) > 0 {
			if i > 0 {
				log.Info("speech served by fallback voice", "voice", v.String())
			}
			return audio, v, nil
		}
		if err == nil {
			err = errors.New("empty audio")
		}
		log.Warn("speech synthesis failed", "voice", v.String(), "attempt", i+1, "err", err)
		errs = append(errs, fmt.Errorf("voice %s: %w", v, err))
		if ctx.Err() != nil {
			break
		}
	}
	return nil, tts.Voice{}, fmt.Errorf("%w: %w", ErrSynthesis, errors.Join(errs...))
}
