// Package mock provides a test double for the tts.Provider interface.
//
// Example:
//
//	p := &mock.Provider{Audio: &tts.Audio{Data: []byte("mp3"), ContentType: "audio/mpeg"}}
//	p.FailVoices = map[string]error{"Zeina": errors.New("voice unavailable")}
package mock

import (
	"context"
	"sync"

	"github.com/rafiqhealth/rafiq/pkg/provider/tts"
)

// SynthesizeCall records a single invocation of Synthesize.
type SynthesizeCall struct {
	// Ctx is the context passed to Synthesize.
	Ctx context.Context
	// Req is the Request passed to Synthesize.
	Req tts.Request
}

// Provider is a mock implementation of tts.Provider.
type Provider struct {
	mu sync.Mutex

	// Audio is returned by Synthesize on success. If nil, a one-byte MP3
	// placeholder is returned.
	Audio *tts.Audio

	// Err, if non-nil, is returned for every call.
	Err error

	// FailVoices maps voice IDs to errors returned only for those voices.
	// Checked after Err.
	FailVoices map[string]error

	// Calls records every invocation of Synthesize in order.
	Calls []SynthesizeCall
}

// Synthesize records the call and returns the configured result.
func (p *Provider) Synthesize(ctx context.Context, req tts.Request) (*tts.Audio, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls = append(p.Calls, SynthesizeCall{Ctx: ctx, Req: req})
	if p.Err != nil {
		return nil, p.Err
	}
	if err, ok := p.FailVoices[req.Voice.ID]; ok {
		return nil, err
	}
	if p.Audio == nil {
		return &tts.Audio{Data: []byte{0xFF}, ContentType: tts.ContentTypeMP3}, nil
	}
	out := *p.Audio
	return &out, nil
}

// CallCount returns the number of recorded calls. Thread-safe.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Calls)
}

// Voices returns the voice of every recorded call, in order. Thread-safe.
func (p *Provider) Voices() []tts.Voice {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]tts.Voice, len(p.Calls))
	for i, c := range p.Calls {
		out[i] = c.Req.Voice
	}
	return out
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls = nil
}

var _ tts.Provider = (*Provider)(nil)
