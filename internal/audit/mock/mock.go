// Package mock provides a test double for audit.Recorder.
package mock

import (
	"context"
	"sync"

	"github.com/rafiqhealth/rafiq/internal/audit"
)

// Recorder keeps every recorded event in memory.
type Recorder struct {
	mu sync.Mutex

	// Err, if non-nil, is returned from Record after the event is kept.
	Err error

	events []audit.Event
}

var _ audit.Recorder = (*Recorder)(nil)

// Record implements audit.Recorder.
func (r *Recorder) Record(_ context.Context, e audit.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return r.Err
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []audit.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]audit.Event, len(r.events))
	copy(out, r.events)
	return out
}

// Reset discards recorded events.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}
