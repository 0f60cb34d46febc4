package audit

import (
	"context"
	"errors"
)

// Multi records every event to each of its recorders in order. A failing
// recorder does not stop the rest; all errors are joined.
type Multi []Recorder

var _ Recorder = Multi(nil)

// Record implements [Recorder].
func (m Multi) Record(ctx context.Context, e Event) error {
	var errs []error
	for _, r := range m {
		if err := r.Record(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
