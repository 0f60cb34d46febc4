package audit

import (
	"context"
	"log/slog"

	"github.com/rafiqhealth/rafiq/internal/safety"
)

// LogRecorder writes each event as one structured log line. Crisis
// interventions log at ERROR so they page through ordinary log alerting;
// everything else logs at WARN.
type LogRecorder struct {
	logger *slog.Logger
}

var _ Recorder = (*LogRecorder)(nil)

// NewLogRecorder returns a LogRecorder writing to l, or slog.Default when
// l is nil.
func NewLogRecorder(l *slog.Logger) *LogRecorder {
	if l == nil {
		l = slog.Default()
	}
	return &LogRecorder{logger: l}
}

// Record implements [Recorder]. It never fails.
func (r *LogRecorder) Record(ctx context.Context, e Event) error {
	level := slog.LevelWarn
	if e.Action == safety.ActionCrisisIntervention {
		level = slog.LevelError
	}
	r.logger.LogAttrs(ctx, level, "safety event",
		slog.String("event_id", e.ID.String()),
		slog.String("turn_id", e.TurnID),
		slog.String("action", string(e.Action)),
		slog.String("outcome", string(e.Outcome)),
		slog.String("reason", e.Reason),
		slog.String("risk_level", string(e.RiskLevel)),
		slog.Any("crisis_indicators", e.Indicators),
		slog.String("user_input", e.UserInput),
		slog.Time("timestamp", e.Timestamp),
	)
	return nil
}
