package audit_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/rafiqhealth/rafiq/internal/audit"
	"github.com/rafiqhealth/rafiq/internal/audit/mock"
	"github.com/rafiqhealth/rafiq/internal/safety"
)

func TestNewEvent(t *testing.T) {
	at := time.Date(2026, 1, 2, 15, 4, 5, 0, time.FixedZone("GST", 4*3600))
	es := safety.EventSpec{
		Action:     safety.ActionCrisisIntervention,
		Reason:     "emergency trigger set",
		RiskLevel:  safety.RiskHigh,
		Indicators: []string{"self-harm"},
	}
	e := audit.NewEvent("turn-9", es, "help", safety.OutcomeCrisisIntervention, at)

	if e.ID.String() == "00000000-0000-0000-0000-000000000000" {
		t.Error("ID not assigned")
	}
	if e.Timestamp.Location() != time.UTC || !e.Timestamp.Equal(at) {
		t.Errorf("Timestamp = %v, want %v in UTC", e.Timestamp, at)
	}
	if e.TurnID != "turn-9" || e.UserInput != "help" || e.Indicators[0] != "self-harm" {
		t.Errorf("event = %+v", e)
	}

	e = audit.NewEvent("t", safety.EventSpec{Action: safety.ActionValidatorFailed}, "", safety.OutcomeUnvalidated, at)
	if e.Indicators == nil {
		t.Error("Indicators nil, want empty slice")
	}
}

func TestFilter_EffectiveLimit(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{0, audit.DefaultListLimit},
		{-3, audit.DefaultListLimit},
		{10, 10},
		{10000, audit.MaxListLimit},
	}
	for _, tc := range tests {
		if got := (audit.Filter{Limit: tc.in}).EffectiveLimit(); got != tc.want {
			t.Errorf("EffectiveLimit(%d) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestLogRecorder_Levels(t *testing.T) {
	var buf bytes.Buffer
	r := audit.NewLogRecorder(slog.New(slog.NewTextHandler(&buf, nil)))

	crisis := audit.Event{Action: safety.ActionCrisisIntervention, Indicators: []string{"suicidal ideation"}}
	if err := r.Record(context.Background(), crisis); err != nil {
		t.Fatalf("Record: %v", err)
	}
	failed := audit.Event{Action: safety.ActionValidatorFailed, Reason: "timeout"}
	_ = r.Record(context.Background(), failed)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d log lines, want 2", len(lines))
	}
	if !strings.Contains(lines[0], "level=ERROR") || !strings.Contains(lines[0], "suicidal ideation") {
		t.Errorf("crisis line = %q", lines[0])
	}
	if !strings.Contains(lines[1], "level=WARN") || !strings.Contains(lines[1], "reason=timeout") {
		t.Errorf("validator line = %q", lines[1])
	}
}

func TestMulti_FansOutAndJoinsErrors(t *testing.T) {
	errA := errors.New("db down")
	a := &mock.Recorder{Err: errA}
	b := &mock.Recorder{}

	err := audit.Multi{a, b}.Record(context.Background(), audit.Event{TurnID: "x"})
	if !errors.Is(err, errA) {
		t.Fatalf("err = %v, want errA", err)
	}
	if len(a.Events()) != 1 || len(b.Events()) != 1 {
		t.Errorf("events = %d/%d, want 1/1", len(a.Events()), len(b.Events()))
	}

	if err := (audit.Multi{}).Record(context.Background(), audit.Event{}); err != nil {
		t.Errorf("empty Multi err = %v", err)
	}
}
