package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/rafiqhealth/rafiq/internal/safety"
	"github.com/rafiqhealth/rafiq/pkg/provider/llm"
	"github.com/rafiqhealth/rafiq/pkg/provider/llm/mock"
	"github.com/rafiqhealth/rafiq/pkg/types"
)

func TestRegenerate_SendsDraftAndModifications(t *testing.T) {
	p := &mock.Provider{CompleteResponse: &llm.CompletionResponse{Content: "gentler reply"}}
	r := NewRegenerator(p, safety.NewEngine(safety.DefaultTexts()), 0.7, 256)

	turns := BuildTurns("persona", nil, "hello")
	got, err := r.Regenerate(context.Background(), turns, "draft", "be gentler")
	if err != nil {
		t.Fatalf("Regenerate: %v", err)
	}
	if got != "gentler reply" {
		t.Errorf("reply = %q", got)
	}

	calls := p.Calls()
	if len(calls) != 1 {
		t.Fatalf("calls = %d, want 1", len(calls))
	}
	req := calls[0].Req
	if req.MaxTokens != 256 || req.Temperature == nil || *req.Temperature != 0.7 {
		t.Errorf("sampling = (%v, %d), want (0.7, 256)", req.Temperature, req.MaxTokens)
	}
	msgs := req.Messages
	if len(msgs) != len(turns)+2 {
		t.Fatalf("messages = %d, want %d", len(msgs), len(turns)+2)
	}
	if msgs[len(msgs)-2] != (types.Message{Role: types.RoleAssistant, Content: "draft"}) {
		t.Errorf("draft turn = %+v", msgs[len(msgs)-2])
	}
	last := msgs[len(msgs)-1]
	want := safety.DefaultTexts().ModifyInstructionPrefix + "be gentler"
	if last.Role != types.RoleSystem || last.Content != want {
		t.Errorf("instruction = %+v, want system %q", last, want)
	}
}

func TestRegenerate_Failures(t *testing.T) {
	tests := []struct {
		name string
		p    *mock.Provider
	}{
		{name: "call error", p: &mock.Provider{CompleteErr: errors.New("503")}},
		{name: "nil response", p: &mock.Provider{}},
		{name: "blank reply", p: &mock.Provider{CompleteResponse: &llm.CompletionResponse{Content: "  "}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegenerator(tt.p, safety.NewEngine(safety.DefaultTexts()), 0.7, 512)
			_, err := r.Regenerate(context.Background(), nil, "draft", "fix")
			if !errors.Is(err, ErrRegeneration) {
				t.Errorf("err = %v, want ErrRegeneration", err)
			}
		})
	}
}
