package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rafiqhealth/rafiq/internal/safety"
	"github.com/rafiqhealth/rafiq/pkg/provider/llm"
	"github.com/rafiqhealth/rafiq/pkg/types"
)

// Regenerator rewrites a draft once, following the validator's modification
// request. It never retries and its output is not re-validated.
type Regenerator struct {
	provider    llm.Provider
	engine      *safety.Engine
	temperature *float64
	maxTokens   int
}

// NewRegenerator returns a Regenerator sampling like the conversation call.
func NewRegenerator(p llm.Provider, engine *safety.Engine, temperature float64, maxTokens int) *Regenerator {
	return &Regenerator{
		provider:    p,
		engine:      engine,
		temperature: llm.Temperature(temperature),
		maxTokens:   maxTokens,
	}
}

// Regenerate issues the single corrective call. turns is the sequence the
// draft was produced from.
func (r *Regenerator) Regenerate(ctx context.Context, turns []types.Message, draft, modifications string) (string, error) {
	resp, err := r.provider.Complete(ctx, llm.CompletionRequest{
		Messages:    r.engine.RegenerationMessages(turns, draft, modifications),
		Temperature: r.temperature,
		MaxTokens:   r.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrRegeneration, err)
	}
	if resp == nil || strings.TrimSpace(resp.Content) == "" {
		return "", fmt.Errorf("%w: %w", ErrRegeneration, errors.New("empty completion"))
	}
	return resp.Content, nil
}
