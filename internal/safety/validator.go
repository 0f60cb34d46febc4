package safety

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rafiqhealth/rafiq/internal/observe"
	"github.com/rafiqhealth/rafiq/pkg/provider/llm"
	"github.com/rafiqhealth/rafiq/pkg/types"
)

const (
	defaultValidatorMaxTokens = 512
	defaultContextTurns       = 3
)

// Input is what the validator judges: the user's message, the draft reply,
// and the client-supplied history the draft was produced from.
type Input struct {
	UserInput string
	Draft     string
	History   []types.Message
}

// ValidatorOption configures a [Validator].
type ValidatorOption func(*Validator)

// WithValidatorPrompt replaces the validator policy prompt.
func WithValidatorPrompt(prompt string) ValidatorOption {
	return func(v *Validator) {
		if prompt != "" {
			v.prompt = prompt
		}
	}
}

// WithValidatorMaxTokens caps the verdict length. Values <= 0 are ignored.
func WithValidatorMaxTokens(n int) ValidatorOption {
	return func(v *Validator) {
		if n > 0 {
			v.maxTokens = n
		}
	}
}

// WithContextTurns sets how many trailing history entries are quoted to the
// validator as recent context. Zero sends no context; negative is ignored.
func WithContextTurns(n int) ValidatorOption {
	return func(v *Validator) {
		if n >= 0 {
			v.contextTurns = n
		}
	}
}

// Validator issues the safety-classification call for one draft reply.
// It is safe for concurrent use as long as the underlying provider is.
type Validator struct {
	provider     llm.Provider
	prompt       string
	maxTokens    int
	contextTurns int
}

// NewValidator returns a Validator that classifies through p.
func NewValidator(p llm.Provider, opts ...ValidatorOption) (*Validator, error) {
	if p == nil {
		return nil, errors.New("safety: validator provider must not be nil")
	}
	v := &Validator{
		provider:     p,
		prompt:       DefaultValidatorPrompt,
		maxTokens:    defaultValidatorMaxTokens,
		contextTurns: defaultContextTurns,
	}
	for _, o := range opts {
		o(v)
	}
	return v, nil
}

// Validate classifies in.Draft. Exactly one of the results is non-nil.
// Sampling is pinned to the minimum temperature so identical input yields
// a stable classification.
func (v *Validator) Validate(ctx context.Context, in Input) (*Verdict, *Failure) {
	resp, err := v.provider.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: v.prompt,
		Messages: []types.Message{
			{Role: types.RoleUser, Content: v.userMessage(in)},
		},
		Temperature: llm.Temperature(llm.MinTemperature),
		MaxTokens:   v.maxTokens,
		JSONOutput:  true,
	})
	if err != nil {
		return nil, &Failure{Kind: FailureCall, Err: err}
	}
	if resp == nil {
		return nil, &Failure{Kind: FailureCall, Err: errors.New("provider returned no response")}
	}

	verdict, err := ParseVerdict(resp.Content)
	if err != nil {
		return nil, &Failure{Kind: FailureParse, Raw: resp.Content, Err: err}
	}
	if len(verdict.Adjustments) > 0 {
		observe.Logger(ctx).Warn("validator verdict adjusted",
			"adjustments", verdict.Adjustments,
			"crisis", verdict.Crisis(),
		)
	}
	return verdict, nil
}

func (v *Validator) userMessage(in Input) string {
	return fmt.Sprintf("\nUSER INPUT: %s\nPRIMARY RESPONSE: %s\nRECENT CONTEXT: %s\n",
		in.UserInput, in.Draft, RecentContext(in.History, v.contextTurns))
}

// RecentContext renders the last n history entries one per line as
// "ROLE: content".
func RecentContext(history []types.Message, n int) string {
	if n <= 0 || len(history) == 0 {
		return ""
	}
	if len(history) > n {
		history = history[len(history)-n:]
	}
	lines := make([]string, len(history))
	for i, m := range history {
		lines[i] = strings.ToUpper(string(m.Role)) + ": " + m.Content
	}
	return strings.Join(lines, "\n")
}
