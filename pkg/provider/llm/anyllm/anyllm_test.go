package anyllm

import (
	"testing"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/rafiqhealth/rafiq/pkg/provider/llm"
	"github.com/rafiqhealth/rafiq/pkg/types"
)

// ── convertMessage ────────────────────────────────────────────────────────────

func TestConvertMessage_Roles(t *testing.T) {
	tests := []struct {
		role types.Role
		want string
	}{
		{types.RoleSystem, "system"},
		{types.RoleUser, "user"},
		{types.RoleAssistant, "assistant"},
	}
	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			got, err := convertMessage(types.Message{Role: tt.role, Content: "Hello!"})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if string(got.Role) != tt.want {
				t.Errorf("expected role %s, got %q", tt.want, got.Role)
			}
			if got.ContentString() != "Hello!" {
				t.Errorf("expected content %q, got %q", "Hello!", got.ContentString())
			}
		})
	}
}

// TestConvertMessage_UnknownRole checks that roles outside the conversation
// set are rejected rather than forwarded.
func TestConvertMessage_UnknownRole(t *testing.T) {
	if _, err := convertMessage(types.Message{Role: "tool", Content: "sunny"}); err == nil {
		t.Fatal("expected error for unknown role")
	}
}

// ── buildParams ───────────────────────────────────────────────────────────────

func TestBuildParams_JSONOutput(t *testing.T) {
	p := &Provider{model: "claude-3-5-sonnet-latest"}
	tests := []struct {
		name   string
		system string
		json   bool
		want   string
	}{
		{"plain", "policy", false, "policy"},
		{"json with prompt", "policy", true, "policy\n\n" + jsonInstruction},
		{"json without prompt", "", true, jsonInstruction},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params, err := p.buildParams(llm.CompletionRequest{
				SystemPrompt: tt.system,
				Messages:     []types.Message{{Role: types.RoleUser, Content: "x"}},
				JSONOutput:   tt.json,
			})
			if err != nil {
				t.Fatalf("buildParams: %v", err)
			}
			if got := params.Messages[0].ContentString(); got != tt.want {
				t.Errorf("system message = %q, want %q", got, tt.want)
			}
		})
	}
}

// TestBuildParams_ZeroTemperature checks that an explicit zero temperature
// reaches the backend params.
func TestBuildParams_ZeroTemperature(t *testing.T) {
	p := &Provider{model: "gpt-4o"}
	params, err := p.buildParams(llm.CompletionRequest{
		SystemPrompt: "validator",
		Messages:     []types.Message{{Role: types.RoleUser, Content: "x"}},
		Temperature:  llm.Temperature(0),
		MaxTokens:    512,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if params.Temperature == nil || *params.Temperature != 0 {
		t.Errorf("expected temperature pointer to 0, got %v", params.Temperature)
	}
	if params.MaxTokens == nil || *params.MaxTokens != 512 {
		t.Errorf("expected max tokens 512, got %v", params.MaxTokens)
	}
	if len(params.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(params.Messages))
	}
	if params.Messages[0].ContentString() != "validator" {
		t.Errorf("expected system prompt first, got %q", params.Messages[0].ContentString())
	}
}

func TestBuildParams_NilTemperature(t *testing.T) {
	p := &Provider{model: "gpt-4o"}
	params, err := p.buildParams(llm.CompletionRequest{
		Messages: []types.Message{{Role: types.RoleUser, Content: "x"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if params.Temperature != nil {
		t.Errorf("expected nil temperature, got %v", *params.Temperature)
	}
	if params.MaxTokens != nil {
		t.Errorf("expected nil max tokens, got %v", *params.MaxTokens)
	}
}

func TestBuildParams_Empty(t *testing.T) {
	p := &Provider{model: "gpt-4o"}
	if _, err := p.buildParams(llm.CompletionRequest{}); err == nil {
		t.Fatal("expected error for empty request")
	}
}

// ── Constructor ───────────────────────────────────────────────────────────────

// TestNew_EmptyProviderName checks that an empty provider name returns an error.
func TestNew_EmptyProviderName(t *testing.T) {
	_, err := New("", "gpt-4o")
	if err == nil {
		t.Fatal("expected error for empty providerName")
	}
}

// TestNew_EmptyModel checks that an empty model name returns an error.
func TestNew_EmptyModel(t *testing.T) {
	_, err := New("openai", "")
	if err == nil {
		t.Fatal("expected error for empty model")
	}
}

// TestNew_UnsupportedProvider checks that an unsupported provider returns an error.
func TestNew_UnsupportedProvider(t *testing.T) {
	_, err := New("fakecloud", "some-model", anyllmlib.WithAPIKey("dummy"))
	if err == nil {
		t.Fatal("expected error for unsupported provider")
	}
}

// TestNew_OpenAI_WithAPIKey checks that OpenAI provider constructs successfully with an API key.
func TestNew_OpenAI_WithAPIKey(t *testing.T) {
	p, err := New("openai", "gpt-4o", anyllmlib.WithAPIKey("sk-test"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p == nil {
		t.Fatal("expected non-nil provider")
	}
	if p.model != "gpt-4o" {
		t.Errorf("expected model gpt-4o, got %q", p.model)
	}
}

// TestNew_OpenAI_MissingAPIKey checks that OpenAI returns an error when no API key is available.
// This relies on OPENAI_API_KEY not being set in the test environment.
func TestNew_OpenAI_MissingAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "") // Ensure env var is clear.
	_, err := New("openai", "gpt-4o")
	if err == nil {
		t.Fatal("expected error for missing API key")
	}
}

// TestNew_Anthropic_WithAPIKey checks that Anthropic provider constructs successfully.
func TestNew_Anthropic_WithAPIKey(t *testing.T) {
	p, err := NewAnthropic("claude-3-5-sonnet-latest", anyllmlib.WithAPIKey("sk-ant-test"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p == nil {
		t.Fatal("expected non-nil provider")
	}
}

// TestNew_Ollama_NoAPIKey checks that Ollama works without an API key.
func TestNew_Ollama_NoAPIKey(t *testing.T) {
	p, err := NewOllama("llama3")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p == nil {
		t.Fatal("expected non-nil provider")
	}
}

// TestConvenienceConstructors checks all convenience constructors delegate correctly.
func TestConvenienceConstructors(t *testing.T) {
	tests := []struct {
		name string
		fn   func() (*Provider, error)
	}{
		{"NewOpenAI", func() (*Provider, error) { return NewOpenAI("gpt-4o", anyllmlib.WithAPIKey("sk-test")) }},
		{"NewAnthropic", func() (*Provider, error) {
			return NewAnthropic("claude-3-5-sonnet-latest", anyllmlib.WithAPIKey("sk-ant-test"))
		}},
		{"NewOllama", func() (*Provider, error) { return NewOllama("llama3") }},
		{"NewLlamaCpp", func() (*Provider, error) { return NewLlamaCpp("llama3") }},
		{"NewLlamaFile", func() (*Provider, error) { return NewLlamaFile("llama3") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := tt.fn()
			if err != nil {
				t.Fatalf("%s: unexpected error: %v", tt.name, err)
			}
			if p == nil {
				t.Fatalf("%s: expected non-nil provider", tt.name)
			}
		})
	}
}
