// Package config provides the configuration schema, loader, hot-reload
// watcher and provider registry for the rafiq server.
package config

import (
	"time"

	"github.com/rafiqhealth/rafiq/internal/safety"
)

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure, loaded with [Load] or
// [LoadFromReader].
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Providers     ProvidersConfig     `yaml:"providers"`
	Conversation  ConversationConfig  `yaml:"conversation"`
	Safety        SafetyConfig        `yaml:"safety"`
	Transcription TranscriptionConfig `yaml:"transcription"`
	Speech        SpeechConfig        `yaml:"speech"`
	Audit         AuditConfig         `yaml:"audit"`
	Telemetry     TelemetryConfig     `yaml:"telemetry"`
}

// ServerConfig holds network and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address the HTTP server listens on. Default ":8080".
	ListenAddr string `yaml:"listen_addr"`

	LogLevel LogLevel `yaml:"log_level"`

	// CORSOrigins lists browser origins allowed to call the API. "*" allows any.
	CORSOrigins []string `yaml:"cors_origins"`

	// ReviewToken is the bearer token required by GET /api/v1/safety-events.
	// The listing stays disabled while it is empty.
	ReviewToken string `yaml:"review_token"`

	// MaxBodyBytes caps JSON request bodies; MaxAudioBytes caps multipart
	// uploads. Zero keeps the server defaults.
	MaxBodyBytes  int64 `yaml:"max_body_bytes"`
	MaxAudioBytes int64 `yaml:"max_audio_bytes"`

	// ShutdownTimeout bounds graceful shutdown. Default 15s.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// TLS enables HTTPS when set.
	TLS *TLSConfig `yaml:"tls"`
}

// TLSConfig holds PEM certificate paths.
type TLSConfig struct {
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// ProvidersConfig selects the implementation for each external model. The
// validator may name a different provider or model from the conversation;
// when its Name is empty it reuses the conversation provider.
type ProvidersConfig struct {
	LLM       ProviderEntry `yaml:"llm"`
	Validator ProviderEntry `yaml:"validator"`
	STT       ProviderEntry `yaml:"stt"`
	TTS       ProviderEntry `yaml:"tts"`
}

// ProviderEntry is the configuration block shared by every provider kind.
// Name looks up the constructor in the [Registry].
type ProviderEntry struct {
	Name string `yaml:"name"`

	// APIKey usually references the environment: api_key: ${OPENAI_API_KEY}.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default endpoint.
	BaseURL string `yaml:"base_url"`

	Model string `yaml:"model"`

	// Options holds provider-specific values (region, voice settings, ...).
	Options map[string]any `yaml:"options"`

	// Fallbacks are tried in order, each behind its own circuit breaker,
	// when the primary fails.
	Fallbacks []ProviderEntry `yaml:"fallbacks"`
}

// ConversationConfig tunes the persona model.
type ConversationConfig struct {
	// PersonaPrompt replaces the built-in persona. PersonaPromptFile, when
	// set, is read instead; relative paths resolve against the config file.
	PersonaPrompt     string `yaml:"persona_prompt"`
	PersonaPromptFile string `yaml:"persona_prompt_file"`

	// Temperature defaults to 0.7. A pointer so 0 can be configured.
	Temperature *float64 `yaml:"temperature"`

	// MaxTokens defaults to 512.
	MaxTokens int `yaml:"max_tokens"`

	// TurnTimeout bounds one chat turn end to end. Zero disables it.
	TurnTimeout time.Duration `yaml:"turn_timeout"`
}

// SafetyConfig tunes the validator and the fixed reply texts.
type SafetyConfig struct {
	ValidatorPrompt     string `yaml:"validator_prompt"`
	ValidatorPromptFile string `yaml:"validator_prompt_file"`

	// MaxTokens for the validator call. Default 512.
	MaxTokens int `yaml:"max_tokens"`

	// ContextTurns is how many history entries the validator sees. Default 3.
	ContextTurns *int `yaml:"context_turns"`

	// Texts overrides individual reply texts; blank fields keep the shipped
	// defaults. TextsFile, when set, is a YAML file with the same keys and is
	// applied first.
	Texts     safety.Texts `yaml:"texts"`
	TextsFile string       `yaml:"texts_file"`
}

// TranscriptionConfig holds recognition language hints.
type TranscriptionConfig struct {
	// Language is the primary BCP-47 hint. Default "ar-OM".
	Language string `yaml:"language"`

	// AlternateLanguages are secondary hints. Default ["en-US"].
	AlternateLanguages []string `yaml:"alternate_languages"`
}

// SpeechConfig selects the synthesis voices.
type SpeechConfig struct {
	Primary  VoiceConfig `yaml:"primary"`
	Fallback VoiceConfig `yaml:"fallback"`
}

// VoiceConfig names one provider voice.
type VoiceConfig struct {
	// ID is the provider voice identifier ("Zeina", "alloy").
	ID string `yaml:"id"`

	// Locale is the BCP-47 language of the voice ("arb", "ar-AE").
	Locale string `yaml:"locale"`
}

// AuditConfig selects where safety events are recorded. Events are always
// logged; PostgreSQL and NATS are added when configured.
type AuditConfig struct {
	PostgresDSN string `yaml:"postgres_dsn"`

	// MaxConns caps the PostgreSQL pool. Default 4.
	MaxConns int32 `yaml:"max_conns"`

	NATS NATSConfig `yaml:"nats"`
}

// NATSConfig configures crisis alert publishing.
type NATSConfig struct {
	URL string `yaml:"url"`

	// SubjectPrefix defaults to "rafiq.safety".
	SubjectPrefix string `yaml:"subject_prefix"`
}

// TelemetryConfig configures OpenTelemetry.
type TelemetryConfig struct {
	// ServiceName defaults to "rafiq".
	ServiceName string `yaml:"service_name"`

	// TraceSampleRatio in [0, 1]. Nil samples every trace.
	TraceSampleRatio *float64 `yaml:"trace_sample_ratio"`
}
