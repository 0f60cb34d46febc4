package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/rafiqhealth/rafiq/internal/safety"
)

// ValidProviderNames lists known provider names per provider kind.
// [Validate] warns about names outside these lists.
var ValidProviderNames = map[string][]string{
	"llm": {"openai", "anthropic", "gemini", "ollama", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
	"stt": {"openai", "whisper", "deepgram"},
	"tts": {"openai", "polly", "elevenlabs"},
}

// envRef matches ${NAME} and ${NAME:-default}.
var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-([^}]*))?\}`)

// ExpandEnv replaces ${NAME} and ${NAME:-default} references in data using
// lookup. A reference to an unset variable without a default is an error so
// a missing API key fails at startup rather than on the first request.
// Bare $NAME is left alone; prompts may contain dollar signs.
func ExpandEnv(data []byte, lookup func(string) (string, bool)) ([]byte, error) {
	var missing []string
	out := envRef.ReplaceAllFunc(data, func(m []byte) []byte {
		sub := envRef.FindSubmatch(m)
		name := string(sub[1])
		if v, ok := lookup(name); ok {
			return []byte(v)
		}
		if bytes.Contains(m, []byte(":-")) {
			return sub[2]
		}
		if !slices.Contains(missing, name) {
			missing = append(missing, name)
		}
		return nil
	})
	if len(missing) > 0 {
		return nil, fmt.Errorf("config: unset environment variables: %s", strings.Join(missing, ", "))
	}
	return out, nil
}

// Load reads, expands and validates the YAML file at path. File references
// inside the config resolve relative to the file's directory.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	cfg, err := parse(data, filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes and validates a config from r. File references
// resolve relative to the working directory.
func LoadFromReader(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("config: read: %w", err)
	}
	return parse(data, ".")
}

func parse(data []byte, baseDir string) (*Config, error) {
	data, err := ExpandEnv(data, os.LookupEnv)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := resolveFiles(cfg, baseDir); err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// resolveFiles loads *_file references into their inline fields. A file
// wins over the inline prompt; inline texts win over the texts file.
func resolveFiles(cfg *Config, baseDir string) error {
	read := func(name string) (string, error) {
		if !filepath.IsAbs(name) {
			name = filepath.Join(baseDir, name)
		}
		b, err := os.ReadFile(name)
		if err != nil {
			return "", fmt.Errorf("config: read %q: %w", name, err)
		}
		return string(b), nil
	}

	if f := cfg.Conversation.PersonaPromptFile; f != "" {
		s, err := read(f)
		if err != nil {
			return err
		}
		cfg.Conversation.PersonaPrompt = s
	}
	if f := cfg.Safety.ValidatorPromptFile; f != "" {
		s, err := read(f)
		if err != nil {
			return err
		}
		cfg.Safety.ValidatorPrompt = s
	}
	if f := cfg.Safety.TextsFile; f != "" {
		s, err := read(f)
		if err != nil {
			return err
		}
		var fromFile safety.Texts
		dec := yaml.NewDecoder(strings.NewReader(s))
		dec.KnownFields(true)
		if err := dec.Decode(&fromFile); err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("config: decode %q: %w", f, err)
		}
		cfg.Safety.Texts = overlayTexts(fromFile, cfg.Safety.Texts)
	}
	return nil
}

// overlayTexts returns base with every non-empty field of over applied.
func overlayTexts(base, over safety.Texts) safety.Texts {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&base.CrisisTemplate, over.CrisisTemplate)
	set(&base.MediumRiskNote, over.MediumRiskNote)
	set(&base.UnvalidatedNotice, over.UnvalidatedNotice)
	set(&base.RegenerationFailedNotice, over.RegenerationFailedNotice)
	set(&base.ModifyInstructionPrefix, over.ModifyInstructionPrefix)
	return base
}

// Validate checks that cfg is coherent and returns every problem found,
// joined.
func Validate(cfg *Config) error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		add("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel)
	}
	if cfg.Server.MaxBodyBytes < 0 || cfg.Server.MaxAudioBytes < 0 {
		add("server body limits must not be negative")
	}
	if cfg.Server.ShutdownTimeout < 0 {
		add("server.shutdown_timeout must not be negative")
	}
	if tls := cfg.Server.TLS; tls != nil && (tls.CertFile == "" || tls.KeyFile == "") {
		add("server.tls requires both cert_file and key_file")
	}

	if cfg.Providers.LLM.Name == "" {
		add("providers.llm.name is required")
	}
	errs = append(errs, validateEntry("llm", "providers.llm", cfg.Providers.LLM)...)
	errs = append(errs, validateEntry("llm", "providers.validator", cfg.Providers.Validator)...)
	errs = append(errs, validateEntry("stt", "providers.stt", cfg.Providers.STT)...)
	errs = append(errs, validateEntry("tts", "providers.tts", cfg.Providers.TTS)...)

	if cfg.Providers.Validator.Name == "" && cfg.Providers.Validator.Model != "" {
		slog.Warn("providers.validator.model is set without a name; the conversation provider is reused with its own model")
	}

	conv := cfg.Conversation
	if t := conv.Temperature; t != nil && (*t < 0 || *t > 2) {
		add("conversation.temperature %.2f is out of range [0, 2]", *t)
	}
	if conv.MaxTokens < 0 {
		add("conversation.max_tokens must not be negative")
	}
	if conv.TurnTimeout < 0 {
		add("conversation.turn_timeout must not be negative")
	}

	if cfg.Safety.MaxTokens < 0 {
		add("safety.max_tokens must not be negative")
	}
	if n := cfg.Safety.ContextTurns; n != nil && *n < 0 {
		add("safety.context_turns must not be negative")
	}
	if err := cfg.Safety.Texts.WithDefaults().Validate(); err != nil {
		errs = append(errs, err)
	}

	if cfg.Providers.TTS.Name != "" && cfg.Speech.Primary.ID == "" {
		add("speech.primary.id is required when providers.tts is configured")
	}
	if cfg.Speech.Fallback.ID != "" && cfg.Speech.Fallback == cfg.Speech.Primary {
		slog.Warn("speech.fallback is the same voice as speech.primary; no alternate voice will be tried")
	}

	if cfg.Audit.MaxConns < 0 {
		add("audit.max_conns must not be negative")
	}
	if r := cfg.Telemetry.TraceSampleRatio; r != nil && (*r < 0 || *r > 1) {
		add("telemetry.trace_sample_ratio %.2f is out of range [0, 1]", *r)
	}

	if cfg.Audit.PostgresDSN == "" {
		slog.Warn("audit.postgres_dsn is empty; safety events are only logged and the review endpoint is disabled")
	} else if cfg.Server.ReviewToken == "" {
		slog.Warn("server.review_token is empty; the safety event review endpoint is disabled")
	}
	return errors.Join(errs...)
}

// validateEntry checks an entry and its fallbacks. Unknown names only warn:
// a third-party build may register more providers.
func validateEntry(kind, path string, e ProviderEntry) []error {
	var errs []error
	warnUnknownProvider(kind, e.Name)
	if e.Name == "" && len(e.Fallbacks) > 0 {
		errs = append(errs, fmt.Errorf("%s.fallbacks requires %s.name", path, path))
	}
	for i, fb := range e.Fallbacks {
		p := fmt.Sprintf("%s.fallbacks[%d]", path, i)
		if fb.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", p))
		}
		if len(fb.Fallbacks) > 0 {
			errs = append(errs, fmt.Errorf("%s.fallbacks must not be nested", p))
		}
		warnUnknownProvider(kind, fb.Name)
	}
	return errs
}

func warnUnknownProvider(kind, name string) {
	if name == "" || slices.Contains(ValidProviderNames[kind], name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", ValidProviderNames[kind],
	)
}
