package app

import (
	"context"
	"fmt"

	"github.com/rafiqhealth/rafiq/internal/config"
	"github.com/rafiqhealth/rafiq/internal/observe"
	"github.com/rafiqhealth/rafiq/internal/pipeline"
	"github.com/rafiqhealth/rafiq/internal/resilience"
	"github.com/rafiqhealth/rafiq/pkg/provider/llm"
	"github.com/rafiqhealth/rafiq/pkg/provider/stt"
	"github.com/rafiqhealth/rafiq/pkg/provider/tts"
)

// Providers holds one interface value per provider slot. Nil STT or TTS
// disables audio input or speech output.
type Providers struct {
	LLM       llm.Provider
	Validator llm.Provider
	STT       stt.Provider
	TTS       tts.Provider

	// Names labels provider metrics. Filled by [BuildProviders]; blank
	// fields fall back to the pipeline defaults.
	Names pipeline.ProviderNames
}

// BuildProviders creates every configured provider through reg. Entries with
// fallbacks are wrapped in a resilience group so each backend sits behind
// its own circuit breaker. A validator entry without a name reuses the
// conversation provider.
func BuildProviders(reg *config.Registry, cfg config.ProvidersConfig, m *observe.Metrics) (*Providers, error) {
	if m == nil {
		m = observe.DefaultMetrics()
	}
	p := &Providers{}

	var err error
	if p.LLM, err = buildLLM(reg, cfg.LLM, m); err != nil {
		return nil, err
	}
	p.Names.LLM = cfg.LLM.Name

	if cfg.Validator.Name == "" {
		p.Validator = p.LLM
		p.Names.Validator = cfg.LLM.Name
	} else {
		if p.Validator, err = buildLLM(reg, cfg.Validator, m); err != nil {
			return nil, err
		}
		p.Names.Validator = cfg.Validator.Name
	}

	if cfg.STT.Name != "" {
		if p.STT, err = buildSTT(reg, cfg.STT, m); err != nil {
			return nil, err
		}
		p.Names.STT = cfg.STT.Name
	}
	if cfg.TTS.Name != "" {
		if p.TTS, err = buildTTS(reg, cfg.TTS, m); err != nil {
			return nil, err
		}
		p.Names.TTS = cfg.TTS.Name
	}
	return p, nil
}

func fallbackConfig(kind string, m *observe.Metrics) resilience.FallbackConfig {
	return resilience.FallbackConfig{
		OnError: func(provider string, _ error) {
			m.RecordProviderError(context.Background(), provider, kind)
		},
	}
}

func buildLLM(reg *config.Registry, e config.ProviderEntry, m *observe.Metrics) (llm.Provider, error) {
	primary, err := reg.CreateLLM(e)
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	if len(e.Fallbacks) == 0 {
		return primary, nil
	}
	group := resilience.NewLLMFallback(primary, e.Name, fallbackConfig(observe.StageLLM, m))
	for _, fb := range e.Fallbacks {
		p, err := reg.CreateLLM(fb)
		if err != nil {
			return nil, fmt.Errorf("app: llm fallback: %w", err)
		}
		group.AddFallback(fb.Name, p)
	}
	return group, nil
}

func buildSTT(reg *config.Registry, e config.ProviderEntry, m *observe.Metrics) (stt.Provider, error) {
	primary, err := reg.CreateSTT(e)
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	if len(e.Fallbacks) == 0 {
		return primary, nil
	}
	group := resilience.NewSTTFallback(primary, e.Name, fallbackConfig(observe.StageSTT, m))
	for _, fb := range e.Fallbacks {
		p, err := reg.CreateSTT(fb)
		if err != nil {
			return nil, fmt.Errorf("app: stt fallback: %w", err)
		}
		group.AddFallback(fb.Name, p)
	}
	return group, nil
}

func buildTTS(reg *config.Registry, e config.ProviderEntry, m *observe.Metrics) (tts.Provider, error) {
	primary, err := reg.CreateTTS(e)
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	if len(e.Fallbacks) == 0 {
		return primary, nil
	}
	group := resilience.NewTTSFallback(primary, e.Name, fallbackConfig(observe.StageTTS, m))
	for _, fb := range e.Fallbacks {
		p, err := reg.CreateTTS(fb)
		if err != nil {
			return nil, fmt.Errorf("app: tts fallback: %w", err)
		}
		group.AddFallback(fb.Name, p)
	}
	return group, nil
}
