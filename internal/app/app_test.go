package app_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/rafiqhealth/rafiq/internal/app"
	"github.com/rafiqhealth/rafiq/internal/audit"
	auditmock "github.com/rafiqhealth/rafiq/internal/audit/mock"
	"github.com/rafiqhealth/rafiq/internal/config"
	"github.com/rafiqhealth/rafiq/internal/health"
	"github.com/rafiqhealth/rafiq/internal/observe"
	"github.com/rafiqhealth/rafiq/internal/safety"
	"github.com/rafiqhealth/rafiq/pkg/provider/llm"
	llmmock "github.com/rafiqhealth/rafiq/pkg/provider/llm/mock"
	"github.com/rafiqhealth/rafiq/pkg/provider/stt"
	sttmock "github.com/rafiqhealth/rafiq/pkg/provider/stt/mock"
	"github.com/rafiqhealth/rafiq/pkg/provider/tts"
	ttsmock "github.com/rafiqhealth/rafiq/pkg/provider/tts/mock"
)

const (
	verdictProceed = `{"crisis_risk":"LOW","crisis_indicators":[],"cultural_sensitivity":"APPROPRIATE",` +
		`"therapeutic_quality":8,"recommended_action":"PROCEED","modifications_needed":null,"emergency_trigger":false}`
	verdictEmergency = `{"crisis_risk":"HIGH","crisis_indicators":["plan"],"cultural_sensitivity":"APPROPRIATE",` +
		`"therapeutic_quality":2,"recommended_action":"CRISIS_INTERVENTION","modifications_needed":null,"emergency_trigger":true}`
)

// testConfig returns a minimal valid config with both voices set.
func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			ListenAddr: "127.0.0.1:0",
			LogLevel:   config.LogInfo,
		},
		Providers: config.ProvidersConfig{
			LLM: config.ProviderEntry{Name: "mock"},
			TTS: config.ProviderEntry{Name: "mock"},
		},
		Speech: config.SpeechConfig{
			Primary:  config.VoiceConfig{ID: "Zeina", Locale: "arb"},
			Fallback: config.VoiceConfig{ID: "Hala", Locale: "ar-AE"},
		},
	}
}

type fixture struct {
	conv     *llmmock.Provider
	judge    *llmmock.Provider
	tts      *ttsmock.Provider
	recorder *auditmock.Recorder
	app      *app.App
}

func newFixture(t *testing.T, cfg *config.Config, opts ...app.Option) *fixture {
	t.Helper()
	f := &fixture{
		conv:     &llmmock.Provider{CompleteResponse: &llm.CompletionResponse{Content: "I'm here with you."}},
		judge:    &llmmock.Provider{CompleteResponse: &llm.CompletionResponse{Content: verdictProceed}},
		tts:      &ttsmock.Provider{Audio: &tts.Audio{Data: []byte("mp3"), ContentType: "audio/mpeg"}},
		recorder: &auditmock.Recorder{},
	}

	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewManualReader()))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	metrics, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	providers := &app.Providers{LLM: f.conv, Validator: f.judge, TTS: f.tts}
	base := []app.Option{app.WithRecorder(f.recorder), app.WithMetrics(metrics)}
	a, err := app.New(context.Background(), cfg, providers, append(base, opts...)...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = a.Shutdown(context.Background()) })
	f.app = a
	return f
}

func (f *fixture) chat(t *testing.T, user string) (int, map[string]any) {
	t.Helper()
	body := []byte(`{"history":[],"user":` + mustJSON(t, user) + `}`)
	rec := httptest.NewRecorder()
	f.app.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/chat", bytes.NewReader(body)))
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return rec.Code, out
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	return string(b)
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	if _, err := app.New(ctx, nil, &app.Providers{LLM: &llmmock.Provider{}}); err == nil {
		t.Error("expected error for nil config")
	}
	if _, err := app.New(ctx, testConfig(), &app.Providers{}); err == nil {
		t.Error("expected error without an llm provider")
	}
}

func TestNew_RequiresPrimaryVoiceWithTTS(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Speech = config.SpeechConfig{}
	providers := &app.Providers{LLM: &llmmock.Provider{}, TTS: &ttsmock.Provider{}}
	_, err := app.New(context.Background(), cfg, providers, app.WithRecorder(&auditmock.Recorder{}))
	if err == nil {
		t.Fatal("expected error when tts is configured without a primary voice")
	}
}

func TestApp_ChatRoundTrip(t *testing.T) {
	t.Parallel()

	f := newFixture(t, testConfig())
	code, out := f.chat(t, "I feel tired lately")
	if code != http.StatusOK {
		t.Fatalf("status = %d, body %v", code, out)
	}
	if out["reply"] != "I'm here with you." {
		t.Errorf("reply = %v", out["reply"])
	}
	if out["audio"] == "" {
		t.Error("audio is empty")
	}
	if out["outcome"] != string(safety.OutcomeProceed) {
		t.Errorf("outcome = %v", out["outcome"])
	}
	if got := len(f.recorder.Events()); got != 0 {
		t.Errorf("recorded %d events for a safe turn", got)
	}
}

func TestApp_CrisisIsRecorded(t *testing.T) {
	t.Parallel()

	f := newFixture(t, testConfig())
	f.judge.CompleteResponse = &llm.CompletionResponse{Content: verdictEmergency}

	code, out := f.chat(t, "I have a plan")
	if code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if out["crisis"] != true {
		t.Errorf("crisis = %v, want true", out["crisis"])
	}
	events := f.recorder.Events()
	if len(events) != 1 || events[0].Action != safety.ActionCrisisIntervention {
		t.Fatalf("events = %+v, want one crisis intervention", events)
	}
}

func TestApp_HealthChecks(t *testing.T) {
	t.Parallel()

	failing := health.Checker{Name: "audit_store", Check: func(context.Context) error { return errors.New("down") }}
	f := newFixture(t, testConfig(), app.WithHealthChecker(failing))

	rec := httptest.NewRecorder()
	f.app.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("/readyz status = %d, want 503", rec.Code)
	}

	rec = httptest.NewRecorder()
	f.app.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("/healthz status = %d, want 200", rec.Code)
	}
}

func TestApp_SafetyEventsWithoutStore(t *testing.T) {
	t.Parallel()

	f := newFixture(t, testConfig())
	rec := httptest.NewRecorder()
	f.app.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/safety-events", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404 without an event store", rec.Code)
	}
}

// staticLister serves a fixed event list.
type staticLister []audit.Event

func (l staticLister) List(context.Context, audit.Filter) ([]audit.Event, error) {
	return l, nil
}

func TestApp_SafetyEventsNeedReviewToken(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Server.ReviewToken = "s3cret"
	events := staticLister{{TurnID: "t-1", Action: safety.ActionCrisisIntervention, UserInput: "private words"}}
	f := newFixture(t, cfg, app.WithEventLister(events))

	rec := httptest.NewRecorder()
	f.app.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/safety-events", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("unauthenticated status = %d, want 401", rec.Code)
	}
	if bytes.Contains(rec.Body.Bytes(), []byte("private words")) {
		t.Error("event content served without a token")
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/safety-events", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	rec = httptest.NewRecorder()
	f.app.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("authenticated status = %d, want 200", rec.Code)
	}
}

func TestApp_TranscribeNotConfigured(t *testing.T) {
	t.Parallel()

	f := newFixture(t, testConfig())
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/transcribe", bytes.NewReader(nil))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=x")
	f.app.Handler().ServeHTTP(rec, req)
	if rec.Code == http.StatusOK {
		t.Errorf("status = 200, want an error without an stt provider")
	}
}

func TestApp_Reload(t *testing.T) {
	t.Parallel()

	f := newFixture(t, testConfig())
	if _, out := f.chat(t, "hello"); out["reply"] == nil {
		t.Fatal("first turn failed")
	}

	next := testConfig()
	next.Conversation.PersonaPrompt = "You are a calm listener."
	next.Providers.LLM.Name = "other"
	d := config.Diff(f.app.Config(), next)
	if err := f.app.Reload(next, d); err != nil {
		t.Fatalf("Reload: %v", err)
	}

	f.conv.Reset()
	if code, _ := f.chat(t, "hello again"); code != http.StatusOK {
		t.Fatalf("status after reload = %d", code)
	}
	calls := f.conv.Calls()
	if len(calls) != 1 {
		t.Fatalf("conversation calls = %d, want 1", len(calls))
	}
	if got := calls[0].Req.Messages[0].Content; got != "You are a calm listener." {
		t.Errorf("system prompt = %q, want reloaded persona", got)
	}
	if got := f.app.Config().Providers.LLM.Name; got != "mock" {
		t.Errorf("providers section = %q, reload must not apply restart-only sections", got)
	}
}

func TestApp_ReloadIgnoresRestartOnlyChanges(t *testing.T) {
	t.Parallel()

	f := newFixture(t, testConfig())
	before := f.app.Config()

	next := testConfig()
	next.Server.ListenAddr = "127.0.0.1:9999"
	if err := f.app.Reload(next, config.Diff(before, next)); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if f.app.Config() != before {
		t.Error("config replaced for a change that needs a restart")
	}
}

func TestApp_RunStopsOnCancel(t *testing.T) {
	t.Parallel()

	f := newFixture(t, testConfig())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.app.Run(ctx) }()
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestShutdown_Idempotent(t *testing.T) {
	t.Parallel()

	f := newFixture(t, testConfig())
	if err := f.app.Shutdown(context.Background()); err != nil {
		t.Fatalf("first Shutdown: %v", err)
	}
	if err := f.app.Shutdown(context.Background()); err != nil {
		t.Fatalf("second Shutdown: %v", err)
	}
}

// ---- BuildProviders ---------------------------------------------------------

func registry(llms map[string]llm.Provider) *config.Registry {
	reg := config.NewRegistry()
	for name, p := range llms {
		reg.RegisterLLM(name, func(config.ProviderEntry) (llm.Provider, error) { return p, nil })
	}
	reg.RegisterSTT("mock", func(config.ProviderEntry) (stt.Provider, error) { return &sttmock.Provider{}, nil })
	reg.RegisterTTS("mock", func(config.ProviderEntry) (tts.Provider, error) { return &ttsmock.Provider{}, nil })
	return reg
}

func TestBuildProviders_ValidatorReusesConversation(t *testing.T) {
	t.Parallel()

	conv := &llmmock.Provider{}
	reg := registry(map[string]llm.Provider{"openai": conv})
	p, err := app.BuildProviders(reg, config.ProvidersConfig{
		LLM: config.ProviderEntry{Name: "openai"},
		STT: config.ProviderEntry{Name: "mock"},
	}, nil)
	if err != nil {
		t.Fatalf("BuildProviders: %v", err)
	}
	if p.Validator != llm.Provider(conv) {
		t.Error("validator should reuse the conversation provider")
	}
	if p.STT == nil {
		t.Error("stt not built")
	}
	if p.TTS != nil {
		t.Error("tts built without config")
	}
	if p.Names.Validator != "openai" {
		t.Errorf("validator name = %q", p.Names.Validator)
	}
}

func TestBuildProviders_Fallback(t *testing.T) {
	t.Parallel()

	primary := &llmmock.Provider{CompleteErr: errors.New("503")}
	backup := &llmmock.Provider{CompleteResponse: &llm.CompletionResponse{Content: "from backup"}}
	reg := registry(map[string]llm.Provider{"openai": primary, "anthropic": backup})

	p, err := app.BuildProviders(reg, config.ProvidersConfig{
		LLM: config.ProviderEntry{
			Name:      "openai",
			Fallbacks: []config.ProviderEntry{{Name: "anthropic"}},
		},
	}, nil)
	if err != nil {
		t.Fatalf("BuildProviders: %v", err)
	}
	resp, err := p.LLM.Complete(context.Background(), llm.CompletionRequest{})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Content != "from backup" {
		t.Errorf("content = %q, want from backup", resp.Content)
	}
	if len(primary.Calls()) != 1 || len(backup.Calls()) != 1 {
		t.Errorf("calls primary=%d backup=%d, want 1 each", len(primary.Calls()), len(backup.Calls()))
	}
}

func TestBuildProviders_Unregistered(t *testing.T) {
	t.Parallel()

	reg := registry(map[string]llm.Provider{"openai": &llmmock.Provider{}})
	cases := []struct {
		name string
		cfg  config.ProvidersConfig
	}{
		{"llm", config.ProvidersConfig{LLM: config.ProviderEntry{Name: "nope"}}},
		{"validator", config.ProvidersConfig{
			LLM:       config.ProviderEntry{Name: "openai"},
			Validator: config.ProviderEntry{Name: "nope"},
		}},
		{"fallback", config.ProvidersConfig{LLM: config.ProviderEntry{
			Name:      "openai",
			Fallbacks: []config.ProviderEntry{{Name: "nope"}},
		}}},
		{"tts", config.ProvidersConfig{
			LLM: config.ProviderEntry{Name: "openai"},
			TTS: config.ProviderEntry{Name: "nope"},
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := app.BuildProviders(reg, tc.cfg, nil)
			if !errors.Is(err, config.ErrProviderNotRegistered) {
				t.Errorf("err = %v, want ErrProviderNotRegistered", err)
			}
		})
	}
}
