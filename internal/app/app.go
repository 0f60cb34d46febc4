// Package app wires the rafiq subsystems into a running service.
//
// New builds the audit sinks, the safety pipeline and the HTTP API from a
// validated config and a set of providers. Run serves HTTP until its context
// is cancelled and Shutdown releases what New acquired. Reload swaps in a
// pipeline built from an edited config without dropping in-flight turns.
//
// Tests inject doubles through the functional options; when an option is not
// given, New creates the real implementation from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rafiqhealth/rafiq/internal/api"
	"github.com/rafiqhealth/rafiq/internal/audit"
	"github.com/rafiqhealth/rafiq/internal/audit/natspub"
	"github.com/rafiqhealth/rafiq/internal/audit/postgres"
	"github.com/rafiqhealth/rafiq/internal/config"
	"github.com/rafiqhealth/rafiq/internal/health"
	"github.com/rafiqhealth/rafiq/internal/observe"
	"github.com/rafiqhealth/rafiq/internal/pipeline"
	"github.com/rafiqhealth/rafiq/internal/safety"
	"github.com/rafiqhealth/rafiq/pkg/provider/stt"
	"github.com/rafiqhealth/rafiq/pkg/provider/tts"
)

const (
	defaultShutdownTimeout = 15 * time.Second
	readHeaderTimeout      = 10 * time.Second
)

// App owns every subsystem lifetime.
type App struct {
	providers *Providers
	metrics   *observe.Metrics

	metricsHandler http.Handler
	recorders      []audit.Recorder
	lister         audit.Lister
	checkers       []health.Checker

	mu  sync.Mutex
	cfg *config.Config

	pipe   atomic.Pointer[pipeline.Pipeline]
	server *api.Server

	// closers run in order during Shutdown.
	closers  []func() error
	stopOnce sync.Once
}

// Option is a functional option for New.
type Option func(*App)

// WithRecorder adds an audit recorder. When any recorder is injected, New
// does not connect to the configured PostgreSQL store or NATS server.
func WithRecorder(r audit.Recorder) Option {
	return func(a *App) { a.recorders = append(a.recorders, r) }
}

// WithEventLister serves /api/v1/safety-events from l.
func WithEventLister(l audit.Lister) Option {
	return func(a *App) { a.lister = l }
}

// WithMetrics sets the instruments shared by the pipeline and the API.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithMetricsHandler exposes h at /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(a *App) { a.metricsHandler = h }
}

// WithHealthChecker adds a readiness check.
func WithHealthChecker(c health.Checker) Option {
	return func(a *App) { a.checkers = append(a.checkers, c) }
}

// turner forwards to whichever pipeline is current, so a reload never
// rebuilds the router.
type turner struct {
	pipe *atomic.Pointer[pipeline.Pipeline]
}

func (t turner) Run(ctx context.Context, req pipeline.TurnRequest) (*pipeline.Result, error) {
	return t.pipe.Load().Run(ctx, req)
}

func (t turner) Transcribe(ctx context.Context, req stt.Request) (*stt.Transcript, error) {
	return t.pipe.Load().Transcribe(ctx, req)
}

var _ api.Turner = turner{}

// New wires the application. cfg must already be validated.
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, errors.New("app: config must not be nil")
	}
	if providers == nil || providers.LLM == nil {
		return nil, errors.New("app: an llm provider is required")
	}
	if providers.Validator == nil {
		providers.Validator = providers.LLM
	}

	a := &App{cfg: cfg, providers: providers}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	if err := a.initAudit(ctx); err != nil {
		a.close()
		return nil, fmt.Errorf("app: init audit: %w", err)
	}

	p, err := a.buildPipeline(cfg)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("app: build pipeline: %w", err)
	}
	a.pipe.Store(p)

	apiOpts := []api.Option{
		api.WithHealth(health.New(a.checkers...)),
		api.WithMetrics(a.metrics),
		api.WithCORSOrigins(cfg.Server.CORSOrigins...),
		api.WithReviewToken(cfg.Server.ReviewToken),
		api.WithBodyLimits(cfg.Server.MaxBodyBytes, cfg.Server.MaxAudioBytes),
	}
	if a.lister != nil {
		apiOpts = append(apiOpts, api.WithEventLister(a.lister))
	}
	if a.metricsHandler != nil {
		apiOpts = append(apiOpts, api.WithMetricsHandler(a.metricsHandler))
	}
	a.server = api.NewServer(turner{pipe: &a.pipe}, apiOpts...)

	return a, nil
}

// initAudit assembles the recorder chain. Events always go to the log;
// PostgreSQL and NATS are added when configured and nothing was injected.
func (a *App) initAudit(ctx context.Context) error {
	injected := len(a.recorders) > 0
	a.recorders = append([]audit.Recorder{audit.NewLogRecorder(nil)}, a.recorders...)
	if injected {
		return nil
	}

	if dsn := a.cfg.Audit.PostgresDSN; dsn != "" {
		var opts []postgres.Option
		if n := a.cfg.Audit.MaxConns; n > 0 {
			opts = append(opts, postgres.WithMaxConns(n))
		}
		store, err := postgres.NewStore(ctx, dsn, opts...)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, func() error {
			store.Close()
			return nil
		})
		a.recorders = append(a.recorders, store)
		if a.lister == nil {
			a.lister = store
		}
		a.checkers = append(a.checkers, health.Checker{Name: "audit_store", Check: store.Ping})
	}

	if url := a.cfg.Audit.NATS.URL; url != "" {
		pub, err := natspub.Connect(url, natspub.WithPrefix(a.cfg.Audit.NATS.SubjectPrefix))
		if err != nil {
			return err
		}
		a.closers = append(a.closers, func() error {
			pub.Close()
			return nil
		})
		a.recorders = append(a.recorders, pub)
		a.checkers = append(a.checkers, health.Checker{
			Name:     "nats",
			Optional: true,
			Check: func(context.Context) error {
				if !pub.Connected() {
					return errors.New("not connected")
				}
				return nil
			},
		})
	}
	return nil
}

// buildPipeline creates a pipeline for cfg around the shared providers and
// recorders.
func (a *App) buildPipeline(cfg *config.Config) (*pipeline.Pipeline, error) {
	vopts := []safety.ValidatorOption{
		safety.WithValidatorPrompt(cfg.Safety.ValidatorPrompt),
		safety.WithValidatorMaxTokens(cfg.Safety.MaxTokens),
	}
	if n := cfg.Safety.ContextTurns; n != nil {
		vopts = append(vopts, safety.WithContextTurns(*n))
	}
	validator, err := safety.NewValidator(a.providers.Validator, vopts...)
	if err != nil {
		return nil, err
	}

	temperature := 0.7
	if t := cfg.Conversation.Temperature; t != nil {
		temperature = *t
	}

	opts := []pipeline.Option{
		pipeline.WithPersonaPrompt(cfg.Conversation.PersonaPrompt),
		pipeline.WithSampling(temperature, cfg.Conversation.MaxTokens),
		pipeline.WithEngine(safety.NewEngine(cfg.Safety.Texts)),
		pipeline.WithRecorder(audit.Multi(a.recorders)),
		pipeline.WithMetrics(a.metrics),
		pipeline.WithTurnTimeout(cfg.Conversation.TurnTimeout),
		pipeline.WithProviderNames(a.providerNames()),
	}
	if a.providers.STT != nil {
		opts = append(opts, pipeline.WithTranscriber(a.providers.STT,
			cfg.Transcription.Language, cfg.Transcription.AlternateLanguages...))
	}
	if a.providers.TTS != nil {
		sp, err := pipeline.NewSpeaker(a.providers.TTS,
			tts.Voice{ID: cfg.Speech.Primary.ID, Locale: cfg.Speech.Primary.Locale},
			tts.Voice{ID: cfg.Speech.Fallback.ID, Locale: cfg.Speech.Fallback.Locale},
		)
		if err != nil {
			return nil, err
		}
		opts = append(opts, pipeline.WithSpeaker(sp))
	}
	return pipeline.New(a.providers.LLM, validator, opts...)
}

func (a *App) providerNames() pipeline.ProviderNames {
	n := a.providers.Names
	for _, f := range []struct {
		v   *string
		def string
	}{
		{&n.LLM, "llm"},
		{&n.Validator, "validator"},
		{&n.STT, "stt"},
		{&n.TTS, "tts"},
	} {
		if *f.v == "" {
			*f.v = f.def
		}
	}
	return n
}

// Handler returns the HTTP API.
func (a *App) Handler() http.Handler { return a.server }

// Config returns the config the current pipeline was built from.
func (a *App) Config() *config.Config {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cfg
}

// Reload rebuilds the pipeline from cfg when d contains a change that can be
// applied live. Turns already running finish on the pipeline they started
// with. Sections that need a restart are logged and otherwise ignored.
func (a *App) Reload(cfg *config.Config, d config.ConfigDiff) error {
	for _, section := range d.RestartRequired {
		slog.Warn("config section changed, restart required to apply", "section", section)
	}
	if !d.Reloadable() {
		return nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	// Provider and speech changes need a restart, so only the reloadable
	// sections are taken from the new config.
	next := *a.cfg
	next.Conversation = cfg.Conversation
	next.Safety = cfg.Safety
	next.Transcription = cfg.Transcription

	p, err := a.buildPipeline(&next)
	if err != nil {
		return fmt.Errorf("app: reload: %w", err)
	}
	a.pipe.Store(p)
	a.cfg = &next
	slog.Info("pipeline reloaded",
		"conversation", d.ConversationChanged,
		"safety", d.SafetyChanged,
		"transcription", d.TranscriptionChanged,
	)
	return nil
}

// Run serves HTTP on the configured address until ctx is cancelled, then
// drains open requests within the shutdown timeout.
func (a *App) Run(ctx context.Context) error {
	cfg := a.Config().Server
	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           a.server,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("http server listening", "addr", cfg.ListenAddr, "tls", cfg.TLS != nil)
		var err error
		if cfg.TLS != nil {
			err = srv.ListenAndServeTLS(cfg.TLS.CertFile, cfg.TLS.KeyFile)
		} else {
			err = srv.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("app: http server: %w", err)
	})
	g.Go(func() error {
		<-gctx.Done()
		timeout := cfg.ShutdownTimeout
		if timeout <= 0 {
			timeout = defaultShutdownTimeout
		}
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			return fmt.Errorf("app: http shutdown: %w", err)
		}
		return nil
	})
	return g.Wait()
}

// Shutdown releases the audit sinks in reverse-init order. It respects the
// context deadline: closers not reached before ctx expires are skipped.
func (a *App) Shutdown(ctx context.Context) error {
	var err error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))
		done := make(chan error, 1)
		go func() { done <- a.runClosers() }()
		select {
		case err = <-done:
		case <-ctx.Done():
			err = ctx.Err()
		}
	})
	return err
}

func (a *App) runClosers() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// close is used when New fails part way.
func (a *App) close() {
	if err := a.runClosers(); err != nil {
		slog.Warn("cleanup after failed init", "err", err)
	}
}
