// Package pipeline runs one chat turn end to end: optional transcription,
// the conversation model, the safety validator, the decision engine, at
// most one corrective regeneration, and speech synthesis with one voice
// fallback.
//
// A turn is stateless and strictly sequential. Only transcription and
// conversation-model failures abort it; every other failure degrades the
// reply and is recorded as a safety event.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/rafiqhealth/rafiq/internal/audit"
	"github.com/rafiqhealth/rafiq/internal/observe"
	"github.com/rafiqhealth/rafiq/internal/safety"
	"github.com/rafiqhealth/rafiq/pkg/provider/llm"
	"github.com/rafiqhealth/rafiq/pkg/provider/stt"
	"github.com/rafiqhealth/rafiq/pkg/provider/tts"
	"github.com/rafiqhealth/rafiq/pkg/types"
)

const (
	defaultTemperature = 0.7
	defaultMaxTokens   = 512
	defaultLanguage    = "ar-OM"

	// recordTimeout bounds audit writes, which run detached from the turn's
	// own deadline so a timed-out turn still leaves its trail.
	recordTimeout = 5 * time.Second
)

// Result is the outcome of one turn.
type Result struct {
	TurnID string

	// Transcript is the recognised text when the turn carried audio.
	Transcript string

	FinalReply string

	// Audio is nil when synthesis was not configured or every voice failed.
	Audio *tts.Audio
	Voice tts.Voice

	CrisisLogged bool

	// UsedFallback marks a degraded reply: unvalidated or regeneration failed.
	UsedFallback bool

	Outcome              safety.Outcome
	SafetyNote           string
	CrisisIndicators     []string
	ModificationsApplied bool

	// Verdict is nil when the validator failed; ValidatorError then holds
	// the reason.
	Verdict        *safety.Verdict
	ValidatorError string
}

// ProviderNames label provider metrics.
type ProviderNames struct {
	LLM       string
	Validator string
	STT       string
	TTS       string
}

// Option configures a [Pipeline].
type Option func(*Pipeline)

// WithPersonaPrompt replaces [DefaultPersonaPrompt].
func WithPersonaPrompt(prompt string) Option {
	return func(p *Pipeline) {
		if prompt != "" {
			p.persona = prompt
		}
	}
}

// WithSampling sets temperature and max tokens for the conversation and
// regeneration calls.
func WithSampling(temperature float64, maxTokens int) Option {
	return func(p *Pipeline) {
		p.temperature = temperature
		if maxTokens > 0 {
			p.maxTokens = maxTokens
		}
	}
}

// WithEngine replaces the decision engine (for custom text assets).
func WithEngine(e *safety.Engine) Option {
	return func(p *Pipeline) {
		if e != nil {
			p.engine = e
		}
	}
}

// WithTranscriber enables audio turns and [Pipeline.Transcribe]. language
// is the primary recognition hint; alternates are passed as secondary
// languages.
func WithTranscriber(s stt.Provider, language string, alternates ...string) Option {
	return func(p *Pipeline) {
		p.stt = s
		if language != "" {
			p.language = language
		}
		p.alternates = alternates
	}
}

// WithSpeaker enables speech synthesis of the final reply.
func WithSpeaker(s *Speaker) Option {
	return func(p *Pipeline) {
		p.speaker = s
	}
}

// WithRecorder sets where safety events go. Default: an [audit.LogRecorder].
func WithRecorder(r audit.Recorder) Option {
	return func(p *Pipeline) {
		if r != nil {
			p.recorder = r
		}
	}
}

// WithMetrics sets the metric instruments. Default: observe.DefaultMetrics.
func WithMetrics(m *observe.Metrics) Option {
	return func(p *Pipeline) {
		if m != nil {
			p.metrics = m
		}
	}
}

// WithTurnTimeout bounds a whole turn. Zero means no bound.
func WithTurnTimeout(d time.Duration) Option {
	return func(p *Pipeline) {
		p.turnTimeout = d
	}
}

// WithProviderNames sets the labels used on provider metrics.
func WithProviderNames(n ProviderNames) Option {
	return func(p *Pipeline) {
		p.names = n
	}
}

// withClock is used by tests to pin timestamps.
func withClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		p.now = now
	}
}

// Pipeline orchestrates turns. It holds only configuration and injected
// providers, so one Pipeline serves concurrent turns.
type Pipeline struct {
	conversation llm.Provider
	validator    *safety.Validator
	engine       *safety.Engine
	regenerator  *Regenerator
	stt          stt.Provider
	speaker      *Speaker
	recorder     audit.Recorder
	metrics      *observe.Metrics

	persona     string
	temperature float64
	maxTokens   int
	language    string
	alternates  []string
	turnTimeout time.Duration
	names       ProviderNames
	now         func() time.Time
}

// New returns a Pipeline drafting with conversation and checking drafts
// with validator.
func New(conversation llm.Provider, validator *safety.Validator, opts ...Option) (*Pipeline, error) {
	if conversation == nil {
		return nil, errors.New("pipeline: conversation provider must not be nil")
	}
	if validator == nil {
		return nil, errors.New("pipeline: validator must not be nil")
	}
	p := &Pipeline{
		conversation: conversation,
		validator:    validator,
		engine:       safety.NewEngine(safety.DefaultTexts()),
		persona:      DefaultPersonaPrompt,
		temperature:  defaultTemperature,
		maxTokens:    defaultMaxTokens,
		language:     defaultLanguage,
		names:        ProviderNames{LLM: "llm", Validator: "validator", STT: "stt", TTS: "tts"},
		now:          time.Now,
	}
	for _, o := range opts {
		o(p)
	}
	if p.recorder == nil {
		p.recorder = audit.NewLogRecorder(nil)
	}
	if p.metrics == nil {
		p.metrics = observe.DefaultMetrics()
	}
	p.regenerator = NewRegenerator(conversation, p.engine, p.temperature, p.maxTokens)
	return p, nil
}

// CanTranscribe reports whether audio input is supported.
func (p *Pipeline) CanTranscribe() bool { return p.stt != nil }

// Transcribe runs speech recognition alone, applying the configured
// language hints when req carries none.
func (p *Pipeline) Transcribe(ctx context.Context, req stt.Request) (*stt.Transcript, error) {
	if p.stt == nil {
		return nil, fmt.Errorf("%w: speech-to-text", ErrNotConfigured)
	}
	if req.Language == "" {
		req.Language = p.language
	}
	if req.AlternateLanguages == nil {
		req.AlternateLanguages = p.alternates
	}

	ctx, span := observe.StartSpan(ctx, "pipeline.stt")
	defer span.End()
	start := time.Now()
	tr, err := p.stt.Transcribe(ctx, req)
	p.metrics.STTDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		p.providerError(ctx, span, p.names.STT, observe.StageSTT, err)
		if errors.Is(err, stt.ErrEmptyAudio) {
			return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrTranscription, err)
	}
	p.metrics.RecordProviderRequest(ctx, p.names.STT, observe.StageSTT, "ok")
	return tr, nil
}

// Run executes one turn. The returned error is non-nil only for
// [ErrInvalidRequest], [ErrTranscription], [ErrNotConfigured] and
// [ErrModel]; every safety branch yields a Result.
func (p *Pipeline) Run(ctx context.Context, req TurnRequest) (*Result, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	if p.turnTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.turnTimeout)
		defer cancel()
	}

	turnID := uuid.NewString()
	ctx = observe.WithLogAttrs(ctx, "turn_id", turnID)
	ctx, span := observe.StartSpan(ctx, "pipeline.turn", trace.WithAttributes(attribute.String("turn_id", turnID)))
	defer span.End()

	start := time.Now()
	p.metrics.ActiveTurns.Add(ctx, 1)
	defer func() {
		p.metrics.ActiveTurns.Add(ctx, -1)
		p.metrics.TurnDuration.Record(ctx, time.Since(start).Seconds())
	}()
	log := observe.Logger(ctx)

	res := &Result{TurnID: turnID}
	userText := req.UserText
	if req.Audio != nil {
		tr, err := p.Transcribe(ctx, *req.Audio)
		if err != nil {
			span.SetStatus(codes.Error, "transcription failed")
			return nil, err
		}
		if strings.TrimSpace(tr.Text) == "" {
			span.SetStatus(codes.Error, "empty transcript")
			return nil, fmt.Errorf("%w: empty transcript", ErrTranscription)
		}
		userText = tr.Text
		res.Transcript = tr.Text
	}

	turns := BuildTurns(p.persona, req.History, userText)
	draft, err := p.draft(ctx, turns)
	if err != nil {
		span.SetStatus(codes.Error, "model failed")
		return nil, err
	}

	verdict, failure := p.validate(ctx, safety.Input{UserInput: userText, Draft: draft, History: ClientTurns(req.History)})
	d := p.engine.Decide(draft, safety.Assessment{Verdict: verdict, Failure: failure})

	if d.Outcome == safety.OutcomeRegenerate {
		regenerated, err := p.regenerate(ctx, turns, draft, d.Modifications)
		d = p.engine.ResolveRegeneration(d, regenerated, err)
		if err != nil {
			log.Warn("regeneration failed, keeping draft", "err", err)
		}
	}

	if d.Event != nil {
		p.record(ctx, turnID, *d.Event, userText, d.Outcome)
	}
	p.metrics.RecordOutcome(ctx, string(d.Outcome))
	if d.CrisisLogged {
		p.metrics.CrisisInterventions.Add(ctx, 1)
	}
	span.SetAttributes(attribute.String("safety.outcome", string(d.Outcome)))

	res.FinalReply = d.Reply
	res.CrisisLogged = d.CrisisLogged
	res.UsedFallback = d.UsedFallback
	res.Outcome = d.Outcome
	res.SafetyNote = d.SafetyNote
	res.CrisisIndicators = d.CrisisIndicators
	res.ModificationsApplied = d.ModificationsApplied
	res.Verdict = verdict
	if failure != nil {
		res.ValidatorError = failure.Error()
	}

	if p.speaker != nil {
		audio, voice, err := p.speak(ctx, d.Reply)
		if err != nil {
			log.Warn("speech omitted", "err", err)
			p.record(ctx, turnID, safety.EventSpec{Action: safety.ActionSynthesisFailed, Reason: err.Error()}, userText, d.Outcome)
		} else {
			res.Audio = audio
			res.Voice = voice
		}
	}

	log.Info("turn complete",
		"outcome", d.Outcome,
		"crisis", d.CrisisLogged,
		"used_fallback", d.UsedFallback,
		"audio", res.Audio != nil,
		"duration", time.Since(start),
	)
	return res, nil
}

func (p *Pipeline) draft(ctx context.Context, turns []types.Message) (string, error) {
	ctx, span := observe.StartSpan(ctx, "pipeline.llm")
	defer span.End()

	start := time.Now()
	resp, err := p.conversation.Complete(ctx, llm.CompletionRequest{
		Messages:    turns,
		Temperature: llm.Temperature(p.temperature),
		MaxTokens:   p.maxTokens,
	})
	p.metrics.LLMDuration.Record(ctx, time.Since(start).Seconds())
	if err == nil && (resp == nil || strings.TrimSpace(resp.Content) == "") {
		err = errors.New("empty completion")
	}
	if err != nil {
		p.providerError(ctx, span, p.names.LLM, observe.StageLLM, err)
		return "", fmt.Errorf("%w: %w", ErrModel, err)
	}
	p.metrics.RecordProviderRequest(ctx, p.names.LLM, observe.StageLLM, "ok")
	if resp.Truncated {
		observe.Logger(ctx).Warn("draft reply hit the token limit", "max_tokens", p.maxTokens)
	}
	return resp.Content, nil
}

func (p *Pipeline) validate(ctx context.Context, in safety.Input) (*safety.Verdict, *safety.Failure) {
	ctx, span := observe.StartSpan(ctx, "pipeline.validator")
	defer span.End()

	start := time.Now()
	verdict, failure := p.validator.Validate(ctx, in)
	p.metrics.ValidatorDuration.Record(ctx, time.Since(start).Seconds())
	if failure != nil {
		p.metrics.RecordValidatorFailure(ctx, string(failure.Kind))
		if failure.Kind == safety.FailureCall {
			p.providerError(ctx, span, p.names.Validator, observe.StageValidator, failure)
		} else {
			span.SetStatus(codes.Error, string(failure.Kind))
			observe.Logger(ctx).Warn("validator output unparseable", "err", failure.Err, "raw", failure.Raw)
		}
		return nil, failure
	}
	p.metrics.RecordProviderRequest(ctx, p.names.Validator, observe.StageValidator, "ok")
	span.SetAttributes(
		attribute.String("safety.crisis_risk", string(verdict.CrisisRisk)),
		attribute.Bool("safety.emergency_trigger", verdict.EmergencyTrigger),
	)
	return verdict, nil
}

func (p *Pipeline) regenerate(ctx context.Context, turns []types.Message, draft, mods string) (string, error) {
	ctx, span := observe.StartSpan(ctx, "pipeline.regeneration")
	defer span.End()

	start := time.Now()
	text, err := p.regenerator.Regenerate(ctx, turns, draft, mods)
	p.metrics.RegenerationDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		p.providerError(ctx, span, p.names.LLM, observe.StageRegeneration, err)
		return "", err
	}
	p.metrics.RecordProviderRequest(ctx, p.names.LLM, observe.StageRegeneration, "ok")
	return text, nil
}

func (p *Pipeline) speak(ctx context.Context, text string) (*tts.Audio, tts.Voice, error) {
	ctx, span := observe.StartSpan(ctx, "pipeline.tts")
	defer span.End()

	start := time.Now()
	audio, voice, err := p.speaker.Speak(ctx, text)
	p.metrics.TTSDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		p.providerError(ctx, span, p.names.TTS, observe.StageTTS, err)
		return nil, tts.Voice{}, err
	}
	p.metrics.RecordProviderRequest(ctx, p.names.TTS, observe.StageTTS, "ok")
	span.SetAttributes(attribute.String("tts.voice", voice.String()))
	return audio, voice, nil
}

func (p *Pipeline) providerError(ctx context.Context, span trace.Span, provider, stage string, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, stage+" failed")
	p.metrics.RecordProviderRequest(ctx, provider, stage, "error")
	p.metrics.RecordProviderError(ctx, provider, stage)
}

// record writes one safety event. Failures are logged and counted, never
// returned: losing the audit trail must not cost the user their reply.
func (p *Pipeline) record(ctx context.Context, turnID string, es safety.EventSpec, userInput string, outcome safety.Outcome) {
	e := audit.NewEvent(turnID, es, userInput, outcome, p.now())

	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()
	if err := p.recorder.Record(rctx, e); err != nil {
		p.metrics.AuditErrors.Add(ctx, 1)
		observe.Logger(ctx).Error("safety event not recorded",
			"err", err,
			"event_id", e.ID.String(),
			"action", e.Action,
		)
	}
}
