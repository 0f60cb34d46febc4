// Package api is the HTTP surface of the service: chat turns, standalone
// transcription, the safety-event review listing, and the operational
// endpoints.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/rafiqhealth/rafiq/internal/audit"
	"github.com/rafiqhealth/rafiq/internal/health"
	"github.com/rafiqhealth/rafiq/internal/observe"
	"github.com/rafiqhealth/rafiq/internal/pipeline"
	"github.com/rafiqhealth/rafiq/pkg/provider/stt"
)

const (
	defaultMaxBodyBytes  = 16 << 20
	defaultMaxAudioBytes = 25 << 20

	bannerText = "Rafiq backend is running."
)

// Turner runs chat turns and standalone transcription. *pipeline.Pipeline
// satisfies it.
type Turner interface {
	Run(ctx context.Context, req pipeline.TurnRequest) (*pipeline.Result, error)
	Transcribe(ctx context.Context, req stt.Request) (*stt.Transcript, error)
}

var _ Turner = (*pipeline.Pipeline)(nil)

// Option configures a [Server].
type Option func(*Server)

// WithEventLister backs GET /api/v1/safety-events. The route also needs
// [WithReviewToken].
func WithEventLister(l audit.Lister) Option {
	return func(s *Server) {
		s.events = l
	}
}

// WithReviewToken sets the bearer token clinical reviewers present to read
// safety events. Events carry users' own words, so the listing is never
// served without one.
func WithReviewToken(token string) Option {
	return func(s *Server) {
		s.reviewToken = token
	}
}

// WithHealth mounts /healthz and /readyz.
func WithHealth(h *health.Handler) Option {
	return func(s *Server) {
		s.health = h
	}
}

// WithMetrics instruments every request.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithMetricsHandler mounts h at /metrics, typically promhttp.Handler().
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) {
		s.metricsHandler = h
	}
}

// WithCORSOrigins allows browser clients from origins. "*" allows any.
func WithCORSOrigins(origins ...string) Option {
	return func(s *Server) {
		s.corsOrigins = origins
	}
}

// WithBodyLimits caps JSON bodies and multipart audio uploads. Non-positive
// values keep the defaults.
func WithBodyLimits(jsonBytes, audioBytes int64) Option {
	return func(s *Server) {
		if jsonBytes > 0 {
			s.maxBodyBytes = jsonBytes
		}
		if audioBytes > 0 {
			s.maxAudioBytes = audioBytes
		}
	}
}

// Server routes HTTP requests to the pipeline.
type Server struct {
	turns          Turner
	events         audit.Lister
	reviewToken    string
	health         *health.Handler
	metrics        *observe.Metrics
	metricsHandler http.Handler
	corsOrigins    []string
	maxBodyBytes   int64
	maxAudioBytes  int64

	router chi.Router
}

// NewServer builds the router. turns must not be nil.
func NewServer(turns Turner, opts ...Option) *Server {
	s := &Server{
		turns:         turns,
		maxBodyBytes:  defaultMaxBodyBytes,
		maxAudioBytes: defaultMaxAudioBytes,
	}
	for _, o := range opts {
		o(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	if len(s.corsOrigins) > 0 {
		r.Use(cors(s.corsOrigins))
	}
	if s.metrics != nil {
		r.Use(observe.Middleware(s.metrics))
	}

	r.Get("/", handleBanner)
	if s.health != nil {
		s.health.Register(r)
	}
	if s.metricsHandler != nil {
		r.Handle("/metrics", s.metricsHandler)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.With(middleware.RequestSize(s.maxBodyBytes)).Post("/chat", s.handleChat)
		r.With(middleware.RequestSize(s.maxAudioBytes)).Post("/transcribe", s.handleTranscribe)
		r.With(s.requireReviewToken).Get("/safety-events", s.handleSafetyEvents)
	})

	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func handleBanner(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(bannerText))
}

// errorBody is the JSON shape of every non-2xx API response.
type errorBody struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("api: encode response", "err", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string, cause error) {
	body := errorBody{Error: msg}
	if cause != nil {
		body.Details = cause.Error()
	}
	writeJSON(w, status, body)
}
