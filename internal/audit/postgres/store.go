// Package postgres stores safety events in PostgreSQL for post-hoc review.
//
// The schema is managed by goose migrations embedded in the binary and
// applied by [NewStore].
package postgres

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/rafiqhealth/rafiq/internal/audit"
	"github.com/rafiqhealth/rafiq/internal/safety"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var (
	_ audit.Recorder = (*Store)(nil)
	_ audit.Lister   = (*Store)(nil)
)

// Option configures a [Store].
type Option func(*pgxpool.Config)

// WithMaxConns caps the pool size.
func WithMaxConns(n int32) Option {
	return func(c *pgxpool.Config) {
		if n > 0 {
			c.MaxConns = n
		}
	}
}

// Store is a pgx-backed [audit.Recorder] and [audit.Lister].
// All methods are safe for concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore connects to dsn, verifies the connection, and applies pending
// migrations.
func NewStore(ctx context.Context, dsn string, opts ...Option) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("audit postgres: parse dsn: %w", err)
	}
	cfg.MaxConns = 4
	for _, o := range opts {
		o(cfg)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("audit postgres: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("audit postgres: ping: %w", err)
	}
	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("audit postgres: migrate: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Migrate applies every pending embedded migration.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	sub, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return err
	}
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	p, err := goose.NewProvider(goose.DialectPostgres, db, sub)
	if err != nil {
		return fmt.Errorf("goose provider: %w", err)
	}
	results, err := p.Up(ctx)
	if err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	for _, r := range results {
		slog.Info("applied migration", "source", r.Source.Path, "duration", r.Duration)
	}
	return nil
}

// Close releases the pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Ping reports whether the database is reachable. Used by readiness checks.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Record implements [audit.Recorder].
func (s *Store) Record(ctx context.Context, e audit.Event) error {
	indicators, err := json.Marshal(nonNil(e.Indicators))
	if err != nil {
		return fmt.Errorf("audit postgres: encode indicators: %w", err)
	}
	const q = `
		INSERT INTO safety_events
		    (id, turn_id, action, reason, risk_level, crisis_indicators, user_input, outcome, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	if _, err := s.pool.Exec(ctx, q,
		e.ID, e.TurnID, string(e.Action), e.Reason, string(e.RiskLevel),
		indicators, e.UserInput, string(e.Outcome), e.Timestamp,
	); err != nil {
		return fmt.Errorf("audit postgres: insert event: %w", err)
	}
	return nil
}

// List implements [audit.Lister].
func (s *Store) List(ctx context.Context, f audit.Filter) ([]audit.Event, error) {
	q, args := buildListQuery(f)
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("audit postgres: list events: %w", err)
	}
	events, err := pgx.CollectRows(rows, scanEvent)
	if err != nil {
		return nil, fmt.Errorf("audit postgres: scan events: %w", err)
	}
	return events, nil
}

// buildListQuery renders the SELECT for f with positional arguments.
func buildListQuery(f audit.Filter) (string, []any) {
	var (
		where []string
		args  []any
	)
	if f.Action != "" {
		args = append(args, string(f.Action))
		where = append(where, fmt.Sprintf("action = $%d", len(args)))
	}
	if !f.Since.IsZero() {
		args = append(args, f.Since)
		where = append(where, fmt.Sprintf("occurred_at >= $%d", len(args)))
	}

	var b strings.Builder
	b.WriteString(`SELECT id, turn_id, action, reason, risk_level, crisis_indicators, user_input, outcome, occurred_at FROM safety_events`)
	if len(where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}
	args = append(args, f.EffectiveLimit())
	fmt.Fprintf(&b, " ORDER BY occurred_at DESC LIMIT $%d", len(args))
	return b.String(), args
}

func scanEvent(row pgx.CollectableRow) (audit.Event, error) {
	var (
		e                     audit.Event
		action, risk, outcome string
		indicators            []byte
	)
	if err := row.Scan(&e.ID, &e.TurnID, &action, &e.Reason, &risk, &indicators, &e.UserInput, &outcome, &e.Timestamp); err != nil {
		return e, err
	}
	e.Action = safety.Action(action)
	e.RiskLevel = safety.CrisisRisk(risk)
	e.Outcome = safety.Outcome(outcome)
	if err := json.Unmarshal(indicators, &e.Indicators); err != nil {
		return e, fmt.Errorf("decode indicators: %w", err)
	}
	e.Indicators = nonNil(e.Indicators)
	return e, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
