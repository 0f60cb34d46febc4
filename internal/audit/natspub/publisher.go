// Package natspub publishes safety events to NATS so that on-call tooling
// can subscribe to live crisis alerts.
//
// Each event is published as JSON to "<prefix>.<action>", with the action
// lower-cased (for example "rafiq.safety.crisis_intervention").
package natspub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/rafiqhealth/rafiq/internal/audit"
)

// DefaultPrefix is the subject prefix used when none is configured.
const DefaultPrefix = "rafiq.safety"

// conn is the slice of *nats.Conn the publisher needs.
type conn interface {
	Publish(subject string, data []byte) error
	FlushWithContext(ctx context.Context) error
	Status() nats.Status
	Close()
}

// Option configures a [Publisher].
type Option func(*Publisher)

// WithPrefix overrides [DefaultPrefix].
func WithPrefix(prefix string) Option {
	return func(p *Publisher) {
		if prefix = strings.Trim(prefix, ". "); prefix != "" {
			p.prefix = prefix
		}
	}
}

// WithFlush makes Record wait for the server to acknowledge receipt.
func WithFlush(flush bool) Option {
	return func(p *Publisher) {
		p.flush = flush
	}
}

// Publisher is an [audit.Recorder] that forwards events to NATS.
type Publisher struct {
	nc     conn
	prefix string
	flush  bool
}

var _ audit.Recorder = (*Publisher)(nil)

// Connect dials url and returns a Publisher. The connection retries and
// reconnects forever; events published while disconnected are buffered by
// the client.
func Connect(url string, opts ...Option) (*Publisher, error) {
	if url == "" {
		return nil, errors.New("natspub: url must not be empty")
	}
	nc, err := nats.Connect(url,
		nats.Name("rafiq-safety-audit"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("nats disconnected", "err", err)
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			slog.Info("nats reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("natspub: connect: %w", err)
	}
	return newPublisher(nc, opts...), nil
}

func newPublisher(nc conn, opts ...Option) *Publisher {
	p := &Publisher{nc: nc, prefix: DefaultPrefix}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Subject returns the subject an event with action a is published to.
func (p *Publisher) Subject(e audit.Event) string {
	return p.prefix + "." + strings.ToLower(string(e.Action))
}

// Record implements [audit.Recorder].
func (p *Publisher) Record(ctx context.Context, e audit.Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("natspub: encode event: %w", err)
	}
	subject := p.Subject(e)
	if err := p.nc.Publish(subject, data); err != nil {
		return fmt.Errorf("natspub: publish %s: %w", subject, err)
	}
	if p.flush {
		if err := p.nc.FlushWithContext(ctx); err != nil {
			return fmt.Errorf("natspub: flush: %w", err)
		}
	}
	return nil
}

// Connected reports whether the client currently holds a live connection.
func (p *Publisher) Connected() bool {
	return p.nc.Status() == nats.CONNECTED
}

// Close drops the connection.
func (p *Publisher) Close() {
	p.nc.Close()
}
