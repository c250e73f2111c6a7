package mailcore

import (
	"context"
	"crypto/tls"
	"time"

	"github.com/infodancer/mailcore/internal/metrics"
	"github.com/infodancer/mailcore/internal/smtp"
	"github.com/infodancer/mailcore/internal/wire"
)

// SMTPOptions configures an SMTPTransport connection. SMTP/ESMTP has no
// pooled Store of its own (spec §3/§4.I name a Pool only for POP3 and
// IMAP); each send opens, uses, and closes one connection.
type SMTPOptions struct {
	Host string
	Port int // defaults to 25, or 465 when SSLEnable is set

	LocalHost   string // EHLO/HELO identity
	ForceEHLO   bool
	DialTimeout time.Duration
	TLSConfig   *tls.Config

	SSLEnable        bool
	StartTLSEnable   bool
	StartTLSRequired bool

	Metrics metrics.Collector
}

func (o SMTPOptions) metrics() metrics.Collector {
	if o.Metrics != nil {
		return o.Metrics
	}
	return &metrics.NoopCollector{}
}

func (o SMTPOptions) port() int {
	if o.Port != 0 {
		return o.Port
	}
	if o.SSLEnable {
		return 465
	}
	return 25
}

// SMTPTransport wraps one dialed, EHLO-handshaken SMTP/ESMTP connection.
type SMTPTransport struct {
	*smtp.Engine
	transport *wire.Transport
	metrics   metrics.Collector
}

// ConnectSMTP dials, optionally negotiates STARTTLS, and performs the
// EHLO/HELO handshake.
func ConnectSMTP(ctx context.Context, opts SMTPOptions) (*SMTPTransport, error) {
	wireOpts := wire.Options{Timeout: opts.DialTimeout, UseTLS: opts.SSLEnable, TLSConfig: opts.TLSConfig}
	tr, err := wire.Dial(ctx, opts.Host, opts.port(), wireOpts)
	if err != nil {
		return nil, err
	}
	m := opts.metrics()
	m.ConnectionOpened("smtp")

	e := smtp.NewEngine(tr, opts.DialTimeout)
	if err := e.Handshake(ctx, opts.LocalHost, opts.ForceEHLO); err != nil {
		m.ConnectionClosed("smtp")
		return nil, err
	}

	if opts.StartTLSEnable && !tr.IsTLS() && e.Has("STARTTLS") {
		if err := e.StartTLS(ctx, opts.TLSConfig, opts.LocalHost); err != nil {
			if opts.StartTLSRequired {
				return nil, err
			}
		} else {
			m.TLSEstablished("smtp")
		}
	} else if opts.StartTLSRequired && !tr.IsTLS() {
		return nil, smtp.ErrStartTLSNotAvailable
	}

	return &SMTPTransport{Engine: e, transport: tr, metrics: m}, nil
}

// Close tears down the underlying connection without issuing QUIT, since
// the Engine has no graceful-shutdown verb of its own beyond DATA framing.
func (t *SMTPTransport) Close() error {
	t.metrics.ConnectionClosed("smtp")
	return t.transport.Close()
}
