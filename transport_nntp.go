package mailcore

import (
	"context"
	"crypto/tls"
	"time"

	"github.com/infodancer/mailcore/internal/auth"
	"github.com/infodancer/mailcore/internal/metrics"
	"github.com/infodancer/mailcore/internal/nntp"
	"github.com/infodancer/mailcore/internal/wire"
)

// NNTPOptions configures an NNTPTransport connection. Like SMTP, NNTP has
// no pooled Store in this core (spec §3/§4.I); each session opens, uses,
// and closes one connection.
type NNTPOptions struct {
	Host string
	Port int // defaults to 119, or 563 when SSLEnable is set

	DialTimeout time.Duration
	TLSConfig   *tls.Config
	SSLEnable   bool

	Username string
	Password string

	SASLEnable      bool
	AllowMechanisms []string
	AdvertisedSASL  []string // AUTHINFO SASL mechanisms the caller already knows the server advertises

	Metrics metrics.Collector
}

func (o NNTPOptions) metrics() metrics.Collector {
	if o.Metrics != nil {
		return o.Metrics
	}
	return &metrics.NoopCollector{}
}

func (o NNTPOptions) port() int {
	if o.Port != 0 {
		return o.Port
	}
	if o.SSLEnable {
		return 563
	}
	return 119
}

// NNTPTransport wraps one dialed, handshaken NNTP connection.
type NNTPTransport struct {
	*nntp.Engine
	transport *wire.Transport
	metrics   metrics.Collector
}

// ConnectNNTP dials, reads the welcome line, lists extensions, and
// authenticates with AUTHINFO if credentials are supplied.
func ConnectNNTP(ctx context.Context, opts NNTPOptions) (*NNTPTransport, error) {
	wireOpts := wire.Options{Timeout: opts.DialTimeout, UseTLS: opts.SSLEnable, TLSConfig: opts.TLSConfig}
	tr, err := wire.Dial(ctx, opts.Host, opts.port(), wireOpts)
	if err != nil {
		return nil, err
	}
	m := opts.metrics()
	m.ConnectionOpened("nntp")

	e := nntp.NewEngine(tr, opts.DialTimeout)
	if err := e.Handshake(ctx); err != nil {
		m.ConnectionClosed("nntp")
		return nil, err
	}
	_ = e.ListExtensions(ctx) // best-effort; absence of LIST EXTENSIONS support is not fatal

	if opts.Username != "" {
		if err := authenticateNNTP(ctx, e, opts); err != nil {
			return nil, err
		}
	}

	return &NNTPTransport{Engine: e, transport: tr, metrics: m}, nil
}

func authenticateNNTP(ctx context.Context, e *nntp.Engine, opts NNTPOptions) error {
	opts.Username = auth.NormalizeUsername(opts.Username)
	m := opts.metrics()

	if opts.SASLEnable && len(opts.AdvertisedSASL) > 0 {
		a, selErr := auth.Select(opts.AdvertisedSASL, opts.AllowMechanisms, auth.SelectOptions{
			Username:   opts.Username,
			Password:   opts.Password,
			SASLEnable: opts.SASLEnable,
		})
		if selErr == nil {
			if err := e.AuthInfoSASL(ctx, a); err == nil {
				m.AuthAttempt("nntp", a.Mechanism(), true)
				return nil
			}
			m.AuthAttempt("nntp", a.Mechanism(), false)
		}
	}

	if err := e.AuthInfoUserPass(ctx, opts.Username, opts.Password); err != nil {
		m.AuthAttempt("nntp", "USER-PASS", false)
		return err
	}
	m.AuthAttempt("nntp", "USER-PASS", true)
	return nil
}

// Close tears down the underlying connection without issuing QUIT.
func (t *NNTPTransport) Close() error {
	t.metrics.ConnectionClosed("nntp")
	return t.transport.Close()
}
