package mailcore

import (
	"context"
	"crypto/tls"
	"strings"
	"sync"
	"time"

	"github.com/infodancer/mailcore/internal/auth"
	"github.com/infodancer/mailcore/internal/metrics"
	"github.com/infodancer/mailcore/internal/pool"
	"github.com/infodancer/mailcore/internal/pop3"
	"github.com/infodancer/mailcore/internal/wire"
)

// POP3Options configures a POP3Store's connections. Unset TLSConfig
// defaults to a zero-value *tls.Config (system root CAs, SNI from Host).
type POP3Options struct {
	Host string
	Port int // defaults to 110, or 995 when SSLEnable is set

	DialTimeout time.Duration
	TLSConfig   *tls.Config

	SSLEnable        bool // implicit TLS from the first byte
	StartTLSEnable   bool // opportunistic STLS upgrade
	StartTLSRequired bool // STLS must succeed or the connection fails

	Username string
	Password string

	APOPEnable bool // try APOP before AUTH/USER+PASS when the greeting carries a timestamp
	AuthEnable bool // use AUTH (SASL bridge) before falling back to USER/PASS
	SASLEnable bool
	AllowMechanisms []string

	Disabletop       bool
	Rsetbeforequit   bool
	ForgetTopHeaders bool // don't retain TOP-fetched header bytes on a Message after computing their size

	Metrics metrics.Collector
}

func (o POP3Options) metrics() metrics.Collector {
	if o.Metrics != nil {
		return o.Metrics
	}
	return &metrics.NoopCollector{}
}

func (o POP3Options) port() int {
	if o.Port != 0 {
		return o.Port
	}
	if o.SSLEnable {
		return 995
	}
	return 110
}

// POP3Store owns the single-idle-slot POP3 connection pool (spec §3/§4.I)
// and the closedForBusiness lifecycle flag.
type POP3Store struct {
	pool *pool.POP3Pool

	forgetTopHeaders bool

	mu                sync.Mutex
	closedForBusiness bool
}

// NewPOP3Store builds a Store that dials and authenticates connections per
// opts. The first connection is not made until Connect is called.
func NewPOP3Store(opts POP3Options) *POP3Store {
	s := &POP3Store{forgetTopHeaders: opts.ForgetTopHeaders}
	s.pool = pool.NewPOP3Pool(func(ctx context.Context) (*pop3.Engine, error) {
		return dialPOP3(ctx, opts)
	})
	return s
}

// Connect establishes and authenticates the first connection (spec §3:
// "Store.connect → Pool.handshake(first connection)"), then releases it
// back to the pool's idle slot.
func (s *POP3Store) Connect(ctx context.Context) error {
	e, err := s.pool.Get(ctx)
	if err != nil {
		return err
	}
	s.pool.Put(e)
	return nil
}

// Borrow checks out a connection for exclusive use by the caller.
func (s *POP3Store) Borrow(ctx context.Context) (*pop3.Engine, error) {
	s.mu.Lock()
	closed := s.closedForBusiness
	s.mu.Unlock()
	if closed {
		return nil, pool.ErrPoolClosed
	}
	return s.pool.Get(ctx)
}

// Release returns a borrowed connection to the pool.
func (s *POP3Store) Release(e *pop3.Engine) {
	s.pool.Put(e)
}

// Close rejects future checkouts and closes the pool's idle connection.
func (s *POP3Store) Close(ctx context.Context) error {
	s.mu.Lock()
	s.closedForBusiness = true
	s.mu.Unlock()
	return s.pool.Close()
}

func dialPOP3(ctx context.Context, opts POP3Options) (*pop3.Engine, error) {
	opts.Username = auth.NormalizeUsername(opts.Username)
	wireOpts := wire.Options{Timeout: opts.DialTimeout, UseTLS: opts.SSLEnable, TLSConfig: opts.TLSConfig}
	tr, err := wire.Dial(ctx, opts.Host, opts.port(), wireOpts)
	if err != nil {
		return nil, err
	}
	m := opts.metrics()
	m.ConnectionOpened("pop3")

	e := pop3.NewEngine(tr)
	e.Disabletop = opts.Disabletop
	e.Rsetbeforequit = opts.Rsetbeforequit

	greeting, err := e.ReadGreeting(ctx)
	if err != nil {
		m.ConnectionClosed("pop3")
		return nil, err
	}

	if opts.StartTLSEnable && !tr.IsTLS() {
		caps, capErr := e.CAPA(ctx)
		switch {
		case capErr == nil && caps.Has("STLS"):
			if err := e.STLS(ctx, opts.TLSConfig); err != nil {
				if opts.StartTLSRequired {
					return nil, err
				}
			} else {
				m.TLSEstablished("pop3")
			}
		case opts.StartTLSRequired:
			return nil, pop3.ErrTLSNotAvailable
		}
	}

	if opts.APOPEnable {
		if ts := apopTimestamp(greeting); ts != "" {
			digest := auth.APOPDigest(ts, opts.Password)
			if err := e.APOP(ctx, opts.Username, digest); err == nil {
				m.AuthAttempt("pop3", "APOP", true)
				return e, nil
			}
			m.AuthAttempt("pop3", "APOP", false)
		}
	}

	if opts.AuthEnable {
		caps, capErr := e.CAPA(ctx)
		if capErr == nil && len(caps.AuthMechanisms) > 0 {
			a, selErr := auth.Select(caps.AuthMechanisms, opts.AllowMechanisms, auth.SelectOptions{
				Username:   opts.Username,
				Password:   opts.Password,
				SASLEnable: opts.SASLEnable,
			})
			if selErr == nil {
				if err := e.Auth(ctx, a); err == nil {
					m.AuthAttempt("pop3", a.Mechanism(), true)
					return e, nil
				}
				m.AuthAttempt("pop3", a.Mechanism(), false)
			}
		}
	}

	if err := e.Login(ctx, opts.Username, opts.Password); err != nil {
		return nil, err
	}
	return e, nil
}

// apopTimestamp extracts the "<...@...>" banner token APOP hashes, or ""
// if the greeting carries none (spec §4.H: "the greeting carries a
// timestamp <…@…>").
func apopTimestamp(greeting string) string {
	start := strings.IndexByte(greeting, '<')
	if start < 0 {
		return ""
	}
	end := strings.IndexByte(greeting[start:], '>')
	if end < 0 {
		return ""
	}
	return greeting[start : start+end+1]
}
