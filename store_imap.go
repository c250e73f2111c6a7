package mailcore

import (
	"context"
	"crypto/tls"
	"strings"
	"sync"
	"time"

	"github.com/infodancer/mailcore/internal/auth"
	"github.com/infodancer/mailcore/internal/imap"
	"github.com/infodancer/mailcore/internal/metrics"
	"github.com/infodancer/mailcore/internal/pool"
	"github.com/infodancer/mailcore/internal/wire"
)

// IMAPOptions configures an IMAPStore's connections.
type IMAPOptions struct {
	Host string
	Port int // defaults to 143, or 993 when SSLEnable is set

	MaxConnections int // total live connections permitted; defaults to 4

	DialTimeout time.Duration
	TLSConfig   *tls.Config

	SSLEnable        bool
	StartTLSEnable   bool
	StartTLSRequired bool

	Username string
	Password string

	SASLEnable      bool
	AllowMechanisms []string

	Metrics metrics.Collector
}

func (o IMAPOptions) metrics() metrics.Collector {
	if o.Metrics != nil {
		return o.Metrics
	}
	return &metrics.NoopCollector{}
}

func (o IMAPOptions) port() int {
	if o.Port != 0 {
		return o.Port
	}
	if o.SSLEnable {
		return 993
	}
	return 143
}

func (o IMAPOptions) maxConnections() int {
	if o.MaxConnections > 0 {
		return o.MaxConnections
	}
	return 4
}

// IMAPFolder is a mailbox selected on a borrowed connection. Close issues
// CLOSE and releases the underlying connection back to the owning Store's
// pool.
type IMAPFolder struct {
	*imap.Folder
	engine *imap.Engine
	store  *IMAPStore
}

// Close issues CLOSE on the embedded Folder (expunging \Deleted messages
// and clearing selected state), then releases the connection back to the
// pool regardless of the CLOSE outcome.
func (f *IMAPFolder) Close(ctx context.Context) error {
	err := f.Folder.Close(ctx)
	f.store.release(f.engine)
	return err
}

// IMAPStore owns a bounded pool of authenticated IMAP connections and the
// set of folders currently open against them (spec §4.I: Store.close walks
// every open folder, closing each, before closing the pool).
type IMAPStore struct {
	pool *pool.IMAPPool

	mu                sync.Mutex
	open              map[*IMAPFolder]struct{}
	closedForBusiness bool
}

// NewIMAPStore builds a Store that dials and authenticates connections per
// opts. The first connection is not made until Connect is called.
func NewIMAPStore(opts IMAPOptions) *IMAPStore {
	s := &IMAPStore{open: make(map[*IMAPFolder]struct{})}
	s.pool = pool.NewIMAPPool(opts.maxConnections(), func(ctx context.Context) (*imap.Engine, error) {
		return dialIMAP(ctx, opts)
	})
	return s
}

// Connect establishes and authenticates the first connection, then releases
// it back to the pool.
func (s *IMAPStore) Connect(ctx context.Context) error {
	e, err := s.pool.Get(ctx)
	if err != nil {
		return err
	}
	s.pool.Put(e)
	return nil
}

// Select checks out a connection, SELECTs the named mailbox on it, and
// returns a Folder bound to that connection. The Folder must eventually be
// closed to return its connection to the pool.
func (s *IMAPStore) Select(ctx context.Context, mailbox string) (*IMAPFolder, error) {
	return s.openFolder(ctx, mailbox, false)
}

// Examine is Select's read-only counterpart.
func (s *IMAPStore) Examine(ctx context.Context, mailbox string) (*IMAPFolder, error) {
	return s.openFolder(ctx, mailbox, true)
}

func (s *IMAPStore) openFolder(ctx context.Context, mailbox string, readOnly bool) (*IMAPFolder, error) {
	s.mu.Lock()
	closed := s.closedForBusiness
	s.mu.Unlock()
	if closed {
		return nil, pool.ErrPoolClosed
	}

	e, err := s.pool.Get(ctx)
	if err != nil {
		return nil, err
	}

	var mf *imap.Folder
	if readOnly {
		mf, err = e.Examine(ctx, mailbox)
	} else {
		mf, err = e.Select(ctx, mailbox)
	}
	if err != nil {
		s.pool.Put(e)
		return nil, err
	}

	f := &IMAPFolder{Folder: mf, engine: e, store: s}
	s.mu.Lock()
	s.open[f] = struct{}{}
	s.mu.Unlock()
	return f, nil
}

func (s *IMAPStore) release(e *imap.Engine) {
	s.mu.Lock()
	for f := range s.open {
		if f.engine == e {
			delete(s.open, f)
			break
		}
	}
	s.mu.Unlock()
	s.pool.Put(e)
}

// Close rejects future checkouts, closes every folder still open against
// this Store's connections, and closes the underlying pool. Open folders
// are snapshotted and cleared under lock before closing each, since Close
// calls back into release which re-acquires the lock (spec §4.I).
func (s *IMAPStore) Close(ctx context.Context) error {
	s.mu.Lock()
	s.closedForBusiness = true
	s.mu.Unlock()

	for {
		s.mu.Lock()
		if len(s.open) == 0 {
			s.mu.Unlock()
			break
		}
		batch := make([]*IMAPFolder, 0, len(s.open))
		for f := range s.open {
			batch = append(batch, f)
		}
		s.open = make(map[*IMAPFolder]struct{})
		s.mu.Unlock()

		for _, f := range batch {
			f.Close(ctx)
		}
	}

	return s.pool.Close()
}

func dialIMAP(ctx context.Context, opts IMAPOptions) (*imap.Engine, error) {
	opts.Username = auth.NormalizeUsername(opts.Username)
	wireOpts := wire.Options{Timeout: opts.DialTimeout, UseTLS: opts.SSLEnable, TLSConfig: opts.TLSConfig}
	tr, err := wire.Dial(ctx, opts.Host, opts.port(), wireOpts)
	if err != nil {
		return nil, err
	}
	m := opts.metrics()
	m.ConnectionOpened("imap")

	e := imap.NewEngine(tr)

	caps, err := e.Capability(ctx)
	if err != nil {
		m.ConnectionClosed("imap")
		return nil, err
	}

	if opts.StartTLSEnable && !tr.IsTLS() {
		switch {
		case caps.Has("STARTTLS"):
			if err := e.StartTLS(ctx, opts.TLSConfig); err != nil {
				if opts.StartTLSRequired {
					return nil, err
				}
			} else {
				m.TLSEstablished("imap")
				caps, err = e.Capability(ctx)
				if err != nil {
					return nil, err
				}
			}
		case opts.StartTLSRequired:
			return nil, imap.ErrCommandFailed
		}
	}

	mechs := authMechanismsFromCapability(caps)
	if len(mechs) > 0 {
		a, selErr := auth.Select(mechs, opts.AllowMechanisms, auth.SelectOptions{
			Username:   opts.Username,
			Password:   opts.Password,
			SASLEnable: opts.SASLEnable,
		})
		if selErr == nil {
			if err := e.Authenticate(ctx, a); err == nil {
				m.AuthAttempt("imap", a.Mechanism(), true)
				return e, nil
			}
			m.AuthAttempt("imap", a.Mechanism(), false)
		}
	}

	if _, err := e.Login(ctx, opts.Username, opts.Password); err != nil {
		return nil, err
	}
	return e, nil
}

// authMechanismsFromCapability extracts the "AUTH=<mechanism>" advertised
// names from a CAPABILITY response into the bare mechanism list auth.Select
// expects.
func authMechanismsFromCapability(caps imap.CapabilityResponse) []string {
	var mechs []string
	for _, name := range caps.Names {
		if strings.HasPrefix(strings.ToUpper(name), "AUTH=") {
			mechs = append(mechs, name[len("AUTH="):])
		}
	}
	return mechs
}
