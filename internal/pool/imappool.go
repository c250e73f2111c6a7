package pool

import (
	"context"
	"sync"

	"github.com/infodancer/mailcore/internal/imap"
)

// IMAPDialer creates and authenticates a fresh IMAP connection.
type IMAPDialer func(ctx context.Context) (*imap.Engine, error)

// IMAPPool holds a bounded set of live IMAP connections (spec §4.I: "bounded
// set of live connections; checkout prefers any unassigned live connection
// (validated by issuing NOOP); releases it back"), generalizing
// other_examples' meszmate-imap-go client/pool.Pool (Get/Put/Close,
// closed-flag guard, factory func) to authenticate on creation and validate
// liveness on checkout instead of trusting a cached connection blindly. The
// live-connection cap covers both idle and checked-out connections,
// enforced by connectionLimiter (adapted from the teacher's inbound
// accept-loop ConnectionLimiter).
type IMAPPool struct {
	mu      sync.Mutex
	dial    IMAPDialer
	limiter *connectionLimiter
	idle    []*imap.Engine
	closed  bool
}

// NewIMAPPool builds a pool that permits at most maxSize concurrently live
// connections (idle plus checked-out).
func NewIMAPPool(maxSize int, dial IMAPDialer) *IMAPPool {
	return &IMAPPool{dial: dial, limiter: newConnectionLimiter(maxSize)}
}

// Get returns a validated idle connection if one survives a NOOP probe,
// else dials a new one if the live-connection cap allows it. Connections
// that fail NOOP are discarded (and their slot freed), not returned to the
// caller.
func (p *IMAPPool) Get(ctx context.Context) (*imap.Engine, error) {
	for {
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			return nil, ErrPoolClosed
		}
		if len(p.idle) > 0 {
			e := p.idle[len(p.idle)-1]
			p.idle = p.idle[:len(p.idle)-1]
			p.mu.Unlock()

			if err := e.Noop(ctx); err != nil {
				e.Logout(ctx)
				p.limiter.release()
				continue
			}
			return e, nil
		}
		if !p.limiter.tryAcquire() {
			p.mu.Unlock()
			return nil, ErrPoolAtCapacity
		}
		p.mu.Unlock()

		e, err := p.dial(ctx)
		if err != nil {
			p.limiter.release()
			return nil, err
		}
		return e, nil
	}
}

// Put returns a connection to the pool, closing it and freeing its slot
// instead when the pool is closed.
func (p *IMAPPool) Put(e *imap.Engine) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		e.Logout(context.Background())
		p.limiter.release()
		return
	}
	p.idle = append(p.idle, e)
}

// Close logs out every idle connection, frees their slots, and rejects
// future Get calls. Connections still checked out at Close time free their
// slot when the caller eventually calls Put.
func (p *IMAPPool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	var firstErr error
	for _, e := range p.idle {
		if err := e.Logout(context.Background()); err != nil && firstErr == nil {
			firstErr = err
		}
		p.limiter.release()
	}
	p.idle = nil
	return firstErr
}

// Len reports the number of idle connections currently cached.
func (p *IMAPPool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.idle)
}
