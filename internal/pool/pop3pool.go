// Package pool implements the per-protocol connection pooling policies of
// spec §4.I/§5, generalizing the teacher's listening-server lifecycle
// (internal/pop3/stack.go's now-removed Stack/Server wiring) from "own one
// listening server" to "own one or more dialed client connections".
package pool

import (
	"context"
	"sync"

	"github.com/infodancer/mailcore/internal/pop3"
)

// POP3Dialer creates and authenticates a fresh POP3 connection.
type POP3Dialer func(ctx context.Context) (*pop3.Engine, error)

// POP3Pool holds at most one idle POP3 connection (spec §4.I: "at most one
// idle connection; checkout returns the idle one if present else
// creates+authenticates a new one; release caches iff idle slot is empty
// else closes"). Authentication happens once, inside the dialer, at
// connection creation time — never again on release or checkout.
type POP3Pool struct {
	mu     sync.Mutex
	dial   POP3Dialer
	idle   *pop3.Engine
	closed bool
}

// NewPOP3Pool builds a pool around dial, which must return a fully
// authenticated, transaction-state Engine.
func NewPOP3Pool(dial POP3Dialer) *POP3Pool {
	return &POP3Pool{dial: dial}
}

// Get returns the idle connection if one is cached, else dials and
// authenticates a new one.
func (p *POP3Pool) Get(ctx context.Context) (*pop3.Engine, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrPoolClosed
	}
	if p.idle != nil {
		e := p.idle
		p.idle = nil
		p.mu.Unlock()
		return e, nil
	}
	p.mu.Unlock()
	return p.dial(ctx)
}

// Put returns a connection to the pool. If the idle slot is already
// occupied, or the pool is closed, the connection is closed instead of
// cached — the policy only ever keeps one idle POP3 connection.
func (p *POP3Pool) Put(e *pop3.Engine) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed || p.idle != nil {
		e.Quit(context.Background())
		return
	}
	p.idle = e
}

// Close closes the idle connection, if any, and rejects future Get calls.
func (p *POP3Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	if p.idle != nil {
		err := p.idle.Quit(context.Background())
		p.idle = nil
		return err
	}
	return nil
}
