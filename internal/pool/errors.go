package pool

import "errors"

// ErrPoolClosed is returned by Get once the owning Store has closed the
// pool for business (spec §4.I: "closedForBusiness rejects new
// checkouts").
var ErrPoolClosed = errors.New("pool: closed for business")

// ErrPoolAtCapacity is returned by IMAPPool.Get when no idle connection is
// available and the live-connection cap has already been reached.
var ErrPoolAtCapacity = errors.New("pool: at capacity")
