// Package auth implements the client-side authenticator set shared by the
// POP3, IMAP, and NNTP Engines (spec §4.H, §6 MODULE H).
package auth

import "errors"

// ErrNoMechanism is returned by Select when no advertised mechanism is both
// allowed and implemented.
var ErrNoMechanism = errors.New("auth: no mutually supported mechanism")

// Authenticator is the contract every mechanism implements, matching spec
// §4.H exactly: a name, whether to front-load a response, whether the
// exchange is finished, and a step function that turns a (possibly empty)
// server challenge into the next raw client message.
type Authenticator interface {
	// Mechanism returns the SASL mechanism name as advertised by servers.
	Mechanism() string

	// HasInitialResponse reports whether the command that starts
	// authentication should carry an initial response (computed by calling
	// EvaluateChallenge(nil) before any server challenge arrives).
	HasInitialResponse() bool

	// IsComplete reports whether the exchange is finished: the caller
	// should stop evaluating challenges and simply await the final status.
	IsComplete() bool

	// EvaluateChallenge evaluates a server challenge (nil for the initial
	// response) and returns the raw, un-base64-encoded next client
	// message, setting IsComplete() true once the exchange reaches its
	// final round.
	EvaluateChallenge(challenge []byte) ([]byte, error)
}
