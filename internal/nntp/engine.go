package nntp

import (
	"context"
	"strings"
	"time"

	"github.com/infodancer/mailcore/internal/wire"
)

// Engine is the client-side NNTP command/response driver (spec §4.G, §6
// MODULE G). It embeds *wire.Transport like every other protocol Engine in
// this core, and shares the numeric-reply reader (wire/statusline.go) and
// dot-stuffing codec (wire/dotstuff.go) with the SMTP Engine rather than
// re-deriving either.
type Engine struct {
	*wire.Transport

	// PostingAllowed reflects the welcome code: 200 (posting allowed) vs
	// 201 (reading only).
	PostingAllowed bool

	// Extensions holds the names and trailing arguments from LIST
	// EXTENSIONS, keyed by uppercased extension name.
	Extensions map[string][]string

	timeout time.Duration
}

// NewEngine wraps an already-connected Transport.
func NewEngine(t *wire.Transport, timeout time.Duration) *Engine {
	return &Engine{Transport: t, Extensions: map[string][]string{}, timeout: timeout}
}

// Handshake reads the welcome line and classifies posting permission per
// spec §4.G: 200 ⇒ posting allowed, 201 ⇒ read-only.
func (e *Engine) Handshake(ctx context.Context) error {
	code, lines, err := wire.ReadMultilineReply(e.Transport)
	if err != nil {
		return err
	}
	switch code {
	case 200:
		e.PostingAllowed = true
	case 201:
		e.PostingAllowed = false
	default:
		return &CommandFailedError{Command: "connect", Code: code, Text: strings.Join(lines, " ")}
	}
	return nil
}

// ListExtensions populates Extensions from the LIST EXTENSIONS response
// (RFC 8054-style dot-terminated block, one extension per line, optional
// trailing arguments).
func (e *Engine) ListExtensions(ctx context.Context) error {
	if err := e.Transport.WriteLine("LIST EXTENSIONS"); err != nil {
		return err
	}
	code, lines, err := wire.ReadMultilineReply(e.Transport)
	if err != nil {
		return err
	}
	if code != 215 {
		return &CommandFailedError{Command: "LIST EXTENSIONS", Code: code, Text: strings.Join(lines, " ")}
	}
	e.Extensions = map[string][]string{}
	for {
		raw, err := e.Transport.ReadLine()
		if err != nil {
			return err
		}
		if wire.IsDotTerminator(raw) {
			break
		}
		fields := strings.Fields(wire.UnstuffLine(raw))
		if len(fields) == 0 {
			continue
		}
		name := strings.ToUpper(fields[0])
		e.Extensions[name] = fields[1:]
	}
	return nil
}

// HasExtension reports whether name was listed by LIST EXTENSIONS.
func (e *Engine) HasExtension(name string) bool {
	_, ok := e.Extensions[strings.ToUpper(name)]
	return ok
}

// AuthInfoSimple implements the obsolete AUTHINFO SIMPLE flavour: send the
// bare command, then the username on the continuation it provokes, then
// "user password" on the second continuation.
func (e *Engine) AuthInfoSimple(ctx context.Context, user, password string) error {
	if err := e.Transport.WriteLine("AUTHINFO SIMPLE"); err != nil {
		return err
	}
	if _, _, err := wire.ReadMultilineReply(e.Transport); err != nil {
		return err
	}
	if err := e.Transport.WriteLine(user); err != nil {
		return err
	}
	if _, _, err := wire.ReadMultilineReply(e.Transport); err != nil {
		return err
	}
	if err := e.Transport.WriteLine(user + " " + password); err != nil {
		return err
	}
	code, lines, err := wire.ReadMultilineReply(e.Transport)
	if err != nil {
		return err
	}
	if code != 281 && code != 250 {
		return &CommandFailedError{Command: "AUTHINFO SIMPLE", Code: code, Text: strings.Join(lines, " ")}
	}
	return nil
}

// AuthInfoUserPass implements the RFC 4643 AUTHINFO USER/PASS flavour.
// Some servers accept USER alone without requiring PASS.
func (e *Engine) AuthInfoUserPass(ctx context.Context, user, password string) error {
	if err := e.Transport.WriteLine("AUTHINFO USER " + user); err != nil {
		return err
	}
	code, lines, err := wire.ReadMultilineReply(e.Transport)
	if err != nil {
		return err
	}
	if code == 281 || code == 250 {
		return nil
	}
	if code != 381 {
		return &CommandFailedError{Command: "AUTHINFO USER", Code: code, Text: strings.Join(lines, " ")}
	}
	if err := e.Transport.WriteLine("AUTHINFO PASS " + password); err != nil {
		return err
	}
	code, lines, err = wire.ReadMultilineReply(e.Transport)
	if err != nil {
		return err
	}
	if code != 281 && code != 250 {
		return &CommandFailedError{Command: "AUTHINFO PASS", Code: code, Text: strings.Join(lines, " ")}
	}
	return nil
}

// authenticator mirrors the structural SASL shape used by the POP3 and
// IMAP Engines (internal/auth.Authenticator will satisfy it).
type authenticator interface {
	Mechanism() string
	HasInitialResponse() bool
	IsComplete() bool
	EvaluateChallenge([]byte) ([]byte, error)
}

// AuthInfoSASL drives the same challenge/response loop as IMAP's AUTHENTICATE
// and POP3's AUTH, per spec §4.G's "SASL flavour follows the same challenge
// loop as IMAP."
func (e *Engine) AuthInfoSASL(ctx context.Context, a authenticator) error {
	cmd := "AUTHINFO SASL " + a.Mechanism()
	if a.HasInitialResponse() {
		initial, err := a.EvaluateChallenge(nil)
		if err != nil {
			return err
		}
		cmd += " " + encodeChallenge(initial)
	}
	if err := e.Transport.WriteLine(cmd); err != nil {
		return err
	}
	for {
		code, lines, err := wire.ReadMultilineReply(e.Transport)
		if err != nil {
			return err
		}
		text := strings.Join(lines, " ")
		if code == 281 || code == 250 {
			return nil
		}
		if code != 383 { // continuation requesting more SASL data
			return &CommandFailedError{Command: "AUTHINFO SASL", Code: code, Text: text}
		}
		challenge, err := decodeChallenge(text)
		if err != nil {
			return &CommandFailedError{Command: "AUTHINFO SASL", Code: code, Text: "malformed base64 challenge"}
		}
		reply, err := a.EvaluateChallenge(challenge)
		if err != nil {
			return err
		}
		if err := e.Transport.WriteLine(encodeChallenge(reply)); err != nil {
			return err
		}
	}
}

// Post sends one article using the same dot-stuffing and terminator rules
// as SMTP DATA (spec §4.G).
func (e *Engine) Post(ctx context.Context, article []byte) error {
	if err := e.Transport.WriteLine("POST"); err != nil {
		return err
	}
	code, lines, err := wire.ReadMultilineReply(e.Transport)
	if err != nil {
		return err
	}
	if code != 340 {
		return &CommandFailedError{Command: "POST", Code: code, Text: strings.Join(lines, " ")}
	}

	dsw := wire.NewDotStuffWriter(e.Transport.Writer())
	if _, err := dsw.Write(article); err != nil {
		return &wire.ConnectionError{Op: "write POST body", Err: err}
	}
	if err := dsw.Close(); err != nil {
		return &wire.ConnectionError{Op: "write POST terminator", Err: err}
	}

	code, lines, err = wire.ReadMultilineReply(e.Transport)
	if err != nil {
		return err
	}
	if code != 240 {
		return &CommandFailedError{Command: "POST", Code: code, Text: strings.Join(lines, " ")}
	}
	return nil
}
