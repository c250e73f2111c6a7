package pop3

import (
	"context"
	"crypto/tls"
	"strconv"
	"strings"

	"github.com/infodancer/mailcore/internal/wire"
)

// Response is one parsed POP3 reply: the status line's text for a
// single-line reply, or the dot-unstuffed body lines for a multi-line one.
type Response struct {
	OK    bool
	Text  string
	Lines []string
}

// Engine is the client-side POP3 command/response driver, replacing the
// teacher's server-side Session + Command registry with a thin
// request/response loop over a wire.Transport (spec §4.E, §6 MODULE E).
type Engine struct {
	*wire.Transport

	state          State
	tls            TLSState
	caps           map[string]string
	authMechanisms []string

	// Disabletop and Rsetbeforequit mirror the per-server quirks the spec
	// calls out: some servers lack TOP, some want a courtesy RSET before
	// QUIT when the transaction wasn't committed via deletes.
	Disabletop     bool
	Rsetbeforequit bool

	readWrite bool
}

// NewEngine wraps an already-connected Transport. The caller is expected to
// have read the server's initial greeting via ReadGreeting before issuing
// any command.
func NewEngine(t *wire.Transport) *Engine {
	return &Engine{
		Transport: t,
		state:     StateAuthorization,
		caps:      map[string]string{},
	}
}

// State reports the client's view of the POP3 state machine.
func (e *Engine) State() State { return e.state }

// ReadGreeting consumes the server's initial "+OK ..." banner and returns
// its text unchanged, including any APOP timestamp challenge (the "<...>"
// token); extracting that token is left to the caller.
func (e *Engine) ReadGreeting(ctx context.Context) (string, error) {
	line, err := e.Transport.ReadLine()
	if err != nil {
		return "", err
	}
	ws, err := wire.ParseWordStatus(line)
	if err != nil {
		return "", err
	}
	if !ws.OK {
		return "", &CommandFailedError{Command: "greeting", Text: ws.Text}
	}
	return ws.Text, nil
}

// do sends one command line and reads a single status-line reply.
func (e *Engine) do(ctx context.Context, cmd string, args ...string) (Response, error) {
	line := cmd
	if len(args) > 0 {
		line = cmd + " " + strings.Join(args, " ")
	}
	if err := e.Transport.WriteLine(line); err != nil {
		return Response{}, err
	}
	raw, err := e.Transport.ReadLine()
	if err != nil {
		return Response{}, err
	}
	ws, err := wire.ParseWordStatus(raw)
	if err != nil {
		return Response{}, err
	}
	if !ws.OK {
		return Response{}, &CommandFailedError{Command: cmd, Text: ws.Text}
	}
	return Response{OK: true, Text: ws.Text}, nil
}

// doMulti sends one command line, reads its status line, and if it is +OK
// drains the dot-terminated multi-line block that follows (spec §4.E:
// stuffed leading dots are un-stuffed, raw bytes returned verbatim
// otherwise).
func (e *Engine) doMulti(ctx context.Context, cmd string, args ...string) (Response, error) {
	resp, err := e.do(ctx, cmd, args...)
	if err != nil {
		return Response{}, err
	}
	var lines []string
	for {
		raw, err := e.Transport.ReadLine()
		if err != nil {
			return Response{}, err
		}
		if wire.IsDotTerminator(raw) {
			break
		}
		lines = append(lines, wire.UnstuffLine(raw))
	}
	resp.Lines = lines
	return resp, nil
}

// User sends USER, the first half of the plaintext login exchange.
func (e *Engine) User(ctx context.Context, name string) error {
	_, err := e.do(ctx, "USER", name)
	return err
}

// Pass sends PASS, completing plaintext login and entering TRANSACTION on
// success.
func (e *Engine) Pass(ctx context.Context, password string) error {
	if _, err := e.do(ctx, "PASS", password); err != nil {
		return err
	}
	e.state = StateTransaction
	e.readWrite = true
	return nil
}

// Login performs the USER/PASS sequence in one call.
func (e *Engine) Login(ctx context.Context, user, password string) error {
	if err := e.User(ctx, user); err != nil {
		return err
	}
	return e.Pass(ctx, password)
}

// APOP authenticates in one round-trip using the MD5 digest of the
// greeting's timestamp challenge concatenated with the shared secret (RFC
// 1939 §7). digestHex is that digest in lowercase hex, as computed by
// auth.APOPDigest from the greeting's "<...>" token.
func (e *Engine) APOP(ctx context.Context, user, digestHex string) error {
	if _, err := e.do(ctx, "APOP", user, digestHex); err != nil {
		return err
	}
	e.state = StateTransaction
	e.readWrite = true
	return nil
}

// authenticator is the structural shape internal/auth.Authenticator will
// satisfy; kept local to avoid a dependency from this package onto a
// sibling one for a single SASL AUTH loop.
type authenticator interface {
	Mechanism() string
	HasInitialResponse() bool
	IsComplete() bool
	EvaluateChallenge([]byte) ([]byte, error)
}

// Auth drives the AUTH command's server-challenge/client-response loop for
// any authenticator satisfying the structural interface above.
func (e *Engine) Auth(ctx context.Context, a authenticator) error {
	args := []string{a.Mechanism()}
	if a.HasInitialResponse() {
		initial, err := a.EvaluateChallenge(nil)
		if err != nil {
			return err
		}
		args = append(args, EncodeSASLChallenge(initial))
	}
	if err := e.Transport.WriteLine("AUTH " + strings.Join(args, " ")); err != nil {
		return err
	}
	for {
		raw, err := e.Transport.ReadLine()
		if err != nil {
			return err
		}
		ws, err := wire.ParseWordStatus(raw)
		if err != nil {
			return err
		}
		if ws.OK {
			e.state = StateTransaction
			e.readWrite = true
			return nil
		}
		if !ws.Continuation {
			return &CommandFailedError{Command: "AUTH " + a.Mechanism(), Text: ws.Text}
		}
		challenge, err := DecodeSASLResponse(ws.Text)
		if err != nil {
			return &CommandFailedError{Command: "AUTH " + a.Mechanism(), Text: "malformed base64 challenge"}
		}
		reply, err := a.EvaluateChallenge(challenge)
		if err != nil {
			return err
		}
		if err := e.Transport.WriteLine(EncodeSASLChallenge(reply)); err != nil {
			return err
		}
		if a.IsComplete() {
			raw, err := e.Transport.ReadLine()
			if err != nil {
				return err
			}
			ws, err := wire.ParseWordStatus(raw)
			if err != nil {
				return err
			}
			if !ws.OK {
				return &CommandFailedError{Command: "AUTH " + a.Mechanism(), Text: ws.Text}
			}
			e.state = StateTransaction
			e.readWrite = true
			return nil
		}
	}
}

// Capabilities parses a CAPA response into a flat capability set plus the
// SASL mechanism list, structurally matching the teacher's
// Session.Capabilities() but read from the wire.
type Capabilities struct {
	Names          []string
	AuthMechanisms []string
}

// Has reports whether the server advertised name (case-insensitive).
func (c Capabilities) Has(name string) bool {
	name = strings.ToUpper(name)
	for _, n := range c.Names {
		if n == name {
			return true
		}
	}
	return false
}

// CAPA sends the CAPA command and parses its multi-line reply.
func (e *Engine) CAPA(ctx context.Context) (Capabilities, error) {
	resp, err := e.doMulti(ctx, "CAPA")
	if err != nil {
		return Capabilities{}, err
	}
	caps := Capabilities{}
	for _, line := range resp.Lines {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		name := strings.ToUpper(fields[0])
		caps.Names = append(caps.Names, name)
		if name == "SASL" {
			for _, mech := range fields[1:] {
				caps.AuthMechanisms = append(caps.AuthMechanisms, strings.ToUpper(mech))
			}
		}
	}
	e.authMechanisms = caps.AuthMechanisms
	return caps, nil
}

// STLS upgrades the connection to TLS and re-probes capabilities, since a
// server may only advertise some mechanisms post-TLS.
func (e *Engine) STLS(ctx context.Context, cfg *tls.Config) error {
	if e.tls == TLSStateActive {
		return ErrAlreadyTLS
	}
	if _, err := e.do(ctx, "STLS"); err != nil {
		return err
	}
	if err := e.Transport.StartTLS(ctx, cfg); err != nil {
		return err
	}
	e.tls = TLSStateActive
	_, err := e.CAPA(ctx)
	return err
}

// Stat returns the message count and total mailbox size in octets.
func (e *Engine) Stat(ctx context.Context) (count int, totalBytes int64, err error) {
	resp, err := e.do(ctx, "STAT")
	if err != nil {
		return 0, 0, err
	}
	fields := strings.Fields(resp.Text)
	if len(fields) < 2 {
		return 0, 0, &CommandFailedError{Command: "STAT", Text: "malformed reply: " + resp.Text}
	}
	count, err = strconv.Atoi(fields[0])
	if err != nil {
		return 0, 0, &CommandFailedError{Command: "STAT", Text: "malformed count: " + resp.Text}
	}
	totalBytes, err = strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return 0, 0, &CommandFailedError{Command: "STAT", Text: "malformed size: " + resp.Text}
	}
	return count, totalBytes, nil
}

// ListOne returns the size in octets of message n.
func (e *Engine) ListOne(ctx context.Context, n int) (int64, error) {
	resp, err := e.do(ctx, "LIST", strconv.Itoa(n))
	if err != nil {
		return 0, err
	}
	fields := strings.Fields(resp.Text)
	if len(fields) < 2 {
		return 0, &CommandFailedError{Command: "LIST", Text: "malformed reply: " + resp.Text}
	}
	size, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return 0, &CommandFailedError{Command: "LIST", Text: "malformed size: " + resp.Text}
	}
	return size, nil
}

// UIDLOne returns the persistent unique ID string of message n.
func (e *Engine) UIDLOne(ctx context.Context, n int) (string, error) {
	resp, err := e.do(ctx, "UIDL", strconv.Itoa(n))
	if err != nil {
		return "", err
	}
	fields := strings.Fields(resp.Text)
	if len(fields) < 2 {
		return "", &CommandFailedError{Command: "UIDL", Text: "malformed reply: " + resp.Text}
	}
	return fields[1], nil
}

// Top returns the headers (and n body lines, normally 0) of message msg.
// If Disabletop is set, falls back to a full RETR per spec §4.E.
func (e *Engine) Top(ctx context.Context, msg int, lines int) ([]byte, error) {
	if e.Disabletop {
		return e.Retr(ctx, msg)
	}
	resp, err := e.doMulti(ctx, "TOP", strconv.Itoa(msg), strconv.Itoa(lines))
	if err != nil {
		return nil, err
	}
	return joinCRLF(resp.Lines), nil
}

// Retr returns the full content of message msg.
func (e *Engine) Retr(ctx context.Context, msg int) ([]byte, error) {
	resp, err := e.doMulti(ctx, "RETR", strconv.Itoa(msg))
	if err != nil {
		return nil, err
	}
	return joinCRLF(resp.Lines), nil
}

// Dele stages message msg for deletion; the deletion only takes effect if
// the session commits via Quit from a read-write session.
func (e *Engine) Dele(ctx context.Context, msg int) error {
	_, err := e.do(ctx, "DELE", strconv.Itoa(msg))
	return err
}

// Rset clears all pending deletions for the session.
func (e *Engine) Rset(ctx context.Context) error {
	_, err := e.do(ctx, "RSET")
	return err
}

// Noop is a keepalive with no effect on server state.
func (e *Engine) Noop(ctx context.Context) error {
	_, err := e.do(ctx, "NOOP")
	return err
}

// Quit commits staged deletions (only meaningful if the session was opened
// read-write) and terminates the session. If Rsetbeforequit is set and the
// session never entered a committing transaction, RSET is sent first (spec
// §4.E).
func (e *Engine) Quit(ctx context.Context) error {
	if e.Rsetbeforequit && !e.readWrite {
		if _, err := e.do(ctx, "RSET"); err != nil {
			return err
		}
	}
	_, err := e.do(ctx, "QUIT")
	e.state = StateUpdate
	return err
}

func joinCRLF(lines []string) []byte {
	var b strings.Builder
	for _, l := range lines {
		b.WriteString(l)
		b.WriteString("\r\n")
	}
	return []byte(b.String())
}
