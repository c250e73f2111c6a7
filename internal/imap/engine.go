package imap

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/infodancer/mailcore/internal/imap/parser"
	"github.com/infodancer/mailcore/internal/wire"
)

// UnsolicitedHandler is invoked for each untagged/continuation response that
// arrives while an Engine awaits a tagged reply. It returns true once it has
// consumed the response, stopping further dispatch for that response.
type UnsolicitedHandler func(Response) (consumed bool)

// CommandResult is the pure-function contract of Engine.Command: the
// terminating tagged response, plus every untagged response observed along
// the way that no handler consumed.
type CommandResult struct {
	Tagged      TaggedResponse
	Unsolicited []Response
}

// Engine drives one IMAP4rev1 connection: tag generation, command framing
// (including literal continuation), and response classification. It embeds
// *wire.Transport by composition rather than inheritance, per the shared
// wire substrate design.
type Engine struct {
	*wire.Transport

	reader *parser.Reader

	mu         sync.Mutex
	tagCounter uint64

	handlersMu sync.Mutex
	handlers   map[ResponseKind][]UnsolicitedHandler

	selected *Folder
}

// NewEngine wraps an already-dialed Transport as an IMAP Engine.
func NewEngine(t *wire.Transport) *Engine {
	return &Engine{
		Transport: t,
		reader:    parser.NewReader(t),
		handlers:  make(map[ResponseKind][]UnsolicitedHandler),
	}
}

// OnUnsolicited registers a handler for a given response kind. Handlers for
// the same kind run in registration order; the first to return true stops
// the chain.
func (e *Engine) OnUnsolicited(kind ResponseKind, h UnsolicitedHandler) {
	e.handlersMu.Lock()
	defer e.handlersMu.Unlock()
	e.handlers[kind] = append(e.handlers[kind], h)
}

func (e *Engine) dispatch(r Response) bool {
	e.handlersMu.Lock()
	hs := e.handlers[r.Kind()]
	e.handlersMu.Unlock()
	for _, h := range hs {
		if h(r) {
			return true
		}
	}
	return false
}

func (e *Engine) nextTag() string {
	n := atomic.AddUint64(&e.tagCounter, 1)
	return fmt.Sprintf("A%04d", n)
}

// literalArg is a command argument that must be sent as a literal rather
// than a quoted string, e.g. an APPEND message body.
type literalArg struct {
	data []byte
}

// Command issues "<tag> <text> <args...>" and reads responses until the
// matching tagged reply arrives, dispatching every untagged/continuation
// response through the registered handlers (or buffering it when none
// consumes it). Literal args trigger a wait for the server's "+" before
// their bytes are written, per spec §4.B/§4.D.
func (e *Engine) Command(ctx context.Context, verb string, args ...any) (*CommandResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	tag := e.nextTag()
	if err := e.writeCommandLine(tag, verb, args); err != nil {
		return nil, err
	}

	result := &CommandResult{}
	for {
		raw, err := e.reader.ReadResponse()
		if err != nil {
			return nil, err
		}
		resp, err := ParseResponse(raw)
		if err != nil {
			return nil, err
		}

		if t, ok := resp.(TaggedResponse); ok {
			if t.Tag != tag {
				return nil, fmt.Errorf("%w: %s", ErrTagMismatch, t.Tag)
			}
			result.Tagged = t
			if t.Status == StatusNo || t.Status == StatusBad {
				return result, &CommandFailedError{Command: verb, Status: string(t.Status), Text: t.Text}
			}
			return result, nil
		}

		if u, ok := resp.(UntaggedStatusResponse); ok && u.Status == StatusBye {
			e.Transport.MarkClosedByServer()
			if !e.dispatch(resp) {
				result.Unsolicited = append(result.Unsolicited, resp)
			}
			return result, ErrBye
		}

		if !e.dispatch(resp) {
			result.Unsolicited = append(result.Unsolicited, resp)
		}
	}
}

func (e *Engine) writeCommandLine(tag, verb string, args []any) error {
	var b strings.Builder
	b.WriteString(tag)
	b.WriteByte(' ')
	b.WriteString(verb)
	for _, a := range args {
		b.WriteByte(' ')
		switch v := a.(type) {
		case literalArg:
			b.WriteString(fmt.Sprintf("{%d}", len(v.data)))
			if err := e.Transport.WriteLine(b.String()); err != nil {
				return err
			}
			if err := e.awaitContinuation(); err != nil {
				return err
			}
			if _, err := e.Transport.Writer().Write(v.data); err != nil {
				return &wire.ConnectionError{Op: "write literal", Err: err}
			}
			b.Reset()
			continue
		case string:
			b.WriteString(quoteIfNeeded(v))
		default:
			b.WriteString(fmt.Sprintf("%v", v))
		}
	}
	// Every command line — including one whose last token was a literal
	// payload with no trailing text — ends in exactly one CRLF.
	if b.Len() > 0 {
		if _, err := e.Transport.Writer().WriteString(b.String()); err != nil {
			return &wire.ConnectionError{Op: "write", Err: err}
		}
	}
	if _, err := e.Transport.Writer().WriteString("\r\n"); err != nil {
		return &wire.ConnectionError{Op: "write", Err: err}
	}
	return e.Transport.Flush()
}

func (e *Engine) awaitContinuation() error {
	raw, err := e.reader.ReadResponse()
	if err != nil {
		return err
	}
	resp, err := ParseResponse(raw)
	if err != nil {
		return err
	}
	if _, ok := resp.(ContinuationResponse); !ok {
		return &CommandFailedError{Command: "literal", Status: "", Text: "expected continuation, got " + string(raw)}
	}
	return nil
}

func quoteIfNeeded(s string) string {
	if s == "" {
		return `""`
	}
	needsQuote := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c <= ' ' || c == '"' || c == '(' || c == ')' || c == '{' || c == '%' || c == '*' {
			needsQuote = true
			break
		}
	}
	if !needsQuote {
		return s
	}
	var b strings.Builder
	b.WriteByte('"')
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '"' || c == '\\' {
			b.WriteByte('\\')
		}
		b.WriteByte(c)
	}
	b.WriteByte('"')
	return b.String()
}

// Login issues LOGIN user pass.
func (e *Engine) Login(ctx context.Context, user, pass string) (*CommandResult, error) {
	return e.Command(ctx, "LOGIN", user, pass)
}

// authenticator is the structural shape internal/auth.Authenticator
// satisfies; kept local for the same reason as pop3.Engine's copy.
type authenticator interface {
	Mechanism() string
	HasInitialResponse() bool
	IsComplete() bool
	EvaluateChallenge([]byte) ([]byte, error)
}

// Authenticate drives AUTHENTICATE's tagged/continuation challenge loop:
// base64-encoded server challenges arrive as "+ ..." continuations and are
// handed to a until the server returns the terminating tagged response
// (spec §4.H). Unlike pop3.Engine.Auth, IMAP framing needs no separate
// IsComplete check — the loop simply runs until a tagged reply arrives.
func (e *Engine) Authenticate(ctx context.Context, a authenticator) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	tag := e.nextTag()
	args := []string{a.Mechanism()}
	if a.HasInitialResponse() {
		initial, err := a.EvaluateChallenge(nil)
		if err != nil {
			return err
		}
		if len(initial) == 0 {
			args = append(args, "=")
		} else {
			args = append(args, base64.StdEncoding.EncodeToString(initial))
		}
	}
	if err := e.Transport.WriteLine(tag + " AUTHENTICATE " + strings.Join(args, " ")); err != nil {
		return err
	}

	for {
		raw, err := e.reader.ReadResponse()
		if err != nil {
			return err
		}
		resp, err := ParseResponse(raw)
		if err != nil {
			return err
		}

		if t, ok := resp.(TaggedResponse); ok {
			if t.Tag != tag {
				return fmt.Errorf("%w: %s", ErrTagMismatch, t.Tag)
			}
			if t.Status == StatusNo || t.Status == StatusBad {
				return &CommandFailedError{Command: "AUTHENTICATE " + a.Mechanism(), Status: string(t.Status), Text: t.Text}
			}
			return nil
		}

		cont, ok := resp.(ContinuationResponse)
		if !ok {
			if !e.dispatch(resp) {
				continue
			}
			continue
		}
		challenge, err := base64.StdEncoding.DecodeString(cont.Text)
		if err != nil {
			return &CommandFailedError{Command: "AUTHENTICATE " + a.Mechanism(), Text: "malformed base64 challenge"}
		}
		reply, err := a.EvaluateChallenge(challenge)
		if err != nil {
			return err
		}
		if err := e.Transport.WriteLine(base64.StdEncoding.EncodeToString(reply)); err != nil {
			return err
		}
	}
}

// Capability issues CAPABILITY and returns the advertised set from the
// unsolicited CAPABILITY response (or the tagged reply's response code, if
// the server folds it there instead).
func (e *Engine) Capability(ctx context.Context) (CapabilityResponse, error) {
	res, err := e.Command(ctx, "CAPABILITY")
	if err != nil {
		return CapabilityResponse{}, err
	}
	for _, r := range res.Unsolicited {
		if c, ok := r.(CapabilityResponse); ok {
			return c, nil
		}
	}
	if code := res.Tagged.Code; code != nil && code.Keyword == "CAPABILITY" {
		c := CapabilityResponse{base: base{res.Tagged.Raw()}, Args: map[string]string{}}
		for _, arg := range code.Args {
			name := strings.ToUpper(arg)
			val := ""
			if eq := strings.IndexByte(name, '='); eq >= 0 {
				val = name[eq+1:]
			}
			c.Names = append(c.Names, name)
			c.Args[name] = val
		}
		return c, nil
	}
	return CapabilityResponse{}, fail("CAPABILITY: no capability response observed")
}

// StartTLS issues STARTTLS, then upgrades the underlying Transport. Callers
// must re-issue CAPABILITY afterward; advertised capabilities before
// STARTTLS are not trustworthy (spec §4.D STARTTLS note).
func (e *Engine) StartTLS(ctx context.Context, cfg *tls.Config) error {
	if _, err := e.Command(ctx, "STARTTLS"); err != nil {
		return err
	}
	return e.Transport.StartTLS(ctx, cfg)
}

// Select opens a mailbox read-write and returns a Folder bound to this
// Engine for the lifetime of the selection.
func (e *Engine) Select(ctx context.Context, name string) (*Folder, error) {
	return e.open(ctx, "SELECT", name, true)
}

// Examine opens a mailbox read-only.
func (e *Engine) Examine(ctx context.Context, name string) (*Folder, error) {
	return e.open(ctx, "EXAMINE", name, false)
}

func (e *Engine) open(ctx context.Context, verb, name string, writable bool) (*Folder, error) {
	res, err := e.Command(ctx, verb, EncodeMailboxName(name))
	if err != nil {
		return nil, err
	}
	f := &Folder{
		engine:   e,
		name:     name,
		writable: writable,
	}
	for _, r := range res.Unsolicited {
		switch v := r.(type) {
		case SizeResponse:
			switch v.Event {
			case SizeExists:
				f.exists = v.Number
			case SizeRecent:
				f.recent = v.Number
			}
		case FlagsResponse:
			f.flags = v.Flags
		}
	}
	if res.Tagged.Code != nil && res.Tagged.Code.Keyword == "PERMANENTFLAGS" {
		f.permanentFlags = res.Tagged.Code.Args
	}
	e.selected = f
	return f, nil
}

// List issues LIST reference mailbox.
func (e *Engine) List(ctx context.Context, reference, mailbox string) ([]MailboxListResponse, error) {
	return e.listLike(ctx, "LIST", reference, mailbox)
}

// Lsub issues LSUB reference mailbox.
func (e *Engine) Lsub(ctx context.Context, reference, mailbox string) ([]MailboxListResponse, error) {
	return e.listLike(ctx, "LSUB", reference, mailbox)
}

func (e *Engine) listLike(ctx context.Context, verb, reference, mailbox string) ([]MailboxListResponse, error) {
	res, err := e.Command(ctx, verb, reference, mailbox)
	if err != nil {
		return nil, err
	}
	var out []MailboxListResponse
	for _, r := range res.Unsolicited {
		switch v := r.(type) {
		case MailboxListResponse:
			out = append(out, v)
		case LsubResponse:
			out = append(out, v.MailboxListResponse)
		}
	}
	return out, nil
}

// Status issues STATUS mailbox (items...).
func (e *Engine) Status(ctx context.Context, mailbox string, items ...string) (StatusResponse, error) {
	res, err := e.Command(ctx, "STATUS", EncodeMailboxName(mailbox), rawParenList(items))
	if err != nil {
		return StatusResponse{}, err
	}
	for _, r := range res.Unsolicited {
		if s, ok := r.(StatusResponse); ok {
			return s, nil
		}
	}
	return StatusResponse{}, fail("STATUS: no status response observed")
}

// Fetch issues FETCH sequenceSet (items...).
func (e *Engine) Fetch(ctx context.Context, seqSet string, items string) ([]FetchResponse, error) {
	return e.fetchLike(ctx, "FETCH", seqSet, items)
}

// UIDFetch issues UID FETCH uidSet (items...).
func (e *Engine) UIDFetch(ctx context.Context, uidSet string, items string) ([]FetchResponse, error) {
	return e.fetchLike(ctx, "UID FETCH", uidSet, items)
}

func (e *Engine) fetchLike(ctx context.Context, verb, set, items string) ([]FetchResponse, error) {
	res, err := e.Command(ctx, verb, set, raw(items))
	if err != nil {
		return nil, err
	}
	var out []FetchResponse
	for _, r := range res.Unsolicited {
		if f, ok := r.(FetchResponse); ok {
			out = append(out, f)
		}
	}
	return out, nil
}

// Search issues SEARCH criteria.
func (e *Engine) Search(ctx context.Context, criteria string) ([]uint32, error) {
	res, err := e.Command(ctx, "SEARCH", raw(criteria))
	if err != nil {
		return nil, err
	}
	for _, r := range res.Unsolicited {
		if s, ok := r.(SearchResponse); ok {
			return s.Numbers, nil
		}
	}
	return nil, nil
}

// Store issues STORE sequenceSet item value.
func (e *Engine) Store(ctx context.Context, seqSet, item, value string) ([]FetchResponse, error) {
	res, err := e.Command(ctx, "STORE", seqSet, raw(item), raw(value))
	if err != nil {
		return nil, err
	}
	var out []FetchResponse
	for _, r := range res.Unsolicited {
		if f, ok := r.(FetchResponse); ok {
			out = append(out, f)
		}
	}
	return out, nil
}

// Copy issues COPY sequenceSet mailbox.
func (e *Engine) Copy(ctx context.Context, seqSet, mailbox string) error {
	_, err := e.Command(ctx, "COPY", seqSet, EncodeMailboxName(mailbox))
	return err
}

// Append issues APPEND mailbox message, sending the message body as an
// IMAP literal.
func (e *Engine) Append(ctx context.Context, mailbox string, flags []string, message []byte) error {
	args := []any{EncodeMailboxName(mailbox)}
	if len(flags) > 0 {
		args = append(args, rawParenList(flags))
	}
	args = append(args, literalArg{data: message})
	_, err := e.Command(ctx, "APPEND", args...)
	return err
}

// Expunge issues EXPUNGE.
func (e *Engine) Expunge(ctx context.Context) error {
	_, err := e.Command(ctx, "EXPUNGE")
	return err
}

// Noop issues NOOP, useful as a pool checkout liveness probe.
func (e *Engine) Noop(ctx context.Context) error {
	_, err := e.Command(ctx, "NOOP")
	return err
}

// Logout issues LOGOUT and expects the server's BYE + tagged OK.
func (e *Engine) Logout(ctx context.Context) error {
	_, err := e.Command(ctx, "LOGOUT")
	if err == ErrBye {
		return nil
	}
	return err
}

// rawParenList renders a pre-tokenized parenthesized list; used where the
// caller already has IMAP-formatted item names (e.g. "BODY[HEADER]") that
// must not be re-quoted.
type rawParen struct{ text string }

func rawParenList(items []string) rawParen {
	return rawParen{text: "(" + strings.Join(items, " ") + ")"}
}

// raw wraps a fragment of already-formatted IMAP syntax (a criteria string,
// a fetch item list) so Command passes it through verbatim instead of
// quoting it as a literal string argument.
func raw(s string) rawParen { return rawParen{text: s} }

func (r rawParen) String() string { return r.text }
