package smtp

import (
	"bufio"
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/infodancer/mailcore/internal/mime"
	"github.com/infodancer/mailcore/internal/wire"
)

// Engine is the client-side ESMTP command/response driver (spec §4.F, §6
// MODULE F). It embeds *wire.Transport the way every protocol Engine in
// this core does (spec §9's composition-over-inheritance note).
type Engine struct {
	*wire.Transport

	// Extensions is the capability map populated by the last EHLO/HELO,
	// reset on every re-handshake (e.g. after STARTTLS).
	Extensions map[string]string

	// timeout is the configured per-read timeout; the final DATA reply is
	// awaited at twice this value (spec §4.F point 3).
	timeout time.Duration
}

// NewEngine wraps an already-connected Transport. timeout should match the
// Transport's configured Options.Timeout so the 2x DATA-reply wait scales
// with it; zero disables the extended wait.
func NewEngine(t *wire.Transport, timeout time.Duration) *Engine {
	return &Engine{Transport: t, Extensions: map[string]string{}, timeout: timeout}
}

// Has reports whether the server advertised extension name.
func (e *Engine) Has(name string) bool {
	_, ok := e.Extensions[strings.ToUpper(name)]
	return ok
}

// Handshake reads the connection greeting then sends EHLO, falling back to
// HELO on rejection unless forceEHLO is set.
func (e *Engine) Handshake(ctx context.Context, localHost string, forceEHLO bool) error {
	code, _, err := wire.ReadMultilineReply(e.Transport)
	if err != nil {
		return err
	}
	if code != 220 {
		return &CommandFailedError{Command: "connect", Code: code, Text: "unexpected greeting"}
	}
	return e.ehlo(ctx, localHost, forceEHLO)
}

func (e *Engine) ehlo(ctx context.Context, localHost string, forceEHLO bool) error {
	e.Extensions = map[string]string{}
	if err := e.Transport.WriteLine("EHLO " + localHost); err != nil {
		return err
	}
	code, lines, err := wire.ReadMultilineReply(e.Transport)
	if err != nil {
		return err
	}
	if code == 250 {
		for _, line := range lines[1:] {
			fields := strings.Fields(line)
			if len(fields) == 0 {
				continue
			}
			name := strings.ToUpper(fields[0])
			e.Extensions[name] = strings.Join(fields[1:], " ")
		}
		return nil
	}
	if forceEHLO {
		return &CommandFailedError{Command: "EHLO", Code: code, Text: strings.Join(lines, " ")}
	}
	if err := e.Transport.WriteLine("HELO " + localHost); err != nil {
		return err
	}
	code, lines, err = wire.ReadMultilineReply(e.Transport)
	if err != nil {
		return err
	}
	if code != 250 {
		return &CommandFailedError{Command: "HELO", Code: code, Text: strings.Join(lines, " ")}
	}
	return nil
}

// StartTLS upgrades the connection per STARTTLS (RFC 3207) and re-issues
// EHLO to refresh the capability map, since a server may advertise
// different extensions once encrypted.
func (e *Engine) StartTLS(ctx context.Context, cfg *tls.Config, localHost string) error {
	if e.Transport.IsTLS() {
		return ErrAlreadyTLS
	}
	if !e.Has("STARTTLS") {
		return ErrStartTLSNotAvailable
	}
	if err := e.Transport.WriteLine("STARTTLS"); err != nil {
		return err
	}
	code, lines, err := wire.ReadMultilineReply(e.Transport)
	if err != nil {
		return err
	}
	if code != 220 {
		return &CommandFailedError{Command: "STARTTLS", Code: code, Text: strings.Join(lines, " ")}
	}
	if err := e.Transport.StartTLS(ctx, cfg); err != nil {
		return err
	}
	return e.ehlo(ctx, localHost, true)
}

// SendOptions configures one Send call per the "SMTP options" row of spec
// §6's configuration table.
type SendOptions struct {
	Allow8BitMime bool
	QuitWait      bool // default true; caller sets explicitly
	DSNRet        string
	Submitter     string
	MailExtension string
	Notify        string
}

// Send implements the five-step sequence of spec §4.F: MAIL FROM, one RCPT
// TO per recipient (per-recipient status collected, never aborting the
// whole send), DATA, and QUIT. Partial-recipient failures are returned in
// the SendStatus vector; only a MAIL FROM or DATA rejection is a whole-
// transaction error.
func (e *Engine) Send(ctx context.Context, msg *mime.Message, opts SendOptions) ([]SendStatus, error) {
	converted := false
	if opts.Allow8BitMime && e.Has("8BITMIME") {
		for _, p := range msg.Parts {
			c, err := convertPart(p)
			if err != nil {
				return nil, err
			}
			converted = converted || c
		}
	}

	body := canonicalizeBody(msg.Parts)
	size := estimateSize(body)

	if err := e.mailFrom(ctx, msg.From, opts, size); err != nil {
		return nil, err
	}

	statuses := make([]SendStatus, 0, len(msg.To))
	anySuccess := false
	for _, addr := range msg.To {
		cmd := "RCPT TO:<" + addr + ">"
		if opts.Notify != "" {
			cmd += " NOTIFY=" + opts.Notify
		}
		if err := e.Transport.WriteLine(cmd); err != nil {
			return statuses, err
		}
		code, lines, err := wire.ReadMultilineReply(e.Transport)
		if err != nil {
			return statuses, err
		}
		result := classify(code)
		if result == ResultSuccess {
			anySuccess = true
		}
		statuses = append(statuses, SendStatus{
			Result:  result,
			Address: addr,
			Command: cmd,
			Reply:   strings.Join(lines, " "),
		})
	}

	if !anySuccess {
		return statuses, nil
	}

	if err := e.data(ctx, body); err != nil {
		return statuses, err
	}

	if opts.QuitWait {
		if err := e.Transport.WriteLine("QUIT"); err != nil {
			return statuses, err
		}
		if _, _, err := wire.ReadMultilineReply(e.Transport); err != nil {
			return statuses, err
		}
		return statuses, nil
	}
	if _, err := e.Transport.Writer().WriteString("QUIT\r\n"); err != nil {
		return statuses, err
	}
	return statuses, e.Transport.Flush()
}

func (e *Engine) mailFrom(ctx context.Context, from string, opts SendOptions, size int) error {
	cmd := "MAIL FROM:<" + from + ">"
	if opts.Allow8BitMime && e.Has("8BITMIME") {
		cmd += " BODY=8BITMIME"
	}
	if e.Has("SIZE") {
		cmd += " SIZE=" + strconv.Itoa(size)
	}
	if opts.DSNRet != "" {
		cmd += " RET=" + opts.DSNRet
	}
	if opts.Submitter != "" {
		cmd += " SUBMITTER=" + opts.Submitter
	}
	if opts.MailExtension != "" {
		cmd += " " + opts.MailExtension
	}
	if err := e.Transport.WriteLine(cmd); err != nil {
		return err
	}
	code, lines, err := wire.ReadMultilineReply(e.Transport)
	if err != nil {
		return err
	}
	if code != 250 {
		return &CommandFailedError{Command: "MAIL FROM", Code: code, Text: strings.Join(lines, " ")}
	}
	return nil
}

func (e *Engine) data(ctx context.Context, body []byte) error {
	if err := e.Transport.WriteLine("DATA"); err != nil {
		return err
	}
	code, lines, err := wire.ReadMultilineReply(e.Transport)
	if err != nil {
		return err
	}
	if code != 354 {
		return &CommandFailedError{Command: "DATA", Code: code, Text: strings.Join(lines, " ")}
	}

	dsw := wire.NewDotStuffWriter(e.Transport.Writer())
	if _, err := dsw.Write(body); err != nil {
		return &wire.ConnectionError{Op: "write DATA body", Err: err}
	}
	if err := dsw.Close(); err != nil {
		return &wire.ConnectionError{Op: "write DATA terminator", Err: err}
	}

	// The final post-DATA reply is awaited at twice the normal timeout
	// (spec §4.F point 3); Transport.ReadLine resets the deadline to the
	// normal timeout on every call, so the extended wait is applied with
	// SetDeadline and the reply is read directly off the buffered reader
	// instead of going back through ReadLine.
	if e.timeout > 0 {
		if err := e.Transport.SetDeadline(2 * e.timeout); err != nil {
			return &wire.ConnectionError{Op: "extend DATA deadline", Err: err}
		}
	}
	code, lines, err = e.readReplyNoDeadlineReset()
	if err != nil {
		return err
	}
	if code != 250 {
		return &CommandFailedError{Command: "DATA", Code: code, Text: strings.Join(lines, " ")}
	}
	return nil
}

// readReplyNoDeadlineReset reads one possibly-multiline SMTP reply straight
// off the Transport's buffered reader, without ReadLine's per-call reset of
// the read deadline back to the configured normal timeout.
func (e *Engine) readReplyNoDeadlineReset() (int, []string, error) {
	var lines []string
	var code int
	for {
		raw, err := e.Transport.Reader().ReadString('\n')
		if err != nil {
			return 0, nil, &wire.ConnectionError{Op: "read", Err: err}
		}
		raw = strings.TrimRight(raw, "\r\n")
		sl, err := wire.ParseStatusLine(raw)
		if err != nil {
			return 0, nil, err
		}
		code = sl.Code
		lines = append(lines, sl.Text)
		if !sl.Continued {
			break
		}
	}
	return code, lines, nil
}

// canonicalizeBody concatenates every part's current content, each preceded
// by its Content-Type and Content-Transfer-Encoding header lines. Parts are
// assumed to already carry CRLF line endings (the injected MIME layer's
// responsibility; this core only canonicalises at the dot-stuffing layer).
func canonicalizeBody(parts []mime.Part) []byte {
	var buf bytes.Buffer
	for _, p := range parts {
		fmt.Fprintf(&buf, "Content-Type: %s\r\nContent-Transfer-Encoding: %s\r\n\r\n", p.ContentType(), p.TransferEncoding())
		buf.ReadFrom(p.Reader())
	}
	return buf.Bytes()
}

// estimateSize counts the bytes of the dot-stuffed canonical body,
// excluding the terminating ".\r\n" (spec §4.F point 1's SIZE estimate).
func estimateSize(body []byte) int {
	var buf bytes.Buffer
	bw := bufio.NewWriter(&buf)
	dsw := wire.NewDotStuffWriter(bw)
	dsw.Write(body)
	bw.Flush()
	return buf.Len()
}
