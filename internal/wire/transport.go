// Package wire owns the TCP/TLS socket substrate shared by every mailcore
// protocol engine: dialing, optional implicit TLS, mid-session STARTTLS
// upgrade, buffered framing, per-read timeouts, and optional I/O tracing.
package wire

import (
	"bufio"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"golang.org/x/net/idna"
)

// Options configures a Transport. Zero value is a reasonable default:
// plain TCP, no timeout, no tracing.
type Options struct {
	// UseTLS dials directly into a TLS handshake (implicit TLS, e.g. IMAPS,
	// POP3S, SMTPS).
	UseTLS bool

	// TLSConfig is used for both implicit TLS and STARTTLS upgrades. A nil
	// TLSConfig is replaced with a minimal one carrying ServerName.
	TLSConfig *tls.Config

	// FactoryName, when non-empty, is resolved via LookupSocketFactory.
	FactoryName string

	// FactoryFallback mirrors socketFactory.fallback: fall back to the
	// default factory once if FactoryName can't be resolved.
	FactoryFallback bool

	// LocalAddr binds the outgoing connection to a specific local address
	// (localaddress/localport in spec §6).
	LocalAddr net.Addr

	// Timeout is applied as a read deadline before every read.
	Timeout time.Duration

	// Trace, when non-nil, receives a mirror of every byte read/written.
	Trace               io.Writer
	TraceQuotedPrintable bool
}

// Transport owns one socket and its paired buffered byte streams. It is the
// systems-language "Connection" of spec §3, minus any protocol-specific
// state (that lives in each Engine).
type Transport struct {
	mu sync.Mutex

	opts    Options
	conn    net.Conn
	reader  *bufio.Reader
	writer  *bufio.Writer
	factory SocketFactory

	open           bool
	tlsActive      bool
	closedByServer bool
}

// Dial opens a Transport to host:port, optionally establishing TLS
// immediately (Options.UseTLS). Failure to resolve a configured socket
// factory triggers the single documented fallback, or surfaces as an
// error.
func Dial(ctx context.Context, host string, port int, opts Options) (*Transport, error) {
	factory, err := resolveFactory(opts.FactoryName, opts.FactoryFallback)
	if err != nil {
		return nil, &ConnectionError{Op: "resolve socket factory", Err: err}
	}
	if df, ok := factory.(*defaultFactory); ok {
		df.localAddr = opts.LocalAddr
	}

	host = normalizeHostname(host)
	addr := net.JoinHostPort(host, fmt.Sprintf("%d", port))
	conn, err := factory.Dial(ctx, "tcp", addr)
	if err != nil {
		return nil, &ConnectionError{Op: "dial " + addr, Err: err}
	}

	t := &Transport{opts: opts, factory: factory, open: true}

	if opts.UseTLS {
		cfg := tlsConfigFor(opts.TLSConfig, host)
		tconn, err := factory.WrapTLS(ctx, conn, cfg)
		if err != nil {
			_ = conn.Close()
			return nil, &ConnectionError{Op: "TLS handshake", Err: err}
		}
		conn = tconn
		t.tlsActive = true
	}

	t.conn = conn
	t.installStreams()
	return t, nil
}

// NewTransportForConn wraps an already-established net.Conn (typically one
// half of a net.Pipe in tests, or a connection obtained out-of-band) as a
// Transport without going through Dial's factory/TLS setup.
func NewTransportForConn(conn net.Conn, opts Options) *Transport {
	t := &Transport{opts: opts, conn: conn, open: true, factory: DefaultFactory()}
	t.installStreams()
	return t
}

// normalizeHostname converts an internationalized domain name to its ASCII
// ("xn--") form before dialing, matching foxcpp-maddy's smtp_downstream
// target resolution. Hosts that fail IDNA conversion (bare IPs, already-
// ASCII names with no Unicode labels) are dialed unchanged.
func normalizeHostname(host string) string {
	ascii, err := idna.ToASCII(host)
	if err != nil {
		return host
	}
	return ascii
}

func tlsConfigFor(cfg *tls.Config, host string) *tls.Config {
	if cfg == nil {
		cfg = &tls.Config{}
	} else {
		cfg = cfg.Clone()
	}
	if cfg.ServerName == "" {
		cfg.ServerName = host
	}
	return cfg
}

// installStreams (re)builds the buffered reader/writer, interposing a
// trace mirror when configured. Caller must hold t.mu or be in
// single-threaded construction.
func (t *Transport) installStreams() {
	var r io.Reader = t.conn
	var w io.Writer = t.conn
	if t.opts.Trace != nil {
		r = newTracingReader(bufio.NewReader(t.conn), t.opts.Trace, t.opts.TraceQuotedPrintable)
		w = newTracingWriter(w, t.opts.Trace, t.opts.TraceQuotedPrintable)
	}
	t.reader = bufio.NewReader(r)
	t.writer = bufio.NewWriter(w)
}

// StartTLS wraps the existing socket in a TLS client connection over the
// same TCP stream, completes the handshake, and rebinds the buffered byte
// streams. No unencrypted bytes may be written after this returns nil.
func (t *Transport) StartTLS(ctx context.Context, cfg *tls.Config) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.open {
		return ErrConnectionLost
	}
	if t.tlsActive {
		return ErrTLSAlreadyActive
	}

	host := ""
	if h, _, err := net.SplitHostPort(t.conn.RemoteAddr().String()); err == nil {
		host = h
	}
	tlsCfg := tlsConfigFor(cfg, host)

	tconn, err := t.factory.WrapTLS(ctx, t.conn, tlsCfg)
	if err != nil {
		return &ConnectionError{Op: "STARTTLS handshake", Err: err}
	}

	t.conn = tconn
	t.tlsActive = true
	t.installStreams()
	return nil
}

// Close closes the underlying socket unconditionally. Subsequent
// operations fail with ErrConnectionLost.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.open {
		return nil
	}
	t.open = false
	return t.conn.Close()
}

// MarkClosedByServer records that the peer closed or sent BYE/421 — the
// connection must never be returned to a Pool after this.
func (t *Transport) MarkClosedByServer() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closedByServer = true
}

// ClosedByServer reports whether MarkClosedByServer was called.
func (t *Transport) ClosedByServer() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closedByServer
}

// IsOpen reports whether Close has not yet been called.
func (t *Transport) IsOpen() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.open
}

// IsTLS reports whether the connection is currently TLS-protected.
func (t *Transport) IsTLS() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.tlsActive
}

// Reader returns the buffered reader for protocol engines to read framed
// responses from.
func (t *Transport) Reader() *bufio.Reader { return t.reader }

// Writer returns the buffered writer for protocol engines to write framed
// commands to.
func (t *Transport) Writer() *bufio.Writer { return t.writer }

// Flush flushes any buffered writes to the socket.
func (t *Transport) Flush() error {
	if err := t.writer.Flush(); err != nil {
		return &ConnectionError{Op: "flush", Err: err}
	}
	return nil
}

// WriteLine writes s followed by CRLF and flushes.
func (t *Transport) WriteLine(s string) error {
	if _, err := t.writer.WriteString(s); err != nil {
		return &ConnectionError{Op: "write", Err: err}
	}
	if _, err := t.writer.WriteString("\r\n"); err != nil {
		return &ConnectionError{Op: "write", Err: err}
	}
	return t.Flush()
}

// ReadLine reads one CRLF (or bare LF) terminated line, applying the
// configured timeout as a read deadline, and stripping the terminator.
func (t *Transport) ReadLine() (string, error) {
	if t.opts.Timeout > 0 {
		_ = t.conn.SetReadDeadline(time.Now().Add(t.opts.Timeout))
	}
	line, err := t.reader.ReadString('\n')
	if err != nil {
		if err == io.EOF {
			return "", &ProtocolError{Msg: "unexpected end of stream", Err: ErrUnexpectedEOF}
		}
		return "", &ConnectionError{Op: "read", Err: err}
	}
	line = stripCRLF(line)
	return line, nil
}

// ReadExactly reads exactly n raw bytes (used for IMAP literals).
func (t *Transport) ReadExactly(n int) ([]byte, error) {
	if t.opts.Timeout > 0 {
		_ = t.conn.SetReadDeadline(time.Now().Add(t.opts.Timeout))
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(t.reader, buf); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, &ProtocolError{Msg: "unexpected end of stream", Err: ErrUnexpectedEOF}
		}
		return nil, &ConnectionError{Op: "read literal", Err: err}
	}
	return buf, nil
}

// SetDeadline extends the read/write deadline beyond the per-read timeout,
// used by engines awaiting a known-slow reply (SMTP DATA's final 250, for
// example waits at twice the configured timeout per spec §4.F).
func (t *Transport) SetDeadline(d time.Duration) error {
	return t.conn.SetDeadline(time.Now().Add(d))
}

// LocalAddr returns the local network address.
func (t *Transport) LocalAddr() net.Addr { return t.conn.LocalAddr() }

// RemoteAddr returns the remote network address.
func (t *Transport) RemoteAddr() net.Addr { return t.conn.RemoteAddr() }

func stripCRLF(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}
