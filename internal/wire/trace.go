package wire

import (
	"bufio"
	"io"
	"mime/quotedprintable"
)

// tracingReader mirrors every read line to a sink, prefixed to distinguish
// direction. It is only installed when Options.Trace is non-nil.
type tracingReader struct {
	r      io.Reader
	sink   io.Writer
	prefix string
	qp     bool
}

func (t *tracingReader) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	if n > 0 {
		t.emit(p[:n])
	}
	return n, err
}

func (t *tracingReader) emit(b []byte) {
	if t.qp {
		w := quotedprintable.NewWriter(prefixedWriter{t.sink, t.prefix})
		_, _ = w.Write(b)
		_ = w.Close()
		return
	}
	_, _ = prefixedWriter{t.sink, t.prefix}.Write(b)
}

type tracingWriter struct {
	w      io.Writer
	sink   io.Writer
	prefix string
	qp     bool
}

func (t *tracingWriter) Write(p []byte) (int, error) {
	if t.qp {
		w := quotedprintable.NewWriter(prefixedWriter{t.sink, t.prefix})
		_, _ = w.Write(p)
		_ = w.Close()
	} else {
		_, _ = prefixedWriter{t.sink, t.prefix}.Write(p)
	}
	return t.w.Write(p)
}

// prefixedWriter writes prefix once before the underlying bytes; it does
// not attempt to re-prefix every line, keeping the trace stream simple to
// scan for a human reading debug output, matching the teacher's
// LogTransaction flag which logs raw lines rather than reformatting them.
type prefixedWriter struct {
	w      io.Writer
	prefix string
}

func (p prefixedWriter) Write(b []byte) (int, error) {
	if _, err := p.w.Write([]byte(p.prefix)); err != nil {
		return 0, err
	}
	n, err := p.w.Write(b)
	if err == nil {
		_, _ = p.w.Write([]byte("\n"))
	}
	return n, err
}

func newTracingReader(r *bufio.Reader, sink io.Writer, qp bool) io.Reader {
	return &tracingReader{r: r, sink: sink, prefix: "S: ", qp: qp}
}

func newTracingWriter(w io.Writer, sink io.Writer, qp bool) io.Writer {
	return &tracingWriter{w: w, sink: sink, prefix: "C: ", qp: qp}
}
