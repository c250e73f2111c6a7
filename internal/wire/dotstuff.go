package wire

import (
	"bufio"
	"strings"
)

// DotStuffWriter wraps w and applies SMTP/NNTP dot-stuffing (spec §4.F
// point 3, §4.G, §8): any line that would begin with "." has that dot
// doubled, and the caller is responsible for writing the final
// terminator via Close. Shared by SMTP DATA, NNTP POST, and used in
// reverse (un-stuffing) by the POP3 multi-line reader in
// internal/pop3/engine.go.
type DotStuffWriter struct {
	w          *bufio.Writer
	atLineHead bool
	lastByte   byte
}

// NewDotStuffWriter creates a dot-stuffing writer over w.
func NewDotStuffWriter(w *bufio.Writer) *DotStuffWriter {
	return &DotStuffWriter{w: w, atLineHead: true}
}

// Write implements io.Writer, stuffing leading dots as it goes.
func (d *DotStuffWriter) Write(p []byte) (int, error) {
	n := len(p)
	for _, b := range p {
		if d.atLineHead && b == '.' {
			if err := d.w.WriteByte('.'); err != nil {
				return 0, err
			}
		}
		if err := d.w.WriteByte(b); err != nil {
			return 0, err
		}
		d.atLineHead = b == '\n'
		d.lastByte = b
	}
	return n, nil
}

// Close writes the terminating CRLF.CRLF sequence (adding a leading CRLF
// first if the body didn't already end in one, so the terminator is never
// glued onto the last content line).
func (d *DotStuffWriter) Close() error {
	if d.lastByte != '\n' {
		if _, err := d.w.WriteString("\r\n"); err != nil {
			return err
		}
	}
	if _, err := d.w.WriteString(".\r\n"); err != nil {
		return err
	}
	return d.w.Flush()
}

// UnstuffLine removes one leading stuffed dot from a line already known to
// come from inside a dot-terminated multi-line block (the terminator line
// itself, bare "."  is handled by the caller before this is invoked).
func UnstuffLine(line string) string {
	if strings.HasPrefix(line, "..") {
		return line[1:]
	}
	return line
}

// IsDotTerminator reports whether line is the bare "." that ends a
// multi-line response/DATA block.
func IsDotTerminator(line string) bool {
	return line == "."
}
