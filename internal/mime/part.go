// Package mime defines the narrow collaborator interfaces this core needs
// from an injected MIME object model (spec §1 Non-goals: the core never
// implements a MIME layer of its own, only the seam the SMTP Engine's
// 8BITMIME conversion step needs).
package mime

import "io"

// Part is one leaf or container node of a message the caller wants to send.
// The core only ever reads its content type and transfer encoding, reads
// its current bytes, and — for a qualifying 8BITMIME conversion — rewrites
// its transfer encoding and content in place.
type Part interface {
	// ContentType returns the part's declared MIME type, e.g. "text/plain".
	ContentType() string

	// TransferEncoding returns the part's current Content-Transfer-Encoding
	// token, e.g. "quoted-printable", "base64", "8bit", "7bit".
	TransferEncoding() string

	// Reader returns a reader over the part's current wire-ready content
	// (i.e. still encoded per TransferEncoding).
	Reader() io.Reader

	// SetTransferEncoding replaces both the transfer encoding and the
	// underlying content in one step, used when the SMTP Engine decodes a
	// quoted-printable/base64 part into raw 8bit content.
	SetTransferEncoding(encoding string, content io.Reader)
}

// Message is the minimal view of an outgoing message the SMTP Engine needs:
// its envelope addresses and its body parts, in depth-first order.
type Message struct {
	From  string
	To    []string
	Parts []Part
}
