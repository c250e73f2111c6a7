package imap

import "errors"

// Error kinds specific to the IMAP response parser and engine, layered on
// top of the shared wire.ConnectionError/ProtocolError taxonomy.
var (
	// ErrResponseFormat is returned when a response cannot be parsed into
	// any known variant, or a required field of a known variant is
	// malformed. The parser never silently substitutes a default for a
	// missing required field (spec §4.C).
	ErrResponseFormat = errors.New("imap: malformed response")

	// ErrTagMismatch is returned if a tagged response arrives with a tag
	// that does not match any outstanding command.
	ErrTagMismatch = errors.New("imap: unexpected tag in response")

	// ErrNotAuthenticated is returned when an operation requiring
	// authentication is attempted beforehand.
	ErrNotAuthenticated = errors.New("imap: not authenticated")

	// ErrNoMailboxSelected is returned when a message-scoped operation is
	// attempted with no SELECT/EXAMINE in effect.
	ErrNoMailboxSelected = errors.New("imap: no mailbox selected")

	// ErrCommandFailed is returned when the server replies NO or BAD to a
	// tagged command.
	ErrCommandFailed = errors.New("imap: command failed")

	// ErrBye is returned when the server sends an untagged BYE, which
	// forbids any further commands on the connection.
	ErrBye = errors.New("imap: server said BYE")
)

// CommandFailedError wraps the tagged NO/BAD response text for diagnosis.
type CommandFailedError struct {
	Command string
	Status  string
	Text    string
}

func (e *CommandFailedError) Error() string {
	return "imap: " + e.Command + " failed: " + e.Status + " " + e.Text
}

func (e *CommandFailedError) Unwrap() error { return ErrCommandFailed }
