package wire

import "errors"

// Error kinds shared by every protocol engine built on top of Transport.
var (
	// ErrConnectionLost is returned once a Transport has been closed, either
	// by the caller or because a read/write failed.
	ErrConnectionLost = errors.New("mailcore: connection lost")

	// ErrUnexpectedEOF is raised when the peer closes the socket mid-response.
	ErrUnexpectedEOF = errors.New("mailcore: unexpected end of stream")

	// ErrTLSAlreadyActive is returned by StartTLS on an already-encrypted Transport.
	ErrTLSAlreadyActive = errors.New("mailcore: TLS already active")

	// ErrNoFactory is returned when a named socket factory was never registered.
	ErrNoFactory = errors.New("mailcore: socket factory not registered")
)

// ConnectionError wraps a socket-level failure (dial, read, write, TLS
// handshake). A ConnectionError always means the Transport is no longer
// usable and must be closed.
type ConnectionError struct {
	Op  string
	Err error
}

func (e *ConnectionError) Error() string {
	if e.Err == nil {
		return "mailcore: connection error during " + e.Op
	}
	return "mailcore: connection error during " + e.Op + ": " + e.Err.Error()
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// ProtocolError wraps a malformed or unexpected response from the peer.
type ProtocolError struct {
	Msg string
	Err error
}

func (e *ProtocolError) Error() string {
	if e.Err == nil {
		return "mailcore: protocol error: " + e.Msg
	}
	return "mailcore: protocol error: " + e.Msg + ": " + e.Err.Error()
}

func (e *ProtocolError) Unwrap() error { return e.Err }
