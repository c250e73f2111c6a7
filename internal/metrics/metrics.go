// Package metrics adapts the teacher's POP3-server metrics collector
// (Collector/Server/PrometheusCollector) into a cross-protocol, client-side
// metrics surface: every method takes the protocol name (pop3/imap/smtp/
// nntp) instead of assuming a single server.
package metrics

import "context"

// Collector defines the interface for recording client-side mail-protocol
// metrics across all four protocol Engines.
type Collector interface {
	// Connection metrics
	ConnectionOpened(protocol string)
	ConnectionClosed(protocol string)
	TLSEstablished(protocol string)

	// AuthAttempt records one authentication attempt for the named SASL
	// mechanism (or "APOP"/"USER-PASS" for the non-SASL POP3/NNTP paths).
	AuthAttempt(protocol, mechanism string, success bool)

	// CommandProcessed records one Engine operation (e.g. "RETR",
	// "FETCH", "RCPT", "POST").
	CommandProcessed(protocol, command string)

	// MessageRetrieved records a POP3/IMAP message body fetch and its
	// size.
	MessageRetrieved(protocol string, sizeBytes int64)

	// SendStatus records one SMTP per-recipient result
	// (success/invalidAddress/sendFailure/generalError).
	SendStatus(result string)
}

// Server defines the interface for a metrics HTTP server.
type Server interface {
	// Start begins serving metrics. It blocks until the context is canceled
	// or an error occurs.
	Start(ctx context.Context) error

	// Shutdown gracefully stops the metrics server.
	Shutdown(ctx context.Context) error
}
