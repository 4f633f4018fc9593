// Package errs defines the error kinds shared across the session server:
// sentinels handlers and servers can match with errors.Is, wrapped with
// context via fmt.Errorf("...: %w").
package errs

import "errors"

var (
	// ErrTimeout signals a read/operation deadline expired.
	ErrTimeout = errors.New("timeout")
	// ErrPeerClosed signals the peer closed the connection; normal
	// termination, not a failure.
	ErrPeerClosed = errors.New("peer closed connection")
	// ErrMalformedProtocol signals a bad IAC frame, incomplete
	// subnegotiation, or invalid UTF-8 where text was expected.
	ErrMalformedProtocol = errors.New("malformed protocol data")
	// ErrCapacityExceeded signals the server is at its connection cap.
	ErrCapacityExceeded = errors.New("server at maximum capacity")
	// ErrForbiddenOrigin signals a WebSocket Origin header failed the
	// allow-list check.
	ErrForbiddenOrigin = errors.New("origin not allowed")
	// ErrEndpointNotFound signals a WebSocket path didn't match any
	// configured endpoint.
	ErrEndpointNotFound = errors.New("endpoint not found")
	// ErrWriterFailed signals a write/drain/send failure on a transport
	// writer.
	ErrWriterFailed = errors.New("writer failed")
	// ErrNotImplemented signals a handler method the base type leaves
	// abstract.
	ErrNotImplemented = errors.New("not implemented")
)
