// Package errors provides domain-specific error types for httpsd.
//
// Failures are split by layer: handshake errors live below HTTP and are
// fatal to the connection, certificate fetch errors are recoverable and
// resolve to "no certificate", and dispatch errors become 500 responses
// when nothing has been written yet.
package errors

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
)

// ── Sentinel errors ──────────────────────────────────────────────────

var (
	ErrServerClosed               = errors.New("server closed")
	ErrListenerStarted            = errors.New("listener already started")
	ErrOperationCancelled         = errors.New("operation cancelled")
	ErrRenegotiationUnsupported   = errors.New("renegotiation not supported by TLS engine")
	ErrPeerDeclined               = errors.New("peer declined to send a certificate")
	ErrBodyLengthMismatch         = errors.New("response body length does not match Content-Length")
	ErrHandlerFault               = errors.New("handler failed")
	ErrTimeout                    = errors.New("operation timed out")
	ErrNoCertificate              = errors.New("no server certificate configured")
	ErrUnsupportedCipherSuite     = errors.New("unsupported cipher suite")
	ErrUnsupportedProtocolVersion = errors.New("unsupported protocol version")
)

// ── Handshake errors ─────────────────────────────────────────────────

// HandshakeReason classifies why a TLS handshake did not complete.
type HandshakeReason int

const (
	NoSharedCipher HandshakeReason = iota + 1
	CertificateRejected
	ProtocolMismatch
	Timeout
	ConnectionReset
)

func (r HandshakeReason) String() string {
	switch r {
	case NoSharedCipher:
		return "no_shared_cipher"
	case CertificateRejected:
		return "certificate_rejected"
	case ProtocolMismatch:
		return "protocol_mismatch"
	case Timeout:
		return "timeout"
	case ConnectionReset:
		return "connection_reset"
	default:
		return fmt.Sprintf("reason(%d)", int(r))
	}
}

// HandshakeError is fatal to the connection and never retried.
type HandshakeError struct {
	Reason HandshakeReason
	Remote string
	Err    error
}

func (e *HandshakeError) Error() string {
	return fmt.Sprintf("tls handshake %s (%s): %v", e.Remote, e.Reason, e.Err)
}

func (e *HandshakeError) Unwrap() error { return e.Err }

// HandshakeReasonOf returns the reason carried by err, or 0 if err is
// not a handshake error.
func HandshakeReasonOf(err error) HandshakeReason {
	var he *HandshakeError
	if errors.As(err, &he) {
		return he.Reason
	}
	return 0
}

// ── Certificate fetch errors ─────────────────────────────────────────

// FetchReason classifies a failed client certificate retrieval.
type FetchReason int

const (
	OperationCancelled FetchReason = iota + 1
	RenegotiationUnsupported
	PeerDeclined
)

func (r FetchReason) String() string {
	switch r {
	case OperationCancelled:
		return "operation_cancelled"
	case RenegotiationUnsupported:
		return "renegotiation_unsupported"
	case PeerDeclined:
		return "peer_declined"
	default:
		return fmt.Sprintf("reason(%d)", int(r))
	}
}

// CertificateFetchError describes why no client certificate was
// obtained.  Only OperationCancelled is surfaced to callers; the other
// reasons are recorded and resolve to "absent".
type CertificateFetchError struct {
	Reason FetchReason
	Err    error
}

func (e *CertificateFetchError) Error() string {
	return fmt.Sprintf("client certificate (%s): %v", e.Reason, e.Err)
}

func (e *CertificateFetchError) Unwrap() error { return e.Err }

// ── Dispatch errors ──────────────────────────────────────────────────

// DispatchReason classifies a failure above the TLS layer.
type DispatchReason int

const (
	HandlerFault DispatchReason = iota + 1
	BodyLengthMismatch
)

func (r DispatchReason) String() string {
	switch r {
	case HandlerFault:
		return "handler_fault"
	case BodyLengthMismatch:
		return "body_length_mismatch"
	default:
		return fmt.Sprintf("reason(%d)", int(r))
	}
}

// DispatchError is turned into a 500 response when no response bytes
// have been committed, otherwise the connection is aborted.
type DispatchError struct {
	Reason DispatchReason
	Err    error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("dispatch (%s): %v", e.Reason, e.Err)
}

func (e *DispatchError) Unwrap() error { return e.Err }

// ── Network / config errors ──────────────────────────────────────────

// NetworkError represents a failure in a network operation.
type NetworkError struct {
	Op        string // operation: "listen", "accept", "read", "write"
	Addr      string // network address involved
	Err       error  // underlying error
	Retryable bool   // whether the caller should retry
}

func (e *NetworkError) Error() string {
	s := fmt.Sprintf("%s %s: %v", e.Op, e.Addr, e.Err)
	if e.Retryable {
		s += " (retryable)"
	}
	return s
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ConfigError represents an invalid configuration value.
type ConfigError struct {
	Field   string      // config field name
	Value   interface{} // the invalid value (nil if missing)
	Message string      // human-readable explanation
	Hint    string      // suggestion for the user (optional)
}

func (e *ConfigError) Error() string {
	msg := fmt.Sprintf("config: --%s", e.Field)
	if e.Value != nil {
		msg += fmt.Sprintf("=%v", e.Value)
	}
	msg += ": " + e.Message
	if e.Hint != "" {
		msg += "\n  hint: " + e.Hint
	}
	return msg
}

// ── Constructors ─────────────────────────────────────────────────────

// Wrap creates a NetworkError, automatically detecting retryability
// from the underlying error.
func Wrap(op, addr string, err error) *NetworkError {
	return &NetworkError{
		Op:        op,
		Addr:      addr,
		Err:       err,
		Retryable: classifyRetryable(err),
	}
}

// Cancelled returns the error reported to a caller whose certificate
// fetch was abandoned because its context ended.
func Cancelled(cause error) *CertificateFetchError {
	return &CertificateFetchError{
		Reason: OperationCancelled,
		Err:    fmt.Errorf("%w: %v", ErrOperationCancelled, cause),
	}
}

// ── Classification helpers ───────────────────────────────────────────

// IsRetryable reports whether err is worth retrying.  Handshake errors
// never are.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var he *HandshakeError
	if errors.As(err, &he) {
		return false
	}
	var ne *NetworkError
	if errors.As(err, &ne) {
		return ne.Retryable
	}
	return classifyRetryable(err)
}

// IsTemporary reports whether err represents a temporary condition.
func IsTemporary(err error) bool {
	var ne *NetworkError
	if errors.As(err, &ne) {
		return ne.Retryable // temporary ≈ retryable for network errors
	}
	return classifyRetryable(err)
}

// IsTimeout reports whether err is a deadline or i/o timeout.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) || errors.Is(err, ErrTimeout) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// classifyRetryable inspects standard library error types.
func classifyRetryable(err error) bool {
	if err == nil {
		return false
	}
	// net.OpError with Temporary() hint
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		if opErr.Op == "dial" {
			return true
		}
		return opErr.Temporary() //nolint:staticcheck // Temporary is deprecated but still useful
	}
	// DNS errors
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.Temporary() //nolint:staticcheck
	}
	return false
}

// ── Re-exports for convenience ───────────────────────────────────────
//
// These allow callers to use httpsd/internal/errors as a drop-in
// replacement for the standard library in common operations.

// As is [errors.As].
func As(err error, target interface{}) bool { return errors.As(err, target) }

// Is is [errors.Is].
func Is(err, target error) bool { return errors.Is(err, target) }

// New is [errors.New].
func New(text string) error { return errors.New(text) }

// Unwrap is [errors.Unwrap].
func Unwrap(err error) error { return errors.Unwrap(err) }

// Join is [errors.Join].
func Join(errs ...error) error { return errors.Join(errs...) }
