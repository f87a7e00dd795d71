package errors

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"testing"
)

func TestNetworkError_Format(t *testing.T) {
	tests := []struct {
		name string
		err  NetworkError
		want string
	}{
		{
			name: "retryable",
			err:  NetworkError{Op: "dial", Addr: "example.com:80", Err: io.EOF, Retryable: true},
			want: "dial example.com:80: EOF (retryable)",
		},
		{
			name: "non-retryable",
			err:  NetworkError{Op: "listen", Addr: ":8080", Err: fmt.Errorf("bind failed")},
			want: "listen :8080: bind failed",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNetworkError_Unwrap(t *testing.T) {
	err := &NetworkError{Op: "dial", Addr: "x", Err: io.EOF}
	if !Is(err, io.EOF) {
		t.Error("should unwrap to io.EOF")
	}
}

func TestConfigError_Format(t *testing.T) {
	tests := []struct {
		name string
		err  ConfigError
		want string
	}{
		{
			name: "with value and hint",
			err: ConfigError{
				Field:   "port",
				Value:   99999,
				Message: "out of range 1-65535",
				Hint:    "use a port between 1 and 65535",
			},
			want: "config: --port=99999: out of range 1-65535\n  hint: use a port between 1 and 65535",
		},
		{
			name: "missing value no hint",
			err: ConfigError{
				Field:   "client-ca",
				Message: "requires --client-cert-mode=require",
			},
			want: "config: --client-ca: requires --client-cert-mode=require",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("got:\n%s\nwant:\n%s", got, tt.want)
			}
		})
	}
}

func TestWrap(t *testing.T) {
	inner := fmt.Errorf("connection refused")
	err := Wrap("accept", "0.0.0.0:8443", inner)

	if err.Op != "accept" || err.Addr != "0.0.0.0:8443" {
		t.Errorf("wrong fields: Op=%q Addr=%q", err.Op, err.Addr)
	}
	if !Is(err, inner) {
		t.Error("should unwrap to inner error")
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"retryable network", &NetworkError{Op: "dial", Addr: "x", Err: io.EOF, Retryable: true}, true},
		{"non-retryable network", &NetworkError{Op: "dial", Addr: "x", Err: io.EOF, Retryable: false}, false},
		{"plain error", fmt.Errorf("boom"), false},
		{"handshake", &HandshakeError{Reason: Timeout, Err: ErrTimeout}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsTemporary(t *testing.T) {
	ne := &NetworkError{Op: "read", Addr: "x", Err: io.EOF, Retryable: true}
	if !IsTemporary(ne) {
		t.Error("expected temporary")
	}
}

func TestClassifyRetryable_NetOpError(t *testing.T) {
	opErr := &net.OpError{
		Op:  "dial",
		Net: "tcp",
		Err: &net.DNSError{IsTemporary: true},
	}
	if !classifyRetryable(opErr) {
		t.Error("temporary OpError should be retryable")
	}
}

func TestSentinels(t *testing.T) {
	// Verify sentinel errors are distinct.
	sentinels := []error{
		ErrServerClosed, ErrListenerStarted, ErrOperationCancelled,
		ErrRenegotiationUnsupported, ErrPeerDeclined, ErrBodyLengthMismatch,
		ErrHandlerFault, ErrTimeout, ErrNoCertificate,
	}
	for i, a := range sentinels {
		for j, b := range sentinels {
			if i != j && Is(a, b) {
				t.Errorf("sentinel %d and %d should not match", i, j)
			}
		}
	}
}

func TestHandshakeError(t *testing.T) {
	err := &HandshakeError{Reason: NoSharedCipher, Remote: "127.0.0.1:5000", Err: io.EOF}
	want := "tls handshake 127.0.0.1:5000 (no_shared_cipher): EOF"
	if got := err.Error(); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	wrapped := fmt.Errorf("serve: %w", err)
	if got := HandshakeReasonOf(wrapped); got != NoSharedCipher {
		t.Errorf("HandshakeReasonOf = %v, want %v", got, NoSharedCipher)
	}
	if got := HandshakeReasonOf(io.EOF); got != 0 {
		t.Errorf("HandshakeReasonOf(EOF) = %v, want 0", got)
	}
	if !Is(wrapped, io.EOF) {
		t.Error("should unwrap to io.EOF")
	}
}

func TestReasonStrings(t *testing.T) {
	tests := []struct {
		got  string
		want string
	}{
		{CertificateRejected.String(), "certificate_rejected"},
		{ProtocolMismatch.String(), "protocol_mismatch"},
		{Timeout.String(), "timeout"},
		{ConnectionReset.String(), "connection_reset"},
		{RenegotiationUnsupported.String(), "renegotiation_unsupported"},
		{PeerDeclined.String(), "peer_declined"},
		{BodyLengthMismatch.String(), "body_length_mismatch"},
		{HandlerFault.String(), "handler_fault"},
		{HandshakeReason(42).String(), "reason(42)"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("got %q, want %q", tt.got, tt.want)
		}
	}
}

func TestCancelled(t *testing.T) {
	err := Cancelled(context.Canceled)
	if err.Reason != OperationCancelled {
		t.Errorf("reason = %v, want %v", err.Reason, OperationCancelled)
	}
	if !Is(err, ErrOperationCancelled) {
		t.Error("should match ErrOperationCancelled")
	}
}

func TestIsTimeout(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"deadline", context.DeadlineExceeded, true},
		{"os deadline", fmt.Errorf("read: %w", os.ErrDeadlineExceeded), true},
		{"sentinel", ErrTimeout, true},
		{"plain", io.EOF, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTimeout(tt.err); got != tt.want {
				t.Errorf("IsTimeout() = %v, want %v", got, tt.want)
			}
		})
	}
}
