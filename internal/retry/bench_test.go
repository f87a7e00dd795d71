package retry

import (
	"context"
	"errors"
	"testing"
)

// BenchmarkBackoff_ImmediateSuccess measures the probe's common case: the
// server is already up and the first dial succeeds.
func BenchmarkBackoff_ImmediateSuccess(b *testing.B) {
	bo := DefaultBackoff()
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		bo.Do(ctx, func(_ int) error { return nil }) //nolint:errcheck
	}
}

// BenchmarkBackoff_PermanentError measures the exit taken on a failed
// TLS handshake.
func BenchmarkBackoff_PermanentError(b *testing.B) {
	bo := DefaultBackoff()
	ctx := context.Background()
	errHandshake := errors.New("tls: bad certificate")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		bo.Do(ctx, func(_ int) error { return Permanent(errHandshake) }) //nolint:errcheck
	}
}

// BenchmarkAcceptBackoff_Delay measures the per-error cost in the
// listener's accept loop.
func BenchmarkAcceptBackoff_Delay(b *testing.B) {
	bo := AcceptBackoff()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = bo.Delay(i%12 + 1)
	}
}
