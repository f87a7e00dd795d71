package metrics

import "testing"

// BenchmarkCollector_RequestCompleted measures the per-request cost
// paid on every dispatched response.
func BenchmarkCollector_RequestCompleted(b *testing.B) {
	c := New()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.RequestCompleted(200)
	}
}

// BenchmarkCollector_HandshakeFailed measures the keyed failure counter.
func BenchmarkCollector_HandshakeFailed(b *testing.B) {
	c := New()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.HandshakeFailed("certificate_rejected")
	}
}

// BenchmarkCollector_JSON measures the shutdown summary export.
func BenchmarkCollector_JSON(b *testing.B) {
	c := New()
	c.ConnectionOpened()
	c.HandshakeSucceeded()
	c.HandshakeFailed("timeout")
	c.RequestCompleted(200)
	c.BytesSent(1024)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = c.JSON()
	}
}

// BenchmarkNilCollector verifies nil-safe no-ops have zero overhead.
func BenchmarkNilCollector(b *testing.B) {
	var c *Collector
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.ConnectionOpened()
		c.HandshakeFailed("timeout")
		c.RequestCompleted(200)
	}
}
