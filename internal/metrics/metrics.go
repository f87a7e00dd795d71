// Package metrics provides lightweight, lock-free counters and gauges
// for tracking runtime statistics of an HTTPS listener.
//
// All methods are safe for concurrent use.  A nil *Collector is a
// valid no-op receiver, so callers never need to nil-check.
package metrics

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"
)

// Collector tracks runtime metrics for a listener.
// A nil Collector is safe to use; every method is a no-op.
type Collector struct {
	connectionsActive atomic.Int64
	connectionsTotal  atomic.Int64
	bytesIn           atomic.Int64
	bytesOut          atomic.Int64
	handshakesOK      atomic.Int64
	handshakesFailed  atomic.Int64
	renegotiations    atomic.Int64
	requestsTotal     atomic.Int64
	serverErrors      atomic.Int64
	requestsAborted   atomic.Int64
	errorsTotal       atomic.Int64

	mu               sync.RWMutex
	startTime        time.Time
	handshakeReasons map[string]int64
	lastError        time.Time
	lastErrorMsg     string
}

// New creates a metrics collector with the start time set to now.
func New() *Collector {
	return &Collector{
		startTime:        time.Now(),
		handshakeReasons: make(map[string]int64),
	}
}

// ── Connection metrics ───────────────────────────────────────────────

// ConnectionOpened increments both the active and total counters.
func (c *Collector) ConnectionOpened() {
	if c == nil {
		return
	}
	c.connectionsActive.Add(1)
	c.connectionsTotal.Add(1)
}

// ConnectionClosed decrements the active connection counter.
func (c *Collector) ConnectionClosed() {
	if c == nil {
		return
	}
	c.connectionsActive.Add(-1)
}

// ActiveConnections returns the current number of open connections.
func (c *Collector) ActiveConnections() int64 {
	if c == nil {
		return 0
	}
	return c.connectionsActive.Load()
}

// TotalConnections returns the lifetime connection count.
func (c *Collector) TotalConnections() int64 {
	if c == nil {
		return 0
	}
	return c.connectionsTotal.Load()
}

// ── I/O metrics ──────────────────────────────────────────────────────

// BytesReceived records n bytes read from the network.
func (c *Collector) BytesReceived(n int64) {
	if c == nil {
		return
	}
	c.bytesIn.Add(n)
}

// BytesSent records n bytes written to the network.
func (c *Collector) BytesSent(n int64) {
	if c == nil {
		return
	}
	c.bytesOut.Add(n)
}

// TotalBytesIn returns total bytes received.
func (c *Collector) TotalBytesIn() int64 {
	if c == nil {
		return 0
	}
	return c.bytesIn.Load()
}

// TotalBytesOut returns total bytes sent.
func (c *Collector) TotalBytesOut() int64 {
	if c == nil {
		return 0
	}
	return c.bytesOut.Load()
}

// ── TLS metrics ──────────────────────────────────────────────────────

// HandshakeSucceeded records a completed TLS handshake.
func (c *Collector) HandshakeSucceeded() {
	if c == nil {
		return
	}
	c.handshakesOK.Add(1)
}

// HandshakeFailed records a failed handshake under the given reason.
func (c *Collector) HandshakeFailed(reason string) {
	if c == nil {
		return
	}
	c.handshakesFailed.Add(1)
	c.mu.Lock()
	c.handshakeReasons[reason]++
	c.mu.Unlock()
}

// Handshakes returns the succeeded and failed handshake counts.
func (c *Collector) Handshakes() (ok, failed int64) {
	if c == nil {
		return 0, 0
	}
	return c.handshakesOK.Load(), c.handshakesFailed.Load()
}

// HandshakeFailures returns the failure count for one reason.
func (c *Collector) HandshakeFailures(reason string) int64 {
	if c == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.handshakeReasons[reason]
}

// Renegotiation records a client-certificate renegotiation attempt.
func (c *Collector) Renegotiation() {
	if c == nil {
		return
	}
	c.renegotiations.Add(1)
}

// Renegotiations returns the number of renegotiations started.
func (c *Collector) Renegotiations() int64 {
	if c == nil {
		return 0
	}
	return c.renegotiations.Load()
}

// ── Request metrics ──────────────────────────────────────────────────

// RequestCompleted records a dispatched request and its final status.
func (c *Collector) RequestCompleted(status int) {
	if c == nil {
		return
	}
	c.requestsTotal.Add(1)
	if status >= 500 {
		c.serverErrors.Add(1)
	}
}

// RequestAborted records a request whose connection had to be torn
// down after response bytes were already sent.
func (c *Collector) RequestAborted() {
	if c == nil {
		return
	}
	c.requestsTotal.Add(1)
	c.requestsAborted.Add(1)
}

// Requests returns the total number of dispatched requests.
func (c *Collector) Requests() int64 {
	if c == nil {
		return 0
	}
	return c.requestsTotal.Load()
}

// ── Error metrics ────────────────────────────────────────────────────

// RecordError increments the error counter and stores the message.
func (c *Collector) RecordError(msg string) {
	if c == nil {
		return
	}
	c.errorsTotal.Add(1)
	c.mu.Lock()
	c.lastError = time.Now()
	c.lastErrorMsg = msg
	c.mu.Unlock()
}

// ErrorCount returns the total number of errors recorded.
func (c *Collector) ErrorCount() int64 {
	if c == nil {
		return 0
	}
	return c.errorsTotal.Load()
}

// ── Snapshot ─────────────────────────────────────────────────────────

// Snapshot is a point-in-time view of all metrics.
type Snapshot struct {
	Uptime            string           `json:"uptime"`
	ConnectionsActive int64            `json:"connections_active"`
	ConnectionsTotal  int64            `json:"connections_total"`
	BytesIn           int64            `json:"bytes_in"`
	BytesOut          int64            `json:"bytes_out"`
	HandshakesOK      int64            `json:"handshakes_ok"`
	HandshakesFailed  int64            `json:"handshakes_failed"`
	HandshakeReasons  map[string]int64 `json:"handshake_failure_reasons,omitempty"`
	Renegotiations    int64            `json:"renegotiations"`
	RequestsTotal     int64            `json:"requests_total"`
	ServerErrors      int64            `json:"server_errors"`
	RequestsAborted   int64            `json:"requests_aborted"`
	ErrorsTotal       int64            `json:"errors_total"`
	LastError         string           `json:"last_error,omitempty"`
	LastErrorMessage  string           `json:"last_error_message,omitempty"`
}

// Snapshot returns a copy of all current metrics.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Snapshot{
		Uptime:            time.Since(c.startTime).Truncate(time.Second).String(),
		ConnectionsActive: c.connectionsActive.Load(),
		ConnectionsTotal:  c.connectionsTotal.Load(),
		BytesIn:           c.bytesIn.Load(),
		BytesOut:          c.bytesOut.Load(),
		HandshakesOK:      c.handshakesOK.Load(),
		HandshakesFailed:  c.handshakesFailed.Load(),
		Renegotiations:    c.renegotiations.Load(),
		RequestsTotal:     c.requestsTotal.Load(),
		ServerErrors:      c.serverErrors.Load(),
		RequestsAborted:   c.requestsAborted.Load(),
		ErrorsTotal:       c.errorsTotal.Load(),
	}
	if len(c.handshakeReasons) > 0 {
		s.HandshakeReasons = make(map[string]int64, len(c.handshakeReasons))
		for k, v := range c.handshakeReasons {
			s.HandshakeReasons[k] = v
		}
	}
	if !c.lastError.IsZero() {
		s.LastError = c.lastError.Format(time.RFC3339)
		s.LastErrorMessage = c.lastErrorMsg
	}
	return s
}

// JSON returns the snapshot as an indented JSON string.
func (c *Collector) JSON() string {
	s := c.Snapshot()
	data, _ := json.MarshalIndent(s, "", "  ")
	return string(data)
}
