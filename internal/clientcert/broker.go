// Package clientcert brokers access to a connection's client
// certificate.  Handlers that never ask pay nothing; the first handler
// that asks may trigger a renegotiation, and every later or concurrent
// caller shares its outcome.
package clientcert

import (
	"context"
	"crypto/x509"
	"fmt"
	"sync"

	"httpsd/internal/errors"
	"httpsd/internal/metrics"
	"httpsd/util"
)

// State is the certificate state of a connection.  It only moves
// forward: NotRequested → Pending → Present|Absent.
type State int

const (
	NotRequested State = iota
	Pending
	Present
	Absent
)

func (s State) String() string {
	switch s {
	case NotRequested:
		return "not_requested"
	case Pending:
		return "pending"
	case Present:
		return "present"
	case Absent:
		return "absent"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Resolved reports whether s is terminal.
func (s State) Resolved() bool { return s == Present || s == Absent }

// Fetcher requests a certificate from the peer on the live session.
type Fetcher interface {
	RequestClientCertificate(ctx context.Context) ([]*x509.Certificate, error)
}

// Options configures a Broker.
type Options struct {
	// Initial is the chain presented during the handshake, if any.
	Initial []*x509.Certificate
	// Requested is true when the handshake asked for a certificate, in
	// which case an empty Initial means the client declined.
	Requested bool
	// Fetcher triggers renegotiation.  Nil means the certificate can
	// never be requested after the handshake.
	Fetcher Fetcher
	// BaseContext bounds background renegotiations; it should be
	// cancelled when the connection closes.
	BaseContext context.Context

	Logger  *util.Logger
	Metrics *metrics.Collector
}

// Broker is the per-connection certificate cache.  It is safe for
// concurrent use.
type Broker struct {
	fetcher Fetcher
	base    context.Context
	logger  *util.Logger
	metrics *metrics.Collector

	mu     sync.Mutex
	state  State
	chain  []*x509.Certificate
	reason error
	done   chan struct{} // closed when a pending fetch resolves
}

// NewBroker returns a broker seeded from the handshake outcome.
func NewBroker(opts Options) *Broker {
	b := &Broker{
		fetcher: opts.Fetcher,
		base:    opts.BaseContext,
		logger:  opts.Logger,
		metrics: opts.Metrics,
		state:   NotRequested,
	}
	if b.base == nil {
		b.base = context.Background()
	}
	if b.logger == nil {
		b.logger = util.NewLogger(0)
	}
	switch {
	case len(opts.Initial) > 0:
		b.state = Present
		b.chain = opts.Initial
	case opts.Requested:
		b.state = Absent
		b.reason = errors.ErrPeerDeclined
	}
	return b
}

// State returns the current state.
func (b *Broker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Certificate returns the leaf certificate if one is already present.
// It never triggers a fetch.
func (b *Broker) Certificate() *x509.Certificate {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != Present {
		return nil
	}
	return b.chain[0]
}

// Chain returns the presented chain, leaf first, if present.
func (b *Broker) Chain() []*x509.Certificate {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != Present {
		return nil
	}
	return b.chain
}

// AbsentReason explains an Absent state; nil otherwise.
func (b *Broker) AbsentReason() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != Absent {
		return nil
	}
	return b.reason
}

// GetClientCertificate returns the client certificate, fetching it on
// first use.  A resolved state returns immediately.  Otherwise the
// caller waits for the single in-flight fetch; if ctx ends first the
// call fails with OperationCancelled while the fetch carries on and its
// result is cached for later callers.  A nil certificate with a nil
// error means the client has none.
func (b *Broker) GetClientCertificate(ctx context.Context) (*x509.Certificate, error) {
	b.mu.Lock()
	switch b.state {
	case Present:
		cert := b.chain[0]
		b.mu.Unlock()
		return cert, nil
	case Absent:
		b.mu.Unlock()
		return nil, nil
	case NotRequested:
		if b.fetcher == nil {
			b.state = Absent
			b.reason = errors.ErrRenegotiationUnsupported
			b.mu.Unlock()
			return nil, nil
		}
		b.state = Pending
		b.done = make(chan struct{})
		go b.fetch()
	}
	done := b.done
	b.mu.Unlock()

	select {
	case <-done:
		return b.Certificate(), nil
	case <-ctx.Done():
		return nil, errors.Cancelled(ctx.Err())
	}
}

func (b *Broker) fetch() {
	b.metrics.Renegotiation()
	b.logger.Verbose("requesting client certificate")

	chain, err := b.fetcher.RequestClientCertificate(b.base)

	b.mu.Lock()
	defer b.mu.Unlock()
	if err == nil && len(chain) > 0 {
		b.state = Present
		b.chain = chain
		b.logger.Verbose("client certificate received: %s", chain[0].Subject)
	} else {
		if err == nil {
			err = errors.ErrPeerDeclined
		}
		b.state = Absent
		b.reason = err
		b.logger.Verbose("no client certificate: %v", err)
	}
	close(b.done)
}
