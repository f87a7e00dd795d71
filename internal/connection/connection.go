// Package connection binds one accepted socket to its TLS session and
// the feature set handed to request handlers.
//
// A Connection is created only after the handshake completes, so its
// features are always populated by the time any handler sees them.
package connection

import (
	"context"
	"crypto/tls"
	"net"
	"sync"

	"httpsd/internal/clientcert"
	"httpsd/internal/handshake"
	"httpsd/internal/metrics"
	"httpsd/util"
)

// Connection encapsulates the runtime state of one accepted connection.
// It owns its TLS session and certificate cache exclusively.
type Connection struct {
	ID     uint64
	Logger *util.Logger

	session  *handshake.Session
	features *Features

	ctx    context.Context
	cancel context.CancelFunc

	closeOnce sync.Once
	closeErr  error
}

// New wraps an established session.  The connection's context derives
// from parent.  Renegotiation is wired to the certificate broker only
// when the session was set up to defer client authentication and the
// engine can carry it out.
func New(parent context.Context, id uint64, sess *handshake.Session, logger *util.Logger, m *metrics.Collector) *Connection {
	if logger == nil {
		logger = util.NewLogger(0)
	}
	ctx, cancel := context.WithCancel(parent)

	var fetcher clientcert.Fetcher
	if sess.Mode() == handshake.ClientCertRenegotiate && sess.CanRenegotiate() {
		fetcher = sess
	}
	broker := clientcert.NewBroker(clientcert.Options{
		Initial:     sess.PeerCertificates(),
		Requested:   sess.ClientCertRequested(),
		Fetcher:     fetcher,
		BaseContext: ctx,
		Logger:      logger,
		Metrics:     m,
	})

	return &Connection{
		ID:       id,
		Logger:   logger,
		session:  sess,
		features: NewFeatures(sess, broker),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Conn returns the TLS connection carrying decrypted application data.
func (c *Connection) Conn() *tls.Conn { return c.session.Conn() }

// LocalAddr returns the local endpoint.
func (c *Connection) LocalAddr() net.Addr { return c.session.Conn().LocalAddr() }

// RemoteAddr returns the peer endpoint.
func (c *Connection) RemoteAddr() net.Addr { return c.session.Conn().RemoteAddr() }

// Features returns the read-only view exposed to handlers.
func (c *Connection) Features() *Features { return c.features }

// Context is cancelled when the connection closes.  Background work
// scoped to the connection, such as a pending renegotiation, uses it.
func (c *Connection) Context() context.Context { return c.ctx }

// Close tears down the session.  It is safe to call more than once.
func (c *Connection) Close() error {
	c.closeOnce.Do(func() {
		c.cancel()
		c.closeErr = c.session.Close()
	})
	return c.closeErr
}
