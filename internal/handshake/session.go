package handshake

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"sync"

	"httpsd/internal/errors"
	"httpsd/internal/tlsinfo"
)

// Session is an established TLS session on one connection.
type Session struct {
	conn      *tls.Conn
	adapter   *Adapter
	requested bool

	mu     sync.RWMutex
	result tlsinfo.HandshakeResult
	peer   []*x509.Certificate
}

// Conn returns the TLS connection carrying decrypted application data.
func (s *Session) Conn() *tls.Conn { return s.conn }

// Result returns the current negotiated-parameter snapshot.  A
// renegotiation replaces the snapshot as a whole.
func (s *Session) Result() tlsinfo.HandshakeResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.result
}

// PeerCertificates returns the client chain presented so far, leaf
// first.  It is empty when none was requested or sent.
func (s *Session) PeerCertificates() []*x509.Certificate {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.peer
}

// ClientCertRequested reports whether the initial handshake asked the
// client for a certificate.
func (s *Session) ClientCertRequested() bool { return s.requested }

// CanRenegotiate reports whether RequestClientCertificate can reach the
// peer at all.
func (s *Session) CanRenegotiate() bool { return s.adapter.reneg != nil }

// RequestClientCertificate asks the peer for a certificate on the live
// session without tearing it down.  It returns the presented chain, or
// a *errors.CertificateFetchError when the engine cannot renegotiate or
// the peer declines.
func (s *Session) RequestClientCertificate(ctx context.Context) ([]*x509.Certificate, error) {
	if s.adapter.reneg == nil {
		return nil, &errors.CertificateFetchError{
			Reason: errors.RenegotiationUnsupported,
			Err:    errors.ErrRenegotiationUnsupported,
		}
	}

	cs, err := s.adapter.reneg.Renegotiate(ctx, s.conn)
	if err != nil {
		if ctx.Err() != nil {
			return nil, errors.Cancelled(ctx.Err())
		}
		return nil, &errors.CertificateFetchError{Reason: errors.PeerDeclined, Err: err}
	}

	result, err := tlsinfo.FromConnectionState(cs, s.adapter.leaf)
	if err != nil {
		return nil, &errors.CertificateFetchError{Reason: errors.PeerDeclined, Err: err}
	}

	s.mu.Lock()
	s.result = result
	s.peer = cs.PeerCertificates
	s.mu.Unlock()

	if len(cs.PeerCertificates) == 0 {
		return nil, &errors.CertificateFetchError{Reason: errors.PeerDeclined, Err: errors.ErrPeerDeclined}
	}
	return cs.PeerCertificates, nil
}

// Close sends close_notify and closes the underlying connection.
func (s *Session) Close() error { return s.conn.Close() }

// Mode returns the client certificate mode the session was set up with.
func (s *Session) Mode() ClientCertMode { return s.adapter.mode }
