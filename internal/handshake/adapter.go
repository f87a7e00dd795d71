// Package handshake drives the server side of the TLS handshake on an
// accepted connection and reports what was negotiated.  The engine is
// crypto/tls; the adapter adds timeouts, client certificate policy,
// failure classification, and a pluggable renegotiation capability for
// deferred client certificate requests.
package handshake

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"net"
	"strings"
	"time"

	"httpsd/internal/errors"
	"httpsd/internal/tlsinfo"
	"httpsd/util"
)

// DefaultTimeout bounds the initial handshake.
const DefaultTimeout = 10 * time.Second

// Renegotiator re-runs certificate negotiation on an established
// session and returns the updated connection state.  crypto/tls has no
// server-side renegotiation, so this is an optional engine capability.
type Renegotiator interface {
	Renegotiate(ctx context.Context, conn *tls.Conn) (tls.ConnectionState, error)
}

// RenegotiatorFunc adapts a function to Renegotiator.
type RenegotiatorFunc func(ctx context.Context, conn *tls.Conn) (tls.ConnectionState, error)

// Renegotiate calls f.
func (f RenegotiatorFunc) Renegotiate(ctx context.Context, conn *tls.Conn) (tls.ConnectionState, error) {
	return f(ctx, conn)
}

// Config configures an Adapter.
type Config struct {
	Certificate      tls.Certificate
	MinVersion       uint16 // default TLS 1.2
	MaxVersion       uint16 // 0 = engine maximum
	CipherSuites     []uint16
	CurvePreferences []tls.CurveID

	ClientCertMode ClientCertMode
	// ClientCAs verifies presented client certificates.  When nil any
	// certificate is accepted and left for the handler to judge.
	ClientCAs *x509.CertPool

	Timeout      time.Duration
	Renegotiator Renegotiator
}

// Adapter performs server handshakes.  It is safe for concurrent use;
// its TLS configurations are built once and shared read-only.
type Adapter struct {
	optional *tls.Config
	required *tls.Config
	leaf     *x509.Certificate
	mode     ClientCertMode
	timeout  time.Duration
	reneg    Renegotiator
	logger   *util.Logger
}

// NewAdapter validates cfg and prepares the TLS configurations.
func NewAdapter(cfg Config, logger *util.Logger) (*Adapter, error) {
	if len(cfg.Certificate.Certificate) == 0 {
		return nil, errors.ErrNoCertificate
	}
	if logger == nil {
		logger = util.NewLogger(0)
	}

	leaf := cfg.Certificate.Leaf
	if leaf == nil {
		var err error
		leaf, err = x509.ParseCertificate(cfg.Certificate.Certificate[0])
		if err != nil {
			return nil, err
		}
	}

	minVersion := cfg.MinVersion
	if minVersion == 0 {
		minVersion = tls.VersionTLS12
	}

	base := &tls.Config{
		Certificates:     []tls.Certificate{cfg.Certificate},
		MinVersion:       minVersion,
		MaxVersion:       cfg.MaxVersion,
		CipherSuites:     cfg.CipherSuites,
		CurvePreferences: cfg.CurvePreferences,
		NextProtos:       []string{"http/1.1"},
		ClientCAs:        cfg.ClientCAs,
	}

	optional := base.Clone()
	if cfg.ClientCertMode == ClientCertAllow {
		optional.ClientAuth = tls.RequestClientCert
		if cfg.ClientCAs != nil {
			optional.ClientAuth = tls.VerifyClientCertIfGiven
		}
	}

	required := base.Clone()
	required.ClientAuth = tls.RequireAnyClientCert
	if cfg.ClientCAs != nil {
		required.ClientAuth = tls.RequireAndVerifyClientCert
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Adapter{
		optional: optional,
		required: required,
		leaf:     leaf,
		mode:     cfg.ClientCertMode,
		timeout:  timeout,
		reneg:    cfg.Renegotiator,
		logger:   logger,
	}, nil
}

// Mode returns the configured client certificate mode.
func (a *Adapter) Mode() ClientCertMode { return a.mode }

// SupportsRenegotiation reports whether deferred client certificate
// requests can reach the peer.
func (a *Adapter) SupportsRenegotiation() bool { return a.reneg != nil }

// PerformHandshake runs the server handshake on raw.  With
// requireClientCert the handshake fails unless the client presents a
// certificate; otherwise the configured mode decides whether one is
// requested.  On failure the returned error is a *errors.HandshakeError
// and the caller must close raw without sending anything.
func (a *Adapter) PerformHandshake(ctx context.Context, raw net.Conn, requireClientCert bool) (*Session, error) {
	cfg := a.optional
	if requireClientCert || a.mode == ClientCertRequire {
		cfg = a.required
	}
	requested := cfg.ClientAuth != tls.NoClientCert

	hctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	remote := raw.RemoteAddr().String()
	start := time.Now()

	conn := tls.Server(raw, cfg)
	if err := conn.HandshakeContext(hctx); err != nil {
		reason := classify(err)
		if reason == errors.Timeout && ctx.Err() == nil {
			err = errors.Join(errors.ErrTimeout, err)
		}
		return nil, &errors.HandshakeError{Reason: reason, Remote: remote, Err: err}
	}

	cs := conn.ConnectionState()
	result, err := tlsinfo.FromConnectionState(cs, a.leaf)
	if err != nil {
		return nil, &errors.HandshakeError{Reason: errors.NoSharedCipher, Remote: remote, Err: err}
	}

	a.logger.Debug("handshake %s: %s in %s", remote, result, time.Since(start).Truncate(time.Microsecond))

	return &Session{
		conn:      conn,
		adapter:   a,
		requested: requested,
		result:    result,
		peer:      cs.PeerCertificates,
	}, nil
}

// classify maps an engine error onto a handshake failure reason.
// crypto/tls reports most negotiation failures as plain errors, so the
// message is the only signal for some of them.
func classify(err error) errors.HandshakeReason {
	if errors.IsTimeout(err) {
		return errors.Timeout
	}
	if errors.Is(err, context.Canceled) {
		return errors.ConnectionReset
	}
	var verr *tls.CertificateVerificationError
	if errors.As(err, &verr) {
		return errors.CertificateRejected
	}
	if util.IsHarmless(err) {
		return errors.ConnectionReset
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "cipher suite"), strings.Contains(msg, "no mutual"),
		strings.Contains(msg, "no ecdhe curve"), strings.Contains(msg, "handshake failure"):
		return errors.NoSharedCipher
	case strings.Contains(msg, "certificate"):
		return errors.CertificateRejected
	case strings.Contains(msg, "connection reset"), strings.Contains(msg, "broken pipe"):
		return errors.ConnectionReset
	default:
		return errors.ProtocolMismatch
	}
}
