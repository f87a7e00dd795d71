package connection

import (
	"context"
	"crypto/x509"

	"httpsd/internal/clientcert"
	"httpsd/internal/tlsinfo"
)

// ResultSource supplies the current handshake snapshot.
type ResultSource interface {
	Result() tlsinfo.HandshakeResult
}

// Features is the per-connection capability set exposed to handlers:
// negotiated handshake parameters plus access to the client
// certificate.  All methods are safe for concurrent use.
type Features struct {
	source ResultSource
	broker *clientcert.Broker
}

// NewFeatures returns a feature set reading from source and broker.
func NewFeatures(source ResultSource, broker *clientcert.Broker) *Features {
	return &Features{source: source, broker: broker}
}

// Handshake returns the negotiated-parameter snapshot.  After a
// renegotiation it reflects the updated session as a whole.
func (f *Features) Handshake() tlsinfo.HandshakeResult { return f.source.Result() }

func (f *Features) Protocol() tlsinfo.Protocol { return f.Handshake().Protocol }

func (f *Features) CipherAlgorithm() tlsinfo.CipherAlgorithm {
	return f.Handshake().CipherAlgorithm
}

func (f *Features) CipherStrength() int { return f.Handshake().CipherStrength }

func (f *Features) HashAlgorithm() tlsinfo.HashAlgorithm { return f.Handshake().HashAlgorithm }

func (f *Features) HashStrength() int { return f.Handshake().HashStrength }

func (f *Features) KeyExchangeAlgorithm() tlsinfo.ExchangeAlgorithm {
	return f.Handshake().KeyExchangeAlgorithm
}

func (f *Features) KeyExchangeStrength() int { return f.Handshake().KeyExchangeStrength }

// ClientCertificate returns the certificate already known for the
// connection, or nil.  It never triggers renegotiation.
func (f *Features) ClientCertificate() *x509.Certificate { return f.broker.Certificate() }

// ClientCertificateState reports where the certificate lookup stands.
func (f *Features) ClientCertificateState() clientcert.State { return f.broker.State() }

// GetClientCertificate returns the client certificate, asking the peer
// for one if the connection allows it.  Cancelling ctx abandons only
// this wait.
func (f *Features) GetClientCertificate(ctx context.Context) (*x509.Certificate, error) {
	return f.broker.GetClientCertificate(ctx)
}
