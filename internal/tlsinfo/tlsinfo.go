// Package tlsinfo describes the parameters a TLS handshake settled on,
// in the enumerated vocabulary exposed to request handlers: protocol
// version, bulk cipher, MAC hash and key exchange, each with a strength
// in bits.
package tlsinfo

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"fmt"

	"httpsd/internal/errors"
)

// Protocol is a negotiated protocol version.  The zero value means no
// handshake has taken place.
type Protocol int

const (
	ProtocolNone Protocol = iota
	SSL3
	TLS10
	TLS11
	TLS12
	TLS13
)

var protocolNames = map[Protocol]string{
	ProtocolNone: "None",
	SSL3:         "SSL3.0",
	TLS10:        "TLS1.0",
	TLS11:        "TLS1.1",
	TLS12:        "TLS1.2",
	TLS13:        "TLS1.3",
}

func (p Protocol) String() string {
	if s, ok := protocolNames[p]; ok {
		return s
	}
	return fmt.Sprintf("Protocol(%d)", int(p))
}

// IsDefined reports whether p is one of the enumerated versions.
func (p Protocol) IsDefined() bool {
	_, ok := protocolNames[p]
	return ok
}

// ProtocolFromVersion maps a wire version (tls.VersionTLS12, ...) onto
// the enumeration.
func ProtocolFromVersion(v uint16) (Protocol, error) {
	switch v {
	case tls.VersionSSL30: //nolint:staticcheck // still a defined wire value
		return SSL3, nil
	case tls.VersionTLS10:
		return TLS10, nil
	case tls.VersionTLS11:
		return TLS11, nil
	case tls.VersionTLS12:
		return TLS12, nil
	case tls.VersionTLS13:
		return TLS13, nil
	default:
		return ProtocolNone, fmt.Errorf("%w: 0x%04x", errors.ErrUnsupportedProtocolVersion, v)
	}
}

// CipherAlgorithm is the bulk encryption algorithm.  Null is an
// explicit no-encryption suite and sorts below every real cipher.
type CipherAlgorithm int

const (
	CipherNone CipherAlgorithm = iota
	CipherNull
	CipherRC4
	Cipher3DES
	CipherAES128
	CipherAES256
	CipherChaCha20
)

func (c CipherAlgorithm) String() string {
	switch c {
	case CipherNone:
		return "None"
	case CipherNull:
		return "Null"
	case CipherRC4:
		return "RC4"
	case Cipher3DES:
		return "3DES"
	case CipherAES128:
		return "AES128"
	case CipherAES256:
		return "AES256"
	case CipherChaCha20:
		return "ChaCha20"
	default:
		return fmt.Sprintf("Cipher(%d)", int(c))
	}
}

// HashAlgorithm is the suite's MAC/PRF hash.
type HashAlgorithm int

const (
	HashNone HashAlgorithm = iota
	HashMD5
	HashSHA1
	HashSHA256
	HashSHA384
)

func (h HashAlgorithm) String() string {
	switch h {
	case HashNone:
		return "None"
	case HashMD5:
		return "MD5"
	case HashSHA1:
		return "SHA1"
	case HashSHA256:
		return "SHA256"
	case HashSHA384:
		return "SHA384"
	default:
		return fmt.Sprintf("Hash(%d)", int(h))
	}
}

// ExchangeAlgorithm is the key exchange mechanism.
type ExchangeAlgorithm int

const (
	ExchangeNone ExchangeAlgorithm = iota
	ExchangeRSA
	ExchangeECDHE
	ExchangeHybridMLKEM
)

func (e ExchangeAlgorithm) String() string {
	switch e {
	case ExchangeNone:
		return "None"
	case ExchangeRSA:
		return "RSA"
	case ExchangeECDHE:
		return "ECDHE"
	case ExchangeHybridMLKEM:
		return "X25519MLKEM768"
	default:
		return fmt.Sprintf("Exchange(%d)", int(e))
	}
}

// HandshakeResult is an immutable snapshot of negotiated parameters.
// Strengths are bit lengths; HashStrength is 0 for AEAD suites where
// integrity comes from the cipher rather than a keyed MAC.
type HandshakeResult struct {
	Protocol             Protocol
	CipherAlgorithm      CipherAlgorithm
	CipherStrength       int
	HashAlgorithm        HashAlgorithm
	HashStrength         int
	KeyExchangeAlgorithm ExchangeAlgorithm
	KeyExchangeStrength  int

	ServerName         string
	NegotiatedProtocol string
	DidResume          bool

	Version     uint16
	CipherSuite uint16
	CurveID     tls.CurveID
}

// String renders the result the way access logs print it.
func (r HandshakeResult) String() string {
	return fmt.Sprintf("%s %s/%d %s/%d %s/%d",
		r.Protocol,
		r.CipherAlgorithm, r.CipherStrength,
		r.HashAlgorithm, r.HashStrength,
		r.KeyExchangeAlgorithm, r.KeyExchangeStrength)
}

// Valid reports whether every negotiated field is populated.
func (r HandshakeResult) Valid() bool {
	return r.Protocol > ProtocolNone && r.Protocol.IsDefined() &&
		r.CipherAlgorithm > CipherNull && r.CipherStrength > 0 &&
		r.HashAlgorithm > HashNone && r.HashStrength >= 0 &&
		r.KeyExchangeAlgorithm > ExchangeNone && r.KeyExchangeStrength > 0
}

// FromConnectionState builds a HandshakeResult from a completed
// handshake.  serverCert is the certificate the server presented; it
// sizes RSA key transport, where the exchange strength is the modulus.
func FromConnectionState(cs tls.ConnectionState, serverCert *x509.Certificate) (HandshakeResult, error) {
	if !cs.HandshakeComplete {
		return HandshakeResult{}, fmt.Errorf("handshake not complete")
	}
	proto, err := ProtocolFromVersion(cs.Version)
	if err != nil {
		return HandshakeResult{}, err
	}
	suite, ok := suites[cs.CipherSuite]
	if !ok {
		return HandshakeResult{}, fmt.Errorf("%w: %s", errors.ErrUnsupportedCipherSuite, tls.CipherSuiteName(cs.CipherSuite))
	}

	r := HandshakeResult{
		Protocol:           proto,
		CipherAlgorithm:    suite.cipher,
		CipherStrength:     suite.cipherBits,
		HashAlgorithm:      suite.hash,
		HashStrength:       suite.hashBits,
		ServerName:         cs.ServerName,
		NegotiatedProtocol: cs.NegotiatedProtocol,
		DidResume:          cs.DidResume,
		Version:            cs.Version,
		CipherSuite:        cs.CipherSuite,
		CurveID:            cs.CurveID,
	}

	switch {
	case suite.rsaKeyTransport:
		r.KeyExchangeAlgorithm = ExchangeRSA
		r.KeyExchangeStrength = publicKeyBits(serverCert)
		if r.KeyExchangeStrength == 0 {
			r.KeyExchangeStrength = 2048
		}
	default:
		r.KeyExchangeAlgorithm, r.KeyExchangeStrength = exchangeForCurve(cs.CurveID)
	}
	return r, nil
}

// exchangeForCurve maps the negotiated group.  A zero CurveID happens
// on resumed TLS 1.2 sessions, which reuse an ephemeral exchange whose
// group is no longer reported; assume the 256-bit default.
func exchangeForCurve(id tls.CurveID) (ExchangeAlgorithm, int) {
	switch id {
	case tls.X25519:
		return ExchangeECDHE, 255
	case tls.CurveP256:
		return ExchangeECDHE, 256
	case tls.CurveP384:
		return ExchangeECDHE, 384
	case tls.CurveP521:
		return ExchangeECDHE, 521
	case tls.X25519MLKEM768:
		return ExchangeHybridMLKEM, 768
	default:
		return ExchangeECDHE, 256
	}
}

func publicKeyBits(cert *x509.Certificate) int {
	if cert == nil {
		return 0
	}
	switch k := cert.PublicKey.(type) {
	case *rsa.PublicKey:
		return k.N.BitLen()
	case *ecdsa.PublicKey:
		return k.Curve.Params().BitSize
	case ed25519.PublicKey:
		return 255
	default:
		return 0
	}
}
