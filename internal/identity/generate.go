package identity

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"fmt"
	"math/big"
	"net"
	"time"
)

// Options describes a certificate to generate.
type Options struct {
	CommonName string
	Hosts      []string // DNS names and IP addresses
	ValidFor   time.Duration

	ExtKeyUsage        []x509.ExtKeyUsage
	UnknownExtKeyUsage []asn1.ObjectIdentifier

	// Parent signs the certificate; nil produces a self-signed one.
	Parent *tls.Certificate
	IsCA   bool
}

// Generate creates an ECDSA P-256 certificate.
func Generate(opts Options) (tls.Certificate, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("generating key: %w", err)
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("generating serial: %w", err)
	}

	validFor := opts.ValidFor
	if validFor == 0 {
		validFor = 24 * time.Hour
	}
	cn := opts.CommonName
	if cn == "" && len(opts.Hosts) > 0 {
		cn = opts.Hosts[0]
	}

	now := time.Now()
	tmpl := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{CommonName: cn, Organization: []string{"httpsd"}},
		NotBefore:             now.Add(-time.Minute),
		NotAfter:              now.Add(validFor),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           opts.ExtKeyUsage,
		UnknownExtKeyUsage:    opts.UnknownExtKeyUsage,
		BasicConstraintsValid: true,
		IsCA:                  opts.IsCA,
	}
	if opts.IsCA {
		tmpl.KeyUsage |= x509.KeyUsageCertSign
	}
	for _, h := range opts.Hosts {
		if ip := net.ParseIP(h); ip != nil {
			tmpl.IPAddresses = append(tmpl.IPAddresses, ip)
		} else {
			tmpl.DNSNames = append(tmpl.DNSNames, h)
		}
	}

	parent, signer := tmpl, interface{}(key)
	var chain [][]byte
	if opts.Parent != nil {
		if opts.Parent.Leaf == nil {
			if err := fillLeaf(opts.Parent); err != nil {
				return tls.Certificate{}, err
			}
		}
		parent, signer = opts.Parent.Leaf, opts.Parent.PrivateKey
		chain = opts.Parent.Certificate
	}

	der, err := x509.CreateCertificate(rand.Reader, tmpl, parent, &key.PublicKey, signer)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("creating certificate: %w", err)
	}
	leaf, err := x509.ParseCertificate(der)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("parsing certificate: %w", err)
	}

	return tls.Certificate{
		Certificate: append([][]byte{der}, chain...),
		PrivateKey:  key,
		Leaf:        leaf,
	}, nil
}

// SelfSigned returns a development server certificate for hosts, the
// identity a listener falls back to when none is configured.
func SelfSigned(hosts ...string) (tls.Certificate, error) {
	if len(hosts) == 0 {
		hosts = []string{"localhost", "127.0.0.1", "::1"}
	}
	return Generate(Options{
		Hosts:       hosts,
		ExtKeyUsage: []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	})
}
