// Package identity loads and creates the X.509 identities the server
// and its probe client present: PEM key pairs, PKCS#12 bundles, a
// directory-backed local store, and throwaway self-signed certificates
// for development listeners.
package identity

import (
	"crypto"
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/crypto/pkcs12"
)

// LoadKeyPair loads a PEM certificate chain and private key.
func LoadKeyPair(certFile, keyFile string) (tls.Certificate, error) {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("failed to load TLS certificate: %w", err)
	}
	if err := fillLeaf(&cert); err != nil {
		return tls.Certificate{}, err
	}
	return cert, nil
}

// LoadPKCS12 loads a .pfx/.p12 bundle from disk.
func LoadPKCS12(path, password string) (tls.Certificate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("reading %s: %w", path, err)
	}
	cert, err := ParsePKCS12(data, password)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("%s: %w", path, err)
	}
	return cert, nil
}

// ParsePKCS12 decodes a PKCS#12 bundle holding one private key and its
// certificate chain.  The leaf is the certificate matching the key;
// the remaining certificates follow it in bundle order.
func ParsePKCS12(data []byte, password string) (tls.Certificate, error) {
	blocks, err := pkcs12.ToPEM(data, password)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("decoding pkcs12: %w", err)
	}

	var (
		key   crypto.PrivateKey
		certs []*x509.Certificate
	)
	for _, b := range blocks {
		switch {
		case b.Type == "CERTIFICATE":
			c, err := x509.ParseCertificate(b.Bytes)
			if err != nil {
				return tls.Certificate{}, fmt.Errorf("parsing certificate: %w", err)
			}
			certs = append(certs, c)
		case strings.HasSuffix(b.Type, "PRIVATE KEY"):
			if key != nil {
				return tls.Certificate{}, fmt.Errorf("pkcs12 bundle holds more than one private key")
			}
			key, err = parsePrivateKey(b.Bytes)
			if err != nil {
				return tls.Certificate{}, err
			}
		}
	}
	if key == nil {
		return tls.Certificate{}, fmt.Errorf("pkcs12 bundle has no private key")
	}
	if len(certs) == 0 {
		return tls.Certificate{}, fmt.Errorf("pkcs12 bundle has no certificate")
	}
	return assemble(key, certs)
}

// assemble orders certs leaf first, the leaf being the certificate whose
// public key matches key.
func assemble(key crypto.PrivateKey, certs []*x509.Certificate) (tls.Certificate, error) {
	leaf := -1
	for i, c := range certs {
		if publicKeyMatches(key, c.PublicKey) {
			leaf = i
			break
		}
	}
	if leaf < 0 {
		return tls.Certificate{}, fmt.Errorf("no certificate in bundle matches its private key")
	}

	out := tls.Certificate{PrivateKey: key, Leaf: certs[leaf]}
	out.Certificate = append(out.Certificate, certs[leaf].Raw)
	for i, c := range certs {
		if i != leaf {
			out.Certificate = append(out.Certificate, c.Raw)
		}
	}
	return out, nil
}

// LoadCertPool reads every PEM certificate in file into a pool, for
// verifying client certificates.
func LoadCertPool(file string) (*x509.CertPool, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", file, err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(data) {
		return nil, fmt.Errorf("%s: no PEM certificates found", file)
	}
	return pool, nil
}

// LoadStore loads every identity in dir: <name>.crt/<name>.key and
// <name>.pem/<name>.key pairs, and .pfx/.p12 bundles (decrypted with
// password).  Files that fail to parse are skipped and reported in the
// returned error alongside the identities that did load.
func LoadStore(dir, password string) ([]tls.Certificate, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading store %s: %w", dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var (
		out  []tls.Certificate
		errs []string
	)
	for _, name := range names {
		path := filepath.Join(dir, name)
		ext := strings.ToLower(filepath.Ext(name))
		base := strings.TrimSuffix(name, filepath.Ext(name))

		var (
			cert tls.Certificate
			err  error
		)
		switch ext {
		case ".pfx", ".p12":
			cert, err = LoadPKCS12(path, password)
		case ".crt", ".pem":
			keyPath := filepath.Join(dir, base+".key")
			if _, statErr := os.Stat(keyPath); statErr != nil {
				continue
			}
			cert, err = LoadKeyPair(path, keyPath)
		default:
			continue
		}
		if err != nil {
			errs = append(errs, err.Error())
			continue
		}
		out = append(out, cert)
	}

	if len(errs) > 0 {
		return out, fmt.Errorf("store %s: %s", dir, strings.Join(errs, "; "))
	}
	return out, nil
}

// EncodePEM returns the certificate chain and private key of cert as
// PEM, suitable for LoadKeyPair.
func EncodePEM(cert tls.Certificate) (certPEM, keyPEM []byte, err error) {
	for _, der := range cert.Certificate {
		certPEM = append(certPEM, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})...)
	}
	der, err := x509.MarshalPKCS8PrivateKey(cert.PrivateKey)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal private key: %w", err)
	}
	keyPEM = pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})
	return certPEM, keyPEM, nil
}

func parsePrivateKey(der []byte) (crypto.PrivateKey, error) {
	if key, err := x509.ParsePKCS1PrivateKey(der); err == nil {
		return key, nil
	}
	if key, err := x509.ParsePKCS8PrivateKey(der); err == nil {
		return key, nil
	}
	if key, err := x509.ParseECPrivateKey(der); err == nil {
		return key, nil
	}
	return nil, fmt.Errorf("unsupported private key encoding")
}

func publicKeyMatches(key crypto.PrivateKey, pub crypto.PublicKey) bool {
	signer, ok := key.(crypto.Signer)
	if !ok {
		return false
	}
	eq, ok := signer.Public().(interface{ Equal(crypto.PublicKey) bool })
	return ok && eq.Equal(pub)
}

func fillLeaf(cert *tls.Certificate) error {
	if cert.Leaf != nil || len(cert.Certificate) == 0 {
		return nil
	}
	leaf, err := x509.ParseCertificate(cert.Certificate[0])
	if err != nil {
		return fmt.Errorf("parsing leaf certificate: %w", err)
	}
	cert.Leaf = leaf
	return nil
}
