package identity

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/asn1"
)

// OIDSmartCardLogon is Microsoft's Smart Card Logon extended key usage.
var OIDSmartCardLogon = asn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 311, 20, 2, 2}

// IsClientAuthCandidate reports whether cert may be offered as a TLS
// client certificate: its extended key usage includes Client
// Authentication and does not include Smart Card Logon.
func IsClientAuthCandidate(cert *x509.Certificate) bool {
	if cert == nil {
		return false
	}
	clientAuth := false
	for _, u := range cert.ExtKeyUsage {
		if u == x509.ExtKeyUsageClientAuth {
			clientAuth = true
		}
	}
	for _, oid := range cert.UnknownExtKeyUsage {
		if oid.Equal(OIDSmartCardLogon) {
			return false
		}
	}
	return clientAuth
}

// SelectClientCertificate returns the first identity in store that
// passes IsClientAuthCandidate.
func SelectClientCertificate(store []tls.Certificate) (tls.Certificate, bool) {
	for _, c := range store {
		leaf := c.Leaf
		if leaf == nil {
			if err := fillLeaf(&c); err != nil {
				continue
			}
			leaf = c.Leaf
		}
		if IsClientAuthCandidate(leaf) {
			return c, true
		}
	}
	return tls.Certificate{}, false
}
