package handshake

import (
	"crypto/tls"
	"fmt"
	"strings"
)

// ClientCertMode selects when the server asks for a client certificate.
type ClientCertMode int

const (
	// ClientCertNone never asks.  Fetching the certificate resolves to
	// absent without touching the session.
	ClientCertNone ClientCertMode = iota
	// ClientCertAllow asks during the initial handshake; clients may
	// decline.
	ClientCertAllow
	// ClientCertRequire fails the handshake when no certificate is sent.
	ClientCertRequire
	// ClientCertRenegotiate defers the request until a handler fetches
	// the certificate, using the engine's renegotiation capability.
	ClientCertRenegotiate
)

var modeNames = map[ClientCertMode]string{
	ClientCertNone:        "none",
	ClientCertAllow:       "allow",
	ClientCertRequire:     "require",
	ClientCertRenegotiate: "renegotiate",
}

func (m ClientCertMode) String() string {
	if s, ok := modeNames[m]; ok {
		return s
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// ParseClientCertMode accepts the names printed by String.
func ParseClientCertMode(s string) (ClientCertMode, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ClientCertNone, nil
	}
	for m, name := range modeNames {
		if name == s {
			return m, nil
		}
	}
	return ClientCertNone, fmt.Errorf("unknown client certificate mode %q (want none, allow, require or renegotiate)", s)
}

// ParseVersion accepts "1.0".."1.3" with an optional "TLS" prefix.
func ParseVersion(v string) (uint16, error) {
	switch strings.ToUpper(strings.TrimSpace(v)) {
	case "1.0", "TLS1.0":
		return tls.VersionTLS10, nil
	case "1.1", "TLS1.1":
		return tls.VersionTLS11, nil
	case "1.2", "TLS1.2":
		return tls.VersionTLS12, nil
	case "1.3", "TLS1.3":
		return tls.VersionTLS13, nil
	case "":
		return 0, nil
	default:
		return 0, fmt.Errorf("unknown TLS version: %s", v)
	}
}
