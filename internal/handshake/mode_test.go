package handshake

import (
	"crypto/tls"
	"testing"
)

func TestParseClientCertMode(t *testing.T) {
	tests := []struct {
		in      string
		want    ClientCertMode
		wantErr bool
	}{
		{"", ClientCertNone, false},
		{"none", ClientCertNone, false},
		{"Allow", ClientCertAllow, false},
		{" require ", ClientCertRequire, false},
		{"renegotiate", ClientCertRenegotiate, false},
		{"sometimes", ClientCertNone, true},
	}
	for _, tt := range tests {
		got, err := ParseClientCertMode(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseClientCertMode(%q) err=%v wantErr=%v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseClientCertMode(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
	if got := ClientCertRenegotiate.String(); got != "renegotiate" {
		t.Errorf("String() = %q", got)
	}
}

func TestParseVersion(t *testing.T) {
	tests := []struct {
		in      string
		want    uint16
		wantErr bool
	}{
		{"1.2", tls.VersionTLS12, false},
		{"TLS1.3", tls.VersionTLS13, false},
		{"tls1.0", tls.VersionTLS10, false},
		{"", 0, false},
		{"2.0", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseVersion(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseVersion(%q) err=%v wantErr=%v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseVersion(%q) = %#x, want %#x", tt.in, got, tt.want)
		}
	}
}
