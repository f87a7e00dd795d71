package config

import (
	"crypto/tls"
	"testing"
)

func TestDefault_Validates(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestValidate_Serve(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"bare port", func(c *Config) { c.Addr = "9443" }, false},
		{"cert and key", func(c *Config) { c.CertFile, c.KeyFile = "a.pem", "a.key" }, false},
		{"pfx", func(c *Config) { c.PFXFile = "server.pfx" }, false},
		{"allow with ca", func(c *Config) { c.ClientCertMode, c.ClientCAFile = "allow", "ca.pem" }, false},
		{"tls range", func(c *Config) { c.MinTLS, c.MaxTLS = "1.2", "1.3" }, false},
		{"empty addr", func(c *Config) { c.Addr = "" }, true},
		{"bad port", func(c *Config) { c.Addr = ":99999" }, true},
		{"cert without key", func(c *Config) { c.CertFile = "a.pem" }, true},
		{"pfx and cert", func(c *Config) { c.PFXFile, c.CertFile, c.KeyFile = "p", "c", "k" }, true},
		{"unknown mode", func(c *Config) { c.ClientCertMode = "sometimes" }, true},
		{"ca without request", func(c *Config) { c.ClientCAFile = "ca.pem" }, true},
		{"bad version", func(c *Config) { c.MinTLS = "2.0" }, true},
		{"inverted range", func(c *Config) { c.MinTLS, c.MaxTLS = "1.3", "1.2" }, true},
		{"unknown handler", func(c *Config) { c.Handler = "nope" }, true},
		{"negative timeout", func(c *Config) { c.IdleTimeout = -1 }, true},
		{"negative drain", func(c *Config) { c.MaxBodyDrain = -1 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr = %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_Probe(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"plain", func(c *Config) {}, false},
		{"client pair", func(c *Config) { c.ClientCertFile, c.ClientKeyFile = "c", "k" }, false},
		{"store", func(c *Config) { c.ClientStore = "certs" }, false},
		{"http url", func(c *Config) { c.ProbeURL = "http://localhost:8443/" }, true},
		{"no host", func(c *Config) { c.ProbeURL = "https:///x" }, true},
		{"cert without key", func(c *Config) { c.ClientCertFile = "c" }, true},
		{"store and pair", func(c *Config) { c.ClientStore, c.ClientCertFile, c.ClientKeyFile = "s", "c", "k" }, true},
		{"negative attempts", func(c *Config) { c.ProbeAttempts = -1 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.ProbeURL = "https://localhost:8443/"
			tt.mutate(cfg)
			if !cfg.Probing() {
				t.Fatal("expected probe mode")
			}
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr = %v", err, tt.wantErr)
			}
		})
	}
}

func TestTLSVersions(t *testing.T) {
	cfg := Default()
	if lo, hi := cfg.TLSVersions(); lo != 0 || hi != 0 {
		t.Errorf("unset versions = %x, %x", lo, hi)
	}
	cfg.MinTLS, cfg.MaxTLS = "1.2", "TLS1.3"
	lo, hi := cfg.TLSVersions()
	if lo != tls.VersionTLS12 || hi != tls.VersionTLS13 {
		t.Errorf("versions = %x, %x", lo, hi)
	}
}
