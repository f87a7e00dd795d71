package config

import (
	"strings"
	"testing"

	"httpsd/internal/errors"
)

// TestValidate_ErrorMessages verifies that Validate returns actionable
// error messages with hints.
func TestValidate_ErrorMessages(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		field   string
		wantSub string // substring expected in error
	}{
		{
			name:    "bad addr has hint",
			mutate:  func(c *Config) { c.Addr = "nope" },
			field:   "addr",
			wantSub: "hint:",
		},
		{
			name:    "client ca needs a requesting mode",
			mutate:  func(c *Config) { c.ClientCAFile = "ca.pem" },
			field:   "client-ca",
			wantSub: "--client-cert-mode allow or require",
		},
		{
			name:    "handler lists choices",
			mutate:  func(c *Config) { c.Handler = "x" },
			field:   "handler",
			wantSub: "echo, empty, hello, tlsinfo",
		},
		{
			name:    "version hint",
			mutate:  func(c *Config) { c.MaxTLS = "4" },
			field:   "max-tls",
			wantSub: "use 1.0, 1.1, 1.2 or 1.3",
		},
		{
			name:    "probe scheme",
			mutate:  func(c *Config) { c.ProbeURL = "localhost:8443" },
			field:   "probe",
			wantSub: "not an https URL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected error")
			}
			var ce *errors.ConfigError
			if !errors.As(err, &ce) || ce.Field != tt.field {
				t.Errorf("error %v should be a ConfigError for --%s", err, tt.field)
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("error %q should contain %q", err.Error(), tt.wantSub)
			}
		})
	}
}
