// Package config defines the runtime configuration for httpsd and
// validates it before any socket is opened.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"httpsd/internal/errors"
	"httpsd/internal/handler"
	"httpsd/internal/handshake"
	"httpsd/util"
)

// Config holds every tuneable for one httpsd run.  Field tags name the
// keys accepted in a YAML config file.
type Config struct {
	// ── Listener ─────────────────────────────────────────────────────
	Addr            string   `yaml:"addr"`
	CertFile        string   `yaml:"cert"`
	KeyFile         string   `yaml:"key"`
	PFXFile         string   `yaml:"pfx"`
	PFXPassword     string   `yaml:"pfx_password"`
	AskPassword     bool     `yaml:"-"` // prompt for the PFX password
	SelfSignedHosts []string `yaml:"self_signed_hosts"`
	Handler         string   `yaml:"handler"`

	// ── TLS ──────────────────────────────────────────────────────────
	ClientCertMode   string        `yaml:"client_cert_mode"`
	ClientCAFile     string        `yaml:"client_ca"`
	MinTLS           string        `yaml:"min_tls"`
	MaxTLS           string        `yaml:"max_tls"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`

	// ── HTTP ─────────────────────────────────────────────────────────
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
	IdleTimeout       time.Duration `yaml:"idle_timeout"`
	GracePeriod       time.Duration `yaml:"grace_period"`
	MaxBodyDrain      int64         `yaml:"max_body_drain"`

	// ── Probe ────────────────────────────────────────────────────────
	ProbeURL       string `yaml:"probe"`
	ProbeData      string `yaml:"data"`
	ClientCertFile string `yaml:"client_cert"`
	ClientKeyFile  string `yaml:"client_key"`
	ClientStore    string `yaml:"client_store"`
	Verify         bool   `yaml:"verify"` // verify the server certificate
	ProbeAttempts  int    `yaml:"probe_attempts"`

	// ── Output ───────────────────────────────────────────────────────
	Verbose int `yaml:"verbose"`
}

// Probing reports whether the config selects the HTTPS client mode.
func (c *Config) Probing() bool { return c.ProbeURL != "" }

// ── Validation ───────────────────────────────────────────────────────

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	if c.Probing() {
		return c.validateProbe()
	}
	return c.validateServe()
}

func (c *Config) validateServe() error {
	if _, err := util.NormalizeBindAddr(c.Addr); err != nil {
		return &errors.ConfigError{
			Field:   "addr",
			Value:   c.Addr,
			Message: err.Error(),
			Hint:    "use host:port, :port or a bare port such as 8443",
		}
	}

	if (c.CertFile == "") != (c.KeyFile == "") {
		return &errors.ConfigError{
			Field:   "cert",
			Message: "--cert and --key must be given together",
			Hint:    "or omit both to serve a generated self-signed certificate",
		}
	}
	if c.PFXFile != "" && c.CertFile != "" {
		return &errors.ConfigError{
			Field:   "pfx",
			Value:   c.PFXFile,
			Message: "--pfx and --cert/--key are mutually exclusive",
		}
	}

	mode, err := handshake.ParseClientCertMode(c.ClientCertMode)
	if err != nil {
		return &errors.ConfigError{Field: "client-cert-mode", Value: c.ClientCertMode, Message: err.Error()}
	}
	if c.ClientCAFile != "" && mode != handshake.ClientCertAllow && mode != handshake.ClientCertRequire {
		return &errors.ConfigError{
			Field:   "client-ca",
			Value:   c.ClientCAFile,
			Message: "client CAs are only checked during the initial handshake",
			Hint:    "use --client-cert-mode allow or require",
		}
	}

	minV, err := c.tlsVersion("min-tls", c.MinTLS)
	if err != nil {
		return err
	}
	maxV, err := c.tlsVersion("max-tls", c.MaxTLS)
	if err != nil {
		return err
	}
	if minV != 0 && maxV != 0 && minV > maxV {
		return &errors.ConfigError{
			Field:   "min-tls",
			Value:   c.MinTLS,
			Message: fmt.Sprintf("minimum version is above the maximum %s", c.MaxTLS),
		}
	}

	if _, err := handler.ByName(c.Handler); err != nil {
		return &errors.ConfigError{
			Field:   "handler",
			Value:   c.Handler,
			Message: "unknown handler",
			Hint:    "one of " + strings.Join(handler.Names(), ", "),
		}
	}

	durations := []struct {
		field string
		d     time.Duration
	}{
		{"handshake-timeout", c.HandshakeTimeout},
		{"read-header-timeout", c.ReadHeaderTimeout},
		{"idle-timeout", c.IdleTimeout},
		{"grace-period", c.GracePeriod},
	}
	for _, d := range durations {
		if d.d < 0 {
			return &errors.ConfigError{Field: d.field, Value: d.d, Message: "must not be negative"}
		}
	}
	if c.MaxBodyDrain < 0 {
		return &errors.ConfigError{Field: "max-body-drain", Value: c.MaxBodyDrain, Message: "must not be negative"}
	}
	return nil
}

func (c *Config) validateProbe() error {
	u, err := url.Parse(c.ProbeURL)
	if err != nil || u.Scheme != "https" || u.Host == "" {
		return &errors.ConfigError{
			Field:   "probe",
			Value:   c.ProbeURL,
			Message: "not an https URL",
			Hint:    "for example https://localhost:8443/",
		}
	}
	if (c.ClientCertFile == "") != (c.ClientKeyFile == "") {
		return &errors.ConfigError{
			Field:   "client-cert",
			Message: "--client-cert and --client-key must be given together",
		}
	}
	if c.ClientStore != "" && c.ClientCertFile != "" {
		return &errors.ConfigError{
			Field:   "client-store",
			Value:   c.ClientStore,
			Message: "--client-store and --client-cert are mutually exclusive",
		}
	}
	if c.ProbeAttempts < 0 {
		return &errors.ConfigError{Field: "probe-attempts", Value: c.ProbeAttempts, Message: "must not be negative"}
	}
	return nil
}

func (c *Config) tlsVersion(field, v string) (uint16, error) {
	if v == "" {
		return 0, nil
	}
	n, err := handshake.ParseVersion(v)
	if err != nil {
		return 0, &errors.ConfigError{Field: field, Value: v, Message: err.Error(), Hint: "use 1.0, 1.1, 1.2 or 1.3"}
	}
	return n, nil
}

// TLSVersions returns the parsed version bounds; zero means unset.
// Call after Validate.
func (c *Config) TLSVersions() (minVersion, maxVersion uint16) {
	minVersion, _ = c.tlsVersion("min-tls", c.MinTLS)
	maxVersion, _ = c.tlsVersion("max-tls", c.MaxTLS)
	return minVersion, maxVersion
}
