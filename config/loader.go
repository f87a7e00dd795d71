package config

// loader.go - configuration loading from files and environment.
//
// Precedence order (highest wins):
//   1. CLI flags  (handled by cmd/root.go)
//   2. Environment variables  (LoadFromEnv)
//   3. YAML config file  (LoadFile)
//   4. Defaults   (defaults.go)

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadFile overlays the YAML document at path onto cfg.  Keys absent
// from the file keep their current value; unknown keys are an error.
func LoadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && err != io.EOF {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

// ── Environment variable mapping ─────────────────────────────────────
//
// Every supported env var uses the HTTPSD_ prefix.  Boolean values
// accept "1", "true", "yes" (case-insensitive).  Durations accept Go
// syntax ("5s") or a plain number of seconds.

// LoadFromEnv overlays environment variables onto cfg.  Only non-empty
// env vars override the existing value.
func LoadFromEnv(cfg *Config) {
	// Listener
	if v := os.Getenv("HTTPSD_ADDR"); v != "" {
		cfg.Addr = v
	}
	if v := os.Getenv("HTTPSD_CERT"); v != "" {
		cfg.CertFile = v
	}
	if v := os.Getenv("HTTPSD_KEY"); v != "" {
		cfg.KeyFile = v
	}
	if v := os.Getenv("HTTPSD_PFX"); v != "" {
		cfg.PFXFile = v
	}
	if v := os.Getenv("HTTPSD_PFX_PASSWORD"); v != "" {
		cfg.PFXPassword = v
	}
	if v := os.Getenv("HTTPSD_HANDLER"); v != "" {
		cfg.Handler = v
	}

	// TLS
	if v := os.Getenv("HTTPSD_CLIENT_CERT_MODE"); v != "" {
		cfg.ClientCertMode = v
	}
	if v := os.Getenv("HTTPSD_CLIENT_CA"); v != "" {
		cfg.ClientCAFile = v
	}
	if v := os.Getenv("HTTPSD_MIN_TLS"); v != "" {
		cfg.MinTLS = v
	}
	if v := os.Getenv("HTTPSD_MAX_TLS"); v != "" {
		cfg.MaxTLS = v
	}
	if d, ok := envDuration("HTTPSD_HANDSHAKE_TIMEOUT"); ok {
		cfg.HandshakeTimeout = d
	}

	// HTTP
	if d, ok := envDuration("HTTPSD_READ_HEADER_TIMEOUT"); ok {
		cfg.ReadHeaderTimeout = d
	}
	if d, ok := envDuration("HTTPSD_IDLE_TIMEOUT"); ok {
		cfg.IdleTimeout = d
	}
	if d, ok := envDuration("HTTPSD_GRACE_PERIOD"); ok {
		cfg.GracePeriod = d
	}
	if v := envInt("HTTPSD_MAX_BODY_DRAIN"); v > 0 {
		cfg.MaxBodyDrain = int64(v)
	}

	// Probe
	if v := os.Getenv("HTTPSD_CLIENT_CERT"); v != "" {
		cfg.ClientCertFile = v
	}
	if v := os.Getenv("HTTPSD_CLIENT_KEY"); v != "" {
		cfg.ClientKeyFile = v
	}
	if v := os.Getenv("HTTPSD_CLIENT_STORE"); v != "" {
		cfg.ClientStore = v
	}
	if envBool("HTTPSD_VERIFY") {
		cfg.Verify = true
	}

	// Output
	if v := envInt("HTTPSD_VERBOSE"); v > 0 {
		cfg.Verbose = v
	}
}

// ── helpers ──────────────────────────────────────────────────────────

func envInt(key string) int {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

func envBool(key string) bool {
	v := strings.ToLower(os.Getenv(key))
	return v == "1" || v == "true" || v == "yes"
}

func envDuration(key string) (time.Duration, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d, true
	}
	if n, err := strconv.Atoi(v); err == nil && n >= 0 {
		return secondsDuration(n), true
	}
	return 0, false
}

func secondsDuration(sec int) time.Duration {
	return time.Duration(sec) * time.Second
}
