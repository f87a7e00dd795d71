package config

import "time"

// ── Default values ───────────────────────────────────────────────────
//
// All tuneable defaults live here so they are easy to audit and reuse
// across CLI flags, config file parsing, and environment variable
// loading.

const (
	// DefaultAddr is where the server listens when no address is given.
	DefaultAddr = ":8443"

	// DefaultHandler is the built-in handler served by default.
	DefaultHandler = "hello"

	// DefaultClientCertMode never asks clients for a certificate.
	DefaultClientCertMode = "none"

	// DefaultHandshakeTimeout bounds a single TLS handshake.
	DefaultHandshakeTimeout = 10 * time.Second

	// DefaultReadHeaderTimeout bounds reading one request head.
	DefaultReadHeaderTimeout = 10 * time.Second

	// DefaultIdleTimeout closes keep-alive connections with no request.
	DefaultIdleTimeout = 60 * time.Second

	// DefaultGracePeriod is how long Stop waits for active requests.
	DefaultGracePeriod = 5 * time.Second

	// DefaultMaxBodyDrain is how much unread request body is discarded
	// to keep a connection alive.
	DefaultMaxBodyDrain = 256 << 10

	// DefaultProbeAttempts is how often the probe dials before giving
	// up, covering a server that is still starting.
	DefaultProbeAttempts = 5
)

// Default returns a Config populated with the defaults above.
func Default() *Config {
	return &Config{
		Addr:              DefaultAddr,
		Handler:           DefaultHandler,
		ClientCertMode:    DefaultClientCertMode,
		HandshakeTimeout:  DefaultHandshakeTimeout,
		ReadHeaderTimeout: DefaultReadHeaderTimeout,
		IdleTimeout:       DefaultIdleTimeout,
		GracePeriod:       DefaultGracePeriod,
		MaxBodyDrain:      DefaultMaxBodyDrain,
		ProbeAttempts:     DefaultProbeAttempts,
	}
}
