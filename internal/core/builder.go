package core

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"time"

	"httpsd/config"
	"httpsd/internal/dispatch"
	"httpsd/internal/handler"
	"httpsd/internal/handshake"
	"httpsd/internal/identity"
	"httpsd/internal/metrics"
	"httpsd/internal/retry"
	"httpsd/internal/server"
	"httpsd/internal/transport"
	"httpsd/util"
)

// Build constructs the appropriate Mode from a validated configuration.
func Build(cfg *config.Config, logger *util.Logger) (Mode, error) {
	if cfg.Probing() {
		return buildProbe(cfg, logger)
	}
	return buildServe(cfg, logger)
}

// ── mode builders ────────────────────────────────────────────────────

func buildServe(cfg *config.Config, logger *util.Logger) (Mode, error) {
	cert, err := serverCertificate(cfg, logger)
	if err != nil {
		return nil, err
	}

	mode, err := handshake.ParseClientCertMode(cfg.ClientCertMode)
	if err != nil {
		return nil, err
	}
	var clientCAs *x509.CertPool
	if cfg.ClientCAFile != "" {
		if clientCAs, err = identity.LoadCertPool(cfg.ClientCAFile); err != nil {
			return nil, err
		}
	}
	h, err := handler.ByName(cfg.Handler)
	if err != nil {
		return nil, err
	}
	minVersion, maxVersion := cfg.TLSVersions()

	l := server.New(h, server.Config{
		Handshake: handshake.Config{
			MinVersion:     minVersion,
			MaxVersion:     maxVersion,
			ClientCertMode: mode,
			ClientCAs:      clientCAs,
			Timeout:        cfg.HandshakeTimeout,
		},
		Dispatch: dispatch.Config{
			ReadHeaderTimeout: cfg.ReadHeaderTimeout,
			IdleTimeout:       cfg.IdleTimeout,
			MaxBodyDrain:      cfg.MaxBodyDrain,
		},
		GracePeriod: cfg.GracePeriod,
	}, logger, metrics.New())

	return &ServeMode{
		Listener:    l,
		Address:     cfg.Addr,
		Certificate: cert,
		GracePeriod: cfg.GracePeriod,
		Logger:      logger,
	}, nil
}

func buildProbe(cfg *config.Config, logger *util.Logger) (Mode, error) {
	tc := &tls.Config{
		InsecureSkipVerify: !cfg.Verify, //nolint:gosec // probing self-signed servers is the common case
		NextProtos:         []string{"http/1.1"},
	}
	cert, ok, err := clientCertificate(cfg, logger)
	if err != nil {
		return nil, err
	}
	if ok {
		tc.Certificates = []tls.Certificate{cert}
	}

	attempts := cfg.ProbeAttempts
	if attempts == 0 {
		attempts = 1
	}
	backoff := &retry.Backoff{
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     2 * time.Second,
		Multiplier:   2.0,
		MaxAttempts:  attempts,
		Jitter:       true,
	}

	return &ProbeMode{
		URL:    cfg.ProbeURL,
		Data:   cfg.ProbeData,
		Dialer: transport.NewTLSDialer(tc, backoff, logger),
		Logger: logger,
	}, nil
}

// ── shared helpers ───────────────────────────────────────────────────

// serverCertificate loads the configured identity, falling back to a
// generated self-signed certificate.
func serverCertificate(cfg *config.Config, logger *util.Logger) (tls.Certificate, error) {
	switch {
	case cfg.PFXFile != "":
		return identity.LoadPKCS12(cfg.PFXFile, cfg.PFXPassword)
	case cfg.CertFile != "":
		return identity.LoadKeyPair(cfg.CertFile, cfg.KeyFile)
	default:
		logger.Warn("no certificate configured; using a generated self-signed certificate")
		return identity.SelfSigned(cfg.SelfSignedHosts...)
	}
}

// clientCertificate picks the probe's client identity, if any.  From a
// store it takes the first certificate fit for client authentication.
func clientCertificate(cfg *config.Config, logger *util.Logger) (tls.Certificate, bool, error) {
	switch {
	case cfg.ClientCertFile != "":
		cert, err := identity.LoadKeyPair(cfg.ClientCertFile, cfg.ClientKeyFile)
		return cert, err == nil, err
	case cfg.ClientStore != "":
		store, err := identity.LoadStore(cfg.ClientStore, cfg.PFXPassword)
		if err != nil {
			if len(store) == 0 {
				return tls.Certificate{}, false, err
			}
			logger.Warn("%v", err)
		}
		cert, ok := identity.SelectClientCertificate(store)
		if !ok {
			return tls.Certificate{}, false, fmt.Errorf("no client authentication certificate in %s", cfg.ClientStore)
		}
		logger.Verbose("client certificate: %s", cert.Leaf.Subject)
		return cert, true, nil
	default:
		return tls.Certificate{}, false, nil
	}
}
