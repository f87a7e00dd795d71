package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"

	"httpsd/internal/errors"
	"httpsd/internal/retry"
	"httpsd/util"
)

// TLSDialer performs a client handshake over connections from an
// underlying Dialer.  Dial failures are retried with Backoff; handshake
// failures are final.
type TLSDialer struct {
	Dialer  Dialer      // defaults to a TCPDialer
	Config  *tls.Config // ServerName defaults to the dialed host
	Backoff *retry.Backoff
	Logger  *util.Logger
}

// NewTLSDialer returns a TLSDialer over plain TCP.
func NewTLSDialer(cfg *tls.Config, backoff *retry.Backoff, logger *util.Logger) *TLSDialer {
	if logger == nil {
		logger = util.NewLogger(0)
	}
	return &TLSDialer{Dialer: &TCPDialer{}, Config: cfg, Backoff: backoff, Logger: logger}
}

// Dial connects to address and completes the TLS handshake.  The
// returned connection is a *tls.Conn.
func (d *TLSDialer) Dial(ctx context.Context, network, address string) (net.Conn, error) {
	var conn net.Conn
	dial := func(attempt int) error {
		c, err := d.dialOnce(ctx, network, address)
		if err != nil {
			d.logger().Verbose("dial %s (attempt %d): %v", address, attempt, err)
			return err
		}
		conn = c
		return nil
	}

	if d.Backoff == nil {
		if err := dial(1); err != nil {
			var pe *retry.PermanentError
			if errors.As(err, &pe) {
				return nil, pe.Err
			}
			return nil, err
		}
		return conn, nil
	}
	if err := d.Backoff.Do(ctx, dial); err != nil {
		return nil, err
	}
	return conn, nil
}

func (d *TLSDialer) dialOnce(ctx context.Context, network, address string) (net.Conn, error) {
	inner := d.Dialer
	if inner == nil {
		inner = &TCPDialer{}
	}
	raw, err := inner.Dial(ctx, network, address)
	if err != nil {
		nerr := errors.Wrap("dial", address, err)
		if !errors.IsRetryable(nerr) {
			return nil, retry.Permanent(nerr)
		}
		return nil, nerr
	}

	cfg := d.Config
	if cfg == nil {
		cfg = &tls.Config{}
	}
	if cfg.ServerName == "" {
		host, _, err := net.SplitHostPort(address)
		if err != nil {
			host = address
		}
		cfg = cfg.Clone()
		cfg.ServerName = host
	}

	conn := tls.Client(raw, cfg)
	if err := conn.HandshakeContext(ctx); err != nil {
		raw.Close()
		return nil, retry.Permanent(fmt.Errorf("tls handshake with %s: %w", address, err))
	}
	return conn, nil
}

// Close releases the underlying dialer.
func (d *TLSDialer) Close() error {
	if d.Dialer == nil {
		return nil
	}
	return d.Dialer.Close()
}

func (d *TLSDialer) logger() *util.Logger {
	if d.Logger == nil {
		return util.NewLogger(0)
	}
	return d.Logger
}
