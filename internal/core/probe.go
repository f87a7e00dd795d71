package core

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strings"

	"httpsd/internal/tlsinfo"
	"httpsd/internal/transport"
	"httpsd/util"
)

// ProbeMode sends one HTTPS request and prints the response body along
// with the negotiated TLS parameters.  It is the client counterpart
// used to exercise a running server by hand.
type ProbeMode struct {
	URL    string
	Data   string // POSTed when non-empty
	Dialer *transport.TLSDialer
	Logger *util.Logger

	// Stdout defaults to os.Stdout when nil.
	Stdout io.Writer
}

func (m *ProbeMode) stdout() io.Writer {
	if m.Stdout != nil {
		return m.Stdout
	}
	return os.Stdout
}

// Run performs the request.  A non-2xx status is reported as an error
// after the body has been printed.
func (m *ProbeMode) Run(ctx context.Context) error {
	defer m.Dialer.Close()

	client := &http.Client{
		Transport: &http.Transport{
			DialTLSContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
				return m.Dialer.Dial(ctx, network, addr)
			},
			DisableKeepAlives: true,
		},
	}

	method, body := http.MethodGet, io.Reader(nil)
	if m.Data != "" {
		method, body = http.MethodPost, strings.NewReader(m.Data)
	}
	req, err := http.NewRequestWithContext(ctx, method, m.URL, body)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}

	m.Logger.Verbose("%s %s", method, m.URL)
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("probe %s: %w", m.URL, err)
	}
	defer resp.Body.Close()

	if resp.TLS != nil {
		m.Logger.Info("%s", describe(resp.TLS))
	}
	m.Logger.Verbose("%s", resp.Status)

	if _, err := io.Copy(m.stdout(), resp.Body); err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("probe %s: %s", m.URL, resp.Status)
	}
	return nil
}

// describe summarises a client-side connection state.
func describe(cs *tls.ConnectionState) string {
	if len(cs.PeerCertificates) > 0 {
		if r, err := tlsinfo.FromConnectionState(*cs, cs.PeerCertificates[0]); err == nil {
			return "tls " + r.String()
		}
	}
	return fmt.Sprintf("tls %s suite 0x%04x", tls.VersionName(cs.Version), cs.CipherSuite)
}
