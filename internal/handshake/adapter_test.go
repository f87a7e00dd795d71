package handshake

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"httpsd/internal/errors"
	"httpsd/internal/identity"
	"httpsd/internal/tlsinfo"
)

// tcpPair returns both ends of a loopback TCP connection.  crypto/tls
// flights can deadlock over the unbuffered net.Pipe.
func tcpPair(t *testing.T) (server, client net.Conn) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		c, err := ln.Accept()
		if err != nil {
			close(accepted)
			return
		}
		accepted <- c
	}()

	client, err = net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	server, ok := <-accepted
	if !ok {
		t.Fatal("accept failed")
	}
	t.Cleanup(func() {
		server.Close()
		client.Close()
	})
	return server, client
}

func newAdapter(t *testing.T, cfg Config) *Adapter {
	t.Helper()
	if len(cfg.Certificate.Certificate) == 0 {
		cert, err := identity.SelfSigned()
		if err != nil {
			t.Fatal(err)
		}
		cfg.Certificate = cert
	}
	a, err := NewAdapter(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	return a
}

// clientHandshake runs a skip-verify client handshake in the background.
func clientHandshake(conn net.Conn, cfg *tls.Config) <-chan error {
	if cfg == nil {
		cfg = &tls.Config{}
	}
	cfg.InsecureSkipVerify = true //nolint:gosec // test client
	done := make(chan error, 1)
	go func() {
		c := tls.Client(conn, cfg)
		err := c.Handshake()
		if err == nil {
			// TLS 1.3 reports client-side success before the server
			// has judged the client's certificate; a read surfaces
			// the server's verdict.
			c.SetReadDeadline(time.Now().Add(200 * time.Millisecond)) //nolint:errcheck
			c.Read(make([]byte, 1))                                   //nolint:errcheck
		}
		done <- err
	}()
	return done
}

func TestPerformHandshake_Metadata(t *testing.T) {
	tests := []struct {
		name      string
		client    *tls.Config
		wantProto tlsinfo.Protocol
	}{
		{"tls13", &tls.Config{}, tlsinfo.TLS13},
		{"tls12", &tls.Config{MaxVersion: tls.VersionTLS12}, tlsinfo.TLS12},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newAdapter(t, Config{})
			srv, cli := tcpPair(t)
			clientHandshake(cli, tt.client)

			sess, err := a.PerformHandshake(context.Background(), srv, false)
			if err != nil {
				t.Fatalf("handshake: %v", err)
			}
			r := sess.Result()
			if r.Protocol != tt.wantProto {
				t.Errorf("protocol = %v, want %v", r.Protocol, tt.wantProto)
			}
			if !(r.Protocol > tlsinfo.ProtocolNone) || !r.Protocol.IsDefined() {
				t.Errorf("protocol %v not a defined version", r.Protocol)
			}
			if !(r.CipherAlgorithm > tlsinfo.CipherNull) || r.CipherStrength <= 0 {
				t.Errorf("cipher = %v/%d", r.CipherAlgorithm, r.CipherStrength)
			}
			if !(r.HashAlgorithm > tlsinfo.HashNone) || r.HashStrength < 0 {
				t.Errorf("hash = %v/%d", r.HashAlgorithm, r.HashStrength)
			}
			if !(r.KeyExchangeAlgorithm > tlsinfo.ExchangeNone) || r.KeyExchangeStrength <= 0 {
				t.Errorf("key exchange = %v/%d", r.KeyExchangeAlgorithm, r.KeyExchangeStrength)
			}
			if r.NegotiatedProtocol != "" && r.NegotiatedProtocol != "http/1.1" {
				t.Errorf("alpn = %q", r.NegotiatedProtocol)
			}
			if sess.ClientCertRequested() {
				t.Error("no certificate should have been requested")
			}
			if len(sess.PeerCertificates()) != 0 {
				t.Error("no peer certificates expected")
			}
		})
	}
}

func TestPerformHandshake_Failures(t *testing.T) {
	tests := []struct {
		name   string
		server Config
		client *tls.Config
		silent bool
		want   errors.HandshakeReason
	}{
		{
			name: "no shared cipher",
			server: Config{
				MaxVersion:   tls.VersionTLS12,
				CipherSuites: []uint16{tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256},
			},
			client: &tls.Config{
				MaxVersion:   tls.VersionTLS12,
				CipherSuites: []uint16{tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384},
			},
			want: errors.NoSharedCipher,
		},
		{
			name:   "protocol mismatch",
			server: Config{MinVersion: tls.VersionTLS13},
			client: &tls.Config{MaxVersion: tls.VersionTLS12},
			want:   errors.ProtocolMismatch,
		},
		{
			name:   "certificate required",
			server: Config{ClientCertMode: ClientCertRequire},
			client: &tls.Config{},
			want:   errors.CertificateRejected,
		},
		{
			name:   "timeout",
			server: Config{Timeout: 100 * time.Millisecond},
			silent: true,
			want:   errors.Timeout,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newAdapter(t, tt.server)
			srv, cli := tcpPair(t)
			if !tt.silent {
				clientHandshake(cli, tt.client)
			}

			sess, err := a.PerformHandshake(context.Background(), srv, false)
			if err == nil {
				sess.Close()
				t.Fatal("expected handshake failure")
			}
			var he *errors.HandshakeError
			if !errors.As(err, &he) {
				t.Fatalf("error %T is not a HandshakeError: %v", err, err)
			}
			if he.Reason != tt.want {
				t.Errorf("reason = %v, want %v (%v)", he.Reason, tt.want, err)
			}
		})
	}
}

func TestPerformHandshake_AllowWithClientCert(t *testing.T) {
	clientCert, err := identity.Generate(identity.Options{
		CommonName:  "client",
		ExtKeyUsage: []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth},
	})
	if err != nil {
		t.Fatal(err)
	}

	a := newAdapter(t, Config{ClientCertMode: ClientCertAllow})
	srv, cli := tcpPair(t)
	clientHandshake(cli, &tls.Config{Certificates: []tls.Certificate{clientCert}})

	sess, err := a.PerformHandshake(context.Background(), srv, false)
	if err != nil {
		t.Fatal(err)
	}
	if !sess.ClientCertRequested() {
		t.Error("allow mode should request a certificate")
	}
	peer := sess.PeerCertificates()
	if len(peer) != 1 || !peer[0].Equal(clientCert.Leaf) {
		t.Fatalf("peer certificates = %v", peer)
	}
}

func TestRequestClientCertificate_Unsupported(t *testing.T) {
	a := newAdapter(t, Config{ClientCertMode: ClientCertRenegotiate})
	if a.SupportsRenegotiation() {
		t.Fatal("crypto/tls engine has no renegotiation")
	}
	srv, cli := tcpPair(t)
	clientHandshake(cli, nil)

	sess, err := a.PerformHandshake(context.Background(), srv, false)
	if err != nil {
		t.Fatal(err)
	}
	_, err = sess.RequestClientCertificate(context.Background())
	var fe *errors.CertificateFetchError
	if !errors.As(err, &fe) || fe.Reason != errors.RenegotiationUnsupported {
		t.Errorf("err = %v, want RenegotiationUnsupported", err)
	}
}

func TestRequestClientCertificate_Renegotiator(t *testing.T) {
	clientCert, err := identity.Generate(identity.Options{
		CommonName:  "late client",
		ExtKeyUsage: []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth},
	})
	if err != nil {
		t.Fatal(err)
	}

	var calls atomic.Int32
	reneg := RenegotiatorFunc(func(_ context.Context, conn *tls.Conn) (tls.ConnectionState, error) {
		calls.Add(1)
		cs := conn.ConnectionState()
		cs.PeerCertificates = []*x509.Certificate{clientCert.Leaf}
		return cs, nil
	})

	a := newAdapter(t, Config{ClientCertMode: ClientCertRenegotiate, Renegotiator: reneg})
	srv, cli := tcpPair(t)
	clientHandshake(cli, nil)

	sess, err := a.PerformHandshake(context.Background(), srv, false)
	if err != nil {
		t.Fatal(err)
	}
	before := sess.Result()

	chain, err := sess.RequestClientCertificate(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(chain) != 1 || chain[0].Subject.CommonName != "late client" {
		t.Errorf("chain = %v", chain)
	}
	if calls.Load() != 1 {
		t.Errorf("renegotiations = %d, want 1", calls.Load())
	}
	if got := sess.PeerCertificates(); len(got) != 1 {
		t.Errorf("session peer certificates not updated: %v", got)
	}
	if after := sess.Result(); after.Protocol != before.Protocol || !after.Valid() {
		t.Errorf("snapshot after renegotiation = %v", after)
	}
}

func TestRequestClientCertificate_PeerDeclined(t *testing.T) {
	reneg := RenegotiatorFunc(func(_ context.Context, conn *tls.Conn) (tls.ConnectionState, error) {
		return conn.ConnectionState(), nil
	})
	a := newAdapter(t, Config{ClientCertMode: ClientCertRenegotiate, Renegotiator: reneg})
	srv, cli := tcpPair(t)
	clientHandshake(cli, nil)

	sess, err := a.PerformHandshake(context.Background(), srv, false)
	if err != nil {
		t.Fatal(err)
	}
	_, err = sess.RequestClientCertificate(context.Background())
	if !errors.Is(err, errors.ErrPeerDeclined) {
		t.Errorf("err = %v, want ErrPeerDeclined", err)
	}
}

func TestNewAdapter_NoCertificate(t *testing.T) {
	if _, err := NewAdapter(Config{}, nil); !errors.Is(err, errors.ErrNoCertificate) {
		t.Errorf("err = %v, want ErrNoCertificate", err)
	}
}
