package transport

import (
	"context"
	"crypto/tls"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"httpsd/internal/identity"
	"httpsd/internal/retry"
	"httpsd/util"
)

// TestTCPDialer_Connect verifies that TCPDialer can reach a local
// TCP server and exchange data.
func TestTCPDialer_Connect(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	// Server: accept, send greeting, close.
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		conn.Write([]byte("hello from server\n")) //nolint:errcheck
	}()

	d := &TCPDialer{Timeout: 2 * time.Second}
	conn, err := d.Dial(context.Background(), "tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	buf := make([]byte, 256)
	n, err := conn.Read(buf)
	if err != nil && err != io.EOF {
		t.Fatalf("read: %v", err)
	}
	if got := string(buf[:n]); got != "hello from server\n" {
		t.Errorf("got %q, want %q", got, "hello from server\n")
	}
}

// TestTCPDialer_ContextCancel verifies that a cancelled context stops the dial.
func TestTCPDialer_ContextCancel(t *testing.T) {
	d := &TCPDialer{Timeout: 5 * time.Second}

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // cancel immediately

	if _, err := d.Dial(ctx, "tcp", "127.0.0.1:1"); err == nil {
		t.Fatal("expected error from cancelled context")
	}
}

// TestTCPDialer_Close verifies Close is a no-op and returns nil.
func TestTCPDialer_Close(t *testing.T) {
	d := &TCPDialer{}
	if err := d.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

// tlsServer accepts TLS connections on a loopback port and writes the
// negotiated server name back to the client.
func tlsServer(t *testing.T) net.Listener {
	t.Helper()
	cert, err := identity.SelfSigned()
	if err != nil {
		t.Fatal(err)
	}
	ln, err := tls.Listen("tcp", "127.0.0.1:0", &tls.Config{Certificates: []tls.Certificate{cert}})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ln.Close() })
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				defer c.Close()
				tc := c.(*tls.Conn)
				if tc.Handshake() != nil {
					return
				}
				io.WriteString(tc, tc.ConnectionState().ServerName+"\n") //nolint:errcheck
			}()
		}
	}()
	return ln
}

func TestTLSDialer_Handshake(t *testing.T) {
	ln := tlsServer(t)
	_, port, _ := net.SplitHostPort(ln.Addr().String())

	d := NewTLSDialer(&tls.Config{InsecureSkipVerify: true}, nil, nil) //nolint:gosec // self-signed test server
	conn, err := d.Dial(context.Background(), "tcp", net.JoinHostPort("localhost", port))
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	if _, ok := conn.(*tls.Conn); !ok {
		t.Fatalf("got %T, want *tls.Conn", conn)
	}
	b, _ := io.ReadAll(conn)
	if got := strings.TrimSpace(string(b)); got != "localhost" {
		t.Errorf("server name = %q, want localhost", got)
	}
}

func TestTLSDialer_VerificationFailureIsFinal(t *testing.T) {
	ln := tlsServer(t)

	b := &retry.Backoff{InitialDelay: time.Millisecond, MaxAttempts: 5}
	d := NewTLSDialer(&tls.Config{}, b, nil)
	start := time.Now()
	_, err := d.Dial(context.Background(), "tcp", ln.Addr().String())
	if err == nil {
		t.Fatal("expected verification failure against a self-signed server")
	}
	if !strings.Contains(err.Error(), "tls handshake") {
		t.Errorf("err = %v", err)
	}
	if time.Since(start) > time.Second {
		t.Error("handshake failures must not be retried")
	}
}

func TestTLSDialer_RetriesUntilServerStarts(t *testing.T) {
	port, err := util.FindFreePort()
	if err != nil {
		t.Fatal(err)
	}
	addr := util.FormatAddr("127.0.0.1", port)

	// Start the server only after the first dial attempts have failed.
	go func() {
		time.Sleep(50 * time.Millisecond)
		cert, err := identity.SelfSigned()
		if err != nil {
			return
		}
		ln, err := tls.Listen("tcp", addr, &tls.Config{Certificates: []tls.Certificate{cert}})
		if err != nil {
			return
		}
		defer ln.Close()
		c, err := ln.Accept()
		if err != nil {
			return
		}
		c.(*tls.Conn).Handshake() //nolint:errcheck
		time.Sleep(100 * time.Millisecond)
		c.Close()
	}()

	b := &retry.Backoff{InitialDelay: 20 * time.Millisecond, MaxDelay: 50 * time.Millisecond, MaxAttempts: 50}
	d := NewTLSDialer(&tls.Config{InsecureSkipVerify: true}, b, nil) //nolint:gosec // test server
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := d.Dial(ctx, "tcp", addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	conn.Close()
}
