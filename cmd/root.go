// Package cmd wires up the CLI flags and dispatches to the httpsd core.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	flag "github.com/spf13/pflag"
	"golang.org/x/term"

	"httpsd/config"
	"httpsd/internal/core"
	"httpsd/internal/handler"
	"httpsd/util"
)

// version is overridable at link time:
//
//	go build -ldflags "-X httpsd/cmd.version=2.0.0"
var version = "1.0.0" //nolint:gochecknoglobals

// Execute parses args and runs the appropriate httpsd mode.
//
// Settings are layered: built-in defaults, then the --config file, then
// HTTPSD_* environment variables, then flags given on the command line.
func Execute(ctx context.Context, args []string) error {
	return execute(ctx, args, os.Stdout, os.Stderr)
}

func execute(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fv := config.Default()
	fs := flag.NewFlagSet("httpsd", flag.ContinueOnError)
	fs.SetOutput(stderr)

	// ── listener ─────────────────────────────────────────────────
	fs.StringVarP(&fv.Addr, "addr", "a", fv.Addr, "Listen address (host:port, :port or port)")
	fs.StringVar(&fv.CertFile, "cert", "", "Server certificate (PEM)")
	fs.StringVar(&fv.KeyFile, "key", "", "Server private key (PEM)")
	fs.StringVar(&fv.PFXFile, "pfx", "", "Server identity as a PKCS#12 bundle")
	fs.BoolVar(&fv.AskPassword, "ask-pass", false, "Prompt for the PKCS#12 password")
	fs.StringSliceVar(&fv.SelfSignedHosts, "host", nil, "Hostnames for the generated self-signed certificate")
	fs.StringVar(&fv.Handler, "handler", fv.Handler,
		"Response handler ("+strings.Join(handler.Names(), ", ")+")")

	// ── TLS ──────────────────────────────────────────────────────
	fs.StringVar(&fv.ClientCertMode, "client-cert-mode", fv.ClientCertMode,
		"Client certificates: none, allow, require or renegotiate")
	fs.StringVar(&fv.ClientCAFile, "client-ca", "", "CA bundle used to verify client certificates")
	fs.StringVar(&fv.MinTLS, "min-tls", "", "Minimum TLS version (1.0-1.3)")
	fs.StringVar(&fv.MaxTLS, "max-tls", "", "Maximum TLS version (1.0-1.3)")
	fs.DurationVar(&fv.HandshakeTimeout, "handshake-timeout", fv.HandshakeTimeout, "TLS handshake deadline")

	// ── HTTP ─────────────────────────────────────────────────────
	fs.DurationVar(&fv.ReadHeaderTimeout, "read-header-timeout", fv.ReadHeaderTimeout, "Deadline for reading request headers")
	fs.DurationVar(&fv.IdleTimeout, "idle-timeout", fv.IdleTimeout, "Keep-alive idle timeout")
	fs.DurationVar(&fv.GracePeriod, "grace-period", fv.GracePeriod, "Time allowed for in-flight requests on shutdown")

	// ── probe ────────────────────────────────────────────────────
	fs.StringVar(&fv.ProbeURL, "probe", "", "Act as a client and fetch this https URL")
	fs.StringVarP(&fv.ProbeData, "data", "d", "", "POST this body with --probe")
	fs.StringVar(&fv.ClientCertFile, "client-cert", "", "Client certificate for --probe (PEM)")
	fs.StringVar(&fv.ClientKeyFile, "client-key", "", "Client private key for --probe (PEM)")
	fs.StringVar(&fv.ClientStore, "client-store", "", "Directory to pick a client certificate from")
	fs.BoolVar(&fv.Verify, "verify", false, "Verify the server certificate with --probe")
	fs.IntVar(&fv.ProbeAttempts, "attempts", fv.ProbeAttempts, "Connection attempts for --probe")

	// ── output ───────────────────────────────────────────────────
	fs.CountVarP(&fv.Verbose, "verbose", "v", "Increase verbosity (repeatable)")

	var configPath string
	var showVersion, showHelp, dryRun bool
	fs.StringVarP(&configPath, "config", "f", "", "YAML config file")
	fs.BoolVar(&dryRun, "dry-run", false, "Validate the configuration and exit")
	fs.BoolVar(&showVersion, "version", false, "Print version and exit")
	fs.BoolVarP(&showHelp, "help", "h", false, "Show this help")

	fs.Usage = func() { printUsage(fs, stderr) }

	// ── parse ────────────────────────────────────────────────────
	if err := fs.Parse(args); err != nil {
		return err
	}
	if showHelp {
		printUsage(fs, stderr)
		return nil
	}
	if showVersion {
		fmt.Fprintf(stdout, "httpsd %s\n", version)
		return nil
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("unexpected argument %q (use --help for usage)", fs.Arg(0))
	}

	// ── layer settings ───────────────────────────────────────────
	cfg := config.Default()
	if configPath != "" {
		if err := config.LoadFile(configPath, cfg); err != nil {
			return err
		}
	}
	config.LoadFromEnv(cfg)
	applyFlags(fs, cfg, fv)

	if cfg.AskPassword {
		pass, err := readPassword(stderr)
		if err != nil {
			return err
		}
		cfg.PFXPassword = pass
	}

	// ── validate ─────────────────────────────────────────────────
	if err := cfg.Validate(); err != nil {
		return err
	}

	// ── build components ─────────────────────────────────────────
	logger := util.NewLogger(cfg.Verbose)
	logger.SetOutput(stderr)

	mode, err := core.Build(cfg, logger)
	if err != nil {
		return err
	}
	if dryRun {
		logger.Info("configuration ok")
		return nil
	}
	if pm, ok := mode.(*core.ProbeMode); ok {
		pm.Stdout = stdout
	}
	return mode.Run(ctx)
}

// ── helpers ──────────────────────────────────────────────────────────

// applyFlags copies every flag the user actually set from fv onto cfg.
func applyFlags(fs *flag.FlagSet, cfg, fv *config.Config) {
	set := map[string]func(){
		"addr":                func() { cfg.Addr = fv.Addr },
		"cert":                func() { cfg.CertFile = fv.CertFile },
		"key":                 func() { cfg.KeyFile = fv.KeyFile },
		"pfx":                 func() { cfg.PFXFile = fv.PFXFile },
		"ask-pass":            func() { cfg.AskPassword = fv.AskPassword },
		"host":                func() { cfg.SelfSignedHosts = fv.SelfSignedHosts },
		"handler":             func() { cfg.Handler = fv.Handler },
		"client-cert-mode":    func() { cfg.ClientCertMode = fv.ClientCertMode },
		"client-ca":           func() { cfg.ClientCAFile = fv.ClientCAFile },
		"min-tls":             func() { cfg.MinTLS = fv.MinTLS },
		"max-tls":             func() { cfg.MaxTLS = fv.MaxTLS },
		"handshake-timeout":   func() { cfg.HandshakeTimeout = fv.HandshakeTimeout },
		"read-header-timeout": func() { cfg.ReadHeaderTimeout = fv.ReadHeaderTimeout },
		"idle-timeout":        func() { cfg.IdleTimeout = fv.IdleTimeout },
		"grace-period":        func() { cfg.GracePeriod = fv.GracePeriod },
		"probe":               func() { cfg.ProbeURL = fv.ProbeURL },
		"data":                func() { cfg.ProbeData = fv.ProbeData },
		"client-cert":         func() { cfg.ClientCertFile = fv.ClientCertFile },
		"client-key":          func() { cfg.ClientKeyFile = fv.ClientKeyFile },
		"client-store":        func() { cfg.ClientStore = fv.ClientStore },
		"verify":              func() { cfg.Verify = fv.Verify },
		"attempts":            func() { cfg.ProbeAttempts = fv.ProbeAttempts },
		"verbose":             func() { cfg.Verbose = fv.Verbose },
	}
	fs.Visit(func(f *flag.Flag) {
		if apply, ok := set[f.Name]; ok {
			apply()
		}
	})
}

func readPassword(stderr io.Writer) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("--ask-pass needs an interactive terminal")
	}
	fmt.Fprint(stderr, "PKCS#12 password: ")
	pass, err := term.ReadPassword(fd)
	fmt.Fprintln(stderr)
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return string(pass), nil
}

func printUsage(fs *flag.FlagSet, w io.Writer) {
	fmt.Fprintf(w, `httpsd – TLS-terminating HTTPS listener v%s

Usage:
  httpsd [options]                            Serve HTTPS
  httpsd --probe <url> [options]              Fetch a URL and report the session

Options:
`, version)
	fs.SetOutput(w)
	fs.PrintDefaults()
	fmt.Fprintf(w, `
Examples:
  httpsd                                      Self-signed, port %s
  httpsd --cert srv.pem --key srv.key         Serve a real identity
  httpsd --pfx srv.pfx --ask-pass             Serve a PKCS#12 bundle
  httpsd --client-cert-mode renegotiate       Ask for client certs on demand
  httpsd --handler tlsinfo -vv                Report negotiated parameters
  httpsd --probe https://localhost:8443/tls   Inspect a server
`, strings.TrimPrefix(config.DefaultAddr, ":"))
}
