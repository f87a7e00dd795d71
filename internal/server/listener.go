// Package server owns the listening socket.  Every accepted connection
// gets its own goroutine that performs the TLS handshake and then hands
// the session to the dispatcher; connections share nothing mutable
// except the listener's bookkeeping.
package server

import (
	"context"
	"crypto/tls"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"httpsd/internal/connection"
	"httpsd/internal/dispatch"
	"httpsd/internal/errors"
	"httpsd/internal/handshake"
	"httpsd/internal/metrics"
	"httpsd/internal/retry"
	"httpsd/util"
)

// DefaultGracePeriod bounds how long Stop waits for active requests.
const DefaultGracePeriod = 5 * time.Second

const shutdownPollInterval = 10 * time.Millisecond

// Config holds everything a Listener needs besides the certificate.
type Config struct {
	// Handshake is used as is; its Certificate is set by Start.
	Handshake   handshake.Config
	Dispatch    dispatch.Config
	GracePeriod time.Duration
}

// Listener accepts TLS connections and serves them with a handler.
type Listener struct {
	cfg     Config
	handler dispatch.Handler
	logger  *util.Logger
	metrics *metrics.Collector

	mu         sync.Mutex
	ln         net.Listener
	adapter    *handshake.Adapter
	dispatcher *dispatch.Dispatcher
	conns      map[uint64]*tracked
	nextID     uint64
	closing    bool
	ctx        context.Context // cancelled on forced close
	cancel     context.CancelFunc
	acceptDone chan struct{}
	wg         sync.WaitGroup
}

// tracked is the listener's view of one connection.
type tracked struct {
	id    uint64
	raw   net.Conn
	conn  *connection.Connection // nil until the handshake completes
	state atomic.Int32           // dispatch.ConnState
}

// setState records s unless the connection is already closed.
func (t *tracked) setState(s dispatch.ConnState) {
	for {
		cur := t.state.Load()
		if dispatch.ConnState(cur) == dispatch.StateClosed {
			return
		}
		if t.state.CompareAndSwap(cur, int32(s)) {
			return
		}
	}
}

func (t *tracked) State() dispatch.ConnState { return dispatch.ConnState(t.state.Load()) }

// New returns a Listener that serves handler.  m may be nil.
func New(handler dispatch.Handler, cfg Config, logger *util.Logger, m *metrics.Collector) *Listener {
	if logger == nil {
		logger = util.NewLogger(0)
	}
	if cfg.GracePeriod <= 0 {
		cfg.GracePeriod = DefaultGracePeriod
	}
	return &Listener{
		cfg:     cfg,
		handler: handler,
		logger:  logger,
		metrics: m,
		conns:   make(map[uint64]*tracked),
	}
}

// Start binds addr and begins accepting connections in the background.
// It returns the bound address, which differs from addr when addr asks
// for port 0.  A Listener can be started once.
func (l *Listener) Start(addr string, cert tls.Certificate) (net.Addr, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closing {
		return nil, errors.ErrServerClosed
	}
	if l.ln != nil {
		return nil, errors.ErrListenerStarted
	}

	bind, err := util.NormalizeBindAddr(addr)
	if err != nil {
		return nil, &errors.ConfigError{Field: "addr", Value: addr, Message: err.Error(), Hint: "use host:port or a bare port"}
	}

	hc := l.cfg.Handshake
	hc.Certificate = cert
	adapter, err := handshake.NewAdapter(hc, l.logger)
	if err != nil {
		return nil, err
	}

	ln, err := net.Listen("tcp", bind)
	if err != nil {
		return nil, errors.Wrap("listen", bind, err)
	}

	dc := l.cfg.Dispatch
	hook := dc.ConnState
	dc.ConnState = func(c *connection.Connection, s dispatch.ConnState) {
		l.connState(c.ID, s)
		if hook != nil {
			hook(c, s)
		}
	}

	l.ln = ln
	l.adapter = adapter
	l.dispatcher = dispatch.New(l.handler, dc, l.logger, l.metrics)
	l.ctx, l.cancel = context.WithCancel(context.Background())
	l.acceptDone = make(chan struct{})

	l.logger.Info("listening on %s (client certificates: %s)", ln.Addr(), adapter.Mode())
	go l.acceptLoop(ln)
	return ln.Addr(), nil
}

// Addr returns the bound address, or nil before Start.
func (l *Listener) Addr() net.Addr {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ln == nil {
		return nil
	}
	return l.ln.Addr()
}

func (l *Listener) acceptLoop(ln net.Listener) {
	defer close(l.acceptDone)

	backoff := retry.AcceptBackoff()
	attempt := 0
	for {
		raw, err := ln.Accept()
		if err != nil {
			if l.isClosing() {
				return
			}
			if errors.IsTemporary(err) {
				attempt++
				delay := backoff.Delay(attempt)
				l.logger.Warn("accept: %v; retrying in %v", err, delay)
				time.Sleep(delay)
				continue
			}
			l.logger.Error("accept: %v", err)
			return
		}
		attempt = 0

		t := l.track(raw)
		if t == nil {
			raw.Close()
			continue
		}
		go l.serve(t)
	}
}

// serve drives one connection through handshake and dispatch.
func (l *Listener) serve(t *tracked) {
	defer l.wg.Done()
	defer l.untrack(t)

	l.metrics.ConnectionOpened()
	defer l.metrics.ConnectionClosed()

	log := l.logger.With("conn=%d remote=%s", t.id, t.raw.RemoteAddr())
	log.Debug("accepted")

	counted := util.NewCountingConn(t.raw, l.metrics.BytesReceived, l.metrics.BytesSent)
	t.setState(dispatch.StateHandshaking)

	required := l.adapter.Mode() == handshake.ClientCertRequire
	sess, err := l.adapter.PerformHandshake(l.ctx, counted, required)
	if err != nil {
		// Below the HTTP layer: the client sees only the alert or reset.
		reason := errors.HandshakeReasonOf(err)
		l.metrics.HandshakeFailed(reason.String())
		log.Verbose("%v", err)
		t.raw.Close()
		return
	}
	l.metrics.HandshakeSucceeded()

	conn := connection.New(l.ctx, t.id, sess, log, l.metrics)
	defer conn.Close()
	if !l.attach(t, conn) {
		return
	}
	log.Verbose("handshake complete: %s", sess.Result())

	res := l.dispatcher.Dispatch(conn)
	if res.Err != nil {
		log.Verbose("closing after %d request(s): %v", res.Requests, res.Err)
	} else {
		log.Debug("closing after %d request(s)", res.Requests)
	}
}

func (l *Listener) track(raw net.Conn) *tracked {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closing {
		return nil
	}
	l.nextID++
	t := &tracked{id: l.nextID, raw: raw}
	t.setState(dispatch.StateNew)
	l.conns[t.id] = t
	l.wg.Add(1)
	return t
}

// attach records the established connection.  It returns false when the
// listener started shutting down during the handshake.
func (l *Listener) attach(t *tracked, conn *connection.Connection) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	t.conn = conn
	return !l.closing || t.State() != dispatch.StateClosed
}

func (l *Listener) untrack(t *tracked) {
	t.setState(dispatch.StateClosed)
	l.mu.Lock()
	delete(l.conns, t.id)
	l.mu.Unlock()
}

func (l *Listener) connState(id uint64, s dispatch.ConnState) {
	l.mu.Lock()
	t := l.conns[id]
	l.mu.Unlock()
	if t != nil {
		t.setState(s)
	}
}

func (l *Listener) isClosing() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closing
}

// Stop closes the socket, then waits for connections to finish their
// current request.  Idle connections and unfinished handshakes are
// closed at once.  Whatever remains after the grace period, or when
// ctx ends, is closed forcibly.  Stop returns ctx.Err() in the latter
// case, and also when ctx ends while a handler ignoring its context is
// still running; such handlers are left behind.
func (l *Listener) Stop(ctx context.Context) error {
	l.mu.Lock()
	if l.ln == nil || l.closing {
		l.mu.Unlock()
		return nil
	}
	l.closing = true
	ln := l.ln
	l.mu.Unlock()

	err := ln.Close()
	<-l.acceptDone
	l.dispatcher.Shutdown()

	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()

	grace := time.NewTimer(l.cfg.GracePeriod)
	defer grace.Stop()
	poll := time.NewTicker(shutdownPollInterval)
	defer poll.Stop()

	for {
		l.closeIdle()
		select {
		case <-done:
			l.stopped()
			return err
		case <-poll.C:
		case <-grace.C:
			n := l.forceClose()
			l.logger.Warn("grace period expired; closed %d connection(s)", n)
			select {
			case <-done:
				l.stopped()
				return err
			case <-ctx.Done():
				return l.abandon(ctx)
			}
		case <-ctx.Done():
			l.forceClose()
			return l.abandon(ctx)
		}
	}
}

// abandon gives up on handlers still running after their connections
// were closed.
func (l *Listener) abandon(ctx context.Context) error {
	l.mu.Lock()
	n := len(l.conns)
	l.mu.Unlock()
	if n > 0 {
		l.logger.Warn("%d handler(s) still running after forced close", n)
	}
	l.stopped()
	return ctx.Err()
}

// closeIdle closes connections that are not inside a request.
func (l *Listener) closeIdle() {
	var idle []io.Closer
	l.mu.Lock()
	for _, t := range l.conns {
		switch t.State() {
		case dispatch.StateNew, dispatch.StateHandshaking:
			t.setState(dispatch.StateClosed)
			idle = append(idle, t.raw)
		case dispatch.StateIdle:
			t.setState(dispatch.StateClosed)
			if t.conn != nil {
				idle = append(idle, t.conn)
			} else {
				idle = append(idle, t.raw)
			}
		}
	}
	l.mu.Unlock()

	// A TLS close writes close_notify; a slow peer must not hold l.mu.
	for _, c := range idle {
		c.Close()
	}
}

func (l *Listener) forceClose() int {
	l.cancel()
	l.mu.Lock()
	raws := make([]net.Conn, 0, len(l.conns))
	for _, t := range l.conns {
		t.setState(dispatch.StateClosed)
		raws = append(raws, t.raw)
	}
	l.mu.Unlock()

	for _, c := range raws {
		c.Close()
	}
	return len(raws)
}

func (l *Listener) stopped() {
	l.cancel()
	l.logger.Info("stopped")
	l.logger.Verbose("metrics: %s", l.metrics.JSON())
}
