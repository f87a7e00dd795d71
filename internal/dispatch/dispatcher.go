// Package dispatch turns a post-handshake connection into a sequence of
// HTTP/1.1 request/response cycles delivered to a Handler.
//
// Requests on one connection are served strictly one at a time.  Each
// request moves Received → HeadersBuilt → HandlerInvoked →
// BodyStreaming → Completed or Aborted.  A handler failure becomes a
// 500 response while nothing has reached the wire; after that the
// connection is aborted.
package dispatch

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"runtime/debug"
	"strings"
	"sync/atomic"
	"time"

	"httpsd/internal/connection"
	"httpsd/internal/errors"
	"httpsd/internal/metrics"
	"httpsd/util"
)

// Defaults applied by New for zero Config fields.
const (
	DefaultReadHeaderTimeout = 10 * time.Second
	DefaultIdleTimeout       = 60 * time.Second
	DefaultMaxBodyDrain      = 256 << 10
)

// ConnState is the coarse state of a connection, reported to the
// listener so it can drain gracefully.
type ConnState int

const (
	StateNew ConnState = iota
	StateHandshaking
	StateActive
	StateIdle
	StateClosed
)

func (s ConnState) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateHandshaking:
		return "handshaking"
	case StateActive:
		return "active"
	case StateIdle:
		return "idle"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Config tunes a Dispatcher.
type Config struct {
	ReadHeaderTimeout time.Duration
	IdleTimeout       time.Duration
	// MaxBodyDrain bounds how much of an unread request body is
	// discarded to keep the connection alive.
	MaxBodyDrain int64
	// ConnState, if set, observes Idle and Active transitions.
	ConnState func(*connection.Connection, ConnState)
}

// Result summarises a dispatched connection.
type Result struct {
	Requests int
	// Last is the final state of the last request, if any.
	Last State
	// Err is what ended the connection; nil for an orderly close.
	Err error
}

// Dispatcher serves requests on established connections.  One
// Dispatcher is shared by all connections of a listener.
type Dispatcher struct {
	handler  Handler
	cfg      Config
	logger   *util.Logger
	metrics  *metrics.Collector
	shutdown atomic.Bool
}

// New returns a Dispatcher for handler.
func New(handler Handler, cfg Config, logger *util.Logger, m *metrics.Collector) *Dispatcher {
	if cfg.ReadHeaderTimeout == 0 {
		cfg.ReadHeaderTimeout = DefaultReadHeaderTimeout
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.MaxBodyDrain == 0 {
		cfg.MaxBodyDrain = DefaultMaxBodyDrain
	}
	if logger == nil {
		logger = util.NewLogger(0)
	}
	return &Dispatcher{handler: handler, cfg: cfg, logger: logger, metrics: m}
}

// Shutdown stops keep-alive: every connection closes after its current
// request.
func (d *Dispatcher) Shutdown() { d.shutdown.Store(true) }

// Dispatch serves requests on conn until the peer closes, keep-alive
// ends, or a request is aborted.  The caller closes conn afterwards.
func (d *Dispatcher) Dispatch(conn *connection.Connection) Result {
	var res Result
	log := conn.Logger

	nc := conn.Conn()
	br := util.GetReader(nc)
	defer util.PutReader(br)
	wire := &wireWriter{w: nc}
	bw := util.GetWriter(wire)
	defer util.PutWriter(bw)

	for !d.shutdown.Load() {
		d.setState(conn, StateIdle)
		if err := d.awaitRequest(conn, br, res.Requests == 0); err != nil {
			res.Err = quiet(err)
			return res
		}
		d.setState(conn, StateActive)

		nc.SetReadDeadline(time.Now().Add(d.cfg.ReadHeaderTimeout)) //nolint:errcheck
		req, err := http.ReadRequest(br)
		if err != nil {
			if err = quiet(err); err != nil {
				log.Verbose("bad request: %v", err)
				bw.WriteString("HTTP/1.1 400 Bad Request\r\nConnection: close\r\nContent-Length: 0\r\n\r\n")
				bw.Flush() //nolint:errcheck
			}
			res.Err = err
			return res
		}
		nc.SetReadDeadline(time.Time{}) //nolint:errcheck
		res.Requests++

		rc, keep, err := d.serve(conn, req, bw, wire)
		res.Last = rc.State()
		if err != nil {
			res.Err = err
		}
		if !keep {
			return res
		}
	}
	return res
}

// awaitRequest blocks until the first byte of the next request.
func (d *Dispatcher) awaitRequest(conn *connection.Connection, br *bufio.Reader, first bool) error {
	timeout := d.cfg.IdleTimeout
	if first {
		timeout = d.cfg.ReadHeaderTimeout
	}
	conn.Conn().SetReadDeadline(time.Now().Add(timeout)) //nolint:errcheck
	_, err := br.Peek(1)
	return err
}

// serve runs one request.  keep reports whether the connection may
// carry another.
func (d *Dispatcher) serve(conn *connection.Connection, req *http.Request, bw *bufio.Writer, wire *wireWriter) (rc *RequestContext, keep bool, err error) {
	log := conn.Logger
	features := conn.Features()

	ctx, cancel := context.WithCancel(context.WithValue(conn.Context(), featuresKey{}, features))
	defer cancel()
	cs := conn.Conn().ConnectionState()
	req.TLS = &cs
	req.RemoteAddr = conn.RemoteAddr().String()
	req = req.WithContext(ctx)

	rc = &RequestContext{Request: req, Features: features}
	rc.setState(Received)
	rc.Response = newResponse(rc, bw, wire)
	if d.shutdown.Load() {
		rc.Response.closeAfter = true
	}
	rc.setState(HeadersBuilt)
	log.Debug("%s %s %s", req.Method, req.URL.RequestURI(), req.Proto)

	if req.ProtoAtLeast(1, 1) && req.ContentLength != 0 &&
		strings.EqualFold(req.Header.Get("Expect"), "100-continue") {
		bw.WriteString("HTTP/1.1 100 Continue\r\n\r\n")
		if err := bw.Flush(); err != nil {
			return rc, false, d.abort(rc, err)
		}
		rc.Response.mark = wire.n
	}

	rc.setState(HandlerInvoked)
	if err := d.invoke(rc); err != nil {
		return rc, false, d.fail(conn, rc, err)
	}
	if err := rc.Response.finish(); err != nil {
		return rc, false, d.fail(conn, rc, err)
	}
	rc.setState(Completed)
	d.metrics.RequestCompleted(rc.Response.Status())
	log.Verbose("%s %s -> %d (%d bytes)", req.Method, req.URL.Path, rc.Response.Status(), rc.Response.Written())

	keep = !req.Close && !rc.Response.closeAfter && d.drain(req)
	return rc, keep, nil
}

// invoke calls the handler, converting a panic into a handler fault.
func (d *Dispatcher) invoke(rc *RequestContext) (err error) {
	defer func() {
		if p := recover(); p != nil {
			if p == http.ErrAbortHandler {
				err = http.ErrAbortHandler
				return
			}
			d.logger.Debug("handler panic: %v\n%s", p, debug.Stack())
			err = &errors.DispatchError{
				Reason: errors.HandlerFault,
				Err:    fmt.Errorf("%w: panic: %v", errors.ErrHandlerFault, p),
			}
		}
	}()
	return d.handler.Handle(rc)
}

// fail answers 500 when the response is still untouched on the wire and
// aborts otherwise.
func (d *Dispatcher) fail(conn *connection.Connection, rc *RequestContext, err error) error {
	var de *errors.DispatchError
	isDispatch := errors.As(err, &de)
	if err == http.ErrAbortHandler || (err == rc.Response.err && !isDispatch) {
		// The connection itself failed; nothing more can be sent.
		return d.abort(rc, err)
	}
	if !isDispatch {
		de = &errors.DispatchError{Reason: errors.HandlerFault, Err: err}
	}
	d.metrics.RecordError(de.Error())

	if !rc.Response.sent() {
		if werr := rc.Response.replace(http.StatusInternalServerError); werr == nil {
			conn.Logger.Warn("%s %s: %v (sent 500)", rc.Request.Method, rc.Request.URL.Path, de)
			rc.setState(Completed)
			d.metrics.RequestCompleted(http.StatusInternalServerError)
			return de
		}
	}
	conn.Logger.Warn("%s %s: %v (aborting connection)", rc.Request.Method, rc.Request.URL.Path, de)
	d.abort(rc, de) //nolint:errcheck
	return de
}

func (d *Dispatcher) abort(rc *RequestContext, err error) error {
	rc.setState(Aborted)
	d.metrics.RequestAborted()
	return err
}

// drain discards what is left of the request body.  It reports false
// when the body was larger than MaxBodyDrain or could not be read.
func (d *Dispatcher) drain(req *http.Request) bool {
	if req.Body == nil || req.Body == http.NoBody {
		return true
	}
	_, err := io.CopyN(io.Discard, req.Body, d.cfg.MaxBodyDrain+1)
	return err == io.EOF
}

func (d *Dispatcher) setState(conn *connection.Connection, s ConnState) {
	if d.cfg.ConnState != nil {
		d.cfg.ConnState(conn, s)
	}
}

// quiet maps the errors of a peer going away to nil.
func quiet(err error) error {
	if err == nil || util.IsHarmless(err) || errors.IsTimeout(err) {
		return nil
	}
	return err
}
