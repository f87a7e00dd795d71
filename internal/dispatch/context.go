package dispatch

import (
	"bufio"
	"context"
	"io"
	"net/http"
	"sync/atomic"

	"httpsd/internal/connection"
)

// State is the lifecycle stage of one request.
type State int32

const (
	Received State = iota
	HeadersBuilt
	HandlerInvoked
	BodyStreaming
	Completed
	Aborted
)

var stateNames = [...]string{
	Received:       "received",
	HeadersBuilt:   "headers_built",
	HandlerInvoked: "handler_invoked",
	BodyStreaming:  "body_streaming",
	Completed:      "completed",
	Aborted:        "aborted",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Terminal reports whether no further transition can happen.
func (s State) Terminal() bool { return s == Completed || s == Aborted }

// RequestContext carries one request through the dispatcher.  It holds
// the connection's features by reference and must not be retained
// after the handler returns.
type RequestContext struct {
	// Request body streams directly from the connection.
	Request  *http.Request
	Response *Response
	Features *connection.Features

	state atomic.Int32
}

// Context is cancelled when the request completes or the connection
// closes.
func (rc *RequestContext) Context() context.Context { return rc.Request.Context() }

// State returns the current lifecycle stage.
func (rc *RequestContext) State() State { return State(rc.state.Load()) }

func (rc *RequestContext) setState(s State) { rc.state.Store(int32(s)) }

// Handler produces the response for a request.  A returned error, or a
// panic, is a handler fault.
type Handler interface {
	Handle(rc *RequestContext) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(rc *RequestContext) error

func (f HandlerFunc) Handle(rc *RequestContext) error { return f(rc) }

type featuresKey struct{}

// FeaturesFromContext returns the connection features attached to a
// request context, for handlers written against net/http.
func FeaturesFromContext(ctx context.Context) *connection.Features {
	f, _ := ctx.Value(featuresKey{}).(*connection.Features)
	return f
}

// FromHTTP adapts an http.Handler.  The features are reachable through
// FeaturesFromContext(r.Context()) and r.TLS is populated.
func FromHTTP(h http.Handler) Handler {
	return HandlerFunc(func(rc *RequestContext) error {
		h.ServeHTTP(rc.Response, rc.Request)
		return nil
	})
}

// NewRequestContext builds a context outside a live connection.  The
// response is written to w as raw HTTP/1.1 once Finish is called.
func NewRequestContext(req *http.Request, features *connection.Features, w io.Writer) *RequestContext {
	wire := &wireWriter{w: w}
	rc := &RequestContext{Request: req, Features: features}
	rc.Response = newResponse(rc, bufio.NewWriter(wire), wire)
	rc.setState(HeadersBuilt)
	return rc
}

// Finish completes and flushes the response of a context built by
// NewRequestContext.
func (rc *RequestContext) Finish() error {
	if err := rc.Response.finish(); err != nil {
		rc.setState(Aborted)
		return err
	}
	rc.setState(Completed)
	return nil
}
