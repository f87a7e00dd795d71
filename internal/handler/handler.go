// Package handler provides the built-in request handlers.  Each one is
// a dispatch.Handler operating on a RequestContext, so it never sees
// the raw connection.
package handler

import (
	"fmt"
	"io"
	"net/http"
	"sort"

	"httpsd/internal/dispatch"
)

// DefaultMaxEchoBody caps the body Echo will buffer.
const DefaultMaxEchoBody = 1 << 20

// Empty answers 200 with an empty body.
type Empty struct{}

func (Empty) Handle(*dispatch.RequestContext) error { return nil }

// Hello answers with a fixed body of declared length.
type Hello struct {
	Body string // defaults to "Hello World"
}

func (h Hello) Handle(rc *dispatch.RequestContext) error {
	body := h.Body
	if body == "" {
		body = "Hello World"
	}
	rc.Response.Header().Set("Content-Type", "text/plain; charset=utf-8")
	rc.Response.SetContentLength(int64(len(body)))
	_, err := rc.Response.WriteString(body)
	return err
}

// Echo reads the whole request body and writes it back unmodified.
type Echo struct {
	MaxBody int64
}

func (e Echo) Handle(rc *dispatch.RequestContext) error {
	limit := e.MaxBody
	if limit <= 0 {
		limit = DefaultMaxEchoBody
	}
	body, err := io.ReadAll(io.LimitReader(rc.Request.Body, limit+1))
	if err != nil {
		return err
	}
	if int64(len(body)) > limit {
		rc.Response.Close()
		rc.Response.WriteHeader(http.StatusRequestEntityTooLarge)
		return nil
	}
	if ct := rc.Request.Header.Get("Content-Type"); ct != "" {
		rc.Response.Header().Set("Content-Type", ct)
	}
	rc.Response.SetContentLength(int64(len(body)))
	_, err = rc.Response.Write(body)
	return err
}

var builtins = map[string]func() dispatch.Handler{
	"empty":   func() dispatch.Handler { return Empty{} },
	"hello":   func() dispatch.Handler { return Hello{} },
	"echo":    func() dispatch.Handler { return Echo{} },
	"tlsinfo": func() dispatch.Handler { return TLSInfo{} },
}

// Names lists the built-in handler names in order.
func Names() []string {
	names := make([]string, 0, len(builtins))
	for n := range builtins {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// ByName returns the built-in handler called name.
func ByName(name string) (dispatch.Handler, error) {
	if mk, ok := builtins[name]; ok {
		return mk(), nil
	}
	return nil, fmt.Errorf("unknown handler %q (want one of %v)", name, Names())
}
