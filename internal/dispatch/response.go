package dispatch

import (
	"bufio"
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
	"strconv"
	"time"

	"httpsd/internal/errors"
)

// wireWriter counts the bytes that actually reached the connection, so
// a failed response can tell whether it is still recoverable.
type wireWriter struct {
	w io.Writer
	n int64
}

func (w *wireWriter) Write(p []byte) (int, error) {
	n, err := w.w.Write(p)
	w.n += int64(n)
	return n, err
}

// Response builds the reply for one request.  It implements
// http.ResponseWriter and http.Flusher.  Headers are sent with the
// first body write, an explicit Flush, or when the handler returns.
type Response struct {
	rc   *RequestContext
	bw   *bufio.Writer
	wire *wireWriter
	mark int64 // wire.n when the response started

	header        http.Header
	status        int
	contentLength int64 // -1 when unknown
	headerSent    bool
	chunked       bool
	noBody        bool // status forbids a body
	closeAfter    bool
	written       int64
	cw            io.WriteCloser
	err           error
}

func newResponse(rc *RequestContext, bw *bufio.Writer, wire *wireWriter) *Response {
	return &Response{
		rc:            rc,
		bw:            bw,
		wire:          wire,
		mark:          wire.n,
		header:        make(http.Header),
		contentLength: -1,
	}
}

func (w *Response) Header() http.Header { return w.header }

// WriteHeader records the status code.  Later calls are ignored.
func (w *Response) WriteHeader(code int) {
	if w.status != 0 || w.headerSent {
		return
	}
	if code < 100 || code > 999 {
		panic(fmt.Sprintf("invalid WriteHeader code %v", code))
	}
	w.status = code
}

// SetContentLength declares the exact body size.  Writing more or fewer
// bytes fails the request with BodyLengthMismatch.
func (w *Response) SetContentLength(n int64) {
	if !w.headerSent {
		w.contentLength = n
	}
}

// Status returns the status code, 0 if none has been chosen yet.
func (w *Response) Status() int { return w.status }

// Written returns the number of body bytes accepted so far.
func (w *Response) Written() int64 { return w.written }

// Close marks the connection to be closed after this response.  It
// has no effect once the headers are sent.
func (w *Response) Close() {
	if !w.headerSent {
		w.closeAfter = true
	}
}

func (w *Response) Write(p []byte) (int, error) {
	if w.err != nil {
		return 0, w.err
	}
	w.commit()
	if w.noBody {
		return 0, http.ErrBodyNotAllowed
	}
	if w.rc.Request.Method == http.MethodHead {
		w.written += int64(len(p))
		return len(p), nil
	}
	if w.contentLength >= 0 && w.written+int64(len(p)) > w.contentLength {
		w.err = lengthMismatch(w.contentLength, w.written+int64(len(p)))
		return 0, w.err
	}

	var n int
	var err error
	if w.chunked {
		n, err = w.cw.Write(p)
	} else {
		n, err = w.bw.Write(p)
	}
	w.written += int64(n)
	if err != nil {
		w.err = err
	}
	return n, err
}

// WriteString avoids a copy for io.StringWriter callers.
func (w *Response) WriteString(s string) (int, error) { return w.Write([]byte(s)) }

// Flush sends the headers and any buffered body bytes.
func (w *Response) Flush() {
	if w.err != nil {
		return
	}
	w.commit()
	if err := w.bw.Flush(); err != nil {
		w.err = err
	}
}

// commit writes the status line and headers into the buffer.
func (w *Response) commit() {
	if w.headerSent {
		return
	}
	w.headerSent = true
	if w.status == 0 {
		w.status = http.StatusOK
	}
	w.rc.setState(BodyStreaming)

	h := w.header
	if w.contentLength < 0 {
		if n, err := strconv.ParseInt(h.Get("Content-Length"), 10, 64); err == nil && n >= 0 {
			w.contentLength = n
		}
	}
	h.Del("Content-Length")
	h.Del("Transfer-Encoding")

	req := w.rc.Request
	switch {
	case !bodyAllowed(w.status):
		w.noBody = true
		w.contentLength = -1
	case w.contentLength >= 0:
		h.Set("Content-Length", strconv.FormatInt(w.contentLength, 10))
	case req.Method == http.MethodHead:
	case req.ProtoAtLeast(1, 1):
		w.chunked = true
		h.Set("Transfer-Encoding", "chunked")
	default:
		// HTTP/1.0 without a length: the body ends when we close.
		w.closeAfter = true
	}

	if h.Get("Connection") == "close" {
		w.closeAfter = true
	}
	if w.closeAfter || req.Close {
		h.Set("Connection", "close")
	}
	if h.Get("Date") == "" {
		h.Set("Date", time.Now().UTC().Format(http.TimeFormat))
	}

	fmt.Fprintf(w.bw, "HTTP/1.1 %03d %s\r\n", w.status, statusText(w.status))
	h.Write(w.bw) //nolint:errcheck // bufio error surfaces on Flush
	w.bw.WriteString("\r\n")
	if w.chunked {
		w.cw = httputil.NewChunkedWriter(w.bw)
	}
}

// finish completes the response and flushes it to the connection.
func (w *Response) finish() error {
	if w.err != nil {
		return w.err
	}
	if !w.headerSent && w.written == 0 && w.contentLength < 0 && w.header.Get("Content-Length") == "" {
		w.contentLength = 0
	}
	w.commit()

	if !w.noBody && w.rc.Request.Method != http.MethodHead &&
		w.contentLength >= 0 && w.written != w.contentLength {
		w.err = lengthMismatch(w.contentLength, w.written)
		return w.err
	}
	if w.chunked {
		if err := w.cw.Close(); err != nil {
			return err
		}
		w.bw.WriteString("\r\n")
	}
	if err := w.bw.Flush(); err != nil {
		w.err = err
		return err
	}
	return nil
}

// sent reports whether any byte of this response reached the wire.
func (w *Response) sent() bool { return w.wire.n > w.mark }

// replace discards everything buffered and sends a bare status reply
// instead.  Only valid while nothing has been sent.
func (w *Response) replace(status int) error {
	w.bw.Reset(w.wire)
	w.header = make(http.Header)
	w.status = 0
	w.contentLength = -1
	w.headerSent = false
	w.chunked = false
	w.noBody = false
	w.written = 0
	w.cw = nil
	w.err = nil
	w.closeAfter = true

	body := statusText(status)
	w.header.Set("Content-Type", "text/plain; charset=utf-8")
	w.SetContentLength(int64(len(body)))
	w.WriteHeader(status)
	if _, err := w.WriteString(body); err != nil {
		return err
	}
	return w.finish()
}

func lengthMismatch(declared, actual int64) error {
	return &errors.DispatchError{
		Reason: errors.BodyLengthMismatch,
		Err:    fmt.Errorf("%w: declared %d, wrote %d", errors.ErrBodyLengthMismatch, declared, actual),
	}
}

func bodyAllowed(status int) bool {
	switch {
	case status >= 100 && status <= 199:
		return false
	case status == http.StatusNoContent, status == http.StatusNotModified:
		return false
	}
	return true
}

func statusText(code int) string {
	if t := http.StatusText(code); t != "" {
		return t
	}
	return "status code " + strconv.Itoa(code)
}
