package util

import (
	"bufio"
	"io"
	"sync"
)

// Per-connection bufio readers and writers are pooled so that idle
// keep-alive connections do not pin 64 KiB of buffers each.
var (
	readerPool sync.Pool
	writerPool sync.Pool
)

// GetReader returns a pooled bufio.Reader reset to read from r.  Callers
// must return it with [PutReader] when finished.
func GetReader(r io.Reader) *bufio.Reader {
	if br, ok := readerPool.Get().(*bufio.Reader); ok {
		br.Reset(r)
		return br
	}
	return bufio.NewReaderSize(r, DefaultBufSize)
}

// PutReader returns br to the pool for reuse.
func PutReader(br *bufio.Reader) {
	if br == nil {
		return
	}
	br.Reset(nil)
	readerPool.Put(br)
}

// GetWriter returns a pooled bufio.Writer reset to write to w.
func GetWriter(w io.Writer) *bufio.Writer {
	if bw, ok := writerPool.Get().(*bufio.Writer); ok {
		bw.Reset(w)
		return bw
	}
	return bufio.NewWriterSize(w, DefaultBufSize)
}

// PutWriter returns bw to the pool for reuse.  Unflushed data is
// discarded.
func PutWriter(bw *bufio.Writer) {
	if bw == nil {
		return
	}
	bw.Reset(nil)
	writerPool.Put(bw)
}
