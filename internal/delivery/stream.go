// Package delivery streams generated documents to HTTP clients.
package delivery

import (
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"
)

// ErrorMessage is sent when generation fails before any byte went out
const ErrorMessage = "Falha ao gerar arquivo."

// ChunkSize bounds the memory held per response
const ChunkSize = 32 * 1024

// ErrSinkClosed is returned when the client stopped reading
var ErrSinkClosed = errors.New("output sink closed")

// Options describes the response
type Options struct {
	ContentType        string
	ContentDisposition string

	// Abort ends a response whose body already started. The default
	// hijacks and closes the connection.
	Abort func(w http.ResponseWriter)

	Logger *zap.Logger
}

// countWriter tracks how much of the body reached the client
type countWriter struct {
	w http.ResponseWriter
	n int64
}

func (cw *countWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n += int64(n)
	return n, err
}

// Stream copies src to w chunk by chunk and always closes src.
//
// A source error before any output becomes a 500 with ErrorMessage. A
// source error after output started aborts the connection, since the
// status line is gone. A write error means the client left; src is
// closed and ErrSinkClosed is returned.
func Stream(w http.ResponseWriter, src io.ReadCloser, opts Options) (int64, error) {
	defer src.Close()

	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	h := w.Header()
	if opts.ContentType != "" {
		h.Set("Content-Type", opts.ContentType)
	}
	if opts.ContentDisposition != "" {
		h.Set("Content-Disposition", opts.ContentDisposition)
	}

	cw := &countWriter{w: w}
	flusher, _ := w.(http.Flusher)
	buf := make([]byte, ChunkSize)
	for {
		n, rerr := src.Read(buf)
		if n > 0 {
			if _, werr := cw.Write(buf[:n]); werr != nil {
				log.Debug("client went away", zap.Int64("bytes", cw.n), zap.Error(werr))
				return cw.n, errors.Join(ErrSinkClosed, werr)
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		if rerr == io.EOF {
			return cw.n, nil
		}
		if rerr != nil {
			fail(w, cw.n, opts, log, rerr)
			return cw.n, rerr
		}
	}
}

func fail(w http.ResponseWriter, sent int64, opts Options, log *zap.Logger, err error) {
	if sent == 0 {
		log.Error("generation failed before output", zap.Error(err))
		h := w.Header()
		h.Del("Content-Disposition")
		h.Del("Content-Length")
		h.Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, ErrorMessage)
		return
	}

	log.Error("generation failed mid-stream, aborting connection", zap.Int64("bytes", sent), zap.Error(err))
	abort := opts.Abort
	if abort == nil {
		abort = AbortConnection
	}
	abort(w)
}

// AbortConnection closes the underlying connection so the client sees a
// truncated response. Without a hijackable connection it panics with
// http.ErrAbortHandler, which net/http handles the same way.
func AbortConnection(w http.ResponseWriter) {
	if hj, ok := w.(http.Hijacker); ok {
		conn, _, err := hj.Hijack()
		if err == nil {
			_ = conn.Close()
			return
		}
	}
	panic(http.ErrAbortHandler)
}
