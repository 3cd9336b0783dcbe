package middleware

import (
	"context"
	"io"
	"net/http"
	"sync"
	"time"
)

// StreamingTimeout bounds export and import transfers without buffering
// them. maxDuration caps the whole exchange; idleTimeout caps the gap
// between reads of the upload body or writes of the download.
func StreamingTimeout(maxDuration, idleTimeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), maxDuration)
			defer cancel()

			rc := http.NewResponseController(w)
			deadline := time.Now().Add(maxDuration)
			_ = rc.SetWriteDeadline(deadline)
			_ = rc.SetReadDeadline(deadline)

			watch := &idleWatch{rc: rc, timeout: idleTimeout, cancel: cancel}
			watch.touch()
			defer watch.stop()

			if r.Body != nil && r.Body != http.NoBody {
				r.Body = &idleBody{ReadCloser: r.Body, watch: watch}
			}
			next.ServeHTTP(&streamingWriter{ResponseWriter: w, watch: watch}, r.WithContext(ctx))
		})
	}
}

// idleWatch cancels the request once no transfer progress has been made for
// timeout.
type idleWatch struct {
	rc      *http.ResponseController
	timeout time.Duration
	cancel  context.CancelFunc

	mu    sync.Mutex
	timer *time.Timer
}

func (iw *idleWatch) touch() {
	iw.mu.Lock()
	defer iw.mu.Unlock()

	if iw.timer != nil {
		iw.timer.Reset(iw.timeout)
		return
	}
	iw.timer = time.AfterFunc(iw.timeout, func() {
		_ = iw.rc.SetWriteDeadline(time.Now())
		_ = iw.rc.SetReadDeadline(time.Now())
		iw.cancel()
	})
}

func (iw *idleWatch) stop() {
	iw.mu.Lock()
	defer iw.mu.Unlock()
	if iw.timer != nil {
		iw.timer.Stop()
	}
}

type idleBody struct {
	io.ReadCloser
	watch *idleWatch
}

func (b *idleBody) Read(p []byte) (int, error) {
	n, err := b.ReadCloser.Read(p)
	if n > 0 {
		b.watch.touch()
	}
	return n, err
}

type streamingWriter struct {
	http.ResponseWriter
	watch *idleWatch
}

func (sw *streamingWriter) Write(b []byte) (int, error) {
	sw.watch.touch()
	return sw.ResponseWriter.Write(b)
}

func (sw *streamingWriter) Unwrap() http.ResponseWriter {
	return sw.ResponseWriter
}

func (sw *streamingWriter) Flush() {
	if f, ok := sw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
