package obs

import (
	"net/http"
	"strings"
	"time"
)

// Headers browser drivers attach to every request of a session.
const (
	HeaderRun       = "X-Blockcheck-Run"
	HeaderSession   = "X-Blockcheck-Session"
	HeaderRequestID = "X-Request-Id"
)

// statusWriter remembers the status and body size of a response.
type statusWriter struct {
	http.ResponseWriter
	status int
	bytes  int64
}

func (w *statusWriter) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(p []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(p)
	w.bytes += int64(n)
	return n, err
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// Correlate puts the run and session of the calling driver, plus a request
// ID, into the request context. The request ID is echoed on the response.
func Correlate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := strings.TrimSpace(r.Header.Get(HeaderRequestID))
		if requestID == "" {
			requestID = NewID("req")
		}
		w.Header().Set(HeaderRequestID, requestID)

		ctx := WithCorrelation(r.Context(), Correlation{
			RequestID: requestID,
			RunID:     strings.TrimSpace(r.Header.Get(HeaderRun)),
			SessionID: strings.TrimSpace(r.Header.Get(HeaderSession)),
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// AccessLog logs every request at debug level, and server errors at warn.
func AccessLog(pkg string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w}
		next.ServeHTTP(sw, r)
		if sw.status == 0 {
			sw.status = http.StatusOK
		}

		log := From(r.Context()).With("pkg", pkg)
		args := []any{
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.status,
			"dur_ms", float64(time.Since(start).Microseconds()) / 1000.0,
			"resp_bytes", sw.bytes,
		}
		if sw.status >= http.StatusInternalServerError {
			log.Warn("http_access", args...)
			return
		}
		log.Debug("http_access", args...)
	})
}
