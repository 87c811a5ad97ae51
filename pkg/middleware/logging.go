package middleware

import (
	"net/http"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// routeUnmatched labels requests the mux had no pattern for (404s, 405s).
const routeUnmatched = "unmatched"

// RequestLogger returns middleware that logs HTTP requests.
// Successful requests log at DEBUG, 5xx responses at WARN.
// Pass nil logger to disable logging.
//
// The route field is the mux pattern, so the logger must wrap the
// *http.ServeMux directly; a middleware in between that copies the request
// hides the pattern.
func RequestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if logger == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := wrapResponseWriter(w)

			next.ServeHTTP(wrapped, r)

			level := zapcore.DebugLevel
			if wrapped.statusCode >= http.StatusInternalServerError {
				level = zapcore.WarnLevel
			}

			logger.Log(level, "HTTP request",
				zap.String("method", r.Method),
				zap.String("route", routeOf(r)),
				zap.String("path", r.URL.Path),
				zap.Int("status", wrapped.statusCode),
				zap.Int("bytes", wrapped.bytes),
				zap.Duration("duration", time.Since(start)),
				zap.String("remote_addr", r.RemoteAddr),
			)
		})
	}
}

func routeOf(r *http.Request) string {
	if r.Pattern == "" {
		return routeUnmatched
	}
	return r.Pattern
}

// responseWriter records the status code and body size of a response.
// Only the first WriteHeader reaches the underlying writer.
type responseWriter struct {
	http.ResponseWriter
	statusCode    int
	bytes         int
	headerWritten bool
}

func wrapResponseWriter(w http.ResponseWriter) *responseWriter {
	if rw, ok := w.(*responseWriter); ok {
		return rw
	}
	return &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (rw *responseWriter) WriteHeader(code int) {
	if rw.headerWritten {
		return
	}
	rw.statusCode = code
	rw.headerWritten = true
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.headerWritten {
		rw.WriteHeader(http.StatusOK)
	}
	n, err := rw.ResponseWriter.Write(b)
	rw.bytes += n
	return n, err
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}
