package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// opsPrefix marks health and readiness endpoints polled constantly by the load balancer.
const opsPrefix = "/v1/ops/"

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    int64
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.written += int64(n)
	return n, err
}

// Logger returns a middleware that attaches a request-scoped logger to the
// context and writes one access log line per request.
//
// The scoped logger carries request_id, trace_id and span_id; handlers and the
// search pipeline retrieve it with zerolog.Ctx so their lines can be joined to
// the access log.
func Logger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := newResponseWriter(w)

			fields := log.With().Str("request_id", GetRequestID(r.Context()))
			if spanCtx := trace.SpanContextFromContext(r.Context()); spanCtx.IsValid() {
				fields = fields.
					Str("trace_id", spanCtx.TraceID().String()).
					Str("span_id", spanCtx.SpanID().String())
			}
			reqLog := fields.Logger()

			next.ServeHTTP(wrapped, r.WithContext(reqLog.WithContext(r.Context())))

			accessEvent(&reqLog, r.URL.Path, wrapped.statusCode).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("route", routePattern(r)).
				Int("status", wrapped.statusCode).
				Int64("bytes", wrapped.written).
				Dur("duration", time.Since(start)).
				Str("remote_addr", r.RemoteAddr).
				Str("user_agent", r.UserAgent()).
				Msg("request completed")
		})
	}
}

// accessEvent picks the access log level: server errors at error, client
// errors at warn, successful ops polls at debug, everything else at info.
func accessEvent(log *zerolog.Logger, path string, status int) *zerolog.Event {
	switch {
	case status >= http.StatusInternalServerError:
		return log.Error()
	case status >= http.StatusBadRequest:
		return log.Warn()
	case strings.HasPrefix(path, opsPrefix):
		return log.Debug()
	default:
		return log.Info()
	}
}
