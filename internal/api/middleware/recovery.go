package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/meetmidway/midway/internal/api/models"
)

// Recovery returns a middleware that turns a panic into a 500 problem response.
// The panic is logged through the request-scoped logger when one is present
// and recorded on the active span. http.ErrAbortHandler is re-raised so the
// server aborts the connection as usual.
func Recovery(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler { //nolint:errorlint // sentinel compared by identity
					panic(rec)
				}

				ctx := r.Context()
				requestID := GetRequestID(ctx)

				reqLog := zerolog.Ctx(ctx)
				if reqLog.GetLevel() == zerolog.Disabled {
					l := log.With().Str("request_id", requestID).Logger()
					reqLog = &l
				}
				reqLog.Error().
					Interface("error", rec).
					Str("route", routePattern(r)).
					Str("stack", string(debug.Stack())).
					Msg("panic recovered")

				span := trace.SpanFromContext(ctx)
				span.RecordError(fmt.Errorf("panic: %v", rec))
				span.SetStatus(codes.Error, "panic recovered")

				problem := models.NewInternalError(requestID, "an unexpected error occurred")
				problem.Instance = r.URL.Path
				problem.Write(w)
			}()

			next.ServeHTTP(w, r)
		})
	}
}
