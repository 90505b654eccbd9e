package middleware

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/Pesokrava/review_service/internal/events"
)

const headerCorrelationID = "X-Correlation-Id"

// Tracing attaches the inbound correlation id and W3C trace identifiers to
// the request context so event publishes can be stitched into the
// originating trace. A missing correlation id gets a fresh one.
func Tracing() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			trace := events.TraceContext{
				CorrelationID: r.Header.Get(headerCorrelationID),
			}
			if trace.CorrelationID == "" {
				trace.CorrelationID = uuid.NewString()
			}

			// traceparent: 00-<trace-id>-<span-id>-<flags>
			if parts := strings.Split(r.Header.Get("traceparent"), "-"); len(parts) == 4 {
				trace.TraceID = parts[1]
				trace.SpanID = parts[2]
			}

			w.Header().Set(headerCorrelationID, trace.CorrelationID)
			next.ServeHTTP(w, r.WithContext(events.WithTrace(r.Context(), trace)))
		})
	}
}
