// Package middleware provides HTTP middleware for request logging, timeouts and
// panic recovery on the admin API.
package middleware

import (
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/nurjigit18/shipledger/internal/common/httpx"
	"github.com/nurjigit18/shipledger/internal/common/ids"
)

const RequestIDHeader = "X-Shipledger-Request-ID"

// RequestLogger attaches a request id to the context logger and the response
// headers, and logs the request and its duration.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := ids.NewTraceID()
		ctx := log.With().Str("request_id", requestID).Logger().WithContext(r.Context())

		w.Header().Set(RequestIDHeader, requestID)
		rw := httpx.NewResponseWriter(w)

		log.Ctx(ctx).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote_ip", r.RemoteAddr).
			Msg("incoming request")

		defer func() {
			log.Ctx(ctx).Info().
				Int("status", rw.Status()).
				Int64("duration_ms", time.Since(start).Milliseconds()).
				Msg("request completed")
		}()

		next.ServeHTTP(rw, r.WithContext(ctx))
	})
}
