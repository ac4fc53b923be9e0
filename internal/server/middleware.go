package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/maruel/ksid"
	"github.com/maruel/tabserve/internal/server/ipgeo"
	"github.com/maruel/tabserve/internal/server/reqctx"
)

// RequestMetadata stores a fresh request ID plus the client IP, user agent
// and country in the request context, and logs each request once served.
// geo may be nil.
func RequestMetadata(geo *ipgeo.Checker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			id := ksid.NewID()
			ip := reqctx.GetClientIP(r)
			cc := geo.CountryCode(ip)
			ctx := reqctx.WithRequestID(r.Context(), id)
			ctx = reqctx.WithClientIP(ctx, ip)
			ctx = reqctx.WithUserAgent(ctx, r.Header.Get("User-Agent"))
			ctx = reqctx.WithCountryCode(ctx, cc)
			w.Header().Set("X-Request-ID", id.String())
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r.WithContext(ctx))
			slog.InfoContext(ctx, "http",
				"method", r.Method,
				"path", r.URL.Path,
				"status", sw.status,
				"dur", time.Since(start).Round(time.Microsecond),
				"ip", ip,
				"cc", cc,
				"id", id,
			)
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
