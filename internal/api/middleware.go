// mpesa-gateway/internal/api/middleware.go
package api

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	m "github.com/example/mpesa-gateway/pkg/metrics"
)

// APIKeyAuth rejects requests without the expected X-API-Key before any
// orchestration begins.
func APIKeyAuth(expected string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key == "" {
				writeError(w, http.StatusUnauthorized, "AUTHENTICATION_ERROR", "API key required in X-API-Key header", nil)
				return
			}
			if key != expected {
				log.Printf("[api] invalid API key attempt")
				writeError(w, http.StatusUnauthorized, "AUTHENTICATION_ERROR", "Invalid API Key", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

/*************** Metrics middleware ***************/
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		operation := "http"
		if route := mux.CurrentRoute(r); route != nil && route.GetName() != "" {
			operation = route.GetName()
		}
		statusLabel := "FAILED"
		if rec.status >= 200 && rec.status < 400 {
			statusLabel = "SUCCESS"
		}
		m.IncRequest(operation, statusLabel)
		m.ObserveDuration(operation, statusLabel, time.Since(start).Seconds())
	})
}
