package web

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	appLog "starlingcal/internal/log"
)

type contextKey string

const requestIDKey contextKey = "request_id"

// RedirectToHTTPS sends plain-HTTP GET and HEAD requests to the https URL
// with the same host and path. The scheme comes from X-Forwarded-Proto as
// set by the TLS-terminating proxy.
//
// Unlike the calendar route, /health is never redirected: load balancer
// health checks arrive over plain HTTP and must get 200. Other methods
// pass through unchanged.
func RedirectToHTTPS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isHTTPS(r) || r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			next.ServeHTTP(w, r)
			return
		}

		http.Redirect(w, r, "https://"+r.Host+r.URL.RequestURI(), http.StatusMovedPermanently)
	})
}

func isHTTPS(r *http.Request) bool {
	proto := strings.ToLower(strings.TrimSpace(r.Header.Get("X-Forwarded-Proto")))
	return strings.HasPrefix(proto, "https")
}

// requestID tags each request with a fresh id, echoed in X-Request-Id.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		w.Header().Set("X-Request-Id", id)
		ctx := context.WithValue(r.Context(), requestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestIDFrom returns the id assigned by the request-id middleware.
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		appLog.Info("http request",
			"method", r.Method,
			"url", redactURL(r.URL),
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", RequestIDFrom(r.Context()),
		)
	})
}

// redactURL hides the access token so it never reaches the logs.
func redactURL(u *url.URL) string {
	q := u.Query()
	if q.Has(tokenParam) {
		q.Set(tokenParam, "REDACTED")
	}
	out := *u
	out.RawQuery = q.Encode()
	return out.RequestURI()
}
