package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"
)

type contextKey string

const (
	registryContextKey      contextKey = "metrics"
	requestLabelsContextKey contextKey = "metrics_request_labels"
)

// WithRegistry attaches r to ctx under the request-services-bag key the
// exposition endpoints read from.
func WithRegistry(ctx context.Context, r *Registry) context.Context {
	return context.WithValue(ctx, registryContextKey, r)
}

// RegistryFromContext retrieves the Registry attached by the interceptor (or
// by WithRegistry directly, e.g. in tests).
func RegistryFromContext(ctx context.Context) (*Registry, bool) {
	r, ok := ctx.Value(registryContextKey).(*Registry)
	return r, ok
}

// WithRequestLabels attaches request-scoped Prometheus labels (service,
// environment, instance) that the exposition endpoint merges over the
// Registry's configured global labels (spec.md §4.8).
func WithRequestLabels(ctx context.Context, labels map[string]string) context.Context {
	return context.WithValue(ctx, requestLabelsContextKey, labels)
}

func requestLabelsFromContext(ctx context.Context) map[string]string {
	labels, _ := ctx.Value(requestLabelsContextKey).(map[string]string)
	return labels
}

// statusRecorder captures the status code written through a ResponseWriter
// so the trailer step can read it after the handler returns.
type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (s *statusRecorder) WriteHeader(code int) {
	if !s.wroteHeader {
		s.status = code
		s.wroteHeader = true
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	if !s.wroteHeader {
		s.status = http.StatusOK
		s.wroteHeader = true
	}
	return s.ResponseWriter.Write(b)
}

// InterceptorOptions configures Registry.Interceptor.
type InterceptorOptions struct {
	// ExcludePaths lists patterns skipped entirely, in addition to the
	// Registry's Config.ExcludePaths: exact match, or "prefix/*" (matches
	// "prefix" and "prefix/...").
	ExcludePaths []string

	// RouteLabel derives the low-cardinality route label for a request
	// (e.g. a gorilla/mux path template) instead of the raw URL path. If
	// nil, or it returns "", the raw request path is used.
	RouteLabel func(*http.Request) string
}

// Interceptor builds the request-lifecycle middleware (C5). It must run for
// every request before the downstream handler:
//  1. attach r to the request's services bag (context) under "metrics";
//  2. skip recording (but still serve) excluded paths;
//  3. mark the request started, invoke the downstream handler, and in an
//     always-run trailer record method/path/status/duration — swallowing
//     any panic from the trailer itself so instrumentation never poisons
//     the request.
func (r *Registry) Interceptor(opts InterceptorOptions) func(http.Handler) http.Handler {
	excludePaths := append(append([]string{}, r.cfg.ExcludePaths...), opts.ExcludePaths...)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := WithRegistry(req.Context(), r)
			req = req.WithContext(ctx)

			path := requestPath(req)
			if matchesExcludePath(path, excludePaths) {
				next.ServeHTTP(w, req)
				return
			}

			r.StartHTTPRequest()
			t0 := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			routeLabel := path
			if opts.RouteLabel != nil {
				if derived := opts.RouteLabel(req); derived != "" {
					routeLabel = derived
				}
			}

			defer func() {
				status := rec.status
				if status == 0 {
					status = http.StatusOK
				}
				if p := recover(); p != nil {
					status = statusFromPanic(p, status)
					r.safeRecord(req.Method, routeLabel, status, t0)
					panic(p)
				}
				r.safeRecord(req.Method, routeLabel, status, t0)
			}()

			next.ServeHTTP(rec, req)
		})
	}
}

// safeRecord calls RecordHTTPRequest, recovering from (and logging) any
// panic so a broken downstream recorder can never fail the request itself.
func (r *Registry) safeRecord(method, path string, status int, t0 time.Time) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("metrics: failed to record request", "panic", p)
		}
	}()
	durationMs := time.Since(t0).Seconds() * 1000
	if method == "" {
		method = "UNKNOWN"
	}
	r.RecordHTTPRequest(method, path, status, durationMs)
}

func requestPath(r *http.Request) string {
	if r.URL == nil || r.URL.Path == "" {
		return "/"
	}
	return r.URL.Path
}

// statusFromPanic probes a recovered panic value for, in order, a Status()
// int method, a StatusCode() int method, an int itself, or a numeric string
// in 100..599. If none matches, it returns fallback when fallback is already
// a 5xx status, otherwise 500.
func statusFromPanic(p any, fallback int) int {
	type statusCoder interface{ StatusCode() int }
	type stater interface{ Status() int }

	switch v := p.(type) {
	case stater:
		return v.Status()
	case statusCoder:
		return v.StatusCode()
	case int:
		return v
	case string:
		if n, err := strconv.Atoi(v); err == nil && n >= 100 && n < 600 {
			return n
		}
	}
	if fallback >= 500 {
		return fallback
	}
	return http.StatusInternalServerError
}
