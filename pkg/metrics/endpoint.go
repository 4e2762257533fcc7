// Package metrics provides centralized metrics management: recording,
// middleware instrumentation, and exposition.
package metrics

import (
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// EndpointConfig configures the exposition endpoints (C8): optional
// per-client rate limiting and optional response caching, adapted from the
// teacher's metrics-endpoint handler onto the three read handlers this
// package exposes (JSON, Prometheus, HTML).
type EndpointConfig struct {
	RateLimitEnabled   bool
	RateLimitPerMinute int
	RateLimitBurst     int

	CacheEnabled bool
	CacheTTL     time.Duration

	Logger Logger
}

// DefaultEndpointConfig mirrors the teacher's defaults: rate limiting on,
// caching off.
func DefaultEndpointConfig() EndpointConfig {
	return EndpointConfig{
		RateLimitEnabled:   true,
		RateLimitPerMinute: 60,
		RateLimitBurst:     10,
	}
}

// rateLimiter is a per-client token bucket, one golang.org/x/time/rate
// limiter per observed client IP.
type rateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

func newRateLimiter(perMinute, burst int) *rateLimiter {
	return &rateLimiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    rate.Limit(float64(perMinute) / 60.0),
		burst:    burst,
	}
}

func (rl *rateLimiter) allow(clientID string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	limiter, ok := rl.limiters[clientID]
	if !ok {
		limiter = rate.NewLimiter(rl.limit, rl.burst)
		rl.limiters[clientID] = limiter
	}
	return limiter.Allow()
}

// cleanup drops limiters sitting at a full bucket (i.e. unused since the
// last sweep), bounding the map's memory under many distinct clients.
func (rl *rateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	for key, limiter := range rl.limiters {
		if limiter.TokensAt(now) == float64(rl.burst) {
			delete(rl.limiters, key)
		}
	}
}

func extractClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return strings.TrimSpace(strings.Split(xff, ",")[0])
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

type cacheEntry struct {
	body []byte
	at   time.Time
}

// Endpoint hosts the three exposition handlers (C8) sharing one rate
// limiter and one per-kind response cache.
type Endpoint struct {
	cfg     EndpointConfig
	limiter *rateLimiter
	logger  Logger

	cacheMu sync.Mutex
	cache   map[string]cacheEntry
}

// NewEndpoint builds an Endpoint from cfg, starting the rate-limiter cleanup
// sweep if rate limiting is enabled.
func NewEndpoint(cfg EndpointConfig) *Endpoint {
	e := &Endpoint{
		cfg:    cfg,
		logger: loggerOrNoop(cfg.Logger),
		cache:  make(map[string]cacheEntry),
	}
	if cfg.RateLimitEnabled {
		e.limiter = newRateLimiter(cfg.RateLimitPerMinute, cfg.RateLimitBurst)
		go e.cleanupLoop()
	}
	return e
}

func (e *Endpoint) cleanupLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		e.limiter.cleanup()
	}
}

// JSONHandler responds 200 with the snapshot as JSON.
func (e *Endpoint) JSONHandler() http.HandlerFunc {
	return e.handle("json", "application/json", func(snapshot Snapshot, _ *http.Request) ([]byte, error) {
		body, err := json.Marshal(snapshot)
		if err != nil {
			return nil, &SnapshotError{Operation: "format", Err: err}
		}
		return body, nil
	})
}

// PrometheusHandler responds 200 text/plain with the Prometheus exposition
// document. Global labels are the Registry's configured Labels merged with
// any request-scoped labels (service/environment/instance) set via
// WithRequestLabels.
func (e *Endpoint) PrometheusHandler() http.HandlerFunc {
	return e.handle("prometheus", "text/plain; version=0.0.4; charset=utf-8", func(snapshot Snapshot, r *http.Request) ([]byte, error) {
		reg, _ := RegistryFromContext(r.Context())
		labels := mergeLabels(reg.Config().Labels, requestLabelsFromContext(r.Context()))
		return []byte(FormatPrometheus(snapshot, labels)), nil
	})
}

// DashboardHandler responds 200 text/html with the rendered dashboard.
func (e *Endpoint) DashboardHandler() http.HandlerFunc {
	return e.handle("html", "text/html; charset=utf-8", func(snapshot Snapshot, _ *http.Request) ([]byte, error) {
		html, err := RenderDashboard(snapshot)
		if err != nil {
			return nil, &SnapshotError{Operation: "render", Err: err}
		}
		return []byte(html), nil
	})
}

type renderFunc func(Snapshot, *http.Request) ([]byte, error)

func (e *Endpoint) handle(kind, contentType string, render renderFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if e.limiter != nil && !e.limiter.allow(extractClientIP(r)) {
			w.Header().Set("Retry-After", "60")
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}

		reg, ok := RegistryFromContext(r.Context())
		if !ok {
			writeServiceUnavailable(w)
			return
		}

		if e.cfg.CacheEnabled && e.cfg.CacheTTL > 0 {
			e.cacheMu.Lock()
			entry, found := e.cache[kind]
			e.cacheMu.Unlock()
			if found && time.Since(entry.at) < e.cfg.CacheTTL {
				w.Header().Set("Content-Type", contentType)
				w.WriteHeader(http.StatusOK)
				w.Write(entry.body)
				return
			}
		}

		snapshot := reg.GetSnapshot()
		body, err := render(snapshot, r)
		if err != nil {
			e.logger.Error("metrics: endpoint render failed", "kind", kind, "error", err)
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		if e.cfg.CacheEnabled && e.cfg.CacheTTL > 0 {
			e.cacheMu.Lock()
			e.cache[kind] = cacheEntry{body: body, at: time.Now()}
			e.cacheMu.Unlock()
		}

		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(http.StatusOK)
		w.Write(body)
	}
}

func writeServiceUnavailable(w http.ResponseWriter) {
	unavailable := &ServiceUnavailableError{
		Service:    "metrics",
		Reason:     "dependency_down",
		Suggestion: "call metrics.Initialize() during startup and install Registry.Interceptor in the middleware chain",
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusServiceUnavailable)
	json.NewEncoder(w).Encode(map[string]string{
		"service":    unavailable.Service,
		"reason":     unavailable.Reason,
		"suggestion": unavailable.Suggestion,
	})
}
