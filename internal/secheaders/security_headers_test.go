package secheaders

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHeadersSetsStandardHeaders(t *testing.T) {
	mw := Headers(DefaultConfig())
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rw := httptest.NewRecorder()
	handler.ServeHTTP(rw, req)

	assert.Equal(t, "nosniff", rw.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rw.Header().Get("X-Frame-Options"))
	assert.Equal(t, "default-src 'self'", rw.Header().Get("Content-Security-Policy"))
	assert.Equal(t, "strict-origin-when-cross-origin", rw.Header().Get("Referrer-Policy"))
}

func TestHeadersOnlySetsHSTSOverTLS(t *testing.T) {
	mw := Headers(DefaultConfig())
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	plain := httptest.NewRequest(http.MethodGet, "/", nil)
	rw1 := httptest.NewRecorder()
	handler.ServeHTTP(rw1, plain)
	assert.Empty(t, rw1.Header().Get("Strict-Transport-Security"))

	tlsReq := httptest.NewRequest(http.MethodGet, "/", nil)
	tlsReq.TLS = &tls.ConnectionState{}
	rw2 := httptest.NewRecorder()
	handler.ServeHTTP(rw2, tlsReq)
	assert.Equal(t, "max-age=31536000; includeSubDomains", rw2.Header().Get("Strict-Transport-Security"))
}

func TestHeadersRemovesServerIdentification(t *testing.T) {
	mw := Headers(DefaultConfig())
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Server", "nginx")
		w.Header().Set("X-Powered-By", "PHP")
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rw := httptest.NewRecorder()
	handler.ServeHTTP(rw, req)

	assert.Empty(t, rw.Header().Get("Server"))
	assert.Empty(t, rw.Header().Get("X-Powered-By"))
}

type spyLogger struct {
	warnings []string
}

func (s *spyLogger) Debug(msg string, args ...any) {}
func (s *spyLogger) Info(msg string, args ...any)  {}
func (s *spyLogger) Warn(msg string, args ...any)  { s.warnings = append(s.warnings, msg) }
func (s *spyLogger) Error(msg string, args ...any) {}

func TestHeadersWarnsOnceWhenHSTSEnabledWithoutValue(t *testing.T) {
	spy := &spyLogger{}
	cfg := DefaultConfig()
	cfg.StrictTransportSecurity = ""
	cfg.Logger = spy

	mw := Headers(cfg)
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.TLS = &tls.ConnectionState{}
		rw := httptest.NewRecorder()
		handler.ServeHTTP(rw, req)
		assert.Empty(t, rw.Header().Get("Strict-Transport-Security"))
	}

	assert.Len(t, spy.warnings, 1)
}

func TestHeadersNoWarningWhenHSTSValueConfigured(t *testing.T) {
	spy := &spyLogger{}
	cfg := DefaultConfig()
	cfg.Logger = spy

	mw := Headers(cfg)
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.TLS = &tls.ConnectionState{}
	rw := httptest.NewRecorder()
	handler.ServeHTTP(rw, req)

	assert.Equal(t, "max-age=31536000; includeSubDomains", rw.Header().Get("Strict-Transport-Security"))
	assert.Empty(t, spy.warnings)
}
