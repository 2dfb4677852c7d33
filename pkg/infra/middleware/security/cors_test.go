package security

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	mwopts "github.com/kart-io/codequery/pkg/options/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// runCORS runs a request through the CORS middleware and reports whether the
// final handler was reached.
func runCORS(middleware gin.HandlerFunc, req *http.Request) (*httptest.ResponseRecorder, bool) {
	handlerCalled := false
	w := httptest.NewRecorder()
	_, r := gin.CreateTestContext(w)
	r.Use(middleware)
	r.Any("/test", func(c *gin.Context) {
		handlerCalled = true
		c.String(http.StatusOK, "OK")
	})
	r.ServeHTTP(w, req)
	return w, handlerCalled
}

func TestCORSWithOptions_PreflightRequest(t *testing.T) {
	opts := mwopts.CORSOptions{
		AllowOrigins:     []string{"https://example.com"},
		AllowMethods:     []string{"GET", "POST"},
		AllowHeaders:     []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           3600,
	}

	req := httptest.NewRequest(http.MethodOptions, "/test", nil)
	req.Header.Set("Origin", "https://example.com")

	w, handlerCalled := runCORS(CORSWithOptions(opts), req)

	// Preflight should not call the next handler
	if handlerCalled {
		t.Error("Expected handler not to be called for preflight request")
	}

	if w.Code != http.StatusNoContent {
		t.Errorf("Preflight status = %d, want %d", w.Code, http.StatusNoContent)
	}

	// Check CORS headers
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://example.com" {
		t.Errorf("Access-Control-Allow-Origin = %v, want %v", got, "https://example.com")
	}

	if got := w.Header().Get("Access-Control-Allow-Credentials"); got != "true" {
		t.Errorf("Access-Control-Allow-Credentials = %v, want %v", got, "true")
	}

	if got := w.Header().Get("Access-Control-Allow-Methods"); got == "" {
		t.Error("Access-Control-Allow-Methods header not set")
	}

	if got := w.Header().Get("Access-Control-Allow-Headers"); got == "" {
		t.Error("Access-Control-Allow-Headers header not set")
	}

	if got := w.Header().Get("Access-Control-Max-Age"); got != "3600" {
		t.Errorf("Access-Control-Max-Age = %v, want %v", got, "3600")
	}
}

func TestCORSWithOptions_NormalRequest(t *testing.T) {
	opts := mwopts.CORSOptions{
		AllowOrigins:  []string{"https://example.com"},
		ExposeHeaders: []string{"X-Custom-Header"},
	}

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("Origin", "https://example.com")

	w, handlerCalled := runCORS(CORSWithOptions(opts), req)

	// Normal request should call the next handler
	if !handlerCalled {
		t.Error("Expected handler to be called for normal request")
	}

	// Check CORS headers
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://example.com" {
		t.Errorf("Access-Control-Allow-Origin = %v, want %v", got, "https://example.com")
	}

	if got := w.Header().Get("Access-Control-Expose-Headers"); got != "X-Custom-Header" {
		t.Errorf("Access-Control-Expose-Headers = %v, want %v", got, "X-Custom-Header")
	}
}

func TestCORSWithOptions_DisallowedOrigin(t *testing.T) {
	opts := mwopts.CORSOptions{
		AllowOrigins: []string{"https://example.com"},
	}

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("Origin", "https://evil.com")

	w, handlerCalled := runCORS(CORSWithOptions(opts), req)

	// Handler should still be called but no CORS headers
	if !handlerCalled {
		t.Error("Expected handler to be called even for disallowed origin")
	}

	// CORS headers should not be set
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("Access-Control-Allow-Origin should not be set, got %v", got)
	}
}

func TestCORSWithOptions_WildcardOrigin(t *testing.T) {
	opts := mwopts.CORSOptions{
		AllowOrigins: []string{"*"},
	}

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("Origin", "https://any-domain.com")

	w, _ := runCORS(CORSWithOptions(opts), req)

	// Wildcard should allow any origin
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %v, want %v", got, "*")
	}
}

func TestCORSWithOptions_NoOriginHeader(t *testing.T) {
	opts := mwopts.CORSOptions{
		AllowOrigins: []string{"https://example.com"},
	}

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	// No Origin header set

	w, handlerCalled := runCORS(CORSWithOptions(opts), req)

	// Handler should be called
	if !handlerCalled {
		t.Error("Expected handler to be called")
	}

	// No CORS headers should be set
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("Access-Control-Allow-Origin should not be set, got %v", got)
	}
}

func TestCORS_DefaultConfig(t *testing.T) {
	middleware := CORS()
	if middleware == nil {
		t.Error("Expected CORS() to return a valid middleware")
	}

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("Origin", "http://localhost:3000")

	w, handlerCalled := runCORS(middleware, req)

	if !handlerCalled {
		t.Error("Expected handler to be called")
	}

	// Default config uses "*"
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %v, want %v", got, "*")
	}
}

func TestCORSWithOptions_Panic(t *testing.T) {
	// Invalid config should panic
	defer func() {
		if r := recover(); r == nil {
			t.Error("Expected CORSWithOptions to panic with invalid config")
		}
	}()

	_ = CORSWithOptions(mwopts.CORSOptions{
		AllowOrigins:     []string{"*"},
		AllowCredentials: true,
	})
}
