package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	mwopts "github.com/kart-io/codequery/pkg/options/middleware"
	options "github.com/kart-io/codequery/pkg/options/server/http"
)

// TestFactoryRegistration_BuiltinFactories 验证内置中间件工厂随本包链接自动注册。
func TestFactoryRegistration_BuiltinFactories(t *testing.T) {
	factories := []string{
		mwopts.MiddlewareRecovery,
		mwopts.MiddlewareRequestID,
		mwopts.MiddlewareLogger,
		mwopts.MiddlewareCORS,
		mwopts.MiddlewareTimeout,
		mwopts.MiddlewareMetrics,
	}
	for _, name := range factories {
		if _, ok := mwopts.GetFactory(name); !ok {
			t.Errorf("Expected factory %q to be registered", name)
		}
	}

	registrars := []string{
		mwopts.MiddlewareHealth,
		mwopts.MiddlewareMetrics,
		mwopts.MiddlewarePprof,
		mwopts.MiddlewareVersion,
	}
	for _, name := range registrars {
		if _, ok := mwopts.GetRouteRegistrar(name); !ok {
			t.Errorf("Expected route registrar %q to be registered", name)
		}
	}
}

// TestFactoryRegistration_MiddlewareInstalled 验证默认配置下引擎实际安装了中间件。
func TestFactoryRegistration_MiddlewareInstalled(t *testing.T) {
	gin.SetMode(gin.TestMode)

	server := NewServer(options.NewOptions(), mwopts.NewOptions())

	if len(server.Engine().Handlers) == 0 {
		t.Fatal("Expected engine to have middleware installed, got none")
	}

	// recovery 中间件应把 panic 转为 500 响应
	server.Engine().GET("/panic", func(c *gin.Context) {
		panic("boom")
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/panic", nil)
	server.Engine().ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("Expected status code %d from recovery middleware, got %d", http.StatusInternalServerError, w.Code)
	}
}

// TestFactoryRegistration_HealthRoute 验证路由注册器注册了健康检查端点。
func TestFactoryRegistration_HealthRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)

	server := NewServer(options.NewOptions(), mwopts.NewOptions())
	if err := server.registerRoutes(); err != nil {
		t.Fatalf("Failed to register routes: %v", err)
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	server.Engine().ServeHTTP(w, req)

	if w.Code == http.StatusNotFound {
		t.Errorf("Expected /health to be registered, got %d", w.Code)
	}
}
