//go:build integration
// +build integration

package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kart-io/codequery/pkg/infra/config"
	"github.com/kart-io/codequery/pkg/infra/logger"
	"github.com/kart-io/codequery/pkg/infra/middleware"
	logopts "github.com/kart-io/codequery/pkg/options/logger"
	mwopts "github.com/kart-io/codequery/pkg/options/middleware"
	"github.com/spf13/viper"
)

// TestIntegrationFullReload demonstrates a complete configuration reload scenario
// with multiple components.
func TestIntegrationFullReload(t *testing.T) {
	// Create temporary directory for config file
	tmpDir, err := os.MkdirTemp("", "integration-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	configFile := filepath.Join(tmpDir, "codequery-api.yaml")
	initialConfig := []byte(`
log:
  level: info
  format: json
  development: false
  disable-caller: false
  disable-stacktrace: true
  output-paths:
    - stdout

server:
  http:
    middleware:
      cors:
        allow-origins:
          - "*"
        allow-methods:
          - GET
          - POST
        allow-credentials: false
        max-age: 86400

      timeout:
        timeout: 30s
        skip-paths:
          - /health
          - /metrics

      logger:
        skip-paths:
          - /health
        use-structured-logger: true

      recovery:
        enable-stack-trace: false

      request-id:
        header: X-Request-ID
`)

	if err := os.WriteFile(configFile, initialConfig, 0o644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	// Initialize viper
	v := viper.New()
	v.SetConfigFile(configFile)
	if err := v.ReadInConfig(); err != nil {
		t.Fatalf("Failed to read config: %v", err)
	}

	// Parse logger options
	logOpts := logopts.NewOptions()
	if err := v.UnmarshalKey("log", logOpts); err != nil {
		t.Fatalf("Failed to unmarshal log config: %v", err)
	}

	// Parse middleware options
	mwOpts := mwopts.NewOptions()
	if sub := v.Sub("server.http.middleware"); sub != nil {
		if err := mwOpts.LoadFromViper(sub); err != nil {
			t.Fatalf("Failed to load middleware config: %v", err)
		}
	}

	// Verify initial configuration
	if logOpts.Level != "info" {
		t.Errorf("Expected log level 'info', got '%s'", logOpts.Level)
	}
	if timeoutOpts, ok := mwopts.GetConfigTyped[*mwopts.TimeoutOptions](mwOpts, mwopts.MiddlewareTimeout); !ok || timeoutOpts.Timeout != 30*time.Second {
		t.Errorf("Expected timeout 30s, got %+v", timeoutOpts)
	}

	// Create reloadable components
	reloadableLogger := logger.NewReloadableLogger(logOpts)
	reloadableMiddleware := middleware.NewReloadableMiddleware(mwOpts)

	// Create watcher and register components
	watcher := config.NewWatcher(v)
	reloadableLogger.RegisterWithWatcher(watcher, "logger", "log")
	reloadableMiddleware.RegisterWithWatcher(watcher, "middleware", "server.http.middleware")

	// Start watching
	watcher.Start()

	if !watcher.IsWatching() {
		t.Error("Watcher should be watching")
	}

	// Wait for watcher to initialize
	time.Sleep(100 * time.Millisecond)

	// Update configuration file
	updatedConfig := []byte(`
log:
  level: debug
  format: text
  development: true
  disable-caller: false
  disable-stacktrace: false
  output-paths:
    - stdout
    - stderr

server:
  http:
    middleware:
      cors:
        allow-origins:
          - "https://example.com"
          - "https://api.example.com"
        allow-methods:
          - GET
          - POST
          - PUT
          - DELETE
        allow-credentials: true
        max-age: 3600

      timeout:
        timeout: 60s
        skip-paths:
          - /health
          - /metrics
          - /debug

      logger:
        skip-paths:
          - /health
          - /metrics
        use-structured-logger: false

      recovery:
        enable-stack-trace: true

      request-id:
        header: X-Trace-ID
`)

	if err := os.WriteFile(configFile, updatedConfig, 0o644); err != nil {
		t.Fatalf("Failed to write updated config: %v", err)
	}

	// Wait for config reload (fsnotify needs time to detect and process)
	time.Sleep(1 * time.Second)

	// Verify logger configuration was updated
	currentLogOpts := reloadableLogger.GetOptions()
	if currentLogOpts.Level != "debug" {
		t.Errorf("Expected log level 'debug' after reload, got '%s'", currentLogOpts.Level)
	}
	if currentLogOpts.Format != "text" {
		t.Errorf("Expected log format 'text' after reload, got '%s'", currentLogOpts.Format)
	}
	if !currentLogOpts.Development {
		t.Error("Expected development mode to be true after reload")
	}

	// Verify middleware configuration was updated
	currentMwOpts := reloadableMiddleware.GetOptions()
	if timeoutOpts, ok := mwopts.GetConfigTyped[*mwopts.TimeoutOptions](currentMwOpts, mwopts.MiddlewareTimeout); !ok || timeoutOpts.Timeout != 60*time.Second {
		t.Errorf("Expected timeout 60s after reload, got %+v", timeoutOpts)
	}
	if idOpts, ok := mwopts.GetConfigTyped[*mwopts.RequestIDOptions](currentMwOpts, mwopts.MiddlewareRequestID); !ok || idOpts.Header != "X-Trace-ID" {
		t.Errorf("Expected request ID header 'X-Trace-ID' after reload, got %+v", idOpts)
	}
	corsOpts, ok := mwopts.GetConfigTyped[*mwopts.CORSOptions](currentMwOpts, mwopts.MiddlewareCORS)
	if !ok || corsOpts.MaxAge != 3600 {
		t.Errorf("Expected CORS max age 3600 after reload, got %+v", corsOpts)
	}
	if ok && len(corsOpts.AllowOrigins) != 2 {
		t.Errorf("Expected 2 CORS origins after reload, got %d", len(corsOpts.AllowOrigins))
	}
	if recOpts, ok := mwopts.GetConfigTyped[*mwopts.RecoveryOptions](currentMwOpts, mwopts.MiddlewareRecovery); !ok || !recOpts.EnableStackTrace {
		t.Error("Expected recovery stack trace to be enabled after reload")
	}

	// Cleanup
	watcher.Stop()
}

// TestIntegrationLoggerReload focuses on logger configuration reload.
func TestIntegrationLoggerReload(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "logger-reload-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	configFile := filepath.Join(tmpDir, "config.yaml")
	initialConfig := []byte(`
log:
  level: warn
  format: json
`)

	if err := os.WriteFile(configFile, initialConfig, 0o644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	v := viper.New()
	v.SetConfigFile(configFile)
	if err := v.ReadInConfig(); err != nil {
		t.Fatalf("Failed to read config: %v", err)
	}

	logOpts := logopts.NewOptions()
	if err := v.UnmarshalKey("log", logOpts); err != nil {
		t.Fatalf("Failed to unmarshal log config: %v", err)
	}

	reloadableLogger := logger.NewReloadableLogger(logOpts)
	watcher := config.NewWatcher(v)
	reloadableLogger.RegisterWithWatcher(watcher, "logger", "log")
	watcher.Start()

	time.Sleep(100 * time.Millisecond)

	// Change log level
	updatedConfig := []byte(`
log:
  level: error
  format: json
`)

	if err := os.WriteFile(configFile, updatedConfig, 0o644); err != nil {
		t.Fatalf("Failed to write updated config: %v", err)
	}

	time.Sleep(1 * time.Second)

	currentOpts := reloadableLogger.GetOptions()
	if currentOpts.Level != "error" {
		t.Errorf("Expected log level 'error' after reload, got '%s'", currentOpts.Level)
	}

	watcher.Stop()
}

// TestIntegrationMiddlewareReload focuses on middleware configuration reload.
func TestIntegrationMiddlewareReload(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "middleware-reload-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	configFile := filepath.Join(tmpDir, "config.yaml")
	initialConfig := []byte(`
middleware:
  timeout:
    timeout: 15s
  cors:
    max-age: 7200
`)

	if err := os.WriteFile(configFile, initialConfig, 0o644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	v := viper.New()
	v.SetConfigFile(configFile)
	if err := v.ReadInConfig(); err != nil {
		t.Fatalf("Failed to read config: %v", err)
	}

	mwOpts := mwopts.NewOptions()
	if sub := v.Sub("middleware"); sub != nil {
		if err := mwOpts.LoadFromViper(sub); err != nil {
			t.Fatalf("Failed to load middleware config: %v", err)
		}
	}

	reloadableMiddleware := middleware.NewReloadableMiddleware(mwOpts)
	watcher := config.NewWatcher(v)
	reloadableMiddleware.RegisterWithWatcher(watcher, "middleware", "middleware")
	watcher.Start()

	time.Sleep(100 * time.Millisecond)

	// Change timeout and CORS settings
	updatedConfig := []byte(`
middleware:
  timeout:
    timeout: 45s
  cors:
    max-age: 10800
`)

	if err := os.WriteFile(configFile, updatedConfig, 0o644); err != nil {
		t.Fatalf("Failed to write updated config: %v", err)
	}

	time.Sleep(1 * time.Second)

	currentOpts := reloadableMiddleware.GetOptions()
	if timeoutOpts, ok := mwopts.GetConfigTyped[*mwopts.TimeoutOptions](currentOpts, mwopts.MiddlewareTimeout); !ok || timeoutOpts.Timeout != 45*time.Second {
		t.Errorf("Expected timeout 45s after reload, got %+v", timeoutOpts)
	}
	if corsOpts, ok := mwopts.GetConfigTyped[*mwopts.CORSOptions](currentOpts, mwopts.MiddlewareCORS); !ok || corsOpts.MaxAge != 10800 {
		t.Errorf("Expected CORS max age 10800 after reload, got %+v", corsOpts)
	}

	watcher.Stop()
}

// TestIntegrationUnsubscribe verifies that unsubscribing stops config updates.
func TestIntegrationUnsubscribe(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "unsubscribe-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	configFile := filepath.Join(tmpDir, "config.yaml")
	initialConfig := []byte(`
log:
  level: info
`)

	if err := os.WriteFile(configFile, initialConfig, 0o644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	v := viper.New()
	v.SetConfigFile(configFile)
	if err := v.ReadInConfig(); err != nil {
		t.Fatalf("Failed to read config: %v", err)
	}

	logOpts := logopts.NewOptions()
	if err := v.UnmarshalKey("log", logOpts); err != nil {
		t.Fatalf("Failed to unmarshal log config: %v", err)
	}

	reloadableLogger := logger.NewReloadableLogger(logOpts)
	watcher := config.NewWatcher(v)
	reloadableLogger.RegisterWithWatcher(watcher, "logger", "log")
	watcher.Start()

	time.Sleep(100 * time.Millisecond)

	// Unsubscribe the logger
	watcher.Unsubscribe("logger")

	// Change config
	updatedConfig := []byte(`
log:
  level: debug
`)

	if err := os.WriteFile(configFile, updatedConfig, 0o644); err != nil {
		t.Fatalf("Failed to write updated config: %v", err)
	}

	time.Sleep(1 * time.Second)

	// Logger should still have old config since it was unsubscribed
	currentOpts := reloadableLogger.GetOptions()
	if currentOpts.Level != "info" {
		t.Errorf("Expected log level to remain 'info' after unsubscribe, got '%s'", currentOpts.Level)
	}

	watcher.Stop()
}
