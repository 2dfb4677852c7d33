package middleware

import (
	"fmt"
	"sync"
	"time"

	"github.com/kart-io/logger"
	"github.com/spf13/viper"

	configpkg "github.com/kart-io/codequery/pkg/infra/config"
	options "github.com/kart-io/codequery/pkg/options/middleware"
)

// ReloadableMiddleware wraps middleware options with hot reload capability.
// It maintains thread-safe access to middleware configuration and can apply
// configuration changes at runtime without service restart.
//
// Supported hot-reloadable configurations:
//   - CORS settings (origins, methods, headers, credentials, max age)
//   - Timeout duration and skip paths
//   - Request ID header
//   - Logger skip paths
//   - Recovery stack trace settings
//
// Note: Some middleware changes cannot take effect without middleware chain
// reconstruction (e.g. enabling a middleware that was absent at startup).
// Components that need to react to such changes can register callbacks.
type ReloadableMiddleware struct {
	opts *Options
	mu   sync.RWMutex
	// Callbacks for components that need notification of config changes
	onTimeoutChange func(time.Duration, []string) error
	onCORSChange    func(*CORSOptions) error
}

// NewReloadableMiddleware creates a new reloadable middleware manager.
func NewReloadableMiddleware(opts *Options) *ReloadableMiddleware {
	return &ReloadableMiddleware{
		opts: opts,
	}
}

// OnConfigChange implements the config.Reloadable interface.
// It validates and applies new middleware configuration atomically.
func (rm *ReloadableMiddleware) OnConfigChange(newConfig interface{}) error {
	newOpts, ok := newConfig.(*Options)
	if !ok {
		return fmt.Errorf("invalid config type: expected *middleware.Options, got %T", newConfig)
	}

	// Validate new configuration
	if errs := newOpts.Validate(); len(errs) > 0 {
		return fmt.Errorf("invalid middleware configuration: %v", errs[0])
	}

	// Acquire write lock
	rm.mu.Lock()
	defer rm.mu.Unlock()

	// Track what changed for logging
	changes := []string{}

	// Notify timeout changes before swapping configs
	if rm.opts.IsEnabled(MiddlewareTimeout) && newOpts.IsEnabled(MiddlewareTimeout) {
		cur, curOK := options.GetConfigTyped[*TimeoutOptions](rm.opts, MiddlewareTimeout)
		next, nextOK := options.GetConfigTyped[*TimeoutOptions](newOpts, MiddlewareTimeout)
		if curOK && nextOK {
			if cur.Timeout != next.Timeout {
				changes = append(changes, fmt.Sprintf("timeout: %v -> %v", cur.Timeout, next.Timeout))
			} else if !stringSlicesEqual(cur.SkipPaths, next.SkipPaths) {
				changes = append(changes, "timeout.skip-paths")
			}
			if (cur.Timeout != next.Timeout || !stringSlicesEqual(cur.SkipPaths, next.SkipPaths)) && rm.onTimeoutChange != nil {
				if err := rm.onTimeoutChange(next.Timeout, next.SkipPaths); err != nil {
					return fmt.Errorf("failed to apply timeout change: %w", err)
				}
			}
		}
	}

	// Notify CORS changes before swapping configs
	if rm.opts.IsEnabled(MiddlewareCORS) && newOpts.IsEnabled(MiddlewareCORS) {
		cur, curOK := options.GetConfigTyped[*CORSOptions](rm.opts, MiddlewareCORS)
		next, nextOK := options.GetConfigTyped[*CORSOptions](newOpts, MiddlewareCORS)
		if curOK && nextOK {
			corsChanged := false

			if !stringSlicesEqual(cur.AllowOrigins, next.AllowOrigins) {
				changes = append(changes, "cors.allow-origins")
				corsChanged = true
			}
			if !stringSlicesEqual(cur.AllowMethods, next.AllowMethods) {
				changes = append(changes, "cors.allow-methods")
				corsChanged = true
			}
			if !stringSlicesEqual(cur.AllowHeaders, next.AllowHeaders) {
				changes = append(changes, "cors.allow-headers")
				corsChanged = true
			}
			if cur.AllowCredentials != next.AllowCredentials {
				changes = append(changes, "cors.allow-credentials")
				corsChanged = true
			}
			if cur.MaxAge != next.MaxAge {
				changes = append(changes, "cors.max-age")
				corsChanged = true
			}

			if corsChanged && rm.onCORSChange != nil {
				if err := rm.onCORSChange(next); err != nil {
					return fmt.Errorf("failed to apply CORS change: %w", err)
				}
			}
		}
	}

	// Track request-id header changes for logging
	if curID, ok := options.GetConfigTyped[*RequestIDOptions](rm.opts, MiddlewareRequestID); ok {
		if nextID, ok := options.GetConfigTyped[*RequestIDOptions](newOpts, MiddlewareRequestID); ok {
			if curID.Header != nextID.Header {
				changes = append(changes, fmt.Sprintf("request-id.header: %s -> %s", curID.Header, nextID.Header))
			}
		}
	}

	// Track recovery stack trace changes for logging
	if curRec, ok := options.GetConfigTyped[*RecoveryOptions](rm.opts, MiddlewareRecovery); ok {
		if nextRec, ok := options.GetConfigTyped[*RecoveryOptions](newOpts, MiddlewareRecovery); ok {
			if curRec.EnableStackTrace != nextRec.EnableStackTrace {
				changes = append(changes, fmt.Sprintf("recovery.enable-stack-trace: %v -> %v",
					curRec.EnableStackTrace, nextRec.EnableStackTrace))
			}
		}
	}

	// Apply the new config set: replace everything present in the new options
	newNames := make(map[string]bool)
	for _, name := range newOpts.ListConfigs() {
		newNames[name] = true
		rm.opts.SetConfig(name, newOpts.GetConfig(name))
	}

	// Drop configs absent from the new set (middleware disabled by config)
	for _, name := range rm.opts.ListConfigs() {
		if !newNames[name] {
			changes = append(changes, "disabled: "+name)
			rm.opts.DeleteConfig(name)
		}
	}

	// Apply middleware order changes
	if !stringSlicesEqual(rm.opts.Middleware, newOpts.Middleware) {
		changes = append(changes, "middleware order")
		rm.opts.Middleware = append([]string(nil), newOpts.Middleware...)
	}

	if len(changes) > 0 {
		logger.Infof("Middleware configuration reloaded: %v", changes)
	} else {
		logger.Debug("Middleware configuration unchanged")
	}

	return nil
}

// GetOptions returns a copy of the current middleware options.
// The copy holds the same config instances; treat them as read-only.
func (rm *ReloadableMiddleware) GetOptions() *Options {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	opts := &Options{
		Middleware: append([]string(nil), rm.opts.Middleware...),
	}
	for _, name := range rm.opts.ListConfigs() {
		opts.SetConfig(name, rm.opts.GetConfig(name))
	}
	return opts
}

// SetTimeoutChangeCallback registers a callback to be invoked when timeout configuration changes.
// This allows the actual middleware implementation to update its behavior.
func (rm *ReloadableMiddleware) SetTimeoutChangeCallback(fn func(time.Duration, []string) error) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.onTimeoutChange = fn
}

// SetCORSChangeCallback registers a callback to be invoked when CORS configuration changes.
// This allows the actual middleware implementation to update its behavior.
func (rm *ReloadableMiddleware) SetCORSChangeCallback(fn func(*CORSOptions) error) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.onCORSChange = fn
}

// RegisterWithWatcher registers this reloadable middleware with a configuration watcher.
// The handlerID should be unique across all registered handlers.
//
// The dynamic middleware config map is populated through Options.LoadFromViper,
// so the handler parses the config section itself instead of relying on
// viper struct unmarshalling.
func (rm *ReloadableMiddleware) RegisterWithWatcher(watcher *configpkg.Watcher, handlerID, configKey string) {
	watcher.Subscribe(handlerID, func(v *viper.Viper) error {
		section := v
		if configKey != "" {
			if sub := v.Sub(configKey); sub != nil {
				section = sub
			}
		}

		newOpts := NewOptions()
		if err := newOpts.LoadFromViper(section); err != nil {
			return fmt.Errorf("failed to load middleware config from key '%s': %w", configKey, err)
		}

		if err := rm.OnConfigChange(newOpts); err != nil {
			return fmt.Errorf("component rejected config change: %w", err)
		}
		return nil
	})
}

// stringSlicesEqual compares two string slices for equality.
func stringSlicesEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
