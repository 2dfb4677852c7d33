package logger

// EnhancedLoggerConfig defines configuration for the enhanced HTTP logging middleware.
type EnhancedLoggerConfig struct {
	// SkipPaths lists URL paths that should not be logged.
	SkipPaths []string `json:"skip-paths" mapstructure:"skip-paths"`
	// SkipHealthChecks skips logging for common health check endpoints.
	SkipHealthChecks bool `json:"skip-health-checks" mapstructure:"skip-health-checks"`
	// LogRequestBody enables capturing the request body in logs.
	LogRequestBody bool `json:"log-request-body" mapstructure:"log-request-body"`
	// LogResponseBody enables capturing the response body in logs.
	LogResponseBody bool `json:"log-response-body" mapstructure:"log-response-body"`
	// MaxBodyLogSize is the maximum number of bytes of a body to log before truncation.
	MaxBodyLogSize int `json:"max-body-log-size" mapstructure:"max-body-log-size"`
	// CaptureHeaders lists request headers to include in logs.
	CaptureHeaders []string `json:"capture-headers" mapstructure:"capture-headers"`
	// SensitiveHeaders lists patterns whose presence causes captured data to be redacted.
	SensitiveHeaders []string `json:"sensitive-headers" mapstructure:"sensitive-headers"`
}

// NewEnhancedLoggerConfig creates an EnhancedLoggerConfig with default values.
func NewEnhancedLoggerConfig() *EnhancedLoggerConfig {
	return &EnhancedLoggerConfig{
		SkipPaths:        []string{},
		SkipHealthChecks: true,
		LogRequestBody:   false,
		LogResponseBody:  false,
		MaxBodyLogSize:   4096,
		CaptureHeaders:   []string{},
		SensitiveHeaders: []string{"Authorization", "Cookie", "Set-Cookie", "X-Api-Key"},
	}
}
