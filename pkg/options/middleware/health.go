package middleware

import (
	"errors"

	"github.com/kart-io/codequery/pkg/options"
	"github.com/spf13/pflag"
)

func init() {
	Register(MiddlewareHealth, func() MiddlewareConfig {
		return NewHealthOptions()
	})
}

// 确保 HealthOptions 实现 MiddlewareConfig 接口。
var _ MiddlewareConfig = (*HealthOptions)(nil)

// HealthOptions 定义健康检查端点的配置选项（纯配置，可 JSON 序列化）。
// 自定义检查函数等运行时依赖通过 RegisterHealthRoutesWithOptions 的参数注入。
type HealthOptions struct {
	Path          string `json:"path" mapstructure:"path"`
	LivenessPath  string `json:"liveness-path" mapstructure:"liveness-path"`
	ReadinessPath string `json:"readiness-path" mapstructure:"readiness-path"`
}

// NewHealthOptions creates default health check options.
func NewHealthOptions() *HealthOptions {
	return &HealthOptions{
		Path:          "/health",
		LivenessPath:  "/live",
		ReadinessPath: "/ready",
	}
}

// AddFlags adds flags for health options to the specified FlagSet.
func (o *HealthOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	prefix := options.Join(prefixes...) + "middleware.health."

	fs.StringVar(&o.Path, prefix+"path", o.Path, "Health check endpoint path.")
	fs.StringVar(&o.LivenessPath, prefix+"liveness-path", o.LivenessPath, "Liveness probe path.")
	fs.StringVar(&o.ReadinessPath, prefix+"readiness-path", o.ReadinessPath, "Readiness probe path.")
}

// Validate validates the health options.
func (o *HealthOptions) Validate() []error {
	if o == nil {
		return nil
	}
	if o.Path == "" && o.LivenessPath == "" && o.ReadinessPath == "" {
		return []error{errors.New("at least one health check path is required")}
	}
	return nil
}

// Complete completes the health options with defaults.
func (o *HealthOptions) Complete() error {
	return nil
}
