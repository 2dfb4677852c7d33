package middleware

import (
	"github.com/kart-io/codequery/pkg/options"
	"github.com/spf13/pflag"
)

func init() {
	Register(MiddlewareRecovery, func() MiddlewareConfig {
		return NewRecoveryOptions()
	})
}

// 确保 RecoveryOptions 实现 MiddlewareConfig 接口。
var _ MiddlewareConfig = (*RecoveryOptions)(nil)

// RecoveryOptions 定义 recovery 中间件的配置选项（纯配置，可 JSON 序列化）。
// panic 处理器等运行时依赖通过 RecoveryWithOptions 的函数参数注入。
type RecoveryOptions struct {
	// EnableStackTrace 控制是否在错误响应中包含堆栈跟踪。
	// 生产环境下会被强制关闭，堆栈仅写入日志。
	EnableStackTrace bool `json:"enable-stack-trace" mapstructure:"enable-stack-trace"`
}

// NewRecoveryOptions creates default recovery middleware options.
func NewRecoveryOptions() *RecoveryOptions {
	return &RecoveryOptions{
		EnableStackTrace: false,
	}
}

// AddFlags adds flags for recovery options to the specified FlagSet.
func (o *RecoveryOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.BoolVar(&o.EnableStackTrace, options.Join(prefixes...)+"middleware.recovery.enable-stack-trace", o.EnableStackTrace, "Enable stack trace in error responses.")
}

// Validate validates the recovery options.
func (o *RecoveryOptions) Validate() []error {
	return nil
}

// Complete completes the recovery options with defaults.
func (o *RecoveryOptions) Complete() error {
	return nil
}
