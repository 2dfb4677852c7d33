package middleware

import (
	"errors"
	"time"

	"github.com/kart-io/codequery/pkg/options"
	"github.com/spf13/pflag"
)

func init() {
	Register(MiddlewareTimeout, func() MiddlewareConfig {
		return NewTimeoutOptions()
	})
}

// 确保 TimeoutOptions 实现 MiddlewareConfig 接口。
var _ MiddlewareConfig = (*TimeoutOptions)(nil)

// TimeoutOptions 定义超时中间件的配置选项（纯配置，可 JSON 序列化）。
type TimeoutOptions struct {
	// Timeout 是请求处理的最长时间。
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`

	// SkipPaths 是跳过超时控制的路径列表。
	SkipPaths []string `json:"skip-paths" mapstructure:"skip-paths"`
}

// NewTimeoutOptions creates default timeout middleware options.
func NewTimeoutOptions() *TimeoutOptions {
	return &TimeoutOptions{
		Timeout:   30 * time.Second,
		SkipPaths: []string{},
	}
}

// AddFlags adds flags for timeout options to the specified FlagSet.
func (o *TimeoutOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	prefix := options.Join(prefixes...) + "middleware.timeout."

	fs.DurationVar(&o.Timeout, prefix+"duration", o.Timeout, "Request processing timeout.")
	fs.StringSliceVar(&o.SkipPaths, prefix+"skip-paths", o.SkipPaths, "Paths to skip timeout control.")
}

// Validate validates the timeout options.
func (o *TimeoutOptions) Validate() []error {
	if o == nil {
		return nil
	}
	if o.Timeout < 0 {
		return []error{errors.New("timeout must not be negative")}
	}
	return nil
}

// Complete completes the timeout options with defaults.
func (o *TimeoutOptions) Complete() error {
	if o.Timeout == 0 {
		o.Timeout = 30 * time.Second
	}
	return nil
}
