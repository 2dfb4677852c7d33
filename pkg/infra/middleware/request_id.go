package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/codequery/pkg/infra/middleware/requestutil"
	mwopts "github.com/kart-io/codequery/pkg/options/middleware"
)

// HeaderXRequestID is the header name for request ID.
const HeaderXRequestID = requestutil.HeaderXRequestID

// GetRequestID returns the request ID from the context.
func GetRequestID(ctx context.Context) string {
	return requestutil.GetRequestID(ctx)
}

// RequestID returns a middleware that ensures every request has a request ID
// using default options.
func RequestID() gin.HandlerFunc {
	return RequestIDWithOptions(*mwopts.NewRequestIDOptions(), nil)
}

// RequestIDWithOptions 返回一个使用纯配置选项和运行时依赖注入的 RequestID 中间件。
//
// 参数：
//   - opts: 纯配置选项（可 JSON 序列化）
//   - gen: 可选的自定义 ID 生成函数。为 nil 时根据 opts.GeneratorType 创建。
//
// 中间件复用入站请求头中已有的请求 ID，否则生成新 ID。
// ID 同时写入响应头和请求上下文。
func RequestIDWithOptions(opts mwopts.RequestIDOptions, gen func() string) gin.HandlerFunc {
	header := opts.Header
	if header == "" {
		header = requestutil.HeaderXRequestID
	}

	if gen == nil {
		generator := requestutil.NewGenerator(opts.GeneratorType)
		gen = generator.Generate
	}

	return func(c *gin.Context) {
		requestID := c.Request.Header.Get(header)
		if requestID == "" {
			requestID = gen()
		}

		c.Writer.Header().Set(header, requestID)
		ctx := requestutil.WithRequestID(c.Request.Context(), requestID)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}
