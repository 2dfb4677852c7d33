package middleware

import "github.com/gin-gonic/gin"

// Factory 根据配置创建 Gin 中间件处理函数。
// 各中间件实现包（pkg/infra/middleware）在 init() 中通过 RegisterFactory 注册。
type Factory interface {
	// Name 返回中间件名称（与配置注册名一致）。
	Name() string

	// NeedsRuntime 表示该中间件是否需要运行时依赖（如 Redis 客户端）。
	// 需要运行时依赖的中间件不能仅凭配置自动创建。
	NeedsRuntime() bool

	// Create 根据配置创建中间件处理函数。
	Create(cfg MiddlewareConfig) (gin.HandlerFunc, error)
}

// RouteRegistrar 为需要独立路由的中间件（health、metrics、pprof、version）
// 注册路由。
type RouteRegistrar interface {
	RegisterRoutes(engine *gin.Engine, cfg MiddlewareConfig) error
}
