package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/kart-io/logger"

	apierrors "github.com/kart-io/codequery/pkg/errors"

	// Register built-in middleware factories and route registrars.
	_ "github.com/kart-io/codequery/pkg/infra/middleware"

	"github.com/kart-io/codequery/pkg/infra/server/transport"
	mwopts "github.com/kart-io/codequery/pkg/options/middleware"
	options "github.com/kart-io/codequery/pkg/options/server/http"
	"github.com/kart-io/codequery/pkg/utils/response"
)

// Re-export types from options package for convenience
type (
	// Options contains HTTP server configuration.
	Options = options.Options
	// Option is a function that configures Options.
	Option = options.Option
)

// Re-export option functions
var (
	NewOptions       = options.NewOptions
	WithAddr         = options.WithAddr
	WithReadTimeout  = options.WithReadTimeout
	WithWriteTimeout = options.WithWriteTimeout
	WithIdleTimeout  = options.WithIdleTimeout
)

// Server is the HTTP server implementation built on Gin.
type Server struct {
	opts   *options.Options
	mwOpts *mwopts.Options
	engine *gin.Engine
	server *http.Server
}

// ginValidator wraps transport.Validator for gin binding.
type ginValidator struct {
	validator transport.Validator
}

func (v *ginValidator) ValidateStruct(obj interface{}) error {
	return v.validator.Validate(obj)
}

func (v *ginValidator) Engine() interface{} {
	return nil
}

// NewServer creates a new HTTP server with the given options.
func NewServer(serverOpts *options.Options, middlewareOpts *mwopts.Options) *Server {
	if serverOpts == nil {
		serverOpts = options.NewOptions()
	}
	if middlewareOpts == nil {
		middlewareOpts = mwopts.NewOptions()
	}

	gin.SetMode(gin.ReleaseMode)

	// 创建 Gin 引擎（不使用默认中间件）
	engine := gin.New()

	s := &Server{
		opts:   serverOpts,
		mwOpts: middlewareOpts,
		engine: engine,
	}

	// 在创建 Server 时就应用中间件
	// 这样所有后续创建的路由组都会继承这些中间件
	s.applyMiddleware(middlewareOpts)

	return s
}

// Name returns the server name.
func (s *Server) Name() string {
	return "http[gin]"
}

// Engine returns the underlying gin.Engine.
// Route registration happens directly on the engine.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// SetValidator sets the global validator for the server.
func (s *Server) SetValidator(v transport.Validator) {
	binding.Validator = &ginValidator{validator: v}
}

// Start starts the HTTP server.
func (s *Server) Start(ctx context.Context) error {
	// Set default 404 handler with JSON response
	s.engine.NoRoute(func(c *gin.Context) {
		response.Fail(c, apierrors.ErrRouteNotFound)
	})

	// 注意：中间件已在 NewServer 时应用，这里不再重复应用
	// 这是因为 Gin 的 RouterGroup 在创建子组时会复制当前的 handlers
	// 如果中间件在路由注册之后才应用，则不会被子组继承

	// 注册独立路由端点（health、metrics、pprof、version）
	if err := s.registerRoutes(); err != nil {
		return err
	}

	s.server = &http.Server{
		Addr:         s.opts.Addr,
		Handler:      s.engine,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
		IdleTimeout:  s.opts.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}

// applyMiddleware applies configured middleware to the engine in order.
// 中间件通过注册表驱动，按 GetMiddlewareOrder 的顺序应用。
func (s *Server) applyMiddleware(opts *mwopts.Options) {
	// Ensure all sub-options are initialized with defaults
	_ = opts.Complete()

	for _, name := range opts.GetMiddlewareOrder() {
		if !opts.IsEnabled(name) {
			continue
		}

		factory, ok := mwopts.GetFactory(name)
		if !ok {
			continue
		}

		// 需要运行时依赖的中间件（如 rate limit 的 limiter、auth 的
		// authenticator）不能从纯配置创建，由调用方手动注入。
		if factory.NeedsRuntime() {
			continue
		}

		handler, err := factory.Create(opts.GetOrCreate(name))
		if err != nil {
			logger.Warnw("failed to create middleware, skipping",
				"middleware", name,
				"error", err.Error(),
			)
			continue
		}
		s.engine.Use(handler)
	}
}

// registerRoutes registers standalone endpoints (health, metrics, pprof, version)
// for every enabled middleware that carries a route registrar.
func (s *Server) registerRoutes() error {
	for _, name := range []string{
		mwopts.MiddlewareHealth,
		mwopts.MiddlewareMetrics,
		mwopts.MiddlewarePprof,
		mwopts.MiddlewareVersion,
	} {
		if !s.mwOpts.IsEnabled(name) {
			continue
		}

		registrar, ok := mwopts.GetRouteRegistrar(name)
		if !ok {
			continue
		}

		if err := registrar.RegisterRoutes(s.engine, s.mwOpts.GetOrCreate(name)); err != nil {
			return fmt.Errorf("failed to register %s routes: %w", name, err)
		}
	}
	return nil
}

// Stop stops the HTTP server gracefully.
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Ensure Server implements the required interfaces.
var _ transport.Transport = (*Server)(nil)
