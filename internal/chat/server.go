// Package chatsvc provides the chat service server implementation.
package chatsvc

import (
	"context"
	"fmt"
	"time"

	"github.com/kart-io/logger"
	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/viper"

	"github.com/kart-io/codequery/internal/chat/biz"
	"github.com/kart-io/codequery/internal/chat/handler"
	"github.com/kart-io/codequery/internal/chat/router"
	"github.com/kart-io/codequery/internal/chat/store"
	"github.com/kart-io/codequery/pkg/component/milvus"
	redisclient "github.com/kart-io/codequery/pkg/component/redis"
	"github.com/kart-io/codequery/pkg/infra/app"
	configpkg "github.com/kart-io/codequery/pkg/infra/config"
	infralogger "github.com/kart-io/codequery/pkg/infra/logger"
	"github.com/kart-io/codequery/pkg/infra/middleware"
	"github.com/kart-io/codequery/pkg/infra/server"
	"github.com/kart-io/codequery/pkg/llm"
	llmresilience "github.com/kart-io/codequery/pkg/llm/resilience"

	// Register LLM providers.
	_ "github.com/kart-io/codequery/pkg/llm/deepseek"
	_ "github.com/kart-io/codequery/pkg/llm/ollama"
	_ "github.com/kart-io/codequery/pkg/llm/openai"

	chatopts "github.com/kart-io/codequery/pkg/options/chat"
	llmopts "github.com/kart-io/codequery/pkg/options/llm"
	logopts "github.com/kart-io/codequery/pkg/options/logger"
	middlewareopts "github.com/kart-io/codequery/pkg/options/middleware"
	milvusopts "github.com/kart-io/codequery/pkg/options/milvus"
	redisopts "github.com/kart-io/codequery/pkg/options/redis"
	httpopts "github.com/kart-io/codequery/pkg/options/server/http"
	"github.com/kart-io/codequery/pkg/pool"
)

// Name is the name of the application.
const Name = "codequery-chat"

// Config contains application-related configurations.
type Config struct {
	HTTPOptions      *httpopts.Options
	LogOptions       *logopts.Options
	MilvusOptions    *milvusopts.Options
	RedisOptions     *redisopts.Options
	EmbeddingOptions *llmopts.ProviderOptions
	ChatOptions      *llmopts.ProviderOptions
	PipelineOptions  *chatopts.Options
	RecoveryOptions  *middlewareopts.RecoveryOptions
	RequestIDOptions *middlewareopts.RequestIDOptions
	LoggerOptions    *middlewareopts.LoggerOptions
	CORSOptions      *middlewareopts.CORSOptions
	HealthOptions    *middlewareopts.HealthOptions
	MetricsOptions   *middlewareopts.MetricsOptions
	PprofOptions     *middlewareopts.PprofOptions
	ShutdownTimeout  time.Duration
}

// Server represents the chat server.
type Server struct {
	srv         *server.Manager
	watcher     *configpkg.Watcher
	milvusClose func()
	redisClose  func()
	poolClose   func()
}

// NewServer initializes and returns a new Server instance.
func (cfg *Config) NewServer(ctx context.Context) (*Server, error) {
	printBanner(cfg)

	cfg.LogOptions.AddInitialField("service.name", Name)
	cfg.LogOptions.AddInitialField("service.version", app.GetVersion())
	if err := cfg.LogOptions.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.Info("Starting chat service...")

	// Vector store.
	milvusClient, err := milvus.New(cfg.MilvusOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize milvus: %w", err)
	}
	vectorStore := store.NewMilvusStore(milvusClient)
	logger.Info("Vector store initialized")

	// The base collection doubles as a connectivity and schema check.
	if err := vectorStore.EnsureCollection(ctx, &store.CollectionConfig{
		Name:        cfg.PipelineOptions.Collection,
		Description: "Code chunks for repository Q&A",
		Dimension:   cfg.PipelineOptions.EmbeddingDim,
	}); err != nil {
		return nil, fmt.Errorf("failed to ensure collection: %w", err)
	}

	// Distributed cache tier, optional. A missing Redis degrades to the
	// in-process tiers instead of failing startup.
	var redisCli *goredis.Client
	var redisClose func()
	if cfg.PipelineOptions.Cache.RedisEnabled {
		client, err := redisclient.NewWithContext(ctx, cfg.RedisOptions)
		if err != nil {
			logger.Warnw("failed to connect to redis, distributed cache disabled", "error", err.Error())
		} else {
			redisCli = client.Client()
			redisClose = func() { _ = client.Close() }
			logger.Infow("Redis cache initialized",
				"host", cfg.RedisOptions.Host,
				"port", cfg.RedisOptions.Port,
			)
		}
	}

	// Background pool for best-effort distributed cache writes.
	workers, err := pool.New("cache-writes", pool.BackgroundConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create worker pool: %w", err)
	}

	pipelineCache := biz.NewPipelineCache(cfg.PipelineOptions.Cache, redisCli, workers)

	// LLM providers.
	rawEmbed, err := llm.NewEmbeddingProvider(cfg.EmbeddingOptions.Provider, cfg.EmbeddingOptions.ToConfigMap())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedding provider: %w", err)
	}
	var embedProvider llm.EmbeddingProvider = llmresilience.NewResilientEmbeddingProvider(rawEmbed, nil, nil)
	logger.Infow("Embedding provider initialized",
		"provider", cfg.EmbeddingOptions.Provider,
		"model", cfg.EmbeddingOptions.Model,
	)

	rawChat, err := llm.NewChatProvider(cfg.ChatOptions.Provider, cfg.ChatOptions.ToConfigMap())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize chat provider: %w", err)
	}
	var chatProvider llm.ChatProvider = llmresilience.NewResilientChatProvider(rawChat, nil, nil)
	logger.Infow("Chat provider initialized",
		"provider", cfg.ChatOptions.Provider,
		"model", cfg.ChatOptions.Model,
	)

	// Pipeline composition.
	opts := cfg.PipelineOptions
	classifier := biz.NewIntentClassifier(chatProvider, &biz.IntentClassifierConfig{
		TieBreakEnabled: opts.TieBreakEnabled,
	})
	expander := biz.NewQueryExpander(opts.ExpansionLimit)
	reranker := biz.NewReranker(chatProvider)
	retriever := biz.NewRetriever(vectorStore, embedProvider, classifier, expander, reranker, pipelineCache, &biz.RetrieverConfig{
		Collection:        opts.Collection,
		EmbeddingModel:    cfg.EmbeddingOptions.Model,
		CandidateLimit:    opts.CandidateLimit,
		RerankEnabled:     opts.RerankEnabled,
		RerankCandidates:  opts.RerankCandidates,
		RerankThreshold:   opts.RerankThreshold,
		DocsFirstOverview: opts.DocsFirstOverview,
	})
	assembler := biz.NewContextAssembler(opts.ContextMaxChars, opts.ChunkContentMaxChars)
	generator := biz.NewGenerator(chatProvider, assembler, pipelineCache, &biz.GeneratorConfig{
		ChatModel:         cfg.ChatOptions.Model,
		HistoryCharBudget: opts.HistoryTokenBudget * 4,
	})
	admission := biz.NewAdmissionController(opts.Admission)
	chatService := biz.NewChatService(admission, retriever, generator, pipelineCache, vectorStore, embedProvider, chatProvider, opts)
	logger.Infow("Chat pipeline initialized",
		"collection", opts.Collection,
		"rerank.enabled", opts.RerankEnabled,
		"cache.redis", redisCli != nil,
	)

	chatHandler := handler.NewChatHandler(chatService)

	mwOpts := cfg.GetMiddlewareOptions()
	serverManager := server.NewManager(
		server.WithMode(server.ModeHTTPOnly),
		server.WithHTTPOptions(cfg.HTTPOptions),
		server.WithMiddleware(mwOpts),
		server.WithShutdownTimeout(cfg.ShutdownTimeout),
	)
	if err := router.Register(serverManager, chatHandler); err != nil {
		return nil, fmt.Errorf("failed to register routes: %w", err)
	}

	// Configuration hot reload. Logger settings and the middleware config set
	// follow the config file while the server runs. Requires a config file to
	// have been loaded into the global viper.
	var watcher *configpkg.Watcher
	if viper.ConfigFileUsed() != "" {
		watcher = configpkg.NewWatcher(viper.GetViper())
		infralogger.NewReloadableLogger(cfg.LogOptions).RegisterWithWatcher(watcher, "logger", "log")
		middleware.NewReloadableMiddleware(mwOpts).RegisterWithWatcher(watcher, "middleware", "middleware")
		watcher.Start()
	}

	logger.Info("Chat service is ready")
	return &Server{
		srv:         serverManager,
		watcher:     watcher,
		milvusClose: func() { _ = milvusClient.Close(context.Background()) },
		redisClose:  redisClose,
		poolClose:   workers.Release,
	}, nil
}

// Run starts the server and blocks until shutdown.
func (s *Server) Run(_ context.Context) error {
	defer func() {
		if s.watcher != nil {
			s.watcher.Stop()
		}
		if s.poolClose != nil {
			s.poolClose()
		}
		if s.redisClose != nil {
			s.redisClose()
		}
		if s.milvusClose != nil {
			s.milvusClose()
		}
	}()
	return s.srv.Run()
}

// GetMiddlewareOptions builds middleware options from the configured parts.
func (cfg *Config) GetMiddlewareOptions() *middlewareopts.Options {
	opts := middlewareopts.NewOptions()

	if cfg.RecoveryOptions != nil {
		opts.SetConfig(middlewareopts.MiddlewareRecovery, cfg.RecoveryOptions)
	}
	if cfg.RequestIDOptions != nil {
		opts.SetConfig(middlewareopts.MiddlewareRequestID, cfg.RequestIDOptions)
	}
	if cfg.LoggerOptions != nil {
		opts.SetConfig(middlewareopts.MiddlewareLogger, cfg.LoggerOptions)
	}
	if cfg.CORSOptions != nil {
		opts.SetConfig(middlewareopts.MiddlewareCORS, cfg.CORSOptions)
	}
	if cfg.HealthOptions != nil {
		opts.SetConfig(middlewareopts.MiddlewareHealth, cfg.HealthOptions)
	}
	if cfg.MetricsOptions != nil {
		opts.SetConfig(middlewareopts.MiddlewareMetrics, cfg.MetricsOptions)
	}
	if cfg.PprofOptions != nil {
		opts.SetConfig(middlewareopts.MiddlewarePprof, cfg.PprofOptions)
	}

	return opts
}

func printBanner(cfg *Config) {
	fmt.Printf("Starting %s...\n", Name)
	fmt.Printf("  Embedding: %s (%s)\n", cfg.EmbeddingOptions.Provider, cfg.EmbeddingOptions.Model)
	fmt.Printf("  Chat: %s (%s)\n", cfg.ChatOptions.Provider, cfg.ChatOptions.Model)
}
