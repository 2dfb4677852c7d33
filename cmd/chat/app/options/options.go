// Package options contains flags and options for initializing the chat server.
package options

import (
	"errors"
	"fmt"
	"time"

	chatsvc "github.com/kart-io/codequery/internal/chat"
	appopts "github.com/kart-io/codequery/pkg/options/app"
	chatopts "github.com/kart-io/codequery/pkg/options/chat"
	llmopts "github.com/kart-io/codequery/pkg/options/llm"
	logopts "github.com/kart-io/codequery/pkg/options/logger"
	middlewareopts "github.com/kart-io/codequery/pkg/options/middleware"
	milvusopts "github.com/kart-io/codequery/pkg/options/milvus"
	redisopts "github.com/kart-io/codequery/pkg/options/redis"
	httpopts "github.com/kart-io/codequery/pkg/options/server/http"
)

// ServerOptions contains the configuration options for the server.
type ServerOptions struct {
	// HTTPOptions contains HTTP server configuration.
	HTTPOptions *httpopts.Options `json:"http" mapstructure:"http"`

	// LogOptions contains logger configuration.
	LogOptions *logopts.Options `json:"log" mapstructure:"log"`

	// MilvusOptions contains Milvus database configuration.
	MilvusOptions *milvusopts.Options `json:"milvus" mapstructure:"milvus"`

	// RedisOptions contains Redis configuration for the distributed cache tier.
	RedisOptions *redisopts.Options `json:"redis" mapstructure:"redis"`

	// EmbeddingOptions contains embedding provider configuration.
	EmbeddingOptions *llmopts.ProviderOptions `json:"embedding" mapstructure:"embedding"`

	// ChatOptions contains chat provider configuration.
	ChatOptions *llmopts.ProviderOptions `json:"chat" mapstructure:"chat"`

	// PipelineOptions contains retrieval pipeline configuration.
	PipelineOptions *chatopts.Options `json:"pipeline" mapstructure:"pipeline"`

	// RecoveryOptions contains recovery middleware configuration.
	RecoveryOptions *middlewareopts.RecoveryOptions `json:"recovery" mapstructure:"recovery"`

	// RequestIDOptions contains request ID middleware configuration.
	RequestIDOptions *middlewareopts.RequestIDOptions `json:"request-id" mapstructure:"request-id"`

	// LoggerOptions contains logger middleware configuration.
	LoggerOptions *middlewareopts.LoggerOptions `json:"logger" mapstructure:"logger"`

	// CORSOptions contains CORS middleware configuration.
	CORSOptions *middlewareopts.CORSOptions `json:"cors" mapstructure:"cors"`

	// HealthOptions contains health check configuration.
	HealthOptions *middlewareopts.HealthOptions `json:"health" mapstructure:"health"`

	// MetricsOptions contains metrics configuration.
	MetricsOptions *middlewareopts.MetricsOptions `json:"metrics" mapstructure:"metrics"`

	// PprofOptions contains pprof configuration.
	PprofOptions *middlewareopts.PprofOptions `json:"pprof" mapstructure:"pprof"`

	// ShutdownTimeout is the timeout for graceful shutdown.
	ShutdownTimeout time.Duration `json:"shutdown-timeout" mapstructure:"shutdown-timeout"`
}

// NewServerOptions creates a ServerOptions instance with default values.
func NewServerOptions() *ServerOptions {
	httpOpts := httpopts.NewOptions()
	httpOpts.Addr = ":8084"

	return &ServerOptions{
		HTTPOptions:      httpOpts,
		LogOptions:       logopts.NewOptions(),
		MilvusOptions:    milvusopts.NewOptions(),
		RedisOptions:     redisopts.NewOptions(),
		EmbeddingOptions: llmopts.NewEmbeddingOptions(),
		ChatOptions:      llmopts.NewChatOptions(),
		PipelineOptions:  chatopts.NewOptions(),
		RecoveryOptions:  middlewareopts.NewRecoveryOptions(),
		RequestIDOptions: middlewareopts.NewRequestIDOptions(),
		LoggerOptions:    middlewareopts.NewLoggerOptions(),
		HealthOptions:    middlewareopts.NewHealthOptions(),
		MetricsOptions:   middlewareopts.NewMetricsOptions(),
		ShutdownTimeout:  30 * time.Second,
	}
}

// Flags returns flags for a specific server by section name.
func (o *ServerOptions) Flags() (fss appopts.NamedFlagSets) {
	o.HTTPOptions.AddFlags(fss.FlagSet("http"))
	o.LogOptions.AddFlags(fss.FlagSet("log"))
	o.MilvusOptions.AddFlags(fss.FlagSet("milvus"))
	o.RedisOptions.AddFlags(fss.FlagSet("redis"))
	o.EmbeddingOptions.AddFlags(fss.FlagSet("embedding"), "embedding.")
	o.ChatOptions.AddFlags(fss.FlagSet("chat"), "chat.")
	o.PipelineOptions.AddFlags(fss.FlagSet("pipeline"))

	// misc flags
	fs := fss.FlagSet("misc")
	fs.DurationVar(&o.ShutdownTimeout, "shutdown-timeout", o.ShutdownTimeout, "Graceful shutdown timeout")

	return fss
}

// Complete completes all the required options.
func (o *ServerOptions) Complete() error {
	if err := o.HTTPOptions.Complete(); err != nil {
		return err
	}
	if err := o.LogOptions.Complete(); err != nil {
		return fmt.Errorf("log: %w", err)
	}
	if err := o.EmbeddingOptions.Complete(); err != nil {
		return fmt.Errorf("embedding: %w", err)
	}
	if err := o.ChatOptions.Complete(); err != nil {
		return fmt.Errorf("chat: %w", err)
	}
	if err := o.PipelineOptions.Complete(); err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}
	return nil
}

// Validate checks whether the options in ServerOptions are valid.
func (o *ServerOptions) Validate() error {
	var errs []error

	errs = append(errs, o.HTTPOptions.Validate()...)
	errs = append(errs, o.MilvusOptions.Validate()...)
	errs = append(errs, o.EmbeddingOptions.Validate()...)
	errs = append(errs, o.ChatOptions.Validate()...)
	errs = append(errs, o.PipelineOptions.Validate()...)

	if err := o.LogOptions.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := o.RedisOptions.Validate(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// Config builds a chatsvc.Config based on ServerOptions.
func (o *ServerOptions) Config() (*chatsvc.Config, error) {
	return &chatsvc.Config{
		HTTPOptions:      o.HTTPOptions,
		LogOptions:       o.LogOptions,
		MilvusOptions:    o.MilvusOptions,
		RedisOptions:     o.RedisOptions,
		EmbeddingOptions: o.EmbeddingOptions,
		ChatOptions:      o.ChatOptions,
		PipelineOptions:  o.PipelineOptions,
		RecoveryOptions:  o.RecoveryOptions,
		RequestIDOptions: o.RequestIDOptions,
		LoggerOptions:    o.LoggerOptions,
		CORSOptions:      o.CORSOptions,
		HealthOptions:    o.HealthOptions,
		MetricsOptions:   o.MetricsOptions,
		PprofOptions:     o.PprofOptions,
		ShutdownTimeout:  o.ShutdownTimeout,
	}, nil
}
