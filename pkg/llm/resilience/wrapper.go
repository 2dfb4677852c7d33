package resilience

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/kart-io/logger"

	"github.com/kart-io/codequery/pkg/llm"
)

// ResilientEmbeddingProvider wraps an embedding provider with retry and a
// circuit breaker.
type ResilientEmbeddingProvider struct {
	provider llm.EmbeddingProvider
	retry    *RetryConfig
	cb       *CircuitBreaker
}

// NewResilientEmbeddingProvider wraps the given embedding provider.
func NewResilientEmbeddingProvider(
	provider llm.EmbeddingProvider,
	retryConfig *RetryConfig,
	cbConfig *CircuitBreakerConfig,
) *ResilientEmbeddingProvider {
	if retryConfig == nil {
		retryConfig = DefaultRetryConfig()
	}
	if cbConfig == nil {
		cbConfig = DefaultCircuitBreakerConfig()
	}
	if retryConfig.RetryableErrors == nil {
		retryConfig.RetryableErrors = IsRetryableError
	}

	return &ResilientEmbeddingProvider{
		provider: provider,
		retry:    retryConfig,
		cb:       NewCircuitBreaker(cbConfig),
	}
}

// Embed generates embeddings with retry and circuit breaking.
func (r *ResilientEmbeddingProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	var result [][]float32

	err := RetryWithCircuitBreaker(ctx, r.retry, r.cb, func() error {
		var callErr error
		result, callErr = r.provider.Embed(ctx, texts)
		return callErr
	})

	return result, err
}

// EmbedSingle generates one embedding with retry and circuit breaking.
func (r *ResilientEmbeddingProvider) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	var result []float32

	err := RetryWithCircuitBreaker(ctx, r.retry, r.cb, func() error {
		var callErr error
		result, callErr = r.provider.EmbedSingle(ctx, text)
		return callErr
	})

	return result, err
}

// Name returns the wrapped provider name.
func (r *ResilientEmbeddingProvider) Name() string {
	return r.provider.Name() + "-resilient"
}

// CircuitBreaker exposes the breaker for monitoring.
func (r *ResilientEmbeddingProvider) CircuitBreaker() *CircuitBreaker {
	return r.cb
}

// ResilientChatProvider wraps a chat provider with retry and a circuit
// breaker. Streaming calls pass through without retry: once fragments may
// have been delivered, replaying the call risks duplicated output, so stream
// retry policy belongs to the consumer.
type ResilientChatProvider struct {
	provider llm.ChatProvider
	retry    *RetryConfig
	cb       *CircuitBreaker
}

// NewResilientChatProvider wraps the given chat provider.
func NewResilientChatProvider(
	provider llm.ChatProvider,
	retryConfig *RetryConfig,
	cbConfig *CircuitBreakerConfig,
) *ResilientChatProvider {
	if retryConfig == nil {
		retryConfig = DefaultRetryConfig()
	}
	if cbConfig == nil {
		cbConfig = DefaultCircuitBreakerConfig()
	}
	if retryConfig.RetryableErrors == nil {
		retryConfig.RetryableErrors = IsRetryableError
	}

	return &ResilientChatProvider{
		provider: provider,
		retry:    retryConfig,
		cb:       NewCircuitBreaker(cbConfig),
	}
}

// Chat runs a conversation with retry and circuit breaking.
func (r *ResilientChatProvider) Chat(ctx context.Context, messages []llm.Message, opts ...llm.GenerateOption) (string, error) {
	var result string

	err := RetryWithCircuitBreaker(ctx, r.retry, r.cb, func() error {
		var callErr error
		result, callErr = r.provider.Chat(ctx, messages, opts...)
		return callErr
	})

	return result, err
}

// ChatStream opens a stream. The breaker guards stream establishment only.
func (r *ResilientChatProvider) ChatStream(ctx context.Context, messages []llm.Message, opts ...llm.GenerateOption) (<-chan llm.StreamDelta, error) {
	if err := r.cb.beforeCall(); err != nil {
		return nil, err
	}

	stream, err := r.provider.ChatStream(ctx, messages, opts...)
	r.cb.afterCall(err)
	return stream, err
}

// Name returns the wrapped provider name.
func (r *ResilientChatProvider) Name() string {
	return r.provider.Name() + "-resilient"
}

// CircuitBreaker exposes the breaker for monitoring.
func (r *ResilientChatProvider) CircuitBreaker() *CircuitBreaker {
	return r.cb
}

// IsRetryableError reports whether an error is worth retrying.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, ErrCircuitBreakerOpen) {
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		logger.Debugw("network timeout, retryable", "error", err.Error())
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		logger.Debugw("DNS error, retryable", "error", err.Error())
		return true
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		logger.Debugw("network operation error, retryable", "error", err.Error())
		return true
	}

	errMsg := err.Error()
	for _, marker := range []string{
		"status 5",
		"status code 5",
		"status 429",
		"status code 429",
		"rate limit",
		"status 408",
		"status code 408",
		"service unavailable",
	} {
		if strings.Contains(errMsg, marker) {
			logger.Debugw("transient HTTP error, retryable", "error", errMsg)
			return true
		}
	}

	if errors.Is(err, http.ErrServerClosed) ||
		strings.Contains(errMsg, "EOF") ||
		strings.Contains(errMsg, "connection reset") {
		logger.Debugw("connection error, retryable", "error", errMsg)
		return true
	}

	logger.Debugw("error not retryable", "error", errMsg)
	return false
}
