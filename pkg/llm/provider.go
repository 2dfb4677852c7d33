// Package llm provides a unified LLM provider abstraction. Embedding and
// chat can use models from different providers.
package llm

import (
	"context"
	"fmt"
	"sync"
)

// EmbeddingProvider defines the embedding provider interface.
type EmbeddingProvider interface {
	// Embed generates vector embeddings for multiple texts.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedSingle generates a vector embedding for one text.
	EmbedSingle(ctx context.Context, text string) ([]float32, error)

	// Name returns the provider name.
	Name() string
}

// ChatProvider defines the chat provider interface.
type ChatProvider interface {
	// Chat runs a multi-turn conversation and returns the full response.
	Chat(ctx context.Context, messages []Message, opts ...GenerateOption) (string, error)

	// ChatStream runs a multi-turn conversation and returns a channel of
	// response deltas. The channel is closed after the terminal delta
	// (Done or Err set). Cancelling ctx stops the stream promptly.
	ChatStream(ctx context.Context, messages []Message, opts ...GenerateOption) (<-chan StreamDelta, error)

	// Name returns the provider name.
	Name() string
}

// Message represents one message in a conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Role defines the message role.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// StreamDelta is one fragment of a streamed response. Exactly one terminal
// delta is sent: Done=true on success, or Err set on failure.
type StreamDelta struct {
	Content string
	Done    bool
	Err     error
}

// GenerateOptions carries per-call generation settings.
type GenerateOptions struct {
	// NoCache asks any caching layer above the provider to bypass stored
	// answers for this call. Intent tie-break and rerank calls always set
	// it: they must reflect the live, per-request candidate set.
	NoCache bool
}

// GenerateOption mutates GenerateOptions.
type GenerateOption func(*GenerateOptions)

// WithNoCache marks the call as cache-bypassing.
func WithNoCache() GenerateOption {
	return func(o *GenerateOptions) { o.NoCache = true }
}

// ApplyOptions folds a list of options into a GenerateOptions value.
func ApplyOptions(opts ...GenerateOption) GenerateOptions {
	var o GenerateOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Provider supports both embedding and chat.
type Provider interface {
	EmbeddingProvider
	ChatProvider
}

// ProviderFactory creates a full provider from a config map.
type ProviderFactory func(config map[string]any) (Provider, error)

// EmbeddingProviderFactory creates an embedding provider from a config map.
type EmbeddingProviderFactory func(config map[string]any) (EmbeddingProvider, error)

// ChatProviderFactory creates a chat provider from a config map.
type ChatProviderFactory func(config map[string]any) (ChatProvider, error)

var registry = &providerRegistry{
	providers:          make(map[string]ProviderFactory),
	embeddingProviders: make(map[string]EmbeddingProviderFactory),
	chatProviders:      make(map[string]ChatProviderFactory),
}

type providerRegistry struct {
	mu                 sync.RWMutex
	providers          map[string]ProviderFactory
	embeddingProviders map[string]EmbeddingProviderFactory
	chatProviders      map[string]ChatProviderFactory
}

// RegisterProvider registers a full provider factory.
func RegisterProvider(name string, factory ProviderFactory) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.providers[name] = factory
}

// RegisterEmbeddingProvider registers an embedding provider factory.
func RegisterEmbeddingProvider(name string, factory EmbeddingProviderFactory) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.embeddingProviders[name] = factory
}

// RegisterChatProvider registers a chat provider factory.
func RegisterChatProvider(name string, factory ChatProviderFactory) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.chatProviders[name] = factory
}

// NewProvider creates a full provider instance by name.
func NewProvider(name string, config map[string]any) (Provider, error) {
	registry.mu.RLock()
	factory, ok := registry.providers[name]
	registry.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown provider: %s", name)
	}

	return factory(config)
}

// NewEmbeddingProvider creates an embedding provider instance by name.
// A dedicated embedding factory wins over a full provider factory.
func NewEmbeddingProvider(name string, config map[string]any) (EmbeddingProvider, error) {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	if factory, ok := registry.embeddingProviders[name]; ok {
		return factory(config)
	}
	if factory, ok := registry.providers[name]; ok {
		return factory(config)
	}

	return nil, fmt.Errorf("unknown embedding provider: %s", name)
}

// NewChatProvider creates a chat provider instance by name.
// A dedicated chat factory wins over a full provider factory.
func NewChatProvider(name string, config map[string]any) (ChatProvider, error) {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	if factory, ok := registry.chatProviders[name]; ok {
		return factory(config)
	}
	if factory, ok := registry.providers[name]; ok {
		return factory(config)
	}

	return nil, fmt.Errorf("unknown chat provider: %s", name)
}

// ListProviders lists all registered provider names.
func ListProviders() []string {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	seen := make(map[string]bool)
	var names []string

	for name := range registry.providers {
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	for name := range registry.embeddingProviders {
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	for name := range registry.chatProviders {
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}

	return names
}
