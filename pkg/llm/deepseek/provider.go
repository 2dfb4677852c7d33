// Package deepseek provides the DeepSeek LLM provider. The DeepSeek API is
// OpenAI-compatible, so the implementation delegates to the openai provider
// with DeepSeek defaults. DeepSeek has no embedding endpoint, so only a chat
// factory is registered.
package deepseek

import (
	"fmt"
	"time"

	"github.com/kart-io/codequery/pkg/llm"
	"github.com/kart-io/codequery/pkg/llm/openai"
)

const ProviderName = "deepseek"

func init() {
	llm.RegisterChatProvider(ProviderName, NewChatProvider)
}

// NewChatProvider creates a DeepSeek chat provider from a config map.
func NewChatProvider(configMap map[string]any) (llm.ChatProvider, error) {
	cfg := openai.DefaultConfig()
	cfg.BaseURL = "https://api.deepseek.com/v1"
	cfg.ChatModel = "deepseek-chat"

	if v, ok := configMap["base_url"].(string); ok && v != "" {
		cfg.BaseURL = v
	}
	if v, ok := configMap["api_key"].(string); ok && v != "" {
		cfg.APIKey = v
	}
	if v, ok := configMap["chat_model"].(string); ok && v != "" {
		cfg.ChatModel = v
	}
	if v, ok := configMap["timeout"].(time.Duration); ok && v > 0 {
		cfg.Timeout = v
	}
	if v, ok := configMap["max_retries"].(int); ok && v > 0 {
		cfg.MaxRetries = v
	}

	if cfg.APIKey == "" {
		return nil, fmt.Errorf("deepseek: api_key is required")
	}

	return openai.NewProviderWithConfig(cfg), nil
}
