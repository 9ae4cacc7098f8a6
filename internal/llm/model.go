// Package llm builds the chat model behind the in-process generator.
package llm

import (
	"context"
	"fmt"
	"net/http"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino-ext/components/model/qwen"
	einoModel "github.com/cloudwego/eino/components/model"

	"weboptimizer-backend/internal/config"
	"weboptimizer-backend/internal/utils"
	"weboptimizer-backend/pkg/logger"
)

// NewChatModel picks the provider named in cfg.Provider.
func NewChatModel(ctx context.Context, cfg config.ModelConfig) (einoModel.BaseChatModel, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("model.api_key is empty for provider %q", cfg.Provider)
	}

	logger.Infof("Using %s model %s (key %s)", cfg.Provider, cfg.Model, maskKey(cfg.APIKey))

	switch cfg.Provider {
	case "doubao":
		return createDoubaoModel(ctx, cfg)
	case "qwen":
		return createQwenModel(ctx, cfg)
	case "openai":
		return newOpenAIChatModel(cfg, httpClient(cfg)), nil
	case "gemini":
		return newGeminiChatModel(ctx, cfg, httpClient(cfg))
	default:
		return nil, fmt.Errorf("unsupported model provider: %s", cfg.Provider)
	}
}

func createDoubaoModel(ctx context.Context, cfg config.ModelConfig) (einoModel.BaseChatModel, error) {
	chatModel, err := ark.NewChatModel(ctx, &ark.ChatModelConfig{
		BaseURL:     cfg.BaseURL,
		APIKey:      cfg.APIKey,
		Model:       cfg.Model,
		MaxTokens:   &cfg.MaxTokens,
		Temperature: &cfg.Temperature,
		TopP:        &cfg.TopP,
		CustomHeader: map[string]string{
			"X-Ark-Thinking-Mode": "disable",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create doubao model: %w", err)
	}
	return chatModel, nil
}

func createQwenModel(ctx context.Context, cfg config.ModelConfig) (einoModel.BaseChatModel, error) {
	chatModel, err := qwen.NewChatModel(ctx, &qwen.ChatModelConfig{
		BaseURL:     cfg.BaseURL,
		APIKey:      cfg.APIKey,
		Model:       cfg.Model,
		MaxTokens:   &cfg.MaxTokens,
		Temperature: &cfg.Temperature,
		TopP:        &cfg.TopP,
		Timeout:     cfg.Timeout,
		HTTPClient:  httpClient(cfg),
	})
	if err != nil {
		return nil, fmt.Errorf("create qwen model: %w", err)
	}
	return chatModel, nil
}

func httpClient(cfg config.ModelConfig) *http.Client {
	return utils.NewHTTPClient(cfg.Timeout, func(base http.RoundTripper) http.RoundTripper {
		return NewDebugTransport(base, cfg.Provider, cfg.DebugRequest)
	})
}

func maskKey(key string) string {
	if len(key) > 6 {
		return key[:6] + "..."
	}
	return "***"
}
