package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"

	"github.com/iWorld-y/news_crawler/internal/config"
)

const defaultGeminiModel = "gemini-2.0-flash"

// NewChatModel 按配置创建 LLM 客户端
func NewChatModel(ctx context.Context, cfg config.LLMConfig) (model.BaseChatModel, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("llm.api_key is empty")
	}

	switch strings.ToLower(cfg.Provider) {
	case "", "openai":
		cm, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
			BaseURL: cfg.BaseURL,
			APIKey:  cfg.APIKey,
			Model:   cfg.Model,
		})
		if err != nil {
			return nil, fmt.Errorf("LLM 初始化失败: %w", err)
		}
		return cm, nil
	case "gemini":
		name := cfg.Model
		if name == "" {
			name = defaultGeminiModel
		}
		return NewGeminiChatModel(ctx, cfg.APIKey, name)
	default:
		return nil, fmt.Errorf("unknown llm provider: %s", cfg.Provider)
	}
}
