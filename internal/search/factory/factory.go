package factory

import (
	"context"
	"fmt"

	"github.com/iWorld-y/news_crawler/internal/config"
	"github.com/iWorld-y/news_crawler/internal/googlecse"
	"github.com/iWorld-y/news_crawler/internal/search"
	"github.com/iWorld-y/news_crawler/internal/searxng"
	"github.com/iWorld-y/news_crawler/internal/tavily"
)

// NewSearcher 根据配置创建搜索实例
func NewSearcher(ctx context.Context, cfg *config.Config) (search.Searcher, error) {
	provider := cfg.Search.Provider
	if provider == "" {
		// 默认回退逻辑：按已配置的凭据选择
		switch {
		case cfg.Search.Tavily.APIKey != "":
			provider = "tavily"
		case cfg.Search.SearXNG.BaseURL != "":
			provider = "searxng"
		case cfg.Search.Google.APIKey != "":
			provider = "google"
		default:
			return nil, fmt.Errorf("search provider not configured")
		}
	}

	switch provider {
	case "tavily":
		if cfg.Search.Tavily.APIKey == "" {
			return nil, fmt.Errorf("tavily api key is missing")
		}
		return tavily.NewClient(cfg.Search.Tavily.APIKey), nil

	case "searxng":
		baseURL := cfg.Search.SearXNG.BaseURL
		if baseURL == "" {
			return nil, fmt.Errorf("searxng base url is missing")
		}
		return searxng.NewClient(baseURL, cfg.Search.SearXNG.Timeout), nil

	case "google":
		if cfg.Search.Google.APIKey == "" {
			return nil, fmt.Errorf("google api key is missing")
		}
		return googlecse.NewClient(ctx, cfg.Search.Google.APIKey, cfg.Search.Google.CX)

	default:
		return nil, fmt.Errorf("unknown search provider: %s", provider)
	}
}
