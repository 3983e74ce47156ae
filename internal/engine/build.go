package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/iWorld-y/news_crawler/internal/agent"
	"github.com/iWorld-y/news_crawler/internal/config"
	"github.com/iWorld-y/news_crawler/internal/crawler"
	"github.com/iWorld-y/news_crawler/internal/search/factory"
)

// Build 按配置组装引擎和报告生成器，两者共享同一个 LLM 客户端和限流器
func Build(ctx context.Context, cfg *config.Config) (*Engine, *agent.Reporter, error) {
	// 初始化 LLM
	chatModel, err := agent.NewChatModel(ctx, cfg.LLM)
	if err != nil {
		return nil, nil, err
	}

	// 初始化限流器
	limiter := agent.NewLimiter(cfg.Concurrency.RPM, cfg.Concurrency.QPS)
	opts := agent.Options{
		MaxContentChars: cfg.Agent.MaxContentChars,
		CacheSize:       cfg.Agent.CacheSize,
		MaxRetries:      cfg.Agent.MaxRetries,
	}
	enricher, err := agent.NewEnricher(chatModel, limiter, opts)
	if err != nil {
		return nil, nil, err
	}
	reporter, err := agent.NewReporter(chatModel, limiter, opts)
	if err != nil {
		return nil, nil, err
	}

	// 初始化搜索客户端
	searcher, err := factory.NewSearcher(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("搜索客户端初始化失败: %w", err)
	}
	discovery := crawler.NewDiscovery(searcher, crawler.DiscoveryOptions{
		MaxResults: cfg.Search.MaxResults,
		Language:   cfg.Search.Language,
		Unique:     *cfg.Search.Unique,
		Delay:      cfg.SearchDelay(),
	})

	fetcher := crawler.NewFetcher(cfg.Crawler.UserAgent, *cfg.Crawler.InsecureSkipVerify)
	resolver := crawler.NewResolver(fetcher, time.Duration(cfg.Crawler.ResolveTimeout)*time.Second)
	extractor := crawler.NewExtractor(fetcher, time.Duration(cfg.Crawler.FetchTimeout)*time.Second, cfg.Crawler.MinContentChars)

	return New(discovery, resolver, extractor, enricher, cfg.Concurrency.Keywords), reporter, nil
}
