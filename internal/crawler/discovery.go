package crawler

import (
	"context"
	"fmt"
	"iter"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/iWorld-y/news_crawler/internal/logger"
	"github.com/iWorld-y/news_crawler/internal/search"
)

// DiscoveryOptions 搜索参数
type DiscoveryOptions struct {
	MaxResults int
	Language   string
	Unique     bool
	// Delay 两次搜索请求之间的最小间隔
	Delay time.Duration
}

// Discovery 根据关键词搜索候选新闻链接
type Discovery struct {
	searcher search.Searcher
	limiter  *rate.Limiter
	opts     DiscoveryOptions
}

// NewDiscovery 创建 Discovery，同一实例上的所有搜索共享一个限流器
func NewDiscovery(searcher search.Searcher, opts DiscoveryOptions) *Discovery {
	limit := rate.Inf
	if opts.Delay > 0 {
		limit = rate.Every(opts.Delay)
	}
	return &Discovery{
		searcher: searcher,
		limiter:  rate.NewLimiter(limit, 1),
		opts:     opts,
	}
}

// BuildQuery 组合关键词与当天日期，例如 "banjir jakarta 2024-10-14"
func BuildQuery(keyword string, now time.Time) string {
	return fmt.Sprintf("%s %s", keyword, now.Format(time.DateOnly))
}

// Discover 执行一次搜索并返回候选链接序列。
// 序列是惰性的且只能遍历一次；非 http(s) 链接会被丢弃，Unique 时按首次出现去重。
func (d *Discovery) Discover(ctx context.Context, keyword string, now time.Time) (iter.Seq[string], error) {
	if err := d.limiter.Wait(ctx); err != nil {
		return nil, &DiscoveryError{Keyword: keyword, Err: err}
	}

	req := &search.Request{
		Query:      BuildQuery(keyword, now),
		Topic:      "news",
		MaxResults: d.opts.MaxResults,
		Language:   d.opts.Language,
		// 查询里已经带了当天日期
		Days: 1,
	}
	resp, err := d.searcher.Search(ctx, req)
	if err != nil {
		return nil, &DiscoveryError{Keyword: keyword, Err: err}
	}

	urls := resp.URLs()
	logger.Log.WithField("keyword", keyword).Debugf("搜索返回 %d 条结果: %s", len(urls), req.Query)

	var consumed atomic.Bool
	unique := d.opts.Unique
	maxResults := d.opts.MaxResults
	return func(yield func(string) bool) {
		if !consumed.CompareAndSwap(false, true) {
			return
		}
		seen := make(map[string]struct{}, len(urls))
		emitted := 0
		for _, u := range urls {
			if maxResults > 0 && emitted >= maxResults {
				return
			}
			if !IsValidURL(u) {
				continue
			}
			if unique {
				if _, ok := seen[u]; ok {
					continue
				}
				seen[u] = struct{}{}
			}
			emitted++
			if !yield(u) {
				return
			}
		}
	}, nil
}
