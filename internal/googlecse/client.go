package googlecse

import (
	"context"
	"fmt"

	"google.golang.org/api/customsearch/v1"
	"google.golang.org/api/option"

	"github.com/iWorld-y/news_crawler/internal/search"
)

// Programmable Search 的分页限制
const (
	pageSize   = 10
	maxResults = 100
)

// Client Google Programmable Search 客户端
type Client struct {
	svc *customsearch.Service
	cx  string
}

// NewClient 创建客户端，opts 可追加 option.WithEndpoint 等设置
func NewClient(ctx context.Context, apiKey, cx string, opts ...option.ClientOption) (*Client, error) {
	if cx == "" {
		return nil, fmt.Errorf("google search engine id (cx) is missing")
	}
	opts = append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	svc, err := customsearch.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create customsearch service failed: %w", err)
	}
	return &Client{svc: svc, cx: cx}, nil
}

// Ensure Client implements search.Searcher
var _ search.Searcher = (*Client)(nil)

// Search 按 10 条一页拉取结果，直到 MaxResults 或结果耗尽
func (c *Client) Search(ctx context.Context, req *search.Request) (*search.Response, error) {
	limit := req.MaxResults
	if limit <= 0 || limit > maxResults {
		limit = maxResults
	}

	var results []search.Result
	for start := 1; start <= limit; start += pageSize {
		num := pageSize
		if remaining := limit - len(results); remaining < num {
			num = remaining
		}

		call := c.svc.Cse.List().Cx(c.cx).Q(req.Query).Num(int64(num)).Start(int64(start))
		if req.Language != "" {
			call = call.Lr("lang_" + req.Language)
		}
		if req.Days > 0 {
			call = call.DateRestrict(fmt.Sprintf("d%d", req.Days))
		}
		res, err := call.Context(ctx).Do()
		if err != nil {
			if len(results) > 0 {
				break
			}
			return nil, fmt.Errorf("customsearch request failed: %w", err)
		}
		if len(res.Items) == 0 {
			break
		}
		for _, item := range res.Items {
			results = append(results, search.Result{
				Title:   item.Title,
				URL:     item.Link,
				Content: item.Snippet,
			})
		}
		if len(res.Items) < num {
			break
		}
	}

	return &search.Response{Results: results}, nil
}
