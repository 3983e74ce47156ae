package searxng

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/iWorld-y/news_crawler/internal/search"
)

// 单次搜索最多翻页数
const maxPages = 10

// Client SearXNG API 客户端
type Client struct {
	baseURL string
	timeout time.Duration
	client  *http.Client
}

// NewClient 创建一个新的 SearXNG 客户端
func NewClient(baseURL string, timeout int) *Client {
	t := time.Duration(timeout) * time.Second
	if t == 0 {
		t = 30 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		timeout: t,
		client: &http.Client{
			Timeout: t,
		},
	}
}

// Ensure Client implements search.Searcher
var _ search.Searcher = (*Client)(nil)

// SearchResponse SearXNG 响应结构
type SearchResponse struct {
	Query   string         `json:"query"`
	Results []SearchResult `json:"results"`
}

// SearchResult SearXNG 单条结果
type SearchResult struct {
	Title         string  `json:"title"`
	URL           string  `json:"url"`
	Content       string  `json:"content"`
	PublishedDate string  `json:"publishedDate"`
	Score         float64 `json:"score"`
}

// Search 执行搜索，按页拉取直到满足 MaxResults
func (c *Client) Search(ctx context.Context, req *search.Request) (*search.Response, error) {
	var results []search.Result
	for page := 1; page <= maxPages; page++ {
		resp, err := c.searchPage(ctx, req, page)
		if err != nil {
			if page > 1 && len(results) > 0 {
				// 后续页失败时保留已有结果
				break
			}
			return nil, err
		}
		if len(resp.Results) == 0 {
			break
		}
		for _, r := range resp.Results {
			results = append(results, search.Result{
				Title:         r.Title,
				URL:           r.URL,
				Content:       r.Content,
				Score:         r.Score,
				PublishedDate: r.PublishedDate,
			})
		}
		if req.MaxResults <= 0 || len(results) >= req.MaxResults {
			break
		}
	}

	if req.MaxResults > 0 && len(results) > req.MaxResults {
		results = results[:req.MaxResults]
	}
	return &search.Response{Results: results}, nil
}

func (c *Client) searchPage(ctx context.Context, req *search.Request, page int) (*SearchResponse, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	u.Path = "/search"

	q := u.Query()
	q.Set("q", req.Query)
	q.Set("format", "json")
	q.Set("pageno", strconv.Itoa(page))

	// 映射 Topic
	if req.Topic == "general" {
		q.Set("categories", "general")
	} else {
		q.Set("categories", "news")
	}
	if req.Language != "" {
		q.Set("language", req.Language)
	}
	if tr := timeRange(req.Days); tr != "" {
		q.Set("time_range", tr)
	}

	u.RawQuery = q.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request failed: %w", err)
	}

	// 添加 User-Agent 避免被简单的反爬虫策略拦截
	httpReq.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")

	res, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("searxng api error (status %d): %s", res.StatusCode, string(body))
	}

	var searchResp SearchResponse
	if err := json.NewDecoder(res.Body).Decode(&searchResp); err != nil {
		return nil, fmt.Errorf("decode response failed: %w", err)
	}
	return &searchResp, nil
}

// timeRange 把天数映射为 SearXNG 支持的 time_range
func timeRange(days int) string {
	switch {
	case days <= 0:
		return ""
	case days == 1:
		return "day"
	case days <= 7:
		return "week"
	case days <= 31:
		return "month"
	default:
		return "year"
	}
}
