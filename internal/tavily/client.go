package tavily

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/iWorld-y/news_crawler/internal/search"
)

const defaultBaseURL = "https://api.tavily.com/search"

// Tavily 单次请求的结果上限
const maxResultsLimit = 20

// 语言代码到 Tavily country 参数的映射，只对 news 以外的 topic 生效
var countries = map[string]string{
	"id": "indonesia",
	"ms": "malaysia",
	"en": "united states",
}

// APIError Tavily 返回非 200 状态
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("tavily api error (status %d): %s", e.Status, e.Body)
}

// Client Tavily API 客户端
type Client struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewClient 创建一个新的 Tavily 客户端
func NewClient(apiKey string) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		client:  http.DefaultClient,
	}
}

// WithBaseURL 替换 API 地址，主要用于测试
func (c *Client) WithBaseURL(baseURL string) *Client {
	c.baseURL = baseURL
	return c
}

var _ search.Searcher = (*Client)(nil)

// Search 调用 /search。news topic 按 Days 限定时间范围，结果数截断到 Tavily 的上限
func (c *Client) Search(ctx context.Context, req *search.Request) (*search.Response, error) {
	resp, err := c.post(ctx, newPayload(req))
	if err != nil {
		return nil, err
	}

	out := &search.Response{Results: make([]search.Result, 0, len(resp.Results))}
	for _, r := range resp.Results {
		out.Results = append(out.Results, search.Result{
			Title:         r.Title,
			URL:           r.URL,
			Content:       r.Content,
			Score:         r.Score,
			PublishedDate: r.PublishedDate,
		})
	}
	return out, nil
}

// payload /search 请求体
type payload struct {
	Query       string `json:"query"`
	SearchDepth string `json:"search_depth"`
	Topic       string `json:"topic"`
	MaxResults  int    `json:"max_results"`
	Days        int    `json:"days,omitempty"`
	Country     string `json:"country,omitempty"`
}

func newPayload(req *search.Request) payload {
	p := payload{
		Query:       req.Query,
		SearchDepth: "basic",
		Topic:       req.Topic,
		MaxResults:  min(req.MaxResults, maxResultsLimit),
	}
	if p.Topic == "" {
		p.Topic = "news"
	}
	if p.MaxResults <= 0 {
		p.MaxResults = 5
	}
	if p.Topic == "news" {
		p.Days = req.Days
	} else {
		p.Country = countries[req.Language]
	}
	return p
}

type searchResponse struct {
	Results []struct {
		Title         string  `json:"title"`
		URL           string  `json:"url"`
		Content       string  `json:"content"`
		Score         float64 `json:"score"`
		PublishedDate string  `json:"published_date"`
	} `json:"results"`
}

func (c *Client) post(ctx context.Context, p payload) (*searchResponse, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal request failed: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request failed: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	res, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return nil, &APIError{Status: res.StatusCode, Body: string(msg)}
	}

	var out searchResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response failed: %w", err)
	}
	return &out, nil
}
