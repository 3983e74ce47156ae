package search

import "context"

// Searcher 定义通用的搜索接口
type Searcher interface {
	Search(ctx context.Context, req *Request) (*Response, error)
}

// Request 通用搜索请求
type Request struct {
	Query      string
	Topic      string // "news" or "general"
	MaxResults int
	Language   string // ISO 639-1，例如 "id"
	Days       int    // 只要最近 Days 天内的结果，0 表示不限
}

// Response 通用搜索响应
type Response struct {
	Results []Result
}

// Result 单条搜索结果
type Result struct {
	Title         string
	URL           string
	Content       string
	Score         float64
	PublishedDate string
}

// URLs 按顺序返回结果中的链接
func (r *Response) URLs() []string {
	if r == nil {
		return nil
	}
	urls := make([]string, 0, len(r.Results))
	for _, res := range r.Results {
		urls = append(urls, res.URL)
	}
	return urls
}
