package crawler

import "fmt"

// DiscoveryError 搜索服务调用失败，调用方应跳过该关键词
type DiscoveryError struct {
	Keyword string
	Err     error
}

func (e *DiscoveryError) Error() string {
	return fmt.Sprintf("discovery failed for keyword %q: %v", e.Keyword, e.Err)
}

func (e *DiscoveryError) Unwrap() error {
	return e.Err
}

// ContentTooShortError 主策略和回退策略都没有拿到足够的正文
type ContentTooShortError struct {
	URL    string
	Length int
	Min    int
}

func (e *ContentTooShortError) Error() string {
	return fmt.Sprintf("content too short for %s: %d chars (min %d)", e.URL, e.Length, e.Min)
}
