package agent

import "fmt"

// EnrichmentParseError 模型输出无法解析为合法的分析结果，文章会被丢弃
type EnrichmentParseError struct {
	Title string
	Raw   string
	Err   error
}

func (e *EnrichmentParseError) Error() string {
	return fmt.Sprintf("parse enrichment for %q failed: %v", e.Title, e.Err)
}

func (e *EnrichmentParseError) Unwrap() error {
	return e.Err
}

// ReportGenerationError 综合报告生成失败，调用方应保留上一份报告
type ReportGenerationError struct {
	Err error
}

func (e *ReportGenerationError) Error() string {
	return fmt.Sprintf("generate report failed: %v", e.Err)
}

func (e *ReportGenerationError) Unwrap() error {
	return e.Err
}
