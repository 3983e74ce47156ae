package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"

	"github.com/iWorld-y/news_crawler/internal/metrics"
	dm "github.com/iWorld-y/news_crawler/internal/model"
	"github.com/iWorld-y/news_crawler/internal/store"
)

// ReportSections 报告必须包含的四个章节标题
var ReportSections = []string{
	"## Ringkasan Eksekutif",
	"## Tren Utama",
	"## Risiko dan Peluang",
	"## Rekomendasi Strategis",
}

// ErrEmptyDataset 数据集为空时无法生成报告
var ErrEmptyDataset = errors.New("dataset is empty")

const reportPromptTpl = `You are a senior market analyst covering Indonesia. Below is a collection of analysed news articles.
Write a cross-article narrative report in Bahasa Indonesia for business decision makers.

Use exactly these four section headers, in this order:
%s

Refer to concrete events, locations and categories from the articles. Do not invent facts that are not in the data.

ARTICLES:

%s`

// Reporter 基于整个数据集生成综合报告
type Reporter struct {
	llm   *caller
	cache *lru.Cache[string, string]
}

// NewReporter 创建 Reporter
func NewReporter(cm model.BaseChatModel, limiter *rate.Limiter, opts Options) (*Reporter, error) {
	opts = opts.withDefaults()
	cache, err := lru.New[string, string](opts.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("create report cache: %w", err)
	}
	return &Reporter{
		llm:   newCaller(cm, limiter, opts),
		cache: cache,
	}, nil
}

// Synthesize 返回模型的原始输出，失败时返回 *ReportGenerationError
func (r *Reporter) Synthesize(ctx context.Context, ds store.Dataset) (string, error) {
	if ds.Len() == 0 {
		return "", &ReportGenerationError{Err: ErrEmptyDataset}
	}

	body := FormatRecords(ds.Records())
	key := hashKey(body)
	if cached, ok := r.cache.Get(key); ok {
		metrics.LLMCalls.WithLabelValues("report", "cache_hit").Inc()
		return cached, nil
	}

	prompt := fmt.Sprintf(reportPromptTpl, strings.Join(ReportSections, "\n"), body)
	messages := []*schema.Message{
		{Role: schema.System, Content: "You are a market analyst. Answer in Markdown."},
		{Role: schema.User, Content: prompt},
	}

	text, err := r.llm.generate(ctx, messages)
	if err != nil {
		metrics.LLMCalls.WithLabelValues("report", "error").Inc()
		return "", &ReportGenerationError{Err: err}
	}
	text = strings.TrimSpace(text)
	if text == "" {
		metrics.LLMCalls.WithLabelValues("report", "error").Inc()
		return "", &ReportGenerationError{Err: errors.New("empty response")}
	}

	metrics.LLMCalls.WithLabelValues("report", "ok").Inc()
	r.cache.Add(key, text)
	return text, nil
}

// FormatRecords 每条记录一个文本块，块之间空一行
func FormatRecords(records []dm.ArticleRecord) string {
	blocks := make([]string, 0, len(records))
	for _, rec := range records {
		blocks = append(blocks, formatRecord(rec))
	}
	return strings.Join(blocks, "\n\n")
}

func formatRecord(rec dm.ArticleRecord) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Keyword: %s\n", rec.Keyword)
	fmt.Fprintf(&sb, "Title: %s\n", rec.Title)
	fmt.Fprintf(&sb, "Date: %s\n", rec.PublishDate)
	fmt.Fprintf(&sb, "Location: %s\n", rec.Location)
	fmt.Fprintf(&sb, "Category: %s\n", rec.Category)
	fmt.Fprintf(&sb, "Sentiment: %s\n", rec.Sentiment)
	fmt.Fprintf(&sb, "Summary: %s\n", rec.Summary)
	fmt.Fprintf(&sb, "Recommendation: %s", rec.Recommendation)
	return sb.String()
}
