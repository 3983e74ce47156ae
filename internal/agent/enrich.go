package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"

	"github.com/iWorld-y/news_crawler/internal/logger"
	"github.com/iWorld-y/news_crawler/internal/metrics"
	dm "github.com/iWorld-y/news_crawler/internal/model"
)

const enrichPromptTpl = `You are a smart Indonesian news analysis assistant. Analyze the following news article:

TITLE:
%s

CONTENT:
%s

TASKS:
1. Summarize the article in Bahasa Indonesia (50-100 words).
2. Classify the news into one of these categories: %s.
3. Determine the sentiment of the article: Positive, Negative, or Neutral.
4. Identify the main location (city, province or country) the article is about. Leave it empty if none is mentioned.
5. Recommend a short counterstrategy or action plan in Bahasa Indonesia if the content is related to corporate or public policy risk.

Respond ONLY with the following JSON format, without markdown:

{
  "summary": "...",
  "category": "...",
  "location": "...",
  "sentiment": "...",
  "recommendation": "..."
}`

var fencePattern = regexp.MustCompile("```json|```")

// Enricher 调用 LLM 对单篇文章做摘要、分类和情感分析
type Enricher struct {
	llm      *caller
	maxChars int
	cache    *lru.Cache[string, dm.Enrichment]
}

// NewEnricher 创建 Enricher，相同 (正文, 标题) 的结果在进程内缓存
func NewEnricher(cm model.BaseChatModel, limiter *rate.Limiter, opts Options) (*Enricher, error) {
	opts = opts.withDefaults()
	cache, err := lru.New[string, dm.Enrichment](opts.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("create enrichment cache: %w", err)
	}
	return &Enricher{
		llm:      newCaller(cm, limiter, opts),
		maxChars: opts.MaxContentChars,
		cache:    cache,
	}, nil
}

// Enrich 分析文章。模型输出不是合法 JSON 或字段不合规时返回 *EnrichmentParseError
func (e *Enricher) Enrich(ctx context.Context, text, title string) (*dm.Enrichment, error) {
	key := hashKey(text, title)
	if cached, ok := e.cache.Get(key); ok {
		metrics.LLMCalls.WithLabelValues("enrich", "cache_hit").Inc()
		return &cached, nil
	}

	prompt := fmt.Sprintf(enrichPromptTpl, title, truncateRunes(text, e.maxChars), strings.Join(dm.Categories, ", "))
	messages := []*schema.Message{
		{Role: schema.System, Content: "You are a JSON generator. Output the JSON object only."},
		{Role: schema.User, Content: prompt},
	}

	raw, err := e.llm.generate(ctx, messages)
	if err != nil {
		metrics.LLMCalls.WithLabelValues("enrich", "error").Inc()
		return nil, fmt.Errorf("enrich %q: %w", title, err)
	}

	result, err := ParseEnrichment(raw)
	if err != nil {
		metrics.LLMCalls.WithLabelValues("enrich", "parse_error").Inc()
		logger.Log.WithField("title", title).Debugf("模型原始输出: %s", raw)
		return nil, &EnrichmentParseError{Title: title, Raw: raw, Err: err}
	}

	metrics.LLMCalls.WithLabelValues("enrich", "ok").Inc()
	e.cache.Add(key, *result)
	return result, nil
}

// ParseEnrichment 去掉代码块标记后解析 JSON，并把分类和情感规范为标准写法。
// 无法识别的分类或情感保留模型原值，只记录告警。
func ParseEnrichment(raw string) (*dm.Enrichment, error) {
	cleaned := strings.TrimSpace(fencePattern.ReplaceAllString(raw, ""))

	var out dm.Enrichment
	if err := json.Unmarshal([]byte(cleaned), &out); err != nil {
		// 模型在 JSON 前后加了说明文字
		start, end := strings.Index(cleaned, "{"), strings.LastIndex(cleaned, "}")
		if start < 0 || end <= start {
			return nil, fmt.Errorf("json unmarshal: %w", err)
		}
		out = dm.Enrichment{}
		if err2 := json.Unmarshal([]byte(cleaned[start:end+1]), &out); err2 != nil {
			return nil, fmt.Errorf("json unmarshal: %w", err2)
		}
	}

	out.Summary = strings.TrimSpace(out.Summary)
	out.Location = strings.TrimSpace(out.Location)
	out.Recommendation = strings.TrimSpace(out.Recommendation)
	if out.Summary == "" {
		return nil, errors.New("summary is empty")
	}

	out.Category = strings.TrimSpace(out.Category)
	out.Sentiment = strings.TrimSpace(out.Sentiment)
	if category, ok := dm.CanonicalCategory(out.Category); ok {
		out.Category = category
	} else {
		logger.Log.Warnf("未知分类 %q，保留原值", out.Category)
	}
	if sentiment, ok := dm.CanonicalSentiment(out.Sentiment); ok {
		out.Sentiment = sentiment
	} else {
		logger.Log.Warnf("未知情感倾向 %q，保留原值", out.Sentiment)
	}
	return &out, nil
}

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
