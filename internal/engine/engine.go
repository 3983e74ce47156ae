package engine

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/iWorld-y/news_crawler/internal/agent"
	"github.com/iWorld-y/news_crawler/internal/crawler"
	"github.com/iWorld-y/news_crawler/internal/logger"
	"github.com/iWorld-y/news_crawler/internal/metrics"
	"github.com/iWorld-y/news_crawler/internal/model"
)

// Discoverer 按关键词搜索候选链接
type Discoverer interface {
	Discover(ctx context.Context, keyword string, now time.Time) (iter.Seq[string], error)
}

// Resolver 解析页面发布时间
type Resolver interface {
	Resolve(ctx context.Context, url string) (time.Time, bool)
}

// Extractor 抽取文章正文
type Extractor interface {
	Extract(ctx context.Context, url string) (*crawler.Article, error)
}

// Enricher 调用 LLM 分析文章
type Enricher interface {
	Enrich(ctx context.Context, text, title string) (*model.Enrichment, error)
}

// Stats 单个周期的处理计数
type Stats struct {
	Keywords   int `json:"keywords"`
	Discovered int `json:"discovered"`
	Resolved   int `json:"resolved"`
	Fresh      int `json:"fresh"`
	Extracted  int `json:"extracted"`
	Enriched   int `json:"enriched"`
}

func (s *Stats) add(o Stats) {
	s.Keywords += o.Keywords
	s.Discovered += o.Discovered
	s.Resolved += o.Resolved
	s.Fresh += o.Fresh
	s.Extracted += o.Extracted
	s.Enriched += o.Enriched
}

// CycleResult 一次抓取周期的产出，Records 按关键词顺序排列
type CycleResult struct {
	ID        string                `json:"id"`
	StartedAt time.Time             `json:"started_at"`
	Duration  time.Duration         `json:"duration"`
	Records   []model.ArticleRecord `json:"-"`
	Warnings  []string              `json:"warnings"`
	Stats     Stats                 `json:"stats"`
}

// Engine 抓取流水线：搜索 -> 发布时间过滤 -> 正文抽取 -> LLM 分析
type Engine struct {
	discovery Discoverer
	resolver  Resolver
	extractor Extractor
	enricher  Enricher
	workers   int
	now       func() time.Time
}

// New 创建引擎，workers 为同时处理的关键词数
func New(d Discoverer, r Resolver, x Extractor, e Enricher, workers int) *Engine {
	if workers <= 0 {
		workers = 1
	}
	return &Engine{
		discovery: d,
		resolver:  r,
		extractor: x,
		enricher:  e,
		workers:   workers,
		now:       time.Now,
	}
}

type keywordResult struct {
	records  []model.ArticleRecord
	warnings []string
	stats    Stats
}

// RunCycle 对所有关键词执行一次流水线。单个关键词或链接的失败只记录为警告，不会中断周期。
// window 为新鲜度窗口，只保留发布时间晚于 now-window 的文章
func (e *Engine) RunCycle(ctx context.Context, keywords []string, window time.Duration) CycleResult {
	start := e.now()
	res := CycleResult{ID: uuid.NewString(), StartedAt: start}
	log := logger.Log.WithField("cycle", res.ID)
	log.Infof("开始抓取周期，共 %d 个关键词，新鲜度窗口 %s", len(keywords), window)

	slots := make([]keywordResult, len(keywords))
	g := new(errgroup.Group)
	g.SetLimit(e.workers)
	for i, kw := range keywords {
		g.Go(func() error {
			slots[i] = e.runKeyword(ctx, log.WithField("keyword", kw), kw, start, window)
			return nil
		})
	}
	_ = g.Wait()

	for _, s := range slots {
		res.Records = append(res.Records, s.records...)
		res.Warnings = append(res.Warnings, s.warnings...)
		res.Stats.add(s.stats)
	}
	res.Duration = e.now().Sub(start)
	metrics.CycleDuration.Observe(res.Duration.Seconds())

	log.Infof("抓取周期完成: 发现 %d, 有效时间 %d, 新鲜 %d, 抽取 %d, 分析 %d, 警告 %d, 耗时 %s",
		res.Stats.Discovered, res.Stats.Resolved, res.Stats.Fresh, res.Stats.Extracted,
		res.Stats.Enriched, len(res.Warnings), res.Duration)
	return res
}

func (e *Engine) runKeyword(ctx context.Context, log *logrus.Entry, keyword string, now time.Time, window time.Duration) keywordResult {
	out := keywordResult{stats: Stats{Keywords: 1}}
	warn := func(format string, args ...any) {
		msg := fmt.Sprintf(format, args...)
		log.Warn(msg)
		out.warnings = append(out.warnings, msg)
	}

	// 1. 搜索
	urls, err := e.discovery.Discover(ctx, keyword, now)
	if err != nil {
		metrics.ItemsDropped.WithLabelValues(metrics.DropDiscovery).Inc()
		warn("搜索关键词失败 [%s]: %v", keyword, err)
		return out
	}

	// 2. 解析发布时间并过滤
	var cands []model.CandidateURL
	for u := range urls {
		out.stats.Discovered++
		metrics.URLsDiscovered.Inc()
		c := model.CandidateURL{Keyword: keyword, URL: u}
		if t, ok := e.resolver.Resolve(ctx, u); ok {
			c.PublishTime = &t
			out.stats.Resolved++
		} else {
			metrics.ItemsDropped.WithLabelValues(metrics.DropUnresolved).Inc()
			log.WithField("url", u).Debug("无法解析发布时间，跳过")
		}
		cands = append(cands, c)
	}
	fresh := crawler.FilterFresh(cands, now, window)
	out.stats.Fresh = len(fresh)
	metrics.ItemsDropped.WithLabelValues(metrics.DropStale).Add(float64(out.stats.Resolved - len(fresh)))
	log.Infof("关键词 [%s] 共 %d 个链接，%d 个在窗口内", keyword, out.stats.Discovered, len(fresh))

	// 3. 抽取正文并分析
	for _, c := range fresh {
		if ctx.Err() != nil {
			warn("关键词 [%s] 处理中断: %v", keyword, ctx.Err())
			break
		}

		art, err := e.extractor.Extract(ctx, c.URL)
		if err != nil {
			var short *crawler.ContentTooShortError
			if errors.As(err, &short) {
				metrics.ItemsDropped.WithLabelValues(metrics.DropTooShort).Inc()
			} else {
				metrics.ItemsDropped.WithLabelValues(metrics.DropExtract).Inc()
			}
			warn("抽取正文失败 (%s): %s - %v", keyword, c.URL, err)
			continue
		}
		out.stats.Extracted++

		enr, err := e.enricher.Enrich(ctx, art.Text, art.Title)
		if err != nil {
			var perr *agent.EnrichmentParseError
			if errors.As(err, &perr) {
				metrics.ItemsDropped.WithLabelValues(metrics.DropParse).Inc()
			} else {
				metrics.ItemsDropped.WithLabelValues(metrics.DropEnrich).Inc()
			}
			warn("分析文章失败 (%s): %s - %v", keyword, c.URL, err)
			continue
		}
		out.stats.Enriched++
		out.records = append(out.records, newRecord(c, art, enr))
	}
	return out
}

func newRecord(c model.CandidateURL, art *crawler.Article, enr *model.Enrichment) model.ArticleRecord {
	return model.ArticleRecord{
		Keyword:        c.Keyword,
		Title:          art.Title,
		URL:            c.URL,
		PublishDate:    c.PublishDate(),
		Location:       enr.Location,
		Summary:        enr.Summary,
		Category:       enr.Category,
		Sentiment:      enr.Sentiment,
		Recommendation: enr.Recommendation,
	}
}
