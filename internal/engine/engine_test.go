package engine

import (
	"context"
	"errors"
	"iter"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iWorld-y/news_crawler/internal/agent"
	"github.com/iWorld-y/news_crawler/internal/crawler"
	"github.com/iWorld-y/news_crawler/internal/store"
)

var testNow = time.Date(2024, 10, 14, 12, 0, 0, 0, time.Local)

type fakeDiscovery struct {
	urls map[string][]string
	errs map[string]error
}

func (f *fakeDiscovery) Discover(_ context.Context, keyword string, _ time.Time) (iter.Seq[string], error) {
	if err := f.errs[keyword]; err != nil {
		return nil, &crawler.DiscoveryError{Keyword: keyword, Err: err}
	}
	return slices.Values(f.urls[keyword]), nil
}

type fakeResolver map[string]time.Time

func (f fakeResolver) Resolve(_ context.Context, url string) (time.Time, bool) {
	t, ok := f[url]
	return t, ok
}

type fakeExtractor struct {
	mu    sync.Mutex
	pages map[string]*crawler.Article
	seen  []string
}

func (f *fakeExtractor) Extract(_ context.Context, url string) (*crawler.Article, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen = append(f.seen, url)
	art, ok := f.pages[url]
	if !ok {
		return nil, &crawler.ContentTooShortError{URL: url, Length: 12, Min: 100}
	}
	return art, nil
}

// titleChatModel 根据提示词里的标题选择回复
type titleChatModel struct {
	replies map[string]string
}

func (m *titleChatModel) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	prompt := input[len(input)-1].Content
	for title, reply := range m.replies {
		if strings.Contains(prompt, title) {
			return schema.AssistantMessage(reply, nil), nil
		}
	}
	return nil, errors.New("unexpected prompt")
}

func (m *titleChatModel) Stream(context.Context, []*schema.Message, ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("not implemented")
}

func enrichJSON(summary string) string {
	return `{"summary":"` + summary + `","category":"Environment","location":"Jakarta","sentiment":"Negative","recommendation":"Siapkan pompa."}`
}

func newEnricher(t *testing.T, replies map[string]string) *agent.Enricher {
	t.Helper()
	e, err := agent.NewEnricher(&titleChatModel{replies: replies}, nil, agent.Options{RetryDelay: time.Millisecond})
	require.NoError(t, err)
	return e
}

func article(title string) *crawler.Article {
	return &crawler.Article{Title: title, Text: strings.Repeat("a", 500), Strategy: crawler.StrategyReadability}
}

func newTestEngine(d Discoverer, r Resolver, x Extractor, e Enricher, workers int) *Engine {
	eng := New(d, r, x, e, workers)
	eng.now = func() time.Time { return testNow }
	return eng
}

func TestRunCycle_BanjirJakarta(t *testing.T) {
	disc := &fakeDiscovery{urls: map[string][]string{
		"banjir jakarta": {"https://a.example/undated", "https://a.example/old", "https://a.example/fresh"},
	}}
	res := fakeResolver{
		"https://a.example/old":   testNow.Add(-3 * time.Hour),
		"https://a.example/fresh": testNow.Add(-20 * time.Minute),
	}
	ext := &fakeExtractor{pages: map[string]*crawler.Article{
		"https://a.example/fresh": article("Banjir Rendam Jakarta Utara"),
	}}
	// 模型输出带 ```json 代码块
	enr := newEnricher(t, map[string]string{
		"Banjir Rendam Jakarta Utara": "```json\n" + enrichJSON("Banjir 60 cm.") + "\n```",
	})

	out := newTestEngine(disc, res, ext, enr, 1).RunCycle(context.Background(), []string{"banjir jakarta"}, time.Hour)

	require.Len(t, out.Records, 1)
	got := out.Records[0]
	assert.Equal(t, "https://a.example/fresh", got.URL)
	assert.Equal(t, "banjir jakarta", got.Keyword)
	assert.Equal(t, "Banjir Rendam Jakarta Utara", got.Title)
	assert.Equal(t, "2024-10-14 11:40:00", got.PublishDate)
	assert.Equal(t, "Banjir 60 cm.", got.Summary)
	assert.Equal(t, "Environment", got.Category)
	assert.Equal(t, "Negative", got.Sentiment)
	assert.Equal(t, "Jakarta", got.Location)

	// 只有窗口内的链接会被抽取
	assert.Equal(t, []string{"https://a.example/fresh"}, ext.seen)
	assert.Equal(t, Stats{Keywords: 1, Discovered: 3, Resolved: 2, Fresh: 1, Extracted: 1, Enriched: 1}, out.Stats)
	assert.Empty(t, out.Warnings)
	assert.NotEmpty(t, out.ID)

	s := store.New()
	s.Upsert(out.Records)
	assert.Equal(t, 1, s.Len())
}

func TestRunCycle_MalformedJSONContinues(t *testing.T) {
	disc := &fakeDiscovery{urls: map[string][]string{
		"korupsi": {"https://a.example/bad", "https://a.example/short", "https://a.example/good"},
	}}
	res := fakeResolver{
		"https://a.example/bad":   testNow.Add(-time.Minute),
		"https://a.example/short": testNow.Add(-time.Minute),
		"https://a.example/good":  testNow.Add(-time.Minute),
	}
	ext := &fakeExtractor{pages: map[string]*crawler.Article{
		"https://a.example/bad":  article("Judul Rusak"),
		"https://a.example/good": article("Judul Baik"),
	}}
	enr := newEnricher(t, map[string]string{
		"Judul Rusak": `{"summary": "terpotong", "category":`,
		"Judul Baik":  enrichJSON("ok"),
	})

	out := newTestEngine(disc, res, ext, enr, 1).RunCycle(context.Background(), []string{"korupsi"}, time.Hour)

	require.Len(t, out.Records, 1)
	assert.Equal(t, "https://a.example/good", out.Records[0].URL)
	assert.Len(t, out.Warnings, 2)
	assert.Equal(t, 2, out.Stats.Extracted)
	assert.Equal(t, 1, out.Stats.Enriched)
}

func TestRunCycle_DiscoveryErrorSkipsKeyword(t *testing.T) {
	disc := &fakeDiscovery{
		urls: map[string][]string{
			"kw2": {"https://b.example/1"},
			"kw3": {"https://c.example/1"},
		},
		errs: map[string]error{"kw1": errors.New("quota exceeded")},
	}
	res := fakeResolver{
		"https://b.example/1": testNow.Add(-time.Minute),
		"https://c.example/1": testNow.Add(-time.Minute),
	}
	ext := &fakeExtractor{pages: map[string]*crawler.Article{
		"https://b.example/1": article("Berita B"),
		"https://c.example/1": article("Berita C"),
	}}
	enr := newEnricher(t, map[string]string{
		"Berita B": enrichJSON("b"),
		"Berita C": enrichJSON("c"),
	})

	out := newTestEngine(disc, res, ext, enr, 3).RunCycle(context.Background(), []string{"kw1", "kw2", "kw3"}, time.Hour)

	require.Len(t, out.Records, 2)
	// 并发处理后仍按关键词顺序输出
	assert.Equal(t, "kw2", out.Records[0].Keyword)
	assert.Equal(t, "kw3", out.Records[1].Keyword)
	require.Len(t, out.Warnings, 1)
	assert.Contains(t, out.Warnings[0], "quota exceeded")
	assert.Equal(t, 3, out.Stats.Keywords)
}

func TestRunCycle_CanceledContext(t *testing.T) {
	disc := &fakeDiscovery{urls: map[string][]string{"kw": {"https://a.example/1"}}}
	res := fakeResolver{"https://a.example/1": testNow.Add(-time.Minute)}
	ext := &fakeExtractor{pages: map[string]*crawler.Article{"https://a.example/1": article("X")}}
	enr := newEnricher(t, map[string]string{"X": enrichJSON("x")})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out := newTestEngine(disc, res, ext, enr, 1).RunCycle(ctx, []string{"kw"}, time.Hour)
	assert.Empty(t, out.Records)
	assert.Empty(t, ext.seen)
	assert.Len(t, out.Warnings, 1)
}

func TestNew_DefaultWorkers(t *testing.T) {
	e := New(nil, nil, nil, nil, 0)
	assert.Equal(t, 1, e.workers)
	var _ Enricher = (*agent.Enricher)(nil)
	var _ Extractor = (*crawler.Extractor)(nil)
	var _ Resolver = (*crawler.Resolver)(nil)
	var _ Discoverer = (*crawler.Discovery)(nil)
}
