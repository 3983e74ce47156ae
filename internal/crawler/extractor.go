package crawler

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"

	"github.com/iWorld-y/news_crawler/internal/logger"
)

// 抽取策略名称
const (
	StrategyReadability = "readability"
	StrategyParagraphs  = "paragraphs"
)

// 回退策略拿不到 <title> 时使用的标题
const fallbackTitle = "No Title"

// Article 抽取出的文章标题和正文
type Article struct {
	Title    string
	Text     string
	Strategy string
}

// Extractor 抓取并抽取文章正文
type Extractor struct {
	fetcher  *Fetcher
	timeout  time.Duration
	minChars int
	// primary 主抽取策略，默认 readability
	primary func(body []byte, rawURL string) (*Article, error)
}

// NewExtractor 创建 Extractor，minChars 为正文的最少字符数
func NewExtractor(fetcher *Fetcher, timeout time.Duration, minChars int) *Extractor {
	e := &Extractor{
		fetcher:  fetcher,
		timeout:  timeout,
		minChars: minChars,
	}
	e.primary = e.readability
	return e
}

// Extract 先用 readability 抽取，失败或正文过短时退回到 <p> 段落拼接
func (e *Extractor) Extract(ctx context.Context, rawURL string) (*Article, error) {
	log := logger.Log.WithField("url", rawURL)

	body, fetchErr := e.fetcher.Fetch(ctx, rawURL, e.timeout)
	if fetchErr == nil {
		art, err := e.primary(body, rawURL)
		if err == nil && textLen(art.Text) >= e.minChars {
			return art, nil
		}
		if err != nil {
			log.Debugf("readability 抽取失败，使用回退策略: %v", err)
		} else {
			log.Debugf("readability 正文过短 (%d)，使用回退策略", textLen(art.Text))
		}
	} else {
		log.Debugf("抓取失败，使用回退策略重试: %v", fetchErr)
		// 主策略没有拿到 HTML，回退策略重新抓取一次
		body, fetchErr = e.fetcher.Fetch(ctx, rawURL, e.timeout)
		if fetchErr != nil {
			return nil, fmt.Errorf("fetch %s failed: %w", rawURL, fetchErr)
		}
	}

	art, err := paragraphs(body)
	if err != nil {
		return nil, fmt.Errorf("parse %s failed: %w", rawURL, err)
	}
	if n := textLen(art.Text); n < e.minChars {
		return nil, &ContentTooShortError{URL: rawURL, Length: n, Min: e.minChars}
	}
	return art, nil
}

func (e *Extractor) readability(body []byte, rawURL string) (*Article, error) {
	pageURL, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	article, err := readability.FromReader(bytes.NewReader(body), pageURL)
	if err != nil {
		return nil, err
	}
	return &Article{
		Title:    strings.TrimSpace(article.Title),
		Text:     strings.TrimSpace(article.TextContent),
		Strategy: StrategyReadability,
	}, nil
}

// paragraphs 取 <title> 以及所有 <p> 的可见文本
func paragraphs(body []byte) (*Article, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())
	if title == "" {
		title = fallbackTitle
	}

	var parts []string
	doc.Find("p").Each(func(_ int, s *goquery.Selection) {
		if text := strings.TrimSpace(s.Text()); text != "" {
			parts = append(parts, text)
		}
	})

	return &Article{
		Title:    title,
		Text:     strings.Join(parts, "\n"),
		Strategy: StrategyParagraphs,
	}, nil
}

func textLen(s string) int {
	return utf8.RuneCountInString(strings.TrimSpace(s))
}
