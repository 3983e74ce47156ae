package crawler

import (
	"bytes"
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/araddon/dateparse"

	"github.com/iWorld-y/news_crawler/internal/logger"
	"github.com/iWorld-y/news_crawler/internal/model"
)

// 发布时间 meta 标签，按优先级排列
var publishMetaSelectors = []string{
	`meta[property="article:published_time"]`,
	`meta[name="pubdate"]`,
	`meta[name="publish-date"]`,
	`meta[name="Date"]`,
	`meta[itemprop="datePublished"]`,
	`meta[property="og:published_time"]`,
}

// Resolver 解析网页的发布时间
type Resolver struct {
	fetcher *Fetcher
	timeout time.Duration
	now     func() time.Time
}

// NewResolver 创建 Resolver
func NewResolver(fetcher *Fetcher, timeout time.Duration) *Resolver {
	return &Resolver{
		fetcher: fetcher,
		timeout: timeout,
		now:     time.Now,
	}
}

// Resolve 抓取页面并尽力解析发布时间。
// 返回的时间去掉了时区，按本地时间解释墙上时间；抓取或解析失败时返回 false，不会向外抛错。
func (r *Resolver) Resolve(ctx context.Context, url string) (t time.Time, ok bool) {
	log := logger.Log.WithField("url", url)
	defer func() {
		if rec := recover(); rec != nil {
			log.Warnf("解析发布时间 panic: %v", rec)
			t, ok = time.Time{}, false
		}
	}()

	body, err := r.fetcher.Fetch(ctx, url, r.timeout)
	if err != nil {
		log.Debugf("抓取页面失败: %v", err)
		return time.Time{}, false
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		log.Debugf("解析 HTML 失败: %v", err)
		return time.Time{}, false
	}

	t, ok = PublishTimeFromDocument(doc, r.now())
	if !ok {
		log.Debug("未找到发布时间")
	}
	return t, ok
}

// PublishTimeFromDocument 依次尝试 meta 标签、time 元素的 datetime 属性、time 元素文本
func PublishTimeFromDocument(doc *goquery.Document, now time.Time) (time.Time, bool) {
	for _, sel := range publishMetaSelectors {
		content, exists := doc.Find(sel).First().Attr("content")
		if !exists || strings.TrimSpace(content) == "" {
			continue
		}
		if t, ok := ParseDate(content, now); ok {
			return t, true
		}
	}

	timeTag := doc.Find("time").First()
	if timeTag.Length() == 0 {
		return time.Time{}, false
	}
	if dt, exists := timeTag.Attr("datetime"); exists && strings.TrimSpace(dt) != "" {
		if t, ok := ParseDate(dt, now); ok {
			return t, true
		}
	}
	return ParseDate(timeTag.Text(), now)
}

var (
	// 月份统一映射为三字母缩写，dateparse 只在缩写月份后接受时间部分
	monthAbbr = map[string]string{
		"januari": "Jan", "februari": "Feb", "maret": "Mar", "april": "Apr",
		"mei": "May", "juni": "Jun", "juli": "Jul", "agustus": "Aug",
		"september": "Sep", "oktober": "Oct", "november": "Nov", "desember": "Dec",
		"agu": "Aug", "agt": "Aug", "okt": "Oct", "des": "Dec", "peb": "Feb",
		"january": "Jan", "february": "Feb", "march": "Mar", "june": "Jun",
		"july": "Jul", "august": "Aug", "october": "Oct", "december": "Dec",
		"sept": "Sep",
	}
	monthPattern      = regexp.MustCompile(`(?i)\b(januari|februari|maret|april|mei|juni|juli|agustus|september|oktober|november|desember|agu|agt|okt|des|peb|january|february|march|june|july|august|october|december|sept)\b`)
	dayPattern        = regexp.MustCompile(`(?i)\b(senin|selasa|rabu|kamis|jumat|jum'at|sabtu|minggu|monday|tuesday|wednesday|thursday|friday|saturday|sunday)\b,?`)
	zonePattern       = regexp.MustCompile(`\b(WIB|WITA|WIT)\b`)
	noisePattern      = regexp.MustCompile(`(?i)\b(pukul|diterbitkan|dipublikasikan|published|updated)\b:?`)
	clockPattern      = regexp.MustCompile(`(\d{4})[\s,|\-]+(\d{1,2})[.:](\d{2})\b`)
	relativePattern   = regexp.MustCompile(`(?i)^(\d+)\s+(detik|menit|jam|hari|minggu|seconds?|minutes?|mins?|hours?|days?|weeks?)\s+(yang\s+lalu|lalu|ago)$`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// NormalizeDateText 把印尼语日期文本转换为 dateparse 可识别的形式，
// 例如 "Jumat, 11 Oktober 2024 - 19.05 WIB" 变为 "11 Oct 2024 19:05"
func NormalizeDateText(s string) string {
	s = strings.TrimSpace(s)
	s = noisePattern.ReplaceAllString(s, " ")
	s = dayPattern.ReplaceAllString(s, " ")
	s = zonePattern.ReplaceAllString(s, " ")
	s = monthPattern.ReplaceAllStringFunc(s, func(m string) string {
		return monthAbbr[strings.ToLower(m)]
	})
	s = whitespacePattern.ReplaceAllString(s, " ")
	s = clockPattern.ReplaceAllString(s, "$1 $2:$3")
	s = strings.ReplaceAll(s, "|", " ")
	s = whitespacePattern.ReplaceAllString(s, " ")
	return strings.Trim(s, " ,-")
}

// ParseDate 解析自然语言日期，返回去掉时区后的本地时间。
// 数字日期按日在前解析（14/10/2024），月份越界时再交换日月重试。
func ParseDate(s string, now time.Time) (time.Time, bool) {
	if t, ok := parseRelative(strings.TrimSpace(s), now); ok {
		return t, true
	}

	s = NormalizeDateText(s)
	if s == "" {
		return time.Time{}, false
	}

	t, err := dateparse.ParseIn(s, time.Local,
		dateparse.PreferMonthFirst(false),
		dateparse.RetryAmbiguousDateWithSwap(true),
	)
	if err != nil {
		return time.Time{}, false
	}
	return toLocalNaive(t), true
}

// parseRelative 处理 "2 jam yang lalu" / "3 hours ago"
func parseRelative(s string, now time.Time) (time.Time, bool) {
	m := relativePattern.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return time.Time{}, false
	}

	var unit time.Duration
	switch u := strings.ToLower(m[2]); {
	case u == "detik" || strings.HasPrefix(u, "second"):
		unit = time.Second
	case u == "menit" || strings.HasPrefix(u, "min"):
		unit = time.Minute
	case u == "jam" || strings.HasPrefix(u, "hour"):
		unit = time.Hour
	case u == "hari" || strings.HasPrefix(u, "day"):
		unit = 24 * time.Hour
	default:
		unit = 7 * 24 * time.Hour
	}
	return toLocalNaive(now.Add(-time.Duration(n) * unit)), true
}

// toLocalNaive 丢弃时区信息，保留墙上时间并按本地时区解释
func toLocalNaive(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.Local)
}

// FilterFresh 丢弃没有发布时间的候选链接，只保留发布时间严格晚于 now-window 的
func FilterFresh(cands []model.CandidateURL, now time.Time, window time.Duration) []model.CandidateURL {
	cutoff := now.Add(-window)
	fresh := make([]model.CandidateURL, 0, len(cands))
	for _, c := range cands {
		if c.PublishTime == nil || !c.PublishTime.After(cutoff) {
			continue
		}
		fresh = append(fresh, c)
	}
	return fresh
}
