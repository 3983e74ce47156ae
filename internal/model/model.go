package model

import (
	"strings"
	"time"
)

// PublishDateLayout 发布时间的展示格式
const PublishDateLayout = "2006-01-02 15:04:05"

// UnknownPublishDate 发布时间未知时的占位值
const UnknownPublishDate = "Unknown"

// CandidateURL 搜索得到的候选链接，仅在单次抓取周期内存在
type CandidateURL struct {
	Keyword     string
	URL         string
	PublishTime *time.Time
}

// PublishDate 格式化后的发布时间
func (c CandidateURL) PublishDate() string {
	if c.PublishTime == nil {
		return UnknownPublishDate
	}
	return c.PublishTime.Format(PublishDateLayout)
}

// ArticleRecord 经过抽取和 LLM 分析后的文章记录，URL 为唯一键
type ArticleRecord struct {
	Keyword        string `json:"keyword"`
	Title          string `json:"title"`
	URL            string `json:"url"`
	PublishDate    string `json:"publish_date"`
	Location       string `json:"location"`
	Summary        string `json:"summary"`
	Category       string `json:"category"`
	Sentiment      string `json:"sentiment"`
	Recommendation string `json:"recommendation"`
}

// Enrichment LLM 返回的结构化分析结果
type Enrichment struct {
	Summary        string `json:"summary"`
	Category       string `json:"category"`
	Location       string `json:"location"`
	Sentiment      string `json:"sentiment"`
	Recommendation string `json:"recommendation"`
}

// Report 基于当前数据集生成的综合报告
type Report struct {
	Text        string    `json:"text"`
	GeneratedAt time.Time `json:"generated_at"`
	RecordCount int       `json:"record_count"`
}

// IsZero 是否尚未生成报告
func (r Report) IsZero() bool {
	return r.Text == "" && r.GeneratedAt.IsZero()
}

// Categories 允许的新闻分类
var Categories = []string{
	"Fraud",
	"Politics",
	"Corruption",
	"Oil and Gas",
	"Economy",
	"Environment",
	"Public Policy",
	"Government",
	"Corporate",
	"Criminal",
	"Energy",
	"Technology",
}

// Sentiments 允许的情感倾向
var Sentiments = []string{"Positive", "Negative", "Neutral"}

// 模型按印尼语作答时常见的分类写法
var categoryAliases = map[string]string{
	"penipuan":         "Fraud",
	"politik":          "Politics",
	"korupsi":          "Corruption",
	"migas":            "Oil and Gas",
	"minyak dan gas":   "Oil and Gas",
	"oil & gas":        "Oil and Gas",
	"ekonomi":          "Economy",
	"lingkungan":       "Environment",
	"lingkungan hidup": "Environment",
	"kebijakan publik": "Public Policy",
	"pemerintah":       "Government",
	"pemerintahan":     "Government",
	"korporasi":        "Corporate",
	"perusahaan":       "Corporate",
	"kriminal":         "Criminal",
	"kejahatan":        "Criminal",
	"energi":           "Energy",
	"teknologi":        "Technology",
}

var sentimentAliases = map[string]string{
	"positif": "Positive",
	"negatif": "Negative",
	"netral":  "Neutral",
}

// CanonicalCategory 忽略大小写匹配分类（含印尼语写法），返回标准写法
func CanonicalCategory(s string) (string, bool) {
	return canonical(Categories, categoryAliases, s)
}

// CanonicalSentiment 忽略大小写匹配情感倾向（含印尼语写法），返回标准写法
func CanonicalSentiment(s string) (string, bool) {
	return canonical(Sentiments, sentimentAliases, s)
}

func canonical(set []string, aliases map[string]string, s string) (string, bool) {
	s = strings.Join(strings.Fields(s), " ")
	for _, v := range set {
		if strings.EqualFold(v, s) {
			return v, true
		}
	}
	if v, ok := aliases[strings.ToLower(s)]; ok {
		return v, true
	}
	return "", false
}
