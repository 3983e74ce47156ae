package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// 调度间隔的允许范围（小时）
const (
	MinIntervalHours = 1
	MaxIntervalHours = 24
)

// Config 项目配置结构体
type Config struct {
	LLM         LLMConfig         `yaml:"llm"`
	Search      SearchConfig      `yaml:"search"`
	Crawler     CrawlerConfig     `yaml:"crawler"`
	Agent       AgentConfig       `yaml:"agent"`
	Schedule    ScheduleConfig    `yaml:"schedule"`
	Log         LogConfig         `yaml:"log"`
	Concurrency ConcurrencyConfig `yaml:"concurrency"`
	Server      ServerConfig      `yaml:"server"`
	Export      ExportConfig      `yaml:"export"`
}

// LLMConfig LLM 相关配置
type LLMConfig struct {
	Provider string `yaml:"provider"` // openai or gemini
	BaseURL  string `yaml:"base_url"`
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
}

// SearchConfig 搜索相关配置
type SearchConfig struct {
	Provider     string        `yaml:"provider"`
	Tavily       TavilyConfig  `yaml:"tavily"`
	SearXNG      SearXNGConfig `yaml:"searxng"`
	Google       GoogleConfig  `yaml:"google"`
	MaxResults   int           `yaml:"max_results"`
	Language     string        `yaml:"language"`
	Unique       *bool         `yaml:"unique"`
	DelaySeconds float64       `yaml:"delay_seconds"`
}

// TavilyConfig Tavily 配置
type TavilyConfig struct {
	APIKey string `yaml:"api_key"`
}

// SearXNGConfig SearXNG 配置
type SearXNGConfig struct {
	BaseURL string `yaml:"base_url"`
	Timeout int    `yaml:"timeout"`
}

// GoogleConfig Google Programmable Search 配置
type GoogleConfig struct {
	APIKey string `yaml:"api_key"`
	CX     string `yaml:"cx"`
}

// CrawlerConfig 网页抓取配置，超时单位为秒
type CrawlerConfig struct {
	UserAgent          string `yaml:"user_agent"`
	ResolveTimeout     int    `yaml:"resolve_timeout"`
	FetchTimeout       int    `yaml:"fetch_timeout"`
	InsecureSkipVerify *bool  `yaml:"insecure_skip_verify"`
	MinContentChars    int    `yaml:"min_content_chars"`
}

// AgentConfig LLM 调用相关配置
type AgentConfig struct {
	MaxContentChars int `yaml:"max_content_chars"`
	CacheSize       int `yaml:"cache_size"`
	MaxRetries      int `yaml:"max_retries"`
}

// ScheduleConfig 调度配置
type ScheduleConfig struct {
	Keywords       []string `yaml:"keywords"`
	IntervalHours  int      `yaml:"interval_hours"`
	FreshnessHours int      `yaml:"freshness_hours"` // 0 表示与调度间隔一致
	Autostart      bool     `yaml:"autostart"`
}

// LogConfig 日志相关配置
type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// ConcurrencyConfig 并发控制配置
type ConcurrencyConfig struct {
	QPS      int `yaml:"qps"`
	RPM      int `yaml:"rpm"`
	Keywords int `yaml:"keywords"`
}

// ServerConfig HTTP 控制接口配置
type ServerConfig struct {
	Addr    string `yaml:"addr"`
	Timeout string `yaml:"timeout"`
}

// ExportConfig 导出配置
type ExportConfig struct {
	Dir string `yaml:"dir"`
}

// LoadConfig 从指定路径加载配置
// 加载前会读取当前目录的 .env，配置中的 ${VAR} 会被环境变量替换
func LoadConfig(path string) (*Config, error) {
	// .env 不存在时忽略
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	return Parse(data)
}

// Parse 解析 YAML 配置内容，填充默认值并校验
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config failed: %w", err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyDefaults 填充未设置的配置项
func (c *Config) ApplyDefaults() {
	if c.LLM.Provider == "" {
		c.LLM.Provider = "openai"
	}
	if c.Search.MaxResults <= 0 {
		c.Search.MaxResults = 100
	}
	if c.Search.Language == "" {
		c.Search.Language = "id"
	}
	if c.Search.Unique == nil {
		c.Search.Unique = boolPtr(true)
	}
	if c.Search.DelaySeconds <= 0 {
		c.Search.DelaySeconds = 5
	}
	if c.Crawler.UserAgent == "" {
		c.Crawler.UserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	}
	if c.Crawler.ResolveTimeout <= 0 {
		c.Crawler.ResolveTimeout = 10
	}
	if c.Crawler.FetchTimeout <= 0 {
		c.Crawler.FetchTimeout = 15
	}
	if c.Crawler.InsecureSkipVerify == nil {
		c.Crawler.InsecureSkipVerify = boolPtr(true)
	}
	if c.Crawler.MinContentChars <= 0 {
		c.Crawler.MinContentChars = 100
	}
	if c.Agent.MaxContentChars <= 0 {
		c.Agent.MaxContentChars = 6000
	}
	if c.Agent.CacheSize <= 0 {
		c.Agent.CacheSize = 1024
	}
	if c.Agent.MaxRetries < 0 {
		c.Agent.MaxRetries = 0
	} else if c.Agent.MaxRetries == 0 {
		c.Agent.MaxRetries = 3
	}
	if c.Schedule.IntervalHours == 0 {
		c.Schedule.IntervalHours = MinIntervalHours
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Concurrency.RPM <= 0 {
		c.Concurrency.RPM = 60
	}
	if c.Concurrency.QPS <= 0 {
		c.Concurrency.QPS = 1
	}
	if c.Concurrency.Keywords <= 0 {
		c.Concurrency.Keywords = 1
	}
	if c.Server.Addr == "" {
		c.Server.Addr = "0.0.0.0:8000"
	}
	if c.Server.Timeout == "" {
		// 导出大数据集时 kratos 默认的 1s 不够
		c.Server.Timeout = "30s"
	}
	if c.Export.Dir == "" {
		c.Export.Dir = "output"
	}
}

// Validate 校验配置
func (c *Config) Validate() error {
	var errs []error
	if c.Schedule.IntervalHours < MinIntervalHours || c.Schedule.IntervalHours > MaxIntervalHours {
		errs = append(errs, fmt.Errorf("schedule.interval_hours must be within %d-%d, got %d",
			MinIntervalHours, MaxIntervalHours, c.Schedule.IntervalHours))
	}
	if c.Schedule.FreshnessHours < 0 {
		errs = append(errs, fmt.Errorf("schedule.freshness_hours must not be negative"))
	}
	switch strings.ToLower(c.LLM.Provider) {
	case "openai", "gemini":
	default:
		errs = append(errs, fmt.Errorf("unknown llm provider: %s", c.LLM.Provider))
	}
	if c.Server.Timeout != "" {
		if _, err := time.ParseDuration(c.Server.Timeout); err != nil {
			errs = append(errs, fmt.Errorf("server.timeout: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Interval 调度间隔
func (c *Config) Interval() time.Duration {
	return time.Duration(c.Schedule.IntervalHours) * time.Hour
}

// FreshnessWindow 文章新鲜度窗口，未设置时等于调度间隔
func (c *Config) FreshnessWindow() time.Duration {
	if c.Schedule.FreshnessHours > 0 {
		return time.Duration(c.Schedule.FreshnessHours) * time.Hour
	}
	return 0
}

// SearchDelay 两次搜索请求之间的最小间隔
func (c *Config) SearchDelay() time.Duration {
	return time.Duration(c.Search.DelaySeconds * float64(time.Second))
}

func boolPtr(b bool) *bool {
	return &b
}
