package scheduler

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/iWorld-y/news_crawler/internal/config"
	"github.com/iWorld-y/news_crawler/internal/model"
	"github.com/iWorld-y/news_crawler/internal/store"
)

var (
	ErrNoKeywords         = errors.New("no keywords configured")
	ErrAlreadyRunning     = errors.New("scheduler is already running")
	ErrEmptyKeyword       = errors.New("keyword is empty")
	ErrDuplicateKeyword   = errors.New("keyword already exists")
	ErrUnknownKeyword     = errors.New("keyword not found")
	ErrIntervalOutOfRange = fmt.Errorf("interval must be within %d-%d hours", config.MinIntervalHours, config.MaxIntervalHours)
)

// AppState 调度器和控制接口共享的运行状态
type AppState struct {
	mu        sync.RWMutex
	keywords  []string
	interval  time.Duration
	freshness time.Duration
	lastRun   time.Time
	running   bool
	report    model.Report
	lastCycle *CycleSummary
	lastError string

	store *store.Store
}

// NewAppState 创建状态。freshness 为 0 时新鲜度窗口等于调度间隔
func NewAppState(keywords []string, interval, freshness time.Duration) (*AppState, error) {
	if err := checkInterval(interval); err != nil {
		return nil, err
	}
	s := &AppState{
		interval:  interval,
		freshness: freshness,
		store:     store.New(),
	}
	for _, kw := range keywords {
		if err := s.AddKeyword(kw); err != nil && !errors.Is(err, ErrDuplicateKeyword) {
			return nil, err
		}
	}
	return s, nil
}

func checkInterval(d time.Duration) error {
	if d < config.MinIntervalHours*time.Hour || d > config.MaxIntervalHours*time.Hour {
		return ErrIntervalOutOfRange
	}
	return nil
}

// Store 累积的数据集
func (s *AppState) Store() *store.Store {
	return s.store
}

// AddKeyword 追加关键词，保持插入顺序
func (s *AppState) AddKeyword(kw string) error {
	kw = strings.TrimSpace(kw)
	if kw == "" {
		return ErrEmptyKeyword
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if slices.Contains(s.keywords, kw) {
		return ErrDuplicateKeyword
	}
	s.keywords = append(s.keywords, kw)
	return nil
}

// RemoveKeyword 删除关键词
func (s *AppState) RemoveKeyword(kw string) error {
	kw = strings.TrimSpace(kw)

	s.mu.Lock()
	defer s.mu.Unlock()
	i := slices.Index(s.keywords, kw)
	if i < 0 {
		return ErrUnknownKeyword
	}
	s.keywords = slices.Delete(s.keywords, i, i+1)
	return nil
}

// Keywords 关键词副本
func (s *AppState) Keywords() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.keywords)
}

// SetInterval 修改调度间隔，范围 1-24 小时
func (s *AppState) SetInterval(d time.Duration) error {
	if err := checkInterval(d); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.interval = d
	return nil
}

func (s *AppState) Interval() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.interval
}

// Window 新鲜度窗口
func (s *AppState) Window() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.freshness > 0 {
		return s.freshness
	}
	return s.interval
}

func (s *AppState) LastRun() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastRun
}

func (s *AppState) Running() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Report 当前报告，尚未生成时为零值
func (s *AppState) Report() model.Report {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.report
}

// LastCycle 最近一次周期的摘要
func (s *AppState) LastCycle() *CycleSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.lastCycle == nil {
		return nil
	}
	c := *s.lastCycle
	c.Warnings = slices.Clone(c.Warnings)
	return &c
}

func (s *AppState) LastError() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastError
}

func (s *AppState) setRunning(running bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = running
	if running {
		s.lastError = ""
	}
}

func (s *AppState) setReport(r model.Report) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.report = r
}

func (s *AppState) finishCycle(start time.Time, summary *CycleSummary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastRun = start
	s.lastCycle = summary
}

// halt 周期内发生不可恢复的错误，停止调度并记录原因
func (s *AppState) halt(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	s.lastError = reason
}

// reset 清空数据集和报告
func (s *AppState) reset() {
	s.store.Reset()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.report = model.Report{}
}
