package scheduler

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/iWorld-y/news_crawler/internal/engine"
	"github.com/iWorld-y/news_crawler/internal/logger"
	"github.com/iWorld-y/news_crawler/internal/metrics"
	"github.com/iWorld-y/news_crawler/internal/model"
	"github.com/iWorld-y/news_crawler/internal/store"
)

// State 调度器状态
type State string

const (
	Idle    State = "idle"
	Running State = "running"
)

// Pipeline 执行一次抓取流水线
type Pipeline interface {
	RunCycle(ctx context.Context, keywords []string, window time.Duration) engine.CycleResult
}

// Synthesizer 基于数据集生成报告
type Synthesizer interface {
	Synthesize(ctx context.Context, ds store.Dataset) (string, error)
}

// CycleSummary 一次周期的结果摘要
type CycleSummary struct {
	ID            string        `json:"id"`
	StartedAt     time.Time     `json:"started_at"`
	Duration      time.Duration `json:"duration"`
	Stats         engine.Stats  `json:"stats"`
	Added         int           `json:"added"`
	Replaced      int           `json:"replaced"`
	Warnings      []string      `json:"warnings"`
	ReportUpdated bool          `json:"report_updated"`
	ReportError   string        `json:"report_error,omitempty"`
}

// Status 对外展示的调度状态
type Status struct {
	State     State         `json:"state"`
	Keywords  []string      `json:"keywords"`
	Interval  int           `json:"interval_hours"`
	Window    int           `json:"freshness_hours"`
	LastRun   *time.Time    `json:"last_run,omitempty"`
	NextRun   *time.Time    `json:"next_run,omitempty"`
	Records   int           `json:"records"`
	LastError string        `json:"last_error,omitempty"`
	LastCycle *CycleSummary `json:"last_cycle,omitempty"`
}

// Scheduler 按间隔循环执行抓取周期。
// Stop 只在两次周期之间生效，正在执行的周期会跑完
type Scheduler struct {
	state    *AppState
	pipeline Pipeline
	reporter Synthesizer
	now      func() time.Time

	mu     sync.Mutex
	stopCh chan struct{}
	done   chan struct{}
	wake   chan struct{}

	// 保证 RunOnce 和循环里的周期不会同时执行
	cycleMu sync.Mutex
}

// New 创建调度器，reporter 为 nil 时不生成报告
func New(state *AppState, pipeline Pipeline, reporter Synthesizer) *Scheduler {
	return &Scheduler{
		state:    state,
		pipeline: pipeline,
		reporter: reporter,
		now:      time.Now,
		wake:     make(chan struct{}, 1),
	}
}

// State 共享状态
func (s *Scheduler) State() *AppState {
	return s.state
}

// Start Idle -> Running。没有关键词时拒绝启动
func (s *Scheduler) Start(ctx context.Context) error {
	if len(s.state.Keywords()) == 0 {
		logger.Log.Warn("没有关键词，拒绝启动调度器")
		return ErrNoKeywords
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopCh != nil {
		return ErrAlreadyRunning
	}

	// 上一个循环可能还在跑周期，新循环等它退出后再开始
	prev := s.done
	stop, done := make(chan struct{}), make(chan struct{})
	s.stopCh, s.done = stop, done
	s.state.setRunning(true)
	logger.Log.Infof("调度器启动，间隔 %s", s.state.Interval())

	go s.loop(ctx, prev, stop, done)
	return nil
}

// Stop Running -> Idle，不等待正在执行的周期
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopCh == nil {
		return
	}
	close(s.stopCh)
	s.stopCh = nil
	s.state.setRunning(false)
	logger.Log.Info("调度器已停止")
}

// Wait 等待循环退出，包括正在执行的周期以及之前被停止的循环
func (s *Scheduler) Wait(ctx context.Context) error {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SetInterval 修改间隔，等待中的循环会按新间隔重新计算下次运行时间
func (s *Scheduler) SetInterval(d time.Duration) error {
	if err := s.state.SetInterval(d); err != nil {
		return err
	}
	select {
	case s.wake <- struct{}{}:
	default:
	}
	return nil
}

// Reset 清空数据集和报告
func (s *Scheduler) Reset() {
	s.cycleMu.Lock()
	defer s.cycleMu.Unlock()
	s.state.reset()
}

// RunOnce 同步执行一个周期。周期内 panic 会转换为错误，并停止调度循环
func (s *Scheduler) RunOnce(ctx context.Context) (summary *CycleSummary, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = s.onPanic(rec)
		}
	}()
	return s.runCycle(ctx), nil
}

// Status 当前状态快照
func (s *Scheduler) Status() Status {
	st := Status{
		State:     Idle,
		Keywords:  s.state.Keywords(),
		Interval:  int(s.state.Interval() / time.Hour),
		Window:    int(s.state.Window() / time.Hour),
		Records:   s.state.Store().Len(),
		LastError: s.state.LastError(),
		LastCycle: s.state.LastCycle(),
	}
	if s.state.Running() {
		st.State = Running
	}
	if last := s.state.LastRun(); !last.IsZero() {
		st.LastRun = &last
		if st.State == Running {
			next := NextRun(last, s.state.Interval())
			st.NextRun = &next
		}
	}
	return st
}

// NextRun 上次运行时间加上间隔
func NextRun(last time.Time, interval time.Duration) time.Time {
	return cron.Every(interval).Next(last)
}

func (s *Scheduler) loop(ctx context.Context, prev <-chan struct{}, stop, done chan struct{}) {
	defer close(done)
	defer func() {
		if rec := recover(); rec != nil {
			_ = s.onPanic(rec)
		}
	}()
	if prev != nil {
		<-prev
	}

	for {
		// 每轮开始前检查是否已停止
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		default:
		}

		s.runIfDue(ctx)

		next := NextRun(s.state.LastRun(), s.state.Interval())
		wait := next.Sub(s.now())
		logger.Log.Infof("下次运行时间: %s", next.Format(model.PublishDateLayout))

		timer := time.NewTimer(wait)
		select {
		case <-stop:
			timer.Stop()
			return
		case <-ctx.Done():
			timer.Stop()
			return
		case <-s.wake:
			timer.Stop()
		case <-timer.C:
		}
	}
}

func (s *Scheduler) runCycle(ctx context.Context) *CycleSummary {
	s.cycleMu.Lock()
	defer s.cycleMu.Unlock()
	return s.cycle(ctx)
}

// runIfDue 持锁后再判断是否到期，避免紧接着另一个周期重复执行
func (s *Scheduler) runIfDue(ctx context.Context) {
	s.cycleMu.Lock()
	defer s.cycleMu.Unlock()

	last := s.state.LastRun()
	if last.IsZero() || !s.now().Before(NextRun(last, s.state.Interval())) {
		s.cycle(ctx)
	}
}

func (s *Scheduler) cycle(ctx context.Context) *CycleSummary {
	start := s.now()
	res := s.pipeline.RunCycle(ctx, s.state.Keywords(), s.state.Window())

	stats := s.state.Store().Upsert(res.Records)
	metrics.ArticlesStored.WithLabelValues("added").Add(float64(stats.Added))
	metrics.ArticlesStored.WithLabelValues("replaced").Add(float64(stats.Replaced))

	summary := &CycleSummary{
		ID:        res.ID,
		StartedAt: start,
		Duration:  res.Duration,
		Stats:     res.Stats,
		Added:     stats.Added,
		Replaced:  stats.Replaced,
		Warnings:  res.Warnings,
	}
	log := logger.Log.WithField("cycle", res.ID)
	log.Infof("写入数据集: 新增 %d, 替换 %d", stats.Added, stats.Replaced)

	if len(res.Records) > 0 && s.reporter != nil {
		ds := s.state.Store().Snapshot()
		text, err := s.reporter.Synthesize(ctx, ds)
		if err != nil {
			log.Warnf("生成报告失败，保留上一份报告: %v", err)
			summary.ReportError = err.Error()
			summary.Warnings = append(summary.Warnings, err.Error())
		} else {
			s.state.setReport(model.Report{Text: text, GeneratedAt: s.now(), RecordCount: ds.Len()})
			summary.ReportUpdated = true
		}
	}

	s.state.finishCycle(start, summary)
	metrics.CyclesTotal.WithLabelValues("ok").Inc()
	return summary
}

func (s *Scheduler) onPanic(rec any) error {
	err := fmt.Errorf("cycle panic: %v", rec)
	logger.Log.Errorf("%v\n%s", err, debug.Stack())
	metrics.CyclesTotal.WithLabelValues("panic").Inc()

	s.mu.Lock()
	if s.stopCh != nil {
		close(s.stopCh)
		s.stopCh = nil
	}
	s.mu.Unlock()
	// 需要显式 Start 才能恢复
	s.state.halt(err.Error())
	return err
}
