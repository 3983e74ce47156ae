package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iWorld-y/news_crawler/internal/engine"
	"github.com/iWorld-y/news_crawler/internal/model"
	"github.com/iWorld-y/news_crawler/internal/store"
)

type fakePipeline struct {
	mu       sync.Mutex
	results  []engine.CycleResult
	calls    int
	keywords [][]string
	windows  []time.Duration
	panicMsg string
	called   chan struct{}
	release  chan struct{}
}

func (p *fakePipeline) RunCycle(_ context.Context, keywords []string, window time.Duration) engine.CycleResult {
	p.mu.Lock()
	i := p.calls
	p.calls++
	p.keywords = append(p.keywords, keywords)
	p.windows = append(p.windows, window)
	p.mu.Unlock()

	if p.called != nil {
		select {
		case p.called <- struct{}{}:
		default:
		}
	}
	if p.release != nil {
		<-p.release
	}
	if p.panicMsg != "" {
		panic(p.panicMsg)
	}
	if len(p.results) == 0 {
		return engine.CycleResult{ID: "empty"}
	}
	if i >= len(p.results) {
		i = len(p.results) - 1
	}
	return p.results[i]
}

func (p *fakePipeline) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

type fakeReporter struct {
	mu    sync.Mutex
	texts []string
	err   error
	calls int
	sizes []int
}

func (r *fakeReporter) Synthesize(_ context.Context, ds store.Dataset) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	r.sizes = append(r.sizes, ds.Len())
	if r.err != nil {
		return "", r.err
	}
	return r.texts[(r.calls-1)%len(r.texts)], nil
}

func record(url, summary string) model.ArticleRecord {
	return model.ArticleRecord{Keyword: "banjir jakarta", URL: url, Summary: summary, Category: "Environment", Sentiment: "Negative"}
}

func newState(t *testing.T, keywords ...string) *AppState {
	t.Helper()
	st, err := NewAppState(keywords, time.Hour, 0)
	require.NoError(t, err)
	return st
}

func TestAppState_Keywords(t *testing.T) {
	st := newState(t, "banjir jakarta", " korupsi BUMN ", "banjir jakarta")
	assert.Equal(t, []string{"banjir jakarta", "korupsi BUMN"}, st.Keywords())

	assert.ErrorIs(t, st.AddKeyword("korupsi BUMN"), ErrDuplicateKeyword)
	assert.ErrorIs(t, st.AddKeyword("   "), ErrEmptyKeyword)
	require.NoError(t, st.AddKeyword("harga minyak"))

	require.NoError(t, st.RemoveKeyword("banjir jakarta"))
	assert.ErrorIs(t, st.RemoveKeyword("banjir jakarta"), ErrUnknownKeyword)
	assert.Equal(t, []string{"korupsi BUMN", "harga minyak"}, st.Keywords())

	kws := st.Keywords()
	kws[0] = "mutated"
	assert.Equal(t, "korupsi BUMN", st.Keywords()[0])
}

func TestAppState_Interval(t *testing.T) {
	_, err := NewAppState(nil, 0, 0)
	assert.ErrorIs(t, err, ErrIntervalOutOfRange)

	st := newState(t)
	assert.ErrorIs(t, st.SetInterval(25*time.Hour), ErrIntervalOutOfRange)
	assert.ErrorIs(t, st.SetInterval(30*time.Minute), ErrIntervalOutOfRange)
	require.NoError(t, st.SetInterval(24*time.Hour))
	assert.Equal(t, 24*time.Hour, st.Interval())
	assert.Equal(t, 24*time.Hour, st.Window())

	st2, err := NewAppState(nil, 2*time.Hour, 6*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 6*time.Hour, st2.Window())
}

func TestStart_NoKeywords(t *testing.T) {
	s := New(newState(t), &fakePipeline{}, nil)
	assert.ErrorIs(t, s.Start(context.Background()), ErrNoKeywords)
	assert.Equal(t, Idle, s.Status().State)
}

func TestRunOnce_TwoCyclesSecondWins(t *testing.T) {
	p := &fakePipeline{results: []engine.CycleResult{
		{ID: "c1", Records: []model.ArticleRecord{record("https://a", "first"), record("https://b", "b")}},
		{ID: "c2", Records: []model.ArticleRecord{record("https://a", "second")}},
	}}
	r := &fakeReporter{texts: []string{"report-1", "report-2"}}
	st := newState(t, "banjir jakarta")
	s := New(st, p, r)
	clock := time.Date(2024, 10, 14, 9, 0, 0, 0, time.Local)
	s.now = func() time.Time { return clock }

	sum, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Added)
	assert.True(t, sum.ReportUpdated)

	clock = clock.Add(time.Hour)
	sum, err = s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, sum.Added)
	assert.Equal(t, 1, sum.Replaced)

	ds := st.Store().Snapshot()
	require.Equal(t, 2, ds.Len())
	got, _ := ds.Get("https://a")
	assert.Equal(t, "second", got.Summary)

	assert.Equal(t, "report-2", st.Report().Text)
	assert.Equal(t, 2, st.Report().RecordCount)
	assert.Equal(t, []int{2, 2}, r.sizes)
	assert.Equal(t, clock, st.LastRun())
	assert.Equal(t, "c2", st.LastCycle().ID)
	assert.Equal(t, []time.Duration{time.Hour, time.Hour}, p.windows)
}

func TestRunOnce_ReportFailureKeepsPrior(t *testing.T) {
	p := &fakePipeline{results: []engine.CycleResult{{Records: []model.ArticleRecord{record("https://a", "x")}}}}
	r := &fakeReporter{texts: []string{"prior"}}
	st := newState(t, "kw")
	s := New(st, p, r)

	_, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, "prior", st.Report().Text)

	r.err = errors.New("model unavailable")
	sum, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.False(t, sum.ReportUpdated)
	assert.Contains(t, sum.ReportError, "model unavailable")
	assert.Equal(t, "prior", st.Report().Text)
}

func TestRunOnce_NoRecordsSkipsReport(t *testing.T) {
	r := &fakeReporter{texts: []string{"x"}}
	st := newState(t, "kw")
	s := New(st, &fakePipeline{}, r)

	_, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, r.calls)
	assert.True(t, st.Report().IsZero())
	assert.False(t, st.LastRun().IsZero())
}

func TestRunOnce_Panic(t *testing.T) {
	st := newState(t, "kw")
	s := New(st, &fakePipeline{panicMsg: "corrupted"}, nil)

	_, err := s.RunOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "corrupted")
	assert.Contains(t, s.Status().LastError, "corrupted")
}

func TestLoop_StartStop(t *testing.T) {
	p := &fakePipeline{called: make(chan struct{}, 1)}
	st := newState(t, "kw")
	s := New(st, p, nil)

	require.NoError(t, s.Start(context.Background()))
	assert.ErrorIs(t, s.Start(context.Background()), ErrAlreadyRunning)

	select {
	case <-p.called:
	case <-time.After(2 * time.Second):
		t.Fatal("cycle did not run")
	}

	require.Eventually(t, func() bool { return s.Status().LastRun != nil }, 2*time.Second, 10*time.Millisecond)
	status := s.Status()
	assert.Equal(t, Running, status.State)
	require.NotNil(t, status.NextRun)
	assert.Equal(t, NextRun(*status.LastRun, time.Hour), *status.NextRun)

	s.Stop()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Wait(ctx))
	assert.Equal(t, Idle, s.Status().State)
	assert.Nil(t, s.Status().NextRun)
	assert.Equal(t, 1, p.Calls())

	// 可以再次启动；上次运行未超过间隔，不会立即执行
	require.NoError(t, s.Start(context.Background()))
	time.Sleep(50 * time.Millisecond)
	s.Stop()
	require.NoError(t, s.Wait(ctx))
	assert.Equal(t, 1, p.Calls())
}

func TestLoop_RestartDuringCycleDoesNotRerun(t *testing.T) {
	p := &fakePipeline{called: make(chan struct{}, 1), release: make(chan struct{})}
	st := newState(t, "kw")
	s := New(st, p, nil)

	require.NoError(t, s.Start(context.Background()))
	select {
	case <-p.called:
	case <-time.After(2 * time.Second):
		t.Fatal("cycle did not run")
	}

	// 周期还在执行时停止并重新启动
	s.Stop()
	require.NoError(t, s.Start(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, s.Wait(ctx), context.DeadlineExceeded, "Wait must cover the stopped loop's cycle")

	close(p.release)
	require.Eventually(t, func() bool { return s.Status().LastRun != nil }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, 1, p.Calls())

	s.Stop()
	waitCtx, waitCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer waitCancel()
	require.NoError(t, s.Wait(waitCtx))
	assert.Equal(t, 1, p.Calls())
}

func TestLoop_RunsWhenIntervalElapsed(t *testing.T) {
	p := &fakePipeline{called: make(chan struct{}, 1)}
	st := newState(t, "kw")
	s := New(st, p, nil)

	_, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	<-p.called

	// 时钟拨到两小时后
	later := time.Now().Add(2 * time.Hour)
	s.now = func() time.Time { return later }

	require.NoError(t, s.Start(context.Background()))
	select {
	case <-p.called:
	case <-time.After(2 * time.Second):
		t.Fatal("cycle did not run")
	}
	s.Stop()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Wait(ctx))
	assert.Equal(t, 2, p.Calls())
}

func TestLoop_PanicHalts(t *testing.T) {
	st := newState(t, "kw")
	s := New(st, &fakePipeline{panicMsg: "boom"}, nil)

	require.NoError(t, s.Start(context.Background()))
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Wait(ctx))

	status := s.Status()
	assert.Equal(t, Idle, status.State)
	assert.Contains(t, status.LastError, "boom")

	// 需要显式重新启动
	s.pipeline = &fakePipeline{}
	require.NoError(t, s.Start(context.Background()))
	assert.Empty(t, s.Status().LastError)
	s.Stop()
	require.NoError(t, s.Wait(ctx))
}

func TestSetInterval_WakesLoop(t *testing.T) {
	st := newState(t, "kw")
	s := New(st, &fakePipeline{}, nil)
	assert.ErrorIs(t, s.SetInterval(0), ErrIntervalOutOfRange)
	require.NoError(t, s.SetInterval(3*time.Hour))
	assert.Len(t, s.wake, 1)
	require.NoError(t, s.SetInterval(4*time.Hour))
	assert.Len(t, s.wake, 1)
	assert.Equal(t, 4, s.Status().Interval)
}

func TestReset(t *testing.T) {
	p := &fakePipeline{results: []engine.CycleResult{{Records: []model.ArticleRecord{record("https://a", "x")}}}}
	st := newState(t, "kw")
	s := New(st, p, &fakeReporter{texts: []string{"r"}})

	_, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	s.Reset()
	assert.Zero(t, st.Store().Len())
	assert.True(t, st.Report().IsZero())
}

func TestNextRun(t *testing.T) {
	last := time.Date(2024, 10, 14, 9, 0, 0, 0, time.Local)
	assert.Equal(t, last.Add(6*time.Hour), NextRun(last, 6*time.Hour))
}
