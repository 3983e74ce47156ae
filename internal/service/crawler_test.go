package service

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	kerrors "github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iWorld-y/news_crawler/internal/engine"
	"github.com/iWorld-y/news_crawler/internal/model"
	"github.com/iWorld-y/news_crawler/internal/scheduler"
	"github.com/iWorld-y/news_crawler/internal/store"
)

type onePipeline struct{}

func (onePipeline) RunCycle(context.Context, []string, time.Duration) engine.CycleResult {
	return engine.CycleResult{Records: []model.ArticleRecord{{URL: "https://a.example/1", Summary: "s"}}}
}

type fixedReporter string

func (r fixedReporter) Synthesize(context.Context, store.Dataset) (string, error) {
	return string(r), nil
}

func newService(t *testing.T) *CrawlerService {
	t.Helper()
	st, err := scheduler.NewAppState([]string{"banjir jakarta"}, time.Hour, 0)
	require.NoError(t, err)
	sched := scheduler.New(st, onePipeline{}, fixedReporter("## Ringkasan Eksekutif\nisi"))
	svc := NewCrawlerService(context.Background(), sched, log.NewStdLogger(io.Discard))
	svc.now = func() time.Time { return time.Date(2024, 10, 14, 9, 5, 0, 0, time.Local) }
	return svc
}

func TestToAPIError(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{scheduler.ErrNoKeywords, 400},
		{scheduler.ErrEmptyKeyword, 400},
		{scheduler.ErrIntervalOutOfRange, 400},
		{scheduler.ErrDuplicateKeyword, 409},
		{scheduler.ErrAlreadyRunning, 409},
		{scheduler.ErrUnknownKeyword, 404},
		{io.ErrUnexpectedEOF, 500},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.code, int(kerrors.FromError(toAPIError(tt.err)).Code), tt.err.Error())
	}
}

func TestReportAndExport(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	_, err := svc.GetReport(ctx, &Empty{})
	assert.True(t, kerrors.IsNotFound(err))
	_, err = svc.ExportReport(ctx, &Empty{})
	assert.True(t, kerrors.IsNotFound(err))

	_, err = svc.sched.RunOnce(ctx)
	require.NoError(t, err)

	r, err := svc.GetReport(ctx, &Empty{})
	require.NoError(t, err)
	assert.Equal(t, 1, r.RecordCount)

	f, err := svc.ExportReport(ctx, &Empty{})
	require.NoError(t, err)
	assert.Equal(t, "news_report_20241014_0905.txt", f.Name)
	assert.True(t, strings.HasSuffix(string(f.Data), "## Ringkasan Eksekutif\nisi\n"))

	x, err := svc.ExportXLSX(ctx, &Empty{})
	require.NoError(t, err)
	assert.Equal(t, "news_results_20241014_0905.xlsx", x.Name)
	assert.NotEmpty(t, x.Data)
}

func TestKeywordLifecycle(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	reply, err := svc.AddKeyword(ctx, &KeywordRequest{Keyword: "korupsi BUMN"})
	require.NoError(t, err)
	assert.Equal(t, []string{"banjir jakarta", "korupsi BUMN"}, reply.Keywords)

	_, err = svc.AddKeyword(ctx, &KeywordRequest{Keyword: ""})
	assert.True(t, kerrors.IsBadRequest(err))

	reply, err = svc.RemoveKeyword(ctx, &KeywordRequest{Keyword: "banjir jakarta"})
	require.NoError(t, err)
	assert.Equal(t, []string{"korupsi BUMN"}, reply.Keywords)
}
