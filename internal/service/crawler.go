package service

import (
	"bytes"
	"context"
	"errors"
	"time"

	kerrors "github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"

	"github.com/iWorld-y/news_crawler/internal/export"
	"github.com/iWorld-y/news_crawler/internal/model"
	"github.com/iWorld-y/news_crawler/internal/scheduler"
)

type Empty struct{}

type KeywordRequest struct {
	Keyword string `json:"keyword"`
}

type KeywordsReply struct {
	Keywords []string `json:"keywords"`
}

type IntervalRequest struct {
	Hours int `json:"hours"`
}

type RunReply struct {
	Accepted bool `json:"accepted"`
}

type RecordsReply struct {
	Total   int                   `json:"total"`
	Records []model.ArticleRecord `json:"records"`
}

// File 导出的文件内容
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// CrawlerService 控制接口，供外部操作调度器
type CrawlerService struct {
	sched *scheduler.Scheduler
	// 启动调度循环和后台周期使用的上下文，不随请求结束而取消
	baseCtx context.Context
	now     func() time.Time
	log     *log.Helper
}

func NewCrawlerService(ctx context.Context, sched *scheduler.Scheduler, logger log.Logger) *CrawlerService {
	return &CrawlerService{
		sched:   sched,
		baseCtx: ctx,
		now:     time.Now,
		log:     log.NewHelper(logger),
	}
}

func (s *CrawlerService) GetStatus(_ context.Context, _ *Empty) (*scheduler.Status, error) {
	st := s.sched.Status()
	return &st, nil
}

func (s *CrawlerService) ListKeywords(_ context.Context, _ *Empty) (*KeywordsReply, error) {
	return &KeywordsReply{Keywords: s.sched.State().Keywords()}, nil
}

func (s *CrawlerService) AddKeyword(_ context.Context, req *KeywordRequest) (*KeywordsReply, error) {
	if err := s.sched.State().AddKeyword(req.Keyword); err != nil {
		return nil, toAPIError(err)
	}
	s.log.Infof("添加关键词: %s", req.Keyword)
	return &KeywordsReply{Keywords: s.sched.State().Keywords()}, nil
}

func (s *CrawlerService) RemoveKeyword(_ context.Context, req *KeywordRequest) (*KeywordsReply, error) {
	if err := s.sched.State().RemoveKeyword(req.Keyword); err != nil {
		return nil, toAPIError(err)
	}
	s.log.Infof("删除关键词: %s", req.Keyword)
	return &KeywordsReply{Keywords: s.sched.State().Keywords()}, nil
}

func (s *CrawlerService) SetInterval(ctx context.Context, req *IntervalRequest) (*scheduler.Status, error) {
	if err := s.sched.SetInterval(time.Duration(req.Hours) * time.Hour); err != nil {
		return nil, toAPIError(err)
	}
	return s.GetStatus(ctx, nil)
}

func (s *CrawlerService) Start(ctx context.Context, _ *Empty) (*scheduler.Status, error) {
	if err := s.sched.Start(s.baseCtx); err != nil {
		return nil, toAPIError(err)
	}
	return s.GetStatus(ctx, nil)
}

func (s *CrawlerService) Stop(ctx context.Context, _ *Empty) (*scheduler.Status, error) {
	s.sched.Stop()
	return s.GetStatus(ctx, nil)
}

// RunNow 在后台立即执行一个周期
func (s *CrawlerService) RunNow(_ context.Context, _ *Empty) (*RunReply, error) {
	if len(s.sched.State().Keywords()) == 0 {
		return nil, toAPIError(scheduler.ErrNoKeywords)
	}
	go func() {
		if _, err := s.sched.RunOnce(s.baseCtx); err != nil {
			s.log.Errorf("手动执行周期失败: %v", err)
		}
	}()
	return &RunReply{Accepted: true}, nil
}

func (s *CrawlerService) Reset(ctx context.Context, _ *Empty) (*scheduler.Status, error) {
	s.sched.Reset()
	s.log.Info("数据集已清空")
	return s.GetStatus(ctx, nil)
}

func (s *CrawlerService) ListRecords(_ context.Context, _ *Empty) (*RecordsReply, error) {
	records := s.sched.State().Store().Snapshot().Records()
	return &RecordsReply{Total: len(records), Records: records}, nil
}

func (s *CrawlerService) GetReport(_ context.Context, _ *Empty) (*model.Report, error) {
	r := s.sched.State().Report()
	if r.IsZero() {
		return nil, kerrors.NotFound("REPORT_NOT_READY", "report has not been generated yet")
	}
	return &r, nil
}

func (s *CrawlerService) ExportXLSX(_ context.Context, _ *Empty) (*File, error) {
	var buf bytes.Buffer
	if err := export.WriteXLSX(&buf, s.sched.State().Store().Snapshot().Records()); err != nil {
		return nil, kerrors.InternalServer("EXPORT_FAILED", err.Error())
	}
	return &File{Name: export.XLSXFileName(s.now()), ContentType: xlsxContentType, Data: buf.Bytes()}, nil
}

func (s *CrawlerService) ExportReport(ctx context.Context, _ *Empty) (*File, error) {
	r, err := s.GetReport(ctx, nil)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := export.WriteReport(&buf, *r); err != nil {
		return nil, kerrors.InternalServer("EXPORT_FAILED", err.Error())
	}
	return &File{Name: export.ReportFileName(s.now()), ContentType: "text/plain; charset=utf-8", Data: buf.Bytes()}, nil
}

func toAPIError(err error) error {
	switch {
	case errors.Is(err, scheduler.ErrNoKeywords):
		return kerrors.BadRequest("NO_KEYWORDS", "please add at least one keyword before starting the crawler")
	case errors.Is(err, scheduler.ErrEmptyKeyword):
		return kerrors.BadRequest("EMPTY_KEYWORD", err.Error())
	case errors.Is(err, scheduler.ErrIntervalOutOfRange):
		return kerrors.BadRequest("INTERVAL_OUT_OF_RANGE", err.Error())
	case errors.Is(err, scheduler.ErrDuplicateKeyword):
		return kerrors.Conflict("DUPLICATE_KEYWORD", err.Error())
	case errors.Is(err, scheduler.ErrAlreadyRunning):
		return kerrors.Conflict("ALREADY_RUNNING", err.Error())
	case errors.Is(err, scheduler.ErrUnknownKeyword):
		return kerrors.NotFound("UNKNOWN_KEYWORD", err.Error())
	default:
		return kerrors.InternalServer("INTERNAL", err.Error())
	}
}
