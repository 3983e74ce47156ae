package server

import (
	"context"
	"fmt"
	"net/url"
	"time"

	kerrors "github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/middleware/logging"
	"github.com/go-kratos/kratos/v2/middleware/recovery"
	"github.com/go-kratos/kratos/v2/transport/http"

	"github.com/iWorld-y/news_crawler/internal/config"
	"github.com/iWorld-y/news_crawler/internal/metrics"
	"github.com/iWorld-y/news_crawler/internal/service"
)

const (
	OperationGetStatus     = "/news_crawler.v1.Crawler/GetStatus"
	OperationListKeywords  = "/news_crawler.v1.Crawler/ListKeywords"
	OperationAddKeyword    = "/news_crawler.v1.Crawler/AddKeyword"
	OperationRemoveKeyword = "/news_crawler.v1.Crawler/RemoveKeyword"
	OperationSetInterval   = "/news_crawler.v1.Crawler/SetInterval"
	OperationStart         = "/news_crawler.v1.Crawler/Start"
	OperationStop          = "/news_crawler.v1.Crawler/Stop"
	OperationRunNow        = "/news_crawler.v1.Crawler/RunNow"
	OperationReset         = "/news_crawler.v1.Crawler/Reset"
	OperationListRecords   = "/news_crawler.v1.Crawler/ListRecords"
	OperationGetReport     = "/news_crawler.v1.Crawler/GetReport"
	OperationExportXLSX    = "/news_crawler.v1.Crawler/ExportXLSX"
	OperationExportReport  = "/news_crawler.v1.Crawler/ExportReport"
)

// NewHTTPServer 创建控制接口的 HTTP 服务
func NewHTTPServer(c config.ServerConfig, s *service.CrawlerService, logger log.Logger) *http.Server {
	var opts = []http.ServerOption{
		http.Middleware(
			recovery.Recovery(),
			logging.Server(logger),
		),
	}
	if c.Addr != "" {
		opts = append(opts, http.Address(c.Addr))
	}
	if c.Timeout != "" {
		if d, err := time.ParseDuration(c.Timeout); err == nil {
			opts = append(opts, http.Timeout(d))
		}
	}

	srv := http.NewServer(opts...)
	RegisterCrawlerHTTPServer(srv, s)
	srv.Handle("/metrics", metrics.Handler())
	return srv
}

// RegisterCrawlerHTTPServer 注册 /api 路由
func RegisterCrawlerHTTPServer(srv *http.Server, s *service.CrawlerService) {
	r := srv.Route("/")
	r.GET("/api/status", handle(OperationGetStatus, s.GetStatus, nil))
	r.GET("/api/keywords", handle(OperationListKeywords, s.ListKeywords, nil))
	r.POST("/api/keywords", handle(OperationAddKeyword, s.AddKeyword, bindBody[service.KeywordRequest]))
	r.DELETE("/api/keywords/{keyword}", handle(OperationRemoveKeyword, s.RemoveKeyword, bindKeywordVar))
	r.PUT("/api/interval", handle(OperationSetInterval, s.SetInterval, bindBody[service.IntervalRequest]))
	r.POST("/api/start", handle(OperationStart, s.Start, nil))
	r.POST("/api/stop", handle(OperationStop, s.Stop, nil))
	r.POST("/api/run", handleStatus(202, OperationRunNow, s.RunNow, nil))
	r.POST("/api/reset", handle(OperationReset, s.Reset, nil))
	r.GET("/api/records", handle(OperationListRecords, s.ListRecords, nil))
	r.GET("/api/report", handle(OperationGetReport, s.GetReport, nil))
	r.GET("/api/export/xlsx", download(OperationExportXLSX, s.ExportXLSX))
	r.GET("/api/export/report", download(OperationExportReport, s.ExportReport))
}

type binder[Req any] func(ctx http.Context, req *Req) error

func bindBody[Req any](ctx http.Context, req *Req) error {
	return ctx.Bind(req)
}

func bindKeywordVar(ctx http.Context, req *service.KeywordRequest) error {
	kw, err := url.PathUnescape(ctx.Vars().Get("keyword"))
	if err != nil {
		return kerrors.BadRequest("INVALID_KEYWORD", err.Error())
	}
	req.Keyword = kw
	return nil
}

func handle[Req, Reply any](operation string, fn func(context.Context, *Req) (*Reply, error), bind binder[Req]) http.HandlerFunc {
	return handleStatus(200, operation, fn, bind)
}

// handleStatus 参照 protoc-gen-go-http 生成代码的写法，让请求经过服务端中间件
func handleStatus[Req, Reply any](code int, operation string, fn func(context.Context, *Req) (*Reply, error), bind binder[Req]) http.HandlerFunc {
	return func(ctx http.Context) error {
		var in Req
		if bind != nil {
			if err := bind(ctx, &in); err != nil {
				return err
			}
		}
		http.SetOperation(ctx, operation)
		h := ctx.Middleware(func(ctx context.Context, req interface{}) (interface{}, error) {
			return fn(ctx, req.(*Req))
		})
		out, err := h(ctx, &in)
		if err != nil {
			return err
		}
		return ctx.Result(code, out.(*Reply))
	}
}

func download(operation string, fn func(context.Context, *service.Empty) (*service.File, error)) http.HandlerFunc {
	return func(ctx http.Context) error {
		http.SetOperation(ctx, operation)
		h := ctx.Middleware(func(ctx context.Context, req interface{}) (interface{}, error) {
			return fn(ctx, req.(*service.Empty))
		})
		out, err := h(ctx, &service.Empty{})
		if err != nil {
			return err
		}
		f := out.(*service.File)
		ctx.Response().Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", f.Name))
		return ctx.Blob(200, f.ContentType, f.Data)
	}
}
