package main

import (
	"context"
	"fmt"
	"os"

	"github.com/go-kratos/kratos/v2"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/spf13/cobra"

	"github.com/iWorld-y/news_crawler/internal/config"
	"github.com/iWorld-y/news_crawler/internal/engine"
	"github.com/iWorld-y/news_crawler/internal/logger"
	"github.com/iWorld-y/news_crawler/internal/scheduler"
	"github.com/iWorld-y/news_crawler/internal/server"
	"github.com/iWorld-y/news_crawler/internal/service"
)

func serveCMD() *cobra.Command {
	var cfgPath string
	var serve = &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduler and the HTTP control API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cfgPath)
		},
	}
	serve.Flags().StringVarP(&cfgPath, "conf", "c", "configs/config.yaml", "config path, eg: --conf config.yaml")
	return serve
}

func runServe(cfgPath string) error {
	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		return fmt.Errorf("加载配置失败: %w", err)
	}
	if err := logger.InitLogger(cfg.Log.Level, cfg.Log.File); err != nil {
		return fmt.Errorf("初始化日志失败: %w", err)
	}

	// 初始化日志记录器，包含时间戳、调用者信息、服务ID等上下文
	klog := log.With(log.NewStdLogger(os.Stdout),
		"ts", log.DefaultTimestamp,
		"caller", log.DefaultCaller,
		"service.id", id,
		"service.name", Name,
		"service.version", Version,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	eng, reporter, err := engine.Build(ctx, cfg)
	if err != nil {
		return err
	}
	state, err := scheduler.NewAppState(cfg.Schedule.Keywords, cfg.Interval(), cfg.FreshnessWindow())
	if err != nil {
		return err
	}
	sched := scheduler.New(state, eng, reporter)

	svc := service.NewCrawlerService(ctx, sched, klog)
	hs := server.NewHTTPServer(cfg.Server, svc, klog)

	app := kratos.New(
		kratos.ID(id),
		kratos.Name(Name),
		kratos.Version(Version),
		kratos.Metadata(map[string]string{}),
		kratos.Logger(klog),
		kratos.Server(hs),
		kratos.AfterStart(func(context.Context) error {
			if !cfg.Schedule.Autostart {
				return nil
			}
			if err := sched.Start(ctx); err != nil {
				logger.Log.Warnf("自动启动调度器失败: %v", err)
			}
			return nil
		}),
		kratos.BeforeStop(func(stopCtx context.Context) error {
			sched.Stop()
			// 等待正在执行的周期结束，超时后取消
			if err := sched.Wait(stopCtx); err != nil {
				logger.Log.Warnf("等待抓取周期结束超时: %v", err)
			}
			cancel()
			return nil
		}),
	)

	return app.Run()
}
