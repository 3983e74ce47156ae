package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"github.com/iWorld-y/news_crawler/internal/config"
	"github.com/iWorld-y/news_crawler/internal/engine"
	"github.com/iWorld-y/news_crawler/internal/export"
	"github.com/iWorld-y/news_crawler/internal/logger"
	"github.com/iWorld-y/news_crawler/internal/model"
	"github.com/iWorld-y/news_crawler/internal/scheduler"
)

func onceCMD() *cobra.Command {
	var cfgPath, outDir string
	var keywords []string
	var once = &cobra.Command{
		Use:   "once",
		Short: "Run a single crawl cycle and export the results",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(cmd.OutOrStdout(), cfgPath, keywords, outDir)
		},
	}
	once.Flags().StringVarP(&cfgPath, "conf", "c", "configs/config.yaml", "config path")
	once.Flags().StringSliceVarP(&keywords, "keyword", "k", nil, "keyword to crawl, repeatable (default: schedule.keywords)")
	once.Flags().StringVarP(&outDir, "out", "o", "", "export directory (default: export.dir)")
	return once
}

func runOnce(w io.Writer, cfgPath string, keywords []string, outDir string) error {
	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		return fmt.Errorf("加载配置失败: %w", err)
	}
	if err := logger.InitLogger(cfg.Log.Level, cfg.Log.File); err != nil {
		return fmt.Errorf("初始化日志失败: %w", err)
	}
	if len(keywords) == 0 {
		keywords = cfg.Schedule.Keywords
	}
	if outDir == "" {
		outDir = cfg.Export.Dir
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	eng, reporter, err := engine.Build(ctx, cfg)
	if err != nil {
		return err
	}
	state, err := scheduler.NewAppState(keywords, cfg.Interval(), cfg.FreshnessWindow())
	if err != nil {
		return err
	}
	if len(state.Keywords()) == 0 {
		return scheduler.ErrNoKeywords
	}

	sched := scheduler.New(state, eng, reporter)
	summary, err := sched.RunOnce(ctx)
	if err != nil {
		return err
	}

	records := state.Store().Snapshot().Records()
	now := time.Now()
	xlsxPath, reportPath, err := export.SaveFiles(outDir, now, records, state.Report())
	if err != nil {
		return fmt.Errorf("导出失败: %w", err)
	}

	printTable(w, records)
	fmt.Fprintf(w, "\n新增 %d 条, 警告 %d 条\n", summary.Added, len(summary.Warnings))
	fmt.Fprintf(w, "表格: %s\n", xlsxPath)
	if reportPath != "" {
		fmt.Fprintf(w, "报告: %s\n", reportPath)
	}
	return nil
}

var tableWidths = []int{3, 18, 14, 9, 50}

func printTable(w io.Writer, records []model.ArticleRecord) {
	row := func(cols ...string) {
		cells := make([]string, len(cols))
		for i, c := range cols {
			cells[i] = runewidth.FillRight(runewidth.Truncate(c, tableWidths[i], "…"), tableWidths[i])
		}
		fmt.Fprintln(w, strings.TrimRight(strings.Join(cells, "  "), " "))
	}

	row("#", "Keyword", "Category", "Sentiment", "Title")
	for i, r := range records {
		row(fmt.Sprint(i+1), r.Keyword, r.Category, r.Sentiment, r.Title)
	}
}
