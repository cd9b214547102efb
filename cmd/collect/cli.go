package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/LJTian/HeadlineHub/internal/app"
	"github.com/LJTian/HeadlineHub/internal/config"
	"github.com/LJTian/HeadlineHub/internal/scheduler"
	"github.com/LJTian/HeadlineHub/internal/sources"
	"github.com/spf13/cobra"
)

var (
	flagList  string
	flagCache string
	flagMeta  string
	flagMax   int
	flagEvery string
)

var rootCmd = &cobra.Command{
	Use:          "collect",
	Short:        "Aggregate headlines from a source list into the headline cache",
	Long:         "collect reads a source list (feeds, sites, inline headlines, nested lists), fetches and deduplicates headlines, and writes the headline cache and fetch metadata files.",
	SilenceUsage: true,
	RunE:         collectAction,
}

func init() {
	f := rootCmd.Flags()
	f.StringVar(&flagList, "list", "", "source list file (default: SOURCE_LIST)")
	f.StringVar(&flagCache, "cache", "", "headline cache file (default: HEADLINE_CACHE)")
	f.StringVar(&flagMeta, "meta", "", "fetch metadata file (default: FETCH_META)")
	f.IntVar(&flagMax, "max", 0, "maximum headlines kept (default: MAX_HEADLINES)")
	f.StringVar(&flagEvery, "every", "", "run repeatedly at this interval, e.g. 10m")
}

func collectAction(cmd *cobra.Command, _ []string) error {
	interval, err := parseEvery(flagEvery)
	if err != nil {
		return err
	}

	cfg := config.Load()
	applyFlags(cfg)

	a := app.New(cfg)
	defer a.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if interval == 0 {
		return runOnce(ctx, a.Aggregator, cfg.SourceList)
	}
	return watch(ctx, a.Aggregator, cfg.SourceList, interval)
}

func applyFlags(cfg *config.Config) {
	if flagList != "" {
		cfg.SourceList = flagList
	}
	if flagCache != "" {
		cfg.CachePath = flagCache
	}
	if flagMeta != "" {
		cfg.MetaPath = flagMeta
	}
	if flagMax > 0 {
		cfg.MaxHeadlines = flagMax
	}
}

func parseEvery(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("parse --every %q: %w", s, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("--every must be positive, got %s", d)
	}
	return d, nil
}

// runOnce 只有根来源列表不可读时返回错误（进程以非零状态退出），其余错误仅告警
func runOnce(ctx context.Context, r scheduler.Runner, listPath string) error {
	_, err := r.Run(ctx, listPath)
	if err == nil {
		return nil
	}
	if errors.Is(err, sources.ErrSourceList) {
		return err
	}
	log.Printf("warn: %v", err)
	return nil
}

// watch 先立即执行一轮，再按间隔周期执行，直到 ctx 被取消；任何错误都不会退出。
// 包括首轮在内，ctx 取消会中断进行中的聚合。
func watch(ctx context.Context, r scheduler.Runner, listPath string, interval time.Duration) error {
	s, err := scheduler.New(ctx, "@every "+interval.String(), r, listPath)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	if err := s.RunOnce(); err != nil {
		log.Printf("collect job error: %v", err)
	}
	s.Start(0)
	log.Printf("collect: running every %s, press Ctrl+C to exit", interval)

	<-ctx.Done()
	<-s.Stop().Done()
	log.Println("collect: stopped")
	return nil
}
