// Package app 按配置组装聚合所需的各个组件，供 cmd/api 与 cmd/collect 共用
package app

import (
	"log"

	"github.com/LJTian/HeadlineHub/internal/aggregator"
	"github.com/LJTian/HeadlineHub/internal/collector"
	"github.com/LJTian/HeadlineHub/internal/config"
	"github.com/LJTian/HeadlineHub/internal/storage"
)

type App struct {
	Config     *config.Config
	Meta       *storage.MetaStore
	Headlines  *storage.HeadlineStore
	Redis      *storage.RedisCache
	Archive    *storage.Archive
	Aggregator *aggregator.Aggregator
}

// New 不会因可选组件（Redis/PostgreSQL）不可用而失败，只记录警告并关闭对应能力
func New(cfg *config.Config) *App {
	a := &App{
		Config:    cfg,
		Meta:      storage.OpenMeta(cfg.MetaPath, cfg.RateLimit),
		Headlines: storage.NewHeadlineStore(cfg.CachePath, cfg.MaxHeadlines),
	}

	opts := aggregator.Options{MaxHeadlines: cfg.MaxHeadlines}

	if cfg.RedisAddr != "" {
		a.Redis = storage.NewRedisCache(cfg.RedisAddr)
		opts.Lock = a.Redis
	}
	if cfg.PostgresDSN != "" {
		archive, err := storage.NewArchive(cfg.PostgresDSN)
		if err != nil {
			log.Printf("warn: init archive failed, archiving disabled: %v", err)
		} else {
			a.Archive = archive
			opts.Archive = archive
		}
	}

	feeds := collector.NewFeedFetcher(cfg.UserAgent, cfg.FetchTimeout)
	sites := collector.NewSiteScraper(a.Meta, cfg.UserAgent, cfg.FetchTimeout)
	a.Aggregator = aggregator.New(feeds, sites, a.Meta, a.Headlines, opts)
	return a
}

func (a *App) Close() {
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			log.Printf("warn: close redis: %v", err)
		}
	}
	if a.Archive != nil {
		if err := a.Archive.Close(); err != nil {
			log.Printf("warn: close archive: %v", err)
		}
	}
}
