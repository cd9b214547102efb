package aggregator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/LJTian/HeadlineHub/internal/collector"
	"github.com/LJTian/HeadlineHub/internal/processor"
	"github.com/LJTian/HeadlineHub/internal/sources"
)

// ErrCycleRunning 表示同一来源列表已有一轮聚合在执行
var ErrCycleRunning = errors.New("aggregation cycle already running")

// ManualSource 是来源列表中内联 headline 的 source 标记
const ManualSource = "manual"

type MetaStore interface {
	ShouldFetch(domain string, now time.Time) bool
	PageHeadlines(pageURL string) ([]collector.Headline, bool)
	SetPageHeadlines(pageURL string, items []collector.Headline)
	ClearValidators(domain string)
	Save() error
}

type HeadlineStore interface {
	Save(items []collector.Headline) error
}

// Archiver 接收每轮成功的快照，可选
type Archiver interface {
	SaveBatch(items []collector.Headline) error
}

// CycleLock 是跨进程的互斥锁，可选
type CycleLock interface {
	TryLock(ctx context.Context, key string) (release func(), ok bool, err error)
}

type Options struct {
	MaxHeadlines int
	Archive      Archiver
	Lock         CycleLock
	Now          func() time.Time
}

// Stats 汇总一轮聚合的结果
type Stats struct {
	Sources     int
	Fetched     int
	Saved       int
	RateLimited int
	NotModified int
	Failed      int
	PersistErr  error
}

type Aggregator struct {
	feeds     collector.FeedSource
	sites     collector.SiteSource
	meta      MetaStore
	cache     HeadlineStore
	processor *processor.SimpleProcessor
	archive   Archiver
	lock      CycleLock
	max       int
	now       func() time.Time

	running sync.Mutex
}

func New(feeds collector.FeedSource, sites collector.SiteSource, meta MetaStore, cache HeadlineStore, opts Options) *Aggregator {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	max := opts.MaxHeadlines
	if max <= 0 {
		max = processor.DefaultMaxHeadlines
	}
	return &Aggregator{
		feeds:     feeds,
		sites:     sites,
		meta:      meta,
		cache:     cache,
		processor: processor.NewSimpleProcessor(),
		archive:   opts.Archive,
		lock:      opts.Lock,
		max:       max,
		now:       now,
	}
}

// Run 执行一轮完整聚合：读取来源 → 抓取 → 去重排序 → 落盘。
// 只有根来源列表读取失败（或已有一轮在执行）会返回错误，落盘失败记录在 Stats 中。
func (a *Aggregator) Run(ctx context.Context, listPath string) (Stats, error) {
	if !a.running.TryLock() {
		return Stats{}, ErrCycleRunning
	}
	defer a.running.Unlock()

	if a.lock != nil {
		release, ok, err := a.lock.TryLock(ctx, listPath)
		switch {
		case err != nil:
			log.Printf("warn: cycle lock unavailable, continue without it: %v", err)
		case !ok:
			return Stats{}, ErrCycleRunning
		default:
			defer release()
		}
	}

	log.Printf("start collect job (%s)...", listPath)
	descs, err := sources.Read(listPath)
	if err != nil {
		return Stats{}, err
	}

	items, stats := a.fetch(ctx, descs, a.max)
	if err := ctx.Err(); err != nil {
		// 中途取消时不写入不完整的快照
		return stats, fmt.Errorf("collect canceled: %w", err)
	}

	if err := a.meta.Save(); err != nil {
		log.Printf("warn: save fetch meta: %v", err)
		stats.PersistErr = err
	}
	if err := a.cache.Save(items); err != nil {
		log.Printf("warn: save headline cache: %v", err)
		stats.PersistErr = errors.Join(stats.PersistErr, err)
	} else if a.archive != nil {
		if err := a.archive.SaveBatch(items); err != nil {
			log.Printf("warn: archive headlines: %v", err)
		}
	}

	log.Printf("collect job done, sources=%d fetched=%d saved=%d rate_limited=%d not_modified=%d failed=%d",
		stats.Sources, stats.Fetched, stats.Saved, stats.RateLimited, stats.NotModified, stats.Failed)
	return stats, nil
}

// FetchHeadlines 按顺序抓取所有来源，按 id 去重后时间倒序截断到 max 条
func (a *Aggregator) FetchHeadlines(ctx context.Context, descs []sources.Descriptor, max int) []collector.Headline {
	items, _ := a.fetch(ctx, descs, max)
	return items
}

func (a *Aggregator) fetch(ctx context.Context, descs []sources.Descriptor, max int) ([]collector.Headline, Stats) {
	stats := Stats{Sources: len(descs)}

	var all []collector.Headline
	for _, d := range descs {
		if ctx.Err() != nil {
			break
		}
		switch d.Kind {
		case sources.KindFeed:
			items, err := a.feeds.FetchFeed(ctx, d.URL)
			if err != nil {
				log.Printf("warn: %v", err)
				stats.Failed++
				continue
			}
			all = append(all, items...)
		case sources.KindSite:
			all = append(all, a.scrapeSite(ctx, d.URL, &stats)...)
		case sources.KindHeadline:
			all = append(all, collector.NewHeadline(d.Title, d.URL, ManualSource, a.now().UnixMilli()))
		}
	}

	stats.Fetched = len(all)
	out := a.processor.Process(all, max)
	stats.Saved = len(out)
	return out, stats
}

// scrapeSite 抓取单个页面；限速或 304 时沿用该页面上一次提取的头条，不清空缓存
func (a *Aggregator) scrapeSite(ctx context.Context, pageURL string, stats *Stats) []collector.Headline {
	domain := collector.Domain(pageURL)
	if !a.meta.ShouldFetch(domain, a.now()) {
		stats.RateLimited++
		items, _ := a.meta.PageHeadlines(pageURL)
		return items
	}

	res, err := a.sites.Scrape(ctx, pageURL)
	if err != nil {
		log.Printf("warn: %v", err)
		stats.Failed++
		return nil
	}
	if res.NotModified {
		stats.NotModified++
		items, ok := a.meta.PageHeadlines(pageURL)
		if !ok {
			// 没有该页面的记录可沿用：丢弃令牌，下次无条件抓取
			log.Printf("warn: %s not modified but no previous headlines, next fetch is unconditional", pageURL)
			a.meta.ClearValidators(domain)
		}
		return items
	}

	a.meta.SetPageHeadlines(pageURL, res.Headlines)
	return res.Headlines
}
