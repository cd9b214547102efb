package storage

import (
	"encoding/json"
	"errors"
	"log"
	"os"
	"sync"
	"time"

	"github.com/LJTian/HeadlineHub/internal/collector"
)

// DefaultRateLimit 是未单独配置时同一域名两次抓取的最小间隔
const DefaultRateLimit = 5 * time.Minute

// FetchMetadata 记录某个域名最近一次抓取的条件请求令牌与限速信息
type FetchMetadata struct {
	ETag         string `json:"etag,omitempty"`
	LastModified string `json:"lastModified,omitempty"`
	LastFetchMs  int64  `json:"lastFetch"`
	RateLimitMs  int64  `json:"rateLimit"`
}

type metaFile struct {
	LastUpdate int64                           `json:"lastUpdate"`
	Domains    map[string]FetchMetadata        `json:"domains"`
	Pages      map[string][]collector.Headline `json:"pages,omitempty"`
}

// MetaStore 是按域名保存抓取元数据的 JSON 文件，进程启动时加载，每轮聚合后落盘
type MetaStore struct {
	mu           sync.Mutex
	path         string
	defaultLimit int64
	domains      map[string]FetchMetadata
	// 按页面 URL 记录最近一次成功提取的头条，304/限速时沿用
	pages map[string][]collector.Headline
}

// OpenMeta 读取元数据文件；文件不存在或损坏时返回空表，不会失败
func OpenMeta(path string, defaultRateLimit time.Duration) *MetaStore {
	if defaultRateLimit <= 0 {
		defaultRateLimit = DefaultRateLimit
	}
	m := &MetaStore{
		path:         path,
		defaultLimit: defaultRateLimit.Milliseconds(),
		domains:      make(map[string]FetchMetadata),
		pages:        make(map[string][]collector.Headline),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Printf("warn: read fetch meta %s: %v", path, err)
		}
		return m
	}
	var f metaFile
	if err := json.Unmarshal(data, &f); err != nil {
		log.Printf("warn: parse fetch meta %s: %v, starting empty", path, err)
		return m
	}
	for k, v := range f.Domains {
		m.domains[k] = v
	}
	for k, v := range f.Pages {
		m.pages[k] = v
	}
	return m
}

func (m *MetaStore) Get(domain string) (FetchMetadata, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	md, ok := m.domains[domain]
	return md, ok
}

// Set 覆盖某个域名的记录，主要用于配置单独的限速
func (m *MetaStore) Set(domain string, md FetchMetadata) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.domains[domain] = md
}

// ShouldFetch 没有记录或距上次抓取已超过限速间隔时返回 true
func (m *MetaStore) ShouldFetch(domain string, now time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	md, ok := m.domains[domain]
	if !ok {
		return true
	}
	limit := md.RateLimitMs
	if limit <= 0 {
		limit = m.defaultLimit
	}
	return now.UnixMilli()-md.LastFetchMs >= limit
}

func (m *MetaStore) Validators(domain string) (string, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	md := m.domains[domain]
	return md.ETag, md.LastModified
}

// RecordFetch 在收到响应头后更新记录；replaceTokens 为 true 表示 2xx 响应。
// 记录只在首次成功抓取时创建，失败响应不会让从未成功的域名进入限速。
func (m *MetaStore) RecordFetch(domain, etag, lastModified string, replaceTokens bool, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	md, ok := m.domains[domain]
	if !ok {
		if !replaceTokens {
			return
		}
		md.RateLimitMs = m.defaultLimit
	}
	if replaceTokens {
		md.ETag = etag
		md.LastModified = lastModified
	}
	md.LastFetchMs = at.UnixMilli()
	m.domains[domain] = md
}

// ClearValidators 丢弃域名的 ETag/Last-Modified，下次抓取不再带条件头
func (m *MetaStore) ClearValidators(domain string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	md, ok := m.domains[domain]
	if !ok {
		return
	}
	md.ETag = ""
	md.LastModified = ""
	m.domains[domain] = md
}

// PageHeadlines 返回页面最近一次成功提取的头条
func (m *MetaStore) PageHeadlines(pageURL string) ([]collector.Headline, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	items, ok := m.pages[pageURL]
	if !ok {
		return nil, false
	}
	return append([]collector.Headline(nil), items...), true
}

func (m *MetaStore) SetPageHeadlines(pageURL string, items []collector.Headline) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pages[pageURL] = append([]collector.Headline{}, items...)
}

// Save 原子写入当前全部记录及更新时间
func (m *MetaStore) Save() error {
	m.mu.Lock()
	f := metaFile{
		LastUpdate: time.Now().UnixMilli(),
		Domains:    make(map[string]FetchMetadata, len(m.domains)),
	}
	for k, v := range m.domains {
		f.Domains[k] = v
	}
	if len(m.pages) > 0 {
		f.Pages = make(map[string][]collector.Headline, len(m.pages))
		for k, v := range m.pages {
			f.Pages[k] = v
		}
	}
	m.mu.Unlock()

	return writeJSONAtomic(m.path, f)
}
