package collector

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"net/url"
)

// Headline 是聚合后统一的头条结构，也是缓存文件中的一条记录
type Headline struct {
	Title  string `json:"title"`
	URL    string `json:"url"`
	Source string `json:"source"`
	TS     int64  `json:"ts"` // 毫秒时间戳
	ID     string `json:"id"`
}

// NewHeadline 构造头条，ID 始终由 title+url 推导
func NewHeadline(title, link, source string, ts int64) Headline {
	return Headline{
		Title:  title,
		URL:    link,
		Source: source,
		TS:     ts,
		ID:     HeadlineID(title, link),
	}
}

// HeadlineID 对 (title, url) 做 sha1，作为单轮聚合内唯一的去重键
func HeadlineID(title, link string) string {
	h := sha1.New()
	h.Write([]byte(title))
	h.Write([]byte{0})
	h.Write([]byte(link))
	return hex.EncodeToString(h.Sum(nil))
}

// SiteResult 是单个页面抓取的结果；NotModified 表示服务端返回 304
type SiteResult struct {
	Headlines   []Headline
	NotModified bool
}

// FeedSource 抽象 RSS/Atom 订阅源抓取
type FeedSource interface {
	FetchFeed(ctx context.Context, feedURL string) ([]Headline, error)
}

// SiteSource 抽象网页头条抓取
type SiteSource interface {
	Scrape(ctx context.Context, pageURL string) (SiteResult, error)
}

// Domain 返回 URL 的主机名；无法解析时直接使用原字符串，避免不同的坏地址共用一个限速桶
func Domain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return rawURL
	}
	return u.Hostname()
}
