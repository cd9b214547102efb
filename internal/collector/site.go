package collector

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
)

// FetchRecorder 保存每个域名的条件请求令牌与抓取时间，由 storage.MetaStore 实现
type FetchRecorder interface {
	Validators(domain string) (etag, lastModified string)
	// replaceTokens 为 false（非 2xx）时只刷新已有记录的抓取时间，不创建新记录
	RecordFetch(domain, etag, lastModified string, replaceTokens bool, at time.Time)
}

// SiteScraper 抓取普通网页并尽力提取头条，支持 ETag/Last-Modified 条件请求
type SiteScraper struct {
	meta      FetchRecorder
	userAgent string
	timeout   time.Duration
}

func NewSiteScraper(meta FetchRecorder, userAgent string, timeout time.Duration) *SiteScraper {
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	return &SiteScraper{meta: meta, userAgent: userAgent, timeout: timeout}
}

func (s *SiteScraper) Scrape(ctx context.Context, pageURL string) (SiteResult, error) {
	if err := ctx.Err(); err != nil {
		return SiteResult{}, err
	}

	domain := Domain(pageURL)
	var etag, lastModified string
	if s.meta != nil {
		etag, lastModified = s.meta.Validators(domain)
	}

	c := colly.NewCollector(colly.UserAgent(s.userAgent))
	c.SetRequestTimeout(s.timeout)

	var (
		status  int
		headers http.Header
		body    []byte
	)
	capture := func(r *colly.Response) {
		if r == nil || r.StatusCode == 0 {
			return
		}
		status = r.StatusCode
		if r.Headers != nil {
			headers = *r.Headers
		}
	}

	c.OnRequest(func(r *colly.Request) {
		if etag != "" {
			r.Headers.Set("If-None-Match", etag)
		}
		if lastModified != "" {
			r.Headers.Set("If-Modified-Since", lastModified)
		}
	})
	c.OnResponse(func(r *colly.Response) {
		capture(r)
		body = r.Body
	})
	// 304 与其它非 2xx 响应在 colly 中走 OnError，但仍然带有响应头
	c.OnError(func(r *colly.Response, _ error) {
		capture(r)
	})

	visitErr := c.Visit(pageURL)

	if status != 0 && s.meta != nil {
		ok := status >= 200 && status < 300
		s.meta.RecordFetch(domain, headers.Get("ETag"), headers.Get("Last-Modified"), ok, time.Now())
	}

	if status == http.StatusNotModified {
		return SiteResult{NotModified: true}, nil
	}
	if visitErr != nil {
		return SiteResult{}, fmt.Errorf("site %s: %w", pageURL, visitErr)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return SiteResult{}, fmt.Errorf("site %s: parse html: %w", pageURL, err)
	}

	items := extractHeadlines(doc, pageURL, time.Now())
	log.Printf("site: %s got %d headlines", pageURL, len(items))
	return SiteResult{Headlines: items}, nil
}
