package collector

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
)

const (
	DefaultUserAgent    = "HeadlineHubBot/1.0"
	DefaultFetchTimeout = 15 * time.Second
)

// uaTransport 为每个请求注入 User-Agent
type uaTransport struct {
	base      http.RoundTripper
	userAgent string
}

func (t *uaTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.Header.Set("User-Agent", t.userAgent)
	return t.base.RoundTrip(req)
}

// FeedFetcher 通过 gofeed 拉取 RSS/Atom 订阅源
type FeedFetcher struct {
	client  *http.Client
	timeout time.Duration
}

func NewFeedFetcher(userAgent string, timeout time.Duration) *FeedFetcher {
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	return &FeedFetcher{
		client: &http.Client{
			Timeout:   timeout,
			Transport: &uaTransport{base: http.DefaultTransport, userAgent: userAgent},
		},
		timeout: timeout,
	}
}

func (f *FeedFetcher) FetchFeed(ctx context.Context, feedURL string) ([]Headline, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	fp := gofeed.NewParser()
	fp.Client = f.client
	feed, err := fp.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("feed %s: %w", feedURL, err)
	}

	items := headlinesFromFeed(feed, feedURL, time.Now())
	log.Printf("feed: %s got %d items", feedURL, len(items))
	return items, nil
}

func headlinesFromFeed(feed *gofeed.Feed, feedURL string, now time.Time) []Headline {
	source := Domain(feedURL)
	out := make([]Headline, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item == nil {
			continue
		}
		title := strings.TrimSpace(item.Title)
		if title == "" {
			continue
		}
		link := strings.TrimSpace(item.Link)
		if link == "" {
			link = feedURL
		}
		out = append(out, NewHeadline(title, link, source, itemTime(item, now).UnixMilli()))
	}
	return out
}

// itemTime 优先取发布时间，其次更新时间，都没有时用当前时间
func itemTime(item *gofeed.Item, now time.Time) time.Time {
	if item.PublishedParsed != nil {
		return *item.PublishedParsed
	}
	if item.UpdatedParsed != nil {
		return *item.UpdatedParsed
	}
	return now
}
