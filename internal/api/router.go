package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/LJTian/HeadlineHub/internal/collector"
	"github.com/gin-gonic/gin"
)

// Snapshot 是最近一次落盘的头条快照，由 storage.HeadlineStore 实现
type Snapshot interface {
	Load() []collector.Headline
	Version() int64
}

// ListCache 可选的列表缓存（Redis），key 含快照版本，快照替换后自动失效
type ListCache interface {
	GetList(ctx context.Context, version int64, q string) ([]collector.Headline, bool)
	SetList(ctx context.Context, version int64, q string, items []collector.Headline)
}

// Server 只读取快照，从不触发抓取
type Server struct {
	snapshot Snapshot
	cache    ListCache
}

func NewServer(snapshot Snapshot, cache ListCache) *Server {
	return &Server{snapshot: snapshot, cache: cache}
}

func (s *Server) RegisterRoutes(r *gin.Engine) {
	g := r.Group("/api")
	{
		g.GET("/health", s.health)
		g.GET("/news", s.listNews)
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "ts": time.Now().UnixMilli()})
}

func (s *Server) listNews(c *gin.Context) {
	q := strings.ToLower(strings.TrimSpace(c.Query("q")))
	ctx := c.Request.Context()

	var version int64
	if s.cache != nil {
		version = s.snapshot.Version()
		if items, ok := s.cache.GetList(ctx, version, q); ok {
			c.JSON(http.StatusOK, items)
			return
		}
	}

	items := filterHeadlines(s.snapshot.Load(), q)

	if s.cache != nil && version != 0 {
		s.cache.SetList(ctx, version, q, items)
	}
	c.JSON(http.StatusOK, items)
}

// filterHeadlines 对标题或来源做不区分大小写的子串匹配；q 需已转小写
func filterHeadlines(items []collector.Headline, q string) []collector.Headline {
	if q == "" {
		return items
	}
	out := make([]collector.Headline, 0, len(items))
	for _, it := range items {
		if strings.Contains(strings.ToLower(it.Title), q) || strings.Contains(strings.ToLower(it.Source), q) {
			out = append(out, it)
		}
	}
	return out
}
