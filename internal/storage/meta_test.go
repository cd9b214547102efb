package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/LJTian/HeadlineHub/internal/collector"
)

func TestShouldFetchRespectsRateLimit(t *testing.T) {
	m := OpenMeta(filepath.Join(t.TempDir(), "meta.json"), 0)
	now := time.Date(2024, 1, 3, 10, 0, 0, 0, time.UTC)

	if !m.ShouldFetch("example.com", now) {
		t.Fatalf("unknown domain should be fetched")
	}

	m.RecordFetch("example.com", `"e1"`, "", true, now)
	if m.ShouldFetch("example.com", now) {
		t.Fatalf("should not fetch right after a recorded fetch")
	}
	if m.ShouldFetch("example.com", now.Add(DefaultRateLimit-time.Millisecond)) {
		t.Fatalf("should not fetch before the rate limit elapses")
	}
	if !m.ShouldFetch("example.com", now.Add(DefaultRateLimit)) {
		t.Fatalf("should fetch once the rate limit elapsed")
	}
}

func TestShouldFetchUsesDomainRateLimit(t *testing.T) {
	m := OpenMeta(filepath.Join(t.TempDir(), "meta.json"), time.Minute)
	now := time.Now()
	m.Set("slow.example", FetchMetadata{LastFetchMs: now.UnixMilli(), RateLimitMs: int64(time.Hour / time.Millisecond)})

	if m.ShouldFetch("slow.example", now.Add(30*time.Minute)) {
		t.Fatalf("domain rate limit should apply")
	}
	if !m.ShouldFetch("slow.example", now.Add(time.Hour)) {
		t.Fatalf("should fetch after the domain rate limit")
	}

	// 未设置 rateLimit 时使用默认值
	m.Set("zero.example", FetchMetadata{LastFetchMs: now.UnixMilli()})
	if !m.ShouldFetch("zero.example", now.Add(time.Minute)) {
		t.Fatalf("zero rate limit should fall back to the default")
	}
}

func TestRecordFetchKeepsTokensWhenNotReplacing(t *testing.T) {
	m := OpenMeta(filepath.Join(t.TempDir(), "meta.json"), time.Minute)
	t0 := time.Now()
	m.RecordFetch("a.example", `"e1"`, "Mon, 01 Jan 2024 00:00:00 GMT", true, t0)
	m.Set("a.example", func() FetchMetadata {
		md, _ := m.Get("a.example")
		md.RateLimitMs = 42
		return md
	}())

	t1 := t0.Add(time.Minute)
	m.RecordFetch("a.example", "", "", false, t1)

	md, ok := m.Get("a.example")
	if !ok {
		t.Fatalf("record missing")
	}
	if md.ETag != `"e1"` || md.LastModified != "Mon, 01 Jan 2024 00:00:00 GMT" {
		t.Fatalf("tokens should be intact: %+v", md)
	}
	if md.LastFetchMs != t1.UnixMilli() {
		t.Fatalf("last fetch = %d, want %d", md.LastFetchMs, t1.UnixMilli())
	}
	if md.RateLimitMs != 42 {
		t.Fatalf("rate limit should be retained, got %d", md.RateLimitMs)
	}
	etag, lm := m.Validators("a.example")
	if etag != `"e1"` || lm == "" {
		t.Fatalf("validators = %q %q", etag, lm)
	}
}

func TestMetaSaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "meta.json")
	m := OpenMeta(path, time.Minute)
	at := time.Date(2024, 1, 3, 10, 0, 0, 0, time.UTC)
	m.RecordFetch("a.example", `"e1"`, "lm", true, at)

	if err := m.Save(); err != nil {
		t.Fatalf("save: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("saved file is not json: %v", err)
	}
	if _, ok := raw["lastUpdate"]; !ok {
		t.Fatalf("lastUpdate missing: %s", data)
	}

	reloaded := OpenMeta(path, time.Minute)
	md, ok := reloaded.Get("a.example")
	if !ok {
		t.Fatalf("record not reloaded")
	}
	want := FetchMetadata{ETag: `"e1"`, LastModified: "lm", LastFetchMs: at.UnixMilli(), RateLimitMs: time.Minute.Milliseconds()}
	if md != want {
		t.Fatalf("reloaded = %+v, want %+v", md, want)
	}

	// 不应残留临时文件
	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Fatalf("expected only meta.json in dir, got %d entries", len(entries))
	}
}

func TestOpenMetaCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meta.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	m := OpenMeta(path, 0)
	if !m.ShouldFetch("a.example", time.Now()) {
		t.Fatalf("corrupt file should load as empty")
	}
}

func TestRecordFetchFailureDoesNotCreateRecord(t *testing.T) {
	m := OpenMeta(filepath.Join(t.TempDir(), "meta.json"), 0)
	now := time.Now()

	// 从未成功抓取过的域名返回 503：不建记录，也不进入限速
	m.RecordFetch("down.example", "", "", false, now)
	if _, ok := m.Get("down.example"); ok {
		t.Fatalf("failed first fetch must not create a record")
	}
	if !m.ShouldFetch("down.example", now) {
		t.Fatalf("domain never fetched successfully should not be rate limited")
	}

	// 已有记录的域名失败时只刷新抓取时间
	m.RecordFetch("down.example", `"e1"`, "", true, now)
	later := now.Add(time.Minute)
	m.RecordFetch("down.example", "", "", false, later)
	md, ok := m.Get("down.example")
	if !ok || md.ETag != `"e1"` || md.LastFetchMs != later.UnixMilli() {
		t.Fatalf("unexpected record after failure: %+v", md)
	}
}

func TestPageHeadlinesPersist(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meta.json")
	m := OpenMeta(path, 0)
	if _, ok := m.PageHeadlines("https://site.example/"); ok {
		t.Fatalf("unknown page should have no headlines")
	}

	items := []collector.Headline{collector.NewHeadline("T", "https://site.example/a", "site.example", 5)}
	m.SetPageHeadlines("https://site.example/", items)
	items[0].Title = "mutated"
	if err := m.Save(); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, ok := OpenMeta(path, 0).PageHeadlines("https://site.example/")
	if !ok || len(got) != 1 || got[0].Title != "T" || got[0].TS != 5 {
		t.Fatalf("page headlines not persisted: %+v", got)
	}
}

func TestClearValidatorsKeepsFetchTime(t *testing.T) {
	m := OpenMeta(filepath.Join(t.TempDir(), "meta.json"), 0)
	now := time.Now()
	m.RecordFetch("a.example", `"e1"`, "lm", true, now)

	m.ClearValidators("a.example")
	m.ClearValidators("missing.example")

	etag, lm := m.Validators("a.example")
	if etag != "" || lm != "" {
		t.Fatalf("validators should be cleared: %q %q", etag, lm)
	}
	if md, _ := m.Get("a.example"); md.LastFetchMs != now.UnixMilli() {
		t.Fatalf("fetch time must be kept: %+v", md)
	}
	if _, ok := m.Get("missing.example"); ok {
		t.Fatalf("clearing an unknown domain must not create a record")
	}
}
