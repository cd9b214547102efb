package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/LJTian/HeadlineHub/internal/collector"
)

func TestHeadlineStoreLoadMissing(t *testing.T) {
	s := NewHeadlineStore(filepath.Join(t.TempDir(), "headlines.json"), 0)
	got := s.Load()
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", got)
	}
	if s.Version() != 0 {
		t.Fatalf("missing file should have version 0")
	}
}

func TestHeadlineStoreLoadCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "headlines.json")
	if err := os.WriteFile(path, []byte("[{"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if got := NewHeadlineStore(path, 0).Load(); len(got) != 0 {
		t.Fatalf("corrupt file should load as empty, got %d", len(got))
	}
}

func TestHeadlineStoreSaveCapsAndOrders(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "headlines.json")
	s := NewHeadlineStore(path, 3)

	items := []collector.Headline{
		collector.NewHeadline("a", "https://x/a", "x", 1),
		collector.NewHeadline("b", "https://x/b", "x", 5),
		collector.NewHeadline("c", "https://x/c", "x", 3),
		collector.NewHeadline("d", "https://x/d", "x", 4),
		collector.NewHeadline("e", "https://x/e", "x", 2),
	}
	if err := s.Save(items); err != nil {
		t.Fatalf("save: %v", err)
	}

	got := s.Load()
	if len(got) != 3 {
		t.Fatalf("expected 3 items, got %d", len(got))
	}
	for i, want := range []string{"b", "d", "c"} {
		if got[i].Title != want {
			t.Fatalf("got[%d] = %q, want %q", i, got[i].Title, want)
		}
	}
	if s.Version() == 0 {
		t.Fatalf("version should be set after save")
	}
	// 调用方的切片不应被修改
	if items[0].Title != "a" {
		t.Fatalf("Save must not reorder the caller's slice")
	}
}

func TestHeadlineStoreSaveReplaces(t *testing.T) {
	s := NewHeadlineStore(filepath.Join(t.TempDir(), "headlines.json"), 0)
	var first []collector.Headline
	for i := 0; i < 10; i++ {
		first = append(first, collector.NewHeadline(fmt.Sprintf("t%d", i), "https://x", "x", int64(i)))
	}
	if err := s.Save(first); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.Save([]collector.Headline{collector.NewHeadline("only", "https://y", "y", 1)}); err != nil {
		t.Fatalf("save: %v", err)
	}
	got := s.Load()
	if len(got) != 1 || got[0].Title != "only" {
		t.Fatalf("snapshot should be fully replaced, got %+v", got)
	}
}

func TestHeadlineStoreRecomputesID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "headlines.json")
	raw := `[{"title":"T","url":"https://x","source":"x","ts":1,"id":"bogus"}]`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	got := NewHeadlineStore(path, 0).Load()
	if len(got) != 1 || got[0].ID != collector.HeadlineID("T", "https://x") {
		t.Fatalf("id should be recomputed from title+url: %+v", got)
	}
}

func TestHeadlineStoreFileFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "headlines.json")
	s := NewHeadlineStore(path, 0)
	if err := s.Save([]collector.Headline{collector.NewHeadline("T", "https://x", "x", 7)}); err != nil {
		t.Fatalf("save: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	for _, key := range []string{`"title"`, `"url"`, `"source"`, `"ts"`, `"id"`} {
		if !strings.Contains(string(data), key) {
			t.Fatalf("persisted cache missing %s: %s", key, data)
		}
	}
}

func TestArchiveRowSanitizes(t *testing.T) {
	h := collector.NewHeadline("bad \xff title", "https://x", "x", 1700000000000)
	row := archiveRow(h, time.Now())
	if !strings.Contains(row.Title, "\uFFFD") || strings.Contains(row.Title, "\xff") {
		t.Fatalf("title should be valid utf-8: %q", row.Title)
	}
	if row.ID != h.ID || row.PublishedAt.UnixMilli() != 1700000000000 {
		t.Fatalf("unexpected row: %+v", row)
	}
}

func TestTruncateRunes(t *testing.T) {
	if got := truncateRunes("你好世界", 2); got != "你好" {
		t.Fatalf("got %q, want 你好", got)
	}
	if got := truncateRunes("短", 10); got != "短" {
		t.Fatalf("got %q", got)
	}
	if got := truncateRunes("x", 0); got != "" {
		t.Fatalf("got %q, want empty", got)
	}
}
