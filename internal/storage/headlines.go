package storage

import (
	"encoding/json"
	"errors"
	"log"
	"os"
	"sort"

	"github.com/LJTian/HeadlineHub/internal/collector"
)

// DefaultMaxHeadlines 是缓存文件保留的最大条数
const DefaultMaxHeadlines = 200

// HeadlineStore 是 /api/news 读取的头条快照文件，每轮聚合整体替换
type HeadlineStore struct {
	path string
	max  int
}

func NewHeadlineStore(path string, max int) *HeadlineStore {
	if max <= 0 {
		max = DefaultMaxHeadlines
	}
	return &HeadlineStore{path: path, max: max}
}

func (s *HeadlineStore) Path() string {
	return s.path
}

// Save 整体覆盖快照；写入前再按时间倒序并截断，保证落盘内容不超过上限
func (s *HeadlineStore) Save(items []collector.Headline) error {
	out := make([]collector.Headline, len(items))
	copy(out, items)
	sort.SliceStable(out, func(i, j int) bool { return out[i].TS > out[j].TS })
	if len(out) > s.max {
		out = out[:s.max]
	}
	return writeJSONAtomic(s.path, out)
}

// Load 返回最近一次成功写入的快照；文件不存在或损坏时返回空列表
func (s *HeadlineStore) Load() []collector.Headline {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Printf("warn: read headline cache %s: %v", s.path, err)
		}
		return []collector.Headline{}
	}

	var items []collector.Headline
	if err := json.Unmarshal(data, &items); err != nil {
		log.Printf("warn: parse headline cache %s: %v", s.path, err)
		return []collector.Headline{}
	}
	for i := range items {
		items[i].ID = collector.HeadlineID(items[i].Title, items[i].URL)
	}
	return items
}

// Version 用文件修改时间标识当前快照，文件不存在时为 0
func (s *HeadlineStore) Version() int64 {
	fi, err := os.Stat(s.path)
	if err != nil {
		return 0
	}
	return fi.ModTime().UnixNano()
}
