package processor

import (
	"sort"

	"github.com/LJTian/HeadlineHub/internal/collector"
)

// DefaultMaxHeadlines 是未指定上限时保留的条数
const DefaultMaxHeadlines = 200

// SimpleProcessor 负责去重、排序与截断
type SimpleProcessor struct{}

func NewSimpleProcessor() *SimpleProcessor {
	return &SimpleProcessor{}
}

// Process 按 id 去重（先出现的保留），按时间倒序稳定排序后截断到 max 条
func (p *SimpleProcessor) Process(items []collector.Headline, max int) []collector.Headline {
	if max <= 0 {
		max = DefaultMaxHeadlines
	}

	out := make([]collector.Headline, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, it := range items {
		// id 只由 title+url 决定，这里重新计算，不信任上游传入的值
		it.ID = collector.HeadlineID(it.Title, it.URL)
		if _, ok := seen[it.ID]; ok {
			continue
		}
		seen[it.ID] = struct{}{}
		out = append(out, it)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].TS > out[j].TS })

	if len(out) > max {
		out = out[:max]
	}
	return out
}
