package collector

import (
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/tidwall/gjson"
)

// 单个页面最多产出的头条数
const maxSiteHeadlines = 5

// extractHeadlines 按 og 标签 → JSON-LD NewsArticle → <title> 的顺序尽力提取头条，
// 前一步有结果就不再继续
func extractHeadlines(doc *goquery.Document, pageURL string, now time.Time) []Headline {
	source := Domain(pageURL)
	ts := now.UnixMilli()

	if h, ok := openGraphHeadline(doc, source, ts); ok {
		return []Headline{h}
	}

	if list := jsonLDHeadlines(doc, pageURL, source, now); len(list) > 0 {
		if len(list) > maxSiteHeadlines {
			list = list[:maxSiteHeadlines]
		}
		return list
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())
	if title == "" {
		return nil
	}
	return []Headline{NewHeadline(title, pageURL, source, ts)}
}

func openGraphHeadline(doc *goquery.Document, source string, ts int64) (Headline, bool) {
	title := strings.TrimSpace(metaContent(doc, "og:title"))
	link := strings.TrimSpace(metaContent(doc, "og:url"))
	if title == "" || link == "" {
		return Headline{}, false
	}
	return NewHeadline(title, link, source, ts), true
}

func metaContent(doc *goquery.Document, property string) string {
	sel := doc.Find(`meta[property="` + property + `"]`).First()
	if sel.Length() == 0 {
		// 部分站点把 og 标签写在 name 上
		sel = doc.Find(`meta[name="` + property + `"]`).First()
	}
	return sel.AttrOr("content", "")
}

func jsonLDHeadlines(doc *goquery.Document, pageURL, source string, now time.Time) []Headline {
	var out []Headline
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		raw := strings.TrimSpace(s.Text())
		if raw == "" || !gjson.Valid(raw) {
			return
		}
		for _, node := range ldNodes(gjson.Parse(raw)) {
			if h, ok := newsArticleHeadline(node, pageURL, source, now); ok {
				out = append(out, h)
			}
		}
	})
	return out
}

// ldNodes 展开顶层数组与 @graph，返回所有对象节点
func ldNodes(v gjson.Result) []gjson.Result {
	switch {
	case v.IsArray():
		var nodes []gjson.Result
		for _, el := range v.Array() {
			nodes = append(nodes, ldNodes(el)...)
		}
		return nodes
	case v.IsObject():
		nodes := []gjson.Result{v}
		if graph, ok := v.Map()["@graph"]; ok {
			nodes = append(nodes, ldNodes(graph)...)
		}
		return nodes
	default:
		return nil
	}
}

func newsArticleHeadline(node gjson.Result, pageURL, source string, now time.Time) (Headline, bool) {
	fields := node.Map()
	if !isNewsArticle(fields["@type"]) {
		return Headline{}, false
	}
	headline := fields["headline"]
	if headline.Type != gjson.String {
		return Headline{}, false
	}
	title := strings.TrimSpace(headline.String())
	if title == "" {
		return Headline{}, false
	}

	link := pageURL
	if u := fields["url"]; u.Type == gjson.String && strings.TrimSpace(u.String()) != "" {
		link = strings.TrimSpace(u.String())
	} else if m := fields["mainEntityOfPage"]; m.Type == gjson.String && strings.TrimSpace(m.String()) != "" {
		link = strings.TrimSpace(m.String())
	}

	ts := now
	if p := fields["datePublished"]; p.Type == gjson.String {
		if t, err := time.Parse(time.RFC3339, strings.TrimSpace(p.String())); err == nil {
			ts = t
		}
	}
	return NewHeadline(title, link, source, ts.UnixMilli()), true
}

func isNewsArticle(t gjson.Result) bool {
	if t.IsArray() {
		for _, el := range t.Array() {
			if el.String() == "NewsArticle" {
				return true
			}
		}
		return false
	}
	return t.Type == gjson.String && t.String() == "NewsArticle"
}
