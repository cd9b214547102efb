// Package sources 解析行格式的来源列表文件：
//
//	# 注释
//	feed https://example.com/rss.xml
//	site https://example.com/
//	headline "Some title" https://example.com/x
//	list nested.txt
package sources

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
)

// ErrSourceList 表示根列表文件无法读取，是一轮聚合中唯一致命的来源错误
var ErrSourceList = errors.New("source list unreadable")

const (
	// 嵌套 list 的最大深度
	maxDepth = 8
	// 单行最大字节数，超出的行被跳过
	maxLineBytes = 1 << 20
)

type Kind int

const (
	KindFeed Kind = iota + 1
	KindSite
	KindHeadline
)

func (k Kind) String() string {
	switch k {
	case KindFeed:
		return "feed"
	case KindSite:
		return "site"
	case KindHeadline:
		return "headline"
	default:
		return "unknown"
	}
}

// Descriptor 是解析后的单个来源；Title 仅对 KindHeadline 有意义
type Descriptor struct {
	Kind  Kind
	URL   string
	Title string
}

func Feed(url string) Descriptor { return Descriptor{Kind: KindFeed, URL: url} }
func Site(url string) Descriptor { return Descriptor{Kind: KindSite, URL: url} }
func Headline(title, url string) Descriptor {
	return Descriptor{Kind: KindHeadline, URL: url, Title: title}
}

// Read 读取来源列表，嵌套 list 相对于当前文件所在目录解析。
// 只有根文件读取失败才返回错误，嵌套列表失败只记录警告。
func Read(path string) ([]Descriptor, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSourceList, path, err)
	}
	out, err := readFile(abs, map[string]bool{}, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceList, err)
	}
	return out, nil
}

func readFile(path string, visiting map[string]bool, depth int) ([]Descriptor, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	visiting[path] = true
	defer delete(visiting, path)

	var out []Descriptor
	r := bufio.NewReader(f)
	lineNo := 0
	for {
		raw, err := r.ReadString('\n')
		if raw != "" {
			lineNo++
			if len(raw) > maxLineBytes {
				// 超长行视为格式错误，跳过后继续读取
				log.Printf("warn: %s:%d: line longer than %d bytes, skipped", path, lineNo, maxLineBytes)
			} else {
				out = append(out, parseLine(path, lineNo, raw, visiting, depth)...)
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return out, nil
			}
			return out, fmt.Errorf("read %s: %w", path, err)
		}
	}
}

func parseLine(path string, lineNo int, raw string, visiting map[string]bool, depth int) []Descriptor {
	line := strings.TrimSpace(raw)
	if line == "" || strings.HasPrefix(line, "#") {
		return nil
	}
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return nil
	}

	switch strings.ToLower(fields[0]) {
	case "feed", "rss", "atom":
		return []Descriptor{Feed(fields[1])}
	case "site", "url", "page":
		return []Descriptor{Site(fields[1])}
	case "headline":
		d, ok := parseHeadline(fields)
		if !ok {
			log.Printf("warn: %s:%d: headline needs a title and a url", path, lineNo)
			return nil
		}
		return []Descriptor{d}
	case "list":
		return readNested(path, fields[1], visiting, depth)
	}
	return nil
}

func readNested(parent, ref string, visiting map[string]bool, depth int) []Descriptor {
	target := ref
	if !filepath.IsAbs(target) {
		target = filepath.Join(filepath.Dir(parent), target)
	}
	target = filepath.Clean(target)

	if visiting[target] {
		log.Printf("warn: %s: list %s includes itself, skipped", parent, ref)
		return nil
	}
	if depth+1 > maxDepth {
		log.Printf("warn: %s: list %s nested too deep, skipped", parent, ref)
		return nil
	}

	nested, err := readFile(target, visiting, depth+1)
	if err != nil {
		log.Printf("warn: %s: list %s: %v", parent, ref, err)
	}
	return nested
}

// parseHeadline 取第一个与最后一个 token 之间的内容作为标题，并去掉一层首尾引号
func parseHeadline(fields []string) (Descriptor, bool) {
	if len(fields) < 3 {
		return Descriptor{}, false
	}
	link := fields[len(fields)-1]
	title := strings.Join(fields[1:len(fields)-1], " ")
	title = trimQuote(title)
	title = strings.TrimSpace(title)
	if title == "" {
		return Descriptor{}, false
	}
	return Headline(title, link), true
}

func trimQuote(s string) string {
	if s != "" && (s[0] == '"' || s[0] == '\'') {
		s = s[1:]
	}
	if s != "" && (s[len(s)-1] == '"' || s[len(s)-1] == '\'') {
		s = s[:len(s)-1]
	}
	return s
}
