// Package feed 提供 RSS/Atom 订阅源的抓取和条目归一化功能。
package feed

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"
)

const defaultFetchTimeout = 5 * time.Second

// Item 归一化后的订阅源条目。
// 下游只依赖这里的字段，不再探测原始条目的属性是否存在。
type Item struct {
	Link       string
	Title      string
	Published  *time.Time // 原文未提供发布时间时为 nil
	Categories []string
}

// Reader 负责抓取并解析订阅源。
type Reader struct {
	parser *gofeed.Parser
	client *http.Client
}

// NewReader 创建订阅源读取器。
func NewReader() *Reader {
	return &Reader{
		parser: gofeed.NewParser(),
		client: &http.Client{Timeout: defaultFetchTimeout},
	}
}

// Read 抓取指定 URL 的订阅源并返回归一化条目。
// limit > 0 时按文档顺序截取前 limit 条。
// 网络或解析失败返回空切片和错误，调用方记录警告即可，不应中断轮询。
func (r *Reader) Read(ctx context.Context, url string, limit int) ([]Item, error) {
	f, err := r.fetch(ctx, url)
	if err != nil {
		return nil, err
	}

	entries := f.Items
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}

	items := make([]Item, 0, len(entries))
	for _, e := range entries {
		items = append(items, convertItem(e))
	}
	return items, nil
}

// fetch 拉取并解析订阅源文档。
func (r *Reader) fetch(ctx context.Context, url string) (*gofeed.Feed, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Wallatrack/1.0 RSS Reader")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	return r.parser.Parse(resp.Body)
}

// convertItem 将 gofeed 条目转换为 Item。
func convertItem(e *gofeed.Item) Item {
	item := Item{
		Link:  e.Link,
		Title: e.Title,
	}

	if e.PublishedParsed != nil {
		item.Published = e.PublishedParsed
	} else if e.UpdatedParsed != nil {
		item.Published = e.UpdatedParsed
	}

	if len(e.Categories) > 0 {
		item.Categories = append(item.Categories, e.Categories...)
	}
	return item
}
