package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// FeedConfig 单个订阅源的配置。
type FeedConfig struct {
	URL  string   `json:"url"`
	Name string   `json:"name,omitempty"`
	Tags []string `json:"tags,omitempty"`
	// MaxItems 首次抓取该订阅源时的条目上限，0 表示使用全局默认值。
	MaxItems int `json:"max_items,omitempty"`
}

// DisplayName 返回用于日志展示的名称，未配置名称时退回 URL。
func (f FeedConfig) DisplayName() string {
	if f.Name != "" {
		return f.Name
	}
	return f.URL
}

// feedsFile feeds.json 的顶层结构。
type feedsFile struct {
	Feeds []FeedConfig `json:"feeds"`
}

// LoadFeeds 从 JSON 文件加载订阅源列表。
// 文件不存在时返回空列表和 os.ErrNotExist，由调用方决定如何提示；
// 每个轮询周期都会重新调用，因此新增订阅源无需重启进程。
func LoadFeeds(path string) ([]FeedConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, err
		}
		return nil, fmt.Errorf("读取订阅源文件 %s 失败: %w", path, err)
	}

	var f feedsFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("解析订阅源文件 %s 失败: %w", path, err)
	}
	return f.Feeds, nil
}
