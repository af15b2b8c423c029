package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "wallatrack.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `
wallabag:
  client_id: cid
  client_secret: secret
  username: user
  password: pass
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load 失败: %v", err)
	}

	if cfg.Wallabag.URL != "http://wallabag" {
		t.Errorf("默认 URL 不匹配: %s", cfg.Wallabag.URL)
	}
	if cfg.Tracker.IntervalMinutes != 30 {
		t.Errorf("默认轮询间隔应为 30，得到 %d", cfg.Tracker.IntervalMinutes)
	}
	if cfg.Tracker.DefaultFetchCount != 10 {
		t.Errorf("默认回填条数应为 10，得到 %d", cfg.Tracker.DefaultFetchCount)
	}
	if cfg.Tracker.FeedsFile != "./feeds.json" {
		t.Errorf("默认订阅源文件不匹配: %s", cfg.Tracker.FeedsFile)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("默认日志级别不匹配: %s", cfg.Log.Level)
	}
}

func TestLoadTrimsTrailingSlash(t *testing.T) {
	path := writeConfig(t, `
wallabag:
  url: https://wallabag.example.com/
  client_id: cid
  client_secret: secret
  username: user
  password: pass
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load 失败: %v", err)
	}
	if cfg.Wallabag.URL != "https://wallabag.example.com" {
		t.Errorf("URL 末尾斜杠应被去除: %s", cfg.Wallabag.URL)
	}
}

func TestLoadEnvExpansion(t *testing.T) {
	t.Setenv("WALLATRACK_TEST_SECRET", "  from-env  ")
	path := writeConfig(t, `
wallabag:
  client_id: cid
  client_secret: ${WALLATRACK_TEST_SECRET}
  username: user
  password: pass
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load 失败: %v", err)
	}
	// 环境变量展开后应去除两端空白
	if cfg.Wallabag.ClientSecret != "from-env" {
		t.Errorf("环境变量展开不匹配: %q", cfg.Wallabag.ClientSecret)
	}
}

func TestValidateMissingCredentials(t *testing.T) {
	path := writeConfig(t, `
wallabag:
  client_id: cid
  username: user
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load 失败: %v", err)
	}

	err = cfg.Validate()
	if err == nil {
		t.Fatal("凭据缺失时 Validate 应返回错误")
	}
	if !strings.Contains(err.Error(), "wallabag.client_secret") ||
		!strings.Contains(err.Error(), "wallabag.password") {
		t.Errorf("错误信息应列出缺失项: %v", err)
	}
}

func TestValidateComplete(t *testing.T) {
	path := writeConfig(t, `
wallabag:
  client_id: cid
  client_secret: secret
  username: user
  password: pass
`)
	cfg, _ := Load(path)
	if err := cfg.Validate(); err != nil {
		t.Errorf("凭据齐全时 Validate 不应报错: %v", err)
	}
}

func TestLoadFeeds(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feeds.json")
	content := `{
  "feeds": [
    {"url": "https://example.com/feed", "name": "示例", "tags": ["tech", "news"], "max_items": 5},
    {"url": "https://other.com/rss"}
  ]
}`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	feeds, err := LoadFeeds(path)
	if err != nil {
		t.Fatalf("LoadFeeds 失败: %v", err)
	}
	if len(feeds) != 2 {
		t.Fatalf("期望 2 个订阅源，得到 %d 个", len(feeds))
	}

	first := feeds[0]
	if first.URL != "https://example.com/feed" || first.Name != "示例" {
		t.Errorf("第一个订阅源不匹配: %+v", first)
	}
	if len(first.Tags) != 2 || first.MaxItems != 5 {
		t.Errorf("标签或上限不匹配: %+v", first)
	}
	if first.DisplayName() != "示例" {
		t.Errorf("DisplayName 应返回名称: %s", first.DisplayName())
	}

	// 未配置名称时退回 URL
	if feeds[1].DisplayName() != "https://other.com/rss" {
		t.Errorf("DisplayName 应退回 URL: %s", feeds[1].DisplayName())
	}
}

func TestLoadFeedsMissing(t *testing.T) {
	_, err := LoadFeeds(filepath.Join(t.TempDir(), "not_exist.json"))
	if !os.IsNotExist(err) {
		t.Errorf("文件不存在应返回 os.ErrNotExist，得到: %v", err)
	}
}

func TestLoadFeedsCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feeds.json")
	if err := os.WriteFile(path, []byte("不是 JSON"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFeeds(path); err == nil {
		t.Error("损坏的订阅源文件应返回错误")
	}
}
