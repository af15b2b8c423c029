// Package config 提供 wallatrack 的配置加载功能。
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config 是 wallatrack 的顶层配置结构。
type Config struct {
	Wallabag WallabagConfig `yaml:"wallabag"`
	Tracker  TrackerConfig  `yaml:"tracker"`
	Log      LogConfig      `yaml:"log"`
}

// WallabagConfig Wallabag 服务端配置。
// 认证采用 OAuth2 password grant，四项凭据缺一不可。
type WallabagConfig struct {
	URL          string `yaml:"url"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	Username     string `yaml:"username"`
	Password     string `yaml:"password"`
}

// TrackerConfig 轮询循环配置。
type TrackerConfig struct {
	// FeedsFile 订阅源列表文件（JSON），每个周期重新加载，支持运行中追加订阅源。
	FeedsFile string `yaml:"feeds_file"`
	// SeenFile 已见条目的持久化文件。
	SeenFile string `yaml:"seen_file"`
	// DataDir 投递历史数据库所在目录。
	DataDir string `yaml:"data_dir"`
	// IntervalMinutes 两次轮询之间的间隔（分钟）。
	IntervalMinutes int `yaml:"interval_minutes"`
	// DefaultFetchCount 新订阅源首次抓取的条目上限。
	DefaultFetchCount int `yaml:"default_fetch_count"`
}

// LogConfig 日志配置。
type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// Load 读取 YAML 配置文件并返回 Config。
// 支持 ${VAR_NAME} 形式的环境变量展开。
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件 %s 失败: %w", path, err)
	}

	// 展开环境变量，如 ${WALLABAG_CLIENT_SECRET}
	expanded := os.Expand(string(data), func(key string) string {
		return os.Getenv(key)
	})

	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件 %s 失败: %w", path, err)
	}

	setDefaults(cfg)
	return cfg, nil
}

// setDefaults 为未设置的配置项填充默认值。
func setDefaults(cfg *Config) {
	if cfg.Wallabag.URL == "" {
		cfg.Wallabag.URL = "http://wallabag"
	}
	cfg.Wallabag.URL = strings.TrimSuffix(cfg.Wallabag.URL, "/")

	if cfg.Tracker.FeedsFile == "" {
		cfg.Tracker.FeedsFile = "./feeds.json"
	}
	if cfg.Tracker.SeenFile == "" {
		cfg.Tracker.SeenFile = "./seen_items.json"
	}
	if cfg.Tracker.IntervalMinutes == 0 {
		cfg.Tracker.IntervalMinutes = 30
	}
	if cfg.Tracker.DefaultFetchCount == 0 {
		cfg.Tracker.DefaultFetchCount = 10
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}

	if cfg.Tracker.DataDir == "" {
		home, _ := os.UserHomeDir()
		if home != "" {
			cfg.Tracker.DataDir = home + "/.wallatrack"
		} else {
			cfg.Tracker.DataDir = "./.wallatrack-data"
		}
	} else if strings.HasPrefix(cfg.Tracker.DataDir, "~/") {
		// Go 不会自动展开 ~，需要手动替换为用户主目录
		home, _ := os.UserHomeDir()
		if home != "" {
			cfg.Tracker.DataDir = home + cfg.Tracker.DataDir[1:]
		}
	}

	// 去除凭据两端可能的空白（环境变量展开后常见）
	cfg.Wallabag.ClientID = strings.TrimSpace(cfg.Wallabag.ClientID)
	cfg.Wallabag.ClientSecret = strings.TrimSpace(cfg.Wallabag.ClientSecret)
	cfg.Wallabag.Username = strings.TrimSpace(cfg.Wallabag.Username)
	cfg.Wallabag.Password = strings.TrimSpace(cfg.Wallabag.Password)
}

// Validate 检查必填项。凭据缺失时返回错误，调用方应以退出码 1 终止。
func (c *Config) Validate() error {
	var missing []string
	if c.Wallabag.ClientID == "" {
		missing = append(missing, "wallabag.client_id")
	}
	if c.Wallabag.ClientSecret == "" {
		missing = append(missing, "wallabag.client_secret")
	}
	if c.Wallabag.Username == "" {
		missing = append(missing, "wallabag.username")
	}
	if c.Wallabag.Password == "" {
		missing = append(missing, "wallabag.password")
	}
	if len(missing) > 0 {
		return fmt.Errorf("缺少必填配置项: %s", strings.Join(missing, ", "))
	}
	return nil
}
