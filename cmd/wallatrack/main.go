package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/iabetor/wallatrack/internal/config"
	"github.com/iabetor/wallatrack/internal/database"
	"github.com/iabetor/wallatrack/internal/feed"
	"github.com/iabetor/wallatrack/internal/history"
	"github.com/iabetor/wallatrack/internal/logger"
	"github.com/iabetor/wallatrack/internal/seen"
	"github.com/iabetor/wallatrack/internal/tracker"
	"github.com/iabetor/wallatrack/internal/wallabag"
)

func main() {
	configPath := flag.String("config", "configs/wallatrack.yaml", "配置文件路径")
	once := flag.Bool("once", false, "只执行一个轮询周期后退出")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "配置校验失败: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(logger.Config{Level: cfg.Log.Level, File: cfg.Log.File}); err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Infof("[main] wallatrack 启动中")
	logger.Infof("[main] Wallabag 地址: %s", cfg.Wallabag.URL)
	logger.Infof("[main] 订阅源文件: %s", cfg.Tracker.FeedsFile)
	logger.Infof("[main] 已见条目文件: %s", cfg.Tracker.SeenFile)
	logger.Infof("[main] 轮询间隔: %d 分钟", cfg.Tracker.IntervalMinutes)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 监听系统信号，优雅关闭
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Infof("[main] 收到信号 %v，正在关闭...", sig)
		cancel()
	}()

	// 投递历史是可选能力，数据库打不开只降级不退出
	var hist *history.Store
	if db, err := database.Open(cfg.Tracker.DataDir); err != nil {
		logger.Errorf("[main] 打开数据库失败，投递历史不可用: %v", err)
	} else if err := db.Migrate(); err != nil {
		logger.Errorf("[main] 数据库迁移失败，投递历史不可用: %v", err)
		db.Close()
	} else {
		defer db.Close()
		hist = history.NewStore(db)
	}

	tokens := wallabag.NewTokenManager(cfg.Wallabag.URL, wallabag.Credentials{
		ClientID:     cfg.Wallabag.ClientID,
		ClientSecret: cfg.Wallabag.ClientSecret,
		Username:     cfg.Wallabag.Username,
		Password:     cfg.Wallabag.Password,
	}, nil)
	client := wallabag.NewClient(cfg.Wallabag.URL, tokens)
	store := seen.NewStore(cfg.Tracker.SeenFile)

	t := tracker.New(cfg, feed.NewReader(), client, store, hist)
	t.Run(ctx, *once)

	logger.Infof("[main] wallatrack 已停止")
}
