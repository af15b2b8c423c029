// Package tracker 实现轮询循环：抓取订阅源、过滤已见条目、投递到 Wallabag。
package tracker

import (
	"context"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/iabetor/wallatrack/internal/config"
	"github.com/iabetor/wallatrack/internal/feed"
	"github.com/iabetor/wallatrack/internal/history"
	"github.com/iabetor/wallatrack/internal/logger"
	"github.com/iabetor/wallatrack/internal/seen"
	"github.com/iabetor/wallatrack/internal/wallabag"
)

// sleepStep 休眠期间检查关闭请求的粒度，决定关闭延迟的上限。
const sleepStep = time.Second

// Tracker 轮询循环。
// 单 goroutine 顺序执行，SeenStore 只在这里被访问。
type Tracker struct {
	cfg     *config.Config
	reader  *feed.Reader
	client  *wallabag.Client
	store   *seen.Store
	history *history.Store // 可为 nil，历史记录是可选能力
}

// New 创建轮询循环。
func New(cfg *config.Config, reader *feed.Reader, client *wallabag.Client,
	store *seen.Store, hist *history.Store) *Tracker {
	return &Tracker{
		cfg:     cfg,
		reader:  reader,
		client:  client,
		store:   store,
		history: hist,
	}
}

// Run 运行轮询循环直到 ctx 被取消。once 为 true 时只跑一个周期。
// 无论因何种原因退出，最后都会无条件持久化一次已见条目。
func (t *Tracker) Run(ctx context.Context, once bool) {
	logger.Infof("[tracker] 轮询循环启动 (间隔 %d 分钟)", t.cfg.Tracker.IntervalMinutes)

	defer func() {
		if err := t.store.Persist(); err != nil {
			logger.Errorf("[tracker] 退出时持久化已见条目失败: %v", err)
		}
		logger.Infof("[tracker] 轮询循环已停止")
	}()

	for {
		t.runCycle(ctx)

		if once {
			return
		}
		if !t.sleep(ctx) {
			return
		}
	}
}

// runCycle 执行一个完整的轮询周期。
// 任何单个订阅源的失败都不影响其他订阅源，更不允许让进程退出。
func (t *Tracker) runCycle(ctx context.Context) {
	cycleID := uuid.NewString()[:8]

	feeds, err := config.LoadFeeds(t.cfg.Tracker.FeedsFile)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Warnf("[tracker] 订阅源文件不存在: %s，请先配置订阅源", t.cfg.Tracker.FeedsFile)
		} else {
			logger.Errorf("[tracker] 加载订阅源失败: %v", err)
		}
		return
	}
	if len(feeds) == 0 {
		logger.Warnf("[tracker] 没有配置任何订阅源")
		return
	}

	logger.Infof("[tracker] 周期 %s 开始，处理 %d 个订阅源", cycleID, len(feeds))
	for _, fc := range feeds {
		select {
		case <-ctx.Done():
			logger.Infof("[tracker] 收到关闭请求，中止周期 %s", cycleID)
			return
		default:
		}

		if fc.URL == "" {
			logger.Errorf("[tracker] 订阅源配置缺少 URL，跳过: %+v", fc)
			continue
		}
		t.processFeed(ctx, cycleID, fc)
	}
}

// processFeed 处理单个订阅源。
// panic 在这里兜底，等价于该订阅源本周期没有新条目。
func (t *Tracker) processFeed(ctx context.Context, cycleID string, fc config.FeedConfig) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("[tracker] 处理订阅源 %s 时发生 panic: %v", fc.DisplayName(), r)
		}
	}()

	// 首次见到的订阅源限量回填，避免把全部历史条目灌给 Wallabag
	limit := 0
	if !t.store.HasFeed(fc.URL) {
		limit = fc.MaxItems
		if limit <= 0 {
			limit = t.cfg.Tracker.DefaultFetchCount
		}
		logger.Infof("[tracker] 新订阅源 %s，回填最近 %d 条", fc.DisplayName(), limit)
	}

	items, err := t.reader.Read(ctx, fc.URL, limit)
	if err != nil {
		logger.Warnf("[tracker] 抓取订阅源 %s 失败: %v", fc.DisplayName(), err)
		return
	}
	if len(items) == 0 {
		logger.Warnf("[tracker] 订阅源 %s 没有条目", fc.DisplayName())
		return
	}
	logger.Infof("[tracker] 订阅源 %s 返回 %d 条", fc.DisplayName(), len(items))

	added := 0
	for _, item := range items {
		if item.Link == "" {
			continue
		}

		key := seen.Key(fc.URL, item.Link)
		if t.store.Contains(fc.URL, key) {
			continue
		}

		// 投递前先标记已见：后续条目投递变慢或出错时不会在下个周期重复轰炸，
		// 代价是投递失败的条目不会重试
		t.store.Add(fc.URL, key, seen.Record{
			URL:    item.Link,
			Title:  item.Title,
			SeenAt: time.Now(),
		})
		added++

		t.deliver(ctx, cycleID, fc, item)
	}

	if added > 0 {
		logger.Infof("[tracker] 订阅源 %s 新增 %d 条", fc.DisplayName(), added)
		if err := t.store.Persist(); err != nil {
			logger.Errorf("[tracker] 持久化已见条目失败: %v", err)
		}
	}
}

// deliver 向 Wallabag 投递一个条目并记录结果。
func (t *Tracker) deliver(ctx context.Context, cycleID string, fc config.FeedConfig, item feed.Item) {
	entry := wallabag.Entry{
		URL:         item.Link,
		Title:       item.Title,
		Tags:        mergeTags(fc.Tags, item.Categories),
		PublishedAt: item.Published,
	}

	entryID, err := t.client.Submit(ctx, entry)
	attempt := history.Attempt{
		CycleID: cycleID,
		FeedURL: fc.URL,
		ItemURL: item.Link,
		Title:   item.Title,
		EntryID: entryID,
	}

	if err != nil {
		logger.Errorf("[tracker] 投递失败 %s: %v", item.Link, err)
		attempt.Status = history.StatusFailed
		attempt.Error = err.Error()
	} else {
		logger.Infof("[tracker] 已投递: %s (条目 %d)", titleOrURL(item), entryID)
		attempt.Status = history.StatusDelivered
	}

	if t.history != nil {
		if err := t.history.Record(attempt); err != nil {
			logger.Warnf("[tracker] 记录投递历史失败: %v", err)
		}
	}
}

// sleep 休眠到下个周期，期间以 sleepStep 为粒度响应关闭请求。
// 返回 false 表示收到了关闭请求。
func (t *Tracker) sleep(ctx context.Context) bool {
	interval := time.Duration(t.cfg.Tracker.IntervalMinutes) * time.Minute
	logger.Infof("[tracker] 休眠 %d 分钟...", t.cfg.Tracker.IntervalMinutes)

	deadline := time.Now().Add(interval)
	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return false
		case <-time.After(sleepStep):
		}
	}
	return true
}

// mergeTags 合并订阅源配置的标签和条目自带的分类，去重保序。
func mergeTags(feedTags, categories []string) []string {
	if len(feedTags) == 0 && len(categories) == 0 {
		return nil
	}
	dup := make(map[string]bool)
	var merged []string
	for _, tag := range append(append([]string{}, feedTags...), categories...) {
		if tag == "" || dup[tag] {
			continue
		}
		dup[tag] = true
		merged = append(merged, tag)
	}
	return merged
}

func titleOrURL(item feed.Item) string {
	if item.Title != "" {
		return item.Title
	}
	return item.Link
}
