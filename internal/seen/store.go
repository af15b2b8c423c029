// Package seen 维护"哪些条目已经投递过"的持久化记录。
package seen

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/iabetor/wallatrack/internal/logger"
)

// Record 单个已见条目的记录。写入后不再修改，只用于成员判断和排查。
type Record struct {
	URL    string    `json:"url"`
	Title  string    `json:"title"`
	SeenAt time.Time `json:"seen_at"`
}

// Store 已见条目存储。
// 外层键为订阅源 URL，内层键为 Key 计算出的摘要。
// 只被轮询循环的单个 goroutine 访问，不需要加锁。
type Store struct {
	filePath string
	feeds    map[string]map[string]Record
}

// Key 根据订阅源 URL 和条目链接计算确定性的条目标识。
// 同样的输入在任何进程中都得到同样的摘要。
func Key(feedURL, link string) string {
	sum := sha256.Sum256([]byte(feedURL + ":" + link))
	return hex.EncodeToString(sum[:])
}

// NewStore 创建并加载已见条目存储。
// 文件缺失、内容损坏或路径被其他东西占用时都退回空存储，绝不让进程启动失败；
// 代价是损坏恢复后已投递的条目可能被重复投递一次。
func NewStore(filePath string) *Store {
	s := &Store{
		filePath: filePath,
		feeds:    make(map[string]map[string]Record),
	}
	if err := s.load(); err != nil {
		logger.Warnf("[seen] 加载已见条目失败（将使用空记录）: %v", err)
		s.feeds = make(map[string]map[string]Record)
	}
	return s
}

func (s *Store) load() error {
	// 挂载残留可能在该路径留下一个空目录，先清理掉才能正常写入
	if info, err := os.Stat(s.filePath); err == nil && !info.Mode().IsRegular() {
		logger.Warnf("[seen] %s 不是普通文件，移除后重建", s.filePath)
		if err := os.RemoveAll(s.filePath); err != nil {
			return fmt.Errorf("移除异常路径失败: %w", err)
		}
		return nil
	}

	data, err := os.ReadFile(s.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return json.Unmarshal(data, &s.feeds)
}

// HasFeed 判断某个订阅源是否处理过至少一次。
// 首次见到的订阅源走受限的回填抓取，避免把历史条目全部灌给 Wallabag。
func (s *Store) HasFeed(feedURL string) bool {
	_, ok := s.feeds[feedURL]
	return ok
}

// Contains 判断某个条目是否已经见过。
func (s *Store) Contains(feedURL, key string) bool {
	_, ok := s.feeds[feedURL][key]
	return ok
}

// Add 记录一个新条目。之后对同一 key 的 Contains 返回 true。
func (s *Store) Add(feedURL, key string, rec Record) {
	if s.feeds[feedURL] == nil {
		s.feeds[feedURL] = make(map[string]Record)
	}
	s.feeds[feedURL][key] = rec
}

// Count 返回某个订阅源已记录的条目数。
func (s *Store) Count(feedURL string) int {
	return len(s.feeds[feedURL])
}

// Persist 把当前全量状态写入持久化文件。
// 先写临时文件再重命名，崩溃时磁盘上要么是旧快照要么是新快照。
// 失败只记日志不返回致命错误，内存状态继续有效，下次成功的 Persist 会补上。
func (s *Store) Persist() error {
	data, err := json.MarshalIndent(s.feeds, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化已见条目失败: %w", err)
	}

	dir := filepath.Dir(s.filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("创建数据目录失败: %w", err)
	}

	tmp := s.filePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("写入临时文件失败: %w", err)
	}
	if err := os.Rename(tmp, s.filePath); err != nil {
		return fmt.Errorf("替换快照文件失败: %w", err)
	}
	return nil
}
