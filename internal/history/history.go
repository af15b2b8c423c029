// Package history 记录每次投递尝试的结果。
package history

import (
	"fmt"
	"time"

	"github.com/iabetor/wallatrack/internal/database"
)

// 投递状态。
const (
	StatusDelivered = "delivered"
	StatusFailed    = "failed"
)

// Attempt 一次投递尝试。
type Attempt struct {
	CycleID   string
	FeedURL   string
	ItemURL   string
	Title     string
	EntryID   int
	Status    string
	Error     string
	CreatedAt time.Time
}

// Store 投递历史存储。
type Store struct {
	db *database.DB
}

// NewStore 创建投递历史存储。
func NewStore(db *database.DB) *Store {
	return &Store{db: db}
}

// Record 写入一次投递尝试。
func (s *Store) Record(a Attempt) error {
	createdAt := a.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := s.db.Exec(
		`INSERT INTO delivery_log (cycle_id, feed_url, item_url, title, entry_id, status, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.CycleID, a.FeedURL, a.ItemURL, a.Title, a.EntryID, a.Status, a.Error,
		createdAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("写入投递历史失败: %w", err)
	}
	return nil
}

// Recent 返回最近的 n 条投递记录，按时间倒序。
func (s *Store) Recent(n int) ([]Attempt, error) {
	rows, err := s.db.Query(
		`SELECT cycle_id, feed_url, item_url, title, entry_id, status, error, created_at
		 FROM delivery_log ORDER BY id DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("查询投递历史失败: %w", err)
	}
	defer rows.Close()

	var attempts []Attempt
	for rows.Next() {
		var a Attempt
		var createdAt string
		if err := rows.Scan(&a.CycleID, &a.FeedURL, &a.ItemURL, &a.Title,
			&a.EntryID, &a.Status, &a.Error, &createdAt); err != nil {
			return nil, fmt.Errorf("读取投递历史失败: %w", err)
		}
		a.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}
