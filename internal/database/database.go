// Package database 提供 SQLite 数据库连接管理。
package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/iabetor/wallatrack/internal/logger"
	_ "modernc.org/sqlite"
)

// DB wallatrack 的 SQLite 数据库连接。
// 目前只存放投递历史，便于排查"某条为什么没进 Wallabag"。
type DB struct {
	*sql.DB
	path string
}

// Open 打开或创建数据库。
// dataDir 为数据目录，数据库文件固定为其中的 wallatrack.db。
func Open(dataDir string) (*DB, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("创建数据目录失败: %w", err)
	}
	dbPath := filepath.Join(dataDir, "wallatrack.db")

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("打开数据库失败: %w", err)
	}

	// WAL 模式，写投递历史不阻塞读取
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("设置 WAL 模式失败: %w", err)
	}

	logger.Infof("[database] 数据库已打开: %s", dbPath)
	return &DB{DB: db, path: dbPath}, nil
}

// Path 返回数据库文件路径。
func (db *DB) Path() string {
	return db.path
}

// Migrate 运行数据库迁移。
func (db *DB) Migrate() error {
	migrations := []string{
		// 投递历史表，每次投递尝试一行
		`CREATE TABLE IF NOT EXISTS delivery_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			cycle_id TEXT NOT NULL,
			feed_url TEXT NOT NULL,
			item_url TEXT NOT NULL,
			title TEXT DEFAULT '',
			entry_id INTEGER DEFAULT 0,
			status TEXT NOT NULL,
			error TEXT DEFAULT '',
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_delivery_log_feed
			ON delivery_log(feed_url, created_at)`,
	}

	for _, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return fmt.Errorf("执行迁移失败: %w", err)
		}
	}
	return nil
}
