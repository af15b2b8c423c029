package seen

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestKeyDeterministic(t *testing.T) {
	k1 := Key("https://example.com/feed", "https://example.com/post/1")
	k2 := Key("https://example.com/feed", "https://example.com/post/1")
	if k1 != k2 {
		t.Fatalf("相同输入应得到相同摘要: %s != %s", k1, k2)
	}
	if len(k1) != 64 {
		t.Errorf("摘要应为 64 位十六进制，得到 %d 位", len(k1))
	}

	k3 := Key("https://example.com/feed", "https://example.com/post/2")
	if k1 == k3 {
		t.Error("不同链接不应得到相同摘要")
	}

	// 同一链接在不同订阅源下属于不同命名空间
	k4 := Key("https://other.com/feed", "https://example.com/post/1")
	if k1 == k4 {
		t.Error("不同订阅源不应得到相同摘要")
	}
}

func TestStoreAddAndContains(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "seen.json"))

	feedURL := "https://example.com/feed"
	key := Key(feedURL, "https://example.com/post/1")

	if store.HasFeed(feedURL) {
		t.Fatal("空存储不应包含任何订阅源")
	}
	if store.Contains(feedURL, key) {
		t.Fatal("空存储不应包含任何条目")
	}

	store.Add(feedURL, key, Record{URL: "https://example.com/post/1", Title: "测试", SeenAt: time.Now()})

	if !store.HasFeed(feedURL) {
		t.Error("添加条目后订阅源应被视为已处理过")
	}
	if !store.Contains(feedURL, key) {
		t.Error("添加后 Contains 应返回 true")
	}
	if store.Count(feedURL) != 1 {
		t.Errorf("期望 1 条记录，得到 %d 条", store.Count(feedURL))
	}
}

func TestStorePersistAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seen.json")
	feedURL := "https://example.com/feed"
	key := Key(feedURL, "https://example.com/post/1")

	store1 := NewStore(path)
	store1.Add(feedURL, key, Record{URL: "https://example.com/post/1", Title: "测试", SeenAt: time.Now()})
	if err := store1.Persist(); err != nil {
		t.Fatalf("Persist 失败: %v", err)
	}

	// 模拟重启，重新加载
	store2 := NewStore(path)
	if !store2.Contains(feedURL, key) {
		t.Error("重启后应仍包含已持久化的条目")
	}
	if !store2.HasFeed(feedURL) {
		t.Error("重启后订阅源应仍被视为已处理过")
	}
}

func TestStoreMissingFile(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "not_exist.json"))
	if store.HasFeed("https://example.com/feed") {
		t.Error("文件不存在时应返回空存储")
	}
}

func TestStoreCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seen.json")
	if err := os.WriteFile(path, []byte("{ 这不是合法的 JSON"), 0644); err != nil {
		t.Fatal(err)
	}

	// 损坏的文件不应让启动失败，退回空存储
	store := NewStore(path)
	if store.HasFeed("https://example.com/feed") {
		t.Error("损坏文件应退回空存储")
	}

	// 空存储可以正常持久化，覆盖损坏内容
	if err := store.Persist(); err != nil {
		t.Fatalf("损坏恢复后 Persist 失败: %v", err)
	}
}

func TestStoreDirectoryAtPath(t *testing.T) {
	// 挂载残留可能在持久化路径留下一个空目录
	path := filepath.Join(t.TempDir(), "seen.json")
	if err := os.Mkdir(path, 0755); err != nil {
		t.Fatal(err)
	}

	store := NewStore(path)
	store.Add("https://example.com/feed", Key("https://example.com/feed", "a"),
		Record{URL: "a", SeenAt: time.Now()})
	if err := store.Persist(); err != nil {
		t.Fatalf("目录被清理后 Persist 应成功: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("持久化文件不存在: %v", err)
	}
	if !info.Mode().IsRegular() {
		t.Error("持久化路径应是普通文件")
	}
}

func TestStorePersistStableOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seen.json")
	store := NewStore(path)

	seenAt := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	feedURL := "https://example.com/feed"
	for _, link := range []string{"https://example.com/a", "https://example.com/b", "https://example.com/c"} {
		store.Add(feedURL, Key(feedURL, link), Record{URL: link, SeenAt: seenAt})
	}

	if err := store.Persist(); err != nil {
		t.Fatalf("Persist 失败: %v", err)
	}
	first, _ := os.ReadFile(path)

	if err := store.Persist(); err != nil {
		t.Fatalf("第二次 Persist 失败: %v", err)
	}
	second, _ := os.ReadFile(path)

	// 快照要稳定有序，方便人工 diff
	if !bytes.Equal(first, second) {
		t.Error("相同状态的两次快照内容应逐字节一致")
	}
}
