package wallabag

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/iabetor/wallatrack/internal/logger"
)

// publishedAtLayout Wallabag 接受的发布时间格式，带符号的四位时区偏移，
// 固定 24 个字符，如 2026-08-31T10:00:00+0800。
const publishedAtLayout = "2006-01-02T15:04:05-0700"

// defaultPatchDelay 创建条目后等待服务端完成异步抓取的时间，
// 之后再补写发布时间才不会被覆盖。
const defaultPatchDelay = 2 * time.Second

// Entry 一次投递请求。
type Entry struct {
	URL         string
	Title       string
	Tags        []string
	PublishedAt *time.Time
}

// Client Wallabag 条目投递客户端。
type Client struct {
	baseURL    string
	tokens     *TokenManager
	httpClient *http.Client
	patchDelay time.Duration
}

// NewClient 创建投递客户端。令牌管理器由调用方持有并传入。
func NewClient(baseURL string, tokens *TokenManager) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		tokens:     tokens,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		patchDelay: defaultPatchDelay,
	}
}

// createRequest /api/entries.json 的请求体。
type createRequest struct {
	URL         string `json:"url"`
	Title       string `json:"title,omitempty"`
	Tags        string `json:"tags,omitempty"`
	PublishedAt string `json:"published_at,omitempty"`
}

// entryResponse 条目接口响应中我们关心的字段。
type entryResponse struct {
	ID          int    `json:"id"`
	URL         string `json:"url"`
	Title       string `json:"title"`
	PublishedAt string `json:"published_at"`
}

// Submit 向 Wallabag 提交一个条目，返回服务端分配的条目 ID。
// 拿不到令牌时立即失败；创建成功但发布时间未被采纳时，
// 延迟片刻后用部分更新补写，补写失败只记日志不影响整体结果。
func (c *Client) Submit(ctx context.Context, entry Entry) (int, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return 0, fmt.Errorf("无可用令牌: %w", err)
	}

	reqBody := createRequest{
		URL:   entry.URL,
		Title: entry.Title,
	}
	if len(entry.Tags) > 0 {
		reqBody.Tags = strings.Join(entry.Tags, ",")
	}
	if entry.PublishedAt != nil {
		reqBody.PublishedAt = entry.PublishedAt.Format(publishedAtLayout)
	}

	var created entryResponse
	if err := c.doJSON(ctx, http.MethodPost, c.baseURL+"/api/entries.json", token, reqBody, &created); err != nil {
		return 0, err
	}

	// 服务端创建时可能不采纳发布时间覆盖，响应没回显就补一刀
	if reqBody.PublishedAt != "" && created.PublishedAt == "" {
		c.patchPublishedAt(ctx, token, created.ID, reqBody.PublishedAt)
	}

	return created.ID, nil
}

// patchPublishedAt 对已创建的条目补写发布时间。
func (c *Client) patchPublishedAt(ctx context.Context, token string, entryID int, publishedAt string) {
	select {
	case <-time.After(c.patchDelay):
	case <-ctx.Done():
		return
	}

	patchURL := fmt.Sprintf("%s/api/entries/%d.json", c.baseURL, entryID)
	body := map[string]string{"published_at": publishedAt}
	if err := c.doJSON(ctx, http.MethodPatch, patchURL, token, body, nil); err != nil {
		logger.Warnf("[wallabag] 补写条目 %d 的发布时间失败: %v", entryID, err)
		return
	}
	logger.Debugf("[wallabag] 已补写条目 %d 的发布时间 %s", entryID, publishedAt)
}

// doJSON 发送一次带认证的 JSON 请求并解码响应。
func (c *Client) doJSON(ctx context.Context, method, url, token string, reqBody, respBody interface{}) error {
	data, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("序列化请求体失败: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("创建请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("请求失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("API 返回状态码 %d: %s", resp.StatusCode, string(body))
	}

	if respBody == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(respBody); err != nil {
		return fmt.Errorf("解析响应失败: %w", err)
	}
	return nil
}
