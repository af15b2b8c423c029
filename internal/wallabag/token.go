// Package wallabag 提供 Wallabag API 的认证和条目投递客户端。
package wallabag

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/iabetor/wallatrack/internal/logger"
)

// tokenSafetyMargin 在令牌真正过期前提前刷新的余量。
const tokenSafetyMargin = 60 * time.Second

// Credentials OAuth2 password grant 所需的四项凭据。
type Credentials struct {
	ClientID     string
	ClientSecret string
	Username     string
	Password     string
}

// TokenManager 获取并缓存 Wallabag 的访问令牌。
// 令牌只存在内存中，过期前通过 password grant 重新换取。
type TokenManager struct {
	baseURL string
	creds   Credentials
	client  *http.Client

	cachedToken string
	tokenExpiry time.Time
}

// NewTokenManager 创建令牌管理器。
func NewTokenManager(baseURL string, creds Credentials, client *http.Client) *TokenManager {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &TokenManager{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		creds:   creds,
		client:  client,
	}
}

// tokenResponse /oauth/v2/token 的响应体。
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// Token 返回当前有效的访问令牌，必要时先执行换取。
// 任何失败都返回错误而不是让进程崩溃，调用方跳过本次投递即可。
func (m *TokenManager) Token(ctx context.Context) (string, error) {
	if m.cachedToken != "" && time.Now().Before(m.tokenExpiry) {
		return m.cachedToken, nil
	}

	form := url.Values{
		"grant_type":    {"password"},
		"client_id":     {m.creds.ClientID},
		"client_secret": {m.creds.ClientSecret},
		"username":      {m.creds.Username},
		"password":      {m.creds.Password},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		m.baseURL+"/oauth/v2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("创建令牌请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := m.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("请求令牌接口失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("令牌接口返回状态码 %d: %s", resp.StatusCode, string(body))
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("解析令牌响应失败: %w", err)
	}
	if tr.AccessToken == "" {
		return "", fmt.Errorf("令牌响应缺少 access_token")
	}

	lifetime := time.Duration(tr.ExpiresIn) * time.Second
	if lifetime == 0 {
		lifetime = time.Hour
	}

	m.cachedToken = tr.AccessToken
	m.tokenExpiry = time.Now().Add(lifetime - tokenSafetyMargin)
	logger.Infof("[wallabag] 已获取访问令牌 (有效期 %s)", lifetime)
	return m.cachedToken, nil
}
