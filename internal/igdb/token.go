package igdb

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
)

// Credential はプロバイダAPIへのアクセスに使うイミュータブルなクレデンシャル。
// リフレッシュは新しい値を生成し、共有ヘッダーの書き換えは行わない。
type Credential struct {
	ClientID    string
	AccessToken string
}

// Empty はアクセストークンが未設定かどうかを返す。
func (c Credential) Empty() bool {
	return c.AccessToken == ""
}

// TokenSource はOAuth client_credentialsフローでクレデンシャルを管理する。
// Refreshは冪等であり、並行する401起因の重複リフレッシュも安全に処理できる。
type TokenSource struct {
	httpClient   *http.Client
	logger       *slog.Logger
	tokenURL     string
	clientID     string
	clientSecret string

	mu      sync.RWMutex
	current Credential
}

// NewTokenSource はTokenSourceを生成する。
// seedTokenが空でない場合は初期クレデンシャルとして使用する。
func NewTokenSource(httpClient *http.Client, logger *slog.Logger, tokenURL, clientID, clientSecret, seedToken string) *TokenSource {
	return &TokenSource{
		httpClient:   httpClient,
		logger:       logger,
		tokenURL:     tokenURL,
		clientID:     clientID,
		clientSecret: clientSecret,
		current: Credential{
			ClientID:    clientID,
			AccessToken: seedToken,
		},
	}
}

// Credential は現在のクレデンシャルのコピーを返す。
func (ts *TokenSource) Credential() Credential {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	return ts.current
}

// Refresh はトークンエンドポイントから新しいクレデンシャルを取得する。
// 成功時は現在のクレデンシャルを置き換え、新しい値を返す。
func (ts *TokenSource) Refresh(ctx context.Context) (Credential, error) {
	params := url.Values{}
	params.Set("client_id", ts.clientID)
	params.Set("client_secret", ts.clientSecret)
	params.Set("grant_type", "client_credentials")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ts.tokenURL+"?"+params.Encode(), nil)
	if err != nil {
		return Credential{}, fmt.Errorf("failed to build token request: %w", err)
	}

	resp, err := ts.httpClient.Do(req)
	if err != nil {
		ts.logger.Error("token refresh request failed",
			slog.String("error", err.Error()),
		)
		return Credential{}, fmt.Errorf("token refresh request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		ts.logger.Error("token endpoint returned error status",
			slog.Int("http_status", resp.StatusCode),
			slog.String("body", string(body)),
		)
		return Credential{}, fmt.Errorf("token endpoint returned status %d", resp.StatusCode)
	}

	var payload struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Credential{}, fmt.Errorf("failed to decode token response: %w", err)
	}
	if payload.AccessToken == "" {
		return Credential{}, fmt.Errorf("token endpoint returned empty access token")
	}

	cred := Credential{
		ClientID:    ts.clientID,
		AccessToken: payload.AccessToken,
	}

	ts.mu.Lock()
	ts.current = cred
	ts.mu.Unlock()

	ts.logger.Info("provider access token refreshed",
		slog.String("token_prefix", tokenPrefix(payload.AccessToken)),
	)

	return cred, nil
}

// tokenPrefix はログ用にトークンの先頭8文字だけを返す。
func tokenPrefix(token string) string {
	if len(token) <= 8 {
		return strings.Repeat("*", len(token))
	}
	return token[:8] + "..."
}
