// Package igdb はカタログプロバイダ（IGDB）のクライアントを提供する。
// リクエストボディの組み立て、クレデンシャル管理、エラー分類を含む。
package igdb

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hitoshi/gamedex/internal/metrics"
	"github.com/hitoshi/gamedex/internal/model"
)

const (
	// defaultEndpoint はゲームレコード取得APIのエンドポイント。
	defaultEndpoint = "https://api.igdb.com/v4/games"
	// maxBodyLog はエラーログに残すレスポンスボディの最大バイト数。
	maxBodyLog = 512
)

// Client はカタログプロバイダAPIのクライアント。
// 401発生時のリフレッシュ判断は呼び出し側が行う（RefreshCredentialを参照）。
type Client struct {
	httpClient    *http.Client
	tokens        *TokenSource
	logger        *slog.Logger
	recorder      metrics.Recorder
	endpoint      string // テスト用にエンドポイントを差し替え可能
	timeout       time.Duration
	detailTimeout time.Duration
}

// NewClient はClientの新しいインスタンスを生成する。
func NewClient(httpClient *http.Client, tokens *TokenSource, logger *slog.Logger, recorder metrics.Recorder, timeout, detailTimeout time.Duration) *Client {
	return &Client{
		httpClient:    httpClient,
		tokens:        tokens,
		logger:        logger,
		recorder:      recorder,
		endpoint:      defaultEndpoint,
		timeout:       timeout,
		detailTimeout: detailTimeout,
	}
}

// SetEndpoint はエンドポイントを差し替える。テスト用。
func (c *Client) SetEndpoint(endpoint string) {
	c.endpoint = endpoint
}

// RefreshCredential はプロバイダクレデンシャルを1回リフレッシュする。
// 401からの回復用。リフレッシュ自体が失敗した場合はエラーを返す。
func (c *Client) RefreshCredential(ctx context.Context) error {
	_, err := c.tokens.Refresh(ctx)
	c.recorder.RecordTokenRefresh(err == nil)
	return err
}

// Search は全文検索でゲーム候補を取得する。
func (c *Client) Search(ctx context.Context, term string, limit int) ([]model.Game, error) {
	body := newQuery(searchFields).Search(term).Limit(limit).String()
	return c.query(ctx, "search", body, c.timeout)
}

// Popular は高評価ゲーム（レーティング80以上、レビュー数5超）を取得する。
func (c *Client) Popular(ctx context.Context, limit int) ([]model.Game, error) {
	body := newQuery(popularFields).
		Where("aggregated_rating >= 80 & aggregated_rating_count > 5").
		Sort("aggregated_rating desc").
		Limit(limit).
		String()
	return c.query(ctx, "popular", body, c.timeout)
}

// Browse は履歴除外付きでカタログの1ページを取得する。
// excludeIDsが空の場合は除外条件を付けない。
func (c *Client) Browse(ctx context.Context, excludeIDs []int64, limit, offset int) ([]model.Game, error) {
	b := newQuery(browseFields)
	if len(excludeIDs) > 0 {
		b.Where(fmt.Sprintf("id != (%s)", joinIDs(excludeIDs)))
	}
	body := b.Limit(limit).Offset(offset).String()
	return c.query(ctx, "browse", body, c.timeout)
}

// GameByID はゲーム詳細を1件取得する。見つからない場合はnilを返す。
// 詳細取得はペイロードが大きいため長めのタイムアウトを使う。
func (c *Client) GameByID(ctx context.Context, id int64) (*model.Game, error) {
	body := newQuery(detailFields).Where(fmt.Sprintf("id = %d", id)).Limit(1).String()
	games, err := c.query(ctx, "detail", body, c.detailTimeout)
	if err != nil {
		return nil, err
	}
	if len(games) == 0 {
		return nil, nil
	}
	return &games[0], nil
}

// GamesByIDs は指定ID群のゲームをサマリー用フィールドで取得する。
func (c *Client) GamesByIDs(ctx context.Context, ids []int64) ([]model.Game, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	body := newQuery(recoFields).Where(fmt.Sprintf("id = (%s)", joinIDs(ids))).String()
	return c.query(ctx, "by_ids", body, c.timeout)
}

// HighRated はレーティングが閾値を超えるゲームを取得する。レコメンドプール用。
func (c *Client) HighRated(ctx context.Context, minRating float64, limit int) ([]model.Game, error) {
	body := newQuery(recoFields).
		Where(fmt.Sprintf("aggregated_rating > %g", minRating)).
		Limit(limit).
		String()
	return c.query(ctx, "high_rated", body, c.detailTimeout)
}

// SimilarGameIDs は複数ゲームの類似ゲームID一覧をまとめて取得する。
// ゲームごとのクエリを改行で連結した1リクエストで発行する。
func (c *Client) SimilarGameIDs(ctx context.Context, ids []int64) ([][]int64, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	bodies := make([]string, len(ids))
	for i, id := range ids {
		bodies[i] = newQuery("similar_games.id").Where(fmt.Sprintf("id = %d", id)).Limit(1).String()
	}
	raw, err := c.post(ctx, "similar", strings.Join(bodies, "\n"), c.timeout)
	if err != nil {
		return nil, err
	}

	groups, err := decodeGameGroups(raw)
	if err != nil {
		c.logger.Error("failed to decode similar games response",
			slog.String("error", err.Error()),
		)
		return nil, model.NewUpstreamUnavailableError()
	}

	result := make([][]int64, 0, len(groups))
	for _, games := range groups {
		var similar []int64
		for _, g := range games {
			for _, s := range g.SimilarGames {
				if s.ID != 0 {
					similar = append(similar, s.ID)
				}
			}
		}
		result = append(result, similar)
	}
	return result, nil
}

// query はクエリボディをPOSTしてゲーム一覧にデコードする。
func (c *Client) query(ctx context.Context, endpoint, body string, timeout time.Duration) ([]model.Game, error) {
	raw, err := c.post(ctx, endpoint, body, timeout)
	if err != nil {
		return nil, err
	}

	var games []model.Game
	if err := json.Unmarshal(raw, &games); err != nil {
		c.logger.Error("failed to decode provider response",
			slog.String("endpoint", endpoint),
			slog.String("error", err.Error()),
		)
		return nil, model.NewUpstreamUnavailableError()
	}
	return games, nil
}

// post はプロバイダにクエリボディを送信し、生のレスポンスボディを返す。
// 401はUpstreamAuthExpired、それ以外の失敗はUpstreamUnavailableに分類する。
func (c *Client) post(ctx context.Context, endpoint, body string, timeout time.Duration) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewBufferString(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build provider request: %w", err)
	}

	cred := c.tokens.Credential()
	req.Header.Set("Client-ID", cred.ClientID)
	req.Header.Set("Authorization", "Bearer "+cred.AccessToken)
	req.Header.Set("Content-Type", "text/plain")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.recorder.RecordProviderLatency(time.Since(start))
	if err != nil {
		c.recorder.RecordProviderFetch(endpoint, false)
		c.logger.Error("provider request failed",
			slog.String("endpoint", endpoint),
			slog.String("error", err.Error()),
		)
		return nil, model.NewUpstreamUnavailableError()
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		c.recorder.RecordProviderFetch(endpoint, false)
		c.logger.Warn("provider credential expired",
			slog.String("endpoint", endpoint),
		)
		return nil, model.NewUpstreamAuthExpiredError()
	}
	if resp.StatusCode != http.StatusOK {
		c.recorder.RecordProviderFetch(endpoint, false)
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxBodyLog))
		c.logger.Error("provider returned error status",
			slog.String("endpoint", endpoint),
			slog.Int("http_status", resp.StatusCode),
			slog.String("body", string(snippet)),
		)
		return nil, model.NewUpstreamUnavailableError()
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		c.recorder.RecordProviderFetch(endpoint, false)
		return nil, model.NewUpstreamUnavailableError()
	}

	c.recorder.RecordProviderFetch(endpoint, true)
	return raw, nil
}

// decodeGameGroups は連結クエリのレスポンスをゲーム配列のグループにデコードする。
// 単一クエリのレスポンス（フラットな配列）の場合は1グループに包んで返す。
func decodeGameGroups(raw []byte) ([][]model.Game, error) {
	var groups [][]model.Game
	if err := json.Unmarshal(raw, &groups); err == nil {
		return groups, nil
	}
	var flat []model.Game
	if err := json.Unmarshal(raw, &flat); err != nil {
		return nil, err
	}
	return [][]model.Game{flat}, nil
}
