package game

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/gamedex/internal/cache"
	"github.com/hitoshi/gamedex/internal/metrics"
	"github.com/hitoshi/gamedex/internal/model"
)

const (
	// detailMaxAttempts は詳細取得の最大試行回数。
	detailMaxAttempts = 3
	// detailMaxRetryDelay は詳細取得のリトライ間隔の上限。
	detailMaxRetryDelay = 3 * time.Second
)

// CatalogFetcher はゲームサービスが必要とするプロバイダの能力。
type CatalogFetcher interface {
	// GameByID は指定IDのゲーム詳細を取得する。見つからない場合はnilを返す。
	GameByID(ctx context.Context, id int64) (*model.Game, error)
	// Popular は高評価タイトルを評価順に取得する。
	Popular(ctx context.Context, limit int) ([]model.Game, error)
}

// CredentialRefresher はプロバイダクレデンシャルのリフレッシュ能力。
type CredentialRefresher interface {
	RefreshCredential(ctx context.Context) error
}

// Service はゲーム詳細と人気一覧の取得を提供する。
type Service struct {
	catalog   CatalogFetcher
	refresher CredentialRefresher
	shaper    *Shaper
	cache     *cache.Cache[model.GameDetail]
	recorder  metrics.Recorder
	logger    *slog.Logger

	// sleep はリトライ間の待機。テストで差し替える。
	sleep func(ctx context.Context, d time.Duration)
}

// NewService はServiceを生成する。detailTTLは詳細キャッシュの保持期間（通常1時間）。
func NewService(catalog CatalogFetcher, refresher CredentialRefresher, shaper *Shaper, recorder metrics.Recorder, logger *slog.Logger, detailTTL time.Duration) *Service {
	return &Service{
		catalog:   catalog,
		refresher: refresher,
		shaper:    shaper,
		cache:     cache.New[model.GameDetail](detailTTL),
		recorder:  recorder,
		logger:    logger,
		sleep:     sleepContext,
	}
}

// GetGame はゲーム詳細を取得する。結果はIDごとにキャッシュされる。
// プロバイダ障害時は遅延を増やしながら最大3回まで再試行し、
// 認可切れの場合はクレデンシャルをリフレッシュしてから再試行する。
func (s *Service) GetGame(ctx context.Context, id int64) (*model.GameDetail, error) {
	key := fmt.Sprintf("game_%d", id)
	if detail, ok := s.cache.Get(key); ok {
		s.recorder.RecordCacheAccess("game_detail", true)
		return &detail, nil
	}
	s.recorder.RecordCacheAccess("game_detail", false)

	var lastErr error
	for attempt := 1; attempt <= detailMaxAttempts; attempt++ {
		g, err := s.catalog.GameByID(ctx, id)
		if err == nil {
			if g == nil {
				return nil, model.NewGameNotFoundError()
			}
			detail := s.shaper.Detail(ctx, g)
			s.cache.Set(key, detail)
			return &detail, nil
		}

		lastErr = err
		s.logger.Warn("game detail fetch failed",
			slog.Int64("game_id", id),
			slog.Int("attempt", attempt),
			slog.String("error", err.Error()),
		)

		if isAuthExpired(err) {
			// トークン切れはリフレッシュ後すぐに再試行する
			if refreshErr := s.refresher.RefreshCredential(ctx); refreshErr != nil {
				s.logger.Error("credential refresh failed during detail fetch",
					slog.String("error", refreshErr.Error()),
				)
			}
			continue
		}

		if attempt < detailMaxAttempts {
			delay := time.Duration(attempt) * time.Second
			if delay > detailMaxRetryDelay {
				delay = detailMaxRetryDelay
			}
			s.sleep(ctx, delay)
		}
	}

	var apiErr *model.APIError
	if errors.As(lastErr, &apiErr) {
		return nil, apiErr
	}
	return nil, model.NewUpstreamUnavailableError()
}

// Popular は高評価タイトルをサマリーカード形式で返す。
// 認可切れの場合はクレデンシャルを更新してからエラーを返し、
// 次のリクエストを成功させる（このリクエスト自体は再試行しない）。
func (s *Service) Popular(ctx context.Context, limit int) ([]model.SummaryCard, error) {
	games, err := s.catalog.Popular(ctx, limit)
	if err != nil {
		if isAuthExpired(err) {
			if refreshErr := s.refresher.RefreshCredential(ctx); refreshErr != nil {
				s.logger.Error("credential refresh failed after popular fetch",
					slog.String("error", refreshErr.Error()),
				)
			}
		}
		return nil, model.NewUpstreamUnavailableError()
	}

	cards := make([]model.SummaryCard, len(games))
	for i := range games {
		cards[i] = s.shaper.SummaryCard(ctx, &games[i])
	}
	return cards, nil
}

// isAuthExpired はプロバイダ認可切れエラーかどうかを判定する。
func isAuthExpired(err error) bool {
	var apiErr *model.APIError
	return errors.As(err, &apiErr) && apiErr.Code == model.ErrCodeUpstreamAuthExpired
}

// sleepContext はコンテキストのキャンセルを尊重して待機する。
func sleepContext(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
