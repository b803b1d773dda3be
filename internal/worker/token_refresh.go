// Package worker はバックグラウンドジョブを提供する。
// プロバイダクレデンシャルの定期リフレッシュと、
// ホスティング休止回避のキープアライブPingを含む。
package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/hitoshi/gamedex/internal/metrics"
)

// CredentialRefresher はプロバイダクレデンシャルのリフレッシュ能力。
type CredentialRefresher interface {
	RefreshCredential(ctx context.Context) error
}

// TokenRefreshJob はプロバイダのアクセストークンを定期的にリフレッシュするジョブ。
// トークン失効によるリクエスト時のリトライを減らすための予防措置であり、
// 失敗してもリクエストパスの401リカバリで回復できる。
type TokenRefreshJob struct {
	refresher CredentialRefresher
	logger    *slog.Logger
	recorder  metrics.Recorder
	interval  time.Duration
}

// NewTokenRefreshJob はTokenRefreshJobを生成する。intervalは通常24時間。
func NewTokenRefreshJob(refresher CredentialRefresher, logger *slog.Logger, recorder metrics.Recorder, interval time.Duration) *TokenRefreshJob {
	return &TokenRefreshJob{
		refresher: refresher,
		logger:    logger,
		recorder:  recorder,
		interval:  interval,
	}
}

// Start は定期リフレッシュを開始する。
// コンテキストがキャンセルされるまで実行を継続する。
func (j *TokenRefreshJob) Start(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.logger.Info("token refresh job started",
		slog.Duration("interval", j.interval),
	)

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("token refresh job stopped")
			return
		case <-ticker.C:
			j.RunOnce(ctx)
		}
	}
}

// RunOnce はリフレッシュを1回実行する。失敗はログに残すのみで伝播しない。
func (j *TokenRefreshJob) RunOnce(ctx context.Context) {
	if err := j.refresher.RefreshCredential(ctx); err != nil {
		j.recorder.RecordTokenRefresh(false)
		j.logger.Error("scheduled token refresh failed",
			slog.String("error", err.Error()),
		)
		return
	}
	j.recorder.RecordTokenRefresh(true)
	j.logger.Info("scheduled token refresh completed")
}
