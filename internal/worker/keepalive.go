package worker

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hitoshi/gamedex/internal/security"
)

const (
	keepAliveTimeout         = 5 * time.Second
	keepAliveMaxResponseSize = 1 << 20 // 1MiB
)

// KeepAliveJob は公開URLの/healthを定期的にPingするジョブ。
// 無料ホスティングのアイドル休止を回避するために使う。
// PingはSSRF防止付きクライアントで行い、公開URLは起動時に検証する。
type KeepAliveJob struct {
	client    *http.Client
	logger    *slog.Logger
	publicURL string
	interval  time.Duration
}

// NewKeepAliveJob はKeepAliveJobを生成する。
// publicURLが空、または安全でないURLの場合はエラーを返す。
func NewKeepAliveJob(guard security.SSRFGuardService, logger *slog.Logger, publicURL string, interval time.Duration) (*KeepAliveJob, error) {
	if publicURL == "" {
		return nil, fmt.Errorf("public URL is empty")
	}
	if err := guard.ValidateURL(publicURL); err != nil {
		return nil, fmt.Errorf("public URL rejected: %w", err)
	}

	return &KeepAliveJob{
		client:    guard.NewSafeClient(keepAliveTimeout, keepAliveMaxResponseSize),
		logger:    logger,
		publicURL: strings.TrimSuffix(publicURL, "/"),
		interval:  interval,
	}, nil
}

// Start は定期Pingを開始する。
// コンテキストがキャンセルされるまで実行を継続する。
func (j *KeepAliveJob) Start(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.logger.Info("keep-alive job started",
		slog.String("public_url", j.publicURL),
		slog.Duration("interval", j.interval),
	)

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("keep-alive job stopped")
			return
		case <-ticker.C:
			j.RunOnce(ctx)
		}
	}
}

// RunOnce はPingを1回実行する。失敗はログに残すのみで伝播しない。
func (j *KeepAliveJob) RunOnce(ctx context.Context) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, j.publicURL+"/health", nil)
	if err != nil {
		j.logger.Error("keep-alive request build failed",
			slog.String("error", err.Error()),
		)
		return
	}

	resp, err := j.client.Do(req)
	if err != nil {
		j.logger.Warn("keep-alive ping failed",
			slog.String("error", err.Error()),
		)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		j.logger.Warn("keep-alive ping returned unexpected status",
			slog.Int("status", resp.StatusCode),
		)
		return
	}

	j.logger.Info("keep-alive ping successful")
}
