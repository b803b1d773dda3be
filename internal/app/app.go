// Package app はアプリケーションの初期化と起動を提供する。
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/gamedex/internal/auth"
	"github.com/hitoshi/gamedex/internal/config"
	"github.com/hitoshi/gamedex/internal/cover"
	"github.com/hitoshi/gamedex/internal/database"
	"github.com/hitoshi/gamedex/internal/discovery"
	"github.com/hitoshi/gamedex/internal/game"
	"github.com/hitoshi/gamedex/internal/handler"
	"github.com/hitoshi/gamedex/internal/igdb"
	"github.com/hitoshi/gamedex/internal/logger"
	"github.com/hitoshi/gamedex/internal/metrics"
	"github.com/hitoshi/gamedex/internal/middleware"
	"github.com/hitoshi/gamedex/internal/recommend"
	"github.com/hitoshi/gamedex/internal/repository"
	"github.com/hitoshi/gamedex/internal/search"
	"github.com/hitoshi/gamedex/internal/security"
	"github.com/hitoshi/gamedex/internal/steam"
	"github.com/hitoshi/gamedex/internal/worker"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーと
// バックグラウンドジョブを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. メトリクス
	registry := prometheus.NewRegistry()
	recorder := metrics.NewCollector(registry)

	// 3. リポジトリの初期化
	counterRepo := repository.NewPostgresCounterRepo(db)
	favoriteRepo := repository.NewPostgresFavoriteRepo(db)

	// 4. プロバイダクライアントの初期化
	httpClient := &http.Client{Timeout: cfg.DetailTimeout}
	tokens := igdb.NewTokenSource(httpClient, slog.Default(),
		cfg.IGDBTokenURL, cfg.IGDBClientID, cfg.IGDBClientSecret, cfg.IGDBAccessToken)
	catalog := igdb.NewClient(httpClient, tokens, slog.Default(), recorder,
		cfg.UpstreamTimeout, cfg.DetailTimeout)
	catalog.SetEndpoint(cfg.IGDBEndpoint)

	// 5. 代替画像ソースとカバー解決器
	steamIndex := steam.NewIndex(httpClient, slog.Default(), cfg.SteamAppsURL)
	covers := cover.NewResolver(steamIndex, recorder, cfg.CoverCacheTTL)

	// 6. セキュリティサービスと整形器
	sanitizer := security.NewSummarySanitizer()
	shaper := game.NewShaper(covers, counterRepo, sanitizer, slog.Default())

	// 7. ドメインサービスの初期化
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	gameService := game.NewService(catalog, catalog, shaper, recorder, slog.Default(), cfg.GameCacheTTL)
	searchEngine := search.NewEngine(catalog, catalog, shaper, slog.Default(), recorder)

	history := discovery.NewViewHistoryStore(cfg.HistoryLimit, cfg.HistoryTTL)
	sampler := discovery.NewSampler(catalog, catalog, history, shaper, slog.Default(), rng)

	recommender := recommend.NewService(catalog, catalog, favoriteRepo, shaper,
		slog.Default(), recorder, rng, cfg.RecoPoolTTL, cfg.RecoOrderTTL)

	// 8. 認証トークン検証器
	verifier := auth.NewVerifier(httpClient, slog.Default(), cfg.AuthCertsURL, cfg.AuthProjectID)

	// 9. ルーターの構築
	rateLimiterCfg := middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitMutation)
	rateLimiter := middleware.NewRateLimiter(rateLimiterCfg)
	defer rateLimiter.Stop()

	deps := &handler.RouterDeps{
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		TokenVerifier:     verifier,
		Logger:            slog.Default(),
		Recorder:          recorder,
		MetricsGatherer:   registry,

		GameService:      gameService,
		SearchEngine:     searchEngine,
		DiscoverySampler: sampler,
		RecommendService: recommender,

		Counters:  counterRepo,
		Favorites: favoriteRepo,
	}

	router := handler.NewRouter(deps)

	// 10. バックグラウンドジョブ
	jobCtx, cancelJobs := context.WithCancel(context.Background())
	defer cancelJobs()

	tokenJob := worker.NewTokenRefreshJob(catalog, slog.Default(), recorder, cfg.TokenRefreshInterval)
	go tokenJob.Start(jobCtx)

	if cfg.PublicURL != "" {
		keepAlive, err := worker.NewKeepAliveJob(security.NewSSRFGuard(), slog.Default(),
			cfg.PublicURL, cfg.KeepAliveInterval)
		if err != nil {
			slog.Warn("keep-alive job disabled",
				slog.String("error", err.Error()),
			)
		} else {
			go keepAlive.Start(jobCtx)
		}
	}

	// 起動直後のウォームアップ: トークン取得と代替画像インデックスの先読み。
	// どちらも失敗してもリクエストパスで遅延初期化される。
	go func() {
		warmCtx, cancel := context.WithTimeout(jobCtx, 2*cfg.DetailTimeout)
		defer cancel()

		if err := catalog.RefreshCredential(warmCtx); err != nil {
			slog.Warn("initial token refresh failed",
				slog.String("error", err.Error()),
			)
		}
		if _, err := steamIndex.Apps(warmCtx); err != nil {
			slog.Warn("initial steam apps fetch failed",
				slog.String("error", err.Error()),
			)
		}
	}()

	// 11. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")
	cancelJobs()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
