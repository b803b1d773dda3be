package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/gamedex/internal/auth"
	"github.com/hitoshi/gamedex/internal/metrics"
	"github.com/hitoshi/gamedex/internal/middleware"
	"github.com/hitoshi/gamedex/internal/repository"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	TokenVerifier     auth.TokenVerifier
	Logger            *slog.Logger
	Recorder          metrics.Recorder

	// メトリクス公開用。nilの場合は/metricsを公開しない。
	MetricsGatherer prometheus.Gatherer

	// ドメインサービス
	GameService      GameServiceInterface
	SearchEngine     SearchEngineInterface
	DiscoverySampler DiscoverySamplerInterface
	RecommendService RecommendServiceInterface

	// ソーシャルカウンタ
	Counters  repository.CounterRepository
	Favorites repository.FavoriteRepository
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → CORS → Logging → (Auth | OptionalAuth) → RateLimit
//
// 認証ミドルウェアをレート制限より先に置くことで、認証済みリクエストは
// ユーザーID単位、匿名リクエストはIP単位で制限される。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewLoggingMiddleware(deps.Logger, deps.Recorder))

	gameHandler := NewGameHandler(deps.GameService)
	searchHandler := NewSearchHandler(deps.SearchEngine)
	discoveryHandler := NewDiscoveryHandler(deps.DiscoverySampler)
	socialHandler := NewSocialHandler(deps.Counters, deps.Favorites, deps.RecommendService, deps.Logger)
	recommendHandler := NewRecommendHandler(deps.RecommendService)

	requireAuth := middleware.NewAuthMiddleware(deps.TokenVerifier)
	optionalAuth := middleware.NewOptionalAuthMiddleware(deps.TokenVerifier)
	generalLimit := deps.RateLimiter.GeneralMiddleware()
	mutationLimit := deps.RateLimiter.MutationMiddleware()

	// 稼働確認
	r.Get("/health", Health)

	if deps.MetricsGatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.MetricsGatherer))
	}

	// --- 認証不要のルート ---
	r.Group(func(r chi.Router) {
		r.Use(generalLimit)

		r.Get("/popular", gameHandler.Popular)
		r.Get("/search", searchHandler.Search)
		r.Get("/games", discoveryHandler.Feed)
		r.Get("/games/{id}", gameHandler.GetGame)
	})

	// --- 任意認証のルート ---
	r.Group(func(r chi.Router) {
		r.Use(optionalAuth)
		r.Use(generalLimit)

		r.Get("/recommendations", recommendHandler.Recommend)
	})

	// --- 認証が必要なルート ---
	r.Group(func(r chi.Router) {
		r.Use(requireAuth)
		r.Use(generalLimit)

		r.Route("/games/{id}", func(r chi.Router) {
			r.Get("/favorite", socialHandler.GetFavorite)
			r.With(mutationLimit).Post("/favorite", socialHandler.AddFavorite)
			r.With(mutationLimit).Delete("/favorite", socialHandler.RemoveFavorite)

			r.With(mutationLimit).Post("/status/{status}", socialHandler.IncrementStatus)
			r.With(mutationLimit).Delete("/status/{status}", socialHandler.DecrementStatus)
			r.With(mutationLimit).Delete("/status", socialHandler.ResetStatuses)
		})
	})

	return r
}

// healthResponse は稼働確認レスポンス。
type healthResponse struct {
	Status string `json:"status"`
}

// Health は稼働確認を処理する。
// GET /health
func Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "OK"})
}
