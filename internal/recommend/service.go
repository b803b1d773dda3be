// Package recommend はパーソナライズされたレコメンデーションを提供する。
// お気に入りを持つユーザーには類似ゲームの共起ランキングを、
// ゲストとお気に入りのないユーザーには高評価タイトルのランダムプールを返す。
package recommend

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/hitoshi/gamedex/internal/cache"
	"github.com/hitoshi/gamedex/internal/metrics"
	"github.com/hitoshi/gamedex/internal/model"
	"github.com/hitoshi/gamedex/internal/repository"
)

const (
	// SourceSimilar はお気に入りの類似ゲームに基づくレコメンデーション。
	SourceSimilar = "similar"
	// SourceRandom60 は高評価タイトルのランダムプールに基づくレコメンデーション。
	SourceRandom60 = "random_60"

	// favoriteSeedLimit は類似ゲーム検索のシードに使うお気に入りの最大数。
	favoriteSeedLimit = 15
	// poolMinRating はランダムプールに入るタイトルの最小レーティング。
	poolMinRating = 60
	// poolSize はランダムプールの最大サイズ。
	poolSize = 400

	poolCacheKey = "random_60_pool"
)

// CatalogProvider はレコメンデーションが必要とするプロバイダの能力。
type CatalogProvider interface {
	// GamesByIDs は指定ID群のゲームを取得する。
	GamesByIDs(ctx context.Context, ids []int64) ([]model.Game, error)
	// HighRated はレーティングが閾値を超えるゲームを取得する。
	HighRated(ctx context.Context, minRating float64, limit int) ([]model.Game, error)
	// SimilarGameIDs は複数ゲームの類似ゲームID一覧をまとめて取得する。
	SimilarGameIDs(ctx context.Context, ids []int64) ([][]int64, error)
}

// CredentialRefresher はプロバイダクレデンシャルのリフレッシュ能力。
type CredentialRefresher interface {
	RefreshCredential(ctx context.Context) error
}

// SummaryShaper は候補をサマリーカード形式に変換する。
type SummaryShaper interface {
	SummaryCard(ctx context.Context, g *model.Game) model.SummaryCard
}

// Result はレコメンデーションの1ページ分。
type Result struct {
	Source  string              `json:"source"`
	Games   []model.SummaryCard `json:"games"`
	HasMore bool                `json:"hasMore"`
}

// Service はレコメンデーションサービス。
// 類似ゲームIDのランキングはユーザーごとに、高評価プールはプロセス全体で
// キャッシュされ、ページネーションのたびにプロバイダを叩き直さない。
type Service struct {
	catalog   CatalogProvider
	refresher CredentialRefresher
	favorites repository.FavoriteRepository
	shaper    SummaryShaper
	logger    *slog.Logger
	recorder  metrics.Recorder

	// poolCache は高評価プールのID一覧（全ユーザー共有）を保持する。
	poolCache *cache.Cache[[]int64]
	// orderCache はユーザーごとのシャッフル済み順序を保持する。
	// キーは "random_60_order_{userID}" または "similar_{userID}"。
	orderCache *cache.Cache[[]int64]

	rngMu sync.Mutex
	rng   *rand.Rand
}

// NewService はServiceを生成する。
// poolTTLは高評価プールの保持期間（通常10分）、orderTTLはユーザーごとの
// 順序と類似ランキングの保持期間（通常5分）。
func NewService(catalog CatalogProvider, refresher CredentialRefresher, favorites repository.FavoriteRepository, shaper SummaryShaper, logger *slog.Logger, recorder metrics.Recorder, rng *rand.Rand, poolTTL, orderTTL time.Duration) *Service {
	return &Service{
		catalog:    catalog,
		refresher:  refresher,
		favorites:  favorites,
		shaper:     shaper,
		logger:     logger,
		recorder:   recorder,
		poolCache:  cache.New[[]int64](poolTTL),
		orderCache: cache.New[[]int64](orderTTL),
		rng:        rng,
	}
}

// Recommend はレコメンデーションの1ページ分を返す。
// userIDが空の場合はゲストとして扱う。
func (s *Service) Recommend(ctx context.Context, userID string, limit, page int) (*Result, error) {
	offset := (page - 1) * limit

	var favoriteIDs []int64
	if userID != "" {
		ids, err := s.favorites.ListGameIDs(ctx, userID, favoriteSeedLimit)
		if err != nil {
			// お気に入りが読めない場合はゲスト相当にデグレードする
			s.logger.Warn("favorite list unavailable, falling back to random pool",
				slog.String("user_id", userID),
				slog.String("error", err.Error()),
			)
		} else {
			favoriteIDs = ids
		}
	}

	if len(favoriteIDs) == 0 {
		return s.randomPage(ctx, userID, limit, offset)
	}

	similarIDs, err := s.similarIDsFor(ctx, userID, favoriteIDs)
	if err != nil {
		s.refreshOnAuthExpired(ctx, err)
		return nil, model.NewRecommendationsError()
	}

	pageIDs := slicePage(similarIDs, offset, limit)
	if len(pageIDs) == 0 {
		// このページに類似ゲームがない場合は高評価プールで埋める
		return s.randomPage(ctx, userID, limit, offset)
	}

	games, err := s.fetchOrdered(ctx, pageIDs)
	if err != nil {
		s.refreshOnAuthExpired(ctx, err)
		return nil, model.NewRecommendationsError()
	}

	return &Result{
		Source:  SourceSimilar,
		Games:   s.shapeAll(ctx, games),
		HasMore: offset+len(games) < len(similarIDs),
	}, nil
}

// InvalidateUser はユーザーの類似ランキングのキャッシュを破棄する。
// お気に入りの増減でランキングのシードが変わるため、
// 次回のリクエストで再計算させる。
func (s *Service) InvalidateUser(userID string) {
	if userID == "" {
		return
	}
	s.orderCache.Delete("similar_" + userID)
}

// similarIDsFor はお気に入りの類似ゲームIDを共起回数順に返す。
// 結果はユーザーごとにキャッシュされる。
func (s *Service) similarIDsFor(ctx context.Context, userID string, favoriteIDs []int64) ([]int64, error) {
	key := "similar_" + userID
	if ids, ok := s.orderCache.Get(key); ok {
		s.recorder.RecordCacheAccess("reco_similar", true)
		return ids, nil
	}
	s.recorder.RecordCacheAccess("reco_similar", false)

	groups, err := s.catalog.SimilarGameIDs(ctx, favoriteIDs)
	if err != nil {
		return nil, err
	}

	favoriteSet := make(map[int64]struct{}, len(favoriteIDs))
	for _, id := range favoriteIDs {
		favoriteSet[id] = struct{}{}
	}

	// 複数のお気に入りから共通して参照されるタイトルを上位に置く
	counts := make(map[int64]int)
	for _, group := range groups {
		for _, id := range group {
			if _, isFavorite := favoriteSet[id]; isFavorite {
				continue
			}
			counts[id]++
		}
	}

	ids := make([]int64, 0, len(counts))
	for id := range counts {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if counts[ids[i]] != counts[ids[j]] {
			return counts[ids[i]] > counts[ids[j]]
		}
		return ids[i] < ids[j]
	})

	ids = s.shuffle(ids)
	if len(ids) > 0 {
		s.orderCache.Set(key, ids)
	}
	return ids, nil
}

// randomPage は高評価プールから1ページ分を返す。
func (s *Service) randomPage(ctx context.Context, userID string, limit, offset int) (*Result, error) {
	allIDs, err := s.randomOrderFor(ctx, userID)
	if err != nil {
		s.refreshOnAuthExpired(ctx, err)
		return nil, model.NewRecommendationsError()
	}

	pageIDs := slicePage(allIDs, offset, limit)
	if len(pageIDs) == 0 {
		return &Result{Source: SourceRandom60, Games: []model.SummaryCard{}, HasMore: false}, nil
	}

	games, err := s.fetchOrdered(ctx, pageIDs)
	if err != nil {
		s.refreshOnAuthExpired(ctx, err)
		return nil, model.NewRecommendationsError()
	}

	return &Result{
		Source:  SourceRandom60,
		Games:   s.shapeAll(ctx, games),
		HasMore: offset+len(games) < len(allIDs),
	}, nil
}

// randomOrderFor はユーザー向けにシャッフルした高評価プールのID一覧を返す。
// 認証済みユーザーには順序をキャッシュしてページネーションを安定させる。
// ゲストは呼び出しごとに新しい順序になる。
func (s *Service) randomOrderFor(ctx context.Context, userID string) ([]int64, error) {
	pool, err := s.poolIDs(ctx)
	if err != nil {
		return nil, err
	}
	if len(pool) == 0 {
		return nil, nil
	}

	if userID == "" {
		return s.shuffle(pool), nil
	}

	key := "random_60_order_" + userID
	if order, ok := s.orderCache.Get(key); ok {
		s.recorder.RecordCacheAccess("reco_order", true)
		return order, nil
	}
	s.recorder.RecordCacheAccess("reco_order", false)

	order := s.shuffle(pool)
	s.orderCache.Set(key, order)
	return order, nil
}

// poolIDs は高評価プールのID一覧を返す。結果はプロセス全体でキャッシュされる。
func (s *Service) poolIDs(ctx context.Context) ([]int64, error) {
	if ids, ok := s.poolCache.Get(poolCacheKey); ok {
		s.recorder.RecordCacheAccess("reco_pool", true)
		return ids, nil
	}
	s.recorder.RecordCacheAccess("reco_pool", false)

	games, err := s.catalog.HighRated(ctx, poolMinRating, poolSize)
	if err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(games))
	for _, g := range games {
		if g.ID != 0 {
			ids = append(ids, g.ID)
		}
	}
	if len(ids) > 0 {
		s.poolCache.Set(poolCacheKey, ids)
	}
	return ids, nil
}

// fetchOrdered は指定ID群のゲームを取得し、ID一覧の順序に並べ替えて返す。
// プロバイダはID条件の取得順を保証しないため、要求順を復元する。
func (s *Service) fetchOrdered(ctx context.Context, ids []int64) ([]model.Game, error) {
	games, err := s.catalog.GamesByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	order := make(map[int64]int, len(ids))
	for i, id := range ids {
		order[id] = i
	}
	sort.SliceStable(games, func(i, j int) bool {
		return order[games[i].ID] < order[games[j].ID]
	})
	return games, nil
}

func (s *Service) shapeAll(ctx context.Context, games []model.Game) []model.SummaryCard {
	cards := make([]model.SummaryCard, len(games))
	for i := range games {
		cards[i] = s.shaper.SummaryCard(ctx, &games[i])
	}
	return cards
}

// shuffle はFisher-Yatesでコピーをシャッフルして返す。
func (s *Service) shuffle(ids []int64) []int64 {
	out := make([]int64, len(ids))
	copy(out, ids)
	s.rngMu.Lock()
	s.rng.Shuffle(len(out), func(i, j int) {
		out[i], out[j] = out[j], out[i]
	})
	s.rngMu.Unlock()
	return out
}

// refreshOnAuthExpired は認可切れエラーの場合にクレデンシャルを更新する。
// このリクエスト自体は再試行せず、次のリクエストを成功させるための回復措置。
func (s *Service) refreshOnAuthExpired(ctx context.Context, err error) {
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeUpstreamAuthExpired {
		return
	}
	if refreshErr := s.refresher.RefreshCredential(ctx); refreshErr != nil {
		s.logger.Error("credential refresh failed after recommendations fetch",
			slog.String("error", refreshErr.Error()),
		)
	}
}

func slicePage(ids []int64, offset, limit int) []int64 {
	if offset >= len(ids) {
		return nil
	}
	end := offset + limit
	if end > len(ids) {
		end = len(ids)
	}
	return ids[offset:end]
}
