package discovery

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"sort"
	"sync"

	"github.com/hitoshi/gamedex/internal/model"
)

const (
	// upstreamPageSize はプロバイダから1回に取得する候補数。
	upstreamPageSize = 50
	// historyWeight は履歴に含まれる候補に与える重み。
	// 履歴IDはクエリ側でも除外済みのため、これは取りこぼしへの保険として
	// ソフトに抑制するだけで、ハードな除外はしない。
	historyWeight = 0.01
)

// CatalogBrowser はサンプラーが必要とするプロバイダの能力。
type CatalogBrowser interface {
	// Browse は履歴除外付きでカタログの1ページを取得する。
	Browse(ctx context.Context, excludeIDs []int64, limit, offset int) ([]model.Game, error)
}

// CredentialRefresher はプロバイダクレデンシャルのリフレッシュ能力。
type CredentialRefresher interface {
	RefreshCredential(ctx context.Context) error
}

// SummaryShaper は候補をサマリーカード形式に変換する。
type SummaryShaper interface {
	SummaryCard(ctx context.Context, g *model.Game) model.SummaryCard
}

// Sampler はディスカバリーフィードの状態付きサンプラー。
// 閲覧履歴に基づく重み付きシャッフルでランダムかつ再表示の少ないフィードを生成する。
type Sampler struct {
	catalog   CatalogBrowser
	refresher CredentialRefresher
	history   *ViewHistoryStore
	shaper    SummaryShaper
	logger    *slog.Logger

	rngMu sync.Mutex
	rng   *rand.Rand
}

// NewSampler はSamplerを生成する。rngはテストで決定的なソースに差し替えられる。
func NewSampler(catalog CatalogBrowser, refresher CredentialRefresher, history *ViewHistoryStore, shaper SummaryShaper, logger *slog.Logger, rng *rand.Rand) *Sampler {
	return &Sampler{
		catalog:   catalog,
		refresher: refresher,
		history:   history,
		shaper:    shaper,
		logger:    logger,
		rng:       rng,
	}
}

// Sample はディスカバリーフィードの1ページ分を返す。
// プロバイダのページが空の場合は履歴をリセットし、GameNotFound系の
// NoGamesエラーを返す（カタログをこのオフセットまで消費し切ったことを意味する）。
func (s *Sampler) Sample(ctx context.Context, limit, page int) ([]model.SummaryCard, error) {
	hist := s.history.Snapshot()
	offset := (page - 1) * upstreamPageSize

	candidates, err := s.catalog.Browse(ctx, hist, upstreamPageSize, offset)
	if err != nil {
		// 認可切れの場合はクレデンシャルを更新してからエラーを返し、
		// 次のリクエストを成功させる（このリクエスト自体は再試行しない）
		if isAuthExpired(err) {
			if refreshErr := s.refresher.RefreshCredential(ctx); refreshErr != nil {
				s.logger.Error("credential refresh failed after discovery fetch",
					slog.String("error", refreshErr.Error()),
				)
			}
		}
		return nil, model.NewUpstreamUnavailableError()
	}

	if len(candidates) == 0 {
		// カタログ枯渇: 履歴をリセットして、以後のリクエストで既表示分を再び出せるようにする
		s.history.Reset()
		s.logger.Info("discovery feed exhausted, view history reset",
			slog.Int("page", page),
		)
		return nil, model.NewNoGamesError()
	}

	shuffled := s.weightedShuffle(candidates, hist)

	if len(shuffled) > limit {
		shuffled = shuffled[:limit]
	}

	ids := make([]int64, len(shuffled))
	for i, g := range shuffled {
		ids[i] = g.ID
	}
	s.history.Add(ids)

	cards := make([]model.SummaryCard, len(shuffled))
	for i, g := range shuffled {
		cards[i] = s.shaper.SummaryCard(ctx, &g)
	}
	return cards, nil
}

// weightedShuffle は候補を重み降順に並べ替える。
// 履歴に含まれる候補は重み0.01、それ以外は乱数+1の重みを持つ。
func (s *Sampler) weightedShuffle(candidates []model.Game, hist []int64) []model.Game {
	histSet := make(map[int64]struct{}, len(hist))
	for _, id := range hist {
		histSet[id] = struct{}{}
	}

	type weighted struct {
		game   model.Game
		weight float64
	}
	items := make([]weighted, len(candidates))
	s.rngMu.Lock()
	for i, g := range candidates {
		w := historyWeight
		if _, seen := histSet[g.ID]; !seen {
			w = s.rng.Float64() + 1
		}
		items[i] = weighted{game: g, weight: w}
	}
	s.rngMu.Unlock()

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].weight > items[j].weight
	})

	out := make([]model.Game, len(items))
	for i, it := range items {
		out[i] = it.game
	}
	return out
}

// isAuthExpired はプロバイダ認可切れエラーかどうかを判定する。
func isAuthExpired(err error) bool {
	var apiErr *model.APIError
	return errors.As(err, &apiErr) && apiErr.Code == model.ErrCodeUpstreamAuthExpired
}
