// Package search はランク付き検索エンジンを提供する。
// 1つのユーザークエリを複数のプロバイダクエリに展開し、候補をマージ・
// スコアリング・ランク付けしてページネーションする。
package search

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/hitoshi/gamedex/internal/metrics"
	"github.com/hitoshi/gamedex/internal/model"
)

const (
	// minSubqueryLimit はサブクエリ1回あたりの最小取得件数。
	minSubqueryLimit = 100
	// fallbackLimit はフォールバック拡張クエリの取得上限。
	fallbackLimit = 500
)

// CatalogSearcher は検索エンジンが必要とするプロバイダの能力。
type CatalogSearcher interface {
	// Search は全文検索でゲーム候補を取得する。
	Search(ctx context.Context, term string, limit int) ([]model.Game, error)
}

// CredentialRefresher はプロバイダクレデンシャルのリフレッシュ能力。
type CredentialRefresher interface {
	RefreshCredential(ctx context.Context) error
}

// CardShaper は候補をレスポンス契約の検索カード形式に変換する。
type CardShaper interface {
	SearchCard(ctx context.Context, g *model.Game) model.SearchCard
}

// Result は検索結果とページネーションメタデータ。
type Result struct {
	Data    []model.SearchCard
	HasMore bool
	Total   int
	Offset  int
}

// Engine はランク付き検索エンジン。
// スコアリングとソートは決定的であり、同じ候補集合と同じクエリに対して
// 常に同じ順序を返す。
type Engine struct {
	catalog   CatalogSearcher
	refresher CredentialRefresher
	shaper    CardShaper
	logger    *slog.Logger
	recorder  metrics.Recorder
}

// NewEngine はEngineを生成する。
func NewEngine(catalog CatalogSearcher, refresher CredentialRefresher, shaper CardShaper, logger *slog.Logger, recorder metrics.Recorder) *Engine {
	return &Engine{
		catalog:   catalog,
		refresher: refresher,
		shaper:    shaper,
		logger:    logger,
		recorder:  recorder,
	}
}

// Search はクエリを展開・検索し、ランク付けされた1ページ分の結果を返す。
// queryはトリム後に空であってはならない。limitは1以上、offsetは0以上。
func (e *Engine) Search(ctx context.Context, query string, limit, offset int) (*Result, error) {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return nil, model.NewInvalidQueryError()
	}

	queryLower := strings.ToLower(trimmed)
	terms := tokenize(trimmed)

	// 1. クエリ展開とサブクエリの並行発行
	queries := expandQuery(trimmed, terms)
	e.recorder.RecordSearchSubqueries(len(queries))
	subLimit := max(limit*3, minSubqueryLimit)

	results := make([][]model.Game, len(queries))
	authExpired := false
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i, q := range queries {
		wg.Add(1)
		go func(i int, q string) {
			defer wg.Done()
			games, err := e.catalog.Search(ctx, q, subLimit)
			if err != nil {
				// サブクエリの失敗は空の結果にデグレードし、検索全体は失敗させない
				e.logger.Warn("search subquery failed",
					slog.String("subquery", q),
					slog.String("error", err.Error()),
				)
				if isAuthExpired(err) {
					mu.Lock()
					authExpired = true
					mu.Unlock()
				}
				return
			}
			results[i] = games
		}(i, q)
	}
	wg.Wait()

	// 2. クエリ順を保ったままIDでマージ・重複排除（最初に見えたレコードを保持）
	merged := make([]model.Game, 0)
	seen := make(map[int64]bool)
	for _, games := range results {
		for _, g := range games {
			if !seen[g.ID] {
				seen[g.ID] = true
				merged = append(merged, g)
			}
		}
	}

	// 全サブクエリが認可切れで空になった場合はリフレッシュして主クエリのみ再試行する
	if len(merged) == 0 && authExpired {
		return e.retryPrimary(ctx, trimmed, limit, offset)
	}

	// 3. フォールバック拡張: 結果が少ない単語クエリは4文字プレフィックスで広く取り直す
	if len(merged) < limit*2 && len(terms) == 1 && len(terms[0]) >= 4 {
		prefix := terms[0][:4]
		if !containsQuery(queries, prefix) {
			games, err := e.catalog.Search(ctx, prefix, fallbackLimit)
			if err != nil {
				e.logger.Warn("fallback search failed",
					slog.String("prefix", prefix),
					slog.String("error", err.Error()),
				)
			}
			for _, g := range games {
				if !seen[g.ID] && fallbackMatches(g.Name, terms[0]) {
					seen[g.ID] = true
					merged = append(merged, g)
				}
			}
		}
	}

	// 4. ローカル関連度フィルタ
	filtered := merged[:0:0]
	for _, g := range merged {
		if matchesQuery(g.Name, queryLower, terms) {
			filtered = append(filtered, g)
		}
	}

	// 5-6. スコアリングとランク付け
	type scored struct {
		game  model.Game
		score float64
	}
	candidates := make([]scored, len(filtered))
	for i, g := range filtered {
		candidates[i] = scored{game: g, score: scoreCandidate(&g, queryLower, terms)}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		ci, cj := candidates[i].game.BestRatingCount(), candidates[j].game.BestRatingCount()
		if ci != cj {
			return ci > cj
		}
		return candidates[i].game.BestRating() > candidates[j].game.BestRating()
	})

	// 7. 上位 limit*2 件を整形し、表示形式で再スコアリングして並べ直す
	top := candidates
	if len(top) > limit*2 {
		top = top[:limit*2]
	}
	type shapedScored struct {
		card  model.SearchCard
		score float64
	}
	shaped := make([]shapedScored, len(top))
	for i, c := range top {
		card := e.shaper.SearchCard(ctx, &c.game)
		shaped[i] = shapedScored{card: card, score: scoreShaped(&card, queryLower, terms)}
	}
	sort.SliceStable(shaped, func(i, j int) bool {
		if shaped[i].score != shaped[j].score {
			return shaped[i].score > shaped[j].score
		}
		return ratingValue(shaped[i].card) > ratingValue(shaped[j].card)
	})

	// 8. ページネーション
	total := len(shaped)
	page := paginate(shaped, offset, limit)
	data := make([]model.SearchCard, len(page))
	for i, s := range page {
		data[i] = s.card
	}

	return &Result{
		Data:    data,
		HasMore: offset+len(data) < total,
		Total:   total,
		Offset:  offset,
	}, nil
}

// retryPrimary は認可切れからの回復パス。
// クレデンシャルを1回リフレッシュし、展開なしの主クエリだけを再発行する。
func (e *Engine) retryPrimary(ctx context.Context, query string, limit, offset int) (*Result, error) {
	if err := e.refresher.RefreshCredential(ctx); err != nil {
		e.logger.Error("credential refresh failed during search",
			slog.String("error", err.Error()),
		)
		return nil, model.NewUpstreamUnavailableError()
	}

	games, err := e.catalog.Search(ctx, query, limit)
	if err != nil {
		e.logger.Error("primary retry after refresh failed",
			slog.String("error", err.Error()),
		)
		return nil, model.NewUpstreamUnavailableError()
	}

	cards := make([]model.SearchCard, len(games))
	for i, g := range games {
		cards[i] = e.shaper.SearchCard(ctx, &g)
	}

	total := len(cards)
	page := paginate(cards, offset, limit)
	return &Result{
		Data:    page,
		HasMore: offset+len(page) < total,
		Total:   total,
		Offset:  offset,
	}, nil
}

// fallbackMatches はフォールバック拡張結果のローカルフィルタ。
// 名前がクエリを含む、いずれかの語がクエリで始まる、または名前がクエリで始まる
// 場合に一致とする。
func fallbackMatches(name, term string) bool {
	nameLower := strings.ToLower(name)
	if strings.Contains(nameLower, term) {
		return true
	}
	for _, w := range strings.Fields(nameLower) {
		if strings.HasPrefix(w, term) {
			return true
		}
	}
	return strings.HasPrefix(nameLower, term)
}

func paginate[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return nil
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

func ratingValue(card model.SearchCard) int {
	if card.Rating.Valid {
		return card.Rating.Value
	}
	return 0
}

func containsQuery(queries []string, q string) bool {
	for _, existing := range queries {
		if existing == q {
			return true
		}
	}
	return false
}

func isAuthExpired(err error) bool {
	var apiErr *model.APIError
	return errors.As(err, &apiErr) && apiErr.Code == model.ErrCodeUpstreamAuthExpired
}
