package igdb

import (
	"fmt"
	"strings"
)

// エンドポイントごとのフィールドリスト。
// レスポンス契約が依存するため、取得フィールドは用途別に固定する。
const (
	popularFields = "id,name,cover.url,aggregated_rating,rating,release_dates.date,genres.name,platforms.name"
	searchFields  = "id,name,cover.url,aggregated_rating,aggregated_rating_count,rating,rating_count,summary,platforms.name,release_dates.date,genres.name"
	browseFields  = "id,name,cover.url,aggregated_rating,release_dates.date,genres.name,platforms.name"
	recoFields    = "id,name,cover.url,aggregated_rating,aggregated_rating_count,release_dates.date,genres.name,platforms.name"
	detailFields  = "id,name,genres.name,platforms.name,release_dates.date,aggregated_rating,rating,cover.url," +
		"age_ratings.*,summary,involved_companies.developer,involved_companies.publisher,involved_companies.company.name," +
		"videos.video_id,similar_games.id,similar_games.name,similar_games.cover.url,similar_games.aggregated_rating," +
		"similar_games.release_dates.date,similar_games.genres.name,similar_games.platforms.name"
)

// queryBuilder はプロバイダのクエリ言語（APICalypse）のボディを組み立てる。
type queryBuilder struct {
	parts []string
}

func newQuery(fields string) *queryBuilder {
	return &queryBuilder{parts: []string{fmt.Sprintf("fields %s;", fields)}}
}

// Search は全文検索句を追加する。ダブルクォートはエスケープする。
func (b *queryBuilder) Search(term string) *queryBuilder {
	escaped := strings.ReplaceAll(term, `"`, `\"`)
	b.parts = append(b.parts, fmt.Sprintf(`search "%s";`, escaped))
	return b
}

// Where は絞り込み条件句を追加する。
func (b *queryBuilder) Where(cond string) *queryBuilder {
	b.parts = append(b.parts, fmt.Sprintf("where %s;", cond))
	return b
}

// Sort はソート句を追加する。
func (b *queryBuilder) Sort(expr string) *queryBuilder {
	b.parts = append(b.parts, fmt.Sprintf("sort %s;", expr))
	return b
}

// Limit はリミット句を追加する。
func (b *queryBuilder) Limit(n int) *queryBuilder {
	b.parts = append(b.parts, fmt.Sprintf("limit %d;", n))
	return b
}

// Offset はオフセット句を追加する。
func (b *queryBuilder) Offset(n int) *queryBuilder {
	b.parts = append(b.parts, fmt.Sprintf("offset %d;", n))
	return b
}

// String はクエリボディを返す。
func (b *queryBuilder) String() string {
	return strings.Join(b.parts, " ")
}

// joinIDs はID一覧を "1,2,3" 形式に変換する。
func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("%d", id)
	}
	return strings.Join(parts, ",")
}
