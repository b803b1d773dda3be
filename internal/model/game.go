// Package model はドメインモデルを定義する。
package model

// Game はカタログプロバイダから取得した1件のゲームレコード。
// リクエストごとに生成されるスナップショットであり、取得後に変更しない。
type Game struct {
	ID                    int64             `json:"id"`
	Name                  string            `json:"name"`
	Cover                 *Cover            `json:"cover,omitempty"`
	Summary               string            `json:"summary,omitempty"`
	AggregatedRating      *float64          `json:"aggregated_rating,omitempty"`
	AggregatedRatingCount *int              `json:"aggregated_rating_count,omitempty"`
	Rating                *float64          `json:"rating,omitempty"`
	RatingCount           *int              `json:"rating_count,omitempty"`
	Platforms             []Named           `json:"platforms,omitempty"`
	Genres                []Named           `json:"genres,omitempty"`
	ReleaseDates          []ReleaseDate     `json:"release_dates,omitempty"`
	AgeRatings            []AgeRating       `json:"age_ratings,omitempty"`
	InvolvedCompanies     []InvolvedCompany `json:"involved_companies,omitempty"`
	Videos                []Video           `json:"videos,omitempty"`
	SimilarGames          []Game            `json:"similar_games,omitempty"`
}

// Cover はプロバイダ上のカバー画像参照。
type Cover struct {
	URL string `json:"url"`
}

// Named はプロバイダの名前付き参照（プラットフォーム、ジャンルなど）。
type Named struct {
	Name string `json:"name"`
}

// ReleaseDate はリリース日（エポック秒）。先頭が最古と仮定する。
type ReleaseDate struct {
	Date int64 `json:"date"`
}

// AgeRating はプロバイダの年齢レーティング情報。
// organization 2 はPEGIを表す。
type AgeRating struct {
	Organization   int `json:"organization"`
	RatingCategory int `json:"rating_category"`
	Rating         int `json:"rating"`
}

// InvolvedCompany はゲームに関与した企業（開発元・販売元フラグ付き）。
type InvolvedCompany struct {
	Developer bool     `json:"developer"`
	Publisher bool     `json:"publisher"`
	Company   *Company `json:"company,omitempty"`
}

// Company は企業の名前参照。
type Company struct {
	Name string `json:"name"`
}

// Video はプロバイダ上の動画参照。
type Video struct {
	VideoID string `json:"video_id"`
}

// PlatformNames はプラットフォーム名の一覧を返す。
func (g *Game) PlatformNames() []string {
	names := make([]string, 0, len(g.Platforms))
	for _, p := range g.Platforms {
		names = append(names, p.Name)
	}
	return names
}

// GenreNames はジャンル名の一覧を返す。先頭がメインジャンル。
func (g *Game) GenreNames() []string {
	names := make([]string, 0, len(g.Genres))
	for _, gg := range g.Genres {
		names = append(names, gg.Name)
	}
	return names
}

// CoverURL はカバー画像参照のURLを返す。参照がない場合は空文字を返す。
func (g *Game) CoverURL() string {
	if g.Cover == nil {
		return ""
	}
	return g.Cover.URL
}

// BestRatingCount はスコアリングに使うレビュー数を返す。
// クリティックレビュー数を優先し、なければユーザーレビュー数を使う。
func (g *Game) BestRatingCount() int {
	if g.AggregatedRatingCount != nil {
		return *g.AggregatedRatingCount
	}
	if g.RatingCount != nil {
		return *g.RatingCount
	}
	return 0
}

// BestRating はスコアリングに使うレーティングを返す。
// クリティックレーティングを優先し、なければユーザーレーティングを使う。
func (g *Game) BestRating() float64 {
	if g.AggregatedRating != nil {
		return *g.AggregatedRating
	}
	if g.Rating != nil {
		return *g.Rating
	}
	return 0
}
