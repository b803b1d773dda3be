package model

import (
	"encoding/json"
	"strconv"
	"time"
)

// NAInt は欠損時に "N/A" としてシリアライズされる整数値。
// レーティングやリリース年のように、0を「未評価」として扱うフィールドで使う。
type NAInt struct {
	Value int
	Valid bool
}

// NewNAInt は値付きのNAIntを返す。0は未評価として無効値になる。
func NewNAInt(v int) NAInt {
	return NAInt{Value: v, Valid: v != 0}
}

// MarshalJSON はNAIntをJSONにシリアライズする。
// 有効な場合は数値、無効な場合は文字列 "N/A" を出力する。
func (n NAInt) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte(`"N/A"`), nil
	}
	return []byte(strconv.Itoa(n.Value)), nil
}

// UnmarshalJSON は数値または "N/A" からNAIntを復元する。
func (n *NAInt) UnmarshalJSON(data []byte) error {
	if string(data) == `"N/A"` {
		*n = NAInt{}
		return nil
	}
	var v int
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*n = NAInt{Value: v, Valid: true}
	return nil
}

// SummaryCard はゲームのサマリーカード形式のレスポンス。
// 人気一覧・ディスカバリーフィード・類似ゲームで使用する。
type SummaryCard struct {
	ID           int64    `json:"id"`
	Name         string   `json:"name"`
	CoverImage   string   `json:"cover_image"`
	CriticRating NAInt    `json:"critic_rating"`
	ReleaseYear  NAInt    `json:"release_year"`
	MainGenre    string   `json:"main_genre"`
	Platforms    []string `json:"platforms"`
}

// SearchCard は検索結果カード形式のレスポンス。
// サマリーカードと異なり、説明文と総合レーティングを含む。
type SearchCard struct {
	ID          int64    `json:"id"`
	Name        string   `json:"name"`
	CoverImage  string   `json:"cover_image"`
	Rating      NAInt    `json:"rating"`
	Description string   `json:"description"`
	Platforms   []string `json:"platforms"`
	ReleaseYear NAInt    `json:"release_year"`
	MainGenre   string   `json:"main_genre"`
}

// GameDetail はゲーム詳細形式のレスポンス。
// メタデータ全体とソーシャルカウンター5種を含む。
type GameDetail struct {
	ID          int64         `json:"id"`
	Name        string        `json:"name"`
	Genres      []string      `json:"genres"`
	Platforms   []string      `json:"platforms"`
	ReleaseDate string        `json:"release_date"`
	Rating      NAInt         `json:"rating"`
	RatingType  string        `json:"rating_type"`
	CoverImage  string        `json:"cover_image"`
	AgeRatings  []string      `json:"age_ratings"`
	Summary     string        `json:"summary"`
	Developers  []string      `json:"developers"`
	Videos      []string      `json:"videos"`
	SimilarGames []SummaryCard `json:"similar_games"`
	Favorite    int           `json:"favorite"`
	Playing     int           `json:"playing"`
	WillPlay    int           `json:"will_play"`
	Passed      int           `json:"passed"`
	Postponed   int           `json:"postponed"`
	Abandoned   int           `json:"abandoned"`
}

// ReleaseYearOf は最初のリリース日からリリース年を求める。
// リリース日がない場合は無効値を返す。
func ReleaseYearOf(dates []ReleaseDate) NAInt {
	if len(dates) == 0 || dates[0].Date == 0 {
		return NAInt{}
	}
	year := time.Unix(dates[0].Date, 0).UTC().Year()
	return NAInt{Value: year, Valid: true}
}

// ReleaseDateOf は最初のリリース日をYYYY-MM-DD形式で返す。
// リリース日がない場合は "N/A" を返す。
func ReleaseDateOf(dates []ReleaseDate) string {
	if len(dates) == 0 || dates[0].Date == 0 {
		return "N/A"
	}
	return time.Unix(dates[0].Date, 0).UTC().Format("2006-01-02")
}

// MainGenreOf はメインジャンル（先頭ジャンル）の名前を返す。
// ジャンルがない場合は "N/A" を返す。
func MainGenreOf(genres []Named) string {
	if len(genres) == 0 {
		return "N/A"
	}
	return genres[0].Name
}
