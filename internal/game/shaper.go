// Package game はゲームレコードのレスポンス整形と詳細取得を提供する。
package game

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/hitoshi/gamedex/internal/cover"
	"github.com/hitoshi/gamedex/internal/model"
	"github.com/hitoshi/gamedex/internal/repository"
	"github.com/hitoshi/gamedex/internal/security"
)

// minRatingCountToShow はクリティックレーティングを表示する最小レビュー数。
// レビュー数が少ないタイトルのレーティングは信頼できないため表示しない。
const minRatingCountToShow = 5

// maxDevelopers は詳細レスポンスに含める開発元・販売元の最大数。
const maxDevelopers = 3

// maxSimilarGames は詳細レスポンスに含める類似ゲームの最大数。
const maxSimilarGames = 3

// hardFallbackPEGI は年齢レーティングの手動修正テーブル。
// プロバイダ側のデータ欠損が確認されたタイトルのID → PEGI年齢。
var hardFallbackPEGI = map[int64]string{
	242408: "18",
	7346:   "12",
	1942:   "18",
	19560:  "18",
	11156:  "16",
	250:    "18",
	287:    "18",
}

// pegiCategoryToAge はプロバイダのPEGIカテゴリ値 → PEGI年齢のマッピング。
var pegiCategoryToAge = map[int]string{
	7:  "3",
	8:  "7",
	9:  "12",
	10: "16",
	11: "18",
}

// pegiOrganization はage_ratingsにおけるPEGI団体の識別値。
const pegiOrganization = 2

// Shaper はゲームレコードをレスポンス契約の各形式に変換する。
type Shaper struct {
	covers    *cover.Resolver
	counters  repository.CounterRepository
	sanitizer security.SummarySanitizerService
	logger    *slog.Logger
}

// NewShaper はShaperを生成する。
func NewShaper(covers *cover.Resolver, counters repository.CounterRepository, sanitizer security.SummarySanitizerService, logger *slog.Logger) *Shaper {
	return &Shaper{
		covers:    covers,
		counters:  counters,
		sanitizer: sanitizer,
		logger:    logger,
	}
}

// SummaryCard はゲームをサマリーカード形式に変換する。
func (s *Shaper) SummaryCard(ctx context.Context, g *model.Game) model.SummaryCard {
	platforms := g.PlatformNames()
	return model.SummaryCard{
		ID:           g.ID,
		Name:         g.Name,
		CoverImage:   s.covers.Resolve(ctx, g.Name, platforms, g.CoverURL()),
		CriticRating: criticRatingOf(g),
		ReleaseYear:  model.ReleaseYearOf(g.ReleaseDates),
		MainGenre:    model.MainGenreOf(g.Genres),
		Platforms:    platforms,
	}
}

// SearchCard はゲームを検索結果カード形式に変換する。
func (s *Shaper) SearchCard(ctx context.Context, g *model.Game) model.SearchCard {
	platforms := g.PlatformNames()
	return model.SearchCard{
		ID:          g.ID,
		Name:        g.Name,
		CoverImage:  s.covers.Resolve(ctx, g.Name, platforms, g.CoverURL()),
		Rating:      model.NewNAInt(int(math.Round(g.BestRating()))),
		Description: s.summaryOf(g),
		Platforms:   platforms,
		ReleaseYear: model.ReleaseYearOf(g.ReleaseDates),
		MainGenre:   model.MainGenreOf(g.Genres),
	}
}

// Detail はゲームを詳細形式に変換する。
// カウンターストアの障害は致命的エラーとせず、カウント0にデグレードする。
func (s *Shaper) Detail(ctx context.Context, g *model.Game) model.GameDetail {
	platforms := g.PlatformNames()

	ratingType := "Users"
	if g.AggregatedRating != nil {
		ratingType = "Critics"
	}

	similar := make([]model.SummaryCard, 0, maxSimilarGames)
	for i := range g.SimilarGames {
		if i >= maxSimilarGames {
			break
		}
		similar = append(similar, s.SummaryCard(ctx, &g.SimilarGames[i]))
	}

	favorite, statuses := s.countersOf(ctx, g.ID)

	return model.GameDetail{
		ID:           g.ID,
		Name:         g.Name,
		Genres:       g.GenreNames(),
		Platforms:    platforms,
		ReleaseDate:  model.ReleaseDateOf(g.ReleaseDates),
		Rating:       model.NewNAInt(int(math.Round(g.BestRating()))),
		RatingType:   ratingType,
		CoverImage:   s.covers.Resolve(ctx, g.Name, platforms, g.CoverURL()),
		AgeRatings:   ageRatingsOf(g),
		Summary:      s.summaryOf(g),
		Developers:   developersOf(g),
		Videos:       videoURLsOf(g),
		SimilarGames: similar,
		Favorite:     favorite,
		Playing:      statuses.Playing,
		WillPlay:     statuses.WillPlay,
		Passed:       statuses.Passed,
		Postponed:    statuses.Postponed,
		Abandoned:    statuses.Abandoned,
	}
}

// countersOf はソーシャルカウンターを取得する。取得失敗時はすべて0を返す。
func (s *Shaper) countersOf(ctx context.Context, gameID int64) (int, model.StatusCounts) {
	favorite, err := s.counters.FavoriteCount(ctx, gameID)
	if err != nil {
		s.logger.Warn("favorite count unavailable, defaulting to zero",
			slog.Int64("game_id", gameID),
			slog.String("error", err.Error()),
		)
		favorite = 0
	}

	statuses, err := s.counters.StatusCounts(ctx, gameID)
	if err != nil {
		s.logger.Warn("status counts unavailable, defaulting to zero",
			slog.Int64("game_id", gameID),
			slog.String("error", err.Error()),
		)
		statuses = model.StatusCounts{}
	}
	return favorite, statuses
}

// summaryOf はサニタイズ済みの説明文を返す。説明文がない場合は "N/A" を返す。
func (s *Shaper) summaryOf(g *model.Game) string {
	cleaned := s.sanitizer.Sanitize(g.Summary)
	if cleaned == "" {
		return "N/A"
	}
	return cleaned
}

// criticRatingOf はサマリーカード用のクリティックレーティングを返す。
// レビュー数が閾値未満、またはレーティングがない場合は無効値を返す。
func criticRatingOf(g *model.Game) model.NAInt {
	if g.AggregatedRating == nil {
		return model.NAInt{}
	}
	count := 0
	if g.AggregatedRatingCount != nil {
		count = *g.AggregatedRatingCount
	}
	if count < minRatingCountToShow {
		return model.NAInt{}
	}
	return model.NewNAInt(int(math.Round(*g.AggregatedRating)))
}

// ageRatingsOf は表示用の年齢レーティングを返す。
// 解決順: 手動修正テーブル → プロバイダのPEGIデータ → タイトル/ジャンルのヒューリスティック。
func ageRatingsOf(g *model.Game) []string {
	if age, ok := hardFallbackPEGI[g.ID]; ok {
		return []string{"PEGI: " + age}
	}

	for _, r := range g.AgeRatings {
		if r.Organization != pegiOrganization {
			continue
		}
		if age, ok := pegiCategoryToAge[r.RatingCategory]; ok {
			return []string{"PEGI: " + age}
		}
		if age, ok := pegiCategoryToAge[r.Rating]; ok {
			return []string{"PEGI: " + age}
		}
	}

	return []string{"PEGI: " + heuristicPEGI(g)}
}

// heuristicPEGI はタイトルとジャンルから年齢レーティングを推定する。
func heuristicPEGI(g *model.Game) string {
	name := strings.ToLower(g.Name)
	switch {
	case strings.Contains(name, "counter-strike"),
		strings.Contains(name, "cs2"),
		strings.Contains(name, "cs:go"):
		return "18"
	case hasAnyGenre(g, "Shooter", "Horror", "Action"):
		return "18"
	case strings.Contains(name, "minecraft"), strings.Contains(name, "lego"):
		return "7"
	case strings.Contains(name, "fifa"),
		strings.Contains(name, "nba"),
		strings.Contains(name, "pes"):
		return "3"
	}
	return "12"
}

func hasAnyGenre(g *model.Game, names ...string) bool {
	for _, genre := range g.Genres {
		for _, n := range names {
			if genre.Name == n {
				return true
			}
		}
	}
	return false
}

// videoURLsOf は動画参照をYouTubeの視聴URLに変換する。
func videoURLsOf(g *model.Game) []string {
	urls := make([]string, 0, len(g.Videos))
	for _, v := range g.Videos {
		if v.VideoID == "" {
			continue
		}
		urls = append(urls, fmt.Sprintf("https://www.youtube.com/watch?v=%s", v.VideoID))
	}
	return urls
}

// developersOf は開発元・販売元の企業名を最大3件返す。
func developersOf(g *model.Game) []string {
	names := make([]string, 0, maxDevelopers)
	for _, c := range g.InvolvedCompanies {
		if !c.Developer && !c.Publisher {
			continue
		}
		if c.Company == nil || c.Company.Name == "" {
			continue
		}
		names = append(names, c.Company.Name)
		if len(names) == maxDevelopers {
			break
		}
	}
	return names
}
