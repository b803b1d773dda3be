package search

import (
	"strings"

	"github.com/hitoshi/gamedex/internal/model"
)

// matchesQuery はローカル関連度フィルタ。
// プロバイダの検索結果は既にある程度関連しているが、精度のために
// 以下のいずれかを満たす候補だけを残す:
// 名前がクエリを含む / 名前のいずれかの語がクエリで始まる / 名前がクエリで始まる /
// クエリが既知の略称で名前が完全形を含む / （複数語クエリ）いずれかの語が一致する。
func matchesQuery(name, queryLower string, terms []string) bool {
	nameLower := strings.ToLower(name)
	nameWords := strings.Fields(nameLower)

	if strings.Contains(nameLower, queryLower) {
		return true
	}
	for _, w := range nameWords {
		if strings.HasPrefix(w, queryLower) {
			return true
		}
	}
	if strings.HasPrefix(nameLower, queryLower) {
		return true
	}
	for _, exp := range abbrevExpansions[queryLower] {
		if strings.Contains(nameLower, exp) {
			return true
		}
	}
	if len(terms) > 1 {
		for _, term := range terms {
			if strings.Contains(nameLower, term) {
				return true
			}
			for _, w := range nameWords {
				if strings.HasPrefix(w, term) {
					return true
				}
			}
		}
	}
	return false
}

// scoreCandidate は生の候補に対する関連度スコアを計算する。
// 決定的であり、同一入力に対して常に同じスコアを返す。
func scoreCandidate(g *model.Game, queryLower string, terms []string) float64 {
	nameLower := strings.ToLower(g.Name)
	nameWords := strings.Fields(nameLower)
	var score float64

	// 人気度: レビュー数が多い = シリーズ本編である可能性が高い（モッドとの差別化）
	ratingCount := float64(g.BestRatingCount())
	score += min(ratingCount/50, 60)

	// 長い名前へのペナルティ（モッド・ファンメイド対策）
	if len(nameWords) > 5 {
		score -= 40
	} else if len(nameWords) > 4 {
		score -= 20
	}

	// 略称: 名前がフランチャイズ名で始まる = シリーズ本編
	if expansions, ok := abbrevExpansions[queryLower]; ok {
		startsWithFranchise := false
		containsFranchise := false
		for _, exp := range expansions {
			if strings.HasPrefix(nameLower, exp) {
				startsWithFranchise = true
			} else if strings.Contains(nameLower, exp) {
				containsFranchise = true
			}
		}
		if startsWithFranchise {
			score += 120
		} else if containsFranchise {
			score -= 30
		}
	}

	// 名前とクエリの一致度
	switch {
	case nameLower == queryLower:
		score += 100
	case strings.HasPrefix(nameLower, queryLower):
		score += 80
	case anyWordHasPrefix(nameWords, queryLower):
		score += 70
	case strings.Contains(nameLower, queryLower):
		score += 50
	}

	// 一致した検索語の数
	for _, term := range terms {
		if strings.Contains(nameLower, term) || anyWordHasPrefix(nameWords, term) {
			score += 10
		}
	}

	// クエリを含んで続きがある語（"minecraft" は "minecra" を含んで続く →
	// "minecart" より上位に出すべき）
	for _, w := range nameWords {
		if strings.Contains(w, queryLower) && len(w) > len(queryLower) {
			if strings.HasPrefix(w, queryLower) {
				score += 60
			} else {
				score += 40
			}
			break
		}
	}

	// レーティングボーナス
	if g.AggregatedRating != nil {
		score += *g.AggregatedRating / 10
	}

	return score
}

// scoreShaped は整形後の表示形式に対する簡約スコアを計算する。
// 整形時の名前正規化とレーティングの "N/A" 化を反映した最終並び替えに使う。
// 略称ボーナスは第2パスでも維持する。略称クエリではシリーズ本編の名前が
// クエリ文字列そのものを含まないため、これを落とすとモッドが本編を逆転する。
func scoreShaped(card *model.SearchCard, queryLower string, terms []string) float64 {
	nameLower := strings.ToLower(card.Name)
	nameWords := strings.Fields(nameLower)
	var score float64

	if expansions, ok := abbrevExpansions[queryLower]; ok {
		for _, exp := range expansions {
			if strings.HasPrefix(nameLower, exp) {
				score += 120
				break
			}
		}
	}

	switch {
	case nameLower == queryLower:
		score += 100
	case strings.HasPrefix(nameLower, queryLower):
		score += 50
	case strings.Contains(nameLower, queryLower):
		score += 30
	}

	for _, term := range terms {
		for _, w := range nameWords {
			if strings.Contains(w, term) {
				score += 5
				break
			}
		}
	}

	if card.Rating.Valid {
		score += float64(card.Rating.Value) / 10
	}

	return score
}

func anyWordHasPrefix(words []string, prefix string) bool {
	for _, w := range words {
		if strings.HasPrefix(w, prefix) {
			return true
		}
	}
	return false
}
