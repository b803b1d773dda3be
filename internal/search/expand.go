package search

import "strings"

// tokenize はクエリを小文字の検索語に分割する。
// 2文字未満の語（"a" など）はノイズとして除外する。
func tokenize(query string) []string {
	var terms []string
	for _, w := range strings.Fields(strings.ToLower(query)) {
		if len(w) > 1 {
			terms = append(terms, w)
		}
	}
	return terms
}

// expandQuery は1つのユーザークエリから発行するプロバイダクエリ群を導出する。
// 重複するクエリは追加しない。順序は: 完全クエリ → 略称の完全形 →
// 最長語（複数語の場合）→ 4/5/6文字プレフィックス（単語の場合）。
func expandQuery(query string, terms []string) []string {
	queries := []string{query}
	queryLower := strings.ToLower(query)

	seen := map[string]bool{query: true}
	add := func(q string) {
		if !seen[q] {
			seen[q] = true
			queries = append(queries, q)
		}
	}

	// 既知の略称なら完全形を広いクエリとして追加する（gta → grand theft auto）
	if full, ok := abbrevToFull[queryLower]; ok {
		add(full)
	}

	switch {
	case len(terms) > 1:
		// 複数語: 3文字以上の語の中で最長のものを広いクエリとして追加する
		longest := ""
		for _, t := range terms {
			if len(t) > 2 && len(t) > len(longest) {
				longest = t
			}
		}
		if longest != "" && longest != queryLower {
			add(longest)
		}
	case len(terms) == 1:
		// 単語かつ4文字以上: 4/5/6文字のプレフィックスで部分一致の取りこぼしを補う
		// （"minecra" → "mine", "minec", "minecr" がプロバイダ側でヒットする）
		term := terms[0]
		if len(term) >= 4 {
			for _, n := range []int{4, 5, 6} {
				if len(term) >= n {
					prefix := term[:n]
					if prefix != term {
						add(prefix)
					}
				}
			}
		}
	}

	return queries
}
