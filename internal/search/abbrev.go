package search

// abbrevToFull は検索クエリ展開用の略称テーブル。
// クエリ全体が略称に一致した場合、完全形を追加のプロバイダクエリとして発行する。
var abbrevToFull = map[string]string{
	"gta":  "grand theft auto",
	"cs":   "counter strike",
	"csgo": "counter strike",
	"cs2":  "counter strike",
	"nfs":  "need for speed",
	"cod":  "call of duty",
	"ac":   "assassin's creed",
	"mhw":  "monster hunter",
}

// abbrevExpansions はローカルフィルタとスコアリング用の略称→完全形テーブル。
// プロバイダは別名でもヒットするが、ローカルフィルタはメインの名前しか見ないため、
// 完全形の部分一致を別途許可する必要がある。
var abbrevExpansions = map[string][]string{
	"gta":     {"grand theft auto"},
	"cs":      {"counter-strike", "counter strike"},
	"csgo":    {"counter-strike", "counter strike"},
	"cs2":     {"counter-strike", "counter strike"},
	"nfs":     {"need for speed"},
	"ac":      {"assassin's creed", "assassins creed"},
	"cod":     {"call of duty"},
	"fifa":    {"fifa"},
	"lol":     {"league of legends"},
	"wow":     {"world of warcraft"},
	"pokemon": {"pokemon", "pokémon"},
	"tekken":  {"tekken"},
	"mhw":     {"monster hunter"},
}
