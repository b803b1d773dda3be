// Package cover はゲームの表示用カバー画像の解決を提供する。
// 代替画像ソース → プライマリ画像の高解像度化 → プレースホルダー、の順で解決する。
package cover

import (
	"context"
	"strings"
	"time"

	"github.com/hitoshi/gamedex/internal/cache"
	"github.com/hitoshi/gamedex/internal/metrics"
	"github.com/hitoshi/gamedex/internal/steam"
)

const (
	// PlaceholderURL はカバー画像が解決できなかった場合の静的プレースホルダー。
	PlaceholderURL = "https://placehold.co/264x352/2c2c2c/9ca3af?text=No+Cover"

	// altSourcePlatform は代替画像ソースの検索対象となるプラットフォーム名。
	altSourcePlatform = "Steam"

	// thumbToken / largeToken はプライマリ画像URLの解像度バリアントトークン。
	thumbToken = "t_thumb"
	largeToken = "t_cover_big"
)

// Resolver はカバー画像解決器。
// 解決結果は小文字化した名前をキーとするプロセス内キャッシュで共有する。
type Resolver struct {
	index    steam.AppIndex
	cache    *cache.Cache[string]
	recorder metrics.Recorder
	ttl      time.Duration
}

// NewResolver はResolverを生成する。
// ttlは代替ソースのヒットをキャッシュする期間（通常24時間）。
func NewResolver(index steam.AppIndex, recorder metrics.Recorder, ttl time.Duration) *Resolver {
	return &Resolver{
		index:    index,
		cache:    cache.New[string](ttl),
		recorder: recorder,
		ttl:      ttl,
	}
}

// Resolve はゲームの表示用カバー画像URLを解決する。
// primaryRefはプロバイダのカバー画像参照（ない場合は空文字）。
// 解決の失敗はプレースホルダーへのデグレードであり、エラーにはしない。
func (r *Resolver) Resolve(ctx context.Context, name string, platforms []string, primaryRef string) string {
	if url, ok := r.altSourceCover(ctx, name, platforms); ok {
		return url
	}
	if primaryRef != "" {
		return upgradePrimary(primaryRef)
	}
	return PlaceholderURL
}

// altSourceCover は代替ソースのカバー画像を検索する。
// 対象プラットフォームでない場合、または見つからない場合はfalseを返す。
func (r *Resolver) altSourceCover(ctx context.Context, name string, platforms []string) (string, bool) {
	if !containsPlatform(platforms, altSourcePlatform) {
		return "", false
	}

	key := "steam_" + strings.ToLower(name)
	if url, ok := r.cache.Get(key); ok {
		r.recorder.RecordCacheAccess("cover", true)
		return url, true
	}
	r.recorder.RecordCacheAccess("cover", false)

	app, ok := r.index.Match(ctx, name)
	if !ok {
		return "", false
	}

	url := app.CoverURL()
	r.cache.SetWithTTL(key, url, r.ttl)
	return url, true
}

// upgradePrimary はプライマリ画像参照をサムネイルから大判カバーに変換する。
// スキーム相対URLにはhttpsを付与する。
func upgradePrimary(ref string) string {
	url := strings.Replace(ref, thumbToken, largeToken, 1)
	if strings.HasPrefix(url, "http") {
		return url
	}
	return "https:" + url
}

func containsPlatform(platforms []string, target string) bool {
	for _, p := range platforms {
		if p == target {
			return true
		}
	}
	return false
}
