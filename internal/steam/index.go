// Package steam は代替画像ソース（Steam）のアプリインデックスを提供する。
// インデックスはプロセス起動後の初回アクセスで1回だけ取得し、以後メモ化する。
package steam

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"sync"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

const (
	// defaultAppsURL はアプリ一覧取得APIのエンドポイント。
	defaultAppsURL = "https://api.steampowered.com/ISteamApps/GetAppList/v2/"
	// coverURLFormat はライブラリカバー画像のURLテンプレート。
	coverURLFormat = "https://steamcdn-a.akamaihd.net/steam/apps/%d/library_600x900.jpg"
)

// App はインデックス上の1アプリ。
type App struct {
	AppID int64  `json:"appid"`
	Name  string `json:"name"`
}

// CoverURL はこのアプリのライブラリカバー画像URLを返す。
func (a App) CoverURL() string {
	return fmt.Sprintf(coverURLFormat, a.AppID)
}

// AppIndex はタイトル名からアプリを検索するインターフェース。
type AppIndex interface {
	// Match はゲーム名に対応するアプリを返す。見つからない場合はfalseを返す。
	Match(ctx context.Context, name string) (App, bool)
}

// Index はSteamアプリ一覧のメモ化インデックス。
// 一覧の更新は遅いため、プロセス存続期間はTTLなしで保持する。
// 強制リフレッシュは管理者の再起動に委ねる。
type Index struct {
	httpClient *http.Client
	logger     *slog.Logger
	url        string

	mu     sync.Mutex
	apps   []App
	loaded bool
}

// NewIndex はIndexを生成する。アプリ一覧の取得は初回アクセスまで遅延する。
func NewIndex(httpClient *http.Client, logger *slog.Logger, url string) *Index {
	if url == "" {
		url = defaultAppsURL
	}
	return &Index{
		httpClient: httpClient,
		logger:     logger,
		url:        url,
	}
}

// Apps はアプリ一覧を返す。未取得の場合は取得してメモ化する。
// 取得失敗時はエラーを返すが、メモ化はしない（次回アクセスで再試行する）。
func (idx *Index) Apps(ctx context.Context) ([]App, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.loaded {
		return idx.apps, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, idx.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build app list request: %w", err)
	}

	resp, err := idx.httpClient.Do(req)
	if err != nil {
		idx.logger.Error("steam app list fetch failed",
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("steam app list fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("steam app list returned status %d", resp.StatusCode)
	}

	var payload struct {
		AppList struct {
			Apps []App `json:"apps"`
		} `json:"applist"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode steam app list: %w", err)
	}

	idx.apps = payload.AppList.Apps
	idx.loaded = true
	idx.logger.Info("steam app index loaded",
		slog.Int("app_count", len(idx.apps)),
	)
	return idx.apps, nil
}

// Match はゲーム名に対応するアプリを3段階で検索する:
// 小文字化した名前の完全一致、正規化名の一致、先頭2語の前方一致。
// 前方一致で複数候補がある場合はファジー距離が最小のものを選ぶ。
func (idx *Index) Match(ctx context.Context, name string) (App, bool) {
	apps, err := idx.Apps(ctx)
	if err != nil || len(apps) == 0 {
		return App{}, false
	}

	nameLower := strings.ToLower(name)
	nameNorm := NormalizeName(name)

	// 1. 小文字化した名前の完全一致
	for _, a := range apps {
		if a.Name != "" && strings.ToLower(a.Name) == nameLower {
			return a, true
		}
	}

	// 2. 正規化名（サフィックス・副題除去後）の一致
	if nameNorm != "" {
		for _, a := range apps {
			if a.Name != "" && NormalizeName(a.Name) == nameNorm {
				return a, true
			}
		}
	}

	// 3. 先頭2語の前方一致
	if len(nameNorm) > 3 {
		words := strings.Fields(nameNorm)
		if len(words) > 2 {
			words = words[:2]
		}
		prefix := strings.Join(words, " ")

		var candidates []App
		for _, a := range apps {
			if a.Name != "" && strings.HasPrefix(NormalizeName(a.Name), prefix) {
				candidates = append(candidates, a)
			}
		}
		if len(candidates) == 1 {
			return candidates[0], true
		}
		if len(candidates) > 1 {
			return closestCandidate(nameNorm, candidates), true
		}
	}

	return App{}, false
}

// closestCandidate は候補の中から元の名前にファジー距離が最も近いアプリを選ぶ。
func closestCandidate(target string, candidates []App) App {
	best := candidates[0]
	bestRank := -1
	for _, a := range candidates {
		rank := fuzzy.RankMatchNormalizedFold(target, NormalizeName(a.Name))
		if rank < 0 {
			continue
		}
		if bestRank < 0 || rank < bestRank {
			best = a
			bestRank = rank
		}
	}
	return best
}

var (
	// subtitleRe は最初の区切り記号（: - – —）以降を除去する。
	subtitleRe = regexp.MustCompile(`\s*[:\-–—]\s*.*$`)
	// editionRe は末尾のエディション修飾を除去する。
	editionRe = regexp.MustCompile(`(?i)\s*(definitive edition|game of the year|edition|goty|remastered|remaster)\s*$`)
	// spaceRe は連続する空白を1つにまとめる。
	spaceRe = regexp.MustCompile(`\s+`)
)

// NormalizeName はファジー照合用にゲーム名を正規化する。
// 小文字化し、副題とエディション修飾を除去し、空白を整える。
func NormalizeName(name string) string {
	if name == "" {
		return ""
	}
	s := strings.ToLower(name)
	s = subtitleRe.ReplaceAllString(s, "")
	s = editionRe.ReplaceAllString(s, "")
	s = spaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}
