package search

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/hitoshi/gamedex/internal/model"
)

// --- Engine テスト用モック ---

// mockCatalog はテスト用のCatalogSearcherモック。
// サブクエリは並行発行されるため、呼び出し記録はミューテックスで保護する。
type mockCatalog struct {
	mu       sync.Mutex
	searchFn func(ctx context.Context, term string, limit int) ([]model.Game, error)
	terms    []string
}

func (m *mockCatalog) Search(ctx context.Context, term string, limit int) ([]model.Game, error) {
	m.mu.Lock()
	m.terms = append(m.terms, term)
	m.mu.Unlock()
	return m.searchFn(ctx, term, limit)
}

func (m *mockCatalog) searchedTerms() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.terms...)
}

// mockRefresher はテスト用のCredentialRefresherモック。
type mockRefresher struct {
	refreshFn    func(ctx context.Context) error
	refreshCalls int
}

func (m *mockRefresher) RefreshCredential(ctx context.Context) error {
	m.refreshCalls++
	if m.refreshFn != nil {
		return m.refreshFn(ctx)
	}
	return nil
}

// stubShaper はカバー解決を伴わない素朴なCardShaper。
type stubShaper struct{}

func (stubShaper) SearchCard(_ context.Context, g *model.Game) model.SearchCard {
	card := model.SearchCard{
		ID:          g.ID,
		Name:        g.Name,
		Description: g.Summary,
		Platforms:   g.PlatformNames(),
		ReleaseYear: model.ReleaseYearOf(g.ReleaseDates),
		MainGenre:   model.MainGenreOf(g.Genres),
	}
	if g.AggregatedRating != nil {
		card.Rating = model.NewNAInt(int(*g.AggregatedRating))
	}
	return card
}

// nopRecorder は何も記録しないmetrics.Recorder。
type nopRecorder struct{}

func (nopRecorder) RecordProviderFetch(string, bool)     {}
func (nopRecorder) RecordProviderLatency(time.Duration)  {}
func (nopRecorder) RecordTokenRefresh(bool)              {}
func (nopRecorder) RecordSearchSubqueries(int)           {}
func (nopRecorder) RecordCacheAccess(string, bool)       {}
func (nopRecorder) RecordHTTPStatus(int)                 {}

func newTestEngine(catalog *mockCatalog, refresher *mockRefresher) *Engine {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	return NewEngine(catalog, refresher, stubShaper{}, logger, nopRecorder{})
}

func ratedGame(id int64, name string, rating float64, ratingCount int) model.Game {
	g := model.Game{ID: id, Name: name}
	if rating > 0 {
		g.AggregatedRating = &rating
	}
	if ratingCount > 0 {
		g.AggregatedRatingCount = &ratingCount
	}
	return g
}

// --- テスト ---

func TestSearchEmptyQuery(t *testing.T) {
	catalog := &mockCatalog{
		searchFn: func(_ context.Context, _ string, _ int) ([]model.Game, error) {
			t.Fatal("catalog should not be called for an empty query")
			return nil, nil
		},
	}
	engine := newTestEngine(catalog, &mockRefresher{})

	_, err := engine.Search(context.Background(), "   ", 10, 0)
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Search error = %v, want *model.APIError", err)
	}
	if apiErr.Code != model.ErrCodeInvalidQuery {
		t.Errorf("error code = %q, want %q", apiErr.Code, model.ErrCodeInvalidQuery)
	}
}

func TestSearchAbbreviationRanking(t *testing.T) {
	pool := []model.Game{
		ratedGame(2, "Mod: GTA San Andreas Edition", 0, 10),
		ratedGame(1, "Grand Theft Auto V", 92, 4000),
	}
	catalog := &mockCatalog{
		searchFn: func(_ context.Context, _ string, _ int) ([]model.Game, error) {
			return pool, nil
		},
	}
	engine := newTestEngine(catalog, &mockRefresher{})

	result, err := engine.Search(context.Background(), "gta", 10, 0)
	if err != nil {
		t.Fatalf("Search returned error: %v", err)
	}
	if len(result.Data) < 2 {
		t.Fatalf("len(result.Data) = %d, want at least 2", len(result.Data))
	}
	if result.Data[0].Name != "Grand Theft Auto V" {
		t.Errorf("first result = %q, want %q", result.Data[0].Name, "Grand Theft Auto V")
	}

	// 略称クエリは完全形の広いクエリも発行する
	terms := catalog.searchedTerms()
	found := false
	for _, term := range terms {
		if term == "grand theft auto" {
			found = true
		}
	}
	if !found {
		t.Errorf("searched terms = %v, want expansion %q included", terms, "grand theft auto")
	}
}

func TestSearchPrefixRanking(t *testing.T) {
	pool := []model.Game{
		ratedGame(2, "Minecart Simulator", 70, 30),
		ratedGame(1, "Minecraft", 88, 2000),
	}
	catalog := &mockCatalog{
		searchFn: func(_ context.Context, _ string, _ int) ([]model.Game, error) {
			return pool, nil
		},
	}
	engine := newTestEngine(catalog, &mockRefresher{})

	result, err := engine.Search(context.Background(), "minecra", 5, 0)
	if err != nil {
		t.Fatalf("Search returned error: %v", err)
	}
	if len(result.Data) == 0 {
		t.Fatal("result.Data is empty, want Minecraft ranked first")
	}
	if result.Data[0].Name != "Minecraft" {
		t.Errorf("first result = %q, want %q", result.Data[0].Name, "Minecraft")
	}
}

func TestSearchCounterStrikeRanking(t *testing.T) {
	pool := []model.Game{
		ratedGame(2, "Counter-Strike: Condition Zero", 0, 50),
		ratedGame(1, "Counter-Strike 2", 0, 500),
	}
	catalog := &mockCatalog{
		searchFn: func(_ context.Context, _ string, _ int) ([]model.Game, error) {
			return pool, nil
		},
	}
	engine := newTestEngine(catalog, &mockRefresher{})

	result, err := engine.Search(context.Background(), "counter strike", 10, 0)
	if err != nil {
		t.Fatalf("Search returned error: %v", err)
	}
	if len(result.Data) != 2 {
		t.Fatalf("len(result.Data) = %d, want 2", len(result.Data))
	}
	if result.Data[0].ID != 1 {
		t.Errorf("first result ID = %d, want 1 (higher rating count)", result.Data[0].ID)
	}
}

func TestSearchDeduplicatesAcrossSubqueries(t *testing.T) {
	catalog := &mockCatalog{
		searchFn: func(_ context.Context, term string, _ int) ([]model.Game, error) {
			// 全サブクエリが同じレコードを返す
			return []model.Game{ratedGame(7, "Grand Theft Auto V", 92, 4000)}, nil
		},
	}
	engine := newTestEngine(catalog, &mockRefresher{})

	result, err := engine.Search(context.Background(), "gta", 10, 0)
	if err != nil {
		t.Fatalf("Search returned error: %v", err)
	}
	if len(result.Data) != 1 {
		t.Errorf("len(result.Data) = %d, want 1 after dedupe", len(result.Data))
	}
	if result.Total != 1 {
		t.Errorf("result.Total = %d, want 1", result.Total)
	}
}

func TestSearchPagination(t *testing.T) {
	pool := make([]model.Game, 0, 7)
	for i := 1; i <= 7; i++ {
		pool = append(pool, ratedGame(int64(i), fmt.Sprintf("Zelda Chronicle %d", i), 80, i*100))
	}
	catalog := &mockCatalog{
		searchFn: func(_ context.Context, _ string, _ int) ([]model.Game, error) {
			return pool, nil
		},
	}
	engine := newTestEngine(catalog, &mockRefresher{})

	// limit 4 なら limit*2 = 8 > 7 となり全候補が最終候補に残る
	tests := []struct {
		name        string
		limit       int
		offset      int
		wantLen     int
		wantHasMore bool
	}{
		{name: "first page", limit: 4, offset: 0, wantLen: 4, wantHasMore: true},
		{name: "last partial page", limit: 4, offset: 4, wantLen: 3, wantHasMore: false},
		{name: "offset past end", limit: 4, offset: 10, wantLen: 0, wantHasMore: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := engine.Search(context.Background(), "zelda", tt.limit, tt.offset)
			if err != nil {
				t.Fatalf("Search returned error: %v", err)
			}
			if len(result.Data) != tt.wantLen {
				t.Errorf("len(result.Data) = %d, want %d", len(result.Data), tt.wantLen)
			}
			if result.Total != 7 {
				t.Errorf("result.Total = %d, want 7", result.Total)
			}
			if result.HasMore != tt.wantHasMore {
				t.Errorf("result.HasMore = %v, want %v", result.HasMore, tt.wantHasMore)
			}
			if result.Offset != tt.offset {
				t.Errorf("result.Offset = %d, want %d", result.Offset, tt.offset)
			}
		})
	}
}

func TestSearchDeterministicOrder(t *testing.T) {
	pool := []model.Game{
		ratedGame(3, "Tekken 3", 85, 300),
		ratedGame(8, "Tekken 8", 85, 300),
		ratedGame(7, "Tekken 7", 90, 800),
	}
	catalog := &mockCatalog{
		searchFn: func(_ context.Context, _ string, _ int) ([]model.Game, error) {
			return pool, nil
		},
	}
	engine := newTestEngine(catalog, &mockRefresher{})

	first, err := engine.Search(context.Background(), "tekken", 10, 0)
	if err != nil {
		t.Fatalf("Search returned error: %v", err)
	}
	for i := 0; i < 5; i++ {
		again, err := engine.Search(context.Background(), "tekken", 10, 0)
		if err != nil {
			t.Fatalf("Search returned error: %v", err)
		}
		for j := range first.Data {
			if again.Data[j].ID != first.Data[j].ID {
				t.Fatalf("run %d: result[%d].ID = %d, want %d (order must be deterministic)",
					i, j, again.Data[j].ID, first.Data[j].ID)
			}
		}
	}
}

func TestSearchSubqueryFailureDegrades(t *testing.T) {
	catalog := &mockCatalog{
		searchFn: func(_ context.Context, term string, _ int) ([]model.Game, error) {
			if term != "gta" {
				return nil, errors.New("upstream timeout")
			}
			return []model.Game{ratedGame(1, "Grand Theft Auto V", 92, 4000)}, nil
		},
	}
	engine := newTestEngine(catalog, &mockRefresher{})

	result, err := engine.Search(context.Background(), "gta", 10, 0)
	if err != nil {
		t.Fatalf("Search returned error: %v, want degraded success", err)
	}
	if len(result.Data) != 1 {
		t.Errorf("len(result.Data) = %d, want 1", len(result.Data))
	}
}

func TestSearchRetryPrimaryAfterAuthExpired(t *testing.T) {
	var mu sync.Mutex
	refreshed := false
	catalog := &mockCatalog{
		searchFn: func(_ context.Context, term string, _ int) ([]model.Game, error) {
			mu.Lock()
			ok := refreshed
			mu.Unlock()
			if !ok {
				return nil, model.NewUpstreamAuthExpiredError()
			}
			return []model.Game{ratedGame(1, "Grand Theft Auto V", 92, 4000)}, nil
		},
	}
	refresher := &mockRefresher{
		refreshFn: func(_ context.Context) error {
			mu.Lock()
			refreshed = true
			mu.Unlock()
			return nil
		},
	}
	engine := newTestEngine(catalog, refresher)

	result, err := engine.Search(context.Background(), "gta", 10, 0)
	if err != nil {
		t.Fatalf("Search returned error: %v", err)
	}
	if refresher.refreshCalls != 1 {
		t.Errorf("refresh calls = %d, want 1", refresher.refreshCalls)
	}
	if len(result.Data) != 1 {
		t.Errorf("len(result.Data) = %d, want 1", len(result.Data))
	}
	// リフレッシュ後は展開なしの主クエリのみ再発行する
	terms := catalog.searchedTerms()
	last := terms[len(terms)-1]
	if last != "gta" {
		t.Errorf("retried term = %q, want primary query %q", last, "gta")
	}
}

func TestSearchRefreshFailureSurfacesProviderError(t *testing.T) {
	catalog := &mockCatalog{
		searchFn: func(_ context.Context, _ string, _ int) ([]model.Game, error) {
			return nil, model.NewUpstreamAuthExpiredError()
		},
	}
	refresher := &mockRefresher{
		refreshFn: func(_ context.Context) error {
			return errors.New("token endpoint unavailable")
		},
	}
	engine := newTestEngine(catalog, refresher)

	_, err := engine.Search(context.Background(), "gta", 10, 0)
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Search error = %v, want *model.APIError", err)
	}
	if apiErr.Code != model.ErrCodeUpstreamUnavailable {
		t.Errorf("error code = %q, want %q", apiErr.Code, model.ErrCodeUpstreamUnavailable)
	}
}
