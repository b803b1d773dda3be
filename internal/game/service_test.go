package game

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hitoshi/gamedex/internal/model"
)

// --- Service テスト用モック ---

type mockCatalog struct {
	gameByIDFn    func(ctx context.Context, id int64) (*model.Game, error)
	popularFn     func(ctx context.Context, limit int) ([]model.Game, error)
	gameByIDCalls int
}

func (m *mockCatalog) GameByID(ctx context.Context, id int64) (*model.Game, error) {
	m.gameByIDCalls++
	return m.gameByIDFn(ctx, id)
}

func (m *mockCatalog) Popular(ctx context.Context, limit int) ([]model.Game, error) {
	return m.popularFn(ctx, limit)
}

type mockRefresher struct {
	refreshCalls int
	refreshErr   error
}

func (m *mockRefresher) RefreshCredential(_ context.Context) error {
	m.refreshCalls++
	return m.refreshErr
}

func newTestService(catalog *mockCatalog, refresher *mockRefresher) (*Service, *[]time.Duration) {
	svc := NewService(catalog, refresher, newTestShaper(&mockCounterRepo{}), nopRecorder{}, newTestLogger(), time.Hour)
	var delays []time.Duration
	svc.sleep = func(_ context.Context, d time.Duration) {
		delays = append(delays, d)
	}
	return svc, &delays
}

// --- テスト ---

func TestGetGameCachesDetail(t *testing.T) {
	catalog := &mockCatalog{
		gameByIDFn: func(_ context.Context, id int64) (*model.Game, error) {
			return &model.Game{ID: id, Name: "Cached Game"}, nil
		},
	}
	svc, _ := newTestService(catalog, &mockRefresher{})
	ctx := context.Background()

	first, err := svc.GetGame(ctx, 42)
	if err != nil {
		t.Fatalf("GetGame returned error: %v", err)
	}
	second, err := svc.GetGame(ctx, 42)
	if err != nil {
		t.Fatalf("second GetGame returned error: %v", err)
	}
	if catalog.gameByIDCalls != 1 {
		t.Errorf("catalog calls = %d, want 1 (second call served from cache)", catalog.gameByIDCalls)
	}
	if first.Name != second.Name {
		t.Errorf("cached detail name = %q, want %q", second.Name, first.Name)
	}
}

func TestGetGameNotFoundIsNotCached(t *testing.T) {
	catalog := &mockCatalog{
		gameByIDFn: func(_ context.Context, _ int64) (*model.Game, error) {
			return nil, nil
		},
	}
	svc, _ := newTestService(catalog, &mockRefresher{})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := svc.GetGame(ctx, 999)
		var apiErr *model.APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("GetGame error = %v, want *model.APIError", err)
		}
		if apiErr.Code != model.ErrCodeGameNotFound {
			t.Errorf("error code = %q, want %q", apiErr.Code, model.ErrCodeGameNotFound)
		}
	}
	if catalog.gameByIDCalls != 2 {
		t.Errorf("catalog calls = %d, want 2 (not-found must not be cached)", catalog.gameByIDCalls)
	}
}

func TestGetGameRetriesWithIncreasingDelay(t *testing.T) {
	attempts := 0
	catalog := &mockCatalog{
		gameByIDFn: func(_ context.Context, id int64) (*model.Game, error) {
			attempts++
			if attempts < 3 {
				return nil, model.NewUpstreamUnavailableError()
			}
			return &model.Game{ID: id, Name: "Eventually"}, nil
		},
	}
	svc, delays := newTestService(catalog, &mockRefresher{})

	detail, err := svc.GetGame(context.Background(), 1)
	if err != nil {
		t.Fatalf("GetGame returned error: %v", err)
	}
	if detail.Name != "Eventually" {
		t.Errorf("detail.Name = %q, want %q", detail.Name, "Eventually")
	}
	want := []time.Duration{1 * time.Second, 2 * time.Second}
	if len(*delays) != len(want) {
		t.Fatalf("len(delays) = %d, want %d", len(*delays), len(want))
	}
	for i, d := range want {
		if (*delays)[i] != d {
			t.Errorf("delays[%d] = %v, want %v", i, (*delays)[i], d)
		}
	}
}

func TestGetGameAuthExpiredRefreshesWithoutDelay(t *testing.T) {
	attempts := 0
	catalog := &mockCatalog{
		gameByIDFn: func(_ context.Context, id int64) (*model.Game, error) {
			attempts++
			if attempts == 1 {
				return nil, model.NewUpstreamAuthExpiredError()
			}
			return &model.Game{ID: id, Name: "After Refresh"}, nil
		},
	}
	refresher := &mockRefresher{}
	svc, delays := newTestService(catalog, refresher)

	detail, err := svc.GetGame(context.Background(), 1)
	if err != nil {
		t.Fatalf("GetGame returned error: %v", err)
	}
	if detail.Name != "After Refresh" {
		t.Errorf("detail.Name = %q, want %q", detail.Name, "After Refresh")
	}
	if refresher.refreshCalls != 1 {
		t.Errorf("refresh calls = %d, want 1", refresher.refreshCalls)
	}
	if len(*delays) != 0 {
		t.Errorf("delays = %v, want none for auth-expired retry", *delays)
	}
}

func TestGetGameExhaustsAttempts(t *testing.T) {
	catalog := &mockCatalog{
		gameByIDFn: func(_ context.Context, _ int64) (*model.Game, error) {
			return nil, model.NewUpstreamUnavailableError()
		},
	}
	svc, _ := newTestService(catalog, &mockRefresher{})

	_, err := svc.GetGame(context.Background(), 1)
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("GetGame error = %v, want *model.APIError", err)
	}
	if apiErr.Code != model.ErrCodeUpstreamUnavailable {
		t.Errorf("error code = %q, want %q", apiErr.Code, model.ErrCodeUpstreamUnavailable)
	}
	if catalog.gameByIDCalls != 3 {
		t.Errorf("catalog calls = %d, want 3", catalog.gameByIDCalls)
	}
}

func TestPopularShapesSummaryCards(t *testing.T) {
	catalog := &mockCatalog{
		popularFn: func(_ context.Context, limit int) ([]model.Game, error) {
			if limit != 10 {
				t.Errorf("popular limit = %d, want 10", limit)
			}
			return []model.Game{
				{ID: 1, Name: "Top Rated", AggregatedRating: floatPtr(95), AggregatedRatingCount: intPtr(30)},
				{ID: 2, Name: "Runner Up"},
			}, nil
		},
	}
	svc, _ := newTestService(catalog, &mockRefresher{})

	cards, err := svc.Popular(context.Background(), 10)
	if err != nil {
		t.Fatalf("Popular returned error: %v", err)
	}
	if len(cards) != 2 {
		t.Fatalf("len(cards) = %d, want 2", len(cards))
	}
	if cards[0].ID != 1 || cards[0].Name != "Top Rated" {
		t.Errorf("cards[0] = %+v, want ID 1 Top Rated", cards[0])
	}
	if !cards[0].CriticRating.Valid || cards[0].CriticRating.Value != 95 {
		t.Errorf("cards[0].CriticRating = %+v, want valid 95", cards[0].CriticRating)
	}
}

func TestPopularAuthExpiredRefreshesCredential(t *testing.T) {
	catalog := &mockCatalog{
		popularFn: func(_ context.Context, _ int) ([]model.Game, error) {
			return nil, model.NewUpstreamAuthExpiredError()
		},
	}
	refresher := &mockRefresher{}
	svc, _ := newTestService(catalog, refresher)

	_, err := svc.Popular(context.Background(), 10)
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Popular error = %v, want *model.APIError", err)
	}
	if apiErr.Code != model.ErrCodeUpstreamUnavailable {
		t.Errorf("error code = %q, want %q", apiErr.Code, model.ErrCodeUpstreamUnavailable)
	}
	if refresher.refreshCalls != 1 {
		t.Errorf("refresh calls = %d, want 1", refresher.refreshCalls)
	}
}
