package discovery

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/rand"
	"testing"
	"time"

	"github.com/hitoshi/gamedex/internal/model"
)

// --- Sampler テスト用モック ---

type mockBrowser struct {
	browseFn func(ctx context.Context, excludeIDs []int64, limit, offset int) ([]model.Game, error)
	calls    []browseCall
}

type browseCall struct {
	excludeIDs []int64
	limit      int
	offset     int
}

func (m *mockBrowser) Browse(ctx context.Context, excludeIDs []int64, limit, offset int) ([]model.Game, error) {
	m.calls = append(m.calls, browseCall{excludeIDs: excludeIDs, limit: limit, offset: offset})
	return m.browseFn(ctx, excludeIDs, limit, offset)
}

type mockRefresher struct {
	refreshCalls int
	refreshErr   error
}

func (m *mockRefresher) RefreshCredential(_ context.Context) error {
	m.refreshCalls++
	return m.refreshErr
}

type stubSummaryShaper struct{}

func (stubSummaryShaper) SummaryCard(_ context.Context, g *model.Game) model.SummaryCard {
	return model.SummaryCard{ID: g.ID, Name: g.Name}
}

func newTestSampler(browser *mockBrowser, refresher *mockRefresher, history *ViewHistoryStore) *Sampler {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	rng := rand.New(rand.NewSource(1))
	return NewSampler(browser, refresher, history, stubSummaryShaper{}, logger, rng)
}

func games(ids ...int64) []model.Game {
	out := make([]model.Game, len(ids))
	for i, id := range ids {
		out[i] = model.Game{ID: id, Name: "game"}
	}
	return out
}

// --- テスト ---

func TestSampleForwardsPageAsUpstreamOffset(t *testing.T) {
	browser := &mockBrowser{
		browseFn: func(_ context.Context, _ []int64, _, _ int) ([]model.Game, error) {
			return games(1, 2, 3, 4, 5), nil
		},
	}
	history := NewViewHistoryStore(200, time.Hour)
	history.Add([]int64{91, 92})
	sampler := newTestSampler(browser, &mockRefresher{}, history)

	if _, err := sampler.Sample(context.Background(), 5, 3); err != nil {
		t.Fatalf("Sample returned error: %v", err)
	}

	if len(browser.calls) != 1 {
		t.Fatalf("browse calls = %d, want 1", len(browser.calls))
	}
	call := browser.calls[0]
	if call.limit != 50 {
		t.Errorf("browse limit = %d, want 50", call.limit)
	}
	if call.offset != 100 {
		t.Errorf("browse offset = %d, want 100 for page 3", call.offset)
	}
	if len(call.excludeIDs) != 2 {
		t.Errorf("len(excludeIDs) = %d, want 2 (history snapshot)", len(call.excludeIDs))
	}
}

func TestSampleLimitsAndRecordsHistory(t *testing.T) {
	browser := &mockBrowser{
		browseFn: func(_ context.Context, _ []int64, _, _ int) ([]model.Game, error) {
			return games(1, 2, 3, 4, 5, 6, 7, 8), nil
		},
	}
	history := NewViewHistoryStore(200, time.Hour)
	sampler := newTestSampler(browser, &mockRefresher{}, history)

	cards, err := sampler.Sample(context.Background(), 5, 1)
	if err != nil {
		t.Fatalf("Sample returned error: %v", err)
	}
	if len(cards) != 5 {
		t.Fatalf("len(cards) = %d, want 5", len(cards))
	}
	// 返したIDは履歴に記録される
	for _, card := range cards {
		if !history.Contains(card.ID) {
			t.Errorf("history does not contain returned id %d", card.ID)
		}
	}
	if got := history.Len(); got != 5 {
		t.Errorf("history.Len() = %d, want 5", got)
	}
}

func TestSampleSinksHistoryEntries(t *testing.T) {
	browser := &mockBrowser{
		browseFn: func(_ context.Context, _ []int64, _, _ int) ([]model.Game, error) {
			return games(1, 2, 3, 4, 5, 6, 7, 8, 9, 10), nil
		},
	}
	history := NewViewHistoryStore(200, time.Hour)
	history.Add([]int64{1, 2})
	sampler := newTestSampler(browser, &mockRefresher{}, history)

	// 履歴中のIDは重み0.01で底に沈むため、新規8件だけのページでは返らない
	cards, err := sampler.Sample(context.Background(), 8, 1)
	if err != nil {
		t.Fatalf("Sample returned error: %v", err)
	}
	if len(cards) != 8 {
		t.Fatalf("len(cards) = %d, want 8", len(cards))
	}
	for _, card := range cards {
		if card.ID == 1 || card.ID == 2 {
			t.Errorf("card id %d is in view history, want only fresh candidates", card.ID)
		}
	}
}

func TestSampleExhaustionResetsHistory(t *testing.T) {
	browser := &mockBrowser{
		browseFn: func(_ context.Context, _ []int64, _, _ int) ([]model.Game, error) {
			return nil, nil
		},
	}
	history := NewViewHistoryStore(200, time.Hour)
	history.Add([]int64{1, 2, 3})
	sampler := newTestSampler(browser, &mockRefresher{}, history)

	_, err := sampler.Sample(context.Background(), 5, 4)
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Sample error = %v, want *model.APIError", err)
	}
	if apiErr.Code != model.ErrCodeNoGames {
		t.Errorf("error code = %q, want %q", apiErr.Code, model.ErrCodeNoGames)
	}
	if got := history.Len(); got != 0 {
		t.Errorf("history.Len() = %d, want 0 after exhaustion reset", got)
	}
}

func TestSampleAuthExpiredRefreshesCredential(t *testing.T) {
	browser := &mockBrowser{
		browseFn: func(_ context.Context, _ []int64, _, _ int) ([]model.Game, error) {
			return nil, model.NewUpstreamAuthExpiredError()
		},
	}
	refresher := &mockRefresher{}
	sampler := newTestSampler(browser, refresher, NewViewHistoryStore(200, time.Hour))

	_, err := sampler.Sample(context.Background(), 5, 1)
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Sample error = %v, want *model.APIError", err)
	}
	if apiErr.Code != model.ErrCodeUpstreamUnavailable {
		t.Errorf("error code = %q, want %q", apiErr.Code, model.ErrCodeUpstreamUnavailable)
	}
	if refresher.refreshCalls != 1 {
		t.Errorf("refresh calls = %d, want 1", refresher.refreshCalls)
	}
}

func TestSampleGenericErrorDoesNotRefresh(t *testing.T) {
	browser := &mockBrowser{
		browseFn: func(_ context.Context, _ []int64, _, _ int) ([]model.Game, error) {
			return nil, errors.New("connection reset")
		},
	}
	refresher := &mockRefresher{}
	sampler := newTestSampler(browser, refresher, NewViewHistoryStore(200, time.Hour))

	if _, err := sampler.Sample(context.Background(), 5, 1); err == nil {
		t.Fatal("Sample returned nil error, want provider error")
	}
	if refresher.refreshCalls != 0 {
		t.Errorf("refresh calls = %d, want 0", refresher.refreshCalls)
	}
}
