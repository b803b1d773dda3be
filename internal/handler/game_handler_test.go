package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/gamedex/internal/middleware"
	"github.com/hitoshi/gamedex/internal/model"
)

// --- モック定義 ---

// mockGameService はGameServiceInterfaceのモック実装。
type mockGameService struct {
	getGameFn func(ctx context.Context, id int64) (*model.GameDetail, error)
	popularFn func(ctx context.Context, limit int) ([]model.SummaryCard, error)
}

func (m *mockGameService) GetGame(ctx context.Context, id int64) (*model.GameDetail, error) {
	if m.getGameFn != nil {
		return m.getGameFn(ctx, id)
	}
	return nil, nil
}

func (m *mockGameService) Popular(ctx context.Context, limit int) ([]model.SummaryCard, error) {
	if m.popularFn != nil {
		return m.popularFn(ctx, limit)
	}
	return nil, nil
}

// --- テストヘルパー ---

// withUserID はテスト用にリクエストコンテキストにユーザーIDを注入するヘルパー。
func withUserID(r *http.Request, userID string) *http.Request {
	ctx := middleware.ContextWithUserID(r.Context(), userID)
	return r.WithContext(ctx)
}

// withChiURLParams はテスト用にchiのURLパラメータを注入するヘルパー。
func withChiURLParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	ctx := context.WithValue(r.Context(), chi.RouteCtxKey, rctx)
	return r.WithContext(ctx)
}

// parseAPIErrorResponse はレスポンスボディからエラーレスポンスをパースするヘルパー。
func parseAPIErrorResponse(t *testing.T, w *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var result map[string]string
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return result
}

// --- GET /games/:id テスト ---

func TestGameHandler_GetGame_Success(t *testing.T) {
	svc := &mockGameService{
		getGameFn: func(_ context.Context, id int64) (*model.GameDetail, error) {
			if id != 1942 {
				t.Errorf("id = %d, want 1942", id)
			}
			return &model.GameDetail{ID: id, Name: "Grand Theft Auto V", Favorite: 3}, nil
		},
	}
	h := NewGameHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/games/1942", nil)
	req = withChiURLParams(req, map[string]string{"id": "1942"})
	w := httptest.NewRecorder()
	h.GetGame(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var detail model.GameDetail
	if err := json.NewDecoder(w.Body).Decode(&detail); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if detail.ID != 1942 || detail.Name != "Grand Theft Auto V" {
		t.Errorf("detail = %+v, want ID 1942 Grand Theft Auto V", detail)
	}
	if detail.Favorite != 3 {
		t.Errorf("detail.Favorite = %d, want 3", detail.Favorite)
	}
}

func TestGameHandler_GetGame_InvalidID(t *testing.T) {
	svc := &mockGameService{
		getGameFn: func(_ context.Context, _ int64) (*model.GameDetail, error) {
			t.Fatal("service should not be called for an invalid id")
			return nil, nil
		},
	}
	h := NewGameHandler(svc)

	for _, raw := range []string{"abc", "12abc", "-5", ""} {
		req := httptest.NewRequest(http.MethodGet, "/games/"+raw, nil)
		req = withChiURLParams(req, map[string]string{"id": raw})
		w := httptest.NewRecorder()
		h.GetGame(w, req)

		if w.Code != http.StatusBadRequest {
			t.Errorf("id %q: status = %d, want %d", raw, w.Code, http.StatusBadRequest)
		}
		if body := parseAPIErrorResponse(t, w); body["error"] != "Invalid ID" {
			t.Errorf("id %q: error = %q, want %q", raw, body["error"], "Invalid ID")
		}
	}
}

func TestGameHandler_GetGame_NotFound(t *testing.T) {
	svc := &mockGameService{
		getGameFn: func(_ context.Context, _ int64) (*model.GameDetail, error) {
			return nil, model.NewGameNotFoundError()
		},
	}
	h := NewGameHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/games/999", nil)
	req = withChiURLParams(req, map[string]string{"id": "999"})
	w := httptest.NewRecorder()
	h.GetGame(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
	if body := parseAPIErrorResponse(t, w); body["error"] != "Game not found" {
		t.Errorf("error = %q, want %q", body["error"], "Game not found")
	}
}

func TestGameHandler_GetGame_UpstreamError(t *testing.T) {
	svc := &mockGameService{
		getGameFn: func(_ context.Context, _ int64) (*model.GameDetail, error) {
			return nil, model.NewUpstreamUnavailableError()
		},
	}
	h := NewGameHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/games/1", nil)
	req = withChiURLParams(req, map[string]string{"id": "1"})
	w := httptest.NewRecorder()
	h.GetGame(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
	if body := parseAPIErrorResponse(t, w); body["error"] != "IGDB error" {
		t.Errorf("error = %q, want %q", body["error"], "IGDB error")
	}
}

// --- GET /popular テスト ---

func TestGameHandler_Popular_DefaultLimit(t *testing.T) {
	svc := &mockGameService{
		popularFn: func(_ context.Context, limit int) ([]model.SummaryCard, error) {
			if limit != 10 {
				t.Errorf("limit = %d, want default 10", limit)
			}
			return []model.SummaryCard{{ID: 1, Name: "Top"}}, nil
		},
	}
	h := NewGameHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/popular", nil)
	w := httptest.NewRecorder()
	h.Popular(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var cards []model.SummaryCard
	if err := json.NewDecoder(w.Body).Decode(&cards); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(cards) != 1 || cards[0].Name != "Top" {
		t.Errorf("cards = %+v, want single Top entry", cards)
	}
}

func TestGameHandler_Popular_CustomLimit(t *testing.T) {
	svc := &mockGameService{
		popularFn: func(_ context.Context, limit int) ([]model.SummaryCard, error) {
			if limit != 25 {
				t.Errorf("limit = %d, want 25", limit)
			}
			return []model.SummaryCard{}, nil
		},
	}
	h := NewGameHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/popular?limit=25", nil)
	w := httptest.NewRecorder()
	h.Popular(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
}
