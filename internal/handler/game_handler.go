// Package handler はHTTPハンドラーとルーティングを提供する。
package handler

import (
	"context"
	"net/http"
	"regexp"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/gamedex/internal/model"
)

// gameIDPattern はパスパラメータとして許可するゲームIDの形式。
var gameIDPattern = regexp.MustCompile(`^\d+$`)

// GameServiceInterface はゲームハンドラーが必要とするサービスインターフェース。
type GameServiceInterface interface {
	// GetGame はゲーム詳細を取得する。見つからない場合はGameNotFoundエラーを返す。
	GetGame(ctx context.Context, id int64) (*model.GameDetail, error)
	// Popular は高評価タイトルをサマリーカード形式で返す。
	Popular(ctx context.Context, limit int) ([]model.SummaryCard, error)
}

// GameHandler はゲーム詳細と人気一覧のHTTPハンドラー。
type GameHandler struct {
	service GameServiceInterface
}

// NewGameHandler はGameHandlerを生成する。
func NewGameHandler(service GameServiceInterface) *GameHandler {
	return &GameHandler{service: service}
}

// Popular は人気タイトル一覧を返す。
// GET /popular?limit=N
func (h *GameHandler) Popular(w http.ResponseWriter, r *http.Request) {
	limit := intQueryParam(r, "limit", 10)

	cards, err := h.service.Popular(r.Context(), limit)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, cards)
}

// GetGame はゲーム詳細を返す。
// GET /games/:id
func (h *GameHandler) GetGame(w http.ResponseWriter, r *http.Request) {
	id, ok := gameIDParam(r)
	if !ok {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidIDError())
		return
	}

	detail, err := h.service.GetGame(r.Context(), id)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, detail)
}

// gameIDParam はパスパラメータからゲームIDを取り出す。
// 数字のみで構成されていない場合はfalseを返す。
func gameIDParam(r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	if !gameIDPattern.MatchString(raw) {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// intQueryParam はクエリパラメータを整数として取り出す。
// 欠落、解析不能、または0の場合はデフォルト値を返す。
func intQueryParam(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v == 0 {
		return def
	}
	return v
}
