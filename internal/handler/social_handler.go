package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/gamedex/internal/middleware"
	"github.com/hitoshi/gamedex/internal/model"
	"github.com/hitoshi/gamedex/internal/repository"
)

// RecommendationInvalidator はお気に入りの変更時にユーザーの
// レコメンデーションキャッシュを破棄するためのインターフェース。
type RecommendationInvalidator interface {
	InvalidateUser(userID string)
}

// SocialHandler はお気に入りとプレイ状況カウンタのHTTPハンドラー。
// カウンタの増減はストレージ層でアトミックに行われ、0未満にはならない。
type SocialHandler struct {
	counters        repository.CounterRepository
	favorites       repository.FavoriteRepository
	recommendations RecommendationInvalidator
	logger          *slog.Logger
}

// NewSocialHandler はSocialHandlerを生成する。
func NewSocialHandler(counters repository.CounterRepository, favorites repository.FavoriteRepository, recommendations RecommendationInvalidator, logger *slog.Logger) *SocialHandler {
	return &SocialHandler{
		counters:        counters,
		favorites:       favorites,
		recommendations: recommendations,
		logger:          logger,
	}
}

// favoriteResponse はお気に入りカウンタのレスポンス。
type favoriteResponse struct {
	Favorite int `json:"favorite"`
}

// GetFavorite はお気に入りカウンタを返す。
// GET /games/:id/favorite
func (h *SocialHandler) GetFavorite(w http.ResponseWriter, r *http.Request) {
	id, ok := gameIDParam(r)
	if !ok {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidIDError())
		return
	}

	count, err := h.counters.FavoriteCount(r.Context(), id)
	if err != nil {
		handleServiceError(w, model.NewCounterStoreUnavailableError(err))
		return
	}

	writeJSON(w, http.StatusOK, favoriteResponse{Favorite: count})
}

// AddFavorite はお気に入りカウンタを増やし、ユーザーとの関連を記録する。
// POST /games/:id/favorite
func (h *SocialHandler) AddFavorite(w http.ResponseWriter, r *http.Request) {
	id, ok := gameIDParam(r)
	if !ok {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidIDError())
		return
	}

	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewNoTokenError())
		return
	}

	count, err := h.counters.AdjustFavorite(r.Context(), id, 1)
	if err != nil {
		handleServiceError(w, model.NewCounterStoreUnavailableError(err))
		return
	}

	// ユーザーとの関連はレコメンデーションのシードに使う。
	// 記録の失敗はカウンタ更新を巻き戻さず、ログのみに残す。
	if err := h.favorites.Add(r.Context(), userID, id); err != nil {
		h.logger.Warn("failed to record user favorite",
			slog.String("user_id", userID),
			slog.Int64("game_id", id),
			slog.String("error", err.Error()),
		)
	}

	// シードが変わったので類似ランキングのキャッシュを破棄する
	h.recommendations.InvalidateUser(userID)

	writeJSON(w, http.StatusOK, favoriteResponse{Favorite: count})
}

// RemoveFavorite はお気に入りカウンタを減らし、ユーザーとの関連を削除する。
// DELETE /games/:id/favorite
func (h *SocialHandler) RemoveFavorite(w http.ResponseWriter, r *http.Request) {
	id, ok := gameIDParam(r)
	if !ok {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidIDError())
		return
	}

	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewNoTokenError())
		return
	}

	count, err := h.counters.AdjustFavorite(r.Context(), id, -1)
	if err != nil {
		handleServiceError(w, model.NewCounterStoreUnavailableError(err))
		return
	}

	if err := h.favorites.Remove(r.Context(), userID, id); err != nil {
		h.logger.Warn("failed to remove user favorite",
			slog.String("user_id", userID),
			slog.Int64("game_id", id),
			slog.String("error", err.Error()),
		)
	}

	// シードが変わったので類似ランキングのキャッシュを破棄する
	h.recommendations.InvalidateUser(userID)

	writeJSON(w, http.StatusOK, favoriteResponse{Favorite: count})
}

// IncrementStatus はプレイ状況カウンタを増やす。
// POST /games/:id/status/:status
func (h *SocialHandler) IncrementStatus(w http.ResponseWriter, r *http.Request) {
	h.adjustStatus(w, r, 1)
}

// DecrementStatus はプレイ状況カウンタを減らす。
// DELETE /games/:id/status/:status
func (h *SocialHandler) DecrementStatus(w http.ResponseWriter, r *http.Request) {
	h.adjustStatus(w, r, -1)
}

// adjustStatus はステータスカウンタの増減を処理する。
// レスポンスはステータス名をキー、更新後のカウントを値とする1要素のオブジェクト。
func (h *SocialHandler) adjustStatus(w http.ResponseWriter, r *http.Request, delta int) {
	id, ok := gameIDParam(r)
	if !ok {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidIDError())
		return
	}

	status, ok := model.ParseStatus(strings.ToLower(chi.URLParam(r, "status")))
	if !ok {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidStatusError())
		return
	}

	count, err := h.counters.AdjustStatus(r.Context(), id, status, delta)
	if err != nil {
		handleServiceError(w, model.NewCounterStoreUnavailableError(err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]int{string(status): count})
}

// ResetStatuses は全プレイ状況カウンタを0に戻す。
// DELETE /games/:id/status
func (h *SocialHandler) ResetStatuses(w http.ResponseWriter, r *http.Request) {
	id, ok := gameIDParam(r)
	if !ok {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidIDError())
		return
	}

	if err := h.counters.ResetStatuses(r.Context(), id); err != nil {
		handleServiceError(w, model.NewCounterStoreUnavailableError(err))
		return
	}

	writeJSON(w, http.StatusOK, model.StatusCounts{})
}
