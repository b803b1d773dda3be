package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/gamedex/internal/middleware"
	"github.com/hitoshi/gamedex/internal/recommend"
)

const (
	recommendDefaultLimit = 4
	recommendMaxLimit     = 20
)

// RecommendServiceInterface はレコメンデーションハンドラーが必要とするサービスインターフェース。
type RecommendServiceInterface interface {
	// Recommend はレコメンデーションの1ページ分を返す。userIDが空の場合はゲスト扱い。
	Recommend(ctx context.Context, userID string, limit, page int) (*recommend.Result, error)

	// InvalidateUser はユーザーのキャッシュ済みレコメンデーションを破棄する。
	// お気に入りの変更時にソーシャルハンドラーから呼ばれる。
	InvalidateUser(userID string)
}

// RecommendHandler はレコメンデーションのHTTPハンドラー。
type RecommendHandler struct {
	service RecommendServiceInterface
}

// NewRecommendHandler はRecommendHandlerを生成する。
func NewRecommendHandler(service RecommendServiceInterface) *RecommendHandler {
	return &RecommendHandler{service: service}
}

// Recommend はレコメンデーションを返す。任意認証（匿名の場合はゲスト向け）。
// GET /recommendations?limit=N&page=P
func (h *RecommendHandler) Recommend(w http.ResponseWriter, r *http.Request) {
	limit := intQueryParam(r, "limit", recommendDefaultLimit)
	if limit < 1 {
		limit = 1
	}
	if limit > recommendMaxLimit {
		limit = recommendMaxLimit
	}

	page := intQueryParam(r, "page", 1)
	if page < 1 {
		page = 1
	}

	// 任意認証: コンテキストにユーザーIDがなければゲストとして扱う
	userID, _ := middleware.UserIDFromContext(r.Context())

	result, err := h.service.Recommend(r.Context(), userID, limit, page)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}
