package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/gamedex/internal/model"
)

// DiscoverySamplerInterface はディスカバリーハンドラーが必要とするサンプラーインターフェース。
type DiscoverySamplerInterface interface {
	// Sample はディスカバリーフィードの1ページ分を返す。
	// カタログを消費し切った場合はNoGamesエラーを返す。
	Sample(ctx context.Context, limit, page int) ([]model.SummaryCard, error)
}

// DiscoveryHandler はディスカバリーフィードのHTTPハンドラー。
type DiscoveryHandler struct {
	sampler DiscoverySamplerInterface
}

// NewDiscoveryHandler はDiscoveryHandlerを生成する。
func NewDiscoveryHandler(sampler DiscoverySamplerInterface) *DiscoveryHandler {
	return &DiscoveryHandler{sampler: sampler}
}

// Feed はディスカバリーフィードを返す。
// GET /games?limit=N&page=P
func (h *DiscoveryHandler) Feed(w http.ResponseWriter, r *http.Request) {
	limit := intQueryParam(r, "limit", 5)
	if limit < 1 {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidLimitError())
		return
	}
	page := intQueryParam(r, "page", 1)
	if page < 1 {
		page = 1
	}

	cards, err := h.sampler.Sample(r.Context(), limit, page)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, cards)
}
