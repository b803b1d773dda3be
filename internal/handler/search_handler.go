package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/gamedex/internal/model"
	"github.com/hitoshi/gamedex/internal/search"
)

// SearchEngineInterface は検索ハンドラーが必要とするエンジンインターフェース。
type SearchEngineInterface interface {
	// Search はランク付き検索を実行し、1ページ分の結果を返す。
	Search(ctx context.Context, query string, limit, offset int) (*search.Result, error)
}

// SearchHandler はランク付き検索のHTTPハンドラー。
type SearchHandler struct {
	engine SearchEngineInterface
}

// NewSearchHandler はSearchHandlerを生成する。
func NewSearchHandler(engine SearchEngineInterface) *SearchHandler {
	return &SearchHandler{engine: engine}
}

// searchResponse は検索レスポンスのフォーマット。
type searchResponse struct {
	Data       []model.SearchCard `json:"data"`
	Pagination searchPagination   `json:"pagination"`
}

type searchPagination struct {
	HasMore bool `json:"hasMore"`
	Total   int  `json:"total"`
	Offset  int  `json:"offset"`
}

// Search は検索を処理する。
// GET /search?query=Q&limit=N&offset=O
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")
	if query == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidQueryError())
		return
	}

	limit := intQueryParam(r, "limit", 10)
	if limit < 1 {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidLimitError())
		return
	}
	offset := offsetQueryParam(r)

	result, err := h.engine.Search(r.Context(), query, limit, offset)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, searchResponse{
		Data: result.Data,
		Pagination: searchPagination{
			HasMore: result.HasMore,
			Total:   result.Total,
			Offset:  result.Offset,
		},
	})
}

// offsetQueryParam はoffsetパラメータを取り出す。欠落や解析不能は0として扱う。
func offsetQueryParam(r *http.Request) int {
	offset := intQueryParam(r, "offset", 0)
	if offset < 0 {
		return 0
	}
	return offset
}
