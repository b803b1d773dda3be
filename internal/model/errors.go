package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// ワイヤ上のレスポンスはMessageのみを `error` フィールドとして公開し、
// CodeとCategoryはHTTPステータスへのマッピングとログに使う。
type APIError struct {
	Code     string // エラーコード
	Message  string // クライアントに返すメッセージ
	Category string // カテゴリ: auth, validation, catalog, counter, system
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUpstreamAuthExpired     = "UPSTREAM_AUTH_EXPIRED"
	ErrCodeUpstreamUnavailable     = "UPSTREAM_UNAVAILABLE"
	ErrCodeGameNotFound            = "GAME_NOT_FOUND"
	ErrCodeNoGames                 = "NO_GAMES"
	ErrCodeInvalidID               = "INVALID_ID"
	ErrCodeInvalidQuery            = "INVALID_QUERY"
	ErrCodeInvalidStatus           = "INVALID_STATUS"
	ErrCodeInvalidLimit            = "INVALID_LIMIT"
	ErrCodeCounterStoreUnavailable = "COUNTER_STORE_UNAVAILABLE"
	ErrCodeNoToken                 = "NO_TOKEN"
	ErrCodeInvalidToken            = "INVALID_TOKEN"
)

// NewUpstreamAuthExpiredError はプロバイダ認可切れエラーを生成する。
// クレデンシャルを1回リフレッシュして再試行した後にのみ伝播させる。
func NewUpstreamAuthExpiredError() *APIError {
	return &APIError{
		Code:     ErrCodeUpstreamAuthExpired,
		Message:  "IGDB error",
		Category: "catalog",
	}
}

// NewUpstreamUnavailableError はプロバイダ到達不能エラーを生成する。
// 詳細はログのみに残し、クライアントには一般的なメッセージを返す。
func NewUpstreamUnavailableError() *APIError {
	return &APIError{
		Code:     ErrCodeUpstreamUnavailable,
		Message:  "IGDB error",
		Category: "catalog",
	}
}

// NewRecommendationsError はレコメンデーション組み立て失敗エラーを生成する。
func NewRecommendationsError() *APIError {
	return &APIError{
		Code:     ErrCodeUpstreamUnavailable,
		Message:  "Recommendations error",
		Category: "catalog",
	}
}

// NewGameNotFoundError はゲーム未検出エラーを生成する。
func NewGameNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeGameNotFound,
		Message:  "Game not found",
		Category: "catalog",
	}
}

// NewNoGamesError はディスカバリーフィード枯渇エラーを生成する。
func NewNoGamesError() *APIError {
	return &APIError{
		Code:     ErrCodeNoGames,
		Message:  "No games",
		Category: "catalog",
	}
}

// NewInvalidIDError は不正なゲームIDエラーを生成する。
func NewInvalidIDError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidID,
		Message:  "Invalid ID",
		Category: "validation",
	}
}

// NewInvalidQueryError は空の検索クエリエラーを生成する。
func NewInvalidQueryError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidQuery,
		Message:  "Query required",
		Category: "validation",
	}
}

// NewInvalidStatusError は未知のステータスエラーを生成する。
func NewInvalidStatusError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidStatus,
		Message:  "Invalid status",
		Category: "validation",
	}
}

// NewInvalidLimitError は不正なlimitパラメータエラーを生成する。
// 負のlimitは後段のスライス境界に到達する前にここで弾く。
func NewInvalidLimitError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidLimit,
		Message:  "Invalid limit",
		Category: "validation",
	}
}

// NewCounterStoreUnavailableError はカウンターストア障害エラーを生成する。
// 詳細レスポンスの組み立てでは致命的エラーとせず、カウント0にデグレードする。
func NewCounterStoreUnavailableError(err error) *APIError {
	return &APIError{
		Code:     ErrCodeCounterStoreUnavailable,
		Message:  fmt.Sprintf("counter store unavailable: %v", err),
		Category: "counter",
	}
}

// NewNoTokenError は認証トークン未提示エラーを生成する。
func NewNoTokenError() *APIError {
	return &APIError{
		Code:     ErrCodeNoToken,
		Message:  "No token",
		Category: "auth",
	}
}

// NewInvalidTokenError は認証トークン検証失敗エラーを生成する。
func NewInvalidTokenError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidToken,
		Message:  "Invalid token",
		Category: "auth",
	}
}
