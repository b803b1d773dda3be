package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// SummarySanitizerService はゲーム説明文のサニタイズ機能のインターフェースを定義する。
// プロバイダから取得した説明文をAPI応答に含める前に使用される。
type SummarySanitizerService interface {
	// Sanitize は説明文からすべてのHTMLタグを除去し、プレーンテキストを返す。
	// 説明文はリッチテキストとして表示されないため、許可タグは一切ない。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(raw string) string
}

// summarySanitizer はSummarySanitizerServiceの実装。
// bluemondayのStrictPolicyを保持し、スレッドセーフにサニタイズ処理を行う。
type summarySanitizer struct {
	policy *bluemonday.Policy
}

// NewSummarySanitizer はSummarySanitizerServiceの新しいインスタンスを生成する。
// StrictPolicyによりすべてのタグと属性が除去される。
func NewSummarySanitizer() *summarySanitizer {
	return &summarySanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Sanitize は説明文からすべてのHTMLタグを除去し、プレーンテキストを返す。
// StrictPolicyはエンティティをエスケープするため、表示用にアンエスケープして返す。
func (s *summarySanitizer) Sanitize(raw string) string {
	stripped := s.policy.Sanitize(raw)
	return strings.TrimSpace(html.UnescapeString(stripped))
}
