// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/gamedex/internal/model"
)

// CounterRepository はゲームごとのソーシャルカウンタの永続化インターフェース。
// 増減はストレージ層でアトミックに行い、カウンタは0未満にならない。
type CounterRepository interface {
	// FavoriteCount は指定ゲームのお気に入り数を取得する。未登録の場合は0を返す。
	FavoriteCount(ctx context.Context, gameID int64) (int, error)

	// AdjustFavorite はお気に入り数をdeltaだけ増減し、更新後の値を返す。
	// 減算しても0未満にはならない。
	AdjustFavorite(ctx context.Context, gameID int64, delta int) (int, error)

	// StatusCounts は指定ゲームの全ステータスカウンタを取得する。
	// 未登録のステータスは0を返す。
	StatusCounts(ctx context.Context, gameID int64) (model.StatusCounts, error)

	// AdjustStatus は指定ステータスのカウンタをdeltaだけ増減し、更新後の値を返す。
	// 減算しても0未満にはならない。
	AdjustStatus(ctx context.Context, gameID int64, status model.Status, delta int) (int, error)

	// ResetStatuses は指定ゲームの全ステータスカウンタを0に戻す。
	ResetStatuses(ctx context.Context, gameID int64) error
}

// FavoriteRepository はユーザーとお気に入りゲームの関連の永続化インターフェース。
// レコメンデーションのシード取得に使用する。
type FavoriteRepository interface {
	// Add はユーザーのお気に入りを登録する。重複登録は無視される。
	Add(ctx context.Context, userID string, gameID int64) error

	// Remove はユーザーのお気に入りを削除する。
	Remove(ctx context.Context, userID string, gameID int64) error

	// ListGameIDs はユーザーのお気に入りゲームIDを新しい順に最大limit件返す。
	ListGameIDs(ctx context.Context, userID string, limit int) ([]int64, error)
}
