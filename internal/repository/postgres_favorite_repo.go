package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresFavoriteRepo はPostgreSQLを使用したユーザーお気に入りリポジトリ。
type PostgresFavoriteRepo struct {
	db *sql.DB
}

// NewPostgresFavoriteRepo はPostgresFavoriteRepoを生成する。
func NewPostgresFavoriteRepo(db *sql.DB) *PostgresFavoriteRepo {
	return &PostgresFavoriteRepo{db: db}
}

// Add はユーザーのお気に入りを登録する。重複登録は無視される。
func (r *PostgresFavoriteRepo) Add(ctx context.Context, userID string, gameID int64) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO user_favorites (user_id, game_id)
		 VALUES ($1, $2)
		 ON CONFLICT (user_id, game_id) DO NOTHING`,
		userID, gameID,
	)
	if err != nil {
		return fmt.Errorf("お気に入りの登録に失敗しました: %w", err)
	}
	return nil
}

// Remove はユーザーのお気に入りを削除する。
func (r *PostgresFavoriteRepo) Remove(ctx context.Context, userID string, gameID int64) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM user_favorites WHERE user_id = $1 AND game_id = $2`,
		userID, gameID,
	)
	if err != nil {
		return fmt.Errorf("お気に入りの削除に失敗しました: %w", err)
	}
	return nil
}

// ListGameIDs はユーザーのお気に入りゲームIDを新しい順に最大limit件返す。
func (r *PostgresFavoriteRepo) ListGameIDs(ctx context.Context, userID string, limit int) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT game_id FROM user_favorites
		 WHERE user_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("お気に入り一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("お気に入り一覧の読み取りに失敗しました: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("お気に入り一覧の走査に失敗しました: %w", err)
	}
	return ids, nil
}
