package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/gamedex/internal/model"
)

// PostgresCounterRepo はPostgreSQLを使用したカウンタリポジトリ。
type PostgresCounterRepo struct {
	db *sql.DB
}

// NewPostgresCounterRepo はPostgresCounterRepoを生成する。
func NewPostgresCounterRepo(db *sql.DB) *PostgresCounterRepo {
	return &PostgresCounterRepo{db: db}
}

// FavoriteCount は指定ゲームのお気に入り数を取得する。未登録の場合は0を返す。
func (r *PostgresCounterRepo) FavoriteCount(ctx context.Context, gameID int64) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT count FROM favorite_counts WHERE game_id = $1`,
		gameID,
	).Scan(&count)

	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("お気に入り数の取得に失敗しました: %w", err)
	}
	return count, nil
}

// AdjustFavorite はお気に入り数をアトミックに増減し、更新後の値を返す。
// UPSERT + GREATESTにより、並行リクエスト下でも更新消失や負数は発生しない。
func (r *PostgresCounterRepo) AdjustFavorite(ctx context.Context, gameID int64, delta int) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO favorite_counts (game_id, count)
		 VALUES ($1, GREATEST(0, $2))
		 ON CONFLICT (game_id)
		 DO UPDATE SET count = GREATEST(0, favorite_counts.count + $2),
		               updated_at = NOW()
		 RETURNING count`,
		gameID, delta,
	).Scan(&count)

	if err != nil {
		return 0, fmt.Errorf("お気に入り数の更新に失敗しました: %w", err)
	}
	return count, nil
}

// StatusCounts は指定ゲームの全ステータスカウンタを取得する。
// 行が存在しないステータスは0のまま返す。
func (r *PostgresCounterRepo) StatusCounts(ctx context.Context, gameID int64) (model.StatusCounts, error) {
	counts := model.StatusCounts{}

	rows, err := r.db.QueryContext(ctx,
		`SELECT status, count FROM status_counts WHERE game_id = $1`,
		gameID,
	)
	if err != nil {
		return counts, fmt.Errorf("ステータスカウンタの取得に失敗しました: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return counts, fmt.Errorf("ステータスカウンタの読み取りに失敗しました: %w", err)
		}
		if s, ok := model.ParseStatus(status); ok {
			counts.Set(s, count)
		}
	}
	if err := rows.Err(); err != nil {
		return counts, fmt.Errorf("ステータスカウンタの走査に失敗しました: %w", err)
	}
	return counts, nil
}

// AdjustStatus は指定ステータスのカウンタをアトミックに増減し、更新後の値を返す。
func (r *PostgresCounterRepo) AdjustStatus(ctx context.Context, gameID int64, status model.Status, delta int) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO status_counts (game_id, status, count)
		 VALUES ($1, $2, GREATEST(0, $3))
		 ON CONFLICT (game_id, status)
		 DO UPDATE SET count = GREATEST(0, status_counts.count + $3),
		               updated_at = NOW()
		 RETURNING count`,
		gameID, string(status), delta,
	).Scan(&count)

	if err != nil {
		return 0, fmt.Errorf("ステータスカウンタの更新に失敗しました: %w", err)
	}
	return count, nil
}

// ResetStatuses は指定ゲームの全ステータスカウンタを0に戻す。
func (r *PostgresCounterRepo) ResetStatuses(ctx context.Context, gameID int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE status_counts SET count = 0, updated_at = NOW() WHERE game_id = $1`,
		gameID,
	)
	if err != nil {
		return fmt.Errorf("ステータスカウンタのリセットに失敗しました: %w", err)
	}
	return nil
}
