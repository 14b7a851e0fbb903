package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hitoshi/sniper/internal/model"
)

// PostgresDedupeRepo はPostgreSQLを使用した重複排除リポジトリ。
type PostgresDedupeRepo struct {
	db *sql.DB
}

// NewPostgresDedupeRepo はPostgresDedupeRepoを生成する。
func NewPostgresDedupeRepo(db *sql.DB) *PostgresDedupeRepo {
	return &PostgresDedupeRepo{db: db}
}

// FindActive は有効期限内のレコードを取得する。見つからない場合はnilを返す。
// 失効判定はクエリ側で行うため、クリーンアップジョブの実行有無に依存しない。
func (r *PostgresDedupeRepo) FindActive(ctx context.Context, listingID string, now time.Time) (*model.DedupeRecord, error) {
	rec := &model.DedupeRecord{}

	err := r.db.QueryRowContext(ctx,
		`SELECT listing_id, expires_at, created_at
		 FROM notified_listings
		 WHERE listing_id = $1 AND expires_at > $2`,
		listingID, now,
	).Scan(&rec.ListingID, &rec.ExpiresAt, &rec.CreatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("重複排除レコードの取得に失敗しました: %w", err)
	}

	return rec, nil
}

// InsertIfAbsent は条件付きでレコードを書き込む。
// 同じ出品IDの有効なレコードが既にあれば何もしない。失効済みのレコードは上書きする。
// 並行して動いた別の実行との競合は、通知の重複はあってもレコードの重複にはならない。
func (r *PostgresDedupeRepo) InsertIfAbsent(ctx context.Context, record model.DedupeRecord) (bool, error) {
	createdAt := record.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	result, err := r.db.ExecContext(ctx,
		`INSERT INTO notified_listings (listing_id, expires_at, created_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (listing_id) DO UPDATE
		 SET expires_at = EXCLUDED.expires_at,
		     created_at = EXCLUDED.created_at
		 WHERE notified_listings.expires_at <= EXCLUDED.created_at`,
		record.ListingID, record.ExpiresAt, createdAt,
	)
	if err != nil {
		return false, fmt.Errorf("重複排除レコードの書き込みに失敗しました: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("書き込み件数の取得に失敗しました: %w", err)
	}

	return affected > 0, nil
}

// DeleteExpired は失効済みのレコードを削除する。
func (r *PostgresDedupeRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM notified_listings WHERE expires_at <= $1`,
		now,
	)
	if err != nil {
		return 0, fmt.Errorf("失効レコードの削除に失敗しました: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("削除件数の取得に失敗しました: %w", err)
	}

	return deleted, nil
}
