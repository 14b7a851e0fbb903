package repository

import (
	"context"
	"time"

	"github.com/hitoshi/sniper/internal/model"
)

// DedupeRepository は通知済み出品の重複排除レコードの永続化インターフェース。
type DedupeRepository interface {
	// FindActive は指定出品IDの有効なレコードを取得する。
	// レコードが存在しない場合、または now 時点で失効している場合はnilを返す。
	FindActive(ctx context.Context, listingID string, now time.Time) (*model.DedupeRecord, error)

	// InsertIfAbsent は有効なレコードが存在しない場合に限りレコードを書き込む。
	// 失効済みのレコードは上書きする。書き込んだ場合はtrue、
	// 他の実行が既に有効なレコードを書き込んでいた場合はfalseを返す。
	InsertIfAbsent(ctx context.Context, record model.DedupeRecord) (bool, error)

	// DeleteExpired は now 時点で失効しているレコードを物理削除し、削除件数を返す。
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
