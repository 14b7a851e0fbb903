// Package cleanup は失効した重複排除レコードの削除ジョブを提供する。
// 参照時には有効期限で判定するため、このジョブはテーブルの肥大化を防ぐためだけに動く。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// ExpiredRecordDeleter は失効レコードの削除を抽象化するインターフェース。
// repository.DedupeRepository を受け付けることができる。
type ExpiredRecordDeleter interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// CleanupJob は失効した重複排除レコードの削除ジョブ。
// 何度実行しても結果が変わらない冪等な削除処理を保証する。
type CleanupJob struct {
	store  ExpiredRecordDeleter
	logger *slog.Logger

	now func() time.Time
}

// NewCleanupJob は新しいCleanupJobを生成する。
func NewCleanupJob(store ExpiredRecordDeleter, logger *slog.Logger) *CleanupJob {
	return &CleanupJob{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// Run は現在時刻の時点で失効しているレコードを削除する。
// 削除対象がない場合でもエラーにならない。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	deletedCount, err := j.store.DeleteExpired(ctx, j.now())
	if err != nil {
		j.logger.Error("重複排除レコードのクリーンアップに失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("重複排除レコードのクリーンアップに失敗: %w", err)
	}

	duration := time.Since(start)
	j.logger.Info("重複排除レコードのクリーンアップが完了しました",
		slog.Int64("deleted_count", deletedCount),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}
