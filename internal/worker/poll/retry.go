package poll

import (
	"context"
	"errors"
	"io"
	"net"
	"time"

	"github.com/hitoshi/sniper/internal/model"
)

const (
	// initialRetryDelay は取得再試行の初回遅延。
	initialRetryDelay = 2 * time.Second
	// maxRetryDelay は取得再試行の最大遅延。
	maxRetryDelay = 30 * time.Second
)

// IsRetryableStatus は同じ実行の中で再試行する価値のあるHTTPステータスかを返す。
// 429と5xxは一時的な障害とみなす。4xxは再試行しても結果が変わらない。
func IsRetryableStatus(statusCode int) bool {
	return statusCode == 429 || statusCode >= 500
}

// IsRetryable はエラーが再試行可能な取得失敗かどうかを返す。
// FormatErrorや呼び出し元によるキャンセルは再試行しない。
func IsRetryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var fetchErr *model.FetchError
	if !errors.As(err, &fetchErr) {
		return false
	}
	if fetchErr.StatusCode == 0 {
		// 接続エラーやタイムアウトのみ。URL検証の失敗などは再試行しない
		var netErr net.Error
		return errors.As(err, &netErr) ||
			errors.Is(err, context.DeadlineExceeded) ||
			errors.Is(err, io.ErrUnexpectedEOF)
	}
	return IsRetryableStatus(fetchErr.StatusCode)
}

// RetryDelay は再試行回数に基づいて指数バックオフ遅延を計算する。
// 初回2秒、2倍ずつ増加、最大30秒。
func RetryDelay(attempt int) time.Duration {
	delay := initialRetryDelay
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay > maxRetryDelay {
			return maxRetryDelay
		}
	}
	return delay
}

// sleepContext はdだけ待機する。コンテキストがキャンセルされた場合はそのエラーを返す。
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
