package notify

import (
	"context"
	"log/slog"

	"github.com/hitoshi/sniper/internal/model"
)

// Notifier は通知を購読チャネルへ送信するインターフェース。
type Notifier interface {
	Publish(ctx context.Context, n model.Notification) error
}

// LogNotifier は通知を送信せずに構造化ログへ出力するNotifier。
// DRY_RUN時に使用する。
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier はLogNotifierを生成する。
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Publish は通知内容をINFOレベルで記録する。
func (n *LogNotifier) Publish(ctx context.Context, msg model.Notification) error {
	n.logger.InfoContext(ctx, "通知を送信します（ドライラン）",
		slog.String("subject", msg.Subject),
		slog.String("body", msg.Body),
	)
	return nil
}
