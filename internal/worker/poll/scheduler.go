package poll

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Runner はパイプラインを1回実行するインターフェース。
type Runner interface {
	RunOnce(ctx context.Context) (Summary, error)
}

// Scheduler はティッカーでパイプラインを定期実行する。
// 実行は逐次で、前回の実行が終わるまで次の実行は始まらない。
type Scheduler struct {
	runner Runner
	logger *slog.Logger
}

// NewScheduler はSchedulerの新しいインスタンスを生成する。
func NewScheduler(runner Runner, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		runner: runner,
		logger: logger,
	}
}

// Start は起動直後に1回実行し、その後interval間隔で実行を繰り返す。
// コンテキストがキャンセルされるまで実行を継続する。失敗した実行はログに記録して次の周期を待つ。
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("定期実行スケジューラを開始しました",
		slog.Duration("interval", interval),
	)

	s.runOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("定期実行スケジューラを停止しました")
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	summary, err := s.runner.RunOnce(ctx)
	if err == nil {
		return
	}
	if errors.Is(err, context.Canceled) {
		return
	}
	s.logger.Error("定期実行に失敗しました",
		slog.String("run_id", summary.RunID),
		slog.String("outcome", summary.Outcome),
		slog.String("error", err.Error()),
	)
}
