package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/hitoshi/sniper/internal/model"
	"github.com/hitoshi/sniper/internal/repository"
)

// 配信結果の区分。
const (
	OutcomePublished      = "published"
	OutcomeNoNewListings  = "no_new_listings"
	OutcomePartialFailure = "partial_failure"
)

// Result は1回の配信の集計結果。
type Result struct {
	Published int     // 今回新たに通知した件数
	Skipped   int     // 通知済み、または同一実行内で重複していた件数
	Failures  []error // 出品単位の NotifyError / StoreError
}

// Outcome は配信結果の区分を返す。
// 1件でも失敗があればpartial_failure、そうでなければ通知件数の有無で区分する。
func (r Result) Outcome() string {
	switch {
	case len(r.Failures) > 0:
		return OutcomePartialFailure
	case r.Published > 0:
		return OutcomePublished
	default:
		return OutcomeNoNewListings
	}
}

// Dispatcher は重複排除ストアを参照しながら出品を1件ずつ通知する。
type Dispatcher struct {
	repo      repository.DedupeRepository
	notifier  Notifier
	retention time.Duration
	logger    *slog.Logger

	now func() time.Time
}

// NewDispatcher はDispatcherを生成する。
// retentionは通知済みレコードの保持期間。
func NewDispatcher(repo repository.DedupeRepository, notifier Notifier, retention time.Duration, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		repo:      repo,
		notifier:  notifier,
		retention: retention,
		logger:    logger,
		now:       time.Now,
	}
}

// Dispatch は出品を入力順に処理する。
// 有効な通知済みレコードがある出品はスキップし、それ以外を通知してからレコードを書き込む。
// 1件の失敗は記録して次の出品へ進む。同じ呼び出し内で同一IDは高々1回しか通知しない。
func (d *Dispatcher) Dispatch(ctx context.Context, listings []model.Listing) Result {
	var result Result
	seen := make(map[string]struct{}, len(listings))

	for _, l := range listings {
		if err := ctx.Err(); err != nil {
			d.logger.WarnContext(ctx, "配信が中断されました",
				slog.String("listing_id", l.ID),
				slog.String("error", err.Error()),
			)
			result.Failures = append(result.Failures, &model.NotifyError{ListingID: l.ID, Err: err})
			break
		}

		if _, ok := seen[l.ID]; ok {
			result.Skipped++
			continue
		}
		seen[l.ID] = struct{}{}

		now := d.now()
		existing, err := d.repo.FindActive(ctx, l.ID, now)
		if err != nil {
			storeErr := &model.StoreError{ListingID: l.ID, Op: "lookup", Err: err}
			d.logFailure(ctx, storeErr)
			result.Failures = append(result.Failures, storeErr)
			continue
		}
		if existing != nil {
			d.logger.DebugContext(ctx, "通知済みの出品をスキップします",
				slog.String("listing_id", l.ID),
				slog.Time("expires_at", existing.ExpiresAt),
			)
			result.Skipped++
			continue
		}

		if err := d.notifier.Publish(ctx, BuildNotification(l)); err != nil {
			notifyErr := &model.NotifyError{ListingID: l.ID, Err: err}
			d.logFailure(ctx, notifyErr)
			result.Failures = append(result.Failures, notifyErr)
			continue
		}
		result.Published++

		// 通知は完了しているため、書き込みに失敗しても通知件数には含める
		sentAt := d.now()
		inserted, err := d.repo.InsertIfAbsent(ctx, model.DedupeRecord{
			ListingID: l.ID,
			ExpiresAt: sentAt.Add(d.retention),
			CreatedAt: sentAt,
		})
		if err != nil {
			storeErr := &model.StoreError{ListingID: l.ID, Op: "insert", Err: err}
			d.logFailure(ctx, storeErr)
			result.Failures = append(result.Failures, storeErr)
			continue
		}
		if !inserted {
			d.logger.WarnContext(ctx, "他の実行が同じ出品を先に記録していました",
				slog.String("listing_id", l.ID),
			)
		}

		d.logger.InfoContext(ctx, "新着の出品を通知しました",
			slog.String("listing_id", l.ID),
			slog.Int("price", l.Price),
		)
	}

	return result
}

func (d *Dispatcher) logFailure(ctx context.Context, err error) {
	d.logger.ErrorContext(ctx, "出品の配信に失敗しました",
		slog.String("stage", model.StageOf(err)),
		slog.String("error", err.Error()),
	)
}
