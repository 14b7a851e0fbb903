// Package poll は掲載サイトの新着出品を取得して通知するパイプラインの実行を提供する。
// 単発実行（run）と、ティッカーによる定期実行（worker）の両方から利用する。
package poll

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/sniper/internal/extractor"
	"github.com/hitoshi/sniper/internal/filter"
	"github.com/hitoshi/sniper/internal/metrics"
	"github.com/hitoshi/sniper/internal/model"
	"github.com/hitoshi/sniper/internal/notify"
)

// ErrPartialFailure は一部の出品の通知または記録に失敗した実行を表す。
// 個々の失敗は errors.Join で連結して同時に返す。
var ErrPartialFailure = errors.New("一部の出品の配信に失敗しました")

// 処理段階別の出品数のラベル。
const (
	countFetched     = "fetched"
	countInvalid     = "invalid"
	countAdsRemoved  = "ads_removed"
	countFilteredOut = "filtered_out"
	countPublished   = "published"
	countSkipped     = "skipped"
)

// ListingNormalizer は生データをListingへ変換するインターフェース。
type ListingNormalizer interface {
	NormalizeAll(raws []extractor.RawEntry) ([]model.Listing, []error)
}

// ListingDispatcher は出品を重複排除しながら通知するインターフェース。
type ListingDispatcher interface {
	Dispatch(ctx context.Context, listings []model.Listing) notify.Result
}

// Options はパイプラインの検索条件とフィルタ条件を保持する。
type Options struct {
	Params       extractor.SearchParams
	IncludeTerms []string
	ExcludeTerms []string
	FetchRetries int // 一時的な取得失敗に対する再試行回数
}

// Collection は通知前までの処理結果。
type Collection struct {
	Listings    []model.Listing // フィルタ通過後の出品（取得順）
	Fetched     int
	Invalid     int
	AdsRemoved  int
	FilteredOut int
}

// Summary は1回の実行の集計結果。
type Summary struct {
	RunID       string
	Fetched     int
	Invalid     int
	AdsRemoved  int
	FilteredOut int
	Published   int
	Skipped     int
	Failed      int
	Outcome     string
	Duration    time.Duration
}

// Poller は 取得 → 正規化 → 広告除外 → キーワードフィルタ → 配信 を実行する。
// 実行をまたいだ状態はメモリに保持しない。
type Poller struct {
	extractor  extractor.Extractor
	normalizer ListingNormalizer
	dispatcher ListingDispatcher
	opts       Options
	metrics    metrics.MetricsCollector
	logger     *slog.Logger

	sleep    func(ctx context.Context, d time.Duration) error
	newRunID func() string
}

// NewPoller はPollerを生成する。dispatcherがnilの場合、RunOnceは使用できずCollectのみ利用できる。
// metricsCollectorがnilの場合はメトリクスを記録しない。
func NewPoller(
	ext extractor.Extractor,
	normalizer ListingNormalizer,
	dispatcher ListingDispatcher,
	opts Options,
	metricsCollector metrics.MetricsCollector,
	logger *slog.Logger,
) *Poller {
	if metricsCollector == nil {
		metricsCollector = metrics.NopCollector{}
	}
	if opts.FetchRetries < 0 {
		opts.FetchRetries = 0
	}
	return &Poller{
		extractor:  ext,
		normalizer: normalizer,
		dispatcher: dispatcher,
		opts:       opts,
		metrics:    metricsCollector,
		logger:     logger,
		sleep:      sleepContext,
		newRunID:   func() string { return uuid.NewString() },
	}
}

// Collect は通知を行わずに、フィルタ通過後の出品までを取得する。
// 取得失敗とページ形式エラーはそのまま返す。
func (p *Poller) Collect(ctx context.Context) (Collection, error) {
	return p.collect(ctx, p.logger)
}

func (p *Poller) collect(ctx context.Context, logger *slog.Logger) (Collection, error) {
	var c Collection

	raws, err := p.fetchWithRetry(ctx, logger)
	if err != nil {
		return c, err
	}
	c.Fetched = len(raws)

	listings, errs := p.normalizer.NormalizeAll(raws)
	for _, err := range errs {
		logger.WarnContext(ctx, "不正な出品を除外しました",
			slog.String("stage", model.StageOf(err)),
			slog.String("error", err.Error()),
		)
		p.metrics.RecordStageError(model.StageValidate)
	}
	c.Invalid = len(errs)

	withoutAds := filter.RemoveAds(listings)
	c.AdsRemoved = len(listings) - len(withoutAds)

	matched := filter.ByKeywords(withoutAds, p.opts.IncludeTerms, p.opts.ExcludeTerms)
	c.FilteredOut = len(withoutAds) - len(matched)
	c.Listings = matched

	p.metrics.RecordListings(countFetched, c.Fetched)
	p.metrics.RecordListings(countInvalid, c.Invalid)
	p.metrics.RecordListings(countAdsRemoved, c.AdsRemoved)
	p.metrics.RecordListings(countFilteredOut, c.FilteredOut)

	return c, nil
}

// RunOnce はパイプラインを1回実行する。
// 取得失敗とページ形式エラーは実行全体を中断してそのまま返す。
// 一部の出品の通知または記録に失敗した場合は ErrPartialFailure を返す。
func (p *Poller) RunOnce(ctx context.Context) (Summary, error) {
	start := time.Now()
	summary := Summary{RunID: p.newRunID()}
	logger := p.logger.With(slog.String("run_id", summary.RunID))

	logger.InfoContext(ctx, "実行を開始します",
		slog.String("category", p.opts.Params.Category),
		slog.String("subcategory", p.opts.Params.Subcategory),
	)

	if p.dispatcher == nil {
		return summary, errors.New("配信先が設定されていません")
	}

	c, err := p.collect(ctx, logger)
	summary.Fetched = c.Fetched
	summary.Invalid = c.Invalid
	summary.AdsRemoved = c.AdsRemoved
	summary.FilteredOut = c.FilteredOut
	if err != nil {
		stage := model.StageOf(err)
		summary.Outcome = stage + "_error"
		summary.Duration = time.Since(start)
		p.metrics.RecordStageError(stage)
		p.metrics.RecordRun(summary.Outcome, summary.Duration)
		logger.ErrorContext(ctx, "実行を中断しました",
			slog.String("stage", stage),
			slog.String("error", err.Error()),
		)
		return summary, err
	}

	result := p.dispatcher.Dispatch(ctx, c.Listings)
	summary.Published = result.Published
	summary.Skipped = result.Skipped
	summary.Failed = len(result.Failures)
	summary.Outcome = result.Outcome()
	summary.Duration = time.Since(start)

	for _, failure := range result.Failures {
		p.metrics.RecordStageError(model.StageOf(failure))
	}
	p.metrics.RecordListings(countPublished, summary.Published)
	p.metrics.RecordListings(countSkipped, summary.Skipped)
	p.metrics.RecordRun(summary.Outcome, summary.Duration)

	if summary.Outcome == notify.OutcomeNoNewListings {
		logger.InfoContext(ctx, "新着の出品はありません")
	}
	logger.InfoContext(ctx, "実行が完了しました",
		slog.Int("fetched", summary.Fetched),
		slog.Int("invalid", summary.Invalid),
		slog.Int("ads_removed", summary.AdsRemoved),
		slog.Int("filtered_out", summary.FilteredOut),
		slog.Int("published", summary.Published),
		slog.Int("skipped", summary.Skipped),
		slog.Int("failed", summary.Failed),
		slog.String("outcome", summary.Outcome),
		slog.Float64("duration_ms", float64(summary.Duration.Milliseconds())),
	)

	if summary.Failed > 0 {
		return summary, fmt.Errorf("%w: %w", ErrPartialFailure, errors.Join(result.Failures...))
	}
	return summary, nil
}

// fetchWithRetry は一時的な取得失敗をFetchRetries回まで再試行する。
func (p *Poller) fetchWithRetry(ctx context.Context, logger *slog.Logger) ([]extractor.RawEntry, error) {
	for attempt := 0; ; attempt++ {
		start := time.Now()
		raws, err := p.extractor.FetchListings(ctx, p.opts.Params)
		p.metrics.RecordFetchLatency(time.Since(start))

		if err == nil {
			return raws, nil
		}

		var fetchErr *model.FetchError
		if errors.As(err, &fetchErr) && fetchErr.StatusCode != 0 {
			p.metrics.RecordHTTPStatus(fetchErr.StatusCode)
		}

		if attempt >= p.opts.FetchRetries || !IsRetryable(err) {
			return nil, err
		}

		delay := RetryDelay(attempt)
		logger.WarnContext(ctx, "掲載サイトの取得に失敗したため再試行します",
			slog.Int("attempt", attempt+1),
			slog.Duration("delay", delay),
			slog.String("error", err.Error()),
		)
		if sleepErr := p.sleep(ctx, delay); sleepErr != nil {
			return nil, err
		}
	}
}
