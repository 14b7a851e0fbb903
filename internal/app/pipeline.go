package app

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/hitoshi/sniper/internal/config"
	"github.com/hitoshi/sniper/internal/extractor"
	"github.com/hitoshi/sniper/internal/filter"
	"github.com/hitoshi/sniper/internal/normalizer"
	"github.com/hitoshi/sniper/internal/notify"
	"github.com/hitoshi/sniper/internal/security"
)

// telegramTimeout はTelegram Bot APIへのリクエストのタイムアウト。
const telegramTimeout = 15 * time.Second

// searchParams は設定から検索条件を組み立てる。
func searchParams(cfg *config.Config) extractor.SearchParams {
	return extractor.SearchParams{
		Category:    cfg.Category,
		Subcategory: cfg.Subcategory,
		MinPrice:    cfg.MinPrice,
		MaxPrice:    cfg.MaxPrice,
		ZipCode:     cfg.ZipCode,
		RadiusMiles: cfg.SearchRadius,
	}
}

// newExtractor は掲載サイトの抽出器を生成する。
func newExtractor(cfg *config.Config, logger *slog.Logger) extractor.Extractor {
	return extractor.NewEmbeddedJSONExtractor(
		cfg.SearchBaseURL,
		security.NewSourceGuard(),
		logger,
		cfg.FetchTimeout,
		cfg.FetchMaxSize,
	)
}

// newNormalizer は出品の正規化器を生成する。
func newNormalizer(cfg *config.Config) *normalizer.Normalizer {
	return normalizer.NewNormalizer(cfg.DetailBaseURL, security.NewTextSanitizer())
}

// newNotifier は設定に応じた通知先を生成する。DRY_RUN時はログに出力するだけにする。
func newNotifier(cfg *config.Config, logger *slog.Logger) (notify.Notifier, error) {
	if cfg.DryRun {
		logger.Warn("DRY_RUN が有効なため通知は送信しません")
		return notify.NewLogNotifier(logger), nil
	}

	n, err := notify.NewTelegramNotifier(notify.TelegramConfig{
		Token:       cfg.TelegramBotToken,
		ChatID:      cfg.TelegramChatID,
		APIEndpoint: cfg.TelegramAPIEndpoint,
		RatePerSec:  rate.Limit(cfg.NotifyRatePerSec),
		HTTPClient:  &http.Client{Timeout: telegramTimeout},
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("通知先の初期化に失敗しました: %w", err)
	}
	return n, nil
}

// searchTerms は設定からキーワードフィルタの語句を取り出す。
// 呼び出しごとに新しいスライスを返す。
func searchTerms(cfg *config.Config) (include, exclude []string) {
	return filter.ParseTerms(cfg.IncludedSearchTerms), filter.ParseTerms(cfg.ExcludedSearchTerms)
}
