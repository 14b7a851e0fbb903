// Package config は環境変数からアプリケーション設定を読み込む。
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Search
	Category     string
	Subcategory  string
	MinPrice     int
	MaxPrice     int
	ZipCode      string
	SearchRadius int

	// Filter（カンマ区切り。空の場合はフィルタしない）
	IncludedSearchTerms string
	ExcludedSearchTerms string

	// Logging
	LogLevel string

	// Source
	SearchBaseURL string
	DetailBaseURL string
	FetchTimeout  time.Duration
	FetchMaxSize  int64
	FetchRetries  int

	// Dedupe store
	DatabaseURL     string
	DedupeRetention time.Duration

	// Notifier
	TelegramBotToken    string
	TelegramChatID      string
	TelegramAPIEndpoint string
	NotifyRatePerSec    float64
	DryRun              bool

	// Worker
	RunInterval time.Duration
	OpsPort     string
}

// デフォルト値。
const (
	DefaultCategory      = "Recreational Vehicles"
	DefaultSubcategory   = "Motorcycles, Road Bikes Used"
	DefaultSearchBaseURL = "https://classifieds.ksl.com/search/"
	DefaultDetailBaseURL = "https://www.ksl.com/classifieds/listing"
	DefaultLogLevel      = "WARNING"
)

// Load は環境変数からConfigを読み込む。
// カレントディレクトリに .env があれば先に読み込む。既に設定済みの環境変数は上書きしない。
// 数値や期間の形式が不正な場合は、該当するキー名を含むエラーを返す。
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf(".env の読み込みに失敗しました: %w", err)
	}

	cfg := &Config{}
	var invalid []string

	cfg.Category = getEnvString("CATEGORY", DefaultCategory)
	cfg.Subcategory = getEnvString("SUBCATEGORY", DefaultSubcategory)
	cfg.MinPrice = getEnvInt("MIN_PRICE", 1000, &invalid)
	cfg.MaxPrice = getEnvInt("MAX_PRICE", 100000, &invalid)
	cfg.ZipCode = getEnvString("ZIP_CODE", "84102")
	cfg.SearchRadius = getEnvInt("SEARCH_RADIUS", 100, &invalid)

	cfg.IncludedSearchTerms = os.Getenv("INCLUDED_SEARCH_TERMS")
	cfg.ExcludedSearchTerms = os.Getenv("EXCLUDED_SEARCH_TERMS")

	cfg.LogLevel = getEnvString("LOG_LEVEL", DefaultLogLevel)

	cfg.SearchBaseURL = getEnvString("SEARCH_BASE_URL", DefaultSearchBaseURL)
	cfg.DetailBaseURL = getEnvString("DETAIL_BASE_URL", DefaultDetailBaseURL)
	cfg.FetchTimeout = getEnvDuration("FETCH_TIMEOUT", 30*time.Second, &invalid)
	cfg.FetchMaxSize = getEnvInt64("FETCH_MAX_SIZE", 10485760, &invalid)
	cfg.FetchRetries = getEnvInt("FETCH_RETRIES", 2, &invalid)

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.DedupeRetention = getEnvDuration("DEDUPE_RETENTION", 21*24*time.Hour, &invalid)

	cfg.TelegramBotToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	cfg.TelegramChatID = os.Getenv("TELEGRAM_CHAT_ID")
	cfg.TelegramAPIEndpoint = os.Getenv("TELEGRAM_API_ENDPOINT")
	cfg.NotifyRatePerSec = getEnvFloat("NOTIFY_RATE_PER_SEC", 1, &invalid)
	cfg.DryRun = getEnvBool("DRY_RUN", false, &invalid)

	cfg.RunInterval = getEnvDuration("RUN_INTERVAL", time.Hour, &invalid)
	cfg.OpsPort = getEnvString("OPS_PORT", "9090")

	if len(invalid) > 0 {
		return nil, fmt.Errorf("environment variables have invalid values: %v", invalid)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validate は値の範囲と組み合わせを検証する。
func (c *Config) validate() error {
	switch {
	case c.MinPrice < 0:
		return fmt.Errorf("MIN_PRICE は0以上である必要があります: %d", c.MinPrice)
	case c.MaxPrice < c.MinPrice:
		return fmt.Errorf("MAX_PRICE (%d) は MIN_PRICE (%d) 以上である必要があります", c.MaxPrice, c.MinPrice)
	case c.SearchRadius < 0:
		return fmt.Errorf("SEARCH_RADIUS は0以上である必要があります: %d", c.SearchRadius)
	case c.FetchTimeout <= 0:
		return fmt.Errorf("FETCH_TIMEOUT は正の値である必要があります: %s", c.FetchTimeout)
	case c.FetchMaxSize <= 0:
		return fmt.Errorf("FETCH_MAX_SIZE は正の値である必要があります: %d", c.FetchMaxSize)
	case c.FetchRetries < 0:
		return fmt.Errorf("FETCH_RETRIES は0以上である必要があります: %d", c.FetchRetries)
	case c.DedupeRetention <= 0:
		return fmt.Errorf("DEDUPE_RETENTION は正の値である必要があります: %s", c.DedupeRetention)
	case c.NotifyRatePerSec < 0:
		return fmt.Errorf("NOTIFY_RATE_PER_SEC は0以上である必要があります: %v", c.NotifyRatePerSec)
	case c.RunInterval <= 0:
		return fmt.Errorf("RUN_INTERVAL は正の値である必要があります: %s", c.RunInterval)
	}
	return nil
}

// RequireDatabase は重複排除ストアの接続先が設定されていることを確認する。
func (c *Config) RequireDatabase() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("required environment variables are not set: [DATABASE_URL]")
	}
	return nil
}

// RequireNotifier は通知先が設定されていることを確認する。DRY_RUN時は不要。
func (c *Config) RequireNotifier() error {
	if c.DryRun {
		return nil
	}
	var missing []string
	if c.TelegramBotToken == "" {
		missing = append(missing, "TELEGRAM_BOT_TOKEN")
	}
	if c.TelegramChatID == "" {
		missing = append(missing, "TELEGRAM_CHAT_ID")
	}
	if len(missing) > 0 {
		return fmt.Errorf("required environment variables are not set: %v", missing)
	}
	return nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int, invalid *[]string) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		*invalid = append(*invalid, key)
		return defaultVal
	}
	return i
}

func getEnvInt64(key string, defaultVal int64, invalid *[]string) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		*invalid = append(*invalid, key)
		return defaultVal
	}
	return i
}

func getEnvFloat(key string, defaultVal float64, invalid *[]string) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		*invalid = append(*invalid, key)
		return defaultVal
	}
	return f
}

func getEnvBool(key string, defaultVal bool, invalid *[]string) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		*invalid = append(*invalid, key)
		return defaultVal
	}
	return b
}

func getEnvDuration(key string, defaultVal time.Duration, invalid *[]string) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*invalid = append(*invalid, key)
		return defaultVal
	}
	return d
}
