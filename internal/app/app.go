// Package app はコマンドの解析と依存関係の組み立てを行うエントリーポイントを提供する。
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/sniper/internal/config"
	"github.com/hitoshi/sniper/internal/database"
	"github.com/hitoshi/sniper/internal/handler"
	"github.com/hitoshi/sniper/internal/logger"
	"github.com/hitoshi/sniper/internal/metrics"
	"github.com/hitoshi/sniper/internal/model"
	"github.com/hitoshi/sniper/internal/notify"
	"github.com/hitoshi/sniper/internal/report"
	"github.com/hitoshi/sniper/internal/repository"
	"github.com/hitoshi/sniper/internal/worker/cleanup"
	"github.com/hitoshi/sniper/internal/worker/poll"
)

// cleanupInterval はworkerモードでのクリーンアップジョブの実行間隔。
const cleanupInterval = 24 * time.Hour

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、LOG_LEVELに従ってJSON構造化ログをセットアップする。
// logwにはログの出力先を渡す。
func Init(logw io.Writer) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		// 設定が読めない場合もエラーをJSONで記録できるようにする
		logger.SetupDefault(logw, os.Getenv("LOG_LEVEL"))
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	l := logger.SetupDefault(logw, cfg.LogLevel)
	return cfg, l, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。stdoutにはpreviewの表を、logwにはログを出力する。
func Run(stdout, logw io.Writer, args []string) error {
	cmd, ok := ParseCommand(args)
	if !ok {
		return fmt.Errorf("unknown command: %q (run, worker, migrate, cleanup, preview, healthcheck)", args[0])
	}

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("OPS_PORT")
		if port == "" {
			port = "9090"
		}
		return runHealthcheck(port)
	}

	cfg, l, err := Init(logw)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	l.Debug("starting application",
		slog.String("command", string(cmd)),
		slog.Bool("dry_run", cfg.DryRun),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case CommandWorker:
		return runWorker(ctx, cfg, l)
	case CommandMigrate:
		return runMigrate(cfg, l)
	case CommandCleanup:
		return runCleanup(ctx, cfg, l)
	case CommandPreview:
		return runPreview(ctx, stdout, cfg, l)
	default:
		return runOnce(ctx, cfg, l)
	}
}

// openDatabase はDB接続を開き、疎通を確認する。
func openDatabase(ctx context.Context, cfg *config.Config, l *slog.Logger) (*sql.DB, error) {
	if err := cfg.RequireDatabase(); err != nil {
		return nil, err
	}

	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	l.Debug("database connection established",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)
	return db, nil
}

// newPoller は通知まで行うパイプラインを組み立てる。
func newPoller(cfg *config.Config, db *sql.DB, collector metrics.MetricsCollector, l *slog.Logger) (*poll.Poller, error) {
	notifier, err := newNotifier(cfg, l)
	if err != nil {
		return nil, err
	}

	dedupeRepo := repository.NewPostgresDedupeRepo(db)
	dispatcher := notify.NewDispatcher(dedupeRepo, notifier, cfg.DedupeRetention, l)

	include, exclude := searchTerms(cfg)
	return poll.NewPoller(
		newExtractor(cfg, l),
		newNormalizer(cfg),
		dispatcher,
		poll.Options{
			Params:       searchParams(cfg),
			IncludeTerms: include,
			ExcludeTerms: exclude,
			FetchRetries: cfg.FetchRetries,
		},
		collector,
		l,
	), nil
}

// runOnce はパイプラインを1回実行する。
// 取得失敗、ページ形式エラー、一部の出品の配信失敗はエラーとして返し、終了コードを非0にする。
func runOnce(ctx context.Context, cfg *config.Config, l *slog.Logger) error {
	if err := cfg.RequireNotifier(); err != nil {
		return err
	}

	db, err := openDatabase(ctx, cfg, l)
	if err != nil {
		return err
	}
	defer db.Close()

	poller, err := newPoller(cfg, db, nil, l)
	if err != nil {
		return err
	}

	if _, err := poller.RunOnce(ctx); err != nil {
		if model.IsRunFatal(err) {
			l.Log(ctx, logger.LevelCritical, "掲載サイトから出品を取得できませんでした",
				slog.String("stage", model.StageOf(err)),
				slog.String("error", err.Error()),
			)
		}
		return err
	}
	return nil
}

// runWorker はworkerモードで起動する。
// パイプラインをRUN_INTERVAL間隔で定期実行し、/health と /metrics を提供する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runWorker(ctx context.Context, cfg *config.Config, l *slog.Logger) error {
	if err := cfg.RequireNotifier(); err != nil {
		return err
	}

	db, err := openDatabase(ctx, cfg, l)
	if err != nil {
		return err
	}
	defer db.Close()

	// 1. メトリクス
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(reg)

	// 2. パイプライン
	poller, err := newPoller(cfg, db, collector, l)
	if err != nil {
		return err
	}
	scheduler := poll.NewScheduler(poller, l)
	cleanupJob := cleanup.NewCleanupJob(repository.NewPostgresDedupeRepo(db), l)

	// 3. 運用HTTPサーバー
	server := &http.Server{
		Addr: ":" + cfg.OpsPort,
		Handler: handler.NewOpsRouter(handler.OpsDeps{
			HealthChecker: db,
			Gatherer:      reg,
			Logger:        l,
		}),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		l.Info("ops server starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Error("ops server listen error", slog.String("error", err.Error()))
		}
	}()

	// クリーンアップジョブを日次でバックグラウンド実行
	go func() {
		ticker := time.NewTicker(cleanupInterval)
		defer ticker.Stop()
		for {
			if err := cleanupJob.Run(ctx); err != nil && ctx.Err() == nil {
				l.Error("cleanup job failed", slog.String("error", err.Error()))
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()

	// スケジューラをメインgoroutineで実行（ブロッキング）
	scheduler.Start(ctx, cfg.RunInterval)

	l.Info("shutting down ops server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("ops server shutdown failed: %w", err)
	}

	l.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config, l *slog.Logger) error {
	if err := cfg.RequireDatabase(); err != nil {
		return err
	}

	l.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	l.Info("database migrations completed successfully")
	return nil
}

// runCleanup は失効した重複排除レコードを1回削除する。
func runCleanup(ctx context.Context, cfg *config.Config, l *slog.Logger) error {
	db, err := openDatabase(ctx, cfg, l)
	if err != nil {
		return err
	}
	defer db.Close()

	return cleanup.NewCleanupJob(repository.NewPostgresDedupeRepo(db), l).Run(ctx)
}

// runPreview は通知もレコードの書き込みも行わずに、フィルタ通過後の出品を表で出力する。
// DATABASE_URLが設定されている場合は、各出品が通知済みかどうかも表示する。
func runPreview(ctx context.Context, stdout io.Writer, cfg *config.Config, l *slog.Logger) error {
	include, exclude := searchTerms(cfg)
	poller := poll.NewPoller(
		newExtractor(cfg, l),
		newNormalizer(cfg),
		nil,
		poll.Options{
			Params:       searchParams(cfg),
			IncludeTerms: include,
			ExcludeTerms: exclude,
			FetchRetries: cfg.FetchRetries,
		},
		nil,
		l,
	)

	collection, err := poller.Collect(ctx)
	if err != nil {
		return err
	}

	var lookup repository.DedupeRepository
	if cfg.DatabaseURL != "" {
		db, err := openDatabase(ctx, cfg, l)
		if err != nil {
			return err
		}
		defer db.Close()
		lookup = repository.NewPostgresDedupeRepo(db)
	}

	rows := make([]report.Row, 0, len(collection.Listings))
	now := time.Now()
	for _, listing := range collection.Listings {
		row := report.Row{Listing: listing}
		if lookup != nil {
			rec, err := lookup.FindActive(ctx, listing.ID, now)
			if err != nil {
				return &model.StoreError{ListingID: listing.ID, Op: "lookup", Err: err}
			}
			row.Status = report.StatusNew
			if rec != nil {
				row.Status = report.StatusSeen
			}
		}
		rows = append(rows, row)
	}

	return report.WriteTable(stdout, rows, report.DefaultTitleWidth)
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// workerの /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
