package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/time/rate"

	"github.com/hitoshi/sublink/internal/config"
	"github.com/hitoshi/sublink/internal/converter"
	"github.com/hitoshi/sublink/internal/database"
	"github.com/hitoshi/sublink/internal/handler"
	"github.com/hitoshi/sublink/internal/lifecycle"
	"github.com/hitoshi/sublink/internal/logger"
	"github.com/hitoshi/sublink/internal/metrics"
	"github.com/hitoshi/sublink/internal/middleware"
	"github.com/hitoshi/sublink/internal/probe"
	"github.com/hitoshi/sublink/internal/report"
	"github.com/hitoshi/sublink/internal/repository"
	"github.com/hitoshi/sublink/internal/security"
	"github.com/hitoshi/sublink/internal/sources"
	"github.com/hitoshi/sublink/internal/worker/cleanup"
	"github.com/hitoshi/sublink/internal/worker/scheduler"
	"github.com/hitoshi/sublink/internal/worker/validate"
)

// dbPingTimeout は起動時のDB接続確認の制限時間。
const dbPingTimeout = 10 * time.Second

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// ログファイルを開けない場合はwのみに出力して処理を続ける。
func Init(w io.Writer) (*config.Config, *slog.Logger, error) {
	// 1. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 2. ログの初期化（標準出力とログファイルの両方）
	log, err := logger.Init(w, cfg.LogFile)
	if err != nil {
		log.Warn("ログファイルを開けないため標準出力のみに出力します",
			slog.String("path", cfg.LogFile),
			slog.String("error", err.Error()),
		)
	}

	return cfg, log, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, log, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}
	defer logger.Close()

	log.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("store_backend", cfg.StoreBackend),
	)

	// SIGINT/SIGTERMでキャンセルされるコンテキスト
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case CommandValidate:
		return runValidate(ctx, cfg, log)
	case CommandTrack:
		return runTrack(ctx, cfg, log)
	case CommandPrune:
		return runPrune(ctx, cfg, log)
	case CommandServe:
		return runServe(ctx, cfg, log)
	case CommandMigrate:
		return runMigrate(cfg, log)
	case CommandConvert:
		return runConvert(ctx, w, cfg, log, args[1:])
	case CommandStatus:
		return runStatus(ctx, w, cfg, log)
	default:
		return runWorker(ctx, cfg, log)
	}
}

// openStore は設定されたバックエンドの購読ストアを開く。
// postgresの場合は接続確認とマイグレーションを行い、*sql.DBも返す（呼び出し側でClose）。
func openStore(ctx context.Context, cfg *config.Config, log *slog.Logger) (repository.LockingStore, *sql.DB, error) {
	if cfg.StoreBackend != config.StoreBackendPostgres {
		log.Info("file store selected", slog.String("path", cfg.StoreFile))
		return repository.NewFileSubscriptionStore(cfg.StoreFile, cfg.LockTimeout, log), nil, nil
	}

	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := database.Ping(ctx, db, dbPingTimeout); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("migration failed: %w", err)
	}

	log.Info("database connection established",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)
	return repository.NewPostgresSubscriptionStore(db, cfg.LockTimeout, log), db, nil
}

// newValidator はプローブ用クライアント、Prober、バッチ検証器を組み立てる。
func newValidator(cfg *config.Config, log *slog.Logger, collector metrics.MetricsCollector) (*validate.Validator, error) {
	client, err := security.NewProbeClient(security.ClientOptions{
		Timeout:      cfg.ProbeTimeout,
		GuardSSRF:    cfg.ProbeSSRFGuard,
		AllowedPorts: cfg.ProbeAllowedPorts,
		ProxyURL:     cfg.ProbeProxyURL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create probe client: %w", err)
	}

	opts := probe.Options{
		Timeout:     cfg.ProbeTimeout,
		MinBodySize: cfg.ProbeMinBodyBytes,
		MaxBodySize: cfg.ProbeMaxBodyBytes,
		Metrics:     collector,
	}
	// プロキシ経由の場合は名前解決がプロキシ側で行われるため事前検証しない
	if cfg.ProbeSSRFGuard && cfg.ProbeProxyURL == "" {
		opts.Validator = security.NewSSRFGuard(cfg.ProbeAllowedPorts...)
	}
	if cfg.ProbeRatePerSec > 0 {
		burst := int(math.Ceil(cfg.ProbeRatePerSec))
		opts.Limiter = rate.NewLimiter(rate.Limit(cfg.ProbeRatePerSec), burst)
	}

	prober := probe.NewProber(client, log, opts)
	return validate.NewValidator(prober, log, collector, cfg.ValidateMaxConcurrent), nil
}

// newPruneJob は設定されたモードのPruneJobを生成する。
func newPruneJob(cfg *config.Config, store repository.SubscriptionStore, log *slog.Logger, collector metrics.MetricsCollector) (*cleanup.PruneJob, error) {
	mode, err := cleanup.ParseMode(cfg.PruneMode)
	if err != nil {
		return nil, err
	}
	job := cleanup.NewPruneJob(store, log, collector)
	job.Mode = mode
	return job, nil
}

// newRegistry はGo/プロセスのランタイムメトリクスを含むレジストリと、sublinkのCollectorを生成する。
func newRegistry() (*prometheus.Registry, *metrics.Collector) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg, metrics.NewCollector(reg)
}

// validateLinksFile はソースリンクファイルを検証して書き戻す。
// ファイルが存在しない場合は何もしない。
func validateLinksFile(ctx context.Context, v *validate.Validator, path string, log *slog.Logger) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		log.Info("ソースリンクファイルが存在しないため検証をスキップします",
			slog.String("path", path),
		)
		return nil
	}

	report, err := v.ValidateFile(ctx, path)
	if err != nil {
		return fmt.Errorf("link validation failed: %w", err)
	}

	log.Info("ソースリンクファイルの検証が完了しました",
		slog.String("run_id", report.RunID),
		slog.Int("total", report.Total),
		slog.Int("alive", report.Alive),
		slog.Int("dropped", report.Dropped),
	)
	return nil
}

// runValidate はソースリンクファイルのバッチ検証を1回実行する。
func runValidate(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	v, err := newValidator(cfg, log, nil)
	if err != nil {
		return err
	}
	return validateLinksFile(ctx, v, cfg.LinksFile, log)
}

// runTrack は追跡サイクルを1回実行する。
func runTrack(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	store, db, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	v, err := newValidator(cfg, log, nil)
	if err != nil {
		return err
	}

	tracker := lifecycle.NewTracker(store, v, sources.NewFileLoader(cfg.SourcesFile), log, nil)
	if _, err := tracker.RunOnce(ctx); err != nil {
		return fmt.Errorf("tracking cycle failed: %w", err)
	}
	return nil
}

// runPrune は保持期限を超過した購読の削除を1回実行する。
func runPrune(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	store, db, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	job, err := newPruneJob(cfg, store, log, nil)
	if err != nil {
		return err
	}
	if _, err := job.Run(ctx); err != nil {
		return fmt.Errorf("prune failed: %w", err)
	}
	return nil
}

// runWorker はワーカーモードで起動する。
// 検証、追跡、削除の3ジョブを起動直後とWorkerIntervalごとに逐次実行する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	// 1. ストアの初期化
	store, db, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	// 2. メトリクスの初期化
	reg, collector := newRegistry()

	// 3. 検証器、追跡、削除ジョブの初期化
	v, err := newValidator(cfg, log, collector)
	if err != nil {
		return err
	}
	tracker := lifecycle.NewTracker(store, v, sources.NewFileLoader(cfg.SourcesFile), log, collector)
	pruneJob, err := newPruneJob(cfg, store, log, collector)
	if err != nil {
		return err
	}

	// 4. メトリクスサーバーの起動
	var metricsServer *http.Server
	if cfg.MetricsEnabled() {
		metricsServer = &http.Server{
			Addr:              ":" + cfg.MetricsPort,
			Handler:           metrics.SetupMetricsRoute(reg),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			log.Info("metrics server starting", slog.String("addr", metricsServer.Addr))
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("metrics server listen error", slog.String("error", err.Error()))
			}
		}()
	}

	// 5. スケジューラの起動（ブロッキング）
	sched := scheduler.NewScheduler(log,
		scheduler.Job{Name: "validate", Run: func(ctx context.Context) error {
			return validateLinksFile(ctx, v, cfg.LinksFile, log)
		}},
		scheduler.Job{Name: "track", Run: func(ctx context.Context) error {
			_, err := tracker.RunOnce(ctx)
			return err
		}},
		scheduler.Job{Name: "prune", Run: func(ctx context.Context) error {
			_, err := pruneJob.Run(ctx)
			return err
		}},
	)

	log.Info("worker starting",
		slog.Duration("interval", cfg.WorkerInterval),
		slog.Int("max_concurrent", v.MaxConcurrency()),
		slog.String("prune_mode", string(pruneJob.Mode)),
	)

	sched.Start(ctx, cfg.WorkerInterval)

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			log.Error("metrics server shutdown failed", slog.String("error", err.Error()))
		}
	}

	log.Info("worker stopped gracefully")
	return nil
}

// runServe は参照用APIサーバーモードで起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	// 1. ストアの初期化
	store, db, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}

	deps := &handler.RouterDeps{
		Store:  store,
		Logger: log,
	}
	if db != nil {
		defer db.Close()
		deps.HealthChecker = db
	}

	// 2. メトリクスとレート制限
	reg, _ := newRegistry()
	deps.Gatherer = reg

	rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfigPerMinute(cfg.RateLimitAPI), log)
	defer rateLimiter.Stop()
	deps.RateLimiter = rateLimiter

	// 3. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      handler.NewRouter(deps),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("API server starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server listen error: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info("shutting down API server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info("API server stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config, log *slog.Logger) error {
	if cfg.StoreBackend != config.StoreBackendPostgres {
		return fmt.Errorf("migrate requires STORE_BACKEND=postgres (current: %s)", cfg.StoreBackend)
	}

	log.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	version, dirty, err := database.SchemaVersion(cfg.DatabaseURL)
	if err != nil {
		return err
	}

	log.Info("database migrations completed successfully",
		slog.Uint64("version", uint64(version)),
		slog.Bool("dirty", dirty),
	)
	return nil
}

// runConvert は実行環境に合った変換ツールをConverterDirから選んで実行する。
// --set で指定されたペアは実行前に設定ファイルへ追記する。
// ツールの出力はwに書き出す。
func runConvert(ctx context.Context, w io.Writer, cfg *config.Config, log *slog.Logger, args []string) error {
	pairs, toolArgs, err := ParseConvertArgs(args)
	if err != nil {
		return err
	}

	bins, err := converter.ChooseBinaryForPlatform()
	if err != nil {
		return err
	}

	if len(pairs) > 0 {
		configPath := filepath.Join(cfg.ConverterDir, cfg.ConverterConfig)
		if err := converter.AppendConfig(ctx, configPath, pairs, cfg.LockTimeout); err != nil {
			return err
		}
		log.Info("変換ツールの設定を追記しました",
			slog.String("path", configPath),
			slog.Int("pairs", len(pairs)),
		)
	}

	binaryPath, err := filepath.Abs(filepath.Join(cfg.ConverterDir, bins.Converter))
	if err != nil {
		return fmt.Errorf("failed to resolve converter path: %w", err)
	}

	runner := converter.NewRunner(cfg.ConverterDir, cfg.ConverterTimeout, log)
	ok, output := runner.Run(ctx, binaryPath, toolArgs)
	fmt.Fprint(w, output)
	if !ok {
		return fmt.Errorf("converter %s failed", bins.Converter)
	}
	return nil
}

// runStatus は購読ストアの現在の状態を表形式でwに書き出す。
// ストアは読み取るだけで保存しない。
func runStatus(ctx context.Context, w io.Writer, cfg *config.Config, log *slog.Logger) error {
	store, db, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	snapshot := store.Load(ctx)
	report.WriteSubscriptions(w, snapshot, time.Now().UTC(), report.Options{Color: !color.NoColor})
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
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
