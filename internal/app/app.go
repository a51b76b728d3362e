// Package app はサブコマンドごとの依存関係の組み立てと起動を行う。
package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/warbler/internal/auth"
	"github.com/hitoshi/warbler/internal/config"
	"github.com/hitoshi/warbler/internal/database"
	"github.com/hitoshi/warbler/internal/handler"
	"github.com/hitoshi/warbler/internal/logger"
	"github.com/hitoshi/warbler/internal/message"
	"github.com/hitoshi/warbler/internal/metrics"
	"github.com/hitoshi/warbler/internal/middleware"
	"github.com/hitoshi/warbler/internal/repository"
	"github.com/hitoshi/warbler/internal/security"
	"github.com/hitoshi/warbler/internal/seed"
	"github.com/hitoshi/warbler/internal/user"
	"github.com/hitoshi/warbler/internal/view"
	"github.com/hitoshi/warbler/internal/worker/cleanup"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := logger.SetLevel(cfg.LogLevel); err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	return cfg, nil
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

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	switch cmd {
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg, subArgs(args))
	case CommandSeed:
		return runSeed(cfg, subArgs(args))
	default:
		return runServe(cfg)
	}
}

// subArgs はサブコマンド名より後ろの引数を返す。
func subArgs(args []string) []string {
	if len(args) > 1 {
		return args[1:]
	}
	return nil
}

// openDB はDB接続を開き、疎通を確認する。
func openDB(cfg *config.Config) (*sql.DB, error) {
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")
	return db, nil
}

// services はドメインサービス一式。
type services struct {
	sessions repository.SessionRepository
	auth     *auth.Service
	users    *user.Service
	messages *message.Service
}

// newImageChecker はIMAGE_URL_CHECKが有効な場合のみ画像URLの到達確認を返す。
// 無効時はnilインターフェースを返す（型付きnilにしない）。
func newImageChecker(cfg *config.Config) user.ImageChecker {
	if !cfg.ImageURLCheck {
		return nil
	}
	guard := security.NewURLGuard()
	return security.NewImageProber(guard, guard.NewSafeClient(cfg.ImageCheckTimeout))
}

func newServices(cfg *config.Config, db *sql.DB) *services {
	userRepo := repository.NewPostgresUserRepo(db)
	sessionRepo := repository.NewPostgresSessionRepo(db)
	messageRepo := repository.NewPostgresMessageRepo(db)
	likeRepo := repository.NewPostgresLikeRepo(db)

	sanitizer := security.NewTextSanitizer()
	images := newImageChecker(cfg)
	authService := auth.NewService(
		auth.NewBcryptHasher(cfg.BcryptCost), userRepo, sessionRepo, images,
		auth.ServiceConfig{SessionMaxAge: cfg.SessionMaxAge},
	)
	userService := user.NewService(
		userRepo, repository.NewPostgresFollowRepo(db), messageRepo, likeRepo, sessionRepo,
		authService, sanitizer, images,
	)
	messageService := message.NewService(
		messageRepo, likeRepo, repository.NewPostgresDirectMessageRepo(db), userRepo, sanitizer,
		message.ServiceConfig{TimelineLimit: cfg.TimelineLimit},
	)

	return &services{
		sessions: sessionRepo,
		auth:     authService,
		users:    userService,
		messages: messageService,
	}
}

// newRegistry はGo/プロセスのコレクターを登録済みのレジストリを返す。
func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// newWorkerMetrics はワーカー用のCollectorと /metrics を返すハンドラーを組み立てる。
func newWorkerMetrics() (*metrics.Collector, http.Handler) {
	reg := newRegistry()
	collector := metrics.NewCollector(reg)

	r := chi.NewRouter()
	r.Handle("/metrics", metrics.Handler(reg))
	return collector, r
}

// newRouterDeps はHTTPルーターの依存関係を組み立てる。
func newRouterDeps(cfg *config.Config, db *sql.DB, svc *services, renderer *view.Renderer, rl *middleware.RateLimiter) *handler.RouterDeps {
	reg := newRegistry()

	cookie := middleware.CookieConfig{Secure: cfg.CookieSecure, Domain: cfg.CookieDomain}

	return &handler.RouterDeps{
		Logger:        slog.Default(),
		SessionFinder: svc.sessions,
		RateLimiter:   rl,
		Flasher:       middleware.NewFlasher(cfg.SecretKey, cookie),
		CSRF:          middleware.CSRFConfig{Enabled: cfg.CSRFEnabled, Cookie: cookie},

		Renderer: renderer,
		BaseURL:  cfg.BaseURL,
		Session:  handler.SessionConfig{Cookie: cookie, MaxAge: cfg.SessionMaxAge},

		AuthService:    svc.auth,
		UserService:    svc.users,
		MessageService: svc.messages,

		Metrics:       metrics.NewCollector(reg),
		Gatherer:      reg,
		HealthChecker: db,
	}
}

// runServe はWebサーバーモードで起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	renderer, err := view.NewRenderer()
	if err != nil {
		return fmt.Errorf("failed to parse templates: %w", err)
	}

	rl := middleware.NewRateLimiter(middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitLogin))
	defer rl.Stop()

	router := handler.NewRouter(newRouterDeps(cfg, db, newServices(cfg, db), renderer, rl))

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("web server starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server listen error: %w", err)
	case <-stop:
	}
	slog.Info("shutting down web server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("web server stopped gracefully")
	return nil
}

// runWorker は期限切れセッションの削除ワーカーとして起動する。
// 削除件数は WORKER_METRICS_PORT の /metrics で公開する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	collector, metricsHandler := newWorkerMetrics()
	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           metricsHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		slog.Info("worker metrics server starting", slog.String("addr", metricsServer.Addr))
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("worker metrics server failed", slog.String("error", err.Error()))
		}
	}()

	job := cleanup.NewJob(repository.NewPostgresSessionRepo(db), collector, slog.Default())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	job.Start(ctx, cfg.SessionCleanupInterval)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		slog.Warn("worker metrics server shutdown failed", slog.String("error", err.Error()))
	}

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを適用または巻き戻す。
func runMigrate(cfg *config.Config, args []string) error {
	dir, steps, err := ParseMigrateArgs(args)
	if err != nil {
		return err
	}

	slog.Info("running database migrations",
		slog.String("direction", string(dir)),
		slog.Int("steps", steps),
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if dir == MigrateDown {
		if err := database.RollbackMigrations(cfg.DatabaseURL, steps); err != nil {
			return fmt.Errorf("rollback failed: %w", err)
		}
	} else if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	version, dirty, err := database.Version(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	slog.Info("database migrations completed successfully",
		slog.Uint64("version", uint64(version)),
		slog.Bool("dirty", dirty),
	)
	return nil
}

// runSeed は引数またはSEED_FILEで指定された初期データを投入する。
func runSeed(cfg *config.Config, args []string) error {
	path, err := ParseSeedArgs(args, cfg.SeedFile)
	if err != nil {
		return err
	}

	slog.Info("loading seed file", slog.String("path", path))
	file, err := seed.Load(path)
	if err != nil {
		return err
	}

	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	svc := newServices(cfg, db)
	if _, err := seed.NewSeeder(svc.auth, svc.users, svc.messages, slog.Default()).Run(context.Background(), file); err != nil {
		return fmt.Errorf("seed failed: %w", err)
	}
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
