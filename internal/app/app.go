package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/folio/internal/apiclient"
	"github.com/hitoshi/folio/internal/config"
	"github.com/hitoshi/folio/internal/database"
	"github.com/hitoshi/folio/internal/handler"
	"github.com/hitoshi/folio/internal/logger"
	"github.com/hitoshi/folio/internal/metrics"
	"github.com/hitoshi/folio/internal/middleware"
	"github.com/hitoshi/folio/internal/model"
	"github.com/hitoshi/folio/internal/security"
	"github.com/hitoshi/folio/internal/session"
	"github.com/hitoshi/folio/internal/storage"
	"github.com/hitoshi/folio/internal/worker/expiry"
	"github.com/hitoshi/folio/internal/worker/linkcheck"
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
		slog.String("storage_driver", cfg.StorageDriver),
		slog.String("namespace", cfg.StorageNamespace),
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	case CommandStatus:
		return runStatus(context.Background(), cfg, os.Stdout)
	case CommandLogout:
		return runLogout(context.Background(), cfg)
	default:
		return runServe(cfg)
	}
}

// storageDSN はドライバーに応じた接続先を返す。
func storageDSN(cfg *config.Config) string {
	if cfg.StorageDriver == config.StoragePostgres {
		return cfg.DatabaseURL
	}
	return cfg.StoragePath
}

// openStorage はセッションの永続ストレージを開く。
// SQLドライバーの場合はマイグレーションを適用してから接続し、*sql.DBも返す（ヘルスチェック用）。
// memoryの場合、dbはnil。
func openStorage(ctx context.Context, cfg *config.Config) (storage.Storage, *sql.DB, error) {
	if cfg.StorageDriver == config.StorageMemory {
		slog.Warn("using in-memory session storage; sessions will not survive a restart")
		return storage.NewMemoryStorage(), nil, nil
	}

	dsn := storageDSN(cfg)
	if err := database.RunMigrations(cfg.StorageDriver, dsn); err != nil {
		return nil, nil, fmt.Errorf("failed to migrate session storage: %w", err)
	}

	db, err := database.Open(cfg.StorageDriver, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	st, err := storage.NewSQLStorage(db, cfg.StorageDriver, cfg.StorageNamespace)
	if err != nil {
		db.Close()
		return nil, nil, err
	}

	slog.Info("session storage ready",
		slog.String("driver", cfg.StorageDriver),
		slog.String("namespace", cfg.StorageNamespace),
	)
	return st, db, nil
}

// newSessionStore は永続化済みセッションを読み込んだStoreを生成する。
// 読み込みに失敗しても未認証として起動を続ける。
func newSessionStore(ctx context.Context, st storage.Storage, rec session.Recorder) *session.Store {
	store := session.NewStore(st,
		session.WithLogger(slog.Default()),
		session.WithMetrics(rec),
	)
	if err := store.Initialize(ctx); err != nil {
		slog.Warn("failed to clean up persisted session", slog.String("error", err.Error()))
	}
	return store
}

// userFetcher は現在のトークンに対応するユーザーを取得する。
type userFetcher interface {
	Me(ctx context.Context) (*model.User, error)
}

// refreshSessionUser は復元したセッションのユーザーをバックエンドの最新状態に合わせる。
// トークンが拒否された場合はSignerがセッションを破棄する。
// 通信に失敗した場合は永続化済みのユーザーのまま起動する。
func refreshSessionUser(ctx context.Context, fetcher userFetcher, store *session.Store, timeout time.Duration) {
	if !store.IsAuthenticated() {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	user, err := fetcher.Me(ctx)
	if err != nil {
		if errors.Is(err, apiclient.ErrUnauthorized) {
			slog.Info("persisted session was rejected by the backend")
			return
		}
		slog.Warn("failed to refresh session user; keeping persisted user",
			slog.String("error", err.Error()),
		)
		return
	}

	if err := store.SetUser(ctx, user); err != nil {
		slog.Warn("failed to update session user", slog.String("error", err.Error()))
	}
}

// runServe はWebクライアントを起動する。
// セッションストレージを開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 1. セッションストレージ
	st, db, err := openStorage(ctx, cfg)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	// 2. メトリクス
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(registry)

	// 3. セッションストア
	store := session.NewStore(st,
		session.WithLogger(slog.Default()),
		session.WithMetrics(collector),
	)
	unsubscribe := store.Subscribe(func(snap session.Snapshot) {
		collector.SetAuthenticated(snap.IsAuthenticated())
	})
	defer unsubscribe()
	if err := store.Initialize(ctx); err != nil {
		slog.Warn("failed to clean up persisted session", slog.String("error", err.Error()))
	}

	// 4. バックエンドAPIクライアント
	api := apiclient.New(apiclient.Config{
		BaseURL:       cfg.APIBaseURL,
		Timeout:       cfg.APITimeout,
		RatePerMinute: cfg.APIRateLimit,
	}, store,
		apiclient.WithRecorder(collector),
		apiclient.WithLogger(slog.Default()),
	)

	refreshSessionUser(ctx, api, store, cfg.APITimeout)

	// 期限切れトークンをバックグラウンドで破棄する
	go expiry.NewJob(store, slog.Default()).Start(ctx)

	// 5. セキュリティ・リンクチェック
	linkGuard := security.NewLinkGuard()
	checker := linkcheck.NewChecker(linkGuard, collector, slog.Default(),
		cfg.LinkCheckTimeout, cfg.LinkCheckConcurrency)

	rateLimiter := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig(cfg.RateLimitLogin))
	defer rateLimiter.Stop()

	// 6. ルーターの構築
	deps := &handler.RouterDeps{
		Store:          store,
		AuthService:    api,
		ContentService: api.NewContent(),
		LinkChecker:    checker,
		LinkGuard:      linkGuard,
		Sanitizer:      security.NewDescriptionSanitizer(),
		RateLimiter:    rateLimiter,
		CSRF:           middleware.CSRFConfig{CookieSecure: cfg.CookieSecure},
		GuardMetrics:   collector,
		MetricsHandler: metrics.Handler(registry),
		Logger:         slog.Default(),
	}
	// nilの*sql.DBをインターフェースに入れないこと
	if db != nil {
		deps.HealthChecker = db
	}

	router, err := handler.NewRouter(deps)
	if err != nil {
		return fmt.Errorf("failed to build router: %w", err)
	}

	// 7. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.APITimeout + cfg.LinkCheckTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("web client starting",
			slog.String("addr", server.Addr),
			slog.String("base_url", cfg.BaseURL),
			slog.String("api_base_url", cfg.APIBaseURL),
			slog.Bool("authenticated", store.IsAuthenticated()),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-stop:
	case err := <-serverErr:
		return fmt.Errorf("server listen error: %w", err)
	}
	slog.Info("shutting down web client...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("web client stopped gracefully")
	return nil
}

// runMigrate はセッションストレージのマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	if cfg.StorageDriver == config.StorageMemory {
		slog.Info("memory storage has no schema; nothing to migrate")
		return nil
	}

	slog.Info("running database migrations",
		slog.String("driver", cfg.StorageDriver),
		slog.String("dsn", maskDatabaseURL(storageDSN(cfg))),
	)

	if err := database.RunMigrations(cfg.StorageDriver, storageDSN(cfg)); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// sessionStatus はstatusコマンドの出力。
type sessionStatus struct {
	Namespace     string `json:"namespace"`
	Driver        string `json:"driver"`
	Authenticated bool   `json:"authenticated"`
	UserID        string `json:"user_id,omitempty"`
	Email         string `json:"email,omitempty"`
	Role          string `json:"role,omitempty"`
}

// runStatus は永続化済みセッションを読み込み、状態をJSONでoutに書き出す。
// トークン自体は出力しない。
func runStatus(ctx context.Context, cfg *config.Config, out io.Writer) error {
	st, db, err := openStorage(ctx, cfg)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	snap := newSessionStore(ctx, st, metrics.Nop{}).Snapshot()

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(sessionStatus{
		Namespace:     cfg.StorageNamespace,
		Driver:        cfg.StorageDriver,
		Authenticated: snap.IsAuthenticated(),
		UserID:        snap.UserID(),
		Email:         snap.Email(),
		Role:          string(snap.Role()),
	})
}

// runLogout は永続化済みセッションを削除する。
// 起動中のserveプロセスのメモリ上のセッションには影響しない。
func runLogout(ctx context.Context, cfg *config.Config) error {
	st, db, err := openStorage(ctx, cfg)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	store := newSessionStore(ctx, st, metrics.Nop{})
	if err := store.Logout(ctx); err != nil {
		return fmt.Errorf("failed to clear persisted session: %w", err)
	}

	slog.Info("persisted session cleared", slog.String("namespace", cfg.StorageNamespace))
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	endpoint := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(endpoint)
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
// URLとして解釈できない値（sqliteのファイルパス）はそのまま返す。
func maskDatabaseURL(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.Scheme == "" {
		return dsn
	}
	return u.Redacted()
}
