package handler

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/folio/internal/guard"
	"github.com/hitoshi/folio/internal/middleware"
	"github.com/hitoshi/folio/internal/security"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// セッション
	Store SessionStore

	// バックエンド
	AuthService    AuthServiceInterface
	ContentService ContentServiceInterface

	// セキュリティ
	LinkChecker LinkCheckerInterface
	LinkGuard   security.LinkGuard
	Sanitizer   security.DescriptionSanitizer
	RateLimiter *middleware.RateLimiter
	CSRF        middleware.CSRFConfig

	// 運用
	GuardMetrics   guard.DecisionRecorder
	MetricsHandler http.Handler
	HealthChecker  HealthChecker
	Logger         *slog.Logger
}

// NewRouter は全ページのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → RequestID → Session → Logging → SecurityHeaders → RateLimit(General) → CSRF
//
// /health と /metrics はCSRFの外に配置する。
// 権限が必要なルートはguard.Requireで保護し、要件ごとにグループを分ける。
func NewRouter(deps *RouterDeps) (http.Handler, error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	renderer, err := NewRenderer(deps.Sanitizer, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to load templates: %w", err)
	}

	pages := NewPageHandler(deps.ContentService, renderer, logger)
	authHandler := NewAuthHandler(deps.Store, deps.AuthService, renderer, logger)
	account := NewAccountHandler(deps.Store, deps.AuthService, renderer, logger)
	manage := NewManageHandler(ManageHandlerDeps{
		Store:     deps.Store,
		Content:   deps.ContentService,
		Auth:      deps.AuthService,
		Links:     deps.LinkChecker,
		LinkGuard: deps.LinkGuard,
		Renderer:  renderer,
		Logger:    logger,
	})

	guardCfg := guard.Config{
		LoginPath: "/login",
		Forbidden: renderer.Forbidden(),
		Metrics:   deps.GuardMetrics,
		Logger:    logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(middleware.NewRequestIDMiddleware())
	r.Use(middleware.NewSessionMiddleware(deps.Store))
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())

	// --- 運用エンドポイント ---
	r.Method(http.MethodGet, "/health", NewHealthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	r.Group(func(r chi.Router) {
		r.Use(deps.RateLimiter.GeneralMiddleware())
		r.Use(middleware.NewCSRFMiddleware(deps.CSRF))

		r.Method(http.MethodGet, "/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRF))

		// --- 公開ページ ---
		r.Get("/", pages.Home)
		r.Get("/projects", pages.Projects)
		r.Get("/skills", pages.Skills)
		r.Get("/experience", pages.Experience)
		r.Get("/learning", pages.Learning)
		r.Get("/profile", pages.Profile)

		// --- 未認証でも利用できる認証ページ ---
		r.Get("/login", authHandler.LoginPage)
		r.Get("/register", authHandler.RegisterPage)
		r.Get("/forgot-password", authHandler.ForgotPasswordPage)
		r.Get("/reset-password/{token}", authHandler.ResetPasswordPage)
		r.Post("/logout", authHandler.Logout)

		// 認証情報を送るPOSTは専用のレート制限を追加
		r.Group(func(r chi.Router) {
			r.Use(deps.RateLimiter.CredentialMiddleware())
			r.Post("/login", authHandler.Login)
			r.Post("/register", authHandler.Register)
			r.Post("/forgot-password", authHandler.ForgotPassword)
			r.Post("/reset-password/{token}", authHandler.ResetPassword)
		})

		// --- ログインが必要なルート ---
		r.Group(func(r chi.Router) {
			r.Use(guard.Require(guard.Authenticated, guardCfg))
			r.Get("/account", account.Account)
			r.With(deps.RateLimiter.CredentialMiddleware()).Post("/account/password", account.UpdatePassword)
		})

		// --- コンテンツ管理（owner/admin） ---
		r.Group(func(r chi.Router) {
			r.Use(guard.Require(guard.ContentManager, guardCfg))
			r.Get("/dashboard", manage.Dashboard)
			r.Get("/manage/links", manage.Links)
			r.Post("/manage/profile", manage.SaveProfile)
			r.Post("/manage/{kind}", manage.SaveContent)
			r.Post("/manage/{kind}/{id}/delete", manage.DeleteContent)
		})

		// --- ユーザー管理（owner） ---
		r.Group(func(r chi.Router) {
			r.Use(guard.Require(guard.Owner, guardCfg))
			r.Get("/manage/users", manage.Users)
			r.Post("/manage/users/{id}/role", manage.UpdateRole)
		})
	})

	return r, nil
}
