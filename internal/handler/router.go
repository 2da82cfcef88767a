package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/portal/internal/metrics"
	"github.com/hitoshi/portal/internal/middleware"
)

// HealthChecker はヘルスチェックに必要なインターフェース。
// *sql.DBがそのまま満たす。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Logger        *slog.Logger
	HealthChecker HealthChecker

	// ミドルウェア依存
	CurrentUserFinder middleware.CurrentUserFinder
	RateLimiter       *middleware.RateLimiter

	// メトリクス
	MetricsCollector *metrics.Collector
	MetricsGatherer  prometheus.Gatherer

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// ビュー
	Renderer ViewRenderer
}

// NewRouter は全ルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → SecurityHeaders → RateLimit
//
// 認証ゲートはルート単位で合成する。管理者ゲートは解決済みプリンシパルを
// 引数に取るため、認証ゲートの内側にしか置けない。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	// Collectorがnilのままインターフェースにならないようにここでnilチェックする
	var httpRecorder middleware.HTTPRecorder
	var loginRecorder LoginRecorder
	if deps.MetricsCollector != nil {
		httpRecorder = deps.MetricsCollector
		loginRecorder = deps.MetricsCollector
	}

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger, httpRecorder))
	r.Use(middleware.NewSecurityHeadersMiddleware())

	authHandler := NewAuthHandler(deps.AuthService, loginRecorder, deps.AuthConfig)
	pageHandler := NewPageHandler(deps.Renderer)
	gate := middleware.NewGate(deps.CurrentUserFinder, deps.AuthConfig.LoginPath)

	// --- OAuthフロー（認証フロー専用レート制限） ---
	r.Group(func(r chi.Router) {
		r.Use(deps.RateLimiter.AuthFlowMiddleware())

		r.Get("/auth/google", authHandler.Begin)
		r.Get("/auth/google/callback", authHandler.Callback)
	})

	// --- ページ（ページ全般レート制限） ---
	r.Group(func(r chi.Router) {
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Get("/", pageHandler.Root)
		r.Get("/login", pageHandler.Login)
		r.Get("/logout", authHandler.Logout)

		r.Get("/dashboard", gate.Authenticated(pageHandler.Dashboard))
		r.Get("/manage-users", gate.Authenticated(middleware.RequireAdmin(pageHandler.ManageUsers)))
	})

	// --- 運用エンドポイント（レート制限の外側） ---
	r.Get("/health", healthHandler(deps.HealthChecker))
	if deps.MetricsGatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.MetricsGatherer))
	}

	return r
}

// healthHandler はDB接続を確認するヘルスチェックハンドラーを返す。
func healthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if checker != nil {
			if err := checker.PingContext(r.Context()); err != nil {
				slog.Error("health check failed", slog.String("error", err.Error()))
				http.Error(w, "unhealthy", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}
}
