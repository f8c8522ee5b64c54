package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/medverify/internal/metrics"
	"github.com/hitoshi/medverify/internal/middleware"
	"github.com/hitoshi/medverify/internal/model"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	SessionFinder     middleware.SessionFinder
	RoleFinder        middleware.RoleFinder
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger
	MetricsCollector  metrics.MetricsCollector

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// 役割バインディング
	RoleBinder      RoleBinderInterface
	SessionResolver SessionResolverInterface

	// 処方箋
	PrescriptionService PrescriptionServiceInterface

	// アバター
	AvatarFetcher AvatarFetcherInterface

	// メトリクス
	MetricsGatherer prometheus.Gatherer
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → SecurityHeaders → CORS → CSRF →
//	SessionMiddleware → RateLimit(General) → RequireRole（役割保護ルートのみ）
//
// 認証ルート（/auth/*）、ランディング、/health、/metricsは
// セッションミドルウェアの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	if deps.Logger != nil {
		r.Use(middleware.NewLoggingMiddleware(deps.Logger, deps.MetricsCollector))
	}
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	csrfConfig := middleware.CSRFConfig{
		CookieSecure: deps.AuthConfig.CookieSecure,
		CookieDomain: deps.AuthConfig.CookieDomain,
	}

	authHandler := NewAuthHandler(deps.AuthService, deps.SessionResolver, deps.AuthConfig)
	roleHandler := NewRoleHandler(deps.RoleBinder, deps.AuthConfig)
	landingHandler := NewLandingHandler()
	dashboardHandler := NewDashboardHandler(deps.PrescriptionService)
	prescriptionHandler := NewPrescriptionHandler(deps.PrescriptionService)
	avatarHandler := NewAvatarHandler(deps.AvatarFetcher)

	// --- 認証不要のルート ---

	r.Get("/health", healthHandler)
	if deps.MetricsGatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.MetricsGatherer))
	}

	// ランディングページ（未認証訪問者向け）
	r.Get("/api/landing", landingHandler.Landing)

	// CSRFトークン配布
	r.Method(http.MethodGet, "/api/csrf-token", middleware.NewCSRFTokenHandler(csrfConfig))

	// 認証ルート（OAuthフロー）
	r.Route("/auth", func(r chi.Router) {
		r.Get("/google/login", authHandler.Login)
		r.Get("/google/callback", authHandler.Callback)
		r.Post("/logout", authHandler.Logout)

		// /auth/me はセッション必須（ブートストラップ読み取り）
		r.With(middleware.NewSessionMiddleware(deps.SessionFinder)).Get("/me", authHandler.Me)
	})

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: CSRF → Session → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewCSRFMiddleware(csrfConfig))
		r.Use(middleware.NewSessionMiddleware(deps.SessionFinder))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// 役割バインディング
		r.Post("/api/role", roleHandler.BindRole)

		// アバタープロキシ
		r.Get("/api/users/me/avatar", avatarHandler.Me)

		// 医師向けルート（RecordStoreの役割レコードで保護）
		r.Group(func(r chi.Router) {
			r.Use(middleware.NewRequireRoleMiddleware(deps.RoleFinder, model.RoleDoctor))

			r.Get("/api/dashboard/doctor", dashboardHandler.Doctor)

			r.Route("/api/prescriptions", func(r chi.Router) {
				// POST /api/prescriptions - 処方箋発行（発行専用レート制限を追加）
				r.With(deps.RateLimiter.PrescriptionIssueMiddleware()).Post("/", prescriptionHandler.Issue)
				r.Get("/", prescriptionHandler.List)
			})
		})

		// 薬剤師向けルート
		r.Group(func(r chi.Router) {
			r.Use(middleware.NewRequireRoleMiddleware(deps.RoleFinder, model.RolePharmacist))

			r.Get("/api/dashboard/pharmacist", dashboardHandler.Pharmacist)
			r.Get("/api/prescriptions/verify/{code}", prescriptionHandler.Verify)
			r.Post("/api/prescriptions/{id}/dispense", prescriptionHandler.Dispense)
		})
	})

	return r
}

// healthHandler はヘルスチェックエンドポイント。
// GET /health
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
