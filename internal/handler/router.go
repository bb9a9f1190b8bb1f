package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/umair/taskvault/internal/metrics"
	"github.com/umair/taskvault/internal/middleware"
)

// HealthChecker はヘルスチェックに必要なインターフェース。
// sql.DBがそのまま満たす。
type HealthChecker interface {
	Ping() error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	HealthChecker     HealthChecker
	TokenVerifier     middleware.TokenVerifier
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Metrics           *metrics.Collector
	Gatherer          prometheus.Gatherer
	Logger            *slog.Logger

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// タスク
	TaskService TaskServiceInterface
	PDFProvider TaskPDFURLProvider

	// プロフィール
	UserService UserServiceInterface

	// アップロード
	UploadService UploadServiceInterface
	MaxUploadSize int64
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → SecurityHeaders → CORS → AuthMiddleware → RateLimit(General)
//
// 認証ルート（signup/login/logout/check-auth）と /api/health、/metrics は
// 認証ゲートの外に配置する。check-authはハンドラー内でソフトに検証する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	// 全ルートに効くミドルウェア
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger, deps.Metrics))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	taskHandler := NewTaskHandler(deps.TaskService, deps.PDFProvider)
	userHandler := NewUserHandler(deps.UserService)
	uploadHandler := NewUploadHandler(deps.UploadService, deps.Metrics, deps.MaxUploadSize)

	// --- 認証不要のルート ---

	r.Route("/api", func(r chi.Router) {
		r.Post("/signup", authHandler.Signup)
		r.Post("/login", authHandler.Login)
		r.Post("/logout", authHandler.Logout)
		r.Get("/check-auth", authHandler.CheckAuth)

		r.Get("/health", NewHealthHandler(deps.HealthChecker))
	})

	// Prometheusスクレイプ用エンドポイント
	if deps.Gatherer != nil {
		r.Handle("/metrics", metrics.Handler(deps.Gatherer))
	}

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Auth → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewAuthMiddleware(deps.TokenVerifier, deps.Metrics))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// タスク管理
		r.Route("/api/tasks", func(r chi.Router) {
			r.Get("/", taskHandler.List)
			r.Post("/", taskHandler.Create)

			// GET /api/tasks/task-pdf - 保存済みPDFの署名付きURL
			r.Get("/task-pdf", taskHandler.TaskPDF)

			r.Route("/{id}", func(r chi.Router) {
				r.Put("/", taskHandler.Update)
				r.Delete("/", taskHandler.Delete)
			})
		})

		// プロフィール管理
		r.Route("/api/profile", func(r chi.Router) {
			r.Put("/", userHandler.UpdateProfile)
			r.Get("/profile-pic", userHandler.ProfilePic)
		})

		// アップロード（アップロード専用レート制限を追加）
		r.Group(func(r chi.Router) {
			r.Use(deps.RateLimiter.UploadMiddleware())
			r.Post("/api/upload-task-pdf", uploadHandler.UploadTaskPDF)
			r.Post("/api/upload-profile-pic", uploadHandler.UploadProfilePic)
		})
	})

	return r
}

// NewHealthHandler はヘルスチェックエンドポイントのハンドラーを返す。
// DB接続を確認し、正常なら200を返す。
// GET /api/health
func NewHealthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := checker.Ping(); err != nil {
			slog.Error("health check failed", slog.String("error", err.Error()))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]string{"status": "unhealthy"})
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}
}
