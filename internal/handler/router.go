package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/hitoshi/holograma/internal/metrics"
	"github.com/hitoshi/holograma/internal/middleware"
)

// FeedTitle はAtomフィードのタイトル。
const FeedTitle = "Holograma"

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Logger *slog.Logger

	// ミドルウェア依存
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Authenticator     middleware.Authenticator
	Metrics           metrics.MetricsCollector
	MetricsHandler    http.Handler

	// ヘルスチェック
	HealthChecker HealthChecker

	// 記事
	ArticleService ArticleServiceInterface
	BaseURL        string

	// メディア
	MediaService  MediaServiceInterface
	MaxUploadSize int64

	// 認証
	AuthService AuthServiceInterface
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RealIP → Recovery → SecurityHeaders → CORS → Metrics → Identity → Logging → RateLimit(General)
//
// /health と /metrics はミドルウェアチェーンの外側（Recoveryのみ）に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	collector := deps.Metrics
	if collector == nil {
		collector = metrics.Nop{}
	}

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(middleware.NewRecoveryMiddleware(logger))

	articleHandler := NewArticleHandler(deps.ArticleService)
	mediaHandler := NewMediaHandler(deps.MediaService, deps.MaxUploadSize)
	authHandler := NewAuthHandler(deps.AuthService)
	feedHandler := NewFeedHandler(deps.ArticleService, FeedTitle, deps.BaseURL)

	// --- 運用エンドポイント ---
	r.Get("/health", HealthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSecurityHeadersMiddleware())
		r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
		r.Use(middleware.NewMetricsMiddleware(collector))
		r.Use(middleware.NewIdentityMiddleware(deps.Authenticator))
		r.Use(middleware.NewLoggingMiddleware(logger))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// Atomフィード
		r.Get("/feed.atom", feedHandler.Atom)

		// 記事
		r.Route("/api/articles", func(r chi.Router) {
			r.Get("/", articleHandler.ListArticles)
			r.Post("/", articleHandler.CreateArticle)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", articleHandler.GetArticle)
				r.Put("/", articleHandler.UpdateArticle)
			})
		})

		// メディア（アップロード専用レート制限を追加）
		r.With(deps.RateLimiter.UploadMiddleware()).Post("/api/media", mediaHandler.UploadMedia)

		// ユーザー同期
		r.Post("/api/auth/sync", authHandler.Sync)
	})

	return r
}
