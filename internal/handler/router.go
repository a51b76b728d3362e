package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/warbler/internal/metrics"
	"github.com/hitoshi/warbler/internal/middleware"
	"github.com/hitoshi/warbler/internal/view"
)

// MessageServices はメッセージ・タイムライン・ダイレクトメッセージを扱うサービスインターフェース。
// *message.Serviceが満たす。
type MessageServices interface {
	MessageServiceInterface
	TimelineService
	DirectMessageService
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger        *slog.Logger
	SessionFinder middleware.SessionFinder
	RateLimiter   *middleware.RateLimiter
	Flasher       *middleware.Flasher
	CSRF          middleware.CSRFConfig

	// 描画
	Renderer PageRenderer
	BaseURL  string

	// セッション
	Session SessionConfig

	// サービス
	AuthService    AuthServiceInterface
	UserService    UserServiceInterface
	MessageService MessageServices

	// 運用（nilの場合は該当エンドポイントを登録しない）
	Metrics       *metrics.Collector
	Gatherer      prometheus.Gatherer
	HealthChecker HealthChecker
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → Metrics → SecurityHeaders → Session → RateLimit(General) → [RequireLogin] → CSRF
//
// ログインが必要なルートではRequireLoginをCSRFより先に適用する。
// /signup と /login のPOSTにはIPごとのログイン試行制限を追加する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var mc metrics.MetricsCollector
	if deps.Metrics != nil {
		mc = deps.Metrics
	}

	rsp := newResponder(deps.Renderer, deps.Flasher, deps.UserService)
	homeHandler := NewHomeHandler(rsp, deps.MessageService, deps.UserService)
	authHandler := NewAuthHandler(rsp, deps.AuthService, deps.Session, mc)
	userHandler := NewUserHandler(rsp, deps.UserService, deps.Session)
	msgHandler := NewMessageHandler(rsp, deps.MessageService, mc)
	dmHandler := NewDirectMessageHandler(rsp, deps.MessageService, deps.UserService, mc)
	atomHandler := NewAtomHandler(rsp, deps.UserService, deps.BaseURL)

	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(logger))
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Middleware())
	}
	r.Use(middleware.NewSecurityHeadersMiddleware())

	// --- 運用エンドポイント（セッション・CSRFの対象外） ---
	r.Handle("/static/*", view.StaticHandler())
	if deps.HealthChecker != nil {
		r.Get("/health", NewHealthHandler(deps.HealthChecker).Check)
	}
	if deps.Gatherer != nil {
		r.Handle("/metrics", metrics.Handler(deps.Gatherer))
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionFinder))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// 未ログインの状態変更リクエストはCSRF検証より先にリダイレクトされる。
		csrf := middleware.NewCSRFMiddleware(deps.CSRF)
		requireLogin := middleware.NewRequireLoginMiddleware(deps.Flasher)

		r.NotFound(csrf(http.HandlerFunc(rsp.notFound)).ServeHTTP)

		// --- 認証不要のルート ---
		r.With(csrf).Get("/", homeHandler.Home)

		r.Group(func(r chi.Router) {
			r.Use(deps.RateLimiter.LoginMiddleware())
			r.Use(csrf)

			r.Get("/signup", authHandler.SignupForm)
			r.Post("/signup", authHandler.Signup)
			r.Get("/login", authHandler.LoginForm)
			r.Post("/login", authHandler.Login)
		})

		r.Route("/users", func(r chi.Router) {
			r.Get("/{id}/feed.atom", atomHandler.Feed)

			// --- ここから下はログインが必要 ---
			r.Group(func(r chi.Router) {
				r.Use(requireLogin, csrf)

				r.Get("/", userHandler.List)
				r.Get("/profile", userHandler.EditProfileForm)
				r.Post("/profile", userHandler.EditProfile)
				r.Post("/delete", userHandler.Delete)
				r.Post("/follow/{id}", userHandler.Follow)
				r.Post("/stop-following/{id}", userHandler.StopFollowing)

				r.Get("/{id}", userHandler.Show)
				r.Get("/{id}/following", userHandler.Following)
				r.Get("/{id}/followers", userHandler.Followers)
				r.Get("/{id}/likes", userHandler.Likes)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(requireLogin, csrf)

			r.Post("/logout", authHandler.Logout)

			r.Route("/messages", func(r chi.Router) {
				r.Get("/new", msgHandler.NewForm)
				r.Post("/new", msgHandler.Create)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", msgHandler.Show)
					r.Post("/delete", msgHandler.Delete)
					r.Post("/like", msgHandler.Like)
					r.Post("/unlike", msgHandler.Unlike)
				})
			})

			r.Route("/dms", func(r chi.Router) {
				r.Get("/", dmHandler.Inbox)
				r.Get("/new", dmHandler.NewForm)
				r.Post("/new", dmHandler.Send)
			})
		})
	})

	return r
}
