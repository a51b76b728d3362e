package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/hitoshi/warbler/internal/auth"
	"github.com/hitoshi/warbler/internal/form"
	"github.com/hitoshi/warbler/internal/metrics"
	"github.com/hitoshi/warbler/internal/middleware"
	"github.com/hitoshi/warbler/internal/model"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	Signup(ctx context.Context, in auth.SignupInput) (*model.User, error)
	Authenticate(ctx context.Context, username, password string) (*model.User, error)
	Login(ctx context.Context, userID string) (*model.Session, error)
	Logout(ctx context.Context, sessionID string) error
}

// SessionConfig はセッションCookieの発行設定。
type SessionConfig struct {
	Cookie middleware.CookieConfig
	MaxAge int // セッションCookieの有効期間（秒）
}

// AuthHandler はサインアップ・ログイン・ログアウトのHTTPハンドラー。
type AuthHandler struct {
	responder
	service AuthServiceInterface
	session SessionConfig
	metrics metrics.MetricsCollector
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(rsp responder, service AuthServiceInterface, session SessionConfig, m metrics.MetricsCollector) *AuthHandler {
	return &AuthHandler{
		responder: rsp,
		service:   service,
		session:   session,
		metrics:   orNoop(m),
	}
}

type signupData struct {
	Form *form.UserAddForm
}

type loginData struct {
	Form *form.LoginForm
}

// SignupForm はサインアップフォームを表示する。
// GET /signup
func (h *AuthHandler) SignupForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "users/signup", "Sign up", signupData{Form: form.NewUserAddForm(nil)})
}

// Signup はユーザーを作成してログインし、トップページへリダイレクトする。
// 検証エラーや重複はフォームを再表示する。
// POST /signup
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	f := form.NewUserAddForm(r.PostForm)
	if !f.Validate() {
		h.render(w, r, http.StatusOK, "users/signup", "Sign up", signupData{Form: f})
		return
	}

	user, err := h.service.Signup(r.Context(), auth.SignupInput{
		Username: f.Username,
		Email:    f.Email,
		Password: f.Password,
		ImageURL: f.ImageURL,
	})
	if err != nil {
		if appErr, ok := fieldError(err); ok {
			f.Errors.Add(appErr.Field, appErr.Message)
			h.render(w, r, http.StatusOK, "users/signup", "Sign up", signupData{Form: f},
				middleware.Flash{Category: middleware.FlashDanger, Message: appErr.Message})
			return
		}
		h.serverError(w, r, err)
		return
	}

	if !h.startSession(w, r, user) {
		return
	}
	h.metrics.RecordSignup()
	http.Redirect(w, r, "/", http.StatusFound)
}

// LoginForm はログインフォームを表示する。
// GET /login
func (h *AuthHandler) LoginForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "users/login", "Log in", loginData{Form: form.NewLoginForm(nil)})
}

// Login はユーザー名とパスワードを検証してログインする。
// POST /login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	f := form.NewLoginForm(r.PostForm)
	if !f.Validate() {
		h.render(w, r, http.StatusOK, "users/login", "Log in", loginData{Form: f})
		return
	}

	user, err := h.service.Authenticate(r.Context(), f.Username, f.Password)
	if err != nil {
		var appErr *model.AppError
		if errors.As(err, &appErr) && appErr.Code == model.ErrCodeInvalidCredentials {
			h.metrics.RecordLogin(false)
			h.render(w, r, http.StatusOK, "users/login", "Log in", loginData{Form: f},
				middleware.Flash{Category: middleware.FlashDanger, Message: appErr.Message})
			return
		}
		h.serverError(w, r, err)
		return
	}

	if !h.startSession(w, r, user) {
		return
	}
	h.metrics.RecordLogin(true)
	h.redirect(w, r, "/", middleware.FlashSuccess, fmt.Sprintf("Hello, %s!", user.Username))
}

// Logout はセッションを削除してログイン画面へリダイレクトする。
// POST /logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(middleware.SessionCookieName); err == nil && cookie.Value != "" {
		if err := h.service.Logout(r.Context(), cookie.Value); err != nil {
			slog.Error("failed to logout", slog.String("error", err.Error()))
		}
	}

	middleware.ClearSessionCookie(w, h.session.Cookie)
	h.redirect(w, r, "/login", middleware.FlashSuccess, "You have successfully logged out.")
}

// startSession はセッションを作成してCookieを発行する。失敗時は500を返してfalseを返す。
func (h *AuthHandler) startSession(w http.ResponseWriter, r *http.Request, user *model.User) bool {
	session, err := h.service.Login(r.Context(), user.ID)
	if err != nil {
		h.serverError(w, r, err)
		return false
	}
	middleware.SetSessionCookie(w, session.ID, h.session.MaxAge, h.session.Cookie)
	return true
}
