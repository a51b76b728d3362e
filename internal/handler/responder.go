// Package handler はHTTPハンドラーとルーティングを提供する。
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/hitoshi/warbler/internal/metrics"
	"github.com/hitoshi/warbler/internal/middleware"
	"github.com/hitoshi/warbler/internal/model"
	"github.com/hitoshi/warbler/internal/view"
)

// PageRenderer はHTMLページを描画するインターフェース。
type PageRenderer interface {
	Render(w http.ResponseWriter, status int, name string, page *view.Page) error
}

// CurrentUserLoader はナビゲーション表示用にログイン中ユーザーを取得するインターフェース。
type CurrentUserLoader interface {
	Get(ctx context.Context, id string) (*model.User, error)
}

// responder はページ描画・リダイレクト・エラー応答の共通処理をまとめる。
type responder struct {
	renderer PageRenderer
	flash    *middleware.Flasher
	users    CurrentUserLoader
}

func newResponder(renderer PageRenderer, flash *middleware.Flasher, users CurrentUserLoader) responder {
	return responder{renderer: renderer, flash: flash, users: users}
}

// page は共通のテンプレートデータを組み立てる。
// 前のリクエストで設定されたフラッシュはここで消費される。
func (h responder) page(w http.ResponseWriter, r *http.Request, title string, data any, flashes ...middleware.Flash) *view.Page {
	p := &view.Page{
		Title:     title,
		Flashes:   append(h.flash.Pop(w, r), flashes...),
		CSRFToken: middleware.CSRFToken(r.Context()),
		Data:      data,
	}

	if userID, err := middleware.UserIDFromContext(r.Context()); err == nil {
		user, err := h.users.Get(r.Context(), userID)
		if err != nil {
			slog.Warn("failed to load current user",
				slog.String("user_id", userID),
				slog.String("error", err.Error()),
			)
		} else {
			p.CurrUser = user
		}
	}
	return p
}

// render はページを描画する。描画に失敗した場合は500を返す。
func (h responder) render(w http.ResponseWriter, r *http.Request, status int, name, title string, data any, flashes ...middleware.Flash) {
	if err := h.renderer.Render(w, status, name, h.page(w, r, title, data, flashes...)); err != nil {
		slog.Error("failed to render page",
			slog.String("template", name),
			slog.String("error", err.Error()),
		)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

// redirect はフラッシュメッセージを設定して302でリダイレクトする。
func (h responder) redirect(w http.ResponseWriter, r *http.Request, to, category, message string) {
	if message != "" {
		h.flash.Set(w, category, message)
	}
	http.Redirect(w, r, to, http.StatusFound)
}

func (h responder) notFound(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusNotFound, "errors/404", "Not Found", nil)
}

func (h responder) serverError(w http.ResponseWriter, r *http.Request, err error) {
	slog.Error("internal server error",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)
	h.render(w, r, http.StatusInternalServerError, "errors/500", "Error", nil)
}

// handleServiceError はサービス層のエラーをHTML応答に変換する。
// フォームのフィールドに紐づくエラーは各ハンドラーが再描画で扱うため、ここには来ない前提。
func (h responder) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *model.AppError
	if !errors.As(err, &appErr) {
		h.serverError(w, r, err)
		return
	}

	switch appErr.Code {
	case model.ErrCodeUserNotFound, model.ErrCodeMessageNotFound:
		h.notFound(w, r)
	case model.ErrCodeForbidden:
		h.redirect(w, r, "/", middleware.FlashDanger, "Access unauthorized.")
	case model.ErrCodeCannotFollowSelf, model.ErrCodeCannotLikeOwn:
		h.redirect(w, r, backURL(r), middleware.FlashDanger, appErr.Message)
	default:
		h.serverError(w, r, err)
	}
}

// fieldError はフォームのフィールドに紐づくAppErrorを取り出す。
func fieldError(err error) (*model.AppError, bool) {
	var appErr *model.AppError
	if errors.As(err, &appErr) && appErr.Field != "" {
		return appErr, true
	}
	return nil, false
}

// backURL は同一オリジンのRefererのパスを返す。使えない場合は "/"。
// "//host" や "/\host" で始まるパスは別ホストへのリダイレクトになるため "/" にする。
func backURL(r *http.Request) string {
	ref := r.Referer()
	if ref == "" {
		return "/"
	}
	u, err := url.Parse(ref)
	if err != nil || (u.Host != "" && u.Host != r.Host) {
		return "/"
	}
	back := u.EscapedPath()
	if !isLocalPath(back) || !isLocalPath(u.Path) {
		return "/"
	}
	if u.RawQuery != "" {
		back += "?" + u.RawQuery
	}
	return back
}

// isLocalPath は同一ホスト内の絶対パスかどうかを判定する。
func isLocalPath(p string) bool {
	if p == "" || p[0] != '/' {
		return false
	}
	return !strings.HasPrefix(p, "//") && !strings.HasPrefix(p, "/\\")
}

// currentUserID はRequireLoginを通過したリクエストのユーザーIDを返す。
func currentUserID(r *http.Request) string {
	id, _ := middleware.UserIDFromContext(r.Context())
	return id
}

// noopMetrics はメトリクス未設定時に使う何もしない実装。
type noopMetrics struct{}

func (noopMetrics) RecordSignup()               {}
func (noopMetrics) RecordLogin(bool)            {}
func (noopMetrics) RecordMessagePosted()        {}
func (noopMetrics) RecordDirectMessageSent()    {}
func (noopMetrics) RecordSessionsCleaned(int64) {}

var _ metrics.MetricsCollector = noopMetrics{}

func orNoop(m metrics.MetricsCollector) metrics.MetricsCollector {
	if m == nil {
		return noopMetrics{}
	}
	return m
}
