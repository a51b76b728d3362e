// Package view はHTMLテンプレートの描画と静的ファイルの配信を提供する。
// テンプレートと静的ファイルはバイナリに埋め込まれる。
package view

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/hitoshi/warbler/internal/middleware"
	"github.com/hitoshi/warbler/internal/model"
)

//go:embed templates static
var content embed.FS

// Page は全ページ共通のテンプレートデータ。
// ページ固有の値はDataに格納する。
type Page struct {
	Title     string
	CurrUser  *model.User
	Flashes   []middleware.Flash
	CSRFToken string
	Data      any
}

// Renderer はページ名ごとにレイアウトと結合済みのテンプレートを保持する。
type Renderer struct {
	pages map[string]*template.Template
}

// FollowSet はログイン中ユーザーがフォローしているユーザーIDの集合。
// ページデータに埋め込むと、テンプレートのフォローボタンが状態を参照できる。
type FollowSet map[string]bool

// IsFollowing はidのユーザーをフォロー中かを返す。
func (s FollowSet) IsFollowing(id string) bool {
	return s[id]
}

type followChecker interface {
	IsFollowing(id string) bool
}

// followButton はフォロー/フォロー解除ボタンの描画に使う値。
type followButton struct {
	UserID    string
	Following bool
	CSRFToken string
}

func followState(p *Page, userID string) followButton {
	fb := followButton{UserID: userID, CSRFToken: p.CSRFToken}
	if fc, ok := p.Data.(followChecker); ok {
		fb.Following = fc.IsFollowing(userID)
	}
	return fb
}

var funcs = template.FuncMap{
	"followState": followState,
	"date": func(t time.Time) string {
		return t.Format("02 January 2006")
	},
	"datetime": func(t time.Time) string {
		return t.UTC().Format(time.RFC3339)
	},
}

// NewRenderer は埋め込みテンプレートをすべて解析する。
// ページ名は templates/pages 配下の相対パスから拡張子を除いたもの（例: "users/show"）。
func NewRenderer() (*Renderer, error) {
	layout, err := template.New("layout").Funcs(funcs).ParseFS(content, "templates/layout/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse layout templates: %w", err)
	}

	r := &Renderer{pages: make(map[string]*template.Template)}

	err = fs.WalkDir(content, "templates/pages", func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || path.Ext(p) != ".html" {
			return err
		}
		name := strings.TrimSuffix(strings.TrimPrefix(p, "templates/pages/"), ".html")

		tmpl, err := layout.Clone()
		if err != nil {
			return err
		}
		if _, err := tmpl.ParseFS(content, p); err != nil {
			return fmt.Errorf("failed to parse %s: %w", p, err)
		}
		r.pages[name] = tmpl
		return nil
	})
	if err != nil {
		return nil, err
	}

	return r, nil
}

// Has は指定名のページが存在するかを返す。
func (r *Renderer) Has(name string) bool {
	_, ok := r.pages[name]
	return ok
}

// Render はページを描画してステータスコードと共に書き込む。
// 描画途中のエラーで壊れたHTMLを返さないよう、一度バッファに書き出す。
func (r *Renderer) Render(w http.ResponseWriter, status int, name string, page *Page) error {
	tmpl, ok := r.pages[name]
	if !ok {
		return fmt.Errorf("template %q not found", name)
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "base", page); err != nil {
		return fmt.Errorf("failed to render %s: %w", name, err)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if _, err := buf.WriteTo(w); err != nil {
		slog.Warn("failed to write response", slog.String("template", name), slog.String("error", err.Error()))
	}
	return nil
}

// StaticHandler は /static/ 配下の静的ファイルを配信するハンドラーを返す。
func StaticHandler() http.Handler {
	sub, err := fs.Sub(content, "static")
	if err != nil {
		panic(err)
	}
	return http.StripPrefix("/static/", http.FileServerFS(sub))
}
