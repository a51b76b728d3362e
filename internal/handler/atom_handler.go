package handler

import (
	"context"
	"encoding/xml"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/warbler/internal/model"
)

const (
	atomNamespace = "http://www.w3.org/2005/Atom"

	// atomEntryLimit はフィードに含めるメッセージの最大件数。
	atomEntryLimit = 20
)

// AtomSource はAtomフィードの生成に必要なサービスインターフェース。
type AtomSource interface {
	Get(ctx context.Context, id string) (*model.User, error)
	Messages(ctx context.Context, id, viewerID string, limit int) ([]model.MessageWithAuthor, error)
}

type atomLink struct {
	Href string `xml:"href,attr"`
	Rel  string `xml:"rel,attr,omitempty"`
	Type string `xml:"type,attr,omitempty"`
}

type atomPerson struct {
	Name string `xml:"name"`
	URI  string `xml:"uri,omitempty"`
}

type atomText struct {
	Type string `xml:"type,attr"`
	Body string `xml:",chardata"`
}

type atomEntry struct {
	Title   string     `xml:"title"`
	ID      string     `xml:"id"`
	Updated string     `xml:"updated"`
	Link    atomLink   `xml:"link"`
	Content atomText   `xml:"content"`
	Author  atomPerson `xml:"author"`
}

type atomFeed struct {
	XMLName xml.Name    `xml:"feed"`
	Xmlns   string      `xml:"xmlns,attr"`
	Title   string      `xml:"title"`
	ID      string      `xml:"id"`
	Updated string      `xml:"updated"`
	Links   []atomLink  `xml:"link"`
	Author  atomPerson  `xml:"author"`
	Entries []atomEntry `xml:"entry"`
}

// AtomHandler はユーザーの最新メッセージをAtom 1.0で公開するHTTPハンドラー。
type AtomHandler struct {
	responder
	source  AtomSource
	baseURL string
}

// NewAtomHandler はAtomHandlerを生成する。baseURLは絶対URLの生成に使う。
func NewAtomHandler(rsp responder, source AtomSource, baseURL string) *AtomHandler {
	return &AtomHandler{responder: rsp, source: source, baseURL: strings.TrimRight(baseURL, "/")}
}

// Feed はユーザーのAtomフィードを返す。ログインは不要。
// GET /users/{id}/feed.atom
func (h *AtomHandler) Feed(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	user, err := h.source.Get(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	msgs, err := h.source.Messages(r.Context(), id, "", atomEntryLimit)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	body, err := xml.MarshalIndent(h.buildFeed(user, msgs), "", "  ")
	if err != nil {
		h.serverError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/atom+xml; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(append([]byte(xml.Header), body...)); err != nil {
		slog.Warn("failed to write atom feed", slog.String("error", err.Error()))
	}
}

func (h *AtomHandler) buildFeed(user *model.User, msgs []model.MessageWithAuthor) atomFeed {
	profileURL := h.baseURL + "/users/" + user.ID
	author := atomPerson{Name: user.Username, URI: profileURL}

	// メッセージがない場合はユーザーの作成日時を更新日時とする。
	updated := user.CreatedAt
	if len(msgs) > 0 {
		updated = msgs[0].Timestamp
	}

	feed := atomFeed{
		Xmlns:   atomNamespace,
		Title:   "@" + user.Username + " on Warbler",
		ID:      profileURL,
		Updated: atomTime(updated),
		Links: []atomLink{
			{Href: profileURL + "/feed.atom", Rel: "self", Type: "application/atom+xml"},
			{Href: profileURL, Rel: "alternate", Type: "text/html"},
		},
		Author:  author,
		Entries: make([]atomEntry, 0, len(msgs)),
	}

	for _, m := range msgs {
		messageURL := h.baseURL + "/messages/" + m.ID
		feed.Entries = append(feed.Entries, atomEntry{
			Title:   entryTitle(m.Text),
			ID:      messageURL,
			Updated: atomTime(m.Timestamp),
			Link:    atomLink{Href: messageURL, Rel: "alternate", Type: "text/html"},
			Content: atomText{Type: "text", Body: m.Text},
			Author:  author,
		})
	}
	return feed
}

func atomTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// entryTitle は本文の先頭40文字をエントリのタイトルにする。
func entryTitle(text string) string {
	runes := []rune(text)
	if len(runes) <= 40 {
		return text
	}
	return string(runes[:40]) + "…"
}
