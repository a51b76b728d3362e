package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/warbler/internal/form"
	"github.com/hitoshi/warbler/internal/metrics"
	"github.com/hitoshi/warbler/internal/model"
)

// MessageServiceInterface はメッセージハンドラーが必要とするサービスインターフェース。
type MessageServiceInterface interface {
	Create(ctx context.Context, userID, text string) (*model.Message, error)
	Get(ctx context.Context, id, viewerID string) (*model.MessageWithAuthor, error)
	Delete(ctx context.Context, currID, id string) error
	Like(ctx context.Context, currID, id string) error
	Unlike(ctx context.Context, currID, id string) error
}

// MessageHandler はメッセージの投稿・表示・削除・いいねのHTTPハンドラー。
type MessageHandler struct {
	responder
	service MessageServiceInterface
	metrics metrics.MetricsCollector
}

// NewMessageHandler はMessageHandlerを生成する。
func NewMessageHandler(rsp responder, service MessageServiceInterface, m metrics.MetricsCollector) *MessageHandler {
	return &MessageHandler{responder: rsp, service: service, metrics: orNoop(m)}
}

type messageFormData struct {
	Form *form.MessageForm
}

type messageShowData struct {
	Message *model.MessageWithAuthor
}

// NewForm はメッセージ投稿フォームを表示する。
// GET /messages/new
func (h *MessageHandler) NewForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "messages/new", "New Message", messageFormData{Form: form.NewMessageForm(nil)})
}

// Create はメッセージを投稿し、自分のプロフィールへリダイレクトする。
// POST /messages/new
func (h *MessageHandler) Create(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	currID := currentUserID(r)
	f := form.NewMessageForm(r.PostForm)
	if !f.Validate() {
		h.render(w, r, http.StatusOK, "messages/new", "New Message", messageFormData{Form: f})
		return
	}

	if _, err := h.service.Create(r.Context(), currID, f.Text); err != nil {
		if appErr, ok := fieldError(err); ok {
			f.Errors.Add(appErr.Field, appErr.Message)
			h.render(w, r, http.StatusOK, "messages/new", "New Message", messageFormData{Form: f})
			return
		}
		h.handleServiceError(w, r, err)
		return
	}

	h.metrics.RecordMessagePosted()
	http.Redirect(w, r, "/users/"+currID, http.StatusFound)
}

// Show はメッセージを1件表示する。
// GET /messages/{id}
func (h *MessageHandler) Show(w http.ResponseWriter, r *http.Request) {
	msg, err := h.service.Get(r.Context(), chi.URLParam(r, "id"), currentUserID(r))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.render(w, r, http.StatusOK, "messages/show", "Message", messageShowData{Message: msg})
}

// Delete は自分のメッセージを削除し、自分のプロフィールへリダイレクトする。
// POST /messages/{id}/delete
func (h *MessageHandler) Delete(w http.ResponseWriter, r *http.Request) {
	currID := currentUserID(r)
	if err := h.service.Delete(r.Context(), currID, chi.URLParam(r, "id")); err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	http.Redirect(w, r, "/users/"+currID, http.StatusFound)
}

// Like は他人のメッセージにいいねし、元のページへ戻る。
// POST /messages/{id}/like
func (h *MessageHandler) Like(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Like(r.Context(), currentUserID(r), chi.URLParam(r, "id")); err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	http.Redirect(w, r, backURL(r), http.StatusFound)
}

// Unlike はいいねを取り消し、元のページへ戻る。
// POST /messages/{id}/unlike
func (h *MessageHandler) Unlike(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Unlike(r.Context(), currentUserID(r), chi.URLParam(r, "id")); err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	http.Redirect(w, r, backURL(r), http.StatusFound)
}
