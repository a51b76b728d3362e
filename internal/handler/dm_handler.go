package handler

import (
	"context"
	"net/http"
	"net/url"

	"github.com/hitoshi/warbler/internal/form"
	"github.com/hitoshi/warbler/internal/metrics"
	"github.com/hitoshi/warbler/internal/middleware"
	"github.com/hitoshi/warbler/internal/model"
)

// DirectMessageService はダイレクトメッセージハンドラーが必要とするサービスインターフェース。
type DirectMessageService interface {
	SendDirect(ctx context.Context, fromID, toID, text string) (*model.DirectMessage, error)
	Inbox(ctx context.Context, userID string) ([]model.DirectMessage, error)
}

// RecipientFinder は宛先候補のユーザー一覧を返すインターフェース。
type RecipientFinder interface {
	Search(ctx context.Context, q string) ([]*model.User, error)
}

// DirectMessageHandler はダイレクトメッセージの一覧と送信のHTTPハンドラー。
type DirectMessageHandler struct {
	responder
	service    DirectMessageService
	recipients RecipientFinder
	metrics    metrics.MetricsCollector
}

// NewDirectMessageHandler はDirectMessageHandlerを生成する。
func NewDirectMessageHandler(rsp responder, service DirectMessageService, recipients RecipientFinder, m metrics.MetricsCollector) *DirectMessageHandler {
	return &DirectMessageHandler{
		responder:  rsp,
		service:    service,
		recipients: recipients,
		metrics:    orNoop(m),
	}
}

type inboxData struct {
	DirectMessages []model.DirectMessage
}

type dmFormData struct {
	Form       *form.DirectMessageForm
	Recipients []*model.User
}

// Inbox は送受信したダイレクトメッセージを新しい順に表示する。
// GET /dms
func (h *DirectMessageHandler) Inbox(w http.ResponseWriter, r *http.Request) {
	dms, err := h.service.Inbox(r.Context(), currentUserID(r))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.render(w, r, http.StatusOK, "dms/inbox", "Messages", inboxData{DirectMessages: dms})
}

// NewForm は送信フォームを表示する。?to= で宛先を初期選択できる。
// GET /dms/new
func (h *DirectMessageHandler) NewForm(w http.ResponseWriter, r *http.Request) {
	f := form.NewDirectMessageForm(url.Values{"to_user_id": {r.URL.Query().Get("to")}})
	h.renderForm(w, r, f)
}

// Send はダイレクトメッセージを送信し、一覧へリダイレクトする。
// POST /dms/new
func (h *DirectMessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	f := form.NewDirectMessageForm(r.PostForm)
	if !f.Validate() {
		h.renderForm(w, r, f)
		return
	}

	dm, err := h.service.SendDirect(r.Context(), currentUserID(r), f.ToUserID, f.Text)
	if err != nil {
		if appErr, ok := fieldError(err); ok {
			f.Errors.Add(appErr.Field, appErr.Message)
			h.renderForm(w, r, f)
			return
		}
		h.handleServiceError(w, r, err)
		return
	}

	h.metrics.RecordDirectMessageSent()
	h.redirect(w, r, "/dms", middleware.FlashSuccess, "Message sent to @"+dm.ToUsername+".")
}

// renderForm は自分を除いたユーザーを宛先候補としてフォームを描画する。
func (h *DirectMessageHandler) renderForm(w http.ResponseWriter, r *http.Request, f *form.DirectMessageForm) {
	users, err := h.recipients.Search(r.Context(), "")
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	currID := currentUserID(r)
	recipients := make([]*model.User, 0, len(users))
	for _, u := range users {
		if u.ID != currID {
			recipients = append(recipients, u)
		}
	}

	h.render(w, r, http.StatusOK, "dms/new", "New Message", dmFormData{Form: f, Recipients: recipients})
}
