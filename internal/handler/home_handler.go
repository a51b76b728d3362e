package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/warbler/internal/model"
)

// TimelineService はトップページのタイムライン表示に必要なサービスインターフェース。
type TimelineService interface {
	Timeline(ctx context.Context, currID string) ([]model.MessageWithAuthor, error)
}

// ProfileStatsService はトップページのサイドバー表示に必要なサービスインターフェース。
type ProfileStatsService interface {
	Get(ctx context.Context, id string) (*model.User, error)
	Stats(ctx context.Context, id string) (*model.UserStats, error)
}

// HomeHandler はトップページのHTTPハンドラー。
type HomeHandler struct {
	responder
	messages TimelineService
	users    ProfileStatsService
}

// NewHomeHandler はHomeHandlerを生成する。
func NewHomeHandler(rsp responder, messages TimelineService, users ProfileStatsService) *HomeHandler {
	return &HomeHandler{responder: rsp, messages: messages, users: users}
}

type homeData struct {
	User     *model.User
	Stats    *model.UserStats
	Messages []model.MessageWithAuthor
}

// Home は未ログインならランディングページ、ログイン中なら自分とフォロー先のタイムラインを表示する。
// GET /
func (h *HomeHandler) Home(w http.ResponseWriter, r *http.Request) {
	currID := currentUserID(r)
	if currID == "" {
		h.render(w, r, http.StatusOK, "home_anon", "Warbler", nil)
		return
	}

	user, err := h.users.Get(r.Context(), currID)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	stats, err := h.users.Stats(r.Context(), currID)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	timeline, err := h.messages.Timeline(r.Context(), currID)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.render(w, r, http.StatusOK, "home", "Home", homeData{User: user, Stats: stats, Messages: timeline})
}
