package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/warbler/internal/form"
	"github.com/hitoshi/warbler/internal/middleware"
	"github.com/hitoshi/warbler/internal/model"
	"github.com/hitoshi/warbler/internal/view"
)

// profileMessageLimit はプロフィールに表示するメッセージの最大件数。
const profileMessageLimit = 100

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	Get(ctx context.Context, id string) (*model.User, error)
	Stats(ctx context.Context, id string) (*model.UserStats, error)
	Search(ctx context.Context, q string) ([]*model.User, error)
	Messages(ctx context.Context, id, viewerID string, limit int) ([]model.MessageWithAuthor, error)
	Following(ctx context.Context, id string) ([]*model.User, error)
	Followers(ctx context.Context, id string) ([]*model.User, error)
	Likes(ctx context.Context, id, viewerID string) ([]model.MessageWithAuthor, error)
	Follow(ctx context.Context, currID, targetID string) error
	Unfollow(ctx context.Context, currID, targetID string) error
	IsFollowing(ctx context.Context, userID, otherID string) (bool, error)
	IsFollowedBy(ctx context.Context, userID, otherID string) (bool, error)
	UpdateProfile(ctx context.Context, currID string, in model.ProfileUpdate, password string) (*model.User, error)
	Delete(ctx context.Context, currID string) error
}

// UserHandler はユーザー一覧・プロフィール・フォロー・プロフィール編集・退会のHTTPハンドラー。
type UserHandler struct {
	responder
	service UserServiceInterface
	session SessionConfig
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(rsp responder, service UserServiceInterface, session SessionConfig) *UserHandler {
	return &UserHandler{
		responder: rsp,
		service:   service,
		session:   session,
	}
}

type userListData struct {
	view.FollowSet
	Query string
	Users []*model.User
}

// profileData はプロフィールヘッダーを含むページの共通データ。
type profileData struct {
	view.FollowSet
	User       *model.User
	Stats      *model.UserStats
	FollowsYou bool
	Heading    string
	Messages   []model.MessageWithAuthor
	Users      []*model.User
}

type editProfileData struct {
	Form *form.EditProfileForm
}

// followSet はログイン中ユーザーのフォロー先をFollowSetにする。
func (h *UserHandler) followSet(ctx context.Context, currID string) (view.FollowSet, error) {
	following, err := h.service.Following(ctx, currID)
	if err != nil {
		return nil, err
	}
	set := make(view.FollowSet, len(following))
	for _, u := range following {
		set[u.ID] = true
	}
	return set, nil
}

// loadProfile はプロフィールヘッダーの表示に必要な値を読み込む。
func (h *UserHandler) loadProfile(ctx context.Context, currID, id string) (*profileData, error) {
	user, err := h.service.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	stats, err := h.service.Stats(ctx, id)
	if err != nil {
		return nil, err
	}
	set, err := h.followSet(ctx, currID)
	if err != nil {
		return nil, err
	}
	followsYou, err := h.service.IsFollowedBy(ctx, currID, id)
	if err != nil {
		return nil, err
	}
	return &profileData{FollowSet: set, User: user, Stats: stats, FollowsYou: followsYou}, nil
}

// List はユーザー名で検索したユーザー一覧を表示する。qが空なら全ユーザー。
// GET /users?q=
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))

	users, err := h.service.Search(r.Context(), q)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	set, err := h.followSet(r.Context(), currentUserID(r))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.render(w, r, http.StatusOK, "users/index", "Users", userListData{FollowSet: set, Query: q, Users: users})
}

// Show はユーザーのプロフィールとメッセージを表示する。
// GET /users/{id}
func (h *UserHandler) Show(w http.ResponseWriter, r *http.Request) {
	currID, id := currentUserID(r), chi.URLParam(r, "id")

	data, err := h.loadProfile(r.Context(), currID, id)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	data.Messages, err = h.service.Messages(r.Context(), id, currID, profileMessageLimit)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.render(w, r, http.StatusOK, "users/show", "@"+data.User.Username, data)
}

// Following はユーザーがフォローしているユーザー一覧を表示する。
// GET /users/{id}/following
func (h *UserHandler) Following(w http.ResponseWriter, r *http.Request) {
	h.connections(w, r, "Following", h.service.Following)
}

// Followers はユーザーのフォロワー一覧を表示する。
// GET /users/{id}/followers
func (h *UserHandler) Followers(w http.ResponseWriter, r *http.Request) {
	h.connections(w, r, "Followers", h.service.Followers)
}

func (h *UserHandler) connections(w http.ResponseWriter, r *http.Request, heading string,
	list func(ctx context.Context, id string) ([]*model.User, error)) {
	currID, id := currentUserID(r), chi.URLParam(r, "id")

	data, err := h.loadProfile(r.Context(), currID, id)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	data.Heading = heading
	data.Users, err = list(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.render(w, r, http.StatusOK, "users/connections", heading, data)
}

// Likes はユーザーがいいねしたメッセージ一覧を表示する。
// GET /users/{id}/likes
func (h *UserHandler) Likes(w http.ResponseWriter, r *http.Request) {
	currID, id := currentUserID(r), chi.URLParam(r, "id")

	data, err := h.loadProfile(r.Context(), currID, id)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	data.Messages, err = h.service.Likes(r.Context(), id, currID)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.render(w, r, http.StatusOK, "users/likes", "Likes", data)
}

// Follow はユーザーをフォローし、自分のフォロー一覧へリダイレクトする。
// POST /users/follow/{id}
func (h *UserHandler) Follow(w http.ResponseWriter, r *http.Request) {
	currID := currentUserID(r)
	if err := h.service.Follow(r.Context(), currID, chi.URLParam(r, "id")); err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	http.Redirect(w, r, "/users/"+currID+"/following", http.StatusFound)
}

// StopFollowing はフォローを解除し、自分のフォロー一覧へリダイレクトする。
// POST /users/stop-following/{id}
func (h *UserHandler) StopFollowing(w http.ResponseWriter, r *http.Request) {
	currID := currentUserID(r)
	if err := h.service.Unfollow(r.Context(), currID, chi.URLParam(r, "id")); err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	http.Redirect(w, r, "/users/"+currID+"/following", http.StatusFound)
}

// EditProfileForm は現在のプロフィールで埋めた編集フォームを表示する。
// GET /users/profile
func (h *UserHandler) EditProfileForm(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.Get(r.Context(), currentUserID(r))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.render(w, r, http.StatusOK, "users/edit", "Edit Profile", editProfileData{Form: form.EditProfileFormFromUser(user)})
}

// EditProfile は現在のパスワードで本人確認してプロフィールを更新する。
// パスワードが違う場合はトップページへリダイレクトする。
// POST /users/profile
func (h *UserHandler) EditProfile(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	currID := currentUserID(r)
	f := form.NewEditProfileForm(r.PostForm)
	if !f.Validate() {
		h.render(w, r, http.StatusOK, "users/edit", "Edit Profile", editProfileData{Form: f})
		return
	}

	_, err := h.service.UpdateProfile(r.Context(), currID, f.ProfileUpdate(), f.Password)
	if err != nil {
		if appErr, ok := fieldError(err); ok {
			if appErr.Code == model.ErrCodeInvalidCredentials {
				h.redirect(w, r, "/", middleware.FlashDanger, "Wrong password, please try again.")
				return
			}
			f.Errors.Add(appErr.Field, appErr.Message)
			h.render(w, r, http.StatusOK, "users/edit", "Edit Profile", editProfileData{Form: f})
			return
		}
		h.handleServiceError(w, r, err)
		return
	}

	h.redirect(w, r, "/users/"+currID, middleware.FlashSuccess, "Profile updated.")
}

// Delete は退会処理を行い、サインアップ画面へリダイレクトする。
// POST /users/delete
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), currentUserID(r)); err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	middleware.ClearSessionCookie(w, h.session.Cookie)
	h.redirect(w, r, "/signup", middleware.FlashInfo, "Your account has been deleted.")
}
