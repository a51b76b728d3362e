package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hitoshi/warbler/internal/auth"
	"github.com/hitoshi/warbler/internal/middleware"
	"github.com/hitoshi/warbler/internal/model"
	"github.com/hitoshi/warbler/internal/view"
)

// --- モック定義 ---

type mockAuthService struct {
	signupFn       func(ctx context.Context, in auth.SignupInput) (*model.User, error)
	authenticateFn func(ctx context.Context, username, password string) (*model.User, error)
	loginFn        func(ctx context.Context, userID string) (*model.Session, error)
	logoutFn       func(ctx context.Context, sessionID string) error
}

func (m *mockAuthService) Signup(ctx context.Context, in auth.SignupInput) (*model.User, error) {
	if m.signupFn != nil {
		return m.signupFn(ctx, in)
	}
	return &model.User{ID: "new-user", Username: in.Username}, nil
}

func (m *mockAuthService) Authenticate(ctx context.Context, username, password string) (*model.User, error) {
	if m.authenticateFn != nil {
		return m.authenticateFn(ctx, username, password)
	}
	return nil, model.NewInvalidCredentialsError()
}

func (m *mockAuthService) Login(ctx context.Context, userID string) (*model.Session, error) {
	if m.loginFn != nil {
		return m.loginFn(ctx, userID)
	}
	return &model.Session{ID: "sess-" + userID, UserID: userID, ExpiresAt: time.Now().Add(time.Hour)}, nil
}

func (m *mockAuthService) Logout(ctx context.Context, sessionID string) error {
	if m.logoutFn != nil {
		return m.logoutFn(ctx, sessionID)
	}
	return nil
}

type mockUserService struct {
	getFn           func(ctx context.Context, id string) (*model.User, error)
	statsFn         func(ctx context.Context, id string) (*model.UserStats, error)
	searchFn        func(ctx context.Context, q string) ([]*model.User, error)
	messagesFn      func(ctx context.Context, id, viewerID string, limit int) ([]model.MessageWithAuthor, error)
	followingFn     func(ctx context.Context, id string) ([]*model.User, error)
	followersFn     func(ctx context.Context, id string) ([]*model.User, error)
	likesFn         func(ctx context.Context, id, viewerID string) ([]model.MessageWithAuthor, error)
	followFn        func(ctx context.Context, currID, targetID string) error
	unfollowFn      func(ctx context.Context, currID, targetID string) error
	isFollowedByFn  func(ctx context.Context, userID, otherID string) (bool, error)
	updateProfileFn func(ctx context.Context, currID string, in model.ProfileUpdate, password string) (*model.User, error)
	deleteFn        func(ctx context.Context, currID string) error
}

// testUser はIDからユーザー名を導出したテスト用ユーザーを返す。
func testUser(id string) *model.User {
	return &model.User{
		ID:             id,
		Username:       "user-" + id,
		Email:          id + "@example.com",
		ImageURL:       model.DefaultImageURL,
		HeaderImageURL: model.DefaultHeaderImageURL,
		CreatedAt:      time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func (m *mockUserService) Get(ctx context.Context, id string) (*model.User, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return testUser(id), nil
}

func (m *mockUserService) Stats(ctx context.Context, id string) (*model.UserStats, error) {
	if m.statsFn != nil {
		return m.statsFn(ctx, id)
	}
	return &model.UserStats{}, nil
}

func (m *mockUserService) Search(ctx context.Context, q string) ([]*model.User, error) {
	if m.searchFn != nil {
		return m.searchFn(ctx, q)
	}
	return nil, nil
}

func (m *mockUserService) Messages(ctx context.Context, id, viewerID string, limit int) ([]model.MessageWithAuthor, error) {
	if m.messagesFn != nil {
		return m.messagesFn(ctx, id, viewerID, limit)
	}
	return nil, nil
}

func (m *mockUserService) Following(ctx context.Context, id string) ([]*model.User, error) {
	if m.followingFn != nil {
		return m.followingFn(ctx, id)
	}
	return nil, nil
}

func (m *mockUserService) Followers(ctx context.Context, id string) ([]*model.User, error) {
	if m.followersFn != nil {
		return m.followersFn(ctx, id)
	}
	return nil, nil
}

func (m *mockUserService) Likes(ctx context.Context, id, viewerID string) ([]model.MessageWithAuthor, error) {
	if m.likesFn != nil {
		return m.likesFn(ctx, id, viewerID)
	}
	return nil, nil
}

func (m *mockUserService) Follow(ctx context.Context, currID, targetID string) error {
	if m.followFn != nil {
		return m.followFn(ctx, currID, targetID)
	}
	return nil
}

func (m *mockUserService) Unfollow(ctx context.Context, currID, targetID string) error {
	if m.unfollowFn != nil {
		return m.unfollowFn(ctx, currID, targetID)
	}
	return nil
}

func (m *mockUserService) IsFollowing(ctx context.Context, userID, otherID string) (bool, error) {
	return false, nil
}

func (m *mockUserService) IsFollowedBy(ctx context.Context, userID, otherID string) (bool, error) {
	if m.isFollowedByFn != nil {
		return m.isFollowedByFn(ctx, userID, otherID)
	}
	return false, nil
}

func (m *mockUserService) UpdateProfile(ctx context.Context, currID string, in model.ProfileUpdate, password string) (*model.User, error) {
	if m.updateProfileFn != nil {
		return m.updateProfileFn(ctx, currID, in, password)
	}
	return testUser(currID), nil
}

func (m *mockUserService) Delete(ctx context.Context, currID string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, currID)
	}
	return nil
}

type mockMessageService struct {
	createFn     func(ctx context.Context, userID, text string) (*model.Message, error)
	getFn        func(ctx context.Context, id, viewerID string) (*model.MessageWithAuthor, error)
	deleteFn     func(ctx context.Context, currID, id string) error
	likeFn       func(ctx context.Context, currID, id string) error
	unlikeFn     func(ctx context.Context, currID, id string) error
	timelineFn   func(ctx context.Context, currID string) ([]model.MessageWithAuthor, error)
	sendDirectFn func(ctx context.Context, fromID, toID, text string) (*model.DirectMessage, error)
	inboxFn      func(ctx context.Context, userID string) ([]model.DirectMessage, error)
}

func (m *mockMessageService) Create(ctx context.Context, userID, text string) (*model.Message, error) {
	if m.createFn != nil {
		return m.createFn(ctx, userID, text)
	}
	return &model.Message{ID: "msg-1", UserID: userID, Text: text, Timestamp: time.Now()}, nil
}

func (m *mockMessageService) Get(ctx context.Context, id, viewerID string) (*model.MessageWithAuthor, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id, viewerID)
	}
	return nil, model.NewMessageNotFoundError(id)
}

func (m *mockMessageService) Delete(ctx context.Context, currID, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, currID, id)
	}
	return nil
}

func (m *mockMessageService) Like(ctx context.Context, currID, id string) error {
	if m.likeFn != nil {
		return m.likeFn(ctx, currID, id)
	}
	return nil
}

func (m *mockMessageService) Unlike(ctx context.Context, currID, id string) error {
	if m.unlikeFn != nil {
		return m.unlikeFn(ctx, currID, id)
	}
	return nil
}

func (m *mockMessageService) Timeline(ctx context.Context, currID string) ([]model.MessageWithAuthor, error) {
	if m.timelineFn != nil {
		return m.timelineFn(ctx, currID)
	}
	return nil, nil
}

func (m *mockMessageService) SendDirect(ctx context.Context, fromID, toID, text string) (*model.DirectMessage, error) {
	if m.sendDirectFn != nil {
		return m.sendDirectFn(ctx, fromID, toID, text)
	}
	return &model.DirectMessage{ID: "dm-1", FromUserID: fromID, ToUserID: toID, Text: text, ToUsername: "user-" + toID}, nil
}

func (m *mockMessageService) Inbox(ctx context.Context, userID string) ([]model.DirectMessage, error) {
	if m.inboxFn != nil {
		return m.inboxFn(ctx, userID)
	}
	return nil, nil
}

// mockSessionFinder は "sess-<userID>" 形式のセッションIDをユーザーIDに解決する。
type mockSessionFinder struct{}

func (mockSessionFinder) FindByID(ctx context.Context, id string) (*model.Session, error) {
	userID, ok := strings.CutPrefix(id, "sess-")
	if !ok {
		return nil, nil
	}
	return &model.Session{ID: id, UserID: userID, ExpiresAt: time.Now().Add(time.Hour)}, nil
}

type mockPinger struct {
	err error
}

func (m mockPinger) PingContext(ctx context.Context) error {
	return m.err
}

var (
	_ AuthServiceInterface = (*mockAuthService)(nil)
	_ UserServiceInterface = (*mockUserService)(nil)
	_ MessageServices      = (*mockMessageService)(nil)
)

// --- テスト用ルーター ---

const testSecretKey = "test-secret-key"

var (
	rendererOnce sync.Once
	testRenderer *view.Renderer
	rendererErr  error
)

func sharedRenderer(t *testing.T) *view.Renderer {
	t.Helper()
	rendererOnce.Do(func() {
		testRenderer, rendererErr = view.NewRenderer()
	})
	require.NoError(t, rendererErr)
	return testRenderer
}

// testEnv はモックサービスと実テンプレートで構成したルーターを保持する。
type testEnv struct {
	auth     *mockAuthService
	users    *mockUserService
	messages *mockMessageService
	flasher  *middleware.Flasher
	router   http.Handler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	rl := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())
	t.Cleanup(rl.Stop)

	env := &testEnv{
		auth:     &mockAuthService{},
		users:    &mockUserService{},
		messages: &mockMessageService{},
		flasher:  middleware.NewFlasher(testSecretKey, middleware.CookieConfig{}),
	}
	env.router = NewRouter(&RouterDeps{
		SessionFinder:  mockSessionFinder{},
		RateLimiter:    rl,
		Flasher:        env.flasher,
		CSRF:           middleware.CSRFConfig{Enabled: false},
		Renderer:       sharedRenderer(t),
		BaseURL:        "http://warbler.test",
		Session:        SessionConfig{MaxAge: 3600},
		AuthService:    env.auth,
		UserService:    env.users,
		MessageService: env.messages,
		HealthChecker:  mockPinger{},
	})
	return env
}

// newFormRequest はリクエストを組み立てる。userIDが空でなければそのユーザーとしてログインした状態にする。
func newFormRequest(method, target string, form url.Values, userID string) *http.Request {
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if userID != "" {
		req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: "sess-" + userID})
	}
	return req
}

func serve(e *testEnv, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) do(method, target string, form url.Values, userID string) *httptest.ResponseRecorder {
	return serve(e, newFormRequest(method, target, form, userID))
}

// flashOf はレスポンスで設定されたフラッシュメッセージを取り出す。
func (e *testEnv) flashOf(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range w.Result().Cookies() {
		if c.Name == "flash" && c.Value != "" {
			req.AddCookie(c)
		}
	}
	flashes := e.flasher.Pop(httptest.NewRecorder(), req)
	if len(flashes) == 0 {
		return ""
	}
	return flashes[len(flashes)-1].Message
}

func findCookie(w *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}
