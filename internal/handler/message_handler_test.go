package handler

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hitoshi/warbler/internal/model"
)

func TestMessageHandler_NewForm_Renders(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodGet, "/messages/new", nil, "u1")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `action="/messages/new"`)
}

func TestMessageHandler_Create_RedirectsToProfile(t *testing.T) {
	env := newTestEnv(t)
	var gotUser, gotText string
	env.messages.createFn = func(ctx context.Context, userID, text string) (*model.Message, error) {
		gotUser, gotText = userID, text
		return &model.Message{ID: "m1", UserID: userID, Text: text}, nil
	}

	w := env.do(http.MethodPost, "/messages/new", url.Values{"text": {"Hello"}}, "u1")

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/users/u1", w.Header().Get("Location"))
	assert.Equal(t, "u1", gotUser)
	assert.Equal(t, "Hello", gotText)
}

func TestMessageHandler_Create_TooLong_ReRenders(t *testing.T) {
	env := newTestEnv(t)
	called := false
	env.messages.createFn = func(ctx context.Context, userID, text string) (*model.Message, error) {
		called = true
		return nil, nil
	}

	w := env.do(http.MethodPost, "/messages/new", url.Values{"text": {strings.Repeat("a", model.MaxMessageLength+1)}}, "u1")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.False(t, called)
	assert.Contains(t, w.Body.String(), "Field cannot be longer than 140 characters.")
}

func TestMessageHandler_Create_LoggedOut_Unauthorized(t *testing.T) {
	env := newTestEnv(t)
	called := false
	env.messages.createFn = func(ctx context.Context, userID, text string) (*model.Message, error) {
		called = true
		return nil, nil
	}

	w := env.do(http.MethodPost, "/messages/new", url.Values{"text": {"Hello"}}, "")

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))
	assert.Equal(t, "Access unauthorized.", env.flashOf(t, w))
	assert.False(t, called)
}

func TestMessageHandler_Show_RendersMessage(t *testing.T) {
	env := newTestEnv(t)
	env.messages.getFn = func(ctx context.Context, id, viewerID string) (*model.MessageWithAuthor, error) {
		return &model.MessageWithAuthor{
			Message:  model.Message{ID: id, UserID: "u1", Text: "a test message", Timestamp: time.Now()},
			Username: "user-u1",
		}, nil
	}

	w := env.do(http.MethodGet, "/messages/m1", nil, "u1")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "a test message")
	assert.Contains(t, w.Body.String(), `action="/messages/m1/delete"`)
}

func TestMessageHandler_Show_Missing_Returns404(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodGet, "/messages/missing", nil, "u1")

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMessageHandler_Delete_Owner(t *testing.T) {
	env := newTestEnv(t)
	var gotCurr, gotID string
	env.messages.deleteFn = func(ctx context.Context, currID, id string) error {
		gotCurr, gotID = currID, id
		return nil
	}

	w := env.do(http.MethodPost, "/messages/m1/delete", url.Values{}, "u1")

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/users/u1", w.Header().Get("Location"))
	assert.Equal(t, "u1", gotCurr)
	assert.Equal(t, "m1", gotID)
}

func TestMessageHandler_Delete_NotOwner_Unauthorized(t *testing.T) {
	env := newTestEnv(t)
	env.messages.deleteFn = func(ctx context.Context, currID, id string) error {
		return model.NewForbiddenError()
	}

	w := env.do(http.MethodPost, "/messages/m1/delete", url.Values{}, "u2")

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))
	assert.Equal(t, "Access unauthorized.", env.flashOf(t, w))
}

func TestMessageHandler_Like_RedirectsBack(t *testing.T) {
	env := newTestEnv(t)
	var liked string
	env.messages.likeFn = func(ctx context.Context, currID, id string) error {
		liked = id
		return nil
	}

	req := newFormRequest(http.MethodPost, "/messages/m1/like", url.Values{}, "u2")
	req.Header.Set("Referer", "http://example.com/users/u1?tab=messages")
	w := serve(env, req)

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/users/u1?tab=messages", w.Header().Get("Location"))
	assert.Equal(t, "m1", liked)
}

func TestMessageHandler_Like_ForeignReferer_RedirectsHome(t *testing.T) {
	env := newTestEnv(t)

	req := newFormRequest(http.MethodPost, "/messages/m1/like", url.Values{}, "u2")
	req.Header.Set("Referer", "https://evil.example.org/phish")
	w := serve(env, req)

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))
}

func TestMessageHandler_Like_RefererPathToOtherHost_RedirectsHome(t *testing.T) {
	tests := []struct {
		name    string
		referer string
	}{
		{name: "二重スラッシュ", referer: "http://example.com//evil.test/path"},
		{name: "バックスラッシュ", referer: "http://example.com/\\evil.test/path"},
		{name: "ホストなしの二重スラッシュ", referer: "//evil.test/path"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)

			req := newFormRequest(http.MethodPost, "/messages/m1/like", url.Values{}, "u2")
			req.Header.Set("Referer", tt.referer)
			w := serve(env, req)

			assert.Equal(t, http.StatusFound, w.Code)
			assert.Equal(t, "/", w.Header().Get("Location"))
		})
	}
}

func TestMessageHandler_Like_OwnMessage_Flashes(t *testing.T) {
	env := newTestEnv(t)
	env.messages.likeFn = func(ctx context.Context, currID, id string) error {
		return model.NewCannotLikeOwnError()
	}

	w := env.do(http.MethodPost, "/messages/m1/like", url.Values{}, "u1")

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "You cannot like your own message.", env.flashOf(t, w))
}

func TestMessageHandler_Unlike(t *testing.T) {
	env := newTestEnv(t)
	var unliked string
	env.messages.unlikeFn = func(ctx context.Context, currID, id string) error {
		unliked = id
		return nil
	}

	w := env.do(http.MethodPost, "/messages/m1/unlike", url.Values{}, "u2")

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "m1", unliked)
}
