// Package form はHTMLフォームの入力値の取り出しと検証を行う。
// 各フォームのValidateはフィールドごとのエラーメッセージをErrorsに蓄積する。
package form

import (
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/asaskevich/govalidator"

	"github.com/hitoshi/warbler/internal/model"
)

// MinPasswordLength はパスワードの最小文字数。
const MinPasswordLength = 6

// 検証エラーメッセージ
const (
	msgRequired     = "This field is required."
	msgInvalidEmail = "Invalid email address."
	msgInvalidURL   = "Invalid URL."
	msgTooLong      = "Field cannot be longer than %d characters."
	msgPasswordLen  = "Field must be at least 6 characters long."
)

// Errors はフィールド名ごとの検証エラーメッセージ。
type Errors map[string][]string

// Add はフィールドにエラーメッセージを追加する。
func (e Errors) Add(field, message string) {
	e[field] = append(e[field], message)
}

// Get はフィールドの最初のエラーメッセージを返す。エラーがない場合は空文字列。
func (e Errors) Get(field string) string {
	if msgs := e[field]; len(msgs) > 0 {
		return msgs[0]
	}
	return ""
}

// Any はエラーが1件以上あるかを返す。
func (e Errors) Any() bool {
	return len(e) > 0
}

func required(errs Errors, field, value string) bool {
	if strings.TrimSpace(value) == "" {
		errs.Add(field, msgRequired)
		return false
	}
	return true
}

func maxLength(errs Errors, field, value string, limit int) {
	if utf8.RuneCountInString(value) > limit {
		errs.Add(field, fmt.Sprintf(msgTooLong, limit))
	}
}

func minPassword(errs Errors, field, value string) {
	if utf8.RuneCountInString(value) < MinPasswordLength {
		errs.Add(field, msgPasswordLen)
	}
}

func email(errs Errors, field, value string) {
	if !govalidator.IsEmail(value) {
		errs.Add(field, msgInvalidEmail)
	}
}

// optionalURL は空文字列を許容し、値がある場合はhttp(s)の絶対URLかを検証する。
func optionalURL(errs Errors, field, value string) {
	if value == "" {
		return
	}
	if !govalidator.IsRequestURL(value) {
		errs.Add(field, msgInvalidURL)
		return
	}
	u, err := url.Parse(value)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		errs.Add(field, msgInvalidURL)
	}
}

func trimmed(v url.Values, key string) string {
	return strings.TrimSpace(v.Get(key))
}

// MessageForm はメッセージ投稿フォーム。
type MessageForm struct {
	Text   string
	Errors Errors
}

// NewMessageForm はフォーム値からMessageFormを生成する。
func NewMessageForm(v url.Values) *MessageForm {
	return &MessageForm{Text: trimmed(v, "text"), Errors: Errors{}}
}

// Validate は本文が必須かつ140文字以内であることを検証する。
func (f *MessageForm) Validate() bool {
	if required(f.Errors, "text", f.Text) {
		maxLength(f.Errors, "text", f.Text, model.MaxMessageLength)
	}
	return !f.Errors.Any()
}

// UserAddForm はサインアップフォーム。
type UserAddForm struct {
	Username string
	Email    string
	Password string
	ImageURL string
	Errors   Errors
}

// NewUserAddForm はフォーム値からUserAddFormを生成する。パスワードは前後の空白も保持する。
func NewUserAddForm(v url.Values) *UserAddForm {
	return &UserAddForm{
		Username: trimmed(v, "username"),
		Email:    trimmed(v, "email"),
		Password: v.Get("password"),
		ImageURL: trimmed(v, "image_url"),
		Errors:   Errors{},
	}
}

// Validate はサインアップ入力を検証する。
func (f *UserAddForm) Validate() bool {
	if required(f.Errors, "username", f.Username) {
		maxLength(f.Errors, "username", f.Username, 64)
	}
	if required(f.Errors, "email", f.Email) {
		email(f.Errors, "email", f.Email)
	}
	minPassword(f.Errors, "password", f.Password)
	optionalURL(f.Errors, "image_url", f.ImageURL)
	return !f.Errors.Any()
}

// LoginForm はログインフォーム。
type LoginForm struct {
	Username string
	Password string
	Errors   Errors
}

// NewLoginForm はフォーム値からLoginFormを生成する。
func NewLoginForm(v url.Values) *LoginForm {
	return &LoginForm{
		Username: trimmed(v, "username"),
		Password: v.Get("password"),
		Errors:   Errors{},
	}
}

// Validate はログイン入力を検証する。
func (f *LoginForm) Validate() bool {
	required(f.Errors, "username", f.Username)
	minPassword(f.Errors, "password", f.Password)
	return !f.Errors.Any()
}

// EditProfileForm はプロフィール編集フォーム。変更の確定には現在のパスワードが必要。
type EditProfileForm struct {
	Username       string
	Email          string
	ImageURL       string
	HeaderImageURL string
	Bio            string
	Location       string
	Password       string
	Errors         Errors
}

// NewEditProfileForm はフォーム値からEditProfileFormを生成する。
func NewEditProfileForm(v url.Values) *EditProfileForm {
	return &EditProfileForm{
		Username:       trimmed(v, "username"),
		Email:          trimmed(v, "email"),
		ImageURL:       trimmed(v, "image_url"),
		HeaderImageURL: trimmed(v, "header_image_url"),
		Bio:            trimmed(v, "bio"),
		Location:       trimmed(v, "location"),
		Password:       v.Get("password"),
		Errors:         Errors{},
	}
}

// EditProfileFormFromUser は現在のプロフィールで初期化したフォームを返す。
// デフォルト画像は空欄として表示する。
func EditProfileFormFromUser(u *model.User) *EditProfileForm {
	f := &EditProfileForm{
		Username:       u.Username,
		Email:          u.Email,
		ImageURL:       u.ImageURL,
		HeaderImageURL: u.HeaderImageURL,
		Bio:            u.Bio,
		Location:       u.Location,
		Errors:         Errors{},
	}
	if f.ImageURL == model.DefaultImageURL {
		f.ImageURL = ""
	}
	if f.HeaderImageURL == model.DefaultHeaderImageURL {
		f.HeaderImageURL = ""
	}
	return f
}

// Validate はプロフィール編集入力を検証する。
func (f *EditProfileForm) Validate() bool {
	if required(f.Errors, "username", f.Username) {
		maxLength(f.Errors, "username", f.Username, 64)
	}
	if required(f.Errors, "email", f.Email) {
		email(f.Errors, "email", f.Email)
	}
	optionalURL(f.Errors, "image_url", f.ImageURL)
	optionalURL(f.Errors, "header_image_url", f.HeaderImageURL)
	maxLength(f.Errors, "location", f.Location, 64)
	maxLength(f.Errors, "bio", f.Bio, 500)
	minPassword(f.Errors, "password", f.Password)
	return !f.Errors.Any()
}

// ProfileUpdate はフォームの値をドメインの更新入力に変換する。
func (f *EditProfileForm) ProfileUpdate() model.ProfileUpdate {
	return model.ProfileUpdate{
		Username:       f.Username,
		Email:          f.Email,
		ImageURL:       f.ImageURL,
		HeaderImageURL: f.HeaderImageURL,
		Bio:            f.Bio,
		Location:       f.Location,
	}
}

// DirectMessageForm はダイレクトメッセージ送信フォーム。
type DirectMessageForm struct {
	ToUserID string
	Text     string
	Errors   Errors
}

// NewDirectMessageForm はフォーム値からDirectMessageFormを生成する。
func NewDirectMessageForm(v url.Values) *DirectMessageForm {
	return &DirectMessageForm{
		ToUserID: trimmed(v, "to_user_id"),
		Text:     trimmed(v, "text"),
		Errors:   Errors{},
	}
}

// Validate は宛先と本文を検証する。
func (f *DirectMessageForm) Validate() bool {
	if required(f.Errors, "to_user_id", f.ToUserID) && !govalidator.IsUUID(f.ToUserID) {
		f.Errors.Add("to_user_id", "Unknown recipient.")
	}
	if required(f.Errors, "text", f.Text) {
		maxLength(f.Errors, "text", f.Text, model.MaxMessageLength)
	}
	return !f.Errors.Any()
}
