package middleware

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
)

const flashCookieName = "flash"

// フラッシュメッセージのカテゴリ。テンプレートのCSSクラスとしてそのまま使う。
const (
	FlashSuccess = "success"
	FlashDanger  = "danger"
	FlashInfo    = "info"
)

// Flash は次の画面表示で一度だけ表示するメッセージ。
type Flash struct {
	Category string `json:"c"`
	Message  string `json:"m"`
}

// Flasher はSECRET_KEYで署名したCookieにフラッシュメッセージを保持する。
type Flasher struct {
	key    []byte
	cookie CookieConfig
}

// NewFlasher はFlasherを生成する。
func NewFlasher(secretKey string, cookie CookieConfig) *Flasher {
	return &Flasher{key: []byte(secretKey), cookie: cookie}
}

// Set はフラッシュメッセージをCookieに書き込む。
// 同一レスポンス内で複数回呼ばれた場合は最後の呼び出しが有効になる。
func (f *Flasher) Set(w http.ResponseWriter, category, message string) {
	payload, err := json.Marshal([]Flash{{Category: category, Message: message}})
	if err != nil {
		slog.Error("failed to encode flash", slog.String("error", err.Error()))
		return
	}
	value := base64.RawURLEncoding.EncodeToString(payload)

	http.SetCookie(w, &http.Cookie{
		Name:     flashCookieName,
		Value:    value + "." + f.sign(value),
		Path:     "/",
		Domain:   f.cookie.Domain,
		HttpOnly: true,
		Secure:   f.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Pop はリクエストのフラッシュメッセージを取り出し、Cookieを削除する。
// 署名が一致しないCookieは無視する。
func (f *Flasher) Pop(w http.ResponseWriter, r *http.Request) []Flash {
	cookie, err := r.Cookie(flashCookieName)
	if err != nil || cookie.Value == "" {
		return nil
	}

	http.SetCookie(w, &http.Cookie{
		Name:     flashCookieName,
		Value:    "",
		Path:     "/",
		Domain:   f.cookie.Domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   f.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})

	value, sig, ok := strings.Cut(cookie.Value, ".")
	if !ok || !hmac.Equal([]byte(sig), []byte(f.sign(value))) {
		slog.Warn("flash cookie signature mismatch")
		return nil
	}

	payload, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return nil
	}
	var flashes []Flash
	if err := json.Unmarshal(payload, &flashes); err != nil {
		return nil
	}
	return flashes
}

func (f *Flasher) sign(value string) string {
	mac := hmac.New(sha256.New, f.key)
	mac.Write([]byte(value))
	return hex.EncodeToString(mac.Sum(nil))
}
