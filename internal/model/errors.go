package model

import "fmt"

// AppError はアプリケーションの統一エラーを表す。
// Fieldが設定されている場合、フォームの該当フィールドにメッセージを表示する。
type AppError struct {
	Code     string // エラーコード
	Message  string // ユーザー向けメッセージ
	Category string // カテゴリ: auth, validation, user, message, system
	Field    string // 関連するフォームフィールド（任意）
}

// Error はerrorインターフェースを実装する。
func (e *AppError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidInput       = "INVALID_INPUT"
	ErrCodeUsernameTaken      = "USERNAME_TAKEN"
	ErrCodeEmailTaken         = "EMAIL_TAKEN"
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeUserNotFound       = "USER_NOT_FOUND"
	ErrCodeMessageNotFound    = "MESSAGE_NOT_FOUND"
	ErrCodeForbidden          = "FORBIDDEN"
	ErrCodeCannotFollowSelf   = "CANNOT_FOLLOW_SELF"
	ErrCodeCannotLikeOwn      = "CANNOT_LIKE_OWN"
	ErrCodeInvalidImageURL    = "INVALID_IMAGE_URL"
)

// NewInvalidInputError は入力値不正エラーを生成する。
func NewInvalidInputError(field, reason string) *AppError {
	return &AppError{
		Code:     ErrCodeInvalidInput,
		Message:  reason,
		Category: "validation",
		Field:    field,
	}
}

// NewUsernameTakenError はユーザー名重複エラーを生成する。
func NewUsernameTakenError() *AppError {
	return &AppError{
		Code:     ErrCodeUsernameTaken,
		Message:  "Username already taken",
		Category: "validation",
		Field:    "username",
	}
}

// NewEmailTakenError はメールアドレス重複エラーを生成する。
func NewEmailTakenError() *AppError {
	return &AppError{
		Code:     ErrCodeEmailTaken,
		Message:  "Email already registered",
		Category: "validation",
		Field:    "email",
	}
}

// NewInvalidCredentialsError は認証失敗エラーを生成する。
// ユーザー不在とパスワード不一致を区別しない。
func NewInvalidCredentialsError() *AppError {
	return &AppError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "Invalid credentials.",
		Category: "auth",
		Field:    "password",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError(userID string) *AppError {
	return &AppError{
		Code:     ErrCodeUserNotFound,
		Message:  fmt.Sprintf("User not found: %s", userID),
		Category: "user",
	}
}

// NewMessageNotFoundError はメッセージが見つからない場合のエラーを生成する。
func NewMessageNotFoundError(messageID string) *AppError {
	return &AppError{
		Code:     ErrCodeMessageNotFound,
		Message:  fmt.Sprintf("Message not found: %s", messageID),
		Category: "message",
	}
}

// NewForbiddenError は権限のない操作に対するエラーを生成する。
func NewForbiddenError() *AppError {
	return &AppError{
		Code:     ErrCodeForbidden,
		Message:  "Access unauthorized.",
		Category: "auth",
	}
}

// NewCannotFollowSelfError は自分自身をフォローしようとした場合のエラーを生成する。
func NewCannotFollowSelfError() *AppError {
	return &AppError{
		Code:     ErrCodeCannotFollowSelf,
		Message:  "You cannot follow yourself.",
		Category: "user",
	}
}

// NewCannotLikeOwnError は自分のメッセージにいいねしようとした場合のエラーを生成する。
func NewCannotLikeOwnError() *AppError {
	return &AppError{
		Code:     ErrCodeCannotLikeOwn,
		Message:  "You cannot like your own message.",
		Category: "message",
	}
}

// NewInvalidImageURLError は画像URLが利用できない場合のエラーを生成する。
func NewInvalidImageURLError(field, reason string) *AppError {
	return &AppError{
		Code:     ErrCodeInvalidImageURL,
		Message:  fmt.Sprintf("Invalid image URL: %s", reason),
		Category: "validation",
		Field:    field,
	}
}
