package model

import "time"

// MaxMessageLength はメッセージ本文の最大文字数。
const MaxMessageLength = 140

// Message はユーザーが投稿した短いメッセージ（warble）を表す。
type Message struct {
	ID        string
	UserID    string
	Text      string
	Timestamp time.Time
}

// MessageWithAuthor はメッセージと投稿者情報、いいね状態を結合したモデル。
// 閲覧ユーザーごとのLikedByViewerはlikesテーブルとLEFT JOINして取得される。
type MessageWithAuthor struct {
	Message
	Username      string
	ImageURL      string
	LikeCount     int
	LikedByViewer bool
}

// Like はユーザーによるメッセージへのいいねを表す。
type Like struct {
	ID        string
	UserID    string
	MessageID string
	CreatedAt time.Time
}

// DirectMessage はユーザー間のダイレクトメッセージを表す。
type DirectMessage struct {
	ID         string
	FromUserID string
	ToUserID   string
	Text       string
	Timestamp  time.Time

	// 一覧表示用に結合される相手ユーザー名
	FromUsername string
	ToUsername   string
}
