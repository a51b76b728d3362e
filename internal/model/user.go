// Package model はドメインモデルを定義する。
package model

import (
	"fmt"
	"time"
)

const (
	// DefaultImageURL はプロフィール画像未指定時の画像URL。
	DefaultImageURL = "/static/images/default-pic.svg"
	// DefaultHeaderImageURL はヘッダー画像未指定時の画像URL。
	DefaultHeaderImageURL = "/static/images/warbler-hero.svg"
)

// User はWarblerのユーザーを表す。
type User struct {
	ID             string
	Username       string
	Email          string
	PasswordHash   string
	ImageURL       string
	HeaderImageURL string
	Bio            string
	Location       string
	CreatedAt      time.Time
}

// String はユーザーをデバッグ表示用の文字列に変換する。
func (u *User) String() string {
	return fmt.Sprintf("<User #%s: %s, %s>", u.ID, u.Username, u.Email)
}

// UserStats はプロフィールに表示する集計値。
type UserStats struct {
	Messages  int
	Following int
	Followers int
	Likes     int
}

// ProfileUpdate はプロフィール編集の入力値。
// 空文字列の画像URLはデフォルト画像に戻すことを意味する。
type ProfileUpdate struct {
	Username       string
	Email          string
	ImageURL       string
	HeaderImageURL string
	Bio            string
	Location       string
}

// Follow はユーザー間のフォロー関係（follower → followee の有向辺）を表す。
type Follow struct {
	FollowerID string
	FolloweeID string
	CreatedAt  time.Time
}

// Session はユーザーのログインセッションを表す。
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}
