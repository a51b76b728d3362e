// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/warbler/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// Create はユーザーを作成する。IDとCreatedAtが空の場合はここで採番する。
	// username/emailの重複はUSERNAME_TAKEN/EMAIL_TAKENのAppErrorとして返す。
	Create(ctx context.Context, user *model.User) error

	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByUsername はユーザー名でユーザーを取得する。見つからない場合はnilを返す。
	FindByUsername(ctx context.Context, username string) (*model.User, error)

	// Search はユーザー名の部分一致（大文字小文字を区別しない）でユーザーを検索する。
	// qが空の場合は全ユーザーを返す。
	Search(ctx context.Context, q string) ([]*model.User, error)

	// Update はプロフィール項目を更新する。パスワードハッシュは変更しない。
	Update(ctx context.Context, user *model.User) error

	// DeleteByID は指定IDのユーザーを削除する。
	// messages、follows、likes、direct_messages、sessionsはCASCADE削除される。
	DeleteByID(ctx context.Context, id string) error

	// ListFollowing は指定ユーザーがフォローしているユーザー一覧を返す。
	ListFollowing(ctx context.Context, userID string) ([]*model.User, error)

	// ListFollowers は指定ユーザーをフォローしているユーザー一覧を返す。
	ListFollowers(ctx context.Context, userID string) ([]*model.User, error)

	// CountStats はプロフィールに表示する集計値を返す。
	CountStats(ctx context.Context, userID string) (*model.UserStats, error)
}

// FollowRepository はフォロー関係の永続化インターフェース。
type FollowRepository interface {
	// Follow はfollower → followeeの関係を作成する。既に存在する場合は何もしない。
	Follow(ctx context.Context, followerID, followeeID string) error

	// Unfollow はfollower → followeeの関係を削除する。存在しない場合は何もしない。
	Unfollow(ctx context.Context, followerID, followeeID string) error

	// IsFollowing はfollowerがfolloweeをフォローしているかを返す。
	IsFollowing(ctx context.Context, followerID, followeeID string) (bool, error)
}

// MessageRepository はメッセージの永続化インターフェース。
// 一覧系はviewerIDに対するいいね状態を結合して返す。viewerIDが空の場合は常にfalseになる。
type MessageRepository interface {
	// Create はメッセージを作成する。IDとTimestampが空の場合はここで採番する。
	Create(ctx context.Context, msg *model.Message) error

	// FindByID は指定IDのメッセージを投稿者情報付きで取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id, viewerID string) (*model.MessageWithAuthor, error)

	// ListByUser は指定ユーザーのメッセージをtimestamp降順で返す。
	ListByUser(ctx context.Context, userID, viewerID string, limit int) ([]model.MessageWithAuthor, error)

	// Timeline は指定ユーザー自身とフォロー中ユーザーのメッセージをtimestamp降順で返す。
	Timeline(ctx context.Context, userID string, limit int) ([]model.MessageWithAuthor, error)

	// Delete は指定IDのメッセージを削除する。関連するlikesはCASCADE削除される。
	Delete(ctx context.Context, id string) error

	// CountByUser は指定ユーザーのメッセージ数を返す。
	CountByUser(ctx context.Context, userID string) (int, error)
}

// LikeRepository はいいねの永続化インターフェース。
type LikeRepository interface {
	// Like はいいねを作成する。既に存在する場合は何もしない。
	Like(ctx context.Context, userID, messageID string) error

	// Unlike はいいねを削除する。存在しない場合は何もしない。
	Unlike(ctx context.Context, userID, messageID string) error

	// IsLiked はユーザーがメッセージにいいねしているかを返す。
	IsLiked(ctx context.Context, userID, messageID string) (bool, error)

	// ListLikedMessages はユーザーがいいねしたメッセージをいいねした順（新しい順）で返す。
	ListLikedMessages(ctx context.Context, userID, viewerID string) ([]model.MessageWithAuthor, error)
}

// DirectMessageRepository はダイレクトメッセージの永続化インターフェース。
type DirectMessageRepository interface {
	// Create はダイレクトメッセージを作成する。
	Create(ctx context.Context, dm *model.DirectMessage) error

	// ListForUser はユーザーが送信または受信したダイレクトメッセージを新しい順で返す。
	ListForUser(ctx context.Context, userID string, limit int) ([]model.DirectMessage, error)
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
	// DeleteExpired は期限切れのセッションを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context) (int64, error)
}

// rowScanner は*sql.Rowと*sql.Rowsの共通インターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}
