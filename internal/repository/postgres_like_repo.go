package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/hitoshi/warbler/internal/model"
)

// PostgresLikeRepo はPostgreSQLを使用したいいねリポジトリ。
type PostgresLikeRepo struct {
	db *sql.DB
}

// NewPostgresLikeRepo はPostgresLikeRepoを生成する。
func NewPostgresLikeRepo(db *sql.DB) *PostgresLikeRepo {
	return &PostgresLikeRepo{db: db}
}

// Like はいいねを冪等に作成する。
// UNIQUE(user_id, message_id)制約を利用したINSERT ON CONFLICT DO NOTHINGで実装する。
func (r *PostgresLikeRepo) Like(ctx context.Context, userID, messageID string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO likes (id, user_id, message_id)
		 VALUES ($1, $2, $3)
		 ON CONFLICT ON CONSTRAINT likes_user_message_key DO NOTHING`,
		uuid.New().String(), userID, messageID,
	)
	if err != nil {
		return wrapError(err, "failed to like message")
	}
	return nil
}

// Unlike はいいねを削除する。
func (r *PostgresLikeRepo) Unlike(ctx context.Context, userID, messageID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM likes WHERE user_id = $1 AND message_id = $2`,
		userID, messageID,
	)
	if err != nil {
		return fmt.Errorf("failed to unlike message: %w", err)
	}
	return nil
}

// IsLiked はユーザーがメッセージにいいねしているかを返す。
func (r *PostgresLikeRepo) IsLiked(ctx context.Context, userID, messageID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM likes WHERE user_id = $1 AND message_id = $2)`,
		userID, messageID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check like: %w", err)
	}
	return exists, nil
}

// ListLikedMessages はユーザーがいいねしたメッセージを新しいいいね順で返す。
func (r *PostgresLikeRepo) ListLikedMessages(ctx context.Context, userID, viewerID string) ([]model.MessageWithAuthor, error) {
	messages, err := queryMessagesWithAuthor(ctx, r.db,
		messageWithAuthorSelect+`
		JOIN likes lk ON lk.message_id = m.id
		WHERE lk.user_id = $2
		ORDER BY lk.created_at DESC`,
		viewerID, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list liked messages: %w", err)
	}
	return messages, nil
}

// compile-time interface check
var _ LikeRepository = (*PostgresLikeRepo)(nil)
