package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/warbler/internal/model"
)

// messageWithAuthorSelect はメッセージに投稿者情報といいね状態を結合するSELECT句。
// 閲覧ユーザーIDは常に$1で渡す。空文字列の場合はliked_by_viewerが常にfalseになる。
const messageWithAuthorSelect = `
	SELECT m.id, m.user_id, m.text, m.timestamp, u.username, u.image_url,
		(SELECT count(*) FROM likes l WHERE l.message_id = m.id) AS like_count,
		EXISTS (SELECT 1 FROM likes l WHERE l.message_id = m.id AND l.user_id::text = $1) AS liked_by_viewer
	FROM messages m
	JOIN users u ON u.id = m.user_id`

// PostgresMessageRepo はPostgreSQLを使用したメッセージリポジトリ。
type PostgresMessageRepo struct {
	db *sql.DB
}

// NewPostgresMessageRepo はPostgresMessageRepoを生成する。
func NewPostgresMessageRepo(db *sql.DB) *PostgresMessageRepo {
	return &PostgresMessageRepo{db: db}
}

func scanMessageWithAuthor(s rowScanner) (model.MessageWithAuthor, error) {
	var m model.MessageWithAuthor
	err := s.Scan(
		&m.ID, &m.UserID, &m.Text, &m.Timestamp,
		&m.Username, &m.ImageURL, &m.LikeCount, &m.LikedByViewer,
	)
	return m, err
}

// queryMessagesWithAuthor はmessageWithAuthorSelectを使った一覧クエリを実行する。
// db引数を受け取るのはLikeRepoからも利用するため。
func queryMessagesWithAuthor(ctx context.Context, db *sql.DB, query string, args ...any) ([]model.MessageWithAuthor, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []model.MessageWithAuthor
	for rows.Next() {
		m, err := scanMessageWithAuthor(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// Create はメッセージを作成する。
func (r *PostgresMessageRepo) Create(ctx context.Context, msg *model.Message) error {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO messages (id, user_id, text, timestamp) VALUES ($1, $2, $3, $4)`,
		msg.ID, msg.UserID, msg.Text, msg.Timestamp,
	)
	if err != nil {
		return wrapError(err, "failed to insert message")
	}
	return nil
}

// FindByID は指定IDのメッセージを投稿者情報付きで取得する。見つからない場合はnilを返す。
func (r *PostgresMessageRepo) FindByID(ctx context.Context, id, viewerID string) (*model.MessageWithAuthor, error) {
	if !isUUID(id) {
		return nil, nil
	}
	m, err := scanMessageWithAuthor(r.db.QueryRowContext(ctx,
		messageWithAuthorSelect+` WHERE m.id = $2`,
		viewerID, id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find message by ID: %w", err)
	}
	return &m, nil
}

// ListByUser は指定ユーザーのメッセージをtimestamp降順で返す。
func (r *PostgresMessageRepo) ListByUser(ctx context.Context, userID, viewerID string, limit int) ([]model.MessageWithAuthor, error) {
	messages, err := queryMessagesWithAuthor(ctx, r.db,
		messageWithAuthorSelect+`
		WHERE m.user_id = $2
		ORDER BY m.timestamp DESC
		LIMIT $3`,
		viewerID, userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages by user: %w", err)
	}
	return messages, nil
}

// Timeline は指定ユーザー自身とフォロー中ユーザーのメッセージをtimestamp降順で返す。
func (r *PostgresMessageRepo) Timeline(ctx context.Context, userID string, limit int) ([]model.MessageWithAuthor, error) {
	messages, err := queryMessagesWithAuthor(ctx, r.db,
		messageWithAuthorSelect+`
		WHERE m.user_id = $1::uuid
			OR m.user_id IN (SELECT followee_id FROM follows WHERE follower_id = $1::uuid)
		ORDER BY m.timestamp DESC
		LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load timeline: %w", err)
	}
	return messages, nil
}

// Delete は指定IDのメッセージを削除する。
func (r *PostgresMessageRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM messages WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return model.NewMessageNotFoundError(id)
	}
	return nil
}

// CountByUser は指定ユーザーのメッセージ数を返す。
func (r *PostgresMessageRepo) CountByUser(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT count(*) FROM messages WHERE user_id = $1`,
		userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count messages: %w", err)
	}
	return count, nil
}

// compile-time interface check
var _ MessageRepository = (*PostgresMessageRepo)(nil)
