package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/warbler/internal/model"
)

// PostgresDirectMessageRepo はPostgreSQLを使用したダイレクトメッセージリポジトリ。
type PostgresDirectMessageRepo struct {
	db *sql.DB
}

// NewPostgresDirectMessageRepo はPostgresDirectMessageRepoを生成する。
func NewPostgresDirectMessageRepo(db *sql.DB) *PostgresDirectMessageRepo {
	return &PostgresDirectMessageRepo{db: db}
}

// Create はダイレクトメッセージを作成する。
func (r *PostgresDirectMessageRepo) Create(ctx context.Context, dm *model.DirectMessage) error {
	if dm.ID == "" {
		dm.ID = uuid.New().String()
	}
	if dm.Timestamp.IsZero() {
		dm.Timestamp = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO direct_messages (id, from_user_id, to_user_id, text, timestamp)
		 VALUES ($1, $2, $3, $4, $5)`,
		dm.ID, dm.FromUserID, dm.ToUserID, dm.Text, dm.Timestamp,
	)
	if err != nil {
		return wrapError(err, "failed to insert direct message")
	}
	return nil
}

// ListForUser はユーザーが送信または受信したダイレクトメッセージを新しい順で返す。
func (r *PostgresDirectMessageRepo) ListForUser(ctx context.Context, userID string, limit int) ([]model.DirectMessage, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT d.id, d.from_user_id, d.to_user_id, d.text, d.timestamp, fu.username, tu.username
		 FROM direct_messages d
		 JOIN users fu ON fu.id = d.from_user_id
		 JOIN users tu ON tu.id = d.to_user_id
		 WHERE d.from_user_id = $1 OR d.to_user_id = $1
		 ORDER BY d.timestamp DESC
		 LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list direct messages: %w", err)
	}
	defer rows.Close()

	var dms []model.DirectMessage
	for rows.Next() {
		var dm model.DirectMessage
		if err := rows.Scan(
			&dm.ID, &dm.FromUserID, &dm.ToUserID, &dm.Text, &dm.Timestamp,
			&dm.FromUsername, &dm.ToUsername,
		); err != nil {
			return nil, fmt.Errorf("failed to scan direct message: %w", err)
		}
		dms = append(dms, dm)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate direct messages: %w", err)
	}
	return dms, nil
}

// compile-time interface check
var _ DirectMessageRepository = (*PostgresDirectMessageRepo)(nil)
