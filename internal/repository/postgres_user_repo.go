package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/warbler/internal/model"
)

const userColumns = `u.id, u.username, u.email, u.password_hash, u.image_url, u.header_image_url, u.bio, u.location, u.created_at`

// likeEscaper はILIKEパターンのメタ文字をエスケープする。
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

func scanUser(s rowScanner) (*model.User, error) {
	user := &model.User{}
	err := s.Scan(
		&user.ID, &user.Username, &user.Email, &user.PasswordHash,
		&user.ImageURL, &user.HeaderImageURL, &user.Bio, &user.Location, &user.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (r *PostgresUserRepo) findOne(ctx context.Context, where string, arg any) (*model.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users u WHERE `+where,
		arg,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (r *PostgresUserRepo) queryUsers(ctx context.Context, query string, args ...any) ([]*model.User, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*model.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// Create はユーザーを作成する。
func (r *PostgresUserRepo) Create(ctx context.Context, user *model.User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	if user.ImageURL == "" {
		user.ImageURL = model.DefaultImageURL
	}
	if user.HeaderImageURL == "" {
		user.HeaderImageURL = model.DefaultHeaderImageURL
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, username, email, password_hash, image_url, header_image_url, bio, location, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		user.ID, user.Username, user.Email, user.PasswordHash,
		user.ImageURL, user.HeaderImageURL, user.Bio, user.Location, user.CreatedAt,
	)
	if err != nil {
		return wrapError(err, "failed to insert user")
	}
	return nil
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	if !isUUID(id) {
		return nil, nil
	}
	user, err := r.findOne(ctx, `u.id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}
	return user, nil
}

// FindByUsername はユーザー名でユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	user, err := r.findOne(ctx, `u.username = $1`, username)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by username: %w", err)
	}
	return user, nil
}

// Search はユーザー名の部分一致でユーザーを検索する。
func (r *PostgresUserRepo) Search(ctx context.Context, q string) ([]*model.User, error) {
	users, err := r.queryUsers(ctx,
		`SELECT `+userColumns+` FROM users u
		 WHERE u.username ILIKE '%' || $1 || '%'
		 ORDER BY u.username`,
		likeEscaper.Replace(q),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search users: %w", err)
	}
	return users, nil
}

// Update はプロフィール項目を更新する。
func (r *PostgresUserRepo) Update(ctx context.Context, user *model.User) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users
		 SET username = $2, email = $3, image_url = $4, header_image_url = $5, bio = $6, location = $7
		 WHERE id = $1`,
		user.ID, user.Username, user.Email, user.ImageURL, user.HeaderImageURL, user.Bio, user.Location,
	)
	if err != nil {
		return wrapError(err, "failed to update user")
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return model.NewUserNotFoundError(user.ID)
	}
	return nil
}

// DeleteByID は指定IDのユーザーを削除する。
func (r *PostgresUserRepo) DeleteByID(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM users WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return model.NewUserNotFoundError(id)
	}
	return nil
}

// ListFollowing は指定ユーザーがフォローしているユーザー一覧を返す。
func (r *PostgresUserRepo) ListFollowing(ctx context.Context, userID string) ([]*model.User, error) {
	users, err := r.queryUsers(ctx,
		`SELECT `+userColumns+` FROM follows f
		 JOIN users u ON u.id = f.followee_id
		 WHERE f.follower_id = $1
		 ORDER BY f.created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list following: %w", err)
	}
	return users, nil
}

// ListFollowers は指定ユーザーをフォローしているユーザー一覧を返す。
func (r *PostgresUserRepo) ListFollowers(ctx context.Context, userID string) ([]*model.User, error) {
	users, err := r.queryUsers(ctx,
		`SELECT `+userColumns+` FROM follows f
		 JOIN users u ON u.id = f.follower_id
		 WHERE f.followee_id = $1
		 ORDER BY f.created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list followers: %w", err)
	}
	return users, nil
}

// CountStats はプロフィールに表示する集計値を返す。
func (r *PostgresUserRepo) CountStats(ctx context.Context, userID string) (*model.UserStats, error) {
	stats := &model.UserStats{}
	err := r.db.QueryRowContext(ctx,
		`SELECT
			(SELECT count(*) FROM messages WHERE user_id = $1),
			(SELECT count(*) FROM follows WHERE follower_id = $1),
			(SELECT count(*) FROM follows WHERE followee_id = $1),
			(SELECT count(*) FROM likes WHERE user_id = $1)`,
		userID,
	).Scan(&stats.Messages, &stats.Following, &stats.Followers, &stats.Likes)
	if err != nil {
		return nil, fmt.Errorf("failed to count user stats: %w", err)
	}
	return stats, nil
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
