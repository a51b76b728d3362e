// Package user はユーザー管理とフォロー関係のドメインロジックを提供する。
package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hitoshi/warbler/internal/model"
	"github.com/hitoshi/warbler/internal/repository"
)

// Authenticator はパスワード再確認のためのインターフェース。
type Authenticator interface {
	Authenticate(ctx context.Context, username, password string) (*model.User, error)
}

// ImageChecker は画像URLが利用可能かを確認するインターフェース。
type ImageChecker interface {
	CheckImage(ctx context.Context, rawURL string) error
}

// TextSanitizer はユーザー入力テキストを無害化するインターフェース。
type TextSanitizer interface {
	Sanitize(s string) string
}

// Service はユーザー管理のサービス層。
type Service struct {
	userRepo    repository.UserRepository
	followRepo  repository.FollowRepository
	messageRepo repository.MessageRepository
	likeRepo    repository.LikeRepository
	sessionRepo repository.SessionRepository
	auth        Authenticator
	sanitizer   TextSanitizer
	images      ImageChecker // nilの場合は画像URLの到達確認を行わない
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	userRepo repository.UserRepository,
	followRepo repository.FollowRepository,
	messageRepo repository.MessageRepository,
	likeRepo repository.LikeRepository,
	sessionRepo repository.SessionRepository,
	auth Authenticator,
	sanitizer TextSanitizer,
	images ImageChecker,
) *Service {
	return &Service{
		userRepo:    userRepo,
		followRepo:  followRepo,
		messageRepo: messageRepo,
		likeRepo:    likeRepo,
		sessionRepo: sessionRepo,
		auth:        auth,
		sanitizer:   sanitizer,
		images:      images,
	}
}

// Get は指定IDのユーザーを返す。存在しない場合はUSER_NOT_FOUND。
func (s *Service) Get(ctx context.Context, id string) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError(id)
	}
	return user, nil
}

// Stats はプロフィールに表示する集計値を返す。
func (s *Service) Stats(ctx context.Context, id string) (*model.UserStats, error) {
	stats, err := s.userRepo.CountStats(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get user stats: %w", err)
	}
	return stats, nil
}

// Search はユーザー名の部分一致でユーザーを検索する。qが空なら全ユーザー。
func (s *Service) Search(ctx context.Context, q string) ([]*model.User, error) {
	users, err := s.userRepo.Search(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to search users: %w", err)
	}
	return users, nil
}

// Messages は指定ユーザーのメッセージを新しい順に返す。
func (s *Service) Messages(ctx context.Context, id, viewerID string, limit int) ([]model.MessageWithAuthor, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	msgs, err := s.messageRepo.ListByUser(ctx, id, viewerID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list user messages: %w", err)
	}
	return msgs, nil
}

// Following は指定ユーザーがフォローしているユーザー一覧を返す。
func (s *Service) Following(ctx context.Context, id string) ([]*model.User, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	users, err := s.userRepo.ListFollowing(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list following: %w", err)
	}
	return users, nil
}

// Followers は指定ユーザーのフォロワー一覧を返す。
func (s *Service) Followers(ctx context.Context, id string) ([]*model.User, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	users, err := s.userRepo.ListFollowers(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list followers: %w", err)
	}
	return users, nil
}

// Likes は指定ユーザーがいいねしたメッセージ一覧を返す。
func (s *Service) Likes(ctx context.Context, id, viewerID string) ([]model.MessageWithAuthor, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	msgs, err := s.likeRepo.ListLikedMessages(ctx, id, viewerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list liked messages: %w", err)
	}
	return msgs, nil
}

// Follow はcurrがtargetをフォローする。自分自身は不可。既にフォロー済みでもエラーにしない。
func (s *Service) Follow(ctx context.Context, currID, targetID string) error {
	if currID == targetID {
		return model.NewCannotFollowSelfError()
	}
	if _, err := s.Get(ctx, targetID); err != nil {
		return err
	}
	if err := s.followRepo.Follow(ctx, currID, targetID); err != nil {
		return fmt.Errorf("failed to follow: %w", err)
	}
	slog.Info("user followed",
		slog.String("user_id", currID),
		slog.String("target_id", targetID),
	)
	return nil
}

// Unfollow はcurrによるtargetのフォローを解除する。
func (s *Service) Unfollow(ctx context.Context, currID, targetID string) error {
	if _, err := s.Get(ctx, targetID); err != nil {
		return err
	}
	if err := s.followRepo.Unfollow(ctx, currID, targetID); err != nil {
		return fmt.Errorf("failed to unfollow: %w", err)
	}
	slog.Info("user unfollowed",
		slog.String("user_id", currID),
		slog.String("target_id", targetID),
	)
	return nil
}

// IsFollowing はuserがotherをフォローしているかを返す。
func (s *Service) IsFollowing(ctx context.Context, userID, otherID string) (bool, error) {
	ok, err := s.followRepo.IsFollowing(ctx, userID, otherID)
	if err != nil {
		return false, fmt.Errorf("failed to check following: %w", err)
	}
	return ok, nil
}

// IsFollowedBy はuserがotherにフォローされているかを返す。
func (s *Service) IsFollowedBy(ctx context.Context, userID, otherID string) (bool, error) {
	return s.IsFollowing(ctx, otherID, userID)
}

// UpdateProfile は現在のパスワードで本人確認した上でプロフィールを更新する。
// 画像URLが空の場合はデフォルト画像に戻す。
func (s *Service) UpdateProfile(ctx context.Context, currID string, in model.ProfileUpdate, password string) (*model.User, error) {
	user, err := s.Get(ctx, currID)
	if err != nil {
		return nil, err
	}

	if _, err := s.auth.Authenticate(ctx, user.Username, password); err != nil {
		var appErr *model.AppError
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, fmt.Errorf("failed to verify password: %w", err)
	}

	imageURL, err := s.resolveImage(ctx, "image_url", in.ImageURL, model.DefaultImageURL)
	if err != nil {
		return nil, err
	}
	headerURL, err := s.resolveImage(ctx, "header_image_url", in.HeaderImageURL, model.DefaultHeaderImageURL)
	if err != nil {
		return nil, err
	}

	user.Username = in.Username
	user.Email = in.Email
	user.ImageURL = imageURL
	user.HeaderImageURL = headerURL
	user.Bio = s.sanitizer.Sanitize(in.Bio)
	user.Location = s.sanitizer.Sanitize(in.Location)

	if err := s.userRepo.Update(ctx, user); err != nil {
		var appErr *model.AppError
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	slog.Info("profile updated", slog.String("user_id", user.ID))
	return user, nil
}

// resolveImage は空の画像URLをデフォルトに置き換え、それ以外は到達確認を行う。
func (s *Service) resolveImage(ctx context.Context, field, rawURL, defaultURL string) (string, error) {
	if rawURL == "" || rawURL == defaultURL {
		return defaultURL, nil
	}
	if s.images != nil {
		if err := s.images.CheckImage(ctx, rawURL); err != nil {
			slog.Warn("image URL rejected",
				slog.String("field", field),
				slog.String("error", err.Error()),
			)
			return "", model.NewInvalidImageURLError(field, err.Error())
		}
	}
	return rawURL, nil
}

// Delete は退会処理を行う。
// セッションを先に削除し、ユーザー削除でmessages/follows/likes/direct_messagesはCASCADE削除される。
func (s *Service) Delete(ctx context.Context, currID string) error {
	if _, err := s.Get(ctx, currID); err != nil {
		return err
	}

	if err := s.sessionRepo.DeleteByUserID(ctx, currID); err != nil {
		return fmt.Errorf("failed to delete sessions: %w", err)
	}
	if err := s.userRepo.DeleteByID(ctx, currID); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	slog.Info("user deleted", slog.String("user_id", currID))
	return nil
}
