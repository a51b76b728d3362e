// Package message はメッセージの投稿・削除・いいね、タイムライン、ダイレクトメッセージを提供する。
package message

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/hitoshi/warbler/internal/model"
	"github.com/hitoshi/warbler/internal/repository"
)

// TextSanitizer はユーザー入力テキストを無害化するインターフェース。
type TextSanitizer interface {
	Sanitize(s string) string
}

// ServiceConfig はメッセージサービスの設定。
type ServiceConfig struct {
	TimelineLimit int // タイムライン・受信箱に表示する最大件数
}

// Service はメッセージ関連のビジネスロジックを提供する。
type Service struct {
	messageRepo repository.MessageRepository
	likeRepo    repository.LikeRepository
	dmRepo      repository.DirectMessageRepository
	userRepo    repository.UserRepository
	sanitizer   TextSanitizer
	config      ServiceConfig
}

// NewService はServiceを生成する。
func NewService(
	messageRepo repository.MessageRepository,
	likeRepo repository.LikeRepository,
	dmRepo repository.DirectMessageRepository,
	userRepo repository.UserRepository,
	sanitizer TextSanitizer,
	config ServiceConfig,
) *Service {
	if config.TimelineLimit <= 0 {
		config.TimelineLimit = 100
	}
	return &Service{
		messageRepo: messageRepo,
		likeRepo:    likeRepo,
		dmRepo:      dmRepo,
		userRepo:    userRepo,
		sanitizer:   sanitizer,
		config:      config,
	}
}

// cleanText は本文を無害化し、必須かつ140文字以内であることを確認する。
func (s *Service) cleanText(text string) (string, error) {
	clean := s.sanitizer.Sanitize(text)
	if clean == "" {
		return "", model.NewInvalidInputError("text", "This field is required.")
	}
	if utf8.RuneCountInString(clean) > model.MaxMessageLength {
		return "", model.NewInvalidInputError("text",
			fmt.Sprintf("Field cannot be longer than %d characters.", model.MaxMessageLength))
	}
	return clean, nil
}

// Create はメッセージを投稿する。
func (s *Service) Create(ctx context.Context, userID, text string) (*model.Message, error) {
	clean, err := s.cleanText(text)
	if err != nil {
		return nil, err
	}

	msg := &model.Message{UserID: userID, Text: clean}
	if err := s.messageRepo.Create(ctx, msg); err != nil {
		var appErr *model.AppError
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, fmt.Errorf("failed to create message: %w", err)
	}

	slog.Info("message created",
		slog.String("user_id", userID),
		slog.String("message_id", msg.ID),
	)
	return msg, nil
}

// Get はメッセージを取得する。存在しない場合はMESSAGE_NOT_FOUND。
func (s *Service) Get(ctx context.Context, id, viewerID string) (*model.MessageWithAuthor, error) {
	msg, err := s.messageRepo.FindByID(ctx, id, viewerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get message: %w", err)
	}
	if msg == nil {
		return nil, model.NewMessageNotFoundError(id)
	}
	return msg, nil
}

// Delete は投稿者本人の場合のみメッセージを削除する。他人のメッセージはFORBIDDEN。
func (s *Service) Delete(ctx context.Context, currID, id string) error {
	msg, err := s.Get(ctx, id, currID)
	if err != nil {
		return err
	}
	if msg.UserID != currID {
		slog.Warn("message delete forbidden",
			slog.String("user_id", currID),
			slog.String("message_id", id),
		)
		return model.NewForbiddenError()
	}

	if err := s.messageRepo.Delete(ctx, id); err != nil {
		var appErr *model.AppError
		if errors.As(err, &appErr) {
			return appErr
		}
		return fmt.Errorf("failed to delete message: %w", err)
	}

	slog.Info("message deleted",
		slog.String("user_id", currID),
		slog.String("message_id", id),
	)
	return nil
}

// Like はメッセージにいいねする。自分のメッセージにはいいねできない。
func (s *Service) Like(ctx context.Context, currID, id string) error {
	msg, err := s.Get(ctx, id, currID)
	if err != nil {
		return err
	}
	if msg.UserID == currID {
		return model.NewCannotLikeOwnError()
	}
	if err := s.likeRepo.Like(ctx, currID, id); err != nil {
		return fmt.Errorf("failed to like message: %w", err)
	}
	return nil
}

// Unlike はいいねを取り消す。
func (s *Service) Unlike(ctx context.Context, currID, id string) error {
	if _, err := s.Get(ctx, id, currID); err != nil {
		return err
	}
	if err := s.likeRepo.Unlike(ctx, currID, id); err != nil {
		return fmt.Errorf("failed to unlike message: %w", err)
	}
	return nil
}

// ToggleLike はいいね状態を反転し、反転後にいいねしているかを返す。
func (s *Service) ToggleLike(ctx context.Context, currID, id string) (bool, error) {
	msg, err := s.Get(ctx, id, currID)
	if err != nil {
		return false, err
	}
	if msg.LikedByViewer {
		if err := s.likeRepo.Unlike(ctx, currID, id); err != nil {
			return false, fmt.Errorf("failed to unlike message: %w", err)
		}
		return false, nil
	}
	if msg.UserID == currID {
		return false, model.NewCannotLikeOwnError()
	}
	if err := s.likeRepo.Like(ctx, currID, id); err != nil {
		return false, fmt.Errorf("failed to like message: %w", err)
	}
	return true, nil
}

// Timeline は自分とフォロー中ユーザーのメッセージを新しい順に返す。
func (s *Service) Timeline(ctx context.Context, currID string) ([]model.MessageWithAuthor, error) {
	msgs, err := s.messageRepo.Timeline(ctx, currID, s.config.TimelineLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to load timeline: %w", err)
	}
	return msgs, nil
}

// SendDirect はダイレクトメッセージを送信する。宛先は存在する他のユーザーに限る。
func (s *Service) SendDirect(ctx context.Context, fromID, toID, text string) (*model.DirectMessage, error) {
	if fromID == toID {
		return nil, model.NewInvalidInputError("to_user_id", "You cannot message yourself.")
	}
	to, err := s.userRepo.FindByID(ctx, toID)
	if err != nil {
		return nil, fmt.Errorf("failed to find recipient: %w", err)
	}
	if to == nil {
		return nil, model.NewInvalidInputError("to_user_id", "Unknown recipient.")
	}

	clean, err := s.cleanText(text)
	if err != nil {
		return nil, err
	}

	dm := &model.DirectMessage{FromUserID: fromID, ToUserID: toID, Text: clean, ToUsername: to.Username}
	if err := s.dmRepo.Create(ctx, dm); err != nil {
		var appErr *model.AppError
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, fmt.Errorf("failed to send direct message: %w", err)
	}

	slog.Info("direct message sent",
		slog.String("user_id", fromID),
		slog.String("to_user_id", toID),
	)
	return dm, nil
}

// Inbox はユーザーが送受信したダイレクトメッセージを新しい順に返す。
func (s *Service) Inbox(ctx context.Context, userID string) ([]model.DirectMessage, error) {
	dms, err := s.dmRepo.ListForUser(ctx, userID, s.config.TimelineLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to load inbox: %w", err)
	}
	return dms, nil
}
