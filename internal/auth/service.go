// Package auth はサインアップ、パスワード認証、セッション管理を提供する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/warbler/internal/model"
	"github.com/hitoshi/warbler/internal/repository"
)

// SignupInput はサインアップの入力値。
type SignupInput struct {
	Username string
	Email    string
	Password string
	ImageURL string // 空の場合はデフォルト画像
}

// ImageChecker は画像URLが利用可能かを確認するインターフェース。
type ImageChecker interface {
	CheckImage(ctx context.Context, rawURL string) error
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge int // セッション有効期間（秒）
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	hasher      PasswordHasher
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
	images      ImageChecker // nilの場合は画像URLの到達確認を行わない
	config      ServiceConfig
}

// NewService はServiceを生成する。
func NewService(
	hasher PasswordHasher,
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	images ImageChecker,
	config ServiceConfig,
) *Service {
	return &Service{
		hasher:      hasher,
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		images:      images,
		config:      config,
	}
}

// Signup はパスワードをハッシュ化してユーザーを1件作成する。
// username/emailの重複はリポジトリが返すAppErrorをそのまま返す。
// 画像URLはプロフィール編集と同じく到達確認を行う。
func (s *Service) Signup(ctx context.Context, in SignupInput) (*model.User, error) {
	imageURL, err := s.resolveImage(ctx, in.ImageURL)
	if err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return nil, model.NewInvalidInputError("password", "Password is too long.")
	}
	if err != nil {
		return nil, err
	}

	user := &model.User{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		ImageURL:     imageURL,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		var appErr *model.AppError
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	slog.Info("user signed up",
		slog.String("user_id", user.ID),
		slog.String("username", user.Username),
	)
	return user, nil
}

// resolveImage は空の画像URLをデフォルトに置き換え、それ以外は到達確認を行う。
func (s *Service) resolveImage(ctx context.Context, rawURL string) (string, error) {
	if rawURL == "" || rawURL == model.DefaultImageURL {
		return model.DefaultImageURL, nil
	}
	if s.images != nil {
		if err := s.images.CheckImage(ctx, rawURL); err != nil {
			slog.Warn("signup image URL rejected", slog.String("error", err.Error()))
			return "", model.NewInvalidImageURLError("image_url", err.Error())
		}
	}
	return rawURL, nil
}

// Authenticate はユーザー名とパスワードを検証し、一致した場合のみユーザーを返す。
// ユーザー不在とパスワード不一致はどちらもINVALID_CREDENTIALSになる。
func (s *Service) Authenticate(ctx context.Context, username, password string) (*model.User, error) {
	user, err := s.userRepo.FindByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewInvalidCredentialsError()
	}

	if err := s.hasher.Compare(user.PasswordHash, password); err != nil {
		if errors.Is(err, ErrPasswordMismatch) {
			return nil, model.NewInvalidCredentialsError()
		}
		return nil, err
	}
	return user, nil
}

// Login は指定ユーザーのセッションを発行する。
func (s *Service) Login(ctx context.Context, userID string) (*model.Session, error) {
	session, err := s.createSession(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	slog.Info("user logged in", slog.String("user_id", userID))
	return session, nil
}

// Logout はセッションを破棄する。
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("session ID is required")
	}

	if err := s.sessionRepo.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	slog.Info("user logged out")
	return nil
}

// GetCurrentUser はセッションから現在のユーザーを取得する。
func (s *Service) GetCurrentUser(ctx context.Context, sessionID string) (*model.User, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("session ID is required")
	}

	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil {
		return nil, fmt.Errorf("session not found or expired")
	}

	user, err := s.userRepo.FindByID(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("user not found")
	}

	return user, nil
}

// createSession はセッションを作成し永続化する。
func (s *Service) createSession(ctx context.Context, userID string) (*model.Session, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	now := time.Now()
	session := &model.Session{
		ID:        sessionID,
		UserID:    userID,
		ExpiresAt: now.Add(time.Duration(s.config.SessionMaxAge) * time.Second),
		CreatedAt: now,
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return session, nil
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
