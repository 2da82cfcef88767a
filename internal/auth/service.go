// Package auth はOAuth認証フロー、セッション管理を提供する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/portal/internal/model"
	"github.com/hitoshi/portal/internal/repository"
	"github.com/hitoshi/portal/internal/user"
)

// ErrExchangeFailed はOAuthプロバイダーとの交換失敗を表す。
// このエラーはログイン画面へのリダイレクトで回復し、詳細をブラウザに漏らさない。
// 永続化層のエラーとは区別され、そちらは通常のリクエスト失敗として伝播する。
var ErrExchangeFailed = errors.New("identity exchange failed")

// OAuthProvider はOAuth認証プロバイダーのインターフェース。
type OAuthProvider interface {
	// GetLoginURL はOAuth同意画面のURLを生成する。
	GetLoginURL(state string) string
	// ExchangeCode は認可コードを検証済みプロフィールに交換する。
	ExchangeCode(ctx context.Context, code string) (*user.Profile, error)
}

// UserResolver は検証済みプロフィールからユーザーへの解決インターフェース。
type UserResolver interface {
	ResolveOrCreate(ctx context.Context, profile *user.Profile) (*model.User, error)
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge int // セッション有効期間（秒）
}

// Service は認証に関するビジネスロジックを提供する。
// ブラウザが保持する署名付きトークンとサーバー側プリンシパルの橋渡しを行う。
type Service struct {
	oauth       OAuthProvider
	resolver    UserResolver
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
	codec       *TokenCodec
	config      ServiceConfig
}

// NewService はServiceを生成する。
func NewService(
	oauth OAuthProvider,
	resolver UserResolver,
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	codec *TokenCodec,
	config ServiceConfig,
) *Service {
	return &Service{
		oauth:       oauth,
		resolver:    resolver,
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		codec:       codec,
		config:      config,
	}
}

// GetLoginURL はOAuth同意画面のURLを生成する。
func (s *Service) GetLoginURL(state string) string {
	return s.oauth.GetLoginURL(state)
}

// HandleCallback はOAuthコールバックを処理し、署名付きセッショントークンを発行する。
// 交換失敗はErrExchangeFailedでラップして返す（呼び出し側はログイン画面へ誘導する）。
// ユーザー解決・セッション永続化の失敗はそのまま伝播する。
func (s *Service) HandleCallback(ctx context.Context, code string) (string, error) {
	profile, err := s.oauth.ExchangeCode(ctx, code)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrExchangeFailed, err)
	}

	u, err := s.resolver.ResolveOrCreate(ctx, profile)
	if err != nil {
		return "", fmt.Errorf("failed to resolve user: %w", err)
	}

	session, err := s.createSession(ctx, u.ID)
	if err != nil {
		return "", fmt.Errorf("failed to create session: %w", err)
	}

	slog.Info("user logged in",
		slog.String("user_id", u.ID),
		slog.String("role", string(u.Role)),
	)

	return s.codec.Encode(session.ID), nil
}

// Logout は署名付きトークンに対応するセッションを破棄する。
// トークンが不正な場合は破棄対象が存在しないためエラーにしない。
func (s *Service) Logout(ctx context.Context, token string) error {
	sessionID, err := s.codec.Decode(token)
	if err != nil {
		return nil
	}

	if err := s.sessionRepo.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	slog.Info("user logged out", slog.String("session_id", sessionID))
	return nil
}

// UserFromSessionToken は署名付きトークンから現在のユーザーを復元する。
// 未認証条件（トークン不正、セッション不在・期限切れ、ユーザー削除済み）では
// (nil, nil) を返す。エラーは永続化層の失敗のみを表す。
func (s *Service) UserFromSessionToken(ctx context.Context, token string) (*model.User, error) {
	sessionID, err := s.codec.Decode(token)
	if err != nil {
		return nil, nil
	}

	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil {
		return nil, nil
	}

	u, err := s.userRepo.FindByID(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if u == nil {
		// セッションが削除済みユーザーを指している場合は未認証に退行させる
		return nil, nil
	}

	return u, nil
}

// createSession はセッションを作成し永続化する。
func (s *Service) createSession(ctx context.Context, userID string) (*model.Session, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	session := &model.Session{
		ID:        sessionID,
		UserID:    userID,
		ExpiresAt: time.Now().Add(time.Duration(s.config.SessionMaxAge) * time.Second),
		CreatedAt: time.Now(),
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
