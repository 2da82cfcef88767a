// Package user はユーザー解決のドメインロジックを提供する。
// 検証済みプロフィールを永続化されたユーザーに対応付け、初回ログイン時に
// プロビジョニングする。
package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"

	"github.com/hitoshi/portal/internal/model"
	"github.com/hitoshi/portal/internal/repository"
)

// Profile はOAuthプロバイダーから取得した検証済みプロフィールを表す。
type Profile struct {
	ProviderUserID string
	Email          string
	Name           string
}

// ServiceConfig はユーザー解決サービスの設定。
type ServiceConfig struct {
	// AdminEmailDomain は管理者ロールを自動付与するメールドメイン（例: "cesar.school"）。
	AdminEmailDomain string
}

// Service はプロフィールからユーザーへの解決を提供する。
type Service struct {
	userRepo  repository.UserRepository
	config    ServiceConfig
	sanitizer *bluemonday.Policy
}

// NewService はServiceを生成する。
func NewService(userRepo repository.UserRepository, config ServiceConfig) *Service {
	return &Service{
		userRepo: userRepo,
		config:   config,
		// プロバイダー由来の表示名からHTMLタグを全て除去する
		sanitizer: bluemonday.StrictPolicy(),
	}
}

// ResolveOrCreate は検証済みプロフィールを永続化されたユーザーに解決する。
// emailで既存ユーザーを検索し、見つかればそのまま返す（名前やロールの同期は行わない）。
// 見つからなければemailドメインからロールを導出して新規作成する。
// 同一emailの同時初回ログインで作成が競合した場合は、一意制約違反を
// シグナルとして既存レコードを再取得して返す。
func (s *Service) ResolveOrCreate(ctx context.Context, profile *Profile) (*model.User, error) {
	if profile == nil || profile.Email == "" {
		return nil, fmt.Errorf("profile email is required")
	}

	existing, err := s.userRepo.FindByEmail(ctx, profile.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	if existing != nil {
		return existing, nil
	}

	now := time.Now()
	newUser := &model.User{
		ID:        uuid.New().String(),
		GoogleID:  profile.ProviderUserID,
		Name:      s.sanitizer.Sanitize(profile.Name),
		Email:     profile.Email,
		Role:      s.deriveRole(profile.Email),
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.userRepo.Create(ctx, newUser); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			// 同時初回ログイン競合: もう一方のリクエストが先に作成した
			winner, findErr := s.userRepo.FindByEmail(ctx, profile.Email)
			if findErr != nil {
				return nil, fmt.Errorf("failed to refetch user after duplicate create: %w", findErr)
			}
			if winner == nil {
				return nil, fmt.Errorf("user vanished after duplicate create: %w", err)
			}
			slog.Info("concurrent first login resolved to existing user",
				slog.String("user_id", winner.ID),
			)
			return winner, nil
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	slog.Info("new user created",
		slog.String("user_id", newUser.ID),
		slog.String("email", newUser.Email),
		slog.String("role", string(newUser.Role)),
	)

	return newUser, nil
}

// deriveRole はemailのドメインサフィックスからロールを導出する。
// 作成時に一度だけ呼ばれ、以後の再ログインでは再評価されない。
func (s *Service) deriveRole(email string) model.Role {
	if s.config.AdminEmailDomain != "" && strings.HasSuffix(email, "@"+s.config.AdminEmailDomain) {
		return model.RoleAdmin
	}
	return model.RoleUser
}
