// Package model はドメインモデルを定義する。
package model

import "time"

// Role はユーザーの権限ロールを表す。
type Role string

const (
	// RoleAdmin は管理者ロール。ユーザー管理画面にアクセスできる。
	RoleAdmin Role = "admin"
	// RoleUser は一般ユーザーロール。
	RoleUser Role = "user"
)

// Valid はロールが定義済みの値かどうかを返す。
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleUser
}

// User はサービス利用ユーザーを表す。
// Roleは作成時にメールドメインから一度だけ導出され、以後再評価されない。
// Nameも作成時にプロバイダーのプロフィールから設定され、後から同期されない。
type User struct {
	ID        string
	GoogleID  string
	Name      string
	Email     string
	Role      Role
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsAdmin はユーザーが管理者かどうかを返す。
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
