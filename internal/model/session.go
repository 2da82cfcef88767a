package model

import "time"

// Session はユーザーのログインセッションを表す。
// IDはブラウザに渡される不透明なトークンの元になる値で、
// サーバー側でユーザーIDとの対応を保持する。
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}
