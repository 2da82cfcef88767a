// Package middleware はHTTPミドルウェアとアクセスゲートを提供する。
package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hitoshi/portal/internal/model"
)

const sessionCookieName = "session_id"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// userContextKey はリクエストコンテキストに認証済みユーザーを格納するためのキー。
var userContextKey = contextKey("user")

// principalHolderKey はロギングミドルウェアが仕込む可変セルのキー。
var principalHolderKey = contextKey("principalHolder")

// principalHolder はゲートからロギングミドルウェアへプリンシパルを伝える可変セル。
// ロギングミドルウェアはゲートより外側に位置し、ゲートによるコンテキスト
// 差し替えは内側のリクエストコピーにしか届かないため、外側が先に仕込んだ
// セルにゲートが書き込む。
type principalHolder struct {
	user *model.User
}

// AuthedHandler は認証済みプリンシパルを引数として受け取るハンドラー。
// 管理者ゲートはこの型を入力とするため、認証ゲートが先に実行されることが
// 型レベルで保証される。
type AuthedHandler func(w http.ResponseWriter, r *http.Request, user *model.User)

// CurrentUserFinder はセッショントークンからユーザーを復元するインターフェース。
// auth.Serviceの部分集合として定義する。
type CurrentUserFinder interface {
	// UserFromSessionToken は未認証条件では (nil, nil) を返す。
	UserFromSessionToken(ctx context.Context, token string) (*model.User, error)
}

// Gate は認証状態に基づくリクエストゲートを提供する。
type Gate struct {
	finder    CurrentUserFinder
	loginPath string
}

// NewGate はGateを生成する。未認証リクエストはloginPathへリダイレクトされる。
func NewGate(finder CurrentUserFinder, loginPath string) *Gate {
	return &Gate{finder: finder, loginPath: loginPath}
}

// Authenticated はセッションCookieからプリンシパルを復元し、nextに引き渡す
// 認証ゲートを返す。未認証の場合はログイン画面へリダイレクトし、nextには到達しない。
// 永続化層の失敗のみが500になる。
func (g *Gate) Authenticated(next AuthedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(sessionCookieName)
		if err != nil || cookie.Value == "" {
			http.Redirect(w, r, g.loginPath, http.StatusFound)
			return
		}

		user, err := g.finder.UserFromSessionToken(r.Context(), cookie.Value)
		if err != nil {
			slog.Error("failed to resolve session user",
				slog.String("error", err.Error()),
			)
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}
		if user == nil {
			http.Redirect(w, r, g.loginPath, http.StatusFound)
			return
		}

		// 外側のロギングミドルウェアがuser_idを拾えるようセルに書き込む
		if holder, ok := r.Context().Value(principalHolderKey).(*principalHolder); ok {
			holder.user = user
		}

		ctx := context.WithValue(r.Context(), userContextKey, user)
		next(w, r.WithContext(ctx), user)
	}
}

// RequireAdmin は管理者ロールを要求するゲートでnextをラップする。
// 非管理者には403の平文メッセージを返す（リダイレクトはしない）。
func RequireAdmin(next AuthedHandler) AuthedHandler {
	return func(w http.ResponseWriter, r *http.Request, user *model.User) {
		if !user.IsAdmin() {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.WriteHeader(http.StatusForbidden)
			w.Write([]byte("Acesso negado: apenas administradores."))
			return
		}
		next(w, r, user)
	}
}

// UserFromContext はリクエストコンテキストから認証済みユーザーを取得する。
// 認証ゲートを通過したリクエストでのみ値を返す。
func UserFromContext(ctx context.Context) (*model.User, bool) {
	user, ok := ctx.Value(userContextKey).(*model.User)
	return user, ok && user != nil
}
