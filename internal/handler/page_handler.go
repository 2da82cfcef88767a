package handler

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/hitoshi/portal/internal/model"
	"github.com/hitoshi/portal/internal/view"
)

// ViewRenderer はページハンドラーが必要とするビューレンダリングインターフェース。
type ViewRenderer interface {
	Render(w io.Writer, name string, data view.PageData) error
}

// PageHandler はサーバーレンダリングされるページのHTTPハンドラー。
type PageHandler struct {
	renderer ViewRenderer
}

// NewPageHandler はPageHandlerを生成する。
func NewPageHandler(renderer ViewRenderer) *PageHandler {
	return &PageHandler{renderer: renderer}
}

// Root はルートパスへのアクセスをダッシュボードへリダイレクトする。
// GET /
// 認証状態に関わらず常に/dashboardへ飛ばす。未認証の場合はそこで
// さらに/loginへリダイレクトされる（二重リダイレクトだが互換性のため維持）。
func (h *PageHandler) Root(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/dashboard", http.StatusFound)
}

// Login はログイン画面をレンダリングする。
// GET /login
func (h *PageHandler) Login(w http.ResponseWriter, r *http.Request) {
	h.render(w, "login.html", view.PageData{})
}

// Dashboard はダッシュボードを現在のユーザー情報付きでレンダリングする。
// GET /dashboard（認証ゲートの内側）
func (h *PageHandler) Dashboard(w http.ResponseWriter, r *http.Request, user *model.User) {
	h.render(w, "dashboard.html", view.PageData{User: user})
}

// ManageUsers はユーザー管理画面をレンダリングする。
// GET /manage-users（認証ゲート + 管理者ゲートの内側）
func (h *PageHandler) ManageUsers(w http.ResponseWriter, r *http.Request, user *model.User) {
	h.render(w, "manage_users.html", view.PageData{User: user})
}

// render はビューをレンダリングし、失敗時は500を返す。
func (h *PageHandler) render(w http.ResponseWriter, name string, data view.PageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.renderer.Render(w, name, data); err != nil {
		slog.Error("failed to render view",
			slog.String("view", name),
			slog.String("error", err.Error()),
		)
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}
