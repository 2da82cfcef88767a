// Package view は名前付きビューのHTMLレンダリングを提供する。
// テンプレートはバイナリに埋め込まれ、起動時に一括パースされる。
package view

import (
	"embed"
	"fmt"
	"html/template"
	"io"

	"github.com/hitoshi/portal/internal/model"
)

//go:embed templates/*.html
var templatesFS embed.FS

// PageData はビューに渡すレンダリングデータ。
// Userは未認証ページではnil。
type PageData struct {
	User *model.User
}

// Renderer は名前付きビューをレンダリングする。
type Renderer struct {
	templates *template.Template
}

// NewRenderer は埋め込みテンプレートをパースしてRendererを生成する。
func NewRenderer() (*Renderer, error) {
	t, err := template.ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	return &Renderer{templates: t}, nil
}

// Render は指定された名前のビューをdataでレンダリングする。
// nameは "login.html" のようなテンプレートファイル名。
func (r *Renderer) Render(w io.Writer, name string, data PageData) error {
	if err := r.templates.ExecuteTemplate(w, name, data); err != nil {
		return fmt.Errorf("failed to render view %s: %w", name, err)
	}
	return nil
}
