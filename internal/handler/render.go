package handler

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"path"
	"strings"

	"github.com/hitoshi/folio/internal/guard"
	"github.com/hitoshi/folio/internal/middleware"
	"github.com/hitoshi/folio/internal/security"
	"github.com/hitoshi/folio/internal/session"
)

//go:embed templates/*.html
var templateFS embed.FS

// viewData は全ページ共通のテンプレートデータ。
// SessionとCSRFTokenはRenderがリクエストコンテキストから補完する。
type viewData struct {
	Title     string
	Session   session.Snapshot
	CSRFToken string
	Notice    string
	Error     string
	Form      map[string]string
	Data      any
}

// Renderer は埋め込みテンプレートからHTMLページを描画する。
type Renderer struct {
	pages  map[string]*template.Template
	logger *slog.Logger
}

// NewRenderer はlayout.htmlを基底に各ページテンプレートを解析したRendererを生成する。
// ページごとにlayoutを複製し、"content"定義の衝突を避ける。
func NewRenderer(sanitizer security.DescriptionSanitizer, logger *slog.Logger) (*Renderer, error) {
	if logger == nil {
		logger = slog.Default()
	}

	funcMap := template.FuncMap{
		"visible": guard.VisibleByName,
		"sanitize": func(s string) template.HTML {
			// bluemondayで許可リスト方式のサニタイズ済み
			return template.HTML(sanitizer.Sanitize(s))
		},
		"excerpt": sanitizer.Excerpt,
		"join":    strings.Join,
	}

	layout, err := template.New("layout.html").Funcs(funcMap).ParseFS(templateFS, "templates/layout.html")
	if err != nil {
		return nil, fmt.Errorf("parse layout: %w", err)
	}

	files, err := fs.Glob(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}

	pages := make(map[string]*template.Template, len(files))
	for _, file := range files {
		name := strings.TrimSuffix(path.Base(file), ".html")
		if name == "layout" {
			continue
		}
		t, err := layout.Clone()
		if err != nil {
			return nil, fmt.Errorf("clone layout for %s: %w", name, err)
		}
		if _, err := t.ParseFS(templateFS, file); err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		pages[name] = t
	}

	return &Renderer{pages: pages, logger: logger}, nil
}

// Render はページを描画する。
// 描画失敗時に部分的なHTMLが送信されないよう、バッファに書き出してから応答する。
func (rd *Renderer) Render(w http.ResponseWriter, r *http.Request, status int, page string, data viewData) {
	t, ok := rd.pages[page]
	if !ok {
		rd.logger.Error("テンプレートが見つかりません", slog.String("template", page))
		middleware.WriteInternalServerError(w)
		return
	}

	data.Session = session.FromContext(r.Context())
	data.CSRFToken = middleware.CSRFTokenFromContext(r.Context())

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		rd.logger.Error("テンプレートの描画に失敗しました",
			slog.String("template", page),
			slog.String("error", err.Error()),
		)
		middleware.WriteInternalServerError(w)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

// Forbidden はDenied判定時に表示するページのハンドラーを返す。
func (rd *Renderer) Forbidden() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rd.Render(w, r, http.StatusForbidden, "forbidden", viewData{Title: "Access denied"})
	})
}
