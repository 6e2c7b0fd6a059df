package handler

import (
	"context"
	"log/slog"
	"net/http"
	"sort"

	"github.com/hitoshi/folio/internal/apiclient"
	"github.com/hitoshi/folio/internal/model"
)

// featuredProjectCount はトップページに表示するプロジェクト数。
const featuredProjectCount = 3

// PageHandler は誰でも閲覧できるポートフォリオページのHTTPハンドラー。
type PageHandler struct {
	content  ContentServiceInterface
	renderer *Renderer
	logger   *slog.Logger
}

// NewPageHandler はPageHandlerを生成する。
func NewPageHandler(content ContentServiceInterface, renderer *Renderer, logger *slog.Logger) *PageHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &PageHandler{content: content, renderer: renderer, logger: logger}
}

type homeData struct {
	Profile  *model.Profile
	Projects []model.Project
}

// skillGroup はカテゴリごとにまとめたスキル。
type skillGroup struct {
	Category string
	Skills   []model.Skill
}

// Home はプロフィールと注目プロジェクトを表示する。
// GET /
func (h *PageHandler) Home(w http.ResponseWriter, r *http.Request) {
	profile, err := h.content.GetProfile(r.Context())
	if err != nil {
		h.fail(w, r, "home", "Home", homeData{}, err)
		return
	}
	projects, err := h.content.ListProjects(r.Context())
	if err != nil {
		h.fail(w, r, "home", "Home", homeData{}, err)
		return
	}
	if len(projects) > featuredProjectCount {
		projects = projects[:featuredProjectCount]
	}
	h.renderer.Render(w, r, http.StatusOK, "home", viewData{
		Data: homeData{Profile: profile, Projects: projects},
	})
}

// Projects はプロジェクト一覧を表示する。
// GET /projects
func (h *PageHandler) Projects(w http.ResponseWriter, r *http.Request) {
	render(h, w, r, "projects", "Projects", h.content.ListProjects)
}

// Skills はカテゴリ別のスキル一覧を表示する。
// GET /skills
func (h *PageHandler) Skills(w http.ResponseWriter, r *http.Request) {
	render(h, w, r, "skills", "Skills", func(ctx context.Context) ([]skillGroup, error) {
		skills, err := h.content.ListSkills(ctx)
		if err != nil {
			return nil, err
		}
		return groupSkills(skills), nil
	})
}

// Experience は職務経歴を表示する。
// GET /experience
func (h *PageHandler) Experience(w http.ResponseWriter, r *http.Request) {
	render(h, w, r, "experience", "Experience", h.content.ListExperience)
}

// Learning は学習項目を表示する。
// GET /learning
func (h *PageHandler) Learning(w http.ResponseWriter, r *http.Request) {
	render(h, w, r, "learning", "Learning", h.content.ListLearning)
}

// Profile はプロフィールを表示する。
// GET /profile
func (h *PageHandler) Profile(w http.ResponseWriter, r *http.Request) {
	render(h, w, r, "profile", "Profile", h.content.GetProfile)
}

// render はloadの結果をページに描画する。
func render[T any](h *PageHandler, w http.ResponseWriter, r *http.Request, page, title string, load func(context.Context) (T, error)) {
	data, err := load(r.Context())
	if err != nil {
		var zero T
		h.fail(w, r, page, title, zero, err)
		return
	}
	h.renderer.Render(w, r, http.StatusOK, page, viewData{Title: title, Data: data})
}

// fail はバックエンドエラーを表示する。emptyはテンプレートが参照する空データ。
func (h *PageHandler) fail(w http.ResponseWriter, r *http.Request, page, title string, empty any, err error) {
	if redirectIfUnauthorized(w, r, err) {
		return
	}
	h.logger.Error("コンテンツの取得に失敗しました",
		slog.String("page", page),
		slog.String("error", err.Error()),
	)
	h.renderer.Render(w, r, backendStatus(err), page, viewData{
		Title: title, Error: apiclient.MessageOf(err, fallbackMessage), Data: empty,
	})
}

// groupSkills はスキルをカテゴリ名順にまとめる。カテゴリ内の順序は入力順を保つ。
func groupSkills(skills []model.Skill) []skillGroup {
	index := make(map[string]int)
	var groups []skillGroup
	for _, s := range skills {
		i, ok := index[s.Category]
		if !ok {
			i = len(groups)
			index[s.Category] = i
			groups = append(groups, skillGroup{Category: s.Category})
		}
		groups[i].Skills = append(groups[i].Skills, s)
	}
	sort.SliceStable(groups, func(a, b int) bool { return groups[a].Category < groups[b].Category })
	return groups
}
