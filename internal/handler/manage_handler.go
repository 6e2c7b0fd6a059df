package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/folio/internal/apiclient"
	"github.com/hitoshi/folio/internal/model"
	"github.com/hitoshi/folio/internal/security"
	"github.com/hitoshi/folio/internal/session"
	"github.com/hitoshi/folio/internal/worker/linkcheck"
)

// dashboardTabs はダッシュボードのタブ。先頭が既定値。
var dashboardTabs = []string{
	string(model.KindProject),
	string(model.KindSkill),
	string(model.KindExperience),
	string(model.KindLearning),
	string(model.KindProfile),
}

// assignableRoles はユーザー管理画面で選択できるロール。
var assignableRoles = []model.Role{model.RoleOwner, model.RoleAdmin, model.RoleViewer}

// ManageHandler はコンテンツ管理とユーザー管理のHTTPハンドラー。
// ルートガードで権限を確認した後に呼ばれる。
type ManageHandler struct {
	store     SessionStore
	content   ContentServiceInterface
	auth      AuthServiceInterface
	links     LinkCheckerInterface
	linkGuard security.LinkGuard
	renderer  *Renderer
	logger    *slog.Logger
}

// ManageHandlerDeps はManageHandlerの依存関係。
type ManageHandlerDeps struct {
	Store     SessionStore
	Content   ContentServiceInterface
	Auth      AuthServiceInterface
	Links     LinkCheckerInterface
	LinkGuard security.LinkGuard
	Renderer  *Renderer
	Logger    *slog.Logger
}

// NewManageHandler はManageHandlerを生成する。
func NewManageHandler(deps ManageHandlerDeps) *ManageHandler {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &ManageHandler{
		store:     deps.Store,
		content:   deps.Content,
		auth:      deps.Auth,
		links:     deps.Links,
		linkGuard: deps.LinkGuard,
		renderer:  deps.Renderer,
		logger:    deps.Logger,
	}
}

type dashboardData struct {
	Tabs       []string
	Tab        string
	Projects   []model.Project
	Skills     []model.Skill
	Experience []model.ExperienceItem
	Learning   []model.LearningItem
	Profile    *model.Profile
}

type usersData struct {
	Users []model.User
	Roles []model.Role
}

// Dashboard は選択タブのコンテンツ一覧と編集フォームを表示する。
// GET /dashboard?tab=projects
func (h *ManageHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	tab := r.URL.Query().Get("tab")
	if !slices.Contains(dashboardTabs, tab) {
		tab = dashboardTabs[0]
	}
	notice := ""
	if r.URL.Query().Get("saved") == "1" {
		notice = "Saved successfully."
	}
	h.renderDashboard(w, r, http.StatusOK, tab, notice, "")
}

func (h *ManageHandler) renderDashboard(w http.ResponseWriter, r *http.Request, status int, tab, notice, errMsg string) {
	ctx := r.Context()
	data := dashboardData{Tabs: dashboardTabs, Tab: tab}

	var err error
	switch model.ContentKind(tab) {
	case model.KindProject:
		data.Projects, err = h.content.ListProjects(ctx)
	case model.KindSkill:
		data.Skills, err = h.content.ListSkills(ctx)
	case model.KindExperience:
		data.Experience, err = h.content.ListExperience(ctx)
	case model.KindLearning:
		data.Learning, err = h.content.ListLearning(ctx)
	case model.KindProfile:
		data.Profile, err = h.content.GetProfile(ctx)
	}
	if err != nil {
		if redirectIfUnauthorized(w, r, err) {
			return
		}
		if errMsg == "" {
			errMsg = apiclient.MessageOf(err, fallbackMessage)
		}
		if status == http.StatusOK {
			status = backendStatus(err)
		}
	}

	h.renderer.Render(w, r, status, "dashboard", viewData{
		Title: "Dashboard", Notice: notice, Error: errMsg, Data: data,
	})
}

// SaveContent はプロジェクト・スキル・職務経歴・学習項目を作成または更新する。
// フォームのidが空の場合は作成する。
// POST /manage/{kind}
func (h *ManageHandler) SaveContent(w http.ResponseWriter, r *http.Request) {
	kind, ok := model.ParseContentKind(chi.URLParam(r, "kind"))
	if !ok || kind == model.KindProfile {
		h.unknownKind(w, r, chi.URLParam(r, "kind"))
		return
	}

	ctx := r.Context()
	id := strings.TrimSpace(r.PostFormValue("id"))

	var err error
	switch kind {
	case model.KindProject:
		err = h.saveProject(ctx, id, r)
	case model.KindSkill:
		err = h.saveSkill(ctx, id, r)
	case model.KindExperience:
		err = h.saveExperience(ctx, id, r)
	case model.KindLearning:
		err = h.saveLearning(ctx, id, r)
	}
	if err != nil {
		h.saveFailed(w, r, kind, err)
		return
	}

	h.logger.Info("コンテンツを保存しました",
		slog.String("kind", string(kind)),
		slog.String("content_id", id),
		slog.String("user_id", session.FromContext(ctx).UserID()),
	)
	http.Redirect(w, r, "/dashboard?tab="+string(kind)+"&saved=1", http.StatusSeeOther)
}

// SaveProfile はプロフィールを作成または更新する。
// POST /manage/profile
func (h *ManageHandler) SaveProfile(w http.ResponseWriter, r *http.Request) {
	form := profileForm{
		FullName:    strings.TrimSpace(r.PostFormValue("fullName")),
		Title:       strings.TrimSpace(r.PostFormValue("title")),
		Summary:     r.PostFormValue("summary"),
		Bio:         r.PostFormValue("bio"),
		Location:    strings.TrimSpace(r.PostFormValue("location")),
		Email:       strings.TrimSpace(r.PostFormValue("email")),
		Website:     strings.TrimSpace(r.PostFormValue("website")),
		GithubURL:   strings.TrimSpace(r.PostFormValue("githubUrl")),
		LinkedinURL: strings.TrimSpace(r.PostFormValue("linkedinUrl")),
	}

	err := validateForm(form)
	if err == nil {
		err = h.validateLinks(form.Website, form.GithubURL, form.LinkedinURL)
	}
	if err == nil {
		err = h.content.SaveProfile(r.Context(), model.Profile{
			ID:          strings.TrimSpace(r.PostFormValue("id")),
			FullName:    form.FullName,
			Title:       form.Title,
			Summary:     form.Summary,
			Bio:         form.Bio,
			Location:    form.Location,
			Email:       form.Email,
			Website:     form.Website,
			GithubURL:   form.GithubURL,
			LinkedinURL: form.LinkedinURL,
		})
	}
	if err != nil {
		h.saveFailed(w, r, model.KindProfile, err)
		return
	}

	http.Redirect(w, r, "/dashboard?tab=profile&saved=1", http.StatusSeeOther)
}

// DeleteContent はコンテンツを削除する。
// POST /manage/{kind}/{id}/delete
func (h *ManageHandler) DeleteContent(w http.ResponseWriter, r *http.Request) {
	kind, ok := model.ParseContentKind(chi.URLParam(r, "kind"))
	if !ok {
		h.unknownKind(w, r, chi.URLParam(r, "kind"))
		return
	}
	id := chi.URLParam(r, "id")

	if err := h.content.Delete(r.Context(), kind, id); err != nil {
		h.saveFailed(w, r, kind, err)
		return
	}

	h.logger.Info("コンテンツを削除しました",
		slog.String("kind", string(kind)),
		slog.String("content_id", id),
		slog.String("user_id", session.FromContext(r.Context()).UserID()),
	)
	http.Redirect(w, r, "/dashboard?tab="+string(kind), http.StatusSeeOther)
}

// Links は登録済みプロジェクトリンクの疎通状況を表示する。
// GET /manage/links
func (h *ManageHandler) Links(w http.ResponseWriter, r *http.Request) {
	projects, err := h.content.ListProjects(r.Context())
	if err != nil {
		if redirectIfUnauthorized(w, r, err) {
			return
		}
		h.renderer.Render(w, r, backendStatus(err), "links", viewData{
			Title: "Link Health", Error: apiclient.MessageOf(err, fallbackMessage),
		})
		return
	}

	results := h.links.CheckAll(r.Context(), linkcheck.TargetsFromProjects(projects))
	h.renderer.Render(w, r, http.StatusOK, "links", viewData{Title: "Link Health", Data: results})
}

// Users はユーザー一覧とロール変更フォームを表示する。
// GET /manage/users
func (h *ManageHandler) Users(w http.ResponseWriter, r *http.Request) {
	h.renderUsers(w, r, http.StatusOK, "")
}

func (h *ManageHandler) renderUsers(w http.ResponseWriter, r *http.Request, status int, errMsg string) {
	users, err := h.auth.ListUsers(r.Context())
	if err != nil {
		if redirectIfUnauthorized(w, r, err) {
			return
		}
		if errMsg == "" {
			errMsg = apiclient.MessageOf(err, fallbackMessage)
		}
		if status == http.StatusOK {
			status = backendStatus(err)
		}
	}
	h.renderer.Render(w, r, status, "users", viewData{
		Title: "Users", Error: errMsg, Data: usersData{Users: users, Roles: assignableRoles},
	})
}

// UpdateRole はユーザーのロールを変更する。
// 自分自身のロールを変更した場合はセッションのユーザーレコードも更新する。
// POST /manage/users/{id}/role
func (h *ManageHandler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	role := model.Role(strings.TrimSpace(r.PostFormValue("role")))
	if !role.IsKnown() {
		h.renderUsers(w, r, http.StatusBadRequest, model.NewInvalidRoleError(string(role)).Message)
		return
	}

	updated, err := h.auth.UpdateUserRole(r.Context(), userID, role)
	if err != nil {
		if redirectIfUnauthorized(w, r, err) {
			return
		}
		h.renderUsers(w, r, backendStatus(err), apiclient.MessageOf(err, fallbackMessage))
		return
	}

	snap := session.FromContext(r.Context())
	h.logger.Info("ユーザーのロールを変更しました",
		slog.String("target_user_id", userID),
		slog.String("role", string(role)),
		slog.String("user_id", snap.UserID()),
	)

	if updated != nil && userID == snap.UserID() {
		if err := h.store.SetUser(r.Context(), updated); err != nil {
			h.logger.Warn("セッションのユーザーレコードを更新できませんでした",
				slog.String("error", err.Error()),
			)
		}
		if !session.IsOwner(updated) {
			http.Redirect(w, r, landingPath(updated), http.StatusSeeOther)
			return
		}
	}

	http.Redirect(w, r, "/manage/users", http.StatusSeeOther)
}

func (h *ManageHandler) saveProject(ctx context.Context, id string, r *http.Request) error {
	form := projectForm{
		Title:        strings.TrimSpace(r.PostFormValue("title")),
		Description:  r.PostFormValue("description"),
		Technologies: r.PostFormValue("technologies"),
		GithubURL:    strings.TrimSpace(r.PostFormValue("githubUrl")),
		LiveURL:      strings.TrimSpace(r.PostFormValue("liveUrl")),
	}
	if err := validateForm(form); err != nil {
		return err
	}
	if err := h.validateLinks(form.GithubURL, form.LiveURL); err != nil {
		return err
	}
	return h.content.SaveProject(ctx, id, model.Project{
		Title:        form.Title,
		Description:  form.Description,
		Technologies: splitList(form.Technologies),
		GithubURL:    form.GithubURL,
		LiveURL:      form.LiveURL,
	})
}

func (h *ManageHandler) saveSkill(ctx context.Context, id string, r *http.Request) error {
	form := skillForm{
		Name:        strings.TrimSpace(r.PostFormValue("name")),
		Category:    strings.TrimSpace(r.PostFormValue("category")),
		Proficiency: r.PostFormValue("proficiency"),
	}
	if err := validateForm(form); err != nil {
		return err
	}
	return h.content.SaveSkill(ctx, id, model.Skill{
		Name:        form.Name,
		Category:    form.Category,
		Proficiency: model.Proficiency(form.Proficiency),
	})
}

func (h *ManageHandler) saveExperience(ctx context.Context, id string, r *http.Request) error {
	form := experienceForm{
		Title:       strings.TrimSpace(r.PostFormValue("title")),
		Company:     strings.TrimSpace(r.PostFormValue("company")),
		Location:    strings.TrimSpace(r.PostFormValue("location")),
		From:        r.PostFormValue("from"),
		To:          r.PostFormValue("to"),
		Description: r.PostFormValue("description"),
	}
	if err := validateForm(form); err != nil {
		return err
	}
	current := r.PostFormValue("current") == "true"
	item := model.ExperienceItem{
		Title:       form.Title,
		Company:     form.Company,
		Location:    form.Location,
		From:        form.From,
		Current:     current,
		Description: form.Description,
	}
	if !current {
		item.To = form.To
	}
	return h.content.SaveExperience(ctx, id, item)
}

func (h *ManageHandler) saveLearning(ctx context.Context, id string, r *http.Request) error {
	form := learningForm{
		Title:       strings.TrimSpace(r.PostFormValue("title")),
		Description: r.PostFormValue("description"),
		Status:      r.PostFormValue("status"),
		DateStarted: r.PostFormValue("dateStarted"),
		Link:        strings.TrimSpace(r.PostFormValue("link")),
	}
	if err := validateForm(form); err != nil {
		return err
	}
	if err := h.validateLinks(form.Link); err != nil {
		return err
	}
	return h.content.SaveLearning(ctx, id, model.LearningItem{
		Title:       form.Title,
		Description: form.Description,
		Status:      model.LearningStatus(form.Status),
		DateStarted: form.DateStarted,
		Link:        form.Link,
	})
}

// validateLinks は外部リンクをバックエンドへ送る前にSSRFガードで検証する。空のURLは許可する。
func (h *ManageHandler) validateLinks(urls ...string) error {
	for _, u := range urls {
		if err := security.ValidateOptionalURL(h.linkGuard, u); err != nil {
			return model.NewInvalidURLError(u)
		}
	}
	return nil
}

// saveFailed は保存・削除の失敗をダッシュボード上に表示する。
func (h *ManageHandler) saveFailed(w http.ResponseWriter, r *http.Request, kind model.ContentKind, err error) {
	if redirectIfUnauthorized(w, r, err) {
		return
	}

	var inputErr *inputError
	var apiErr *model.APIError
	switch {
	case errors.As(err, &inputErr):
		h.renderDashboard(w, r, http.StatusBadRequest, string(kind), "", inputErr.Error())
	case errors.As(err, &apiErr):
		h.renderDashboard(w, r, http.StatusBadRequest, string(kind), "", apiErr.Message)
	default:
		h.logger.Error("コンテンツの保存に失敗しました",
			slog.String("kind", string(kind)),
			slog.String("error", err.Error()),
		)
		h.renderDashboard(w, r, backendStatus(err), string(kind), "", apiclient.MessageOf(err, fallbackMessage))
	}
}

func (h *ManageHandler) unknownKind(w http.ResponseWriter, r *http.Request, kind string) {
	h.renderDashboard(w, r, http.StatusNotFound, dashboardTabs[0], "", model.NewUnknownContentError(kind).Message)
}
