package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/folio/internal/apiclient"
	"github.com/hitoshi/folio/internal/model"
	"github.com/hitoshi/folio/internal/session"
)

// AccountHandler はログイン中ユーザー自身のアカウント画面のHTTPハンドラー。
type AccountHandler struct {
	store    SessionStore
	service  AuthServiceInterface
	renderer *Renderer
	logger   *slog.Logger
}

// NewAccountHandler はAccountHandlerを生成する。
func NewAccountHandler(store SessionStore, service AuthServiceInterface, renderer *Renderer, logger *slog.Logger) *AccountHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AccountHandler{store: store, service: service, renderer: renderer, logger: logger}
}

// Account はアカウント画面を表示する。
// GET /account
func (h *AccountHandler) Account(w http.ResponseWriter, r *http.Request) {
	data := viewData{Title: "Account"}
	if r.URL.Query().Get("updated") == "1" {
		data.Notice = "Password updated successfully!"
	}
	h.renderer.Render(w, r, http.StatusOK, "account", data)
}

// UpdatePassword はパスワードを更新し、返された新しいトークンで再ログインする。
// POST /account/password
func (h *AccountHandler) UpdatePassword(w http.ResponseWriter, r *http.Request) {
	form := passwordUpdateForm{
		CurrentPassword:    r.PostFormValue("current_password"),
		NewPassword:        r.PostFormValue("new_password"),
		ConfirmNewPassword: r.PostFormValue("confirm_new_password"),
	}
	if err := validateForm(form); err != nil {
		h.renderer.Render(w, r, http.StatusBadRequest, "account", viewData{Title: "Account", Error: err.Error()})
		return
	}

	resp, err := h.service.UpdatePassword(r.Context(), form.CurrentPassword, form.NewPassword)
	if err != nil {
		if redirectIfUnauthorized(w, r, err) {
			return
		}
		h.renderer.Render(w, r, backendStatus(err), "account", viewData{
			Title: "Account", Error: apiclient.MessageOf(err, fallbackMessage),
		})
		return
	}

	if err := h.store.Login(r.Context(), resp.Token, resp.User); err != nil && !errors.Is(err, session.ErrNotPersisted) {
		h.logger.Error("パスワード更新後の再ログインに失敗しました",
			slog.String("error", err.Error()),
		)
		h.renderer.Render(w, r, http.StatusBadGateway, "account", viewData{
			Title: "Account", Error: model.NewBackendFailedError("").Message,
		})
		return
	}

	http.Redirect(w, r, "/account?updated=1", http.StatusSeeOther)
}
