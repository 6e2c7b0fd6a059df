package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/folio/internal/apiclient"
	"github.com/hitoshi/folio/internal/model"
	"github.com/hitoshi/folio/internal/session"
)

// AuthHandler はログイン・登録・パスワード再設定・ログアウトのHTTPハンドラー。
type AuthHandler struct {
	store    SessionStore
	service  AuthServiceInterface
	renderer *Renderer
	logger   *slog.Logger
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(store SessionStore, service AuthServiceInterface, renderer *Renderer, logger *slog.Logger) *AuthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthHandler{store: store, service: service, renderer: renderer, logger: logger}
}

// LoginPage はログイン画面を表示する。ログイン済みの場合は遷移先へリダイレクトする。
// GET /login
func (h *AuthHandler) LoginPage(w http.ResponseWriter, r *http.Request) {
	snap := session.FromContext(r.Context())
	if snap.IsAuthenticated() {
		http.Redirect(w, r, landingPath(snap.User()), http.StatusSeeOther)
		return
	}

	data := viewData{Title: "Login"}
	if r.URL.Query().Get("reset") == "1" {
		data.Notice = "Your password has been reset successfully. Please login."
	}
	h.renderer.Render(w, r, http.StatusOK, "login", data)
}

// Login はバックエンドで認証し、成功した場合はセッションを確立する。
// POST /login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	form := credentialsForm{
		Email:    strings.TrimSpace(r.PostFormValue("email")),
		Password: r.PostFormValue("password"),
	}
	formValues := map[string]string{"email": form.Email}

	if err := validateForm(form); err != nil {
		h.renderer.Render(w, r, http.StatusBadRequest, "login", viewData{Title: "Login", Error: err.Error(), Form: formValues})
		return
	}

	h.authenticate(w, r, "login", formValues, func() (*model.AuthResponse, error) {
		return h.service.Login(r.Context(), form.Email, form.Password)
	})
}

// RegisterPage は登録画面を表示する。
// GET /register
func (h *AuthHandler) RegisterPage(w http.ResponseWriter, r *http.Request) {
	h.renderer.Render(w, r, http.StatusOK, "register", viewData{Title: "Register"})
}

// Register は新規ユーザーを登録し、そのままログインする。
// POST /register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	form := registerForm{
		Email:           strings.TrimSpace(r.PostFormValue("email")),
		Password:        r.PostFormValue("password"),
		ConfirmPassword: r.PostFormValue("confirm_password"),
	}
	formValues := map[string]string{"email": form.Email}

	if err := validateForm(form); err != nil {
		h.renderer.Render(w, r, http.StatusBadRequest, "register", viewData{Title: "Register", Error: err.Error(), Form: formValues})
		return
	}

	h.authenticate(w, r, "register", formValues, func() (*model.AuthResponse, error) {
		return h.service.Register(r.Context(), form.Email, form.Password)
	})
}

// authenticate はログイン系の共通処理。
// 同時に1つの認証フローのみ許可し、成功時はStoreにセッションを書き込んでロール別の画面へ遷移する。
func (h *AuthHandler) authenticate(w http.ResponseWriter, r *http.Request, page string, formValues map[string]string, call func() (*model.AuthResponse, error)) {
	title := strings.ToUpper(page[:1]) + page[1:]

	if !h.store.TryBeginLoading() {
		h.renderer.Render(w, r, http.StatusConflict, page, viewData{
			Title: title, Error: model.NewLoginInProgressError().Message, Form: formValues,
		})
		return
	}
	defer h.store.SetLoading(false)

	resp, err := call()
	if err != nil {
		h.renderer.Render(w, r, backendStatus(err), page, viewData{
			Title: title, Error: apiclient.MessageOf(err, fallbackMessage), Form: formValues,
		})
		return
	}

	if err := h.store.Login(r.Context(), resp.Token, resp.User); err != nil {
		if !errors.Is(err, session.ErrNotPersisted) {
			h.logger.Error("バックエンドの認証レスポンスが不正です",
				slog.String("error", err.Error()),
			)
			h.renderer.Render(w, r, http.StatusBadGateway, page, viewData{
				Title: title, Error: model.NewBackendFailedError("").Message, Form: formValues,
			})
			return
		}
		// 永続化に失敗してもプロセス内のセッションは有効
		h.logger.Warn("セッションを永続化できませんでした",
			slog.String("user_id", resp.User.ID),
		)
	}

	h.logger.Info("ログインしました",
		slog.String("user_id", resp.User.ID),
		slog.String("role", string(resp.User.Role)),
	)
	http.Redirect(w, r, landingPath(resp.User), http.StatusSeeOther)
}

// ForgotPasswordPage はパスワード再設定メール送信画面を表示する。
// GET /forgot-password
func (h *AuthHandler) ForgotPasswordPage(w http.ResponseWriter, r *http.Request) {
	h.renderer.Render(w, r, http.StatusOK, "forgot_password", viewData{Title: "Forgot Password"})
}

// ForgotPassword はパスワード再設定メールの送信を要求する。
// POST /forgot-password
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	form := forgotPasswordForm{Email: strings.TrimSpace(r.PostFormValue("email"))}
	data := viewData{Title: "Forgot Password", Form: map[string]string{"email": form.Email}}

	if err := validateForm(form); err != nil {
		data.Error = err.Error()
		h.renderer.Render(w, r, http.StatusBadRequest, "forgot_password", data)
		return
	}

	msg, err := h.service.ForgotPassword(r.Context(), form.Email)
	if err != nil {
		data.Error = apiclient.MessageOf(err, fallbackMessage)
		h.renderer.Render(w, r, backendStatus(err), "forgot_password", data)
		return
	}

	if msg == "" {
		msg = "Password reset email sent. Check your inbox."
	}
	data.Notice = msg
	h.renderer.Render(w, r, http.StatusOK, "forgot_password", data)
}

// ResetPasswordPage はパスワード再設定画面を表示する。
// GET /reset-password/{token}
func (h *AuthHandler) ResetPasswordPage(w http.ResponseWriter, r *http.Request) {
	resetToken := chi.URLParam(r, "token")
	data := viewData{Title: "Reset Password", Data: resetToken}
	if resetToken == "" {
		data.Error = "Password reset token is missing."
	}
	h.renderer.Render(w, r, http.StatusOK, "reset_password", data)
}

// ResetPassword は再設定トークンでパスワードを更新し、ログイン画面へ遷移する。
// POST /reset-password/{token}
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	resetToken := chi.URLParam(r, "token")
	data := viewData{Title: "Reset Password", Data: resetToken}
	if resetToken == "" {
		data.Error = "Password reset token is missing."
		h.renderer.Render(w, r, http.StatusBadRequest, "reset_password", data)
		return
	}

	form := resetPasswordForm{
		Password:        r.PostFormValue("password"),
		ConfirmPassword: r.PostFormValue("confirm_password"),
	}
	if err := validateForm(form); err != nil {
		data.Error = err.Error()
		h.renderer.Render(w, r, http.StatusBadRequest, "reset_password", data)
		return
	}

	if _, err := h.service.ResetPassword(r.Context(), resetToken, form.Password); err != nil {
		data.Error = apiclient.MessageOf(err, fallbackMessage)
		h.renderer.Render(w, r, backendStatus(err), "reset_password", data)
		return
	}

	http.Redirect(w, r, "/login?reset=1", http.StatusSeeOther)
}

// Logout はセッションを破棄してトップページへ遷移する。
// 何度呼んでも同じ結果になる。
// POST /logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	userID := session.FromContext(r.Context()).UserID()
	if err := h.store.Logout(r.Context()); err != nil {
		h.logger.Warn("ログアウトの永続化に失敗しました",
			slog.String("error", err.Error()),
		)
	}
	if userID != "" {
		h.logger.Info("ログアウトしました", slog.String("user_id", userID))
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
