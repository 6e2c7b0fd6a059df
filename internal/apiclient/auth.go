package apiclient

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/hitoshi/folio/internal/model"
)

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login はメールアドレスとパスワードで認証し、トークンとユーザーを返す。
func (c *Client) Login(ctx context.Context, email, password string) (*model.AuthResponse, error) {
	var out model.AuthResponse
	if err := c.do(ctx, http.MethodPost, "/auth/login", credentials{email, password}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Register は新規ユーザーを登録し、トークンとユーザーを返す。
func (c *Client) Register(ctx context.Context, email, password string) (*model.AuthResponse, error) {
	var out model.AuthResponse
	if err := c.do(ctx, http.MethodPost, "/auth/register", credentials{email, password}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ForgotPassword はパスワード再設定メールを要求し、バックエンドのメッセージを返す。
func (c *Client) ForgotPassword(ctx context.Context, email string) (string, error) {
	var out Envelope[string]
	body := map[string]string{"email": email}
	if err := c.do(ctx, http.MethodPost, "/auth/forgotpassword", body, &out); err != nil {
		return "", err
	}
	if out.Data != "" {
		return out.Data, nil
	}
	return out.Message, nil
}

// ResetPassword は再設定トークンでパスワードを更新する。
func (c *Client) ResetPassword(ctx context.Context, resetToken, password string) (*model.AuthResponse, error) {
	var out model.AuthResponse
	body := map[string]string{"password": password}
	if err := c.do(ctx, http.MethodPut, "/auth/resetpassword/"+url.PathEscape(resetToken), body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdatePassword はログイン中ユーザーのパスワードを更新し、新しいトークンとユーザーを返す。
func (c *Client) UpdatePassword(ctx context.Context, currentPassword, newPassword string) (*model.AuthResponse, error) {
	var out model.AuthResponse
	body := map[string]string{"currentPassword": currentPassword, "newPassword": newPassword}
	if err := c.do(ctx, http.MethodPut, "/auth/updatepassword", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Me はログイン中ユーザーの最新レコードを返す。
func (c *Client) Me(ctx context.Context) (*model.User, error) {
	var out Envelope[*model.User]
	if err := c.do(ctx, http.MethodGet, "/auth/me", nil, &out); err != nil {
		return nil, err
	}
	if out.Data == nil {
		return nil, fmt.Errorf("GET /auth/me: empty user")
	}
	return out.Data, nil
}

// ListUsers は全ユーザーを返す（owner限定）。
func (c *Client) ListUsers(ctx context.Context) ([]model.User, error) {
	var out Envelope[[]model.User]
	if err := c.do(ctx, http.MethodGet, "/auth/users", nil, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

// UpdateUserRole はユーザーのロールを変更する（owner限定）。
func (c *Client) UpdateUserRole(ctx context.Context, userID string, role model.Role) (*model.User, error) {
	var out Envelope[*model.User]
	body := map[string]string{"role": string(role)}
	if err := c.do(ctx, http.MethodPut, "/auth/users/"+url.PathEscape(userID)+"/role", body, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}
