package apiclient

import (
	"context"
	"log/slog"
	"net/http"
)

// TokenSource は署名に使うトークンの取得元。
// InvalidateTokenは送信したトークンが現在のものと一致する場合のみセッションを破棄する。
type TokenSource interface {
	Token() string
	InvalidateToken(ctx context.Context, token string) (bool, error)
}

// Signer はリクエストごとに現在のトークンを読み出し、
// Authorization: Bearer ヘッダーを付与するhttp.RoundTripper。
// 署名したリクエストに401が返った場合は送信したトークンを失効させる。
type Signer struct {
	base   http.RoundTripper
	source TokenSource
	logger *slog.Logger
}

// NewSigner はSignerを生成する。baseがnilの場合はhttp.DefaultTransportを使用する。
func NewSigner(base http.RoundTripper, source TokenSource, logger *slog.Logger) *Signer {
	if base == nil {
		base = http.DefaultTransport
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Signer{base: base, source: source, logger: logger}
}

// RoundTrip はhttp.RoundTripperを実装する。
func (s *Signer) RoundTrip(req *http.Request) (*http.Response, error) {
	token := s.source.Token()
	if token != "" {
		// RoundTripperは元のリクエストを変更してはならない
		req = req.Clone(req.Context())
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized && token != "" {
		invalidated, invErr := s.source.InvalidateToken(req.Context(), token)
		if invErr != nil {
			s.logger.Warn("失効したトークンの破棄を永続化できませんでした",
				slog.String("error", invErr.Error()),
			)
		}
		if invalidated {
			s.logger.Info("バックエンドが401を返したためセッションを破棄しました",
				slog.String("method", req.Method),
				slog.String("path", req.URL.Path),
			)
		}
	}

	return resp, nil
}

var _ http.RoundTripper = (*Signer)(nil)
