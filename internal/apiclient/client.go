// Package apiclient はポートフォリオバックエンドのREST APIクライアントを提供する。
// 全リクエストはSignerで署名され、X-Request-IDの付与、外向きレート制限、
// ステータスコードとレイテンシのメトリクス記録を行う。
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/hitoshi/folio/internal/middleware"
)

// maxResponseSize はレスポンスボディの最大読み取りサイズ（4MB）。
const maxResponseSize = 4 << 20

// Recorder はバックエンド呼び出しのメトリクス記録先。
type Recorder interface {
	RecordHTTPStatus(statusCode int)
	RecordAPILatency(duration time.Duration)
}

// Config はClientの設定。
type Config struct {
	BaseURL       string
	Timeout       time.Duration
	RatePerMinute int
}

// Envelope はバックエンドの共通レスポンス形式 {success, data, count, message}。
type Envelope[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data"`
	Count   int    `json:"count"`
	Message string `json:"message"`
}

// Client はバックエンドAPIのクライアント。
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	recorder   Recorder
	logger     *slog.Logger
}

// Option はClientの任意設定。
type Option func(*Client)

// WithTransport は署名前の下位トランスポートを差し替える。
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) { c.httpClient.Transport = rt }
}

// WithRecorder はメトリクス記録先を設定する。
func WithRecorder(rec Recorder) Option {
	return func(c *Client) { c.recorder = rec }
}

// WithLogger はロガーを設定する。
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// New はClientを生成する。sourceから読み出したトークンで全リクエストに署名する。
// RatePerMinuteが0以下の場合はレート制限を行わない。
func New(cfg Config, source TokenSource, opts ...Option) *Client {
	limit := rate.Inf
	burst := 1
	if cfg.RatePerMinute > 0 {
		limit = rate.Limit(float64(cfg.RatePerMinute) / 60.0)
		burst = max(1, cfg.RatePerMinute/10)
	}

	c := &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(limit, burst),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.httpClient.Transport = NewSigner(c.httpClient.Transport, source, c.logger)
	return c
}

// do はJSONリクエストを送信し、成功レスポンスをoutにデコードする。
// 4xx/5xxの場合はバックエンドのmessageを持つ*Errorを返す。
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter wait: %w", err)
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(middleware.RequestIDHeader, requestID(ctx))

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.recordLatency(time.Since(start))
	if err != nil {
		c.logger.Error("バックエンドの呼び出しに失敗しました",
			slog.String("method", method),
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	c.recordStatus(resp.StatusCode)

	// 上限を1バイト超えて読み、切り詰めが起きたかを判定する
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize+1))
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	tooLarge := len(data) > maxResponseSize
	if tooLarge {
		data = data[:maxResponseSize]
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(resp.StatusCode, data)
	}

	if tooLarge {
		c.logger.Warn("バックエンドのレスポンスが上限を超えました",
			slog.String("method", method),
			slog.String("path", path),
			slog.Int("limit_bytes", maxResponseSize),
		)
		return fmt.Errorf("%s %s: %w (limit %d bytes)", method, path, ErrResponseTooLarge, maxResponseSize)
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// decodeError はエラーレスポンスのmessage（またはerror）を取り出す。
func decodeError(statusCode int, data []byte) error {
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	msg := ""
	if err := json.Unmarshal(data, &body); err == nil {
		msg = body.Message
		if msg == "" {
			msg = body.Error
		}
	}
	if msg == "" {
		msg = http.StatusText(statusCode)
	}
	return &Error{StatusCode: statusCode, Message: msg}
}

// requestID は受信リクエストのIDを引き継ぎ、なければ新規に生成する。
func requestID(ctx context.Context) string {
	if id := middleware.RequestIDFromContext(ctx); id != "" {
		return id
	}
	return uuid.NewString()
}

func (c *Client) recordStatus(code int) {
	if c.recorder != nil {
		c.recorder.RecordHTTPStatus(code)
	}
}

func (c *Client) recordLatency(d time.Duration) {
	if c.recorder != nil {
		c.recorder.RecordAPILatency(d)
	}
}
