// Package linkcheck はプロジェクトに登録された外部リンクの疎通確認を提供する。
// 確認はSSRF対策済みクライアントで行い、semaphoreパターンで並列数を制御する。
package linkcheck

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/hitoshi/folio/internal/model"
)

// SafeClientFactory はURL検証と安全なHTTPクライアント生成のインターフェース。
type SafeClientFactory interface {
	ValidateURL(rawURL string) error
	NewSafeClient(timeout time.Duration) *http.Client
}

// Recorder はリンク確認結果のメトリクス記録先。
type Recorder interface {
	RecordLinkCheck(healthy bool)
}

// Target は確認対象のリンク。
type Target struct {
	ProjectID string
	URL       string
}

// TargetsFromProjects はプロジェクト一覧からgithubUrl/liveUrlの確認対象を組み立てる。
// 空のURLは対象外とする。
func TargetsFromProjects(projects []model.Project) []Target {
	var targets []Target
	for _, p := range projects {
		for _, u := range []string{p.GithubURL, p.LiveURL} {
			if u == "" {
				continue
			}
			targets = append(targets, Target{ProjectID: p.ID, URL: u})
		}
	}
	return targets
}

// Checker は外部リンクの疎通確認を行う。
type Checker struct {
	guard          SafeClientFactory
	recorder       Recorder
	logger         *slog.Logger
	timeout        time.Duration
	maxConcurrency int
	now            func() time.Time
}

// NewChecker はCheckerの新しいインスタンスを生成する。
// maxConcurrencyが0以下の場合はデフォルト値4を使用する。
func NewChecker(
	guard SafeClientFactory,
	recorder Recorder,
	logger *slog.Logger,
	timeout time.Duration,
	maxConcurrency int,
) *Checker {
	if maxConcurrency <= 0 {
		maxConcurrency = 4
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Checker{
		guard:          guard,
		recorder:       recorder,
		logger:         logger,
		timeout:        timeout,
		maxConcurrency: maxConcurrency,
		now:            time.Now,
	}
}

// CheckAll は全対象を並列に確認し、入力と同じ順序で結果を返す。
func (c *Checker) CheckAll(ctx context.Context, targets []Target) []model.LinkStatus {
	start := time.Now()
	results := make([]model.LinkStatus, len(targets))
	if len(targets) == 0 {
		return results
	}

	// semaphoreパターンで並列数を制御
	sem := make(chan struct{}, c.maxConcurrency)
	var wg sync.WaitGroup

	for i, target := range targets {
		wg.Add(1)
		sem <- struct{}{}

		go func(i int, t Target) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = c.Check(ctx, t)
		}(i, target)
	}

	wg.Wait()

	c.logger.Info("リンク確認が完了しました",
		slog.Int("link_count", len(targets)),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return results
}

// Check は1件のリンクを確認する。
// HEADを拒否するサーバーにはGETで再試行する。
func (c *Checker) Check(ctx context.Context, target Target) model.LinkStatus {
	status := model.LinkStatus{
		ProjectID: target.ProjectID,
		URL:       target.URL,
		CheckedAt: c.now(),
	}

	if err := c.guard.ValidateURL(target.URL); err != nil {
		status.Error = err.Error()
		c.record(status)
		return status
	}

	client := c.guard.NewSafeClient(c.timeout)
	code, err := c.do(ctx, client, http.MethodHead, target.URL)
	if err == nil && (code == http.StatusMethodNotAllowed || code == http.StatusNotImplemented) {
		code, err = c.do(ctx, client, http.MethodGet, target.URL)
	}
	if err != nil {
		status.Error = err.Error()
		c.logger.Warn("リンク確認に失敗しました",
			slog.String("project_id", target.ProjectID),
			slog.String("url", target.URL),
			slog.String("error", err.Error()),
		)
		c.record(status)
		return status
	}

	status.StatusCode = code
	result := ClassifyHTTPStatus(code)
	status.Healthy = result == LinkResultHealthy
	if !status.Healthy {
		status.Error = result.String()
	}
	c.record(status)
	return status
}

func (c *Checker) do(ctx context.Context, client *http.Client, method, rawURL string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return 0, fmt.Errorf("リクエスト作成に失敗: %w", err)
	}
	req.Header.Set("User-Agent", "Folio/1.0 LinkChecker")

	resp, err := client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("HTTPリクエスト失敗: %w", err)
	}
	resp.Body.Close()
	return resp.StatusCode, nil
}

func (c *Checker) record(status model.LinkStatus) {
	if c.recorder != nil {
		c.recorder.RecordLinkCheck(status.Healthy)
	}
}
