// Package expiry は有効期限切れセッションの定期破棄ジョブを提供する。
// 起動後にJWTのexpを過ぎたトークンを、バックエンドの401を待たずに破棄する。
package expiry

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// DefaultInterval は確認間隔のデフォルト値。
const DefaultInterval = time.Minute

// SessionExpirer は期限切れトークンを破棄するインターフェース。session.Storeが満たす。
type SessionExpirer interface {
	ExpireToken(ctx context.Context) (bool, error)
}

// Job は期限切れセッションの破棄ジョブ。
// 何度実行しても結果は変わらない。
type Job struct {
	store    SessionExpirer
	logger   *slog.Logger
	Interval time.Duration
}

// NewJob は新しいJobを生成する。確認間隔はDefaultInterval。
func NewJob(store SessionExpirer, logger *slog.Logger) *Job {
	if logger == nil {
		logger = slog.Default()
	}
	return &Job{
		store:    store,
		logger:   logger,
		Interval: DefaultInterval,
	}
}

// Run は現在のセッションを1回確認し、期限切れであれば破棄する。
// 破棄の永続化に失敗した場合はエラーを返すが、メモリ上のセッションは破棄済み。
func (j *Job) Run(ctx context.Context) error {
	start := time.Now()

	expired, err := j.store.ExpireToken(ctx)
	if err != nil {
		j.logger.Error("期限切れセッションの破棄に失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("期限切れセッションの破棄に失敗: %w", err)
	}

	if expired {
		j.logger.Info("期限切れセッションを破棄しました",
			slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
		)
	}
	return nil
}

// Start はctxがキャンセルされるまでIntervalごとにRunを実行する（ブロッキング）。
// 起動直後にも1回実行する。
func (j *Job) Start(ctx context.Context) {
	interval := j.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}

	j.Run(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.Run(ctx)
		}
	}
}
