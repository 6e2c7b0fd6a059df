// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// セッションストア、ルートガード、APIクライアントから利用する。
type MetricsCollector interface {
	RecordLogin()
	RecordLogout()
	RecordPersistFailure(op string)
	RecordCorruptedSession()
	SetAuthenticated(authenticated bool)
	RecordGuardDecision(decision string)
	RecordHTTPStatus(statusCode int)
	RecordAPILatency(duration time.Duration)
	RecordLinkCheck(healthy bool)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	logins           prometheus.Counter
	logouts          prometheus.Counter
	persistFailures  *prometheus.CounterVec
	corruptedSession prometheus.Counter
	authenticated    prometheus.Gauge
	guardDecisions   *prometheus.CounterVec
	httpStatus       *prometheus.CounterVec
	apiLatency       prometheus.Histogram
	linkChecks       *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		logins: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "folio_session_login_total",
			Help: "セッションへのログイン反映の合計数",
		}),
		logouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "folio_session_logout_total",
			Help: "セッションのログアウトの合計数",
		}),
		persistFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "folio_session_persist_failure_total",
			Help: "セッションの永続化に失敗した操作の合計数",
		}, []string{"op"}),
		corruptedSession: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "folio_session_corrupted_total",
			Help: "破損した永続セッションを破棄した合計数",
		}),
		authenticated: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "folio_session_authenticated",
			Help: "現在認証済みセッションを保持している場合は1",
		}),
		guardDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "folio_guard_decision_total",
			Help: "ルートガードの判定結果別の合計数",
		}, []string{"decision"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "folio_api_http_status_total",
			Help: "バックエンドAPIのHTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		apiLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "folio_api_latency_seconds",
			Help:    "バックエンドAPI呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		linkChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "folio_link_check_total",
			Help: "プロジェクトリンク疎通確認の結果別の合計数",
		}, []string{"result"}),
	}

	reg.MustRegister(
		c.logins,
		c.logouts,
		c.persistFailures,
		c.corruptedSession,
		c.authenticated,
		c.guardDecisions,
		c.httpStatus,
		c.apiLatency,
		c.linkChecks,
	)

	return c
}

// RecordLogin はログインを記録する。
func (c *Collector) RecordLogin() {
	c.logins.Inc()
}

// RecordLogout はログアウトを記録する。
func (c *Collector) RecordLogout() {
	c.logouts.Inc()
}

// RecordPersistFailure は永続化失敗を操作名ごとに記録する。
func (c *Collector) RecordPersistFailure(op string) {
	c.persistFailures.WithLabelValues(op).Inc()
}

// RecordCorruptedSession は破損セッションの破棄を記録する。
func (c *Collector) RecordCorruptedSession() {
	c.corruptedSession.Inc()
}

// SetAuthenticated は認証状態ゲージを更新する。
func (c *Collector) SetAuthenticated(authenticated bool) {
	if authenticated {
		c.authenticated.Set(1)
		return
	}
	c.authenticated.Set(0)
}

// RecordGuardDecision はルートガードの判定結果を記録する。
func (c *Collector) RecordGuardDecision(decision string) {
	c.guardDecisions.WithLabelValues(decision).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordAPILatency はAPI呼び出しのレイテンシを記録する。
func (c *Collector) RecordAPILatency(duration time.Duration) {
	c.apiLatency.Observe(duration.Seconds())
}

// RecordLinkCheck はリンク疎通確認の結果を記録する。
func (c *Collector) RecordLinkCheck(healthy bool) {
	result := "unhealthy"
	if healthy {
		result = "healthy"
	}
	c.linkChecks.WithLabelValues(result).Inc()
}

// Nop は何も記録しないMetricsCollector。テストやメトリクス無効時に使用する。
type Nop struct{}

func (Nop) RecordLogin()                   {}
func (Nop) RecordLogout()                  {}
func (Nop) RecordPersistFailure(string)    {}
func (Nop) RecordCorruptedSession()        {}
func (Nop) SetAuthenticated(bool)          {}
func (Nop) RecordGuardDecision(string)     {}
func (Nop) RecordHTTPStatus(int)           {}
func (Nop) RecordAPILatency(time.Duration) {}
func (Nop) RecordLinkCheck(bool)           {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// Prometheusスクレイプに対応する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}

// compile-time interface check
var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = Nop{}
)
