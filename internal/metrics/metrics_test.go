package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// findMetricFamily はレジストリから指定名のメトリクスファミリーを取得する。
func findMetricFamily(t *testing.T, reg *prometheus.Registry, name string) *dto.MetricFamily {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() == name {
			return mf
		}
	}
	t.Fatalf("%s metric not found", name)
	return nil
}

// labelValue はメトリクスから指定ラベルの値を返す。
func labelValue(m *dto.Metric, name string) string {
	for _, lp := range m.GetLabel() {
		if lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}

// TestNewCollector_ReturnsNonNil はCollectorが正常に生成されることを検証する。
func TestNewCollector_ReturnsNonNil(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	if c == nil {
		t.Fatal("expected non-nil Collector")
	}
}

// TestRecordLogin_IncrementsCounter はログインカウンタが増加することを検証する。
func TestRecordLogin_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordLogin()
	c.RecordLogin()

	mf := findMetricFamily(t, reg, "folio_session_login_total")
	if val := mf.GetMetric()[0].GetCounter().GetValue(); val != 2 {
		t.Errorf("login_total = %v, want 2", val)
	}
}

// TestRecordLogout_IncrementsCounter はログアウトカウンタが増加することを検証する。
func TestRecordLogout_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordLogout()

	mf := findMetricFamily(t, reg, "folio_session_logout_total")
	if val := mf.GetMetric()[0].GetCounter().GetValue(); val != 1 {
		t.Errorf("logout_total = %v, want 1", val)
	}
}

// TestRecordPersistFailure_LabelsByOperation は永続化失敗が操作別に記録されることを検証する。
func TestRecordPersistFailure_LabelsByOperation(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordPersistFailure("login")
	c.RecordPersistFailure("login")
	c.RecordPersistFailure("logout")

	mf := findMetricFamily(t, reg, "folio_session_persist_failure_total")
	got := map[string]float64{}
	for _, m := range mf.GetMetric() {
		got[labelValue(m, "op")] = m.GetCounter().GetValue()
	}
	if got["login"] != 2 {
		t.Errorf("persist_failure{op=login} = %v, want 2", got["login"])
	}
	if got["logout"] != 1 {
		t.Errorf("persist_failure{op=logout} = %v, want 1", got["logout"])
	}
}

// TestRecordCorruptedSession_IncrementsCounter は破損セッションカウンタが増加することを検証する。
func TestRecordCorruptedSession_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordCorruptedSession()

	mf := findMetricFamily(t, reg, "folio_session_corrupted_total")
	if val := mf.GetMetric()[0].GetCounter().GetValue(); val != 1 {
		t.Errorf("corrupted_total = %v, want 1", val)
	}
}

// TestSetAuthenticated_TogglesGauge は認証ゲージが0/1で切り替わることを検証する。
func TestSetAuthenticated_TogglesGauge(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.SetAuthenticated(true)
	mf := findMetricFamily(t, reg, "folio_session_authenticated")
	if val := mf.GetMetric()[0].GetGauge().GetValue(); val != 1 {
		t.Errorf("authenticated = %v, want 1", val)
	}

	c.SetAuthenticated(false)
	mf = findMetricFamily(t, reg, "folio_session_authenticated")
	if val := mf.GetMetric()[0].GetGauge().GetValue(); val != 0 {
		t.Errorf("authenticated = %v, want 0", val)
	}
}

// TestRecordGuardDecision_LabelsByDecision はガード判定が結果別に記録されることを検証する。
func TestRecordGuardDecision_LabelsByDecision(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordGuardDecision("allowed")
	c.RecordGuardDecision("redirected")
	c.RecordGuardDecision("redirected")

	mf := findMetricFamily(t, reg, "folio_guard_decision_total")
	got := map[string]float64{}
	for _, m := range mf.GetMetric() {
		got[labelValue(m, "decision")] = m.GetCounter().GetValue()
	}
	if got["allowed"] != 1 || got["redirected"] != 2 {
		t.Errorf("guard decisions = %v, want allowed=1 redirected=2", got)
	}
}

// TestRecordHTTPStatus_LabelsByStatusCode はHTTPステータスコードがラベル付きで記録されることを検証する。
func TestRecordHTTPStatus_LabelsByStatusCode(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordHTTPStatus(200)
	c.RecordHTTPStatus(200)
	c.RecordHTTPStatus(401)

	mf := findMetricFamily(t, reg, "folio_api_http_status_total")
	got := map[string]float64{}
	for _, m := range mf.GetMetric() {
		got[labelValue(m, "status_code")] = m.GetCounter().GetValue()
	}
	if got["200"] != 2 {
		t.Errorf("status 200 = %v, want 2", got["200"])
	}
	if got["401"] != 1 {
		t.Errorf("status 401 = %v, want 1", got["401"])
	}
}

// TestRecordAPILatency_ObservesHistogram はレイテンシがヒストグラムに記録されることを検証する。
func TestRecordAPILatency_ObservesHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordAPILatency(150 * time.Millisecond)
	c.RecordAPILatency(2 * time.Second)

	mf := findMetricFamily(t, reg, "folio_api_latency_seconds")
	h := mf.GetMetric()[0].GetHistogram()
	if h.GetSampleCount() != 2 {
		t.Errorf("sample count = %d, want 2", h.GetSampleCount())
	}
	if h.GetSampleSum() < 2.1 || h.GetSampleSum() > 2.2 {
		t.Errorf("sample sum = %v, want ~2.15", h.GetSampleSum())
	}
}

// TestRecordLinkCheck_LabelsByResult はリンク確認結果が記録されることを検証する。
func TestRecordLinkCheck_LabelsByResult(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordLinkCheck(true)
	c.RecordLinkCheck(false)

	mf := findMetricFamily(t, reg, "folio_link_check_total")
	got := map[string]float64{}
	for _, m := range mf.GetMetric() {
		got[labelValue(m, "result")] = m.GetCounter().GetValue()
	}
	if got["healthy"] != 1 || got["unhealthy"] != 1 {
		t.Errorf("link checks = %v, want healthy=1 unhealthy=1", got)
	}
}

// TestNewCollector_DuplicateRegistration_Panics は同一レジストリへの二重登録でpanicすることを検証する。
func TestNewCollector_DuplicateRegistration_Panics(t *testing.T) {
	reg := prometheus.NewRegistry()
	_ = NewCollector(reg)

	defer func() {
		if r := recover(); r == nil {
			t.Error("expected panic on duplicate registration")
		}
	}()
	_ = NewCollector(reg)
}
