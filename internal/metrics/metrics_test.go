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
	if c := NewCollector(reg); c == nil {
		t.Fatal("expected non-nil Collector")
	}
}

// TestRecordProbe_CountsByResult はプローブ結果別にカウンタが増加することを検証する。
func TestRecordProbe_CountsByResult(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordProbe(ResultAlive, 100*time.Millisecond)
	c.RecordProbe(ResultAlive, 200*time.Millisecond)
	c.RecordProbe(ResultNetwork, time.Second)

	mf := findMetricFamily(t, reg, "sublink_probe_total")
	got := map[string]float64{}
	for _, m := range mf.GetMetric() {
		got[labelValue(m, "result")] = m.GetCounter().GetValue()
	}
	if got[ResultAlive] != 2 {
		t.Errorf("alive = %v, want 2", got[ResultAlive])
	}
	if got[ResultNetwork] != 1 {
		t.Errorf("network_error = %v, want 1", got[ResultNetwork])
	}

	latency := findMetricFamily(t, reg, "sublink_probe_latency_seconds")
	if count := latency.GetMetric()[0].GetHistogram().GetSampleCount(); count != 3 {
		t.Errorf("latency sample count = %d, want 3", count)
	}
}

// TestRecordBatch_SplitsAliveAndDead はバッチ結果が生存/死亡に分けて記録されることを検証する。
func TestRecordBatch_SplitsAliveAndDead(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordBatch(10, 7)

	mf := findMetricFamily(t, reg, "sublink_batch_links_total")
	got := map[string]float64{}
	for _, m := range mf.GetMetric() {
		got[labelValue(m, "outcome")] = m.GetCounter().GetValue()
	}
	if got["alive"] != 7 || got["dead"] != 3 {
		t.Errorf("batch = %v, want alive=7 dead=3", got)
	}
}

// TestRecordSubscriptionStates_SetsGauges は状態別ゲージが上書きされることを検証する。
func TestRecordSubscriptionStates_SetsGauges(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordSubscriptionStates(5, 5, 5)
	c.RecordSubscriptionStates(4, 2, 1)

	mf := findMetricFamily(t, reg, "sublink_subscriptions")
	got := map[string]float64{}
	for _, m := range mf.GetMetric() {
		got[labelValue(m, "state")] = m.GetGauge().GetValue()
	}
	if got["healthy"] != 4 || got["failing"] != 2 || got["prunable"] != 1 {
		t.Errorf("states = %v, want healthy=4 failing=2 prunable=1", got)
	}
}

// TestRecordPruned_AddsCount は削除件数が加算されることを検証する。
func TestRecordPruned_AddsCount(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordPruned(2)
	c.RecordPruned(3)

	mf := findMetricFamily(t, reg, "sublink_pruned_total")
	if val := mf.GetMetric()[0].GetCounter().GetValue(); val != 5 {
		t.Errorf("pruned_total = %v, want 5", val)
	}
}

// TestCollector_ImplementsInterface はCollectorとNopがインターフェースを満たすことを検証する。
func TestCollector_ImplementsInterface(t *testing.T) {
	var _ MetricsCollector = (*Collector)(nil)
	var _ MetricsCollector = Nop{}
}
