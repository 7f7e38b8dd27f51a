package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// findMetric は指定名・ラベルのメトリクスを探す。
func findMetric(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) *dto.Metric {
	t.Helper()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if labelsMatch(m, labels) {
				return m
			}
		}
	}
	t.Fatalf("%s%v metric not found", name, labels)
	return nil
}

func labelsMatch(m *dto.Metric, labels map[string]string) bool {
	if len(m.GetLabel()) != len(labels) {
		return false
	}
	for _, lp := range m.GetLabel() {
		if labels[lp.GetName()] != lp.GetValue() {
			return false
		}
	}
	return true
}

// TestNewCollector_ReturnsNonNil はCollectorが正常に生成されることを検証する。
func TestNewCollector_ReturnsNonNil(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	if c == nil {
		t.Fatal("expected non-nil Collector")
	}
}

// TestRecordCandidates_SetsGaugePerAction は候補数ゲージがアクション別に上書きされることを検証する。
func TestRecordCandidates_SetsGaugePerAction(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordCandidates("suspend", 5)
	c.RecordCandidates("suspend", 3)
	c.RecordCandidates("delete", 1)

	if v := findMetric(t, reg, "cleanupusers_candidates", map[string]string{"action": "suspend"}).GetGauge().GetValue(); v != 3 {
		t.Errorf("candidates{action=suspend} = %v, want 3", v)
	}
	if v := findMetric(t, reg, "cleanupusers_candidates", map[string]string{"action": "delete"}).GetGauge().GetValue(); v != 1 {
		t.Errorf("candidates{action=delete} = %v, want 1", v)
	}
}

// TestRecordPass_CountsAndObserves はパス数と所要時間が記録されることを検証する。
func TestRecordPass_CountsAndObserves(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordPass(PassSucceeded, 2*time.Second)
	c.RecordPass(PassDirectoryFailed, 100*time.Millisecond)
	c.RecordPass(PassSucceeded, time.Second)

	if v := findMetric(t, reg, "cleanupusers_passes_total", map[string]string{"result": PassSucceeded}).GetCounter().GetValue(); v != 2 {
		t.Errorf("passes_total{result=success} = %v, want 2", v)
	}
	if v := findMetric(t, reg, "cleanupusers_passes_total", map[string]string{"result": PassDirectoryFailed}).GetCounter().GetValue(); v != 1 {
		t.Errorf("passes_total{result=directory_failed} = %v, want 1", v)
	}
	h := findMetric(t, reg, "cleanupusers_pass_duration_seconds", nil).GetHistogram()
	if h.GetSampleCount() != 3 {
		t.Errorf("sample count = %d, want 3", h.GetSampleCount())
	}
	if h.GetSampleSum() < 3.09 || h.GetSampleSum() > 3.11 {
		t.Errorf("sample sum = %v, want 3.1", h.GetSampleSum())
	}
}

// TestRecordAnomaly_IncrementsCounterWithReason は異常カウンタが理由別に増加することを検証する。
func TestRecordAnomaly_IncrementsCounterWithReason(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordAnomaly("archive_missing")
	c.RecordAnomaly("archive_missing")

	if v := findMetric(t, reg, "cleanupusers_anomalies_total", map[string]string{"reason": "archive_missing"}).GetCounter().GetValue(); v != 2 {
		t.Errorf("anomalies_total = %v, want 2", v)
	}
}

// TestRecordDirectoryPrincipals_SetsGauge はプリンシパル数ゲージを検証する。
func TestRecordDirectoryPrincipals_SetsGauge(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordDirectoryPrincipals(1234)

	if v := findMetric(t, reg, "cleanupusers_directory_principals", nil).GetGauge().GetValue(); v != 1234 {
		t.Errorf("directory_principals = %v, want 1234", v)
	}
}

// TestRecordMutation_IncrementsCounterWithLabels は変更操作カウンタを検証する。
func TestRecordMutation_IncrementsCounterWithLabels(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordMutation("suspend", MutationApplied)
	c.RecordMutation("suspend", MutationFailed)
	c.RecordMutation("suspend", MutationApplied)

	if v := findMetric(t, reg, "cleanupusers_mutations_total", map[string]string{"action": "suspend", "result": MutationApplied}).GetCounter().GetValue(); v != 2 {
		t.Errorf("mutations_total{applied} = %v, want 2", v)
	}
	if v := findMetric(t, reg, "cleanupusers_mutations_total", map[string]string{"action": "suspend", "result": MutationFailed}).GetCounter().GetValue(); v != 1 {
		t.Errorf("mutations_total{failed} = %v, want 1", v)
	}
}

// TestMultipleCollectors_IndependentRegistries は別レジストリのCollectorが干渉しないことを検証する。
func TestMultipleCollectors_IndependentRegistries(t *testing.T) {
	reg1 := prometheus.NewRegistry()
	reg2 := prometheus.NewRegistry()
	c1 := NewCollector(reg1)
	NewCollector(reg2)

	c1.RecordAnomaly("archive_missing")

	families, err := reg2.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() == "cleanupusers_anomalies_total" && len(mf.GetMetric()) != 0 {
			t.Error("reg2 should not observe anomalies recorded on reg1")
		}
	}
}
