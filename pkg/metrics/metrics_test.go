package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestMetricsExportsCountersAndHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveHTTP("GET", "/api/v1/contacts/{contactId}", 200, 250*time.Millisecond)
	m.SynergyCreated()
	m.SynergyCreated()
	m.SynergyArchived()
	m.PrimaryReassigned()
	m.Conflict("link_contact")
	m.Conflict("")
	m.OutboxResult("published", 3)
	m.OutboxResult("failed", 0)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	expectCounter(t, mfs, "crm_synergy_derivations_total", "action", "created", 2)
	expectCounter(t, mfs, "crm_synergy_derivations_total", "action", "archived", 1)
	expectCounter(t, mfs, "crm_conflicts_total", "operation", "link_contact", 1)
	expectCounter(t, mfs, "crm_conflicts_total", "operation", "unknown", 1)
	expectCounter(t, mfs, "crm_outbox_events_total", "result", "published", 3)

	if _, err := fetchCounterValue(mfs, "crm_outbox_events_total", "result", "failed"); err == nil {
		t.Fatalf("expected zero-count add to be skipped")
	}

	reassigned := findMetricFamily(mfs, "crm_primary_reassignments_total")
	if reassigned == nil || reassigned.GetMetric()[0].GetCounter().GetValue() != 1 {
		t.Fatalf("expected one primary reassignment")
	}

	if got, err := fetchHistogramSum(mfs, "crm_http_request_duration_seconds", "route", "/api/v1/contacts/{contactId}"); err != nil {
		t.Fatalf("fetch duration: %v", err)
	} else if got <= 0 {
		t.Fatalf("expected duration sum > 0, got %f", got)
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.ObserveHTTP("GET", "/", 200, time.Second)
	m.SynergyCreated()
	m.SynergyArchived()
	m.PrimaryReassigned()
	m.Conflict("x")
	m.OutboxResult("published", 1)

	unregistered := New(nil)
	unregistered.SynergyCreated()
}

func expectCounter(t *testing.T, mfs []*dto.MetricFamily, name, label, value string, want float64) {
	t.Helper()
	got, err := fetchCounterValue(mfs, name, label, value)
	if err != nil {
		t.Fatalf("fetch %s: %v", name, err)
	}
	if got != want {
		t.Fatalf("expected %s{%s=%q}=%v, got %v", name, label, value, want, got)
	}
}

func fetchCounterValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing label %s=%s", name, label, value)
}

func fetchHistogramSum(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetHistogram().GetSampleSum(), nil
		}
	}
	return 0, fmt.Errorf("histogram %q missing label %s=%s", name, label, value)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabel(labels []*dto.LabelPair, name, value string) bool {
	for _, label := range labels {
		if label.GetName() == name && label.GetValue() == value {
			return true
		}
	}
	return false
}
