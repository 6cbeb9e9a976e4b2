package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"

	"github.com/signalsfoundry/contention-simulator/model"
)

func sampleSummary(stations int) model.Summary {
	return model.Summary{
		StationCount:         stations,
		OccupiedFraction:     0.75,
		CollisionProbability: 0.2,
		FairnessVariance:     1.5,
		TotalSlots:           1000,
		OccupiedSlots:        750,
		Collisions:           3,
		Successes:            15,
		BlockedRequests:      40,
		Elapsed:              20 * time.Millisecond,
	}
}

func TestRecordPopulationUpdatesSeries(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewSweepCollector(reg)
	if err != nil {
		t.Fatalf("NewSweepCollector: %v", err)
	}

	c.RecordPopulation(sampleSummary(4))
	c.RecordPopulation(sampleSummary(5))

	if got := testutil.ToFloat64(c.Collisions.WithLabelValues("4")); got != 3 {
		t.Fatalf("contention_collisions_total{stations=4} = %v, want 3", got)
	}
	if got := testutil.ToFloat64(c.Transmissions.WithLabelValues("5")); got != 15 {
		t.Fatalf("contention_transmissions_total{stations=5} = %v, want 15", got)
	}
	if got := testutil.ToFloat64(c.Throughput.WithLabelValues("4")); got != 0.75 {
		t.Fatalf("contention_throughput_ratio{stations=4} = %v, want 0.75", got)
	}
	if got := testutil.ToFloat64(c.Slots); got != 2000 {
		t.Fatalf("contention_slots_total = %v, want 2000", got)
	}
	if got := testutil.ToFloat64(c.Populations); got != 2 {
		t.Fatalf("contention_populations_completed_total = %v, want 2", got)
	}
	if count := histogramSampleCount(t, reg, "contention_population_run_duration_seconds", nil); count != 2 {
		t.Fatalf("run duration sample_count = %d, want 2", count)
	}
	if v := gaugeValue(t, reg, "contention_fairness_variance", map[string]string{"stations": "5"}); v != 1.5 {
		t.Fatalf("contention_fairness_variance{stations=5} = %v, want 1.5", v)
	}
}

func TestNewSweepCollectorReusesRegistered(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewSweepCollector(reg)
	if err != nil {
		t.Fatalf("NewSweepCollector: %v", err)
	}
	second, err := NewSweepCollector(reg)
	if err != nil {
		t.Fatalf("second NewSweepCollector: %v", err)
	}
	if first.Collisions != second.Collisions {
		t.Fatal("expected already-registered collector to be reused")
	}
}

func TestNilCollectorIsSafe(t *testing.T) {
	var c *SweepCollector
	c.RecordPopulation(sampleSummary(1))
	if c.Gatherer() != nil {
		t.Fatal("nil collector returned a gatherer")
	}

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("nil collector handler status = %d, want 200", rec.Code)
	}
}

func TestMetricsHandlerExposesSweepSeries(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewSweepCollector(reg)
	if err != nil {
		t.Fatalf("NewSweepCollector: %v", err)
	}
	c.RecordPopulation(sampleSummary(3))

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	c.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("/metrics status = %d, want 200", rr.Code)
	}
	body := rr.Body.String()
	for _, metric := range []string{
		"contention_collisions_total",
		"contention_transmissions_total",
		"contention_throughput_ratio",
		"contention_collision_probability",
		"contention_population_run_duration_seconds",
	} {
		if !strings.Contains(body, metric) {
			t.Fatalf("expected %q in /metrics output", metric)
		}
	}
}

func TestWriteTextfile(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewSweepCollector(reg)
	if err != nil {
		t.Fatalf("NewSweepCollector: %v", err)
	}
	c.RecordPopulation(sampleSummary(2))

	path := filepath.Join(t.TempDir(), "sweep.prom")
	if err := c.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read textfile: %v", err)
	}
	if !strings.Contains(string(data), `contention_collisions_total{stations="2"} 3`) {
		t.Fatalf("textfile missing collision series:\n%s", data)
	}
}

func TestInitTracingDisabledIsNoop(t *testing.T) {
	shutdown, err := InitTracing(context.Background(), DefaultTracingConfig(), nil)
	if err != nil {
		t.Fatalf("InitTracing: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestInitTracingRejectsUnknownExporter(t *testing.T) {
	cfg := DefaultTracingConfig()
	cfg.Enabled = true
	cfg.Exporter = "carrier-pigeon"
	if _, err := InitTracing(context.Background(), cfg, nil); err == nil {
		t.Fatal("expected error for unsupported exporter")
	}
}

func TestApplyTracingEnv(t *testing.T) {
	t.Setenv("CSMA_TRACING_ENABLED", "true")
	t.Setenv("CSMA_TRACING_EXPORTER", "OTLP")
	t.Setenv("CSMA_TRACING_SAMPLE_RATIO", "0.25")
	t.Setenv("CSMA_OTLP_ENDPOINT", "collector:4317")

	cfg := DefaultTracingConfig()
	ApplyTracingEnv(&cfg)
	if !cfg.Enabled || cfg.Exporter != "otlp" || cfg.SampleRatio != 0.25 || cfg.Endpoint != "collector:4317" {
		t.Fatalf("ApplyTracingEnv produced %+v", cfg)
	}
}

func histogramSampleCount(t *testing.T, gatherer prometheus.Gatherer, name string, labels map[string]string) uint64 {
	t.Helper()

	metrics, err := gatherer.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, mf := range metrics {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.Metric {
			if matchLabels(m.GetLabel(), labels) && m.GetHistogram() != nil {
				return m.GetHistogram().GetSampleCount()
			}
		}
	}
	return 0
}

func gaugeValue(t *testing.T, gatherer prometheus.Gatherer, name string, labels map[string]string) float64 {
	t.Helper()

	metrics, err := gatherer.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, mf := range metrics {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.Metric {
			if matchLabels(m.GetLabel(), labels) && m.GetGauge() != nil {
				return m.GetGauge().GetValue()
			}
		}
	}
	t.Fatalf("gauge %s%v not found", name, labels)
	return 0
}

func matchLabels(got []*dto.LabelPair, want map[string]string) bool {
	if len(got) < len(want) {
		return false
	}
	matched := 0
	for _, lp := range got {
		if val, ok := want[lp.GetName()]; ok && val == lp.GetValue() {
			matched++
		}
	}
	return matched == len(want)
}
