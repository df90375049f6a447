package observe

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// newTestMetrics returns a Metrics instance backed by a ManualReader.
func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

// sumWhere adds up the Int64 sum data points whose attributes contain every
// key/value in want.
func sumWhere(t *testing.T, rm metricdata.ResourceMetrics, name string, want ...attribute.KeyValue) int64 {
	t.Helper()
	met := findMetric(rm, name)
	if met == nil {
		t.Fatalf("metric %s not found", name)
	}
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("metric %s is %T, want Sum[int64]", name, met.Data)
	}
	var total int64
	for _, dp := range sum.DataPoints {
		match := true
		for _, kv := range want {
			if v, ok := dp.Attributes.Value(kv.Key); !ok || v != kv.Value {
				match = false
				break
			}
		}
		if match {
			total += dp.Value
		}
	}
	return total
}

func TestRecordProviderCall(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordProviderCall(ctx, "whisper", KindSTT, 2*time.Second, nil)
	m.RecordProviderCall(ctx, "whisper", KindSTT, time.Second, errors.New("boom"))
	m.RecordProviderCall(ctx, "ollama", KindLLM, 3*time.Second, nil)

	rm := collect(t, reader)

	if got := sumWhere(t, rm, "coranbuilding.provider.requests", Attr("provider", "whisper"), Attr("status", "ok")); got != 1 {
		t.Errorf("whisper ok requests = %d, want 1", got)
	}
	if got := sumWhere(t, rm, "coranbuilding.provider.errors", Attr("kind", KindSTT)); got != 1 {
		t.Errorf("stt errors = %d, want 1", got)
	}
	if got := sumWhere(t, rm, "coranbuilding.provider.errors", Attr("kind", KindLLM)); got != 0 {
		t.Errorf("llm errors = %d, want 0", got)
	}

	met := findMetric(rm, "coranbuilding.provider.duration")
	if met == nil {
		t.Fatal("provider duration not found")
	}
	hist := met.Data.(metricdata.Histogram[float64])
	var count uint64
	for _, dp := range hist.DataPoints {
		count += dp.Count
	}
	if count != 3 {
		t.Errorf("provider duration samples = %d, want 3", count)
	}
}

func TestRecordWordAndRules(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordWord(ctx, true)
	m.RecordWord(ctx, true)
	m.RecordWord(ctx, false)
	m.RecordRuleCheck(ctx, "qalqalah", "correct")
	m.RecordRuleCheck(ctx, "ghunnah", "absent")
	m.RecordRuleCheck(ctx, "ghunnah", "absent")

	rm := collect(t, reader)
	if got := sumWhere(t, rm, "coranbuilding.words", attribute.Bool("valid", true)); got != 2 {
		t.Errorf("valid words = %d, want 2", got)
	}
	if got := sumWhere(t, rm, "coranbuilding.words", attribute.Bool("valid", false)); got != 1 {
		t.Errorf("invalid words = %d, want 1", got)
	}
	if got := sumWhere(t, rm, "coranbuilding.rule.checks", Attr("rule", "ghunnah"), Attr("status", "absent")); got != 2 {
		t.Errorf("absent ghunnah = %d, want 2", got)
	}
}

func TestActiveAnalysesAndDuration(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.ActiveAnalyses.Add(ctx, 2)
	m.ActiveAnalyses.Add(ctx, -1)
	m.RecordAnalysis(ctx, 2, 4*time.Second, nil)

	rm := collect(t, reader)
	if got := sumWhere(t, rm, "coranbuilding.analysis.active"); got != 1 {
		t.Errorf("active analyses = %d, want 1", got)
	}

	met := findMetric(rm, "coranbuilding.analysis.duration")
	if met == nil {
		t.Fatal("analysis duration not found")
	}
	hist := met.Data.(metricdata.Histogram[float64])
	if len(hist.DataPoints) != 1 || hist.DataPoints[0].Sum != 4 {
		t.Errorf("analysis duration data points = %+v, want one sample of 4s", hist.DataPoints)
	}
	if v, ok := hist.DataPoints[0].Attributes.Value("level"); !ok || v.AsInt64() != 2 {
		t.Errorf("level attribute = %v, want 2", v)
	}
}

func TestDefaultMetrics_ReturnsSameInstance(t *testing.T) {
	if DefaultMetrics() != DefaultMetrics() {
		t.Error("DefaultMetrics returned different instances")
	}
}
