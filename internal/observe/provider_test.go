package observe_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/KarimEG45/CoranBuilding/internal/observe"
)

// InitProvider installs process-wide globals, so these tests do not run in
// parallel.

func TestInitProvider_ExportsToRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	tel, err := observe.InitProvider(context.Background(), observe.ProviderConfig{
		ServiceVersion: "test",
		Registerer:     reg,
	})
	if err != nil {
		t.Fatalf("InitProvider: %v", err)
	}
	defer tel.Shutdown(context.Background())

	m, err := observe.NewMetrics(tel.MeterProvider)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	m.RecordAnalysis(context.Background(), 2, 1500*time.Millisecond, nil)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	var found bool
	for _, f := range families {
		if strings.HasPrefix(f.GetName(), "coranbuilding_analysis_duration") {
			found = true
		}
	}
	if !found {
		t.Error("analysis duration histogram not exported to the registry")
	}
}

func TestInitProvider_SampleRatio(t *testing.T) {
	for _, ratio := range []float64{-0.1, 1.5} {
		if _, err := observe.InitProvider(context.Background(), observe.ProviderConfig{
			Registerer:  prometheus.NewRegistry(),
			SampleRatio: ratio,
		}); err == nil {
			t.Errorf("SampleRatio %v: got nil error, want error", ratio)
		}
	}
}

func TestTelemetry_Shutdown(t *testing.T) {
	tel, err := observe.InitProvider(context.Background(), observe.ProviderConfig{
		Registerer:  prometheus.NewRegistry(),
		SampleRatio: 0.5,
	})
	if err != nil {
		t.Fatalf("InitProvider: %v", err)
	}
	if err := tel.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() = %v, want nil", err)
	}
}
