package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestGenerationMetricsCountsByDriver(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewGenerationMetrics(reg)

	metrics.AddGenerated("daily", 3)
	metrics.AddGenerated("daily", 2)
	metrics.AddSkipped("backfill", 4)
	metrics.AddGenerated("daily", 0)
	metrics.AddSkipped("backfill", -1)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "orders_generated_total", "driver", "daily"); err != nil {
		t.Fatalf("fetch generated: %v", err)
	} else if got != 5 {
		t.Fatalf("expected generated=5, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "orders_skipped_total", "driver", "backfill"); err != nil {
		t.Fatalf("fetch skipped: %v", err)
	} else if got != 4 {
		t.Fatalf("expected skipped=4, got %f", got)
	}
}

func TestGenerationMetricsNilSafe(t *testing.T) {
	var metrics *GenerationMetrics
	metrics.AddGenerated("daily", 1)
	metrics.AddSkipped("daily", 1)

	unregistered := NewGenerationMetrics(nil)
	unregistered.AddGenerated("bulk", 1)
}
