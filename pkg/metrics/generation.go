package metrics

import "github.com/prometheus/client_golang/prometheus"

// GenerationMetrics counts order-generation outcomes per driver.
type GenerationMetrics struct {
	generated *prometheus.CounterVec
	skipped   *prometheus.CounterVec
}

// NewGenerationMetrics registers the generation counters on the provided registerer.
func NewGenerationMetrics(reg prometheus.Registerer) *GenerationMetrics {
	if reg == nil {
		return &GenerationMetrics{}
	}
	generated := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_generated_total",
		Help: "Subscription orders materialized, by driver.",
	}, []string{"driver"})
	skipped := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_skipped_total",
		Help: "Subscription occurrences skipped, by driver.",
	}, []string{"driver"})
	reg.MustRegister(generated, skipped)
	return &GenerationMetrics{generated: generated, skipped: skipped}
}

// AddGenerated records materialized occurrences for the named driver.
func (g *GenerationMetrics) AddGenerated(driver string, count int) {
	if g == nil || g.generated == nil || count <= 0 {
		return
	}
	g.generated.WithLabelValues(normalizeLabel(driver)).Add(float64(count))
}

// AddSkipped records skipped occurrences for the named driver.
func (g *GenerationMetrics) AddSkipped(driver string, count int) {
	if g == nil || g.skipped == nil || count <= 0 {
		return
	}
	g.skipped.WithLabelValues(normalizeLabel(driver)).Add(float64(count))
}
