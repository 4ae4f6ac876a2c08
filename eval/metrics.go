package eval

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics records OpenTelemetry instrumentation for condition evaluation:
// counters for evaluations and failures and a histogram for quantifier
// grounding fan-out.
type Metrics struct {
	evaluations  metric.Int64Counter
	failures     metric.Int64Counter
	groundingFan metric.Int64Histogram
}

// NewMetrics creates evaluation instruments on the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	evaluations, err := meter.Int64Counter("petalplan.eval.evaluations",
		metric.WithDescription("Number of condition tree evaluations"),
	)
	if err != nil {
		return nil, err
	}

	failures, err := meter.Int64Counter("petalplan.eval.failures",
		metric.WithDescription("Number of failed condition tree evaluations"),
	)
	if err != nil {
		return nil, err
	}

	groundingFan, err := meter.Int64Histogram("petalplan.eval.grounding.candidates",
		metric.WithDescription("Candidate tuples considered per quantifier grounding"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		evaluations:  evaluations,
		failures:     failures,
		groundingFan: groundingFan,
	}, nil
}

func (m *Metrics) recordEvaluation(ctx context.Context, apply bool, res Result) {
	mode := "check"
	if apply {
		mode = "apply"
	}
	attrs := metric.WithAttributes(attribute.String("mode", mode))
	m.evaluations.Add(ctx, 1, attrs)
	if !res.Success {
		m.failures.Add(ctx, 1, attrs)
	}
}

func (m *Metrics) recordGrounding(ctx context.Context, candidates int) {
	m.groundingFan.Record(ctx, int64(candidates))
}
