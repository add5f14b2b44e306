package llm

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const costMeterName = "github.com/fk-mspraja/FK-Visual-Workflow-Builder-sub000/internal/llm"

var (
	costRequestHistogram  metric.Float64Histogram
	tokenCounter          metric.Int64Counter
	costMetricsOnce       sync.Once
	costMetricsRegistered bool
)

func initCostMetrics() {
	meter := otel.Meter(costMeterName)
	var err error
	costRequestHistogram, err = meter.Float64Histogram(
		"wfbuilder.cost.request",
		metric.WithDescription("Estimated cost in USD per oracle request"),
		metric.WithUnit("usd"),
	)
	if err != nil {
		return
	}
	tokenCounter, err = meter.Int64Counter(
		"wfbuilder.tokens",
		metric.WithDescription("Tokens consumed by oracle requests"),
	)
	if err != nil {
		return
	}
	costMetricsRegistered = true
}

// RecordUsage records cost and token usage after an oracle call. purpose tells
// intent classification, replies, document analysis, and naming apart.
func RecordUsage(ctx context.Context, p Provider, resp *Response, purpose string) {
	if p == nil || resp == nil {
		return
	}
	costMetricsOnce.Do(initCostMetrics)
	if !costMetricsRegistered {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("provider", p.Name()),
		attribute.String("model", resp.Model),
		attribute.String("purpose", purpose),
	)
	costRequestHistogram.Record(ctx, p.EstimateCost(resp.Model, resp.InputTokens, resp.OutputTokens), attrs)
	tokenCounter.Add(ctx, int64(resp.InputTokens+resp.OutputTokens), attrs)
}
