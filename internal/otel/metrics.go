package otel

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Counter is a lazily registered int64 counter. Registration happens on first
// use so the instrument binds to whichever MeterProvider Setup installed.
type Counter struct {
	meter       string
	name        string
	description string

	once    sync.Once
	counter metric.Int64Counter
}

// NewCounter declares a counter; nothing is registered until Add is called.
func NewCounter(meter, name, description string) *Counter {
	return &Counter{meter: meter, name: name, description: description}
}

// Add increments the counter by n. Registration failures leave the counter
// as a no-op; metrics never fail a request.
func (c *Counter) Add(ctx context.Context, n int64, attrs ...attribute.KeyValue) {
	c.once.Do(func() {
		ctr, err := otel.Meter(c.meter).Int64Counter(c.name, metric.WithDescription(c.description))
		if err != nil {
			return
		}
		c.counter = ctr
	})
	if c.counter == nil {
		return
	}
	c.counter.Add(ctx, n, metric.WithAttributes(attrs...))
}
