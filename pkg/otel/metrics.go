package otel

import (
	"context"
	"strconv"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
)

var (
	httpMetrics     *HTTPServerMetrics
	httpMetricsOnce sync.Once
)

// HTTPServerMetrics holds the instruments for the REST gateway. gRPC traffic
// is covered by the otelgrpc stats handler.
type HTTPServerMetrics struct {
	// Latency metrics
	serverLatency metric.Float64Histogram

	// Traffic metrics
	requestsTotal    metric.Int64Counter
	requestsInFlight metric.Int64UpDownCounter

	// Error metrics
	errorTotal metric.Int64Counter
}

// NewHTTPServerMetrics creates a new HTTPServerMetrics instance
func NewHTTPServerMetrics(meter metric.Meter) (*HTTPServerMetrics, error) {
	serverLatency, err := meter.Float64Histogram(
		"http.server.duration",
		metric.WithDescription("Response latency (seconds) of the HTTP gateway"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	requestsTotal, err := meter.Int64Counter(
		"http.server.requests.total",
		metric.WithDescription("Total number of HTTP requests started"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	requestsInFlight, err := meter.Int64UpDownCounter(
		"http.server.requests.in_flight",
		metric.WithDescription("Number of HTTP requests currently in flight"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	errorTotal, err := meter.Int64Counter(
		"http.server.errors.total",
		metric.WithDescription("Total number of HTTP responses with status >= 500"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	return &HTTPServerMetrics{
		serverLatency:    serverLatency,
		requestsTotal:    requestsTotal,
		requestsInFlight: requestsInFlight,
		errorTotal:       errorTotal,
	}, nil
}

// GetHTTPServerMetrics returns a singleton instance of HTTPServerMetrics
func GetHTTPServerMetrics() (*HTTPServerMetrics, error) {
	var err error
	httpMetricsOnce.Do(func() {
		httpMetrics, err = NewHTTPServerMetrics(MeterProvider().Meter(instrumentationName))
	})
	if err != nil {
		return nil, err
	}
	return httpMetrics, nil
}

// Begin records the start of a request and returns the function that ends it
func (m *HTTPServerMetrics) Begin(ctx context.Context, route string) func(status int) {
	start := time.Now()
	routeAttr := semconv.HTTPRouteKey.String(route)
	m.requestsTotal.Add(ctx, 1, metric.WithAttributes(routeAttr))
	m.requestsInFlight.Add(ctx, 1)

	return func(status int) {
		m.requestsInFlight.Add(ctx, -1)
		attrs := []attribute.KeyValue{
			routeAttr,
			attribute.String("http.status_code", strconv.Itoa(status)),
		}
		m.serverLatency.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(attrs...))
		if status >= 500 {
			m.errorTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
		}
	}
}
