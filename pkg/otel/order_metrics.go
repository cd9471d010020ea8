package otel

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/erain9/runebook/pkg/otel"

var (
	engineMetrics     *EngineMetrics
	engineMetricsOnce sync.Once
)

// EngineMetrics holds the order lifecycle instruments
type EngineMetrics struct {
	ordersPlaced       metric.Int64Counter
	ordersRejected     metric.Int64Counter
	ordersCancelled    metric.Int64Counter
	tradesTotal        metric.Int64Counter
	settlementFailures metric.Int64Counter
	placeLatency       metric.Float64Histogram
}

// GetEngineMetrics returns the EngineMetrics singleton. Instruments that fail
// to register stay nil and their recorders become no-ops.
func GetEngineMetrics() *EngineMetrics {
	engineMetricsOnce.Do(func() {
		engineMetrics = newEngineMetrics(MeterProvider().Meter(instrumentationName))
	})
	return engineMetrics
}

func newEngineMetrics(meter metric.Meter) *EngineMetrics {
	m := &EngineMetrics{}
	m.ordersPlaced, _ = meter.Int64Counter(
		"runebook.orders.placed",
		metric.WithDescription("Orders accepted into a book"),
		metric.WithUnit("{order}"),
	)
	m.ordersRejected, _ = meter.Int64Counter(
		"runebook.orders.rejected",
		metric.WithDescription("Orders rejected by validation"),
		metric.WithUnit("{order}"),
	)
	m.ordersCancelled, _ = meter.Int64Counter(
		"runebook.orders.cancelled",
		metric.WithDescription("Orders cancelled"),
		metric.WithUnit("{order}"),
	)
	m.tradesTotal, _ = meter.Int64Counter(
		"runebook.trades.total",
		metric.WithDescription("Trades settled"),
		metric.WithUnit("{trade}"),
	)
	m.settlementFailures, _ = meter.Int64Counter(
		"runebook.settlement.failures",
		metric.WithDescription("Trades the ledger refused"),
		metric.WithUnit("{trade}"),
	)
	m.placeLatency, _ = meter.Float64Histogram(
		"runebook.place_order.duration",
		metric.WithDescription("PlaceOrder latency"),
		metric.WithUnit("s"),
	)
	return m
}

func runeAttr(runeID string) metric.MeasurementOption {
	return metric.WithAttributes(attribute.String(AttributeRuneID, runeID))
}

// RecordPlaced counts an accepted order
func (m *EngineMetrics) RecordPlaced(ctx context.Context, runeID, side string) {
	if m.ordersPlaced == nil {
		return
	}
	m.ordersPlaced.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttributeRuneID, runeID),
		attribute.String(AttributeOrderSide, side),
	))
}

// RecordRejected counts a validation failure
func (m *EngineMetrics) RecordRejected(ctx context.Context, runeID string) {
	if m.ordersRejected == nil {
		return
	}
	m.ordersRejected.Add(ctx, 1, runeAttr(runeID))
}

// RecordCancelled counts a cancellation
func (m *EngineMetrics) RecordCancelled(ctx context.Context, runeID string) {
	if m.ordersCancelled == nil {
		return
	}
	m.ordersCancelled.Add(ctx, 1, runeAttr(runeID))
}

// RecordTrades counts settled trades
func (m *EngineMetrics) RecordTrades(ctx context.Context, runeID string, count int) {
	if m.tradesTotal == nil || count == 0 {
		return
	}
	m.tradesTotal.Add(ctx, int64(count), runeAttr(runeID))
}

// RecordSettlementFailure counts a refused trade
func (m *EngineMetrics) RecordSettlementFailure(ctx context.Context, runeID string) {
	if m.settlementFailures == nil {
		return
	}
	m.settlementFailures.Add(ctx, 1, runeAttr(runeID))
}

// RecordPlaceLatency records how long a PlaceOrder call took
func (m *EngineMetrics) RecordPlaceLatency(ctx context.Context, runeID string, d time.Duration) {
	if m.placeLatency == nil {
		return
	}
	m.placeLatency.Record(ctx, d.Seconds(), runeAttr(runeID))
}
