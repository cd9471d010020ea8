package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	// Span names
	SpanPlaceOrder   = "place_order"
	SpanCancelOrder  = "cancel_order"
	SpanValidate     = "validate_order"
	SpanMatchRune    = "match_rune"
	SpanSettleTrade  = "settle_trade"
	SpanPublishEvent = "publish_event"

	// Attribute keys
	AttributeRuneID       = "rune.id"
	AttributeOrderID      = "order.id"
	AttributeOrderSide    = "order.side"
	AttributeOrderAmount  = "order.amount"
	AttributeOrderPrice   = "order.price"
	AttributeOrderStatus  = "order.status"
	AttributeTradeID      = "trade.id"
	AttributeTradeCount   = "trade.count"
	AttributeTradeAmount  = "trade.amount"
	AttributeTradePrice   = "trade.price"
	AttributeRejectReason = "order.reject_reasons"
)

// StartOrderSpan starts a new span for order processing. It never returns a
// nil span.
func StartOrderSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	var tracer trace.Tracer

	switch name {
	case SpanMatchRune, SpanSettleTrade:
		tracer = EngineTracer()
	default:
		tracer = APITracer()
	}

	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// AddAttributes adds attributes to a span
func AddAttributes(span trace.Span, attrs ...attribute.KeyValue) {
	if span == nil {
		return
	}
	span.SetAttributes(attrs...)
}

// RecordError marks the span failed
func RecordError(span trace.Span, err error) {
	if span == nil || err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
