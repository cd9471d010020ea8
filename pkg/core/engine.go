package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/erain9/runebook/pkg/logging"
	"github.com/erain9/runebook/pkg/messaging"
	"github.com/erain9/runebook/pkg/otel"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

// EngineConfig wires the engine to its storage and collaborators. Store and
// Settlement are required; the rest may be nil.
type EngineConfig struct {
	Policy     Policy
	Store      OrderStore
	Addresses  AddressValidator
	PriceFeed  PriceFeed
	Settlement SettlementDispatcher
	Sender     messaging.MessageSender
}

// runeState is one rune's unit of mutual exclusion. lock is a one-slot
// semaphore; book is only touched while holding it. snapshot is replaced at
// the end of every critical section and may be read without the lock.
type runeState struct {
	lock     chan struct{}
	book     *OrderBook
	snapshot atomic.Pointer[BookSnapshot]
}

func newRuneState(runeID string) *runeState {
	s := &runeState{
		lock: make(chan struct{}, 1),
		book: NewOrderBook(runeID),
	}
	s.snapshot.Store(emptySnapshot(runeID))
	return s
}

// acquire blocks until the lock is held or ctx is done. A caller whose
// context is already done never acquires it.
func (s *runeState) acquire(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case s.lock <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *runeState) release() {
	<-s.lock
}

// Engine is the only write entry point of the order book service. Work on
// different runes never contends.
type Engine struct {
	registry   *Registry
	validator  *Validator
	oracle     *Oracle
	settlement SettlementDispatcher
	sender     messaging.MessageSender
	stats      *statsRecorder
	metrics    *otel.EngineMetrics
	newID      func() string
	now        func() time.Time

	mu    sync.RWMutex
	runes map[string]*runeState
}

// NewEngine creates an engine from cfg
func NewEngine(cfg EngineConfig) (*Engine, error) {
	if cfg.Store == nil {
		return nil, errors.New("engine: order store is required")
	}
	if cfg.Settlement == nil {
		return nil, errors.New("engine: settlement dispatcher is required")
	}

	oracle := NewOracle(cfg.PriceFeed, cfg.Policy.DefaultPrice)
	return &Engine{
		registry:   NewRegistry(cfg.Store),
		validator:  NewValidator(cfg.Policy, oracle, cfg.Addresses),
		oracle:     oracle,
		settlement: cfg.Settlement,
		sender:     cfg.Sender,
		stats:      newStatsRecorder(),
		metrics:    otel.GetEngineMetrics(),
		newID:      uuid.NewString,
		now:        time.Now,
		runes:      make(map[string]*runeState),
	}, nil
}

// Oracle returns the engine's reference price resolver
func (e *Engine) Oracle() *Oracle {
	return e.oracle
}

// Policy returns the limits orders are validated against
func (e *Engine) Policy() Policy {
	return e.validator.Policy()
}

func (e *Engine) runeState(runeID string, create bool) *runeState {
	e.mu.RLock()
	s, ok := e.runes[runeID]
	e.mu.RUnlock()
	if ok || !create {
		return s
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if s, ok = e.runes[runeID]; !ok {
		s = newRuneState(runeID)
		e.runes[runeID] = s
	}
	return s
}

// PlaceOrder validates req, records the order, inserts it into its rune's
// book and runs matching. On a settlement failure the returned Done still
// carries the placed order and the trades that did settle, and the error is a
// *SettlementError. If the store misses a write after settlement, Done is
// returned with an error matching ErrCommitFailed; the engine keeps the
// settled state in memory and retries the write on the rune's next commit.
//
// Matching always starts from the best bid and ask. When a pair is refused
// by settlement it stays crossed at the top of the book, so later placements
// on the same rune retry that pair first and may report ErrSettlementFailed
// even though their own order rests untouched.
func (e *Engine) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*Done, error) {
	start := time.Now()
	logger := logging.FromContext(ctx).With().Str("rune_id", req.RuneID).Logger()

	ctx, span := otel.StartOrderSpan(ctx, otel.SpanPlaceOrder,
		attribute.String(otel.AttributeRuneID, req.RuneID),
		attribute.String(otel.AttributeOrderSide, req.Side.String()),
		attribute.String(otel.AttributeOrderAmount, req.Amount.String()),
		attribute.String(otel.AttributeOrderPrice, req.Price.String()),
	)
	defer span.End()

	validateStart := time.Now()
	ok, reasons := e.validator.Validate(ctx, req)
	e.stats.record(OpValidate, time.Since(validateStart), ok)
	if !ok {
		err := &ValidationError{Reasons: reasons}
		e.stats.record(OpPlaceOrder, time.Since(start), false)
		e.metrics.RecordRejected(ctx, req.RuneID)
		otel.AddAttributes(span, attribute.StringSlice(otel.AttributeRejectReason, reasons))
		otel.RecordError(span, err)
		logger.Info().Strs("reasons", reasons).Msg("Order rejected")
		return nil, err
	}

	state := e.runeState(req.RuneID, true)
	if err := state.acquire(ctx); err != nil {
		e.stats.record(OpPlaceOrder, time.Since(start), false)
		otel.RecordError(span, err)
		return nil, err
	}

	// From here on the operation runs to completion regardless of ctx.
	ctx = context.WithoutCancel(ctx)
	done, err := e.placeLocked(ctx, state, req)
	snapshot := state.snapshot.Load()
	state.release()

	if done == nil {
		e.stats.record(OpPlaceOrder, time.Since(start), false)
		otel.RecordError(span, err)
		logger.Error().Err(err).Msg("Failed to place order")
		return nil, err
	}

	e.metrics.RecordPlaced(ctx, req.RuneID, req.Side.String())
	e.metrics.RecordTrades(ctx, req.RuneID, len(done.Trades))
	e.metrics.RecordPlaceLatency(ctx, req.RuneID, time.Since(start))
	e.stats.record(OpPlaceOrder, time.Since(start), err == nil)
	otel.AddAttributes(span,
		attribute.String(otel.AttributeOrderID, done.OrderID()),
		attribute.String(otel.AttributeOrderStatus, string(done.Order.Status())),
		attribute.Int(otel.AttributeTradeCount, len(done.Trades)),
	)

	logger.Info().
		Str("order_id", done.OrderID()).
		Str("status", string(done.Order.Status())).
		Int("trades", len(done.Trades)).
		Msg("Order placed")

	event := placedEvent(done, snapshot)
	if err != nil {
		otel.RecordError(span, err)
		event.Error = err.Error()
	}
	if errors.Is(err, ErrSettlementFailed) {
		e.metrics.RecordSettlementFailure(ctx, req.RuneID)
		logger.Error().Err(err).Str("order_id", done.OrderID()).Msg("Settlement failed")
		event.Type = messaging.EventSettlementError
	}
	if errors.Is(err, ErrCommitFailed) {
		logger.Error().Err(err).Str("order_id", done.OrderID()).Msg("Order store write failed, kept in memory for retry")
	}
	e.publish(ctx, event)

	return done, err
}

// placeLocked runs with the rune lock held. A nil Done means the order was not
// placed. A non-nil Done with an error means the order was placed and the
// in-memory state is consistent, but a trade was refused by settlement
// (ErrSettlementFailed) or the store missed a write (ErrCommitFailed).
func (e *Engine) placeLocked(ctx context.Context, state *runeState, req PlaceOrderRequest) (*Done, error) {
	order, err := e.registry.Create(req)
	if err != nil {
		return nil, err
	}
	state.book.Insert(order)

	matchStart := time.Now()
	ctx, span := otel.StartOrderSpan(ctx, otel.SpanMatchRune,
		attribute.String(otel.AttributeRuneID, req.RuneID),
		attribute.String(otel.AttributeOrderID, order.ID()),
	)
	defer span.End()

	load := func(id string) (*Order, bool) {
		if id == order.ID() {
			return order.Clone(), true
		}
		return e.registry.Get(id)
	}
	res := match(state.book, load, e.now(), e.newID)
	e.stats.record(OpMatch, time.Since(matchStart), true)
	otel.AddAttributes(span, attribute.Int(otel.AttributeTradeCount, len(res.trades)))

	settled, settleErr := e.settle(ctx, res.trades)

	touched := res.touched
	if len(settled) < len(res.trades) {
		touched = replay(settled, load)
	}

	commitErr := e.commit(state, touched, settled)

	final := order
	if o, ok := touched[order.ID()]; ok {
		final = o
	}
	done := &Done{
		Order:   final.Clone(),
		Trades:  settled,
		Updated: make([]*Order, 0, len(touched)),
	}
	for id, o := range touched {
		if id != order.ID() {
			done.Updated = append(done.Updated, o.Clone())
		}
	}

	e.publishSnapshot(state, touched, order)
	switch {
	case commitErr == nil:
		return done, settleErr
	case settleErr == nil:
		return done, commitErr
	default:
		return done, errors.Join(settleErr, commitErr)
	}
}

// settle hands trades to the dispatcher in emission order and stops at the
// first refusal. It returns the settled prefix.
func (e *Engine) settle(ctx context.Context, trades []*Trade) ([]*Trade, error) {
	if len(trades) == 0 {
		return nil, nil
	}

	batchStart := time.Now()
	settled := make([]*Trade, 0, len(trades))
	var failure error
	for _, t := range trades {
		tradeStart := time.Now()
		spanCtx, span := otel.StartOrderSpan(ctx, otel.SpanSettleTrade,
			attribute.String(otel.AttributeTradeID, t.ID),
			attribute.String(otel.AttributeTradeAmount, t.Amount.String()),
			attribute.String(otel.AttributeTradePrice, t.Price.String()),
		)
		err := e.settlement.Settle(spanCtx, t)
		e.stats.record(OpSettle, time.Since(tradeStart), err == nil)
		if err != nil {
			otel.RecordError(span, err)
			span.End()
			failure = &SettlementError{Trade: t, Err: err}
			break
		}
		span.End()
		settled = append(settled, t)
	}

	e.stats.recordBatch(len(trades), time.Since(batchStart), failure == nil)
	return settled, failure
}

// commit writes touched orders back to the registry, prunes the book and
// feeds the oracle the last settled price. The book and oracle are updated
// even when the store refuses a write: the trades already moved assets.
func (e *Engine) commit(state *runeState, touched map[string]*Order, settled []*Trade) error {
	orders := make([]*Order, 0, len(touched))
	for _, o := range touched {
		orders = append(orders, o)
	}
	commitErr := e.registry.commit(state.book.RuneID(), orders)

	state.book.prune(func(id string) bool {
		if o, ok := touched[id]; ok {
			return o.IsResting()
		}
		return true
	})

	if n := len(settled); n > 0 {
		e.oracle.RecordTrade(state.book.RuneID(), settled[n-1].Price)
	}
	if commitErr != nil {
		return fmt.Errorf("%w: %w", ErrCommitFailed, commitErr)
	}
	return nil
}

// publishSnapshot builds the next immutable view of the book from the previous
// one plus the orders changed in this critical section.
func (e *Engine) publishSnapshot(state *runeState, changed map[string]*Order, extra ...*Order) {
	prev := state.snapshot.Load()
	known := make(map[string]*Order, len(prev.Bids)+len(prev.Asks)+len(changed)+len(extra))
	for _, o := range prev.Bids {
		known[o.ID()] = o
	}
	for _, o := range prev.Asks {
		known[o.ID()] = o
	}
	for _, o := range extra {
		known[o.ID()] = o.Clone()
	}
	for id, o := range changed {
		known[id] = o.Clone()
	}

	collect := func(ids []string) []*Order {
		out := make([]*Order, 0, len(ids))
		for _, id := range ids {
			if o, ok := known[id]; ok {
				out = append(out, o)
			}
		}
		return out
	}

	state.snapshot.Store(&BookSnapshot{
		RuneID:      state.book.RuneID(),
		Bids:        collect(state.book.BidIDs()),
		Asks:        collect(state.book.AskIDs()),
		LastUpdated: state.book.LastUpdated(),
	})
}

// CancelOrder cancels a pending order and removes it from its book. Orders
// that already started filling are rejected with ErrInvalidState.
func (e *Engine) CancelOrder(ctx context.Context, orderID string) (*Order, error) {
	start := time.Now()
	ctx, span := otel.StartOrderSpan(ctx, otel.SpanCancelOrder,
		attribute.String(otel.AttributeOrderID, orderID),
	)
	defer span.End()

	fail := func(err error) (*Order, error) {
		e.stats.record(OpCancelOrder, time.Since(start), false)
		otel.RecordError(span, err)
		return nil, err
	}

	existing, ok := e.registry.Get(orderID)
	if !ok {
		return fail(ErrNotFound)
	}

	state := e.runeState(existing.RuneID(), true)
	if err := state.acquire(ctx); err != nil {
		return fail(err)
	}

	cancelled, err := e.registry.Cancel(orderID)
	if err == nil {
		state.book.Remove(orderID)
		e.publishSnapshot(state, map[string]*Order{orderID: cancelled})
	}
	snapshot := state.snapshot.Load()
	state.release()

	if err != nil {
		return fail(err)
	}

	e.stats.record(OpCancelOrder, time.Since(start), true)
	e.metrics.RecordCancelled(ctx, cancelled.RuneID())
	logger := logging.FromContext(ctx)
	logger.Info().
		Str("rune_id", cancelled.RuneID()).
		Str("order_id", orderID).
		Msg("Order cancelled")

	e.publish(ctx, cancelledEvent(cancelled, snapshot))
	return cancelled.Clone(), nil
}

// GetOrderBook returns the latest published view of runeID's book. Unknown
// runes yield an empty book.
func (e *Engine) GetOrderBook(runeID string) *BookSnapshot {
	state := e.runeState(runeID, false)
	if state == nil {
		return emptySnapshot(runeID)
	}
	return state.snapshot.Load()
}

// GetOrder returns a copy of the order, or ErrNotFound
func (e *Engine) GetOrder(orderID string) (*Order, error) {
	order, ok := e.registry.Get(orderID)
	if !ok {
		return nil, ErrNotFound
	}
	return order, nil
}

// GetOrdersByAddress returns copies of every order placed from address
func (e *Engine) GetOrdersByAddress(address string) ([]*Order, error) {
	orders, err := e.registry.ByAddress(address)
	if err != nil {
		return nil, err
	}
	if orders == nil {
		orders = []*Order{}
	}
	return orders, nil
}

// Stats returns operation latency and settlement batch statistics
func (e *Engine) Stats() Stats {
	s := e.stats.snapshot()
	s.Orders = e.registry.Count()
	e.mu.RLock()
	s.Runes = len(e.runes)
	e.mu.RUnlock()
	return s
}

func (e *Engine) publish(ctx context.Context, event *messaging.Event) {
	if e.sender == nil {
		return
	}
	ctx, span := otel.StartOrderSpan(ctx, otel.SpanPublishEvent,
		attribute.String(otel.AttributeRuneID, event.RuneID),
	)
	defer span.End()

	if err := e.sender.SendEvent(ctx, event); err != nil {
		otel.RecordError(span, err)
		logger := logging.FromContext(ctx)
		logger.Warn().Err(err).
			Str("rune_id", event.RuneID).
			Str("type", string(event.Type)).
			Msg("Failed to publish event")
	}
}
