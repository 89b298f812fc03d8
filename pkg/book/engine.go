package book

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// Engine fulfills trades against resting orders on the opposite side of the
// book, best price first: a Buy trade walks Sell orders ascending (lowest
// ask first), a Sell trade walks Buy orders descending (highest bid first).
//
// No writes happen during the walk; PlaceTrade stages all order mutations
// and commits them together with the trade record in one transaction, each
// order conditioned on the etag it was read with.
type Engine struct {
	store Store
	log   *zap.SugaredLogger
}

func NewEngine(store Store, logger *zap.Logger) *Engine {
	return &Engine{store: store, log: logger.Sugar()}
}

// fill is one step of the greedy traversal: take units consumed from order,
// cumulative units fulfilled across the traversal so far.
type fill struct {
	order      *Order
	take       int
	cumulative int
}

// fulfillment walks matching candidates for one trade. Each call to
// e.newFulfillment opens a fresh scan, so traversals are restartable and
// never observe their own staged mutations.
type fulfillment struct {
	iter       OrderIter
	remaining  int
	cumulative int
	exhausted  bool
}

func (e *Engine) newFulfillment(symbol string, side Side, amount int) *fulfillment {
	return &fulfillment{
		iter:      e.store.QueryOrders(symbol, side.Opposite(), side == Sell),
		remaining: amount,
	}
}

// next yields the following fill, or nil once the trade amount is satisfied
// or the book side runs out. Stopping early leaves remaining index pages
// unfetched.
func (f *fulfillment) next(ctx context.Context) (*fill, error) {
	if f.exhausted || f.remaining <= 0 {
		return nil, nil
	}
	o, err := f.iter.Next(ctx)
	if err != nil {
		return nil, err
	}
	if o == nil {
		f.exhausted = true
		return nil, nil
	}

	take := f.remaining
	if o.Amount < take {
		take = o.Amount
	}
	f.remaining -= take
	f.cumulative += take
	return &fill{order: o, take: take, cumulative: f.cumulative}, nil
}

func (f *fulfillment) satisfied() bool { return f.remaining <= 0 }

// CalculatePrice quotes the total cost (or proceeds) of trading amount at
// the current book, as the sum of take*price across matched orders. It is
// read-only and safe to retry.
func (e *Engine) CalculatePrice(ctx context.Context, symbol string, side Side, amount int) (int, error) {
	f := e.newFulfillment(symbol, side, amount)
	price := 0
	for {
		fl, err := f.next(ctx)
		if err != nil {
			return 0, err
		}
		if fl == nil {
			break
		}
		price += fl.take * fl.order.Price
	}
	if !f.satisfied() {
		return 0, ErrInsufficientLiquidity
	}
	return price, nil
}

// PlaceTrade fulfills amount against the book and atomically commits the
// trade record plus every touched order: updated when it still has amount
// left, deleted when drained to zero. A concurrent writer on any matched
// order cancels the whole commit and surfaces ErrConcurrentModification;
// the caller retries from scratch against the re-read book.
func (e *Engine) PlaceTrade(ctx context.Context, symbol string, side Side, amount int) (*Trade, error) {
	type staged struct {
		order *Order
		etag  string
	}

	f := e.newFulfillment(symbol, side, amount)
	var touched []staged
	for {
		fl, err := f.next(ctx)
		if err != nil {
			return nil, err
		}
		if fl == nil {
			break
		}
		o := fl.order
		etag := o.ETag
		o.Amount -= fl.take
		touched = append(touched, staged{order: o, etag: etag})
	}
	if !f.satisfied() {
		return nil, ErrInsufficientLiquidity
	}

	trade := NewTrade(symbol, side, amount)
	txn := e.store.NewTxn()
	txn.PutTrade(trade)
	for _, st := range touched {
		if st.order.Amount > 0 {
			st.order.RebuildIndexKeys()
			st.order.RefreshETag()
			txn.UpdateOrder(st.order, st.etag)
		} else {
			txn.DeleteOrder(st.order, st.etag)
		}
	}

	if err := txn.Commit(ctx); err != nil {
		if errors.Is(err, ErrTransactionCanceled) {
			return nil, ErrConcurrentModification
		}
		return nil, err
	}

	e.log.Infow("trade_placed",
		"trade_id", trade.ID, "symbol", symbol, "side", side,
		"amount", amount, "orders_touched", len(touched))
	return trade, nil
}
