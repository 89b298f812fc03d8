package book_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/orderdesk/orderdesk/pkg/book"
	"github.com/orderdesk/orderdesk/pkg/storage"
)

type fixture struct {
	store  *storage.Store
	orders *book.Manager
	engine *book.Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s, err := storage.Open(t.TempDir(), 0)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	logger := zap.NewNop()
	return &fixture{
		store:  s,
		orders: book.NewManager(s, logger),
		engine: book.NewEngine(s, logger),
	}
}

// seedSellBook rests Sell orders at prices 10, 12, 15 with amount 5 each.
func seedSellBook(t *testing.T, f *fixture) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.orders.AddOrder(ctx, "s10", "XYZ", book.Sell, 5, 10))
	require.NoError(t, f.orders.AddOrder(ctx, "s12", "XYZ", book.Sell, 5, 12))
	require.NoError(t, f.orders.AddOrder(ctx, "s15", "XYZ", book.Sell, 5, 15))
}

func TestCalculatePriceGreedyBestAskFirst(t *testing.T) {
	f := newFixture(t)
	seedSellBook(t, f)

	price, err := f.engine.CalculatePrice(context.Background(), "XYZ", book.Buy, 8)
	require.NoError(t, err)
	require.Equal(t, 5*10+3*12, price)
}

func TestCalculatePriceIsReadOnly(t *testing.T) {
	f := newFixture(t)
	seedSellBook(t, f)
	ctx := context.Background()

	first, err := f.engine.CalculatePrice(ctx, "XYZ", book.Buy, 8)
	require.NoError(t, err)
	second, err := f.engine.CalculatePrice(ctx, "XYZ", book.Buy, 8)
	require.NoError(t, err)
	require.Equal(t, first, second)

	for id, amount := range map[string]int{"s10": 5, "s12": 5, "s15": 5} {
		o, err := f.orders.GetOrder(ctx, id)
		require.NoError(t, err)
		require.NotNil(t, o)
		require.Equal(t, amount, o.Amount)
	}
}

func TestCalculatePriceSellMatchesBestBidFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.orders.AddOrder(ctx, "b10", "XYZ", book.Buy, 5, 10))
	require.NoError(t, f.orders.AddOrder(ctx, "b12", "XYZ", book.Buy, 5, 12))
	require.NoError(t, f.orders.AddOrder(ctx, "b15", "XYZ", book.Buy, 5, 15))

	// a Sell trade consumes the highest bids first
	price, err := f.engine.CalculatePrice(ctx, "XYZ", book.Sell, 8)
	require.NoError(t, err)
	require.Equal(t, 5*15+3*12, price)
}

func TestCalculatePriceInsufficientLiquidity(t *testing.T) {
	f := newFixture(t)
	seedSellBook(t, f)

	_, err := f.engine.CalculatePrice(context.Background(), "XYZ", book.Buy, 100)
	require.ErrorIs(t, err, book.ErrInsufficientLiquidity)
}

func TestCalculatePriceEmptyBook(t *testing.T) {
	f := newFixture(t)

	_, err := f.engine.CalculatePrice(context.Background(), "XYZ", book.Buy, 1)
	require.ErrorIs(t, err, book.ErrInsufficientLiquidity)
}

func TestPlaceTradeMutatesMatchedOrders(t *testing.T) {
	f := newFixture(t)
	seedSellBook(t, f)
	ctx := context.Background()

	trade, err := f.engine.PlaceTrade(ctx, "XYZ", book.Buy, 8)
	require.NoError(t, err)
	require.Equal(t, "XYZ", trade.Symbol)
	require.Equal(t, book.Buy, trade.Side)
	require.Equal(t, 8, trade.Amount)

	// fully drained order is deleted, not stored with amount 0
	drained, err := f.orders.GetOrder(ctx, "s10")
	require.NoError(t, err)
	require.Nil(t, drained)

	partial, err := f.orders.GetOrder(ctx, "s12")
	require.NoError(t, err)
	require.Equal(t, 2, partial.Amount)

	untouched, err := f.orders.GetOrder(ctx, "s15")
	require.NoError(t, err)
	require.Equal(t, 5, untouched.Amount)

	stored, err := f.store.GetTrade(ctx, trade.ID)
	require.NoError(t, err)
	require.Equal(t, trade, stored)
}

func TestPlaceTradeRotatesETagOfPartialFill(t *testing.T) {
	f := newFixture(t)
	seedSellBook(t, f)
	ctx := context.Background()

	before, err := f.orders.GetOrder(ctx, "s12")
	require.NoError(t, err)

	_, err = f.engine.PlaceTrade(ctx, "XYZ", book.Buy, 8)
	require.NoError(t, err)

	after, err := f.orders.GetOrder(ctx, "s12")
	require.NoError(t, err)
	require.NotEqual(t, before.ETag, after.ETag)
}

func TestPlaceTradeInsufficientLiquidityLeavesBookUntouched(t *testing.T) {
	f := newFixture(t)
	seedSellBook(t, f)
	ctx := context.Background()

	_, err := f.engine.PlaceTrade(ctx, "XYZ", book.Buy, 100)
	require.ErrorIs(t, err, book.ErrInsufficientLiquidity)

	for id, amount := range map[string]int{"s10": 5, "s12": 5, "s15": 5} {
		o, err := f.orders.GetOrder(ctx, id)
		require.NoError(t, err)
		require.NotNil(t, o)
		require.Equal(t, amount, o.Amount)
	}
}

func TestPlaceTradeExactDrainDeletesOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.orders.AddOrder(ctx, "s10", "XYZ", book.Sell, 5, 10))

	_, err := f.engine.PlaceTrade(ctx, "XYZ", book.Buy, 5)
	require.NoError(t, err)

	gone, err := f.orders.GetOrder(ctx, "s10")
	require.NoError(t, err)
	require.Nil(t, gone)
}

// raceStore interposes on NewTxn to mutate a matched order between the
// engine's read traversal and its commit, simulating a concurrent writer
// winning the race.
type raceStore struct {
	book.Store
	before func()
}

func (r *raceStore) NewTxn() book.Txn {
	r.before()
	return r.Store.NewTxn()
}

func TestPlaceTradeConcurrentModification(t *testing.T) {
	f := newFixture(t)
	seedSellBook(t, f)
	ctx := context.Background()

	racy := &raceStore{Store: f.store, before: func() {
		require.NoError(t, f.orders.ModifyOrder(ctx, "s10", 1, 10))
	}}
	engine := book.NewEngine(racy, zap.NewNop())

	_, err := engine.PlaceTrade(ctx, "XYZ", book.Buy, 8)
	require.ErrorIs(t, err, book.ErrConcurrentModification)

	// the concurrent writer's state survives, nothing else changed
	raced, err := f.orders.GetOrder(ctx, "s10")
	require.NoError(t, err)
	require.Equal(t, 1, raced.Amount)

	other, err := f.orders.GetOrder(ctx, "s12")
	require.NoError(t, err)
	require.Equal(t, 5, other.Amount)
}

func TestPlaceTradeIgnoresOtherPartitions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.orders.AddOrder(ctx, "s10", "XYZ", book.Sell, 5, 10))
	require.NoError(t, f.orders.AddOrder(ctx, "other", "ABC", book.Sell, 50, 1))
	require.NoError(t, f.orders.AddOrder(ctx, "bid", "XYZ", book.Buy, 50, 9))

	_, err := f.engine.PlaceTrade(ctx, "XYZ", book.Buy, 6)
	require.ErrorIs(t, err, book.ErrInsufficientLiquidity)
}
