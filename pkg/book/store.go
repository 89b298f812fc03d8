package book

import "context"

// Store is the single-table store the book lives in. Implementations keep
// the GSI1 price-index projection in sync with the primary records on every
// write, including transactional ones.
type Store interface {
	// GetOrder returns nil when no order with the id exists.
	GetOrder(ctx context.Context, id string) (*Order, error)

	// CreateOrder writes o conditioned on its primary key being absent and
	// returns ErrConditionFailed when it is not.
	CreateOrder(ctx context.Context, o *Order) error

	// UpdateOrder rewrites o conditioned on its primary key existing and
	// returns ErrConditionFailed when it does not. Stale index entries are
	// removed when the derived keys changed.
	UpdateOrder(ctx context.Context, o *Order) error

	// DeleteOrder removes the order conditioned on its primary key existing
	// and returns ErrConditionFailed when it does not.
	DeleteOrder(ctx context.Context, id string) error

	// BatchPutOrders writes orders unconditionally, replacing existing ones.
	BatchPutOrders(ctx context.Context, orders []*Order) error

	// QueryOrders opens a fresh directional scan over one symbol#side
	// partition of the price index, ascending by price unless descending
	// is set.
	QueryOrders(symbol string, side Side, descending bool) OrderIter

	// NewTxn starts an atomic multi-item write.
	NewTxn() Txn
}

// OrderIter is a lazy, internally paginated scan in index order. Callers may
// stop consuming at any point; unread pages are never fetched.
type OrderIter interface {
	// Next returns the next order, or nil once the partition is exhausted.
	Next(ctx context.Context) (*Order, error)
}

// Txn accumulates staged writes and applies them all or not at all. Order
// operations carry the etag observed when the order was read; any mismatch
// at commit time cancels the whole transaction with ErrTransactionCanceled.
type Txn interface {
	PutTrade(t *Trade)
	UpdateOrder(o *Order, etag string)
	DeleteOrder(o *Order, etag string)
	Commit(ctx context.Context) error
}
