package book

import (
	"fmt"

	"github.com/google/uuid"
)

// Side of an order or trade. The string token is embedded verbatim in
// composite index keys, so the values must stay stable.
type Side string

const (
	Buy  Side = "Buy"
	Sell Side = "Sell"
)

// ParseSide validates a side token coming off the wire.
func ParseSide(s string) (Side, error) {
	switch Side(s) {
	case Buy:
		return Buy, nil
	case Sell:
		return Sell, nil
	default:
		return "", fmt.Errorf("invalid side %q", s)
	}
}

// Opposite returns the book side a trade on s executes against: a Buy
// trade consumes resting Sell orders and vice versa.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// Entity type discriminators. Orders and trades share one table.
const (
	EntityOrder = "ORDER"
	EntityTrade = "TRADE"
)

// Order is a resting limit order. PK/SK and the GSI1 pair are derived
// storage keys; RebuildIndexKeys must run after any change to symbol,
// side or price.
type Order struct {
	PK         string `json:"pk"`
	SK         string `json:"sk"`
	EntityType string `json:"entityType"`
	ID         string `json:"id"`
	Symbol     string `json:"symbol"`
	Side       Side   `json:"side"`
	Price      int    `json:"price"`
	Amount     int    `json:"amount"`
	ETag       string `json:"etag"`
	Gsi1PK     string `json:"gsi1pk"`
	Gsi1SK     string `json:"gsi1sk"`
}

// OrderPK derives the primary key for an order id.
func OrderPK(id string) string { return EntityOrder + "#" + id }

// NewOrder builds a fully keyed order with a fresh concurrency token.
func NewOrder(id, symbol string, side Side, amount, price int) *Order {
	o := &Order{
		PK:         OrderPK(id),
		SK:         OrderPK(id),
		EntityType: EntityOrder,
		ID:         id,
		Symbol:     symbol,
		Side:       side,
		Price:      price,
		Amount:     amount,
		ETag:       uuid.NewString(),
	}
	o.RebuildIndexKeys()
	return o
}

// RebuildIndexKeys recomputes the GSI1 key pair from symbol, side and
// price. The range key is the price as a 7-digit zero-padded decimal so
// lexicographic index order equals numeric price order.
func (o *Order) RebuildIndexKeys() {
	o.Gsi1PK = o.Symbol + "#" + string(o.Side)
	o.Gsi1SK = fmt.Sprintf("%07d", o.Price)
}

// RefreshETag installs a fresh concurrency token. Every mutation must
// call this so a writer racing on the same order fails its precondition.
func (o *Order) RefreshETag() { o.ETag = uuid.NewString() }

// Trade records a fulfilled trade. Immutable once written; there is no
// update or delete path.
type Trade struct {
	PK         string `json:"pk"`
	SK         string `json:"sk"`
	EntityType string `json:"entityType"`
	ID         string `json:"id"`
	Symbol     string `json:"symbol"`
	Side       Side   `json:"side"`
	Amount     int    `json:"amount"`
}

// TradePK derives the primary key for a trade id.
func TradePK(id string) string { return EntityTrade + "#" + id }

// NewTrade builds a trade record with a fresh random id.
func NewTrade(symbol string, side Side, amount int) *Trade {
	id := uuid.NewString()
	return &Trade{
		PK:         TradePK(id),
		SK:         TradePK(id),
		EntityType: EntityTrade,
		ID:         id,
		Symbol:     symbol,
		Side:       side,
		Amount:     amount,
	}
}
