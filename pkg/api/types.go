package api

import "time"

// ==============================
// Request Types
// ==============================

// AddOrderRequest is the body of POST /orders/{id}.
type AddOrderRequest struct {
	Symbol string `json:"symbol"`
	Side   string `json:"side"` // "Buy" or "Sell"
	Amount int    `json:"amount"`
	Price  int    `json:"price"`
}

// ModifyOrderRequest is the body of PUT/PATCH /orders/{id}.
type ModifyOrderRequest struct {
	Amount int `json:"amount"`
	Price  int `json:"price"`
}

// TradeRequest is the body of POST /trade and POST /trade/price.
type TradeRequest struct {
	Symbol string `json:"symbol"`
	Side   string `json:"side"`
	Amount int    `json:"amount"`
}

// ==============================
// Response Types
// ==============================

// OrderResponse is the public view of a resting order.
type OrderResponse struct {
	ID     string `json:"id"`
	Symbol string `json:"symbol"`
	Side   string `json:"side"`
	Amount int    `json:"amount"`
	Price  int    `json:"price"`
}

// TradeResult reports the outcome of a trade placement. Expected failures
// (insufficient liquidity, concurrent modification) come back with
// Successful=false and a reason, not an error status.
type TradeResult struct {
	Successful bool      `json:"successful"`
	Timestamp  time.Time `json:"timestamp"`
	Reason     string    `json:"reason,omitempty"`
}

// TradePriceResult reports a quote for a hypothetical trade.
type TradePriceResult struct {
	Successful bool      `json:"successful"`
	Price      int       `json:"price,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	Reason     string    `json:"reason,omitempty"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// ==============================
// WebSocket Types
// ==============================

// WSSubscribeRequest subscribes or unsubscribes a client from channels,
// e.g. {"op":"subscribe","channels":["trades:XYZ"]}.
type WSSubscribeRequest struct {
	Op       string   `json:"op"`
	Channels []string `json:"channels"`
}

// TradeUpdate is broadcast on the trades:{symbol} channel after each commit.
type TradeUpdate struct {
	Type      string `json:"type"` // always "trade"
	ID        string `json:"id"`
	Symbol    string `json:"symbol"`
	Side      string `json:"side"`
	Amount    int    `json:"amount"`
	Timestamp int64  `json:"timestamp"` // Unix milliseconds
}
