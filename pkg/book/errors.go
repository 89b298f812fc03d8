package book

import "errors"

// Store-level condition failures. The lifecycle manager and the fulfillment
// engine translate these into the domain errors below.
var (
	// ErrConditionFailed signals that a conditional single-item write did
	// not meet its existence precondition.
	ErrConditionFailed = errors.New("store: write condition failed")

	// ErrTransactionCanceled signals that an atomic multi-item write was
	// rolled back because at least one item precondition failed.
	ErrTransactionCanceled = errors.New("store: transaction canceled")
)

// Domain errors. All four are expected, user-actionable conditions and are
// mapped to structured responses at the HTTP boundary; anything else is a
// server fault.
var (
	ErrOrderAlreadyExists = errors.New("an order with the same ID already exists")

	ErrOrderNotFound = errors.New("order does not exist")

	ErrInsufficientLiquidity = errors.New("the order book doesn't have enough orders to satisfy the required trade amount, retry at a later time")

	ErrConcurrentModification = errors.New("the orders due to be used in this trade have been updated, retry the trade")
)
