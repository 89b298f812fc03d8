package book

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// Manager owns the single-order lifecycle: point reads plus existence-
// conditioned create, modify and delete.
type Manager struct {
	store Store
	log   *zap.SugaredLogger
}

func NewManager(store Store, logger *zap.Logger) *Manager {
	return &Manager{store: store, log: logger.Sugar()}
}

// GetOrder returns nil when the order does not exist; absence is not an
// error at this layer.
func (m *Manager) GetOrder(ctx context.Context, id string) (*Order, error) {
	return m.store.GetOrder(ctx, id)
}

// AddOrder inserts a new order conditioned on the id being free.
func (m *Manager) AddOrder(ctx context.Context, id, symbol string, side Side, amount, price int) error {
	o := NewOrder(id, symbol, side, amount, price)
	if err := m.store.CreateOrder(ctx, o); err != nil {
		if errors.Is(err, ErrConditionFailed) {
			return ErrOrderAlreadyExists
		}
		return err
	}
	m.log.Infow("order_added",
		"id", id, "symbol", symbol, "side", side, "amount", amount, "price", price)
	return nil
}

// ModifyOrder replaces amount and price of an existing order. Symbol and
// side are immutable here; the index keys are re-derived because the price
// participates in the GSI1 range key.
func (m *Manager) ModifyOrder(ctx context.Context, id string, amount, price int) error {
	o, err := m.store.GetOrder(ctx, id)
	if err != nil {
		return err
	}
	if o == nil {
		return ErrOrderNotFound
	}

	o.Amount = amount
	o.Price = price
	o.RebuildIndexKeys()
	o.RefreshETag()

	if err := m.store.UpdateOrder(ctx, o); err != nil {
		if errors.Is(err, ErrConditionFailed) {
			return ErrOrderNotFound
		}
		return err
	}
	m.log.Infow("order_modified", "id", id, "amount", amount, "price", price)
	return nil
}

// RemoveOrder deletes an existing order.
func (m *Manager) RemoveOrder(ctx context.Context, id string) error {
	if err := m.store.DeleteOrder(ctx, id); err != nil {
		if errors.Is(err, ErrConditionFailed) {
			return ErrOrderNotFound
		}
		return err
	}
	m.log.Infow("order_removed", "id", id)
	return nil
}

// BulkAdd loads orders without existence checks, replacing any that share
// an id. Sole integration point for batch ingestion.
func (m *Manager) BulkAdd(ctx context.Context, orders []*Order) error {
	if err := m.store.BatchPutOrders(ctx, orders); err != nil {
		return err
	}
	m.log.Infow("orders_bulk_loaded", "count", len(orders))
	return nil
}
