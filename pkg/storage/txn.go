package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/cockroachdb/pebble"

	"github.com/orderdesk/orderdesk/pkg/book"
)

// Txn stages one trade insert plus per-order updates and deletes, each order
// conditioned on the etag it was read with. Commit verifies every
// precondition against the live table under the store mutex and then applies
// a single synced batch, so either every staged operation lands or none do.
type Txn struct {
	store  *Store
	trades []*book.Trade
	orders []stagedOrder
}

type stagedOrder struct {
	order  *book.Order
	etag   string
	remove bool
}

func (s *Store) NewTxn() book.Txn { return &Txn{store: s} }

func (t *Txn) PutTrade(tr *book.Trade) {
	t.trades = append(t.trades, tr)
}

func (t *Txn) UpdateOrder(o *book.Order, etag string) {
	t.orders = append(t.orders, stagedOrder{order: o, etag: etag})
}

func (t *Txn) DeleteOrder(o *book.Order, etag string) {
	t.orders = append(t.orders, stagedOrder{order: o, etag: etag, remove: true})
}

func (t *Txn) Commit(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.db.NewBatch()
	defer b.Close()

	for _, st := range t.orders {
		current, err := s.loadOrder(st.order.PK)
		if err == pebble.ErrNotFound {
			// matched order vanished between read and commit
			return book.ErrTransactionCanceled
		}
		if err != nil {
			return fmt.Errorf("txn read order %s: %w", st.order.ID, err)
		}
		if current.ETag != st.etag {
			return book.ErrTransactionCanceled
		}

		if st.remove {
			b.Delete(entityKey(st.order.PK), nil)
			b.Delete(indexKey(current), nil)
			continue
		}

		val, err := json.Marshal(st.order)
		if err != nil {
			return fmt.Errorf("encode order %s: %w", st.order.ID, err)
		}
		if !bytes.Equal(indexKey(current), indexKey(st.order)) {
			b.Delete(indexKey(current), nil)
		}
		b.Set(entityKey(st.order.PK), val, nil)
		b.Set(indexKey(st.order), val, nil)
	}

	for _, tr := range t.trades {
		val, err := json.Marshal(tr)
		if err != nil {
			return fmt.Errorf("encode trade %s: %w", tr.ID, err)
		}
		b.Set(entityKey(tr.PK), val, nil)
	}

	if err := b.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

var _ book.Txn = (*Txn)(nil)
