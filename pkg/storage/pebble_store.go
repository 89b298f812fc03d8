package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/cockroachdb/pebble"

	"github.com/orderdesk/orderdesk/pkg/book"
)

const defaultPageSize = 100

// Store is a Pebble-backed single-table store with a derived price index.
// Conditional writes and transactional commits serialize on mu so that a
// precondition check and the write it guards apply atomically, the way a
// hosted table service evaluates conditions server-side. Reads and range
// scans go straight to Pebble and never block writers.
type Store struct {
	db       *pebble.DB
	mu       sync.Mutex
	pageSize int
}

// Open opens (or creates) the store at path. pageSize bounds how many index
// entries one query page fetches; <=0 selects the default.
func Open(path string, pageSize int) (*Store, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open store at %s: %w", path, err)
	}
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	return &Store{db: db, pageSize: pageSize}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// keys:
//   e:<pk>                        → entity JSON (orders and trades)
//   g1:<symbol#side>:<price>:<id> → order projection, price zero-padded so
//                                   lexicographic order equals numeric order
func entityKey(pk string) []byte { return []byte("e:" + pk) }

func indexKey(o *book.Order) []byte {
	return []byte(fmt.Sprintf("g1:%s:%s:%s", o.Gsi1PK, o.Gsi1SK, o.ID))
}

func indexPrefix(partition string) []byte { return []byte("g1:" + partition + ":") }

// keyUpperBound returns the exclusive upper bound for a prefix scan.
func keyUpperBound(prefix []byte) []byte {
	bound := make([]byte, len(prefix))
	copy(bound, prefix)
	bound[len(bound)-1]++
	return bound
}

// GetOrder returns nil when no order with the id exists.
func (s *Store) GetOrder(ctx context.Context, id string) (*book.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	o, err := s.loadOrder(book.OrderPK(id))
	if err == pebble.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get order %s: %w", id, err)
	}
	return o, nil
}

// GetTrade returns nil when no trade with the id exists.
func (s *Store) GetTrade(ctx context.Context, id string) (*book.Trade, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	val, closer, err := s.db.Get(entityKey(book.TradePK(id)))
	if err == pebble.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get trade %s: %w", id, err)
	}
	defer closer.Close()
	var t book.Trade
	if err := json.Unmarshal(val, &t); err != nil {
		return nil, fmt.Errorf("decode trade %s: %w", id, err)
	}
	return &t, nil
}

// CreateOrder writes o conditioned on its primary key being absent.
func (s *Store) CreateOrder(ctx context.Context, o *book.Order) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.loadOrder(o.PK)
	if err == nil {
		return book.ErrConditionFailed
	}
	if err != pebble.ErrNotFound {
		return fmt.Errorf("create order %s: %w", o.ID, err)
	}
	return s.writeOrder(o, nil)
}

// UpdateOrder rewrites o conditioned on its primary key existing. The index
// entry of the previous revision is removed when the derived keys changed.
func (s *Store) UpdateOrder(ctx context.Context, o *book.Order) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.loadOrder(o.PK)
	if err == pebble.ErrNotFound {
		return book.ErrConditionFailed
	}
	if err != nil {
		return fmt.Errorf("update order %s: %w", o.ID, err)
	}
	return s.writeOrder(o, indexKey(current))
}

// DeleteOrder removes the order and its index entry, conditioned on the
// primary key existing.
func (s *Store) DeleteOrder(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	pk := book.OrderPK(id)
	current, err := s.loadOrder(pk)
	if err == pebble.ErrNotFound {
		return book.ErrConditionFailed
	}
	if err != nil {
		return fmt.Errorf("delete order %s: %w", id, err)
	}

	b := s.db.NewBatch()
	defer b.Close()
	b.Delete(entityKey(pk), nil)
	b.Delete(indexKey(current), nil)
	if err := b.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("delete order %s: %w", id, err)
	}
	return nil
}

// BatchPutOrders writes orders unconditionally, replacing existing ones and
// cleaning up stale index entries. Used by bulk ingestion.
func (s *Store) BatchPutOrders(ctx context.Context, orders []*book.Order) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.db.NewBatch()
	defer b.Close()
	for _, o := range orders {
		current, err := s.loadOrder(o.PK)
		if err != nil && err != pebble.ErrNotFound {
			return fmt.Errorf("batch put order %s: %w", o.ID, err)
		}
		if current != nil && !bytes.Equal(indexKey(current), indexKey(o)) {
			b.Delete(indexKey(current), nil)
		}
		val, err := json.Marshal(o)
		if err != nil {
			return fmt.Errorf("encode order %s: %w", o.ID, err)
		}
		b.Set(entityKey(o.PK), val, nil)
		b.Set(indexKey(o), val, nil)
	}
	if err := b.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("batch put %d orders: %w", len(orders), err)
	}
	return nil
}

// loadOrder returns the current revision of the order at pk, passing the
// raw pebble.ErrNotFound through for callers that treat absence specially.
func (s *Store) loadOrder(pk string) (*book.Order, error) {
	val, closer, err := s.db.Get(entityKey(pk))
	if err != nil {
		return nil, err
	}
	defer closer.Close()
	var o book.Order
	if err := json.Unmarshal(val, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

// writeOrder applies the entity record and its index projection in one
// batch, dropping the stale index entry when the derived keys moved.
func (s *Store) writeOrder(o *book.Order, stale []byte) error {
	val, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("encode order %s: %w", o.ID, err)
	}
	b := s.db.NewBatch()
	defer b.Close()
	if stale != nil && !bytes.Equal(stale, indexKey(o)) {
		b.Delete(stale, nil)
	}
	b.Set(entityKey(o.PK), val, nil)
	b.Set(indexKey(o), val, nil)
	if err := b.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("write order %s: %w", o.ID, err)
	}
	return nil
}

var _ book.Store = (*Store)(nil)
