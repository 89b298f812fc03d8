package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cockroachdb/pebble"

	"github.com/orderdesk/orderdesk/pkg/book"
)

// QueryOrders opens a fresh directional scan over one symbol#side partition
// of the price index. Pages are fetched lazily; a caller that stops early
// never touches the remaining pages.
func (s *Store) QueryOrders(symbol string, side book.Side, descending bool) book.OrderIter {
	return &orderQuery{
		db:         s.db,
		prefix:     indexPrefix(symbol + "#" + string(side)),
		descending: descending,
		pageSize:   s.pageSize,
	}
}

// orderQuery pages through index entries. cursor remembers the last key of
// the previous page so each page opens a narrowed iterator, mirroring an
// exclusive-start-key paginated range query.
type orderQuery struct {
	db         *pebble.DB
	prefix     []byte
	descending bool
	pageSize   int

	buf       []*book.Order
	pos       int
	cursor    []byte
	exhausted bool
}

func (q *orderQuery) Next(ctx context.Context) (*book.Order, error) {
	if q.pos >= len(q.buf) {
		if q.exhausted {
			return nil, nil
		}
		if err := q.fetchPage(ctx); err != nil {
			return nil, err
		}
		if len(q.buf) == 0 {
			return nil, nil
		}
	}
	o := q.buf[q.pos]
	q.pos++
	return o, nil
}

func (q *orderQuery) fetchPage(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	q.buf = q.buf[:0]
	q.pos = 0

	opts := &pebble.IterOptions{
		LowerBound: q.prefix,
		UpperBound: keyUpperBound(q.prefix),
	}
	if q.cursor != nil {
		if q.descending {
			// resume strictly before the cursor; copied because the loop
			// below reuses the cursor's backing array
			before := make([]byte, len(q.cursor))
			copy(before, q.cursor)
			opts.UpperBound = before
		} else {
			// resume strictly after the cursor
			after := make([]byte, len(q.cursor)+1)
			copy(after, q.cursor)
			opts.LowerBound = after
		}
	}

	iter, err := q.db.NewIter(opts)
	if err != nil {
		return fmt.Errorf("query index: %w", err)
	}
	defer iter.Close()

	ok := iter.First()
	advance := iter.Next
	if q.descending {
		ok = iter.Last()
		advance = iter.Prev
	}
	for ; ok && len(q.buf) < q.pageSize; ok = advance() {
		var o book.Order
		if err := json.Unmarshal(iter.Value(), &o); err != nil {
			return fmt.Errorf("decode index entry %s: %w", iter.Key(), err)
		}
		q.buf = append(q.buf, &o)
		q.cursor = append(q.cursor[:0], iter.Key()...)
	}
	if len(q.buf) < q.pageSize {
		q.exhausted = true
	}
	return nil
}
