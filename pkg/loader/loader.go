package loader

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"go.uber.org/zap"

	"github.com/orderdesk/orderdesk/pkg/book"
)

// batchSize caps how many orders go into one store batch write.
const batchSize = 25

// expected CSV header, in column order.
var header = []string{"orderId", "symbol", "side", "amount", "price"}

// Loader imports order CSV files into the book through bulk puts. Rows
// replace existing orders with the same id.
type Loader struct {
	orders *book.Manager
	log    *zap.SugaredLogger
}

func New(orders *book.Manager, logger *zap.Logger) *Loader {
	return &Loader{orders: orders, log: logger.Sugar()}
}

// LoadFile imports one CSV file and returns the number of orders written.
func (l *Loader) LoadFile(ctx context.Context, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	l.log.Infow("data_import_starting", "file", path)
	n, err := l.Load(ctx, f)
	if err != nil {
		l.log.Errorw("data_import_failed", "file", path, "err", err)
		return n, err
	}
	l.log.Infow("data_import_complete", "file", path, "orders", n)
	return n, nil
}

// Load reads CSV rows of the form orderId,symbol,side,amount,price and
// writes them in batches.
func (l *Loader) Load(ctx context.Context, r io.Reader) (int, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	head, err := cr.Read()
	if err != nil {
		return 0, fmt.Errorf("read header: %w", err)
	}
	if err := checkHeader(head); err != nil {
		return 0, err
	}

	total := 0
	batch := make([]*book.Order, 0, batchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := l.orders.BulkAdd(ctx, batch); err != nil {
			return err
		}
		total += len(batch)
		batch = batch[:0]
		return nil
	}

	for line := 2; ; line++ {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return total, fmt.Errorf("read line %d: %w", line, err)
		}

		order, err := parseRecord(record)
		if err != nil {
			return total, fmt.Errorf("line %d: %w", line, err)
		}
		batch = append(batch, order)

		if len(batch) == batchSize {
			if err := flush(); err != nil {
				return total, err
			}
		}
	}
	if err := flush(); err != nil {
		return total, err
	}
	return total, nil
}

func checkHeader(head []string) error {
	if len(head) != len(header) {
		return fmt.Errorf("unexpected header %v, want %v", head, header)
	}
	for i, name := range header {
		if head[i] != name {
			return fmt.Errorf("unexpected header column %q, want %q", head[i], name)
		}
	}
	return nil
}

func parseRecord(record []string) (*book.Order, error) {
	if len(record) != len(header) {
		return nil, fmt.Errorf("expected %d fields, got %d", len(header), len(record))
	}
	id := record[0]
	if id == "" {
		return nil, fmt.Errorf("empty orderId")
	}
	symbol := record[1]
	if symbol == "" {
		return nil, fmt.Errorf("empty symbol")
	}
	side, err := book.ParseSide(record[2])
	if err != nil {
		return nil, err
	}
	amount, err := strconv.Atoi(record[3])
	if err != nil || amount <= 0 {
		return nil, fmt.Errorf("invalid amount %q", record[3])
	}
	price, err := strconv.Atoi(record[4])
	if err != nil || price < 0 {
		return nil, fmt.Errorf("invalid price %q", record[4])
	}
	return book.NewOrder(id, symbol, side, amount, price), nil
}
