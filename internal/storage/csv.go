package storage

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ImportStock reads "product_id,stock" records and applies them as per-product
// stock levels in one transaction. A header line is allowed.
func (s *Storage) ImportStock(ctx context.Context, r io.Reader) (int64, error) {
	levels, err := parseStockLevels(r)
	if err != nil {
		return 0, err
	}

	defer s.metrics.TrackDBOperation("import_stock")(time.Now())

	n, err := s.keeper.ResetStockDefaults(ctx, levels)
	if err != nil {
		return 0, fmt.Errorf("failed to import stock: %w", err)
	}
	s.log.Info("Stock imported", zap.Int("records", len(levels)), zap.Int64("products", n))
	return n, nil
}

func parseStockLevels(r io.Reader) (map[int]int, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = 2
	reader.TrimLeadingSpace = true

	levels := make(map[int]int)
	for line := 1; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}

		id, idErr := strconv.ParseInt(strings.TrimSpace(record[0]), 10, 32)
		if idErr != nil && line == 1 {
			continue
		}
		if idErr != nil {
			return nil, fmt.Errorf("%w: line %d: bad product id %q", ErrInvalidRequest, line, record[0])
		}
		stock, err := strconv.ParseInt(strings.TrimSpace(record[1]), 10, 32)
		if err != nil || stock < 0 {
			return nil, fmt.Errorf("%w: line %d: bad stock %q", ErrInvalidRequest, line, record[1])
		}
		levels[int(id)] = int(stock)
	}

	if len(levels) == 0 {
		return nil, fmt.Errorf("%w: no stock records", ErrInvalidRequest)
	}
	return levels, nil
}

// ExportCustomerBills writes the history of a customer as CSV, newest first.
func (s *Storage) ExportCustomerBills(ctx context.Context, customerName string, w io.Writer) error {
	history, err := s.GetCustomerBills(ctx, customerName)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"id", "total_amount", "created_at"}); err != nil {
		return err
	}
	for _, bill := range history.Bills {
		if err := cw.Write([]string{
			strconv.FormatInt(bill.ID, 10),
			bill.TotalAmount.StringFixed(2),
			bill.CreatedAt.UTC().Format(time.RFC3339),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
