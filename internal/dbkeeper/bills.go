package dbkeeper

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/drstein77/billing/internal/models"
	"github.com/drstein77/billing/internal/storage"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CreateBill records a bill for customerName in a single transaction: the bill
// header, one item per line with the unit price of the moment, and the stock
// decrements. A missing product or a line asking for more than the stock
// aborts the whole bill.
func (kp *DBKeeper) CreateBill(ctx context.Context, customerName string, lines []models.BillLine) (*models.Bill, error) {
	var bill models.Bill

	err := kp.WithinTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if err := lockProducts(ctx, tx, lines); err != nil {
			return err
		}

		err := tx.QueryRow(ctx, `
			INSERT INTO bills (customer_name, total_amount)
			VALUES ($1, 0)
			RETURNING id, customer_name, created_at
		`, customerName).Scan(&bill.ID, &bill.CustomerName, &bill.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert bill: %w", err)
		}

		totalAmount := decimal.Zero
		for _, line := range lines {
			var product models.Product
			err := tx.QueryRow(ctx, `
				SELECT id, name, price, stock
				FROM products
				WHERE id = $1
			`, line.ProductID).Scan(&product.ID, &product.Name, &product.Price, &product.Stock)
			if errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("%w: id %d", storage.ErrProductNotFound, line.ProductID)
			}
			if err != nil {
				return fmt.Errorf("failed to load product %d: %w", line.ProductID, err)
			}

			if line.Quantity > product.Stock {
				return &storage.StockError{
					ProductID:   product.ID,
					ProductName: product.Name,
					Requested:   line.Quantity,
					Available:   product.Stock,
				}
			}

			lineTotal := product.Price.Mul(decimal.NewFromInt(int64(line.Quantity)))
			totalAmount = totalAmount.Add(lineTotal)

			if _, err := tx.Exec(ctx, `
				INSERT INTO bill_items (bill_id, product_id, quantity, price, total)
				VALUES ($1, $2, $3, $4, $5)
			`, bill.ID, product.ID, line.Quantity, product.Price, lineTotal); err != nil {
				return fmt.Errorf("failed to insert bill item: %w", err)
			}

			if _, err := tx.Exec(ctx,
				`UPDATE products SET stock = stock - $1 WHERE id = $2`,
				line.Quantity, product.ID); err != nil {
				return fmt.Errorf("failed to decrement stock of product %d: %w", product.ID, err)
			}
		}

		if _, err := tx.Exec(ctx,
			`UPDATE bills SET total_amount = $1 WHERE id = $2`,
			totalAmount, bill.ID); err != nil {
			return fmt.Errorf("failed to finalize bill: %w", err)
		}
		bill.TotalAmount = totalAmount
		return nil
	})
	if err != nil {
		return nil, err
	}

	kp.log.Info("Bill committed", zap.Int64("bill_id", bill.ID), zap.Int("lines", len(lines)))
	return &bill, nil
}

// lockProducts takes row locks on every product of the cart in id order, so
// concurrent bills on the same product queue up behind each other instead of
// both passing the stock check, and two carts never lock in opposite order.
func lockProducts(ctx context.Context, tx pgx.Tx, lines []models.BillLine) error {
	ids := make([]int, 0, len(lines))
	seen := make(map[int]struct{}, len(lines))
	for _, line := range lines {
		if _, ok := seen[line.ProductID]; ok {
			continue
		}
		seen[line.ProductID] = struct{}{}
		ids = append(ids, line.ProductID)
	}
	sort.Ints(ids)

	if _, err := tx.Exec(ctx, `
		SELECT id FROM products
		WHERE id = ANY($1)
		ORDER BY id
		FOR UPDATE
	`, ids); err != nil {
		return fmt.Errorf("failed to lock products: %w", err)
	}
	return nil
}

// GetBill returns a bill with its items, each joined with the current product name.
func (kp *DBKeeper) GetBill(ctx context.Context, billID int64) (*models.BillDetails, error) {
	if kp.pool == nil {
		return nil, errNilPool
	}

	var details models.BillDetails
	err := kp.pool.QueryRow(ctx, `
		SELECT id, customer_name, total_amount, created_at
		FROM bills
		WHERE id = $1
	`, billID).Scan(
		&details.Bill.ID,
		&details.Bill.CustomerName,
		&details.Bill.TotalAmount,
		&details.Bill.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("bill %d: %w", billID, storage.ErrNotFound)
	}
	if err != nil {
		kp.log.Error("Failed to load bill", zap.Int64("bill_id", billID), zap.Error(err))
		return nil, fmt.Errorf("failed to load bill: %w", err)
	}

	rows, err := kp.pool.Query(ctx, `
		SELECT bi.id, bi.bill_id, bi.product_id, bi.quantity, bi.price, bi.total, p.name
		FROM bill_items bi
		JOIN products p ON bi.product_id = p.id
		WHERE bi.bill_id = $1
		ORDER BY bi.id
	`, billID)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	details.Items = []models.BillItem{}
	for rows.Next() {
		var item models.BillItem
		if err := rows.Scan(
			&item.ID,
			&item.BillID,
			&item.ProductID,
			&item.Quantity,
			&item.Price,
			&item.Total,
			&item.ProductName,
		); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		details.Items = append(details.Items, item)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("error during rows iteration: %w", rows.Err())
	}

	return &details, nil
}

// GetCustomerBills lists the bills of a customer, newest first.
func (kp *DBKeeper) GetCustomerBills(ctx context.Context, customerName string) ([]models.BillSummary, error) {
	if kp.pool == nil {
		return nil, errNilPool
	}

	rows, err := kp.pool.Query(ctx, `
		SELECT id, total_amount, created_at
		FROM bills
		WHERE customer_name = $1
		ORDER BY id DESC
	`, customerName)
	if err != nil {
		kp.log.Error("Failed to execute query", zap.Error(err))
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	bills := []models.BillSummary{}
	for rows.Next() {
		var bill models.BillSummary
		if err := rows.Scan(&bill.ID, &bill.TotalAmount, &bill.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		bills = append(bills, bill)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("error during rows iteration: %w", rows.Err())
	}

	return bills, nil
}
