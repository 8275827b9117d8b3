package dbkeeper

import (
	"context"
	"fmt"
	"sort"

	"github.com/drstein77/billing/internal/models"
	"github.com/drstein77/billing/internal/storage"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

func (kp *DBKeeper) ListProducts(ctx context.Context) ([]models.Product, error) {
	// Checking database connection
	if kp.pool == nil {
		return nil, errNilPool
	}

	query := `
		SELECT id, name, price, stock
		FROM products
		ORDER BY id
	`

	rows, err := kp.pool.Query(ctx, query)
	if err != nil {
		kp.log.Error("Failed to execute query", zap.Error(err))
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	var products []models.Product
	for rows.Next() {
		var product models.Product
		if err := rows.Scan(&product.ID, &product.Name, &product.Price, &product.Stock); err != nil {
			kp.log.Error("Failed to scan row", zap.Error(err))
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		products = append(products, product)
	}

	// Checking for errors during iteration
	if rows.Err() != nil {
		kp.log.Error("Error occurred during rows iteration", zap.Error(rows.Err()))
		return nil, fmt.Errorf("error during rows iteration: %w", rows.Err())
	}

	return products, nil
}

// SetStock overwrites the stock of one product.
func (kp *DBKeeper) SetStock(ctx context.Context, productID, stock int) error {
	if kp.pool == nil {
		return errNilPool
	}

	tag, err := kp.pool.Exec(ctx, `UPDATE products SET stock = $1 WHERE id = $2`, stock, productID)
	if err != nil {
		return fmt.Errorf("failed to update stock: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("product %d: %w", productID, storage.ErrNotFound)
	}
	return nil
}

// ResetAllStock sets the same stock on every product and reports how many rows changed.
func (kp *DBKeeper) ResetAllStock(ctx context.Context, stock int) (int64, error) {
	if kp.pool == nil {
		return 0, errNilPool
	}

	tag, err := kp.pool.Exec(ctx, `UPDATE products SET stock = $1`, stock)
	if err != nil {
		return 0, fmt.Errorf("failed to reset stock: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ResetStockDefaults applies per-product stock levels in one transaction.
// Ids missing from the catalog are skipped.
func (kp *DBKeeper) ResetStockDefaults(ctx context.Context, defaults map[int]int) (int64, error) {
	if len(defaults) == 0 {
		return 0, nil
	}

	ids := make([]int, 0, len(defaults))
	for id := range defaults {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	var updated int64
	err := kp.WithinTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		stmt := `UPDATE products SET stock = $1 WHERE id = $2`
		batch := &pgx.Batch{}
		for _, id := range ids {
			batch.Queue(stmt, defaults[id], id)
		}

		br := tx.SendBatch(ctx, batch)
		for range ids {
			tag, execErr := br.Exec()
			if execErr != nil {
				br.Close()
				return fmt.Errorf("failed to execute batch query: %w", execErr)
			}
			updated += tag.RowsAffected()
		}

		if closeErr := br.Close(); closeErr != nil {
			return fmt.Errorf("failed to close batch results: %w", closeErr)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return updated, nil
}
