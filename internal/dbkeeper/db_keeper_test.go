package dbkeeper

import (
	"context"
	"os"
	"sync"
	"testing"

	"github.com/drstein77/billing/internal/logger"
	"github.com/drstein77/billing/internal/models"
	"github.com/drstein77/billing/internal/storage"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestKeeper connects to the database named by TEST_DATABASE_URI and wipes
// the bill ledger. The tests share one database, so they do not run in parallel.
// `make test-db` provides one.
func newTestKeeper(t *testing.T) *DBKeeper {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URI")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URI is not set")
	}

	kp, err := NewDBKeeper(context.Background(), func() string { return dsn }, "migrations", &logger.Logger{})
	require.NoError(t, err)
	t.Cleanup(func() { kp.Close() })

	_, err = kp.pool.Exec(context.Background(), `TRUNCATE bill_items, bills RESTART IDENTITY`)
	require.NoError(t, err)
	return kp
}

// addProduct inserts a product outside the seed catalog and returns its id.
func addProduct(t *testing.T, kp *DBKeeper, name string, price int64, stock int) int {
	t.Helper()

	var id int
	err := kp.pool.QueryRow(context.Background(),
		`INSERT INTO products (name, price, stock) VALUES ($1, $2, $3) RETURNING id`,
		name, decimal.NewFromInt(price), stock).Scan(&id)
	require.NoError(t, err)

	t.Cleanup(func() {
		ctx := context.Background()
		_, _ = kp.pool.Exec(ctx, `DELETE FROM bill_items WHERE product_id = $1`, id)
		_, _ = kp.pool.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	})
	return id
}

func stockOf(t *testing.T, kp *DBKeeper, id int) int {
	t.Helper()

	var stock int
	require.NoError(t, kp.pool.QueryRow(context.Background(),
		`SELECT stock FROM products WHERE id = $1`, id).Scan(&stock))
	return stock
}

func countBills(t *testing.T, kp *DBKeeper, customer string) int {
	t.Helper()

	var n int
	require.NoError(t, kp.pool.QueryRow(context.Background(),
		`SELECT COUNT(*) FROM bills WHERE customer_name = $1`, customer).Scan(&n))
	return n
}

func TestSeedCatalog(t *testing.T) {
	kp := newTestKeeper(t)
	require.True(t, kp.Ping(context.Background()))

	products, err := kp.ListProducts(context.Background())
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(products), 20)

	for i := 1; i < len(products); i++ {
		assert.Less(t, products[i-1].ID, products[i].ID, "products must be ordered by id")
	}
}

func TestCreateBillScenario(t *testing.T) {
	kp := newTestKeeper(t)
	ctx := context.Background()
	pen := addProduct(t, kp, "Pen", 10, 5)

	bill, err := kp.CreateBill(ctx, "Alice", []models.BillLine{{ProductID: pen, Quantity: 3}})
	require.NoError(t, err)
	assert.True(t, bill.TotalAmount.Equal(decimal.NewFromInt(30)))

	details, err := kp.GetBill(ctx, bill.ID)
	require.NoError(t, err)
	require.Len(t, details.Items, 1)
	item := details.Items[0]
	assert.Equal(t, 3, item.Quantity)
	assert.True(t, item.Price.Equal(decimal.NewFromInt(10)))
	assert.True(t, item.Total.Equal(decimal.NewFromInt(30)))
	assert.Equal(t, "Pen", item.ProductName)
	assert.True(t, details.Bill.TotalAmount.Equal(decimal.NewFromInt(30)))
	assert.Equal(t, 2, stockOf(t, kp, pen))

	// Bob asks for more than what is left: nothing of his bill may persist.
	_, err = kp.CreateBill(ctx, "Bob", []models.BillLine{{ProductID: pen, Quantity: 10}})
	require.ErrorIs(t, err, storage.ErrInsufficientStock)
	assert.Contains(t, err.Error(), "Pen")
	assert.Equal(t, 2, stockOf(t, kp, pen))
	assert.Zero(t, countBills(t, kp, "Bob"))

	require.NoError(t, kp.SetStock(ctx, pen, 50))
	products, err := kp.ListProducts(ctx)
	require.NoError(t, err)
	for _, p := range products {
		if p.ID == pen {
			assert.Equal(t, 50, p.Stock)
		}
	}
}

func TestCreateBillTotalsAndSnapshots(t *testing.T) {
	kp := newTestKeeper(t)
	ctx := context.Background()
	pen := addProduct(t, kp, "Pen", 10, 100)
	book := addProduct(t, kp, "Book", 45, 100)

	bill, err := kp.CreateBill(ctx, "Carol", []models.BillLine{
		{ProductID: book, Quantity: 2},
		{ProductID: pen, Quantity: 4},
		{ProductID: book, Quantity: 1},
	})
	require.NoError(t, err)

	// a later price change must not alter recorded items
	_, err = kp.pool.Exec(ctx, `UPDATE products SET price = 99 WHERE id = $1`, pen)
	require.NoError(t, err)

	details, err := kp.GetBill(ctx, bill.ID)
	require.NoError(t, err)
	require.Len(t, details.Items, 3)

	sum := decimal.Zero
	for _, item := range details.Items {
		assert.True(t, item.Total.Equal(item.Price.Mul(decimal.NewFromInt(int64(item.Quantity)))))
		sum = sum.Add(item.Total)
	}
	assert.True(t, details.Bill.TotalAmount.Equal(sum))
	assert.True(t, sum.Equal(decimal.NewFromInt(175)))
	assert.True(t, details.Items[1].Price.Equal(decimal.NewFromInt(10)))
	assert.Equal(t, 97, stockOf(t, kp, book))
	assert.Equal(t, 96, stockOf(t, kp, pen))

	again, err := kp.GetBill(ctx, bill.ID)
	require.NoError(t, err)
	assert.Equal(t, details, again)
}

func TestCreateBillRollsBackUnknownProduct(t *testing.T) {
	kp := newTestKeeper(t)
	ctx := context.Background()
	pen := addProduct(t, kp, "Pen", 10, 5)

	_, err := kp.CreateBill(ctx, "Dave", []models.BillLine{
		{ProductID: pen, Quantity: 2},
		{ProductID: -1, Quantity: 1},
	})

	require.ErrorIs(t, err, storage.ErrProductNotFound)
	assert.Equal(t, 5, stockOf(t, kp, pen))
	assert.Zero(t, countBills(t, kp, "Dave"))
}

func TestCreateBillRollsBackLaterShortage(t *testing.T) {
	kp := newTestKeeper(t)
	ctx := context.Background()
	pen := addProduct(t, kp, "Pen", 10, 5)
	ink := addProduct(t, kp, "Ink", 25, 1)

	_, err := kp.CreateBill(ctx, "Erin", []models.BillLine{
		{ProductID: pen, Quantity: 5},
		{ProductID: ink, Quantity: 2},
	})

	var stockErr *storage.StockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, ink, stockErr.ProductID)
	assert.Equal(t, 1, stockErr.Available)
	assert.Equal(t, 5, stockOf(t, kp, pen))
	assert.Equal(t, 1, stockOf(t, kp, ink))
	assert.Zero(t, countBills(t, kp, "Erin"))
}

func TestConcurrentBillsDoNotOversell(t *testing.T) {
	kp := newTestKeeper(t)
	ctx := context.Background()
	pen := addProduct(t, kp, "Pen", 10, 10)

	const buyers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
	)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := kp.CreateBill(ctx, "Rush", []models.BillLine{{ProductID: pen, Quantity: 3}})
			if err == nil {
				mu.Lock()
				success++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, storage.ErrInsufficientStock)
		}()
	}
	wg.Wait()

	assert.Equal(t, 3, success)
	assert.Equal(t, 1, stockOf(t, kp, pen))
	assert.Equal(t, 3, countBills(t, kp, "Rush"))
}

func TestGetBillNotFound(t *testing.T) {
	kp := newTestKeeper(t)

	_, err := kp.GetBill(context.Background(), 987654)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestGetCustomerBills(t *testing.T) {
	kp := newTestKeeper(t)
	ctx := context.Background()
	pen := addProduct(t, kp, "Pen", 10, 100)

	first, err := kp.CreateBill(ctx, "Frank", []models.BillLine{{ProductID: pen, Quantity: 1}})
	require.NoError(t, err)
	second, err := kp.CreateBill(ctx, "Frank", []models.BillLine{{ProductID: pen, Quantity: 2}})
	require.NoError(t, err)

	bills, err := kp.GetCustomerBills(ctx, "Frank")
	require.NoError(t, err)
	require.Len(t, bills, 2)
	assert.Equal(t, second.ID, bills[0].ID)
	assert.Equal(t, first.ID, bills[1].ID)

	none, err := kp.GetCustomerBills(ctx, "Nobody")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSetStockUnknownProduct(t *testing.T) {
	kp := newTestKeeper(t)

	err := kp.SetStock(context.Background(), -1, 5)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestResetStock(t *testing.T) {
	kp := newTestKeeper(t)
	ctx := context.Background()

	n, err := kp.ResetAllStock(ctx, 7)
	require.NoError(t, err)
	assert.Positive(t, n)
	assert.Equal(t, 7, stockOf(t, kp, 1))

	n, err = kp.ResetStockDefaults(ctx, storage.DefaultStockLevels)
	require.NoError(t, err)
	assert.Equal(t, int64(len(storage.DefaultStockLevels)), n)
	assert.Equal(t, 500, stockOf(t, kp, 1))
	assert.Equal(t, 1000, stockOf(t, kp, 2))
	assert.Equal(t, 200, stockOf(t, kp, 20))

	n, err = kp.ResetStockDefaults(ctx, map[int]int{-1: 3})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestResolveMigrationsPath(t *testing.T) {
	dir, err := resolveMigrationsPath("migrations")
	require.NoError(t, err)
	assert.DirExists(t, dir)

	_, err = resolveMigrationsPath("no-such-dir")
	assert.Error(t, err)
}

func TestNilPool(t *testing.T) {
	kp := &DBKeeper{log: &logger.Logger{}}
	ctx := context.Background()

	_, err := kp.ListProducts(ctx)
	assert.ErrorIs(t, err, errNilPool)
	_, err = kp.CreateBill(ctx, "Alice", []models.BillLine{{ProductID: 1, Quantity: 1}})
	assert.ErrorIs(t, err, errNilPool)
	assert.False(t, kp.Ping(ctx))
	assert.False(t, kp.Close())
}
