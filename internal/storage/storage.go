package storage

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/drstein77/billing/internal/metrics"
	"github.com/drstein77/billing/internal/models"
	"go.uber.org/zap"
)

// DefaultStockLevels are the seed catalog stock levels restored by PUT /reset-stock.
var DefaultStockLevels = map[int]int{
	1: 500, 2: 1000, 3: 950, 4: 600, 5: 450,
	6: 800, 7: 700, 8: 400, 9: 300, 10: 500,
	11: 220, 12: 600, 13: 350, 14: 650, 15: 720,
	16: 300, 17: 480, 18: 900, 19: 260, 20: 200,
}

type Log interface {
	Info(string, ...zap.Field)
	Warn(string, ...zap.Field)
	Error(string, ...zap.Field)
}

// Keeper interface for database operations
type Keeper interface {
	ListProducts(ctx context.Context) ([]models.Product, error)
	SetStock(ctx context.Context, productID, stock int) error
	ResetAllStock(ctx context.Context, stock int) (int64, error)
	ResetStockDefaults(ctx context.Context, defaults map[int]int) (int64, error)
	CreateBill(ctx context.Context, customerName string, lines []models.BillLine) (*models.Bill, error)
	GetBill(ctx context.Context, billID int64) (*models.BillDetails, error)
	GetCustomerBills(ctx context.Context, customerName string) ([]models.BillSummary, error)
	Ping(ctx context.Context) bool
	Close() bool
}

// Storage validates requests and delegates them to the keeper. It holds no
// product or bill state of its own: every read goes to the database.
type Storage struct {
	keeper       Keeper
	metrics      *metrics.Metrics
	defaultStock int
	log          Log
}

// NewStorage creates a new Storage instance
func NewStorage(keeper Keeper, m *metrics.Metrics, defaultStock int, log Log) *Storage {
	return &Storage{
		keeper:       keeper,
		metrics:      m,
		defaultStock: defaultStock,
		log:          log,
	}
}

func (s *Storage) GetAllProducts(ctx context.Context) ([]models.Product, error) {
	defer s.metrics.TrackDBOperation("list_products")(time.Now())

	products, err := s.keeper.ListProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	for _, p := range products {
		s.metrics.UpdateProductStock(p.ID, p.Name, p.Stock)
	}
	if products == nil {
		products = []models.Product{}
	}
	return products, nil
}

// CreateBill validates the cart and records it as one bill.
func (s *Storage) CreateBill(ctx context.Context, req models.CreateBillRequest) (int64, error) {
	if err := validateBillRequest(req); err != nil {
		s.metrics.RecordBillFailure(failureReason(err))
		return 0, err
	}

	defer s.metrics.TrackDBOperation("create_bill")(time.Now())

	bill, err := s.keeper.CreateBill(ctx, req.CustomerName, req.Items)
	if err != nil {
		s.metrics.RecordBillFailure(failureReason(err))
		s.log.Warn("Bill was not created",
			zap.String("customer", req.CustomerName),
			zap.Int("lines", len(req.Items)),
			zap.Error(err))
		return 0, err
	}

	total, _ := bill.TotalAmount.Float64()
	s.metrics.RecordBillCreated(total)
	s.log.Info("Bill created",
		zap.Int64("bill_id", bill.ID),
		zap.String("customer", bill.CustomerName),
		zap.String("total", bill.TotalAmount.StringFixed(2)))
	return bill.ID, nil
}

func (s *Storage) GetBill(ctx context.Context, billID int64) (*models.BillDetails, error) {
	defer s.metrics.TrackDBOperation("get_bill")(time.Now())

	return s.keeper.GetBill(ctx, billID)
}

// GetCustomerBills returns the history of a customer, newest first. An unknown
// customer yields an empty history with Exists=false.
func (s *Storage) GetCustomerBills(ctx context.Context, customerName string) (*models.CustomerBills, error) {
	defer s.metrics.TrackDBOperation("customer_bills")(time.Now())

	bills, err := s.keeper.GetCustomerBills(ctx, customerName)
	if err != nil {
		return nil, fmt.Errorf("failed to load bills of %q: %w", customerName, err)
	}
	if bills == nil {
		bills = []models.BillSummary{}
	}

	return &models.CustomerBills{
		Customer: customerName,
		Exists:   len(bills) > 0,
		Bills:    bills,
	}, nil
}

func (s *Storage) SetStock(ctx context.Context, productID, stock int) error {
	if stock < 0 || stock > math.MaxInt32 {
		return fmt.Errorf("%w: stock %d is out of range", ErrInvalidRequest, stock)
	}
	if !fitsInt4(productID) {
		return fmt.Errorf("product %d: %w", productID, ErrNotFound)
	}

	defer s.metrics.TrackDBOperation("set_stock")(time.Now())

	if err := s.keeper.SetStock(ctx, productID, stock); err != nil {
		return err
	}
	s.log.Info("Stock updated", zap.Int("product_id", productID), zap.Int("stock", stock))
	return nil
}

// ResetAllStock sets every product to the configured default stock.
func (s *Storage) ResetAllStock(ctx context.Context) error {
	defer s.metrics.TrackDBOperation("reset_stock")(time.Now())

	n, err := s.keeper.ResetAllStock(ctx, s.defaultStock)
	if err != nil {
		return fmt.Errorf("failed to reset stock: %w", err)
	}
	s.log.Info("Stock reset", zap.Int64("products", n), zap.Int("stock", s.defaultStock))
	return nil
}

// ResetStockDefaults restores the seed catalog stock levels.
func (s *Storage) ResetStockDefaults(ctx context.Context) error {
	defer s.metrics.TrackDBOperation("reset_stock_defaults")(time.Now())

	n, err := s.keeper.ResetStockDefaults(ctx, DefaultStockLevels)
	if err != nil {
		return fmt.Errorf("failed to reset stock to defaults: %w", err)
	}
	s.log.Info("Stock reset to defaults", zap.Int64("products", n))
	return nil
}

func (s *Storage) Ping(ctx context.Context) bool {
	return s.keeper.Ping(ctx)
}

func validateBillRequest(req models.CreateBillRequest) error {
	if strings.TrimSpace(req.CustomerName) == "" {
		return fmt.Errorf("%w: customer_name is required", ErrInvalidRequest)
	}
	if len(req.Items) == 0 {
		return fmt.Errorf("%w: items must not be empty", ErrInvalidRequest)
	}
	for i, item := range req.Items {
		if item.Quantity <= 0 {
			return fmt.Errorf("%w: item %d has non-positive quantity %d", ErrInvalidRequest, i, item.Quantity)
		}
		if item.Quantity > math.MaxInt32 || !fitsInt4(item.ProductID) {
			return fmt.Errorf("%w: item %d is out of range", ErrInvalidRequest, i)
		}
	}
	return nil
}

// fitsInt4 reports whether v fits the INTEGER columns of the store.
func fitsInt4(v int) bool {
	return v >= math.MinInt32 && v <= math.MaxInt32
}
