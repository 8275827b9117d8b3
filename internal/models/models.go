package models

import (
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// prices travel as JSON numbers, the client does arithmetic on them
	decimal.MarshalJSONWithoutQuotes = true
}

type Product struct {
	ID    int             `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
	Stock int             `json:"stock"`
}

type Bill struct {
	ID           int64           `json:"id"`
	CustomerName string          `json:"customer_name"`
	TotalAmount  decimal.Decimal `json:"total_amount"`
	CreatedAt    time.Time       `json:"created_at"`
}

// BillItem is a line of a bill. Price is the unit price captured at sale time,
// ProductName is the current catalog name joined for display.
type BillItem struct {
	ID          int64           `json:"id"`
	BillID      int64           `json:"bill_id"`
	ProductID   int             `json:"product_id"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	Total       decimal.Decimal `json:"total"`
	ProductName string          `json:"product_name"`
}

type BillDetails struct {
	Bill  Bill       `json:"bill"`
	Items []BillItem `json:"items"`
}

type BillSummary struct {
	ID          int64           `json:"id"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	CreatedAt   time.Time       `json:"created_at"`
}

type CustomerBills struct {
	Customer string        `json:"customer"`
	Exists   bool          `json:"exists"`
	Bills    []BillSummary `json:"bills"`
}

// BillLine is one cart entry of a bill request.
type BillLine struct {
	ProductID int `json:"product_id"`
	Quantity  int `json:"quantity"`
}

type CreateBillRequest struct {
	CustomerName string     `json:"customer_name"`
	Items        []BillLine `json:"items"`
}

type CreateBillResponse struct {
	BillID int64 `json:"bill_id"`
}

type StockUpdateRequest struct {
	Stock *int `json:"stock"`
}

type SuccessResponse struct {
	Success bool `json:"success"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type StockImportResponse struct {
	Message string `json:"message"`
	Updated int64  `json:"updated"`
}
