package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"

	"github.com/drstein77/billing/internal/compress"
	"github.com/drstein77/billing/internal/middleware"
	"github.com/drstein77/billing/internal/models"
	"github.com/drstein77/billing/internal/storage"
	"github.com/go-chi/chi"
	"go.uber.org/zap"
)

// Storage interface for database operations
type Storage interface {
	GetAllProducts(context.Context) ([]models.Product, error)
	CreateBill(context.Context, models.CreateBillRequest) (int64, error)
	GetBill(context.Context, int64) (*models.BillDetails, error)
	GetCustomerBills(context.Context, string) (*models.CustomerBills, error)
	ExportCustomerBills(context.Context, string, io.Writer) error
	SetStock(ctx context.Context, productID, stock int) error
	ResetAllStock(context.Context) error
	ResetStockDefaults(context.Context) error
	ImportStock(context.Context, io.Reader) (int64, error)
	Ping(context.Context) bool
}

// Log interface for logging
type Log interface {
	Info(string, ...zap.Field)
	Error(string, ...zap.Field)
}

// BaseController struct for handling requests
type BaseController struct {
	storage Storage
	log     Log
}

// NewBaseController creates a new BaseController instance
func NewBaseController(storage Storage, log Log) *BaseController {
	return &BaseController{
		storage: storage,
		log:     log,
	}
}

// Route sets up the routes for the BaseController
func (h *BaseController) Route() *chi.Mux {
	r := chi.NewRouter()

	r.Get("/ping", h.ping)

	r.Get("/products", h.getProducts)
	r.Put("/products/{id}/stock", h.putStock)

	r.Post("/bill", h.postBill)
	r.Get("/bill/{id}", h.getBill)

	r.Get("/bills/{customer}", h.getCustomerBills)
	r.Get("/customer/{customer}/bills", h.getCustomerBills)

	r.Post("/reset-stock", h.postResetStock)
	r.Put("/reset-stock", h.putResetStock)

	r.Group(func(r chi.Router) {
		r.Use(middleware.ArchiveTypeMiddleware)
		r.Get("/bills/{customer}/export", h.exportCustomerBills)
		r.With(middleware.UnpackCSVMiddleware).Post("/products/stock/import", h.importStock)
	})

	return r
}

func (h *BaseController) getProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.storage.GetAllProducts(r.Context())
	if err != nil {
		h.log.Error("GET /products failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Database error")
		return
	}

	writeJSON(w, http.StatusOK, products)
}

func (h *BaseController) postBill(w http.ResponseWriter, r *http.Request) {
	var req models.CreateBillRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request")
		return
	}

	billID, err := h.storage.CreateBill(r.Context(), req)
	if errors.Is(err, storage.ErrInvalidRequest) {
		writeError(w, http.StatusBadRequest, "Invalid request")
		return
	}
	if err != nil {
		h.log.Error("POST /bill failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, models.CreateBillResponse{BillID: billID})
}

func (h *BaseController) getBill(w http.ResponseWriter, r *http.Request) {
	// ids are int4 in the store, anything wider cannot exist
	billID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 32)
	if err != nil {
		writeError(w, http.StatusNotFound, "Bill not found")
		return
	}

	details, err := h.storage.GetBill(r.Context(), billID)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Bill not found")
		return
	}
	if err != nil {
		h.log.Error("GET /bill failed", zap.Int64("bill_id", billID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Database error")
		return
	}

	writeJSON(w, http.StatusOK, details)
}

func (h *BaseController) getCustomerBills(w http.ResponseWriter, r *http.Request) {
	customer := customerParam(r)

	history, err := h.storage.GetCustomerBills(r.Context(), customer)
	if err != nil {
		h.log.Error("Customer bills lookup failed", zap.String("customer", customer), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Database error")
		return
	}

	writeJSON(w, http.StatusOK, history)
}

func (h *BaseController) exportCustomerBills(w http.ResponseWriter, r *http.Request) {
	customer := customerParam(r)
	archiveType := middleware.ArchiveType(r.Context())

	// the archive is built in memory so a store failure can still become a 500
	var buf bytes.Buffer
	aw, err := compress.NewWriter(archiveType, &buf, "bills.csv")
	if err == nil {
		err = h.storage.ExportCustomerBills(r.Context(), customer, aw)
		if closeErr := aw.Close(); err == nil {
			err = closeErr
		}
	}
	if err != nil {
		h.log.Error("Bill export failed", zap.String("customer", customer), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to export bills")
		return
	}

	w.Header().Set("Content-Type", compress.ContentType(archiveType))
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="bills.%s"`, archiveType))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

func (h *BaseController) putStock(w http.ResponseWriter, r *http.Request) {
	productID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 32)
	if err != nil {
		writeError(w, http.StatusNotFound, "Product not found")
		return
	}

	var req models.StockUpdateRequest
	if err := decodeJSON(r.Body, &req); err != nil || req.Stock == nil || *req.Stock < 0 || *req.Stock > math.MaxInt32 {
		writeError(w, http.StatusBadRequest, "Invalid stock")
		return
	}

	err = h.storage.SetStock(r.Context(), int(productID), *req.Stock)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, "Product not found")
	case errors.Is(err, storage.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, "Invalid stock")
	case err != nil:
		h.log.Error("Stock update failed", zap.Int64("product_id", productID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Database error")
	default:
		writeJSON(w, http.StatusOK, models.SuccessResponse{Success: true})
	}
}

func (h *BaseController) postResetStock(w http.ResponseWriter, r *http.Request) {
	if err := h.storage.ResetAllStock(r.Context()); err != nil {
		h.log.Error("Reset stock error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to reset stock")
		return
	}

	writeJSON(w, http.StatusOK, models.MessageResponse{Message: "Stock reset successfully"})
}

func (h *BaseController) putResetStock(w http.ResponseWriter, r *http.Request) {
	if err := h.storage.ResetStockDefaults(r.Context()); err != nil {
		h.log.Error("Reset stock to defaults error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to reset stock")
		return
	}

	writeJSON(w, http.StatusOK, models.MessageResponse{Message: "Stock reset to defaults"})
}

func (h *BaseController) importStock(w http.ResponseWriter, r *http.Request) {
	updated, err := h.storage.ImportStock(r.Context(), r.Body)
	if errors.Is(err, storage.ErrInvalidRequest) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		h.log.Error("Stock import failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to import stock")
		return
	}

	writeJSON(w, http.StatusOK, models.StockImportResponse{Message: "Stock imported", Updated: updated})
}

func (h *BaseController) ping(w http.ResponseWriter, r *http.Request) {
	if !h.storage.Ping(r.Context()) {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// customerParam returns the {customer} path segment. chi matches on RawPath
// when the request carries one, so only then is the value still escaped.
func customerParam(r *http.Request) string {
	customer := chi.URLParam(r, "customer")
	if r.URL.RawPath == "" {
		return customer
	}
	if unescaped, err := url.PathUnescape(customer); err == nil {
		return unescaped
	}
	return customer
}

// decodeJSON decodes exactly one JSON value from body.
func decodeJSON(body io.Reader, v any) error {
	dec := json.NewDecoder(body)
	if err := dec.Decode(v); err != nil {
		return err
	}
	if err := dec.Decode(&json.RawMessage{}); !errors.Is(err, io.EOF) {
		return errors.New("unexpected data after JSON body")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, models.ErrorResponse{Error: message})
}
