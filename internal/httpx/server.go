package httpx

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/ariefcatur/go-shop-orders/internal/capacity"
	"github.com/ariefcatur/go-shop-orders/internal/inventory"
	"github.com/ariefcatur/go-shop-orders/internal/logging"
	"github.com/ariefcatur/go-shop-orders/internal/orders"
)

func NewRouter(log logrus.FieldLogger) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, logging.Middleware(log), middleware.Recoverer)
	r.Use(middleware.Timeout(15 * time.Second))
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return r
}

type errorBody struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details any    `json:"details,omitempty"`
}

type shortfall struct {
	ProductID string `json:"product_id"`
	Requested int    `json:"requested"`
	Shortfall int    `json:"shortfall"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: msg, Code: "INVALID_REQUEST"})
}

// writeError maps domain errors to a status code and a stable error code.
func writeError(w http.ResponseWriter, log logrus.FieldLogger, err error) {
	var (
		stockErr   *inventory.InsufficientStockError
		pricingErr *orders.PricingError
		variantErr *orders.MissingVariantError
		persistErr *orders.PersistenceError
	)
	switch {
	case errors.Is(err, orders.ErrEmptyCart):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error(), Code: "EMPTY_CART"})
	case errors.Is(err, orders.ErrInvalidCart), errors.Is(err, capacity.ErrInvalidKey), errors.Is(err, capacity.ErrUnknownKind):
		badRequest(w, err.Error())
	case errors.Is(err, orders.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: err.Error(), Code: "NOT_FOUND"})
	case errors.As(err, &pricingErr):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: err.Error(), Code: "PRICING"})
	case errors.As(err, &variantErr):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: err.Error(), Code: "MISSING_VARIANT"})
	case errors.As(err, &stockErr):
		writeJSON(w, http.StatusConflict, errorBody{
			Error:   err.Error(),
			Code:    "INSUFFICIENT_STOCK",
			Details: shortfall{ProductID: stockErr.ProductID, Requested: stockErr.Requested, Shortfall: stockErr.Shortfall},
		})
	case errors.Is(err, orders.ErrDuplicateOrder):
		writeJSON(w, http.StatusConflict, errorBody{Error: err.Error(), Code: "DUPLICATE_ORDER"})
	case errors.Is(err, capacity.ErrCapacityFull):
		writeJSON(w, http.StatusConflict, errorBody{Error: err.Error(), Code: "CAPACITY_FULL"})
	case errors.Is(err, capacity.ErrNothingReserved):
		writeJSON(w, http.StatusConflict, errorBody{Error: err.Error(), Code: "NOTHING_RESERVED"})
	case errors.As(err, &persistErr) && persistErr.Temporary():
		w.Header().Set("Retry-After", "1")
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "temporarily unavailable, retry", Code: "RETRY"})
	default:
		log.WithError(err).Error("request failed")
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error", Code: "INTERNAL"})
	}
}
