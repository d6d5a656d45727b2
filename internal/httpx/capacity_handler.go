package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/ariefcatur/go-shop-orders/internal/capacity"
)

type CapacityService interface {
	Reserve(ctx context.Context, k capacity.Key, n int) (capacity.Usage, error)
	Release(ctx context.Context, k capacity.Key, n int) (capacity.Usage, error)
	Usage(ctx context.Context, k capacity.Key) (capacity.Usage, error)
}

type CapacityHandler struct {
	Capacity CapacityService
	Log      logrus.FieldLogger
}

type CapacityReq struct {
	Date string `json:"date"` // YYYY-MM-DD
	Slot string `json:"slot"`
	Qty  int    `json:"qty"`
}

type UsageResp struct {
	Key       string `json:"key"`
	Reserved  int    `json:"reserved"`
	Limit     int    `json:"limit"`
	Remaining int    `json:"remaining"`
}

func (h *CapacityHandler) Register(r chi.Router) {
	r.Post("/capacity/{kind}/reserve", h.reserve)
	r.Post("/capacity/{kind}/release", h.release)
	r.Get("/capacity/{kind}", h.usage)
}

func parseKey(kind, date, slot string) (capacity.Key, error) {
	d, err := time.Parse(time.DateOnly, date)
	if err != nil {
		return capacity.Key{}, err
	}
	return capacity.Key{Kind: capacity.Kind(kind), Date: d, Slot: slot}, nil
}

func (h *CapacityHandler) reserve(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.Capacity.Reserve)
}

func (h *CapacityHandler) release(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.Capacity.Release)
}

func (h *CapacityHandler) mutate(w http.ResponseWriter, r *http.Request, op func(context.Context, capacity.Key, int) (capacity.Usage, error)) {
	var req CapacityReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid json")
		return
	}
	key, err := parseKey(chi.URLParam(r, "kind"), req.Date, req.Slot)
	if err != nil {
		badRequest(w, "date must be YYYY-MM-DD")
		return
	}
	if req.Qty == 0 {
		req.Qty = 1
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	u, err := op(ctx, key, req.Qty)
	if err != nil {
		writeError(w, h.logger(), err)
		return
	}
	writeJSON(w, http.StatusOK, toUsageResp(u))
}

func (h *CapacityHandler) usage(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	key, err := parseKey(chi.URLParam(r, "kind"), q.Get("date"), q.Get("slot"))
	if err != nil {
		badRequest(w, "date must be YYYY-MM-DD")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	u, err := h.Capacity.Usage(ctx, key)
	if err != nil {
		writeError(w, h.logger(), err)
		return
	}
	writeJSON(w, http.StatusOK, toUsageResp(u))
}

func toUsageResp(u capacity.Usage) UsageResp {
	return UsageResp{Key: u.Key, Reserved: u.Reserved, Limit: u.Limit, Remaining: u.Remaining()}
}

func (h *CapacityHandler) logger() logrus.FieldLogger {
	if h.Log != nil {
		return h.Log
	}
	return logrus.StandardLogger()
}
