package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/ariefcatur/go-shop-orders/internal/events"
	kafkax "github.com/ariefcatur/go-shop-orders/internal/kafka"
	"github.com/ariefcatur/go-shop-orders/internal/money"
	"github.com/ariefcatur/go-shop-orders/internal/orders"
)

type Placer interface {
	PlaceOrder(ctx context.Context, cart orders.Cart) (*orders.Order, bool, error)
	GetOrder(ctx context.Context, id string) (*orders.Order, error)
}

// IdempotencyCache is a fast path in front of the external id lookup. The
// database stays the source of truth.
type IdempotencyCache interface {
	Lookup(ctx context.Context, externalID string) (string, bool, error)
	Remember(ctx context.Context, externalID, orderID string) error
}

type Publisher interface {
	Publish(key, value []byte, headers ...kafka.Header)
}

type OrdersHandler struct {
	Orders   Placer
	Idem     IdempotencyCache // optional
	Producer Publisher        // optional
	Service  string
	Log      logrus.FieldLogger
}

type PlaceOrderLineReq struct {
	ProductID string          `json:"product_id"`
	Option    string          `json:"option"`
	Qty       int             `json:"qty"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type PlaceOrderReq struct {
	ExternalID      string              `json:"external_id"`
	StaffID         string              `json:"staff_id"`
	PaymentMethodID string              `json:"payment_method_id"`
	MemberID        *string             `json:"member_id"`
	Lines           []PlaceOrderLineReq `json:"lines"`
}

type OrderLineResp struct {
	ID             string  `json:"id"`
	ProductID      *string `json:"product_id,omitempty"`
	DrinkVariantID *string `json:"drink_variant_id,omitempty"`
	Option         string  `json:"option"`
	Qty            int     `json:"qty"`
	UnitPrice      string  `json:"unit_price"`
	LineTotal      string  `json:"line_total"`
}

type OrderResp struct {
	ID              string          `json:"id"`
	ExternalID      *string         `json:"external_id,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	StaffID         string          `json:"staff_id"`
	MemberID        *string         `json:"member_id,omitempty"`
	PaymentMethodID string          `json:"payment_method_id"`
	Subtotal        string          `json:"subtotal"`
	DiscountAmount  string          `json:"discount_amount"`
	GrandTotal      string          `json:"grand_total"`
	Lines           []OrderLineResp `json:"lines"`
	Idempotent      bool            `json:"idempotent"`
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.Post("/orders", h.placeOrder)
	r.Get("/orders/{id}", h.getOrder)
}

func (req PlaceOrderReq) cart() (orders.Cart, error) {
	c := orders.Cart{
		StaffID:         req.StaffID,
		PaymentMethodID: req.PaymentMethodID,
		MemberID:        req.MemberID,
		ExternalID:      req.ExternalID,
		Lines:           make([]orders.CartLine, 0, len(req.Lines)),
	}
	for _, l := range req.Lines {
		opt, err := orders.ParseOption(l.Option)
		if err != nil {
			return orders.Cart{}, err
		}
		c.Lines = append(c.Lines, orders.CartLine{
			ProductID: l.ProductID,
			Option:    opt,
			Quantity:  l.Qty,
			UnitPrice: l.UnitPrice,
		})
	}
	return c, nil
}

func (h *OrdersHandler) placeOrder(w http.ResponseWriter, r *http.Request) {
	var req PlaceOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid json")
		return
	}
	cart, err := req.cart()
	if err != nil {
		writeError(w, h.logger(), err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if o := h.cached(ctx, cart.ExternalID); o != nil {
		writeJSON(w, http.StatusOK, toOrderResp(o, true))
		return
	}

	o, existed, err := h.Orders.PlaceOrder(ctx, cart)
	if err != nil {
		writeError(w, h.logger(), err)
		return
	}

	if h.Idem != nil && cart.ExternalID != "" {
		if err := h.Idem.Remember(ctx, cart.ExternalID, o.ID); err != nil {
			h.logger().WithError(err).Warn("idempotency key not stored")
		}
	}
	if existed {
		writeJSON(w, http.StatusOK, toOrderResp(o, true))
		return
	}

	h.publishPlaced(o, middleware.GetReqID(r.Context()))
	writeJSON(w, http.StatusCreated, toOrderResp(o, false))
}

// cached returns the order remembered for externalID, or nil on any miss.
func (h *OrdersHandler) cached(ctx context.Context, externalID string) *orders.Order {
	if h.Idem == nil || externalID == "" {
		return nil
	}
	id, ok, err := h.Idem.Lookup(ctx, externalID)
	if err != nil {
		h.logger().WithError(err).Warn("idempotency lookup failed")
		return nil
	}
	if !ok {
		return nil
	}
	o, err := h.Orders.GetOrder(ctx, id)
	if err != nil {
		return nil
	}
	return o
}

func (h *OrdersHandler) publishPlaced(o *orders.Order, trace string) {
	if h.Producer == nil {
		return
	}
	p := events.OrderPlacedPayload{
		OrderID:         o.ID,
		StaffID:         o.StaffID,
		PaymentMethodID: o.PaymentMethodID,
		Subtotal:        money.String(o.Subtotal),
		DiscountAmount:  money.String(o.DiscountAmount),
		GrandTotal:      money.String(o.GrandTotal),
		Lines:           make([]events.PlacedLine, 0, len(o.Lines)),
	}
	if o.ExternalID != nil {
		p.ExternalID = *o.ExternalID
	}
	if o.MemberID != nil {
		p.MemberID = *o.MemberID
	}
	for _, l := range o.Lines {
		pl := events.PlacedLine{Option: string(l.Option), Qty: l.Quantity, UnitPrice: money.String(l.UnitPrice)}
		switch {
		case l.ProductID != nil:
			pl.ProductID = *l.ProductID
		case l.DrinkVariantID != nil:
			pl.VariantID = *l.DrinkVariantID
		}
		p.Lines = append(p.Lines, pl)
	}

	ev, err := events.New(events.EventOrderPlaced, h.Service, o.ID, trace, p)
	if err != nil {
		h.logger().WithError(err).Error("build order placed event")
		return
	}
	value, headers, err := kafkax.EnvelopeMessage(ev)
	if err != nil {
		h.logger().WithError(err).Error("encode order placed event")
		return
	}
	h.Producer.Publish(events.PartitionKey(o.ID), value, headers...)
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	if orderID == "" {
		badRequest(w, "missing id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	o, err := h.Orders.GetOrder(ctx, orderID)
	if err != nil {
		writeError(w, h.logger(), err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResp(o, false))
}

func toOrderResp(o *orders.Order, idempotent bool) OrderResp {
	resp := OrderResp{
		ID:              o.ID,
		ExternalID:      o.ExternalID,
		CreatedAt:       o.CreatedAt,
		StaffID:         o.StaffID,
		MemberID:        o.MemberID,
		PaymentMethodID: o.PaymentMethodID,
		Subtotal:        money.String(o.Subtotal),
		DiscountAmount:  money.String(o.DiscountAmount),
		GrandTotal:      money.String(o.GrandTotal),
		Lines:           make([]OrderLineResp, 0, len(o.Lines)),
		Idempotent:      idempotent,
	}
	for _, l := range o.Lines {
		resp.Lines = append(resp.Lines, OrderLineResp{
			ID:             l.ID,
			ProductID:      l.ProductID,
			DrinkVariantID: l.DrinkVariantID,
			Option:         string(l.Option),
			Qty:            l.Quantity,
			UnitPrice:      money.String(l.UnitPrice),
			LineTotal:      money.String(l.LineTotal),
		})
	}
	return resp
}

func (h *OrdersHandler) logger() logrus.FieldLogger {
	if h.Log != nil {
		return h.Log
	}
	return logrus.StandardLogger()
}
