package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	EventOrderPlaced = "OrderPlaced"
	EventStockLow    = "StockLow"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// New wraps payload in a version 1 envelope.
func New(eventType, producer, correlationID, traceID string, payload any) (Envelope, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      producer,
		TraceID:       traceID,
		CorrelationID: correlationID,
		Payload:       b,
	}, nil
}

// PlacedLine carries ProductID for product lines and VariantID for drinks.
type PlacedLine struct {
	ProductID string `json:"product_id,omitempty"`
	VariantID string `json:"variant_id,omitempty"`
	Option    string `json:"option"`
	Qty       int    `json:"qty"`
	UnitPrice string `json:"unit_price"`
}

// Amounts are decimal strings with two fraction digits.
type OrderPlacedPayload struct {
	OrderID         string       `json:"order_id"`
	ExternalID      string       `json:"external_id,omitempty"`
	StaffID         string       `json:"staff_id"`
	MemberID        string       `json:"member_id,omitempty"`
	PaymentMethodID string       `json:"payment_method_id"`
	Lines           []PlacedLine `json:"lines"`
	Subtotal        string       `json:"subtotal"`
	DiscountAmount  string       `json:"discount_amount"`
	GrandTotal      string       `json:"grand_total"`
}

type StockLowPayload struct {
	ProductID string `json:"product_id"`
	Available int    `json:"available"`
	Threshold int    `json:"threshold"`
	OrderID   string `json:"order_id"`
}
