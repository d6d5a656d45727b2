package inventory

import (
	"context"
	"fmt"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"github.com/ariefcatur/go-shop-orders/internal/events"
	kafkax "github.com/ariefcatur/go-shop-orders/internal/kafka"
)

type StockReader interface {
	StockLevel(ctx context.Context, productID string) (available int, tracked bool, err error)
}

type Deduper interface {
	FirstSeen(ctx context.Context, id string) (bool, error)
	Forget(ctx context.Context, id string) error
}

type Publisher interface {
	Publish(key, value []byte, headers ...kafka.Header)
}

// Watcher raises StockLow for products an order left below Threshold.
type Watcher struct {
	Stock       StockReader
	Dedup       Deduper
	Producer    Publisher
	ServiceName string
	Threshold   int
	Log         logrus.FieldLogger
}

// HandleOrderPlaced is installed as the order.placed consumer handler.
func (w *Watcher) HandleOrderPlaced(ctx context.Context, m kafka.Message) error {
	env, err := kafkax.UnmarshalEnvelope(m.Value)
	if err != nil {
		return kafkax.Permanent(err)
	}
	if env.EventType != events.EventOrderPlaced {
		return nil
	}

	first, err := w.Dedup.FirstSeen(ctx, env.EventID)
	if err != nil {
		return fmt.Errorf("dedup: %w", err)
	}
	if !first {
		return nil
	}

	// on failure the mark is dropped so the consumer's retry runs the check again
	if err := w.check(ctx, env); err != nil {
		if ferr := w.Dedup.Forget(ctx, env.EventID); ferr != nil {
			w.logger().WithError(ferr).Warn("dedup forget failed")
		}
		return err
	}
	return nil
}

func (w *Watcher) check(ctx context.Context, env events.Envelope) error {
	p, err := kafkax.UnwrapPayload[events.OrderPlacedPayload](env.Payload)
	if err != nil {
		return kafkax.Permanent(err)
	}

	seen := make(map[string]bool, len(p.Lines))
	for _, l := range p.Lines {
		// drink lines carry a variant id only
		if l.ProductID == "" || seen[l.ProductID] {
			continue
		}
		seen[l.ProductID] = true

		n, tracked, err := w.Stock.StockLevel(ctx, l.ProductID)
		if err != nil {
			return fmt.Errorf("stock level %s: %w", l.ProductID, err)
		}
		if !tracked || n >= w.Threshold {
			continue
		}
		if err := w.publishLow(p.OrderID, l.ProductID, n, env.TraceID); err != nil {
			return err
		}
	}
	return nil
}

func (w *Watcher) publishLow(orderID, productID string, available int, trace string) error {
	ev, err := events.New(events.EventStockLow, w.ServiceName, orderID, trace, events.StockLowPayload{
		ProductID: productID,
		Available: available,
		Threshold: w.Threshold,
		OrderID:   orderID,
	})
	if err != nil {
		return err
	}
	value, headers, err := kafkax.EnvelopeMessage(ev)
	if err != nil {
		return err
	}
	w.Producer.Publish(events.PartitionKey(productID), value, headers...)
	w.logger().WithFields(logrus.Fields{
		"product_id": productID,
		"available":  available,
		"order_id":   orderID,
	}).Info("stock low")
	return nil
}

func (w *Watcher) logger() logrus.FieldLogger {
	if w.Log != nil {
		return w.Log
	}
	return logrus.StandardLogger()
}
