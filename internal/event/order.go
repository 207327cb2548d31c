package event

import (
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// SchemaVersion tags the current order event format.
const SchemaVersion = "1.0"

// Item is a single order line.
type Item struct {
	SKU string `json:"sku"`
	Qty int    `json:"qty"`
}

// OrderEvent is the business unit of processing. EventID is minted exactly
// once at publish time and never changes across redeliveries or DLQ replay;
// it is the idempotency key. OrderID is a business identifier only and may
// repeat across distinct events.
type OrderEvent struct {
	EventID       string    `json:"eventId"`
	OrderID       string    `json:"orderId"`
	CreatedAt     time.Time `json:"createdAt"`
	SchemaVersion string    `json:"schemaVersion"`
	CustomerID    string    `json:"customerId,omitempty"`
	Items         []Item    `json:"items"`
}

// NewOrderEvent builds a publishable event with a fresh event id and
// creation timestamp. Publishers must call this once per logical order
// event and reuse the result for any republication.
func NewOrderEvent(orderID, customerID string, items []Item) OrderEvent {
	return OrderEvent{
		EventID:       uuid.NewString(),
		OrderID:       orderID,
		CreatedAt:     time.Now().UTC(),
		SchemaVersion: SchemaVersion,
		CustomerID:    customerID,
		Items:         items,
	}
}

// Validate checks the required order event shape.
func (e *OrderEvent) Validate() error {
	if e.EventID == "" {
		return errors.Wrap(ErrMalformedEnvelope, "missing eventId")
	}
	if e.OrderID == "" {
		return errors.Wrap(ErrMalformedEnvelope, "missing orderId")
	}
	if e.CreatedAt.IsZero() {
		return errors.Wrap(ErrMalformedEnvelope, "missing createdAt")
	}
	if len(e.Items) == 0 {
		return errors.Wrap(ErrMalformedEnvelope, "order has no items")
	}
	for i, item := range e.Items {
		if item.SKU == "" {
			return errors.Wrapf(ErrMalformedEnvelope, "item %d has empty sku", i)
		}
		if item.Qty <= 0 {
			return errors.Wrapf(ErrMalformedEnvelope, "item %d has non-positive qty %d", i, item.Qty)
		}
	}
	return nil
}
