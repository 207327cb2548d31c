package consumer

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/beast99-p3/Serverless-Event-Driven-Workflow/internal/event"
)

// FaultInjectionSKU makes processing fail deterministically; used to exercise
// the failure path end to end.
const FaultInjectionSKU = "FAIL-ME"

// ErrProcessingFailed classifies a deterministic business rejection.
var ErrProcessingFailed = errors.New("order processing failed")

// Handler executes business processing for a newly claimed order event.
// It must be deterministic from the event content alone.
type Handler func(ctx context.Context, ord event.OrderEvent) error

// NewOrderHandler returns the reference order handler: it rejects any order
// containing the fault-injection sku and succeeds otherwise.
func NewOrderHandler(log *zap.Logger) Handler {
	return func(_ context.Context, ord event.OrderEvent) error {
		for _, item := range ord.Items {
			if item.SKU == FaultInjectionSKU {
				return errors.Wrapf(ErrProcessingFailed, "sku %q rejected", item.SKU)
			}
		}
		log.Info("order processed",
			zap.String("event_id", ord.EventID),
			zap.String("order_id", ord.OrderID),
			zap.Int("items", len(ord.Items)),
		)
		return nil
	}
}
