package consumer

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/beast99-p3/Serverless-Event-Driven-Workflow/internal/queue"
)

const defaultReceiveErrorDelay = 5 * time.Second

// Worker is the long-poll loop: receive a batch, process it, acknowledge
// everything outside the failure set. Failed deliveries are left untouched
// and become visible again after the queue's visibility window; the queue's
// max-receive-count policy eventually dead-letters them.
type Worker struct {
	receiver   *queue.Receiver
	processor  *Processor
	log        *zap.Logger
	errorDelay time.Duration
}

// WorkerOption configures a Worker.
type WorkerOption func(*Worker)

// WithReceiveErrorDelay sets the pause after a failed receive before the
// next attempt.
func WithReceiveErrorDelay(d time.Duration) WorkerOption {
	return func(w *Worker) {
		w.errorDelay = d
	}
}

func NewWorker(receiver *queue.Receiver, processor *Processor, log *zap.Logger, options ...WorkerOption) *Worker {
	w := &Worker{
		receiver:   receiver,
		processor:  processor,
		log:        log,
		errorDelay: defaultReceiveErrorDelay,
	}
	for _, o := range options {
		o(w)
	}
	return w
}

// Run polls until ctx is canceled. Receive errors are logged and retried
// after a delay; they are never fatal to the loop. Cancellation mid-batch
// leaves unresolved deliveries unacknowledged, so they redeliver and the
// duplicate guard absorbs any that were already claimed.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		batch, err := w.receiver.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			w.log.Error("cannot receive batch", zap.Error(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(w.errorDelay):
			}
			continue
		}
		if len(batch) == 0 {
			continue
		}

		res := w.processor.ProcessBatch(ctx, batch)

		acks := make([]queue.Delivery, 0, len(batch))
		for _, d := range batch {
			if !res.Failed(d.MessageID) {
				acks = append(acks, d)
			}
		}
		stuck, err := w.receiver.AckBatch(ctx, acks)
		if err != nil {
			// The whole delete call failed: every handled delivery will
			// redeliver and be absorbed as a duplicate.
			w.log.Error("cannot acknowledge batch", zap.Error(err))
		}
		for _, f := range stuck {
			w.log.Warn("acknowledged delivery not deleted, expect a redelivery",
				zap.String("message_id", f.MessageID),
				zap.String("code", f.Code),
				zap.String("reason", f.Reason),
			)
		}

		w.log.Info("batch resolved",
			zap.Int("received", len(batch)),
			zap.Int("acknowledged", len(acks)),
			zap.Int("failed", len(res.Failures)),
		)
	}
}
