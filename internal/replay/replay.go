// Package replay drains the dead-letter queue back into the main queue. It
// never deletes a message without a confirmed re-publication, so a forward
// failure can leave a message behind but can never lose it. Safety of the
// replay itself rests on the consumer's duplicate guard, not on anything
// here.
package replay

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/beast99-p3/Serverless-Event-Driven-Workflow/internal/queue"
)

// Result summarizes a drain run.
type Result struct {
	// Replayed counts messages confirmed forwarded to the main queue.
	Replayed int
	// Batches counts non-empty pages drained from the DLQ.
	Batches int
	// ForwardFailures counts messages whose forward failed; they remain in
	// the DLQ untouched and a later run can retry them.
	ForwardFailures int
	// DeleteFailures lists messages that were forwarded but could not be
	// removed from the DLQ. Both copies now exist; an operator must resolve
	// the potential duplicate.
	DeleteFailures []queue.FailedAck
}

// Drainer pages through the DLQ and forwards each message body unchanged.
type Drainer struct {
	dlq  *queue.Receiver
	main *queue.Forwarder
	log  *zap.Logger
}

func NewDrainer(dlq *queue.Receiver, main *queue.Forwarder, log *zap.Logger) *Drainer {
	return &Drainer{dlq: dlq, main: main, log: log}
}

// Drain loops until a receive returns zero messages. It is not time-bounded:
// a continuously refilling DLQ keeps it running, which is the intended
// operational behavior. A receive error, or a batch in which every forward
// failed, is unrecoverable and aborts the run with the partial Result.
func (d *Drainer) Drain(ctx context.Context) (Result, error) {
	var res Result
	for {
		batch, err := d.dlq.Receive(ctx)
		if err != nil {
			return res, err
		}
		if len(batch) == 0 {
			return res, nil
		}
		res.Batches++

		confirmed := make([]queue.Delivery, 0, len(batch))
		for _, msg := range batch {
			if err := d.main.Forward(ctx, msg); err != nil {
				res.ForwardFailures++
				d.log.Warn("forward failed, message stays in DLQ",
					zap.String("message_id", msg.MessageID),
					zap.Error(err),
				)
				continue
			}
			confirmed = append(confirmed, msg)
		}
		if len(confirmed) == 0 {
			// Every forward failed; retrying the same page forever would
			// spin against a dead main queue.
			return res, errors.Wrap(queue.ErrUnavailable, "no message in the batch could be forwarded")
		}

		stuck, err := d.dlq.AckBatch(ctx, confirmed)
		if err != nil {
			// Forwarded copies exist but none of the originals were
			// removed: all of them are duplicate risks.
			for _, msg := range confirmed {
				res.DeleteFailures = append(res.DeleteFailures, queue.FailedAck{
					MessageID: msg.MessageID,
					Reason:    err.Error(),
				})
			}
			res.Replayed += len(confirmed)
			return res, err
		}
		for _, f := range stuck {
			d.log.Warn("replayed message could not be deleted from DLQ, duplicate risk",
				zap.String("message_id", f.MessageID),
				zap.String("code", f.Code),
				zap.String("reason", f.Reason),
			)
		}
		res.DeleteFailures = append(res.DeleteFailures, stuck...)
		res.Replayed += len(confirmed)

		d.log.Info("batch replayed",
			zap.Int("batch", res.Batches),
			zap.Int("replayed", len(confirmed)),
			zap.Int("forward_failures", len(batch)-len(confirmed)),
			zap.Int("delete_failures", len(stuck)),
		)
	}
}
