// Package consumer processes batches of queue deliveries: parse, claim
// against the idempotency store, run business processing, and report the
// partial-batch acknowledgment so only failed deliveries are redelivered.
package consumer

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/beast99-p3/Serverless-Event-Driven-Workflow/internal/event"
	"github.com/beast99-p3/Serverless-Event-Driven-Workflow/internal/idempotency"
	"github.com/beast99-p3/Serverless-Event-Driven-Workflow/internal/queue"
)

const defaultInvocationTimeout = 30 * time.Second

// Outcome tags for per-delivery log lines.
const (
	outcomeProcessed  = "processed"
	outcomeDuplicate  = "duplicate"
	outcomeMalformed  = "malformed"
	outcomeFailed     = "failed"
	outcomeStoreError = "store_unavailable"
)

const logBodySnippetMax = 1024

// BatchResult is the partial-batch acknowledgment: the message ids that
// failed and must be redelivered. Every delivery not listed, duplicates
// included, is fully handled and must be acknowledged.
type BatchResult struct {
	Failures []string
}

// Failed reports whether the given message id is in the failure set.
func (r BatchResult) Failed(messageID string) bool {
	for _, id := range r.Failures {
		if id == messageID {
			return true
		}
	}
	return false
}

// Processor runs the per-delivery state machine. The claim is written
// before business processing runs: a redelivery of an event whose
// processing failed after a successful claim is treated as a duplicate and
// never re-executed. That trades duplicate side effects away for a known
// under-delivery risk an operator resolves by clearing the stale record.
type Processor struct {
	store   idempotency.Store
	handle  Handler
	log     *zap.Logger
	timeout time.Duration
}

// ProcessorOption configures a Processor.
type ProcessorOption func(*Processor)

// WithInvocationTimeout bounds a whole batch invocation. It must stay well
// below the queue's visibility window so in-flight work cannot race its own
// redelivery.
func WithInvocationTimeout(d time.Duration) ProcessorOption {
	return func(p *Processor) {
		p.timeout = d
	}
}

func NewProcessor(store idempotency.Store, handle Handler, log *zap.Logger, options ...ProcessorOption) *Processor {
	p := &Processor{
		store:   store,
		handle:  handle,
		log:     log,
		timeout: defaultInvocationTimeout,
	}
	for _, o := range options {
		o(p)
	}
	return p
}

// ProcessBatch resolves every delivery independently and concurrently; one
// bad delivery never fails its batch-mates. Deliveries still unresolved when
// the invocation deadline passes count as failed.
func (p *Processor) ProcessBatch(ctx context.Context, batch []queue.Delivery) BatchResult {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	failed := make([]bool, len(batch))
	var wg sync.WaitGroup
	for i := range batch {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			failed[i] = p.process(ctx, batch[i]) != nil
		}(i)
	}
	wg.Wait()

	var res BatchResult
	for i, d := range batch {
		if failed[i] {
			res.Failures = append(res.Failures, d.MessageID)
		}
	}
	return res
}

func (p *Processor) process(ctx context.Context, d queue.Delivery) error {
	env, err := event.Open(d.Body)
	var ord *event.OrderEvent
	if err == nil {
		ord, err = env.Order()
	}
	if err != nil {
		body := d.Body
		if len(body) > logBodySnippetMax {
			body = body[:logBodySnippetMax]
		}
		p.log.Error("malformed delivery",
			zap.String("message_id", d.MessageID),
			zap.Int("receive_count", d.ReceiveCount),
			zap.ByteString("body", body),
			zap.String("outcome", outcomeMalformed),
			zap.Error(err),
		)
		return err
	}
	return p.claimAndHandle(ctx, d, *ord)
}

func (p *Processor) claimAndHandle(ctx context.Context, d queue.Delivery, ord event.OrderEvent) error {
	fields := []zap.Field{
		zap.String("event_id", ord.EventID),
		zap.String("order_id", ord.OrderID),
		zap.String("message_id", d.MessageID),
		zap.Int("receive_count", d.ReceiveCount),
	}

	outcome, err := p.store.Claim(ctx, ord.EventID, ord.OrderID, ord.CreatedAt)
	if err != nil {
		// Never assume "new" when the guard cannot be consulted; fail the
		// delivery and let the queue redeliver it.
		p.log.Error("idempotency claim failed",
			append(fields, zap.String("outcome", outcomeStoreError), zap.Error(err))...)
		return err
	}
	if outcome == idempotency.Duplicate {
		p.log.Info("duplicate event skipped",
			append(fields, zap.String("outcome", outcomeDuplicate))...)
		return nil
	}

	if err := p.handle(ctx, ord); err != nil {
		p.log.Error("order processing failed",
			append(fields, zap.String("outcome", outcomeFailed), zap.Error(err))...)
		return errors.WithMessagef(err, "event %s", ord.EventID)
	}
	p.log.Info("event handled",
		append(fields, zap.String("outcome", outcomeProcessed))...)
	return nil
}
