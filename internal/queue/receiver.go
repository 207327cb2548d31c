package queue

import (
	"context"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/sqs"
	"github.com/pkg/errors"
)

const (
	defaultMaxMessages     = 5
	defaultWaitTimeSeconds = 20
)

// Receiver pulls bounded batches from one queue and acknowledges handled
// deliveries by deleting them. Anything not deleted becomes visible again
// after the queue's visibility window and is redelivered.
type Receiver struct {
	svc      Service
	queueURL string
	options  *receiverOptions
}

type receiverOptions struct {
	// The maximum number of messages to return per receive. The service
	// never returns more than this value, fewer is common. Valid values:
	// 1 to 10.
	MaxMessages int64
	// The duration (in seconds) for which the receive call waits for a
	// message to arrive before returning an empty batch.
	WaitTimeSeconds int64
}

// ReceiverOption configures a Receiver.
type ReceiverOption func(*receiverOptions)

// MaxMessages sets the batch size per receive.
func MaxMessages(n int64) ReceiverOption {
	return func(o *receiverOptions) {
		o.MaxMessages = n
	}
}

// LongPollingDuration sets the receive wait time in seconds. Zero disables
// long polling.
func LongPollingDuration(seconds int64) ReceiverOption {
	return func(o *receiverOptions) {
		o.WaitTimeSeconds = seconds
	}
}

func NewReceiver(svc Service, queueURL string, options ...ReceiverOption) *Receiver {
	opts := &receiverOptions{
		MaxMessages:     defaultMaxMessages,
		WaitTimeSeconds: defaultWaitTimeSeconds,
	}
	for _, o := range options {
		o(opts)
	}
	return &Receiver{svc: svc, queueURL: queueURL, options: opts}
}

// Receive pulls up to the configured number of deliveries. An empty slice
// with a nil error means the queue had nothing to hand out within the wait
// window.
func (r *Receiver) Receive(ctx context.Context) ([]Delivery, error) {
	input := &sqs.ReceiveMessageInput{
		QueueUrl:            &r.queueURL,
		MaxNumberOfMessages: &r.options.MaxMessages,
		AttributeNames: aws.StringSlice([]string{
			sqs.MessageSystemAttributeNameApproximateReceiveCount,
		}),
		MessageAttributeNames: aws.StringSlice([]string{"All"}),
	}
	if r.options.WaitTimeSeconds > 0 {
		input.WaitTimeSeconds = &r.options.WaitTimeSeconds
	}
	out, err := r.svc.ReceiveMessageWithContext(ctx, input)
	if err != nil {
		return nil, errors.Wrapf(ErrUnavailable, "cannot receive from %s: %s", r.queueURL, err)
	}
	deliveries := make([]Delivery, 0, len(out.Messages))
	for _, msg := range out.Messages {
		deliveries = append(deliveries, newDelivery(msg))
	}
	return deliveries, nil
}

// FailedAck identifies a delivery the queue refused to delete. The message
// stays in the queue and will redeliver.
type FailedAck struct {
	MessageID string
	Code      string
	Reason    string
}

// AckBatch deletes the given deliveries in one batch call and reports
// per-entry failures. The caller decides what a stuck entry means: for the
// consumer it is a harmless redelivery absorbed by the duplicate guard, for
// replay it is a duplicate-risk warning.
func (r *Receiver) AckBatch(ctx context.Context, deliveries []Delivery) ([]FailedAck, error) {
	if len(deliveries) == 0 {
		return nil, nil
	}
	entries := make([]*sqs.DeleteMessageBatchRequestEntry, 0, len(deliveries))
	for i := range deliveries {
		entries = append(entries, &sqs.DeleteMessageBatchRequestEntry{
			Id:            &deliveries[i].MessageID,
			ReceiptHandle: &deliveries[i].ReceiptHandle,
		})
	}
	input := &sqs.DeleteMessageBatchInput{
		QueueUrl: &r.queueURL,
		Entries:  entries,
	}
	out, err := r.svc.DeleteMessageBatchWithContext(ctx, input)
	if err != nil {
		return nil, errors.Wrapf(ErrUnavailable, "cannot delete batch from %s: %s", r.queueURL, err)
	}
	var failed []FailedAck
	for _, f := range out.Failed {
		if f == nil || f.Id == nil {
			continue
		}
		fa := FailedAck{MessageID: *f.Id}
		if f.Code != nil {
			fa.Code = *f.Code
		}
		if f.Message != nil {
			fa.Reason = *f.Message
		}
		failed = append(failed, fa)
	}
	return failed, nil
}
