package queue

import (
	"context"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/sqs"
	"github.com/pkg/errors"
)

// Forwarder republishes deliveries to a queue with the body and message
// attributes preserved byte for byte. Replay uses it to move dead-lettered
// messages back to the main queue.
type Forwarder struct {
	svc      Service
	queueURL string
}

func NewForwarder(svc Service, queueURL string) *Forwarder {
	return &Forwarder{svc: svc, queueURL: queueURL}
}

// Forward sends the delivery body unchanged. The new message gets a fresh
// delivery identity; the event id inside the body is what keeps downstream
// processing idempotent.
func (f *Forwarder) Forward(ctx context.Context, d Delivery) error {
	input := &sqs.SendMessageInput{
		QueueUrl:          &f.queueURL,
		MessageBody:       aws.String(string(d.Body)),
		MessageAttributes: copyMessageAttributes(d.Attributes),
	}
	if _, err := f.svc.SendMessageWithContext(ctx, input); err != nil {
		return errors.Wrapf(ErrUnavailable, "cannot forward message %s to %s: %s", d.MessageID, f.queueURL, err)
	}
	return nil
}
