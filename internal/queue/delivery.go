// Package queue is a thin layer over the durable queue service: bounded
// batch receive with long polling, partial-batch acknowledgment via batched
// delete, and body-preserving forwarding for replay.
package queue

import (
	"strconv"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/sqs"
)

// Delivery is one delivery attempt of a message. MessageID and ReceiptHandle
// belong to the delivery layer: the receipt handle changes on every
// redelivery and is only valid while the message is in flight.
type Delivery struct {
	MessageID     string
	ReceiptHandle string
	Body          []byte
	// ReceiveCount is the provider's approximate delivery count, 0 when the
	// attribute is absent.
	ReceiveCount int
	// Attributes carries the message attributes as plain strings so a
	// forward can reproduce them.
	Attributes map[string]string
}

func newDelivery(msg *sqs.Message) Delivery {
	d := Delivery{
		Attributes: flattenMessageAttributes(msg.MessageAttributes),
	}
	if msg.MessageId != nil {
		d.MessageID = *msg.MessageId
	}
	if msg.ReceiptHandle != nil {
		d.ReceiptHandle = *msg.ReceiptHandle
	}
	if msg.Body != nil {
		d.Body = []byte(*msg.Body)
	}
	if v, ok := msg.Attributes[sqs.MessageSystemAttributeNameApproximateReceiveCount]; ok && v != nil {
		d.ReceiveCount, _ = strconv.Atoi(*v)
	}
	return d
}

func flattenMessageAttributes(attribs map[string]*sqs.MessageAttributeValue) map[string]string {
	res := make(map[string]string)
	for k, v := range attribs {
		if v != nil && v.StringValue != nil {
			res[k] = *v.StringValue
		}
	}
	return res
}

func copyMessageAttributes(attribs map[string]string) map[string]*sqs.MessageAttributeValue {
	if len(attribs) == 0 {
		return nil
	}
	res := make(map[string]*sqs.MessageAttributeValue)
	for k, v := range attribs {
		res[k] = &sqs.MessageAttributeValue{
			DataType:    aws.String("String"),
			StringValue: aws.String(v),
		}
	}
	return res
}
