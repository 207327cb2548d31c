package consumer_test

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/sqs"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/beast99-p3/Serverless-Event-Driven-Workflow/internal/consumer"
	"github.com/beast99-p3/Serverless-Event-Driven-Workflow/internal/idempotency"
	"github.com/beast99-p3/Serverless-Event-Driven-Workflow/internal/queue"
)

type fakeMessage struct {
	id       string
	body     string
	receives int
	handle   string
}

// fakeQueue emulates the durable-queue contract in process: at-least-once
// delivery, a fresh receipt handle per delivery, redelivery of anything not
// deleted, an approximate receive count, and redrive to a dead-letter list
// once the receive count reaches maxReceive.
type fakeQueue struct {
	mu         sync.Mutex
	seq        int
	visible    []*fakeMessage
	inflight   map[string]*fakeMessage
	dead       []*fakeMessage
	maxReceive int
}

func newFakeQueue(maxReceive int) *fakeQueue {
	return &fakeQueue{inflight: make(map[string]*fakeMessage), maxReceive: maxReceive}
}

func (q *fakeQueue) push(body string) string {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.seq++
	msg := &fakeMessage{id: "m" + strconv.Itoa(q.seq), body: body}
	q.visible = append(q.visible, msg)
	return msg.id
}

// requeue returns every in-flight message to the queue, emulating an
// expired visibility window, and dead-letters those past maxReceive.
func (q *fakeQueue) requeue() {
	for handle, msg := range q.inflight {
		delete(q.inflight, handle)
		if msg.receives >= q.maxReceive {
			q.dead = append(q.dead, msg)
			continue
		}
		q.visible = append(q.visible, msg)
	}
}

func (q *fakeQueue) ReceiveMessageWithContext(ctx aws.Context, input *sqs.ReceiveMessageInput, _ ...request.Option) (*sqs.ReceiveMessageOutput, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	q.mu.Lock()
	q.requeue()

	max := 1
	if input.MaxNumberOfMessages != nil {
		max = int(*input.MaxNumberOfMessages)
	}
	out := &sqs.ReceiveMessageOutput{}
	for len(q.visible) > 0 && len(out.Messages) < max {
		msg := q.visible[0]
		q.visible = q.visible[1:]
		msg.receives++
		q.seq++
		msg.handle = "rh" + strconv.Itoa(q.seq)
		q.inflight[msg.handle] = msg
		out.Messages = append(out.Messages, &sqs.Message{
			MessageId:     aws.String(msg.id),
			ReceiptHandle: aws.String(msg.handle),
			Body:          aws.String(msg.body),
			Attributes: map[string]*string{
				sqs.MessageSystemAttributeNameApproximateReceiveCount: aws.String(strconv.Itoa(msg.receives)),
			},
		})
	}
	q.mu.Unlock()
	if len(out.Messages) == 0 {
		// Keep the polling loop from spinning hot against an empty queue.
		time.Sleep(2 * time.Millisecond)
	}
	return out, nil
}

func (q *fakeQueue) SendMessageWithContext(_ aws.Context, input *sqs.SendMessageInput, _ ...request.Option) (*sqs.SendMessageOutput, error) {
	q.push(aws.StringValue(input.MessageBody))
	return &sqs.SendMessageOutput{}, nil
}

func (q *fakeQueue) DeleteMessageBatchWithContext(_ aws.Context, input *sqs.DeleteMessageBatchInput, _ ...request.Option) (*sqs.DeleteMessageBatchOutput, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := &sqs.DeleteMessageBatchOutput{}
	for _, entry := range input.Entries {
		handle := aws.StringValue(entry.ReceiptHandle)
		if _, ok := q.inflight[handle]; ok {
			delete(q.inflight, handle)
			out.Successful = append(out.Successful, &sqs.DeleteMessageBatchResultEntry{Id: entry.Id})
			continue
		}
		out.Failed = append(out.Failed, &sqs.BatchResultErrorEntry{
			Id:      entry.Id,
			Code:    aws.String("ReceiptHandleIsInvalid"),
			Message: aws.String("stale receipt handle"),
		})
	}
	return out, nil
}

func (q *fakeQueue) depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.visible) + len(q.inflight)
}

func (q *fakeQueue) deadLettered() []*fakeMessage {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]*fakeMessage(nil), q.dead...)
}

func runWorker(t *testing.T, q *fakeQueue, handler consumer.Handler) (stop func()) {
	t.Helper()
	log := zap.NewNop()
	processor := consumer.NewProcessor(idempotency.NewMemoryStore(), handler, log)
	worker := consumer.NewWorker(
		queue.NewReceiver(q, "https://sqs/main", queue.MaxMessages(5), queue.LongPollingDuration(0)),
		processor,
		log,
		consumer.WithReceiveErrorDelay(time.Millisecond),
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = worker.Run(ctx)
	}()
	return func() {
		cancel()
		<-done
	}
}

// Two deliveries of the same event: the handler runs once, both copies are
// acknowledged, nothing is dead-lettered.
func TestWorkerAbsorbsDuplicateDeliveries(t *testing.T) {
	q := newFakeQueue(5)
	body := string(envelopeBody(t, orderEvent("e1")))
	q.push(body)
	q.push(body)

	handler := newCountingHandler(consumer.NewOrderHandler(zap.NewNop()))
	stop := runWorker(t, q, handler.Handle)
	defer stop()

	require.Eventually(t, func() bool {
		return q.depth() == 0
	}, 5*time.Second, 5*time.Millisecond, "both deliveries must be acknowledged")
	require.Equal(t, 1, handler.Calls("e1"))
	require.Empty(t, q.deadLettered())
}

// A malformed body fails every delivery attempt; the queue redelivers it up
// to maxReceive times and then dead-letters it. The consumer never
// suppresses that path.
func TestWorkerLetsQueueDeadLetterMalformedInput(t *testing.T) {
	const maxReceive = 3
	q := newFakeQueue(maxReceive)
	q.push("certainly not an envelope")

	handler := newCountingHandler(consumer.NewOrderHandler(zap.NewNop()))
	stop := runWorker(t, q, handler.Handle)
	defer stop()

	require.Eventually(t, func() bool {
		return len(q.deadLettered()) == 1
	}, 5*time.Second, 5*time.Millisecond, "the malformed message must end up dead-lettered")
	dead := q.deadLettered()
	require.Equal(t, maxReceive, dead[0].receives)
	require.Equal(t, 0, q.depth())
	require.Equal(t, 0, handler.Total(), "business processing never ran")
}

// A processing failure redelivers the message once; the redelivery hits the
// claim left behind by the failed attempt and is acknowledged as a
// duplicate. The event is under-delivered, not dead-lettered.
func TestWorkerFailedProcessingIsAbsorbedOnRedelivery(t *testing.T) {
	q := newFakeQueue(5)
	q.push(string(envelopeBody(t, failingOrderEvent("e1"))))

	handler := newCountingHandler(consumer.NewOrderHandler(zap.NewNop()))
	stop := runWorker(t, q, handler.Handle)
	defer stop()

	require.Eventually(t, func() bool {
		return q.depth() == 0
	}, 5*time.Second, 5*time.Millisecond)
	require.Equal(t, 1, handler.Calls("e1"), "the failed attempt is never re-executed")
	require.Empty(t, q.deadLettered())
}
