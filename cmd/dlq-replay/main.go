// Command dlq-replay drains the dead-letter queue back into the main queue.
// It reads MAIN_QUEUE_URL and DLQ_URL from the environment, runs until the
// DLQ hands out an empty page, and exits non-zero on any unrecoverable
// transport error. The downstream consumer's duplicate guard is what makes
// the replay safe.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/sqs"
	"go.uber.org/zap"

	"github.com/beast99-p3/Serverless-Event-Driven-Workflow/internal/config"
	"github.com/beast99-p3/Serverless-Event-Driven-Workflow/internal/logger"
	"github.com/beast99-p3/Serverless-Event-Driven-Workflow/internal/queue"
	"github.com/beast99-p3/Serverless-Event-Driven-Workflow/internal/replay"
)

func main() {
	cfg, err := config.Load()
	if err == nil {
		err = cfg.ValidateReplay()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load configuration:", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to initialize logger:", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	sess, err := session.NewSession(&aws.Config{Region: aws.String(cfg.AWSRegion)})
	if err != nil {
		log.Error("cannot create AWS session", zap.Error(err))
		os.Exit(1)
	}

	svc := sqs.New(sess)
	drainer := replay.NewDrainer(
		queue.NewReceiver(
			svc,
			cfg.DLQueueURL,
			queue.MaxMessages(cfg.BatchSize),
			queue.LongPollingDuration(cfg.ReplayWaitTimeSeconds),
		),
		queue.NewForwarder(svc, cfg.MainQueueURL),
		log,
	)

	res, derr := drainer.Drain(context.Background())

	fmt.Printf("replayed %d messages in %d batches\n", res.Replayed, res.Batches)
	if res.ForwardFailures > 0 {
		fmt.Printf("%d messages could not be forwarded and remain in the DLQ\n", res.ForwardFailures)
	}
	for _, f := range res.DeleteFailures {
		fmt.Printf("duplicate risk: message %s was replayed but not removed from the DLQ (%s)\n", f.MessageID, f.Reason)
	}
	if derr != nil {
		log.Error("replay aborted", zap.Error(derr))
		os.Exit(1)
	}
}
