package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/sqs"
	"go.uber.org/zap"

	"github.com/beast99-p3/Serverless-Event-Driven-Workflow/internal/config"
	"github.com/beast99-p3/Serverless-Event-Driven-Workflow/internal/consumer"
	"github.com/beast99-p3/Serverless-Event-Driven-Workflow/internal/idempotency"
	"github.com/beast99-p3/Serverless-Event-Driven-Workflow/internal/logger"
	"github.com/beast99-p3/Serverless-Event-Driven-Workflow/internal/queue"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load configuration: " + err.Error())
	}
	if err := cfg.ValidateConsumer(); err != nil {
		panic("failed to load configuration: " + err.Error())
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer func() { _ = log.Sync() }()

	sess, err := session.NewSession(&aws.Config{Region: aws.String(cfg.AWSRegion)})
	if err != nil {
		log.Fatal("cannot create AWS session", zap.Error(err))
	}

	store := idempotency.NewDynamoStore(
		dynamodb.New(sess),
		cfg.IdempotencyTable,
		idempotency.WithTTL(cfg.IdempotencyTTL),
	)
	receiver := queue.NewReceiver(
		sqs.New(sess),
		cfg.MainQueueURL,
		queue.MaxMessages(cfg.BatchSize),
		queue.LongPollingDuration(cfg.WaitTimeSeconds),
	)
	processor := consumer.NewProcessor(
		store,
		consumer.NewOrderHandler(log),
		log,
		consumer.WithInvocationTimeout(cfg.InvocationTimeout),
	)
	worker := consumer.NewWorker(
		receiver,
		processor,
		log,
		consumer.WithReceiveErrorDelay(cfg.ReceiveErrorDelay),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("consumer started",
		zap.String("queue_url", cfg.MainQueueURL),
		zap.String("idempotency_table", cfg.IdempotencyTable),
		zap.Int64("batch_size", cfg.BatchSize),
	)
	if err := worker.Run(ctx); err != nil {
		log.Fatal("consumer stopped with error", zap.Error(err))
	}
	log.Info("consumer stopped")
}
