package idempotency

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbattribute"
	"github.com/pkg/errors"
)

// DynamoAPI is the subset of the DynamoDB API the store depends on.
// *dynamodb.DynamoDB satisfies it.
type DynamoAPI interface {
	PutItemWithContext(ctx aws.Context, input *dynamodb.PutItemInput, opts ...request.Option) (*dynamodb.PutItemOutput, error)
}

// DynamoStore claims events with a single conditional PutItem. The table is
// keyed by event_id and must have TTL enabled on expires_at.
type DynamoStore struct {
	api   DynamoAPI
	table string
	ttl   time.Duration
	now   func() time.Time
}

// DynamoOption configures a DynamoStore.
type DynamoOption func(*DynamoStore)

// WithTTL overrides the default record lifetime.
func WithTTL(ttl time.Duration) DynamoOption {
	return func(s *DynamoStore) {
		s.ttl = ttl
	}
}

func NewDynamoStore(api DynamoAPI, table string, options ...DynamoOption) *DynamoStore {
	s := &DynamoStore{
		api:   api,
		table: table,
		ttl:   DefaultTTL,
		now:   time.Now,
	}
	for _, o := range options {
		o(s)
	}
	return s
}

func (s *DynamoStore) Claim(ctx context.Context, eventID, orderID string, createdAt time.Time) (Outcome, error) {
	rec := Record{
		EventID:   eventID,
		OrderID:   orderID,
		CreatedAt: createdAt.UTC().Format(time.RFC3339),
		ExpiresAt: s.now().Add(s.ttl).Unix(),
	}
	item, err := dynamodbattribute.MarshalMap(rec)
	if err != nil {
		return New, errors.Wrapf(ErrUnavailable, "cannot marshal record: %s", err)
	}
	input := &dynamodb.PutItemInput{
		TableName:           aws.String(s.table),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(event_id)"),
	}
	if _, err = s.api.PutItemWithContext(ctx, input); err != nil {
		if aerr, ok := err.(awserr.Error); ok && aerr.Code() == dynamodb.ErrCodeConditionalCheckFailedException {
			return Duplicate, nil
		}
		return New, errors.Wrapf(ErrUnavailable, "put item: %s", err)
	}
	return New, nil
}
