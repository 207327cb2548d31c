package idempotency

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

type putItemSpy struct {
	input *dynamodb.PutItemInput
	err   error
}

func (s *putItemSpy) PutItemWithContext(_ aws.Context, input *dynamodb.PutItemInput, _ ...request.Option) (*dynamodb.PutItemOutput, error) {
	s.input = input
	if s.err != nil {
		return nil, s.err
	}
	return &dynamodb.PutItemOutput{}, nil
}

func TestDynamoStoreClaimWritesConditionalRecord(t *testing.T) {
	spy := &putItemSpy{}
	now := time.Unix(1700000000, 0)
	store := NewDynamoStore(spy, "orders-idempotency", WithTTL(time.Hour))
	store.now = func() time.Time { return now }

	createdAt := now.Add(-time.Minute)
	outcome, err := store.Claim(context.Background(), "e1", "o1", createdAt)
	require.NoError(t, err)
	require.Equal(t, New, outcome)

	require.NotNil(t, spy.input)
	require.Equal(t, "orders-idempotency", *spy.input.TableName)
	require.Equal(t, "attribute_not_exists(event_id)", *spy.input.ConditionExpression)
	require.Equal(t, "e1", *spy.input.Item["event_id"].S)
	require.Equal(t, "o1", *spy.input.Item["order_id"].S)
	require.Equal(t, createdAt.UTC().Format(time.RFC3339), *spy.input.Item["created_at"].S)
	require.Equal(t, "1700003600", *spy.input.Item["expires_at"].N)
}

func TestDynamoStoreConditionFailureIsDuplicate(t *testing.T) {
	spy := &putItemSpy{
		err: awserr.New(dynamodb.ErrCodeConditionalCheckFailedException, "the conditional request failed", nil),
	}
	store := NewDynamoStore(spy, "orders-idempotency")

	outcome, err := store.Claim(context.Background(), "e1", "o1", time.Now())
	require.NoError(t, err)
	require.Equal(t, Duplicate, outcome)
}

func TestDynamoStoreTransportErrorIsUnavailable(t *testing.T) {
	spy := &putItemSpy{
		err: awserr.New(dynamodb.ErrCodeInternalServerError, "boom", nil),
	}
	store := NewDynamoStore(spy, "orders-idempotency")

	_, err := store.Claim(context.Background(), "e1", "o1", time.Now())
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrUnavailable), "transport errors must never pass for new or duplicate")
}
