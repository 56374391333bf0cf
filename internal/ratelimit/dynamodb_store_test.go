package ratelimit

import (
	"context"
	"strconv"
	"testing"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDynamoDBAPI is a scripted double over a single in-memory item, since
// simulating DynamoDB's condition-expression evaluator in full is out of
// scope for a unit test of this store's CAS behavior.
type fakeDynamoDBAPI struct {
	item map[string]types.AttributeValue
}

func (f *fakeDynamoDBAPI) GetItem(_ context.Context, _ *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	return &dynamodb.GetItemOutput{Item: f.item}, nil
}

func (f *fakeDynamoDBAPI) PutItem(_ context.Context, params *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	var existingVersion int64
	if f.item != nil {
		var s State
		_ = attributevalue.UnmarshalMap(f.item, &s)
		existingVersion = s.Version
	}

	if params.ConditionExpression != nil {
		switch *params.ConditionExpression {
		case "attribute_not_exists(apiId)":
			if f.item != nil {
				return nil, &types.ConditionalCheckFailedException{}
			}
		case "version = :expected":
			expected := params.ExpressionAttributeValues[":expected"].(*types.AttributeValueMemberN).Value
			if expected != strconv.FormatInt(existingVersion, 10) {
				return nil, &types.ConditionalCheckFailedException{}
			}
		}
	}

	f.item = params.Item
	return &dynamodb.PutItemOutput{}, nil
}

func TestDynamoDBStore_LoadMissingReturnsZeroState(t *testing.T) {
	fake := &fakeDynamoDBAPI{}
	store := NewDynamoDBStoreWithClient(fake, "rate-limit")

	s, err := store.Load(context.Background(), "api", BucketTPM)
	require.NoError(t, err)
	assert.Equal(t, int64(0), s.Version)
	assert.Equal(t, "api", s.APIID)
	assert.Equal(t, BucketTPM, s.BucketType)
}

func TestDynamoDBStore_CompareAndSwapRoundTrip(t *testing.T) {
	fake := &fakeDynamoDBAPI{}
	store := NewDynamoDBStoreWithClient(fake, "rate-limit")
	ctx := context.Background()

	current, err := store.Load(ctx, "api", BucketRPM)
	require.NoError(t, err)
	next := *current
	next.Capacity = 5
	next.Available = 5
	ok, err := store.CompareAndSwap(ctx, "api", current, &next)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := store.Load(ctx, "api", BucketRPM)
	require.NoError(t, err)
	assert.Equal(t, 5.0, got.Capacity)
	assert.Equal(t, int64(1), got.Version)
}

func TestDynamoDBStore_CompareAndSwapRejectsConcurrentWriter(t *testing.T) {
	fake := &fakeDynamoDBAPI{}
	store := NewDynamoDBStoreWithClient(fake, "rate-limit")
	ctx := context.Background()

	current, err := store.Load(ctx, "api", BucketRPM)
	require.NoError(t, err)
	first := *current
	first.Capacity = 5
	ok, err := store.CompareAndSwap(ctx, "api", current, &first)
	require.NoError(t, err)
	require.True(t, ok)

	// current is now stale; a second writer using it should lose the race.
	second := *current
	second.Capacity = 10
	ok, err = store.CompareAndSwap(ctx, "api", current, &second)
	require.NoError(t, err)
	assert.False(t, ok)
}
