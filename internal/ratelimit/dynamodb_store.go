package ratelimit

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DynamoDBAPI is the subset of *dynamodb.Client this store needs; it is
// a subset of storage.DynamoDBAPI (which adds UpdateItem) so a single client
// can back both stores, but declared locally to keep the two packages
// independently testable.
type DynamoDBAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// DynamoDBStore implements compare-and-swap as a PutItem conditioned on the
// record's version number, keyed by (apiId, bucketType).
type DynamoDBStore struct {
	client DynamoDBAPI
	table  string
}

// NewDynamoDBStore loads the default AWS credential chain and region.
func NewDynamoDBStore(ctx context.Context, table, region string) (*DynamoDBStore, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config for table %s: %w", table, err)
	}
	return &DynamoDBStore{client: dynamodb.NewFromConfig(cfg), table: table}, nil
}

// NewDynamoDBStoreWithClient wires a pre-built client, for tests and for
// sharing a client with storage.DynamoDBJobStore in production.
func NewDynamoDBStoreWithClient(client DynamoDBAPI, table string) *DynamoDBStore {
	return &DynamoDBStore{client: client, table: table}
}

func bucketItemKey(apiID string, bucketType BucketType) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"apiId":      &types.AttributeValueMemberS{Value: apiID},
		"bucketType": &types.AttributeValueMemberS{Value: string(bucketType)},
	}
}

func (d *DynamoDBStore) Load(ctx context.Context, apiID string, bucketType BucketType) (*State, error) {
	out, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(d.table),
		Key:       bucketItemKey(apiID, bucketType),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load bucket %s/%s: %w", apiID, bucketType, err)
	}
	if out.Item == nil {
		return &State{APIID: apiID, BucketType: bucketType}, nil
	}
	var s State
	if err := attributevalue.UnmarshalMap(out.Item, &s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal bucket %s/%s: %w", apiID, bucketType, err)
	}
	return &s, nil
}

func (d *DynamoDBStore) CompareAndSwap(ctx context.Context, apiID string, current, next *State) (bool, error) {
	clone := *next
	clone.APIID = apiID
	clone.BucketType = current.BucketType
	clone.Version = current.Version + 1

	item, err := attributevalue.MarshalMap(clone)
	if err != nil {
		return false, fmt.Errorf("failed to marshal bucket %s/%s: %w", apiID, current.BucketType, err)
	}

	input := &dynamodb.PutItemInput{
		TableName: aws.String(d.table),
		Item:      item,
	}
	if current.Version == 0 {
		input.ConditionExpression = aws.String("attribute_not_exists(apiId)")
	} else {
		input.ConditionExpression = aws.String("version = :expected")
		input.ExpressionAttributeValues = map[string]types.AttributeValue{
			":expected": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", current.Version)},
		}
	}

	_, err = d.client.PutItem(ctx, input)
	if err == nil {
		return true, nil
	}
	var ccfe *types.ConditionalCheckFailedException
	if errors.As(err, &ccfe) {
		return false, nil
	}
	return false, fmt.Errorf("failed to CAS bucket %s/%s: %w", apiID, current.BucketType, err)
}
