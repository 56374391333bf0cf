package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	apperrors "github.com/lfmt-dev/translate-pipeline/internal/errors"
	"github.com/lfmt-dev/translate-pipeline/internal/job"
)

// DynamoDBAPI is the subset of *dynamodb.Client used by DynamoDBJobStore.
type DynamoDBAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
}

// DynamoDBJobStore persists Job records keyed by (jobId, userId). PutNew,
// SetChunked, SetTranslationFailed and IncrementProgress are conditional
// writes, so two workers racing on the same job can never both succeed
// against the same prior value; SetChunkingFailed writes unconditionally.
type DynamoDBJobStore struct {
	client DynamoDBAPI
	table  string
}

// NewDynamoDBJobStore loads the default AWS credential chain and region.
func NewDynamoDBJobStore(ctx context.Context, table, region string) (*DynamoDBJobStore, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config for table %s: %w", table, err)
	}
	return &DynamoDBJobStore{client: dynamodb.NewFromConfig(cfg), table: table}, nil
}

// NewDynamoDBJobStoreWithClient wires a pre-built client, for tests.
func NewDynamoDBJobStoreWithClient(client DynamoDBAPI, table string) *DynamoDBJobStore {
	return &DynamoDBJobStore{client: client, table: table}
}

// dynamoJobRecord is the on-wire shape of a Job item. ProcessedChunks is
// represented as a string-keyed map since DynamoDB maps require string
// keys; chunk indexes are formatted/parsed at the store boundary only.
// No omitempty: IncrementProgress's UpdateExpression nests a SET onto
// this attribute, which requires the parent map to exist even when empty.
type dynamoJobRecord struct {
	job.Job
	ProcessedChunks map[string]bool `dynamodbav:"processedChunks"`
}

func itemKey(jobID, userID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"jobId":  &types.AttributeValueMemberS{Value: jobID},
		"userId": &types.AttributeValueMemberS{Value: userID},
	}
}

func (d *DynamoDBJobStore) Get(ctx context.Context, jobID, userID string) (*job.Job, error) {
	out, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(d.table),
		Key:       itemKey(jobID, userID),
	})
	if err != nil {
		return nil, &apperrors.StorageTransientError{Store: "dynamodb", Op: "GetItem", Err: err}
	}
	if out.Item == nil {
		return nil, notFound("job", fmt.Sprintf("%s/%s", userID, jobID))
	}

	var rec dynamoJobRecord
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job %s/%s: %w", userID, jobID, err)
	}
	rec.Job.ProcessedChunks = stringKeysToInt(rec.ProcessedChunks)
	return &rec.Job, nil
}

func (d *DynamoDBJobStore) PutNew(ctx context.Context, j *job.Job) error {
	clone := *j
	clone.UpdatedAt = time.Now()
	clone.Version = 1

	// processedChunks must exist as an (empty) map from the first write:
	// IncrementProgress's UpdateExpression does a nested
	// "SET processedChunks.#idx = :true", which DynamoDB rejects with
	// "invalid document path" if the parent attribute doesn't exist yet.
	processedChunks := intKeysToString(clone.ProcessedChunks)
	if processedChunks == nil {
		processedChunks = map[string]bool{}
	}

	item, err := attributevalue.MarshalMap(dynamoJobRecord{Job: clone, ProcessedChunks: processedChunks})
	if err != nil {
		return fmt.Errorf("failed to marshal job %s: %w", j.JobID, err)
	}

	_, err = d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(d.table),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(jobId)"),
	})
	if isConditionalCheckFailed(err) {
		return &apperrors.StorageTransientError{Store: "dynamodb", Op: "PutItem", Err: fmt.Errorf("job %s already exists", j.JobID)}
	}
	if err != nil {
		return &apperrors.StorageTransientError{Store: "dynamodb", Op: "PutItem", Err: err}
	}
	return nil
}

func (d *DynamoDBJobStore) SetChunked(ctx context.Context, jobID, userID string, chunkKeys []string, originalTokenCount, averageChunkSize int, processingTimeMs int64) error {
	keysAV, err := attributevalue.Marshal(chunkKeys)
	if err != nil {
		return fmt.Errorf("failed to marshal chunk keys for job %s: %w", jobID, err)
	}

	_, err = d.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(d.table),
		Key:                 itemKey(jobID, userID),
		ConditionExpression: aws.String("#status = :chunking"),
		UpdateExpression:    aws.String("SET #status = :chunked, chunkKeys = :keys, totalChunks = :total, originalTokenCount = :orig, averageChunkSize = :avg, chunkingProcessingTimeMs = :ms, updatedAt = :now"),
		ExpressionAttributeNames: map[string]string{
			"#status": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":chunking": &types.AttributeValueMemberS{Value: string(job.StatusChunking)},
			":chunked":  &types.AttributeValueMemberS{Value: string(job.StatusChunked)},
			":keys":     keysAV,
			":total":    &types.AttributeValueMemberN{Value: strconv.Itoa(len(chunkKeys))},
			":orig":     &types.AttributeValueMemberN{Value: strconv.Itoa(originalTokenCount)},
			":avg":      &types.AttributeValueMemberN{Value: strconv.Itoa(averageChunkSize)},
			":ms":       &types.AttributeValueMemberN{Value: strconv.FormatInt(processingTimeMs, 10)},
			":now":      &types.AttributeValueMemberS{Value: time.Now().Format(time.RFC3339Nano)},
		},
	})
	if isConditionalCheckFailed(err) {
		return &apperrors.StatePreconditionError{JobID: jobID, Got: "not CHUNKING", Want: []string{string(job.StatusChunking)}}
	}
	if err != nil {
		return &apperrors.StorageTransientError{Store: "dynamodb", Op: "UpdateItem.SetChunked", Err: err}
	}
	return nil
}

func (d *DynamoDBJobStore) SetChunkingFailed(ctx context.Context, jobID, userID, reason string) error {
	return d.setTerminalStatus(ctx, jobID, userID, job.StatusChunkingFailed, "errorMessage", reason, "")
}

func (d *DynamoDBJobStore) SetTranslationFailed(ctx context.Context, jobID, userID, reason string) error {
	_, err := d.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(d.table),
		Key:       itemKey(jobID, userID),
		// Best-effort don't clobber a job that already
		// reached a terminal state.
		ConditionExpression: aws.String("#status <> :completed AND #status <> :failed"),
		UpdateExpression:    aws.String("SET #status = :failed, errorMessage = :reason, failedAt = :now, updatedAt = :now"),
		ExpressionAttributeNames: map[string]string{
			"#status": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":completed": &types.AttributeValueMemberS{Value: string(job.StatusTranslationCompleted)},
			":failed":    &types.AttributeValueMemberS{Value: string(job.StatusTranslationFailed)},
			":reason":    &types.AttributeValueMemberS{Value: reason},
			":now":       &types.AttributeValueMemberS{Value: time.Now().Format(time.RFC3339Nano)},
		},
	})
	if isConditionalCheckFailed(err) {
		return nil
	}
	if err != nil {
		return &apperrors.StorageTransientError{Store: "dynamodb", Op: "UpdateItem.SetTranslationFailed", Err: err}
	}
	return nil
}

func (d *DynamoDBJobStore) setTerminalStatus(ctx context.Context, jobID, userID string, status job.Status, fieldName, fieldValue, _ string) error {
	_, err := d.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(d.table),
		Key:              itemKey(jobID, userID),
		UpdateExpression: aws.String(fmt.Sprintf("SET #status = :status, %s = :value, updatedAt = :now", fieldName)),
		ExpressionAttributeNames: map[string]string{
			"#status": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":status": &types.AttributeValueMemberS{Value: string(status)},
			":value":  &types.AttributeValueMemberS{Value: fieldValue},
			":now":    &types.AttributeValueMemberS{Value: time.Now().Format(time.RFC3339Nano)},
		},
	})
	if err != nil {
		return &apperrors.StorageTransientError{Store: "dynamodb", Op: "UpdateItem.setTerminalStatus", Err: err}
	}
	return nil
}

// IncrementProgress performs the at-most-once counter advance as a single
// conditional UpdateItem: the condition "this chunkIndex has not already
// been recorded" guards the numeric ADD and the processedChunks entry in
// one atomic item-level operation. The completion check (a re-read of the
// item) and the status flips run afterwards as separate calls.
func (d *DynamoDBJobStore) IncrementProgress(ctx context.Context, jobID, userID string, chunkIndex int, tokensUsed int64, cost float64) (bool, bool, error) {
	idxAttr := strconv.Itoa(chunkIndex)
	now := time.Now().Format(time.RFC3339Nano)

	_, err := d.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(d.table),
		Key:                 itemKey(jobID, userID),
		ConditionExpression: aws.String("attribute_not_exists(processedChunks) OR attribute_not_exists(processedChunks.#idx)"),
		UpdateExpression:    aws.String("ADD translatedChunks :one, tokensUsed :tokens SET processedChunks.#idx = :true, estimatedCost = if_not_exists(estimatedCost, :zero) + :cost, updatedAt = :now"),
		ExpressionAttributeNames: map[string]string{
			"#idx": idxAttr,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":one":    &types.AttributeValueMemberN{Value: "1"},
			":tokens": &types.AttributeValueMemberN{Value: strconv.FormatInt(tokensUsed, 10)},
			":true":   &types.AttributeValueMemberBOOL{Value: true},
			":cost":   &types.AttributeValueMemberN{Value: strconv.FormatFloat(cost, 'f', -1, 64)},
			":zero":   &types.AttributeValueMemberN{Value: "0"},
			":now":    &types.AttributeValueMemberS{Value: now},
		},
	})
	if isConditionalCheckFailed(err) {
		j, getErr := d.Get(ctx, jobID, userID)
		if getErr != nil {
			return true, false, nil
		}
		return true, j.Status == job.StatusTranslationCompleted, nil
	}
	if err != nil {
		return false, false, &apperrors.StorageTransientError{Store: "dynamodb", Op: "UpdateItem.IncrementProgress", Err: err}
	}

	// Best-effort status transitions, each independently conditional so a
	// losing race simply leaves the winner's write in place.
	_, _ = d.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(d.table),
		Key:                 itemKey(jobID, userID),
		ConditionExpression: aws.String("#status = :chunked"),
		UpdateExpression:    aws.String("SET #status = :inprogress, translationStartedAt = :now"),
		ExpressionAttributeNames: map[string]string{
			"#status": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":chunked":    &types.AttributeValueMemberS{Value: string(job.StatusChunked)},
			":inprogress": &types.AttributeValueMemberS{Value: string(job.StatusTranslationInProgress)},
			":now":        &types.AttributeValueMemberS{Value: now},
		},
	})

	j, err := d.Get(ctx, jobID, userID)
	if err != nil {
		return false, false, err
	}
	completed := j.TranslatedChunks >= j.TotalChunks

	if completed {
		_, _ = d.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
			TableName:           aws.String(d.table),
			Key:                 itemKey(jobID, userID),
			ConditionExpression: aws.String("#status <> :completed"),
			UpdateExpression:    aws.String("SET #status = :completed, translationCompletedAt = :now"),
			ExpressionAttributeNames: map[string]string{
				"#status": "status",
			},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":completed": &types.AttributeValueMemberS{Value: string(job.StatusTranslationCompleted)},
				":now":       &types.AttributeValueMemberS{Value: now},
			},
		})
	}

	return false, completed, nil
}

func isConditionalCheckFailed(err error) bool {
	if err == nil {
		return false
	}
	var ccfe *types.ConditionalCheckFailedException
	return errors.As(err, &ccfe)
}

func stringKeysToInt(m map[string]bool) map[int]bool {
	if m == nil {
		return nil
	}
	out := make(map[int]bool, len(m))
	for k, v := range m {
		if n, err := strconv.Atoi(k); err == nil {
			out[n] = v
		}
	}
	return out
}

func intKeysToString(m map[int]bool) map[string]bool {
	if m == nil {
		return nil
	}
	out := make(map[string]bool, len(m))
	for k, v := range m {
		out[strconv.Itoa(k)] = v
	}
	return out
}
