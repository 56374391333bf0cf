package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	apperrors "github.com/lfmt-dev/translate-pipeline/internal/errors"
)

// S3Client is the subset of *s3.Client used by S3ObjectStore, narrowed for
// testability against a fake.
type S3Client interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// S3ObjectStore implements ObjectStore against a single S3 bucket, storing
// objects under the uploads/, chunks/, and translated/ key prefixes.
type S3ObjectStore struct {
	client S3Client
	bucket string
}

// NewS3ObjectStore loads the default AWS credential chain and region
// (overridable via region) and returns a store bound to bucket.
func NewS3ObjectStore(ctx context.Context, bucket, region string) (*S3ObjectStore, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config for bucket %s: %w", bucket, err)
	}
	return &S3ObjectStore{client: s3.NewFromConfig(cfg), bucket: bucket}, nil
}

// NewS3ObjectStoreWithClient wires a pre-built client, for tests and for
// callers that need custom endpoint resolution.
func NewS3ObjectStoreWithClient(client S3Client, bucket string) *S3ObjectStore {
	return &S3ObjectStore{client: client, bucket: bucket}
}

func (s *S3ObjectStore) Put(ctx context.Context, key string, body []byte, metadata map[string]string) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:   aws.String(s.bucket),
		Key:      aws.String(key),
		Body:     bytes.NewReader(body),
		Metadata: metadata,
	})
	if err != nil {
		return &apperrors.StorageTransientError{Store: "s3", Op: "PutObject", Err: err}
	}
	return nil
}

func (s *S3ObjectStore) Get(ctx context.Context, key string) ([]byte, map[string]string, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNoSuchKey(err) {
			return nil, nil, notFound("object", key)
		}
		return nil, nil, &apperrors.StorageTransientError{Store: "s3", Op: "GetObject", Err: err}
	}
	defer func() { _ = out.Body.Close() }()

	body, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, nil, &apperrors.StorageTransientError{Store: "s3", Op: "GetObject.Read", Err: err}
	}

	return body, out.Metadata, nil
}

func (s *S3ObjectStore) Head(ctx context.Context, key string) (map[string]string, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNoSuchKey(err) {
			return nil, notFound("object", key)
		}
		return nil, &apperrors.StorageTransientError{Store: "s3", Op: "HeadObject", Err: err}
	}
	return out.Metadata, nil
}

// isNoSuchKey classifies the S3 "object does not exist" family of errors
// (NoSuchKey on GetObject, a bare 404 smithy APIError on HeadObject).
func isNoSuchKey(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode() == "NotFound" || apiErr.ErrorCode() == "NoSuchKey"
	}
	return false
}
