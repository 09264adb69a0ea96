package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/rs/zerolog/log"
)

// s3Client is the subset of the S3 API the store uses. The AWS SDK doesn't
// provide a real mock, so tests supply their own implementation of this
// interface.
type s3Client interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Store persists documents as objects in an S3 bucket. ETags come from the
// object metadata; VersionId is populated when bucket versioning is enabled.
type S3Store struct {
	client s3Client
	bucket string
}

// NewS3Store loads the default AWS configuration and returns a store backed
// by the given bucket. Region is optional; when empty the SDK resolves it
// from the environment.
func NewS3Store(ctx context.Context, bucket, region string) (*S3Store, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}
	log.Debug().Str("bucket", bucket).Msg("initialized S3 client")
	return &S3Store{client: s3.NewFromConfig(cfg), bucket: bucket}, nil
}

// Bucket returns the bucket name.
func (s *S3Store) Bucket() string { return s.bucket }

// Head probes object existence and returns its ETag.
func (s *S3Store) Head(ctx context.Context, key string) (string, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return "", classify(err)
	}
	return aws.ToString(out.ETag), nil
}

// Get downloads the object and returns its bytes and ETag.
func (s *S3Store) Get(ctx context.Context, key string) ([]byte, string, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, "", classify(err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, "", &TransientError{Err: err}
	}
	return data, aws.ToString(out.ETag), nil
}

// Put uploads the document and returns the new ETag and, when the bucket is
// versioned, the version identifier assigned by S3.
func (s *S3Store) Put(ctx context.Context, key string, data []byte) (PutResult, error) {
	out, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:       aws.String(s.bucket),
		Key:          aws.String(key),
		Body:         bytes.NewReader(data),
		ContentType:  aws.String("application/json"),
		CacheControl: aws.String("no-cache"),
	})
	if err != nil {
		return PutResult{}, classify(err)
	}
	return PutResult{
		ETag:      aws.ToString(out.ETag),
		VersionID: aws.ToString(out.VersionId),
	}, nil
}

// classify maps AWS SDK errors onto the store's error taxonomy.
func classify(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound", "404":
			return ErrNotFound
		case "SlowDown", "Throttling", "ThrottlingException",
			"RequestTimeout", "RequestTimeoutException",
			"InternalError", "ServiceUnavailable":
			return &TransientError{Err: err}
		}
		return err
	}
	// Connection-level failures (resets, dial timeouts) surface as plain
	// errors from the HTTP client; treat them as retryable.
	return &TransientError{Err: err}
}
