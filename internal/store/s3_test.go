package store

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeS3 implements s3Client over a plain map.
type fakeS3 struct {
	objects map[string][]byte
	err     error
	puts    int
}

func (f *fakeS3) HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	if _, ok := f.objects[aws.ToString(params.Key)]; !ok {
		return nil, &smithy.GenericAPIError{Code: "NotFound"}
	}
	return &s3.HeadObjectOutput{ETag: aws.String(`"head-etag"`)}, nil
}

func (f *fakeS3) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	data, ok := f.objects[aws.ToString(params.Key)]
	if !ok {
		return nil, &smithy.GenericAPIError{Code: "NoSuchKey"}
	}
	return &s3.GetObjectOutput{
		Body: io.NopCloser(bytes.NewReader(data)),
		ETag: aws.String(`"get-etag"`),
	}, nil
}

func (f *fakeS3) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.puts++
	if f.err != nil {
		return nil, f.err
	}
	data, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(params.Key)] = data
	return &s3.PutObjectOutput{
		ETag:      aws.String(`"put-etag"`),
		VersionId: aws.String("v1"),
	}, nil
}

func newFakeS3Store(objects map[string][]byte) (*S3Store, *fakeS3) {
	if objects == nil {
		objects = map[string][]byte{}
	}
	client := &fakeS3{objects: objects}
	return &S3Store{client: client, bucket: "test-bucket"}, client
}

func TestS3StoreRoundTrip(t *testing.T) {
	st, _ := newFakeS3Store(nil)
	ctx := context.Background()

	_, err := st.Head(ctx, "app/stats.json")
	assert.ErrorIs(t, err, ErrNotFound)
	_, _, err = st.Get(ctx, "app/stats.json")
	assert.ErrorIs(t, err, ErrNotFound)

	put, err := st.Put(ctx, "app/stats.json", []byte(`{"a":1}`))
	require.NoError(t, err)
	assert.Equal(t, `"put-etag"`, put.ETag)
	assert.Equal(t, "v1", put.VersionID)

	data, etag, err := st.Get(ctx, "app/stats.json")
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(data))
	assert.Equal(t, `"get-etag"`, etag)

	etag, err = st.Head(ctx, "app/stats.json")
	require.NoError(t, err)
	assert.Equal(t, `"head-etag"`, etag)
}

func TestS3ErrorClassification(t *testing.T) {
	ctx := context.Background()

	// Throttling is transient.
	st, client := newFakeS3Store(nil)
	client.err = &smithy.GenericAPIError{Code: "SlowDown"}
	_, err := st.Put(ctx, "k", nil)
	assert.True(t, IsTransient(err))

	// Access denied is fatal.
	client.err = &smithy.GenericAPIError{Code: "AccessDenied"}
	_, err = st.Put(ctx, "k", nil)
	assert.False(t, IsTransient(err))
	assert.NotErrorIs(t, err, ErrNotFound)

	// Context cancellation is neither transient nor not-found.
	client.err = context.Canceled
	_, err = st.Put(ctx, "k", nil)
	assert.False(t, IsTransient(err))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestS3BucketName(t *testing.T) {
	st, _ := newFakeS3Store(nil)
	assert.Equal(t, "test-bucket", st.Bucket())
}
