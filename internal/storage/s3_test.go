package storage

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campaignsvc/internal/domain"
)

type stubS3 struct {
	putErr     error
	abortErr   error
	lastPut    *s3.PutObjectInput
	lastParts  []types.CompletedPart
	abortCalls int
}

func (s *stubS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	s.lastPut = in
	if s.putErr != nil {
		return nil, s.putErr
	}
	return &s3.PutObjectOutput{ETag: aws.String(`"abc"`)}, nil
}

func (s *stubS3) CreateMultipartUpload(context.Context, *s3.CreateMultipartUploadInput, ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error) {
	return &s3.CreateMultipartUploadOutput{UploadId: aws.String("up-1")}, nil
}

func (s *stubS3) UploadPart(_ context.Context, in *s3.UploadPartInput, _ ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
	return &s3.UploadPartOutput{ETag: aws.String(`"p"`)}, nil
}

func (s *stubS3) CompleteMultipartUpload(_ context.Context, in *s3.CompleteMultipartUploadInput, _ ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error) {
	s.lastParts = in.MultipartUpload.Parts
	return &s3.CompleteMultipartUploadOutput{ETag: aws.String(`"done-2"`)}, nil
}

func (s *stubS3) AbortMultipartUpload(context.Context, *s3.AbortMultipartUploadInput, ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error) {
	s.abortCalls++
	return &s3.AbortMultipartUploadOutput{}, s.abortErr
}

func responseError(status int) error {
	return &awshttp.ResponseError{
		ResponseError: &smithyhttp.ResponseError{
			Response: &smithyhttp.Response{Response: &http.Response{StatusCode: status}},
			Err:      errors.New("boom"),
		},
	}
}

func TestClassifyS3Error(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{name: "entity too large", err: &smithy.GenericAPIError{Code: "EntityTooLarge"}, want: domain.ErrStoreRejected},
		{name: "invalid argument", err: &smithy.GenericAPIError{Code: "InvalidArgument"}, want: domain.ErrStoreRejected},
		{name: "access denied", err: &smithy.GenericAPIError{Code: "AccessDenied"}, want: domain.ErrStoreUnavailable},
		{name: "http 400", err: responseError(http.StatusBadRequest), want: domain.ErrStoreRejected},
		{name: "http 403", err: responseError(http.StatusForbidden), want: domain.ErrStoreUnavailable},
		{name: "http 503", err: responseError(http.StatusServiceUnavailable), want: domain.ErrStoreUnavailable},
		{name: "transport", err: errors.New("dial tcp: i/o timeout"), want: domain.ErrStoreUnavailable},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.ErrorIs(t, classifyS3Error(tc.err), tc.want)
		})
	}
}

func TestS3BackendPutObject(t *testing.T) {
	api := &stubS3{}
	b, err := NewS3Backend(api, "assets")
	require.NoError(t, err)

	etag, err := b.PutObject(context.Background(), "k.png", []byte("data"), "image/png", map[string]string{"campaign-id": "c1"})
	require.NoError(t, err)
	assert.Equal(t, `"abc"`, etag)
	assert.Equal(t, "assets", aws.ToString(api.lastPut.Bucket))
	assert.Equal(t, "image/png", aws.ToString(api.lastPut.ContentType))
	assert.EqualValues(t, 4, aws.ToInt64(api.lastPut.ContentLength))

	api.putErr = &smithy.GenericAPIError{Code: "EntityTooLarge"}
	_, err = b.PutObject(context.Background(), "k.png", []byte("data"), "", nil)
	require.ErrorIs(t, err, domain.ErrStoreRejected)
}

func TestS3BackendCompleteAndAbort(t *testing.T) {
	api := &stubS3{}
	b, err := NewS3Backend(api, "assets")
	require.NoError(t, err)

	_, err = b.CompleteMultipartUpload(context.Background(), "k", "up-1", []CompletedPart{{PartNumber: 1, ETag: "a"}, {PartNumber: 2, ETag: "b"}})
	require.NoError(t, err)
	require.Len(t, api.lastParts, 2)
	assert.EqualValues(t, 2, aws.ToInt32(api.lastParts[1].PartNumber))

	api.abortErr = &types.NoSuchUpload{}
	require.NoError(t, b.AbortMultipartUpload(context.Background(), "k", "up-1"))
	assert.Equal(t, 1, api.abortCalls)
}
