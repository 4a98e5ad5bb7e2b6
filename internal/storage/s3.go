package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"campaignsvc/internal/domain"
)

// S3API is the subset of *s3.Client used by S3Backend.
type S3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	CreateMultipartUpload(ctx context.Context, in *s3.CreateMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error)
	UploadPart(ctx context.Context, in *s3.UploadPartInput, optFns ...func(*s3.Options)) (*s3.UploadPartOutput, error)
	CompleteMultipartUpload(ctx context.Context, in *s3.CompleteMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error)
	AbortMultipartUpload(ctx context.Context, in *s3.AbortMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error)
}

// S3Backend stores objects in an S3-compatible bucket.
type S3Backend struct {
	api    S3API
	bucket string
}

// NewS3Backend binds api to bucket.
func NewS3Backend(api S3API, bucket string) (*S3Backend, error) {
	if api == nil {
		return nil, errors.New("storage: s3 client is required")
	}
	if bucket == "" {
		return nil, errors.New("storage: bucket is required")
	}
	return &S3Backend{api: api, bucket: bucket}, nil
}

func (b *S3Backend) Bucket() string { return b.bucket }

func (b *S3Backend) PutObject(ctx context.Context, key string, body []byte, contentType string, metadata map[string]string) (string, error) {
	out, err := b.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(b.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
		ContentType:   nonEmpty(contentType),
		Metadata:      metadata,
	})
	if err != nil {
		return "", classifyS3Error(err)
	}
	return aws.ToString(out.ETag), nil
}

func (b *S3Backend) CreateMultipartUpload(ctx context.Context, key, contentType string, metadata map[string]string) (string, error) {
	out, err := b.api.CreateMultipartUpload(ctx, &s3.CreateMultipartUploadInput{
		Bucket:      aws.String(b.bucket),
		Key:         aws.String(key),
		ContentType: nonEmpty(contentType),
		Metadata:    metadata,
	})
	if err != nil {
		return "", classifyS3Error(err)
	}
	return aws.ToString(out.UploadId), nil
}

func (b *S3Backend) UploadPart(ctx context.Context, key, uploadID string, partNumber int32, body []byte) (string, error) {
	out, err := b.api.UploadPart(ctx, &s3.UploadPartInput{
		Bucket:        aws.String(b.bucket),
		Key:           aws.String(key),
		UploadId:      aws.String(uploadID),
		PartNumber:    aws.Int32(partNumber),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
	})
	if err != nil {
		return "", classifyS3Error(err)
	}
	return aws.ToString(out.ETag), nil
}

func (b *S3Backend) CompleteMultipartUpload(ctx context.Context, key, uploadID string, parts []CompletedPart) (string, error) {
	completed := make([]types.CompletedPart, 0, len(parts))
	for _, p := range parts {
		completed = append(completed, types.CompletedPart{
			ETag:       aws.String(p.ETag),
			PartNumber: aws.Int32(p.PartNumber),
		})
	}
	out, err := b.api.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:          aws.String(b.bucket),
		Key:             aws.String(key),
		UploadId:        aws.String(uploadID),
		MultipartUpload: &types.CompletedMultipartUpload{Parts: completed},
	})
	if err != nil {
		return "", classifyS3Error(err)
	}
	return aws.ToString(out.ETag), nil
}

func (b *S3Backend) AbortMultipartUpload(ctx context.Context, key, uploadID string) error {
	_, err := b.api.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(b.bucket),
		Key:      aws.String(key),
		UploadId: aws.String(uploadID),
	})
	var noSuch *types.NoSuchUpload
	if errors.As(err, &noSuch) {
		return nil
	}
	if err != nil {
		return classifyS3Error(err)
	}
	return nil
}

var rejectedCodes = map[string]struct{}{
	"EntityTooLarge":   {},
	"EntityTooSmall":   {},
	"InvalidArgument":  {},
	"InvalidRequest":   {},
	"InvalidDigest":    {},
	"BadDigest":        {},
	"KeyTooLongError":  {},
	"InvalidPart":      {},
	"InvalidPartOrder": {},
	"MalformedXML":     {},
	"MetadataTooLarge": {},
}

// classifyS3Error splits service errors into rejections (the request itself
// is unacceptable) and unavailability (transport, auth, throttling, 5xx).
func classifyS3Error(err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		if _, ok := rejectedCodes[apiErr.ErrorCode()]; ok {
			return fmt.Errorf("%w: %w", domain.ErrStoreRejected, err)
		}
	}
	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) {
		switch status := respErr.HTTPStatusCode(); {
		case status == http.StatusUnauthorized, status == http.StatusForbidden,
			status == http.StatusRequestTimeout, status == http.StatusTooManyRequests:
		case status >= 400 && status < 500:
			return fmt.Errorf("%w: %w", domain.ErrStoreRejected, err)
		}
	}
	return fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return aws.String(s)
}
