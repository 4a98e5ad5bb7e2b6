package storage

import "context"

// Backend is the remote object store API used by Client. Implementations
// report failures wrapped with domain.ErrStoreUnavailable or
// domain.ErrStoreRejected where they can tell the two apart.
type Backend interface {
	Bucket() string
	PutObject(ctx context.Context, key string, body []byte, contentType string, metadata map[string]string) (etag string, err error)
	CreateMultipartUpload(ctx context.Context, key, contentType string, metadata map[string]string) (uploadID string, err error)
	UploadPart(ctx context.Context, key, uploadID string, partNumber int32, body []byte) (etag string, err error)
	CompleteMultipartUpload(ctx context.Context, key, uploadID string, parts []CompletedPart) (etag string, err error)
	// AbortMultipartUpload releases every part already uploaded for the session.
	AbortMultipartUpload(ctx context.Context, key, uploadID string) error
}

// CompletedPart identifies an uploaded part when completing a session.
type CompletedPart struct {
	PartNumber int32
	ETag       string
}
