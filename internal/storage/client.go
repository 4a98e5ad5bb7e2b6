// Package storage uploads campaign assets to an object store.
package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"campaignsvc/internal/domain"
	"campaignsvc/internal/infra"
)

const (
	// PartSize is the fixed multipart chunk size.
	PartSize = 5 << 20
	// PartConcurrency caps concurrent part uploads per multipart session.
	PartConcurrency = 4
	// DefaultSinglePutMaxBytes bounds payloads accepted by PutObject.
	DefaultSinglePutMaxBytes = 32 << 20

	abortTimeout = 30 * time.Second
)

// Progress is reported after every completed part.
type Progress struct {
	Loaded     int64   `json:"loaded"`
	Total      int64   `json:"total"`
	Percentage float64 `json:"percentage"`
}

// ProgressFunc receives cumulative multipart progress. Calls are serialized.
type ProgressFunc func(Progress)

// Options configures a Client.
type Options struct {
	// Endpoint is the regional host objects are served from, for example
	// "s3.ap-southeast-1.amazonaws.com".
	Endpoint string
	// PublicBaseURL replaces https://{bucket}.{endpoint} when set.
	PublicBaseURL     string
	SinglePutMaxBytes int64
	// MultipartTimeout bounds a whole multipart upload; zero relies on the
	// caller's deadline only.
	MultipartTimeout time.Duration
	Logger           zerolog.Logger
	Metrics          *infra.Metrics
}

// Client wraps a Backend with the single-shot and multipart upload strategies.
type Client struct {
	backend          Backend
	endpoint         string
	publicBaseURL    string
	singlePutMax     int64
	multipartTimeout time.Duration
	partSize         int64
	logger           zerolog.Logger
	metrics          *infra.Metrics
}

// NewClient constructs a Client around backend.
func NewClient(backend Backend, opts Options) (*Client, error) {
	if backend == nil {
		return nil, errors.New("storage: backend is required")
	}
	endpoint := strings.Trim(strings.TrimSpace(opts.Endpoint), "/")
	base := strings.TrimRight(strings.TrimSpace(opts.PublicBaseURL), "/")
	if endpoint == "" && base == "" {
		return nil, errors.New("storage: endpoint or public base url is required")
	}
	singlePutMax := opts.SinglePutMaxBytes
	if singlePutMax <= 0 {
		singlePutMax = DefaultSinglePutMaxBytes
	}
	return &Client{
		backend:          backend,
		endpoint:         endpoint,
		publicBaseURL:    base,
		singlePutMax:     singlePutMax,
		multipartTimeout: opts.MultipartTimeout,
		partSize:         PartSize,
		logger:           opts.Logger,
		metrics:          opts.Metrics,
	}, nil
}

// Bucket returns the bucket objects are written to.
func (c *Client) Bucket() string {
	return c.backend.Bucket()
}

// BuildPublicURL derives the URL the store serves key at. It performs no I/O.
func (c *Client) BuildPublicURL(key string) string {
	segments := strings.Split(strings.TrimLeft(key, "/"), "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	escaped := strings.Join(segments, "/")
	if c.publicBaseURL != "" {
		return c.publicBaseURL + "/" + escaped
	}
	return "https://" + c.backend.Bucket() + "." + c.endpoint + "/" + escaped
}

// PutObject writes data in one request. It is meant for small payloads such
// as scene images.
func (c *Client) PutObject(ctx context.Context, data []byte, key, contentType string, metadata map[string]string) (domain.UploadedAsset, error) {
	start := time.Now()
	size := int64(len(data))
	if size > c.singlePutMax {
		err := fmt.Errorf("%w: %d bytes exceeds single upload limit of %d", domain.ErrStoreRejected, size, c.singlePutMax)
		c.metrics.ObserveUpload("single", domain.ErrorClass(err), size, time.Since(start))
		return domain.UploadedAsset{}, err
	}
	etag, err := c.backend.PutObject(ctx, key, data, contentType, metadata)
	if err != nil {
		err = classify(err)
		c.metrics.ObserveUpload("single", domain.ErrorClass(err), size, time.Since(start))
		c.logger.Warn().Err(err).Str("key", key).Msg("storage: put object failed")
		return domain.UploadedAsset{}, fmt.Errorf("put %s: %w", key, err)
	}
	c.metrics.ObserveUpload("single", "ok", size, time.Since(start))
	c.logger.Debug().Str("key", key).Int64("bytes", size).Dur("took", time.Since(start)).Msg("storage: object stored")
	return c.uploaded(key, etag, size), nil
}

// PutObjectMultipart uploads data in PartSize chunks with at most
// PartConcurrency parts in flight. On any failure the session is aborted so
// no partial object is left behind, and the returned error wraps
// domain.ErrMultipartUploadFailed.
func (c *Client) PutObjectMultipart(ctx context.Context, data []byte, key, contentType string, metadata map[string]string, onProgress ProgressFunc) (domain.UploadedAsset, error) {
	start := time.Now()
	size := int64(len(data))
	if c.multipartTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.multipartTimeout)
		defer cancel()
	}

	uploadID, err := c.backend.CreateMultipartUpload(ctx, key, contentType, metadata)
	if err != nil {
		err = fmt.Errorf("%w: create session for %s: %w", domain.ErrMultipartUploadFailed, key, classify(err))
		c.metrics.ObserveUpload("multipart", domain.ErrorClass(err), size, time.Since(start))
		return domain.UploadedAsset{}, err
	}
	logger := c.logger.With().Str("key", key).Str("upload_id", uploadID).Logger()

	parts, err := c.uploadParts(ctx, key, uploadID, data, onProgress)
	var etag string
	if err == nil {
		etag, err = c.backend.CompleteMultipartUpload(ctx, key, uploadID, parts)
		if err != nil {
			err = fmt.Errorf("complete: %w", classify(err))
		}
	}
	if err != nil {
		c.abort(ctx, logger, key, uploadID)
		err = fmt.Errorf("%w: %s: %w", domain.ErrMultipartUploadFailed, key, err)
		c.metrics.ObserveUpload("multipart", domain.ErrorClass(err), size, time.Since(start))
		logger.Warn().Err(err).Msg("storage: multipart upload aborted")
		return domain.UploadedAsset{}, err
	}

	c.metrics.ObserveUpload("multipart", "ok", size, time.Since(start))
	logger.Debug().Int64("bytes", size).Int("parts", len(parts)).Dur("took", time.Since(start)).Msg("storage: multipart upload completed")
	return c.uploaded(key, etag, size), nil
}

func (c *Client) uploadParts(ctx context.Context, key, uploadID string, data []byte, onProgress ProgressFunc) ([]CompletedPart, error) {
	total := int64(len(data))
	count := int((total + c.partSize - 1) / c.partSize)
	if count == 0 {
		// a session needs at least one part, even for an empty payload
		count = 1
	}
	parts := make([]CompletedPart, count)

	var (
		mu     sync.Mutex
		loaded int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(PartConcurrency)
	for i := 0; i < count; i++ {
		if gctx.Err() != nil {
			break
		}
		from := int64(i) * c.partSize
		to := min(from+c.partSize, total)
		body := data[from:to]
		number := int32(i + 1)
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			etag, err := c.backend.UploadPart(gctx, key, uploadID, number, body)
			if err != nil {
				c.metrics.ObservePart("error")
				return fmt.Errorf("part %d: %w", number, classify(err))
			}
			c.metrics.ObservePart("ok")
			parts[number-1] = CompletedPart{PartNumber: number, ETag: etag}

			mu.Lock()
			defer mu.Unlock()
			loaded += int64(len(body))
			if onProgress != nil {
				onProgress(newProgress(loaded, total))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	// the loop stops dispatching once ctx is done, even if no part failed
	if err := ctx.Err(); err != nil {
		return nil, classify(err)
	}
	return parts, nil
}

// abort releases the session on a context that survives cancellation of ctx.
func (c *Client) abort(ctx context.Context, logger zerolog.Logger, key, uploadID string) {
	abortCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), abortTimeout)
	defer cancel()
	if err := c.backend.AbortMultipartUpload(abortCtx, key, uploadID); err != nil {
		logger.Error().Err(err).Msg("storage: abort multipart upload failed")
	}
}

func (c *Client) uploaded(key, etag string, size int64) domain.UploadedAsset {
	return domain.UploadedAsset{
		URL:    c.BuildPublicURL(key),
		Key:    key,
		Bucket: c.backend.Bucket(),
		ETag:   strings.Trim(etag, `"`),
		Bytes:  size,
	}
}

func newProgress(loaded, total int64) Progress {
	p := Progress{Loaded: loaded, Total: total, Percentage: 100}
	if total > 0 {
		p.Percentage = float64(loaded) * 100 / float64(total)
	}
	return p
}

// classify maps an arbitrary backend error onto the store error taxonomy.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrStoreRejected), errors.Is(err, domain.ErrStoreUnavailable):
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
}
