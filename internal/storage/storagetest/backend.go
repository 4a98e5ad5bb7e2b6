// Package storagetest provides an in-memory storage.Backend for tests.
package storagetest

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"sort"
	"sync"
	"time"

	"campaignsvc/internal/domain"
	"campaignsvc/internal/storage"
)

// Backend keeps objects and multipart sessions in memory and records calls.
// Failure hooks let tests inject errors per key or per part.
type Backend struct {
	// FailPut returns an error for PutObject on the given key, or nil.
	FailPut func(key string) error
	// FailPart returns an error for UploadPart, or nil.
	FailPart func(key string, partNumber int32) error
	// PartDelay delays every UploadPart until it elapses or ctx is done.
	PartDelay time.Duration

	mu          sync.Mutex
	bucket      string
	objects     map[string][]byte
	sessions    map[string]*session
	nextID      int
	putCalls    int
	partCalls   int
	aborted     int
	completed   int
	inFlight    int
	maxInFlight int
}

type session struct {
	key   string
	parts map[int32][]byte
}

// NewBackend returns an empty backend for bucket.
func NewBackend(bucket string) *Backend {
	return &Backend{
		bucket:   bucket,
		objects:  make(map[string][]byte),
		sessions: make(map[string]*session),
	}
}

var _ storage.Backend = (*Backend)(nil)

func (b *Backend) Bucket() string { return b.bucket }

func (b *Backend) PutObject(ctx context.Context, key string, body []byte, _ string, _ map[string]string) (string, error) {
	b.mu.Lock()
	b.putCalls++
	hook := b.FailPut
	b.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if hook != nil {
		if err := hook(key); err != nil {
			return "", err
		}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[key] = append([]byte(nil), body...)
	return etag(body), nil
}

func (b *Backend) CreateMultipartUpload(ctx context.Context, key, _ string, _ map[string]string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := fmt.Sprintf("upload-%d", b.nextID)
	b.sessions[id] = &session{key: key, parts: make(map[int32][]byte)}
	return id, nil
}

func (b *Backend) UploadPart(ctx context.Context, key, uploadID string, partNumber int32, body []byte) (string, error) {
	b.mu.Lock()
	b.partCalls++
	b.inFlight++
	if b.inFlight > b.maxInFlight {
		b.maxInFlight = b.inFlight
	}
	hook, delay := b.FailPart, b.PartDelay
	b.mu.Unlock()
	defer func() {
		b.mu.Lock()
		b.inFlight--
		b.mu.Unlock()
	}()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if hook != nil {
		if err := hook(key, partNumber); err != nil {
			return "", err
		}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.sessions[uploadID]
	if !ok {
		return "", fmt.Errorf("%w: no such upload", domain.ErrStoreRejected)
	}
	s.parts[partNumber] = append([]byte(nil), body...)
	return etag(body), nil
}

func (b *Backend) CompleteMultipartUpload(ctx context.Context, key, uploadID string, parts []storage.CompletedPart) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.sessions[uploadID]
	if !ok {
		return "", fmt.Errorf("%w: no such upload", domain.ErrStoreRejected)
	}
	ordered := append([]storage.CompletedPart(nil), parts...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].PartNumber < ordered[j].PartNumber })
	var buf bytes.Buffer
	for _, p := range ordered {
		data, ok := s.parts[p.PartNumber]
		if !ok || etag(data) != p.ETag {
			return "", fmt.Errorf("%w: invalid part %d", domain.ErrStoreRejected, p.PartNumber)
		}
		buf.Write(data)
	}
	b.objects[key] = buf.Bytes()
	delete(b.sessions, uploadID)
	b.completed++
	return etag(buf.Bytes()), nil
}

func (b *Backend) AbortMultipartUpload(_ context.Context, _ string, uploadID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.sessions, uploadID)
	b.aborted++
	return nil
}

// Object returns the stored bytes for key.
func (b *Backend) Object(key string) ([]byte, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.objects[key]
	return data, ok
}

// Keys lists stored object keys in sorted order.
func (b *Backend) Keys() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	keys := make([]string, 0, len(b.objects))
	for k := range b.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Stats is a snapshot of recorded calls.
type Stats struct {
	PutCalls     int
	PartCalls    int
	OpenSessions int
	Completed    int
	Aborted      int
	MaxInFlight  int
}

// Stats returns the current call counters.
func (b *Backend) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Stats{
		PutCalls:     b.putCalls,
		PartCalls:    b.partCalls,
		OpenSessions: len(b.sessions),
		Completed:    b.completed,
		Aborted:      b.aborted,
		MaxInFlight:  b.maxInFlight,
	}
}

func etag(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}
