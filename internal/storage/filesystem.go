package storage

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"campaignsvc/internal/domain"
)

const multipartDir = ".multipart"

// FileStore persists assets onto the local filesystem. It is intended for
// development and test environments where an object storage service is not
// available. Multipart parts are staged under .multipart/{uploadID} until the
// session completes or aborts.
type FileStore struct {
	basePath string
	bucket   string
}

// NewFileStore initializes a FileStore rooted at basePath.
func NewFileStore(basePath, bucket string) (*FileStore, error) {
	basePath = strings.TrimSpace(basePath)
	if basePath == "" {
		return nil, errors.New("storage: base path is required")
	}
	if err := os.MkdirAll(filepath.Join(basePath, multipartDir), 0o755); err != nil {
		return nil, fmt.Errorf("storage: ensure base path: %w", err)
	}
	if bucket == "" {
		bucket = "local"
	}
	return &FileStore{basePath: basePath, bucket: bucket}, nil
}

// BasePath returns the configured root directory.
func (s *FileStore) BasePath() string {
	if s == nil {
		return ""
	}
	return s.basePath
}

func (s *FileStore) Bucket() string { return s.bucket }

func (s *FileStore) PutObject(ctx context.Context, key string, body []byte, _ string, _ map[string]string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
	}
	fullPath, err := s.objectPath(key)
	if err != nil {
		return "", err
	}
	if err := writeFile(fullPath, body); err != nil {
		return "", err
	}
	return etagOf(body), nil
}

func (s *FileStore) CreateMultipartUpload(ctx context.Context, key, _ string, _ map[string]string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
	}
	if _, err := s.objectPath(key); err != nil {
		return "", err
	}
	uploadID := uuid.NewString()
	if err := os.MkdirAll(s.sessionPath(uploadID), 0o755); err != nil {
		return "", fmt.Errorf("%w: create session: %w", domain.ErrStoreUnavailable, err)
	}
	return uploadID, nil
}

func (s *FileStore) UploadPart(ctx context.Context, _ string, uploadID string, partNumber int32, body []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
	}
	if partNumber < 1 {
		return "", fmt.Errorf("%w: invalid part number %d", domain.ErrStoreRejected, partNumber)
	}
	dir, err := s.existingSession(uploadID)
	if err != nil {
		return "", err
	}
	if err := writeFile(filepath.Join(dir, partName(partNumber)), body); err != nil {
		return "", err
	}
	return etagOf(body), nil
}

func (s *FileStore) CompleteMultipartUpload(ctx context.Context, key, uploadID string, parts []CompletedPart) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
	}
	dir, err := s.existingSession(uploadID)
	if err != nil {
		return "", err
	}
	fullPath, err := s.objectPath(key)
	if err != nil {
		return "", err
	}
	ordered := append([]CompletedPart(nil), parts...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].PartNumber < ordered[j].PartNumber })

	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return "", fmt.Errorf("%w: ensure directory: %w", domain.ErrStoreUnavailable, err)
	}
	tmp := fullPath + ".tmp-" + uploadID
	out, err := os.Create(tmp)
	if err != nil {
		return "", fmt.Errorf("%w: create object: %w", domain.ErrStoreUnavailable, err)
	}
	hash := md5.New()
	for _, p := range ordered {
		if err := appendPart(io.MultiWriter(out, hash), filepath.Join(dir, partName(p.PartNumber))); err != nil {
			_ = out.Close()
			_ = os.Remove(tmp)
			return "", err
		}
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("%w: close object: %w", domain.ErrStoreUnavailable, err)
	}
	if err := os.Rename(tmp, fullPath); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("%w: publish object: %w", domain.ErrStoreUnavailable, err)
	}
	_ = os.RemoveAll(dir)
	return hex.EncodeToString(hash.Sum(nil)) + "-" + strconv.Itoa(len(ordered)), nil
}

func (s *FileStore) AbortMultipartUpload(_ context.Context, _ string, uploadID string) error {
	if _, err := uuid.Parse(uploadID); err != nil {
		return fmt.Errorf("%w: invalid upload id", domain.ErrStoreRejected)
	}
	if err := os.RemoveAll(s.sessionPath(uploadID)); err != nil {
		return fmt.Errorf("%w: abort: %w", domain.ErrStoreUnavailable, err)
	}
	return nil
}

// OpenSessions lists multipart sessions that were neither completed nor aborted.
func (s *FileStore) OpenSessions() ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.basePath, multipartDir))
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() {
			ids = append(ids, e.Name())
		}
	}
	return ids, nil
}

func (s *FileStore) objectPath(key string) (string, error) {
	cleanKey, err := sanitizeKey(key)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrStoreRejected, err)
	}
	if cleanKey == multipartDir || strings.HasPrefix(cleanKey, multipartDir+"/") {
		return "", fmt.Errorf("%w: reserved key prefix", domain.ErrStoreRejected)
	}
	return filepath.Join(s.basePath, filepath.FromSlash(cleanKey)), nil
}

func (s *FileStore) sessionPath(uploadID string) string {
	return filepath.Join(s.basePath, multipartDir, uploadID)
}

func (s *FileStore) existingSession(uploadID string) (string, error) {
	if _, err := uuid.Parse(uploadID); err != nil {
		return "", fmt.Errorf("%w: invalid upload id", domain.ErrStoreRejected)
	}
	dir := s.sessionPath(uploadID)
	if _, err := os.Stat(dir); err != nil {
		return "", fmt.Errorf("%w: no such upload %s", domain.ErrStoreRejected, uploadID)
	}
	return dir, nil
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("%w: ensure directory: %w", domain.ErrStoreUnavailable, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("%w: write file: %w", domain.ErrStoreUnavailable, err)
	}
	return nil
}

func appendPart(w io.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: missing part: %w", domain.ErrStoreRejected, err)
	}
	defer f.Close()
	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("%w: copy part: %w", domain.ErrStoreUnavailable, err)
	}
	return nil
}

func partName(n int32) string {
	return fmt.Sprintf("part-%05d", n)
}

func etagOf(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}

// sanitizeKey normalizes a key and prevents escaping the storage root.
func sanitizeKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", errors.New("storage: key is required")
	}
	key = strings.ReplaceAll(key, "\\", "/")
	key = strings.TrimPrefix(key, "./")
	key = strings.TrimLeft(key, "/")
	cleaned := filepath.ToSlash(filepath.Clean(key))
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", errors.New("storage: invalid key")
	}
	return cleaned, nil
}
