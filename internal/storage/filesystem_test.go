package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campaignsvc/internal/domain"
)

func TestSanitizeKey(t *testing.T) {
	tests := []struct {
		key     string
		want    string
		wantErr bool
	}{
		{key: "campaigns/c1/images/a.png", want: "campaigns/c1/images/a.png"},
		{key: "/campaigns//c1/./a.png", want: "campaigns/c1/a.png"},
		{key: `campaigns\c1\a.png`, want: "campaigns/c1/a.png"},
		{key: "../etc/passwd", wantErr: true},
		{key: "   ", wantErr: true},
		{key: ".", wantErr: true},
	}
	for _, tc := range tests {
		got, err := sanitizeKey(tc.key)
		if tc.wantErr {
			assert.Error(t, err, tc.key)
			continue
		}
		require.NoError(t, err, tc.key)
		assert.Equal(t, tc.want, got)
	}
}

func TestFileStorePutObject(t *testing.T) {
	dir := t.TempDir()
	fs, err := NewFileStore(dir, "")
	require.NoError(t, err)
	assert.Equal(t, "local", fs.Bucket())

	etag, err := fs.PutObject(context.Background(), "campaigns/c1/images/scene-0/1-a.png", []byte("img"), "image/png", nil)
	require.NoError(t, err)
	assert.NotEmpty(t, etag)

	data, err := os.ReadFile(filepath.Join(dir, "campaigns", "c1", "images", "scene-0", "1-a.png"))
	require.NoError(t, err)
	assert.Equal(t, "img", string(data))

	_, err = fs.PutObject(context.Background(), ".multipart/x", []byte("img"), "", nil)
	require.ErrorIs(t, err, domain.ErrStoreRejected)
}

func TestFileStoreMultipartLifecycle(t *testing.T) {
	dir := t.TempDir()
	fs, err := NewFileStore(dir, "dev")
	require.NoError(t, err)
	ctx := context.Background()
	key := "campaigns/c1/videos/1-v.mp4"

	id, err := fs.CreateMultipartUpload(ctx, key, "video/mp4", nil)
	require.NoError(t, err)
	e2, err := fs.UploadPart(ctx, key, id, 2, []byte("world"))
	require.NoError(t, err)
	e1, err := fs.UploadPart(ctx, key, id, 1, []byte("hello "))
	require.NoError(t, err)

	open, err := fs.OpenSessions()
	require.NoError(t, err)
	assert.Equal(t, []string{id}, open)

	_, err = fs.CompleteMultipartUpload(ctx, key, id, []CompletedPart{{PartNumber: 2, ETag: e2}, {PartNumber: 1, ETag: e1}})
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(key)))
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(data))

	open, err = fs.OpenSessions()
	require.NoError(t, err)
	assert.Empty(t, open)
}

func TestFileStoreAbortRemovesParts(t *testing.T) {
	dir := t.TempDir()
	fs, err := NewFileStore(dir, "dev")
	require.NoError(t, err)
	ctx := context.Background()

	id, err := fs.CreateMultipartUpload(ctx, "k.mp4", "video/mp4", nil)
	require.NoError(t, err)
	_, err = fs.UploadPart(ctx, "k.mp4", id, 1, []byte("partial"))
	require.NoError(t, err)

	require.NoError(t, fs.AbortMultipartUpload(ctx, "k.mp4", id))
	open, err := fs.OpenSessions()
	require.NoError(t, err)
	assert.Empty(t, open)
	_, err = os.Stat(filepath.Join(dir, "k.mp4"))
	assert.True(t, os.IsNotExist(err))

	_, err = fs.UploadPart(ctx, "k.mp4", id, 2, []byte("late"))
	require.ErrorIs(t, err, domain.ErrStoreRejected)
}
