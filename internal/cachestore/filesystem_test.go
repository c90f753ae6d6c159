package cachestore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilesystemStore_PutGet(t *testing.T) {
	ctx := context.Background()
	s, err := NewFilesystemStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, s.Put(ctx, "dnf/httpd", []byte("payload"), time.Minute, Meta{ContentType: "text/xml"}))

	data, meta, err := s.Get(ctx, "dnf/httpd")
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), data)
	assert.Equal(t, "text/xml", meta.ContentType)
}

func TestFilesystemStore_MissingKey(t *testing.T) {
	s, err := NewFilesystemStore(t.TempDir())
	require.NoError(t, err)

	_, _, err = s.Get(context.Background(), "absent")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestFilesystemStore_TTLExpiry(t *testing.T) {
	ctx := context.Background()
	s, err := NewFilesystemStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, s.Put(ctx, "k", []byte("v"), time.Millisecond, Meta{}))
	time.Sleep(5 * time.Millisecond)

	_, _, err = s.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestFilesystemStore_InvalidateGlob(t *testing.T) {
	ctx := context.Background()
	s, err := NewFilesystemStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, s.Put(ctx, "pacman/nginx", []byte("1"), 0, Meta{}))
	require.NoError(t, s.Put(ctx, "pacman/vim", []byte("2"), 0, Meta{}))
	require.NoError(t, s.Put(ctx, "cargo/ripgrep", []byte("3"), 0, Meta{}))

	removed, err := s.Invalidate(ctx, "pacman/*")
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	_, _, err = s.Get(ctx, "cargo/ripgrep")
	assert.NoError(t, err)
	_, _, err = s.Get(ctx, "pacman/nginx")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestFilesystemStore_PersistsAcrossInstances(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s1, err := NewFilesystemStore(dir)
	require.NoError(t, err)
	require.NoError(t, s1.Put(ctx, "winget/vscode", []byte("payload"), 0, Meta{}))

	s2, err := NewFilesystemStore(dir)
	require.NoError(t, err)
	data, _, err := s2.Get(ctx, "winget/vscode")
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), data)
}
