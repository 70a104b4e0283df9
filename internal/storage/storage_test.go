package storage

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rpm-software-management/libdnf-sub006/internal/config"
)

func TestLocalStorage_Objects(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	ok, err := s.Exists(ctx, "repos/a/modules.yaml")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Put(ctx, "repos/a/modules.yaml", strings.NewReader("data"), 4, metadataContentType))
	ok, err = s.Exists(ctx, "repos/a/modules.yaml")
	require.NoError(t, err)
	assert.True(t, ok)

	rc, err := s.Get(ctx, "repos/a/modules.yaml")
	require.NoError(t, err)
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "data", string(body))

	require.NoError(t, s.Delete(ctx, "repos/a/modules.yaml"))
	require.NoError(t, s.Delete(ctx, "repos/a/modules.yaml"))
	_, err = s.Get(ctx, "repos/a/modules.yaml")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocalStorage_RejectsEscapingKeys(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	for _, key := range []string{"", ".", "/etc/passwd", "../outside", "a/../../outside"} {
		_, err := s.Exists(context.Background(), key)
		assert.Error(t, err, key)
	}
}

func TestMetadataHelpers(t *testing.T) {
	ctx := context.Background()
	p, err := New(ctx, config.Config{StorageType: "local", LocalStoragePath: t.TempDir()}, zaptest.NewLogger(t))
	require.NoError(t, err)

	_, err = ReadMetadata(ctx, p, "fedora")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, WriteMetadata(ctx, p, "fedora", []byte("document: modulemd\n")))
	raw, err := ReadMetadata(ctx, p, "fedora")
	require.NoError(t, err)
	assert.Equal(t, "document: modulemd\n", string(raw))

	require.NoError(t, DeleteMetadata(ctx, p, "fedora"))
	_, err = ReadMetadata(ctx, p, "fedora")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNew_InvalidType(t *testing.T) {
	_, err := New(context.Background(), config.Config{StorageType: "s3"}, nil)
	assert.ErrorContains(t, err, "invalid STORAGE_TYPE")
}
