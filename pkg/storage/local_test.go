package storage_test

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/ferremas/pkg/storage"
)

func TestLocalRoundTrip(t *testing.T) {
	ctx := context.Background()
	disk, err := storage.NewLocal(t.TempDir(), "http://localhost:8080/storage/")
	require.NoError(t, err)

	p, err := disk.Put(ctx, "products/12/taladro.jpg", strings.NewReader("jpeg"), "image/jpeg")
	require.NoError(t, err)
	assert.Equal(t, "products/12/taladro.jpg", p)
	assert.Equal(t, "http://localhost:8080/storage/products/12/taladro.jpg", disk.URL(p))

	ok, err := disk.Exists(ctx, p)
	require.NoError(t, err)
	assert.True(t, ok)

	rc, err := disk.Get(ctx, p)
	require.NoError(t, err)
	body, _ := io.ReadAll(rc)
	rc.Close()
	assert.Equal(t, "jpeg", string(body))

	require.NoError(t, disk.Delete(ctx, p))
	require.NoError(t, disk.Delete(ctx, p))
	_, err = disk.Get(ctx, p)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestCleanKeepsPathsInsideRoot(t *testing.T) {
	p, err := storage.Clean("../../etc/passwd")
	require.NoError(t, err)
	assert.Equal(t, "etc/passwd", p)

	_, err = storage.Clean("/")
	assert.Error(t, err)
}
