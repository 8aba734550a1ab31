package render

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/sjon/navindex"
	"github.com/stretchr/testify/require"
)

func TestBackendLoadTexture(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "road.pvr"), []byte("pvr"), 0o644))

	b := NewBackend(dir)

	h, err := b.LoadTexture("road.pvr")
	require.NoError(t, err)
	require.NotZero(t, h)

	name, ok := b.TextureName(h)
	require.True(t, ok)
	require.Equal(t, "road.pvr", name)

	_, err = b.LoadTexture("missing.pvr")
	require.True(t, errors.IsType(err, ErrTypeTextureLoad))
	require.Equal(t, 1, b.TextureCount())
}

func TestBackendWithoutTextureDir(t *testing.T) {
	b := NewBackend("")

	h, err := b.LoadTexture("anything.pvr")
	require.NoError(t, err)
	require.NotZero(t, h)
}

func TestBackendUpload(t *testing.T) {
	b := NewBackend("")

	vertices := make([]float32, 3*VertexStride)
	g, err := b.Upload(vertices, []uint16{0, 1, 2})
	require.NoError(t, err)
	require.NotZero(t, g.VertexBuffer)
	require.NotZero(t, g.IndexBuffer)
	require.NotEqual(t, g.VertexBuffer, g.IndexBuffer)
	require.Equal(t, 3, g.VertexCount)
	require.Equal(t, 3, g.IndexCount)
	require.Equal(t, 2, b.BufferCount())
	require.Equal(t, 3*VertexStride*4+3*2, b.BufferBytes())

	b.Release(g)
	require.Zero(t, b.BufferCount())
	require.Zero(t, b.BufferBytes())

	b.Release(g)
	require.Zero(t, b.BufferCount())
}

func TestBackendUploadInvalid(t *testing.T) {
	b := NewBackend("")

	_, err := b.Upload(make([]float32, VertexStride+1), nil)
	require.True(t, errors.IsType(err, ErrTypeInvalidBuffer))

	_, err = b.Upload(make([]float32, VertexStride), []uint16{1})
	require.True(t, errors.IsType(err, ErrTypeInvalidBuffer))

	require.Zero(t, b.BufferCount())
}

func TestBackendImplementsInterfaces(t *testing.T) {
	var b any = NewBackend("")

	_, ok := b.(TextureLoader)
	require.True(t, ok)

	_, ok = b.(Uploader)
	require.True(t, ok)

	b.(Uploader).Release(navindex.Geometry{})
}
