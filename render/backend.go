package render

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/sjon/models"
	"github.com/aukilabs/sjon/navindex"
	"github.com/kamstrup/intmap"
)

const (
	// ErrTypeTextureLoad is returned when a texture cannot be loaded.
	ErrTypeTextureLoad = "texture_load"

	// ErrTypeInvalidBuffer is returned when uploaded data does not match
	// the vertex layout.
	ErrTypeInvalidBuffer = "invalid_buffer"
)

// VertexStride is the number of float32 values per interleaved vertex:
// position (3), normal (3) and texture coordinates (2).
const VertexStride = 8

// TextureLoader loads textures by name.
type TextureLoader interface {
	LoadTexture(name string) (navindex.TextureHandle, error)
}

// Uploader turns interleaved vertices and 16-bit indices into buffers.
type Uploader interface {
	Upload(vertices []float32, indices []uint16) (navindex.Geometry, error)
	Release(g navindex.Geometry)
}

// Backend is a headless rendering backend. It checks that textures exist
// and keeps track of allocated buffers without a graphics device.
type Backend struct {
	// Directory textures are loaded from. When empty, every texture loads.
	TextureDir string

	mutex    sync.Mutex
	ids      models.IDGenerator
	textures *intmap.Map[uint32, string]
	buffers  *intmap.Map[uint32, int]
}

func NewBackend(textureDir string) *Backend {
	return &Backend{
		TextureDir: textureDir,
		textures:   intmap.New[uint32, string](64),
		buffers:    intmap.New[uint32, int](256),
	}
}

func (b *Backend) LoadTexture(name string) (navindex.TextureHandle, error) {
	if b.TextureDir != "" {
		path := filepath.Join(b.TextureDir, filepath.Clean("/"+name))
		if _, err := os.Stat(path); err != nil {
			return 0, errors.New("could not load texture").
				WithType(ErrTypeTextureLoad).
				WithTag("texture", name).
				Wrap(err)
		}
	}

	b.mutex.Lock()
	defer b.mutex.Unlock()

	id := b.ids.New()
	b.textures.Put(id, name)
	return navindex.TextureHandle(id), nil
}

// TextureName returns the name of a loaded texture.
func (b *Backend) TextureName(h navindex.TextureHandle) (string, bool) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	return b.textures.Get(uint32(h))
}

func (b *Backend) Upload(vertices []float32, indices []uint16) (navindex.Geometry, error) {
	if len(vertices)%VertexStride != 0 {
		return navindex.Geometry{}, errors.New("vertex data is not a whole number of vertices").
			WithType(ErrTypeInvalidBuffer).
			WithTag("values", len(vertices)).
			WithTag("stride", VertexStride)
	}

	vertexCount := len(vertices) / VertexStride
	for _, i := range indices {
		if int(i) >= vertexCount {
			return navindex.Geometry{}, errors.New("index out of range").
				WithType(ErrTypeInvalidBuffer).
				WithTag("index", i).
				WithTag("vertex_count", vertexCount)
		}
	}

	b.mutex.Lock()
	defer b.mutex.Unlock()

	vbo := b.ids.New()
	ibo := b.ids.New()
	b.buffers.Put(vbo, len(vertices)*4)
	b.buffers.Put(ibo, len(indices)*2)

	return navindex.Geometry{
		VertexBuffer: navindex.BufferHandle(vbo),
		IndexBuffer:  navindex.BufferHandle(ibo),
		VertexCount:  vertexCount,
		IndexCount:   len(indices),
	}, nil
}

func (b *Backend) Release(g navindex.Geometry) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	for _, h := range [2]navindex.BufferHandle{g.VertexBuffer, g.IndexBuffer} {
		if b.buffers.Del(uint32(h)) {
			b.ids.Release(uint32(h))
		}
	}
}

// BufferCount returns the number of live buffers.
func (b *Backend) BufferCount() int {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	return b.buffers.Len()
}

// BufferBytes returns the size of all live buffers.
func (b *Backend) BufferBytes() int {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	n := 0
	b.buffers.ForEach(func(_ uint32, size int) bool {
		n += size
		return true
	})
	return n
}

func (b *Backend) TextureCount() int {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	return b.textures.Len()
}
