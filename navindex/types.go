package navindex

import (
	"github.com/go-gl/mathgl/mgl32"
)

// TextureHandle is an opaque texture identifier owned by the rendering
// backend. Zero means no texture.
type TextureHandle uint32

// BufferHandle is an opaque GPU buffer identifier owned by the rendering
// backend. Zero means no buffer.
type BufferHandle uint32

// Box2D is an axis aligned bounding box on the ground plane.
type Box2D struct {
	Min mgl32.Vec2
	Max mgl32.Vec2
}

func NewBox2D(minX, minY, maxX, maxY float32) Box2D {
	return Box2D{
		Min: mgl32.Vec2{minX, minY},
		Max: mgl32.Vec2{maxX, maxY},
	}
}

func (b Box2D) Center() mgl32.Vec2 {
	return b.Min.Add(b.Max).Mul(0.5)
}

// Corners returns the four corners in counter-clockwise order starting at
// Min.
func (b Box2D) Corners() [4]mgl32.Vec2 {
	return [4]mgl32.Vec2{
		{b.Min.X(), b.Min.Y()},
		{b.Max.X(), b.Min.Y()},
		{b.Max.X(), b.Max.Y()},
		{b.Min.X(), b.Max.Y()},
	}
}

func (b Box2D) Contains(p mgl32.Vec2) bool {
	return p.X() >= b.Min.X() && p.Y() >= b.Min.Y() &&
		p.X() <= b.Max.X() && p.Y() <= b.Max.Y()
}

// Union returns the smallest box containing both b and o.
func (b Box2D) Union(o Box2D) Box2D {
	return NewBox2D(
		min(b.Min.X(), o.Min.X()),
		min(b.Min.Y(), o.Min.Y()),
		max(b.Max.X(), o.Max.X()),
		max(b.Max.Y(), o.Max.Y()),
	)
}

func (b Box2D) valid() bool {
	for _, v := range [4]float32{b.Min.X(), b.Min.Y(), b.Max.X(), b.Max.Y()} {
		if v != v {
			return false
		}
	}
	return b.Min.X() <= b.Max.X() && b.Min.Y() <= b.Max.Y()
}

// Tile is a spatially bounded chunk of the scene. Its LODs are ordered from
// the finest to the coarsest representation.
type Tile struct {
	Box  Box2D
	Lods []LodLevel
}

// Batch is the draw range of one sub-object inside a loaded LOD.
type Batch struct {
	IndexCount  uint32
	IndexOffset uint32
	Texture     TextureHandle
}

// Entity is a placeable object of a tile LOD. NodeIndices point into the
// node table of the LOD geometry source. Batches is parallel to NodeIndices
// and only set while the owning LOD is loaded.
type Entity struct {
	Box         Box2D
	NodeIndices []uint32
	Batches     []Batch
}

// SubObjectCount returns the number of draw batches of the entity.
func (e *Entity) SubObjectCount() int {
	return len(e.NodeIndices)
}

// Geometry references the uploaded buffers of a loaded LOD.
type Geometry struct {
	VertexBuffer BufferHandle
	IndexBuffer  BufferHandle
	VertexCount  int
	IndexCount   int
}

// LodLevel is one level of detail of a tile.
type LodLevel struct {
	Source   string
	Entities []Entity
	Loaded   bool
	Geometry Geometry

	// Scratch list of the entity indices accepted by the last visibility
	// pass that selected this LOD.
	visible []uint32
}

func NewLodLevel(source string, entities []Entity) LodLevel {
	return LodLevel{
		Source:   source,
		Entities: entities,
		visible:  make([]uint32, 0, len(entities)),
	}
}

// ResetVisible empties the visible entity list.
func (l *LodLevel) ResetVisible() {
	l.visible = l.visible[:0]
}

// AppendVisible marks the entity at index i as visible.
func (l *LodLevel) AppendVisible(i uint32) {
	l.visible = append(l.visible, i)
}

// AcceptAll replaces the visible entity list with every entity of the LOD.
func (l *LodLevel) AcceptAll() {
	l.ResetVisible()
	for i := range l.Entities {
		l.visible = append(l.visible, uint32(i))
	}
}

// VisibleNodes returns the entity indices accepted by the last visibility
// pass. The slice is reused by the next pass.
func (l *LodLevel) VisibleNodes() []uint32 {
	return l.visible
}

func (l *LodLevel) VisibleCount() int {
	return len(l.visible)
}

// OcclusionRef lists the objects of one tile that are visible from an
// occlusion record viewpoint.
type OcclusionRef struct {
	Tile    uint32
	Objects []uint32
}

// OcclusionRecord is what is visible from approximately one precomputed
// viewpoint.
type OcclusionRecord struct {
	Position mgl32.Vec3
	Refs     []OcclusionRef
}

// Occlusion is the precomputed visibility table.
type Occlusion struct {
	SceneName string
	TileNames []string
	Records   []OcclusionRecord
}
