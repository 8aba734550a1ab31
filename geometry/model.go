package geometry

import (
	"github.com/go-gl/mathgl/mgl32"
)

// None marks a missing material or texture reference.
const None = -1

// Vertex is a mesh vertex in the source coordinate system, which is Y-up.
type Vertex struct {
	Position mgl32.Vec3
	Normal   mgl32.Vec3
	TexCoord mgl32.Vec2
}

type Mesh struct {
	Vertices []Vertex
	Indices  []uint16
}

type Material struct {
	// Index in Model.Textures or None.
	Texture int
}

// Node places a mesh with a material. Entities of the index reference
// nodes by position.
type Node struct {
	Mesh     int
	Material int
}

// Model is the content of one geometry source.
type Model struct {
	Textures  []string
	Materials []Material
	Meshes    []Mesh
	Nodes     []Node
}

// NodeMesh returns the mesh of the node at index i, nil when the node or
// its mesh does not exist.
func (m *Model) NodeMesh(i uint32) *Mesh {
	if int(i) >= len(m.Nodes) {
		return nil
	}

	mesh := m.Nodes[i].Mesh
	if mesh < 0 || mesh >= len(m.Meshes) {
		return nil
	}
	return &m.Meshes[mesh]
}

// NodeTexture returns the texture name used by the node at index i, or an
// empty string when it has none.
func (m *Model) NodeTexture(i uint32) string {
	if int(i) >= len(m.Nodes) {
		return ""
	}

	material := m.Nodes[i].Material
	if material < 0 || material >= len(m.Materials) {
		return ""
	}

	texture := m.Materials[material].Texture
	if texture < 0 || texture >= len(m.Textures) {
		return ""
	}
	return m.Textures[texture]
}
