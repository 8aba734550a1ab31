package geometry

import (
	"bytes"
	"math"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/sjon/wire"
	"github.com/go-gl/mathgl/mgl32"
)

// ErrTypeCorruptGeometry is returned when a geometry stream is malformed.
const ErrTypeCorruptGeometry = "corrupt_geometry"

// Magic starts every geometry stream.
var Magic = []byte("SJNG")

const (
	formatVersion = 1

	noneRef    = math.MaxUint32
	vertexSize = 8 * 4
)

// Encode serializes m:
//
//	char[4] "SJNG", uint32 version
//	uint32 textureCount, repeat: uint32 nameLength, char[nameLength]
//	uint32 materialCount, repeat: uint32 texture
//	uint32 meshCount
//	repeat meshCount:
//	  uint32 vertexCount, repeat: float32[3] position, float32[3] normal, float32[2] uv
//	  uint32 indexCount, uint16[indexCount]
//	uint32 nodeCount, repeat: uint32 mesh, uint32 material
//
// Missing references are written as 0xFFFFFFFF.
func Encode(m *Model) []byte {
	var w wire.Writer
	w.PutBytes(Magic)
	w.PutUint32(formatVersion)

	w.PutUint32(uint32(len(m.Textures)))
	for _, t := range m.Textures {
		w.PutString(t)
	}

	w.PutUint32(uint32(len(m.Materials)))
	for _, mat := range m.Materials {
		w.PutUint32(ref(mat.Texture))
	}

	w.PutUint32(uint32(len(m.Meshes)))
	for _, mesh := range m.Meshes {
		w.PutUint32(uint32(len(mesh.Vertices)))
		for _, v := range mesh.Vertices {
			w.PutFloat32s(v.Position[:]...)
			w.PutFloat32s(v.Normal[:]...)
			w.PutFloat32s(v.TexCoord[:]...)
		}

		w.PutUint32(uint32(len(mesh.Indices)))
		w.PutUint16s(mesh.Indices)
	}

	w.PutUint32(uint32(len(m.Nodes)))
	for _, n := range m.Nodes {
		w.PutUint32(ref(n.Mesh))
		w.PutUint32(ref(n.Material))
	}
	return w.Bytes()
}

// Decode parses a stream produced by Encode and checks that every
// reference it contains is in range.
func Decode(data []byte) (*Model, error) {
	r := wire.NewReader(data)

	magic, ok := r.Peek(len(Magic))
	if !ok || !bytes.Equal(magic, Magic) {
		return nil, errors.New("not a geometry stream").
			WithType(ErrTypeCorruptGeometry)
	}
	r.Skip(len(Magic))

	version, err := r.Uint32()
	if err != nil {
		return nil, corrupt("version", r, err)
	}
	if version != formatVersion {
		return nil, errors.New("unsupported geometry version").
			WithType(ErrTypeCorruptGeometry).
			WithTag("version", version)
	}

	var m Model

	textureCount, err := r.Count(4)
	if err != nil {
		return nil, corrupt("texture count", r, err)
	}
	m.Textures = make([]string, textureCount)
	for i := range m.Textures {
		if m.Textures[i], err = r.String(); err != nil {
			return nil, corrupt("texture name", r, err)
		}
	}

	materialCount, err := r.Count(4)
	if err != nil {
		return nil, corrupt("material count", r, err)
	}
	m.Materials = make([]Material, materialCount)
	for i := range m.Materials {
		texture, err := r.Uint32()
		if err != nil {
			return nil, corrupt("material", r, err)
		}
		m.Materials[i].Texture = index(texture)
	}

	meshCount, err := r.Count(8)
	if err != nil {
		return nil, corrupt("mesh count", r, err)
	}
	m.Meshes = make([]Mesh, meshCount)
	for i := range m.Meshes {
		if m.Meshes[i], err = readMesh(r); err != nil {
			return nil, corrupt("mesh", r, err)
		}
	}

	nodeCount, err := r.Count(8)
	if err != nil {
		return nil, corrupt("node count", r, err)
	}
	m.Nodes = make([]Node, nodeCount)
	for i := range m.Nodes {
		refs, err := r.Uint32s(2)
		if err != nil {
			return nil, corrupt("node", r, err)
		}
		m.Nodes[i] = Node{Mesh: index(refs[0]), Material: index(refs[1])}
	}

	if r.Remaining() != 0 {
		return nil, errors.New("trailing data after geometry").
			WithType(ErrTypeCorruptGeometry).
			WithTag("remaining", r.Remaining())
	}

	if err := m.validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

func readMesh(r *wire.Reader) (Mesh, error) {
	vertexCount, err := r.Count(vertexSize)
	if err != nil {
		return Mesh{}, err
	}

	values, err := r.Float32s(vertexCount * 8)
	if err != nil {
		return Mesh{}, err
	}

	vertices := make([]Vertex, vertexCount)
	for i := range vertices {
		v := values[i*8:]
		vertices[i] = Vertex{
			Position: mgl32.Vec3{v[0], v[1], v[2]},
			Normal:   mgl32.Vec3{v[3], v[4], v[5]},
			TexCoord: mgl32.Vec2{v[6], v[7]},
		}
	}

	indexCount, err := r.Count(2)
	if err != nil {
		return Mesh{}, err
	}

	indices, err := r.Uint16s(indexCount)
	if err != nil {
		return Mesh{}, err
	}

	return Mesh{Vertices: vertices, Indices: indices}, nil
}

func (m *Model) validate() error {
	for i, mat := range m.Materials {
		if mat.Texture >= len(m.Textures) {
			return errors.New("material references unknown texture").
				WithType(ErrTypeCorruptGeometry).
				WithTag("material", i).
				WithTag("texture", mat.Texture)
		}
	}

	for i, mesh := range m.Meshes {
		for _, idx := range mesh.Indices {
			if int(idx) >= len(mesh.Vertices) {
				return errors.New("mesh index out of range").
					WithType(ErrTypeCorruptGeometry).
					WithTag("mesh", i).
					WithTag("index", idx).
					WithTag("vertex_count", len(mesh.Vertices))
			}
		}
	}

	for i, n := range m.Nodes {
		if n.Mesh == None || n.Mesh >= len(m.Meshes) || n.Material >= len(m.Materials) {
			return errors.New("node references unknown mesh or material").
				WithType(ErrTypeCorruptGeometry).
				WithTag("node", i).
				WithTag("mesh", n.Mesh).
				WithTag("material", n.Material)
		}
	}
	return nil
}

func ref(i int) uint32 {
	if i < 0 {
		return noneRef
	}
	return uint32(i)
}

func index(v uint32) int {
	if v == noneRef {
		return None
	}
	return int(v)
}

func corrupt(section string, r *wire.Reader, err error) error {
	return errors.New("corrupt geometry " + section).
		WithType(ErrTypeCorruptGeometry).
		WithTag("offset", r.Offset()).
		Wrap(err)
}
