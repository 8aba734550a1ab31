package scenegen

import (
	"github.com/aukilabs/sjon/geometry"
	"github.com/go-gl/mathgl/mgl32"
)

type buildingModel struct {
	*geometry.Model
}

func newBuildingModel() buildingModel {
	return buildingModel{
		Model: &geometry.Model{
			Textures:  []string{FacadeTexture},
			Materials: []geometry.Material{{Texture: 0}},
		},
	}
}

// addBox appends a box mesh spanning lo and hi, given Z-up, and returns
// the index of the node that draws it.
func (m buildingModel) addBox(lo, hi mgl32.Vec3) uint32 {
	m.Meshes = append(m.Meshes, boxMesh(lo, hi))
	m.Nodes = append(m.Nodes, geometry.Node{
		Mesh:     len(m.Meshes) - 1,
		Material: 0,
	})
	return uint32(len(m.Nodes) - 1)
}

var boxTexCoords = [4]mgl32.Vec2{{0, 0}, {1, 0}, {1, 1}, {0, 1}}

func boxMesh(lo, hi mgl32.Vec3) geometry.Mesh {
	c := func(x, y, z bool) mgl32.Vec3 {
		v := lo
		if x {
			v[0] = hi[0]
		}
		if y {
			v[1] = hi[1]
		}
		if z {
			v[2] = hi[2]
		}
		return v
	}

	faces := []struct {
		normal  mgl32.Vec3
		corners [4]mgl32.Vec3
	}{
		{mgl32.Vec3{1, 0, 0}, [4]mgl32.Vec3{c(true, false, false), c(true, true, false), c(true, true, true), c(true, false, true)}},
		{mgl32.Vec3{-1, 0, 0}, [4]mgl32.Vec3{c(false, true, false), c(false, false, false), c(false, false, true), c(false, true, true)}},
		{mgl32.Vec3{0, 1, 0}, [4]mgl32.Vec3{c(true, true, false), c(false, true, false), c(false, true, true), c(true, true, true)}},
		{mgl32.Vec3{0, -1, 0}, [4]mgl32.Vec3{c(false, false, false), c(true, false, false), c(true, false, true), c(false, false, true)}},
		{mgl32.Vec3{0, 0, 1}, [4]mgl32.Vec3{c(false, false, true), c(true, false, true), c(true, true, true), c(false, true, true)}},
		{mgl32.Vec3{0, 0, -1}, [4]mgl32.Vec3{c(false, true, false), c(true, true, false), c(true, false, false), c(false, false, false)}},
	}

	mesh := geometry.Mesh{
		Vertices: make([]geometry.Vertex, 0, 4*len(faces)),
		Indices:  make([]uint16, 0, 6*len(faces)),
	}

	for _, f := range faces {
		base := uint16(len(mesh.Vertices))
		for i, p := range f.corners {
			mesh.Vertices = append(mesh.Vertices, geometry.Vertex{
				Position: toYUp(p),
				Normal:   toYUp(f.normal),
				TexCoord: boxTexCoords[i],
			})
		}
		mesh.Indices = append(mesh.Indices, base, base+1, base+2, base, base+2, base+3)
	}
	return mesh
}

// toYUp converts a Z-up vector to the Y-up convention of geometry sources.
func toYUp(v mgl32.Vec3) mgl32.Vec3 {
	return mgl32.Vec3{v.X(), v.Z(), -v.Y()}
}
