package streaming

import (
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/sjon/geometry"
	"github.com/aukilabs/sjon/navindex"
	"github.com/aukilabs/sjon/render"
)

// LoadLod reads the geometry source of a LOD, builds its vertex and index
// data and uploads it. The LOD is marked as loaded only once the upload
// succeeded. A LOD with more vertices than the loader allows is rejected
// with ErrTypeGeometryTooLarge and stays unloaded.
//
// Source vertices are Y-up and are converted to the Z-up index space as
// (x, -z, y). Indices of each sub-object are rebased on the number of
// vertices written before it.
func (l *Loader) LoadLod(tile, lod int) error {
	lodLevel := l.Index.Lod(tile, lod)
	if lodLevel == nil {
		return errors.New("lod does not exist").
			WithType(navindex.ErrTypeGeometryLoad).
			WithTag("tile", tile).
			WithTag("lod", lod)
	}

	if lodLevel.Loaded {
		return nil
	}

	model, err := l.Source.Read(lodLevel.Source)
	if err != nil {
		return lodError("reading lod geometry failed", tile, lod, lodLevel.Source, err)
	}

	vertexCount := 0
	indexCount := 0
	for i := range lodLevel.Entities {
		for _, node := range lodLevel.Entities[i].NodeIndices {
			mesh := model.NodeMesh(node)
			if mesh == nil {
				return lodError("entity references a missing node", tile, lod, lodLevel.Source, nil,
					"entity", i,
					"node", node,
				)
			}

			vertexCount += len(mesh.Vertices)
			indexCount += len(mesh.Indices)
		}
	}

	if limit := l.maxVertices(); vertexCount > limit {
		return errors.New("too many vertices to index with 16 bits").
			WithType(navindex.ErrTypeGeometryTooLarge).
			WithTag("tile", tile).
			WithTag("lod", lod).
			WithTag("source", lodLevel.Source).
			WithTag("vertices", vertexCount).
			WithTag("max_vertices", limit)
	}

	vertices := make([]float32, 0, vertexCount*render.VertexStride)
	indices := make([]uint16, 0, indexCount)
	batches := make([][]navindex.Batch, len(lodLevel.Entities))

	for i := range lodLevel.Entities {
		nodes := lodLevel.Entities[i].NodeIndices
		batches[i] = make([]navindex.Batch, len(nodes))

		for j, node := range nodes {
			mesh := model.NodeMesh(node)
			base := uint16(len(vertices) / render.VertexStride)

			batches[i][j] = navindex.Batch{
				IndexCount:  uint32(len(mesh.Indices)),
				IndexOffset: uint32(len(indices)),
				Texture:     l.handles[model.NodeTexture(node)],
			}

			vertices = appendVertices(vertices, mesh.Vertices)
			for _, idx := range mesh.Indices {
				indices = append(indices, idx+base)
			}
		}
	}

	g, err := l.Uploader.Upload(vertices, indices)
	if err != nil {
		return lodError("uploading lod geometry failed", tile, lod, lodLevel.Source, err)
	}

	for i := range lodLevel.Entities {
		lodLevel.Entities[i].Batches = batches[i]
	}
	lodLevel.Geometry = g
	lodLevel.Loaded = true
	return nil
}

// UnloadLod releases the buffers of a loaded LOD and marks it as unloaded.
func (l *Loader) UnloadLod(tile, lod int) {
	lodLevel := l.Index.Lod(tile, lod)
	if lodLevel == nil || !lodLevel.Loaded {
		return
	}

	lodLevel.Loaded = false
	l.Uploader.Release(lodLevel.Geometry)
	lodLevel.Geometry = navindex.Geometry{}
	lodLevel.ResetVisible()

	for i := range lodLevel.Entities {
		lodLevel.Entities[i].Batches = nil
	}
}

// lodError returns a GeometryLoad error. tags are key/value pairs.
func lodError(msg string, tile, lod int, source string, cause error, tags ...any) error {
	e := errors.New(msg).
		WithType(navindex.ErrTypeGeometryLoad).
		WithTag("tile", tile).
		WithTag("lod", lod).
		WithTag("source", source)

	for i := 0; i+1 < len(tags); i += 2 {
		e = e.WithTag(tags[i].(string), tags[i+1])
	}

	if cause != nil {
		return e.Wrap(cause)
	}
	return e
}

func (l *Loader) maxVertices() int {
	if l.MaxVertices <= 0 || l.MaxVertices > MaxIndexableVertices {
		return MaxIndexableVertices
	}
	return l.MaxVertices
}

func appendVertices(dst []float32, vertices []geometry.Vertex) []float32 {
	for _, v := range vertices {
		p := v.Position
		n := v.Normal
		dst = append(dst,
			p.X(), -p.Z(), p.Y(),
			n.X(), -n.Z(), n.Y(),
			v.TexCoord.X(), v.TexCoord.Y(),
		)
	}
	return dst
}
