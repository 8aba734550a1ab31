package visibility

import (
	"time"

	"github.com/aukilabs/sjon/frustum"
	"github.com/aukilabs/sjon/navindex"
	"github.com/go-gl/mathgl/mgl32"
)

// ClassifyFunc classifies a box against culling planes.
type ClassifyFunc func(navindex.Box2D, frustum.Planes) frustum.Classification

// Selector computes the visible tiles, their LOD and their visible entities
// from the current frustum.
type Selector struct {
	Thresholds Thresholds

	// When false, entities of partially visible tiles are all accepted.
	EntityCulling bool

	// Defaults to frustum.Classify.
	Classify ClassifyFunc
}

func NewSelector(t Thresholds) *Selector {
	return &Selector{
		Thresholds:    t,
		EntityCulling: true,
		Classify:      frustum.Classify,
	}
}

// Update rebuilds set for the given planes and camera ground position.
//
// Tiles outside the frustum are skipped. Other tiles get a LOD from their
// squared distance to the camera and are skipped when that LOD is not
// loaded. Fully visible tiles accept every entity of the LOD without
// testing them. Partially visible tiles keep only the entities that are
// not outside the frustum.
func (s *Selector) Update(idx *navindex.Index, planes frustum.Planes, camera mgl32.Vec2, set *Set) {
	start := time.Now()
	classify := s.classify()
	culled := 0

	set.Reset()

	for i := range idx.Tiles {
		tile := &idx.Tiles[i]

		class := classify(tile.Box, planes)
		if class == frustum.Outside {
			culled++
			continue
		}

		d := tile.Box.Center().Sub(camera)
		lod := s.Thresholds.Select(d.Dot(d), len(tile.Lods))
		if lod < 0 {
			continue
		}

		l := &tile.Lods[lod]
		if !l.Loaded {
			continue
		}

		set.Add(Entry{
			Tile:  i,
			Lod:   lod,
			Class: class,
		})

		if class == frustum.Full || !s.EntityCulling {
			l.AcceptAll()
			continue
		}

		l.ResetVisible()
		for j := range l.Entities {
			if classify(l.Entities[j].Box, planes) != frustum.Outside {
				l.AppendVisible(uint32(j))
			}
		}
	}

	instrumentPass(modeDynamic, start, set.Len(), set.VisibleEntities(idx), culled)
}

func (s *Selector) classify() ClassifyFunc {
	if s.Classify != nil {
		return s.Classify
	}
	return frustum.Classify
}
