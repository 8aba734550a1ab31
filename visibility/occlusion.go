package visibility

import (
	"time"

	"github.com/aukilabs/sjon/frustum"
	"github.com/aukilabs/sjon/navindex"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/kamstrup/intmap"
)

// Nearest returns the index of the record whose position is the closest to
// pos, or -1 when there is no record. Ties keep the first record.
func Nearest(records []navindex.OcclusionRecord, pos mgl32.Vec3) int {
	nearest := -1
	var nearestDistSq float32

	for i := range records {
		distSq := records[i].Position.Sub(pos).LenSqr()
		if nearest < 0 || distSq < nearestDistSq {
			nearest = i
			nearestDistSq = distSq
		}
	}
	return nearest
}

// Resolver computes the visible tiles and entities by replaying the
// precomputed occlusion record nearest to the camera.
type Resolver struct {
	Thresholds Thresholds

	// When false, every referenced tile is treated as fully visible.
	TileCulling bool

	// When false, referenced objects of partially visible tiles are accepted
	// without testing them.
	EntityCulling bool

	// Defaults to frustum.Classify.
	Classify ClassifyFunc

	entries *intmap.Map[uint32, int]

	// Accepted objects of the current pass, keyed by objectKey.
	accepted *intmap.Map[uint64, struct{}]
}

func objectKey(tile, obj uint32) uint64 {
	return uint64(tile)<<32 | uint64(obj)
}

func NewResolver(t Thresholds) *Resolver {
	return &Resolver{
		Thresholds:    t,
		TileCulling:   true,
		EntityCulling: true,
		Classify:      frustum.Classify,
	}
}

// Resolve rebuilds set from the occlusion record nearest to camera and
// returns the index of that record, -1 when occ has no record.
//
// For each tile referenced by the record, a LOD is selected like Selector
// does and the tile is skipped when that LOD is not loaded or when the tile
// is outside the frustum. Referenced objects of fully visible tiles are all
// accepted. Those of partially visible tiles are tested individually.
// Object indices that do not exist in the selected LOD are ignored. A tile
// referenced twice by a record results in a single entry and an object
// listed more than once is accepted once.
func (r *Resolver) Resolve(idx *navindex.Index, occ *navindex.Occlusion, planes frustum.Planes, camera mgl32.Vec3, set *Set) int {
	start := time.Now()
	classify := r.classify()
	culled := 0
	skipped := 0

	set.Reset()

	if r.entries == nil {
		r.entries = intmap.New[uint32, int](len(idx.Tiles))
	}
	r.entries.Clear()

	if r.accepted == nil {
		r.accepted = intmap.New[uint64, struct{}](64)
	}
	r.accepted.Clear()

	record := Nearest(occ.Records, camera)
	if record < 0 {
		instrumentPass(modeOcclusion, start, 0, 0, 0)
		return record
	}

	ground := camera.Vec2()

	for _, ref := range occ.Records[record].Refs {
		if int(ref.Tile) >= len(idx.Tiles) {
			continue
		}
		tile := &idx.Tiles[ref.Tile]

		d := tile.Box.Center().Sub(ground)
		lod := r.Thresholds.Select(d.Dot(d), len(tile.Lods))
		if lod < 0 {
			continue
		}

		l := &tile.Lods[lod]
		if !l.Loaded {
			continue
		}

		class := frustum.Full
		if r.TileCulling {
			class = classify(tile.Box, planes)
		}
		if class == frustum.Outside {
			culled++
			continue
		}

		if _, ok := r.entries.Get(ref.Tile); !ok {
			r.entries.Put(ref.Tile, set.Len())
			set.Add(Entry{
				Tile:  int(ref.Tile),
				Lod:   lod,
				Class: class,
			})
			l.ResetVisible()
		}

		entityCount := uint32(len(l.Entities))
		testEntities := class == frustum.Partial && r.EntityCulling

		for _, obj := range ref.Objects {
			if obj >= entityCount {
				skipped++
				continue
			}

			key := objectKey(ref.Tile, obj)
			if _, ok := r.accepted.Get(key); ok {
				continue
			}

			if testEntities && classify(l.Entities[obj].Box, planes) == frustum.Outside {
				continue
			}
			r.accepted.Put(key, struct{}{})
			l.AppendVisible(obj)
		}
	}

	instrumentSkippedObjects(skipped)
	instrumentPass(modeOcclusion, start, set.Len(), set.VisibleEntities(idx), culled)
	return record
}

func (r *Resolver) classify() ClassifyFunc {
	if r.Classify != nil {
		return r.Classify
	}
	return frustum.Classify
}
