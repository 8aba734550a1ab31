package visibility

import (
	"testing"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/sjon/frustum"
	"github.com/aukilabs/sjon/navindex"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/require"
)

// lookAlongX returns the planes of a camera at the origin looking along +X
// with Z up. The visible ground region is 1 <= x <= 100, |y| <= x.
func lookAlongX() frustum.Planes {
	projection := mgl32.Perspective(mgl32.DegToRad(90), 1, 1, 100)
	view := mgl32.LookAtV(
		mgl32.Vec3{0, 0, 0},
		mgl32.Vec3{1, 0, 0},
		mgl32.Vec3{0, 0, 1},
	)
	return frustum.Extract(projection.Mul4(view))
}

func loadedLod(boxes ...navindex.Box2D) navindex.LodLevel {
	entities := make([]navindex.Entity, len(boxes))
	for i, b := range boxes {
		entities[i] = navindex.Entity{
			Box:         b,
			NodeIndices: []uint32{uint32(i)},
		}
	}

	l := navindex.NewLodLevel("lod", entities)
	l.Loaded = true
	return l
}

func box(minX, minY, maxX, maxY float32) navindex.Box2D {
	return navindex.NewBox2D(minX, minY, maxX, maxY)
}

// testIndex returns three tiles seen from lookAlongX:
//   - tile 0 is fully visible and uses LOD 0,
//   - tile 1 is behind the left plane,
//   - tile 2 is partially visible and uses LOD 1, its entity 1 being
//     outside of the frustum.
func testIndex() *navindex.Index {
	return &navindex.Index{
		Tiles: []navindex.Tile{
			{
				Box: box(10, -5, 20, 5),
				Lods: []navindex.LodLevel{
					loadedLod(
						box(10, -5, 11, -4),
						box(12, -2, 13, -1),
						box(14, 0, 15, 1),
						box(16, 2, 17, 3),
						box(18, 4, 19, 5),
					),
					loadedLod(box(10, -5, 20, 5)),
				},
			},
			{
				Box: box(10, 50, 20, 60),
				Lods: []navindex.LodLevel{
					loadedLod(box(10, 50, 20, 60)),
					loadedLod(box(10, 50, 20, 60)),
				},
			},
			{
				Box: box(30, 20, 50, 40),
				Lods: []navindex.LodLevel{
					loadedLod(box(30, 20, 50, 40)),
					loadedLod(
						box(32, 22, 34, 24),
						box(31, 38, 33, 40),
						box(40, 25, 45, 30),
					),
				},
			},
		},
	}
}

func testThresholds(t *testing.T) Thresholds {
	thresholds, err := NewThresholds(30, 200)
	require.NoError(t, err)
	return thresholds
}

func countingClassify(calls *int) ClassifyFunc {
	return func(b navindex.Box2D, p frustum.Planes) frustum.Classification {
		*calls++
		return frustum.Classify(b, p)
	}
}

func TestNewThresholds(t *testing.T) {
	thresholds, err := NewThresholds(10, 20)
	require.NoError(t, err)
	require.Equal(t, Thresholds{100, 400}, thresholds)

	_, err = NewThresholds(20, 10)
	require.True(t, errors.IsType(err, ErrTypeInvalidThresholds))

	_, err = NewThresholds(10, 10)
	require.True(t, errors.IsType(err, ErrTypeInvalidThresholds))

	_, err = NewThresholds(0, 10)
	require.True(t, errors.IsType(err, ErrTypeInvalidThresholds))

	require.Equal(t, Thresholds{2550.25, 10000}, DefaultThresholds(1, 100))
}

func TestThresholdsSelect(t *testing.T) {
	thresholds := Thresholds{900, 40000}

	t.Run("first threshold above the distance", func(t *testing.T) {
		require.Equal(t, 0, thresholds.Select(0, 3))
		require.Equal(t, 0, thresholds.Select(899, 3))
		require.Equal(t, 1, thresholds.Select(900, 3))
		require.Equal(t, 1, thresholds.Select(39999, 3))
	})

	t.Run("beyond the last threshold uses the last lod", func(t *testing.T) {
		require.Equal(t, 2, thresholds.Select(40000, 3))
		require.Equal(t, 1, thresholds.Select(1e9, 2))
	})

	t.Run("clamped to the lod count", func(t *testing.T) {
		require.Equal(t, 0, thresholds.Select(1000, 1))
		require.Equal(t, 0, thresholds.Select(1e9, 1))
		require.Equal(t, -1, thresholds.Select(0, 0))
	})

	t.Run("monotonic", func(t *testing.T) {
		previous := 0
		for d := float32(0); d < 100000; d += 97 {
			lod := thresholds.Select(d, 3)
			require.GreaterOrEqual(t, lod, previous, "distance %v", d)
			previous = lod
		}
	})
}

func TestSelectorUpdate(t *testing.T) {
	idx := testIndex()
	set := NewSet(len(idx.Tiles))

	NewSelector(testThresholds(t)).Update(idx, lookAlongX(), mgl32.Vec2{0, 0}, set)

	require.Equal(t, []Entry{
		{Tile: 0, Lod: 0, Class: frustum.Full},
		{Tile: 2, Lod: 1, Class: frustum.Partial},
	}, set.Entries())
	require.Equal(t, []uint32{0, 1, 2, 3, 4}, idx.Tiles[0].Lods[0].VisibleNodes())
	require.Equal(t, []uint32{0, 2}, idx.Tiles[2].Lods[1].VisibleNodes())
	require.Equal(t, 7, set.VisibleEntities(idx))
	require.False(t, set.Contains(1))
}

func TestSelectorFullTileSkipsEntityTests(t *testing.T) {
	idx := testIndex()
	idx.Tiles = idx.Tiles[:1]

	calls := 0
	s := NewSelector(testThresholds(t))
	s.Classify = countingClassify(&calls)

	set := NewSet(1)
	s.Update(idx, lookAlongX(), mgl32.Vec2{0, 0}, set)

	require.Equal(t, 1, calls)
	require.Equal(t, 5, idx.Tiles[0].Lods[0].VisibleCount())
}

func TestSelectorPartialTileTestsEntities(t *testing.T) {
	idx := testIndex()

	calls := 0
	s := NewSelector(testThresholds(t))
	s.Classify = countingClassify(&calls)

	s.Update(idx, lookAlongX(), mgl32.Vec2{0, 0}, NewSet(3))
	require.Equal(t, len(idx.Tiles)+len(idx.Tiles[2].Lods[1].Entities), calls)
}

func TestSelectorWithoutEntityCulling(t *testing.T) {
	idx := testIndex()

	s := NewSelector(testThresholds(t))
	s.EntityCulling = false

	s.Update(idx, lookAlongX(), mgl32.Vec2{0, 0}, NewSet(3))
	require.Equal(t, []uint32{0, 1, 2}, idx.Tiles[2].Lods[1].VisibleNodes())
}

func TestSelectorSkipsUnloadedLod(t *testing.T) {
	idx := testIndex()
	idx.Tiles[2].Lods[1].Loaded = false

	set := NewSet(3)
	NewSelector(testThresholds(t)).Update(idx, lookAlongX(), mgl32.Vec2{0, 0}, set)

	require.Equal(t, 1, set.Len())
	require.True(t, set.Contains(0))
	require.False(t, set.Contains(2))
}

func TestSelectorIsIdempotent(t *testing.T) {
	idx := testIndex()
	set := NewSet(3)
	s := NewSelector(testThresholds(t))
	planes := lookAlongX()

	s.Update(idx, planes, mgl32.Vec2{0, 0}, set)
	entries := append([]Entry(nil), set.Entries()...)
	nodes := append([]uint32(nil), idx.Tiles[2].Lods[1].VisibleNodes()...)

	s.Update(idx, planes, mgl32.Vec2{0, 0}, set)
	require.Equal(t, entries, set.Entries())
	require.Equal(t, nodes, idx.Tiles[2].Lods[1].VisibleNodes())
}

func TestSelectorNothingVisible(t *testing.T) {
	idx := testIndex()
	set := NewSet(3)
	set.Add(Entry{Tile: 42})

	behind := lookAlongX()
	for i := range behind {
		behind[i] = frustum.Plane{-1, 0, 0, -1000}
	}

	NewSelector(testThresholds(t)).Update(idx, behind, mgl32.Vec2{0, 0}, set)
	require.Zero(t, set.Len())
	require.Zero(t, set.VisibleEntities(idx))
}

func TestNearest(t *testing.T) {
	records := []navindex.OcclusionRecord{
		{Position: mgl32.Vec3{0, 0, 0}},
		{Position: mgl32.Vec3{10, 0, 0}},
		{Position: mgl32.Vec3{0, 0, 10}},
	}

	require.Equal(t, 0, Nearest(records, mgl32.Vec3{1, 0, 0}))
	require.Equal(t, 1, Nearest(records, mgl32.Vec3{9, 0, 0}))
	require.Equal(t, 2, Nearest(records, mgl32.Vec3{0, 1, 8}))
	require.Equal(t, 0, Nearest(records, mgl32.Vec3{5, 0, 0}))
	require.Equal(t, -1, Nearest(nil, mgl32.Vec3{1, 0, 0}))
}

func testOcclusion() *navindex.Occlusion {
	return &navindex.Occlusion{
		Records: []navindex.OcclusionRecord{
			{
				Position: mgl32.Vec3{0, 0, 0},
				Refs: []navindex.OcclusionRef{
					{Tile: 0, Objects: []uint32{0, 1, 7}},
					{Tile: 1, Objects: []uint32{0}},
					{Tile: 2, Objects: []uint32{0, 1, 2}},
					{Tile: 0, Objects: []uint32{3}},
				},
			},
			{
				Position: mgl32.Vec3{1000, 0, 0},
				Refs: []navindex.OcclusionRef{
					{Tile: 1, Objects: []uint32{0}},
				},
			},
		},
	}
}

func TestResolverResolve(t *testing.T) {
	idx := testIndex()
	set := NewSet(3)

	record := NewResolver(testThresholds(t)).Resolve(idx, testOcclusion(), lookAlongX(), mgl32.Vec3{0, 0, 2}, set)
	require.Equal(t, 0, record)

	require.Equal(t, []Entry{
		{Tile: 0, Lod: 0, Class: frustum.Full},
		{Tile: 2, Lod: 1, Class: frustum.Partial},
	}, set.Entries())
	require.Equal(t, []uint32{0, 1, 3}, idx.Tiles[0].Lods[0].VisibleNodes())
	require.Equal(t, []uint32{0, 2}, idx.Tiles[2].Lods[1].VisibleNodes())
}

func TestResolverFullTileSkipsEntityTests(t *testing.T) {
	idx := testIndex()
	occ := &navindex.Occlusion{
		Records: []navindex.OcclusionRecord{
			{Refs: []navindex.OcclusionRef{{Tile: 0, Objects: []uint32{0, 1, 2, 3, 4}}}},
		},
	}

	calls := 0
	r := NewResolver(testThresholds(t))
	r.Classify = countingClassify(&calls)

	r.Resolve(idx, occ, lookAlongX(), mgl32.Vec3{}, NewSet(1))
	require.Equal(t, 1, calls)
	require.Equal(t, 5, idx.Tiles[0].Lods[0].VisibleCount())
}

func TestResolverMergesRepeatedObjects(t *testing.T) {
	idx := testIndex()
	occ := &navindex.Occlusion{
		Records: []navindex.OcclusionRecord{
			{
				Refs: []navindex.OcclusionRef{
					{Tile: 0, Objects: []uint32{0, 1}},
					{Tile: 0, Objects: []uint32{1, 2}},
					{Tile: 0, Objects: []uint32{3, 3}},
				},
			},
		},
	}

	set := NewSet(1)
	r := NewResolver(testThresholds(t))

	for i := 0; i < 2; i++ {
		r.Resolve(idx, occ, lookAlongX(), mgl32.Vec3{}, set)

		require.Equal(t, []Entry{{Tile: 0, Lod: 0, Class: frustum.Full}}, set.Entries())
		require.Equal(t, []uint32{0, 1, 2, 3}, idx.Tiles[0].Lods[0].VisibleNodes())
		require.LessOrEqual(t, idx.Tiles[0].Lods[0].VisibleCount(), len(idx.Tiles[0].Lods[0].Entities))
	}
}

func TestResolverWithoutTileCulling(t *testing.T) {
	idx := testIndex()
	set := NewSet(3)

	r := NewResolver(testThresholds(t))
	r.TileCulling = false

	r.Resolve(idx, testOcclusion(), lookAlongX(), mgl32.Vec3{}, set)
	require.True(t, set.Contains(1))
	require.Equal(t, []uint32{0, 1, 2}, idx.Tiles[2].Lods[1].VisibleNodes())
}

func TestResolverSkipsUnloadedLod(t *testing.T) {
	idx := testIndex()
	idx.Tiles[0].Lods[0].Loaded = false

	set := NewSet(3)
	NewResolver(testThresholds(t)).Resolve(idx, testOcclusion(), lookAlongX(), mgl32.Vec3{}, set)

	require.False(t, set.Contains(0))
	require.True(t, set.Contains(2))
}

func TestResolverUsesReferencedTileLodCount(t *testing.T) {
	idx := testIndex()
	idx.Tiles[2].Lods = idx.Tiles[2].Lods[1:]

	set := NewSet(3)
	NewResolver(testThresholds(t)).Resolve(idx, testOcclusion(), lookAlongX(), mgl32.Vec3{}, set)

	require.Equal(t, Entry{Tile: 2, Lod: 0, Class: frustum.Partial}, set.Entries()[1])
}

func TestResolverWithoutRecords(t *testing.T) {
	idx := testIndex()
	set := NewSet(3)
	set.Add(Entry{Tile: 1})

	record := NewResolver(testThresholds(t)).Resolve(idx, &navindex.Occlusion{}, lookAlongX(), mgl32.Vec3{}, set)
	require.Equal(t, -1, record)
	require.Zero(t, set.Len())
}
