package engine

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/sjon/camera"
	"github.com/aukilabs/sjon/frustum"
	"github.com/aukilabs/sjon/geometry"
	"github.com/aukilabs/sjon/navindex"
	"github.com/aukilabs/sjon/render"
	"github.com/aukilabs/sjon/streaming"
	"github.com/aukilabs/sjon/visibility"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/require"
)

func testLens() camera.Lens {
	return camera.Lens{
		FOV:    mgl32.DegToRad(90),
		Aspect: 1,
		Near:   1,
		Far:    100,
	}
}

// lookAlongX is a camera at (x, 0, 2) looking along +X.
func lookAlongX(x float32) camera.Source {
	return camera.SourceFunc(func(time.Duration) camera.State {
		return camera.NewState(testLens(), mgl32.Vec3{x, 0, 2}, mgl32.Vec3{x + 1, 0, 2})
	})
}

func testSource() geometry.Source {
	var s geometry.MemorySource
	s.Set("model", &geometry.Model{
		Meshes: []geometry.Mesh{{
			Vertices: make([]geometry.Vertex, 3),
			Indices:  []uint16{0, 1, 2},
		}},
		Nodes: []geometry.Node{{Mesh: 0, Material: geometry.None}},
	})
	return &s
}

func lod(boxes ...navindex.Box2D) navindex.LodLevel {
	entities := make([]navindex.Entity, len(boxes))
	for i, b := range boxes {
		entities[i] = navindex.Entity{Box: b, NodeIndices: []uint32{0}}
	}
	return navindex.NewLodLevel("model", entities)
}

func testIndex() *navindex.Index {
	return &navindex.Index{
		Tiles: []navindex.Tile{
			{
				Box: navindex.NewBox2D(10, -5, 20, 5),
				Lods: []navindex.LodLevel{
					lod(navindex.NewBox2D(10, -5, 15, 0), navindex.NewBox2D(15, 0, 20, 5)),
					lod(navindex.NewBox2D(10, -5, 20, 5)),
				},
			},
			{
				Box: navindex.NewBox2D(10, 50, 20, 60),
				Lods: []navindex.LodLevel{
					lod(navindex.NewBox2D(10, 50, 20, 60)),
				},
			},
		},
	}
}

func testThresholds(t *testing.T) visibility.Thresholds {
	thresholds, err := visibility.NewThresholds(30, 200)
	require.NoError(t, err)
	return thresholds
}

func newTestLoader(idx *navindex.Index) *streaming.Loader {
	backend := render.NewBackend("")
	return &streaming.Loader{
		Index:         idx,
		Source:        testSource(),
		TextureLoader: backend,
		Uploader:      backend,
	}
}

func loadAll(t *testing.T, idx *navindex.Index) {
	l := newTestLoader(idx)
	for done := false; !done; {
		_, done = l.Step()
	}
	require.Equal(t, 3, l.Progress().LodsLoaded)
}

func TestEngineLoadsBeforeVisibility(t *testing.T) {
	idx := testIndex()
	e := New(Options{
		Index:    idx,
		Loader:   newTestLoader(idx),
		Selector: visibility.NewSelector(testThresholds(t)),
		Camera:   lookAlongX(0),
	})
	require.False(t, e.Ready())

	var frames []Frame
	for i := 0; i < 4; i++ {
		f := e.Frame(time.Duration(i) * time.Millisecond)
		require.False(t, f.Ready)
		require.Empty(t, f.Tiles)
		frames = append(frames, f)
	}
	require.Equal(t, streaming.Textures, frames[0].Progress.State)
	require.Equal(t, streaming.Geometry, frames[1].Progress.State)
	require.Equal(t, 2, frames[3].Progress.TilesLoaded)

	f := e.Frame(5 * time.Millisecond)
	require.True(t, f.Ready)
	require.True(t, e.Ready())
	require.Equal(t, streaming.Done, f.Progress.State)
	require.Equal(t, []TileVisibility{
		{Tile: 0, Lod: 0, Class: frustum.Full, Nodes: []uint32{0, 1}},
	}, f.Tiles)

	s := e.Snapshot()
	require.Equal(t, uint64(5), s.Frame)
	require.True(t, s.Ready)
	require.Equal(t, "dynamic", s.Mode)
	require.Equal(t, 3, s.Index.LoadedLods)
	require.Equal(t, 2, s.Entities)
	require.Equal(t, []TileSnapshot{
		{Tile: 0, Lod: 0, Class: "full", Nodes: []uint32{0, 1}},
	}, s.Tiles)
}

func countingSelector(t *testing.T, calls *int) *visibility.Selector {
	s := visibility.NewSelector(testThresholds(t))
	s.Classify = func(b navindex.Box2D, p frustum.Planes) frustum.Classification {
		*calls++
		return frustum.Classify(b, p)
	}
	return s
}

func TestEngineThrottlesDynamicVisibility(t *testing.T) {
	idx := testIndex()
	loadAll(t, idx)

	calls := 0
	e := New(Options{
		Index:              idx,
		Selector:           countingSelector(t, &calls),
		Camera:             lookAlongX(0),
		VisibilityInterval: 100 * time.Millisecond,
		Throttle:           true,
	})

	passes := func() int { return calls / len(idx.Tiles) }

	e.Frame(0)
	require.Equal(t, 1, passes())

	e.Frame(50 * time.Millisecond)
	e.Frame(100 * time.Millisecond)
	require.Equal(t, 1, passes())

	f := e.Frame(101 * time.Millisecond)
	require.Equal(t, 2, passes())
	require.Len(t, f.Tiles, 1)

	f = e.Frame(150 * time.Millisecond)
	require.Equal(t, 2, passes())
	require.Len(t, f.Tiles, 1)
}

func TestEngineWithoutThrottle(t *testing.T) {
	idx := testIndex()
	loadAll(t, idx)

	calls := 0
	e := New(Options{
		Index:    idx,
		Selector: countingSelector(t, &calls),
		Camera:   lookAlongX(0),
	})

	for i := 0; i < 3; i++ {
		e.Frame(time.Duration(i) * time.Millisecond)
	}
	require.Equal(t, 3*len(idx.Tiles), calls)
}

func TestEngineOcclusionMode(t *testing.T) {
	idx := testIndex()
	loadAll(t, idx)

	occ := &navindex.Occlusion{
		Records: []navindex.OcclusionRecord{
			{
				Position: mgl32.Vec3{0, 0, 0},
				Refs: []navindex.OcclusionRef{
					{Tile: 0, Objects: []uint32{1}},
					{Tile: 1, Objects: []uint32{0}},
				},
			},
			{
				Position: mgl32.Vec3{500, 0, 0},
			},
		},
	}

	e := New(Options{
		Index:     idx,
		Occlusion: occ,
		Resolver:  visibility.NewResolver(testThresholds(t)),
		Camera:    lookAlongX(0),
		Mode:      Occlusion,
	})

	f := e.Frame(0)
	require.Equal(t, 0, f.Record)
	require.Equal(t, []TileVisibility{
		{Tile: 0, Lod: 0, Class: frustum.Full, Nodes: []uint32{1}},
	}, f.Tiles)

	e.opts.Camera = lookAlongX(400)
	f = e.Frame(time.Millisecond)
	require.Equal(t, 1, f.Record)
	require.Empty(t, f.Tiles)
	require.Equal(t, "occlusion", e.Snapshot().Mode)
}

func TestEngineHandleFrame(t *testing.T) {
	idx := testIndex()
	loadAll(t, idx)

	e := New(Options{
		Index:  idx,
		Camera: lookAlongX(0),
	})

	var received []uint64
	cancel := e.HandleFrame(func(f Frame) {
		received = append(received, f.Number)
	})

	e.Frame(0)
	e.Frame(time.Millisecond)
	cancel()
	cancel()
	e.Frame(2 * time.Millisecond)

	require.Equal(t, []uint64{1, 2}, received)
}

func TestEngineRun(t *testing.T) {
	idx := testIndex()

	e := New(Options{
		Index:    idx,
		Loader:   newTestLoader(idx),
		Selector: visibility.NewSelector(testThresholds(t)),
		Camera:   lookAlongX(0),
		Throttle: true,
	})

	var frames atomic.Int64
	e.HandleFrame(func(Frame) {
		frames.Add(1)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	err := e.Run(ctx, time.Millisecond)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Greater(t, frames.Load(), int64(5))
	require.True(t, e.Ready())
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("dynamic")
	require.NoError(t, err)
	require.Equal(t, Dynamic, m)

	m, err = ParseMode(" Occlusion ")
	require.NoError(t, err)
	require.Equal(t, Occlusion, m)

	_, err = ParseMode("magic")
	require.True(t, errors.IsType(err, ErrTypeInvalidMode))
	require.Equal(t, "unknown", Mode(7).String())
}
