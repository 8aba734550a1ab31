package scenegen

import (
	"path/filepath"
	"testing"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/sjon/camera"
	"github.com/aukilabs/sjon/geometry"
	"github.com/aukilabs/sjon/navindex"
	"github.com/aukilabs/sjon/render"
	"github.com/aukilabs/sjon/streaming"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/require"
)

func smallOptions() Options {
	opts := DefaultOptions()
	opts.Grid = 2
	opts.Buildings = 2
	return opts
}

func TestGenerate(t *testing.T) {
	s, err := Generate(smallOptions())
	require.NoError(t, err)

	require.Len(t, s.Index.Tiles, 4)
	require.Len(t, s.Models, 8)
	require.NoError(t, s.Index.Validate())
	require.NoError(t, s.Occlusion.Validate(s.Index))
	require.Len(t, s.Occlusion.TileNames, 4)
	require.Equal(t, navindex.NewBox2D(0, 0, 200, 200), s.Index.Bounds())

	for _, tile := range s.Index.Tiles {
		require.Len(t, tile.Lods, 2)
		require.Len(t, tile.Lods[0].Entities, 4)
		require.Len(t, tile.Lods[1].Entities, 1)
		require.Equal(t, tile.Box, tile.Lods[1].Entities[0].Box)

		for _, e := range tile.Lods[0].Entities {
			require.True(t, tile.Box.Contains(e.Box.Center()))
		}
	}

	// 200x200 city with records every 50 units.
	require.Len(t, s.Occlusion.Records, 16)
	for _, rec := range s.Occlusion.Records {
		require.Equal(t, float32(2), rec.Position.Z())
		require.NotEmpty(t, rec.Refs)
	}
}

func TestGenerateIsDeterministic(t *testing.T) {
	a, err := Generate(smallOptions())
	require.NoError(t, err)
	b, err := Generate(smallOptions())
	require.NoError(t, err)
	require.Equal(t, navindex.EncodeIndex(a.Index, true), navindex.EncodeIndex(b.Index, true))
	require.Equal(t, geometry.Encode(a.Models["tile_1_1_lod0.sjng"]), geometry.Encode(b.Models["tile_1_1_lod0.sjng"]))

	opts := smallOptions()
	opts.Seed = 42
	c, err := Generate(opts)
	require.NoError(t, err)
	require.NotEqual(t, geometry.Encode(a.Models["tile_1_1_lod0.sjng"]), geometry.Encode(c.Models["tile_1_1_lod0.sjng"]))
}

func TestGenerateInvalidOptions(t *testing.T) {
	tests := []struct {
		scenario string
		edit     func(*Options)
	}{
		{scenario: "no grid", edit: func(o *Options) { o.Grid = 0 }},
		{scenario: "no tile size", edit: func(o *Options) { o.TileSize = 0 }},
		{scenario: "no buildings", edit: func(o *Options) { o.Buildings = 0 }},
		{scenario: "inverted heights", edit: func(o *Options) { o.MaxHeight = 1 }},
		{scenario: "no record spacing", edit: func(o *Options) { o.RecordSpacing = 0 }},
		{scenario: "no speed", edit: func(o *Options) { o.Speed = 0 }},
	}

	for _, test := range tests {
		t.Run(test.scenario, func(t *testing.T) {
			opts := DefaultOptions()
			test.edit(&opts)

			_, err := Generate(opts)
			require.Error(t, err)
			require.True(t, errors.IsType(err, ErrTypeInvalidOptions))
		})
	}
}

func TestBoxMesh(t *testing.T) {
	m := boxMesh(mgl32.Vec3{0, 0, 0}, mgl32.Vec3{1, 2, 3})
	require.Len(t, m.Vertices, 24)
	require.Len(t, m.Indices, 36)

	for _, v := range m.Vertices {
		// Y-up: height is stored in Y and the Z-up Y axis is negated in Z.
		require.True(t, v.Position.Y() == 0 || v.Position.Y() == 3)
		require.True(t, v.Position.Z() == 0 || v.Position.Z() == -2)
		require.InDelta(t, 1, v.Normal.Len(), 1e-6)
	}
	for _, i := range m.Indices {
		require.Less(t, int(i), len(m.Vertices))
	}
}

func TestSceneWrite(t *testing.T) {
	s, err := Generate(smallOptions())
	require.NoError(t, err)

	dir := t.TempDir()
	require.NoError(t, s.Write(dir, ".pvr"))

	idx, err := navindex.LoadIndex(filepath.Join(dir, IndexFile))
	require.NoError(t, err)
	require.Len(t, idx.Tiles, 4)

	occ, err := navindex.LoadOcclusion(filepath.Join(dir, OcclusionFile))
	require.NoError(t, err)
	require.NoError(t, occ.Validate(idx))
	require.Equal(t, "navgen", occ.SceneName)
	require.Len(t, occ.Records, len(s.Occlusion.Records))

	track, err := camera.LoadTrack(filepath.Join(dir, TrackFile))
	require.NoError(t, err)
	require.Equal(t, s.Track.Points, track.Points)

	backend := render.NewBackend(dir)
	l := &streaming.Loader{
		Index:         idx,
		Textures:      []string{FacadeTexture},
		TextureExt:    ".pvr",
		Source:        geometry.DirSource{Dir: dir},
		TextureLoader: backend,
		Uploader:      backend,
	}
	for done := false; !done; {
		_, done = l.Step()
	}

	progress := l.Progress()
	require.Equal(t, 8, progress.LodsLoaded)
	require.Zero(t, progress.LodsFailed)
	require.Equal(t, 1, backend.TextureCount())
	require.Equal(t, 16, backend.BufferCount())
}
