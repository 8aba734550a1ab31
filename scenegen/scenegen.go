// Package scenegen builds synthetic cities made of box buildings. The
// generated scenes are used for local runs and tests.
package scenegen

import (
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/sjon/camera"
	"github.com/aukilabs/sjon/geometry"
	"github.com/aukilabs/sjon/navindex"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/segmentio/encoding/json"
)

// ErrTypeInvalidOptions is returned when a scene cannot be generated with
// the given options.
const ErrTypeInvalidOptions = "invalid_scenegen_options"

const (
	IndexFile     = "index.sjni"
	OcclusionFile = "occlusion.sjno"
	TrackFile     = "track.json"

	// Texture used by every building.
	FacadeTexture = "facade"
)

type Options struct {
	// The number of tiles on each side of the city.
	Grid int

	// The side length of a tile.
	TileSize float32

	// The number of buildings on each side of a tile.
	Buildings int

	MinHeight float32
	MaxHeight float32

	// The distance between two occlusion records.
	RecordSpacing float32

	// The distance up to which an occlusion record references buildings.
	RecordRadius float32

	// The height of the camera track and of occlusion records.
	EyeHeight float32

	Speed float32
	Seed  uint64
}

// DefaultOptions returns the options of an 8x8 tile city.
func DefaultOptions() Options {
	return Options{
		Grid:          8,
		TileSize:      100,
		Buildings:     4,
		MinHeight:     10,
		MaxHeight:     60,
		RecordSpacing: 50,
		RecordRadius:  250,
		EyeHeight:     2,
		Speed:         15,
		Seed:          1,
	}
}

func (o Options) validate() error {
	switch {
	case o.Grid <= 0:
		return errors.New("grid must be positive").
			WithType(ErrTypeInvalidOptions).
			WithTag("grid", o.Grid)

	case o.TileSize <= 0:
		return errors.New("tile size must be positive").
			WithType(ErrTypeInvalidOptions).
			WithTag("tile_size", o.TileSize)

	case o.Buildings <= 0:
		return errors.New("buildings must be positive").
			WithType(ErrTypeInvalidOptions).
			WithTag("buildings", o.Buildings)

	case o.MinHeight <= 0 || o.MaxHeight < o.MinHeight:
		return errors.New("invalid building heights").
			WithType(ErrTypeInvalidOptions).
			WithTag("min_height", o.MinHeight).
			WithTag("max_height", o.MaxHeight)

	case o.RecordSpacing <= 0:
		return errors.New("record spacing must be positive").
			WithType(ErrTypeInvalidOptions).
			WithTag("record_spacing", o.RecordSpacing)

	case o.Speed <= 0:
		return errors.New("speed must be positive").
			WithType(ErrTypeInvalidOptions).
			WithTag("speed", o.Speed)

	default:
		return nil
	}
}

// Scene is a generated city.
type Scene struct {
	Index     *navindex.Index
	Occlusion *navindex.Occlusion
	Track     *camera.Track

	// Geometry sources by name.
	Models map[string]*geometry.Model
}

// Generate builds a city of Grid x Grid tiles. Each tile has a fine LOD
// with one entity per building and a coarse LOD with a single block.
func Generate(opts Options) (*Scene, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15))

	s := &Scene{
		Index:  &navindex.Index{Tiles: make([]navindex.Tile, 0, opts.Grid*opts.Grid)},
		Models: make(map[string]*geometry.Model),
		Occlusion: &navindex.Occlusion{
			SceneName: "navgen",
		},
	}

	for ty := range opts.Grid {
		for tx := range opts.Grid {
			s.addTile(opts, rng, tx, ty)
		}
	}

	s.addRecords(opts)

	track, err := cityTrack(opts)
	if err != nil {
		return nil, err
	}
	s.Track = track
	return s, nil
}

func (s *Scene) addTile(opts Options, rng *rand.Rand, tx, ty int) {
	name := fmt.Sprintf("tile_%d_%d", tx, ty)

	minX := float32(tx) * opts.TileSize
	minY := float32(ty) * opts.TileSize
	tileBox := navindex.NewBox2D(minX, minY, minX+opts.TileSize, minY+opts.TileSize)

	cell := opts.TileSize / float32(opts.Buildings)
	margin := cell * 0.15

	fine := newBuildingModel()
	entities := make([]navindex.Entity, 0, opts.Buildings*opts.Buildings)
	var totalHeight float32

	for by := range opts.Buildings {
		for bx := range opts.Buildings {
			x0 := minX + float32(bx)*cell + margin
			y0 := minY + float32(by)*cell + margin
			x1 := x0 + cell - 2*margin
			y1 := y0 + cell - 2*margin
			h := opts.MinHeight + rng.Float32()*(opts.MaxHeight-opts.MinHeight)
			totalHeight += h

			node := fine.addBox(mgl32.Vec3{x0, y0, 0}, mgl32.Vec3{x1, y1, h})
			entities = append(entities, navindex.Entity{
				Box:         navindex.NewBox2D(x0, y0, x1, y1),
				NodeIndices: []uint32{node},
			})
		}
	}

	coarse := newBuildingModel()
	avgHeight := totalHeight / float32(opts.Buildings*opts.Buildings)
	node := coarse.addBox(
		mgl32.Vec3{minX + margin, minY + margin, 0},
		mgl32.Vec3{minX + opts.TileSize - margin, minY + opts.TileSize - margin, avgHeight},
	)

	fineName := name + "_lod0.sjng"
	coarseName := name + "_lod1.sjng"
	s.Models[fineName] = fine.Model
	s.Models[coarseName] = coarse.Model

	s.Index.Tiles = append(s.Index.Tiles, navindex.Tile{
		Box: tileBox,
		Lods: []navindex.LodLevel{
			navindex.NewLodLevel(fineName, entities),
			navindex.NewLodLevel(coarseName, []navindex.Entity{
				{Box: tileBox, NodeIndices: []uint32{node}},
			}),
		},
	})
	s.Occlusion.TileNames = append(s.Occlusion.TileNames, name)
}

// addRecords places occlusion records on a regular grid at eye height.
// A record references the buildings whose center is within RecordRadius.
func (s *Scene) addRecords(opts Options) {
	bounds := s.Index.Bounds()
	radius := opts.RecordRadius
	if radius <= 0 {
		radius = 2.5 * opts.TileSize
	}

	for y := bounds.Min.Y() + opts.RecordSpacing/2; y < bounds.Max.Y(); y += opts.RecordSpacing {
		for x := bounds.Min.X() + opts.RecordSpacing/2; x < bounds.Max.X(); x += opts.RecordSpacing {
			pos := mgl32.Vec2{x, y}
			rec := navindex.OcclusionRecord{
				Position: mgl32.Vec3{x, y, opts.EyeHeight},
			}

			for i, t := range s.Index.Tiles {
				var objects []uint32
				for j, e := range t.Lods[0].Entities {
					if e.Box.Center().Sub(pos).Len() <= radius {
						objects = append(objects, uint32(j))
					}
				}

				if len(objects) != 0 {
					rec.Refs = append(rec.Refs, navindex.OcclusionRef{
						Tile:    uint32(i),
						Objects: objects,
					})
				}
			}

			s.Occlusion.Records = append(s.Occlusion.Records, rec)
		}
	}
}

// cityTrack loops along the streets one tile inside the city border. Small
// cities get a loop along the border instead.
func cityTrack(opts Options) (*camera.Track, error) {
	size := float32(opts.Grid) * opts.TileSize
	inset := opts.TileSize
	if opts.Grid < 3 {
		inset = 0
	}

	z := opts.EyeHeight
	return camera.NewTrack(opts.Speed,
		mgl32.Vec3{inset, inset, z},
		mgl32.Vec3{size - inset, inset, z},
		mgl32.Vec3{size - inset, size - inset, z},
		mgl32.Vec3{inset, size - inset, z},
	)
}

// Write stores the scene files in dir: the index, the occlusion table, the
// camera track, one geometry file per LOD and a placeholder facade texture.
func (s *Scene) Write(dir, textureExt string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.New("could not create scene directory").
			WithTag("dir", dir).
			Wrap(err)
	}

	for name, m := range s.Models {
		if err := geometry.WriteFile(dir, name, m); err != nil {
			return err
		}
	}

	track, err := json.MarshalIndent(s.Track, "", "  ")
	if err != nil {
		return errors.New("could not encode camera track").Wrap(err)
	}

	files := []struct {
		name string
		data []byte
	}{
		{name: IndexFile, data: navindex.EncodeIndex(s.Index, true)},
		{name: OcclusionFile, data: navindex.EncodeOcclusion(s.Occlusion, true)},
		{name: TrackFile, data: track},
		{name: FacadeTexture + textureExt, data: []byte("PVR\x03")},
	}

	for _, f := range files {
		path := filepath.Join(dir, f.name)
		if err := os.WriteFile(path, f.data, 0o644); err != nil {
			return errors.New("could not write scene file").
				WithTag("file", path).
				Wrap(err)
		}
	}
	return nil
}
