package main

import (
	"reflect"

	"github.com/aukilabs/go-tooling/pkg/cli"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/sjon/scenegen"
	"github.com/segmentio/encoding/json"
)

var _ = reflect.TypeOf(config{})

type config struct {
	Output        string  `cli:"" env:"NAVGEN_OUTPUT"         help:"Directory where the scene files are written."`
	Grid          int     `cli:"" env:"NAVGEN_GRID"           help:"The number of tiles on each side of the city."`
	TileSize      float64 `cli:"" env:"NAVGEN_TILE_SIZE"      help:"The side length of a tile."`
	Buildings     int     `cli:"" env:"NAVGEN_BUILDINGS"      help:"The number of buildings on each side of a tile."`
	MinHeight     float64 `cli:"" env:"NAVGEN_MIN_HEIGHT"     help:"The minimum building height."`
	MaxHeight     float64 `cli:"" env:"NAVGEN_MAX_HEIGHT"     help:"The maximum building height."`
	RecordSpacing float64 `cli:"" env:"NAVGEN_RECORD_SPACING" help:"The distance between two occlusion records."`
	RecordRadius  float64 `cli:"" env:"NAVGEN_RECORD_RADIUS"  help:"The distance up to which an occlusion record references buildings."`
	Speed         float64 `cli:"" env:"NAVGEN_SPEED"          help:"The camera track speed."`
	Seed          int     `cli:"" env:"NAVGEN_SEED"           help:"The seed of the building heights."`
	TextureExt    string  `cli:"" env:"NAVGEN_TEXTURE_EXT"    help:"Extension of the generated texture file."`
	LogLevel      string  `cli:"" env:"NAVGEN_LOG_LEVEL"      help:"Log level (debug|info|warning|error)."`
}

func main() {
	defaults := scenegen.DefaultOptions()

	conf := config{
		Output:        "data",
		Grid:          defaults.Grid,
		TileSize:      float64(defaults.TileSize),
		Buildings:     defaults.Buildings,
		MinHeight:     float64(defaults.MinHeight),
		MaxHeight:     float64(defaults.MaxHeight),
		RecordSpacing: float64(defaults.RecordSpacing),
		RecordRadius:  float64(defaults.RecordRadius),
		Speed:         float64(defaults.Speed),
		Seed:          int(defaults.Seed),
		TextureExt:    ".pvr",
		LogLevel:      logs.InfoLevel.String(),
	}

	cli.Register().
		Help("Generates a synthetic city scene for the sjon visibility server.").
		Options(&conf)
	cli.Load()

	logs.SetLevel(logs.ParseLevel(conf.LogLevel))
	logs.Encoder = json.Marshal
	errors.Encoder = json.Marshal

	opts := defaults
	opts.Grid = conf.Grid
	opts.TileSize = float32(conf.TileSize)
	opts.Buildings = conf.Buildings
	opts.MinHeight = float32(conf.MinHeight)
	opts.MaxHeight = float32(conf.MaxHeight)
	opts.RecordSpacing = float32(conf.RecordSpacing)
	opts.RecordRadius = float32(conf.RecordRadius)
	opts.Speed = float32(conf.Speed)
	opts.Seed = uint64(conf.Seed)

	scene, err := scenegen.Generate(opts)
	if err != nil {
		logs.Fatal(err)
	}

	if err := scene.Write(conf.Output, conf.TextureExt); err != nil {
		logs.Fatal(err)
	}

	logs.WithTag("output", conf.Output).
		WithTag("index", scene.Index.Stats()).
		WithTag("occlusion_records", len(scene.Occlusion.Records)).
		WithTag("track_length", scene.Track.Length()).
		Info("scene generated")
}
