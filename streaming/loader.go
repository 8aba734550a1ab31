package streaming

import (
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/sjon/geometry"
	"github.com/aukilabs/sjon/navindex"
	"github.com/aukilabs/sjon/render"
)

// MaxIndexableVertices is the number of vertices 16-bit indices can address.
const MaxIndexableVertices = 1 << 16

const defaultTexturesPerStep = 5

// State is the position of a Loader in its loading sequence.
type State int

const (
	Announce State = iota
	Textures
	Geometry
	Done
)

func (s State) String() string {
	switch s {
	case Announce:
		return "announce"
	case Textures:
		return "textures"
	case Geometry:
		return "geometry"
	case Done:
		return "done"
	default:
		return "unknown"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Progress reports how far a Loader is.
type Progress struct {
	State          State `json:"state"`
	TexturesLoaded int   `json:"textures_loaded"`
	TexturesFailed int   `json:"textures_failed"`
	TexturesTotal  int   `json:"textures_total"`
	TilesLoaded    int   `json:"tiles_loaded"`
	TilesTotal     int   `json:"tiles_total"`
	LodsLoaded     int   `json:"lods_loaded"`
	LodsFailed     int   `json:"lods_failed"`
}

// Loader loads textures and tile geometry a bounded amount at a time so
// that frames keep being produced while the scene loads. It is the only
// writer of the index Loaded flags and geometry fields.
type Loader struct {
	Index *navindex.Index

	// Names of the textures to load. Materials reference textures by name.
	Textures []string

	// Appended to texture names when loading them.
	TextureExt string

	// Textures loaded per Step. Defaults to 5.
	TexturesPerStep int

	// Maximum vertex count of a LOD. Clamped to MaxIndexableVertices.
	MaxVertices int

	Source        geometry.Source
	TextureLoader render.TextureLoader
	Uploader      render.Uploader

	// Called once after the last tile is processed.
	OnComplete func()

	state       State
	textureBase int
	tileBase    int
	handles     map[string]navindex.TextureHandle
	progress    Progress
}

// Step performs the next bounded amount of loading work and reports
// whether loading is complete.
func (l *Loader) Step() (Progress, bool) {
	switch l.state {
	case Announce:
		l.progress.TexturesTotal = len(l.Textures)
		l.progress.TilesTotal = len(l.Index.Tiles)

		logs.WithTag("textures", len(l.Textures)).
			WithTag("tiles", len(l.Index.Tiles)).
			Info("loading scene")

		l.setState(Textures)

	case Textures:
		l.stepTextures()

	case Geometry:
		if l.tileBase >= len(l.Index.Tiles) {
			if l.OnComplete != nil {
				l.OnComplete()
			}

			l.setState(Done)
			logs.WithTag("lods_loaded", l.progress.LodsLoaded).
				WithTag("lods_failed", l.progress.LodsFailed).
				Info("scene loaded")
			return l.progress, true
		}

		l.stepTile(l.tileBase)
		l.tileBase++
		l.progress.TilesLoaded = l.tileBase
	}

	return l.progress, l.state == Done
}

func (l *Loader) stepTextures() {
	if l.handles == nil {
		l.handles = make(map[string]navindex.TextureHandle, len(l.Textures))
	}

	perStep := l.TexturesPerStep
	if perStep <= 0 {
		perStep = defaultTexturesPerStep
	}

	for i := 0; i < perStep; i++ {
		if l.textureBase >= len(l.Textures) {
			l.setState(Geometry)
			break
		}

		name := l.Textures[l.textureBase]
		l.textureBase++

		h, err := l.TextureLoader.LoadTexture(name + l.TextureExt)
		if err != nil {
			logs.WithTag("texture", name).Warn(err)
			l.progress.TexturesFailed++
			instrumentTextureLoad(resultFailed)
			continue
		}

		l.handles[name] = h
		l.progress.TexturesLoaded++
		instrumentTextureLoad(resultLoaded)
	}
}

func (l *Loader) stepTile(tile int) {
	for lod := range l.Index.Tiles[tile].Lods {
		err := l.LoadLod(tile, lod)
		if err == nil {
			l.progress.LodsLoaded++
			instrumentLodLoad(resultLoaded)
			continue
		}

		l.progress.LodsFailed++
		if errors.IsType(err, navindex.ErrTypeGeometryTooLarge) {
			instrumentLodLoad(resultTooLarge)
		} else {
			instrumentLodLoad(resultFailed)
		}
		logs.Warn(err)
	}
}

func (l *Loader) setState(s State) {
	l.state = s
	l.progress.State = s
	instrumentState(s)
}

// Progress returns the current progress.
func (l *Loader) Progress() Progress {
	return l.progress
}

func (l *Loader) Done() bool {
	return l.state == Done
}

// TextureHandle returns the handle of a loaded texture, zero when the
// texture is unknown or failed to load.
func (l *Loader) TextureHandle(name string) navindex.TextureHandle {
	return l.handles[name]
}
