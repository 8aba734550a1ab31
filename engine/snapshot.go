package engine

import (
	"github.com/aukilabs/sjon/navindex"
	"github.com/aukilabs/sjon/streaming"
)

// Snapshot is a copy of the last frame that can be read from any
// goroutine.
type Snapshot struct {
	Frame     uint64             `json:"frame"`
	ElapsedMS int64              `json:"elapsed_ms"`
	Mode      string             `json:"mode"`
	Ready     bool               `json:"ready"`
	Progress  streaming.Progress `json:"progress"`
	Camera    [3]float32         `json:"camera"`
	Record    int                `json:"record"`
	Index     navindex.Stats     `json:"index"`
	Entities  int                `json:"visible_entities"`
	Tiles     []TileSnapshot     `json:"tiles"`
}

type TileSnapshot struct {
	Tile  int      `json:"tile"`
	Lod   int      `json:"lod"`
	Class string   `json:"class"`
	Nodes []uint32 `json:"nodes"`
}

func newSnapshot(f Frame, stats navindex.Stats) Snapshot {
	s := Snapshot{
		Frame:     f.Number,
		ElapsedMS: f.Elapsed.Milliseconds(),
		Mode:      f.Mode.String(),
		Ready:     f.Ready,
		Progress:  f.Progress,
		Camera:    f.Camera,
		Record:    f.Record,
		Index:     stats,
		Tiles:     make([]TileSnapshot, len(f.Tiles)),
	}

	for i, t := range f.Tiles {
		s.Entities += len(t.Nodes)
		s.Tiles[i] = TileSnapshot{
			Tile:  t.Tile,
			Lod:   t.Lod,
			Class: t.Class.String(),
			Nodes: append([]uint32(nil), t.Nodes...),
		}
	}
	return s
}

// Snapshot returns a copy of the last frame.
func (e *Engine) Snapshot() Snapshot {
	e.snapshotMutex.RLock()
	defer e.snapshotMutex.RUnlock()

	return e.snapshot
}
