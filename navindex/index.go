package navindex

import (
	"github.com/aukilabs/go-tooling/pkg/errors"
)

const (
	// ErrTypeFatalLoad is returned when an index or occlusion file cannot be
	// opened or read. It aborts initialization.
	ErrTypeFatalLoad = "fatal_load"

	// ErrTypeCorruptIndex is returned when a binary stream is malformed.
	ErrTypeCorruptIndex = "corrupt_index"

	// ErrTypeGeometryTooLarge is returned when a LOD has more vertices than
	// its index width can address. The LOD stays unloaded.
	ErrTypeGeometryTooLarge = "geometry_too_large"

	// ErrTypeGeometryLoad is returned when the geometry source of a LOD
	// cannot be read. The LOD stays unloaded.
	ErrTypeGeometryLoad = "geometry_load"
)

// Index is the spatial index of the scene. It owns every tile, LOD and
// entity record.
type Index struct {
	Tiles []Tile
}

// Lod returns the LOD at the given position or nil when out of range.
func (idx *Index) Lod(tile, lod int) *LodLevel {
	if tile < 0 || tile >= len(idx.Tiles) {
		return nil
	}

	lods := idx.Tiles[tile].Lods
	if lod < 0 || lod >= len(lods) {
		return nil
	}
	return &lods[lod]
}

// Bounds returns the union of all tile boxes.
func (idx *Index) Bounds() Box2D {
	if len(idx.Tiles) == 0 {
		return Box2D{}
	}

	bounds := idx.Tiles[0].Box
	for _, t := range idx.Tiles[1:] {
		bounds = bounds.Union(t.Box)
	}
	return bounds
}

// Validate checks the invariants the binary format cannot express.
func (idx *Index) Validate() error {
	for i, t := range idx.Tiles {
		if !t.Box.valid() {
			return errors.New("invalid tile bounding box").
				WithType(ErrTypeCorruptIndex).
				WithTag("tile", i).
				WithTag("box", t.Box)
		}

		for j, l := range t.Lods {
			for k, e := range l.Entities {
				if !e.Box.valid() {
					return errors.New("invalid entity bounding box").
						WithType(ErrTypeCorruptIndex).
						WithTag("tile", i).
						WithTag("lod", j).
						WithTag("entity", k).
						WithTag("box", e.Box)
				}
			}
		}
	}
	return nil
}

// Stats summarizes the content of an index.
type Stats struct {
	Tiles      int `json:"tiles"`
	Lods       int `json:"lods"`
	LoadedLods int `json:"loaded_lods"`
	Entities   int `json:"entities"`
	SubObjects int `json:"sub_objects"`
}

func (idx *Index) Stats() Stats {
	s := Stats{Tiles: len(idx.Tiles)}

	for _, t := range idx.Tiles {
		s.Lods += len(t.Lods)

		for _, l := range t.Lods {
			if l.Loaded {
				s.LoadedLods++
			}

			s.Entities += len(l.Entities)
			for _, e := range l.Entities {
				s.SubObjects += e.SubObjectCount()
			}
		}
	}
	return s
}

// Validate checks that every occlusion reference points to an existing tile
// of idx.
func (o *Occlusion) Validate(idx *Index) error {
	for i, rec := range o.Records {
		for _, ref := range rec.Refs {
			if int(ref.Tile) >= len(idx.Tiles) {
				return errors.New("occlusion record references unknown tile").
					WithType(ErrTypeCorruptIndex).
					WithTag("record", i).
					WithTag("tile", ref.Tile).
					WithTag("tile_count", len(idx.Tiles))
			}
		}
	}
	return nil
}
