package navindex

import (
	"github.com/aukilabs/sjon/wire"
)

// EncodeIndex serializes idx in the layout read by DecodeIndex. When
// withHeader is false the legacy headerless layout is produced.
func EncodeIndex(idx *Index, withHeader bool) []byte {
	var w wire.Writer
	if withHeader {
		w.PutBytes(IndexMagic)
		w.PutUint32(FormatVersion)
	}

	w.PutUint32(uint32(len(idx.Tiles)))
	for _, t := range idx.Tiles {
		putBox(&w, t.Box)
		w.PutUint32(uint32(len(t.Lods)))

		for _, l := range t.Lods {
			w.PutString(l.Source)
			w.PutUint32(uint32(len(l.Entities)))

			for _, e := range l.Entities {
				putBox(&w, e.Box)
				w.PutUint32(uint32(len(e.NodeIndices)))
				w.PutUint32s(e.NodeIndices)
			}
		}
	}
	return w.Bytes()
}

// EncodeOcclusion serializes occ in the layout read by DecodeOcclusion.
func EncodeOcclusion(occ *Occlusion, withHeader bool) []byte {
	var w wire.Writer
	if withHeader {
		w.PutBytes(OcclusionMagic)
		w.PutUint32(FormatVersion)
	}

	w.PutString(occ.SceneName)
	w.PutUint32(uint32(len(occ.TileNames)))
	for _, name := range occ.TileNames {
		w.PutString(name)
	}

	w.PutUint32(uint32(len(occ.Records)))
	for _, rec := range occ.Records {
		w.PutFloat32s(rec.Position[:]...)
		w.PutUint32(uint32(len(rec.Refs)))

		for _, ref := range rec.Refs {
			w.PutUint32(ref.Tile)
			w.PutUint32(uint32(len(ref.Objects)))
			w.PutUint32s(ref.Objects)
		}
	}
	return w.Bytes()
}

func putBox(w *wire.Writer, b Box2D) {
	w.PutFloat32s(b.Min.X(), b.Min.Y(), b.Max.X(), b.Max.Y())
}
