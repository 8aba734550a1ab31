package navindex

import (
	"bytes"
	"os"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/sjon/wire"
	"github.com/go-gl/mathgl/mgl32"
)

// Optional file headers. Files without a header are read as the legacy
// headerless layout.
var (
	IndexMagic     = []byte("SJNI")
	OcclusionMagic = []byte("SJNO")
)

// FormatVersion is the only header version this package reads and writes.
const FormatVersion = 1

const (
	box2DSize = 4 * 4
	uint32Len = 4
)

// LoadIndex reads and decodes the index file at path.
func LoadIndex(path string) (*Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New("could not open index file").
			WithType(ErrTypeFatalLoad).
			WithTag("file", path).
			Wrap(err)
	}

	idx, err := DecodeIndex(data)
	if err != nil {
		return nil, errors.New("loading index file failed").
			WithType(ErrTypeCorruptIndex).
			WithTag("file", path).
			Wrap(err)
	}
	return idx, nil
}

// LoadOcclusion reads and decodes the occlusion file at path.
func LoadOcclusion(path string) (*Occlusion, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New("could not open occlusion file").
			WithType(ErrTypeFatalLoad).
			WithTag("file", path).
			Wrap(err)
	}

	occ, err := DecodeOcclusion(data)
	if err != nil {
		return nil, errors.New("loading occlusion file failed").
			WithType(ErrTypeCorruptIndex).
			WithTag("file", path).
			Wrap(err)
	}
	return occ, nil
}

// DecodeIndex decodes an index stream:
//
//	uint32 tileCount
//	repeat tileCount:
//	  float32[4] box (minX, minY, maxX, maxY)
//	  uint32 lodCount
//	  repeat lodCount:
//	    uint32 nameLength, char[nameLength] name
//	    uint32 entityCount
//	    repeat entityCount:
//	      float32[4] box
//	      uint32 subObjectCount, uint32[subObjectCount] nodeIndices
func DecodeIndex(data []byte) (*Index, error) {
	r := wire.NewReader(data)
	if err := readHeader(r, IndexMagic); err != nil {
		return nil, err
	}

	tileCount, err := r.Count(box2DSize + uint32Len)
	if err != nil {
		return nil, corrupt("tile count", r, err)
	}

	idx := &Index{Tiles: make([]Tile, tileCount)}
	for i := range idx.Tiles {
		tile := &idx.Tiles[i]

		if tile.Box, err = readBox(r); err != nil {
			return nil, corrupt("tile box", r, err, "tile", i)
		}

		lodCount, err := r.Count(2 * uint32Len)
		if err != nil {
			return nil, corrupt("lod count", r, err, "tile", i)
		}

		tile.Lods = make([]LodLevel, lodCount)
		for j := range tile.Lods {
			lod, err := readLod(r)
			if err != nil {
				return nil, corrupt("lod", r, err, "tile", i, "lod", j)
			}
			tile.Lods[j] = lod
		}
	}

	if r.Remaining() != 0 {
		return nil, errors.New("trailing data after index").
			WithType(ErrTypeCorruptIndex).
			WithTag("offset", r.Offset()).
			WithTag("remaining", r.Remaining())
	}

	if err := idx.Validate(); err != nil {
		return nil, err
	}
	return idx, nil
}

func readLod(r *wire.Reader) (LodLevel, error) {
	source, err := r.String()
	if err != nil {
		return LodLevel{}, err
	}

	entityCount, err := r.Count(box2DSize + uint32Len)
	if err != nil {
		return LodLevel{}, err
	}

	entities := make([]Entity, entityCount)
	for k := range entities {
		if entities[k].Box, err = readBox(r); err != nil {
			return LodLevel{}, err
		}

		n, err := r.Count(uint32Len)
		if err != nil {
			return LodLevel{}, err
		}

		if entities[k].NodeIndices, err = r.Uint32s(n); err != nil {
			return LodLevel{}, err
		}
	}

	return NewLodLevel(source, entities), nil
}

// DecodeOcclusion decodes an occlusion stream:
//
//	uint32 nameLength, char[nameLength] scene name
//	uint32 tileCount, repeat: uint32 nameLength, char[nameLength]
//	uint32 recordCount
//	repeat recordCount:
//	  float32[3] position
//	  uint32 refTileCount
//	  repeat refTileCount:
//	    uint32 tileIndex
//	    uint32 refObjectCount, uint32[refObjectCount] refObjectIndices
func DecodeOcclusion(data []byte) (*Occlusion, error) {
	r := wire.NewReader(data)
	if err := readHeader(r, OcclusionMagic); err != nil {
		return nil, err
	}

	var occ Occlusion
	var err error

	if occ.SceneName, err = r.String(); err != nil {
		return nil, corrupt("scene name", r, err)
	}

	nameCount, err := r.Count(uint32Len)
	if err != nil {
		return nil, corrupt("tile name count", r, err)
	}

	occ.TileNames = make([]string, nameCount)
	for i := range occ.TileNames {
		if occ.TileNames[i], err = r.String(); err != nil {
			return nil, corrupt("tile name", r, err, "tile", i)
		}
	}

	recordCount, err := r.Count(4 * uint32Len)
	if err != nil {
		return nil, corrupt("record count", r, err)
	}

	occ.Records = make([]OcclusionRecord, recordCount)
	for i := range occ.Records {
		rec, err := readRecord(r)
		if err != nil {
			return nil, corrupt("occlusion record", r, err, "record", i)
		}
		occ.Records[i] = rec
	}

	if r.Remaining() != 0 {
		return nil, errors.New("trailing data after occlusion records").
			WithType(ErrTypeCorruptIndex).
			WithTag("offset", r.Offset()).
			WithTag("remaining", r.Remaining())
	}
	return &occ, nil
}

func readRecord(r *wire.Reader) (OcclusionRecord, error) {
	pos, err := r.Float32s(3)
	if err != nil {
		return OcclusionRecord{}, err
	}

	refCount, err := r.Count(2 * uint32Len)
	if err != nil {
		return OcclusionRecord{}, err
	}

	rec := OcclusionRecord{
		Position: mgl32.Vec3{pos[0], pos[1], pos[2]},
		Refs:     make([]OcclusionRef, refCount),
	}

	for j := range rec.Refs {
		if rec.Refs[j].Tile, err = r.Uint32(); err != nil {
			return OcclusionRecord{}, err
		}

		n, err := r.Count(uint32Len)
		if err != nil {
			return OcclusionRecord{}, err
		}

		if rec.Refs[j].Objects, err = r.Uint32s(n); err != nil {
			return OcclusionRecord{}, err
		}
	}
	return rec, nil
}

func readHeader(r *wire.Reader, magic []byte) error {
	b, ok := r.Peek(len(magic))
	if !ok || !bytes.Equal(b, magic) {
		// Legacy headerless stream.
		return nil
	}

	r.Skip(len(magic))

	version, err := r.Uint32()
	if err != nil {
		return corrupt("header version", r, err)
	}

	if version != FormatVersion {
		return errors.New("unsupported format version").
			WithType(ErrTypeCorruptIndex).
			WithTag("magic", string(magic)).
			WithTag("version", version).
			WithTag("supported_version", FormatVersion)
	}
	return nil
}

func readBox(r *wire.Reader) (Box2D, error) {
	v, err := r.Float32s(4)
	if err != nil {
		return Box2D{}, err
	}
	return NewBox2D(v[0], v[1], v[2], v[3]), nil
}

// corrupt wraps a read failure into a CorruptIndex error. tags are
// key/value pairs.
func corrupt(section string, r *wire.Reader, err error, tags ...any) error {
	e := errors.New("corrupt " + section).
		WithType(ErrTypeCorruptIndex).
		WithTag("offset", r.Offset())

	for i := 0; i+1 < len(tags); i += 2 {
		e = e.WithTag(tags[i].(string), tags[i+1])
	}
	return e.Wrap(err)
}
