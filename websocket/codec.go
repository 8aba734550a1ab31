package websocket

import (
	"math"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/sjon/engine"
	"github.com/aukilabs/sjon/frustum"
	"github.com/aukilabs/sjon/streaming"
	"google.golang.org/protobuf/encoding/protowire"
)

// ErrTypeInvalidFrame is returned when a frame message cannot be decoded.
const ErrTypeInvalidFrame = "invalid_frame_msg"

// Field numbers of a frame message.
const (
	frameNumberField   protowire.Number = 1
	frameElapsedField  protowire.Number = 2
	frameModeField     protowire.Number = 3
	frameReadyField    protowire.Number = 4
	frameRecordField   protowire.Number = 5
	frameCameraField   protowire.Number = 6
	frameProgressField protowire.Number = 7
	frameTileField     protowire.Number = 8
)

// Field numbers of a tile message.
const (
	tileIndexField protowire.Number = 1
	tileLodField   protowire.Number = 2
	tileClassField protowire.Number = 3
	tileNodesField protowire.Number = 4
)

// Field numbers of a progress message.
const (
	progressStateField          protowire.Number = 1
	progressTexturesLoadedField protowire.Number = 2
	progressTexturesTotalField  protowire.Number = 3
	progressTilesLoadedField    protowire.Number = 4
	progressTilesTotalField     protowire.Number = 5
	progressLodsLoadedField     protowire.Number = 6
	progressLodsFailedField     protowire.Number = 7
	progressTexturesFailedField protowire.Number = 8
)

// FrameMsg is a decoded frame message.
type FrameMsg struct {
	Number    uint64
	ElapsedMS int64
	Mode      engine.Mode
	Ready     bool
	Record    int
	Camera    [3]float32
	Progress  streaming.Progress
	Tiles     []TileMsg
}

// TileMsg is a visible tile of a frame message.
type TileMsg struct {
	Tile  int
	Lod   int
	Class frustum.Classification
	Nodes []uint32
}

// AppendFrame appends the protobuf wire encoding of f to b.
func AppendFrame(b []byte, f engine.Frame) []byte {
	b = appendVarintField(b, frameNumberField, f.Number)
	b = appendVarintField(b, frameElapsedField, uint64(f.Elapsed.Milliseconds()))
	b = appendVarintField(b, frameModeField, uint64(f.Mode))
	b = appendVarintField(b, frameReadyField, protowire.EncodeBool(f.Ready))
	b = appendVarintField(b, frameRecordField, protowire.EncodeZigZag(int64(f.Record)))

	b = protowire.AppendTag(b, frameCameraField, protowire.BytesType)
	b = protowire.AppendVarint(b, 12)
	for _, v := range f.Camera {
		b = protowire.AppendFixed32(b, math.Float32bits(v))
	}

	var progress []byte
	progress = appendVarintField(progress, progressStateField, uint64(f.Progress.State))
	progress = appendVarintField(progress, progressTexturesLoadedField, uint64(f.Progress.TexturesLoaded))
	progress = appendVarintField(progress, progressTexturesTotalField, uint64(f.Progress.TexturesTotal))
	progress = appendVarintField(progress, progressTilesLoadedField, uint64(f.Progress.TilesLoaded))
	progress = appendVarintField(progress, progressTilesTotalField, uint64(f.Progress.TilesTotal))
	progress = appendVarintField(progress, progressLodsLoadedField, uint64(f.Progress.LodsLoaded))
	progress = appendVarintField(progress, progressLodsFailedField, uint64(f.Progress.LodsFailed))
	progress = appendVarintField(progress, progressTexturesFailedField, uint64(f.Progress.TexturesFailed))
	b = protowire.AppendTag(b, frameProgressField, protowire.BytesType)
	b = protowire.AppendBytes(b, progress)

	var tile, nodes []byte
	for _, t := range f.Tiles {
		tile = tile[:0]
		tile = appendVarintField(tile, tileIndexField, uint64(t.Tile))
		tile = appendVarintField(tile, tileLodField, uint64(t.Lod))
		tile = appendVarintField(tile, tileClassField, uint64(t.Class))

		nodes = nodes[:0]
		for _, n := range t.Nodes {
			nodes = protowire.AppendVarint(nodes, uint64(n))
		}
		tile = protowire.AppendTag(tile, tileNodesField, protowire.BytesType)
		tile = protowire.AppendBytes(tile, nodes)

		b = protowire.AppendTag(b, frameTileField, protowire.BytesType)
		b = protowire.AppendBytes(b, tile)
	}
	return b
}

func appendVarintField(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

// DecodeFrame decodes a frame message. Unknown fields are skipped.
func DecodeFrame(data []byte) (FrameMsg, error) {
	var f FrameMsg

	err := consumeFields(data, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == frameCameraField && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return n, nil
			}
			if len(v) != 12 {
				return 0, errors.New("invalid camera length").WithTag("length", len(v))
			}
			for i := range f.Camera {
				bits, _ := protowire.ConsumeFixed32(v[i*4:])
				f.Camera[i] = math.Float32frombits(bits)
			}
			return n, nil

		case num == frameProgressField && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return n, nil
			}
			return n, decodeProgress(v, &f.Progress)

		case num == frameTileField && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return n, nil
			}
			t, err := decodeTile(v)
			if err != nil {
				return 0, err
			}
			f.Tiles = append(f.Tiles, t)
			return n, nil

		case typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return n, nil
			}

			switch num {
			case frameNumberField:
				f.Number = v
			case frameElapsedField:
				f.ElapsedMS = int64(v)
			case frameModeField:
				f.Mode = engine.Mode(v)
			case frameReadyField:
				f.Ready = protowire.DecodeBool(v)
			case frameRecordField:
				f.Record = int(protowire.DecodeZigZag(v))
			}
			return n, nil

		default:
			return protowire.ConsumeFieldValue(num, typ, b), nil
		}
	})
	if err != nil {
		return FrameMsg{}, errors.New("decoding frame failed").
			WithType(ErrTypeInvalidFrame).
			Wrap(err)
	}
	return f, nil
}

func decodeTile(data []byte) (TileMsg, error) {
	var t TileMsg

	err := consumeFields(data, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == tileNodesField && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return n, nil
			}

			t.Nodes = make([]uint32, 0, len(v))
			for len(v) > 0 {
				node, m := protowire.ConsumeVarint(v)
				if m < 0 {
					return m, nil
				}
				t.Nodes = append(t.Nodes, uint32(node))
				v = v[m:]
			}
			return n, nil

		case typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return n, nil
			}

			switch num {
			case tileIndexField:
				t.Tile = int(v)
			case tileLodField:
				t.Lod = int(v)
			case tileClassField:
				t.Class = frustum.Classification(v)
			}
			return n, nil

		default:
			return protowire.ConsumeFieldValue(num, typ, b), nil
		}
	})
	return t, err
}

func decodeProgress(data []byte, p *streaming.Progress) error {
	return consumeFields(data, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if typ != protowire.VarintType {
			return protowire.ConsumeFieldValue(num, typ, b), nil
		}

		v, n := protowire.ConsumeVarint(b)
		if n < 0 {
			return n, nil
		}

		switch num {
		case progressStateField:
			p.State = streaming.State(v)
		case progressTexturesLoadedField:
			p.TexturesLoaded = int(v)
		case progressTexturesTotalField:
			p.TexturesTotal = int(v)
		case progressTilesLoadedField:
			p.TilesLoaded = int(v)
		case progressTilesTotalField:
			p.TilesTotal = int(v)
		case progressLodsLoadedField:
			p.LodsLoaded = int(v)
		case progressLodsFailedField:
			p.LodsFailed = int(v)
		case progressTexturesFailedField:
			p.TexturesFailed = int(v)
		}
		return n, nil
	})
}

// consumeFields calls consume with the value bytes of each field of b.
// consume returns the length of the value or a negative protowire error
// code.
func consumeFields(b []byte, consume func(protowire.Number, protowire.Type, []byte) (int, error)) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]

		n, err := consume(num, typ, b)
		if err != nil {
			return err
		}
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
	}
	return nil
}
