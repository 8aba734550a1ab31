package engine

import (
	"strings"

	"github.com/aukilabs/go-tooling/pkg/errors"
)

// ErrTypeInvalidMode is returned when a visibility mode name is unknown.
const ErrTypeInvalidMode = "invalid_visibility_mode"

// Mode is the strategy used to compute the visibility set.
type Mode int

const (
	// Dynamic computes visibility from the frustum on a throttled cadence.
	Dynamic Mode = iota

	// Occlusion replays the precomputed occlusion record nearest to the
	// camera every frame.
	Occlusion
)

func (m Mode) String() string {
	switch m {
	case Dynamic:
		return "dynamic"
	case Occlusion:
		return "occlusion"
	default:
		return "unknown"
	}
}

func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "dynamic":
		return Dynamic, nil
	case "occlusion":
		return Occlusion, nil
	default:
		return 0, errors.New("unknown visibility mode").
			WithType(ErrTypeInvalidMode).
			WithTag("mode", s)
	}
}
