package visibility

import (
	"github.com/aukilabs/go-tooling/pkg/errors"
)

// ErrTypeInvalidThresholds is returned when LOD distances are not strictly
// ascending positive values.
const ErrTypeInvalidThresholds = "invalid_lod_thresholds"

// Thresholds are squared LOD switch distances, ascending. LOD j is selected
// for the first j where the squared camera distance is below Thresholds[j].
type Thresholds []float32

// NewThresholds returns the thresholds for the given LOD switch distances.
func NewThresholds(distances ...float32) (Thresholds, error) {
	t := make(Thresholds, len(distances))

	for i, d := range distances {
		if !(d > 0) {
			return nil, errors.New("lod distance must be positive").
				WithType(ErrTypeInvalidThresholds).
				WithTag("index", i).
				WithTag("distance", d)
		}

		if i > 0 && d <= distances[i-1] {
			return nil, errors.New("lod distances must be strictly ascending").
				WithType(ErrTypeInvalidThresholds).
				WithTag("index", i).
				WithTag("distance", d).
				WithTag("previous_distance", distances[i-1])
		}

		t[i] = d * d
	}
	return t, nil
}

// DefaultThresholds returns the thresholds derived from the camera clip
// distances: the first LOD up to halfway between near and far, the second
// up to far.
func DefaultThresholds(near, far float32) Thresholds {
	mid := (near + far) / 2
	return Thresholds{mid * mid, far * far}
}

// Select returns the LOD index for a squared distance. Beyond the last
// threshold the last LOD is used. The result is clamped to lodCount-1 and
// is -1 when the tile has no LOD.
func (t Thresholds) Select(distSq float32, lodCount int) int {
	if lodCount <= 0 {
		return -1
	}

	lod := lodCount - 1
	for j, threshold := range t {
		if distSq < threshold {
			lod = j
			break
		}
	}
	return min(lod, lodCount-1)
}
