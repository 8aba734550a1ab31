package frustum

import (
	"github.com/aukilabs/sjon/navindex"
)

// Classification is the result of testing a box against the culling planes.
type Classification uint8

const (
	Outside Classification = iota
	Partial
	Full
)

func (c Classification) String() string {
	switch c {
	case Outside:
		return "outside"
	case Partial:
		return "partial"
	case Full:
		return "full"
	default:
		return "unknown"
	}
}

// Classify tests the four corners of box against every plane. The box is
// Outside as soon as one plane has all corners behind it, Full when every
// plane has all corners in front of it, and Partial otherwise. Boxes that
// only overlap the frustum are never reported Outside.
func Classify(box navindex.Box2D, planes Planes) Classification {
	corners := box.Corners()
	inside := 0

	for _, p := range planes {
		in := 0
		for _, c := range corners {
			if p.Distance2D(c.X(), c.Y()) >= 0 {
				in++
			}
		}

		switch in {
		case 0:
			return Outside
		case len(corners):
			inside++
		}
	}

	if inside == len(planes) {
		return Full
	}
	return Partial
}
