package camera

import (
	"math"
	"os"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/segmentio/encoding/json"
)

// ErrTypeInvalidTrack is returned when a camera track cannot be used.
const ErrTypeInvalidTrack = "invalid_camera_track"

const defaultLookAhead = 5

// Track is a closed polyline the camera travels along at constant speed.
// The camera looks toward the point LookAhead units further on the track.
type Track struct {
	Points    []mgl32.Vec3 `json:"points"`
	Speed     float32      `json:"speed"`
	LookAhead float32      `json:"look_ahead,omitempty"`

	lengths []float32
	total   float32
}

// LoadTrack reads a JSON track file.
func LoadTrack(path string) (*Track, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New("could not read camera track").
			WithType(ErrTypeInvalidTrack).
			WithTag("file", path).
			Wrap(err)
	}

	var t Track
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, errors.New("could not decode camera track").
			WithType(ErrTypeInvalidTrack).
			WithTag("file", path).
			Wrap(err)
	}

	if err := t.init(); err != nil {
		return nil, err
	}
	return &t, nil
}

// NewTrack returns a track through the given points.
func NewTrack(speed float32, points ...mgl32.Vec3) (*Track, error) {
	t := Track{
		Points: points,
		Speed:  speed,
	}

	if err := t.init(); err != nil {
		return nil, err
	}
	return &t, nil
}

// CircleTrack returns a track of n points on a horizontal circle.
func CircleTrack(center mgl32.Vec3, radius, speed float32, n int) *Track {
	n = max(n, 3)
	points := make([]mgl32.Vec3, n)

	for i := range points {
		a := 2 * math.Pi * float64(i) / float64(n)
		points[i] = center.Add(mgl32.Vec3{
			radius * float32(math.Cos(a)),
			radius * float32(math.Sin(a)),
			0,
		})
	}

	t, _ := NewTrack(speed, points...)
	return t
}

func (t *Track) init() error {
	if len(t.Points) < 2 {
		return errors.New("camera track needs at least two points").
			WithType(ErrTypeInvalidTrack).
			WithTag("points", len(t.Points))
	}

	if t.LookAhead <= 0 {
		t.LookAhead = defaultLookAhead
	}

	t.lengths = make([]float32, len(t.Points))
	t.total = 0

	for i, p := range t.Points {
		next := t.Points[(i+1)%len(t.Points)]
		t.lengths[i] = next.Sub(p).Len()
		t.total += t.lengths[i]
	}

	if t.total == 0 {
		return errors.New("camera track has no length").
			WithType(ErrTypeInvalidTrack)
	}
	return nil
}

// Length returns the length of the closed track.
func (t *Track) Length() float32 {
	return t.total
}

// PointAt returns the point at the given distance from the first point.
// Distances wrap around the track.
func (t *Track) PointAt(distance float32) mgl32.Vec3 {
	d := float32(math.Mod(float64(distance), float64(t.total)))
	if d < 0 {
		d += t.total
	}

	for i, l := range t.lengths {
		if d <= l && l > 0 {
			next := t.Points[(i+1)%len(t.Points)]
			return t.Points[i].Add(next.Sub(t.Points[i]).Mul(d / l))
		}
		d -= l
	}
	return t.Points[0]
}

// At returns the camera position and target after elapsed time.
func (t *Track) At(elapsed time.Duration) (from, to mgl32.Vec3) {
	s := t.Speed * float32(elapsed.Seconds())

	from = t.PointAt(s)
	dir := t.PointAt(s + t.LookAhead).Sub(from)
	if dir.Len() < 1e-6 {
		dir = mgl32.Vec3{1, 0, 0}
	}
	return from, from.Add(dir.Normalize())
}
