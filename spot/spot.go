package spot

import (
	"fmt"
	"math"
	"sort"
	"sync/atomic"
)

// Feature names understood by the detectors, cost functions and gap closing.
const (
	FeaturePositionX = "POSITION_X"
	FeaturePositionY = "POSITION_Y"
	FeaturePositionZ = "POSITION_Z"
	FeaturePositionT = "POSITION_T"
	FeatureFrame     = "FRAME"
	FeatureRadius    = "RADIUS"
	FeatureQuality   = "QUALITY"
	// FeatureBlobRatio is the smallest to largest absolute Hessian eigenvalue ratio at the spot.
	FeatureBlobRatio = "BLOB_RATIO"
	// FeaturePixelX and FeaturePixelY hold precomputed integer pixel coordinates.
	FeaturePixelX = "PX_X"
	FeaturePixelY = "PX_Y"
)

// PositionFeatures lists the position feature for every axis, in axis order.
var PositionFeatures = [3]string{FeaturePositionX, FeaturePositionY, FeaturePositionZ}

var lastID atomic.Int64

// Spot is a detected (or interpolated) object.
//
// Position, radius and quality are stored as features, so that every
// numerical attribute can be read the same way by cost functions.
type Spot struct {
	id       int
	dims     int
	features map[string]float64
}

// NewSpot creates a spot at the given physical position. The length of
// position is the dimensionality of the spot and must be 1, 2 or 3.
func NewSpot(position []float64, radius, quality float64) (*Spot, error) {
	if len(position) < 1 || len(position) > 3 {
		return nil, &InputError{Op: "NewSpot", Reason: fmt.Sprintf("spot must be 1D, 2D or 3D, got %dD", len(position))}
	}
	s := &Spot{
		id:       int(lastID.Add(1)),
		dims:     len(position),
		features: make(map[string]float64, 8),
	}
	for d := 0; d < 3; d++ {
		v := 0.0
		if d < len(position) {
			v = position[d]
		}
		s.features[PositionFeatures[d]] = v
	}
	s.features[FeatureRadius] = radius
	s.features[FeatureQuality] = quality
	return s, nil
}

// MustSpot is NewSpot for callers that control the dimensionality.
func MustSpot(position []float64, radius, quality float64) *Spot {
	s, err := NewSpot(position, radius, quality)
	if err != nil {
		panic(err)
	}
	return s
}

// ID returns the process-wide unique identifier of the spot.
func (s *Spot) ID() int { return s.id }

// NumDimensions returns the spatial dimensionality of the spot.
func (s *Spot) NumDimensions() int { return s.dims }

// X returns the physical X position.
func (s *Spot) X() float64 { return s.features[FeaturePositionX] }

// Y returns the physical Y position.
func (s *Spot) Y() float64 { return s.features[FeaturePositionY] }

// Z returns the physical Z position.
func (s *Spot) Z() float64 { return s.features[FeaturePositionZ] }

// Radius returns the physical radius.
func (s *Spot) Radius() float64 { return s.features[FeatureRadius] }

// Quality returns the detection quality.
func (s *Spot) Quality() float64 { return s.features[FeatureQuality] }

// Frame returns the frame the spot belongs to, or -1 when unset.
func (s *Spot) Frame() int {
	f, ok := s.features[FeatureFrame]
	if !ok {
		return -1
	}
	return int(f)
}

// Position returns the physical position as a 3-vector (unused axes are 0).
func (s *Spot) Position() [3]float64 {
	return [3]float64{s.X(), s.Y(), s.Z()}
}

// Feature returns the value of a feature and whether it is set.
func (s *Spot) Feature(name string) (float64, bool) {
	v, ok := s.features[name]
	return v, ok
}

// PutFeature sets the value of a feature.
func (s *Spot) PutFeature(name string, value float64) {
	s.features[name] = value
}

// FeatureNames returns the names of all set features, sorted.
func (s *Spot) FeatureNames() []string {
	names := make([]string, 0, len(s.features))
	for name := range s.features {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SquareDistanceTo returns the squared Euclidean distance to other.
func (s *Spot) SquareDistanceTo(other *Spot) float64 {
	sum := 0.0
	for _, f := range PositionFeatures {
		d := s.features[f] - other.features[f]
		sum += d * d
	}
	return sum
}

// DistanceTo returns the Euclidean distance to other.
func (s *Spot) DistanceTo(other *Spot) float64 {
	return math.Sqrt(s.SquareDistanceTo(other))
}

func (s *Spot) String() string {
	return fmt.Sprintf("ID%d(x=%.3f, y=%.3f, z=%.3f, frame=%d)", s.id, s.X(), s.Y(), s.Z(), s.Frame())
}
