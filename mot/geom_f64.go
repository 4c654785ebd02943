package mot

import (
	"math"

	"github.com/LdDl/spottrack-go/spot"
)

// Point is a position in the XY plane
type Point struct {
	X float64
	Y float64
}

// NewPoint creates new point
func NewPoint(x, y float64) Point {
	return Point{
		X: x,
		Y: y,
	}
}

// PointOf returns XY position of the spot
func PointOf(s *spot.Spot) Point {
	return Point{
		X: s.X(),
		Y: s.Y(),
	}
}

// euclideanDistance returns Euclidean distance between two points
func euclideanDistance(p1, p2 Point) float64 {
	return math.Sqrt(math.Pow(p1.X-p2.X, 2) + math.Pow(p1.Y-p2.Y, 2))
}
