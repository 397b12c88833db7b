package common

import (
	"fmt"
	"math"
)

// Point is a position on the 2D plane. Beacons and position estimates share it.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// NewPoint returns the point (x, y).
func NewPoint(x, y float64) Point {
	return Point{X: x, Y: y}
}

// Distance calculates the Euclidean distance between two points.
func (p Point) Distance(other Point) float64 {
	return math.Hypot(p.X-other.X, p.Y-other.Y)
}

// Add adds another point component-wise.
func (p Point) Add(other Point) Point {
	return Point{X: p.X + other.X, Y: p.Y + other.Y}
}

// Subtract subtracts another point component-wise.
func (p Point) Subtract(other Point) Point {
	return Point{X: p.X - other.X, Y: p.Y - other.Y}
}

// MultiplyByScalar multiplies both coordinates by a scalar value.
func (p Point) MultiplyByScalar(scalar float64) Point {
	return Point{X: p.X * scalar, Y: p.Y * scalar}
}

// NormSq calculates the squared Euclidean norm of the point taken as a vector.
func (p Point) NormSq() float64 {
	return p.X*p.X + p.Y*p.Y
}

// IsFinite reports whether both coordinates are neither NaN nor infinite.
func (p Point) IsFinite() bool {
	return !math.IsNaN(p.X) && !math.IsInf(p.X, 0) && !math.IsNaN(p.Y) && !math.IsInf(p.Y, 0)
}

// String returns a string representation of the point.
func (p Point) String() string {
	return fmt.Sprintf("[%.3f, %.3f]", p.X, p.Y)
}
