// Package geom holds the small amount of vector and plane math shared by the
// dogbone packages. Points and vectors are gonum r3.Vec values in model
// length units (millimetres unless stated otherwise).
package geom

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/spatial/r3"
)

const (
	// LengthTol is the absolute tolerance for coincident points and planes.
	LengthTol = 1e-6

	// AngleTol is the angular tolerance in radians used by Parallel.
	AngleTol = 1e-3
)

// ErrZeroVector is returned when a direction is requested from a vector of
// (near) zero length.
var ErrZeroVector = errors.New("geom: zero-length vector")

// Unit returns v scaled to unit length. Unlike r3.Unit it refuses to
// normalize a zero vector.
func Unit(v r3.Vec) (r3.Vec, error) {
	n := r3.Norm(v)
	if n < LengthTol {
		return r3.Vec{}, ErrZeroVector
	}
	return r3.Scale(1/n, v), nil
}

// Angle returns the unsigned angle between a and b in radians.
// A zero-length argument yields 0.
func Angle(a, b r3.Vec) float64 {
	na, nb := r3.Norm(a), r3.Norm(b)
	if na < LengthTol || nb < LengthTol {
		return 0
	}
	c := r3.Dot(a, b) / (na * nb)
	return math.Acos(math.Max(-1, math.Min(1, c)))
}

// Parallel reports whether a and b are parallel or anti-parallel within tol
// radians.
func Parallel(a, b r3.Vec, tol float64) bool {
	ang := Angle(a, b)
	return ang <= tol || math.Pi-ang <= tol
}

// SameDirection reports whether a and b point the same way within tol
// radians.
func SameDirection(a, b r3.Vec, tol float64) bool {
	return Angle(a, b) <= tol
}

// Equal reports whether two points coincide within LengthTol on every axis.
func Equal(a, b r3.Vec) bool {
	return scalar.EqualWithinAbs(a.X, b.X, LengthTol) &&
		scalar.EqualWithinAbs(a.Y, b.Y, LengthTol) &&
		scalar.EqualWithinAbs(a.Z, b.Z, LengthTol)
}

// Degrees converts radians to degrees.
func Degrees(rad float64) float64 { return rad * 180 / math.Pi }

// Radians converts degrees to radians.
func Radians(deg float64) float64 { return deg * math.Pi / 180 }

// Round snaps every component of v to the given number of decimal places.
// It is used to derive stable keys from geometry.
func Round(v r3.Vec, places int) r3.Vec {
	return r3.Vec{
		X: scalar.Round(v.X, places),
		Y: scalar.Round(v.Y, places),
		Z: scalar.Round(v.Z, places),
	}
}

// ---------------------------------------------------------------------------
// Planes
// ---------------------------------------------------------------------------

// Plane is an infinite plane through Point with unit Normal.
type Plane struct {
	Point  r3.Vec
	Normal r3.Vec
}

// SignedDistance returns the distance of p from the plane, positive on the
// side the normal points to.
func (pl Plane) SignedDistance(p r3.Vec) float64 {
	return r3.Dot(r3.Sub(p, pl.Point), pl.Normal)
}

// Contains reports whether p lies on the plane within LengthTol.
func (pl Plane) Contains(p r3.Vec) bool {
	return math.Abs(pl.SignedDistance(p)) <= LengthTol
}

// Project returns the orthogonal projection of p onto the plane.
func (pl Plane) Project(p r3.Vec) r3.Vec {
	return r3.Sub(p, r3.Scale(pl.SignedDistance(p), pl.Normal))
}

// TranslationBetween returns the vector that carries plane from onto the
// parallel plane to, measured along from's normal. Planes that are not
// parallel yield ErrNotParallel.
func TranslationBetween(from, to Plane) (r3.Vec, error) {
	if !Parallel(from.Normal, to.Normal, AngleTol) {
		return r3.Vec{}, ErrNotParallel
	}
	d := r3.Dot(r3.Sub(to.Point, from.Point), from.Normal)
	return r3.Scale(d, from.Normal), nil
}

// ErrNotParallel is returned by TranslationBetween for non-parallel planes.
var ErrNotParallel = errors.New("geom: planes are not parallel")
