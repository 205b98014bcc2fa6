package dogbone

import (
	"fmt"
	"math"

	"github.com/it-ony/Dogbone/pkg/brep"
	"github.com/it-ony/Dogbone/pkg/geom"
	"gonum.org/v1/gonum/spatial/r3"
)

// RightAngleTol is how far from 90 degrees a corner may be and still count
// as square when no angle detection is configured.
const RightAngleTol = 0.1

// angleEps keeps the band limits inclusive despite rounding in acos.
const angleEps = 1e-6

// concaveEps is the minimum normal/tangent dot product for a concave corner.
const concaveEps = 1e-9

// AngleConfig controls which corner angles are admitted.
type AngleConfig struct {
	Parametric  bool
	AcuteAngle  bool
	MinAngle    float64
	ObtuseAngle bool
	MaxAngle    float64
}

// Band returns the inclusive range of admitted corner angles in degrees.
// Without angle detection, and always in parametric mode, only square
// corners are admitted.
func (c AngleConfig) Band() (lo, hi float64) {
	lo, hi = 90-RightAngleTol, 90+RightAngleTol
	if c.Parametric {
		return lo, hi
	}
	if c.AcuteAngle {
		lo = c.MinAngle
	}
	if c.ObtuseAngle {
		hi = c.MaxAngle
	}
	return lo, hi
}

// Admits reports whether a corner angle lies within Band.
func (c AngleConfig) Admits(deg float64) bool {
	lo, hi := c.Band()
	return deg >= lo-angleEps && deg <= hi+angleEps
}

// Corner is the local geometry at a corner edge: the two faces meeting at
// the edge, and for each the direction from the edge into that face.
type Corner struct {
	Linear  bool
	NormalA r3.Vec
	NormalB r3.Vec
	InA     r3.Vec
	InB     r3.Vec
}

// CornerClass is the outcome of Classify.
type CornerClass struct {
	Interior  bool
	Angle     float64 // interior corner angle in degrees
	Direction r3.Vec  // unit bisector of the face normals
	Reason    string  // why the corner was excluded
}

// Classify decides whether a corner is an interior corner that takes a
// relief, and computes the bisecting direction the relief is pushed along.
// Anti-parallel normals give ErrInvalidGeometry.
func Classify(c Corner, cfg AngleConfig) (CornerClass, error) {
	if !c.Linear {
		return CornerClass{Reason: "edge is not linear"}, nil
	}
	dir, err := geom.Unit(r3.Add(c.NormalA, c.NormalB))
	if err != nil {
		return CornerClass{}, fmt.Errorf("%w: face normals cancel out", ErrInvalidGeometry)
	}
	cls := CornerClass{
		Angle:     180 - geom.Degrees(geom.Angle(c.NormalA, c.NormalB)),
		Direction: dir,
	}
	switch {
	case r3.Dot(c.NormalA, c.InB) <= concaveEps:
		cls.Reason = "corner is convex"
	case !cfg.Admits(cls.Angle):
		lo, hi := cfg.Band()
		cls.Reason = fmt.Sprintf("angle %.2f outside [%.2f, %.2f]", cls.Angle, lo, hi)
	default:
		cls.Interior = true
	}
	return cls, nil
}

// CornerAt gathers the corner geometry of edge e where it meets face f.
func CornerAt(b *brep.Body, f *brep.Face, e *brep.Edge) (Corner, error) {
	if !b.MeetsAtCorner(f, e) {
		return Corner{}, fmt.Errorf("%w: edge does not meet face %q at a corner", ErrNotEligible, f.Label)
	}
	fa, fb := b.AdjacentFaces(e)
	inA, err := b.InwardDirection(fa, e)
	if err != nil {
		return Corner{}, fmt.Errorf("%w: %v", ErrInvalidGeometry, err)
	}
	inB, err := b.InwardDirection(fb, e)
	if err != nil {
		return Corner{}, fmt.Errorf("%w: %v", ErrInvalidGeometry, err)
	}

	// The edge has to leave the face, not run along its plane.
	v, err := b.VertexAtFace(f, e)
	if err != nil {
		return Corner{}, fmt.Errorf("%w: %v", ErrInvalidGeometry, err)
	}
	along, err := b.DirectionFrom(e, v)
	if err != nil {
		return Corner{}, fmt.Errorf("%w: %v", ErrInvalidGeometry, err)
	}
	if math.Abs(r3.Dot(along, f.Normal)) < geom.AngleTol {
		return Corner{}, fmt.Errorf("%w: edge lies in the plane of %q", ErrNotEligible, f.Label)
	}

	return Corner{
		Linear:  e.Curve == brep.CurveLine,
		NormalA: fa.Normal,
		NormalB: fb.Normal,
		InA:     inA,
		InB:     inB,
	}, nil
}

// Candidate is a corner edge of a face together with its classification.
type Candidate struct {
	Edge  *brep.Edge
	Class CornerClass
}

// EligibleCorners returns the interior corner edges of f admitted by cfg,
// in body edge order. Corners whose geometry cannot be read are left out.
func EligibleCorners(b *brep.Body, f *brep.Face, cfg AngleConfig) []Candidate {
	var out []Candidate
	for _, e := range b.Edges() {
		if !b.MeetsAtCorner(f, e) {
			continue
		}
		c, err := CornerAt(b, f, e)
		if err != nil {
			continue
		}
		cls, err := Classify(c, cfg)
		if err != nil || !cls.Interior {
			continue
		}
		out = append(out, Candidate{Edge: e, Class: cls})
	}
	return out
}
