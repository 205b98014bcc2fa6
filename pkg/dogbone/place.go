package dogbone

import (
	"fmt"
	"math"

	"github.com/it-ony/Dogbone/pkg/geom"
	"gonum.org/v1/gonum/spatial/r3"
)

// BoundingEdge is one of the two face edges meeting at a corner vertex.
type BoundingEdge struct {
	Key       string
	Length    float64
	Direction r3.Vec // unit, pointing away from the corner vertex
}

// PlaceInput is everything Place needs for one corner.
type PlaceInput struct {
	Vertex         r3.Vec
	Direction      r3.Vec // bisector from Classify
	Edge1, Edge2   *BoundingEdge
	Radius         float64
	Variant        Variant
	MinimalPercent float64
	LongSide       bool
}

// Placement locates a relief relative to its corner.
type Placement struct {
	Centre          r3.Vec
	Direction       r3.Vec
	Distance        float64 // from the vertex to the centre
	PrimaryEdge     string
	PrimaryOffset   float64
	SecondaryEdge   string
	SecondaryOffset float64
}

// Place computes the centre of a relief and its offsets from the two
// bounding edges.
//
//	Normal:  centre at r along the bisector, both offsets r/√2
//	Minimal: as Normal, both scaled by (1 + percent/100)
//	Mortise: centre at r along one bounding edge; that edge's offset is 0,
//	         the other edge's offset is r
//
// For Mortise the relief slides along the longer edge when LongSide is set
// and along the shorter one otherwise. Equal lengths count as the second
// edge being longer.
func Place(in PlaceInput) (Placement, error) {
	if in.Edge1 == nil || in.Edge2 == nil {
		return Placement{}, ErrAdjacentEdgeResolutionFailed
	}
	if !(in.Radius > 0) {
		return Placement{}, fmt.Errorf("%w: radius %g", ErrConfigurationInvalid, in.Radius)
	}
	if !(in.MinimalPercent >= 0) {
		return Placement{}, fmt.Errorf("%w: minimal percent %g", ErrConfigurationInvalid, in.MinimalPercent)
	}

	r := in.Radius
	p := Placement{PrimaryEdge: in.Edge1.Key, SecondaryEdge: in.Edge2.Key}

	switch in.Variant {
	case Normal, Minimal:
		dir, err := geom.Unit(in.Direction)
		if err != nil {
			return Placement{}, fmt.Errorf("%w: zero bisector", ErrInvalidGeometry)
		}
		scale := 1.0
		if in.Variant == Minimal {
			scale += in.MinimalPercent / 100
		}
		p.Direction = dir
		p.Distance = r * scale
		p.PrimaryOffset = r / math.Sqrt2 * scale
		p.SecondaryOffset = p.PrimaryOffset

	case Mortise:
		first := (in.Edge1.Length > in.Edge2.Length) == in.LongSide
		along := in.Edge2.Direction
		if first {
			along = in.Edge1.Direction
		}
		dir, err := geom.Unit(along)
		if err != nil {
			return Placement{}, fmt.Errorf("%w: zero-length bounding edge", ErrInvalidGeometry)
		}
		p.Direction = dir
		p.Distance = r
		if first {
			p.PrimaryOffset, p.SecondaryOffset = 0, r
		} else {
			p.PrimaryOffset, p.SecondaryOffset = r, 0
		}

	default:
		return Placement{}, fmt.Errorf("%w: unknown dogbone type %d", ErrConfigurationInvalid, int(in.Variant))
	}

	p.Centre = r3.Add(in.Vertex, r3.Scale(p.Distance, p.Direction))
	return p, nil
}

// HoleOffset is the value the edge offsets of a parametric hole bind to.
// Unknown variants yield NaN.
func HoleOffset(v Variant, radius, minimalPercent float64) float64 {
	switch v {
	case Normal:
		return radius / math.Sqrt2
	case Minimal:
		return radius / math.Sqrt2 * (1 + minimalPercent/100)
	case Mortise:
		return radius
	}
	return math.NaN()
}
