package brep

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

// Pocket is a polygonal recess cut down from the top face of a prism.
// A depth at or beyond the prism height makes it a through cut.
type Pocket struct {
	Outline []r2.Vec `json:"outline"`
	Depth   float64  `json:"depth"`

	// Rounded lists pocket corner indices whose vertical edge is an arc,
	// for corners that already carry a fillet.
	Rounded []int `json:"rounded,omitempty"`
}

// Through reports whether the pocket cuts through a prism of height h.
func (p Pocket) Through(h float64) bool { return p.Depth >= h }

// Prism is a polygon extruded along +Z from z=0 to z=Height, with pockets
// recessed from the top face.
type Prism struct {
	Outline []r2.Vec `json:"outline"`
	Height  float64  `json:"height"`
	Pockets []Pocket `json:"pockets,omitempty"`
}

var errBadPrism = errors.New("brep: invalid prism")

// Validate checks the prism can be built.
func (p Prism) Validate() error {
	if len(p.Outline) < 3 {
		return fmt.Errorf("%w: outline needs at least 3 points, got %d", errBadPrism, len(p.Outline))
	}
	if math.Abs(signedArea(p.Outline)) < 1e-9 {
		return fmt.Errorf("%w: outline has zero area", errBadPrism)
	}
	if p.Height <= 0 {
		return fmt.Errorf("%w: height must be positive, got %g", errBadPrism, p.Height)
	}
	for i, pk := range p.Pockets {
		if len(pk.Outline) < 3 {
			return fmt.Errorf("%w: pocket %d needs at least 3 points", errBadPrism, i)
		}
		if math.Abs(signedArea(pk.Outline)) < 1e-9 {
			return fmt.Errorf("%w: pocket %d has zero area", errBadPrism, i)
		}
		if pk.Depth <= 0 {
			return fmt.Errorf("%w: pocket %d depth must be positive, got %g", errBadPrism, i, pk.Depth)
		}
		for _, q := range pk.Outline {
			if !insidePolygon(q, p.Outline) {
				return fmt.Errorf("%w: pocket %d point %v lies outside the outline", errBadPrism, i, q)
			}
		}
		for _, c := range pk.Rounded {
			if c < 0 || c >= len(pk.Outline) {
				return fmt.Errorf("%w: pocket %d rounded corner %d out of range", errBadPrism, i, c)
			}
		}
	}
	return nil
}

// Build creates the boundary representation of the prism.
//
// Face labels: "top", "bottom", "side<i>" for outline segment i,
// "pocket<k>-wall<j>" and "pocket<k>-floor". Outline side normals point
// away from the material; pocket wall normals point into the pocket.
func (p Prism) Build(name string) (*Body, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	src := p.normalized()
	b := NewBody(name)
	b.source = &src

	h := src.Height
	out := src.Outline
	n := len(out)

	top, err := b.AddFace("top", r3.Vec{Z: 1}, lift(out[0], h))
	if err != nil {
		return nil, err
	}
	bottom, err := b.AddFace("bottom", r3.Vec{Z: -1}, lift(out[0], 0))
	if err != nil {
		return nil, err
	}

	lo := make([]VertexID, n)
	hi := make([]VertexID, n)
	for i, q := range out {
		lo[i] = b.AddVertex(lift(q, 0))
		hi[i] = b.AddVertex(lift(q, h))
	}
	sides := make([]FaceID, n)
	for i := range out {
		d := r2.Sub(out[(i+1)%n], out[i])
		sides[i], err = b.AddFace(fmt.Sprintf("side%d", i), r3.Vec{X: d.Y, Y: -d.X}, lift(out[i], 0))
		if err != nil {
			return nil, err
		}
	}
	for i := range out {
		j := (i + 1) % n
		prev := (i + n - 1) % n
		if _, err := b.AddEdge(hi[i], hi[j], top, sides[i], CurveLine); err != nil {
			return nil, err
		}
		if _, err := b.AddEdge(lo[i], lo[j], bottom, sides[i], CurveLine); err != nil {
			return nil, err
		}
		if _, err := b.AddEdge(lo[i], hi[i], sides[prev], sides[i], CurveLine); err != nil {
			return nil, err
		}
	}

	for k, pk := range src.Pockets {
		if err := b.addPocket(k, pk, h, top, bottom); err != nil {
			return nil, err
		}
	}
	return b, nil
}

func (b *Body) addPocket(k int, pk Pocket, h float64, top, bottom FaceID) error {
	m := len(pk.Outline)
	floorZ := h - pk.Depth
	floor := bottom
	if pk.Through(h) {
		floorZ = 0
	} else {
		var err error
		floor, err = b.AddFace(fmt.Sprintf("pocket%d-floor", k), r3.Vec{Z: 1}, lift(pk.Outline[0], floorZ))
		if err != nil {
			return err
		}
	}

	rim := make([]VertexID, m)
	base := make([]VertexID, m)
	for j, q := range pk.Outline {
		rim[j] = b.AddVertex(lift(q, h))
		base[j] = b.AddVertex(lift(q, floorZ))
	}
	walls := make([]FaceID, m)
	for j := range pk.Outline {
		d := r2.Sub(pk.Outline[(j+1)%m], pk.Outline[j])
		var err error
		walls[j], err = b.AddFace(fmt.Sprintf("pocket%d-wall%d", k, j), r3.Vec{X: -d.Y, Y: d.X}, lift(pk.Outline[j], floorZ))
		if err != nil {
			return err
		}
	}
	for j := range pk.Outline {
		next := (j + 1) % m
		prev := (j + m - 1) % m
		if _, err := b.AddEdge(rim[j], rim[next], top, walls[j], CurveLine); err != nil {
			return err
		}
		if _, err := b.AddEdge(base[j], base[next], floor, walls[j], CurveLine); err != nil {
			return err
		}
		curve := CurveLine
		if slices.Contains(pk.Rounded, j) {
			curve = CurveArc
		}
		if _, err := b.AddEdge(base[j], rim[j], walls[prev], walls[j], curve); err != nil {
			return err
		}
	}
	return nil
}

// normalized returns a copy with every polygon wound counter-clockwise.
func (p Prism) normalized() Prism {
	out := Prism{Outline: ccw(p.Outline), Height: p.Height}
	for _, pk := range p.Pockets {
		q := Pocket{Outline: ccw(pk.Outline), Depth: pk.Depth}
		if signedArea(pk.Outline) < 0 {
			// Reversal maps corner j to n-1-j.
			for _, c := range pk.Rounded {
				q.Rounded = append(q.Rounded, len(pk.Outline)-1-c)
			}
		} else {
			q.Rounded = slices.Clone(pk.Rounded)
		}
		out.Pockets = append(out.Pockets, q)
	}
	return out
}

func ccw(poly []r2.Vec) []r2.Vec {
	out := slices.Clone(poly)
	if signedArea(out) < 0 {
		slices.Reverse(out)
	}
	return out
}

func signedArea(poly []r2.Vec) float64 {
	var a float64
	for i := range poly {
		j := (i + 1) % len(poly)
		a += poly[i].X*poly[j].Y - poly[j].X*poly[i].Y
	}
	return a / 2
}

// insidePolygon is an even-odd test; points on the boundary count as inside.
func insidePolygon(q r2.Vec, poly []r2.Vec) bool {
	in := false
	for i := range poly {
		a, b := poly[i], poly[(i+1)%len(poly)]
		if onSegment(q, a, b) {
			return true
		}
		if (a.Y > q.Y) != (b.Y > q.Y) {
			x := a.X + (q.Y-a.Y)*(b.X-a.X)/(b.Y-a.Y)
			if q.X < x {
				in = !in
			}
		}
	}
	return in
}

func onSegment(q, a, b r2.Vec) bool {
	ab, aq := r2.Sub(b, a), r2.Sub(q, a)
	if math.Abs(ab.X*aq.Y-ab.Y*aq.X) > 1e-9 {
		return false
	}
	t := (aq.X*ab.X + aq.Y*ab.Y) / (ab.X*ab.X + ab.Y*ab.Y)
	return t >= 0 && t <= 1
}

func lift(q r2.Vec, z float64) r3.Vec { return r3.Vec{X: q.X, Y: q.Y, Z: z} }
