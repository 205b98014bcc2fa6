package brep

import (
	"fmt"
	"math"

	"github.com/it-ony/Dogbone/pkg/geom"
	"gonum.org/v1/gonum/spatial/r3"
)

// OnBoundary reports whether e is one of the edges bounding f.
func (b *Body) OnBoundary(f *Face, e *Edge) bool {
	return e.faces[0] == b.faceIdx(f) || e.faces[1] == b.faceIdx(f)
}

// MeetsAtCorner reports whether e touches f at exactly one vertex without
// being part of f's boundary. These are the candidate corner edges of a face.
func (b *Body) MeetsAtCorner(f *Face, e *Edge) bool {
	if b.OnBoundary(f, e) {
		return false
	}
	s := containsInt(f.vertices, e.start)
	t := containsInt(f.vertices, e.end)
	return s != t
}

// VertexAtFace returns the end of e that lies on f.
func (b *Body) VertexAtFace(f *Face, e *Edge) (*Vertex, error) {
	switch {
	case containsInt(f.vertices, e.start):
		return &b.vertices[e.start], nil
	case containsInt(f.vertices, e.end):
		return &b.vertices[e.end], nil
	}
	return nil, fmt.Errorf("brep: edge %d does not touch face %q: %w", e.ID, f.Label, ErrNotFound)
}

// FarVertex returns the end of e that is not on f.
func (b *Body) FarVertex(f *Face, e *Edge) (*Vertex, error) {
	v, err := b.VertexAtFace(f, e)
	if err != nil {
		return nil, err
	}
	if v.ID == e.Start {
		return &b.vertices[e.end], nil
	}
	return &b.vertices[e.start], nil
}

// DirectionFrom returns the unit vector along e pointing away from v.
func (b *Body) DirectionFrom(e *Edge, v *Vertex) (r3.Vec, error) {
	s, t := b.Endpoints(e)
	if v.ID == e.End {
		s, t = t, s
	}
	d, err := geom.Unit(r3.Sub(t, s))
	if err != nil {
		return r3.Vec{}, fmt.Errorf("brep: edge %d: %w", e.ID, err)
	}
	return d, nil
}

// CornerEdgesAtFace returns the two boundary edges of f that meet at the
// vertex where e touches f, in f's edge order.
func (b *Body) CornerEdgesAtFace(f *Face, e *Edge) (*Edge, *Edge, error) {
	v, err := b.VertexAtFace(f, e)
	if err != nil {
		return nil, nil, err
	}
	vi := b.vertexIdx(v)
	var found []*Edge
	for _, ei := range f.edges {
		fe := &b.edges[ei]
		if fe.start == vi || fe.end == vi {
			found = append(found, fe)
		}
	}
	if len(found) != 2 {
		return nil, nil, fmt.Errorf("brep: %d face edges at vertex %d of face %q: %w", len(found), v.ID, f.Label, ErrNotFound)
	}
	return found[0], found[1], nil
}

// InwardDirection returns the unit vector lying in face f, perpendicular to
// its boundary edge e, pointing from e into f.
func (b *Body) InwardDirection(f *Face, e *Edge) (r3.Vec, error) {
	if !b.OnBoundary(f, e) {
		return r3.Vec{}, fmt.Errorf("brep: edge %d is not on face %q: %w", e.ID, f.Label, ErrNotFound)
	}
	s, t := b.Endpoints(e)
	d, err := geom.Unit(r3.Sub(t, s))
	if err != nil {
		return r3.Vec{}, fmt.Errorf("brep: edge %d: %w", e.ID, err)
	}
	in, err := geom.Unit(r3.Cross(f.Normal, d))
	if err != nil {
		return r3.Vec{}, fmt.Errorf("brep: edge %d lies along the normal of %q: %w", e.ID, f.Label, err)
	}

	// Orient towards the face vertex farthest from the edge line.
	best, bestDist := 0.0, -1.0
	for _, vi := range f.vertices {
		rel := r3.Sub(b.point(vi), s)
		perp := r3.Sub(rel, r3.Scale(r3.Dot(rel, d), d))
		if dist := r3.Norm(perp); dist > bestDist {
			bestDist = dist
			best = r3.Dot(perp, in)
		}
	}
	if bestDist < geom.LengthTol {
		return r3.Vec{}, fmt.Errorf("brep: face %q is degenerate: %w", f.Label, geom.ErrZeroVector)
	}
	if best < 0 {
		in = r3.Scale(-1, in)
	}
	return in, nil
}

// FindExtent returns the face at the far end of corner edge e that is
// parallel to f. It is where a relief cut started on f terminates.
func (b *Body) FindExtent(f *Face, e *Edge) (*Face, error) {
	far, err := b.FarVertex(f, e)
	if err != nil {
		return nil, err
	}
	vi := b.vertexIdx(far)
	for i := range b.faces {
		c := &b.faces[i]
		if i == e.faces[0] || i == e.faces[1] || c.ID == f.ID {
			continue
		}
		if containsInt(c.vertices, vi) && geom.Parallel(c.Normal, f.Normal, geom.AngleTol) {
			return c, nil
		}
	}
	return nil, fmt.Errorf("brep: no face parallel to %q at end of edge %d: %w", f.Label, e.ID, ErrNotFound)
}

// TopFace returns the face of the body that faces the same way as f and lies
// farthest along f's normal. It may be f itself.
func (b *Body) TopFace(f *Face) (*Face, error) {
	pl := f.Plane()
	var top *Face
	best := math.Inf(-1)
	for i := range b.faces {
		c := &b.faces[i]
		if !geom.SameDirection(c.Normal, f.Normal, geom.AngleTol) {
			continue
		}
		if d := pl.SignedDistance(c.Origin); d > best+geom.LengthTol {
			best, top = d, c
		}
	}
	if top == nil {
		return nil, fmt.Errorf("brep: no top face for %q: %w", f.Label, ErrNotFound)
	}
	return top, nil
}

// EdgesAt returns every edge touching v.
func (b *Body) EdgesAt(v *Vertex) []*Edge {
	vi := b.vertexIdx(v)
	var out []*Edge
	for i := range b.edges {
		if b.edges[i].start == vi || b.edges[i].end == vi {
			out = append(out, &b.edges[i])
		}
	}
	return out
}

// FaceVertices returns the vertices of f.
func (b *Body) FaceVertices(f *Face) []*Vertex {
	out := make([]*Vertex, len(f.vertices))
	for i, vi := range f.vertices {
		out[i] = &b.vertices[vi]
	}
	return out
}

func (b *Body) faceIdx(f *Face) int {
	_, i := decode(int(f.ID))
	return i
}

func (b *Body) vertexIdx(v *Vertex) int {
	_, i := decode(int(v.ID))
	return i
}
