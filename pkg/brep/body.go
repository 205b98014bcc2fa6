// Package brep is a small boundary-representation model of planar-faced
// solids. It provides the topology queries dogbone placement needs: the
// vertex where an edge meets a face, the face edges bounding a corner, the
// terminating face of a corner edge, the top face of a body, and
// lookup-by-point for handles invalidated by regeneration.
package brep

import (
	"errors"
	"fmt"

	"github.com/it-ony/Dogbone/pkg/geom"
	"gonum.org/v1/gonum/spatial/r3"
)

var (
	// ErrStale is returned when a handle from an earlier generation of a
	// body is used after the body was regenerated.
	ErrStale = errors.New("brep: stale reference")

	// ErrNotFound is returned when a query has no answer.
	ErrNotFound = errors.New("brep: not found")
)

// Curve describes the geometry of an edge.
type Curve int

const (
	CurveLine Curve = iota // straight segment
	CurveArc               // circular arc
)

func (c Curve) String() string {
	switch c {
	case CurveLine:
		return "line"
	case CurveArc:
		return "arc"
	default:
		return fmt.Sprintf("Curve(%d)", int(c))
	}
}

// Handles carry the body generation in their high bits so that a handle
// obtained before a regeneration is detected as stale.
type (
	VertexID int
	EdgeID   int
	FaceID   int
)

const (
	genShift = 20
	idxMask  = 1<<genShift - 1
)

func encode(gen uint64, idx int) int { return int(gen)<<genShift | idx }

func decode(id int) (gen uint64, idx int) { return uint64(id >> genShift), id & idxMask }

// Vertex is a topological point.
type Vertex struct {
	ID    VertexID
	Point r3.Vec
}

// Edge is a boundary segment shared by exactly two faces.
type Edge struct {
	ID         EdgeID
	Start, End VertexID
	Faces      [2]FaceID
	Curve      Curve

	start, end int
	faces      [2]int
}

// Face is a planar bounded region with an outward normal.
type Face struct {
	ID       FaceID
	Label    string
	Normal   r3.Vec
	Origin   r3.Vec // any point on the face plane
	Edges    []EdgeID
	Vertices []VertexID

	edges    []int
	vertices []int
}

// Plane returns the supporting plane of the face.
func (f *Face) Plane() geom.Plane {
	return geom.Plane{Point: f.Origin, Normal: f.Normal}
}

// Body is a closed solid. Faces, edges and vertices are addressed by
// generation-stamped handles; Regenerate invalidates every outstanding
// handle without changing the geometry.
type Body struct {
	Name string

	generation uint64
	vertices   []Vertex
	edges      []Edge
	faces      []Face
	index      *faceTree
	source     *Prism
}

// NewBody returns an empty body. Most callers use Prism.Build instead.
func NewBody(name string) *Body {
	return &Body{Name: name}
}

// Generation returns the number of times the body was regenerated.
func (b *Body) Generation() uint64 { return b.generation }

// Source returns the prism the body was built from, or nil.
func (b *Body) Source() *Prism { return b.source }

// ---------------------------------------------------------------------------
// Construction
// ---------------------------------------------------------------------------

// AddVertex appends a vertex and returns its handle.
func (b *Body) AddVertex(p r3.Vec) VertexID {
	idx := len(b.vertices)
	id := VertexID(encode(b.generation, idx))
	b.vertices = append(b.vertices, Vertex{ID: id, Point: p})
	return id
}

// AddFace appends a face with the given outward normal and a point on its
// plane. The normal is normalized.
func (b *Body) AddFace(label string, normal, origin r3.Vec) (FaceID, error) {
	n, err := geom.Unit(normal)
	if err != nil {
		return 0, fmt.Errorf("brep: face %q: %w", label, err)
	}
	idx := len(b.faces)
	id := FaceID(encode(b.generation, idx))
	b.faces = append(b.faces, Face{ID: id, Label: label, Normal: n, Origin: origin})
	b.index = nil
	return id, nil
}

// AddEdge joins two vertices with an edge bounding faces f0 and f1.
func (b *Body) AddEdge(start, end VertexID, f0, f1 FaceID, curve Curve) (EdgeID, error) {
	si, err := b.vertexIndex(start)
	if err != nil {
		return 0, err
	}
	ei, err := b.vertexIndex(end)
	if err != nil {
		return 0, err
	}
	fi0, err := b.faceIndex(f0)
	if err != nil {
		return 0, err
	}
	fi1, err := b.faceIndex(f1)
	if err != nil {
		return 0, err
	}
	if si == ei || fi0 == fi1 {
		return 0, fmt.Errorf("brep: degenerate edge %d-%d", si, ei)
	}

	idx := len(b.edges)
	id := EdgeID(encode(b.generation, idx))
	b.edges = append(b.edges, Edge{
		ID: id, Start: start, End: end, Faces: [2]FaceID{f0, f1}, Curve: curve,
		start: si, end: ei, faces: [2]int{fi0, fi1},
	})
	for _, fi := range []int{fi0, fi1} {
		f := &b.faces[fi]
		f.edges = append(f.edges, idx)
		f.Edges = append(f.Edges, id)
		for _, vi := range []int{si, ei} {
			if !containsInt(f.vertices, vi) {
				f.vertices = append(f.vertices, vi)
				f.Vertices = append(f.Vertices, b.vertices[vi].ID)
			}
		}
	}
	b.index = nil
	return id, nil
}

// Regenerate simulates the host rebuilding the body after a feature was
// added: geometry is unchanged but every handle is reissued.
func (b *Body) Regenerate() {
	b.generation++
	g := b.generation
	for i := range b.vertices {
		b.vertices[i].ID = VertexID(encode(g, i))
	}
	for i := range b.edges {
		e := &b.edges[i]
		e.ID = EdgeID(encode(g, i))
		e.Start = VertexID(encode(g, e.start))
		e.End = VertexID(encode(g, e.end))
		e.Faces = [2]FaceID{FaceID(encode(g, e.faces[0])), FaceID(encode(g, e.faces[1]))}
	}
	for i := range b.faces {
		f := &b.faces[i]
		f.ID = FaceID(encode(g, i))
		for j, ei := range f.edges {
			f.Edges[j] = EdgeID(encode(g, ei))
		}
		for j, vi := range f.vertices {
			f.Vertices[j] = VertexID(encode(g, vi))
		}
	}
}

// ---------------------------------------------------------------------------
// Handle resolution
// ---------------------------------------------------------------------------

func (b *Body) checkHandle(id int, n int) (int, error) {
	gen, idx := decode(id)
	if gen != b.generation {
		return 0, ErrStale
	}
	if idx < 0 || idx >= n {
		return 0, ErrNotFound
	}
	return idx, nil
}

func (b *Body) vertexIndex(id VertexID) (int, error) { return b.checkHandle(int(id), len(b.vertices)) }
func (b *Body) edgeIndex(id EdgeID) (int, error)     { return b.checkHandle(int(id), len(b.edges)) }
func (b *Body) faceIndex(id FaceID) (int, error)     { return b.checkHandle(int(id), len(b.faces)) }

// Vertex resolves a vertex handle.
func (b *Body) Vertex(id VertexID) (*Vertex, error) {
	i, err := b.vertexIndex(id)
	if err != nil {
		return nil, fmt.Errorf("brep: vertex %d of %s: %w", id, b.Name, err)
	}
	return &b.vertices[i], nil
}

// Edge resolves an edge handle.
func (b *Body) Edge(id EdgeID) (*Edge, error) {
	i, err := b.edgeIndex(id)
	if err != nil {
		return nil, fmt.Errorf("brep: edge %d of %s: %w", id, b.Name, err)
	}
	return &b.edges[i], nil
}

// Face resolves a face handle.
func (b *Body) Face(id FaceID) (*Face, error) {
	i, err := b.faceIndex(id)
	if err != nil {
		return nil, fmt.Errorf("brep: face %d of %s: %w", id, b.Name, err)
	}
	return &b.faces[i], nil
}

// Faces returns every face of the body in creation order.
func (b *Body) Faces() []*Face {
	out := make([]*Face, len(b.faces))
	for i := range b.faces {
		out[i] = &b.faces[i]
	}
	return out
}

// Edges returns every edge of the body in creation order.
func (b *Body) Edges() []*Edge {
	out := make([]*Edge, len(b.edges))
	for i := range b.edges {
		out[i] = &b.edges[i]
	}
	return out
}

// FaceByLabel returns the face with the given label.
func (b *Body) FaceByLabel(label string) (*Face, error) {
	for i := range b.faces {
		if b.faces[i].Label == label {
			return &b.faces[i], nil
		}
	}
	return nil, fmt.Errorf("brep: face %q of %s: %w", label, b.Name, ErrNotFound)
}

// Point returns the position of vertex index i. It is used by queries that
// already hold resolved edges.
func (b *Body) point(i int) r3.Vec { return b.vertices[i].Point }

// Endpoints returns the start and end points of e.
func (b *Body) Endpoints(e *Edge) (r3.Vec, r3.Vec) {
	return b.point(e.start), b.point(e.end)
}

// Length returns the length of a straight edge.
func (b *Body) Length(e *Edge) float64 {
	s, t := b.Endpoints(e)
	return r3.Norm(r3.Sub(t, s))
}

// Centroid returns the mean of the face's vertices.
func (b *Body) Centroid(f *Face) r3.Vec {
	var sum r3.Vec
	for _, vi := range f.vertices {
		sum = r3.Add(sum, b.point(vi))
	}
	if len(f.vertices) == 0 {
		return f.Origin
	}
	return r3.Scale(1/float64(len(f.vertices)), sum)
}

// AdjacentFaces returns the two faces that share e.
func (b *Body) AdjacentFaces(e *Edge) (*Face, *Face) {
	return &b.faces[e.faces[0]], &b.faces[e.faces[1]]
}

func containsInt(s []int, v int) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}
