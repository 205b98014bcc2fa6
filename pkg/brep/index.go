package brep

import (
	"fmt"
	"math"

	"github.com/it-ony/Dogbone/pkg/geom"
	"gonum.org/v1/gonum/spatial/kdtree"
	"gonum.org/v1/gonum/spatial/r3"
)

// facePoint is a face reference point stored in the kd-tree.
type facePoint struct {
	C   r3.Vec
	idx int
}

func (p *facePoint) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(*facePoint)
	switch d {
	case 0:
		return p.C.X - q.C.X
	case 1:
		return p.C.Y - q.C.Y
	case 2:
		return p.C.Z - q.C.Z
	}
	panic("unreachable")
}

func (p *facePoint) Dims() int { return 3 }

func (p *facePoint) Distance(c kdtree.Comparable) float64 {
	return r3.Norm2(r3.Sub(p.C, c.(*facePoint).C))
}

// facePoints implements kdtree.Interface.
type facePoints []facePoint

func (fp facePoints) Index(i int) kdtree.Comparable { return &fp[i] }
func (fp facePoints) Len() int                      { return len(fp) }
func (fp facePoints) Slice(start, end int) kdtree.Interface {
	return fp[start:end]
}

func (fp facePoints) Pivot(d kdtree.Dim) int {
	p := facePlane{dim: d, points: fp}
	return kdtree.Partition(p, kdtree.MedianOfMedians(p))
}

type facePlane struct {
	dim    kdtree.Dim
	points facePoints
}

func (p facePlane) Less(i, j int) bool {
	return p.points[i].Compare(&p.points[j], p.dim) < 0
}
func (p facePlane) Swap(i, j int) { p.points[i], p.points[j] = p.points[j], p.points[i] }
func (p facePlane) Len() int      { return len(p.points) }
func (p facePlane) Slice(start, end int) kdtree.SortSlicer {
	p.points = p.points[start:end]
	return p
}

// faceTree answers nearest-face queries by reference point.
type faceTree struct {
	tree *kdtree.Tree
}

func (b *Body) buildIndex() *faceTree {
	pts := make(facePoints, len(b.faces))
	for i := range b.faces {
		pts[i] = facePoint{C: b.Centroid(&b.faces[i]), idx: i}
	}
	return &faceTree{tree: kdtree.New(pts, false)}
}

// RefPoint returns the stable reference point of f. It survives
// regeneration and is the key for FaceAt.
func (b *Body) RefPoint(f *Face) r3.Vec {
	return b.Centroid(f)
}

// FaceAt returns the current face whose reference point coincides with p.
// Callers holding a stale face handle use it to re-resolve the same
// logical face.
func (b *Body) FaceAt(p r3.Vec) (*Face, error) {
	if len(b.faces) == 0 {
		return nil, fmt.Errorf("brep: face at %v in %s: %w", p, b.Name, ErrNotFound)
	}
	if b.index == nil {
		b.index = b.buildIndex()
	}
	got, d2 := b.index.tree.Nearest(&facePoint{C: p})
	if got == nil || math.Sqrt(d2) > 1e3*geom.LengthTol {
		return nil, fmt.Errorf("brep: face at %v in %s: %w", p, b.Name, ErrNotFound)
	}
	return &b.faces[got.(*facePoint).idx], nil
}
