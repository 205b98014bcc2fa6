// Package sdfx implements the kernel.Kernel interface using the
// github.com/deadsy/sdfx SDF-based CAD library.
package sdfx

import (
	"errors"
	"fmt"
	"math"

	"github.com/deadsy/sdfx/render"
	"github.com/deadsy/sdfx/sdf"
	v2 "github.com/deadsy/sdfx/vec/v2"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/it-ony/Dogbone/pkg/kernel"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

// Compile-time interface check.
var _ kernel.Kernel = (*SdfxKernel)(nil)

// DefaultMeshCells controls marching cubes tessellation resolution.
const DefaultMeshCells = 200

type sdfxSolid struct {
	s sdf.SDF3
}

func (s *sdfxSolid) BoundingBox() (lo, hi r3.Vec) {
	bb := s.s.BoundingBox()
	return fromV3(bb.Min), fromV3(bb.Max)
}

// SdfxKernel implements kernel.Kernel using sdfx.
type SdfxKernel struct {
	cells int
}

// New returns a kernel meshing with the given number of marching cubes
// cells along the longest side; 0 selects DefaultMeshCells.
func New(cells int) *SdfxKernel {
	if cells <= 0 {
		cells = DefaultMeshCells
	}
	return &SdfxKernel{cells: cells}
}

func unwrap(s kernel.Solid) sdf.SDF3 {
	return s.(*sdfxSolid).s
}

func wrap(s sdf.SDF3) kernel.Solid {
	return &sdfxSolid{s: s}
}

func toV3(v r3.Vec) v3.Vec   { return v3.Vec{X: v.X, Y: v.Y, Z: v.Z} }
func fromV3(v v3.Vec) r3.Vec { return r3.Vec{X: v.X, Y: v.Y, Z: v.Z} }

// Extrude builds the polygon as an sdf.Polygon2D and extrudes it. sdfx
// extrudes symmetrically about z=0, so the result is shifted to start at z0.
func (k *SdfxKernel) Extrude(outline []r2.Vec, z0, z1 float64) (kernel.Solid, error) {
	if z1 <= z0 {
		return nil, fmt.Errorf("sdfx: extrude from %g to %g", z0, z1)
	}
	pts := make([]v2.Vec, len(outline))
	for i, q := range outline {
		pts[i] = v2.Vec{X: q.X, Y: q.Y}
	}
	poly, err := sdf.Polygon2D(pts)
	if err != nil {
		return nil, fmt.Errorf("sdfx: polygon: %w", err)
	}
	h := z1 - z0
	s := sdf.Extrude3D(poly, h)
	return wrap(sdf.Transform3D(s, sdf.Translate3d(v3.Vec{Z: z0 + h/2}))), nil
}

// Cylinder builds an sdf.Cylinder3D along Z, tilts it onto axis and moves
// its centre to the middle of the requested span.
func (k *SdfxKernel) Cylinder(base, axis r3.Vec, length, radius float64) (kernel.Solid, error) {
	n := r3.Norm(axis)
	if n == 0 {
		return nil, errors.New("sdfx: cylinder axis is zero")
	}
	a := r3.Scale(1/n, axis)
	s, err := sdf.Cylinder3D(length, radius, 0)
	if err != nil {
		return nil, fmt.Errorf("sdfx: cylinder: %w", err)
	}
	tilt := math.Acos(math.Max(-1, math.Min(1, a.Z)))
	turn := math.Atan2(a.Y, a.X)
	mid := r3.Add(base, r3.Scale(length/2, a))
	m := sdf.Translate3d(toV3(mid)).Mul(sdf.RotateZ(turn)).Mul(sdf.RotateY(tilt))
	return wrap(sdf.Transform3D(s, m)), nil
}

// Union returns the union of the solids, or nil for none.
func (k *SdfxKernel) Union(s ...kernel.Solid) kernel.Solid {
	switch len(s) {
	case 0:
		return nil
	case 1:
		return s[0]
	}
	parts := make([]sdf.SDF3, len(s))
	for i, x := range s {
		parts[i] = unwrap(x)
	}
	return wrap(sdf.Union3D(parts...))
}

// Difference returns the difference a - b.
func (k *SdfxKernel) Difference(a, b kernel.Solid) kernel.Solid {
	return wrap(sdf.Difference3D(unwrap(a), unwrap(b)))
}

// ToMesh converts a solid to a triangle mesh using marching cubes.
func (k *SdfxKernel) ToMesh(s kernel.Solid) (*kernel.Mesh, error) {
	if s == nil {
		return nil, errors.New("sdfx: mesh of nil solid")
	}
	renderer := render.NewMarchingCubesUniform(k.cells)
	triangles := render.ToTriangles(unwrap(s), renderer)

	numVerts := len(triangles) * 3
	vertices := make([]float32, 0, numVerts*3)
	normals := make([]float32, 0, numVerts*3)
	indices := make([]uint32, 0, numVerts)

	for i, tri := range triangles {
		n := tri.Normal()
		for j := 0; j < 3; j++ {
			v := tri[j]
			vertices = append(vertices, float32(v.X), float32(v.Y), float32(v.Z))
			normals = append(normals, float32(n.X), float32(n.Y), float32(n.Z))
			indices = append(indices, uint32(i*3+j))
		}
	}

	return &kernel.Mesh{
		Vertices: vertices,
		Normals:  normals,
		Indices:  indices,
	}, nil
}
