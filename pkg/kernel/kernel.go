// Package kernel defines the solid kernel used to render bodies and the
// static relief cuts made in them. Implementations wrap a CAD library
// behind this interface.
package kernel

import (
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

// Solid is an opaque handle to a kernel solid.
type Solid interface {
	// BoundingBox returns the axis-aligned bounding box.
	BoundingBox() (lo, hi r3.Vec)
}

// Kernel builds and combines solids.
type Kernel interface {
	// Extrude sweeps a closed XY polygon from z0 to z1.
	Extrude(outline []r2.Vec, z0, z1 float64) (Solid, error)
	// Cylinder returns a cylinder whose axis starts at base and runs
	// length along the unit vector axis.
	Cylinder(base, axis r3.Vec, length, radius float64) (Solid, error)

	Union(s ...Solid) Solid
	Difference(a, b Solid) Solid

	ToMesh(s Solid) (*Mesh, error)
}
