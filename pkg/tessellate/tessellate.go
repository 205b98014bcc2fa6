// Package tessellate walks a design and produces triangle meshes using a
// solid kernel. One mesh is produced per body placement, with the static
// relief cuts recorded for the body removed from it.
package tessellate

import (
	"fmt"

	"github.com/it-ony/Dogbone/pkg/brep"
	"github.com/it-ony/Dogbone/pkg/feature"
	"github.com/it-ony/Dogbone/pkg/kernel"
)

// pocketMargin extends pocket solids past the faces they open onto.
const pocketMargin = 0.01

// CutSource supplies the static cuts made in a body. *feature.Cutter
// implements it.
type CutSource interface {
	CutsFor(b *brep.Body) []*feature.Cut
}

// Tessellate meshes every body of d. Bodies shared by several occurrences
// are meshed once per occurrence. cuts may be nil. The design is not
// modified.
func Tessellate(d *brep.Design, cuts CutSource, k kernel.Kernel) ([]*kernel.Mesh, error) {
	if d == nil {
		return nil, nil
	}
	var meshes []*kernel.Mesh
	for _, t := range d.Targets() {
		var applied []*feature.Cut
		if cuts != nil {
			applied = cuts.CutsFor(t.Body)
		}
		solid, err := BodySolid(k, t.Body, applied)
		if err != nil {
			return nil, fmt.Errorf("tessellate: %s: %w", t, err)
		}
		mesh, err := k.ToMesh(solid)
		if err != nil {
			return nil, fmt.Errorf("tessellate: ToMesh failed for %s: %w", t, err)
		}
		mesh.Name = t.Key() + "/" + t.Body.Name
		mesh.Cuts = len(applied)
		meshes = append(meshes, mesh)
	}
	return meshes, nil
}

// BodySolid rebuilds b from its source prism and subtracts the tool bodies
// of cuts. Pocket corners recorded as rounded are rendered sharp.
func BodySolid(k kernel.Kernel, b *brep.Body, cuts []*feature.Cut) (kernel.Solid, error) {
	src := b.Source()
	if src == nil {
		return nil, fmt.Errorf("body %q has no source prism", b.Name)
	}
	h := src.Height
	solid, err := k.Extrude(src.Outline, 0, h)
	if err != nil {
		return nil, err
	}

	var removed []kernel.Solid
	for i, pk := range src.Pockets {
		z0 := h - pk.Depth
		if pk.Through(h) {
			z0 = -pocketMargin
		}
		s, err := k.Extrude(pk.Outline, z0, h+pocketMargin)
		if err != nil {
			return nil, fmt.Errorf("pocket %d: %w", i, err)
		}
		removed = append(removed, s)
	}
	for _, cut := range cuts {
		for j, tb := range cut.Tools {
			s, err := k.Cylinder(tb.Base, tb.Axis, tb.Length, tb.Radius)
			if err != nil {
				return nil, fmt.Errorf("cut %s tool %d: %w", cut.ID, j, err)
			}
			removed = append(removed, s)
		}
	}
	if len(removed) == 0 {
		return solid, nil
	}
	return k.Difference(solid, k.Union(removed...)), nil
}
