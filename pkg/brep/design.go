package brep

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/it-ony/Dogbone/pkg/geom"
	"gonum.org/v1/gonum/spatial/r3"
)

// Component owns bodies. A component may be placed several times as
// occurrences.
type Component struct {
	Name   string
	Bodies []*Body
}

// Body returns the named body of the component, or nil.
func (c *Component) Body(name string) *Body {
	for _, b := range c.Bodies {
		if b.Name == name {
			return b
		}
	}
	return nil
}

// Occurrence is one placed instance of a component.
type Occurrence struct {
	Name      string
	Component *Component
}

// Design is the active document: a root component with bodies of its own,
// further components, and their occurrences.
type Design struct {
	Root        *Component
	Components  []*Component
	Occurrences []*Occurrence
}

// NewDesign creates a design whose root component carries the given name.
func NewDesign(name string) *Design {
	return &Design{Root: &Component{Name: name}}
}

// AddComponent registers a new, empty component.
func (d *Design) AddComponent(name string) (*Component, error) {
	if name == d.Root.Name || d.Component(name) != nil {
		return nil, fmt.Errorf("brep: component %q already exists", name)
	}
	c := &Component{Name: name}
	d.Components = append(d.Components, c)
	return c, nil
}

// Component returns the named component (the root included), or nil.
func (d *Design) Component(name string) *Component {
	if d.Root.Name == name {
		return d.Root
	}
	for _, c := range d.Components {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// AddOccurrence places component c in the design.
func (d *Design) AddOccurrence(name string, c *Component) (*Occurrence, error) {
	if c == nil || c == d.Root {
		return nil, fmt.Errorf("brep: occurrence %q needs a non-root component", name)
	}
	if d.Occurrence(name) != nil {
		return nil, fmt.Errorf("brep: occurrence %q already exists", name)
	}
	o := &Occurrence{Name: name, Component: c}
	d.Occurrences = append(d.Occurrences, o)
	return o, nil
}

// Occurrence returns the named occurrence, or nil.
func (d *Design) Occurrence(name string) *Occurrence {
	for _, o := range d.Occurrences {
		if o.Name == name {
			return o
		}
	}
	return nil
}

// Targets lists every body reachable in the design: root bodies first, then
// the bodies of each occurrence.
func (d *Design) Targets() []Target {
	var out []Target
	for _, b := range d.Root.Bodies {
		out = append(out, Target{Body: b})
	}
	for _, o := range d.Occurrences {
		for _, b := range o.Component.Bodies {
			out = append(out, Target{Occurrence: o, Body: b})
		}
	}
	return out
}

// ---------------------------------------------------------------------------
// Targets and keys
// ---------------------------------------------------------------------------

// Target locates a body in a design. Bodies of the root component have no
// occurrence and act as their own pseudo-occurrence.
type Target struct {
	Occurrence *Occurrence
	Body       *Body
}

// Key identifies the occurrence, or the body for root bodies.
func (t Target) Key() string {
	if t.Occurrence == nil {
		return "root/" + t.Body.Name
	}
	return "occ/" + t.Occurrence.Name
}

// ComponentName returns the name of the owning component; root bodies
// report the empty string.
func (t Target) ComponentName() string {
	if t.Occurrence == nil {
		return ""
	}
	return t.Occurrence.Component.Name
}

// IsRoot reports whether the body belongs to the root component.
func (t Target) IsRoot() bool { return t.Occurrence == nil }

func (t Target) String() string {
	if t.Occurrence == nil {
		return t.Body.Name
	}
	return t.Occurrence.Name + ":" + t.Body.Name
}

// keyPlaces is the rounding used to derive keys from geometry.
const keyPlaces = 4

// FaceKey derives a key for f from its owner and geometry. It survives
// regeneration, so a re-selected face maps to the same record.
func FaceKey(t Target, f *Face) string {
	n := geom.Round(f.Normal, keyPlaces)
	c := geom.Round(t.Body.Centroid(f), keyPlaces)
	return fmt.Sprintf("%s/%s|f|%s|%s", t.Key(), t.Body.Name, fmtVec(n), fmtVec(c))
}

// EdgeKey derives a key for e from its owner and end points.
func EdgeKey(t Target, e *Edge) string {
	s, u := t.Body.Endpoints(e)
	pts := []r3.Vec{geom.Round(s, keyPlaces), geom.Round(u, keyPlaces)}
	slices.SortFunc(pts, func(a, b r3.Vec) int {
		return cmp.Or(cmp.Compare(a.X, b.X), cmp.Compare(a.Y, b.Y), cmp.Compare(a.Z, b.Z))
	})
	return fmt.Sprintf("%s/%s|e|%s|%s", t.Key(), t.Body.Name, fmtVec(pts[0]), fmtVec(pts[1]))
}

// EdgeByKey returns the current edge of t's body whose key is k.
func EdgeByKey(t Target, k string) (*Edge, error) {
	for _, e := range t.Body.Edges() {
		if EdgeKey(t, e) == k {
			return e, nil
		}
	}
	return nil, fmt.Errorf("brep: edge %s: %w", k, ErrNotFound)
}

func fmtVec(v r3.Vec) string {
	var sb strings.Builder
	for i, x := range []float64{v.X, v.Y, v.Z} {
		if i > 0 {
			sb.WriteByte(',')
		}
		if x == 0 {
			x = 0 // normalize -0
		}
		fmt.Fprintf(&sb, "%.*f", keyPlaces, x)
	}
	return sb.String()
}
