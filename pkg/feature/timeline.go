package feature

import (
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/it-ony/Dogbone/pkg/dogbone"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/spatial/r3"
)

// User parameter names. Holes bind their size and offsets to these so the
// whole set can be resized after the run by editing one value.
const (
	ParamToolDia    = "dbToolDia"
	ParamOffset     = "dbOffset"
	ParamRadius     = "dbRadius"
	ParamMinPercent = "dbMinPercent"
	ParamHoleOffset = "dbHoleOffset"
)

// Expressions of the derived parameters and of every hole.
const (
	RadiusExpr   = "(dbToolDia + dbOffset)/2"
	DiameterExpr = "dbRadius*2"
	TipAngleExpr = "180 deg"
)

// HoleOffsetExpr returns the expression dbHoleOffset is bound to.
func HoleOffsetExpr(v dogbone.Variant) string {
	switch v {
	case dogbone.Minimal:
		return "dbRadius / sqrt(2) * (1 + dbMinPercent/100)"
	case dogbone.Mortise:
		return "dbRadius"
	default:
		return "dbRadius / sqrt(2)"
	}
}

// Parameter is a named user parameter. Value is the evaluated expression
// in millimetres, or unitless for dbMinPercent.
type Parameter struct {
	Name       string  `json:"name"`
	Expression string  `json:"expression"`
	Unit       string  `json:"unit"`
	Comment    string  `json:"comment,omitempty"`
	Value      float64 `json:"value"`
}

// Hole is a parametric hole feature.
type Hole struct {
	ID         uuid.UUID       `json:"id"`
	Name       string          `json:"name"`
	Occurrence string          `json:"occurrence"`
	Body       string          `json:"body"`
	Centre     r3.Vec          `json:"centre"`
	Normal     r3.Vec          `json:"normal"`
	Plane      dogbone.FaceRef `json:"plane"`
	Edge1      string          `json:"edge1"`
	Offset1    string          `json:"offset1"`
	Edge2      string          `json:"edge2"`
	Offset2    string          `json:"offset2"`
	Diameter   string          `json:"diameter"`
	TipAngle   string          `json:"tipAngle"`
	Extent     dogbone.FaceRef `json:"extent"`
	Suppressed bool            `json:"suppressed"`

	desc dogbone.Descriptor
}

// Descriptor returns the placement the hole was created from.
func (h *Hole) Descriptor() dogbone.Descriptor { return h.desc }

// Group is a named timeline group collecting the features of one
// occurrence.
type Group struct {
	ID         uuid.UUID   `json:"id"`
	Name       string      `json:"name"`
	Occurrence string      `json:"occurrence"`
	Features   []uuid.UUID `json:"features"`
}

// Timeline is an in-memory parametric feature history.
type Timeline struct {
	Parameters []*Parameter `json:"parameters"`
	Holes      []*Hole      `json:"holes"`
	Groups     []*Group     `json:"groups"`

	log  zerolog.Logger
	open *openGroup
}

type openGroup struct {
	occurrence string
	start      int
}

// NewTimeline returns an empty timeline.
func NewTimeline(log zerolog.Logger) *Timeline {
	return &Timeline{log: log}
}

// Parameter returns the named user parameter, or nil.
func (t *Timeline) Parameter(name string) *Parameter {
	for _, p := range t.Parameters {
		if p.Name == name {
			return p
		}
	}
	return nil
}

// upsert creates the named parameter or updates it in place.
func (t *Timeline) upsert(name, expr, unit, comment string, value float64) {
	if p := t.Parameter(name); p != nil {
		p.Expression, p.Unit, p.Value = expr, unit, value
		if comment != "" {
			p.Comment = comment
		}
		t.log.Debug().Str("param", name).Str("expr", expr).Msg("user parameter updated")
		return
	}
	t.Parameters = append(t.Parameters, &Parameter{Name: name, Expression: expr, Unit: unit, Comment: comment, Value: value})
	t.log.Debug().Str("param", name).Str("expr", expr).Msg("user parameter created")
}

// SetParameters creates or updates the dogbone user parameters from p.
// Running it again with other settings updates the same parameters.
func (t *Timeline) SetParameters(p dogbone.Params) error {
	dia, err := p.ToolDiameterMM()
	if err != nil {
		return err
	}
	off, err := p.ToolOffsetMM()
	if err != nil {
		return err
	}
	r := (dia + off) / 2

	t.upsert(ParamToolDia, p.ToolDiameter, "mm", "", dia)
	t.upsert(ParamOffset, p.ToolOffset, "mm", "Do NOT change formula", off)
	t.upsert(ParamRadius, RadiusExpr, "mm", "", r)
	t.upsert(ParamMinPercent, fmt.Sprintf("%g", p.MinimalPercent), "", "", p.MinimalPercent)
	t.upsert(ParamHoleOffset, HoleOffsetExpr(p.Variant), "mm", "", dogbone.HoleOffset(p.Variant, r, p.MinimalPercent))
	return nil
}

// BeginGroup starts collecting the holes of an occurrence.
func (t *Timeline) BeginGroup(occurrence string) error {
	if t.open != nil {
		return fmt.Errorf("%w: %s", ErrGroupOpen, t.open.occurrence)
	}
	t.open = &openGroup{occurrence: occurrence, start: len(t.Holes)}
	return nil
}

// Create adds a suppressed hole for d. Holes are unsuppressed together at
// EndGroup.
func (t *Timeline) Create(d dogbone.Descriptor) error {
	if t.open == nil {
		return ErrNoGroup
	}
	for _, name := range []string{ParamRadius, ParamHoleOffset} {
		if t.Parameter(name) == nil {
			return fmt.Errorf("%w: %s", ErrMissingParameter, name)
		}
	}
	h := &Hole{
		ID:         uuid.New(),
		Name:       Name,
		Occurrence: d.OccurrenceKey,
		Body:       d.Target.Body.Name,
		Centre:     d.Centre,
		Normal:     d.Normal,
		Plane:      d.Plane,
		Edge1:      d.PrimaryEdge,
		Offset1:    offsetExpr(d.PrimaryOffset),
		Edge2:      d.SecondaryEdge,
		Offset2:    offsetExpr(d.SecondaryOffset),
		Diameter:   DiameterExpr,
		TipAngle:   TipAngleExpr,
		Extent:     d.Extent,
		Suppressed: true,
		desc:       d,
	}
	t.Holes = append(t.Holes, h)
	t.log.Info().
		Float64("x", h.Centre.X).Float64("y", h.Centre.Y).Float64("z", h.Centre.Z).
		Msg("hole added")
	return nil
}

// offsetExpr binds a non-zero edge offset to dbHoleOffset.
func offsetExpr(v float64) string {
	if v == 0 {
		return "0"
	}
	return ParamHoleOffset
}

// EndGroup unsuppresses the holes of the open group and collects them in a
// timeline group named "dogbone" if there are any.
func (t *Timeline) EndGroup() error {
	if t.open == nil {
		return ErrNoGroup
	}
	g := t.open
	t.open = nil

	created := t.Holes[g.start:]
	if len(created) == 0 {
		return nil
	}
	grp := &Group{ID: uuid.New(), Name: Name, Occurrence: g.occurrence}
	for _, h := range created {
		h.Suppressed = false
		grp.Features = append(grp.Features, h.ID)
	}
	t.Groups = append(t.Groups, grp)
	t.log.Debug().Str("occurrence", g.occurrence).Int("holes", len(created)).Msg("timeline group created")
	return nil
}

// Value evaluates a hole expression against the user parameters.
func (t *Timeline) Value(expr string) (float64, error) {
	switch expr {
	case "0":
		return 0, nil
	case DiameterExpr:
		p := t.Parameter(ParamRadius)
		if p == nil {
			return math.NaN(), fmt.Errorf("%w: %s", ErrMissingParameter, ParamRadius)
		}
		return 2 * p.Value, nil
	}
	if p := t.Parameter(expr); p != nil {
		return p.Value, nil
	}
	return math.NaN(), fmt.Errorf("%w: %s", ErrMissingParameter, expr)
}
